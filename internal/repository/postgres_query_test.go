package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/unclebandit/campaign-service/internal/model"
)

func TestContainsPattern(t *testing.T) {
	cases := map[string]string{
		"spring":    "%spring%",
		"100%":      `%100\%%`,
		"promo_v2":  `%promo\_v2%`,
		`C:\drafts`: `%C:\\drafts%`,
		`_%\`:       `%\_\%\\%`,
		"":          "%%",
	}
	for in, want := range cases {
		assert.Equal(t, want, containsPattern(in), in)
	}
}

func TestCampaignFindQuery(t *testing.T) {
	query, args := campaignFindQuery(model.CampaignFilter{
		Channel: model.ChannelSMS,
		Search:  "50%_off",
	})

	assert.Contains(t, query, " AND channel=$1")
	assert.Contains(t, query, ` AND name ILIKE $2 ESCAPE '\'`)
	assert.NotContains(t, query, "status=")
	assert.Equal(t, []interface{}{model.ChannelSMS, `%50\%\_off%`}, args)
}

func TestCampaignFindQuery_NoFilters(t *testing.T) {
	query, args := campaignFindQuery(model.CampaignFilter{})

	assert.NotContains(t, query, "ILIKE")
	assert.Contains(t, query, "ORDER BY created_at DESC, id DESC")
	assert.Empty(t, args)
}

func TestContactFindQuery(t *testing.T) {
	query, args := contactFindQuery(model.ContactFilter{
		Tag:    "vip",
		Search: "john_",
	})

	assert.Contains(t, query, " AND $1 = ANY(tags)")
	assert.Contains(t, query, `name ILIKE $2 ESCAPE '\'`)
	assert.Contains(t, query, `phone LIKE $2 ESCAPE '\'`)
	assert.Contains(t, query, `email ILIKE $2 ESCAPE '\'`)
	assert.Equal(t, []interface{}{"vip", `%john\_%`}, args)
}
