package service_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/campaign-service/internal/model"
	"github.com/unclebandit/campaign-service/internal/repository"
	"github.com/unclebandit/campaign-service/internal/service"
)

// Mock Campaign Repository for pagination
type MockCampaignPaginationRepo struct {
	repository.CampaignRepositoryInterface
	lastFilter model.CampaignFilter
}

func (m *MockCampaignPaginationRepo) Find(ctx context.Context, filter model.CampaignFilter) ([]*model.Campaign, error) {
	m.lastFilter = filter
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	all := []*model.Campaign{}
	for i := 5; i >= 1; i-- {
		all = append(all, &model.Campaign{
			ID:        fmt.Sprintf("c%d", i),
			Name:      fmt.Sprintf("C%d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		})
	}
	return all, nil
}

func TestPagination(t *testing.T) {
	repo := &MockCampaignPaginationRepo{}
	svc := &service.CampaignService{CampaignRepo: repo}
	ctx := context.Background()
	filter := model.CampaignFilter{Channel: model.ChannelSMS}

	pageSize := 2
	page1, pagination1, err := svc.ListCampaigns(ctx, 1, pageSize, filter)
	require.NoError(t, err)
	page2, _, err := svc.ListCampaigns(ctx, 2, pageSize, filter)
	require.NoError(t, err)

	assert.Equal(t, filter, repo.lastFilter)
	assert.Equal(t, 5, pagination1["total_count"])
	assert.Equal(t, 3, pagination1["total_pages"])
	require.Len(t, page1, 2)
	require.Len(t, page2, 2)

	// newest first within and across pages
	assert.True(t, page1[0].CreatedAt.After(page1[1].CreatedAt))
	assert.True(t, page2[0].CreatedAt.After(page2[1].CreatedAt))
	assert.NotEqual(t, page1[1].ID, page2[0].ID)

	page3, pagination3, err := svc.ListCampaigns(ctx, 3, pageSize, filter)
	require.NoError(t, err)
	assert.Len(t, page3, 1)
	assert.Equal(t, 5, pagination3["total_count"])

	beyond, _, err := svc.ListCampaigns(ctx, 9, pageSize, filter)
	require.NoError(t, err)
	assert.Empty(t, beyond)
}

func TestPagination_ClampsArguments(t *testing.T) {
	svc := &service.CampaignService{CampaignRepo: &MockCampaignPaginationRepo{}}

	_, pagination, err := svc.ListCampaigns(context.Background(), 0, 0, model.CampaignFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, pagination["page"])
	assert.Equal(t, 20, pagination["page_size"])

	_, pagination, err = svc.ListCampaigns(context.Background(), 1, 500, model.CampaignFilter{})
	require.NoError(t, err)
	assert.Equal(t, 100, pagination["page_size"])
	assert.Equal(t, 1, pagination["total_pages"])
}
