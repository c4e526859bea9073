package repository

import (
	"context"
	"time"

	"github.com/unclebandit/campaign-service/internal/model"
)

// CampaignRepositoryInterface is the persistence contract for campaigns.
// Campaigns are keyed by their string id; FindOne and the mutating calls
// return *appErrors.ErrCampaignNotFound for unknown ids.
type CampaignRepositoryInterface interface {
	Find(ctx context.Context, filter model.CampaignFilter) ([]*model.Campaign, error)
	FindOne(ctx context.Context, id string) (*model.Campaign, error)
	InsertOne(ctx context.Context, c *model.Campaign) error

	// UpdateDetails writes only the editable fields and updated_at.
	UpdateDetails(ctx context.Context, c *model.Campaign) error
	UpdateStatus(ctx context.Context, id string, status model.CampaignStatus, updatedAt time.Time) error
	UpdateProgress(ctx context.Context, id string, p model.Progress, updatedAt time.Time) error

	// TransitionStatus sets status to to only while it is still from, and
	// reports whether it did. A missing campaign reports false.
	TransitionStatus(ctx context.Context, id string, from, to model.CampaignStatus, updatedAt time.Time) (bool, error)

	// DeleteOne reports whether a campaign was removed.
	DeleteOne(ctx context.Context, id string) (bool, error)
}

// MessageRepositoryInterface stores the per-contact delivery records of a campaign.
type MessageRepositoryInterface interface {
	FindByCampaign(ctx context.Context, campaignID string) ([]*model.Message, error)
	InsertMany(ctx context.Context, msgs []*model.Message) error
	DeleteMany(ctx context.Context, campaignID string) (int64, error)
}

// ContactRepositoryInterface is the read-mostly contact store.
type ContactRepositoryInterface interface {
	Find(ctx context.Context, filter model.ContactFilter) ([]*model.Contact, error)
	// FindByIDs returns the known contacts among ids, keyed by id.
	FindByIDs(ctx context.Context, ids []string) (map[string]*model.Contact, error)
	InsertMany(ctx context.Context, contacts []*model.Contact) error
}
