package repository

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	appErrors "github.com/unclebandit/campaign-service/internal/errors"
	"github.com/unclebandit/campaign-service/internal/model"
)

// MemoryCampaignRepository keeps campaigns in process memory. Values are
// cloned on the way in and out so callers never share state with the store.
type MemoryCampaignRepository struct {
	mu        sync.RWMutex
	campaigns map[string]*model.Campaign
}

func NewMemoryCampaignRepository() *MemoryCampaignRepository {
	return &MemoryCampaignRepository{campaigns: make(map[string]*model.Campaign)}
}

func (r *MemoryCampaignRepository) Find(ctx context.Context, filter model.CampaignFilter) ([]*model.Campaign, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []*model.Campaign{}
	for _, c := range r.campaigns {
		if filter.Match(c) {
			out = append(out, c.Clone())
		}
	}
	sortCampaigns(out)
	return out, nil
}

func (r *MemoryCampaignRepository) FindOne(ctx context.Context, id string) (*model.Campaign, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.campaigns[id]
	if !ok {
		return nil, appErrors.NewCampaignNotFound(id)
	}
	return c.Clone(), nil
}

func (r *MemoryCampaignRepository) InsertOne(ctx context.Context, c *model.Campaign) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.campaigns[c.ID]; exists {
		return fmt.Errorf("campaign %s already exists", c.ID)
	}
	r.campaigns[c.ID] = c.Clone()
	return nil
}

func (r *MemoryCampaignRepository) UpdateDetails(ctx context.Context, c *model.Campaign) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.campaigns[c.ID]
	if !ok {
		return appErrors.NewCampaignNotFound(c.ID)
	}
	next := c.Clone()
	cur.Name = next.Name
	cur.Message = next.Message
	cur.Script = next.Script
	cur.VoiceRecordingRef = next.VoiceRecordingRef
	cur.ScheduledFor = next.ScheduledFor
	cur.UpdatedAt = next.UpdatedAt
	return nil
}

func (r *MemoryCampaignRepository) UpdateStatus(ctx context.Context, id string, status model.CampaignStatus, updatedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.campaigns[id]
	if !ok {
		return appErrors.NewCampaignNotFound(id)
	}
	cur.Status = status
	cur.UpdatedAt = updatedAt
	return nil
}

func (r *MemoryCampaignRepository) UpdateProgress(ctx context.Context, id string, p model.Progress, updatedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.campaigns[id]
	if !ok {
		return appErrors.NewCampaignNotFound(id)
	}
	cur.Progress = p
	cur.UpdatedAt = updatedAt
	return nil
}

func (r *MemoryCampaignRepository) TransitionStatus(ctx context.Context, id string, from, to model.CampaignStatus, updatedAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.campaigns[id]
	if !ok || cur.Status != from {
		return false, nil
	}
	cur.Status = to
	cur.UpdatedAt = updatedAt
	return true, nil
}

func (r *MemoryCampaignRepository) DeleteOne(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.campaigns[id]; !ok {
		return false, nil
	}
	delete(r.campaigns, id)
	return true, nil
}

// newest first, id as tie-breaker
func sortCampaigns(cs []*model.Campaign) {
	slices.SortFunc(cs, func(a, b *model.Campaign) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
}

// MemoryMessageRepository keeps messages grouped by campaign in insertion order.
type MemoryMessageRepository struct {
	mu         sync.RWMutex
	byCampaign map[string][]*model.Message
	ids        map[string]bool
}

func NewMemoryMessageRepository() *MemoryMessageRepository {
	return &MemoryMessageRepository{
		byCampaign: make(map[string][]*model.Message),
		ids:        make(map[string]bool),
	}
}

func (r *MemoryMessageRepository) FindByCampaign(ctx context.Context, campaignID string) ([]*model.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	msgs := r.byCampaign[campaignID]
	out := make([]*model.Message, 0, len(msgs))
	for _, m := range msgs {
		cp := *m
		out = append(out, &cp)
	}
	return out, nil
}

func (r *MemoryMessageRepository) InsertMany(ctx context.Context, msgs []*model.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, m := range msgs {
		if r.ids[m.ID] {
			return fmt.Errorf("message %s already exists", m.ID)
		}
	}
	for _, m := range msgs {
		cp := *m
		r.ids[m.ID] = true
		r.byCampaign[m.CampaignID] = append(r.byCampaign[m.CampaignID], &cp)
	}
	return nil
}

func (r *MemoryMessageRepository) DeleteMany(ctx context.Context, campaignID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	msgs := r.byCampaign[campaignID]
	for _, m := range msgs {
		delete(r.ids, m.ID)
	}
	delete(r.byCampaign, campaignID)
	return int64(len(msgs)), nil
}

// MemoryContactRepository is the static contact list used without a database.
type MemoryContactRepository struct {
	mu       sync.RWMutex
	contacts map[string]*model.Contact
}

func NewMemoryContactRepository(seed ...*model.Contact) *MemoryContactRepository {
	r := &MemoryContactRepository{contacts: make(map[string]*model.Contact)}
	_ = r.InsertMany(context.Background(), seed)
	return r
}

func (r *MemoryContactRepository) Find(ctx context.Context, filter model.ContactFilter) ([]*model.Contact, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []*model.Contact{}
	for _, c := range r.contacts {
		if filter.Match(c) {
			cp := *c
			out = append(out, &cp)
		}
	}
	slices.SortFunc(out, func(a, b *model.Contact) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (r *MemoryContactRepository) FindByIDs(ctx context.Context, ids []string) (map[string]*model.Contact, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]*model.Contact, len(ids))
	for _, id := range ids {
		if c, ok := r.contacts[id]; ok {
			cp := *c
			out[id] = &cp
		}
	}
	return out, nil
}

// InsertMany upserts by id; seeding the same fixture twice is harmless.
func (r *MemoryContactRepository) InsertMany(ctx context.Context, contacts []*model.Contact) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range contacts {
		cp := *c
		cp.Tags = append([]string(nil), c.Tags...)
		r.contacts[c.ID] = &cp
	}
	return nil
}

var (
	_ CampaignRepositoryInterface = (*MemoryCampaignRepository)(nil)
	_ MessageRepositoryInterface  = (*MemoryMessageRepository)(nil)
	_ ContactRepositoryInterface  = (*MemoryContactRepository)(nil)
)
