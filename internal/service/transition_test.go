package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/unclebandit/campaign-service/internal/errors"
	"github.com/unclebandit/campaign-service/internal/model"
	"github.com/unclebandit/campaign-service/internal/repository"
	"github.com/unclebandit/campaign-service/internal/service"
)

// racingCampaignRepo moves the campaign to status right after the first
// FindOne, as if another request landed between the read and the write.
type racingCampaignRepo struct {
	*repository.MemoryCampaignRepository
	status model.CampaignStatus
	once   sync.Once
}

func (r *racingCampaignRepo) FindOne(ctx context.Context, id string) (*model.Campaign, error) {
	c, err := r.MemoryCampaignRepository.FindOne(ctx, id)
	if err == nil {
		r.once.Do(func() {
			_ = r.MemoryCampaignRepository.UpdateStatus(ctx, id, r.status, time.Now())
		})
	}
	return c, err
}

func racingService(t *testing.T, from, concurrent model.CampaignStatus) (*service.CampaignService, *recordingLauncher, *repository.MemoryCampaignRepository, string) {
	t.Helper()
	inner := repository.NewMemoryCampaignRepository()
	c := model.NewCampaign("camp-race", smsForm(4), time.Now())
	c.Status = from
	require.NoError(t, inner.InsertOne(context.Background(), c))

	launcher := &recordingLauncher{}
	svc := &service.CampaignService{
		CampaignRepo: &racingCampaignRepo{MemoryCampaignRepository: inner, status: concurrent},
		Launcher:     launcher,
	}
	return svc, launcher, inner, c.ID
}

func storedStatus(t *testing.T, repo *repository.MemoryCampaignRepository, id string) model.CampaignStatus {
	t.Helper()
	c, err := repo.FindOne(context.Background(), id)
	require.NoError(t, err)
	return c.Status
}

func TestStart_DoesNotReviveConcurrentlyCancelledCampaign(t *testing.T) {
	svc, launcher, repo, id := racingService(t, model.StatusDraft, model.StatusCancelled)

	got, err := svc.Start(context.Background(), id)
	require.Error(t, err)
	assert.True(t, appErrors.IsInvalidTransition(err))
	assert.Nil(t, got)
	assert.Equal(t, model.StatusCancelled, storedStatus(t, repo, id))
	assert.Empty(t, launcher.Launched())
}

func TestStart_ConcurrentStartStillLaunches(t *testing.T) {
	svc, launcher, repo, id := racingService(t, model.StatusScheduled, model.StatusInProgress)

	got, err := svc.Start(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusInProgress, got.Status)
	assert.Equal(t, model.StatusInProgress, storedStatus(t, repo, id))
	assert.Equal(t, []string{id}, launcher.Launched())
}

func TestCancel_DoesNotOverwriteConcurrentCompletion(t *testing.T) {
	svc, _, repo, id := racingService(t, model.StatusInProgress, model.StatusCompleted)

	got, err := svc.Cancel(context.Background(), id)
	require.Error(t, err)
	assert.True(t, appErrors.IsInvalidTransition(err))
	assert.Nil(t, got)
	assert.Equal(t, model.StatusCompleted, storedStatus(t, repo, id))
}

func TestCancel_RetriesAfterConcurrentSchedule(t *testing.T) {
	svc, _, repo, id := racingService(t, model.StatusDraft, model.StatusScheduled)

	got, err := svc.Cancel(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, got.Status)
	assert.Equal(t, model.StatusCancelled, storedStatus(t, repo, id))
}

func TestSchedule_DoesNotRevertConcurrentStart(t *testing.T) {
	svc, _, repo, id := racingService(t, model.StatusDraft, model.StatusInProgress)

	got, err := svc.Schedule(context.Background(), id, time.Now().Add(time.Hour))
	require.Error(t, err)
	assert.True(t, appErrors.IsInvalidTransition(err))
	assert.Nil(t, got)
	assert.Equal(t, model.StatusInProgress, storedStatus(t, repo, id))
}
