package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/campaign-service/internal/model"
	"github.com/unclebandit/campaign-service/internal/repository"
	"github.com/unclebandit/campaign-service/internal/service"
)

func TestScheduler_StartsDueCampaigns(t *testing.T) {
	launcher := &recordingLauncher{}
	campaigns := repository.NewMemoryCampaignRepository()
	svc := &service.CampaignService{CampaignRepo: campaigns, Launcher: launcher}
	ctx := context.Background()
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	due, err := svc.Create(ctx, smsForm(3))
	require.NoError(t, err)
	_, err = svc.Schedule(ctx, due.ID, now.Add(-time.Minute))
	require.NoError(t, err)

	future, err := svc.Create(ctx, smsForm(3))
	require.NoError(t, err)
	_, err = svc.Schedule(ctx, future.ID, now.Add(time.Hour))
	require.NoError(t, err)

	_, err = svc.Create(ctx, smsForm(3)) // draft, never picked up
	require.NoError(t, err)

	sched := &service.Scheduler{Service: svc, Now: func() time.Time { return now }}
	started, err := sched.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, started)
	assert.Equal(t, []string{due.ID}, launcher.Launched())

	got, err := svc.GetByID(ctx, due.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusInProgress, got.Status)

	got, err = svc.GetByID(ctx, future.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusScheduled, got.Status)

	// started campaigns are no longer scheduled
	started, err = sched.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, started)
}

func TestScheduler_RunStopsWithContext(t *testing.T) {
	svc := &service.CampaignService{
		CampaignRepo: repository.NewMemoryCampaignRepository(),
		Launcher:     &recordingLauncher{},
	}
	sched := &service.Scheduler{Service: svc, Interval: time.Millisecond}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sched.Run(ctx) }()

	time.Sleep(5 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestResume_RelaunchesInProgressCampaigns(t *testing.T) {
	launcher := &recordingLauncher{}
	svc := &service.CampaignService{CampaignRepo: repository.NewMemoryCampaignRepository(), Launcher: launcher}
	ctx := context.Background()

	active, err := svc.Create(ctx, smsForm(2))
	require.NoError(t, err)
	_, err = svc.Start(ctx, active.ID)
	require.NoError(t, err)
	_, err = svc.Create(ctx, smsForm(2))
	require.NoError(t, err)

	resumed, err := svc.Resume(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, resumed)
	assert.Equal(t, []string{active.ID, active.ID}, launcher.Launched())
}
