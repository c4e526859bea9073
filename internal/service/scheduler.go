package service

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Scheduler starts scheduled campaigns once their time has come.
type Scheduler struct {
	Service  *CampaignService
	Interval time.Duration
	Logger   *zap.Logger
	Now      func() time.Time
}

// Run polls until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	interval := s.Interval
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
			s.log().Error("scheduler pass failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// RunOnce starts every due campaign and returns how many were started.
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}
	due, err := s.Service.DueScheduled(ctx, now)
	if err != nil {
		return 0, err
	}

	started := 0
	for _, c := range due {
		got, err := s.Service.Start(ctx, c.ID)
		if err != nil {
			s.log().Warn("failed to start scheduled campaign", zap.String("campaign_id", c.ID), zap.Error(err))
			continue
		}
		if got != nil {
			started++
		}
	}
	if started > 0 {
		s.log().Info("scheduled campaigns started", zap.Int("count", started))
	}
	return started, nil
}

func (s *Scheduler) log() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}
