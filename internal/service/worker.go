package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	appErrors "github.com/unclebandit/campaign-service/internal/errors"
)

// Worker launches lifecycle loops for campaign ids read from JobChan.
type Worker struct {
	Launcher Launcher
	JobChan  <-chan string
	Logger   *zap.Logger
}

// Constructor
func NewWorker(launcher Launcher, jobChan <-chan string, log *zap.Logger) *Worker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Worker{
		Launcher: launcher,
		JobChan:  jobChan,
		Logger:   log,
	}
}

// Start begins processing jobs until JobChan is closed or ctx is done.
func (w *Worker) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case id, ok := <-w.JobChan:
			if !ok {
				return
			}
			w.launch(ctx, id)
		}
	}
}

func (w *Worker) launch(ctx context.Context, campaignID string) {
	err := w.Launcher.Launch(ctx, campaignID)
	switch {
	case err == nil:
		w.Logger.Info("campaign launched", zap.String("campaign_id", campaignID))
	case errors.Is(err, appErrors.ErrAlreadyRunning), errors.Is(err, appErrors.ErrLeaseHeld):
		w.Logger.Info("campaign already running elsewhere", zap.String("campaign_id", campaignID))
	default:
		w.Logger.Error("failed to launch campaign", zap.String("campaign_id", campaignID), zap.Error(err))
	}
}
