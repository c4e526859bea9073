package service

import (
	"context"
	"fmt"
	"time"

	"github.com/unclebandit/campaign-service/internal/queue"
)

// QueuedLauncher sends started campaigns to cmd/worker through the queue.
// The worker notices a cancel on its next tick, so Abort has nothing to do here.
type QueuedLauncher struct {
	Queue queue.Queue
	Now   func() time.Time
}

func (l *QueuedLauncher) Launch(ctx context.Context, campaignID string) error {
	now := time.Now()
	if l.Now != nil {
		now = l.Now()
	}
	job := queue.LaunchJob{CampaignID: campaignID, RequestedAt: now}
	if err := l.Queue.Publish(queue.TopicCampaignLaunches, job); err != nil {
		return fmt.Errorf("enqueue launch of %s: %w", campaignID, err)
	}
	return nil
}

func (l *QueuedLauncher) Abort(campaignID string) bool { return false }

var _ Launcher = (*QueuedLauncher)(nil)
