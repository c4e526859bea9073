package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/unclebandit/campaign-service/internal/config"
	appErrors "github.com/unclebandit/campaign-service/internal/errors"
	"github.com/unclebandit/campaign-service/internal/lock"
	"github.com/unclebandit/campaign-service/internal/model"
	"github.com/unclebandit/campaign-service/internal/queue"
	"github.com/unclebandit/campaign-service/internal/repository"
)

// Launcher hands a started campaign to a lifecycle loop.
type Launcher interface {
	Launch(ctx context.Context, campaignID string) error
	// Abort stops a pending loop early and reports whether one was running here.
	Abort(campaignID string) bool
}

// IVR calls that connect are given a simulated length in this range, in seconds.
const (
	minCallSeconds = 15
	maxCallSeconds = 120
)

// Engine runs one background loop per in-progress campaign. Each tick takes
// a random batch of pending contacts, records one Message per contact and
// moves the campaign to completed once nothing is pending.
type Engine struct {
	CampaignRepo repository.CampaignRepositoryInterface
	MessageRepo  repository.MessageRepositoryInterface
	ContactRepo  repository.ContactRepositoryInterface

	// Events and Locker are optional.
	Events queue.Queue
	Locker lock.Locker

	Logger *zap.Logger
	Now    func() time.Time

	cfg config.Engine

	rngMu sync.Mutex
	rng   *rand.Rand

	mu     sync.Mutex
	runs   map[string]*run
	closed bool
	wg     sync.WaitGroup
}

type run struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func NewEngine(cfg config.Engine, campaigns repository.CampaignRepositoryInterface, messages repository.MessageRepositoryInterface, contacts repository.ContactRepositoryInterface, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		CampaignRepo: campaigns,
		MessageRepo:  messages,
		ContactRepo:  contacts,
		Logger:       log,
		Now:          time.Now,
		cfg:          cfg,
		rng:          rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x9e3779b97f4a7c15)),
		runs:         make(map[string]*run),
	}
}

// Seed makes batch sizes, rates and delays reproducible.
func (e *Engine) Seed(seed uint64) {
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	e.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Launch starts the loop for campaignID and returns without waiting for any
// tick. A second launch for a campaign that already has a loop in this
// process returns appErrors.ErrAlreadyRunning; with a Locker configured a
// loop held by another process yields appErrors.ErrLeaseHeld.
func (e *Engine) Launch(ctx context.Context, campaignID string) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return errors.New("engine is shut down")
	}
	if _, ok := e.runs[campaignID]; ok {
		e.mu.Unlock()
		return appErrors.ErrAlreadyRunning
	}
	// the loop outlives the request that started it
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r := &run{cancel: cancel, done: make(chan struct{})}
	e.runs[campaignID] = r
	e.wg.Add(1)
	e.mu.Unlock()

	var lease lock.Lease
	if e.Locker != nil {
		l, err := e.Locker.Acquire(ctx, campaignID)
		if err != nil {
			e.finish(campaignID, r)
			return fmt.Errorf("acquire run lease: %w", err)
		}
		lease = l
	}

	go e.loop(runCtx, campaignID, r, lease)
	return nil
}

// Abort cancels the pending delay of a running loop. A batch that is already
// being written completes first.
func (e *Engine) Abort(campaignID string) bool {
	e.mu.Lock()
	r, ok := e.runs[campaignID]
	e.mu.Unlock()
	if ok {
		r.cancel()
	}
	return ok
}

// Running reports whether a loop for campaignID is registered.
func (e *Engine) Running(campaignID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.runs[campaignID]
	return ok
}

// Wait blocks until the loop for campaignID has exited or ctx is done.
func (e *Engine) Wait(ctx context.Context, campaignID string) error {
	e.mu.Lock()
	r, ok := e.runs[campaignID]
	e.mu.Unlock()
	if !ok {
		return nil
	}
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown aborts every loop and waits for them to exit.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	e.closed = true
	for _, r := range e.runs {
		r.cancel()
	}
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) finish(campaignID string, r *run) {
	r.cancel()
	e.mu.Lock()
	if e.runs[campaignID] == r {
		delete(e.runs, campaignID)
	}
	e.mu.Unlock()
	close(r.done)
	e.wg.Done()
}

func (e *Engine) loop(ctx context.Context, campaignID string, r *run, lease lock.Lease) {
	defer e.finish(campaignID, r)
	log := e.Logger.With(zap.String("campaign_id", campaignID))

	// writes must land even when the loop is aborted mid-tick
	writeCtx := context.WithoutCancel(ctx)
	if lease != nil {
		defer func() {
			if err := lease.Release(writeCtx); err != nil {
				log.Warn("failed to release run lease", zap.Error(err))
			}
		}()
	}

	log.Info("campaign loop started")
	e.publish(queue.LifecycleEvent{Type: queue.EventStarted, CampaignID: campaignID, Status: model.StatusInProgress})

	delay := e.cfg.InitialDelay
	for {
		if !sleep(ctx, delay) {
			log.Info("campaign loop aborted")
			return
		}
		if lease != nil {
			if err := lease.Refresh(writeCtx); err != nil {
				e.stall(log, campaignID, fmt.Errorf("refresh run lease: %w", err))
				return
			}
		}

		more, err := e.Step(writeCtx, campaignID)
		if err != nil {
			e.stall(log, campaignID, err)
			return
		}
		if !more {
			log.Info("campaign loop finished")
			return
		}
		delay = e.randomDelay()
	}
}

// stall logs the failure and leaves the campaign in-progress; a later Start resumes it.
func (e *Engine) stall(log *zap.Logger, campaignID string, err error) {
	log.Error("campaign tick failed, loop stopped", zap.Error(err))
	e.publish(queue.LifecycleEvent{
		Type:       queue.EventStalled,
		CampaignID: campaignID,
		Status:     model.StatusInProgress,
		Error:      err.Error(),
	})
}

// Step runs a single tick and reports whether another tick is needed.
func (e *Engine) Step(ctx context.Context, campaignID string) (bool, error) {
	log := e.Logger.With(zap.String("campaign_id", campaignID))

	c, err := e.CampaignRepo.FindOne(ctx, campaignID)
	if err != nil {
		if appErrors.IsNotFound(err) {
			log.Info("campaign deleted, stopping")
			return false, nil
		}
		return false, fmt.Errorf("load campaign: %w", err)
	}
	if c.Status != model.StatusInProgress {
		log.Info("campaign no longer in progress, stopping", zap.String("status", string(c.Status)))
		return false, nil
	}

	now := e.now()
	if c.Progress.Pending <= 0 {
		return false, e.complete(ctx, c, now)
	}

	size := e.batchSize(c.Progress.Pending)
	delivered := int(math.Floor(float64(size) * e.successRate()))
	failed := size - delivered

	next := c.Progress.Apply(delivered, failed)
	if err := next.Check(c.ContactsCount); err != nil {
		return false, err
	}

	msgs, err := e.buildMessages(ctx, c, delivered, failed, now)
	if err != nil {
		return false, err
	}
	if err := e.MessageRepo.InsertMany(ctx, msgs); err != nil {
		return false, fmt.Errorf("record messages: %w", err)
	}
	if err := e.CampaignRepo.UpdateProgress(ctx, c.ID, next, now); err != nil {
		if appErrors.IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("update progress: %w", err)
	}

	log.Info("batch processed",
		zap.Int("batch_size", size),
		zap.Int("delivered", delivered),
		zap.Int("failed", failed),
		zap.Int("pending", next.Pending))
	e.publish(queue.LifecycleEvent{Type: queue.EventBatch, CampaignID: c.ID, Status: c.Status, Progress: next, At: now})

	if next.Pending > 0 {
		return true, nil
	}
	c.Progress = next
	return false, e.complete(ctx, c, now)
}

func (e *Engine) complete(ctx context.Context, c *model.Campaign, now time.Time) error {
	ok, err := e.CampaignRepo.TransitionStatus(ctx, c.ID, model.StatusInProgress, model.StatusCompleted, now)
	if err != nil {
		return fmt.Errorf("complete campaign: %w", err)
	}
	if !ok {
		// cancelled or deleted while the last batch was written
		return nil
	}
	e.Logger.Info("campaign completed",
		zap.String("campaign_id", c.ID),
		zap.Int("delivered", c.Progress.Delivered),
		zap.Int("failed", c.Progress.Failed))
	e.publish(queue.LifecycleEvent{Type: queue.EventCompleted, CampaignID: c.ID, Status: model.StatusCompleted, Progress: c.Progress, At: now})
	return nil
}

// buildMessages creates the records for the contacts at positions
// [Sent, Sent+delivered+failed) of the campaign's contact list.
func (e *Engine) buildMessages(ctx context.Context, c *model.Campaign, delivered, failed int, now time.Time) ([]*model.Message, error) {
	size := delivered + failed
	ids := make([]string, size)
	for i := range ids {
		ids[i] = c.ContactAt(c.Progress.Sent + i)
	}

	var known map[string]*model.Contact
	if e.ContactRepo != nil {
		var err error
		if known, err = e.ContactRepo.FindByIDs(ctx, ids); err != nil {
			return nil, fmt.Errorf("load contacts: %w", err)
		}
	}

	content := c.Content()
	msgs := make([]*model.Message, 0, size)
	for i, contactID := range ids {
		m := &model.Message{
			ID:                uuid.NewString(),
			CampaignID:        c.ID,
			ContactID:         contactID,
			Content:           content,
			Channel:           c.Channel,
			VoiceRecordingRef: c.VoiceRecordingRef,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		if contact, ok := known[contactID]; ok {
			m.Content = RenderTemplate(content, contact.Placeholders())
		}
		if i < delivered {
			sentAt, deliveredAt := now, now
			m.Status = model.DeliveryDelivered
			m.SentAt = &sentAt
			m.DeliveredAt = &deliveredAt
			if c.Channel == model.ChannelIVR {
				d := e.intRange(minCallSeconds, maxCallSeconds)
				m.Duration = &d
			}
		} else {
			m.Status = model.DeliveryFailed
			m.ErrorMessage = model.DeliveryErrorMessage
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

func (e *Engine) publish(ev queue.LifecycleEvent) {
	if e.Events == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = e.now()
	}
	if err := e.Events.Publish(queue.TopicCampaignEvents, ev); err != nil {
		e.Logger.Warn("failed to publish lifecycle event",
			zap.String("campaign_id", ev.CampaignID),
			zap.String("event", string(ev.Type)),
			zap.Error(err))
	}
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// batchSize is uniform in [1, MaxBatch], capped at pending.
func (e *Engine) batchSize(pending int) int {
	return min(e.intRange(1, max(e.cfg.MaxBatch, 1)), pending)
}

func (e *Engine) successRate() float64 {
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	return e.cfg.MinSuccessRate + e.rng.Float64()*(e.cfg.MaxSuccessRate-e.cfg.MinSuccessRate)
}

// randomDelay is uniform in [MinDelay, MaxDelay).
func (e *Engine) randomDelay() time.Duration {
	span := e.cfg.MaxDelay - e.cfg.MinDelay
	if span <= 0 {
		return e.cfg.MinDelay
	}
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	return e.cfg.MinDelay + time.Duration(e.rng.Int64N(int64(span)))
}

// intRange is uniform in [lo, hi].
func (e *Engine) intRange(lo, hi int) int {
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	return lo + e.rng.IntN(hi-lo+1)
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

var _ Launcher = (*Engine)(nil)
