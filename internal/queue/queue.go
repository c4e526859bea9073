package queue

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/unclebandit/campaign-service/internal/model"
)

const (
	// TopicCampaignEvents carries LifecycleEvent notifications.
	TopicCampaignEvents = "campaign_events"
	// TopicCampaignLaunches carries LaunchJob requests for cmd/worker.
	TopicCampaignLaunches = "campaign_launches"
)

// Queue interface
type Queue interface {
	Publish(topic string, payload any) error
	Subscribe(topic string, handler func(payload any) error) error
	Close() error
}

type EventType string

const (
	EventStarted   EventType = "started"
	EventBatch     EventType = "batch"
	EventCompleted EventType = "completed"
	EventCancelled EventType = "cancelled"
	EventScheduled EventType = "scheduled"
	EventStalled   EventType = "stalled"
)

// LifecycleEvent is published whenever a campaign changes status or progress.
type LifecycleEvent struct {
	Type       EventType            `json:"type"`
	CampaignID string               `json:"campaign_id"`
	Status     model.CampaignStatus `json:"status"`
	Progress   model.Progress       `json:"progress"`
	Error      string               `json:"error,omitempty"`
	At         time.Time            `json:"at"`
}

// LaunchJob asks a worker to run the lifecycle loop of a campaign.
type LaunchJob struct {
	CampaignID  string    `json:"campaign_id"`
	RequestedAt time.Time `json:"requested_at"`
}

// Decode converts a handler payload into v. Brokers hand over raw JSON,
// the in-memory queue hands over the published value itself.
func Decode(payload any, v any) error {
	var body []byte
	switch p := payload.(type) {
	case json.RawMessage:
		body = p
	case []byte:
		body = p
	default:
		b, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("encode payload: %w", err)
		}
		body = b
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}

func encode(payload any) ([]byte, error) {
	switch p := payload.(type) {
	case json.RawMessage:
		return p, nil
	case []byte:
		return p, nil
	}
	return json.Marshal(payload)
}

// InMemoryQueue is an in-process queue with retry
type InMemoryQueue struct {
	mu       sync.Mutex
	handlers map[string][]func(payload any) error
	closed   bool
	wg       sync.WaitGroup

	MaxRetries int
	// Backoff is multiplied by the attempt number between retries.
	Backoff time.Duration
	Logger  *zap.Logger
}

// NewInMemoryQueue creates a new queue
func NewInMemoryQueue(maxRetries int, log *zap.Logger) *InMemoryQueue {
	if log == nil {
		log = zap.NewNop()
	}
	return &InMemoryQueue{
		handlers:   make(map[string][]func(payload any) error),
		MaxRetries: maxRetries,
		Backoff:    500 * time.Millisecond,
		Logger:     log,
	}
}

// Publish sends a message to all subscribers
func (q *InMemoryQueue) Publish(topic string, payload any) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return fmt.Errorf("queue closed")
	}
	handlers := append([]func(payload any) error(nil), q.handlers[topic]...)
	q.wg.Add(len(handlers))
	q.mu.Unlock()

	if len(handlers) == 0 {
		return fmt.Errorf("no subscribers for topic %s", topic)
	}

	for _, handler := range handlers {
		go func() {
			defer q.wg.Done()
			_ = deliver(q.Logger.With(zap.String("topic", topic)), handler, payload, q.MaxRetries, q.Backoff)
		}()
	}
	return nil
}

// Subscribe adds a handler for a topic
func (q *InMemoryQueue) Subscribe(topic string, handler func(payload any) error) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.handlers[topic] = append(q.handlers[topic], handler)
	return nil
}

// Close stops accepting messages and waits for in-flight deliveries.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.wg.Wait()
	return nil
}

// deliver runs handler until it succeeds or maxRetries retries are used up,
// sleeping attempt*backoff in between.
func deliver(log *zap.Logger, handler func(payload any) error, payload any, maxRetries int, backoff time.Duration) error {
	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(attempt) * backoff)
		}
		if err = handler(payload); err == nil {
			return nil
		}
		log.Warn("job failed", zap.Int("attempt", attempt+1), zap.Int("max_retries", maxRetries), zap.Error(err))
	}
	log.Error("job permanently failed", zap.Int("attempts", maxRetries+1), zap.Error(err))
	return err
}

var _ Queue = (*InMemoryQueue)(nil)
