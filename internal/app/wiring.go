package app

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/unclebandit/campaign-service/internal/config"
	"github.com/unclebandit/campaign-service/internal/lock"
	"github.com/unclebandit/campaign-service/internal/queue"
	"github.com/unclebandit/campaign-service/internal/service"
)

// OpenQueue connects the broker named by cfg.Driver.
func OpenQueue(cfg config.Queue, log *zap.Logger) (queue.Queue, error) {
	switch cfg.Driver {
	case config.QueueMemory:
		return queue.NewInMemoryQueue(cfg.MaxRetries, log), nil
	case config.QueueAMQP:
		q, err := queue.NewAMQPQueue(cfg.AMQPURL, cfg.MaxRetries, log)
		if err != nil {
			return nil, err
		}
		return q, nil
	case config.QueueKafka:
		q, err := queue.NewKafkaQueue(cfg, log)
		if err != nil {
			return nil, err
		}
		return q, nil
	}
	return nil, fmt.Errorf("unknown queue driver %q", cfg.Driver)
}

// OpenRedis returns a connected client, or nil when Redis is disabled.
func OpenRedis(ctx context.Context, cfg config.Redis, log *zap.Logger) (*redis.Client, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}
	log.Info("connected to redis", zap.String("addr", cfg.Addr))
	return client, nil
}

// NewEngine builds the lifecycle engine over store. rdb may be nil.
func NewEngine(cfg config.Engine, store *Store, events queue.Queue, rdb *redis.Client, leaseTTL time.Duration, log *zap.Logger) *service.Engine {
	engine := service.NewEngine(cfg, store.Campaigns, store.Messages, store.Contacts, log)
	engine.Events = events
	if rdb != nil {
		engine.Locker = lock.NewRedisLocker(rdb, leaseTTL)
	}
	return engine
}

// NewService builds the facade with the stub providers configured in cfg.
func NewService(cfg config.Provider, store *Store, launcher service.Launcher, events queue.Queue, log *zap.Logger) *service.CampaignService {
	return &service.CampaignService{
		CampaignRepo: store.Campaigns,
		MessageRepo:  store.Messages,
		ContactRepo:  store.Contacts,
		Launcher:     launcher,
		Sender:       &service.StubSender{Delay: cfg.TestSendDelay, Logger: log},
		Recordings:   &service.StubRecordingStore{BaseURL: cfg.RecordingsBaseURL, Delay: cfg.UploadDelay},
		Events:       events,
		Logger:       log,
	}
}

// LogEvents returns a subscriber that writes lifecycle events to log.
func LogEvents(log *zap.Logger) func(payload any) error {
	return func(payload any) error {
		var ev queue.LifecycleEvent
		if err := queue.Decode(payload, &ev); err != nil {
			log.Warn("dropping malformed lifecycle event", zap.Error(err))
			return nil
		}
		fields := []zap.Field{
			zap.String("event", string(ev.Type)),
			zap.String("campaign_id", ev.CampaignID),
			zap.String("status", string(ev.Status)),
			zap.Int("pending", ev.Progress.Pending),
			zap.Int("sent", ev.Progress.Sent),
			zap.Int("delivered", ev.Progress.Delivered),
			zap.Int("failed", ev.Progress.Failed),
		}
		if ev.Error != "" {
			fields = append(fields, zap.String("error", ev.Error))
			log.Warn("campaign event", fields...)
			return nil
		}
		log.Info("campaign event", fields...)
		return nil
	}
}

// EnqueueLaunches returns a subscriber that forwards launch jobs to jobs.
// Malformed jobs are dropped; the subscriber blocks while jobs is full.
func EnqueueLaunches(ctx context.Context, jobs chan<- string, log *zap.Logger) func(payload any) error {
	return func(payload any) error {
		var job queue.LaunchJob
		if err := queue.Decode(payload, &job); err != nil || job.CampaignID == "" {
			log.Warn("dropping invalid launch job", zap.Error(err))
			return nil
		}
		select {
		case jobs <- job.CampaignID:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
