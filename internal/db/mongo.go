package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	"github.com/unclebandit/campaign-service/internal/config"
)

// ConnectMongo opens a pooled client and pings the primary, retrying with
// exponential backoff (1s, 2s, 4s ... capped at 16s) up to cfg.MaxRetries times.
func ConnectMongo(ctx context.Context, cfg config.Mongo, log *zap.Logger) (*mongo.Client, *mongo.Database, error) {
	if cfg.URI == "" {
		return nil, nil, fmt.Errorf("MongoDB URI cannot be empty")
	}
	if cfg.Database == "" {
		return nil, nil, fmt.Errorf("MongoDB database name cannot be empty")
	}
	if cfg.MinPoolSize > cfg.MaxPoolSize {
		return nil, nil, fmt.Errorf("MinPoolSize (%d) cannot be greater than MaxPoolSize (%d)", cfg.MinPoolSize, cfg.MaxPoolSize)
	}

	opts := options.Client().
		ApplyURI(cfg.URI).
		SetMaxPoolSize(cfg.MaxPoolSize).
		SetMinPoolSize(cfg.MinPoolSize).
		SetMaxConnIdleTime(60 * time.Second).
		SetServerSelectionTimeout(10 * time.Second).
		SetConnectTimeout(10 * time.Second).
		SetRetryWrites(true).
		SetRetryReads(true)

	var (
		client *mongo.Client
		err    error
	)
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt-1)) * time.Second
			if backoff > 16*time.Second {
				backoff = 16 * time.Second
			}
			log.Warn("mongodb connection failed, retrying",
				zap.Int("attempt", attempt), zap.Duration("backoff", backoff), zap.Error(err))
			select {
			case <-ctx.Done():
				return nil, nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		client, err = mongo.Connect(attemptCtx, opts)
		if err != nil {
			cancel()
			continue
		}
		err = client.Ping(attemptCtx, readpref.Primary())
		cancel()
		if err == nil {
			break
		}
		_ = client.Disconnect(context.Background())
		client = nil
	}
	if client == nil {
		return nil, nil, fmt.Errorf("failed to connect to MongoDB after %d attempts: %w", cfg.MaxRetries, err)
	}

	log.Info("connected to mongodb", zap.String("database", cfg.Database))
	return client, client.Database(cfg.Database), nil
}
