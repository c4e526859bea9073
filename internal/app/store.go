// Package app wires configuration into the stores, queues and services that
// the server, worker and seeder binaries share.
package app

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	"github.com/unclebandit/campaign-service/internal/config"
	"github.com/unclebandit/campaign-service/internal/db"
	"github.com/unclebandit/campaign-service/internal/db/migrations"
	"github.com/unclebandit/campaign-service/internal/repository"
)

// Store bundles the repositories of one backend.
type Store struct {
	Driver    string
	Campaigns repository.CampaignRepositoryInterface
	Messages  repository.MessageRepositoryInterface
	Contacts  repository.ContactRepositoryInterface

	ping  func(ctx context.Context) error
	close func(ctx context.Context) error
}

// Ping reports whether the backend is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if s.ping == nil {
		return nil
	}
	return s.ping(ctx)
}

func (s *Store) Close(ctx context.Context) error {
	if s.close == nil {
		return nil
	}
	return s.close(ctx)
}

// OpenStore connects the backend named by cfg.Store.Driver. The memory store
// is seeded from cfg.ContactsFile when one is set.
func OpenStore(ctx context.Context, cfg config.Config, log *zap.Logger) (*Store, error) {
	switch cfg.Store.Driver {
	case config.StoreMemory:
		return openMemoryStore(cfg.ContactsFile, log)
	case config.StorePostgres:
		return openPostgresStore(ctx, cfg.Postgres, log)
	case config.StoreMongo:
		return openMongoStore(ctx, cfg.Mongo, log)
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}

func openMemoryStore(contactsFile string, log *zap.Logger) (*Store, error) {
	contacts := repository.NewMemoryContactRepository()
	if contactsFile != "" {
		seed, err := db.LoadContactsFile(contactsFile, time.Now())
		if err != nil {
			return nil, err
		}
		if err := contacts.InsertMany(context.Background(), seed); err != nil {
			return nil, err
		}
		log.Info("loaded contacts", zap.String("file", contactsFile), zap.Int("count", len(seed)))
	}
	return &Store{
		Driver:    config.StoreMemory,
		Campaigns: repository.NewMemoryCampaignRepository(),
		Messages:  repository.NewMemoryMessageRepository(),
		Contacts:  contacts,
	}, nil
}

func openPostgresStore(ctx context.Context, cfg config.Postgres, log *zap.Logger) (*Store, error) {
	if cfg.RunMigrations {
		if err := db.Migrate(cfg.Addr); err != nil {
			return nil, err
		}
		log.Info("postgres migrations applied", zap.Uint("version", migrations.Version))
	}
	conn, err := db.Open(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	return &Store{
		Driver:    config.StorePostgres,
		Campaigns: &repository.CampaignRepository{DB: conn},
		Messages:  &repository.MessageRepository{DB: conn},
		Contacts:  &repository.ContactRepository{DB: conn},
		ping:      conn.PingContext,
		close:     func(context.Context) error { return conn.Close() },
	}, nil
}

func openMongoStore(ctx context.Context, cfg config.Mongo, log *zap.Logger) (*Store, error) {
	client, database, err := db.ConnectMongo(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	if err := repository.EnsureIndexes(ctx, database); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return &Store{
		Driver:    config.StoreMongo,
		Campaigns: repository.NewMongoCampaignRepository(database),
		Messages:  repository.NewMongoMessageRepository(database),
		Contacts:  repository.NewMongoContactRepository(database),
		ping: func(ctx context.Context) error {
			return client.Ping(ctx, readpref.Primary())
		},
		close: client.Disconnect,
	}, nil
}
