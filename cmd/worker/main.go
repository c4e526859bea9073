package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/unclebandit/campaign-service/internal/app"
	"github.com/unclebandit/campaign-service/internal/config"
	"github.com/unclebandit/campaign-service/internal/logger"
	"github.com/unclebandit/campaign-service/internal/queue"
	"github.com/unclebandit/campaign-service/internal/service"
)

// jobBuffer is how many launch jobs may wait for the worker loop.
const jobBuffer = 64

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "campaign-worker:", err)
		os.Exit(1)
	}
}

func run() error {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := checkConfig(cfg); err != nil {
		return err
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()
	if envErr != nil {
		log.Debug("no .env file found, relying on OS environment variables")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := app.OpenStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer store.Close(context.Background())

	q, err := app.OpenQueue(cfg.Queue, log)
	if err != nil {
		return err
	}
	defer q.Close()

	rdb, err := app.OpenRedis(ctx, cfg.Redis, log)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
	} else {
		log.Warn("redis disabled, running several workers may process a campaign twice")
	}

	engine := app.NewEngine(cfg.Engine, store, q, rdb, cfg.Redis.LeaseTTL, log.Named("engine"))
	jobs := make(chan string, jobBuffer)
	if err := q.Subscribe(queue.TopicCampaignLaunches, app.EnqueueLaunches(ctx, jobs, log)); err != nil {
		return err
	}
	worker := service.NewWorker(engine, jobs, log.Named("worker"))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("worker running, waiting for launch jobs",
			zap.String("queue", cfg.Queue.Driver),
			zap.String("store", cfg.Store.Driver))
		worker.Start(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return engine.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// checkConfig rejects setups where launch jobs could never reach this process.
func checkConfig(cfg config.Config) error {
	if cfg.Queue.Driver == config.QueueMemory {
		return errors.New("worker needs QUEUE_DRIVER=amqp or kafka")
	}
	if cfg.Store.Driver == config.StoreMemory {
		return errors.New("worker needs a shared STORE_DRIVER, not memory")
	}
	return nil
}
