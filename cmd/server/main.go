package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/unclebandit/campaign-service/internal/app"
	"github.com/unclebandit/campaign-service/internal/config"
	"github.com/unclebandit/campaign-service/internal/controller"
	"github.com/unclebandit/campaign-service/internal/handler"
	"github.com/unclebandit/campaign-service/internal/logger"
	"github.com/unclebandit/campaign-service/internal/queue"
	"github.com/unclebandit/campaign-service/internal/service"
)

const version = "1.0.0"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "campaign-service:", err)
		os.Exit(1)
	}
}

func run() error {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
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

	events, err := app.OpenQueue(cfg.Queue, log)
	if err != nil {
		return err
	}
	defer events.Close()
	if err := events.Subscribe(queue.TopicCampaignEvents, app.LogEvents(log.Named("events"))); err != nil {
		return err
	}

	rdb, err := app.OpenRedis(ctx, cfg.Redis, log)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
	}

	var (
		launcher service.Launcher
		engine   *service.Engine
	)
	switch cfg.Engine.Mode {
	case config.EngineQueue:
		launcher = &service.QueuedLauncher{Queue: events}
	default:
		engine = app.NewEngine(cfg.Engine, store, events, rdb, cfg.Redis.LeaseTTL, log.Named("engine"))
		launcher = engine
	}
	svc := app.NewService(cfg.Provider, store, launcher, events, log)

	if _, err := svc.Resume(ctx); err != nil {
		log.Warn("could not resume active campaigns", zap.Error(err))
	}

	health := &handler.HealthHandler{
		Service: "campaign-service",
		Version: version,
		Pingers: map[string]handler.Pinger{"store": store.Ping},
	}
	if rdb != nil {
		health.Pingers["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      controller.NewRouter(svc, health, log.Named("http")),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server running",
			zap.String("addr", srv.Addr),
			zap.String("store", cfg.Store.Driver),
			zap.String("queue", cfg.Queue.Driver),
			zap.String("engine", cfg.Engine.Mode))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if cfg.Scheduler.Enabled {
		sched := &service.Scheduler{Service: svc, Interval: cfg.Scheduler.Interval, Logger: log.Named("scheduler")}
		g.Go(func() error { return sched.Run(gctx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()

		err := srv.Shutdown(shutdownCtx)
		if engine != nil {
			err = errors.Join(err, engine.Shutdown(shutdownCtx))
		}
		return err
	})

	return g.Wait()
}
