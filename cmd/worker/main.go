// Package main provides the worker entry point. The worker consumes
// evaluation tasks from Redpanda, sweeps stuck evaluations and prunes the
// audit log.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fairyhunter13/mainalyze/internal/adapter/observability"
	"github.com/fairyhunter13/mainalyze/internal/adapter/queue/redpanda"
	"github.com/fairyhunter13/mainalyze/internal/adapter/repo/postgres"
	"github.com/fairyhunter13/mainalyze/internal/adapter/storage"
	"github.com/fairyhunter13/mainalyze/internal/app"
	"github.com/fairyhunter13/mainalyze/internal/config"
	"github.com/fairyhunter13/mainalyze/internal/prompts"
	"github.com/fairyhunter13/mainalyze/internal/usecase"
)

func main() {
	if err := run(); err != nil {
		slog.Error("worker exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.SetDefault(observability.SetupLogger(cfg))

	// Metrics live on their own port so Prometheus can scrape job metrics.
	observability.InitMetrics()
	metricsSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.MetricsPort),
		Handler:           promhttp.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("worker metrics server error", slog.Any("error", err))
		}
	}()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	slog.Info("starting worker", slog.String("env", cfg.AppEnv))

	pool, err := postgres.NewPool(ctx, cfg.DBURL)
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}
	defer pool.Close()
	jobRepo := postgres.NewEvaluationRepo(pool)
	auditRepo := postgres.NewAuditRepo(pool)

	rdb, err := app.OpenRedis(ctx, cfg)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
	}
	notifier := app.NewNotifier(rdb)

	store, err := storage.NewGCSStore(ctx, cfg.GCSBucket, cfg.StoragePublicBaseURL, cfg.StorageEmulatorHost)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	aicl, err := app.NewAIClient(cfg, cfg.WorkerAITimeout)
	if err != nil {
		return err
	}
	cat, err := prompts.Load()
	if err != nil {
		return err
	}
	handler := app.NewEvaluationHandler(cfg, jobRepo, app.NewFetcher(cfg, store), aicl, notifier, cat)

	sweeper := usecase.StuckSweeper{Jobs: jobRepo, Notifier: notifier, Age: cfg.StuckEvaluationAge, FailPolicy: cfg.FailWritePolicy()}
	go sweeper.RunPeriodic(ctx, cfg.SweepInterval)
	go postgres.NewCleanupService(auditRepo, cfg.AuditRetentionDays).RunPeriodic(ctx, cfg.CleanupInterval)

	if !cfg.UseRedpanda() {
		// the API runs evaluations itself; keep sweeping until stopped
		slog.Info("QUEUE_DRIVER is not redpanda, running maintenance only")
		<-ctx.Done()
		return shutdownMetrics(metricsSrv)
	}

	consumer, err := redpanda.NewConsumer(ctx, cfg.KafkaBrokers, cfg.ConsumerGroup, cfg.EvaluateTopic, handler, cfg.WorkerConcurrency)
	if err != nil {
		return fmt.Errorf("redpanda consumer: %w", err)
	}
	defer consumer.Close()

	if err := consumer.Run(ctx); err != nil {
		return fmt.Errorf("consumer: %w", err)
	}
	slog.Info("worker stopped")
	return shutdownMetrics(metricsSrv)
}

func shutdownMetrics(srv *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
