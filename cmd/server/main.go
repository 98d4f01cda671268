// Command server starts the Mainalyze HTTP API.
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

	httpserver "github.com/fairyhunter13/mainalyze/internal/adapter/httpserver"
	"github.com/fairyhunter13/mainalyze/internal/adapter/observability"
	"github.com/fairyhunter13/mainalyze/internal/adapter/queue/inproc"
	"github.com/fairyhunter13/mainalyze/internal/adapter/queue/redpanda"
	"github.com/fairyhunter13/mainalyze/internal/adapter/repo/postgres"
	"github.com/fairyhunter13/mainalyze/internal/adapter/storage"
	"github.com/fairyhunter13/mainalyze/internal/app"
	"github.com/fairyhunter13/mainalyze/internal/config"
	"github.com/fairyhunter13/mainalyze/internal/domain"
	"github.com/fairyhunter13/mainalyze/internal/prompts"
	"github.com/fairyhunter13/mainalyze/internal/usecase"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)

	// Register all Prometheus metrics once per process so /metrics exposes
	// HTTP, AI and job instrumentation.
	observability.InitMetrics()

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

	pool, err := postgres.NewPool(ctx, cfg.DBURL)
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}
	defer pool.Close()
	if applied, err := postgres.Migrate(ctx, pool); err != nil {
		return fmt.Errorf("migrate: %w", err)
	} else if len(applied) > 0 {
		slog.Info("migrations applied", slog.Any("versions", applied))
	}

	jobRepo := postgres.NewEvaluationRepo(pool)
	sessionRepo := postgres.NewSessionRepo(pool)
	noteRepo := postgres.NewMentorNoteRepo(pool)
	profileRepo := postgres.NewProfileRepo(pool)
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

	aicl, err := app.NewAIClient(cfg, cfg.AIRequestTimeout)
	if err != nil {
		return err
	}
	cat, err := prompts.Load()
	if err != nil {
		return err
	}

	probes := app.Probes{DB: pool, Storage: store}
	if rdb != nil {
		probes.Redis = rdb
	}

	// Dispatch: with redpanda the worker binary consumes; inproc runs the
	// same pipeline inside this process.
	var (
		dispatcher domain.Dispatcher
		runner     *inproc.Runner
	)
	if cfg.UseRedpanda() {
		producer, err := redpanda.NewProducer(ctx, cfg.KafkaBrokers, cfg.EvaluateTopic)
		if err != nil {
			return fmt.Errorf("redpanda producer: %w", err)
		}
		defer func() {
			if err := producer.Close(); err != nil {
				slog.Error("failed to close queue producer", slog.Any("error", err))
			}
		}()
		dispatcher = producer
		probes.Producer = producer
	} else {
		workerAI, err := app.NewAIClient(cfg, cfg.WorkerAITimeout)
		if err != nil {
			return err
		}
		handler := app.NewEvaluationHandler(cfg, jobRepo, app.NewFetcher(cfg, store), workerAI, notifier, cat)
		runner = inproc.New(handler, cfg.WorkerConcurrency, cfg.InprocQueueSize)
		dispatcher = runner

		sweeper := usecase.StuckSweeper{Jobs: jobRepo, Notifier: notifier, Age: cfg.StuckEvaluationAge, FailPolicy: cfg.FailWritePolicy()}
		go sweeper.RunPeriodic(ctx, cfg.SweepInterval)
		cleanup := postgres.NewCleanupService(auditRepo, cfg.AuditRetentionDays)
		go cleanup.RunPeriodic(ctx, cfg.CleanupInterval)
		slog.Info("in-process worker mode", slog.Int("workers", cfg.WorkerConcurrency))
	}

	limiter, mem := app.NewLimiter(cfg, rdb)
	if mem != nil {
		go mem.RunSweeper(ctx, cfg.RateLimitSweepInterval)
	}

	svcs := httpserver.Services{
		Mains:     usecase.NewMainsService(jobRepo, dispatcher, notifier, cfg.FailWritePolicy()),
		Prelims:   usecase.NewPrelimsService(sessionRepo, noteRepo, aicl, cat),
		Mentor:    usecase.NewMentorService(jobRepo, noteRepo, aicl, cat),
		Uploads:   usecase.NewUploadService(store, cfg.MaxUploadBytes(), cfg.MaxUploadFiles),
		Profiles:  usecase.NewProfileService(profileRepo),
		Dashboard: usecase.NewDashboardService(jobRepo, sessionRepo),
		Admin:     usecase.NewAdminService(profileRepo, auditRepo),
	}
	srv := httpserver.NewServer(cfg, svcs, app.BuildReadinessChecks(probes)...)
	handler := app.BuildRouter(cfg, srv, httpserver.NewAuthenticator(cfg.JWTSecret), limiter)

	srvHTTP := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server starting", slog.Int("port", cfg.Port), slog.String("queue", cfg.QueueDriver))
		errCh <- srvHTTP.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
	defer cancel()
	if err := srvHTTP.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown", slog.Any("error", err))
	}
	if runner != nil {
		if err := runner.Close(shutdownCtx); err != nil {
			slog.Warn("in-process queue did not drain", slog.Any("error", err))
		}
	}
	return nil
}
