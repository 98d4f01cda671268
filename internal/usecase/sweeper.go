package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fairyhunter13/mainalyze/internal/adapter/observability"
	"github.com/fairyhunter13/mainalyze/internal/domain"
)

// DefaultSweepBatch bounds how many stuck jobs one pass handles.
const DefaultSweepBatch = 100

// StuckSweeper fails evaluations left pending for longer than Age, such as
// those whose worker died mid-task or whose dispatch compensation failed.
type StuckSweeper struct {
	Jobs       domain.EvaluationRepository
	Notifier   domain.StatusNotifier
	Age        time.Duration
	Batch      int
	FailPolicy domain.RetryPolicy
	Now        func() time.Time
}

// SweepOnce runs a single pass and returns how many jobs it failed.
func (s StuckSweeper) SweepOnce(ctx context.Context) (int, error) {
	ctx, span := otel.Tracer("usecase.sweeper").Start(ctx, "StuckSweeper.SweepOnce")
	defer span.End()

	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	batch := s.Batch
	if batch <= 0 {
		batch = DefaultSweepBatch
	}
	cutoff := now().Add(-s.Age)
	stale, err := s.Jobs.ListStalePending(ctx, cutoff, batch)
	if err != nil {
		return 0, fmt.Errorf("op=sweeper.sweep: %w", err)
	}
	reason := domain.FailureReason(domain.FailureStuck)
	failed := 0
	for _, j := range stale {
		if err := MarkFailed(ctx, s.Jobs, j.ID, reason, s.FailPolicy); err != nil {
			slog.Warn("stuck evaluation not failed", slog.String("evaluation_id", j.ID), slog.Any("error", err))
			continue
		}
		failed++
		observability.FailJob(observability.JobEvaluate, "stuck")
		if s.Notifier != nil {
			ev := domain.StatusEvent{EvaluationID: j.ID, Status: domain.EvaluationFailed, UpdatedAt: now().UTC()}
			if err := s.Notifier.Publish(ctx, ev); err != nil {
				slog.Warn("status publish failed", slog.String("evaluation_id", j.ID), slog.Any("error", err))
			}
		}
	}
	span.SetAttributes(attribute.Int("sweeper.found", len(stale)), attribute.Int("sweeper.failed", failed))
	if failed > 0 {
		slog.Info("stuck evaluations failed", slog.Int("count", failed), slog.Time("cutoff", cutoff))
	}
	return failed, nil
}

// RunPeriodic sweeps every interval until ctx is cancelled.
func (s StuckSweeper) RunPeriodic(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx); err != nil {
				slog.Error("stuck evaluation sweep failed", slog.Any("error", err))
			}
		}
	}
}
