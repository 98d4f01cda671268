package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	backoff "github.com/cenkalti/backoff/v4"

	"github.com/fairyhunter13/mainalyze/internal/domain"
	obsctx "github.com/fairyhunter13/mainalyze/internal/observability"
	"github.com/fairyhunter13/mainalyze/pkg/textx"
)

// maxReasonLen bounds the diagnostic stored in error_message.
const maxReasonLen = 1000

func policyBackoff(ctx context.Context, p domain.RetryPolicy) backoff.BackOff {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = p.InitialDelay
	if expo.InitialInterval <= 0 {
		expo.InitialInterval = time.Millisecond
	}
	if p.MaxDelay > 0 {
		expo.MaxInterval = p.MaxDelay
	}
	if p.Multiplier >= 1 {
		expo.Multiplier = p.Multiplier
	}
	expo.RandomizationFactor = 0
	expo.MaxElapsedTime = 0
	expo.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(expo, uint64(p.Attempts()-1)), ctx)
}

// MarkFailed moves a pending job to failed, retrying transient write errors
// under p. ErrConflict and ErrNotFound end the attempt immediately.
func MarkFailed(ctx context.Context, jobs domain.EvaluationRepository, id, reason string, p domain.RetryPolicy) error {
	reason = textx.Truncate(reason, maxReasonLen)
	attempt := 0
	op := func() error {
		attempt++
		err := jobs.Fail(ctx, id, reason)
		if err != nil && !domain.Retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		obsctx.LoggerFromContext(ctx).Warn("mark failed retry",
			slog.String("evaluation_id", id),
			slog.Int("attempt", attempt),
			slog.Duration("wait", wait),
			slog.Any("error", err))
	}
	if err := backoff.RetryNotify(op, policyBackoff(ctx, p), notify); err != nil {
		return fmt.Errorf("op=evaluation.mark_failed: %w", err)
	}
	return nil
}
