package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/fairyhunter13/mainalyze/internal/adapter/ai/tokencount"
	"github.com/fairyhunter13/mainalyze/internal/adapter/observability"
	"github.com/fairyhunter13/mainalyze/internal/domain"
	obsctx "github.com/fairyhunter13/mainalyze/internal/observability"
)

// Models resolves the model aliases used in the prompt catalogue. An empty
// alias, or one that is not listed, means Default.
type Models struct {
	Default string
	Aliases map[string]string
}

// Resolve returns the concrete model id for alias.
func (m Models) Resolve(alias string) string {
	if alias == "" {
		return m.Default
	}
	if id, ok := m.Aliases[alias]; ok && id != "" {
		return id
	}
	return m.Default
}

// Instrumented wraps a provider client with model resolution, an optional
// per-call deadline, metrics and request-scoped logging. Breakers, when set,
// fail calls fast for a model that keeps erroring.
type Instrumented struct {
	Next     domain.AIClient
	Provider string
	Models   Models
	Timeout  time.Duration
	Counter  *tokencount.Counter
	Breakers *Breakers
}

var _ domain.AIClient = (*Instrumented)(nil)

// Generate resolves the model and calls the wrapped client once.
func (c *Instrumented) Generate(ctx context.Context, req domain.GenerateRequest) (string, error) {
	req.Model = c.Models.Resolve(req.Model)
	var breaker *CircuitBreaker
	if c.Breakers != nil {
		breaker = c.Breakers.For(req.Model)
		if !breaker.Allow() {
			observability.AIRequestsTotal.WithLabelValues(c.Provider, req.Operation, "circuit_open").Inc()
			return "", ErrCircuitOpen
		}
	}
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}
	counter := c.Counter
	if counter == nil {
		counter = tokencount.DefaultCounter
	}
	tokens := counter.Estimate(req.Prompt, req.Model)
	observability.AIPromptTokens.WithLabelValues(req.Operation).Observe(float64(tokens))

	lg := obsctx.LoggerFromContext(ctx).With(
		slog.String("provider", c.Provider),
		slog.String("operation", req.Operation),
		slog.String("model", req.Model),
	)
	start := time.Now()
	out, err := c.Next.Generate(ctx, req)
	err = classifyContextError(err)
	if breaker != nil {
		breaker.Record(err)
	}
	observability.ObserveAIRequest(c.Provider, req.Operation, err, time.Since(start))
	if err != nil {
		lg.Warn("ai request failed",
			slog.Duration("duration", time.Since(start)),
			slog.Int("prompt_tokens", tokens),
			slog.Any("error", err))
		return "", err
	}
	lg.Info("ai request completed",
		slog.Duration("duration", time.Since(start)),
		slog.Int("prompt_tokens", tokens),
		slog.Int("attachments", len(req.Attachments)),
		slog.Int("response_chars", len(out)))
	return out, nil
}

// classifyContextError maps context expiry onto the upstream taxonomy.
func classifyContextError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrUpstreamTimeout) || errors.Is(err, domain.ErrUpstream) ||
		errors.Is(err, domain.ErrUpstreamRateLimit) || errors.Is(err, domain.ErrInvalidArgument) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", domain.ErrUpstreamTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrUpstream, err)
}

// StatusError maps a provider HTTP status to the upstream error taxonomy.
func StatusError(provider string, status int, body string) error {
	switch {
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s status %d", domain.ErrUpstreamRateLimit, provider, status)
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return fmt.Errorf("%w: %s status %d", domain.ErrUpstreamTimeout, provider, status)
	default:
		return fmt.Errorf("%w: %s status %d: %s", domain.ErrUpstream, provider, status, body)
	}
}
