package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fairyhunter13/mainalyze/internal/adapter/observability"
	"github.com/fairyhunter13/mainalyze/internal/domain"
)

// CircuitState is the state of one model's breaker.
type CircuitState int

const (
	// CircuitClosed lets calls through.
	CircuitClosed CircuitState = iota
	// CircuitOpen rejects calls until the cooldown has passed.
	CircuitOpen
	// CircuitHalfOpen lets a single probe call through.
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned without calling the provider while a model's
// breaker is open. It wraps domain.ErrUpstream so handlers answer 502.
var ErrCircuitOpen = fmt.Errorf("%w: model circuit open", domain.ErrUpstream)

// CircuitBreaker opens after Threshold consecutive upstream failures and
// admits one probe once Cooldown has elapsed.
type CircuitBreaker struct {
	model     string
	threshold int
	cooldown  time.Duration
	now       func() time.Time

	mu       sync.Mutex
	state    CircuitState
	failures int
	openedAt time.Time
	probing  bool
}

// NewCircuitBreaker creates a closed breaker for model.
func NewCircuitBreaker(model string, threshold int, cooldown time.Duration, now func() time.Time) *CircuitBreaker {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	if now == nil {
		now = time.Now
	}
	return &CircuitBreaker{model: model, threshold: threshold, cooldown: cooldown, now: now}
}

// Allow reports whether a call may proceed. An open breaker past its
// cooldown moves to half-open and admits exactly one caller.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	switch cb.state {
	case CircuitOpen:
		if cb.now().Sub(cb.openedAt) < cb.cooldown {
			return false
		}
		cb.setState(CircuitHalfOpen)
		cb.probing = true
		return true
	case CircuitHalfOpen:
		if cb.probing {
			return false
		}
		cb.probing = true
		return true
	default:
		return true
	}
}

// Record feeds the outcome of an admitted call back into the breaker.
// Only provider faults count; caller errors and cancellations are neutral.
func (cb *CircuitBreaker) Record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	wasProbe := cb.probing
	cb.probing = false
	switch {
	case err == nil:
		cb.failures = 0
		if cb.state != CircuitClosed {
			slog.Info("ai circuit closed", slog.String("model", cb.model))
			cb.setState(CircuitClosed)
		}
	case countsAsFailure(err):
		cb.failures++
		if cb.state == CircuitHalfOpen || cb.failures >= cb.threshold {
			if cb.state != CircuitOpen {
				slog.Warn("ai circuit opened",
					slog.String("model", cb.model),
					slog.Int("consecutive_failures", cb.failures),
					slog.Bool("probe", wasProbe))
			}
			cb.openedAt = cb.now()
			cb.setState(CircuitOpen)
		}
	default:
		// a neutral outcome during a probe leaves the breaker half-open
		// so the next caller can probe again
	}
}

// State returns the current state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) setState(s CircuitState) {
	cb.state = s
	observability.AICircuitState.WithLabelValues(cb.model).Set(float64(s))
}

func countsAsFailure(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, domain.ErrInvalidArgument) {
		return false
	}
	return errors.Is(err, domain.ErrUpstream) || errors.Is(err, domain.ErrUpstreamTimeout) ||
		errors.Is(err, domain.ErrUpstreamRateLimit)
}

// Breakers hands out one breaker per resolved model id.
type Breakers struct {
	Threshold int
	Cooldown  time.Duration
	Now       func() time.Time

	mu sync.Mutex
	m  map[string]*CircuitBreaker
}

// For returns the breaker for model, creating it on first use.
func (b *Breakers) For(model string) *CircuitBreaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	if cb, ok := b.m[model]; ok {
		return cb
	}
	if b.m == nil {
		b.m = make(map[string]*CircuitBreaker)
	}
	cb := NewCircuitBreaker(model, b.Threshold, b.Cooldown, b.Now)
	b.m[model] = cb
	return cb
}
