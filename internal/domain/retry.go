package domain

import (
	"errors"
	"time"
)

// RetryPolicy bounds retries of idempotent writes such as marking a job failed.
type RetryPolicy struct {
	// MaxAttempts counts the first try; values below 1 are treated as 1.
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultRetryPolicy is used for status compensation writes.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  3,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		Multiplier:   2.0,
	}
}

// Attempts returns the effective attempt count.
func (p RetryPolicy) Attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// Delay returns the wait before attempt n (1-based, n >= 2 waits).
func (p RetryPolicy) Delay(n int) time.Duration {
	if n <= 1 {
		return 0
	}
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}
	d := float64(p.InitialDelay)
	for i := 2; i < n; i++ {
		d *= mult
	}
	delay := time.Duration(d)
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay
}

// Retryable reports whether err could succeed on a later attempt.
// Conflicts and missing rows are final: the job already moved on or is gone.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, ErrConflict),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrInvalidArgument),
		errors.Is(err, ErrSchemaInvalid),
		errors.Is(err, ErrForbidden),
		errors.Is(err, ErrUnauthenticated):
		return false
	}
	return true
}
