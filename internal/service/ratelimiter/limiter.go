// Package ratelimiter implements fixed-window request limiting with an
// in-memory backend for single instances and a Redis backend for fleets.
package ratelimiter

import (
	"context"
	"time"
)

// Policy is a named request budget per fixed window.
type Policy struct {
	Name   string
	Limit  int
	Window time.Duration
}

// Policies groups the per-route budgets.
type Policies struct {
	Generate Policy
	Evaluate Policy
	Explain  Policy
	Upload   Policy
	Default  Policy
}

// DefaultPolicies are the budgets used when nothing is configured.
func DefaultPolicies() Policies {
	w := 15 * time.Minute
	return Policies{
		Generate: Policy{Name: "generate", Limit: 20, Window: w},
		Evaluate: Policy{Name: "evaluate", Limit: 10, Window: w},
		Explain:  Policy{Name: "explain", Limit: 50, Window: w},
		Upload:   Policy{Name: "upload", Limit: 30, Window: w},
		Default:  Policy{Name: "default", Limit: 100, Window: w},
	}
}

// Result describes the outcome of one counted request.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter is the whole seconds until the window resets, at least 1 when denied.
func (r Result) RetryAfter(now time.Time) int {
	secs := int((r.ResetAt.Sub(now) + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

// Limiter counts a request against identifier under policy p.
type Limiter interface {
	Check(ctx context.Context, identifier string, p Policy) (Result, error)
}

func key(identifier string, p Policy) string {
	return p.Name + ":" + identifier
}

func remaining(limit, count int) int {
	if r := limit - count; r > 0 {
		return r
	}
	return 0
}
