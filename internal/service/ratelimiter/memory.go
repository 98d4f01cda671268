package ratelimiter

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type window struct {
	count   int
	resetAt time.Time
}

// MemoryLimiter keeps windows in process memory. Counts are not shared
// between instances.
type MemoryLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

// NewMemoryLimiter builds a limiter; a nil clock means time.Now.
func NewMemoryLimiter(now func() time.Time) *MemoryLimiter {
	if now == nil {
		now = time.Now
	}
	return &MemoryLimiter{windows: map[string]*window{}, now: now}
}

// Check implements Limiter.
func (l *MemoryLimiter) Check(_ context.Context, identifier string, p Policy) (Result, error) {
	now := l.now()
	k := key(identifier, p)

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[k]
	if !ok || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(p.Window)}
		l.windows[k] = w
	}
	w.count++
	return Result{
		Allowed:   w.count <= p.Limit,
		Limit:     p.Limit,
		Remaining: remaining(p.Limit, w.count),
		ResetAt:   w.resetAt,
	}, nil
}

// Sweep drops windows whose reset time has passed and returns how many.
func (l *MemoryLimiter) Sweep() int {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for k, w := range l.windows {
		if !now.Before(w.resetAt) {
			delete(l.windows, k)
			n++
		}
	}
	return n
}

// Len reports the number of tracked windows.
func (l *MemoryLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

// RunSweeper purges elapsed windows every interval until ctx is done.
func (l *MemoryLimiter) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := l.Sweep(); n > 0 {
				slog.Debug("rate limit windows swept", slog.Int("removed", n))
			}
		}
	}
}
