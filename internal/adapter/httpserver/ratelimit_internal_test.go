package httpserver

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/mainalyze/internal/service/ratelimiter"
)

type brokenLimiter struct{}

func (brokenLimiter) Check(context.Context, string, ratelimiter.Policy) (ratelimiter.Result, error) {
	return ratelimiter.Result{}, errors.New("redis down")
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
}

func TestRateLimit_DeniesAfterBudget(t *testing.T) {
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	pol := ratelimiter.Policy{Name: "evaluate", Limit: 1, Window: 15 * time.Minute}
	h := RateLimit(ratelimiter.NewMemoryLimiter(clock), pol, clock)(okHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "1767262500", rec.Header().Get("X-RateLimit-Reset"))

	now = now.Add(5 * time.Minute)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "600", rec.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"error":"Too many requests, please try again later.","retryAfter":600}`, rec.Body.String())
}

func TestRateLimit_FailsOpen(t *testing.T) {
	h := RateLimit(brokenLimiter{}, ratelimiter.Policy{Name: "default", Limit: 1, Window: time.Minute}, nil)(okHandler())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
}

func TestClientIdentifier(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.1.2.3:5555"
	assert.Equal(t, "ip:10.1.2.3", ClientIdentifier(req))

	req.Header.Set("X-Real-IP", "198.51.100.7")
	assert.Equal(t, "ip:198.51.100.7", ClientIdentifier(req))

	req.Header.Set("X-Forwarded-For", " 203.0.113.9 , 10.0.0.1")
	assert.Equal(t, "ip:203.0.113.9", ClientIdentifier(req))

	req = req.WithContext(context.WithValue(req.Context(), principalKey{}, Principal{UserID: "u-1"}))
	assert.Equal(t, "user:u-1", ClientIdentifier(req))
}
