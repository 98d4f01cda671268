package httpserver

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fairyhunter13/mainalyze/internal/adapter/observability"
	"github.com/fairyhunter13/mainalyze/internal/service/ratelimiter"
)

// RateLimit counts each request against p for the caller and answers 429
// once the window's budget is spent. It must run after authentication so
// signed-in callers are counted by user rather than address.
func RateLimit(l ratelimiter.Limiter, p ratelimiter.Policy, now func() time.Time) func(http.Handler) http.Handler {
	if now == nil {
		now = time.Now
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, err := l.Check(r.Context(), ClientIdentifier(r), p)
			if err != nil {
				// fail open; a limiter outage must not take the API down
				LoggerFrom(r).Warn("rate limiter unavailable", slog.String("policy", p.Name), slog.Any("error", err))
				next.ServeHTTP(w, r)
				return
			}
			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))
			if !res.Allowed {
				observability.RateLimited(p.Name)
				retry := res.RetryAfter(now())
				h.Set("Retry-After", strconv.Itoa(retry))
				writeJSON(w, http.StatusTooManyRequests, rateLimitBody{
					Error:      "Too many requests, please try again later.",
					RetryAfter: retry,
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIdentifier keys limits by user when authenticated, else by the
// first X-Forwarded-For hop, X-Real-IP, or the remote address.
func ClientIdentifier(r *http.Request) string {
	if p, ok := PrincipalFrom(r.Context()); ok && p.UserID != "" {
		return "user:" + p.UserID
	}
	return "ip:" + clientIP(r)
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
