// Package app assembles the HTTP router and the readiness probes from the
// adapters built in cmd.
package app

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpserver "github.com/fairyhunter13/mainalyze/internal/adapter/httpserver"
	"github.com/fairyhunter13/mainalyze/internal/adapter/observability"
	"github.com/fairyhunter13/mainalyze/internal/config"
	"github.com/fairyhunter13/mainalyze/internal/service/ratelimiter"
)

// ParseOrigins splits a comma-separated origin list, trimming spaces.
// An empty list means every origin.
func ParseOrigins(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" || s == "*" {
		return []string{"*"}
	}
	out := make([]string, 0, 4)
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}

// handlerTimeout leaves the server's write timeout a few seconds to flush
// the timeout response itself.
func handlerTimeout(cfg config.Config) time.Duration {
	d := cfg.HTTPWriteTimeout - 5*time.Second
	if d < 10*time.Second {
		d = 10 * time.Second
	}
	return d
}

// BuildRouter constructs the HTTP handler with all middlewares and routes.
func BuildRouter(cfg config.Config, srv *httpserver.Server, auth *httpserver.Authenticator, limiter ratelimiter.Limiter) http.Handler {
	r := chi.NewRouter()
	r.Use(httpserver.Recoverer())
	r.Use(httpserver.TraceMiddleware)
	r.Use(httpserver.RequestID())
	r.Use(httpserver.AccessLog())
	r.Use(observability.HTTPMetricsMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   ParseOrigins(cfg.CORSAllowOrigins),
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "If-None-Match", httpserver.HeaderRequestID},
		ExposedHeaders:   []string{httpserver.HeaderRequestID, "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After", "ETag"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", srv.HealthzHandler())
	r.Get("/readyz", srv.ReadyzHandler())
	r.Handle("/metrics", promhttp.Handler())

	pol := cfg.Policies()
	limit := func(p ratelimiter.Policy) func(http.Handler) http.Handler {
		return httpserver.RateLimit(limiter, p, time.Now)
	}

	r.Route("/api", func(api chi.Router) {
		if cfg.BurstLimitPerMin > 0 {
			api.Use(httprate.LimitByIP(cfg.BurstLimitPerMin, time.Minute))
		}
		api.Use(auth.Middleware)

		// The event stream outlives any handler timeout.
		api.With(limit(pol.Default)).Get("/evaluations/{id}/events", srv.EvaluationEventsHandler())

		api.Group(func(g chi.Router) {
			g.Use(httpserver.TimeoutMiddleware(handlerTimeout(cfg)))

			g.With(limit(pol.Evaluate)).Post("/evaluate-answer", srv.EvaluateAnswerHandler())
			g.With(limit(pol.Generate)).Post("/generate-questions", srv.GenerateQuestionsHandler())
			g.With(limit(pol.Explain)).Post("/explain-wrong-answer", srv.ExplainWrongAnswerHandler())
			g.With(limit(pol.Explain)).Post("/mentor-guidance", srv.MentorGuidanceHandler())
			g.With(limit(pol.Upload)).Post("/upload", srv.UploadHandler())

			g.Group(func(d chi.Router) {
				d.Use(limit(pol.Default))

				d.Get("/evaluations", srv.ListEvaluationsHandler())
				d.Get("/evaluations/{id}", srv.GetEvaluationHandler())
				d.Delete("/evaluations/{id}", srv.DeleteEvaluationHandler())

				d.Get("/prelims/sessions", srv.ListSessionsHandler())
				d.Get("/prelims/sessions/{id}", srv.GetSessionHandler())
				d.Post("/prelims/sessions/{id}/answers", srv.SubmitAnswersHandler())
				d.Delete("/prelims/sessions/{id}", srv.DeleteSessionHandler())

				d.Get("/profile", srv.GetProfileHandler())
				d.Patch("/profile", srv.UpdateProfileHandler())
				d.Get("/dashboard", srv.DashboardHandler())

				d.Get("/admin/users", srv.AdminListUsersHandler())
				d.Get("/admin/users/{userId}", srv.AdminGetUserHandler())
				d.Patch("/admin/users/{userId}", srv.AdminUpdateUserHandler())
			})
		})
	})

	return httpserver.SecurityHeaders(r)
}
