package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

// JobEvaluate labels Mains evaluation jobs.
const JobEvaluate = "mains_evaluate"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15, 30},
		},
		[]string{"route", "method"},
	)

	AIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_requests_total",
			Help: "Total number of AI requests by provider, operation and outcome",
		},
		[]string{"provider", "operation", "outcome"},
	)
	AIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ai_request_duration_seconds",
			Help:    "AI request duration in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 80, 120},
		},
		[]string{"provider", "operation"},
	)
	AICircuitState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ai_circuit_state",
			Help: "Per-model AI circuit breaker state (0 closed, 1 open, 2 half-open)",
		},
		[]string{"model"},
	)
	AIPromptTokens = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ai_prompt_tokens",
			Help:    "Estimated prompt tokens per AI request (text only)",
			Buckets: prometheus.ExponentialBuckets(64, 2, 10),
		},
		[]string{"operation"},
	)

	JobsEnqueuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_enqueued_total",
			Help: "Total number of jobs enqueued",
		},
		[]string{"type"},
	)
	JobsProcessing = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "jobs_processing",
			Help: "Number of jobs currently processing",
		},
		[]string{"type"},
	)
	JobsCompletedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_completed_total",
			Help: "Total number of jobs completed",
		},
		[]string{"type"},
	)
	JobsFailedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_failed_total",
			Help: "Total number of jobs failed, by stage",
		},
		[]string{"type", "stage"},
	)

	RateLimitRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_rejections_total",
			Help: "Requests rejected by the fixed-window limiter",
		},
		[]string{"policy"},
	)
	UploadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "uploads_total",
			Help: "Uploaded files by outcome",
		},
		[]string{"outcome"},
	)
	MentorNoteLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mentor_note_lookups_total",
			Help: "Mentor note lookups by kind and cache result",
		},
		[]string{"kind", "result"},
	)

	EvaluationScoreRatio = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "evaluation_score_ratio",
			Help:    "Awarded score divided by marks allocated for completed evaluations",
			Buckets: []float64{0, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		},
	)
)

// InitMetrics registers every collector with the default registry.
func InitMetrics() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		AIRequestsTotal,
		AIRequestDuration,
		AICircuitState,
		AIPromptTokens,
		JobsEnqueuedTotal,
		JobsProcessing,
		JobsCompletedTotal,
		JobsFailedTotal,
		RateLimitRejectionsTotal,
		UploadsTotal,
		MentorNoteLookupsTotal,
		EvaluationScoreRatio,
	)
}

// HTTPMetricsMiddleware records Prometheus metrics for each request.
func HTTPMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		var route string
		if rc := chi.RouteContext(r.Context()); rc != nil {
			route = rc.RoutePattern()
		}
		if route == "" {
			route = "unmatched"
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		HTTPRequestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		HTTPRequestDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

func EnqueueJob(jobType string) {
	JobsEnqueuedTotal.WithLabelValues(jobType).Inc()
}

func StartProcessingJob(jobType string) {
	JobsProcessing.WithLabelValues(jobType).Inc()
}

func CompleteJob(jobType string) {
	JobsProcessing.WithLabelValues(jobType).Dec()
	JobsCompletedTotal.WithLabelValues(jobType).Inc()
}

// FailJob records a failure; stage is where it happened (fetch, model, parse, store, dispatch, stuck).
func FailJob(jobType, stage string) {
	JobsFailedTotal.WithLabelValues(jobType, stage).Inc()
}

// FinishProcessingJob balances StartProcessingJob for failed runs.
func FinishProcessingJob(jobType string) {
	JobsProcessing.WithLabelValues(jobType).Dec()
}

// ObserveAIRequest records one model call.
func ObserveAIRequest(provider, operation string, err error, d time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	AIRequestsTotal.WithLabelValues(provider, operation, outcome).Inc()
	AIRequestDuration.WithLabelValues(provider, operation).Observe(d.Seconds())
}

// ObserveEvaluationScore records score/marks when marks are known.
func ObserveEvaluationScore(score float64, marks *float64) {
	if marks == nil || *marks <= 0 || score < 0 {
		return
	}
	ratio := score / *marks
	if ratio > 1 {
		ratio = 1
	}
	EvaluationScoreRatio.Observe(ratio)
}

// RateLimited counts a rejection under policy.
func RateLimited(policy string) {
	RateLimitRejectionsTotal.WithLabelValues(policy).Inc()
}

// UploadOutcome counts one uploaded file (stored, rejected).
func UploadOutcome(outcome string) {
	UploadsTotal.WithLabelValues(outcome).Inc()
}

// MentorNoteLookup counts a cache lookup; hit reports whether a stored note was found.
func MentorNoteLookup(kind string, hit bool) {
	res := "miss"
	if hit {
		res = "hit"
	}
	MentorNoteLookupsTotal.WithLabelValues(kind, res).Inc()
}
