package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fairyhunter13/mainalyze/internal/adapter/ai"
	"github.com/fairyhunter13/mainalyze/internal/adapter/ai/gemini"
	"github.com/fairyhunter13/mainalyze/internal/adapter/ai/openaicompat"
	"github.com/fairyhunter13/mainalyze/internal/adapter/ai/tokencount"
	"github.com/fairyhunter13/mainalyze/internal/adapter/notify"
	"github.com/fairyhunter13/mainalyze/internal/adapter/queue/shared"
	"github.com/fairyhunter13/mainalyze/internal/adapter/storage"
	"github.com/fairyhunter13/mainalyze/internal/config"
	"github.com/fairyhunter13/mainalyze/internal/domain"
	"github.com/fairyhunter13/mainalyze/internal/prompts"
	"github.com/fairyhunter13/mainalyze/internal/service/ratelimiter"
)

// NewAIClient builds the configured provider behind the instrumented
// wrapper. timeout bounds every call made through it.
func NewAIClient(cfg config.Config, timeout time.Duration) (*ai.Instrumented, error) {
	var next domain.AIClient
	provider := strings.ToLower(cfg.AIProvider)
	switch provider {
	case "gemini":
		if cfg.GeminiAPIKey == "" && !cfg.IsTest() {
			return nil, fmt.Errorf("op=app.NewAIClient: GEMINI_API_KEY is required for the gemini provider")
		}
		next = gemini.New(cfg.GeminiAPIKey, cfg.GeminiBaseURL)
	case "openai":
		next = openaicompat.New(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey)
	default:
		return nil, fmt.Errorf("op=app.NewAIClient: unknown provider %q", cfg.AIProvider)
	}
	var breakers *ai.Breakers
	if cfg.AIBreakerThreshold > 0 {
		breakers = &ai.Breakers{Threshold: cfg.AIBreakerThreshold, Cooldown: cfg.AIBreakerCooldown}
	}
	return &ai.Instrumented{
		Breakers: breakers,
		Next:     next,
		Provider: provider,
		Models: ai.Models{
			Default: cfg.AIModel,
			Aliases: map[string]string{"explain": cfg.AIModelExplain},
		},
		Timeout: timeout,
		Counter: tokencount.DefaultCounter,
	}, nil
}

// OpenRedis connects to REDIS_URL. It returns nil without error when no URL
// is configured.
func OpenRedis(ctx context.Context, cfg config.Config) (*redis.Client, error) {
	if cfg.RedisURL == "" {
		return nil, nil
	}
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("op=app.OpenRedis: %w", err)
	}
	rdb := redis.NewClient(opt)
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("op=app.OpenRedis: %w", err)
	}
	return rdb, nil
}

// NewNotifier returns the Redis status notifier, or nil when Redis is off;
// watchers then fall back to polling.
func NewNotifier(rdb *redis.Client) domain.StatusNotifier {
	if rdb == nil {
		return nil
	}
	return notify.NewRedisNotifier(rdb)
}

// NewLimiter picks the rate limiter backend. The memory limiter is returned
// separately so the caller can run its sweeper.
func NewLimiter(cfg config.Config, rdb *redis.Client) (ratelimiter.Limiter, *ratelimiter.MemoryLimiter) {
	if strings.ToLower(cfg.RateLimitBackend) == "redis" && rdb != nil {
		slog.Info("rate limiter backend", slog.String("backend", "redis"))
		return ratelimiter.NewRedisLimiter(rdb), nil
	}
	slog.Info("rate limiter backend", slog.String("backend", "memory"))
	mem := ratelimiter.NewMemoryLimiter(time.Now)
	return mem, mem
}

// NewFetcher builds the answer-file fetcher over the object store. Only
// FETCH_ALLOWED_HOSTS are reachable over plain HTTP.
func NewFetcher(cfg config.Config, objects storage.ObjectReader) *storage.Fetcher {
	maxElapsed, initial, maxInterval := cfg.FetchBackoff()
	return storage.NewFetcher(objects, storage.BackoffSettings{
		MaxElapsed:      maxElapsed,
		InitialInterval: initial,
		MaxInterval:     maxInterval,
	}, cfg.FetchAllowedHosts...)
}

// NewEvaluationHandler assembles the evaluation pipeline shared by the
// in-process runner and the Kafka consumer.
func NewEvaluationHandler(cfg config.Config, jobs domain.EvaluationRepository, files domain.FileFetcher, aicl domain.AIClient, n domain.StatusNotifier, cat *prompts.Catalogue) *shared.Handler {
	return &shared.Handler{
		Jobs:         jobs,
		Files:        files,
		AI:           aicl,
		Prompts:      cat,
		Notifier:     n,
		MaxFileBytes: cfg.MaxUploadBytes(),
		FailPolicy:   cfg.FailWritePolicy(),
	}
}
