package app

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	httpserver "github.com/fairyhunter13/mainalyze/internal/adapter/httpserver"
)

// Pinger is anything with a context-aware Ping: the pgx pool, the object
// store and the Kafka producer all qualify.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RedisClient is the part of a Redis client readiness needs.
type RedisClient interface {
	Ping(ctx context.Context) *redis.StatusCmd
}

// Probes lists the dependencies to check. Nil optional members are skipped;
// a nil DB is reported as not ready.
type Probes struct {
	DB       Pinger
	Redis    RedisClient
	Storage  Pinger
	Producer Pinger
}

// BuildReadinessChecks turns the configured dependencies into named checks.
func BuildReadinessChecks(p Probes) []httpserver.Check {
	checks := []httpserver.Check{{
		Name: "db",
		Fn: func(ctx context.Context) error {
			if p.DB == nil {
				return errors.New("db not configured")
			}
			return p.DB.Ping(ctx)
		},
	}}
	if p.Redis != nil {
		checks = append(checks, httpserver.Check{
			Name: "redis",
			Fn:   func(ctx context.Context) error { return p.Redis.Ping(ctx).Err() },
		})
	}
	if p.Storage != nil {
		checks = append(checks, httpserver.Check{Name: "storage", Fn: p.Storage.Ping})
	}
	if p.Producer != nil {
		checks = append(checks, httpserver.Check{Name: "queue", Fn: p.Producer.Ping})
	}
	return checks
}
