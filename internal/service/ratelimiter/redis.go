package ratelimiter

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter shares windows across instances. Key expiry ends a window.
type RedisLimiter struct {
	redis  redis.Scripter
	script *redis.Script
	prefix string
	now    func() time.Time
}

// NewRedisLimiter returns nil when rdb is nil.
func NewRedisLimiter(rdb redis.Scripter) *RedisLimiter {
	if rdb == nil {
		return nil
	}
	return &RedisLimiter{
		redis:  rdb,
		script: redis.NewScript(luaFixedWindowScript),
		prefix: "rl:",
		now:    time.Now,
	}
}

const luaFixedWindowScript = `
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return { count, ttl }
`

// Check implements Limiter. Redis failures allow the request.
func (l *RedisLimiter) Check(ctx context.Context, identifier string, p Policy) (Result, error) {
	if l == nil || l.redis == nil {
		return Result{Allowed: true, Limit: p.Limit, Remaining: p.Limit, ResetAt: time.Now().Add(p.Window)}, nil
	}
	now := l.now()
	open := Result{Allowed: true, Limit: p.Limit, Remaining: p.Limit, ResetAt: now.Add(p.Window)}

	k := l.prefix + key(identifier, p)
	res, err := l.script.Run(ctx, l.redis, []string{k}, p.Window.Milliseconds()).Result()
	if err != nil {
		slog.Error("redis rate limiter script error", slog.String("key", k), slog.Any("error", err))
		return open, err
	}
	vals, ok := res.([]interface{})
	if !ok || len(vals) < 2 {
		slog.Error("redis rate limiter unexpected script result", slog.String("key", k), slog.Any("result", res))
		return open, nil
	}

	count := int(toInt64(vals[0]))
	ttl := time.Duration(toInt64(vals[1])) * time.Millisecond
	return Result{
		Allowed:   count <= p.Limit,
		Limit:     p.Limit,
		Remaining: remaining(p.Limit, count),
		ResetAt:   now.Add(ttl),
	}, nil
}

func toInt64(v interface{}) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	default:
		return 0
	}
}
