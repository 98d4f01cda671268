package app_test

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/mainalyze/internal/app"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func checkNames(p app.Probes) map[string]error {
	out := map[string]error{}
	for _, c := range app.BuildReadinessChecks(p) {
		out[c.Name] = c.Fn(context.Background())
	}
	return out
}

func TestBuildReadinessChecks_DBOnly(t *testing.T) {
	got := checkNames(app.Probes{})
	require.Len(t, got, 1)
	assert.EqualError(t, got["db"], "db not configured")
}

func TestBuildReadinessChecks_AllProbes(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	ok := pingFunc(func(context.Context) error { return nil })
	broken := pingFunc(func(context.Context) error { return errors.New("bucket missing") })

	got := checkNames(app.Probes{DB: ok, Redis: rdb, Storage: broken, Producer: ok})
	require.Len(t, got, 4)
	assert.NoError(t, got["db"])
	assert.NoError(t, got["redis"])
	assert.EqualError(t, got["storage"], "bucket missing")
	assert.NoError(t, got["queue"])

	mr.Close()
	got = checkNames(app.Probes{DB: ok, Redis: rdb})
	assert.Error(t, got["redis"])
}
