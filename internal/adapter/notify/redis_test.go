package notify

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/mainalyze/internal/domain"
)

func newNotifier(t *testing.T) (*RedisNotifier, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisNotifier(rdb), mr
}

func TestRedisNotifier_DeliversToSubscriber(t *testing.T) {
	n, _ := newNotifier(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	events, stop, err := n.Subscribe(ctx, "e1")
	require.NoError(t, err)
	defer stop()

	require.NoError(t, n.Publish(ctx, domain.StatusEvent{EvaluationID: "other", Status: domain.EvaluationFailed}))
	require.NoError(t, n.Publish(ctx, domain.StatusEvent{EvaluationID: "e1", Status: domain.EvaluationCompleted}))

	select {
	case ev := <-events:
		assert.Equal(t, "e1", ev.EvaluationID)
		assert.Equal(t, domain.EvaluationCompleted, ev.Status)
	case <-ctx.Done():
		t.Fatal("no event received")
	}
}

func TestRedisNotifier_CancelClosesChannel(t *testing.T) {
	n, _ := newNotifier(t)
	events, stop, err := n.Subscribe(context.Background(), "e1")
	require.NoError(t, err)
	stop()

	select {
	case _, ok := <-events:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after cancel")
	}
}

func TestRedisNotifier_ErrorsWhenRedisDown(t *testing.T) {
	n, mr := newNotifier(t)
	mr.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	assert.Error(t, n.Publish(ctx, domain.StatusEvent{EvaluationID: "e1"}))
	_, _, err := n.Subscribe(ctx, "e1")
	assert.Error(t, err)
}

func TestChannel(t *testing.T) {
	assert.Equal(t, "evaluation:abc", Channel("abc"))
}
