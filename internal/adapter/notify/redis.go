// Package notify fans evaluation status changes out to stream readers.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/fairyhunter13/mainalyze/internal/domain"
)

const channelPrefix = "evaluation:"

// Channel returns the pub/sub channel for one evaluation.
func Channel(evaluationID string) string { return channelPrefix + evaluationID }

// RedisNotifier publishes status events on a per-evaluation Redis channel so
// the API instance holding an SSE stream hears the worker's transition.
type RedisNotifier struct {
	rdb redis.UniversalClient
}

var _ domain.StatusNotifier = (*RedisNotifier)(nil)

// NewRedisNotifier wraps rdb.
func NewRedisNotifier(rdb redis.UniversalClient) *RedisNotifier {
	return &RedisNotifier{rdb: rdb}
}

// Publish sends ev. Nobody listening is not an error.
func (n *RedisNotifier) Publish(ctx context.Context, ev domain.StatusEvent) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("op=notify.publish: %w", err)
	}
	if err := n.rdb.Publish(ctx, Channel(ev.EvaluationID), b).Err(); err != nil {
		return fmt.Errorf("op=notify.publish: %w", err)
	}
	return nil
}

// Subscribe listens for events on evaluationID. The returned channel closes
// when ctx ends or cancel is called.
func (n *RedisNotifier) Subscribe(ctx context.Context, evaluationID string) (<-chan domain.StatusEvent, func(), error) {
	sub := n.rdb.Subscribe(ctx, Channel(evaluationID))
	// wait for the subscription to be confirmed so no event slips by
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("op=notify.subscribe: %w", err)
	}

	ctx, stop := context.WithCancel(ctx)
	out := make(chan domain.StatusEvent, 1)
	msgs := sub.Channel()
	go func() {
		defer close(out)
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-msgs:
				if !ok {
					return
				}
				var ev domain.StatusEvent
				if err := json.Unmarshal([]byte(m.Payload), &ev); err != nil {
					slog.Warn("bad status event payload", slog.String("channel", m.Channel), slog.Any("error", err))
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, stop, nil
}
