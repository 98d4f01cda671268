package redpanda

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/fairyhunter13/mainalyze/internal/domain"
	obsctx "github.com/fairyhunter13/mainalyze/internal/observability"
)

// TaskHandler processes one evaluation task.
type TaskHandler interface {
	HandleEvaluate(ctx context.Context, task domain.EvaluateTask) error
}

// fetchClient is the consumer side of *kgo.Client.
type fetchClient interface {
	PollFetches(ctx context.Context) kgo.Fetches
	CommitRecords(ctx context.Context, rs ...*kgo.Record) error
	Close()
}

const commitTimeout = 10 * time.Second

// Consumer reads evaluation tasks in a consumer group. Offsets are committed
// after the handler returns, whatever the outcome: the handler has already
// moved the job to a terminal state, so a task is never redelivered on
// purpose. Jobs lost to a crash mid-handler are picked up by the stuck-job
// sweeper instead.
type Consumer struct {
	client      fetchClient
	handler     TaskHandler
	concurrency int
	topic       string
	groupID     string
}

// NewConsumer joins groupID on topic.
func NewConsumer(ctx context.Context, brokers []string, groupID, topic string, handler TaskHandler, concurrency int) (*Consumer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("op=redpanda.NewConsumer: no seed brokers provided")
	}
	if groupID == "" {
		return nil, fmt.Errorf("op=redpanda.NewConsumer: missing required group ID")
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ConsumerGroup(groupID),
		kgo.ConsumeTopics(topic),
		kgo.FetchIsolationLevel(kgo.ReadCommitted()),
		kgo.DisableAutoCommit(),
		kgo.BlockRebalanceOnPoll(),
		kgo.SessionTimeout(30*time.Second),
		kgo.HeartbeatInterval(3*time.Second),
		kgo.FetchMaxWait(5*time.Second),
		kgo.FetchMaxPartitionBytes(2*1024*1024),
		kotelHooks(),
	)
	if err != nil {
		return nil, fmt.Errorf("op=redpanda.NewConsumer: %w", err)
	}
	if err := ensureTopic(ctx, client, topic, topicPartitions, topicReplication); err != nil {
		slog.Warn("topic bootstrap failed, assuming it exists", slog.String("topic", topic), slog.Any("error", err))
	}
	c := newConsumer(client, handler, concurrency)
	c.topic, c.groupID = topic, groupID
	return c, nil
}

func newConsumer(client fetchClient, handler TaskHandler, concurrency int) *Consumer {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Consumer{client: client, handler: handler, concurrency: concurrency}
}

// allowRebalancer is implemented by *kgo.Client when BlockRebalanceOnPoll is set.
type allowRebalancer interface {
	AllowRebalance()
}

// Run polls until ctx is cancelled. In-flight tasks finish on a context
// detached from ctx so shutdown drains rather than aborts them.
func (c *Consumer) Run(ctx context.Context) error {
	slog.Info("redpanda consumer started",
		slog.String("topic", c.topic),
		slog.String("group_id", c.groupID),
		slog.Int("concurrency", c.concurrency))
	work := context.WithoutCancel(ctx)
	for {
		fetches := c.client.PollFetches(ctx)
		if ctx.Err() != nil || fetches.IsClientClosed() {
			slog.Info("redpanda consumer stopping")
			return nil
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			if errors.Is(err, context.Canceled) {
				return
			}
			slog.Error("fetch error", slog.String("topic", topic), slog.Int("partition", int(partition)), slog.Any("error", err))
		})

		records := fetches.Records()
		if len(records) > 0 {
			c.processBatch(work, records)
			commitCtx, cancel := context.WithTimeout(work, commitTimeout)
			if err := c.client.CommitRecords(commitCtx, records...); err != nil {
				slog.Error("offset commit failed", slog.Int("records", len(records)), slog.Any("error", err))
			}
			cancel()
		}
		if ar, ok := c.client.(allowRebalancer); ok {
			ar.AllowRebalance()
		}
	}
}

func (c *Consumer) processBatch(ctx context.Context, records []*kgo.Record) {
	sem := make(chan struct{}, c.concurrency)
	var wg sync.WaitGroup
	for _, rec := range records {
		sem <- struct{}{}
		wg.Add(1)
		go func(rec *kgo.Record) {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("evaluation handler panic", slog.Any("panic", r), slog.Int64("offset", rec.Offset))
				}
				<-sem
				wg.Done()
			}()
			c.process(ctx, rec)
		}(rec)
	}
	wg.Wait()
}

func (c *Consumer) process(ctx context.Context, rec *kgo.Record) {
	task, err := decodeTask(rec)
	if err != nil {
		slog.Error("dropping undecodable task",
			slog.Int("partition", int(rec.Partition)),
			slog.Int64("offset", rec.Offset),
			slog.Any("error", err))
		return
	}
	ctx = obsctx.ContextWithRequestID(ctx, task.RequestID)
	if err := c.handler.HandleEvaluate(ctx, task); err != nil {
		slog.Warn("evaluation task finished with error",
			slog.String("evaluation_id", task.EvaluationID),
			slog.Any("error", err))
	}
}

func decodeTask(rec *kgo.Record) (domain.EvaluateTask, error) {
	var task domain.EvaluateTask
	if err := json.Unmarshal(rec.Value, &task); err != nil {
		return task, fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
	}
	for _, h := range rec.Headers {
		switch h.Key {
		case HeaderEvaluationID:
			if task.EvaluationID == "" {
				task.EvaluationID = string(h.Value)
			}
		case HeaderRequestID:
			if task.RequestID == "" {
				task.RequestID = string(h.Value)
			}
		}
	}
	if task.EvaluationID == "" {
		return task, fmt.Errorf("%w: task without evaluation id", domain.ErrInvalidArgument)
	}
	return task, nil
}

// Close leaves the group and closes the client.
func (c *Consumer) Close() {
	c.client.Close()
}
