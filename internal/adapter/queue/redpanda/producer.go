// Package redpanda dispatches evaluation tasks through a Kafka-compatible
// broker and consumes them in the worker.
package redpanda

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/plugin/kotel"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/mainalyze/internal/adapter/observability"
	"github.com/fairyhunter13/mainalyze/internal/domain"
	obsctx "github.com/fairyhunter13/mainalyze/internal/observability"
)

// Header keys carried on every task record.
const (
	HeaderEvaluationID = "evaluation_id"
	HeaderRequestID    = "request_id"
)

const (
	topicPartitions  = 8
	topicReplication = 1
)

// syncProducer is the part of *kgo.Client the producer needs.
type syncProducer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	Ping(ctx context.Context) error
	Close()
}

// Producer implements domain.Dispatcher. Dispatch returns only after the
// broker acknowledged the record on all in-sync replicas.
type Producer struct {
	client syncProducer
	topic  string
}

var _ domain.Dispatcher = (*Producer)(nil)

func kotelHooks() kgo.Opt {
	tracer := kotel.NewTracer(kotel.TracerProvider(otel.GetTracerProvider()))
	return kgo.WithHooks(kotel.NewKotel(kotel.WithTracer(tracer)).Hooks()...)
}

// NewProducer connects to brokers and makes sure topic exists.
func NewProducer(ctx context.Context, brokers []string, topic string) (*Producer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("op=redpanda.NewProducer: no seed brokers provided")
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.RequestRetries(10),
		kgo.ProducerBatchMaxBytes(1_000_000),
		kgo.ProduceRequestTimeout(10*time.Second),
		kotelHooks(),
	)
	if err != nil {
		return nil, fmt.Errorf("op=redpanda.NewProducer: %w", err)
	}
	if err := ensureTopic(ctx, client, topic, topicPartitions, topicReplication); err != nil {
		slog.Warn("topic bootstrap failed, assuming it exists", slog.String("topic", topic), slog.Any("error", err))
	}
	slog.Info("redpanda producer ready", slog.Any("brokers", brokers), slog.String("topic", topic))
	return &Producer{client: client, topic: topic}, nil
}

func newProducer(client syncProducer, topic string) *Producer {
	return &Producer{client: client, topic: topic}
}

// Dispatch publishes task keyed by evaluation id.
func (p *Producer) Dispatch(ctx context.Context, task domain.EvaluateTask) error {
	if task.RequestID == "" {
		task.RequestID = obsctx.RequestIDFromContext(ctx)
	}
	b, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("op=redpanda.dispatch: marshal: %w", err)
	}
	rec := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(task.EvaluationID),
		Value: b,
		Headers: []kgo.RecordHeader{
			{Key: HeaderEvaluationID, Value: []byte(task.EvaluationID)},
			{Key: HeaderRequestID, Value: []byte(task.RequestID)},
		},
	}
	if err := p.client.ProduceSync(ctx, rec).FirstErr(); err != nil {
		obsctx.LoggerFromContext(ctx).Error("evaluation dispatch failed",
			slog.String("evaluation_id", task.EvaluationID),
			slog.String("topic", p.topic),
			slog.Any("error", err))
		return fmt.Errorf("op=redpanda.dispatch: %w", err)
	}
	observability.EnqueueJob(observability.JobEvaluate)
	obsctx.LoggerFromContext(ctx).Info("evaluation dispatched",
		slog.String("evaluation_id", task.EvaluationID),
		slog.String("topic", p.topic),
		slog.Int64("offset", rec.Offset))
	return nil
}

// Ping checks broker connectivity for readiness probes.
func (p *Producer) Ping(ctx context.Context) error {
	return p.client.Ping(ctx)
}

// Close releases the client.
func (p *Producer) Close() error {
	p.client.Close()
	return nil
}
