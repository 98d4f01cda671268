package redpanda

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/kmsg"

	"github.com/fairyhunter13/mainalyze/internal/domain"
	obsctx "github.com/fairyhunter13/mainalyze/internal/observability"
)

type fakeProducer struct {
	mu      sync.Mutex
	records []*kgo.Record
	err     error
	closed  bool
}

func (f *fakeProducer) ProduceSync(_ context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(kgo.ProduceResults, 0, len(rs))
	for _, r := range rs {
		f.records = append(f.records, r)
		out = append(out, kgo.ProduceResult{Record: r, Err: f.err})
	}
	return out
}

func (f *fakeProducer) Ping(context.Context) error { return f.err }
func (f *fakeProducer) Close()                     { f.closed = true }

func TestProducer_DispatchWritesKeyedRecord(t *testing.T) {
	fp := &fakeProducer{}
	p := newProducer(fp, "mains-evaluate")
	ctx := obsctx.ContextWithRequestID(context.Background(), "req-1")

	err := p.Dispatch(ctx, domain.EvaluateTask{EvaluationID: "e1", UserID: "u1", AnswerFiles: []string{"https://x/a.png"}})
	require.NoError(t, err)

	require.Len(t, fp.records, 1)
	rec := fp.records[0]
	assert.Equal(t, "mains-evaluate", rec.Topic)
	assert.Equal(t, "e1", string(rec.Key))
	var got domain.EvaluateTask
	require.NoError(t, json.Unmarshal(rec.Value, &got))
	assert.Equal(t, "req-1", got.RequestID)
	assert.Equal(t, []string{"https://x/a.png"}, got.AnswerFiles)
	assert.Contains(t, rec.Headers, kgo.RecordHeader{Key: HeaderEvaluationID, Value: []byte("e1")})
}

func TestProducer_DispatchSurfacesBrokerError(t *testing.T) {
	fp := &fakeProducer{err: kerr.NotEnoughReplicas}
	p := newProducer(fp, "t")
	err := p.Dispatch(context.Background(), domain.EvaluateTask{EvaluationID: "e1"})
	assert.ErrorIs(t, err, kerr.NotEnoughReplicas)
	assert.Error(t, p.Ping(context.Background()))
	require.NoError(t, p.Close())
	assert.True(t, fp.closed)
}

type fakeFetcher struct {
	mu         sync.Mutex
	batches    []kgo.Fetches
	commits    [][]*kgo.Record
	closed     bool
	polled     chan struct{}
	drained    sync.Once
	rebalances int
}

func (f *fakeFetcher) PollFetches(ctx context.Context) kgo.Fetches {
	f.mu.Lock()
	if len(f.batches) > 0 {
		b := f.batches[0]
		f.batches = f.batches[1:]
		f.mu.Unlock()
		return b
	}
	f.mu.Unlock()
	f.drained.Do(func() { close(f.polled) })
	<-ctx.Done()
	return kgo.Fetches{}
}

func (f *fakeFetcher) CommitRecords(_ context.Context, rs ...*kgo.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commits = append(f.commits, rs)
	return nil
}

func (f *fakeFetcher) AllowRebalance() { f.mu.Lock(); f.rebalances++; f.mu.Unlock() }
func (f *fakeFetcher) Close()          { f.closed = true }

func fetchesOf(recs ...*kgo.Record) kgo.Fetches {
	return kgo.Fetches{{Topics: []kgo.FetchTopic{{
		Topic:      "t",
		Partitions: []kgo.FetchPartition{{Partition: 0, Records: recs}},
	}}}}
}

func taskRecord(t *testing.T, offset int64, task domain.EvaluateTask) *kgo.Record {
	t.Helper()
	b, err := json.Marshal(task)
	require.NoError(t, err)
	return &kgo.Record{Topic: "t", Offset: offset, Value: b}
}

type recordingHandler struct {
	mu      sync.Mutex
	seen    []domain.EvaluateTask
	running int32
	peak    int32
	delay   time.Duration
	err     error
}

func (h *recordingHandler) HandleEvaluate(ctx context.Context, task domain.EvaluateTask) error {
	n := atomic.AddInt32(&h.running, 1)
	defer atomic.AddInt32(&h.running, -1)
	for {
		p := atomic.LoadInt32(&h.peak)
		if n <= p || atomic.CompareAndSwapInt32(&h.peak, p, n) {
			break
		}
	}
	time.Sleep(h.delay)
	h.mu.Lock()
	h.seen = append(h.seen, task)
	h.mu.Unlock()
	return h.err
}

func runUntilDrained(t *testing.T, c *Consumer, ff *fakeFetcher) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	select {
	case <-ff.polled:
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not drain batches")
	}
	cancel()
	require.NoError(t, <-done)
}

func TestConsumer_HandlesBatchThenCommits(t *testing.T) {
	bad := &kgo.Record{Topic: "t", Offset: 2, Value: []byte("{not json")}
	ff := &fakeFetcher{polled: make(chan struct{}), batches: []kgo.Fetches{fetchesOf(
		taskRecord(t, 0, domain.EvaluateTask{EvaluationID: "e1"}),
		taskRecord(t, 1, domain.EvaluateTask{EvaluationID: "e2"}),
		bad,
	)}}
	h := &recordingHandler{err: errors.New("model down")}
	c := newConsumer(ff, h, 2)

	runUntilDrained(t, c, ff)

	assert.Len(t, h.seen, 2)
	require.Len(t, ff.commits, 1)
	assert.Len(t, ff.commits[0], 3, "failed and undecodable tasks are committed too")
	assert.Equal(t, 1, ff.rebalances)
}

func TestConsumer_BoundsConcurrency(t *testing.T) {
	var recs []*kgo.Record
	for i := 0; i < 6; i++ {
		recs = append(recs, taskRecord(t, int64(i), domain.EvaluateTask{EvaluationID: "e"}))
	}
	ff := &fakeFetcher{polled: make(chan struct{}), batches: []kgo.Fetches{fetchesOf(recs...)}}
	h := &recordingHandler{delay: 20 * time.Millisecond}
	c := newConsumer(ff, h, 2)

	runUntilDrained(t, c, ff)

	assert.Len(t, h.seen, 6)
	assert.LessOrEqual(t, atomic.LoadInt32(&h.peak), int32(2))
}

func TestDecodeTask_FallsBackToHeaders(t *testing.T) {
	rec := &kgo.Record{
		Value: []byte(`{"answer_files":["a"]}`),
		Headers: []kgo.RecordHeader{
			{Key: HeaderEvaluationID, Value: []byte("e9")},
			{Key: HeaderRequestID, Value: []byte("r9")},
		},
	}
	task, err := decodeTask(rec)
	require.NoError(t, err)
	assert.Equal(t, "e9", task.EvaluationID)
	assert.Equal(t, "r9", task.RequestID)

	_, err = decodeTask(&kgo.Record{Value: []byte(`{}`)})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

type fakeRequester struct {
	resp kmsg.Response
	err  error
	req  *kmsg.CreateTopicsRequest
}

func (f *fakeRequester) Request(_ context.Context, req kmsg.Request) (kmsg.Response, error) {
	f.req, _ = req.(*kmsg.CreateTopicsRequest)
	return f.resp, f.err
}

func TestEnsureTopic(t *testing.T) {
	exists := &fakeRequester{resp: &kmsg.CreateTopicsResponse{Topics: []kmsg.CreateTopicsResponseTopic{{Topic: "t", ErrorCode: kerr.TopicAlreadyExists.Code}}}}
	require.NoError(t, ensureTopic(context.Background(), exists, "t", 8, 1))
	require.NotNil(t, exists.req)
	assert.Equal(t, int32(8), exists.req.Topics[0].NumPartitions)

	created := &fakeRequester{resp: &kmsg.CreateTopicsResponse{Topics: []kmsg.CreateTopicsResponseTopic{{Topic: "t"}}}}
	require.NoError(t, ensureTopic(context.Background(), created, "t", 1, 1))

	denied := &fakeRequester{resp: &kmsg.CreateTopicsResponse{Topics: []kmsg.CreateTopicsResponseTopic{{Topic: "t", ErrorCode: kerr.TopicAuthorizationFailed.Code}}}}
	assert.ErrorIs(t, ensureTopic(context.Background(), denied, "t", 1, 1), kerr.TopicAuthorizationFailed)

	assert.Error(t, ensureTopic(context.Background(), created, "", 1, 1))
	assert.Error(t, ensureTopic(context.Background(), &fakeRequester{err: errors.New("dial")}, "t", 1, 1))
}
