package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketPulse/pkg/logger"
)

type retrainPayload struct {
	ProductID string `json:"product_id"`
	Days      int    `json:"days"`
}

// keyedPayload coalesces like a product retrain request.
type keyedPayload struct {
	ProductID string `json:"product_id"`
}

func (k keyedPayload) QueueKey() string { return k.ProductID }

type recordingJob struct {
	mu  sync.Mutex
	got []retrainPayload
	err error
}

func (j *recordingJob) calls() []retrainPayload {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]retrainPayload(nil), j.got...)
}

func (j *recordingJob) Name() string { return "retrain" }
func (j *recordingJob) Type() string { return "retrain" }

func (j *recordingJob) Handle(_ context.Context, payload []byte) error {
	p, err := ParsePayload[retrainPayload](payload)
	if err != nil {
		return err
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.got = append(j.got, *p)
	return j.err
}

func TestMessageEnvelopeRoundTrip(t *testing.T) {
	msg, err := NewMessage("retrain", retrainPayload{ProductID: "sku-1", Days: 7}, time.Now())
	require.NoError(t, err)
	assert.Len(t, msg.ID, 36)

	b, err := json.Marshal(msg)
	require.NoError(t, err)
	var back Message
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, msg.ID, back.ID)

	p, err := ParsePayload[retrainPayload](back.Payload)
	require.NoError(t, err)
	assert.Equal(t, "sku-1", p.ProductID)
	assert.Equal(t, 7, p.Days)

	other, _ := NewMessage("retrain", nil, time.Now())
	assert.NotEqual(t, msg.ID, other.ID)
}

func TestParsePayloadRejectsGarbage(t *testing.T) {
	_, err := ParsePayload[retrainPayload]([]byte("{"))
	assert.Error(t, err)
}

func newTestQueue(t *testing.T, cfg *QueueConfig) (*RedisQueue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisQueue(logger.Nop(), cfg, client, WithKeyPrefix("test:queue")), mr
}

func TestProcessMessageDispatchesToJob(t *testing.T) {
	q, _ := newTestQueue(t, &QueueConfig{Workers: 1})
	job := &recordingJob{}
	q.RegisterJob(job)
	q.RegisterJob(job)

	msg, err := NewMessage("retrain", retrainPayload{ProductID: "sku-2", Days: 14}, time.Now())
	require.NoError(t, err)
	q.processMessage(msg)

	require.Len(t, job.calls(), 1)
	assert.Equal(t, "sku-2", job.calls()[0].ProductID)

	q.processMessage(Message{ID: "x", Type: "unknown"})
	assert.Len(t, job.calls(), 1)
}

func TestEnqueueRequiresRunningQueue(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer client.Close()
	q := NewRedisQueue(logger.Nop(), nil, client)
	q.RegisterJob(&recordingJob{})
	err := q.Enqueue(context.Background(), "retrain", retrainPayload{})
	assert.ErrorContains(t, err, "not running")
	assert.Error(t, q.Health(context.Background()))
}

func TestEnqueueCoalescesPendingKeys(t *testing.T) {
	ctx := context.Background()
	q, mr := newTestQueue(t, nil)
	job := &recordingJob{}
	q.RegisterJob(job)
	q.running = true

	require.NoError(t, q.Enqueue(ctx, "retrain", keyedPayload{ProductID: "sku-1"}))
	require.NoError(t, q.Enqueue(ctx, "retrain", keyedPayload{ProductID: "sku-1"}))
	require.NoError(t, q.Enqueue(ctx, "retrain", keyedPayload{ProductID: "sku-2"}))
	assert.ErrorContains(t, q.Enqueue(ctx, "unknown", nil), "no job registered")

	waiting, err := mr.List("test:queue:messages")
	require.NoError(t, err)
	assert.Len(t, waiting, 2)
	assert.True(t, mr.Exists("test:queue:pending:sku-1"))

	q.processNextMessage()
	require.Len(t, job.calls(), 1)
	assert.Equal(t, "sku-1", job.calls()[0].ProductID)
	assert.False(t, mr.Exists("test:queue:pending:sku-1"))

	require.NoError(t, q.Enqueue(ctx, "retrain", keyedPayload{ProductID: "sku-1"}))
	waiting, err = mr.List("test:queue:messages")
	require.NoError(t, err)
	assert.Len(t, waiting, 2)
}

func TestFailedMessagesRetryThenDeadLetter(t *testing.T) {
	q, mr := newTestQueue(t, &QueueConfig{RetryLimit: 1, RetryDelay: time.Minute})
	job := &recordingJob{err: errors.New("clickhouse down")}
	q.RegisterJob(job)

	msg, err := NewMessage("retrain", keyedPayload{ProductID: "sku-3"}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "sku-3", msg.Key)

	q.processMessage(msg)
	retries, err := mr.ZMembers("test:queue:retry")
	require.NoError(t, err)
	require.Len(t, retries, 1)

	var retried Message
	require.NoError(t, json.Unmarshal([]byte(retries[0]), &retried))
	assert.Equal(t, 1, retried.Attempts)

	q.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	q.moveDueRetries()
	waiting, err := mr.List("test:queue:messages")
	require.NoError(t, err)
	assert.Len(t, waiting, 1)
	assert.False(t, mr.Exists("test:queue:retry"))

	q.processMessage(retried)
	dead, err := mr.List("test:queue:dlq")
	require.NoError(t, err)
	assert.Len(t, dead, 1)
}

func TestStartProcessesUntilStopped(t *testing.T) {
	q, _ := newTestQueue(t, &QueueConfig{Workers: 2})
	job := &recordingJob{}
	q.RegisterJob(job)

	require.NoError(t, q.Start())
	assert.Error(t, q.Start())
	require.NoError(t, q.Enqueue(context.Background(), "retrain", keyedPayload{ProductID: "sku-4"}))
	assert.Eventually(t, func() bool { return len(job.calls()) == 1 }, 3*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, q.Stop(ctx))
	require.NoError(t, q.Stop(ctx))
}

func TestQueueKeys(t *testing.T) {
	q := NewRedisQueue(logger.Nop(), nil, nil, WithKeyPrefix("mp:q"))
	assert.Equal(t, "mp:q:messages", q.queueKey())
	assert.Equal(t, "mp:q:retry", q.retryKey())
	assert.Equal(t, "mp:q:dlq", q.deadLetterKey())
	assert.Equal(t, "mp:q:pending:sku-1", q.pendingKey("sku-1"))
}

func TestInlineRunsRegisteredJob(t *testing.T) {
	job := &recordingJob{}
	q := NewInline(job)

	require.NoError(t, q.Enqueue(context.Background(), "retrain", retrainPayload{ProductID: "sku-2", Days: 14}))
	require.Len(t, job.calls(), 1)
	assert.Equal(t, "sku-2", job.calls()[0].ProductID)

	job.err = errors.New("boom")
	assert.ErrorContains(t, q.Enqueue(context.Background(), "retrain", retrainPayload{}), "job retrain: boom")
	assert.Error(t, q.Enqueue(context.Background(), "unknown", nil))
}
