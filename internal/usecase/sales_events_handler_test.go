package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketPulse/internal/domain/models"
	"MarketPulse/internal/service/ratelimit"
	"MarketPulse/pkg/kafka"
	"MarketPulse/pkg/queue"
)

type recordingEnqueuer struct {
	jobs    []models.RetrainJob
	batches []models.RetrainBatch
}

func (r *recordingEnqueuer) Enqueue(_ context.Context, msgType string, payload any) error {
	switch msgType {
	case RetrainJobType:
		r.jobs = append(r.jobs, payload.(models.RetrainJob))
	case RetrainBatchJobType:
		r.batches = append(r.batches, payload.(models.RetrainBatch))
	default:
		return errors.New("unexpected type " + msgType)
	}
	return nil
}

type failingSales struct{}

func (failingSales) Append(context.Context, string, []models.SalesRecord) error {
	return errors.New("clickhouse unavailable")
}

func (failingSales) History(context.Context, string, time.Time) ([]models.SalesRecord, error) {
	return nil, nil
}

func (failingSales) Health(context.Context) error { return nil }

func TestSalesEventsHandlerStoresAndEnqueues(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, t.TempDir())
	jobs := &recordingEnqueuer{}
	h := NewSalesEventsHandler("sales.events", f.sales, jobs, nil, f.svc, nil, nil)
	assert.Equal(t, "sales.events", h.Topic())

	require.NoError(t, h.Handle(ctx, []byte(`{"product_id":"sku-1","date":"15/01/2024","quantity":12}`)))
	require.NoError(t, h.Handle(ctx, []byte(` [
		{"product_id":"sku-2","date":"2024-01-15","quantity":3},
		{"product_id":"sku-2","date":"2024-01-16","quantity":4},
		{"product_id":"sku-1","date":"20240116","quantity":7}
	]`)))

	got, err := f.sales.History(ctx, "sku-1", jan1)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, jan1.AddDate(0, 0, 14), got[0].Date)
	assert.Equal(t, 12.0, got[0].Quantity)

	got, err = f.sales.History(ctx, "sku-2", jan1)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	require.Len(t, jobs.jobs, 1)
	assert.Equal(t, "sku-1", jobs.jobs[0].ProductID)
	assert.Equal(t, 365, jobs.jobs[0].HistoryDays)
	assert.Equal(t, 7, jobs.jobs[0].HorizonDays)

	require.Len(t, jobs.batches, 1)
	batch := jobs.batches[0].Jobs
	require.Len(t, batch, 2)
	assert.Equal(t, "sku-2", batch[0].ProductID)
	assert.Equal(t, "sku-1", batch[1].ProductID)
	assert.Equal(t, "sales_event", batch[1].Reason)
}

func TestSalesEventsHandlerThrottlesRetrain(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, t.TempDir())
	jobs := &recordingEnqueuer{}
	h := NewSalesEventsHandler("sales.events", f.sales, jobs, ratelimit.New(time.Hour, 1), f.svc, nil, nil)

	for i := 0; i < 3; i++ {
		require.NoError(t, h.Handle(ctx, []byte(`{"product_id":"sku-1","date":"2024-01-15","quantity":1}`)))
	}
	assert.Len(t, jobs.jobs, 1)
}

func TestSalesEventsHandlerRejectsBadPayloads(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, t.TempDir())
	jobs := &recordingEnqueuer{}
	h := NewSalesEventsHandler("sales.events", f.sales, jobs, nil, f.svc, nil, nil)

	for _, payload := range []string{
		`not json`,
		`{"date":"2024-01-15","quantity":1}`,
		`{"product_id":"sku-1","date":"yesterday","quantity":1}`,
		`{"product_id":"sku-1","date":"2024-01-15","quantity":-2}`,
	} {
		err := h.Handle(ctx, []byte(payload))
		require.Error(t, err, payload)
		assert.True(t, kafka.IsPermanent(err), payload)
	}
	assert.Empty(t, jobs.jobs)
}

func TestSalesEventsHandlerStoreFailureIsRetryable(t *testing.T) {
	f := newFixture(t, t.TempDir())
	h := NewSalesEventsHandler("sales.events", failingSales{}, &recordingEnqueuer{}, nil, f.svc, nil, nil)

	err := h.Handle(context.Background(), []byte(`{"product_id":"sku-1","date":"2024-01-15","quantity":1}`))
	require.Error(t, err)
	assert.False(t, kafka.IsPermanent(err))
}

func TestRetrainJobThroughInlineQueue(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, t.TempDir())
	require.NoError(t, f.sales.Append(ctx, "sku-1", salesHistory(90)))

	job := NewRetrainJob(f.svc, nil)
	q := queue.NewInline(job)
	require.NoError(t, q.Enqueue(ctx, RetrainJobType, f.svc.NewJob("sku-1", "test")))
	require.Len(t, f.pub.events, 1)

	// data problems are not retried
	require.NoError(t, q.Enqueue(ctx, RetrainJobType, f.svc.NewJob("empty", "test")))
	require.NoError(t, job.Handle(ctx, []byte(`{broken`)))

	raw, err := json.Marshal(models.RetrainJob{ProductID: "sku-1", HorizonDays: 99})
	require.NoError(t, err)
	assert.NoError(t, job.Handle(ctx, raw))

	// infrastructure problems are
	f.pub.err = errors.New("broker down")
	assert.Error(t, q.Enqueue(ctx, RetrainJobType, f.svc.NewJob("sku-1", "test")))
}

func TestRetrainBatchJobThroughInlineQueue(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, t.TempDir())
	require.NoError(t, f.sales.Append(ctx, "sku-1", salesHistory(90)))
	require.NoError(t, f.sales.Append(ctx, "sku-2", salesHistory(90)))

	job := NewRetrainBatchJob(f.svc, nil)
	q := queue.NewInline(NewRetrainJob(f.svc, nil), job)
	h := NewSalesEventsHandler("sales.events", f.sales, q, nil, f.svc, nil, nil)

	require.NoError(t, h.Handle(ctx, []byte(`[
		{"product_id":"sku-1","date":"2024-03-31","quantity":40},
		{"product_id":"sku-2","date":"2024-03-31","quantity":41}
	]`)))
	assert.Equal(t, 1, f.pub.batches)
	assert.Len(t, f.pub.events, 2)

	// a product without data does not fail the batch
	require.NoError(t, q.Enqueue(ctx, RetrainBatchJobType, f.svc.NewBatch([]string{"sku-1", "empty"}, "test")))
	assert.Len(t, f.pub.events, 3)
	require.NoError(t, job.Handle(ctx, []byte(`{broken`)))
	assert.NoError(t, job.Handle(ctx, []byte(`{"jobs":[]}`)))

	f.pub.err = errors.New("broker down")
	assert.Error(t, q.Enqueue(ctx, RetrainBatchJobType, f.svc.NewBatch([]string{"sku-1", "sku-2"}, "test")))
}
