package server

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct{ calls []string }

type fakeWorker struct {
	name     string
	rec      *recorder
	startErr error
}

func (w fakeWorker) Start() error {
	w.rec.calls = append(w.rec.calls, "start "+w.name)
	return w.startErr
}

func (w fakeWorker) Stop(context.Context) error {
	w.rec.calls = append(w.rec.calls, "stop "+w.name)
	return nil
}

type fakeCloser struct {
	name string
	rec  *recorder
	err  error
}

func (c fakeCloser) Close() error {
	c.rec.calls = append(c.rec.calls, "close "+c.name)
	return c.err
}

func TestRunContextStopsInReverseOrder(t *testing.T) {
	rec := &recorder{}
	app := New(nil, nil,
		WithWorker(fakeWorker{name: "queue", rec: rec}),
		WithCloser("store", fakeCloser{name: "store", rec: rec}),
		WithCloser("redis", fakeCloser{name: "redis", rec: rec}),
	)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, app.RunContext(ctx))
	assert.Equal(t, []string{"start queue", "stop queue", "close redis", "close store"}, rec.calls)
}

func TestRunContextReportsStartFailure(t *testing.T) {
	rec := &recorder{}
	app := New(nil, nil,
		WithWorker(fakeWorker{name: "queue", rec: rec, startErr: errors.New("redis ping: refused")}),
		WithCloser("store", fakeCloser{name: "store", rec: rec, err: errors.New("already closed")}),
	)

	err := app.RunContext(context.Background())
	assert.ErrorContains(t, err, "redis ping")
	assert.Equal(t, []string{"start queue", "stop queue", "close store"}, rec.calls)
}
