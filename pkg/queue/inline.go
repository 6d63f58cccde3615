package queue

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Inline runs jobs synchronously in the caller's goroutine. It stands in for
// the Redis queue when no Redis is configured; there are no retries.
type Inline struct {
	mu   sync.RWMutex
	jobs map[string]Job
	now  func() time.Time
}

func NewInline(jobs ...Job) *Inline {
	q := &Inline{jobs: make(map[string]Job), now: time.Now}
	for _, j := range jobs {
		q.RegisterJob(j)
	}
	return q
}

func (q *Inline) RegisterJob(job Job) {
	q.mu.Lock()
	q.jobs[job.Type()] = job
	q.mu.Unlock()
}

// Enqueue encodes payload like the Redis queue does and hands it to the job.
func (q *Inline) Enqueue(ctx context.Context, msgType string, payload any) error {
	q.mu.RLock()
	job, ok := q.jobs[msgType]
	q.mu.RUnlock()
	if !ok {
		return fmt.Errorf("no job registered for type %q", msgType)
	}
	msg, err := NewMessage(msgType, payload, q.now())
	if err != nil {
		return err
	}
	if err := job.Handle(ctx, msg.Payload); err != nil {
		return fmt.Errorf("job %s: %w", job.Name(), err)
	}
	return nil
}
