// Package queue is a Redis list backed job queue with delayed retries and a
// dead-letter list.
package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Enqueuer publishes jobs without consuming them.
type Enqueuer interface {
	Enqueue(ctx context.Context, msgType string, payload any) error
}

// Keyed payloads are coalesced by the Redis queue: while a message with the
// same key waits to be picked up, further enqueues of that key are dropped.
type Keyed interface {
	QueueKey() string
}

// QueueConfig contains the configuration for the queue.
type QueueConfig struct {
	Workers    int           // number of workers
	RetryLimit int           // retries before dead-lettering
	RetryDelay time.Duration // delay before a failed message is retried
	PendingTTL time.Duration // upper bound on how long a key stays coalesced
}

// Message is the envelope stored in Redis.
type Message struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Key       string          `json:"key,omitempty"`
	Payload   json.RawMessage `json:"payload"`
	Attempts  int             `json:"attempts"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewMessage wraps payload in a fresh envelope.
func NewMessage(msgType string, payload any, now time.Time) (Message, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("marshal payload: %w", err)
	}
	msg := Message{
		ID:        uuid.NewString(),
		Type:      msgType,
		Payload:   raw,
		Timestamp: now.UTC(),
	}
	if k, ok := payload.(Keyed); ok {
		msg.Key = k.QueueKey()
	}
	return msg, nil
}

// ParsePayload decodes a job payload into T.
func ParsePayload[T any](payload []byte) (*T, error) {
	var result T
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	return &result, nil
}
