// Package bus carries normalized feed events from the connector to the
// router over a bounded in-memory queue. Publishing never blocks; when the
// consumer falls behind, new events are rejected rather than queued
// unboundedly.
package bus

import (
	"context"
	"errors"
	"sync"

	"goalbot/internal/schema"
)

var (
	ErrQueueFull   = errors.New("event queue full")
	ErrQueueClosed = errors.New("event queue closed")
)

// Queue is the inbound event queue between the feed connector and the
// event router. Safe for concurrent publishers and a single consumer.
type Queue struct {
	mu     sync.RWMutex
	events chan schema.FeedEvent
	closed bool
}

// NewQueue allocates a queue holding at most capacity pending events.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{events: make(chan schema.FeedEvent, capacity)}
}

// TryPublish enqueues an event without blocking. Returns ErrQueueFull when
// the buffer is at capacity and ErrQueueClosed after Close.
func (q *Queue) TryPublish(e schema.FeedEvent) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.events <- e:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops the queue from accepting new events. Events already buffered
// remain consumable. Idempotent, and safe against in-flight publishers.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.events)
}

// Run delivers events to handler until the context is done or the queue is
// closed and drained.
func (q *Queue) Run(ctx context.Context, handler func(schema.FeedEvent)) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-q.events:
			if !ok {
				return
			}
			handler(e)
		}
	}
}
