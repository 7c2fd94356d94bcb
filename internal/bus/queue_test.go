package bus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goalbot/internal/schema"
)

func TestQueuePublishAndConsume(t *testing.T) {
	q := NewQueue(4)

	ev := schema.FeedEvent{Kind: schema.FeedEventGoal, Goal: schema.GoalEvent{Match: 1}}
	require.NoError(t, q.TryPublish(ev))

	got := make(chan schema.FeedEvent, 1)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	go q.Run(ctx, func(e schema.FeedEvent) { got <- e })

	select {
	case e := <-got:
		assert.Equal(t, schema.MatchID(1), e.Goal.Match)
	case <-ctx.Done():
		t.Fatal("timeout waiting for event")
	}
}

func TestQueueFull(t *testing.T) {
	q := NewQueue(1)
	require.NoError(t, q.TryPublish(schema.FeedEvent{Kind: schema.FeedEventGoal}))
	assert.ErrorIs(t, q.TryPublish(schema.FeedEvent{Kind: schema.FeedEventGoal}), ErrQueueFull)
}

func TestQueueClosed(t *testing.T) {
	q := NewQueue(1)
	q.Close()
	assert.ErrorIs(t, q.TryPublish(schema.FeedEvent{Kind: schema.FeedEventGoal}), ErrQueueClosed)
	q.Close() // idempotent
}

func TestQueueCloseDuringConcurrentPublish(t *testing.T) {
	q := NewQueue(8)

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			for j := 0; j < 1000; j++ {
				err := q.TryPublish(schema.FeedEvent{Kind: schema.FeedEventGoal})
				if err == ErrQueueClosed {
					return
				}
			}
		}()
	}

	close(start)
	q.Close()
	wg.Wait()

	// every publisher must have observed the close without panicking on a
	// closed channel
	assert.ErrorIs(t, q.TryPublish(schema.FeedEvent{Kind: schema.FeedEventGoal}), ErrQueueClosed)
}
