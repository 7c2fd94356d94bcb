// Package feed maintains the live goal-event connection: a push websocket
// stream with exponential-backoff reconnects, degrading to pull-based polling
// after repeated failures, with one canonical emission point so downstream
// consumers never see which transport produced an event.
package feed

import (
	"context"

	"goalbot/internal/schema"
)

// PushSource establishes push subscriptions to the sports-data collaborator.
type PushSource interface {
	Connect(ctx context.Context) (PushSession, error)
}

// PushSession is one live push subscription. Next blocks until a normalized
// event arrives or the stream fails; a failed session must be Closed and a
// new one obtained from the source.
type PushSession interface {
	Next(ctx context.Context) (schema.FeedEvent, error)
	Close() error
}

// PollSource is the pull-based fallback query against the same collaborator.
// Poll returns the events observed since the previous call.
type PollSource interface {
	Poll(ctx context.Context) ([]schema.FeedEvent, error)
}
