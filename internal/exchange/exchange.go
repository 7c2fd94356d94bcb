// Package exchange abstracts prediction-market venues behind one execution
// interface and routes each order to the client registered for its venue.
package exchange

import (
	"context"

	"github.com/yanun0323/errors"

	"goalbot/internal/schema"
)

// Client is a single venue's execution client.
type Client interface {
	// PlaceOrder submits a limit order and blocks until a terminal result.
	PlaceOrder(ctx context.Context, intent schema.OrderIntent) (schema.OrderResult, error)
	// MarketPrice returns the current price of the given market.
	MarketPrice(ctx context.Context, marketID string) (float64, error)
}

// Router dispatches orders to venue clients.
type Router struct {
	clients map[schema.VenueID]Client
}

// NewRouter creates an empty venue router.
func NewRouter() *Router {
	return &Router{clients: make(map[schema.VenueID]Client)}
}

// Register binds a client to a venue, replacing any previous binding.
func (r *Router) Register(venue schema.VenueID, client Client) {
	r.clients[venue] = client
}

// Place routes the intent to its venue's client.
func (r *Router) Place(ctx context.Context, intent schema.OrderIntent) (schema.OrderResult, error) {
	client, ok := r.clients[intent.Venue]
	if !ok {
		return schema.OrderResult{}, errors.Wrap(ErrUnknownVenue, "place order").With("venue", intent.Venue)
	}
	return client.PlaceOrder(ctx, intent)
}

// Price routes a price lookup to the given venue's client.
func (r *Router) Price(ctx context.Context, venue schema.VenueID, marketID string) (float64, error) {
	client, ok := r.clients[venue]
	if !ok {
		return 0, errors.Wrap(ErrUnknownVenue, "market price").With("venue", venue)
	}
	return client.MarketPrice(ctx, marketID)
}
