// Package strategy holds the trading decision engines. Each engine keeps a
// per-match state machine, receives routed feed events through the Evaluator
// interface, and trades only through the ledger's authorize/report protocol.
package strategy

import (
	"context"
	"time"

	"goalbot/internal/exchange"
	"goalbot/internal/journal"
	"goalbot/internal/ledger"
	"goalbot/internal/schema"
)

// Evaluator is the contract between the event router and a strategy engine.
// Calls arrive serialized per router, never concurrently.
type Evaluator interface {
	Name() string
	// OnGoal delivers one deduplicated goal with the match context as of
	// after the goal was applied.
	OnGoal(ctx context.Context, ev schema.GoalEvent, mc schema.MatchContext)
	// OnMatchUpdate delivers a score/phase refresh, including match end.
	OnMatchUpdate(ctx context.Context, mc schema.MatchContext)
}

// Deps are the shared collaborators every engine needs. Orders and price
// lookups route by the venue each market is registered on.
type Deps struct {
	Ledger   *ledger.Ledger
	Venues   *exchange.Router
	Registry *schema.Registry
	Journal  journal.Sink
}

// priceWithTimeout fetches a market price with a hard deadline so a slow
// venue cannot stall a monitor sweep.
func priceWithTimeout(ctx context.Context, venues *exchange.Router, venue schema.VenueID, marketID string, timeout time.Duration) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return venues.Price(ctx, venue, marketID)
}
