package strategy

import (
	"context"
	"sync"
	"time"

	"github.com/yanun0323/logs"

	"goalbot/internal/journal"
	"goalbot/internal/schema"
)

// ConfidenceEstimator scores how likely the current leader is to hold the
// result, on [0,1]. The compression engine trades only when the market price
// lags this estimate.
type ConfidenceEstimator interface {
	Estimate(ctx context.Context, mc schema.MatchContext) (float64, error)
}

// CompressionConfig tunes the late-window price-lag strategy.
type CompressionConfig struct {
	// WindowStartMin is the match clock minute at which the engine starts
	// looking for entries.
	WindowStartMin uint8
	// MinConfidence is the estimator floor below which no entry is taken.
	MinConfidence float64
	// LagMargin is the minimum gap between estimated confidence and the
	// market price.
	LagMargin    float64
	ClipUSD      float64
	PriceTimeout time.Duration
}

func (c CompressionConfig) withDefaults() CompressionConfig {
	if c.WindowStartMin == 0 {
		c.WindowStartMin = 85
	}
	if c.PriceTimeout == 0 {
		c.PriceTimeout = 3 * time.Second
	}
	return c
}

type compressionState uint8

const (
	compressionWatching compressionState = iota + 1
	compressionExecuted
	compressionExpired
)

type compressionSlot struct {
	state      compressionState
	positionID string
	marketID   string
	team       schema.TeamID
	lastPrice  float64
}

// Compression buys the leading team's win market in the final minutes when
// the market price still lags the estimated hold probability. At most one
// clip per match; an unentered match expires at full time.
type Compression struct {
	deps Deps
	cfg  CompressionConfig
	est  ConfidenceEstimator

	mu    sync.Mutex
	slots map[schema.MatchID]*compressionSlot
}

// NewCompression creates the late-window engine.
func NewCompression(deps Deps, cfg CompressionConfig, est ConfidenceEstimator) *Compression {
	return &Compression{
		deps:  deps,
		cfg:   cfg.withDefaults(),
		est:   est,
		slots: make(map[schema.MatchID]*compressionSlot),
	}
}

func (c *Compression) Name() string { return schema.StrategyCompression.String() }

// OnGoal stops out an executed clip when the opponent cuts the lead.
func (c *Compression) OnGoal(ctx context.Context, ev schema.GoalEvent, mc schema.MatchContext) {
	c.mu.Lock()
	defer c.mu.Unlock()

	slot, ok := c.slots[mc.Match]
	if !ok || slot.state != compressionExecuted {
		return
	}
	if ev.ScoringTeam == slot.team {
		return
	}
	c.closeLocked(ctx, mc.Match, slot, slot.lastPrice, schema.CloseStopLoss)
	slot.state = compressionExpired
}

// OnMatchUpdate drives the watch window off the match clock.
func (c *Compression) OnMatchUpdate(ctx context.Context, mc schema.MatchContext) {
	c.mu.Lock()
	defer c.mu.Unlock()

	slot, ok := c.slots[mc.Match]
	if !ok {
		if !mc.Phase.Live() {
			return
		}
		slot = &compressionSlot{state: compressionWatching}
		c.slots[mc.Match] = slot
	}

	if mc.Phase == schema.PhaseFinished {
		c.settleLocked(ctx, mc, slot)
		delete(c.slots, mc.Match)
		return
	}

	if slot.state != compressionWatching {
		return
	}
	if mc.Phase != schema.PhaseSecondHalf || mc.ClockMin < int(c.cfg.WindowStartMin) || mc.LeadMargin() == 0 {
		return
	}
	c.tryEnterLocked(ctx, mc, slot)
}

func (c *Compression) tryEnterLocked(ctx context.Context, mc schema.MatchContext, slot *compressionSlot) {
	leader := mc.Leader()
	market, ok := c.deps.Registry.MarketFor(mc.Match, leader)
	if !ok {
		return
	}

	confidence, err := c.est.Estimate(ctx, mc)
	if err != nil {
		logs.Warnf("compression: estimate failed for match=%d: %v", mc.Match, err)
		return
	}
	if confidence < c.cfg.MinConfidence {
		return
	}

	price, err := priceWithTimeout(ctx, c.deps.Venues, market.VenueID, market.Ticker, c.cfg.PriceTimeout)
	if err != nil {
		logs.Warnf("compression: price unavailable for %s: %v", market.Ticker, err)
		return
	}
	if confidence-price < c.cfg.LagMargin {
		return
	}

	intent := schema.OrderIntent{
		Strategy:   schema.StrategyCompression,
		Match:      mc.Match,
		MarketID:   market.Ticker,
		Venue:      market.VenueID,
		Side:       schema.SideYes,
		LimitPrice: price,
		SizeUSD:    c.cfg.ClipUSD,
	}
	decision := c.deps.Ledger.Authorize(intent)
	if !decision.Allowed() {
		slot.state = compressionExpired
		c.deps.Journal.Append(journal.Record{
			Kind:     journal.KindAuthorizeDeny,
			Strategy: c.Name(),
			Match:    uint32(mc.Match),
			Fields:   map[string]any{"reason": decision.Reason.String()},
		})
		return
	}

	result, err := c.deps.Venues.Place(ctx, intent)
	if err != nil || !result.Filled() {
		if err != nil {
			logs.Errorf("compression: place order failed: %v", err)
		}
		if rerr := c.deps.Ledger.ReportReject(decision.PositionID); rerr != nil {
			logs.Errorf("compression: release reservation: %v", rerr)
		}
		slot.state = compressionExpired
		return
	}

	if _, err := c.deps.Ledger.ReportOpen(decision.PositionID, result.FillPrice, 0, 0); err != nil {
		logs.Errorf("compression: report open: %v", err)
		slot.state = compressionExpired
		return
	}
	slot.state = compressionExecuted
	slot.positionID = decision.PositionID
	slot.marketID = market.Ticker
	slot.team = leader
	slot.lastPrice = result.FillPrice
	c.deps.Journal.Append(journal.Record{
		Kind:     journal.KindOpen,
		Strategy: c.Name(),
		Match:    uint32(mc.Match),
		Fields:   map[string]any{"market": market.Ticker, "entry": result.FillPrice, "confidence": confidence},
	})
}

// settleLocked resolves the slot at full time: executed clips settle at 1.0
// when the held team won and 0.0 otherwise, watching slots expire untraded.
func (c *Compression) settleLocked(ctx context.Context, mc schema.MatchContext, slot *compressionSlot) {
	switch slot.state {
	case compressionExecuted:
		settle := 0.0
		if mc.Leader() == slot.team {
			settle = 1.0
		}
		c.closeLocked(ctx, mc.Match, slot, settle, schema.CloseMatchEnd)
		slot.state = compressionExpired
	case compressionWatching:
		slot.state = compressionExpired
		c.deps.Journal.Append(journal.Record{
			Kind:     journal.KindExpired,
			Strategy: c.Name(),
			Match:    uint32(mc.Match),
		})
	}
}

// CloseAll marks executed clips to their last seen price, used on shutdown.
func (c *Compression) CloseAll(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for match, slot := range c.slots {
		if slot.state == compressionExecuted {
			c.closeLocked(ctx, match, slot, slot.lastPrice, schema.CloseShutdown)
			slot.state = compressionExpired
		}
	}
}

func (c *Compression) closeLocked(ctx context.Context, match schema.MatchID, slot *compressionSlot, exit float64, reason schema.CloseReason) {
	pos, err := c.deps.Ledger.ReportClose(slot.positionID, exit, reason)
	if err != nil {
		logs.Errorf("compression: report close: %v", err)
		return
	}
	c.deps.Journal.Append(journal.Record{
		Kind:     journal.KindClose,
		Strategy: c.Name(),
		Match:    uint32(match),
		Fields:   map[string]any{"exit": exit, "pnl": pos.RealizedPnL, "reason": reason.String()},
	})
}
