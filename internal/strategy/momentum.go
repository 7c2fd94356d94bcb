package strategy

import (
	"context"
	"sync"
	"time"

	"github.com/yanun0323/logs"

	"goalbot/internal/journal"
	"goalbot/internal/schema"
)

// MomentumConfig tunes the underdog-goal entry strategy.
type MomentumConfig struct {
	// OddsThreshold is the maximum pre-match implied probability for a team
	// to qualify as a tradable underdog. The bound is inclusive.
	OddsThreshold   float64
	TakeProfitPct   float64
	StopLossPct     float64
	ClipUSD         float64
	MonitorInterval time.Duration
	PriceTimeout    time.Duration
}

func (c MomentumConfig) withDefaults() MomentumConfig {
	if c.MonitorInterval == 0 {
		c.MonitorInterval = 5 * time.Second
	}
	if c.PriceTimeout == 0 {
		c.PriceTimeout = 3 * time.Second
	}
	return c
}

type momentumState uint8

const (
	momentumArmed momentumState = iota + 1
	momentumOpen
	momentumDone
)

type momentumSlot struct {
	state      momentumState
	positionID string
	marketID   string
	venue      schema.VenueID
	takeProfit float64
	stopLoss   float64
	lastPrice  float64
}

// Momentum trades the first goal scored by a qualified underdog: buy the
// underdog's win market on the spike, then exit on take-profit, stop-loss,
// or match end. One entry per match, ever; later goals change nothing.
type Momentum struct {
	deps Deps
	cfg  MomentumConfig

	mu    sync.Mutex
	slots map[schema.MatchID]*momentumSlot
}

// NewMomentum creates the underdog-goal engine.
func NewMomentum(deps Deps, cfg MomentumConfig) *Momentum {
	return &Momentum{
		deps:  deps,
		cfg:   cfg.withDefaults(),
		slots: make(map[schema.MatchID]*momentumSlot),
	}
}

func (m *Momentum) Name() string { return schema.StrategyMomentum.String() }

// OnMatchUpdate arms qualifying matches and force-closes on match end.
func (m *Momentum) OnMatchUpdate(ctx context.Context, mc schema.MatchContext) {
	m.mu.Lock()
	slot, ok := m.slots[mc.Match]
	if !ok {
		if mc.Phase != schema.PhaseFinished && m.qualifies(mc) {
			m.slots[mc.Match] = &momentumSlot{state: momentumArmed}
			logs.Infof("momentum: armed match=%d underdog=%d odds=%.2f", mc.Match, mc.Underdog, mc.UnderdogOdds)
			m.mu.Unlock()
			m.deps.Journal.Append(journal.Record{
				Kind:     journal.KindArmed,
				Strategy: m.Name(),
				Match:    uint32(mc.Match),
				Fields:   map[string]any{"underdog": uint32(mc.Underdog), "odds": mc.UnderdogOdds},
			})
			return
		}
		m.mu.Unlock()
		return
	}

	if mc.Phase == schema.PhaseFinished {
		if slot.state == momentumOpen {
			m.closeLocked(ctx, mc.Match, slot, schema.CloseMatchEnd)
		}
		delete(m.slots, mc.Match)
	}
	m.mu.Unlock()
}

// OnGoal enters on the underdog's first goal.
func (m *Momentum) OnGoal(ctx context.Context, ev schema.GoalEvent, mc schema.MatchContext) {
	m.mu.Lock()
	defer m.mu.Unlock()

	slot, ok := m.slots[mc.Match]
	if !ok {
		if !mc.Phase.Live() || !m.qualifies(mc) {
			return
		}
		slot = &momentumSlot{state: momentumArmed}
		m.slots[mc.Match] = slot
	}
	if slot.state != momentumArmed {
		return
	}
	if ev.ScoringTeam != mc.Underdog || !mc.Phase.Live() {
		return
	}

	market, ok := m.deps.Registry.MarketFor(mc.Match, mc.Underdog)
	if !ok {
		logs.Warnf("momentum: no market for match=%d team=%d", mc.Match, mc.Underdog)
		slot.state = momentumDone
		return
	}

	price, err := priceWithTimeout(ctx, m.deps.Venues, market.VenueID, market.Ticker, m.cfg.PriceTimeout)
	if err != nil {
		logs.Errorf("momentum: entry price unavailable for %s: %v", market.Ticker, err)
		slot.state = momentumDone
		return
	}

	intent := schema.OrderIntent{
		Strategy:   schema.StrategyMomentum,
		Match:      mc.Match,
		MarketID:   market.Ticker,
		Venue:      market.VenueID,
		Side:       schema.SideYes,
		LimitPrice: price,
		SizeUSD:    m.cfg.ClipUSD,
	}
	decision := m.deps.Ledger.Authorize(intent)
	if !decision.Allowed() {
		slot.state = momentumDone
		m.deps.Journal.Append(journal.Record{
			Kind:     journal.KindAuthorizeDeny,
			Strategy: m.Name(),
			Match:    uint32(mc.Match),
			Fields:   map[string]any{"reason": decision.Reason.String()},
		})
		return
	}

	result, err := m.deps.Venues.Place(ctx, intent)
	if err != nil || !result.Filled() {
		if err != nil {
			logs.Errorf("momentum: place order failed: %v", err)
		}
		if rerr := m.deps.Ledger.ReportReject(decision.PositionID); rerr != nil {
			logs.Errorf("momentum: release reservation: %v", rerr)
		}
		slot.state = momentumDone
		return
	}

	entry := result.FillPrice
	slot.takeProfit = entry * (1 + m.cfg.TakeProfitPct)
	slot.stopLoss = entry * (1 - m.cfg.StopLossPct)
	if _, err := m.deps.Ledger.ReportOpen(decision.PositionID, entry, slot.takeProfit, slot.stopLoss); err != nil {
		logs.Errorf("momentum: report open: %v", err)
		slot.state = momentumDone
		return
	}
	slot.state = momentumOpen
	slot.positionID = decision.PositionID
	slot.marketID = market.Ticker
	slot.venue = market.VenueID
	slot.lastPrice = entry
	m.deps.Journal.Append(journal.Record{
		Kind:     journal.KindOpen,
		Strategy: m.Name(),
		Match:    uint32(mc.Match),
		Fields:   map[string]any{"market": market.Ticker, "entry": entry, "tp": slot.takeProfit, "sl": slot.stopLoss},
	})
}

// Run sweeps open positions against take-profit and stop-loss levels until
// the context ends.
func (m *Momentum) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.MonitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweep(ctx)
		}
	}
}

func (m *Momentum) sweep(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for match, slot := range m.slots {
		if slot.state != momentumOpen {
			continue
		}
		price, err := priceWithTimeout(ctx, m.deps.Venues, slot.venue, slot.marketID, m.cfg.PriceTimeout)
		if err != nil {
			// fall back to the last observed price rather than skipping
			// the exit check entirely
			logs.Warnf("momentum: price fetch failed for %s, using last seen: %v", slot.marketID, err)
			price = slot.lastPrice
		}
		if price <= 0 {
			continue
		}
		slot.lastPrice = price

		switch {
		case price >= slot.takeProfit:
			m.closeLocked(ctx, match, slot, schema.CloseTakeProfit)
			slot.state = momentumDone
		case price <= slot.stopLoss:
			m.closeLocked(ctx, match, slot, schema.CloseStopLoss)
			slot.state = momentumDone
		}
	}
}

// CloseAll marks every open position to market, used on shutdown.
func (m *Momentum) CloseAll(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for match, slot := range m.slots {
		if slot.state == momentumOpen {
			m.closeLocked(ctx, match, slot, schema.CloseShutdown)
			slot.state = momentumDone
		}
	}
}

// closeLocked settles the slot's position at the current market price, or
// the last seen price when the venue is unreachable.
func (m *Momentum) closeLocked(ctx context.Context, match schema.MatchID, slot *momentumSlot, reason schema.CloseReason) {
	price, err := priceWithTimeout(ctx, m.deps.Venues, slot.venue, slot.marketID, m.cfg.PriceTimeout)
	if err != nil || price <= 0 {
		price = slot.lastPrice
	}
	pos, err := m.deps.Ledger.ReportClose(slot.positionID, price, reason)
	if err != nil {
		logs.Errorf("momentum: report close: %v", err)
		return
	}
	m.deps.Journal.Append(journal.Record{
		Kind:     journal.KindClose,
		Strategy: m.Name(),
		Match:    uint32(match),
		Fields:   map[string]any{"exit": price, "pnl": pos.RealizedPnL, "reason": reason.String()},
	})
}

func (m *Momentum) qualifies(mc schema.MatchContext) bool {
	return mc.Underdog != 0 && mc.UnderdogOdds > 0 && mc.UnderdogOdds <= m.cfg.OddsThreshold
}
