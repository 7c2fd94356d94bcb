// Package ledger is the authoritative store of open positions, daily
// realized P&L, and global risk limits. Every order any strategy places must
// be authorized here first, and every fill or close reported back; all
// mutations are serialized under one mutex.
package ledger

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/yanun0323/logs"

	"goalbot/internal/obs"
	"goalbot/internal/schema"
)

// ConflictPolicy controls whether two strategies may hold positions against
// the same match at the same time.
type ConflictPolicy uint8

const (
	// ConflictExclusive denies any second position on a match.
	ConflictExclusive ConflictPolicy = iota
	// ConflictAllowBoth denies only a second position on the same match+side.
	ConflictAllowBoth
)

// Config defines the global risk limits.
type Config struct {
	MaxConcurrent     int
	ExposureCapUSD    float64
	DailyLossLimitUSD float64
	MaxClipUSD        float64
	ConflictPolicy    ConflictPolicy
}

// Summary is a point-in-time view of the risk state.
type Summary struct {
	Open        int
	Pending     int
	ExposureUSD float64
	RealizedPnL float64
	Halted      bool
	DayStart    time.Time
}

// Ledger evaluates and records all position lifecycle events.
type Ledger struct {
	mu        sync.Mutex
	cfg       Config
	positions map[string]*schema.Position // pending + open only
	realized  float64
	closed    int
	halted    bool
	dayStart  time.Time
	metrics   *obs.Metrics
	store     *Store
	now       func() time.Time
}

// New creates a ledger with the given limits. store may be nil.
func New(cfg Config, metrics *obs.Metrics, store *Store) *Ledger {
	return &Ledger{
		cfg:       cfg,
		positions: make(map[string]*schema.Position),
		dayStart:  time.Now().UTC(),
		metrics:   metrics,
		store:     store,
		now:       time.Now,
	}
}

// Authorize atomically checks the intent against every limit. On allow it
// reserves a pending position, counted toward caps until reported open,
// rejected, or closed.
func (l *Ledger) Authorize(intent schema.OrderIntent) schema.RiskDecision {
	start := time.Now()
	l.mu.Lock()
	decision := l.authorizeLocked(intent)
	l.mu.Unlock()

	l.metrics.ObserveAuthorize(decision, time.Since(start))
	action := "deny"
	if decision.Allowed() {
		action = "allow"
	}
	obs.AuthorizeTotal.WithLabelValues(action, decision.Reason.String()).Inc()
	if !decision.Allowed() {
		logs.Infof("ledger: deny %s match=%d reason=%s", intent.Strategy, intent.Match, decision.Reason)
	}
	return decision
}

func (l *Ledger) authorizeLocked(intent schema.OrderIntent) schema.RiskDecision {
	decision := schema.RiskDecision{Action: schema.RiskActionDeny}

	if !intent.Strategy.IsAvailable() || !intent.Side.IsAvailable() || intent.SizeUSD <= 0 || intent.MarketID == "" {
		decision.Reason = schema.RiskReasonBadIntent
		return decision
	}

	if l.realized <= -l.cfg.DailyLossLimitUSD && l.cfg.DailyLossLimitUSD > 0 {
		l.halted = true
	}
	if l.halted {
		decision.Reason = schema.RiskReasonHalted
		return decision
	}

	if l.cfg.MaxConcurrent > 0 && len(l.positions) >= l.cfg.MaxConcurrent {
		decision.Reason = schema.RiskReasonMaxConcurrent
		return decision
	}

	if l.cfg.ExposureCapUSD > 0 && l.exposureLocked()+intent.SizeUSD > l.cfg.ExposureCapUSD {
		decision.Reason = schema.RiskReasonExposureCap
		return decision
	}

	if intent.Strategy == schema.StrategyCompression && l.cfg.MaxClipUSD > 0 && intent.SizeUSD > l.cfg.MaxClipUSD {
		decision.Reason = schema.RiskReasonClipCap
		return decision
	}

	for _, pos := range l.positions {
		if pos.Match != intent.Match {
			continue
		}
		if l.cfg.ConflictPolicy == ConflictExclusive || pos.Side == intent.Side {
			decision.Reason = schema.RiskReasonConflict
			return decision
		}
	}

	pos := &schema.Position{
		ID:       uuid.NewString(),
		Strategy: intent.Strategy,
		Match:    intent.Match,
		MarketID: intent.MarketID,
		Venue:    intent.Venue,
		Side:     intent.Side,
		SizeUSD:  intent.SizeUSD,
		Status:   schema.PositionPending,
	}
	l.positions[pos.ID] = pos

	return schema.RiskDecision{
		Action:     schema.RiskActionAllow,
		Reason:     schema.RiskReasonNone,
		PositionID: pos.ID,
	}
}

// ReportOpen finalizes a pending position with its fill.
func (l *Ledger) ReportOpen(id string, entryPrice, takeProfit, stopLoss float64) (schema.Position, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	pos, ok := l.positions[id]
	if !ok {
		return schema.Position{}, ErrUnknownPosition
	}
	if !pos.Status.CanTransition(schema.PositionOpen) {
		return *pos, ErrInvalidTransition
	}
	pos.Status = schema.PositionOpen
	pos.EntryPrice = entryPrice
	pos.TakeProfit = takeProfit
	pos.StopLoss = stopLoss
	pos.OpenedAt = l.now().UTC().UnixNano()
	logs.Infof("ledger: open %s %s match=%d entry=%.4f size=%.2f", pos.Strategy, pos.Side, pos.Match, entryPrice, pos.SizeUSD)
	return *pos, nil
}

// ReportReject releases a pending reservation after a failed execution.
func (l *Ledger) ReportReject(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	pos, ok := l.positions[id]
	if !ok {
		return ErrUnknownPosition
	}
	if !pos.Status.CanTransition(schema.PositionRejected) {
		return ErrInvalidTransition
	}
	pos.Status = schema.PositionRejected
	delete(l.positions, id)
	return nil
}

// ReportClose settles an open position at the exit price and updates daily
// realized P&L exactly once. Breaching the daily loss limit latches the
// halted state until Reset.
func (l *Ledger) ReportClose(id string, exitPrice float64, reason schema.CloseReason) (schema.Position, error) {
	l.mu.Lock()
	pos, ok := l.positions[id]
	if !ok {
		l.mu.Unlock()
		return schema.Position{}, ErrUnknownPosition
	}
	if !pos.Status.CanTransition(schema.PositionClosed) {
		l.mu.Unlock()
		return *pos, ErrInvalidTransition
	}
	pos.Status = schema.PositionClosed
	pos.ClosedAt = l.now().UTC().UnixNano()
	pos.CloseReason = reason
	if pos.EntryPrice > 0 {
		pos.RealizedPnL = pos.SizeUSD * (exitPrice - pos.EntryPrice) / pos.EntryPrice
	}
	l.realized += pos.RealizedPnL
	l.closed++
	delete(l.positions, id)

	halting := false
	if l.cfg.DailyLossLimitUSD > 0 && l.realized <= -l.cfg.DailyLossLimitUSD && !l.halted {
		l.halted = true
		halting = true
	}
	closed := *pos
	l.mu.Unlock()

	obs.PositionsClosedTotal.WithLabelValues(closed.Strategy.String(), reason.String()).Inc()
	logs.Infof("ledger: close %s match=%d exit=%.4f pnl=%.2f reason=%s", closed.Strategy, closed.Match, exitPrice, closed.RealizedPnL, reason)
	if halting {
		logs.Warnf("ledger: daily loss limit breached (%.2f), halting all trading until reset", l.Realized())
	}

	if l.store != nil {
		if err := l.store.SaveClosed(closed); err != nil {
			logs.Errorf("ledger: persist closed position failed: %v", err)
		}
	}
	return closed, nil
}

// SeedRealized restores the daily realized total from persisted trades,
// used once at startup. Latches the halt if the restored total already
// breaches the limit.
func (l *Ledger) SeedRealized(realized float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.realized = realized
	if l.cfg.DailyLossLimitUSD > 0 && l.realized <= -l.cfg.DailyLossLimitUSD {
		l.halted = true
		logs.Warnf("ledger: restored realized %.2f already breaches daily limit, halted", realized)
	}
}

// Halted reports whether the daily-loss circuit breaker is latched.
func (l *Ledger) Halted() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.halted
}

// Realized returns the daily realized P&L.
func (l *Ledger) Realized() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.realized
}

// Reset starts a new trading day: realized P&L cleared, halt released.
// Open positions carry over untouched.
func (l *Ledger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.realized = 0
	l.closed = 0
	l.halted = false
	l.dayStart = l.now().UTC()
	logs.Info("ledger: daily reset")
}

// Snapshot copies the current risk state.
func (l *Ledger) Snapshot() Summary {
	l.mu.Lock()
	defer l.mu.Unlock()

	summary := Summary{
		RealizedPnL: l.realized,
		Halted:      l.halted,
		DayStart:    l.dayStart,
	}
	for _, pos := range l.positions {
		switch pos.Status {
		case schema.PositionOpen:
			summary.Open++
			summary.ExposureUSD += pos.SizeUSD
		case schema.PositionPending:
			summary.Pending++
			summary.ExposureUSD += pos.SizeUSD
		}
	}
	return summary
}

// OpenPositions copies all open positions, for shutdown force-close sweeps.
func (l *Ledger) OpenPositions() []schema.Position {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]schema.Position, 0, len(l.positions))
	for _, pos := range l.positions {
		if pos.Status == schema.PositionOpen {
			out = append(out, *pos)
		}
	}
	return out
}

// exposureLocked sums pending and open position sizes.
func (l *Ledger) exposureLocked() float64 {
	var total float64
	for _, pos := range l.positions {
		total += pos.SizeUSD
	}
	return total
}
