// Package router consumes the feed queue, drops duplicate goals, maintains
// per-match context, and fans events out to the strategy engines in
// registration order. All dispatch runs on one goroutine, so engines see
// events for a match in arrival order.
package router

import (
	"context"
	"sync"
	"time"

	"github.com/yanun0323/logs"

	"goalbot/internal/bus"
	"goalbot/internal/journal"
	"goalbot/internal/obs"
	"goalbot/internal/schema"
	"goalbot/internal/strategy"
)

const (
	defaultDedupWindow = 10 * time.Minute
	defaultDedupMax    = 4096
	defaultCoolDown    = 5 * time.Minute
)

// Config tunes deduplication and match-context retention.
type Config struct {
	// DedupWindow is how long a goal fingerprint suppresses re-delivery.
	DedupWindow time.Duration
	// DedupMax bounds the fingerprint cache; oldest entries are evicted
	// first when full.
	DedupMax int
	// CoolDown is how long a finished match's context is retained so that
	// late feed stragglers still dedup instead of re-registering.
	CoolDown time.Duration
}

func (c Config) withDefaults() Config {
	if c.DedupWindow == 0 {
		c.DedupWindow = defaultDedupWindow
	}
	if c.DedupMax == 0 {
		c.DedupMax = defaultDedupMax
	}
	if c.CoolDown == 0 {
		c.CoolDown = defaultCoolDown
	}
	return c
}

// Router deduplicates and dispatches feed events.
type Router struct {
	cfg     Config
	in      *bus.Queue
	evals   []strategy.Evaluator
	journal journal.Sink
	metrics *obs.Metrics

	mu       sync.Mutex
	matches  map[schema.MatchID]*schema.MatchContext
	finished map[schema.MatchID]time.Time
	seen     map[schema.Fingerprint]time.Time
	now      func() time.Time
}

// New creates a router reading from the given queue.
func New(cfg Config, in *bus.Queue, metrics *obs.Metrics, sink journal.Sink) *Router {
	if sink == nil {
		sink = journal.Nop{}
	}
	return &Router{
		cfg:      cfg.withDefaults(),
		in:       in,
		journal:  sink,
		metrics:  metrics,
		matches:  make(map[schema.MatchID]*schema.MatchContext),
		finished: make(map[schema.MatchID]time.Time),
		seen:     make(map[schema.Fingerprint]time.Time),
		now:      time.Now,
	}
}

// Register appends an evaluator. Dispatch order follows registration order.
// Must be called before Run.
func (r *Router) Register(eval strategy.Evaluator) {
	r.evals = append(r.evals, eval)
}

// RegisterMatch installs or refreshes the pre-match context for a fixture.
func (r *Router) RegisterMatch(mc schema.MatchContext) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.matches[mc.Match]; ok {
		// keep live score/phase, refresh classification only
		existing.Favorite = mc.Favorite
		existing.Underdog = mc.Underdog
		existing.UnderdogOdds = mc.UnderdogOdds
		existing.HomeTeam = mc.HomeTeam
		existing.AwayTeam = mc.AwayTeam
		return
	}
	copied := mc
	r.matches[mc.Match] = &copied
	logs.Infof("router: registered match=%d underdog=%d odds=%.2f", mc.Match, mc.Underdog, mc.UnderdogOdds)
}

// Run consumes the queue until the context ends or the queue closes.
func (r *Router) Run(ctx context.Context) {
	r.in.Run(ctx, func(ev schema.FeedEvent) {
		start := time.Now()
		switch ev.Kind {
		case schema.FeedEventGoal:
			r.onGoal(ctx, ev.Goal)
		case schema.FeedEventStatus:
			r.onStatus(ctx, ev.Status)
		}
		r.metrics.ObserveDispatch(time.Since(start))
	})
}

func (r *Router) onGoal(ctx context.Context, ev schema.GoalEvent) {
	now := r.now()
	fp := ev.Fingerprint()

	r.mu.Lock()
	if ts, ok := r.seen[fp]; ok && now.Sub(ts) < r.cfg.DedupWindow {
		r.mu.Unlock()
		r.metrics.IncDuplicateDropped()
		obs.DuplicatesTotal.Inc()
		logs.Infof("router: duplicate goal match=%d team=%d %d-%d source=%s",
			ev.Match, ev.ScoringTeam, ev.Score.Home, ev.Score.Away, ev.Source)
		return
	}
	if len(r.seen) >= r.cfg.DedupMax {
		r.sweepLocked(now)
	}
	r.seen[fp] = now

	mc := r.applyGoalLocked(ev)
	r.mu.Unlock()

	r.journal.Append(journal.Record{
		Kind:  journal.KindGoal,
		Match: uint32(ev.Match),
		Fields: map[string]any{
			"team":   uint32(ev.ScoringTeam),
			"score":  ev.Score.String(),
			"minute": ev.ClockMin,
			"source": ev.Source.String(),
		},
	})
	for _, eval := range r.evals {
		eval.OnGoal(ctx, ev, mc)
	}
}

func (r *Router) onStatus(ctx context.Context, up schema.MatchUpdate) {
	r.mu.Lock()
	mc, ok := r.matches[up.Match]
	if !ok {
		mc = &schema.MatchContext{Match: up.Match, League: up.League}
		r.matches[up.Match] = mc
	}
	mc.Score = up.Score
	mc.ClockMin = up.ClockMin
	mc.Phase = up.Phase
	mc.UpdatedAt = up.ObservedAt

	if up.Phase == schema.PhaseFinished {
		if _, done := r.finished[up.Match]; !done {
			r.finished[up.Match] = r.now()
		}
	}
	r.evictLocked(r.now())
	snapshot := *mc
	r.mu.Unlock()

	for _, eval := range r.evals {
		eval.OnMatchUpdate(ctx, snapshot)
	}
}

// applyGoalLocked folds the goal into the match context and returns a copy
// for dispatch. Unknown matches get a bare context so dedup still applies.
func (r *Router) applyGoalLocked(ev schema.GoalEvent) schema.MatchContext {
	mc, ok := r.matches[ev.Match]
	if !ok {
		mc = &schema.MatchContext{Match: ev.Match, League: ev.League, Phase: schema.PhaseFirstHalf}
		r.matches[ev.Match] = mc
		logs.Warnf("router: goal for unregistered match=%d", ev.Match)
	}
	if ev.Score.Total() >= mc.Score.Total() {
		mc.Score = ev.Score
	}
	if ev.ClockMin > mc.ClockMin {
		mc.ClockMin = ev.ClockMin
	}
	if !mc.Phase.Live() && mc.Phase != schema.PhaseFinished {
		mc.Phase = schema.PhaseFirstHalf
	}
	mc.UpdatedAt = ev.ObservedAt
	return *mc
}

// sweepLocked drops expired fingerprints, then oldest-first down to the cap.
func (r *Router) sweepLocked(now time.Time) {
	for fp, ts := range r.seen {
		if now.Sub(ts) >= r.cfg.DedupWindow {
			delete(r.seen, fp)
		}
	}
	for len(r.seen) >= r.cfg.DedupMax {
		var (
			oldestFP schema.Fingerprint
			oldest   time.Time
			found    bool
		)
		for fp, ts := range r.seen {
			if !found || ts.Before(oldest) {
				oldestFP, oldest, found = fp, ts, true
			}
		}
		delete(r.seen, oldestFP)
	}
}

// evictLocked removes finished matches after the cool-down.
func (r *Router) evictLocked(now time.Time) {
	for match, at := range r.finished {
		if now.Sub(at) >= r.cfg.CoolDown {
			delete(r.finished, match)
			delete(r.matches, match)
		}
	}
}

// MatchSnapshot copies the current context of a match, if known.
func (r *Router) MatchSnapshot(match schema.MatchID) (schema.MatchContext, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	mc, ok := r.matches[match]
	if !ok {
		return schema.MatchContext{}, false
	}
	return *mc, true
}
