package feed

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/yanun0323/logs"

	"goalbot/internal/bus"
	"goalbot/internal/obs"
	"goalbot/internal/schema"
)

// State is the connector lifecycle state.
type State uint8

const (
	_state_beg State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateFallback
	_state_end
)

func (s State) IsAvailable() bool {
	return s > _state_beg && s < _state_end
}

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateFallback:
		return "fallback"
	default:
		return "unknown"
	}
}

// Config tunes the connector's recovery behavior.
type Config struct {
	// Backoff paces push reconnect attempts. Optional; DefaultBackoff when zero.
	Backoff Backoff
	// FallbackAfter is the consecutive-failure count that triggers fallback
	// polling. Optional; default 5.
	FallbackAfter int
	// FailureWindow bounds the span in which failures count as consecutive.
	// Optional; default 2m.
	FailureWindow time.Duration
	// PollInterval is the fallback polling cadence. Optional; default 20s.
	PollInterval time.Duration
	// ProbeInterval is the push re-probe cadence while in fallback.
	// Optional; default 30s.
	ProbeInterval time.Duration
	// Leagues restricts emitted events to the given league allow-list.
	// Optional; empty means no filtering.
	Leagues []schema.LeagueID
}

func (cfg *Config) init() {
	if cfg.Backoff == (Backoff{}) {
		cfg.Backoff = DefaultBackoff()
	}
	if cfg.FallbackAfter <= 0 {
		cfg.FallbackAfter = 5
	}
	if cfg.FailureWindow <= 0 {
		cfg.FailureWindow = 2 * time.Minute
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 20 * time.Second
	}
	if cfg.ProbeInterval <= 0 {
		cfg.ProbeInterval = 30 * time.Second
	}
}

// Connector drives the push/poll feed lifecycle and publishes normalized
// events to the router's inbound queue. Transport errors never escape this
// layer; they are logged and reflected in metrics only.
type Connector struct {
	cfg     Config
	push    PushSource
	poll    PollSource
	out     *bus.Queue
	metrics *obs.Metrics
	state   atomic.Uint32
	allowed map[schema.LeagueID]struct{}
}

// NewConnector wires a connector to its transports and outbound queue.
func NewConnector(cfg Config, push PushSource, poll PollSource, out *bus.Queue, metrics *obs.Metrics) *Connector {
	cfg.init()
	c := &Connector{
		cfg:     cfg,
		push:    push,
		poll:    poll,
		out:     out,
		metrics: metrics,
	}
	if len(cfg.Leagues) > 0 {
		c.allowed = make(map[schema.LeagueID]struct{}, len(cfg.Leagues))
		for _, id := range cfg.Leagues {
			c.allowed[id] = struct{}{}
		}
	}
	c.setState(StateConnecting)
	return c
}

// State returns the current connector state.
func (c *Connector) State() State {
	return State(c.state.Load())
}

func (c *Connector) setState(s State) {
	c.state.Store(uint32(s))
	obs.ConnectorState.Set(float64(s))
}

// Run blocks driving the connection lifecycle until ctx is canceled.
func (c *Connector) Run(ctx context.Context) error {
	if c.push == nil {
		return c.runPollOnly(ctx)
	}

	attempt := 0
	var failWindowStart time.Time
	first := true

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if first {
			first = false
		} else {
			c.setState(StateReconnecting)
		}

		sess, err := c.push.Connect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.metrics.IncPushFailure()
			now := time.Now()
			if failWindowStart.IsZero() || now.Sub(failWindowStart) > c.cfg.FailureWindow {
				failWindowStart = now
				attempt = 0
			}
			attempt++
			logs.Warnf("feed: push connect failed (attempt %d): %v", attempt, err)

			if attempt >= c.cfg.FallbackAfter && c.poll != nil {
				sess = c.runFallback(ctx)
				if sess == nil {
					return ctx.Err()
				}
				attempt = 0
				failWindowStart = time.Time{}
			} else {
				c.sleepBackoff(ctx, attempt)
				continue
			}
		}

		c.setState(StateConnected)
		c.metrics.IncPushConnect()
		attempt = 0
		failWindowStart = time.Time{}
		logs.Info("feed: push connected")

		c.consume(ctx, sess)
		_ = sess.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.metrics.IncPushFailure()
	}
}

// consume drains the session until it fails or ctx is canceled.
func (c *Connector) consume(ctx context.Context, sess PushSession) {
	for {
		ev, err := sess.Next(ctx)
		if err != nil {
			if ctx.Err() == nil {
				logs.Warnf("feed: push stream lost: %v", err)
			}
			return
		}
		c.emit(ev)
	}
}

// runPollOnly polls for the life of the process when no push transport is
// configured.
func (c *Connector) runPollOnly(ctx context.Context) error {
	c.setState(StateFallback)
	logs.Infof("feed: no push transport, polling every %s", c.cfg.PollInterval)

	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			events, err := c.poll.Poll(ctx)
			if err != nil {
				c.metrics.IncPollError()
				logs.Errorf("feed: poll failed: %v", err)
				continue
			}
			for _, ev := range events {
				c.emit(ev)
			}
			c.metrics.IncFallbackPoll()
			obs.FallbackPollsTotal.Inc()
		}
	}
}

// runFallback polls until the push connection can be re-established.
// Returns a live session, or nil when ctx is canceled.
func (c *Connector) runFallback(ctx context.Context) PushSession {
	c.setState(StateFallback)
	c.metrics.IncFallbackEnter()
	logs.Warnf("feed: entering fallback polling every %s", c.cfg.PollInterval)

	pollTicker := time.NewTicker(c.cfg.PollInterval)
	defer pollTicker.Stop()
	probeTicker := time.NewTicker(c.cfg.ProbeInterval)
	defer probeTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-pollTicker.C:
			events, err := c.poll.Poll(ctx)
			if err != nil {
				c.metrics.IncPollError()
				logs.Errorf("feed: fallback poll failed: %v", err)
				continue
			}
			for _, ev := range events {
				c.emit(ev)
			}
			c.metrics.IncFallbackPoll()
			obs.FallbackPollsTotal.Inc()
		case <-probeTicker.C:
			sess, err := c.push.Connect(ctx)
			if err != nil {
				c.metrics.IncPushFailure()
				continue
			}
			c.metrics.IncFallbackExit()
			logs.Info("feed: push recovered, leaving fallback")
			return sess
		}
	}
}

func (c *Connector) emit(ev schema.FeedEvent) {
	if !c.leagueAllowed(ev) {
		return
	}
	if err := c.out.TryPublish(ev); err != nil {
		switch err {
		case bus.ErrQueueFull:
			c.metrics.IncQueueDrop()
		case bus.ErrQueueClosed:
			c.metrics.IncQueueClosed()
		}
		logs.Errorf("feed: publish event failed: %v", err)
		return
	}
	if ev.Kind == schema.FeedEventGoal {
		c.metrics.ObserveGoal(ev.Goal.Source)
		obs.GoalsTotal.WithLabelValues(ev.Goal.Source.String()).Inc()
	}
}

func (c *Connector) leagueAllowed(ev schema.FeedEvent) bool {
	if c.allowed == nil {
		return true
	}
	var league schema.LeagueID
	switch ev.Kind {
	case schema.FeedEventGoal:
		league = ev.Goal.League
	case schema.FeedEventStatus:
		league = ev.Status.League
	default:
		return false
	}
	_, ok := c.allowed[league]
	return ok
}

func (c *Connector) sleepBackoff(ctx context.Context, attempt int) {
	wait := c.cfg.Backoff.Next(attempt)
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
