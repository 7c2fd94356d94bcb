package feed

import (
	"math"
	"math/rand"
	"time"
)

// Backoff paces push reconnect attempts: exponential growth from Min toward
// Max, optionally randomized by Jitter.
type Backoff struct {
	Min    time.Duration
	Max    time.Duration
	Factor float64
	// Jitter spreads each delay uniformly within +/- this fraction of it.
	Jitter float64
}

// DefaultBackoff provides conservative reconnect defaults.
func DefaultBackoff() Backoff {
	return Backoff{
		Min:    250 * time.Millisecond,
		Max:    15 * time.Second,
		Factor: 2.0,
		Jitter: 0.2,
	}
}

// Next returns the delay before the given reconnect attempt (1-based).
func (b Backoff) Next(attempt int) time.Duration {
	min, max, factor := b.Min, b.Max, b.Factor
	if min <= 0 {
		min = 100 * time.Millisecond
	}
	if max <= 0 {
		max = 15 * time.Second
	}
	if factor <= 1 {
		factor = 2.0
	}
	if attempt < 1 {
		attempt = 1
	}

	wait := max
	if scaled := float64(min) * math.Pow(factor, float64(attempt-1)); scaled < float64(max) {
		wait = time.Duration(scaled)
	}

	spread := b.Jitter
	if spread <= 0 {
		return wait
	}
	if spread > 1 {
		spread = 1
	}
	low := float64(wait) * (1 - spread)
	return time.Duration(low + rand.Float64()*2*spread*float64(wait))
}
