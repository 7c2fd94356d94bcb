package obs

import (
	"sync/atomic"
	"time"

	"goalbot/internal/schema"
)

const maxRiskReason = int(schema.RiskReasonBadIntent)

// Metrics collects lightweight counters and latency stats for the event
// pipeline. All methods are safe for concurrent use and nil receivers.
type Metrics struct {
	goalsPush         uint64
	goalsPoll         uint64
	duplicatesDropped uint64
	queueDrops        uint64
	queueClosed       uint64

	pushConnects   uint64
	pushFailures   uint64
	fallbackEnters uint64
	fallbackExits  uint64
	fallbackPolls  uint64
	pollErrors     uint64

	authorizeAllows  uint64
	riskReasonCounts [maxRiskReason + 1]uint64

	dispatchLatency  LatencyStats
	authorizeLatency LatencyStats
}

// LatencyStats aggregates duration samples in nanoseconds.
type LatencyStats struct {
	count uint64
	sum   uint64
	min   uint64
	max   uint64
}

// LatencySnapshot is a point-in-time view of latency stats.
type LatencySnapshot struct {
	Count uint64
	Min   time.Duration
	Max   time.Duration
	Avg   time.Duration
}

// Snapshot captures the current metrics values.
type Snapshot struct {
	GoalsPush         uint64
	GoalsPoll         uint64
	DuplicatesDropped uint64
	QueueDrops        uint64
	QueueClosed       uint64
	PushConnects      uint64
	PushFailures      uint64
	FallbackEnters    uint64
	FallbackExits     uint64
	FallbackPolls     uint64
	PollErrors        uint64
	AuthorizeAllows   uint64
	RiskReasonCounts  map[schema.RiskReason]uint64
	DispatchLatency   LatencySnapshot
	AuthorizeLatency  LatencySnapshot
}

// NewMetrics allocates a metrics container.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// ObserveGoal counts a normalized goal event by transport.
func (m *Metrics) ObserveGoal(source schema.FeedSource) {
	if m == nil {
		return
	}
	switch source {
	case schema.SourcePoll:
		atomic.AddUint64(&m.goalsPoll, 1)
	default:
		atomic.AddUint64(&m.goalsPush, 1)
	}
}

// IncDuplicateDropped counts a fingerprint-deduplicated event.
func (m *Metrics) IncDuplicateDropped() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.duplicatesDropped, 1)
}

// IncQueueDrop counts an event rejected by a full inbound queue.
func (m *Metrics) IncQueueDrop() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.queueDrops, 1)
}

// IncQueueClosed counts a publish against a closed queue.
func (m *Metrics) IncQueueClosed() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.queueClosed, 1)
}

// IncPushConnect counts a successful push connection.
func (m *Metrics) IncPushConnect() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.pushConnects, 1)
}

// IncPushFailure counts a failed push connect attempt or stream error.
func (m *Metrics) IncPushFailure() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.pushFailures, 1)
}

// IncFallbackEnter counts a transition into fallback polling.
func (m *Metrics) IncFallbackEnter() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.fallbackEnters, 1)
}

// IncFallbackExit counts a recovery from fallback to the push stream.
func (m *Metrics) IncFallbackExit() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.fallbackExits, 1)
}

// IncFallbackPoll counts one completed fallback poll cycle.
func (m *Metrics) IncFallbackPoll() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.fallbackPolls, 1)
}

// IncPollError counts a failed fallback poll.
func (m *Metrics) IncPollError() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.pollErrors, 1)
}

// ObserveAuthorize records a ledger decision and its evaluation latency.
func (m *Metrics) ObserveAuthorize(decision schema.RiskDecision, elapsed time.Duration) {
	if m == nil {
		return
	}
	if decision.Allowed() {
		atomic.AddUint64(&m.authorizeAllows, 1)
	}
	idx := int(decision.Reason)
	if idx >= 0 && idx < len(m.riskReasonCounts) {
		atomic.AddUint64(&m.riskReasonCounts[idx], 1)
	}
	m.authorizeLatency.Observe(elapsed)
}

// ObserveDispatch records end-to-end dispatch latency for one event.
func (m *Metrics) ObserveDispatch(elapsed time.Duration) {
	if m == nil {
		return
	}
	m.dispatchLatency.Observe(elapsed)
}

// Snapshot copies the current metric values.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	reasons := make(map[schema.RiskReason]uint64, len(m.riskReasonCounts))
	for i := range m.riskReasonCounts {
		if v := atomic.LoadUint64(&m.riskReasonCounts[i]); v > 0 {
			reasons[schema.RiskReason(i)] = v
		}
	}
	return Snapshot{
		GoalsPush:         atomic.LoadUint64(&m.goalsPush),
		GoalsPoll:         atomic.LoadUint64(&m.goalsPoll),
		DuplicatesDropped: atomic.LoadUint64(&m.duplicatesDropped),
		QueueDrops:        atomic.LoadUint64(&m.queueDrops),
		QueueClosed:       atomic.LoadUint64(&m.queueClosed),
		PushConnects:      atomic.LoadUint64(&m.pushConnects),
		PushFailures:      atomic.LoadUint64(&m.pushFailures),
		FallbackEnters:    atomic.LoadUint64(&m.fallbackEnters),
		FallbackExits:     atomic.LoadUint64(&m.fallbackExits),
		FallbackPolls:     atomic.LoadUint64(&m.fallbackPolls),
		PollErrors:        atomic.LoadUint64(&m.pollErrors),
		AuthorizeAllows:   atomic.LoadUint64(&m.authorizeAllows),
		RiskReasonCounts:  reasons,
		DispatchLatency:   m.dispatchLatency.Snapshot(),
		AuthorizeLatency:  m.authorizeLatency.Snapshot(),
	}
}

// Observe adds one duration sample.
func (s *LatencyStats) Observe(d time.Duration) {
	if s == nil || d < 0 {
		return
	}
	v := uint64(d)
	atomic.AddUint64(&s.count, 1)
	atomic.AddUint64(&s.sum, v)
	for {
		cur := atomic.LoadUint64(&s.min)
		if cur != 0 && cur <= v {
			break
		}
		if atomic.CompareAndSwapUint64(&s.min, cur, v) {
			break
		}
	}
	for {
		cur := atomic.LoadUint64(&s.max)
		if cur >= v {
			break
		}
		if atomic.CompareAndSwapUint64(&s.max, cur, v) {
			break
		}
	}
}

// Snapshot copies the latency stats.
func (s *LatencyStats) Snapshot() LatencySnapshot {
	if s == nil {
		return LatencySnapshot{}
	}
	count := atomic.LoadUint64(&s.count)
	if count == 0 {
		return LatencySnapshot{}
	}
	sum := atomic.LoadUint64(&s.sum)
	return LatencySnapshot{
		Count: count,
		Min:   time.Duration(atomic.LoadUint64(&s.min)),
		Max:   time.Duration(atomic.LoadUint64(&s.max)),
		Avg:   time.Duration(sum / count),
	}
}
