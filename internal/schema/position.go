package schema

// PositionStatus tracks the lifecycle of a position. Transitions are
// monotonic: Pending -> {Open, Rejected}; Open -> Closed.
type PositionStatus uint8

const (
	_position_status_beg PositionStatus = iota
	PositionPending
	PositionOpen
	PositionClosed
	PositionRejected
	_position_status_end
)

func (s PositionStatus) IsAvailable() bool {
	return s > _position_status_beg && s < _position_status_end
}

func (s PositionStatus) String() string {
	switch s {
	case PositionPending:
		return "pending"
	case PositionOpen:
		return "open"
	case PositionClosed:
		return "closed"
	case PositionRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Terminal reports whether the status permits no further transition.
func (s PositionStatus) Terminal() bool {
	return s == PositionClosed || s == PositionRejected
}

// CanTransition reports whether moving to next is a legal lifecycle step.
func (s PositionStatus) CanTransition(next PositionStatus) bool {
	switch s {
	case PositionPending:
		return next == PositionOpen || next == PositionRejected
	case PositionOpen:
		return next == PositionClosed
	default:
		return false
	}
}

// CloseReason explains why a position was closed.
type CloseReason uint8

const (
	_close_reason_beg CloseReason = iota
	CloseTakeProfit
	CloseStopLoss
	CloseMatchEnd
	CloseShutdown
	_close_reason_end
)

func (r CloseReason) IsAvailable() bool {
	return r > _close_reason_beg && r < _close_reason_end
}

func (r CloseReason) String() string {
	switch r {
	case CloseTakeProfit:
		return "take_profit"
	case CloseStopLoss:
		return "stop_loss"
	case CloseMatchEnd:
		return "match_end"
	case CloseShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// Position is the financial record shared between a strategy engine and the
// ledger. The engine owns the decision state machine; the ledger owns this
// record. They agree only through explicit authorize/report calls.
type Position struct {
	ID          string
	Strategy    StrategyTag
	Match       MatchID
	MarketID    string
	Venue       VenueID
	Side        Side
	EntryPrice  float64
	SizeUSD     float64
	TakeProfit  float64
	StopLoss    float64
	Status      PositionStatus
	OpenedAt    int64 // unix nanoseconds
	ClosedAt    int64
	RealizedPnL float64
	CloseReason CloseReason
}
