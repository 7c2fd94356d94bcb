package schema

// StrategyTag identifies which engine produced an intent or position.
type StrategyTag uint8

const (
	_strategy_beg StrategyTag = iota
	StrategyMomentum
	StrategyCompression
	_strategy_end
)

func (t StrategyTag) IsAvailable() bool {
	return t > _strategy_beg && t < _strategy_end
}

func (t StrategyTag) String() string {
	switch t {
	case StrategyMomentum:
		return "momentum"
	case StrategyCompression:
		return "compression"
	default:
		return "unknown"
	}
}

// Side is the outcome side of a prediction-market order.
type Side uint8

const (
	_side_beg Side = iota
	SideYes
	SideNo
	_side_end
)

func (s Side) IsAvailable() bool {
	return s > _side_beg && s < _side_end
}

func (s Side) String() string {
	switch s {
	case SideYes:
		return "yes"
	case SideNo:
		return "no"
	default:
		return "unknown"
	}
}

// OrderIntent is a strategy's request to trade, submitted to the ledger for
// authorization before any order reaches a venue.
type OrderIntent struct {
	Strategy   StrategyTag
	Match      MatchID
	MarketID   string
	Venue      VenueID
	Side       Side
	LimitPrice float64
	SizeUSD    float64
}

// OrderStatus is the terminal outcome of a placed order.
type OrderStatus uint8

const (
	_order_status_beg OrderStatus = iota
	OrderFilled
	OrderPartial
	OrderRejected
	_order_status_end
)

func (s OrderStatus) IsAvailable() bool {
	return s > _order_status_beg && s < _order_status_end
}

func (s OrderStatus) String() string {
	switch s {
	case OrderFilled:
		return "filled"
	case OrderPartial:
		return "partial"
	case OrderRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// OrderResult is the normalized execution outcome returned by any venue
// client, consumed by the ledger and the strategy engines.
type OrderResult struct {
	OrderID   string
	Status    OrderStatus
	FillPrice float64
	FilledUSD float64
	Reason    string
}

// Filled reports whether any size executed.
func (r OrderResult) Filled() bool {
	return r.Status == OrderFilled || r.Status == OrderPartial
}
