package schema

// RiskAction is the ledger's verdict on an order intent.
type RiskAction uint8

const (
	RiskActionUnknown RiskAction = iota
	RiskActionAllow
	RiskActionDeny
)

// RiskReason explains a deny verdict.
type RiskReason uint8

const (
	RiskReasonNone RiskReason = iota
	RiskReasonHalted
	RiskReasonMaxConcurrent
	RiskReasonExposureCap
	RiskReasonClipCap
	RiskReasonConflict
	RiskReasonBadIntent
)

func (r RiskReason) String() string {
	switch r {
	case RiskReasonNone:
		return "none"
	case RiskReasonHalted:
		return "halted"
	case RiskReasonMaxConcurrent:
		return "max_concurrent"
	case RiskReasonExposureCap:
		return "exposure_cap"
	case RiskReasonClipCap:
		return "clip_cap"
	case RiskReasonConflict:
		return "conflict"
	case RiskReasonBadIntent:
		return "bad_intent"
	default:
		return "unknown"
	}
}

// RiskDecision is the result of Ledger.Authorize. On allow, PositionID
// identifies the reserved pending position the strategy must report against.
type RiskDecision struct {
	Action     RiskAction
	Reason     RiskReason
	PositionID string
}

// Allowed reports whether the intent may proceed to execution.
func (d RiskDecision) Allowed() bool {
	return d.Action == RiskActionAllow
}
