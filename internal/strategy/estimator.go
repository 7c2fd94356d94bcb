package strategy

import (
	"context"

	"goalbot/internal/schema"
)

// LeadConfidence estimates the leader's hold probability from the lead
// margin and the minutes left on the clock. It is deliberately simple; any
// richer model can replace it through the ConfidenceEstimator interface.
type LeadConfidence struct {
	// FullTimeMin is the nominal match length, default 90.
	FullTimeMin uint8
	// DecayPerMin is how much hold probability one remaining minute costs
	// a one-goal lead, default 0.012.
	DecayPerMin float64
}

// NewLeadConfidence returns the estimator with default parameters.
func NewLeadConfidence() *LeadConfidence {
	return &LeadConfidence{FullTimeMin: 90, DecayPerMin: 0.012}
}

// Estimate scores the current leader's chance of holding the result.
func (e *LeadConfidence) Estimate(_ context.Context, mc schema.MatchContext) (float64, error) {
	margin := mc.LeadMargin()
	if margin == 0 {
		return 0.5, nil
	}

	remaining := 0
	if mc.ClockMin < int(e.FullTimeMin) {
		remaining = int(e.FullTimeMin) - mc.ClockMin
	}

	// a two-goal lead is worth roughly half the decay of a one-goal lead,
	// larger leads close to none
	decay := e.DecayPerMin / float64(margin)
	confidence := 1.0 - decay*float64(remaining)
	if confidence < 0.5 {
		confidence = 0.5
	}
	if confidence > 0.995 {
		confidence = 0.995
	}
	return confidence, nil
}
