package schema

// MatchPhase is the coarse lifecycle phase of a fixture.
type MatchPhase uint8

const (
	_phase_beg MatchPhase = iota
	PhasePre
	PhaseFirstHalf
	PhaseHalftime
	PhaseSecondHalf
	PhaseFinished
	_phase_end
)

func (p MatchPhase) IsAvailable() bool {
	return p > _phase_beg && p < _phase_end
}

func (p MatchPhase) String() string {
	switch p {
	case PhasePre:
		return "pre"
	case PhaseFirstHalf:
		return "1H"
	case PhaseHalftime:
		return "HT"
	case PhaseSecondHalf:
		return "2H"
	case PhaseFinished:
		return "FT"
	default:
		return "unknown"
	}
}

// Live reports whether the ball is in play.
func (p MatchPhase) Live() bool {
	return p == PhaseFirstHalf || p == PhaseSecondHalf
}

// MatchContext carries pre-match classification and the live score/phase of
// one fixture. Created at registration time; score and phase are mutated only
// inside the router dispatch goroutine, evaluators receive copies.
type MatchContext struct {
	Match        MatchID
	League       LeagueID
	HomeTeam     TeamID
	AwayTeam     TeamID
	Favorite     TeamID
	Underdog     TeamID
	UnderdogOdds float64 // implied pre-match win probability of the underdog
	Score        Score
	ClockMin     int
	Phase        MatchPhase
	UpdatedAt    int64 // unix nanoseconds
}

// UnderdogLeads reports whether the underdog currently holds the lead.
func (mc MatchContext) UnderdogLeads() bool {
	switch mc.Underdog {
	case mc.HomeTeam:
		return mc.Score.Home > mc.Score.Away
	case mc.AwayTeam:
		return mc.Score.Away > mc.Score.Home
	default:
		return false
	}
}

// LeadMargin returns the goal difference from the leader's perspective.
func (mc MatchContext) LeadMargin() int {
	diff := int(mc.Score.Home) - int(mc.Score.Away)
	if diff < 0 {
		return -diff
	}
	return diff
}

// Leader returns the leading team, or 0 when level.
func (mc MatchContext) Leader() TeamID {
	switch {
	case mc.Score.Home > mc.Score.Away:
		return mc.HomeTeam
	case mc.Score.Away > mc.Score.Home:
		return mc.AwayTeam
	default:
		return 0
	}
}
