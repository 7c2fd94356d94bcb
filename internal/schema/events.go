package schema

import (
	"fmt"
	"time"
)

// MatchID is the numeric identifier of a fixture.
type MatchID uint32

// TeamID is the numeric identifier of a team.
type TeamID uint32

// LeagueID is the numeric identifier of a league.
type LeagueID uint32

// Score is the running score of a match.
type Score struct {
	Home uint8
	Away uint8
}

// Total returns the combined goal count.
func (s Score) Total() int {
	return int(s.Home) + int(s.Away)
}

func (s Score) String() string {
	return fmt.Sprintf("%d-%d", s.Home, s.Away)
}

// FeedSource identifies which transport produced an event.
type FeedSource uint8

const (
	_source_beg FeedSource = iota
	SourcePush
	SourcePoll
	_source_end
)

func (s FeedSource) IsAvailable() bool {
	return s > _source_beg && s < _source_end
}

func (s FeedSource) String() string {
	switch s {
	case SourcePush:
		return "push"
	case SourcePoll:
		return "poll"
	default:
		return "unknown"
	}
}

// GoalEvent is a normalized goal notification. Immutable once constructed;
// identical goals delivered over both transports share a Fingerprint.
type GoalEvent struct {
	Match       MatchID
	League      LeagueID
	ScoringTeam TeamID
	Score       Score
	ClockMin    int
	Source      FeedSource
	ObservedAt  int64 // unix nanoseconds
}

// Fingerprint is the dedup key for a goal event. Comparable; usable as a map key.
type Fingerprint struct {
	Match       MatchID
	ScoringTeam TeamID
	Score       Score
}

// Fingerprint derives the dedup key of the event.
func (e GoalEvent) Fingerprint() Fingerprint {
	return Fingerprint{
		Match:       e.Match,
		ScoringTeam: e.ScoringTeam,
		Score:       e.Score,
	}
}

// ObservedTime converts the observation timestamp to time.Time.
func (e GoalEvent) ObservedTime() time.Time {
	return time.Unix(0, e.ObservedAt)
}

// MatchUpdate is a normalized fixture status notification (clock, phase,
// score confirmation) produced alongside goal events by either transport.
type MatchUpdate struct {
	Match      MatchID
	League     LeagueID
	Score      Score
	ClockMin   int
	Phase      MatchPhase
	Source     FeedSource
	ObservedAt int64 // unix nanoseconds
}

// FeedEventKind discriminates the feed event union.
type FeedEventKind uint8

const (
	_feed_event_beg FeedEventKind = iota
	FeedEventGoal
	FeedEventStatus
	_feed_event_end
)

func (k FeedEventKind) IsAvailable() bool {
	return k > _feed_event_beg && k < _feed_event_end
}

// FeedEvent is the unit published on the inbound bus: a goal or a status
// update, tagged by Kind.
type FeedEvent struct {
	Kind   FeedEventKind
	Goal   GoalEvent
	Status MatchUpdate
}
