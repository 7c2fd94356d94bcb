package schema

import (
	"testing"
	"time"
)

func TestFingerprintIgnoresTransport(t *testing.T) {
	base := GoalEvent{
		Match:       501,
		League:      39,
		ScoringTeam: 12,
		Score:       Score{Home: 1, Away: 0},
		ClockMin:    34,
		Source:      SourcePush,
		ObservedAt:  time.Now().UnixNano(),
	}
	other := base
	other.Source = SourcePoll
	other.ClockMin = 35
	other.ObservedAt = base.ObservedAt + int64(2*time.Second)

	if base.Fingerprint() != other.Fingerprint() {
		t.Fatalf("fingerprints should match across transports: %+v vs %+v", base.Fingerprint(), other.Fingerprint())
	}

	next := base
	next.Score = Score{Home: 2, Away: 0}
	if base.Fingerprint() == next.Fingerprint() {
		t.Fatal("distinct scores should produce distinct fingerprints")
	}
}

func TestMatchContextLeader(t *testing.T) {
	mc := MatchContext{HomeTeam: 10, AwayTeam: 20, Underdog: 20}

	mc.Score = Score{Home: 1, Away: 0}
	if mc.Leader() != 10 || mc.UnderdogLeads() {
		t.Fatalf("home should lead: leader=%d", mc.Leader())
	}

	mc.Score = Score{Home: 1, Away: 2}
	if mc.Leader() != 20 || !mc.UnderdogLeads() {
		t.Fatalf("away underdog should lead: leader=%d", mc.Leader())
	}
	if mc.LeadMargin() != 1 {
		t.Fatalf("margin should be 1 but got %d", mc.LeadMargin())
	}

	mc.Score = Score{Home: 2, Away: 2}
	if mc.Leader() != 0 {
		t.Fatal("level score should have no leader")
	}
}
