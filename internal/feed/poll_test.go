package feed

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goalbot/internal/schema"
)

func fixtureJSON(home, away uint8, status string, elapsed int) string {
	return fmt.Sprintf(`{"response": [{
		"fixture": {"id": 501, "status": {"short": %q, "elapsed": %d}},
		"league": {"id": 39},
		"teams": {"home": {"id": 10}, "away": {"id": 20}},
		"goals": {"home": %d, "away": %d}
	}]}`, status, elapsed, home, away)
}

func TestPollSynthesizesGoalsFromScoreDelta(t *testing.T) {
	body := fixtureJSON(0, 0, "1H", 12)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/fixtures", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("x-api-key"))
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	p := NewHTTPPollSource(srv.URL, "secret")
	ctx := context.Background()

	// first poll establishes the baseline, status only
	events, err := p.Poll(ctx)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, schema.FeedEventStatus, events[0].Kind)
	assert.Equal(t, schema.PhaseFirstHalf, events[0].Status.Phase)
	assert.Equal(t, 12, events[0].Status.ClockMin)

	// away team scores between polls
	body = fixtureJSON(0, 1, "1H", 34)
	events, err = p.Poll(ctx)
	require.NoError(t, err)
	require.Len(t, events, 2)

	goal := events[1]
	require.Equal(t, schema.FeedEventGoal, goal.Kind)
	assert.Equal(t, schema.MatchID(501), goal.Goal.Match)
	assert.Equal(t, schema.TeamID(20), goal.Goal.ScoringTeam)
	assert.Equal(t, schema.Score{Home: 0, Away: 1}, goal.Goal.Score)
	assert.Equal(t, schema.SourcePoll, goal.Goal.Source)

	// unchanged score produces no further goals
	events, err = p.Poll(ctx)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestPollMultiGoalDelta(t *testing.T) {
	body := fixtureJSON(0, 0, "1H", 10)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	p := NewHTTPPollSource(srv.URL, "")
	ctx := context.Background()
	_, err := p.Poll(ctx)
	require.NoError(t, err)

	// two home goals missed between polls arrive as two distinct events
	body = fixtureJSON(2, 0, "2H", 60)
	events, err := p.Poll(ctx)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, schema.Score{Home: 1, Away: 0}, events[1].Goal.Score)
	assert.Equal(t, schema.Score{Home: 2, Away: 0}, events[2].Goal.Score)
	assert.Equal(t, schema.TeamID(10), events[1].Goal.ScoringTeam)
}

func TestPollClearsStateOnFullTime(t *testing.T) {
	body := fixtureJSON(1, 0, "2H", 88)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	p := NewHTTPPollSource(srv.URL, "")
	ctx := context.Background()
	_, err := p.Poll(ctx)
	require.NoError(t, err)

	body = fixtureJSON(1, 0, "FT", 90)
	events, err := p.Poll(ctx)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, schema.PhaseFinished, events[0].Status.Phase)

	p.mu.Lock()
	defer p.mu.Unlock()
	assert.Empty(t, p.prevScores)
}

func TestPollErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := NewHTTPPollSource(srv.URL, "")
	_, err := p.Poll(context.Background())
	assert.Error(t, err)
}

func TestParsePhase(t *testing.T) {
	testCases := []struct {
		status   string
		expected schema.MatchPhase
	}{
		{"NS", schema.PhasePre},
		{"1H", schema.PhaseFirstHalf},
		{"HT", schema.PhaseHalftime},
		{"2H", schema.PhaseSecondHalf},
		{"ET", schema.PhaseSecondHalf},
		{"FT", schema.PhaseFinished},
		{"AET", schema.PhaseFinished},
		{"???", schema.PhaseFirstHalf},
	}

	for _, tc := range testCases {
		if got := parsePhase(tc.status); got != tc.expected {
			t.Fatalf("status %s: should be %s but got %s", tc.status, tc.expected, got)
		}
	}
}
