package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goalbot/internal/schema"
)

func newFeedServer(t *testing.T, handle func(*websocket.Conn)) *httptest.Server {
	t.Helper()

	up := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		handle(conn)
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestWSSourceGoalMessage(t *testing.T) {
	srv := newFeedServer(t, func(conn *websocket.Conn) {
		var sub subscribeRequest
		if err := conn.ReadJSON(&sub); err != nil {
			t.Errorf("read subscribe: %v", err)
			return
		}
		if sub.Type != "subscribe" {
			t.Errorf("unexpected subscribe type %q", sub.Type)
		}

		_ = conn.WriteJSON(map[string]any{"type": "heartbeat"})
		_ = conn.WriteJSON(map[string]any{
			"type":    "goal",
			"fixture": map[string]any{"id": 9001, "home_team_id": 10, "away_team_id": 20},
			"league":  map[string]any{"id": 39, "name": "premier"},
			"goal":    map[string]any{"team_id": 20, "minute": 63},
			"score":   map[string]any{"home": 0, "away": 1},
		})
		time.Sleep(100 * time.Millisecond)
	})
	defer srv.Close()

	src := NewWSSource(wsURL(srv), "secret", []schema.LeagueID{39})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sess, err := src.Connect(ctx)
	require.NoError(t, err)
	defer sess.Close()

	ev, err := sess.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, schema.FeedEventGoal, ev.Kind)
	assert.Equal(t, schema.MatchID(9001), ev.Goal.Match)
	assert.Equal(t, schema.LeagueID(39), ev.Goal.League)
	assert.Equal(t, schema.TeamID(20), ev.Goal.ScoringTeam)
	assert.Equal(t, schema.Score{Home: 0, Away: 1}, ev.Goal.Score)
	assert.Equal(t, 63, ev.Goal.ClockMin)
	assert.Equal(t, schema.SourcePush, ev.Goal.Source)
}

func TestWSSourceStatusMessage(t *testing.T) {
	srv := newFeedServer(t, func(conn *websocket.Conn) {
		var sub subscribeRequest
		_ = conn.ReadJSON(&sub)
		_ = conn.WriteJSON(map[string]any{
			"type":    "fixture_update",
			"fixture": map[string]any{"id": 9001},
			"league":  map[string]any{"id": 39},
			"score":   map[string]any{"home": 2, "away": 2},
			"status":  "HT",
			"elapsed": 45,
		})
		time.Sleep(100 * time.Millisecond)
	})
	defer srv.Close()

	src := NewWSSource(wsURL(srv), "", nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sess, err := src.Connect(ctx)
	require.NoError(t, err)
	defer sess.Close()

	ev, err := sess.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, schema.FeedEventStatus, ev.Kind)
	assert.Equal(t, schema.PhaseHalftime, ev.Status.Phase)
	assert.Equal(t, 45, ev.Status.ClockMin)
	assert.Equal(t, schema.Score{Home: 2, Away: 2}, ev.Status.Score)
}

func TestWSSourceErrorMessage(t *testing.T) {
	srv := newFeedServer(t, func(conn *websocket.Conn) {
		var sub subscribeRequest
		_ = conn.ReadJSON(&sub)
		_ = conn.WriteJSON(map[string]any{"type": "error", "message": "subscription rejected"})
		time.Sleep(100 * time.Millisecond)
	})
	defer srv.Close()

	src := NewWSSource(wsURL(srv), "", nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sess, err := src.Connect(ctx)
	require.NoError(t, err)
	defer sess.Close()

	_, err = sess.Next(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "subscription rejected")
}
