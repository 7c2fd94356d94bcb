package feed

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/yanun0323/errors"

	"goalbot/internal/schema"
)

const (
	defaultHandshakeTimeout = 10 * time.Second
	defaultReadTimeout      = 90 * time.Second
)

// WSSource subscribes to the sports-data collaborator's live goal stream.
type WSSource struct {
	url     string
	apiKey  string
	leagues []schema.LeagueID
	dialer  *websocket.Dialer
}

// NewWSSource creates a push source for the given websocket endpoint.
func NewWSSource(url, apiKey string, leagues []schema.LeagueID) *WSSource {
	return &WSSource{
		url:     url,
		apiKey:  apiKey,
		leagues: leagues,
		dialer: &websocket.Dialer{
			HandshakeTimeout: defaultHandshakeTimeout,
		},
	}
}

type subscribeRequest struct {
	Type     string   `json:"type"`
	Channels []string `json:"channels"`
	Leagues  []uint32 `json:"leagues,omitempty"`
}

// Connect dials the stream and subscribes to live goal and score channels.
func (s *WSSource) Connect(ctx context.Context) (PushSession, error) {
	header := http.Header{}
	if s.apiKey != "" {
		header.Set("x-api-key", s.apiKey)
	}

	conn, resp, err := s.dialer.DialContext(ctx, s.url, header)
	if err != nil {
		return nil, errors.Wrap(err, "dial feed").With("url", s.url)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	leagues := make([]uint32, 0, len(s.leagues))
	for _, id := range s.leagues {
		leagues = append(leagues, uint32(id))
	}
	sub := subscribeRequest{
		Type:     "subscribe",
		Channels: []string{"live_goals", "live_scores"},
		Leagues:  leagues,
	}
	if err := conn.WriteJSON(sub); err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "write subscribe payload")
	}

	return &wsSession{conn: conn}, nil
}

type wsSession struct {
	conn *websocket.Conn
}

type feedMessage struct {
	Type    string         `json:"type"`
	Fixture fixturePayload `json:"fixture"`
	League  leaguePayload  `json:"league"`
	Goal    goalPayload    `json:"goal"`
	Score   scorePayload   `json:"score"`
	Status  string         `json:"status"`
	Elapsed int            `json:"elapsed"`
	Message string         `json:"message"`
}

type fixturePayload struct {
	ID       uint32 `json:"id"`
	HomeTeam uint32 `json:"home_team_id"`
	AwayTeam uint32 `json:"away_team_id"`
}

type leaguePayload struct {
	ID   uint32 `json:"id"`
	Name string `json:"name"`
}

type goalPayload struct {
	TeamID uint32 `json:"team_id"`
	Player string `json:"player"`
	Minute int    `json:"minute"`
	Kind   string `json:"type"`
}

type scorePayload struct {
	Home uint8 `json:"home"`
	Away uint8 `json:"away"`
}

// Next reads messages until one normalizes to a feed event. Heartbeats and
// unknown message types are skipped in place.
func (s *wsSession) Next(ctx context.Context) (schema.FeedEvent, error) {
	for {
		if err := ctx.Err(); err != nil {
			return schema.FeedEvent{}, err
		}
		deadline := time.Now().Add(defaultReadTimeout)
		if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
			deadline = d
		}
		_ = s.conn.SetReadDeadline(deadline)

		var msg feedMessage
		if err := s.conn.ReadJSON(&msg); err != nil {
			return schema.FeedEvent{}, errors.Wrap(err, "read feed message")
		}

		switch msg.Type {
		case "goal":
			return schema.FeedEvent{
				Kind: schema.FeedEventGoal,
				Goal: schema.GoalEvent{
					Match:       schema.MatchID(msg.Fixture.ID),
					League:      schema.LeagueID(msg.League.ID),
					ScoringTeam: schema.TeamID(msg.Goal.TeamID),
					Score:       schema.Score{Home: msg.Score.Home, Away: msg.Score.Away},
					ClockMin:    msg.Goal.Minute,
					Source:      schema.SourcePush,
					ObservedAt:  time.Now().UTC().UnixNano(),
				},
			}, nil
		case "fixture_update":
			return schema.FeedEvent{
				Kind: schema.FeedEventStatus,
				Status: schema.MatchUpdate{
					Match:      schema.MatchID(msg.Fixture.ID),
					League:     schema.LeagueID(msg.League.ID),
					Score:      schema.Score{Home: msg.Score.Home, Away: msg.Score.Away},
					ClockMin:   msg.Elapsed,
					Phase:      parsePhase(msg.Status),
					Source:     schema.SourcePush,
					ObservedAt: time.Now().UTC().UnixNano(),
				},
			}, nil
		case "heartbeat":
			continue
		case "error":
			return schema.FeedEvent{}, errors.Errorf("feed error message: %s", msg.Message)
		default:
			continue
		}
	}
}

func (s *wsSession) Close() error {
	return s.conn.Close()
}

// parsePhase maps provider status codes to match phases.
func parsePhase(status string) schema.MatchPhase {
	switch status {
	case "NS", "TBD", "PST":
		return schema.PhasePre
	case "1H", "LIVE":
		return schema.PhaseFirstHalf
	case "HT", "BT":
		return schema.PhaseHalftime
	case "2H", "ET", "P":
		return schema.PhaseSecondHalf
	case "FT", "AET", "PEN", "CANC", "ABD", "AWD", "WO":
		return schema.PhaseFinished
	default:
		return schema.PhaseFirstHalf
	}
}
