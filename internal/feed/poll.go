package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/yanun0323/errors"

	"goalbot/internal/schema"
)

const defaultPollTimeout = 10 * time.Second

// HTTPPollSource queries the collaborator's live-fixtures endpoint and
// synthesizes goal events from score deltas between consecutive polls.
type HTTPPollSource struct {
	baseURL string
	apiKey  string
	client  *http.Client

	mu         sync.Mutex
	prevScores map[schema.MatchID]schema.Score
}

// NewHTTPPollSource creates the pull-based fallback source.
func NewHTTPPollSource(baseURL, apiKey string) *HTTPPollSource {
	return &HTTPPollSource{
		baseURL:    baseURL,
		apiKey:     apiKey,
		client:     &http.Client{Timeout: defaultPollTimeout},
		prevScores: make(map[schema.MatchID]schema.Score),
	}
}

type liveFixturesResponse struct {
	Response []liveFixture `json:"response"`
}

type liveFixture struct {
	Fixture struct {
		ID     uint32 `json:"id"`
		Status struct {
			Short   string `json:"short"`
			Elapsed int    `json:"elapsed"`
		} `json:"status"`
	} `json:"fixture"`
	League struct {
		ID uint32 `json:"id"`
	} `json:"league"`
	Teams struct {
		Home struct {
			ID uint32 `json:"id"`
		} `json:"home"`
		Away struct {
			ID uint32 `json:"id"`
		} `json:"away"`
	} `json:"teams"`
	Goals struct {
		Home uint8 `json:"home"`
		Away uint8 `json:"away"`
	} `json:"goals"`
}

// Poll fetches live fixtures and returns status updates plus any goals
// detected since the previous call.
func (p *HTTPPollSource) Poll(ctx context.Context) ([]schema.FeedEvent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/fixtures?live=all", nil)
	if err != nil {
		return nil, errors.Wrap(err, "build poll request")
	}
	if p.apiKey != "" {
		req.Header.Set("x-api-key", p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "poll live fixtures")
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("poll live fixtures: status %d", resp.StatusCode)
	}

	var body liveFixturesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, errors.Wrap(err, "decode live fixtures")
	}

	now := time.Now().UTC().UnixNano()
	var out []schema.FeedEvent

	p.mu.Lock()
	defer p.mu.Unlock()
	for _, fx := range body.Response {
		match := schema.MatchID(fx.Fixture.ID)
		score := schema.Score{Home: fx.Goals.Home, Away: fx.Goals.Away}
		phase := parsePhase(fx.Fixture.Status.Short)

		out = append(out, schema.FeedEvent{
			Kind: schema.FeedEventStatus,
			Status: schema.MatchUpdate{
				Match:      match,
				League:     schema.LeagueID(fx.League.ID),
				Score:      score,
				ClockMin:   fx.Fixture.Status.Elapsed,
				Phase:      phase,
				Source:     schema.SourcePoll,
				ObservedAt: now,
			},
		})

		prev, seen := p.prevScores[match]
		if seen {
			for i := prev.Home; i < score.Home; i++ {
				out = append(out, p.goalEvent(fx, schema.Score{Home: i + 1, Away: score.Away}, fx.Teams.Home.ID, now))
			}
			for i := prev.Away; i < score.Away; i++ {
				out = append(out, p.goalEvent(fx, schema.Score{Home: score.Home, Away: i + 1}, fx.Teams.Away.ID, now))
			}
		}
		p.prevScores[match] = score

		if phase == schema.PhaseFinished {
			delete(p.prevScores, match)
		}
	}
	return out, nil
}

func (p *HTTPPollSource) goalEvent(fx liveFixture, score schema.Score, teamID uint32, now int64) schema.FeedEvent {
	return schema.FeedEvent{
		Kind: schema.FeedEventGoal,
		Goal: schema.GoalEvent{
			Match:       schema.MatchID(fx.Fixture.ID),
			League:      schema.LeagueID(fx.League.ID),
			ScoringTeam: schema.TeamID(teamID),
			Score:       score,
			ClockMin:    fx.Fixture.Status.Elapsed,
			Source:      schema.SourcePoll,
			ObservedAt:  now,
		},
	}
}
