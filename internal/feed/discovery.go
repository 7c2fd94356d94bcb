package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"goalbot/internal/schema"
)

const defaultDiscoveryInterval = 30 * time.Minute

// DiscoveryConfig tunes pre-match fixture discovery.
type DiscoveryConfig struct {
	// Interval between discovery passes. Optional; default 30m.
	Interval time.Duration
	// Leagues limits discovery to the given leagues. Optional; empty
	// fetches the full fixture list.
	Leagues []schema.LeagueID
}

// Discovery fetches the day's upcoming fixtures with their pre-match
// bookmaker odds, classifies favorite and underdog from the match-winner
// prices, and hands each resulting context to the registrar.
type Discovery struct {
	baseURL  string
	apiKey   string
	cfg      DiscoveryConfig
	client   *http.Client
	register func(schema.MatchContext)
	now      func() time.Time
}

// NewDiscovery creates a discovery runner against the sports-data API.
// register receives one context per classified fixture.
func NewDiscovery(baseURL, apiKey string, cfg DiscoveryConfig, register func(schema.MatchContext)) *Discovery {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultDiscoveryInterval
	}
	return &Discovery{
		baseURL:  baseURL,
		apiKey:   apiKey,
		cfg:      cfg,
		client:   &http.Client{Timeout: defaultPollTimeout},
		register: register,
		now:      time.Now,
	}
}

// Run performs a discovery pass immediately and then on every interval tick
// until the context ends.
func (d *Discovery) Run(ctx context.Context) {
	d.pass(ctx)

	ticker := time.NewTicker(d.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.pass(ctx)
		}
	}
}

func (d *Discovery) pass(ctx context.Context) {
	contexts, err := d.Discover(ctx)
	if err != nil {
		if ctx.Err() == nil {
			logs.Errorf("discovery: fixture pass failed: %v", err)
		}
		return
	}
	for _, mc := range contexts {
		d.register(mc)
	}
	logs.Infof("discovery: registered %d fixtures with pre-match odds", len(contexts))
}

// Discover fetches today's not-yet-started fixtures and classifies each one
// that carries match-winner odds. Fixtures without usable odds are skipped.
func (d *Discovery) Discover(ctx context.Context) ([]schema.MatchContext, error) {
	fixtures, err := d.todaysFixtures(ctx)
	if err != nil {
		return nil, err
	}

	var out []schema.MatchContext
	for _, fx := range fixtures {
		if parsePhase(fx.Fixture.Status.Short) != schema.PhasePre {
			continue
		}
		home, away, err := d.matchWinnerOdds(ctx, fx.Fixture.ID)
		if err != nil {
			logs.Warnf("discovery: no odds for fixture=%d: %v", fx.Fixture.ID, err)
			continue
		}
		mc, ok := classify(fx, home, away)
		if !ok {
			continue
		}
		out = append(out, mc)
	}
	return out, nil
}

func (d *Discovery) todaysFixtures(ctx context.Context) ([]liveFixture, error) {
	date := d.now().UTC().Format("2006-01-02")
	if len(d.cfg.Leagues) == 0 {
		return d.fetchFixtures(ctx, d.baseURL+"/fixtures?date="+date)
	}

	var all []liveFixture
	for _, league := range d.cfg.Leagues {
		page, err := d.fetchFixtures(ctx,
			d.baseURL+"/fixtures?date="+date+"&league="+strconv.FormatUint(uint64(league), 10))
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
	}
	return all, nil
}

func (d *Discovery) fetchFixtures(ctx context.Context, url string) ([]liveFixture, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build fixtures request")
	}
	if d.apiKey != "" {
		req.Header.Set("x-api-key", d.apiKey)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "fetch fixtures")
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("fetch fixtures: status %d", resp.StatusCode)
	}

	var body liveFixturesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, errors.Wrap(err, "decode fixtures")
	}
	return body.Response, nil
}

type oddsResponse struct {
	Response []struct {
		Bookmakers []struct {
			Bets []struct {
				Name   string `json:"name"`
				Values []struct {
					Value string `json:"value"`
					Odd   string `json:"odd"`
				} `json:"values"`
			} `json:"bets"`
		} `json:"bookmakers"`
	} `json:"response"`
}

// matchWinnerOdds returns the decimal home and away win odds from the first
// bookmaker carrying a match-winner bet.
func (d *Discovery) matchWinnerOdds(ctx context.Context, fixtureID uint32) (home, away float64, err error) {
	url := d.baseURL + "/odds?fixture=" + strconv.FormatUint(uint64(fixtureID), 10)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, 0, errors.Wrap(err, "build odds request")
	}
	if d.apiKey != "" {
		req.Header.Set("x-api-key", d.apiKey)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, 0, errors.Wrap(err, "fetch odds")
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return 0, 0, errors.Errorf("fetch odds: status %d", resp.StatusCode)
	}

	var body oddsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, 0, errors.Wrap(err, "decode odds")
	}

	for _, entry := range body.Response {
		for _, bookmaker := range entry.Bookmakers {
			for _, bet := range bookmaker.Bets {
				if bet.Name != "Match Winner" {
					continue
				}
				for _, v := range bet.Values {
					odd, perr := strconv.ParseFloat(v.Odd, 64)
					if perr != nil || odd <= 1 {
						continue
					}
					switch v.Value {
					case "Home":
						home = odd
					case "Away":
						away = odd
					}
				}
				if home > 0 && away > 0 {
					return home, away, nil
				}
			}
		}
	}
	return 0, 0, errors.New("no match-winner odds")
}

// classify builds a pre-match context from decimal win odds. The longer
// price is the underdog; its implied probability is 1/odd. Even-odds
// fixtures have no underdog and are skipped.
func classify(fx liveFixture, homeOdd, awayOdd float64) (schema.MatchContext, bool) {
	if homeOdd == awayOdd {
		return schema.MatchContext{}, false
	}

	favorite := schema.TeamID(fx.Teams.Home.ID)
	underdog := schema.TeamID(fx.Teams.Away.ID)
	underdogOdd := awayOdd
	if homeOdd > awayOdd {
		favorite, underdog = underdog, favorite
		underdogOdd = homeOdd
	}

	return schema.MatchContext{
		Match:        schema.MatchID(fx.Fixture.ID),
		League:       schema.LeagueID(fx.League.ID),
		HomeTeam:     schema.TeamID(fx.Teams.Home.ID),
		AwayTeam:     schema.TeamID(fx.Teams.Away.ID),
		Favorite:     favorite,
		Underdog:     underdog,
		UnderdogOdds: 1 / underdogOdd,
		Phase:        schema.PhasePre,
	}, true
}
