// Package ops loads and validates the runtime configuration.
package ops

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"goalbot/internal/feed"
	"goalbot/internal/ledger"
	"goalbot/internal/router"
	"goalbot/internal/schema"
	"goalbot/internal/strategy"
)

// Environment variable names for secrets, overlaid on the JSON config.
const (
	EnvFeedAPIKey  = "GOALBOT_FEED_API_KEY"
	EnvVenueAPIKey = "GOALBOT_VENUE_API_KEY"
	EnvPGPassword  = "GOALBOT_PG_PASSWORD"
)

// TradingMode selects order execution.
type TradingMode uint8

const (
	ModeSim TradingMode = iota + 1
	ModeLive
)

func (m TradingMode) String() string {
	switch m {
	case ModeSim:
		return "sim"
	case ModeLive:
		return "live"
	default:
		return "unknown"
	}
}

// FileConfig mirrors the JSON config layout.
type FileConfig struct {
	Mode        string            `json:"mode"`
	Feed        FeedConfig        `json:"feed"`
	Router      RouterConfig      `json:"router"`
	Registry    RegistryConfig    `json:"registry"`
	Matches     []MatchConfig     `json:"matches"`
	Momentum    MomentumConfig    `json:"momentum"`
	Compression CompressionConfig `json:"compression"`
	Risk        RiskConfig        `json:"risk"`
	Journal     JournalConfig     `json:"journal"`
	Store       StoreConfig       `json:"store"`
	Metrics     MetricsConfig     `json:"metrics"`
}

// FeedConfig describes the upstream provider endpoints.
type FeedConfig struct {
	PushURL              string   `json:"pushUrl"`
	PollURL              string   `json:"pollUrl"`
	QueueSize            int      `json:"queueSize"`
	FallbackAfter        int      `json:"fallbackAfter"`
	FailureWindowSec     int      `json:"failureWindowSec"`
	PollIntervalSec      int      `json:"pollIntervalSec"`
	ProbeIntervalSec     int      `json:"probeIntervalSec"`
	DiscoveryIntervalSec int      `json:"discoveryIntervalSec"`
	Leagues              []uint32 `json:"leagues"`
}

// RouterConfig tunes goal deduplication.
type RouterConfig struct {
	DedupWindowSec int `json:"dedupWindowSec"`
	DedupMax       int `json:"dedupMax"`
	CoolDownSec    int `json:"coolDownSec"`
}

// RegistryConfig defines venue and market mappings.
type RegistryConfig struct {
	Venues  []VenueConfig  `json:"venues"`
	Markets []MarketConfig `json:"markets"`
}

// VenueConfig describes a venue entry.
type VenueConfig struct {
	Name    string `json:"name"`
	BaseURL string `json:"baseUrl"`
}

// MarketConfig maps a match outcome to a venue ticker.
type MarketConfig struct {
	Ticker string `json:"ticker"`
	Venue  string `json:"venue"`
	Match  uint32 `json:"match"`
	Team   uint32 `json:"team"`
}

// MatchConfig describes a fixture with its pre-match classification.
type MatchConfig struct {
	ID           uint32  `json:"id"`
	League       uint32  `json:"league"`
	HomeTeam     uint32  `json:"homeTeam"`
	AwayTeam     uint32  `json:"awayTeam"`
	Favorite     uint32  `json:"favorite"`
	Underdog     uint32  `json:"underdog"`
	UnderdogOdds float64 `json:"underdogOdds"`
}

// MomentumConfig tunes the underdog-goal strategy.
type MomentumConfig struct {
	OddsThreshold      float64 `json:"oddsThreshold"`
	TakeProfitPct      float64 `json:"takeProfitPct"`
	StopLossPct        float64 `json:"stopLossPct"`
	ClipUSD            float64 `json:"clipUsd"`
	MonitorIntervalSec int     `json:"monitorIntervalSec"`
}

// CompressionConfig tunes the late-window strategy.
type CompressionConfig struct {
	WindowStartMin uint8   `json:"windowStartMin"`
	MinConfidence  float64 `json:"minConfidence"`
	LagMargin      float64 `json:"lagMargin"`
	ClipUSD        float64 `json:"clipUsd"`
}

// RiskConfig defines the ledger limits.
type RiskConfig struct {
	MaxConcurrent     int     `json:"maxConcurrent"`
	ExposureCapUSD    float64 `json:"exposureCapUsd"`
	DailyLossLimitUSD float64 `json:"dailyLossLimitUsd"`
	MaxClipUSD        float64 `json:"maxClipUsd"`
	ConflictPolicy    string  `json:"conflictPolicy"`
}

// JournalConfig describes the trade journal output.
type JournalConfig struct {
	Dir string `json:"dir"`
}

// StoreConfig describes the trade database.
type StoreConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Database string `json:"database"`
	SSLMode  string `json:"sslMode"`
}

// MetricsConfig describes the Prometheus endpoint.
type MetricsConfig struct {
	Addr string `json:"addr"`
}

// VenueSpec is a resolved venue with its execution endpoint.
type VenueSpec struct {
	ID      schema.VenueID
	Name    string
	BaseURL string
}

// Loaded is the resolved configuration ready for use.
type Loaded struct {
	Mode             TradingMode
	Registry         *schema.Registry
	Venues           []VenueSpec
	Matches          []schema.MatchContext
	Feed             feed.Config
	Discovery        feed.DiscoveryConfig
	FeedPushURL      string
	FeedPollURL      string
	FeedAPIKey       string
	VenueAPIKey      string
	QueueSize        int
	Router           router.Config
	Momentum         strategy.MomentumConfig
	Compression      strategy.CompressionConfig
	Risk             ledger.Config
	JournalDir       string
	Store            StoreConfig
	PGPassword       string
	MetricsAddr      string
}

// Load reads a JSON config file, validates it, and resolves the registry.
// Secrets come from the environment, not the file.
func Load(path string) (Loaded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Loaded{}, err
	}
	var cfg FileConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Loaded{}, err
	}
	return resolve(cfg)
}

func resolve(cfg FileConfig) (Loaded, error) {
	loaded := Loaded{
		FeedAPIKey:  os.Getenv(EnvFeedAPIKey),
		VenueAPIKey: os.Getenv(EnvVenueAPIKey),
		PGPassword:  os.Getenv(EnvPGPassword),
	}

	switch cfg.Mode {
	case "", "sim":
		loaded.Mode = ModeSim
	case "live":
		loaded.Mode = ModeLive
	default:
		return Loaded{}, fmt.Errorf("unknown mode: %s", cfg.Mode)
	}

	if cfg.Feed.PushURL == "" && cfg.Feed.PollURL == "" {
		return Loaded{}, fmt.Errorf("feed: pushUrl and pollUrl are both empty")
	}
	loaded.FeedPushURL = cfg.Feed.PushURL
	loaded.FeedPollURL = cfg.Feed.PollURL
	loaded.QueueSize = cfg.Feed.QueueSize
	if loaded.QueueSize == 0 {
		loaded.QueueSize = 1024
	}
	loaded.Feed = feed.Config{
		FallbackAfter: cfg.Feed.FallbackAfter,
		FailureWindow: time.Duration(cfg.Feed.FailureWindowSec) * time.Second,
		PollInterval:  time.Duration(cfg.Feed.PollIntervalSec) * time.Second,
		ProbeInterval: time.Duration(cfg.Feed.ProbeIntervalSec) * time.Second,
	}
	for _, league := range cfg.Feed.Leagues {
		loaded.Feed.Leagues = append(loaded.Feed.Leagues, schema.LeagueID(league))
	}
	loaded.Discovery = feed.DiscoveryConfig{
		Interval: time.Duration(cfg.Feed.DiscoveryIntervalSec) * time.Second,
		Leagues:  loaded.Feed.Leagues,
	}

	loaded.Router = router.Config{
		DedupWindow: time.Duration(cfg.Router.DedupWindowSec) * time.Second,
		DedupMax:    cfg.Router.DedupMax,
		CoolDown:    time.Duration(cfg.Router.CoolDownSec) * time.Second,
	}

	registry, venues, err := buildRegistry(cfg.Registry)
	if err != nil {
		return Loaded{}, err
	}
	loaded.Registry = registry
	loaded.Venues = venues

	for _, m := range cfg.Matches {
		mc, err := resolveMatch(m)
		if err != nil {
			return Loaded{}, err
		}
		loaded.Matches = append(loaded.Matches, mc)
	}

	if cfg.Momentum.OddsThreshold <= 0 || cfg.Momentum.OddsThreshold >= 1 {
		return Loaded{}, fmt.Errorf("momentum: oddsThreshold must be in (0,1)")
	}
	if cfg.Momentum.TakeProfitPct <= 0 || cfg.Momentum.StopLossPct <= 0 {
		return Loaded{}, fmt.Errorf("momentum: takeProfitPct and stopLossPct must be > 0")
	}
	if cfg.Momentum.ClipUSD <= 0 {
		return Loaded{}, fmt.Errorf("momentum: clipUsd must be > 0")
	}
	loaded.Momentum = strategy.MomentumConfig{
		OddsThreshold:   cfg.Momentum.OddsThreshold,
		TakeProfitPct:   cfg.Momentum.TakeProfitPct,
		StopLossPct:     cfg.Momentum.StopLossPct,
		ClipUSD:         cfg.Momentum.ClipUSD,
		MonitorInterval: time.Duration(cfg.Momentum.MonitorIntervalSec) * time.Second,
	}

	if cfg.Compression.MinConfidence <= 0 || cfg.Compression.MinConfidence >= 1 {
		return Loaded{}, fmt.Errorf("compression: minConfidence must be in (0,1)")
	}
	if cfg.Compression.LagMargin < 0 {
		return Loaded{}, fmt.Errorf("compression: lagMargin must be >= 0")
	}
	if cfg.Compression.ClipUSD <= 0 {
		return Loaded{}, fmt.Errorf("compression: clipUsd must be > 0")
	}
	loaded.Compression = strategy.CompressionConfig{
		WindowStartMin: cfg.Compression.WindowStartMin,
		MinConfidence:  cfg.Compression.MinConfidence,
		LagMargin:      cfg.Compression.LagMargin,
		ClipUSD:        cfg.Compression.ClipUSD,
	}

	loaded.Risk, err = resolveRisk(cfg.Risk)
	if err != nil {
		return Loaded{}, err
	}

	loaded.JournalDir = cfg.Journal.Dir
	if loaded.JournalDir == "" {
		loaded.JournalDir = "journal"
	}
	loaded.Store = cfg.Store
	loaded.MetricsAddr = cfg.Metrics.Addr

	return loaded, nil
}

func buildRegistry(cfg RegistryConfig) (*schema.Registry, []VenueSpec, error) {
	reg := schema.NewRegistry()
	var venues []VenueSpec
	for _, venue := range cfg.Venues {
		id, err := reg.AddVenue(venue.Name)
		if err != nil {
			return nil, nil, err
		}
		venues = append(venues, VenueSpec{ID: id, Name: venue.Name, BaseURL: venue.BaseURL})
	}
	for _, market := range cfg.Markets {
		venueID, ok := reg.VenueIDByName(market.Venue)
		if !ok {
			return nil, nil, fmt.Errorf("venue not found: %s", market.Venue)
		}
		if err := reg.AddMarket(market.Ticker, venueID, schema.MatchID(market.Match), schema.TeamID(market.Team)); err != nil {
			return nil, nil, err
		}
	}
	return reg, venues, nil
}


func resolveMatch(m MatchConfig) (schema.MatchContext, error) {
	if m.ID == 0 {
		return schema.MatchContext{}, fmt.Errorf("match id is zero")
	}
	if m.HomeTeam == 0 || m.AwayTeam == 0 {
		return schema.MatchContext{}, fmt.Errorf("match %d: teams are incomplete", m.ID)
	}
	if m.Underdog != m.HomeTeam && m.Underdog != m.AwayTeam {
		return schema.MatchContext{}, fmt.Errorf("match %d: underdog is not a participant", m.ID)
	}
	if m.UnderdogOdds < 0 || m.UnderdogOdds >= 1 {
		return schema.MatchContext{}, fmt.Errorf("match %d: underdogOdds must be in [0,1)", m.ID)
	}
	return schema.MatchContext{
		Match:        schema.MatchID(m.ID),
		League:       schema.LeagueID(m.League),
		HomeTeam:     schema.TeamID(m.HomeTeam),
		AwayTeam:     schema.TeamID(m.AwayTeam),
		Favorite:     schema.TeamID(m.Favorite),
		Underdog:     schema.TeamID(m.Underdog),
		UnderdogOdds: m.UnderdogOdds,
		Phase:        schema.PhasePre,
	}, nil
}

func resolveRisk(cfg RiskConfig) (ledger.Config, error) {
	if cfg.MaxConcurrent < 0 || cfg.ExposureCapUSD < 0 || cfg.DailyLossLimitUSD < 0 || cfg.MaxClipUSD < 0 {
		return ledger.Config{}, fmt.Errorf("risk: limits must be >= 0")
	}
	out := ledger.Config{
		MaxConcurrent:     cfg.MaxConcurrent,
		ExposureCapUSD:    cfg.ExposureCapUSD,
		DailyLossLimitUSD: cfg.DailyLossLimitUSD,
		MaxClipUSD:        cfg.MaxClipUSD,
	}
	switch cfg.ConflictPolicy {
	case "", "exclusive":
		out.ConflictPolicy = ledger.ConflictExclusive
	case "allow_both":
		out.ConflictPolicy = ledger.ConflictAllowBoth
	default:
		return ledger.Config{}, fmt.Errorf("risk: unknown conflictPolicy: %s", cfg.ConflictPolicy)
	}
	return out, nil
}
