package schema

import "fmt"

// VenueID is the numeric identifier for an exchange venue.
type VenueID uint16

// MarketKey addresses one outcome market of one fixture.
type MarketKey struct {
	Match MatchID
	Team  TeamID
}

// Venue describes a prediction-market exchange.
type Venue struct {
	ID   VenueID
	Name string
}

// Market describes one tradable "team wins" market on a venue.
type Market struct {
	Ticker  string
	VenueID VenueID
	Match   MatchID
	Team    TeamID
}

// Registry stores venue and match-to-market mappings in a compact form.
// The exchange router consults it to resolve an order intent's market ticker.
type Registry struct {
	venues      []Venue
	markets     []Market
	venueByName map[string]VenueID
	marketByKey map[MarketKey]int
	byTicker    map[string]int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		venueByName: make(map[string]VenueID),
		marketByKey: make(map[MarketKey]int),
		byTicker:    make(map[string]int),
	}
}

// AddVenue registers a new venue and returns its ID.
func (r *Registry) AddVenue(name string) (VenueID, error) {
	if name == "" {
		return 0, fmt.Errorf("venue name is empty")
	}
	if id, ok := r.venueByName[name]; ok {
		return id, fmt.Errorf("venue already exists: %s", name)
	}
	id := VenueID(len(r.venues) + 1)
	r.venues = append(r.venues, Venue{ID: id, Name: name})
	r.venueByName[name] = id
	return id, nil
}

// AddMarket registers a market ticker for a match outcome on a venue.
func (r *Registry) AddMarket(ticker string, venueID VenueID, match MatchID, team TeamID) error {
	if ticker == "" {
		return fmt.Errorf("market ticker is empty")
	}
	if _, ok := r.Venue(venueID); !ok {
		return fmt.Errorf("venue id not found: %d", venueID)
	}
	if match == 0 || team == 0 {
		return fmt.Errorf("market key is incomplete: match=%d team=%d", match, team)
	}
	if _, ok := r.byTicker[ticker]; ok {
		return fmt.Errorf("market already exists: %s", ticker)
	}
	key := MarketKey{Match: match, Team: team}
	if _, ok := r.marketByKey[key]; ok {
		return fmt.Errorf("market already mapped: match=%d team=%d", match, team)
	}
	idx := len(r.markets)
	r.markets = append(r.markets, Market{
		Ticker:  ticker,
		VenueID: venueID,
		Match:   match,
		Team:    team,
	})
	r.marketByKey[key] = idx
	r.byTicker[ticker] = idx
	return nil
}

// Venue looks up a venue by ID.
func (r *Registry) Venue(id VenueID) (Venue, bool) {
	idx := int(id) - 1
	if idx < 0 || idx >= len(r.venues) {
		return Venue{}, false
	}
	return r.venues[idx], true
}

// VenueIDByName looks up a venue ID by name.
func (r *Registry) VenueIDByName(name string) (VenueID, bool) {
	id, ok := r.venueByName[name]
	return id, ok
}

// MarketFor resolves the market for a match outcome.
func (r *Registry) MarketFor(match MatchID, team TeamID) (Market, bool) {
	idx, ok := r.marketByKey[MarketKey{Match: match, Team: team}]
	if !ok {
		return Market{}, false
	}
	return r.markets[idx], true
}

// MarketByTicker resolves a market by its venue ticker.
func (r *Registry) MarketByTicker(ticker string) (Market, bool) {
	idx, ok := r.byTicker[ticker]
	if !ok {
		return Market{}, false
	}
	return r.markets[idx], true
}

// Markets returns all registered markets for a match.
func (r *Registry) Markets(match MatchID) []Market {
	var out []Market
	for _, m := range r.markets {
		if m.Match == match {
			out = append(out, m)
		}
	}
	return out
}
