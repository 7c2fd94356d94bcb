package schema

import "testing"

func TestRegistryMappings(t *testing.T) {
	reg := NewRegistry()

	venueID, err := reg.AddVenue("polybook")
	if err != nil {
		t.Fatalf("add venue: %v", err)
	}
	if err := reg.AddMarket("UND-WIN", venueID, 501, 20); err != nil {
		t.Fatalf("add market: %v", err)
	}
	if err := reg.AddMarket("FAV-WIN", venueID, 501, 10); err != nil {
		t.Fatalf("add market: %v", err)
	}

	market, ok := reg.MarketFor(501, 20)
	if !ok || market.Ticker != "UND-WIN" {
		t.Fatalf("market lookup failed: %+v ok=%t", market, ok)
	}

	byTicker, ok := reg.MarketByTicker("FAV-WIN")
	if !ok || byTicker.Team != 10 {
		t.Fatalf("ticker lookup failed: %+v ok=%t", byTicker, ok)
	}

	if markets := reg.Markets(501); len(markets) != 2 {
		t.Fatalf("should list 2 markets but got %d", len(markets))
	}

	if _, ok := reg.MarketFor(999, 20); ok {
		t.Fatal("unknown match should not resolve")
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	reg := NewRegistry()
	venueID, _ := reg.AddVenue("polybook")

	if _, err := reg.AddVenue("polybook"); err == nil {
		t.Fatal("duplicate venue should fail")
	}
	if err := reg.AddMarket("UND-WIN", venueID, 501, 20); err != nil {
		t.Fatalf("add market: %v", err)
	}
	if err := reg.AddMarket("UND-WIN", venueID, 502, 30); err == nil {
		t.Fatal("duplicate ticker should fail")
	}
	if err := reg.AddMarket("OTHER", venueID, 501, 20); err == nil {
		t.Fatal("duplicate market key should fail")
	}
	if err := reg.AddMarket("X", 99, 501, 40); err == nil {
		t.Fatal("unknown venue should fail")
	}
}
