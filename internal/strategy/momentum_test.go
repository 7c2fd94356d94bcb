package strategy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goalbot/internal/exchange"
	"goalbot/internal/journal"
	"goalbot/internal/ledger"
	"goalbot/internal/schema"
)

type fixture struct {
	deps Deps
	sim  *exchange.SimClient
	led  *ledger.Ledger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	reg := schema.NewRegistry()
	venueID, err := reg.AddVenue("simbook")
	require.NoError(t, err)
	require.NoError(t, reg.AddMarket("UND-WIN", venueID, 501, 20))
	require.NoError(t, reg.AddMarket("FAV-WIN", venueID, 501, 10))

	sim := exchange.NewSimClient()
	venues := exchange.NewRouter()
	venues.Register(venueID, sim)

	led := ledger.New(ledger.Config{
		MaxConcurrent:     5,
		ExposureCapUSD:    10000,
		DailyLossLimitUSD: 5000,
		MaxClipUSD:        500,
	}, nil, nil)

	return &fixture{
		deps: Deps{
			Ledger:   led,
			Venues:   venues,
			Registry: reg,
			Journal:  journal.Nop{},
		},
		sim: sim,
		led: led,
	}
}

func underdogContext(odds float64) schema.MatchContext {
	return schema.MatchContext{
		Match:        501,
		HomeTeam:     10,
		AwayTeam:     20,
		Favorite:     10,
		Underdog:     20,
		UnderdogOdds: odds,
		Score:        schema.Score{Home: 0, Away: 1},
		ClockMin:     30,
		Phase:        schema.PhaseFirstHalf,
	}
}

func underdogGoal() schema.GoalEvent {
	return schema.GoalEvent{
		Match:       501,
		ScoringTeam: 20,
		Score:       schema.Score{Home: 0, Away: 1},
		ClockMin:    30,
		Source:      schema.SourcePush,
	}
}

func TestMomentumEntersOnUnderdogGoal(t *testing.T) {
	f := newFixture(t)
	m := NewMomentum(f.deps, MomentumConfig{
		OddsThreshold: 0.45,
		TakeProfitPct: 0.15,
		StopLossPct:   0.10,
		ClipUSD:       200,
	})
	ctx := context.Background()

	f.sim.SetPrice("UND-WIN", 0.30)
	m.OnGoal(ctx, underdogGoal(), underdogContext(0.25))

	summary := f.led.Snapshot()
	require.Equal(t, 1, summary.Open)
	assert.Equal(t, 200.0, summary.ExposureUSD)

	slot := m.slots[501]
	require.NotNil(t, slot)
	assert.Equal(t, momentumOpen, slot.state)
	assert.InDelta(t, 0.345, slot.takeProfit, 1e-9)
	assert.InDelta(t, 0.27, slot.stopLoss, 1e-9)
}

func TestMomentumIgnoresOddsAboveThreshold(t *testing.T) {
	f := newFixture(t)
	m := NewMomentum(f.deps, MomentumConfig{
		OddsThreshold: 0.45,
		TakeProfitPct: 0.15,
		StopLossPct:   0.10,
		ClipUSD:       200,
	})

	f.sim.SetPrice("UND-WIN", 0.50)
	m.OnGoal(context.Background(), underdogGoal(), underdogContext(0.50))

	assert.Equal(t, 0, f.led.Snapshot().Open)
	assert.Nil(t, m.slots[501])
}

func TestMomentumThresholdIsInclusive(t *testing.T) {
	f := newFixture(t)
	m := NewMomentum(f.deps, MomentumConfig{
		OddsThreshold: 0.45,
		TakeProfitPct: 0.15,
		StopLossPct:   0.10,
		ClipUSD:       200,
	})

	f.sim.SetPrice("UND-WIN", 0.45)
	m.OnGoal(context.Background(), underdogGoal(), underdogContext(0.45))

	assert.Equal(t, 1, f.led.Snapshot().Open)
}

func TestMomentumIgnoresFavoriteGoal(t *testing.T) {
	f := newFixture(t)
	m := NewMomentum(f.deps, MomentumConfig{
		OddsThreshold: 0.45,
		TakeProfitPct: 0.15,
		StopLossPct:   0.10,
		ClipUSD:       200,
	})

	ev := underdogGoal()
	ev.ScoringTeam = 10
	ev.Score = schema.Score{Home: 1, Away: 0}
	mc := underdogContext(0.25)
	mc.Score = ev.Score
	m.OnGoal(context.Background(), ev, mc)

	assert.Equal(t, 0, f.led.Snapshot().Open)
}

func TestMomentumSecondGoalIgnored(t *testing.T) {
	f := newFixture(t)
	m := NewMomentum(f.deps, MomentumConfig{
		OddsThreshold: 0.45,
		TakeProfitPct: 0.15,
		StopLossPct:   0.10,
		ClipUSD:       200,
	})
	ctx := context.Background()

	f.sim.SetPrice("UND-WIN", 0.30)
	m.OnGoal(ctx, underdogGoal(), underdogContext(0.25))
	require.Equal(t, 1, f.led.Snapshot().Open)

	second := underdogGoal()
	second.Score = schema.Score{Home: 0, Away: 2}
	mc := underdogContext(0.25)
	mc.Score = second.Score
	m.OnGoal(ctx, second, mc)

	assert.Equal(t, 1, f.led.Snapshot().Open)
	assert.Equal(t, 200.0, f.led.Snapshot().ExposureUSD)
}

func TestMomentumTakeProfitExit(t *testing.T) {
	f := newFixture(t)
	m := NewMomentum(f.deps, MomentumConfig{
		OddsThreshold: 0.45,
		TakeProfitPct: 0.15,
		StopLossPct:   0.10,
		ClipUSD:       200,
	})
	ctx := context.Background()

	f.sim.SetPrice("UND-WIN", 0.30)
	m.OnGoal(ctx, underdogGoal(), underdogContext(0.25))
	require.Equal(t, 1, f.led.Snapshot().Open)

	// below take-profit, position stays open
	f.sim.SetPrice("UND-WIN", 0.34)
	m.sweep(ctx)
	require.Equal(t, 1, f.led.Snapshot().Open)

	f.sim.SetPrice("UND-WIN", 0.348)
	m.sweep(ctx)
	require.Equal(t, 0, f.led.Snapshot().Open)
	// 200 * (0.348-0.30)/0.30
	assert.InDelta(t, 32.0, f.led.Realized(), 1e-9)
}

func TestMomentumStopLossExit(t *testing.T) {
	f := newFixture(t)
	m := NewMomentum(f.deps, MomentumConfig{
		OddsThreshold: 0.45,
		TakeProfitPct: 0.15,
		StopLossPct:   0.10,
		ClipUSD:       200,
	})
	ctx := context.Background()

	f.sim.SetPrice("UND-WIN", 0.30)
	m.OnGoal(ctx, underdogGoal(), underdogContext(0.25))

	f.sim.SetPrice("UND-WIN", 0.26)
	m.sweep(ctx)
	assert.Equal(t, 0, f.led.Snapshot().Open)
	assert.Less(t, f.led.Realized(), 0.0)
}

func TestMomentumMatchEndForceClose(t *testing.T) {
	f := newFixture(t)
	m := NewMomentum(f.deps, MomentumConfig{
		OddsThreshold: 0.45,
		TakeProfitPct: 0.15,
		StopLossPct:   0.10,
		ClipUSD:       200,
	})
	ctx := context.Background()

	f.sim.SetPrice("UND-WIN", 0.30)
	m.OnGoal(ctx, underdogGoal(), underdogContext(0.25))
	require.Equal(t, 1, f.led.Snapshot().Open)

	mc := underdogContext(0.25)
	mc.Phase = schema.PhaseFinished
	mc.ClockMin = 90
	m.OnMatchUpdate(ctx, mc)

	assert.Equal(t, 0, f.led.Snapshot().Open)
	assert.Nil(t, m.slots[501], "finished match should release its slot")
}

func TestMomentumReleasesSlotsAtMatchEnd(t *testing.T) {
	f := newFixture(t)
	m := NewMomentum(f.deps, MomentumConfig{
		OddsThreshold: 0.45,
		TakeProfitPct: 0.15,
		StopLossPct:   0.10,
		ClipUSD:       200,
	})
	ctx := context.Background()

	// armed but never traded
	m.OnMatchUpdate(ctx, underdogContext(0.25))
	require.NotNil(t, m.slots[501])

	mc := underdogContext(0.25)
	mc.Phase = schema.PhaseFinished
	m.OnMatchUpdate(ctx, mc)
	assert.Empty(t, m.slots)

	// a straggler update for the finished match arms nothing
	m.OnMatchUpdate(ctx, mc)
	assert.Empty(t, m.slots)
}

func TestMomentumRoutesByMarketVenue(t *testing.T) {
	reg := schema.NewRegistry()
	kalID, err := reg.AddVenue("kalbook")
	require.NoError(t, err)
	polyID, err := reg.AddVenue("polybook")
	require.NoError(t, err)
	require.NoError(t, reg.AddMarket("UND-WIN", polyID, 501, 20))

	poly := exchange.NewSimClient()
	kal := exchange.NewSimClient()
	venues := exchange.NewRouter()
	venues.Register(kalID, kal)
	venues.Register(polyID, poly)

	led := ledger.New(ledger.Config{
		MaxConcurrent:     5,
		ExposureCapUSD:    10000,
		DailyLossLimitUSD: 5000,
		MaxClipUSD:        500,
	}, nil, nil)
	m := NewMomentum(Deps{
		Ledger:   led,
		Venues:   venues,
		Registry: reg,
		Journal:  journal.Nop{},
	}, MomentumConfig{
		OddsThreshold: 0.45,
		TakeProfitPct: 0.15,
		StopLossPct:   0.10,
		ClipUSD:       200,
	})

	poly.SetPrice("UND-WIN", 0.30)
	m.OnGoal(context.Background(), underdogGoal(), underdogContext(0.25))

	require.Equal(t, 1, led.Snapshot().Open)
	assert.Len(t, poly.Orders(), 1, "order should land on the market's venue")
	assert.Empty(t, kal.Orders())
}

func TestMomentumAuthorizeDenyEndsSlot(t *testing.T) {
	f := newFixture(t)
	m := NewMomentum(f.deps, MomentumConfig{
		OddsThreshold: 0.45,
		TakeProfitPct: 0.15,
		StopLossPct:   0.10,
		ClipUSD:       20000, // over the exposure cap
	})

	f.sim.SetPrice("UND-WIN", 0.30)
	m.OnGoal(context.Background(), underdogGoal(), underdogContext(0.25))

	assert.Equal(t, 0, f.led.Snapshot().Open)
	assert.Equal(t, momentumDone, m.slots[501].state)
}
