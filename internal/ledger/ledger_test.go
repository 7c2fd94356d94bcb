package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goalbot/internal/schema"
)

func testConfig() Config {
	return Config{
		MaxConcurrent:     3,
		ExposureCapUSD:    1000,
		DailyLossLimitUSD: 200,
		MaxClipUSD:        100,
		ConflictPolicy:    ConflictExclusive,
	}
}

func testIntent(match schema.MatchID, size float64) schema.OrderIntent {
	return schema.OrderIntent{
		Strategy:   schema.StrategyMomentum,
		Match:      match,
		MarketID:   "TEAM-WIN",
		Venue:      1,
		Side:       schema.SideYes,
		LimitPrice: 0.30,
		SizeUSD:    size,
	}
}

func TestAuthorizeReservesPending(t *testing.T) {
	l := New(testConfig(), nil, nil)

	decision := l.Authorize(testIntent(1, 100))
	require.True(t, decision.Allowed())
	require.NotEmpty(t, decision.PositionID)

	summary := l.Snapshot()
	assert.Equal(t, 1, summary.Pending)
	assert.Equal(t, 100.0, summary.ExposureUSD)

	// reservation counts toward the conflict check
	second := l.Authorize(testIntent(1, 50))
	assert.False(t, second.Allowed())
	assert.Equal(t, schema.RiskReasonConflict, second.Reason)
}

func TestAuthorizeBadIntent(t *testing.T) {
	l := New(testConfig(), nil, nil)

	intent := testIntent(1, 0)
	decision := l.Authorize(intent)
	require.False(t, decision.Allowed())
	assert.Equal(t, schema.RiskReasonBadIntent, decision.Reason)

	intent = testIntent(2, 50)
	intent.MarketID = ""
	decision = l.Authorize(intent)
	assert.Equal(t, schema.RiskReasonBadIntent, decision.Reason)
}

func TestAuthorizeMaxConcurrent(t *testing.T) {
	l := New(testConfig(), nil, nil)

	for i := schema.MatchID(1); i <= 3; i++ {
		require.True(t, l.Authorize(testIntent(i, 50)).Allowed())
	}
	decision := l.Authorize(testIntent(4, 50))
	require.False(t, decision.Allowed())
	assert.Equal(t, schema.RiskReasonMaxConcurrent, decision.Reason)
}

func TestAuthorizeExposureCap(t *testing.T) {
	l := New(testConfig(), nil, nil)

	require.True(t, l.Authorize(testIntent(1, 600)).Allowed())
	decision := l.Authorize(testIntent(2, 500))
	require.False(t, decision.Allowed())
	assert.Equal(t, schema.RiskReasonExposureCap, decision.Reason)

	// exactly at the cap is fine
	assert.True(t, l.Authorize(testIntent(3, 400)).Allowed())
}

func TestAuthorizeClipCap(t *testing.T) {
	l := New(testConfig(), nil, nil)

	intent := testIntent(1, 150)
	intent.Strategy = schema.StrategyCompression
	decision := l.Authorize(intent)
	require.False(t, decision.Allowed())
	assert.Equal(t, schema.RiskReasonClipCap, decision.Reason)

	// the clip cap does not apply to momentum
	assert.True(t, l.Authorize(testIntent(2, 150)).Allowed())
}

func TestConflictPolicyAllowBoth(t *testing.T) {
	cfg := testConfig()
	cfg.ConflictPolicy = ConflictAllowBoth
	l := New(cfg, nil, nil)

	require.True(t, l.Authorize(testIntent(1, 50)).Allowed())

	other := testIntent(1, 50)
	other.Strategy = schema.StrategyCompression
	other.Side = schema.SideNo
	assert.True(t, l.Authorize(other).Allowed())

	sameSide := testIntent(1, 50)
	sameSide.Strategy = schema.StrategyCompression
	decision := l.Authorize(sameSide)
	require.False(t, decision.Allowed())
	assert.Equal(t, schema.RiskReasonConflict, decision.Reason)
}

func TestReportRejectReleasesReservation(t *testing.T) {
	l := New(testConfig(), nil, nil)

	decision := l.Authorize(testIntent(1, 100))
	require.True(t, decision.Allowed())
	require.NoError(t, l.ReportReject(decision.PositionID))

	assert.Equal(t, 0.0, l.Snapshot().ExposureUSD)
	assert.True(t, l.Authorize(testIntent(1, 100)).Allowed())
}

func TestReportCloseRealizesPnLOnce(t *testing.T) {
	l := New(testConfig(), nil, nil)

	decision := l.Authorize(testIntent(1, 100))
	require.True(t, decision.Allowed())
	_, err := l.ReportOpen(decision.PositionID, 0.40, 0.46, 0.36)
	require.NoError(t, err)

	pos, err := l.ReportClose(decision.PositionID, 0.46, schema.CloseTakeProfit)
	require.NoError(t, err)
	assert.InDelta(t, 15.0, pos.RealizedPnL, 1e-9)
	assert.InDelta(t, 15.0, l.Realized(), 1e-9)

	_, err = l.ReportClose(decision.PositionID, 0.46, schema.CloseTakeProfit)
	assert.ErrorIs(t, err, ErrUnknownPosition)
	assert.InDelta(t, 15.0, l.Realized(), 1e-9)
}

func TestDailyLossLimitLatches(t *testing.T) {
	l := New(testConfig(), nil, nil)

	decision := l.Authorize(testIntent(1, 410))
	require.True(t, decision.Allowed())
	_, err := l.ReportOpen(decision.PositionID, 0.40, 0, 0)
	require.NoError(t, err)

	// lose 205 on a 410 position: 410 * (0.20-0.40)/0.40
	pos, err := l.ReportClose(decision.PositionID, 0.20, schema.CloseStopLoss)
	require.NoError(t, err)
	require.InDelta(t, -205.0, pos.RealizedPnL, 1e-9)
	require.True(t, l.Halted())

	// even a tiny order is denied while halted
	small := l.Authorize(testIntent(2, 5))
	require.False(t, small.Allowed())
	assert.Equal(t, schema.RiskReasonHalted, small.Reason)

	// halt persists until reset, then trading resumes
	l.Reset()
	assert.False(t, l.Halted())
	assert.True(t, l.Authorize(testIntent(2, 5)).Allowed())
}

func TestSeedRealizedLatchesWhenOverLimit(t *testing.T) {
	l := New(testConfig(), nil, nil)
	l.SeedRealized(-250)
	assert.True(t, l.Halted())
	assert.InDelta(t, -250.0, l.Realized(), 1e-9)
}
