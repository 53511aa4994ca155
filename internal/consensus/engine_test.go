package consensus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignitex/ignitex/internal/domain"
	"github.com/ignitex/ignitex/internal/reputation"
)

func testParams() Params {
	return Params{
		MinAgreement: map[string]float64{
			"trending_up":       0.42,
			"trending_down":     0.42,
			"volatile_breakout": 0.42,
			"choppy":            0.58,
			"ranging_high_vol":  0.58,
		},
		DefaultMinAgreement: 0.50,
	}
}

func trendingUp() domain.RegimeState {
	return domain.RegimeState{Regime: domain.TrendingUp, Confidence: 75}
}

func vote(strategy string, dir domain.Direction, conf float64) domain.StrategyVote {
	return domain.StrategyVote{Strategy: strategy, Direction: dir, Confidence: conf}
}

func TestWeightsSumToOne(t *testing.T) {
	rep := reputation.NewStore()
	// Uneven history across strategies.
	for i := 0; i < 15; i++ {
		rep.Record("momentum", domain.TrendingUp, domain.ResultWin)
	}
	for i := 0; i < 8; i++ {
		rep.Record("breakout", domain.TrendingUp, domain.ResultLoss)
	}
	e := NewEngine(rep)

	votes := []domain.StrategyVote{
		vote("momentum", domain.Long, 80),
		vote("breakout", domain.Long, 70),
		vote("order_flow", domain.Short, 60),
	}
	weights := e.Weights(votes, domain.TrendingUp)

	sum := 0.0
	for _, w := range weights {
		sum += w
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
	// Winning history buys weight, losing history costs it.
	assert.Greater(t, weights["momentum"], weights["order_flow"])
	assert.Less(t, weights["breakout"], weights["order_flow"])
}

func TestDecideInsufficientVotes(t *testing.T) {
	e := NewEngine(reputation.NewStore())

	_, ok, reason := e.Decide("BTCUSD", nil, trendingUp(), testParams())
	assert.False(t, ok)
	assert.Equal(t, "insufficient_votes", reason)

	_, ok, reason = e.Decide("BTCUSD",
		[]domain.StrategyVote{vote("momentum", domain.Long, 90)}, trendingUp(), testParams())
	assert.False(t, ok)
	assert.Equal(t, "insufficient_votes", reason)
}

func TestDecideNoDirectionalVotes(t *testing.T) {
	e := NewEngine(reputation.NewStore())
	votes := []domain.StrategyVote{
		vote("order_flow", domain.Neutral, 55),
		vote("funding", domain.Neutral, 60),
	}
	_, ok, reason := e.Decide("BTCUSD", votes, trendingUp(), testParams())
	assert.False(t, ok)
	assert.Equal(t, "no_directional_votes", reason)
}

func TestDecideUnanimousLong(t *testing.T) {
	e := NewEngine(reputation.NewStore())
	votes := []domain.StrategyVote{
		vote("momentum", domain.Long, 80),
		vote("breakout", domain.Long, 72),
	}
	d, ok, reason := e.Decide("BTCUSD", votes, trendingUp(), testParams())
	require.True(t, ok, reason)
	assert.Equal(t, domain.Long, d.Direction)
	assert.InDelta(t, 1.0, d.Agreement, 1e-9)
	assert.InDelta(t, 76.0, d.Confidence, 1e-9) // uniform weights, cold reputation
	assert.Equal(t, 2, d.AgreeingVotes)
}

func TestDecideBelowAgreementBarInChop(t *testing.T) {
	e := NewEngine(reputation.NewStore())
	votes := []domain.StrategyVote{
		vote("momentum", domain.Long, 70),
		vote("breakout", domain.Short, 65),
	}
	regime := domain.RegimeState{Regime: domain.Choppy, Confidence: 70}

	d, ok, reason := e.Decide("BTCUSD", votes, regime, testParams())
	assert.False(t, ok)
	assert.Equal(t, "below_agreement_bar", reason)
	// The decision is still populated for telemetry.
	assert.Equal(t, domain.Long, d.Direction)
	assert.Less(t, d.Agreement, 0.58)
}

func TestDecideSameSplitPassesRelaxedTrendBar(t *testing.T) {
	e := NewEngine(reputation.NewStore())
	votes := []domain.StrategyVote{
		vote("momentum", domain.Long, 70),
		vote("breakout", domain.Short, 65),
	}
	// Identical vote split passes in a trend because the bar adapts.
	_, ok, reason := e.Decide("BTCUSD", votes, trendingUp(), testParams())
	assert.True(t, ok, reason)
}

func TestNeutralVoteScalesDenominatorByOwnConfidence(t *testing.T) {
	e := NewEngine(reputation.NewStore())
	withNeutral := []domain.StrategyVote{
		vote("momentum", domain.Long, 80),
		vote("breakout", domain.Long, 80),
		vote("order_flow", domain.Neutral, 55),
	}
	d, ok, _ := e.Decide("BTCUSD", withNeutral, trendingUp(), testParams())
	require.True(t, ok)
	// A hesitant neutral dilutes agreement by conf/100 of its weighted
	// confidence, not its full weight.
	expected := (80.0 + 80.0) / (80.0 + 80.0 + 55.0*0.55)
	assert.InDelta(t, expected, d.Agreement, 1e-9)
	assert.Greater(t, d.Agreement, 0.80)
}

func TestTierTable(t *testing.T) {
	cases := []struct {
		name      string
		agreement float64
		conf      float64
		agreeing  int
		want      domain.QualityTier
	}{
		{"three_strong", 0.80, 85, 3, domain.TierHigh},
		{"three_but_low_agreement", 0.60, 85, 3, domain.TierMedium},
		{"two_solid", 0.70, 65, 2, domain.TierMedium},
		{"two_strong_capped_by_count", 0.95, 95, 2, domain.TierMedium},
		{"one_vote_never_tiers", 0.99, 99, 1, domain.TierLow},
		{"weak_metric", 0.50, 52, 2, domain.TierLow},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tierFor(tc.agreement, tc.conf, tc.agreeing))
		})
	}
}
