package gate

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignitex/ignitex/internal/domain"
	"github.com/ignitex/ignitex/internal/reputation"
)

func testGateParams() Params {
	return Params{
		WinProbBar: map[string]float64{
			"trending_up":      0.45,
			"trending_down":    0.45,
			"choppy":           0.58,
			"ranging_high_vol": 0.58,
		},
		DefaultWinProbBar: 0.52,
		MinQualityScore:   55.0,
		MinReputation:     0.0,
	}
}

func strongDecision() domain.AdmittedDecision {
	return domain.AdmittedDecision{
		ConsensusDecision: domain.ConsensusDecision{
			Symbol:     "BTCUSD",
			Direction:  domain.Long,
			Confidence: 82,
			Agreement:  0.85,
			Tier:       domain.TierHigh,
			Regime:     domain.RegimeState{Regime: domain.TrendingUp, Confidence: 75},
			Votes: []domain.StrategyVote{
				{Strategy: "momentum", Direction: domain.Long, Confidence: 84},
				{Strategy: "order_flow", Direction: domain.Long, Confidence: 78},
				{Strategy: "mean_reversion", Direction: domain.Short, Confidence: 60},
			},
		},
		Priority:   domain.PriorityHigh,
		AdmittedAt: time.Now(),
	}
}

func strongSnapshot() domain.MarketSnapshot {
	candles := make([]domain.Candle, 30)
	price := 50000.0
	now := time.Now()
	for i := range candles {
		open := price
		close := open * 1.0005
		candles[i] = domain.Candle{
			OpenTime: now.Add(time.Duration(i-30) * time.Minute),
			Open:     open,
			High:     close * 1.001,
			Low:      open * 0.999,
			Close:    close,
			Volume:   2000,
		}
		price = close
	}
	return domain.MarketSnapshot{
		Symbol:      "BTCUSD",
		LastPrice:   price,
		Volume24h:   40_000_000,
		Candles:     candles,
		DataQuality: 90,
		Timestamp:   now,
	}
}

func TestEvaluateAcceptsStrongSignal(t *testing.T) {
	g := NewGate(NewLogisticScorer(0.05), reputation.NewStore())

	sig := g.Evaluate(strongDecision(), strongSnapshot(), testGateParams())
	assert.False(t, sig.Rejected, sig.RejectReason)
	assert.NotEmpty(t, sig.ID)
	assert.Equal(t, "momentum", sig.Originator)
	assert.GreaterOrEqual(t, sig.QualityScore, 55.0)
	assert.Greater(t, sig.WinProbability, 0.45)
	assert.Len(t, sig.Targets, 3)
	assert.Greater(t, sig.Entry, sig.Stop)
	assert.Less(t, sig.Targets[0], sig.Targets[1])
	assert.Less(t, sig.Targets[1], sig.Targets[2])
	assert.Len(t, sig.Features, 6)
}

func TestEvaluateRejectedSignalIsCompleteRecord(t *testing.T) {
	g := NewGate(NewLogisticScorer(0.05), reputation.NewStore())
	params := testGateParams()
	params.MinQualityScore = 99.0 // force a quality rejection

	sig := g.Evaluate(strongDecision(), strongSnapshot(), params)
	require.True(t, sig.Rejected)
	assert.Contains(t, sig.RejectReason, "quality_below_minimum")
	// Rejected signals still carry complete levels and scores for audit.
	assert.NotEmpty(t, sig.ID)
	assert.Greater(t, sig.Entry, 0.0)
	assert.Greater(t, sig.QualityScore, 0.0)
}

func TestEvaluateReportsEveryFailedCheck(t *testing.T) {
	rep := reputation.NewStore()
	// A losing originator history triggers the reputation veto.
	for i := 0; i < 10; i++ {
		rep.Record("momentum", domain.TrendingUp, domain.ResultLoss)
	}
	g := NewGate(NewLogisticScorer(0.05), rep)
	params := testGateParams()
	params.MinQualityScore = 99.0
	params.WinProbBar["trending_up"] = 0.99
	params.MinReputation = 0.30

	sig := g.Evaluate(strongDecision(), strongSnapshot(), params)
	require.True(t, sig.Rejected)
	failures := strings.Split(sig.RejectReason, ",")
	assert.Len(t, failures, 3)
	assert.Contains(t, failures, "quality_below_minimum")
	assert.Contains(t, failures, "ml_probability_below_bar")
	assert.Contains(t, failures, "reputation_veto")
}

func TestReputationVetoRequiresHistory(t *testing.T) {
	g := NewGate(NewLogisticScorer(0.05), reputation.NewStore())
	params := testGateParams()
	params.MinReputation = 0.90 // brutal bar, but no history yet

	sig := g.Evaluate(strongDecision(), strongSnapshot(), params)
	assert.NotContains(t, sig.RejectReason, "reputation_veto")
}

func TestBuildFeaturesNormalized(t *testing.T) {
	d := strongDecision()
	f := BuildFeatures(d, strongSnapshot(), 2.0)

	for i, v := range f.Vector() {
		assert.GreaterOrEqual(t, v, 0.0, "feature %d", i)
		assert.LessOrEqual(t, v, 1.0, "feature %d", i)
	}
	// Only agreeing votes count toward pattern strength.
	assert.InDelta(t, (84.0+78.0)/200.0, f.PatternStrength, 1e-9)
	assert.Equal(t, 1.0, f.RegimeFit) // long with the uptrend
}

func TestComputeLevelsLongAndShort(t *testing.T) {
	snap := strongSnapshot()

	long := ComputeLevels(snap, domain.Long)
	assert.Less(t, long.Stop, long.Entry)
	assert.Greater(t, long.Targets[0], long.Entry)
	assert.InDelta(t, 2.0, long.RiskReward, 1e-9)

	short := ComputeLevels(snap, domain.Short)
	assert.Greater(t, short.Stop, short.Entry)
	assert.Less(t, short.Targets[0], short.Entry)
	assert.InDelta(t, 2.0, short.RiskReward, 1e-9)
}

func TestScorerTrainsTowardLabels(t *testing.T) {
	s := NewLogisticScorer(0.10)
	f := Features{PatternStrength: 0.8, Agreement: 0.9, RiskReward: 0.7, Liquidity: 0.8, DataQuality: 0.9, RegimeFit: 1.0}

	before := s.Predict(f)
	for i := 0; i < 50; i++ {
		s.Train(f, 1.0)
	}
	after := s.Predict(f)
	assert.Greater(t, after, before)

	for i := 0; i < 200; i++ {
		s.Train(f, 0.0)
	}
	assert.Less(t, s.Predict(f), after)

	accuracy, samples := s.Accuracy()
	assert.Equal(t, 250, samples)
	assert.False(t, math.IsNaN(accuracy))
}

func TestScorerTimeoutLabelSkipsAccuracy(t *testing.T) {
	s := NewLogisticScorer(0.05)
	f := Features{Agreement: 0.5}
	s.Train(f, 0.5)
	_, samples := s.Accuracy()
	assert.Equal(t, 0, samples)
}

func TestFeaturesFromVectorRoundTrip(t *testing.T) {
	f := Features{0.1, 0.2, 0.3, 0.4, 0.5, 0.6}
	assert.Equal(t, f, FeaturesFromVector(f.Vector()))
	// Short vectors zero-fill.
	assert.Equal(t, Features{PatternStrength: 0.9}, FeaturesFromVector([]float64{0.9}))
}
