// Package gate is the final accept/reject filter ("Delta"): an
// online-trained win-probability model plus an adaptive quality floor and a
// per-strategy reputation veto. Every rejection names which of the three
// checks failed, because operators tune each threshold independently.
package gate

import (
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignitex/ignitex/internal/domain"
	"github.com/ignitex/ignitex/internal/reputation"
)

// Params are the hot-reloadable gate thresholds.
type Params struct {
	WinProbBar        map[string]float64 // keyed by regime, 0-1
	DefaultWinProbBar float64
	MinQualityScore   float64
	MinReputation     float64 // 0 allows cold start
}

// WinProbBarFor resolves the regime-adjusted ML bar.
func (p Params) WinProbBarFor(regime domain.Regime) float64 {
	if bar, ok := p.WinProbBar[string(regime)]; ok {
		return bar
	}
	if p.DefaultWinProbBar > 0 {
		return p.DefaultWinProbBar
	}
	return 0.52
}

// Gate scores admitted decisions and produces the authoritative
// FilteredSignal record, accepted or not.
type Gate struct {
	scorer *LogisticScorer
	rep    *reputation.Store
}

// NewGate wires the scorer and the shared reputation store.
func NewGate(scorer *LogisticScorer, rep *reputation.Store) *Gate {
	return &Gate{scorer: scorer, rep: rep}
}

// Scorer exposes the model for the continuous learner.
func (g *Gate) Scorer() *LogisticScorer { return g.scorer }

// Evaluate runs the three independent checks. The returned FilteredSignal is
// always complete — rejected signals carry the reason and are persisted by
// the caller, never dropped.
func (g *Gate) Evaluate(d domain.AdmittedDecision, snap domain.MarketSnapshot, p Params) domain.FilteredSignal {
	levels := ComputeLevels(snap, d.Direction)
	features := BuildFeatures(d, snap, levels.RiskReward)
	winProb := g.scorer.Predict(features)
	quality := qualityScore(features)
	originator := originatorOf(d)

	signal := domain.FilteredSignal{
		ID:               uuid.New().String(),
		AdmittedDecision: d,
		Originator:       originator,
		QualityScore:     quality,
		WinProbability:   winProb,
		Entry:            levels.Entry,
		Stop:             levels.Stop,
		Targets:          levels.Targets,
		RiskReward:       levels.RiskReward,
		Features:         features.Vector(),
		FilteredAt:       time.Now(),
	}

	var failures []string
	if quality < p.MinQualityScore {
		failures = append(failures, "quality_below_minimum")
	}
	bar := p.WinProbBarFor(d.Regime.Regime)
	if winProb < bar {
		failures = append(failures, "ml_probability_below_bar")
	}
	winRate, samples := g.rep.WinRate(originator, d.Regime.Regime)
	if samples > 0 && winRate < p.MinReputation {
		failures = append(failures, "reputation_veto")
	}

	if len(failures) > 0 {
		signal.Rejected = true
		signal.RejectReason = strings.Join(failures, ",")
	}
	return signal
}

// BuildFeatures normalizes the decision into the scorer's feature vector.
func BuildFeatures(d domain.AdmittedDecision, snap domain.MarketSnapshot, riskReward float64) Features {
	patternStrength := 0.0
	count := 0
	for _, v := range d.Votes {
		if v.Direction == d.Direction {
			patternStrength += v.Confidence
			count++
		}
	}
	if count > 0 {
		patternStrength /= float64(count) * 100.0
	}

	return Features{
		PatternStrength: clamp01(patternStrength),
		Agreement:       clamp01(d.Agreement),
		RiskReward:      clamp01(riskReward / 3.0),
		Liquidity:       liquidityScore(snap.Volume24h),
		DataQuality:     clamp01(snap.DataQuality / 100.0),
		RegimeFit:       regimeFit(d.Regime.Regime, d.Direction),
	}
}

// qualityScore blends the features into the 0-100 operator-facing score.
func qualityScore(f Features) float64 {
	score := f.PatternStrength*0.30 +
		f.Agreement*0.25 +
		f.RiskReward*0.15 +
		f.Liquidity*0.10 +
		f.DataQuality*0.10 +
		f.RegimeFit*0.10
	return clamp01(score) * 100.0
}

// regimeFit scores how well the direction suits the regime.
func regimeFit(regime domain.Regime, dir domain.Direction) float64 {
	switch regime {
	case domain.TrendingUp:
		if dir == domain.Long {
			return 1.0
		}
		return 0.25
	case domain.TrendingDown:
		if dir == domain.Short {
			return 1.0
		}
		return 0.25
	case domain.VolatileBreakout:
		return 0.80
	case domain.Accumulation:
		if dir == domain.Long {
			return 0.75
		}
		return 0.40
	case domain.RangingLowVol:
		return 0.60
	case domain.RangingHighVol:
		return 0.45
	default:
		return 0.50
	}
}

// liquidityScore saturates at $50M daily volume.
func liquidityScore(volume24h float64) float64 {
	if volume24h <= 0 {
		return 0
	}
	return clamp01(math.Log10(volume24h) / math.Log10(50_000_000))
}

// originatorOf picks the highest-confidence agreeing strategy; the
// reputation veto and outcome attribution key off it.
func originatorOf(d domain.AdmittedDecision) string {
	best := ""
	bestConf := -1.0
	for _, v := range d.Votes {
		if v.Direction == d.Direction && v.Confidence > bestConf {
			best = v.Strategy
			bestConf = v.Confidence
		}
	}
	return best
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
