// Package consensus aggregates ensemble votes into a single directional
// decision ("Beta"). Weights blend a uniform base with each strategy's live
// reputation in the current regime, and the emission bar adapts to regime:
// relaxed in strong trends, strict in chop.
package consensus

import (
	"math"
	"time"

	"github.com/ignitex/ignitex/internal/domain"
	"github.com/ignitex/ignitex/internal/reputation"
)

// Params are the hot-reloadable consensus thresholds.
type Params struct {
	MinAgreement        map[string]float64 // keyed by regime, 0-1
	DefaultMinAgreement float64
}

// MinAgreementFor resolves the regime-specific emission bar.
func (p Params) MinAgreementFor(regime domain.Regime) float64 {
	if bar, ok := p.MinAgreement[string(regime)]; ok {
		return bar
	}
	if p.DefaultMinAgreement > 0 {
		return p.DefaultMinAgreement
	}
	return 0.50
}

// Engine computes weighted consensus decisions.
type Engine struct {
	rep *reputation.Store
}

// NewEngine creates a consensus engine reading the shared reputation store.
func NewEngine(rep *reputation.Store) *Engine {
	return &Engine{rep: rep}
}

// Weights returns the normalized per-strategy weights for the vote set:
// uniform base scaled by the (strategy, regime) reputation multiplier, then
// normalized to sum to 1.
func (e *Engine) Weights(votes []domain.StrategyVote, regime domain.Regime) map[string]float64 {
	weights := make(map[string]float64, len(votes))
	total := 0.0
	for _, v := range votes {
		w := e.rep.Multiplier(v.Strategy, regime)
		weights[v.Strategy] = w
		total += w
	}
	if total <= 0 {
		return weights
	}
	for k := range weights {
		weights[k] /= total
	}
	return weights
}

// Decide reduces the vote list to one decision. Returns false with a reason
// when the votes are trivial or agreement is below the regime bar; the
// decision is still returned for telemetry in that case.
func (e *Engine) Decide(symbol string, votes []domain.StrategyVote, regime domain.RegimeState, p Params) (domain.ConsensusDecision, bool, string) {
	decision := domain.ConsensusDecision{
		Symbol:    symbol,
		Direction: domain.Neutral,
		Tier:      domain.TierLow,
		Regime:    regime,
		Votes:     votes,
		Timestamp: time.Now(),
	}

	if len(votes) < 2 {
		return decision, false, "insufficient_votes"
	}

	weights := e.Weights(votes, regime.Regime)

	var longSum, shortSum, totalSum float64
	var longWeight, shortWeight float64
	longCount, shortCount := 0, 0
	for _, v := range votes {
		w := weights[v.Strategy]
		contribution := w * v.Confidence
		// Neutral votes scale the denominator by their own confidence so a
		// hesitant neutral cannot drown out two convinced directional votes.
		switch v.Direction {
		case domain.Long:
			longSum += contribution
			longWeight += w
			longCount++
			totalSum += contribution
		case domain.Short:
			shortSum += contribution
			shortWeight += w
			shortCount++
			totalSum += contribution
		default:
			totalSum += contribution * (v.Confidence / 100.0)
		}
	}

	if longCount == 0 && shortCount == 0 {
		return decision, false, "no_directional_votes"
	}
	if totalSum <= 0 {
		return decision, false, "zero_weighted_confidence"
	}

	winSum, winWeight, winCount := longSum, longWeight, longCount
	decision.Direction = domain.Long
	if shortSum > longSum {
		winSum, winWeight, winCount = shortSum, shortWeight, shortCount
		decision.Direction = domain.Short
	}

	decision.Agreement = winSum / totalSum
	if winWeight > 0 {
		decision.Confidence = winSum / winWeight
	}
	decision.AgreeingVotes = winCount
	decision.Tier = tierFor(decision.Agreement, decision.Confidence, winCount)

	bar := p.MinAgreementFor(regime.Regime)
	if decision.Agreement < bar {
		return decision, false, "below_agreement_bar"
	}
	return decision, true, ""
}

// tierFor is the deterministic tier table. Both the blended metric and an
// independent agreeing-strategy count gate each tier; no tier is reachable
// with fewer than 2 agreeing strategies. The count caps at 3 on purpose:
// auxiliary data sources drop often enough that requiring 4+ simultaneous
// detectors would make HIGH unreachable in practice.
func tierFor(agreement, confidence float64, agreeing int) domain.QualityTier {
	metric := math.Min(confidence, agreement*100.0)
	switch {
	case agreeing >= 3 && metric >= 70.0:
		return domain.TierHigh
	case agreeing >= 2 && metric >= 55.0:
		return domain.TierMedium
	default:
		return domain.TierLow
	}
}
