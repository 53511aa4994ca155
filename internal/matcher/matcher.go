// Package matcher admits or rejects consensus decisions based on regime
// compatibility ("Gamma"). Matching is a pure function of the decision and
// its regime snapshot: same inputs, same verdict, no persisted state. The
// coordinator recomputes the regime in the same scan that produced the
// decision, so the rules below never see placeholder values — a stale or
// defaulted regime here would wrongly reject nearly every MEDIUM/LOW tier
// through the low-confidence rule.
package matcher

import (
	"fmt"
	"time"

	"github.com/ignitex/ignitex/internal/domain"
)

// Rules are the hot-reloadable admission thresholds.
type Rules struct {
	MinRegimeConfidence float64 // below this only HIGH tier passes
	LowVolMax           float64 // annualized vol treated as calm
	StrongTrendMin      float64 // trend strength opening the MEDIUM/LOW path
	MediumConfidenceMin float64 // decision confidence floor for that path
}

// DefaultRules mirrors the shipped configuration.
func DefaultRules() Rules {
	return Rules{
		MinRegimeConfidence: 60.0,
		LowVolMax:           0.60,
		StrongTrendMin:      25.0,
		MediumConfidenceMin: 55.0,
	}
}

// Match evaluates the admission rules in priority order. Returns the admitted
// decision, or false with a structured rejection reason for the audit trail.
func Match(d domain.ConsensusDecision, r Rules) (domain.AdmittedDecision, bool, string) {
	admit := func(priority domain.Priority, reason string) (domain.AdmittedDecision, bool, string) {
		return domain.AdmittedDecision{
			ConsensusDecision: d,
			Priority:          priority,
			AdmissionReason:   reason,
			AdmittedAt:        time.Now(),
		}, true, ""
	}

	regime := d.Regime

	// Rule 1: high-volatility regimes only trust the top tier.
	if regime.Regime.HighVolatility() {
		if d.Tier == domain.TierHigh {
			return admit(domain.PriorityHigh, "high_tier_in_high_volatility")
		}
		return domain.AdmittedDecision{}, false,
			fmt.Sprintf("tier_%s_rejected_in_high_volatility_regime_%s", d.Tier, regime.Regime)
	}

	// Rule 2: an uncertain regime read means the regime-conditional rules
	// below cannot be trusted; only HIGH tier passes.
	if regime.Confidence < r.MinRegimeConfidence {
		if d.Tier == domain.TierHigh {
			return admit(domain.PriorityHigh, "high_tier_despite_low_regime_confidence")
		}
		return domain.AdmittedDecision{}, false,
			fmt.Sprintf("tier_%s_rejected_at_regime_confidence_%.0f", d.Tier, regime.Confidence)
	}

	// Rule 3: calm market with a strong trend is the friendliest setup —
	// lower tiers ride along at MEDIUM priority.
	if regime.Volatility <= r.LowVolMax && regime.TrendStrength >= r.StrongTrendMin {
		if d.Tier == domain.TierHigh {
			return admit(domain.PriorityHigh, "high_tier_in_calm_trend")
		}
		if d.Confidence >= r.MediumConfidenceMin {
			return admit(domain.PriorityMedium, "lower_tier_in_calm_trend")
		}
		return domain.AdmittedDecision{}, false,
			fmt.Sprintf("confidence_%.0f_below_calm_trend_floor", d.Confidence)
	}

	// Rule 4: default/uncertain conditions admit only the top tier.
	if d.Tier == domain.TierHigh {
		return admit(domain.PriorityHigh, "high_tier_default")
	}
	return domain.AdmittedDecision{}, false,
		fmt.Sprintf("tier_%s_rejected_in_default_conditions", d.Tier)
}
