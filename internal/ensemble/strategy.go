// Package ensemble runs the independent pattern detectors ("Alpha"). Each
// strategy is a pure function from snapshot to directional vote; reduction to
// a single decision happens downstream in consensus.
package ensemble

import (
	"context"

	"github.com/ignitex/ignitex/internal/data"
	"github.com/ignitex/ignitex/internal/domain"
)

// Strategy is the closed detector contract. Evaluate returns the vote and
// true, or abstains by returning false. Confidence below the strategy's own
// minimum must abstain rather than emit noise.
type Strategy interface {
	Name() string
	// MinConfidence is the abstain floor, tuned per strategy. Crypto data is
	// noisier than traditional markets, so floors sit at 55-60 rather than
	// the 65+ an equities desk would run.
	MinConfidence() float64
	Evaluate(ctx context.Context, snap domain.MarketSnapshot, ind *data.IndicatorCache) (domain.StrategyVote, bool, error)
}

// vote is a small helper building a StrategyVote with the caller's clock left
// to the runner.
func vote(name string, dir domain.Direction, confidence float64, patterns ...string) domain.StrategyVote {
	return domain.StrategyVote{
		Strategy:   name,
		Direction:  dir,
		Confidence: confidence,
		Patterns:   patterns,
	}
}
