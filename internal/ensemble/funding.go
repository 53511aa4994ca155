package ensemble

import (
	"context"
	"math"

	"github.com/ignitex/ignitex/internal/data"
	"github.com/ignitex/ignitex/internal/domain"
)

// FundingStrategy fades crowded perpetual positioning: deeply negative
// funding means shorts pay to stay short, which squeezes upward, and the
// reverse for euphoric longs.
type FundingStrategy struct{}

func (s *FundingStrategy) Name() string           { return "funding" }
func (s *FundingStrategy) MinConfidence() float64 { return 60.0 }

// Funding beyond ±0.05% per interval counts as crowded for this asset class.
const fundingExtreme = 0.0005

func (s *FundingStrategy) Evaluate(_ context.Context, snap domain.MarketSnapshot, _ *data.IndicatorCache) (domain.StrategyVote, bool, error) {
	f := snap.FundingRate
	if math.IsNaN(f) || f == 0 {
		return domain.StrategyVote{}, false, nil // aux source frequently unavailable
	}
	if math.Abs(f) < fundingExtreme {
		return domain.StrategyVote{}, false, nil
	}

	dir := domain.Long // crowded shorts -> squeeze up
	if f > 0 {
		dir = domain.Short
	}
	confidence := 55.0 + math.Min((math.Abs(f)/fundingExtreme-1.0)*15.0, 35.0)
	if confidence < s.MinConfidence() {
		return domain.StrategyVote{}, false, nil
	}

	return vote(s.Name(), dir, math.Min(confidence, 100), "funding_extreme"), true, nil
}
