package ensemble

import (
	"context"
	"math"

	"github.com/ignitex/ignitex/internal/data"
	"github.com/ignitex/ignitex/internal/domain"
	"github.com/ignitex/ignitex/internal/domain/indicators"
)

// BreakoutStrategy votes when price clears the recent range on expanded
// volume.
type BreakoutStrategy struct{}

func (s *BreakoutStrategy) Name() string           { return "breakout" }
func (s *BreakoutStrategy) MinConfidence() float64 { return 58.0 }

const breakoutLookback = 20

func (s *BreakoutStrategy) Evaluate(_ context.Context, snap domain.MarketSnapshot, ind *data.IndicatorCache) (domain.StrategyVote, bool, error) {
	if err := domain.ValidateCandles(snap.Candles); err != nil {
		return domain.StrategyVote{}, false, err
	}
	if len(snap.Candles) < breakoutLookback+1 {
		return domain.StrategyVote{}, false, nil
	}

	window := snap.Candles[len(snap.Candles)-breakoutLookback-1 : len(snap.Candles)-1]
	rangeHigh, rangeLow := window[0].High, window[0].Low
	for _, c := range window {
		rangeHigh = math.Max(rangeHigh, c.High)
		rangeLow = math.Min(rangeLow, c.Low)
	}

	volumeRatio := ind.GetOrCompute(snap.Symbol, "volratio", func() float64 {
		return indicators.VolumeRatio(snap.Candles)
	})

	price := snap.LastPrice
	var dir domain.Direction
	var breach float64
	switch {
	case price > rangeHigh:
		dir = domain.Long
		breach = (price - rangeHigh) / rangeHigh * 100.0
	case price < rangeLow:
		dir = domain.Short
		breach = (rangeLow - price) / rangeLow * 100.0
	default:
		return domain.StrategyVote{}, false, nil
	}

	// A 0.5% breach saturates; volume expansion above 1.5x adds up to 15.
	confidence := 50.0 + math.Min(breach/0.5, 1.0)*30.0
	patterns := []string{"range_breakout"}
	if volumeRatio >= 1.5 {
		confidence += math.Min((volumeRatio-1.5)*10.0, 15.0)
		patterns = append(patterns, "volume_confirmation")
	}
	if confidence < s.MinConfidence() {
		return domain.StrategyVote{}, false, nil
	}

	return vote(s.Name(), dir, math.Min(confidence, 100), patterns...), true, nil
}
