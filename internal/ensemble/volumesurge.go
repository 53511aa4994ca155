package ensemble

import (
	"context"
	"math"

	"github.com/ignitex/ignitex/internal/data"
	"github.com/ignitex/ignitex/internal/domain"
	"github.com/ignitex/ignitex/internal/domain/indicators"
)

// VolumeSurgeStrategy votes in the direction of an outsized volume bar. Big
// prints with directional closes tend to continue over short horizons.
type VolumeSurgeStrategy struct{}

func (s *VolumeSurgeStrategy) Name() string           { return "volume_surge" }
func (s *VolumeSurgeStrategy) MinConfidence() float64 { return 57.0 }

func (s *VolumeSurgeStrategy) Evaluate(_ context.Context, snap domain.MarketSnapshot, ind *data.IndicatorCache) (domain.StrategyVote, bool, error) {
	if err := domain.ValidateCandles(snap.Candles); err != nil {
		return domain.StrategyVote{}, false, err
	}
	if len(snap.Candles) < 10 {
		return domain.StrategyVote{}, false, nil
	}

	ratio := ind.GetOrCompute(snap.Symbol, "volratio", func() float64 {
		return indicators.VolumeRatio(snap.Candles)
	})
	if ratio < 2.0 {
		return domain.StrategyVote{}, false, nil
	}

	last := snap.Candles[len(snap.Candles)-1]
	body := last.Close - last.Open
	span := last.High - last.Low
	if span <= 0 || math.Abs(body)/span < 0.5 {
		return domain.StrategyVote{}, false, nil // indecisive bar despite the volume
	}

	dir := domain.Long
	if body < 0 {
		dir = domain.Short
	}
	confidence := 50.0 + math.Min((ratio-2.0)*8.0, 30.0) + (math.Abs(body)/span)*15.0
	if confidence < s.MinConfidence() {
		return domain.StrategyVote{}, false, nil
	}

	return vote(s.Name(), dir, math.Min(confidence, 100), "volume_surge", "directional_bar"), true, nil
}
