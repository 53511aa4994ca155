package ensemble

import (
	"context"
	"math"

	"github.com/ignitex/ignitex/internal/data"
	"github.com/ignitex/ignitex/internal/domain"
	"github.com/ignitex/ignitex/internal/domain/indicators"
)

// MeanReversionStrategy fades RSI extremes when price is stretched away from
// its moving average. Complements the momentum detectors in ranging regimes.
type MeanReversionStrategy struct{}

func (s *MeanReversionStrategy) Name() string           { return "mean_reversion" }
func (s *MeanReversionStrategy) MinConfidence() float64 { return 56.0 }

func (s *MeanReversionStrategy) Evaluate(_ context.Context, snap domain.MarketSnapshot, ind *data.IndicatorCache) (domain.StrategyVote, bool, error) {
	if err := domain.ValidateCandles(snap.Candles); err != nil {
		return domain.StrategyVote{}, false, err
	}
	closes := domain.Closes(snap.Candles)
	if len(closes) < 21 {
		return domain.StrategyVote{}, false, nil
	}

	rsi := ind.GetOrCompute(snap.Symbol, "rsi14", func() float64 {
		return indicators.RSI(closes, 14).Value
	})
	ema20 := ind.GetOrCompute(snap.Symbol, "ema20", func() float64 {
		return indicators.EMA(closes, 20)
	})

	stretch := 0.0
	if ema20 > 0 {
		stretch = (snap.LastPrice - ema20) / ema20 * 100.0
	}

	var dir domain.Direction
	var extremity float64
	switch {
	case rsi <= 30 && stretch < 0:
		dir = domain.Long
		extremity = (30 - rsi) / 30
	case rsi >= 70 && stretch > 0:
		dir = domain.Short
		extremity = (rsi - 70) / 30
	default:
		return domain.StrategyVote{}, false, nil
	}

	confidence := 52.0 + extremity*28.0 + math.Min(math.Abs(stretch)/1.0, 1.0)*12.0
	if confidence < s.MinConfidence() {
		return domain.StrategyVote{}, false, nil
	}

	return vote(s.Name(), dir, math.Min(confidence, 100), "rsi_extreme", "ema_stretch"), true, nil
}
