package ensemble

import (
	"context"
	"math"

	"github.com/ignitex/ignitex/internal/data"
	"github.com/ignitex/ignitex/internal/domain"
	"github.com/ignitex/ignitex/internal/domain/indicators"
)

// MomentumStrategy votes with multi-window momentum confirmed by an EMA
// crossover. Strongest in trending regimes.
type MomentumStrategy struct{}

func (s *MomentumStrategy) Name() string           { return "momentum" }
func (s *MomentumStrategy) MinConfidence() float64 { return 55.0 }

func (s *MomentumStrategy) Evaluate(_ context.Context, snap domain.MarketSnapshot, ind *data.IndicatorCache) (domain.StrategyVote, bool, error) {
	if err := domain.ValidateCandles(snap.Candles); err != nil {
		return domain.StrategyVote{}, false, err
	}
	closes := domain.Closes(snap.Candles)
	if len(closes) < 31 {
		return domain.StrategyVote{}, false, nil
	}

	m5 := ind.GetOrCompute(snap.Symbol, "mom5", func() float64 { return indicators.Momentum(closes, 5) })
	m15 := ind.GetOrCompute(snap.Symbol, "mom15", func() float64 { return indicators.Momentum(closes, 15) })
	m30 := ind.GetOrCompute(snap.Symbol, "mom30", func() float64 { return indicators.Momentum(closes, 30) })
	emaFast := ind.GetOrCompute(snap.Symbol, "ema9", func() float64 { return indicators.EMA(closes, 9) })
	emaSlow := ind.GetOrCompute(snap.Symbol, "ema21", func() float64 { return indicators.EMA(closes, 21) })

	aligned := sameSign(m5, m15) && sameSign(m15, m30)
	if !aligned {
		return domain.StrategyVote{}, false, nil
	}

	dir := domain.Long
	patterns := []string{"momentum_alignment"}
	if m15 < 0 {
		dir = domain.Short
	}
	crossConfirms := (dir == domain.Long && emaFast > emaSlow) ||
		(dir == domain.Short && emaFast < emaSlow)
	if crossConfirms {
		patterns = append(patterns, "ema_cross")
	}

	// 1.5% on the 15-bar window saturates; crossover confirmation adds 10.
	strength := math.Min(math.Abs(m15)/1.5, 1.0)
	confidence := 50.0 + strength*35.0
	if crossConfirms {
		confidence += 10.0
	}
	if confidence < s.MinConfidence() {
		return domain.StrategyVote{}, false, nil
	}

	return vote(s.Name(), dir, math.Min(confidence, 100), patterns...), true, nil
}

func sameSign(a, b float64) bool {
	return (a >= 0 && b >= 0) || (a <= 0 && b <= 0)
}
