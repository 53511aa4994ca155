package ensemble

import (
	"context"
	"math"

	"github.com/ignitex/ignitex/internal/data"
	"github.com/ignitex/ignitex/internal/domain"
)

// OrderFlowStrategy reads the book imbalance: persistent bid-side pressure
// precedes upticks and vice versa. Emits NEUTRAL when the book is balanced
// but the strategy still has an opinion worth counting.
type OrderFlowStrategy struct{}

func (s *OrderFlowStrategy) Name() string           { return "order_flow" }
func (s *OrderFlowStrategy) MinConfidence() float64 { return 55.0 }

func (s *OrderFlowStrategy) Evaluate(_ context.Context, snap domain.MarketSnapshot, _ *data.IndicatorCache) (domain.StrategyVote, bool, error) {
	imb := snap.BookImbalance
	if math.IsNaN(imb) || math.Abs(imb) > 1 {
		return domain.StrategyVote{}, false, nil // aux feed unavailable or malformed
	}

	abs := math.Abs(imb)
	if abs < 0.15 {
		// Balanced book is information too: a neutral vote keeps a
		// low-conviction ensemble from tipping on noise.
		return vote(s.Name(), domain.Neutral, 55.0, "balanced_book"), true, nil
	}

	dir := domain.Long
	if imb < 0 {
		dir = domain.Short
	}
	confidence := 50.0 + math.Min((abs-0.15)/0.45, 1.0)*40.0
	if confidence < s.MinConfidence() {
		return domain.StrategyVote{}, false, nil
	}

	return vote(s.Name(), dir, math.Min(confidence, 100), "book_imbalance"), true, nil
}
