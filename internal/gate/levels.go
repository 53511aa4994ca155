package gate

import (
	"github.com/ignitex/ignitex/internal/domain"
	"github.com/ignitex/ignitex/internal/domain/indicators"
)

// Levels are the trade geometry attached to an accepted signal.
type Levels struct {
	Entry      float64
	Stop       float64
	Targets    []float64 // nearest first
	RiskReward float64
}

// ATR multiples for stop and the three target tiers.
const (
	stopATR    = 1.5
	target1ATR = 1.5
	target2ATR = 3.0
	target3ATR = 4.5
)

// ComputeLevels derives entry/stop/targets from recent volatility. When the
// candle series is too short for a clean ATR, a 1% fallback band keeps the
// geometry sane instead of collapsing stop onto entry.
func ComputeLevels(snap domain.MarketSnapshot, dir domain.Direction) Levels {
	entry := snap.LastPrice
	atr := indicators.ATR(snap.Candles, 14)
	unit := atr.Value
	if !atr.IsValid || unit <= 0 {
		unit = entry * 0.01
	}

	var stop float64
	var targets []float64
	if dir == domain.Long {
		stop = entry - stopATR*unit
		targets = []float64{entry + target1ATR*unit, entry + target2ATR*unit, entry + target3ATR*unit}
	} else {
		stop = entry + stopATR*unit
		targets = []float64{entry - target1ATR*unit, entry - target2ATR*unit, entry - target3ATR*unit}
	}

	risk := entry - stop
	if dir == domain.Short {
		risk = stop - entry
	}
	rr := 0.0
	if risk > 0 {
		reward := targets[1] - entry
		if dir == domain.Short {
			reward = entry - targets[1]
		}
		rr = reward / risk
	}

	return Levels{Entry: entry, Stop: stop, Targets: targets, RiskReward: rr}
}
