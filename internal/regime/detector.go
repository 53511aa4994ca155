// Package regime classifies current market conditions from recent candles
// and auxiliary order-flow inputs. Classification is a pure function of the
// snapshot: nothing is persisted between scans, so the matcher can never
// observe a stale regime.
package regime

import (
	"math"

	"github.com/rs/zerolog/log"

	"github.com/ignitex/ignitex/internal/domain"
	"github.com/ignitex/ignitex/internal/domain/indicators"
)

// DetectorConfig holds the classification thresholds.
type DetectorConfig struct {
	PeriodsPerYear      float64 `mapstructure:"periods_per_year"`      // candle interval annualization
	VolNormalization    float64 `mapstructure:"vol_normalization"`     // annualized vol treated as "fully volatile"
	MomentumSaturation  float64 `mapstructure:"momentum_saturation"`   // percent move treated as full momentum
	BreakoutVolumeRatio float64 `mapstructure:"breakout_volume_ratio"`
}

// DefaultDetectorConfig returns thresholds tuned for 1m crypto candles.
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		PeriodsPerYear:      525600, // 1-minute bars
		VolNormalization:    1.50,
		MomentumSaturation:  3.0,
		BreakoutVolumeRatio: 2.0,
	}
}

// Detector scores each regime from snapshot features and picks the winner.
type Detector struct {
	config DetectorConfig
}

// NewDetector creates a detector with the given thresholds.
func NewDetector(config DetectorConfig) *Detector {
	return &Detector{config: config}
}

// Neutral is the fallback state used when input validation fails: choppy at
// fixed 50% confidence, never NaN.
func Neutral() domain.RegimeState {
	return domain.RegimeState{
		Regime:     domain.Choppy,
		Confidence: 50.0,
	}
}

// Detect classifies the snapshot. Malformed candle series fall back to the
// neutral default instead of propagating garbage downstream.
func (d *Detector) Detect(snap domain.MarketSnapshot) domain.RegimeState {
	if err := domain.ValidateCandles(snap.Candles); err != nil {
		log.Warn().Str("symbol", snap.Symbol).Err(err).
			Msg("regime detection falling back to neutral: invalid candles")
		return Neutral()
	}

	closes := domain.Closes(snap.Candles)
	trend := indicators.TrendStrength(closes)
	vol := indicators.RealizedVol(closes, d.config.PeriodsPerYear)
	momentum := indicators.Momentum(closes, len(closes)-1)
	volumeRatio := indicators.VolumeRatio(snap.Candles)

	t := trend / 100.0
	m := math.Min(math.Abs(momentum)/d.config.MomentumSaturation, 1.0)
	vn := math.Min(vol/d.config.VolNormalization, 1.0)
	vr := math.Min(volumeRatio/d.config.BreakoutVolumeRatio, 1.0)
	imbalance := clamp(snap.BookImbalance, -1, 1)

	scores := map[domain.Regime]float64{
		domain.VolatileBreakout: vn*0.40 + m*0.40 + vr*0.20,
		domain.RangingHighVol:   vn*0.50 + (1-t)*0.50,
		domain.RangingLowVol:    (1-vn)*0.40 + (1-t)*0.60,
		domain.Choppy:           (1-t)*0.50 + (1-m)*0.30 + midband(vn)*0.20,
		domain.Accumulation:     (1-vn)*0.30 + (1-t)*0.20 + vr*0.30 + math.Max(imbalance, 0)*0.20,
	}
	if momentum >= 0 {
		scores[domain.TrendingUp] = t*0.50 + m*0.40 + fundingTilt(snap.FundingRate, domain.Long)*0.10
	} else {
		scores[domain.TrendingDown] = t*0.50 + m*0.40 + fundingTilt(snap.FundingRate, domain.Short)*0.10
	}

	winner := domain.Choppy
	best, second := -1.0, -1.0
	for r, s := range scores {
		switch {
		case s > best:
			second = best
			best, winner = s, r
		case s > second:
			second = s
		}
	}

	confidence := 50.0
	if best+second > 0 {
		confidence = clamp(100.0*best/(best+second), 50, 95)
	}

	return domain.RegimeState{
		Regime:        winner,
		Confidence:    confidence,
		TrendStrength: trend,
		Volatility:    vol,
	}
}

// fundingTilt rewards funding that leans against the voted direction
// (crowded shorts in an up-move, crowded longs in a down-move).
func fundingTilt(funding float64, dir domain.Direction) float64 {
	const saturation = 0.0005
	f := clamp(funding/saturation, -1, 1)
	if dir == domain.Long {
		return (1 - f) / 2
	}
	return (1 + f) / 2
}

// midband peaks when normalized vol sits in the indecisive middle.
func midband(vn float64) float64 {
	return 1 - math.Abs(vn-0.55)/0.55
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
