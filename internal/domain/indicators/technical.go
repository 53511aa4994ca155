// Package indicators provides the technical computations shared by the
// strategy ensemble and the regime detector. All functions are pure and
// tolerate short series by flagging the result invalid instead of panicking.
package indicators

import (
	"math"

	"github.com/ignitex/ignitex/internal/domain"
)

// RSIResult represents the result of RSI calculation
type RSIResult struct {
	Value     float64 `json:"value"`
	Period    int     `json:"period"`
	IsValid   bool    `json:"is_valid"`
	DataCount int     `json:"data_count"`
}

// RSI calculates the Relative Strength Index with Wilder's smoothing.
func RSI(prices []float64, period int) RSIResult {
	if len(prices) < period+1 {
		return RSIResult{Value: 50.0, Period: period, DataCount: len(prices)}
	}

	changes := make([]float64, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		changes[i-1] = prices[i] - prices[i-1]
	}

	avgGain, avgLoss := 0.0, 0.0
	for i := 0; i < period; i++ {
		if changes[i] > 0 {
			avgGain += changes[i]
		} else {
			avgLoss -= changes[i]
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	alpha := 1.0 / float64(period)
	for i := period; i < len(changes); i++ {
		gain, loss := 0.0, 0.0
		if changes[i] > 0 {
			gain = changes[i]
		} else {
			loss = -changes[i]
		}
		avgGain = avgGain*(1-alpha) + gain*alpha
		avgLoss = avgLoss*(1-alpha) + loss*alpha
	}

	if avgLoss == 0 {
		return RSIResult{Value: 100.0, Period: period, IsValid: true, DataCount: len(prices)}
	}
	rs := avgGain / avgLoss
	return RSIResult{
		Value:     100.0 - (100.0 / (1.0 + rs)),
		Period:    period,
		IsValid:   true,
		DataCount: len(prices),
	}
}

// EMA computes the exponential moving average of the series. Returns the
// seed SMA when the series is shorter than the period.
func EMA(prices []float64, period int) float64 {
	if len(prices) == 0 {
		return 0
	}
	if len(prices) < period {
		period = len(prices)
	}
	ema := 0.0
	for i := 0; i < period; i++ {
		ema += prices[i]
	}
	ema /= float64(period)

	k := 2.0 / (float64(period) + 1.0)
	for i := period; i < len(prices); i++ {
		ema = prices[i]*k + ema*(1-k)
	}
	return ema
}

// ATRResult represents the result of ATR calculation
type ATRResult struct {
	Value     float64 `json:"value"`
	Period    int     `json:"period"`
	IsValid   bool    `json:"is_valid"`
	DataCount int     `json:"data_count"`
}

// ATR calculates the Average True Range over the candle series.
func ATR(candles []domain.Candle, period int) ATRResult {
	if len(candles) < period+1 {
		return ATRResult{Period: period, DataCount: len(candles)}
	}

	trueRanges := make([]float64, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		hl := candles[i].High - candles[i].Low
		hc := math.Abs(candles[i].High - candles[i-1].Close)
		lc := math.Abs(candles[i].Low - candles[i-1].Close)
		trueRanges[i-1] = math.Max(hl, math.Max(hc, lc))
	}

	atr := 0.0
	for i := 0; i < period; i++ {
		atr += trueRanges[i]
	}
	atr /= float64(period)

	// Wilder's smoothing for the remainder
	for i := period; i < len(trueRanges); i++ {
		atr = (atr*float64(period-1) + trueRanges[i]) / float64(period)
	}

	return ATRResult{Value: atr, Period: period, IsValid: true, DataCount: len(candles)}
}

// RealizedVol returns the annualized realized volatility of log returns,
// assuming the candle interval repeats periodsPerYear times per year.
func RealizedVol(prices []float64, periodsPerYear float64) float64 {
	if len(prices) < 3 {
		return 0
	}
	returns := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] <= 0 || prices[i] <= 0 {
			continue
		}
		returns = append(returns, math.Log(prices[i]/prices[i-1]))
	}
	if len(returns) < 2 {
		return 0
	}
	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))
	variance := 0.0
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns) - 1)
	return math.Sqrt(variance) * math.Sqrt(periodsPerYear)
}

// Momentum returns the percentage change across the lookback window.
func Momentum(prices []float64, lookback int) float64 {
	if len(prices) < lookback+1 || lookback <= 0 {
		return 0
	}
	start := prices[len(prices)-1-lookback]
	end := prices[len(prices)-1]
	if start == 0 {
		return 0
	}
	return (end - start) / start * 100.0
}

// TrendStrength scores directional persistence 0-100: the fraction of bars
// closing in the direction of the overall move, scaled by move size.
func TrendStrength(prices []float64) float64 {
	if len(prices) < 3 {
		return 0
	}
	up, down := 0, 0
	for i := 1; i < len(prices); i++ {
		if prices[i] > prices[i-1] {
			up++
		} else if prices[i] < prices[i-1] {
			down++
		}
	}
	total := up + down
	if total == 0 {
		return 0
	}
	persistence := math.Abs(float64(up)-float64(down)) / float64(total)
	move := math.Abs(Momentum(prices, len(prices)-1))
	scale := math.Min(move/2.0, 1.0) // 2% move saturates the scale
	return persistence * scale * 100.0
}

// VolumeRatio compares the most recent bar's volume against the average of
// the preceding bars. Returns 1.0 when there is not enough history.
func VolumeRatio(candles []domain.Candle) float64 {
	if len(candles) < 2 {
		return 1.0
	}
	sum := 0.0
	for _, c := range candles[:len(candles)-1] {
		sum += c.Volume
	}
	avg := sum / float64(len(candles)-1)
	if avg == 0 {
		return 1.0
	}
	return candles[len(candles)-1].Volume / avg
}
