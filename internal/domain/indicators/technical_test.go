package indicators

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ignitex/ignitex/internal/domain"
)

func linear(start, step float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + step*float64(i)
	}
	return out
}

func TestRSIBounds(t *testing.T) {
	rising := RSI(linear(100, 1, 30), 14)
	assert.True(t, rising.IsValid)
	assert.Equal(t, 100.0, rising.Value)

	falling := RSI(linear(100, -1, 30), 14)
	assert.True(t, falling.IsValid)
	assert.Less(t, falling.Value, 1.0)

	short := RSI(linear(100, 1, 5), 14)
	assert.False(t, short.IsValid)
	assert.Equal(t, 50.0, short.Value)
}

func TestEMAConvergesTowardRecentPrices(t *testing.T) {
	prices := append(linear(100, 0, 30), 200)
	ema := EMA(prices, 9)
	assert.Greater(t, ema, 100.0)
	assert.Less(t, ema, 200.0)
}

func TestATRShortSeriesInvalid(t *testing.T) {
	candles := []domain.Candle{{Open: 10, High: 11, Low: 9, Close: 10, Volume: 1}}
	assert.False(t, ATR(candles, 14).IsValid)
}

func TestMomentumPercent(t *testing.T) {
	prices := []float64{100, 101, 102, 103, 104, 105}
	assert.InDelta(t, 5.0, Momentum(prices, 5), 1e-9)
	assert.Equal(t, 0.0, Momentum(prices, 10)) // insufficient history
}

func TestTrendStrengthSaturatesAtTwoPercent(t *testing.T) {
	strong := TrendStrength(linear(100, 0.1, 40)) // monotonic, ~3.9% move
	assert.InDelta(t, 100.0, strong, 1e-6)

	flat := TrendStrength(linear(100, 0, 40))
	assert.Equal(t, 0.0, flat)
}

func TestRealizedVolZeroForConstantSeries(t *testing.T) {
	assert.Equal(t, 0.0, RealizedVol(linear(100, 0, 40), 525600))
}

func TestVolumeRatio(t *testing.T) {
	now := time.Now()
	candles := make([]domain.Candle, 10)
	for i := range candles {
		candles[i] = domain.Candle{OpenTime: now, Open: 1, High: 1, Low: 1, Close: 1, Volume: 100}
	}
	candles[9].Volume = 300
	assert.InDelta(t, 3.0, VolumeRatio(candles), 1e-9)
}
