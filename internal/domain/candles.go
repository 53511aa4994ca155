package domain

import (
	"fmt"
	"math"
)

// ValidateCandles rejects series that would poison downstream math: non-finite
// or non-positive prices, inverted high/low, or negative volume.
func ValidateCandles(candles []Candle) error {
	if len(candles) == 0 {
		return fmt.Errorf("empty candle series")
	}
	for i, c := range candles {
		for _, v := range []float64{c.Open, c.High, c.Low, c.Close} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("candle %d: non-finite price", i)
			}
			if v <= 0 {
				return fmt.Errorf("candle %d: non-positive price", i)
			}
		}
		if c.High < c.Low {
			return fmt.Errorf("candle %d: high %.8f below low %.8f", i, c.High, c.Low)
		}
		if math.IsNaN(c.Volume) || c.Volume < 0 {
			return fmt.Errorf("candle %d: invalid volume", i)
		}
	}
	return nil
}

// Closes extracts the close series.
func Closes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}
