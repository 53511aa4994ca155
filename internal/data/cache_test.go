package data

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCacheExpiry(t *testing.T) {
	c := NewMemory()
	c.Set("k", []byte("v"), 20*time.Millisecond)

	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), got)

	time.Sleep(30 * time.Millisecond)
	_, ok = c.Get("k")
	assert.False(t, ok)
}

func TestMemoryCacheMiss(t *testing.T) {
	c := NewMemory()
	_, ok := c.Get("absent")
	assert.False(t, ok)
}

func TestIndicatorCacheComputesOnce(t *testing.T) {
	ic := NewIndicatorCache(NewMemory(), time.Second)

	var calls atomic.Int32
	compute := func() float64 {
		calls.Add(1)
		return 42.5
	}

	assert.Equal(t, 42.5, ic.GetOrCompute("BTCUSD", "rsi14", compute))
	assert.Equal(t, 42.5, ic.GetOrCompute("BTCUSD", "rsi14", compute))
	assert.Equal(t, int32(1), calls.Load())

	// Different symbol or indicator recomputes.
	ic.GetOrCompute("ETHUSD", "rsi14", compute)
	ic.GetOrCompute("BTCUSD", "atr14", compute)
	assert.Equal(t, int32(3), calls.Load())
}

func TestIndicatorCacheRecomputesAfterTTL(t *testing.T) {
	ic := NewIndicatorCache(NewMemory(), 15*time.Millisecond)

	var calls atomic.Int32
	compute := func() float64 {
		calls.Add(1)
		return 1.0
	}
	ic.GetOrCompute("BTCUSD", "vol", compute)
	time.Sleep(25 * time.Millisecond)
	ic.GetOrCompute("BTCUSD", "vol", compute)
	assert.Equal(t, int32(2), calls.Load())
}
