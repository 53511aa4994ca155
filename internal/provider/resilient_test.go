package provider

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignitex/ignitex/internal/data"
)

func fastRetry() RetryConfig {
	return RetryConfig{Attempts: 3, BaseWait: time.Millisecond}
}

func TestResilientRetriesTransientFailure(t *testing.T) {
	syn := NewSynthetic()
	syn.FailNext("BTCUSD", 2)
	r := NewResilient(syn, data.NewMemory(), fastRetry())

	snap, err := r.GetSnapshot(context.Background(), "BTCUSD")
	require.NoError(t, err)
	assert.Equal(t, "BTCUSD", snap.Symbol)
	assert.False(t, snap.Degraded)
}

func TestResilientDegradesToLastKnownGood(t *testing.T) {
	syn := NewSynthetic()
	r := NewResilient(syn, data.NewMemory(), fastRetry())

	healthy, err := r.GetSnapshot(context.Background(), "BTCUSD")
	require.NoError(t, err)

	syn.FailNext("BTCUSD", 10)
	degraded, err := r.GetSnapshot(context.Background(), "BTCUSD")
	require.NoError(t, err)
	assert.True(t, degraded.Degraded)
	assert.Equal(t, healthy.LastPrice, degraded.LastPrice)
	assert.Equal(t, healthy.DataQuality/2, degraded.DataQuality)
}

func TestResilientErrorsWithNoHistory(t *testing.T) {
	syn := NewSynthetic()
	syn.FailNext("BTCUSD", 10)
	r := NewResilient(syn, data.NewMemory(), fastRetry())

	_, err := r.GetSnapshot(context.Background(), "BTCUSD")
	assert.Error(t, err)
}

func TestSyntheticIsDeterministic(t *testing.T) {
	a, err := NewSynthetic().GetSnapshot(context.Background(), "BTCUSD")
	require.NoError(t, err)
	b, err := NewSynthetic().GetSnapshot(context.Background(), "BTCUSD")
	require.NoError(t, err)

	require.Equal(t, len(a.Candles), len(b.Candles))
	assert.Equal(t, a.Candles[0].Open, b.Candles[0].Open)
	assert.Equal(t, a.LastPrice, b.LastPrice)
}

func TestSyntheticScriptedPriceServesMonitors(t *testing.T) {
	syn := NewSynthetic()
	syn.SetPrice("ETHUSD", 1234.5)

	price, err := syn.LastPrice(context.Background(), "ETHUSD")
	require.NoError(t, err)
	assert.Equal(t, 1234.5, price)

	_, err = syn.LastPrice(context.Background(), "UNKNOWN")
	assert.Error(t, err)
}
