// Package provider defines the market snapshot boundary. The pipeline only
// ever sees the SnapshotProvider and PriceSource interfaces; concrete
// implementations (REST, websocket, synthetic) live alongside.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ignitex/ignitex/internal/data"
	"github.com/ignitex/ignitex/internal/domain"
)

// SnapshotProvider delivers one normalized tick per instrument. It must
// succeed for the full tradable universe, not a hardcoded subset.
type SnapshotProvider interface {
	GetSnapshot(ctx context.Context, symbol string) (domain.MarketSnapshot, error)
}

// PriceSource serves live last prices for outcome monitoring. Implementations
// must cover every instrument the pipeline can signal on, otherwise monitors
// stall and the learning loop silently starves.
type PriceSource interface {
	LastPrice(ctx context.Context, symbol string) (float64, error)
}

// RetryConfig shapes the exponential backoff applied around provider calls.
type RetryConfig struct {
	Attempts int
	BaseWait time.Duration
}

// DefaultRetryConfig is 3 attempts at 1s/2s/4s.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{Attempts: 3, BaseWait: time.Second}
}

// Resilient wraps a SnapshotProvider with retry, exponential backoff, and
// graceful degradation to the last-known-good snapshot held in the cache.
type Resilient struct {
	inner SnapshotProvider
	cache data.Cache
	retry RetryConfig
}

// NewResilient builds the degradation wrapper.
func NewResilient(inner SnapshotProvider, cache data.Cache, retry RetryConfig) *Resilient {
	if retry.Attempts <= 0 {
		retry = DefaultRetryConfig()
	}
	return &Resilient{inner: inner, cache: cache, retry: retry}
}

// GetSnapshot retries the inner provider and falls back to last-known-good
// with the degraded flag set when every attempt fails.
func (r *Resilient) GetSnapshot(ctx context.Context, symbol string) (domain.MarketSnapshot, error) {
	var lastErr error
	wait := r.retry.BaseWait

	for attempt := 0; attempt < r.retry.Attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return domain.MarketSnapshot{}, ctx.Err()
			case <-time.After(wait):
			}
			wait *= 2
		}

		snap, err := r.inner.GetSnapshot(ctx, symbol)
		if err == nil {
			r.remember(symbol, snap)
			return snap, nil
		}
		lastErr = err
		log.Warn().Str("symbol", symbol).Int("attempt", attempt+1).Err(err).
			Msg("snapshot fetch failed")
	}

	if snap, ok := r.recall(symbol); ok {
		snap.Degraded = true
		snap.DataQuality = snap.DataQuality / 2
		log.Warn().Str("symbol", symbol).
			Msg("serving degraded last-known-good snapshot")
		return snap, nil
	}

	return domain.MarketSnapshot{}, fmt.Errorf("snapshot unavailable for %s after %d attempts: %w",
		symbol, r.retry.Attempts, lastErr)
}

func (r *Resilient) remember(symbol string, snap domain.MarketSnapshot) {
	b, err := json.Marshal(snap)
	if err != nil {
		return
	}
	r.cache.Set("snap:"+symbol, b, 10*time.Minute)
}

func (r *Resilient) recall(symbol string) (domain.MarketSnapshot, bool) {
	b, ok := r.cache.Get("snap:" + symbol)
	if !ok {
		return domain.MarketSnapshot{}, false
	}
	var snap domain.MarketSnapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return domain.MarketSnapshot{}, false
	}
	return snap, true
}
