package data

import (
	"encoding/json"
	"fmt"
	"time"
)

// IndicatorCache shares computed indicator values across strategies within a
// scan so six detectors reading the same RSI do not recompute it six times.
// Entries expire after a short TTL; a background warmer may pre-populate keys
// for high-activity instruments ahead of the main scan.
type IndicatorCache struct {
	cache Cache
	ttl   time.Duration
}

// NewIndicatorCache wraps a byte cache with typed float access.
func NewIndicatorCache(cache Cache, ttl time.Duration) *IndicatorCache {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &IndicatorCache{cache: cache, ttl: ttl}
}

// GetOrCompute returns the cached value for (symbol, name) or computes,
// stores, and returns it.
func (ic *IndicatorCache) GetOrCompute(symbol, name string, compute func() float64) float64 {
	key := fmt.Sprintf("ind:%s:%s", symbol, name)
	if b, ok := ic.cache.Get(key); ok {
		var v float64
		if err := json.Unmarshal(b, &v); err == nil {
			return v
		}
	}
	v := compute()
	if b, err := json.Marshal(v); err == nil {
		ic.cache.Set(key, b, ic.ttl)
	}
	return v
}
