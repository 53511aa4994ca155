package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/ignitex/ignitex/internal/domain"
)

// Kraken is the REST snapshot provider. Public endpoints only, guarded by a
// shared rate limiter so a wide universe cannot burn the venue budget.
type Kraken struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

// NewKraken builds the REST provider. Kraken's public tier sustains roughly
// one call per second; two API calls per snapshot means one snapshot per two
// seconds per process, which the scan stagger absorbs.
func NewKraken(baseURL string) *Kraken {
	if baseURL == "" {
		baseURL = "https://api.kraken.com"
	}
	return &Kraken{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(rate.Every(time.Second), 2),
	}
}

type krakenEnvelope struct {
	Error  []string                   `json:"error"`
	Result map[string]json.RawMessage `json:"result"`
}

// GetSnapshot fetches 1m OHLC history and the live ticker for the symbol.
func (k *Kraken) GetSnapshot(ctx context.Context, symbol string) (domain.MarketSnapshot, error) {
	candles, err := k.fetchOHLC(ctx, symbol)
	if err != nil {
		return domain.MarketSnapshot{}, err
	}
	last, volume24h, err := k.fetchTicker(ctx, symbol)
	if err != nil {
		return domain.MarketSnapshot{}, err
	}

	change := 0.0
	if len(candles) > 0 && candles[0].Open > 0 {
		change = (last - candles[0].Open) / candles[0].Open * 100.0
	}

	return domain.MarketSnapshot{
		Symbol:      symbol,
		LastPrice:   last,
		Volume24h:   volume24h,
		Change24h:   change,
		Candles:     candles,
		DataQuality: 80.0, // single-venue corroboration
		Timestamp:   time.Now(),
	}, nil
}

// LastPrice serves the ticker price, satisfying PriceSource for any pair the
// venue lists rather than a hardcoded subset.
func (k *Kraken) LastPrice(ctx context.Context, symbol string) (float64, error) {
	last, _, err := k.fetchTicker(ctx, symbol)
	return last, err
}

func (k *Kraken) fetchOHLC(ctx context.Context, symbol string) ([]domain.Candle, error) {
	var env krakenEnvelope
	if err := k.get(ctx, "/0/public/OHLC", url.Values{"pair": {symbol}, "interval": {"1"}}, &env); err != nil {
		return nil, err
	}

	for key, raw := range env.Result {
		if key == "last" {
			continue
		}
		var rows [][]json.RawMessage
		if err := json.Unmarshal(raw, &rows); err != nil {
			return nil, fmt.Errorf("failed to decode OHLC rows: %w", err)
		}
		candles := make([]domain.Candle, 0, len(rows))
		for _, row := range rows {
			if len(row) < 7 {
				continue
			}
			var ts float64
			if err := json.Unmarshal(row[0], &ts); err != nil {
				continue
			}
			c := domain.Candle{OpenTime: time.Unix(int64(ts), 0)}
			if c.Open = numField(row[1]); c.Open == 0 {
				continue
			}
			c.High = numField(row[2])
			c.Low = numField(row[3])
			c.Close = numField(row[4])
			c.Volume = numField(row[6])
			candles = append(candles, c)
		}
		return candles, nil
	}
	return nil, fmt.Errorf("no OHLC data for %s", symbol)
}

func (k *Kraken) fetchTicker(ctx context.Context, symbol string) (last, volume24h float64, err error) {
	var env krakenEnvelope
	if err := k.get(ctx, "/0/public/Ticker", url.Values{"pair": {symbol}}, &env); err != nil {
		return 0, 0, err
	}

	for _, raw := range env.Result {
		var t struct {
			C []string `json:"c"` // last trade [price, lot volume]
			V []string `json:"v"` // volume [today, 24h]
		}
		if err := json.Unmarshal(raw, &t); err != nil {
			return 0, 0, fmt.Errorf("failed to decode ticker: %w", err)
		}
		if len(t.C) > 0 {
			last, _ = strconv.ParseFloat(t.C[0], 64)
		}
		if len(t.V) > 1 {
			volume24h, _ = strconv.ParseFloat(t.V[1], 64)
		}
		return last, volume24h, nil
	}
	return 0, 0, fmt.Errorf("no ticker data for %s", symbol)
}

func (k *Kraken) get(ctx context.Context, path string, params url.Values, out *krakenEnvelope) error {
	if err := k.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		k.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := k.client.Do(req)
	if err != nil {
		return fmt.Errorf("kraken request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("kraken returned status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode kraken response: %w", err)
	}
	if len(out.Error) > 0 {
		return fmt.Errorf("kraken API error: %v", out.Error)
	}
	return nil
}

func numField(raw json.RawMessage) float64 {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		v, _ := strconv.ParseFloat(s, 64)
		return v
	}
	var v float64
	_ = json.Unmarshal(raw, &v)
	return v
}
