package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// TickerFeed maintains live last prices over the Kraken websocket so outcome
// monitors read a local map instead of hammering the REST ticker. It covers
// every subscribed symbol; symbols never seen on the feed fall back to the
// configured PriceSource.
type TickerFeed struct {
	url      string
	symbols  []string
	fallback PriceSource

	mu     sync.RWMutex
	prices map[string]float64

	cancel context.CancelFunc
	done   chan struct{}
}

// NewTickerFeed creates a feed for the given symbols with a REST fallback.
func NewTickerFeed(wsURL string, symbols []string, fallback PriceSource) *TickerFeed {
	if wsURL == "" {
		wsURL = "wss://ws.kraken.com"
	}
	return &TickerFeed{
		url:      wsURL,
		symbols:  symbols,
		fallback: fallback,
		prices:   make(map[string]float64),
	}
}

// Start connects and consumes ticker messages until the context is cancelled.
// Reconnects with a flat backoff on any stream error.
func (f *TickerFeed) Start(ctx context.Context) {
	ctx, f.cancel = context.WithCancel(ctx)
	f.done = make(chan struct{})

	go func() {
		defer close(f.done)
		for {
			if err := f.run(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Warn().Err(err).Msg("ticker feed disconnected, reconnecting")
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(2 * time.Second):
			}
		}
	}()
}

// Stop tears the feed down and waits for the reader to exit.
func (f *TickerFeed) Stop() {
	if f.cancel != nil {
		f.cancel()
		<-f.done
	}
}

// LastPrice serves the most recent feed price, falling back to the REST
// source for symbols the feed has not ticked yet.
func (f *TickerFeed) LastPrice(ctx context.Context, symbol string) (float64, error) {
	f.mu.RLock()
	price, ok := f.prices[symbol]
	f.mu.RUnlock()
	if ok {
		return price, nil
	}
	if f.fallback != nil {
		return f.fallback.LastPrice(ctx, symbol)
	}
	return 0, fmt.Errorf("no live price for %s", symbol)
}

func (f *TickerFeed) run(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return fmt.Errorf("websocket dial failed: %w", err)
	}
	defer conn.Close()

	sub := map[string]interface{}{
		"event":        "subscribe",
		"pair":         f.symbols,
		"subscription": map[string]string{"name": "ticker"},
	}
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("ticker subscribe failed: %w", err)
	}

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		f.handleMessage(msg)
	}
}

// handleMessage parses Kraken's array-framed ticker updates:
// [channelID, {"c": ["price", ...], ...}, "ticker", "PAIR"].
func (f *TickerFeed) handleMessage(msg []byte) {
	var frame []json.RawMessage
	if err := json.Unmarshal(msg, &frame); err != nil || len(frame) < 4 {
		return // event messages (heartbeats, subscription acks) are objects
	}

	var payload struct {
		C []string `json:"c"`
	}
	if err := json.Unmarshal(frame[1], &payload); err != nil || len(payload.C) == 0 {
		return
	}
	var pair string
	if err := json.Unmarshal(frame[len(frame)-1], &pair); err != nil {
		return
	}
	price, err := strconv.ParseFloat(payload.C[0], 64)
	if err != nil || price <= 0 {
		return
	}

	f.mu.Lock()
	f.prices[pair] = price
	f.mu.Unlock()
}
