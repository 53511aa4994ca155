// Package coordinator drives the decision pipeline: per-instrument scan
// loops feed ensemble votes through consensus, regime matching, the priority
// queue, and the quality gate, handing accepted signals to the lifecycle
// manager. Stages are chained with direct calls so one scan produces one
// traceable verdict; the bus is reserved for external consumers.
package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ignitex/ignitex/internal/config"
	"github.com/ignitex/ignitex/internal/consensus"
	"github.com/ignitex/ignitex/internal/data"
	"github.com/ignitex/ignitex/internal/domain"
	"github.com/ignitex/ignitex/internal/domain/indicators"
	"github.com/ignitex/ignitex/internal/ensemble"
	"github.com/ignitex/ignitex/internal/gate"
	"github.com/ignitex/ignitex/internal/lifecycle"
	"github.com/ignitex/ignitex/internal/matcher"
	"github.com/ignitex/ignitex/internal/persistence"
	"github.com/ignitex/ignitex/internal/provider"
	"github.com/ignitex/ignitex/internal/regime"
	"github.com/ignitex/ignitex/internal/telemetry"
)

// Deps collects the wired pipeline stages.
type Deps struct {
	Config     *config.Store
	Universe   []string
	Warm       []string // symbols pre-computed by the warm loop; empty means all
	Snapshots  provider.SnapshotProvider
	Indicators *data.IndicatorCache
	Runner     *ensemble.Runner
	Detector   *regime.Detector
	Consensus  *consensus.Engine
	Queue      *matcher.Queue
	Gate       *gate.Gate
	Store      persistence.SignalStore
	Lifecycle  *lifecycle.Manager
	Metrics    *telemetry.Metrics
}

// Coordinator owns the scan loops and the gate consumer.
type Coordinator struct {
	Deps

	mu      sync.RWMutex
	regimes map[string]domain.RegimeState
	snaps   map[string]domain.MarketSnapshot

	wg sync.WaitGroup
}

// New builds a coordinator; Run starts it.
func New(deps Deps) *Coordinator {
	return &Coordinator{
		Deps:    deps,
		regimes: make(map[string]domain.RegimeState),
		snaps:   make(map[string]domain.MarketSnapshot),
	}
}

// Run starts one staggered scan loop per instrument, the indicator warm
// loop, and the gate consumer, then blocks until ctx cancels.
func (c *Coordinator) Run(ctx context.Context) {
	cfg := c.Config.Get()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.consumeQueue(ctx)
	}()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.warmLoop(ctx)
	}()

	for i, symbol := range c.Universe {
		c.wg.Add(1)
		go func(symbol string, offset time.Duration) {
			defer c.wg.Done()
			c.scanLoop(ctx, symbol, offset)
		}(symbol, time.Duration(i)*cfg.Scan.Stagger)
	}

	<-ctx.Done()
	c.Queue.Close()
	c.wg.Wait()
}

// RunOnce scans every instrument a single time and drains the queue
// synchronously. Used by the offline scan command.
func (c *Coordinator) RunOnce(ctx context.Context) {
	for _, symbol := range c.Universe {
		c.scanOnce(ctx, symbol)
	}
	for {
		d, ok := c.Queue.TryPop()
		if !ok {
			return
		}
		c.filterAndPublish(ctx, d)
	}
}

func (c *Coordinator) scanLoop(ctx context.Context, symbol string, offset time.Duration) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(offset):
	}

	ticker := time.NewTicker(c.Config.Get().Scan.Interval)
	defer ticker.Stop()
	c.scanOnce(ctx, symbol)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.scanOnce(ctx, symbol)
		}
	}
}

// scanOnce runs one full pipeline pass for one instrument. The regime is
// detected from the same snapshot the votes are based on, so the matcher
// never sees a stale regime.
func (c *Coordinator) scanOnce(ctx context.Context, symbol string) {
	cfg := c.Config.Get()
	start := time.Now()

	snap, err := c.Snapshots.GetSnapshot(ctx, symbol)
	if err != nil {
		c.Metrics.ScanDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		log.Warn().Err(err).Str("symbol", symbol).Msg("snapshot unavailable, scan skipped")
		return
	}

	state := c.Detector.Detect(snap)
	c.mu.Lock()
	c.regimes[symbol] = state
	c.snaps[symbol] = snap
	c.mu.Unlock()

	c.Metrics.Record(telemetry.StageAlpha, telemetry.VerdictReceived)
	votes := c.Runner.Collect(ctx, snap, c.Indicators, ensemble.Options{
		Timeout:       cfg.Ensemble.StrategyTimeout,
		Disabled:      cfg.Ensemble.Disabled,
		MinConfidence: cfg.Ensemble.MinConfidence,
	})
	if len(votes) == 0 {
		c.Metrics.Record(telemetry.StageAlpha, telemetry.VerdictRejected)
		c.Metrics.ScanDuration.WithLabelValues("quiet").Observe(time.Since(start).Seconds())
		return
	}
	c.Metrics.Record(telemetry.StageAlpha, telemetry.VerdictPassed)

	c.Metrics.Record(telemetry.StageBeta, telemetry.VerdictReceived)
	decision, ok, reason := c.Consensus.Decide(symbol, votes, state, consensus.Params{
		MinAgreement:        cfg.Consensus.MinAgreement,
		DefaultMinAgreement: cfg.Consensus.DefaultMinAgreement,
	})
	if !ok {
		c.Metrics.Record(telemetry.StageBeta, telemetry.VerdictRejected)
		log.Info().Str("symbol", symbol).Str("reason", reason).
			Int("votes", len(votes)).Msg("consensus declined")
		c.Metrics.ScanDuration.WithLabelValues("no_consensus").Observe(time.Since(start).Seconds())
		return
	}
	c.Metrics.Record(telemetry.StageBeta, telemetry.VerdictPassed)

	c.Metrics.Record(telemetry.StageGamma, telemetry.VerdictReceived)
	admitted, ok, reason := matcher.Match(decision, matcher.Rules{
		MinRegimeConfidence: cfg.Matcher.MinRegimeConfidence,
		LowVolMax:           cfg.Matcher.LowVolMax,
		StrongTrendMin:      cfg.Matcher.StrongTrendMin,
		MediumConfidenceMin: cfg.Matcher.MediumConfidenceMin,
	})
	if !ok {
		c.Metrics.Record(telemetry.StageGamma, telemetry.VerdictRejected)
		log.Info().Str("symbol", symbol).Str("reason", reason).
			Str("tier", string(decision.Tier)).Str("regime", string(state.Regime)).
			Msg("matcher rejected decision")
		c.Metrics.ScanDuration.WithLabelValues("unmatched").Observe(time.Since(start).Seconds())
		return
	}
	c.Metrics.Record(telemetry.StageGamma, telemetry.VerdictPassed)

	if evicted := c.Queue.Push(admitted); evicted != nil {
		c.Metrics.Record(telemetry.StageDelta, telemetry.VerdictReceived)
		c.Metrics.Record(telemetry.StageDelta, telemetry.VerdictRejected)
	}
	c.Metrics.SetQueueDepth(c.Queue.Depth())
	c.Metrics.ScanDuration.WithLabelValues("admitted").Observe(time.Since(start).Seconds())
}

func (c *Coordinator) consumeQueue(ctx context.Context) {
	for {
		d, ok := c.Queue.Pop(ctx)
		if !ok {
			return
		}
		c.filterAndPublish(ctx, d)
		c.Metrics.SetQueueDepth(c.Queue.Depth())
	}
}

// filterAndPublish runs the quality gate and hands accepted signals to the
// lifecycle manager. Every gate verdict, accepted or not, is persisted.
func (c *Coordinator) filterAndPublish(ctx context.Context, d domain.AdmittedDecision) {
	cfg := c.Config.Get()
	snap, ok := c.lastSnapshot(d.Symbol)
	if !ok {
		log.Warn().Str("symbol", d.Symbol).Msg("no snapshot for queued decision, dropping")
		return
	}

	c.Metrics.Record(telemetry.StageDelta, telemetry.VerdictReceived)
	sig := c.Gate.Evaluate(d, snap, gate.Params{
		WinProbBar:        cfg.Gate.WinProbBar,
		DefaultWinProbBar: cfg.Gate.DefaultWinProbBar,
		MinQualityScore:   cfg.Gate.MinQualityScore,
		MinReputation:     cfg.Gate.MinReputation,
	})

	if err := c.Store.InsertFiltered(ctx, sig); err != nil {
		log.Error().Err(err).Str("signal", sig.ID).Msg("gate verdict persist failed")
	}

	if sig.Rejected {
		c.Metrics.Record(telemetry.StageDelta, telemetry.VerdictRejected)
		log.Info().Str("symbol", sig.Symbol).Str("reason", sig.RejectReason).
			Float64("quality", sig.QualityScore).Float64("win_prob", sig.WinProbability).
			Msg("gate rejected signal")
		return
	}
	c.Metrics.Record(telemetry.StageDelta, telemetry.VerdictPassed)

	if _, published, reason := c.Lifecycle.Publish(ctx, sig); !published {
		log.Info().Str("symbol", sig.Symbol).Str("reason", reason).
			Msg("lifecycle suppressed signal")
	}
}

// warmLoop pre-computes the hot indicators so scan-path reads hit the cache.
func (c *Coordinator) warmLoop(ctx context.Context) {
	interval := c.Config.Get().Scan.WarmInterval
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, symbol := range c.warmTargets() {
				c.warmOne(symbol)
			}
		}
	}
}

func (c *Coordinator) warmTargets() []string {
	if len(c.Warm) > 0 {
		return c.Warm
	}
	return c.Universe
}

func (c *Coordinator) warmOne(symbol string) {
	snap, ok := c.lastSnapshot(symbol)
	if !ok || len(snap.Candles) == 0 {
		return
	}
	closes := domain.Closes(snap.Candles)
	c.Indicators.GetOrCompute(symbol, "rsi14", func() float64 {
		return indicators.RSI(closes, 14).Value
	})
	c.Indicators.GetOrCompute(symbol, "atr14", func() float64 {
		return indicators.ATR(snap.Candles, 14).Value
	})
	c.Indicators.GetOrCompute(symbol, "realized_vol", func() float64 {
		return indicators.RealizedVol(closes, 525600)
	})
}

// Regime returns the last detected regime for one instrument.
func (c *Coordinator) Regime(symbol string) (domain.RegimeState, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	state, ok := c.regimes[symbol]
	return state, ok
}

func (c *Coordinator) lastSnapshot(symbol string) (domain.MarketSnapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	snap, ok := c.snaps[symbol]
	return snap, ok
}
