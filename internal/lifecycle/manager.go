// Package lifecycle owns accepted signals from publication to terminal
// outcome: dedup against active and recently resolved signals, regime-scaled
// expiry, and one price monitor per live signal.
package lifecycle

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ignitex/ignitex/internal/bus"
	"github.com/ignitex/ignitex/internal/config"
	"github.com/ignitex/ignitex/internal/domain"
	"github.com/ignitex/ignitex/internal/persistence"
	"github.com/ignitex/ignitex/internal/provider"
	"github.com/ignitex/ignitex/internal/telemetry"
)

// Rejection reasons surfaced to the funnel log.
const (
	ReasonDuplicateActive = "duplicate-active"
	ReasonCooldownActive  = "cooldown-active"
)

type resolved struct {
	result     domain.Result
	resolvedAt time.Time
}

// Manager is the signal lifecycle manager.
type Manager struct {
	cfg     *config.Store
	prices  provider.PriceSource
	store   persistence.SignalStore
	bus     *bus.Bus
	metrics *telemetry.Metrics

	mu     sync.Mutex
	active map[string]*domain.PublishedSignal // keyed by dedup key
	byID   map[string]*domain.PublishedSignal
	recent map[string]resolved // dedup key -> last terminal outcome

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// NewManager builds an idle manager; Start must run before Publish.
func NewManager(cfg *config.Store, prices provider.PriceSource, store persistence.SignalStore, b *bus.Bus, metrics *telemetry.Metrics) *Manager {
	return &Manager{
		cfg:     cfg,
		prices:  prices,
		store:   store,
		bus:     b,
		metrics: metrics,
		active:  make(map[string]*domain.PublishedSignal),
		byID:    make(map[string]*domain.PublishedSignal),
		recent:  make(map[string]resolved),
	}
}

// Start anchors monitor goroutines to ctx. Cancelling ctx stops every
// monitor without resolving its signal.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return
	}
	m.ctx, m.cancel = context.WithCancel(ctx)
	m.started = true
}

// Close stops all monitors and waits for them to exit.
func (m *Manager) Close() {
	m.mu.Lock()
	cancel := m.cancel
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
}

// Publish attempts to publish an accepted signal. A false return carries the
// dedup reason; true returns the published signal with its expiry stamped
// and a monitor already running.
func (m *Manager) Publish(ctx context.Context, sig domain.FilteredSignal) (domain.PublishedSignal, bool, string) {
	lc := m.cfg.Get().Lifecycle
	key := domain.DedupKey(sig.Symbol, sig.Direction)
	now := time.Now()

	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return domain.PublishedSignal{}, false, "lifecycle manager not started"
	}
	m.pruneRecentLocked(now, lc.DedupWindow)

	if _, live := m.active[key]; live {
		m.mu.Unlock()
		return domain.PublishedSignal{}, false, ReasonDuplicateActive
	}
	// A freshly resolved WIN on the same key is a momentum continuation and
	// re-publishes immediately; anything else cools down for the full window.
	if prior, ok := m.recent[key]; ok && prior.result != domain.ResultWin {
		m.mu.Unlock()
		return domain.PublishedSignal{}, false, ReasonCooldownActive
	}

	limit := m.expiryFor(sig.Regime.Regime, lc)
	pub := &domain.PublishedSignal{
		FilteredSignal: sig,
		DedupKey:       key,
		TimeLimit:      limit,
		PublishedAt:    now,
		ExpiresAt:      now.Add(limit),
	}
	m.active[key] = pub
	m.byID[sig.ID] = pub
	m.wg.Add(1)
	m.mu.Unlock()

	m.metrics.ActiveMonitors.Inc()
	go m.monitor(pub, lc.MonitorInterval)

	if err := m.bus.Publish(ctx, bus.Message{Kind: bus.KindSignalPublished, Signal: pub}); err != nil {
		log.Error().Err(err).Str("signal", sig.ID).Msg("bus publish failed")
	}

	log.Info().
		Str("signal", sig.ID).
		Str("symbol", sig.Symbol).
		Str("direction", string(sig.Direction)).
		Str("regime", string(sig.Regime.Regime)).
		Dur("time_limit", limit).
		Msg("signal published")
	return *pub, true, ""
}

// Active returns a copy of every live signal, for the HTTP surface.
func (m *Manager) Active() []domain.PublishedSignal {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.PublishedSignal, 0, len(m.active))
	for _, sig := range m.active {
		out = append(out, *sig)
	}
	return out
}

// Lookup finds a signal by id among live and resolved in-memory records.
func (m *Manager) Lookup(id string) (domain.PublishedSignal, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sig, ok := m.byID[id]
	if !ok {
		return domain.PublishedSignal{}, false
	}
	return *sig, true
}

// ActiveCount reports how many monitors are live.
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

func (m *Manager) expiryFor(regime domain.Regime, lc config.LifecycleConfig) time.Duration {
	if minutes, ok := lc.ExpiryMinutes[string(regime)]; ok && minutes > 0 {
		return time.Duration(minutes) * time.Minute
	}
	return time.Duration(lc.DefaultExpiryMinutes) * time.Minute
}

func (m *Manager) pruneRecentLocked(now time.Time, window time.Duration) {
	for key, prior := range m.recent {
		if now.Sub(prior.resolvedAt) >= window {
			delete(m.recent, key)
		}
	}
}

// resolve attaches the terminal outcome exactly once, frees the dedup slot,
// and fans the outcome out to the store and the bus.
func (m *Manager) resolve(sig *domain.PublishedSignal, result domain.Result, barrier domain.Barrier, exitPrice float64) {
	resolvedAt := time.Now()
	returnPct := (exitPrice - sig.Entry) / sig.Entry * 100
	if sig.Direction == domain.Short {
		returnPct = -returnPct
	}
	outcome := &domain.Outcome{
		SignalID:   sig.ID,
		Symbol:     sig.Symbol,
		Result:     result,
		Barrier:    barrier,
		ExitPrice:  exitPrice,
		ReturnPct:  returnPct,
		Duration:   resolvedAt.Sub(sig.PublishedAt),
		ResolvedAt: resolvedAt,
	}

	m.mu.Lock()
	if sig.Outcome != nil {
		m.mu.Unlock()
		return
	}
	sig.Outcome = outcome
	delete(m.active, sig.DedupKey)
	m.recent[sig.DedupKey] = resolved{result: result, resolvedAt: resolvedAt}
	m.mu.Unlock()

	storeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.store.InsertOutcome(storeCtx, *outcome); err != nil {
		log.Error().Err(err).Str("signal", sig.ID).Msg("outcome persist failed")
	}
	if err := m.bus.Publish(storeCtx, bus.Message{Kind: bus.KindOutcomeResolved, Outcome: outcome}); err != nil {
		log.Error().Err(err).Str("signal", sig.ID).Msg("outcome bus publish failed")
	}

	log.Info().
		Str("signal", sig.ID).
		Str("symbol", sig.Symbol).
		Str("result", string(result)).
		Str("barrier", string(barrier)).
		Float64("return_pct", returnPct).
		Dur("held", outcome.Duration).
		Msg("signal resolved")
}
