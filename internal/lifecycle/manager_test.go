package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignitex/ignitex/internal/bus"
	"github.com/ignitex/ignitex/internal/config"
	"github.com/ignitex/ignitex/internal/domain"
	"github.com/ignitex/ignitex/internal/persistence"
	"github.com/ignitex/ignitex/internal/persistence/memory"
	"github.com/ignitex/ignitex/internal/provider"
	"github.com/ignitex/ignitex/internal/telemetry"
)

func testBus(t *testing.T) (*bus.Bus, <-chan bus.Message) {
	t.Helper()
	b := bus.New()
	ch, err := b.Subscribe("test", 64)
	require.NoError(t, err)
	require.NoError(t, b.Start())
	return b, ch
}

func testManager(t *testing.T, prices provider.PriceSource) (*Manager, <-chan bus.Message, persistence.SignalStore) {
	t.Helper()
	cfg := config.Default()
	cfg.Lifecycle.MonitorInterval = 5 * time.Millisecond
	b, ch := testBus(t)
	store := memory.NewStore()
	m := NewManager(config.NewStatic(cfg), prices, store, b, telemetry.NewMetrics(nil))
	ctx, cancel := context.WithCancel(context.Background())
	m.Start(ctx)
	t.Cleanup(func() {
		cancel()
		m.Close()
		b.Close()
	})
	return m, ch, store
}

func acceptedSignal(symbol string, dir domain.Direction, regime domain.Regime) domain.FilteredSignal {
	entry, stop := 100.0, 97.0
	targets := []float64{103, 106, 109}
	if dir == domain.Short {
		stop = 103
		targets = []float64{97, 94, 91}
	}
	return domain.FilteredSignal{
		ID: uuid.New().String(),
		AdmittedDecision: domain.AdmittedDecision{
			ConsensusDecision: domain.ConsensusDecision{
				Symbol:    symbol,
				Direction: dir,
				Tier:      domain.TierHigh,
				Regime:    domain.RegimeState{Regime: regime, Confidence: 75},
			},
			Priority: domain.PriorityHigh,
		},
		Originator: "momentum",
		Entry:      entry,
		Stop:       stop,
		Targets:    targets,
		RiskReward: 2.0,
		FilteredAt: time.Now(),
	}
}

func waitOutcome(t *testing.T, ch <-chan bus.Message) domain.Outcome {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case msg := <-ch:
			if msg.Kind == bus.KindOutcomeResolved {
				return *msg.Outcome
			}
		case <-deadline:
			t.Fatal("no outcome on the bus")
		}
	}
}

func TestPublishStampsRegimeScaledExpiry(t *testing.T) {
	syn := provider.NewSynthetic()
	m, _, _ := testManager(t, syn)

	cases := []struct {
		regime domain.Regime
		want   time.Duration
	}{
		{domain.TrendingUp, 20 * time.Minute},
		{domain.TrendingDown, 20 * time.Minute},
		{domain.VolatileBreakout, 8 * time.Minute},
		{domain.RangingLowVol, 45 * time.Minute},
		{domain.Accumulation, 45 * time.Minute},
		{domain.Choppy, 30 * time.Minute},
		{domain.RangingHighVol, 30 * time.Minute},
	}
	for i, tc := range cases {
		symbol := "SYM" + string(rune('A'+i)) + "USD"
		syn.SetPrice(symbol, 100)
		pub, ok, reason := m.Publish(context.Background(), acceptedSignal(symbol, domain.Long, tc.regime))
		require.True(t, ok, reason)
		assert.Equal(t, tc.want, pub.ExpiresAt.Sub(pub.PublishedAt), "regime %s", tc.regime)
		assert.Equal(t, tc.want, pub.TimeLimit)
	}
}

func TestPublishSuppressesDuplicateActive(t *testing.T) {
	syn := provider.NewSynthetic()
	syn.SetPrice("BTCUSD", 100)
	m, _, _ := testManager(t, syn)

	_, ok, _ := m.Publish(context.Background(), acceptedSignal("BTCUSD", domain.Long, domain.TrendingUp))
	require.True(t, ok)

	_, ok, reason := m.Publish(context.Background(), acceptedSignal("BTCUSD", domain.Long, domain.TrendingUp))
	assert.False(t, ok)
	assert.Equal(t, ReasonDuplicateActive, reason)

	// The opposite direction is a different dedup key.
	_, ok, reason = m.Publish(context.Background(), acceptedSignal("BTCUSD", domain.Short, domain.TrendingUp))
	assert.True(t, ok, reason)
}

func TestStopHitResolvesLoss(t *testing.T) {
	syn := provider.NewSynthetic()
	syn.SetPrice("BTCUSD", 100)
	m, ch, store := testManager(t, syn)

	sig := acceptedSignal("BTCUSD", domain.Long, domain.TrendingUp)
	_, ok, _ := m.Publish(context.Background(), sig)
	require.True(t, ok)

	syn.SetPrice("BTCUSD", 96.5)
	outcome := waitOutcome(t, ch)

	assert.Equal(t, sig.ID, outcome.SignalID)
	assert.Equal(t, domain.ResultLoss, outcome.Result)
	assert.Equal(t, domain.BarrierStop, outcome.Barrier)
	assert.InDelta(t, 96.5, outcome.ExitPrice, 1e-9)
	assert.InDelta(t, -3.5, outcome.ReturnPct, 1e-9)
	assert.Greater(t, outcome.Duration, time.Duration(0))

	stored, err := store.ListOutcomes(context.Background(), persistence.TimeRange{}, 10)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, domain.ResultLoss, stored[0].Result)

	assert.Eventually(t, func() bool { return m.ActiveCount() == 0 },
		time.Second, 5*time.Millisecond)
}

func TestTargetHitResolvesWinAndAllowsContinuation(t *testing.T) {
	syn := provider.NewSynthetic()
	syn.SetPrice("ETHUSD", 100)
	m, ch, _ := testManager(t, syn)

	_, ok, _ := m.Publish(context.Background(), acceptedSignal("ETHUSD", domain.Long, domain.TrendingUp))
	require.True(t, ok)

	syn.SetPrice("ETHUSD", 103.2)
	outcome := waitOutcome(t, ch)
	assert.Equal(t, domain.ResultWin, outcome.Result)
	assert.Equal(t, domain.BarrierTarget, outcome.Barrier)

	// A WIN on the same key may continue immediately inside the window.
	assert.Eventually(t, func() bool {
		_, ok, _ := m.Publish(context.Background(), acceptedSignal("ETHUSD", domain.Long, domain.TrendingUp))
		return ok
	}, time.Second, 5*time.Millisecond)
}

func TestLossTriggersCooldown(t *testing.T) {
	syn := provider.NewSynthetic()
	syn.SetPrice("SOLUSD", 100)
	m, ch, _ := testManager(t, syn)

	_, ok, _ := m.Publish(context.Background(), acceptedSignal("SOLUSD", domain.Long, domain.TrendingUp))
	require.True(t, ok)

	syn.SetPrice("SOLUSD", 95)
	waitOutcome(t, ch)

	assert.Eventually(t, func() bool { return m.ActiveCount() == 0 },
		time.Second, 5*time.Millisecond)

	syn.SetPrice("SOLUSD", 100)
	_, ok, reason := m.Publish(context.Background(), acceptedSignal("SOLUSD", domain.Long, domain.TrendingUp))
	assert.False(t, ok)
	assert.Equal(t, ReasonCooldownActive, reason)
}

func TestShortSignalBarriers(t *testing.T) {
	syn := provider.NewSynthetic()
	syn.SetPrice("ADAUSD", 100)
	m, ch, _ := testManager(t, syn)

	_, ok, _ := m.Publish(context.Background(), acceptedSignal("ADAUSD", domain.Short, domain.TrendingDown))
	require.True(t, ok)

	syn.SetPrice("ADAUSD", 96.8)
	outcome := waitOutcome(t, ch)
	assert.Equal(t, domain.ResultWin, outcome.Result)
	// Short return is positive when price falls.
	assert.InDelta(t, 3.2, outcome.ReturnPct, 1e-9)
}

func TestCloseStopsMonitorsWithoutResolving(t *testing.T) {
	syn := provider.NewSynthetic()
	syn.SetPrice("LINKUSD", 100)
	cfg := config.Default()
	cfg.Lifecycle.MonitorInterval = 5 * time.Millisecond
	b, ch := testBus(t)
	store := memory.NewStore()
	m := NewManager(config.NewStatic(cfg), syn, store, b, telemetry.NewMetrics(nil))
	ctx, cancel := context.WithCancel(context.Background())
	m.Start(ctx)

	_, ok, _ := m.Publish(context.Background(), acceptedSignal("LINKUSD", domain.Long, domain.TrendingUp))
	require.True(t, ok)

	cancel()
	m.Close() // returns only when every monitor goroutine has exited
	b.Close()

	outcomes, err := store.ListOutcomes(context.Background(), persistence.TimeRange{}, 10)
	require.NoError(t, err)
	assert.Empty(t, outcomes)
	for range ch {
		// drain; no outcome message should have been produced
	}
}

func TestClassifyExpiry(t *testing.T) {
	long := &domain.PublishedSignal{FilteredSignal: acceptedSignal("X", domain.Long, domain.Choppy)}

	assert.Equal(t, domain.ResultWin, classifyExpiry(long, 101.0))     // 1/3 of the way to target
	assert.Equal(t, domain.ResultLoss, classifyExpiry(long, 99.0))     // 1/3 of the way to stop
	assert.Equal(t, domain.ResultTimeout, classifyExpiry(long, 100.3)) // nowhere

	short := &domain.PublishedSignal{FilteredSignal: acceptedSignal("X", domain.Short, domain.Choppy)}
	assert.Equal(t, domain.ResultWin, classifyExpiry(short, 99.0))
	assert.Equal(t, domain.ResultLoss, classifyExpiry(short, 101.0))
	assert.Equal(t, domain.ResultTimeout, classifyExpiry(short, 100.2))
}
