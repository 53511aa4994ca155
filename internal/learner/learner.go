// Package learner closes the feedback loop ("Zeta"): every resolved outcome
// retrains the quality gate model and updates per (strategy, regime)
// reputation, so the next scan cycle already prices in the last trade.
package learner

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ignitex/ignitex/internal/bus"
	"github.com/ignitex/ignitex/internal/domain"
	"github.com/ignitex/ignitex/internal/gate"
	"github.com/ignitex/ignitex/internal/persistence"
	"github.com/ignitex/ignitex/internal/reputation"
	"github.com/ignitex/ignitex/internal/telemetry"
)

// Learner consumes resolved outcomes and feeds them back into the model and
// the reputation table.
type Learner struct {
	rep       *reputation.Store
	scorer    *gate.LogisticScorer
	store     persistence.SignalStore
	metrics   *telemetry.Metrics
	heartbeat time.Duration
}

// New wires the learner against the shared model and reputation store.
func New(rep *reputation.Store, scorer *gate.LogisticScorer, store persistence.SignalStore, metrics *telemetry.Metrics, heartbeat time.Duration) *Learner {
	if heartbeat <= 0 {
		heartbeat = time.Second
	}
	return &Learner{rep: rep, scorer: scorer, store: store, metrics: metrics, heartbeat: heartbeat}
}

// Run consumes the outcome subscription until ctx cancels or the channel
// closes. The heartbeat republishes model health even when no outcomes
// arrive, so a stalled feedback loop is visible on the dashboard.
func (l *Learner) Run(ctx context.Context, messages <-chan bus.Message) {
	ticker := time.NewTicker(l.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.publishStats()
		case msg, ok := <-messages:
			if !ok {
				return
			}
			if msg.Kind != bus.KindOutcomeResolved || msg.Outcome == nil {
				continue
			}
			l.apply(ctx, *msg.Outcome)
			l.publishStats()
		}
	}
}

// Seed replays persisted outcomes after a restart so the model and the
// reputation table do not start cold on a warm system.
func (l *Learner) Seed(ctx context.Context, window time.Duration) error {
	tr := persistence.TimeRange{From: time.Now().Add(-window), To: time.Now()}
	outcomes, err := l.store.ListOutcomes(ctx, tr, 0)
	if err != nil {
		return err
	}
	for _, o := range outcomes {
		l.apply(ctx, o)
	}
	l.publishStats()
	if len(outcomes) > 0 {
		log.Info().Int("outcomes", len(outcomes)).Dur("window", window).Msg("learner state seeded from store")
	}
	return nil
}

func (l *Learner) apply(ctx context.Context, outcome domain.Outcome) {
	sig, err := l.store.GetFiltered(ctx, outcome.SignalID)
	if err != nil {
		log.Warn().Err(err).Str("signal", outcome.SignalID).Msg("outcome without stored signal, skipping")
		return
	}

	regime := sig.Regime.Regime
	for _, vote := range sig.Votes {
		if vote.Direction == sig.Direction {
			l.rep.Record(vote.Strategy, regime, outcome.Result)
		}
	}

	l.scorer.Train(gate.FeaturesFromVector(sig.Features), labelFor(outcome.Result))

	log.Debug().
		Str("signal", outcome.SignalID).
		Str("result", string(outcome.Result)).
		Str("originator", sig.Originator).
		Str("regime", string(regime)).
		Msg("outcome applied to model and reputation")
}

func (l *Learner) publishStats() {
	accuracy, samples := l.scorer.Accuracy()
	l.metrics.SetModelStats(accuracy, samples)
}

// labelFor maps results to training labels; timeouts carry half credit.
func labelFor(result domain.Result) float64 {
	switch result {
	case domain.ResultWin:
		return 1.0
	case domain.ResultLoss:
		return 0.0
	default:
		return 0.5
	}
}
