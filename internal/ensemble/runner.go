package ensemble

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/ignitex/ignitex/internal/data"
	"github.com/ignitex/ignitex/internal/domain"
)

// Options are the per-scan knobs read from the hot-reloadable config.
type Options struct {
	Timeout       time.Duration
	Disabled      []string
	MinConfidence map[string]float64 // per-strategy override of the abstain floor
}

// StrategyHealth is the operator view of one detector.
type StrategyHealth struct {
	Name                string `json:"name"`
	BreakerState        string `json:"breaker_state"`
	ConsecutiveFailures uint32 `json:"consecutive_failures"`
	ManuallyDisabled    bool   `json:"manually_disabled"`
}

// Runner executes every healthy strategy concurrently with a bounded timeout
// and joins the votes. One failing detector is contained by its own circuit
// breaker and cannot degrade ensemble latency.
type Runner struct {
	strategies []Strategy
	maxErrors  uint32

	mu       sync.RWMutex
	breakers map[string]*gobreaker.CircuitBreaker
	disabled map[string]bool
}

// DefaultStrategies returns the compile-time detector set.
func DefaultStrategies() []Strategy {
	return []Strategy{
		&MomentumStrategy{},
		&BreakoutStrategy{},
		&MeanReversionStrategy{},
		&VolumeSurgeStrategy{},
		&OrderFlowStrategy{},
		&FundingStrategy{},
	}
}

// NewRunner builds a runner with one circuit breaker per strategy, tripping
// after maxConsecutiveErrors failures.
func NewRunner(strategies []Strategy, maxConsecutiveErrors uint32) *Runner {
	if maxConsecutiveErrors == 0 {
		maxConsecutiveErrors = 5
	}
	r := &Runner{
		strategies: strategies,
		maxErrors:  maxConsecutiveErrors,
		breakers:   make(map[string]*gobreaker.CircuitBreaker),
		disabled:   make(map[string]bool),
	}
	for _, s := range strategies {
		r.breakers[s.Name()] = r.newBreaker(s.Name())
	}
	return r
}

func (r *Runner) newBreaker(name string) *gobreaker.CircuitBreaker {
	max := r.maxErrors
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    name,
		Timeout: 10 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= max
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("strategy", name).
				Str("from", from.String()).Str("to", to.String()).
				Msg("strategy circuit breaker state change")
		},
	})
}

// Collect runs all enabled strategies in parallel and returns the joined vote
// list. A strategy that errors, times out, or abstains contributes nothing.
func (r *Runner) Collect(ctx context.Context, snap domain.MarketSnapshot, ind *data.IndicatorCache, opts Options) []domain.StrategyVote {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	disabled := make(map[string]bool, len(opts.Disabled))
	for _, name := range opts.Disabled {
		disabled[name] = true
	}

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		votes []domain.StrategyVote
	)

	for _, s := range r.strategies {
		if disabled[s.Name()] || r.isManuallyDisabled(s.Name()) {
			continue
		}
		wg.Add(1)
		go func(s Strategy) {
			defer wg.Done()
			v, ok := r.runOne(ctx, s, snap, ind, opts)
			if !ok {
				return
			}
			mu.Lock()
			votes = append(votes, v)
			mu.Unlock()
		}(s)
	}
	wg.Wait()

	// Deterministic ordering for downstream math and logs.
	sort.Slice(votes, func(i, j int) bool { return votes[i].Strategy < votes[j].Strategy })
	return votes
}

func (r *Runner) runOne(ctx context.Context, s Strategy, snap domain.MarketSnapshot, ind *data.IndicatorCache, opts Options) (domain.StrategyVote, bool) {
	r.mu.RLock()
	breaker := r.breakers[s.Name()]
	r.mu.RUnlock()

	result, err := breaker.Execute(func() (interface{}, error) {
		evalCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
		defer cancel()

		type outcome struct {
			vote domain.StrategyVote
			ok   bool
			err  error
		}
		ch := make(chan outcome, 1)
		go func() {
			v, ok, err := s.Evaluate(evalCtx, snap, ind)
			ch <- outcome{v, ok, err}
		}()

		select {
		case <-evalCtx.Done():
			return nil, fmt.Errorf("strategy %s timed out after %s", s.Name(), opts.Timeout)
		case out := <-ch:
			if out.err != nil {
				return nil, out.err
			}
			if !out.ok {
				return nil, nil // abstain
			}
			return out.vote, nil
		}
	})
	if err != nil {
		if err != gobreaker.ErrOpenState {
			log.Warn().Str("strategy", s.Name()).Str("symbol", snap.Symbol).
				Err(err).Msg("strategy evaluation failed")
		}
		return domain.StrategyVote{}, false
	}
	if result == nil {
		return domain.StrategyVote{}, false
	}

	v := result.(domain.StrategyVote)
	if floor, ok := opts.MinConfidence[s.Name()]; ok && v.Confidence < floor {
		return domain.StrategyVote{}, false
	}
	v.Timestamp = time.Now()
	return v, true
}

// Disable takes a strategy out of rotation until Enable is called.
func (r *Runner) Disable(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disabled[name] = true
}

// Enable returns a strategy to rotation and resets its circuit breaker.
func (r *Runner) Enable(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.disabled, name)
	if _, ok := r.breakers[name]; ok {
		r.breakers[name] = r.newBreaker(name)
	}
}

func (r *Runner) isManuallyDisabled(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.disabled[name]
}

// Health reports breaker state per strategy for the observability surface.
func (r *Runner) Health() []StrategyHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]StrategyHealth, 0, len(r.strategies))
	for _, s := range r.strategies {
		b := r.breakers[s.Name()]
		out = append(out, StrategyHealth{
			Name:                s.Name(),
			BreakerState:        b.State().String(),
			ConsecutiveFailures: b.Counts().ConsecutiveFailures,
			ManuallyDisabled:    r.disabled[s.Name()],
		})
	}
	return out
}
