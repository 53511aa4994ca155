// Package reputation tracks per (strategy, regime) win/loss history. The
// store is written only by the continuous learner and read concurrently by
// the consensus engine, so all access goes through the lock — never ambient
// global state.
package reputation

import (
	"math"
	"sync"

	"github.com/ignitex/ignitex/internal/domain"
)

// Stats is the rolling record for one (strategy, regime) pair.
type Stats struct {
	Strategy string        `json:"strategy"`
	Regime   domain.Regime `json:"regime"`
	Wins     int           `json:"wins"`
	Losses   int           `json:"losses"`
	WinRate  float64       `json:"win_rate"` // 0-1
	Samples  int           `json:"samples"`
}

type key struct {
	strategy string
	regime   domain.Regime
}

// Store is the shared reputation table.
type Store struct {
	mu    sync.RWMutex
	stats map[key]*Stats
}

// NewStore creates an empty reputation table.
func NewStore() *Store {
	return &Store{stats: make(map[key]*Stats)}
}

// Record attributes one resolved outcome to a (strategy, regime) pair.
// Timeouts are recorded as half a win so inconclusive signals neither build
// nor destroy reputation.
func (s *Store) Record(strategy string, regime domain.Regime, result domain.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key{strategy, regime}
	st, ok := s.stats[k]
	if !ok {
		st = &Stats{Strategy: strategy, Regime: regime}
		s.stats[k] = st
	}

	switch result {
	case domain.ResultWin:
		st.Wins++
	case domain.ResultLoss:
		st.Losses++
	}
	st.Samples++

	credit := float64(st.Wins) + 0.5*float64(st.Samples-st.Wins-st.Losses)
	st.WinRate = credit / float64(st.Samples)
}

// WinRate returns the rolling win rate and sample count; (0.5, 0) when the
// pair has no history yet.
func (s *Store) WinRate(strategy string, regime domain.Regime) (float64, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.stats[key{strategy, regime}]
	if !ok || st.Samples == 0 {
		return 0.5, 0
	}
	return st.WinRate, st.Samples
}

// Multiplier converts reputation into a consensus weight factor in [0.5, 1.5].
// Small samples shrink toward 1.0 so a lucky first trade cannot dominate.
func (s *Store) Multiplier(strategy string, regime domain.Regime) float64 {
	winRate, samples := s.WinRate(strategy, regime)
	shrink := math.Min(float64(samples)/20.0, 1.0)
	return 1.0 + (winRate-0.5)*shrink
}

// Snapshot copies the full table for the observability surface.
func (s *Store) Snapshot() []Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Stats, 0, len(s.stats))
	for _, st := range s.stats {
		out = append(out, *st)
	}
	return out
}
