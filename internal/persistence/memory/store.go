// Package memory implements the audit store in process memory for offline
// scans and tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/ignitex/ignitex/internal/domain"
	"github.com/ignitex/ignitex/internal/persistence"
)

// Store is the in-memory SignalStore.
type Store struct {
	mu       sync.RWMutex
	signals  []domain.FilteredSignal
	byID     map[string]int
	outcomes []domain.Outcome
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{byID: make(map[string]int)}
}

// InsertFiltered appends a gate verdict.
func (s *Store) InsertFiltered(_ context.Context, signal domain.FilteredSignal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byID[signal.ID]; exists {
		return fmt.Errorf("duplicate signal %s", signal.ID)
	}
	s.byID[signal.ID] = len(s.signals)
	s.signals = append(s.signals, signal)
	return nil
}

// InsertOutcome appends a terminal outcome.
func (s *Store) InsertOutcome(_ context.Context, outcome domain.Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes = append(s.outcomes, outcome)
	return nil
}

// GetFiltered fetches one signal by id.
func (s *Store) GetFiltered(_ context.Context, id string) (domain.FilteredSignal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.byID[id]
	if !ok {
		return domain.FilteredSignal{}, fmt.Errorf("signal %s not found", id)
	}
	return s.signals[idx], nil
}

// ListFiltered returns matching signals, newest first.
func (s *Store) ListFiltered(_ context.Context, symbol string, tr persistence.TimeRange, limit int) ([]domain.FilteredSignal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.FilteredSignal
	for i := len(s.signals) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		sig := s.signals[i]
		if symbol != "" && sig.Symbol != symbol {
			continue
		}
		if !tr.Contains(sig.FilteredAt) {
			continue
		}
		out = append(out, sig)
	}
	return out, nil
}

// ListOutcomes returns matching outcomes, oldest first.
func (s *Store) ListOutcomes(_ context.Context, tr persistence.TimeRange, limit int) ([]domain.Outcome, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Outcome
	for _, o := range s.outcomes {
		if limit > 0 && len(out) >= limit {
			break
		}
		if !tr.Contains(o.ResolvedAt) {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

var _ persistence.SignalStore = (*Store)(nil)
