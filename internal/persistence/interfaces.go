// Package persistence defines the append-only audit store. Every
// FilteredSignal — rejected ones included — and every Outcome is persisted,
// queryable by time window for funnel audits and for seeding the continuous
// learner on restart.
package persistence

import (
	"context"
	"time"

	"github.com/ignitex/ignitex/internal/domain"
)

// TimeRange bounds a query window.
type TimeRange struct {
	From time.Time
	To   time.Time
}

// Contains reports whether t falls inside the window; zero bounds are open.
func (tr TimeRange) Contains(t time.Time) bool {
	if !tr.From.IsZero() && t.Before(tr.From) {
		return false
	}
	if !tr.To.IsZero() && t.After(tr.To) {
		return false
	}
	return true
}

// SignalStore is the append-only record of gate verdicts and outcomes.
type SignalStore interface {
	InsertFiltered(ctx context.Context, signal domain.FilteredSignal) error
	InsertOutcome(ctx context.Context, outcome domain.Outcome) error
	GetFiltered(ctx context.Context, id string) (domain.FilteredSignal, error)
	ListFiltered(ctx context.Context, symbol string, tr TimeRange, limit int) ([]domain.FilteredSignal, error)
	ListOutcomes(ctx context.Context, tr TimeRange, limit int) ([]domain.Outcome, error)
}
