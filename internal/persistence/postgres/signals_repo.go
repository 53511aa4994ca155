// Package postgres implements the audit store on PostgreSQL. Rows carry the
// full record as JSONB next to the indexed query columns, so the schema never
// lags the domain model.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ignitex/ignitex/internal/domain"
	"github.com/ignitex/ignitex/internal/persistence"
)

// signalStore implements persistence.SignalStore for PostgreSQL.
type signalStore struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewSignalStore creates a PostgreSQL-backed audit store.
func NewSignalStore(db *sqlx.DB, timeout time.Duration) persistence.SignalStore {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &signalStore{db: db, timeout: timeout}
}

// Open connects and verifies the DSN.
func Open(dsn string, maxOpenConns int) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
	}
	return db, nil
}

// InsertFiltered appends a gate verdict.
func (s *signalStore) InsertFiltered(ctx context.Context, signal domain.FilteredSignal) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	payload, err := json.Marshal(signal)
	if err != nil {
		return fmt.Errorf("failed to marshal signal: %w", err)
	}

	query := `
		INSERT INTO filtered_signals (id, ts, symbol, direction, tier, rejected, reject_reason, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err = s.db.ExecContext(ctx, query,
		signal.ID, signal.FilteredAt, signal.Symbol, string(signal.Direction),
		string(signal.Tier), signal.Rejected, signal.RejectReason, payload)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return fmt.Errorf("duplicate signal %s: %w", signal.ID, err)
		}
		return fmt.Errorf("failed to insert filtered signal: %w", err)
	}
	return nil
}

// InsertOutcome appends a terminal outcome.
func (s *signalStore) InsertOutcome(ctx context.Context, outcome domain.Outcome) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	payload, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("failed to marshal outcome: %w", err)
	}

	query := `
		INSERT INTO outcomes (signal_id, ts, symbol, result, barrier, exit_price, return_pct, duration_ms, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err = s.db.ExecContext(ctx, query,
		outcome.SignalID, outcome.ResolvedAt, outcome.Symbol, string(outcome.Result),
		string(outcome.Barrier), outcome.ExitPrice, outcome.ReturnPct,
		outcome.Duration.Milliseconds(), payload)
	if err != nil {
		return fmt.Errorf("failed to insert outcome: %w", err)
	}
	return nil
}

// GetFiltered fetches one signal by id.
func (s *signalStore) GetFiltered(ctx context.Context, id string) (domain.FilteredSignal, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var payload []byte
	err := s.db.QueryRowxContext(ctx,
		`SELECT payload FROM filtered_signals WHERE id = $1`, id).Scan(&payload)
	if err == sql.ErrNoRows {
		return domain.FilteredSignal{}, fmt.Errorf("signal %s not found", id)
	}
	if err != nil {
		return domain.FilteredSignal{}, fmt.Errorf("failed to fetch signal: %w", err)
	}

	var signal domain.FilteredSignal
	if err := json.Unmarshal(payload, &signal); err != nil {
		return domain.FilteredSignal{}, fmt.Errorf("failed to unmarshal signal: %w", err)
	}
	return signal, nil
}

// ListFiltered retrieves signals in the window, newest first. Empty symbol
// matches all instruments.
func (s *signalStore) ListFiltered(ctx context.Context, symbol string, tr persistence.TimeRange, limit int) ([]domain.FilteredSignal, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	query := `
		SELECT payload FROM filtered_signals
		WHERE ($1 = '' OR symbol = $1)
		  AND ($2::timestamptz IS NULL OR ts >= $2)
		  AND ($3::timestamptz IS NULL OR ts <= $3)
		ORDER BY ts DESC
		LIMIT $4`

	rows, err := s.db.QueryxContext(ctx, query,
		symbol, nullTime(tr.From), nullTime(tr.To), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list filtered signals: %w", err)
	}
	defer rows.Close()

	var out []domain.FilteredSignal
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan signal row: %w", err)
		}
		var signal domain.FilteredSignal
		if err := json.Unmarshal(payload, &signal); err != nil {
			return nil, fmt.Errorf("failed to unmarshal signal row: %w", err)
		}
		out = append(out, signal)
	}
	return out, rows.Err()
}

// ListOutcomes retrieves outcomes in the window, oldest first so learner
// replay applies them in arrival order.
func (s *signalStore) ListOutcomes(ctx context.Context, tr persistence.TimeRange, limit int) ([]domain.Outcome, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	query := `
		SELECT payload FROM outcomes
		WHERE ($1::timestamptz IS NULL OR ts >= $1)
		  AND ($2::timestamptz IS NULL OR ts <= $2)
		ORDER BY ts ASC
		LIMIT $3`

	rows, err := s.db.QueryxContext(ctx, query, nullTime(tr.From), nullTime(tr.To), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list outcomes: %w", err)
	}
	defer rows.Close()

	var out []domain.Outcome
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan outcome row: %w", err)
		}
		var outcome domain.Outcome
		if err := json.Unmarshal(payload, &outcome); err != nil {
			return nil, fmt.Errorf("failed to unmarshal outcome row: %w", err)
		}
		out = append(out, outcome)
	}
	return out, rows.Err()
}

func nullTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}
