package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/huntwise/regwatch/internal/regdata"
)

// BackoffStore persists consecutive-failure state per (source, category).
type BackoffStore struct {
	pool  Pool
	table string
}

// NewBackoffStore constructs a store from an existing pool.
func NewBackoffStore(pool Pool, table string) (*BackoffStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	t, err := checkTable(table, "backoff_states")
	if err != nil {
		return nil, err
	}
	return &BackoffStore{pool: pool, table: t}, nil
}

// Get fetches the state for a pair; a missing row is zero failures.
func (s *BackoffStore) Get(ctx context.Context, sourceID string, category regdata.Category) (regdata.BackoffState, error) {
	query := fmt.Sprintf(
		`SELECT failures, last_error, updated_at FROM %s WHERE source_id = $1 AND category = $2`,
		s.table,
	)
	state := regdata.BackoffState{SourceID: sourceID, Category: category}
	err := s.pool.QueryRow(ctx, query, sourceID, string(category)).Scan(
		&state.Failures, &state.LastError, &state.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return regdata.BackoffState{SourceID: sourceID, Category: category}, nil
	}
	if err != nil {
		return regdata.BackoffState{}, fmt.Errorf("select backoff state: %w", err)
	}
	return state, nil
}

// Record upserts the state for a pair.
func (s *BackoffStore) Record(ctx context.Context, state regdata.BackoffState) error {
	query := fmt.Sprintf(`INSERT INTO %s (source_id, category, failures, last_error, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (source_id, category) DO UPDATE SET
	failures = EXCLUDED.failures,
	last_error = EXCLUDED.last_error,
	updated_at = EXCLUDED.updated_at`, s.table)
	if _, err := s.pool.Exec(ctx, query,
		state.SourceID, string(state.Category), state.Failures, state.LastError, state.UpdatedAt,
	); err != nil {
		return fmt.Errorf("upsert backoff state: %w", err)
	}
	return nil
}

// List returns every recorded state.
func (s *BackoffStore) List(ctx context.Context) ([]regdata.BackoffState, error) {
	query := fmt.Sprintf(
		`SELECT source_id, category, failures, last_error, updated_at FROM %s ORDER BY source_id, category`,
		s.table,
	)
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("select backoff states: %w", err)
	}
	defer rows.Close()

	var out []regdata.BackoffState
	for rows.Next() {
		var (
			state    regdata.BackoffState
			category string
		)
		if err := rows.Scan(&state.SourceID, &category, &state.Failures, &state.LastError, &state.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan backoff state: %w", err)
		}
		state.Category = regdata.Category(category)
		out = append(out, state)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate backoff states: %w", err)
	}
	return out, nil
}
