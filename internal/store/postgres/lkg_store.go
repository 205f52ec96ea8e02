package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/huntwise/regwatch/internal/regdata"
)

// LKGStore persists one last-known-good snapshot per source.
type LKGStore struct {
	pool  Pool
	table string
}

// NewLKGStore constructs a store from an existing pool.
func NewLKGStore(pool Pool, table string) (*LKGStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	t, err := checkTable(table, "lkg_entries")
	if err != nil {
		return nil, err
	}
	return &LKGStore{pool: pool, table: t}, nil
}

// Close releases the underlying pool resources.
func (s *LKGStore) Close() {
	s.pool.Close()
}

// Put replaces the snapshot for a source. The upsert makes the replacement
// atomic: readers see either the old entry or the new one, never a mix.
func (s *LKGStore) Put(ctx context.Context, entry regdata.LKGEntry) error {
	payload, err := json.Marshal(entry.Data)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	query := fmt.Sprintf(`INSERT INTO %s (source_id, data, captured_at, source_url, content_hash)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (source_id) DO UPDATE SET
	data = EXCLUDED.data,
	captured_at = EXCLUDED.captured_at,
	source_url = EXCLUDED.source_url,
	content_hash = EXCLUDED.content_hash`, s.table)
	if _, err := s.pool.Exec(ctx, query,
		entry.SourceID, payload, entry.CapturedAt, entry.SourceURL, entry.ContentHash,
	); err != nil {
		return fmt.Errorf("upsert lkg entry: %w", err)
	}
	return nil
}

// Get fetches the snapshot for a source.
func (s *LKGStore) Get(ctx context.Context, sourceID string) (regdata.LKGEntry, bool, error) {
	query := fmt.Sprintf(
		`SELECT data, captured_at, source_url, content_hash FROM %s WHERE source_id = $1`,
		s.table,
	)
	entry := regdata.LKGEntry{SourceID: sourceID}
	var payload []byte
	err := s.pool.QueryRow(ctx, query, sourceID).Scan(
		&payload, &entry.CapturedAt, &entry.SourceURL, &entry.ContentHash,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return regdata.LKGEntry{}, false, nil
	}
	if err != nil {
		return regdata.LKGEntry{}, false, fmt.Errorf("select lkg entry: %w", err)
	}
	if err := json.Unmarshal(payload, &entry.Data); err != nil {
		return regdata.LKGEntry{}, false, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return entry, true, nil
}
