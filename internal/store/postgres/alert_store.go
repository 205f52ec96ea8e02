package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/huntwise/regwatch/internal/regdata"
)

// AlertStore is the Postgres-backed alert log.
type AlertStore struct {
	pool  Pool
	table string
}

// NewAlertStore constructs a store from an existing pool.
func NewAlertStore(pool Pool, table string) (*AlertStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	t, err := checkTable(table, "alerts")
	if err != nil {
		return nil, err
	}
	return &AlertStore{pool: pool, table: t}, nil
}

// Append records one alert.
func (s *AlertStore) Append(ctx context.Context, alert regdata.Alert) error {
	query := fmt.Sprintf(`INSERT INTO %s (id, source_id, category, severity, code, message, raised_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`, s.table)
	if _, err := s.pool.Exec(ctx, query,
		alert.ID, alert.SourceID, string(alert.Category),
		string(alert.Severity), alert.Code, alert.Message, alert.RaisedAt,
	); err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

// Since returns every alert raised at or after the cutoff, oldest first.
func (s *AlertStore) Since(ctx context.Context, cutoff time.Time) ([]regdata.Alert, error) {
	query := fmt.Sprintf(`SELECT id, source_id, category, severity, code, message, raised_at
FROM %s WHERE raised_at >= $1 ORDER BY raised_at ASC`, s.table)
	rows, err := s.pool.Query(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("select alerts: %w", err)
	}
	defer rows.Close()

	var out []regdata.Alert
	for rows.Next() {
		var (
			a        regdata.Alert
			category string
			severity string
		)
		if err := rows.Scan(&a.ID, &a.SourceID, &category, &severity, &a.Code, &a.Message, &a.RaisedAt); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		a.Category = regdata.Category(category)
		a.Severity = regdata.AlertSeverity(severity)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate alerts: %w", err)
	}
	return out, nil
}
