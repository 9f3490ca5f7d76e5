package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/statfetch/internal/engine"
	"github.com/roach88/statfetch/internal/fingerprint"
	"github.com/roach88/statfetch/internal/parser"
)

// Observation is one stored record.
type Observation struct {
	Dataset     string
	Fingerprint fingerprint.Fingerprint
	Record      int
	Request     string
	Params      map[string]string
	Fields      map[string]string
	RunID       string
	LoadedAt    time.Time
}

// WriteTable stores the rows of one parsed payload, replacing any rows an
// earlier load stored for the same fingerprint. The write is atomic.
func (s *Store) WriteTable(ctx context.Context, table *parser.Table, runID string, loadedAt time.Time) error {
	params, err := json.Marshal(table.Params)
	if err != nil {
		return fmt.Errorf("write table: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write table: %w", err)
	}
	defer tx.Rollback()

	// Drop records beyond the new payload's length; the rest are upserted.
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM observations
		WHERE dataset = ? AND fingerprint = ? AND record >= ?
	`, table.Dataset, string(table.Fingerprint), len(table.Rows)); err != nil {
		return fmt.Errorf("write table: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO observations
		(dataset, fingerprint, record, request, params, fields, run_id, loaded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(dataset, fingerprint, record) DO UPDATE SET
			request = excluded.request,
			params = excluded.params,
			fields = excluded.fields,
			run_id = excluded.run_id,
			loaded_at = excluded.loaded_at
	`)
	if err != nil {
		return fmt.Errorf("write table: %w", err)
	}
	defer stmt.Close()

	at := loadedAt.UTC().Format(time.RFC3339Nano)
	for _, row := range table.Rows {
		fields, err := json.Marshal(row.Fields)
		if err != nil {
			return fmt.Errorf("write table: record %d: %w", row.Record, err)
		}
		if _, err := stmt.ExecContext(ctx,
			table.Dataset,
			string(table.Fingerprint),
			row.Record,
			table.Request,
			string(params),
			string(fields),
			runID,
			at,
		); err != nil {
			return fmt.Errorf("write table: record %d: %w", row.Record, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write table: %w", err)
	}
	return nil
}

// Store writes the *parser.Table held by res and returns the number of
// records written. It is the engine's load sink.
func (s *Store) Store(ctx context.Context, res engine.Result, runID string, at time.Time) (int, error) {
	table, ok := res.Value.(*parser.Table)
	if !ok {
		return 0, fmt.Errorf("write table: unexpected value %T", res.Value)
	}
	if err := s.WriteTable(ctx, table, runID, at); err != nil {
		return 0, err
	}
	return len(table.Rows), nil
}

var _ engine.Sink = (*Store)(nil)

// Count returns the number of stored records for a dataset.
func (s *Store) Count(ctx context.Context, dataset string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM observations WHERE dataset = ?`, dataset).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count observations: %w", err)
	}
	return n, nil
}

// Observations returns the stored records of a dataset ordered by request
// and record.
func (s *Store) Observations(ctx context.Context, dataset string) ([]Observation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT dataset, fingerprint, record, request, params, fields, run_id, loaded_at
		FROM observations
		WHERE dataset = ?
		ORDER BY request COLLATE BINARY ASC, record ASC, fingerprint COLLATE BINARY ASC
	`, dataset)
	if err != nil {
		return nil, fmt.Errorf("query observations: %w", err)
	}
	defer rows.Close()

	var out []Observation
	for rows.Next() {
		obs, err := scanObservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, obs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query observations: %w", err)
	}
	return out, nil
}

func scanObservation(rows *sql.Rows) (Observation, error) {
	var (
		obs            Observation
		fp             string
		params, fields string
		loadedAt       string
	)
	if err := rows.Scan(&obs.Dataset, &fp, &obs.Record, &obs.Request, &params, &fields, &obs.RunID, &loadedAt); err != nil {
		return Observation{}, fmt.Errorf("scan observation: %w", err)
	}
	obs.Fingerprint = fingerprint.Fingerprint(fp)
	if err := json.Unmarshal([]byte(params), &obs.Params); err != nil {
		return Observation{}, fmt.Errorf("scan observation params: %w", err)
	}
	if err := json.Unmarshal([]byte(fields), &obs.Fields); err != nil {
		return Observation{}, fmt.Errorf("scan observation fields: %w", err)
	}
	t, err := time.Parse(time.RFC3339Nano, loadedAt)
	if err != nil {
		return Observation{}, fmt.Errorf("scan observation loaded_at: %w", err)
	}
	obs.LoadedAt = t
	return obs, nil
}
