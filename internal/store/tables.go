package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
)

// TableStore exports and restores rows of arbitrary tenant-scoped tables.
// Rows travel as JSON objects so column types round-trip through jsonb.
type TableStore struct {
	db DB
}

// ExportRows returns every row of table as a JSON object. A non-empty
// tenantColumn restricts rows to tenantID.
func (s *TableStore) ExportRows(ctx context.Context, table, tenantColumn, tenantID string) ([]map[string]any, error) {
	query := fmt.Sprintf(`SELECT to_jsonb(t) FROM %s t`, pgx.Identifier{table}.Sanitize())
	args := []any{}
	if tenantColumn != "" {
		query += fmt.Sprintf(` WHERE t.%s = $1`, pgx.Identifier{tenantColumn}.Sanitize())
		args = append(args, tenantID)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query table %s: %w", table, err)
	}
	defer rows.Close()

	out := []map[string]any{}
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan %s row: %w", table, err)
		}

		row, err := DecodeRow(raw)
		if err != nil {
			return nil, fmt.Errorf("decode %s row: %w", table, err)
		}
		out = append(out, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate table %s: %w", table, err)
	}

	return out, nil
}

// UpsertRow inserts row into table, updating every supplied column when a
// row with the same conflictKey already exists
func (s *TableStore) UpsertRow(ctx context.Context, table, conflictKey string, row map[string]any) error {
	if _, ok := row[conflictKey]; !ok {
		return fmt.Errorf("upsert into %s: %w", table, ErrMissingConflictKey)
	}

	payload, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("encode %s row: %w", table, err)
	}

	_, err = s.db.Exec(ctx, UpsertQuery(table, conflictKey, row), payload)
	if err != nil {
		return fmt.Errorf("upsert into %s: %w", table, err)
	}

	return nil
}

// UpsertQuery builds the restore statement for a row. The row is bound as a
// single jsonb parameter.
func UpsertQuery(table, conflictKey string, row map[string]any) string {
	ident := pgx.Identifier{table}.Sanitize()

	cols := make([]string, 0, len(row))
	for col := range row {
		if col == conflictKey {
			continue
		}
		cols = append(cols, col)
	}
	sort.Strings(cols)

	query := fmt.Sprintf(
		`INSERT INTO %s SELECT * FROM jsonb_populate_record(NULL::%s, $1::jsonb) ON CONFLICT (%s)`,
		ident, ident, pgx.Identifier{conflictKey}.Sanitize(),
	)
	if len(cols) == 0 {
		return query + ` DO NOTHING`
	}

	targets := make([]string, len(cols))
	excluded := make([]string, len(cols))
	for i, col := range cols {
		targets[i] = pgx.Identifier{col}.Sanitize()
		excluded[i] = "EXCLUDED." + targets[i]
	}

	return query + fmt.Sprintf(` DO UPDATE SET (%s) = ROW(%s)`,
		strings.Join(targets, ", "), strings.Join(excluded, ", "))
}

// DecodeRow decodes a JSON row keeping numbers exact
func DecodeRow(raw []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var row map[string]any
	if err := dec.Decode(&row); err != nil {
		return nil, err
	}
	return row, nil
}
