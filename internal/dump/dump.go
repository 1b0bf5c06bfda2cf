// Package dump writes database tables to JSON files, one file per table.
package dump

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/lib/pq"
	"github.com/pkg/errors"
)

// Querier runs queries. *sql.DB, *sql.Conn and tenantschema.Session all qualify.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// Table names a table to dump. An empty Schema leaves the name unqualified.
type Table struct {
	Name   string
	Schema string
}

func (t Table) qualified() string {
	if t.Schema == "" {
		return pq.QuoteIdentifier(t.Name)
	}
	return pq.QuoteIdentifier(t.Schema) + "." + pq.QuoteIdentifier(t.Name)
}

// Tables writes each table's rows to dir/<name>.json
// as a JSON array of objects keyed by column name.
// It creates dir if needed.
func Tables(ctx context.Context, dir string, q Querier, tables []Table) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "creating %s", dir)
	}
	for _, t := range tables {
		rows, err := readRows(ctx, q, t)
		if err != nil {
			return errors.Wrapf(err, "reading %s", t.Name)
		}
		data, err := json.MarshalIndent(rows, "", "  ")
		if err != nil {
			return errors.Wrapf(err, "encoding %s", t.Name)
		}
		path := filepath.Join(dir, t.Name+".json")
		if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
			return errors.Wrapf(err, "writing %s", path)
		}
	}
	return nil
}

func readRows(ctx context.Context, q Querier, t Table) ([]map[string]interface{}, error) {
	rows, err := q.QueryContext(ctx, "SELECT * FROM "+t.qualified())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRows(rows)
}

// rowScanner is the part of *sql.Rows that scanRows uses.
type rowScanner interface {
	Columns() ([]string, error)
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

func scanRows(rows rowScanner) ([]map[string]interface{}, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	result := []map[string]interface{}{}
	for rows.Next() {
		vals := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]interface{}, len(cols))
		for i, col := range cols {
			// lib/pq returns text-like columns it cannot decode as []byte.
			if b, ok := vals[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = vals[i]
			}
		}
		result = append(result, row)
	}
	return result, rows.Err()
}
