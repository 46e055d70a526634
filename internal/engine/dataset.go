package engine

import (
	"context"
	"fmt"
	"path/filepath"

	"adpulse/internal/csvio"
)

// Dataset is a CSV loaded into a table of a DB with its logical columns
// resolved.
type Dataset struct {
	DB     *DB
	Table  string
	Source string
	Rows   int
	cols   map[string]string
}

// LoadDataset resolves schema against t, applies per-field normalizers to
// the raw cells, then loads the table.
func LoadDataset(ctx context.Context, db *DB, table string, t *csvio.Table, schema csvio.Schema, normalize map[string]func(string) string) (*Dataset, error) {
	cols, err := schema.Resolve(t)
	if err != nil {
		return nil, err
	}
	for field, fn := range normalize {
		if col, ok := cols[field]; ok {
			t.MapColumn(col, fn)
		}
	}
	n, err := db.Load(ctx, table, t, schema.Numeric(cols))
	if err != nil {
		return nil, err
	}
	return &Dataset{DB: db, Table: table, Source: filepath.Base(t.Path), Rows: n, cols: cols}, nil
}

// Has reports whether the logical field was found in the CSV.
func (d *Dataset) Has(field string) bool {
	_, ok := d.cols[field]
	return ok
}

// Col returns the quoted column for field; fallback is a SQL literal used
// when the optional field is absent ("0", "''").
func (d *Dataset) Col(field, fallback string) (string, error) {
	col, ok := d.cols[field]
	if !ok {
		if fallback == "" {
			return "", fmt.Errorf("%s: no column for %s", d.Source, field)
		}
		return fallback, nil
	}
	return d.DB.Ident(d.Table, col)
}

// Cols resolves several fields; each entry is {field, fallback}.
func (d *Dataset) Cols(fields ...[2]string) (map[string]string, error) {
	out := make(map[string]string, len(fields))
	for _, f := range fields {
		expr, err := d.Col(f[0], f[1])
		if err != nil {
			return nil, err
		}
		out[f[0]] = expr
	}
	return out, nil
}
