// Package engine is the embedded analytical SQL engine the reports run on:
// a private in-memory sqlite database per run, loaded from CSV tables.
//
// Values only ever reach SQL as bound parameters. Column names come from CSV
// headers and cannot be bound, so they go through Ident, which refuses any
// name not present in a loaded table.
package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	_ "modernc.org/sqlite"

	"adpulse/internal/csvio"
)

// ErrUnknownColumn is returned by Ident for a column the table doesn't have.
var ErrUnknownColumn = errors.New("unknown column")

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Row is one result row keyed by output column name.
type Row map[string]any

// DB wraps one in-memory database.
type DB struct {
	db *sql.DB

	mu     sync.RWMutex
	tables map[string]map[string]struct{}
}

// Open creates an empty in-memory database. Each in-memory sqlite connection
// is its own database, so the pool is pinned to a single connection.
func Open(ctx context.Context) (*DB, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open analytical db: %w", err)
	}
	return &DB{db: db, tables: make(map[string]map[string]struct{})}, nil
}

func (d *DB) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	return d.db.Close()
}

// Load (re)creates table name from t. Columns listed in numeric are typed REAL
// and coerced with csvio.ParseNumber; all others are TEXT.
func (d *DB) Load(ctx context.Context, name string, t *csvio.Table, numeric []string) (int, error) {
	if t == nil {
		return 0, fmt.Errorf("load %s: nil table", name)
	}
	if !tableNamePattern.MatchString(name) {
		return 0, fmt.Errorf("invalid table name %q", name)
	}
	isNum := make(map[string]bool, len(numeric))
	for _, col := range numeric {
		if t.Index(col) < 0 {
			return 0, fmt.Errorf("load %s: %w %q", name, ErrUnknownColumn, col)
		}
		isNum[col] = true
	}
	defs := make([]string, len(t.Headers))
	for i, h := range t.Headers {
		typ := "TEXT"
		if isNum[h] {
			typ = "REAL"
		}
		defs[i] = quoteIdent(h) + " " + typ
	}
	ddl := fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(name), strings.Join(defs, ", "))
	insert := fmt.Sprintf("INSERT INTO %s VALUES (%s)", quoteIdent(name), placeholders(len(t.Headers)))

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoteIdent(name)); err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	if _, err := tx.ExecContext(ctx, ddl); err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("create %s: %w", name, err)
	}
	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	defer stmt.Close()
	args := make([]any, len(t.Headers))
	count := 0
	for _, row := range t.Rows {
		for i, h := range t.Headers {
			cell := strings.TrimSpace(row[i])
			if isNum[h] {
				args[i] = csvio.ParseNumber(cell)
			} else {
				args[i] = cell
			}
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("insert %s row %d: %w", name, count+1, err)
		}
		count++
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	d.register(name, t.Headers)
	return count, nil
}

// LoadValues creates a one-column TEXT table, e.g. a keyword exclusion set.
func (d *DB) LoadValues(ctx context.Context, name, column string, values []string) error {
	t := &csvio.Table{Headers: []string{column}, Rows: make([][]string, 0, len(values))}
	for _, v := range values {
		t.Rows = append(t.Rows, []string{v})
	}
	_, err := d.Load(ctx, name, t, nil)
	return err
}

func (d *DB) register(table string, cols []string) {
	set := make(map[string]struct{}, len(cols))
	for _, c := range cols {
		set[c] = struct{}{}
	}
	d.mu.Lock()
	d.tables[table] = set
	d.mu.Unlock()
}

// Ident returns the quoted identifier for column of a loaded table.
func (d *DB) Ident(table, column string) (string, error) {
	d.mu.RLock()
	cols, ok := d.tables[table]
	d.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("table %q not loaded", table)
	}
	if _, ok := cols[column]; !ok {
		return "", fmt.Errorf("%w %q in %s", ErrUnknownColumn, column, table)
	}
	return quoteIdent(column), nil
}

// Query runs a read query with bound args.
func (d *DB) Query(ctx context.Context, query string, args ...any) ([]Row, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []Row
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		r := make(Row, len(cols))
		for i, c := range cols {
			if b, ok := vals[i].([]byte); ok {
				r[c] = string(b)
				continue
			}
			r[c] = vals[i]
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Exec runs a statement with bound args (temp tables, indexes).
func (d *DB) Exec(ctx context.Context, stmt string, args ...any) error {
	_, err := d.db.ExecContext(ctx, stmt, args...)
	return err
}

// likeEscaper makes %, _ and the escape character itself literal.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// ContainsPattern is a LIKE pattern matching s as a plain substring. Use it
// as `col LIKE ? ESCAPE '\'`.
func ContainsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
