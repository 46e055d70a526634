// Package csvio reads the loosely shaped CSV exports the reports run on:
// newest-file discovery, header normalization, column guessing and numeric
// coercion of "$1,234.50"-style cells.
package csvio

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// ErrNoCSV is returned when a directory holds no matching CSV file.
var ErrNoCSV = errors.New("no csv file found")

// Table is a CSV file held in memory. Every row has len(Headers) cells.
type Table struct {
	Path    string
	Headers []string
	Rows    [][]string
}

// LatestCSV returns the last *.csv in dir by filename sort. Exports are named
// with a sortable timestamp, so the last name is the most recent file.
// An empty prefix matches every file.
func LatestCSV(dir, prefix string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("read dir %s: %w", dir, err)
	}
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		lower := strings.ToLower(e.Name())
		if !strings.HasSuffix(lower, ".csv") {
			continue
		}
		if prefix != "" && !strings.HasPrefix(lower, prefix) {
			continue
		}
		names = append(names, e.Name())
	}
	if len(names) == 0 {
		if prefix != "" {
			return "", fmt.Errorf("%w in %s (prefix %q)", ErrNoCSV, dir, prefix)
		}
		return "", fmt.Errorf("%w in %s", ErrNoCSV, dir)
	}
	sort.Strings(names)
	return filepath.Join(dir, names[len(names)-1]), nil
}

// ReadTable loads a whole CSV file.
func ReadTable(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	t, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	t.Path = path
	return t, nil
}

// Decode reads a CSV stream. Quotes are handled leniently and rows may be
// ragged: short rows are padded, long rows truncated to the header width.
func Decode(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = false

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("empty csv")
	}
	if err != nil {
		return nil, err
	}
	t := &Table{Headers: normalizeHeaders(header)}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if isBlank(rec) {
			continue
		}
		row := make([]string, len(t.Headers))
		copy(row, rec)
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

func normalizeHeaders(raw []string) []string {
	out := make([]string, len(raw))
	seen := make(map[string]int, len(raw))
	for i, h := range raw {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		h = strings.Join(strings.Fields(h), " ")
		if h == "" {
			h = fmt.Sprintf("column_%d", i+1)
		}
		key := strings.ToLower(h)
		if n := seen[key]; n > 0 {
			h = fmt.Sprintf("%s_%d", h, n+1)
		}
		seen[key]++
		out[i] = h
	}
	return out
}

func isBlank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// Column guesses a header from candidate fragments. Candidates are tried in
// order; for each one an exact (case-insensitive) header match beats a
// substring match.
func (t *Table) Column(candidates ...string) (string, bool) {
	return t.columnExcluding(nil, candidates...)
}

// Index returns the position of header h, or -1.
func (t *Table) Index(h string) int {
	for i, name := range t.Headers {
		if name == h {
			return i
		}
	}
	return -1
}

// ParseNumber coerces report cells: "$1,234.50" → 1234.5, "12%" → 12,
// "(40.00)" → -40. Anything unparseable is 0.
func ParseNumber(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = s[1 : len(s)-1]
	}
	s = strings.Map(func(r rune) rune {
		switch r {
		case '$', ',', '%', ' ', '\u00a0':
			return -1
		}
		return r
	}, s)
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	if neg {
		return -f
	}
	return f
}

// ReadKeywordSet loads a Pareto keyword list: the "keyword" column when the
// file has one, otherwise the first column. Keywords are lower-cased.
// Lists are often hand-edited, so each line is split on its own and a stray
// quote only affects the line it sits on.
func ReadKeywordSet(path string) (map[string]struct{}, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64<<10), 1<<20)
	idx := -1
	set := make(map[string]struct{})
	for sc.Scan() {
		if strings.TrimSpace(sc.Text()) == "" {
			continue
		}
		fields := SplitLine(sc.Text())
		if idx < 0 {
			header := &Table{Headers: normalizeHeaders(fields)}
			idx = 0
			if col, ok := header.Column("keyword"); ok {
				idx = header.Index(col)
			}
			continue
		}
		if idx >= len(fields) {
			continue
		}
		if kw := NormalizeKeyword(fields[idx]); kw != "" {
			set[kw] = struct{}{}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if idx < 0 {
		return nil, fmt.Errorf("parse %s: empty csv", path)
	}
	return set, nil
}

// NormalizeKeyword lower-cases and collapses whitespace.
func NormalizeKeyword(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
