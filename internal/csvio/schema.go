package csvio

import (
	"fmt"
	"strings"
	"time"
)

// Field describes one logical column a report needs and the header
// fragments it may appear under.
type Field struct {
	Name       string
	Candidates []string
	Required   bool
	Numeric    bool
}

// Schema is an ordered list of fields.
type Schema []Field

// Resolve maps field names to concrete headers of t. Optional fields that
// can't be found are left out of the result. A header is claimed by at most
// one field, earlier fields first.
func (s Schema) Resolve(t *Table) (map[string]string, error) {
	out := make(map[string]string, len(s))
	claimed := make(map[string]bool, len(s))
	var missing []string
	for _, f := range s {
		col, ok := t.columnExcluding(claimed, f.Candidates...)
		if !ok {
			if f.Required {
				missing = append(missing, fmt.Sprintf("%s (looked for %s)", f.Name, strings.Join(f.Candidates, "/")))
			}
			continue
		}
		claimed[col] = true
		out[f.Name] = col
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%s: missing columns: %s; headers are %s", t.Path, strings.Join(missing, ", "), strings.Join(t.Headers, ", "))
	}
	return out, nil
}

// Numeric lists the resolved headers of numeric fields.
func (s Schema) Numeric(resolved map[string]string) []string {
	var out []string
	for _, f := range s {
		if col, ok := resolved[f.Name]; ok && f.Numeric {
			out = append(out, col)
		}
	}
	return out
}

func (t *Table) columnExcluding(skip map[string]bool, candidates ...string) (string, bool) {
	for _, c := range candidates {
		c = strings.ToLower(strings.TrimSpace(c))
		if c == "" {
			continue
		}
		for _, h := range t.Headers {
			if !skip[h] && strings.ToLower(h) == c {
				return h, true
			}
		}
		for _, h := range t.Headers {
			if !skip[h] && strings.Contains(strings.ToLower(h), c) {
				return h, true
			}
		}
	}
	return "", false
}

// MapColumn rewrites every cell of column col in place.
func (t *Table) MapColumn(col string, fn func(string) string) {
	idx := t.Index(col)
	if idx < 0 {
		return
	}
	for _, row := range t.Rows {
		row[idx] = fn(row[idx])
	}
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"1/2/2006",
	"01/02/2006",
	"1/2/06",
	"2006/01/02",
	"Jan 2, 2006",
	"2 Jan 2006",
}

// NormalizeDate rewrites common date spellings as YYYY-MM-DD so they sort.
// Unrecognized values are returned trimmed but otherwise untouched.
func NormalizeDate(s string) string {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.Format("2006-01-02")
		}
	}
	return s
}
