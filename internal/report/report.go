// Package report renders aggregation results: terminal tables, CSV/JSON
// exports, go-echarts HTML pages and PNG snapshots of those pages.
package report

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"adpulse/internal/pkg/convert"
	"adpulse/internal/pkg/money"
)

// Kind drives cell formatting.
type Kind string

const (
	KindText     Kind = "text"
	KindInt      Kind = "int"
	KindNumber   Kind = "number"
	KindCurrency Kind = "currency"
	KindPercent  Kind = "percent"
	KindRatio    Kind = "ratio"
)

type Column struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Kind  Kind   `json:"kind"`
}

// ChartSpec describes the chart written for the HTML export. Type is "bar"
// (top Limit rows) or "line" (all rows in order).
type ChartSpec struct {
	Type   string
	XKey   string
	Series []string
	Limit  int
}

type Report struct {
	Name    string           `json:"name"`
	Title   string           `json:"title"`
	Source  string           `json:"source,omitempty"`
	Columns []Column         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
	Totals  map[string]any   `json:"totals,omitempty"`
	Chart   *ChartSpec       `json:"-"`
}

// Column returns the column definition for key.
func (r *Report) Column(key string) (Column, bool) {
	for _, c := range r.Columns {
		if c.Key == key {
			return c, true
		}
	}
	return Column{}, false
}

// FormatCell renders v for display according to kind.
func FormatCell(kind Kind, v any) string {
	if v == nil {
		return ""
	}
	switch kind {
	case KindCurrency:
		return money.FormatUSD(convert.ToFloat64(v))
	case KindPercent:
		return money.FormatPercent(convert.ToFloat64(v))
	case KindRatio:
		return strconv.FormatFloat(money.Round(convert.ToFloat64(v), 4), 'f', 4, 64)
	case KindInt:
		return groupInt(int64(math.Round(convert.ToFloat64(v))))
	case KindNumber:
		return strconv.FormatFloat(money.Round(convert.ToFloat64(v), 2), 'f', -1, 64)
	default:
		return convert.ToString(v)
	}
}

// RawCell renders v for machine-readable exports: no currency symbols or
// thousands separators.
func RawCell(kind Kind, v any) string {
	if v == nil {
		return ""
	}
	switch kind {
	case KindCurrency:
		return strconv.FormatFloat(money.Round(convert.ToFloat64(v), 2), 'f', 2, 64)
	case KindPercent, KindRatio:
		return strconv.FormatFloat(money.Round(convert.ToFloat64(v), 6), 'f', -1, 64)
	case KindInt:
		return strconv.FormatInt(int64(math.Round(convert.ToFloat64(v))), 10)
	case KindNumber:
		return strconv.FormatFloat(convert.ToFloat64(v), 'f', -1, 64)
	default:
		return convert.ToString(v)
	}
}

func groupInt(n int64) string {
	s := strconv.FormatInt(n, 10)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	var b strings.Builder
	for i, ch := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(ch)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

// Slug makes a filesystem-safe name.
func Slug(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	dash := false
	for _, ch := range s {
		switch {
		case ch >= 'a' && ch <= 'z', ch >= '0' && ch <= '9':
			b.WriteRune(ch)
			dash = false
		default:
			if !dash && b.Len() > 0 {
				b.WriteByte('-')
				dash = true
			}
		}
	}
	out := strings.TrimSuffix(b.String(), "-")
	if out == "" {
		return "report"
	}
	return out
}

// Summary is a short plain-text digest used for Slack notifications.
func Summary(r *Report, maxRows int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*%s*", r.Title)
	if r.Source != "" {
		fmt.Fprintf(&b, " (%s)", r.Source)
	}
	fmt.Fprintf(&b, "\n%d rows", len(r.Rows))
	if len(r.Totals) > 0 {
		var parts []string
		for _, c := range r.Columns {
			if v, ok := r.Totals[c.Key]; ok {
				parts = append(parts, fmt.Sprintf("%s %s", c.Label, FormatCell(c.Kind, v)))
			}
		}
		if len(parts) > 0 {
			b.WriteString(" · totals: " + strings.Join(parts, ", "))
		}
	}
	for i, row := range r.Rows {
		if i >= maxRows {
			break
		}
		cells := make([]string, 0, len(r.Columns))
		for _, c := range r.Columns {
			cells = append(cells, FormatCell(c.Kind, row[c.Key]))
		}
		fmt.Fprintf(&b, "\n%d. %s", i+1, strings.Join(cells, " | "))
	}
	return b.String()
}
