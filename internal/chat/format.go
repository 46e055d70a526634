// Package chat answers analytics questions: it asks the intent backend for
// structured data, shapes it into a UI component and streams an LLM
// explanation ahead of the component payload.
package chat

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"adpulse/internal/pkg/convert"
)

// Component names understood by the generative-UI renderer.
const (
	ComponentBar   = "BarChart"
	ComponentLine  = "LineChart"
	ComponentTable = "Table"
	ComponentText  = "TextContent"
)

// Component is the JSON payload placed inside the content delimiter.
type Component struct {
	Component string `json:"component"`
	Props     any    `json:"props"`
}

type Series struct {
	DataKey string `json:"dataKey"`
	Name    string `json:"name"`
}

type ChartData struct {
	Title  string           `json:"title,omitempty"`
	XKey   string           `json:"xKey,omitempty"`
	Series []Series         `json:"series,omitempty"`
	Data   []map[string]any `json:"data"`
}

type TableColumn struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Type  string `json:"type"`
}

type TableData struct {
	Title   string           `json:"title,omitempty"`
	Columns []TableColumn    `json:"columns"`
	Rows    []map[string]any `json:"rows"`
}

type TextContent struct {
	Title string `json:"title,omitempty"`
	Text  string `json:"text"`
}

// FormatBarChartData keeps xKey and the numeric yKeys of each row. Empty
// keys are guessed from the first row.
func FormatBarChartData(data []map[string]any, xKey string, yKeys []string) ChartData {
	if len(data) == 0 {
		return ChartData{Data: []map[string]any{}}
	}
	xKey, yKeys = guessKeys(data[0], xKey, yKeys)
	out := ChartData{XKey: xKey, Data: make([]map[string]any, 0, len(data))}
	for _, k := range yKeys {
		out.Series = append(out.Series, Series{DataKey: k, Name: Humanize(k)})
	}
	for _, row := range data {
		point := map[string]any{xKey: convert.ToString(row[xKey])}
		for _, k := range yKeys {
			point[k] = convert.ToFloat64(row[k])
		}
		out.Data = append(out.Data, point)
	}
	return out
}

// FormatLineChartData is FormatBarChartData with points ordered by xKey.
func FormatLineChartData(data []map[string]any, xKey string, yKeys []string) ChartData {
	out := FormatBarChartData(data, xKey, yKeys)
	sort.SliceStable(out.Data, func(i, j int) bool {
		return convert.ToString(out.Data[i][out.XKey]) < convert.ToString(out.Data[j][out.XKey])
	})
	return out
}

// FormatTableData derives column types from key names first, then from
// the first row's values.
func FormatTableData(data []map[string]any) TableData {
	out := TableData{Columns: []TableColumn{}, Rows: data}
	if out.Rows == nil {
		out.Rows = []map[string]any{}
	}
	if len(data) == 0 {
		return out
	}
	for _, k := range sortedKeys(data[0]) {
		out.Columns = append(out.Columns, TableColumn{Key: k, Label: Humanize(k), Type: ColumnType(k, data[0][k])})
	}
	return out
}

// ColumnType is currency for usd/spend/revenue/margin keys, percentage for
// rate/roas keys, else number or string by the value's type.
func ColumnType(key string, sample any) string {
	lk := strings.ToLower(key)
	for _, frag := range []string{"usd", "spend", "revenue", "margin"} {
		if strings.Contains(lk, frag) {
			return "currency"
		}
	}
	for _, frag := range []string{"rate", "roas"} {
		if strings.Contains(lk, frag) {
			return "percentage"
		}
	}
	if isNumeric(sample) {
		return "number"
	}
	return "string"
}

func FormatTextContent(text string) TextContent {
	return TextContent{Text: strings.TrimSpace(text)}
}

func isNumeric(v any) bool {
	switch v.(type) {
	case float64, float32, int, int64, int32, uint, uint64, uint32:
		return true
	}
	return false
}

func guessKeys(first map[string]any, xKey string, yKeys []string) (string, []string) {
	keys := sortedKeys(first)
	if xKey == "" {
		for _, k := range keys {
			if !isNumeric(first[k]) {
				xKey = k
				break
			}
		}
		if xKey == "" && len(keys) > 0 {
			xKey = keys[0]
		}
	}
	if len(yKeys) == 0 {
		for _, k := range keys {
			if k != xKey && isNumeric(first[k]) {
				yKeys = append(yKeys, k)
			}
		}
	}
	return xKey, yKeys
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Humanize turns total_revenue or totalRevenue into "Total Revenue".
func Humanize(key string) string {
	var words []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			words = append(words, string(cur))
			cur = cur[:0]
		}
	}
	prevLower := false
	for _, r := range key {
		switch {
		case r == '_' || r == '-' || r == ' ':
			flush()
			prevLower = false
			continue
		case unicode.IsUpper(r) && prevLower:
			flush()
		}
		cur = append(cur, r)
		prevLower = unicode.IsLower(r)
	}
	flush()
	for i, w := range words {
		first, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToTitle(first)) + w[size:]
	}
	return strings.Join(words, " ")
}
