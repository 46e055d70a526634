// Package convert turns loosely typed row cells into floats and labels.
package convert

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// ToFloat64 reads v as a number. Anything unreadable is 0.
func ToFloat64(v any) float64 {
	switch t := v.(type) {
	case nil:
		return 0
	case float64:
		return t
	case decimal.Decimal:
		return t.InexactFloat64()
	case json.Number:
		f, _ := t.Float64()
		return f
	case string:
		return parseCell(t)
	case []byte:
		return parseCell(string(t))
	}
	rv := reflect.ValueOf(v)
	switch {
	case rv.CanInt():
		return float64(rv.Int())
	case rv.CanUint():
		return float64(rv.Uint())
	case rv.CanFloat():
		return rv.Float()
	}
	return 0
}

func parseCell(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return f
}

// IsNumber reports whether v is a Go numeric value. Numeric-looking
// strings do not count.
func IsNumber(v any) bool {
	switch v.(type) {
	case nil, string, []byte, bool:
		return false
	case json.Number, decimal.Decimal:
		return true
	}
	rv := reflect.ValueOf(v)
	return rv.CanInt() || rv.CanUint() || rv.CanFloat()
}

// ToString renders a cell for chart labels and CSV output.
func ToString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case fmt.Stringer:
		return t.String()
	}
	return fmt.Sprint(v)
}
