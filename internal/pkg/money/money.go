// Package money rounds and formats monetary aggregates. Sums coming out of
// the SQL engine are float64; everything shown to a person goes through
// decimal so cents never drift.
package money

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Ratio divides num by den rounded to places. A zero or negative
// denominator yields 0.
func Ratio(num, den float64, places int32) float64 {
	if den <= 0 {
		return 0
	}
	q := decimal.NewFromFloat(num).DivRound(decimal.NewFromFloat(den), places)
	f, _ := q.Float64()
	return f
}

// Round rounds v half away from zero.
func Round(v float64, places int32) float64 {
	f, _ := decimal.NewFromFloat(v).Round(places).Float64()
	return f
}

// Sub returns a-b rounded to cents.
func Sub(a, b float64) float64 {
	f, _ := decimal.NewFromFloat(a).Sub(decimal.NewFromFloat(b)).Round(2).Float64()
	return f
}

// FormatUSD renders $1,234.56 (negative as -$1,234.56).
func FormatUSD(v float64) string {
	d := decimal.NewFromFloat(v).Round(2)
	neg := d.IsNegative()
	s := d.Abs().StringFixed(2)
	whole, frac, _ := strings.Cut(s, ".")
	out := "$" + groupThousands(whole) + "." + frac
	if neg {
		return "-" + out
	}
	return out
}

// FormatPercent renders a ratio (0.1234) as 12.34%.
func FormatPercent(ratio float64) string {
	return decimal.NewFromFloat(ratio).Mul(decimal.NewFromInt(100)).StringFixed(2) + "%"
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
