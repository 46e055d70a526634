package engine

import "adpulse/internal/pkg/convert"

func (r Row) Float(key string) float64 {
	return convert.ToFloat64(r[key])
}

func (r Row) Int(key string) int64 {
	switch v := r[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	default:
		return int64(convert.ToFloat64(v))
	}
}

func (r Row) String(key string) string {
	return convert.ToString(r[key])
}
