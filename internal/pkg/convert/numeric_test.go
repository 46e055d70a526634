package convert

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestToFloat64(t *testing.T) {
	assert.Equal(t, 0.0, ToFloat64(nil))
	assert.Equal(t, 2.5, ToFloat64(float32(2.5)))
	assert.Equal(t, 7.0, ToFloat64(int64(7)))
	assert.Equal(t, 1.25, ToFloat64(json.Number("1.25")))
	assert.Equal(t, 3.5, ToFloat64(" 3.5 "))
	assert.Equal(t, 0.0, ToFloat64("n/a"))
	assert.Equal(t, 0.0, ToFloat64(struct{}{}))
}

func TestIsNumberAndToString(t *testing.T) {
	assert.True(t, IsNumber(12.0))
	assert.True(t, IsNumber(json.Number("3")))
	assert.False(t, IsNumber("12"))
	assert.Equal(t, "12.5", ToString(12.5))
	assert.Equal(t, "", ToString(nil))
	assert.Equal(t, "true", ToString(true))
}

func TestDecimalAndUnsignedCells(t *testing.T) {
	d := decimal.RequireFromString("12.34")
	assert.Equal(t, 12.34, ToFloat64(d))
	assert.True(t, IsNumber(d))
	assert.Equal(t, "12.34", ToString(d))
	assert.Equal(t, 9.0, ToFloat64(uint16(9)))
	assert.False(t, IsNumber(true))
}
