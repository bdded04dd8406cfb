package utils

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConversions(t *testing.T) {
	tests := []struct {
		in  any
		f   float64
		fOk bool
		i   int64
		iOk bool
		u   uint64
		uOk bool
	}{
		{in: uint16(7), f: 7, fOk: true, i: 7, iOk: true, u: 7, uOk: true},
		{in: int8(-2), f: -2, fOk: true, i: -2, iOk: true, u: 1<<64 - 2, uOk: true},
		{in: float32(2.5), f: 2.5, fOk: true},
		{in: 4.0, f: 4, fOk: true, i: 4, iOk: true, u: 4, uOk: true},
		{in: "12", f: 12, fOk: true, i: 12, iOk: true, u: 12, uOk: true},
		{in: []byte("3"), f: 3, fOk: true, i: 3, iOk: true, u: 3, uOk: true},
		{in: json.Number("18446744073709551615"), f: 18446744073709551615, fOk: true, u: 1<<64 - 1, uOk: true},
		{in: "x"},
		{in: nil},
	}
	for _, tt := range tests {
		f, ok := ToFloat64Ok(tt.in)
		assert.Equal(t, tt.fOk, ok, "float %#v", tt.in)
		assert.Equal(t, tt.f, f, "float %#v", tt.in)

		i, ok := ToInt64Ok(tt.in)
		assert.Equal(t, tt.iOk, ok, "int %#v", tt.in)
		assert.Equal(t, tt.i, i, "int %#v", tt.in)

		u, ok := ToUint64Ok(tt.in)
		assert.Equal(t, tt.uOk, ok, "uint %#v", tt.in)
		assert.Equal(t, tt.u, u, "uint %#v", tt.in)
	}
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "", FormatValue(nil))
	assert.Equal(t, "42", FormatValue(uint32(42)))
	assert.Equal(t, "-1", FormatValue(int16(-1)))
	assert.Equal(t, "0.1", FormatValue(float32(0.1)))
	assert.Equal(t, "1.5", FormatValue(1.5))
	assert.Equal(t, "true", FormatValue(true))
	assert.Equal(t, "node1", FormatValue([]byte("node1")))
	assert.Equal(t, "node1", ToString([]byte("node1")))
	assert.Equal(t, "3", ToString(3))
}
