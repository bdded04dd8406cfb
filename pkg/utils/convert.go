package utils

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// widen maps the sized numeric types onto int64, uint64 and float64, and
// byte slices onto strings, so the converters below only handle those.
func widen(v any) any {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int8:
		return int64(n)
	case int16:
		return int64(n)
	case int32:
		return int64(n)
	case uint:
		return uint64(n)
	case uint8:
		return uint64(n)
	case uint16:
		return uint64(n)
	case uint32:
		return uint64(n)
	case float32:
		return float64(n)
	case []byte:
		return string(n)
	}
	return v
}

// ToFloat64 converts a value to float64, returning 0 on failure.
func ToFloat64(v any) float64 {
	f, _ := ToFloat64Ok(v)
	return f
}

// ToFloat64Ok converts a value to float64, returning success status.
func ToFloat64Ok(v any) (float64, bool) {
	switch n := widen(v).(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// ToInt64 converts a value to int64, returning 0 on failure.
func ToInt64(v any) int64 {
	i, _ := ToInt64Ok(v)
	return i
}

// ToInt64Ok converts a value to int64, returning success status. Floats
// convert only when whole.
func ToInt64Ok(v any) (int64, bool) {
	switch n := widen(v).(type) {
	case int64:
		return n, true
	case uint64:
		return int64(n), true
	case float64:
		if n == float64(int64(n)) {
			return int64(n), true
		}
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		return i, err == nil
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	}
	return 0, false
}

// ToUint64 converts a value to uint64, returning 0 on failure.
func ToUint64(v any) uint64 {
	u, _ := ToUint64Ok(v)
	return u
}

// ToUint64Ok converts a value to uint64, returning success status.
// Negative signed values are reinterpreted two's complement, the way a
// kernel counter stored in a signed slot would be.
func ToUint64Ok(v any) (uint64, bool) {
	switch n := widen(v).(type) {
	case uint64:
		return n, true
	case int64:
		return uint64(n), true
	case float64:
		if n >= 0 && n < math.MaxUint64 && n == math.Trunc(n) {
			return uint64(n), true
		}
	case string:
		u, err := strconv.ParseUint(n, 10, 64)
		return u, err == nil
	case json.Number:
		u, err := strconv.ParseUint(n.String(), 10, 64)
		return u, err == nil
	}
	return 0, false
}

// ToString converts a value to string.
func ToString(v any) string {
	switch s := widen(v).(type) {
	case nil:
		return ""
	case string:
		return s
	}
	return fmt.Sprint(v)
}

// FormatValue renders a value for delimited output: integers in decimal,
// floats in their shortest exact form, nil as an empty field.
func FormatValue(v any) string {
	if f, ok := v.(float32); ok {
		return strconv.FormatFloat(float64(f), 'f', -1, 32)
	}
	switch val := widen(v).(type) {
	case nil:
		return ""
	case string:
		return val
	case int64:
		return strconv.FormatInt(val, 10)
	case uint64:
		return strconv.FormatUint(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case json.Number:
		return val.String()
	}
	return fmt.Sprint(v)
}
