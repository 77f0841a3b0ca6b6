package utils

import (
	"encoding/json"
	"math"
	"strconv"
)

// ToFloat converts JSON-decoded numeric values to float64 using explicit type switching.
// It handles json.Number, standard integer and float types. The second result is false
// for anything that is not a number.
func ToFloat(val any) (float64, bool) {
	switch v := val.(type) {
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case int32:
		return float64(v), true
	case int16:
		return float64(v), true
	case int8:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint64:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint8:
		return float64(v), true
	default:
		return 0, false
	}
}

// ToUint64 converts an integral JSON value to uint64.
// Negative integers are reinterpreted as their two's complement, matching the way
// signed text hashes appear in some upstream dumps.
func ToUint64(val any) (uint64, bool) {
	switch v := val.(type) {
	case json.Number:
		if u, err := strconv.ParseUint(string(v), 10, 64); err == nil {
			return u, true
		}
		if i, err := strconv.ParseInt(string(v), 10, 64); err == nil {
			return uint64(i), true
		}
		return 0, false
	case uint64:
		return v, true
	case uint32:
		return uint64(v), true
	case uint:
		return uint64(v), true
	case int:
		return uint64(int64(v)), true
	case int64:
		return uint64(v), true
	case int32:
		return uint64(int64(v)), true
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) {
			return 0, false
		}
		if v < 0 {
			return uint64(int64(v)), true
		}
		return uint64(v), true
	default:
		return 0, false
	}
}
