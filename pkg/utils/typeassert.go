package utils

import (
	"fmt"
	"strconv"
)

// SafeAssert safely performs type assertion and returns the value and success status.
func SafeAssert[T any](value any) (T, bool) {
	if v, ok := value.(T); ok {
		return v, true
	}
	var zero T
	return zero, false
}

// FirstString returns the first key in m whose value is a non-empty string, and that key.
func FirstString(m map[string]any, keys ...string) (value, key string) {
	for _, k := range keys {
		if s, ok := SafeAssert[string](m[k]); ok && s != "" {
			return s, k
		}
	}
	return "", ""
}

// Scalar renders JSON scalars (string, number, bool) as strings. Other values report false.
func Scalar(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(v), true
	case fmt.Stringer:
		return v.String(), true
	default:
		return "", false
	}
}
