// Package jsonutil coerces decoded JSON property values back into Go types.
// Values read from the metadata store have been through a JSON round trip, so
// numbers arrive as float64, lists as []any and maps as map[string]any.
package jsonutil

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// FlexibleString converts a stored value to a string. Returns empty string for nil.
func FlexibleString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		if val == float64(int64(val)) {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case json.Number:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

// FlexibleInt converts a stored number (or numeric string) to an int.
// Returns 0 when the value is absent or not numeric.
func FlexibleInt(v any) int {
	switch val := v.(type) {
	case int:
		return val
	case int32:
		return int(val)
	case int64:
		return int(val)
	case float64:
		return int(val)
	case json.Number:
		n, err := val.Int64()
		if err != nil {
			return 0
		}
		return int(n)
	case string:
		n, err := strconv.Atoi(val)
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}

// FlexibleStringSlice converts a stored list to []string. Returns nil for an
// absent or empty list.
func FlexibleStringSlice(v any) []string {
	switch val := v.(type) {
	case []string:
		if len(val) == 0 {
			return nil
		}
		out := make([]string, len(val))
		copy(out, val)
		return out
	case []any:
		if len(val) == 0 {
			return nil
		}
		out := make([]string, 0, len(val))
		for _, item := range val {
			out = append(out, FlexibleString(item))
		}
		return out
	default:
		return nil
	}
}

// FlexibleStringMap converts a stored object to map[string]string. Returns nil
// for an absent or empty object.
func FlexibleStringMap(v any) map[string]string {
	switch val := v.(type) {
	case map[string]string:
		if len(val) == 0 {
			return nil
		}
		out := make(map[string]string, len(val))
		for k, s := range val {
			out[k] = s
		}
		return out
	case map[string]any:
		if len(val) == 0 {
			return nil
		}
		out := make(map[string]string, len(val))
		for k, item := range val {
			out[k] = FlexibleString(item)
		}
		return out
	default:
		return nil
	}
}

// FlexibleMap converts a stored object to map[string]any. Returns nil for an
// absent or empty object.
func FlexibleMap(v any) map[string]any {
	val, ok := v.(map[string]any)
	if !ok || len(val) == 0 {
		return nil
	}
	out := make(map[string]any, len(val))
	for k, item := range val {
		out[k] = item
	}
	return out
}

// FlexibleTime converts a stored RFC 3339 timestamp to a *time.Time. Returns nil
// when the value is absent or unparseable.
func FlexibleTime(v any) *time.Time {
	switch val := v.(type) {
	case time.Time:
		t := val.UTC()
		return &t
	case *time.Time:
		if val == nil {
			return nil
		}
		t := val.UTC()
		return &t
	case string:
		t, err := time.Parse(time.RFC3339Nano, val)
		if err != nil {
			return nil
		}
		t = t.UTC()
		return &t
	default:
		return nil
	}
}

// FormatTime renders t in the form FlexibleTime reads back. Returns nil for nil.
func FormatTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}
