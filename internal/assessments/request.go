package assessments

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
)

// isBlank reports whether a JSON value counts as not provided: missing, null,
// false, zero, an empty string or an empty array or object.
func isBlank(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	switch string(trimmed) {
	case "", "null", "false", `""`, "[]", "{}":
		return true
	}
	if trimmed[0] == '[' || trimmed[0] == '{' {
		var v any
		if err := json.Unmarshal(trimmed, &v); err != nil {
			return false
		}
		switch vv := v.(type) {
		case []any:
			return len(vv) == 0
		case map[string]any:
			return len(vv) == 0
		}
	}
	if f, err := strconv.ParseFloat(string(trimmed), 64); err == nil {
		return f == 0
	}
	return false
}

// parseUserID accepts the user id as a JSON number or a numeric string.
func parseUserID(raw json.RawMessage) (int, bool) {
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, false
	}
	id, err := strconv.Atoi(n.String())
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// parseHorizonDays accepts a positive whole number of days. Integral floats like 30.0 are fine.
func parseHorizonDays(raw json.RawMessage) (int, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] == '"' {
		return 0, false
	}
	var days float64
	if err := json.Unmarshal(trimmed, &days); err != nil {
		return 0, false
	}
	if days <= 0 || days > math.MaxInt32 || days != math.Trunc(days) {
		return 0, false
	}
	return int(days), true
}
