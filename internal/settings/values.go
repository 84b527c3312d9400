package settings

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Int64 returns the integer stored for key, or def when unset or unparsable.
func Int64(key string, def int64) int64 {
	raw, ok := DBConfigValue(key)
	if !ok {
		return def
	}
	if n, okParse := parseInt(raw); okParse {
		return n
	}
	return def
}

// Int is Int64 narrowed to int.
func Int(key string, def int) int {
	return int(Int64(key, int64(def)))
}

// Bool returns the boolean stored for key, or def when unset or unparsable.
func Bool(key string, def bool) bool {
	raw, ok := DBConfigValue(key)
	if !ok {
		return def
	}
	if b, okParse := parseBool(raw); okParse {
		return b
	}
	return def
}

// parseInt accepts 5, 5.0, "5" and {"value": 5}.
func parseInt(raw json.RawMessage) (int64, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0, false
	}
	var n int64
	if errUnmarshal := json.Unmarshal(raw, &n); errUnmarshal == nil {
		return n, true
	}
	var f float64
	if errUnmarshal := json.Unmarshal(raw, &f); errUnmarshal == nil {
		if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
			return 0, false
		}
		return int64(f), true
	}
	var s string
	if errUnmarshal := json.Unmarshal(raw, &s); errUnmarshal == nil {
		parsed, errParse := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if errParse == nil {
			return parsed, true
		}
		return 0, false
	}
	var wrapper struct {
		Value json.RawMessage `json:"value"`
	}
	if errUnmarshal := json.Unmarshal(raw, &wrapper); errUnmarshal == nil && len(wrapper.Value) > 0 {
		return parseInt(wrapper.Value)
	}
	return 0, false
}

// parseBool accepts true, "true", "1", 1 and {"value": true}.
func parseBool(raw json.RawMessage) (bool, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return false, false
	}
	var b bool
	if errUnmarshal := json.Unmarshal(raw, &b); errUnmarshal == nil {
		return b, true
	}
	var s string
	if errUnmarshal := json.Unmarshal(raw, &s); errUnmarshal == nil {
		parsed, errParse := strconv.ParseBool(strings.TrimSpace(s))
		if errParse != nil {
			return false, false
		}
		return parsed, true
	}
	var f float64
	if errUnmarshal := json.Unmarshal(raw, &f); errUnmarshal == nil {
		return f != 0, true
	}
	var wrapper struct {
		Value json.RawMessage `json:"value"`
	}
	if errUnmarshal := json.Unmarshal(raw, &wrapper); errUnmarshal == nil && len(wrapper.Value) > 0 {
		return parseBool(wrapper.Value)
	}
	return false, false
}
