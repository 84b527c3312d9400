package settings

import (
	"bytes"
	"encoding/json"
	"strings"
	"sync/atomic"
	"time"
)

// snapshot is an immutable copy of the settings table.
type snapshot struct {
	updatedAt time.Time
	values    map[string]json.RawMessage
}

var current atomic.Pointer[snapshot]

// StoreDBConfig swaps in a new snapshot built from values. Blank keys are dropped.
func StoreDBConfig(updatedAt time.Time, values map[string]json.RawMessage) {
	next := &snapshot{updatedAt: updatedAt.UTC(), values: make(map[string]json.RawMessage, len(values))}
	for k, v := range values {
		if key := strings.TrimSpace(k); key != "" {
			next.values[key] = bytes.Clone(v)
		}
	}
	current.Store(next)
}

// DBConfigUpdatedAt is the newest updated_at seen at the last refresh.
func DBConfigUpdatedAt() time.Time {
	if s := current.Load(); s != nil {
		return s.updatedAt
	}
	return time.Time{}
}

// DBConfigValue returns a copy of the raw value stored for key.
func DBConfigValue(key string) (json.RawMessage, bool) {
	s := current.Load()
	if s == nil {
		return nil, false
	}
	val, ok := s.values[strings.TrimSpace(key)]
	if !ok {
		return nil, false
	}
	return bytes.Clone(val), true
}
