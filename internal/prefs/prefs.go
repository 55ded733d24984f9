// Package prefs stores small UI preferences such as the remote-branch toggle
// or the graph page size.
package prefs

import (
	"fmt"
	"maps"
	"sync"

	"github.com/thiagokokada/revgraph/internal/events"
)

// Preference keys used across the module.
const (
	KeyIncludeRemotes = "review.include_remotes"
	KeyPageSize       = "review.page_size"
	KeyTheme          = "render.theme"
)

// Store is a key/value preference store.
type Store interface {
	// Get returns the stored value for key, or def when unset.
	Get(key string, def any) any
	Set(key string, value any) error
}

// Memory is an in-process Store.
type Memory struct {
	mu     sync.RWMutex
	values map[string]any
	bus    *events.Bus
}

// NewMemory returns an empty store. bus may be nil.
func NewMemory(bus *events.Bus) *Memory {
	return &Memory{values: map[string]any{}, bus: bus}
}

func (m *Memory) Get(key string, def any) any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if v, ok := m.values[key]; ok {
		return v
	}
	return def
}

func (m *Memory) Set(key string, value any) error {
	if key == "" {
		return fmt.Errorf("preference key is empty")
	}
	m.mu.Lock()
	if m.values == nil {
		m.values = map[string]any{}
	}
	m.values[key] = value
	m.mu.Unlock()
	events.Publish(m.bus, events.PreferenceChanged{Key: key, Value: value})
	return nil
}

func (m *Memory) snapshot() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return maps.Clone(m.values)
}

// Bool reads a boolean preference.
func Bool(s Store, key string, def bool) bool {
	if s == nil {
		return def
	}
	if v, ok := s.Get(key, def).(bool); ok {
		return v
	}
	return def
}

// Int reads an integer preference. YAML and JSON decoders may hand back other
// numeric types, which are converted.
func Int(s Store, key string, def int) int {
	if s == nil {
		return def
	}
	switch v := s.Get(key, def).(type) {
	case int:
		return v
	case int64:
		return int(v)
	case uint64:
		return int(v)
	case float64:
		return int(v)
	default:
		return def
	}
}

// String reads a string preference.
func String(s Store, key string, def string) string {
	if s == nil {
		return def
	}
	if v, ok := s.Get(key, def).(string); ok {
		return v
	}
	return def
}
