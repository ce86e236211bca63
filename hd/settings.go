package hd

import (
	"reflect"
	"slices"
	"sync"
)

// SettingDescriptor declares a render setting and its default value.
type SettingDescriptor struct {
	Name         string
	Key          string
	DefaultValue any
}

// Settings is a versioned render-setting map. Render delegates embed it.
//
// The version starts at 1 and increases only when a key is added or its
// value actually changes, so consumers can cache derived state against it.
//
// Settings is safe for concurrent use. The zero value is ready to use.
type Settings struct {
	mu      sync.RWMutex
	values  map[string]any
	version uint64
}

// SetRenderSetting stores value under key. Storing an equal value is a
// no-op and leaves the version unchanged.
func (s *Settings) SetRenderSetting(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.init()
	if old, ok := s.values[key]; ok && reflect.DeepEqual(old, value) {
		return
	}
	s.values[key] = value
	s.version++
}

// RenderSetting returns the value stored under key.
func (s *Settings) RenderSetting(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// RenderSettingOr returns the value under key, or fallback.
func (s *Settings) RenderSettingOr(key string, fallback any) any {
	if v, ok := s.RenderSetting(key); ok {
		return v
	}
	return fallback
}

// RenderSettingsVersion returns the settings version.
func (s *Settings) RenderSettingsVersion() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.values == nil {
		return 1
	}
	return s.version
}

// RenderSettingKeys returns the stored keys in sorted order.
func (s *Settings) RenderSettingKeys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// PopulateDefaults stores the default of every descriptor whose key is
// not set yet. Defaults do not advance the version.
func (s *Settings) PopulateDefaults(descs []SettingDescriptor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.init()
	for _, d := range descs {
		if _, ok := s.values[d.Key]; !ok {
			s.values[d.Key] = d.DefaultValue
		}
	}
}

func (s *Settings) init() {
	if s.values == nil {
		s.values = make(map[string]any)
		s.version = 1
	}
}
