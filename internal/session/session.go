// internal/session/session.go
//
// Session-scoped string-set persistence for guest play. This is the Go
// counterpart of the browser's sessionStorage: values live only as long as
// the guest session and are dropped wholesale when it ends.

package session

import "sync"

// Store is key/value string-set persistence scoped to one session.
type Store interface {
	// Add inserts value into the named set. Returns false if it was
	// already present.
	Add(set, value string) bool

	// Has reports membership of value in the named set.
	Has(set, value string) bool

	// Clear drops every set; called when the guest session ends.
	Clear()
}

// memory is the in-memory Store implementation.
type memory struct {
	mu   sync.RWMutex
	sets map[string]map[string]struct{}
}

// NewMemoryStore constructs an empty in-memory Store.
func NewMemoryStore() Store {
	return &memory{sets: make(map[string]map[string]struct{})}
}

func (m *memory) Add(set, value string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sets[set]
	if !ok {
		s = make(map[string]struct{})
		m.sets[set] = s
	}
	if _, dup := s[value]; dup {
		return false
	}
	s[value] = struct{}{}
	return true
}

func (m *memory) Has(set, value string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.sets[set][value]
	return ok
}

func (m *memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets = make(map[string]map[string]struct{})
}
