package store

import (
	"context"
	"slices"
	"sync"
)

// Memory is an in-process backend.
//
// Thread-safety: safe for concurrent use.
type Memory struct {
	mu      sync.RWMutex
	records map[string]Record
	refs    map[string]map[string]struct{} // foreign -> referencing keys
}

// NewMemory returns an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{
		records: make(map[string]Record),
		refs:    make(map[string]map[string]struct{}),
	}
}

func (m *Memory) Set(_ context.Context, key string, rec Record) error {
	if err := validKey(key); err != nil {
		return err
	}
	rec = normalize(rec)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.unlinkLocked(key)
	m.records[key] = rec
	for _, f := range rec.ForeignKeys {
		set := m.refs[f]
		if set == nil {
			set = make(map[string]struct{})
			m.refs[f] = set
		}
		set[key] = struct{}{}
	}
	return nil
}

func (m *Memory) Get(_ context.Context, key string) (Record, error) {
	m.mu.RLock()
	rec, ok := m.records[key]
	m.mu.RUnlock()
	if !ok {
		return Record{}, ErrNotFound
	}
	return normalize(rec), nil
}

func (m *Memory) Delete(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[key]; !ok {
		return false, nil
	}
	m.unlinkLocked(key)
	delete(m.records, key)
	return true, nil
}

func (m *Memory) References(_ context.Context, foreign string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.refs[foreign]))
	for k := range m.refs[foreign] {
		out = append(out, k)
	}
	slices.Sort(out)
	return out, nil
}

func (m *Memory) Close() error { return nil }

// unlinkLocked drops key's outgoing references.
func (m *Memory) unlinkLocked(key string) {
	old, ok := m.records[key]
	if !ok {
		return
	}
	for _, f := range old.ForeignKeys {
		delete(m.refs[f], key)
		if len(m.refs[f]) == 0 {
			delete(m.refs, f)
		}
	}
}
