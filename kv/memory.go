package kv

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

// Memory is a thread-safe in-memory Store with TTL support. It is the
// default store for tests and single-process deployments.
type Memory struct {
	mu    sync.RWMutex
	items map[string]memoryEntry
	now   func() time.Time
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		items: make(map[string]memoryEntry),
		now:   time.Now,
	}
}

func (m *Memory) expired(e memoryEntry) bool {
	return !e.expiresAt.IsZero() && m.now().After(e.expiresAt)
}

// Get returns the bytes stored under key, or ErrNotFound when the key is
// absent or expired.
func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	e, ok := m.items[key]
	m.mu.RUnlock()
	if !ok || m.expired(e) {
		return nil, ErrNotFound
	}
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, nil
}

// Put stores value under key, overwriting any previous value.
func (m *Memory) Put(_ context.Context, key string, value []byte, ttlSeconds int64) error {
	e := memoryEntry{value: make([]byte, len(value))}
	copy(e.value, value)
	if ttlSeconds > 0 {
		e.expiresAt = m.now().Add(time.Duration(ttlSeconds) * time.Second)
	}
	m.mu.Lock()
	m.items[key] = e
	m.mu.Unlock()
	return nil
}

// Delete removes key. Deleting an absent key is a no-op.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.items, key)
	m.mu.Unlock()
	return nil
}

// List returns one page of keys matching opts.Prefix in lexicographic order.
// The cursor is the last key name of the previous page.
func (m *Memory) List(_ context.Context, opts ListOptions) (ListPage, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}

	m.mu.RLock()
	names := make([]string, 0, len(m.items))
	for k, e := range m.items {
		if !strings.HasPrefix(k, opts.Prefix) || m.expired(e) {
			continue
		}
		if opts.Cursor != "" && k <= opts.Cursor {
			continue
		}
		names = append(names, k)
	}
	sort.Strings(names)

	page := ListPage{Complete: true}
	if len(names) > limit {
		names = names[:limit]
		page.Complete = false
		page.Cursor = names[len(names)-1]
	}
	for _, k := range names {
		info := KeyInfo{Name: k}
		if e := m.items[k]; !e.expiresAt.IsZero() {
			info.Expiration = e.expiresAt.Unix()
		}
		page.Keys = append(page.Keys, info)
	}
	m.mu.RUnlock()
	return page, nil
}

// Len returns the number of live (non-expired) keys. Test helper.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, e := range m.items {
		if !m.expired(e) {
			n++
		}
	}
	return n
}

// SetClock replaces the store's time source. Test helper.
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
}
