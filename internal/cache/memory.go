// Package cache provides the two-tier lookup cache used by the code
// grounding service: a short-TTL in-process map in front of an optional
// durable redis tier. The cache is constructed once per process and
// injected; it is a performance layer, not a correctness-critical store,
// so concurrent last-write-wins updates are acceptable.
package cache

import (
	"sync"
	"time"
)

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// MemoryCache is the in-process tier: a mutex-guarded map with per-entry
// expiry and a background janitor that evicts expired entries.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry

	janitorStop chan struct{}
	stopOnce    sync.Once
}

// NewMemoryCache creates the in-process tier. cleanupInterval <= 0
// disables the janitor; expired entries are then evicted lazily on read.
func NewMemoryCache(cleanupInterval time.Duration) *MemoryCache {
	m := &MemoryCache{
		entries:     make(map[string]memoryEntry),
		janitorStop: make(chan struct{}),
	}
	if cleanupInterval > 0 {
		go m.janitor(cleanupInterval)
	}
	return m
}

func (m *MemoryCache) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.evictExpired()
		case <-m.janitorStop:
			return
		}
	}
}

func (m *MemoryCache) evictExpired() {
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, entry := range m.entries {
		if now.After(entry.expiresAt) {
			delete(m.entries, key)
		}
	}
}

// Get returns the cached bytes for key, or false when absent or expired.
func (m *MemoryCache) Get(key string) ([]byte, bool) {
	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		m.mu.Lock()
		delete(m.entries, key)
		m.mu.Unlock()
		return nil, false
	}
	return entry.data, true
}

// Set stores data under key for ttl.
func (m *MemoryCache) Set(key string, data []byte, ttl time.Duration) {
	m.mu.Lock()
	m.entries[key] = memoryEntry{data: data, expiresAt: time.Now().Add(ttl)}
	m.mu.Unlock()
}

// Delete removes key if present.
func (m *MemoryCache) Delete(key string) {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
}

// Len returns the number of resident entries, counting expired ones the
// janitor has not collected yet.
func (m *MemoryCache) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Close stops the janitor goroutine.
func (m *MemoryCache) Close() {
	m.stopOnce.Do(func() { close(m.janitorStop) })
}
