package cache

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

type memEntry struct {
	value    []byte
	expireAt time.Time // zero => no backend expiry
}

// MemoryBackend keeps entries in a process-lifetime map. An optional sweeper
// drops entries whose backend TTL has passed.
type MemoryBackend struct {
	mu      sync.RWMutex
	entries map[string]memEntry
	now     func() time.Time

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// NewMemoryBackend creates a memory backend. sweep <= 0 disables the sweeper;
// expired entries are then only dropped lazily on Get.
func NewMemoryBackend(sweep time.Duration) *MemoryBackend {
	m := &MemoryBackend{
		entries: make(map[string]memEntry),
		now:     time.Now,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	if sweep > 0 {
		go m.sweeping(sweep)
	} else {
		close(m.done)
	}
	return m
}

func (m *MemoryBackend) sweeping(interval time.Duration) {
	defer close(m.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}

// Sweep removes entries past their backend expiry and returns the count.
func (m *MemoryBackend) Sweep() int {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for k, e := range m.entries {
		if !e.expireAt.IsZero() && now.After(e.expireAt) {
			delete(m.entries, k)
			n++
		}
	}
	return n
}

func (m *MemoryBackend) Name() string { return "memory" }

func (m *MemoryBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !e.expireAt.IsZero() && m.now().After(e.expireAt) {
		m.mu.Lock()
		// Re-check: a writer may have replaced the entry meanwhile.
		if cur, ok := m.entries[key]; ok && cur.expireAt.Equal(e.expireAt) {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		return nil, false, nil
	}
	return e.value, true, nil
}

func (m *MemoryBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	e := memEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expireAt = m.now().Add(ttl)
	}
	m.mu.Lock()
	m.entries[key] = e
	m.mu.Unlock()
	return nil
}

func (m *MemoryBackend) Delete(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.entries, k)
	}
	return nil
}

func (m *MemoryBackend) Keys(ctx context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var keys []string
	for k := range m.entries {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Len returns the number of stored entries, expired or not.
func (m *MemoryBackend) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Close stops the sweeper.
func (m *MemoryBackend) Close() error {
	m.once.Do(func() { close(m.stop) })
	<-m.done
	return nil
}
