package cache

import (
	"context"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Memory is an in-process cache backed by go-cache.
type Memory struct {
	store      *gocache.Cache
	defaultTTL time.Duration
	closed     atomic.Bool
}

// NewMemory creates a memory cache whose expired entries are swept every cleanupInterval.
func NewMemory(defaultTTL, cleanupInterval time.Duration) *Memory {
	return &Memory{
		store:      gocache.New(defaultTTL, cleanupInterval),
		defaultTTL: defaultTTL,
	}
}

// Get implements Cache.
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	if m.closed.Load() {
		return nil, false, ErrClosed
	}
	v, found := m.store.Get(key)
	if !found {
		return nil, false, nil
	}
	data, ok := v.([]byte)
	if !ok {
		return nil, false, nil
	}
	return data, true, nil
}

// Set implements Cache. The value is copied.
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if m.closed.Load() {
		return ErrClosed
	}
	if ttl <= 0 {
		ttl = m.defaultTTL
	}
	m.store.Set(key, append([]byte(nil), value...), ttl)
	return nil
}

// Delete implements Cache.
func (m *Memory) Delete(_ context.Context, key string) error {
	if m.closed.Load() {
		return ErrClosed
	}
	m.store.Delete(key)
	return nil
}

// Clear implements Cache.
func (m *Memory) Clear(_ context.Context) error {
	if m.closed.Load() {
		return ErrClosed
	}
	m.store.Flush()
	return nil
}

// Close implements Cache. The janitor goroutine is stopped when the cache is
// garbage collected, so Close only flushes and marks the cache unusable.
func (m *Memory) Close() error {
	if m.closed.Swap(true) {
		return nil
	}
	m.store.Flush()
	return nil
}

// Backend implements Cache.
func (m *Memory) Backend() string {
	return BackendMemory
}

// Len returns the number of stored entries, including expired ones not yet swept.
func (m *Memory) Len() int {
	return m.store.ItemCount()
}
