// Package cache provides the image cache tiers.
package cache

import (
	"context"
	"time"

	"qcgallery/ports"

	gocache "github.com/patrickmn/go-cache"
)

// Memory is a process-local TTL cache. Expired entries are dropped lazily on
// read; no janitor goroutine runs.
type Memory struct {
	items *gocache.Cache
}

var _ ports.ImageCache = (*Memory)(nil)

// NewMemory creates a memory cache whose entries default to ttl
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{items: gocache.New(ttl, 0)}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool) {
	v, ok := m.items.Get(key)
	if !ok {
		return nil, false
	}
	data, ok := v.([]byte)
	return data, ok
}

func (m *Memory) Set(_ context.Context, key string, data []byte, ttl time.Duration) {
	if ttl <= 0 {
		ttl = gocache.DefaultExpiration
	}
	m.items.Set(key, data, ttl)
}

// Len reports the number of stored entries, including expired ones not yet read
func (m *Memory) Len() int {
	return m.items.ItemCount()
}

// Flush drops every entry
func (m *Memory) Flush() {
	m.items.Flush()
}
