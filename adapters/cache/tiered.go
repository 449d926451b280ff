package cache

import (
	"context"
	"time"

	"qcgallery/ports"
)

// Tiered reads tiers in order and backfills the faster tiers on a hit.
type Tiered struct {
	tiers []ports.ImageCache
	ttl   time.Duration
}

var _ ports.ImageCache = (*Tiered)(nil)

// NewTiered stacks tiers, fastest first. Backfilled entries live for ttl.
func NewTiered(ttl time.Duration, tiers ...ports.ImageCache) *Tiered {
	return &Tiered{tiers: tiers, ttl: ttl}
}

func (t *Tiered) Get(ctx context.Context, key string) ([]byte, bool) {
	for i, tier := range t.tiers {
		if data, ok := tier.Get(ctx, key); ok {
			for _, faster := range t.tiers[:i] {
				faster.Set(ctx, key, data, t.ttl)
			}
			return data, true
		}
	}
	return nil, false
}

func (t *Tiered) Set(ctx context.Context, key string, data []byte, ttl time.Duration) {
	for _, tier := range t.tiers {
		tier.Set(ctx, key, data, ttl)
	}
}
