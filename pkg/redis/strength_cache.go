package redis

import (
	"context"
	"encoding/json"
	"time"

	"together.backend/internal/domain/entities"
)

var (
	setStrengthValue = Set
	getStrengthValue = Get
)

// StrengthCache is a short-TTL read cache for per-address pair
// strengths. The watcher writes strengths from another process, so
// staleness is bounded by the TTL rather than explicit invalidation.
type StrengthCache struct {
	ttl time.Duration
}

func NewStrengthCache(ttl time.Duration) *StrengthCache {
	return &StrengthCache{ttl: ttl}
}

func strengthKey(address string) string {
	return "strength:" + address
}

// Get returns the cached strengths for an address, or false on a miss.
// Cache errors are treated as misses.
func (c *StrengthCache) Get(ctx context.Context, address string) ([]*entities.PairStrength, bool) {
	raw, err := getStrengthValue(ctx, strengthKey(address))
	if err != nil {
		return nil, false
	}

	var strengths []*entities.PairStrength
	if err := json.Unmarshal([]byte(raw), &strengths); err != nil {
		return nil, false
	}
	return strengths, true
}

// Set caches the strengths for an address. Failures are ignored; the
// next read falls through to the database.
func (c *StrengthCache) Set(ctx context.Context, address string, strengths []*entities.PairStrength) {
	raw, err := json.Marshal(strengths)
	if err != nil {
		return
	}
	_ = setStrengthValue(ctx, strengthKey(address), string(raw), c.ttl)
}
