package roster

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Cached remembers found registrants for a while. Misses are never cached
// so someone who registers a minute after a failed /verify can retry.
type Cached struct {
	next  Lookup
	cache *expirable.LRU[string, Registrant]
}

// NewCached wraps next with an LRU of size entries living for ttl.
func NewCached(next Lookup, size int, ttl time.Duration) *Cached {
	return &Cached{next: next, cache: expirable.NewLRU[string, Registrant](size, nil, ttl)}
}

// Find implements Lookup.
func (c *Cached) Find(ctx context.Context, email string) (*Registrant, error) {
	key := normalize(email)
	if r, ok := c.cache.Get(key); ok {
		return &r, nil
	}
	r, err := c.next.Find(ctx, email)
	if err != nil || r == nil {
		return r, err
	}
	c.cache.Add(key, *r)
	return r, nil
}

