// Package store holds the expiring key/value state shared by the anti-abuse
// components: IP reputation, attempt counters and rate limit windows.
package store

import (
	"context"
	"time"
)

// Store is a key/value map with per-key expiry.
type Store interface {
	// Get returns the value for key. found is false when the key is absent or expired.
	Get(ctx context.Context, key string) (value string, found bool, err error)
	// Set writes value and (re)starts its TTL.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// Incr atomically increments the counter at key. The TTL is applied only when
	// the increment creates the key, so the window is anchored at the first hit.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
}
