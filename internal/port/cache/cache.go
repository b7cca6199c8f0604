// Package cache defines the port interface for the in-process aggregate cache.
package cache

import (
	"context"
	"time"
)

// Cache stores serialized aggregates (session cost, agent stats) with a TTL.
// A miss is not an error.
type Cache interface {
	Get(ctx context.Context, key string) (data []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
