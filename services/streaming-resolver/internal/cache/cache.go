// Package cache stores resolver lookups as JSON with a per-entry TTL, in
// Redis when configured and in process memory otherwise.
package cache

import (
	"context"
	"time"
)

type Cache interface {
	// Get decodes the entry for key into dest and reports whether it existed.
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	// Purge drops every entry this cache owns.
	Purge(ctx context.Context) error
}
