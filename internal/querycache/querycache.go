// Package querycache caches aggregated query responses. Implementations
// fail soft: a transport error degrades to a cache miss or a no-op and is
// never surfaced to the query path.
package querycache

import (
	"context"
	"time"
)

type Cache interface {
	// Get decodes the payload under key into v, reporting whether a
	// usable entry existed.
	Get(ctx context.Context, key string, v interface{}) bool
	// Set stores v under key for ttl. Non-positive TTLs skip the write.
	Set(ctx context.Context, key string, v interface{}, ttl time.Duration)
	// InvalidatePattern removes every key matching a glob pattern.
	InvalidatePattern(ctx context.Context, pattern string)
}
