package dedupe

import (
	"time"

	"github.com/okian/creatorboard/pkg/logger"
)

// Option applies a configuration option to the in-memory deduper.
type Option func(*inMemoryDeduper)

// WithMaxSize sets the maximum number of IDs to keep in memory.
// If maxSize <= 0 the deduper never evicts.
func WithMaxSize(maxSize int) Option {
	return func(d *inMemoryDeduper) {
		d.maxSize = maxSize
	}
}

// RedisOption applies a configuration option to the redis deduper.
type RedisOption func(*RedisDeduper)

// WithKeyPrefix namespaces the redis keys.
func WithKeyPrefix(prefix string) RedisOption {
	return func(d *RedisDeduper) {
		if prefix != "" {
			d.prefix = prefix
		}
	}
}

// WithTTL sets how long a delivery id is remembered.
func WithTTL(ttl time.Duration) RedisOption {
	return func(d *RedisDeduper) {
		if ttl > 0 {
			d.ttl = ttl
		}
	}
}

// WithLogger sets the logger used to report redis failures.
func WithLogger(l logger.Logger) RedisOption {
	return func(d *RedisDeduper) {
		if l != nil {
			d.log = l
		}
	}
}
