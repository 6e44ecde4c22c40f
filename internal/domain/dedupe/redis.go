package dedupe

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/okian/creatorboard/pkg/logger"
)

// RedisDeduper shares delivery ids between processes with SETNX.
// A redis failure counts as "not seen": the store's own uniqueness
// rules still reject the replayed nomination.
type RedisDeduper struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
	log    logger.Logger
	size   atomic.Int64 // ids recorded by this process
}

// NewRedisDeduper wraps a redis client.
func NewRedisDeduper(client redis.Cmdable, opts ...RedisOption) *RedisDeduper {
	d := &RedisDeduper{
		client: client,
		prefix: "creatorboard:mention:",
		ttl:    7 * 24 * time.Hour,
		log:    logger.Discard(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *RedisDeduper) SeenAndRecord(ctx context.Context, id string) bool {
	ok, err := d.client.SetNX(ctx, d.prefix+id, 1, d.ttl).Result()
	if err != nil {
		d.log.Warn(ctx, "dedupe setnx failed", logger.String("id", id), logger.Error(err))
		return false
	}
	if ok {
		d.size.Add(1)
	}
	return !ok
}

func (d *RedisDeduper) Unrecord(ctx context.Context, id string) {
	n, err := d.client.Del(ctx, d.prefix+id).Result()
	if err != nil {
		d.log.Warn(ctx, "dedupe del failed", logger.String("id", id), logger.Error(err))
		return
	}
	if n > 0 {
		d.size.Add(-1)
	}
}

func (d *RedisDeduper) Size() int64 { return d.size.Load() }
