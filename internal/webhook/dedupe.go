package webhook

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DedupeTTL is how long an update id is remembered. The platform stops
// redelivering long before that.
const DedupeTTL = 24 * time.Hour

// Deduper reports whether an update was already accepted. Forget releases a
// claim taken by Seen for an update that was not processed after all.
type Deduper interface {
	Seen(ctx context.Context, updateID int64) (bool, error)
	Forget(ctx context.Context, updateID int64) error
}

// RedisDeduper claims update ids with SETNX, so redeliveries are dropped
// across restarts and across instances sharing the Redis.
type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisDeduper(client *redis.Client) *RedisDeduper {
	return &RedisDeduper{client: client, ttl: DedupeTTL}
}

func (d *RedisDeduper) Seen(ctx context.Context, updateID int64) (bool, error) {
	claimed, err := d.client.SetNX(ctx, updateKey(updateID), 1, d.ttl).Result()
	if err != nil {
		return false, err
	}
	return !claimed, nil
}

func (d *RedisDeduper) Forget(ctx context.Context, updateID int64) error {
	return d.client.Del(ctx, updateKey(updateID)).Err()
}

func updateKey(updateID int64) string {
	return "pm-relay:update:" + strconv.FormatInt(updateID, 10)
}
