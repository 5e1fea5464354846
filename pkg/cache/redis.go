package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const tagKeyPrefix = "tag:"

// invalidateScript deletes the members of each tag set and the set itself in one step,
// so an entry tagged concurrently is never left behind without its tag.
var invalidateScript = redis.NewScript(`
local deleted = 0
for _, tag in ipairs(KEYS) do
	local members = redis.call('SMEMBERS', tag)
	for _, key in ipairs(members) do
		deleted = deleted + redis.call('DEL', key)
	end
	redis.call('DEL', tag)
end
return deleted
`)

// RedisBackend stores entries in Redis and keeps one set per tag listing the keys
// stored under it.
type RedisBackend struct {
	client redis.Cmdable
	// tagTTL bounds how long an idle tag set survives; it must exceed every entry TTL
	tagTTL time.Duration
}

// NewRedisBackend creates a backend over client. tagTTL <= 0 defaults to one hour.
func NewRedisBackend(client redis.Cmdable, tagTTL time.Duration) *RedisBackend {
	if tagTTL <= 0 {
		tagTTL = time.Hour
	}
	return &RedisBackend{client: client, tagTTL: tagTTL}
}

func tagKey(tag string) string {
	return tagKeyPrefix + tag
}

func (b *RedisBackend) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := b.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return val, nil
}

func (b *RedisBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration, tags ...string) error {
	tagTTL := b.tagTTL
	if ttl > tagTTL {
		tagTTL = ttl
	}

	_, err := b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key, value, ttl)
		for _, tag := range tags {
			tk := tagKey(tag)
			pipe.SAdd(ctx, tk, key)
			pipe.Expire(ctx, tk, tagTTL)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (b *RedisBackend) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := b.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (b *RedisBackend) InvalidateTags(ctx context.Context, tags ...string) (int64, error) {
	if len(tags) == 0 {
		return 0, nil
	}
	keys := make([]string, len(tags))
	for i, tag := range tags {
		keys[i] = tagKey(tag)
	}

	n, err := invalidateScript.Run(ctx, b.client, keys).Int64()
	if err != nil {
		return 0, fmt.Errorf("redis invalidate tags: %w", err)
	}
	return n, nil
}

// DeletePattern removes every key matching pattern using SCAN. It walks the whole
// keyspace; warden-admin flush-cache is its only caller.
func (b *RedisBackend) DeletePattern(ctx context.Context, pattern string) (int64, error) {
	var deleted int64
	iter := b.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		n, err := b.client.Del(ctx, iter.Val()).Result()
		if err != nil {
			return deleted, fmt.Errorf("redis del %s: %w", iter.Val(), err)
		}
		deleted += n
	}
	if err := iter.Err(); err != nil {
		return deleted, fmt.Errorf("redis scan %s: %w", pattern, err)
	}
	return deleted, nil
}

func (b *RedisBackend) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}
