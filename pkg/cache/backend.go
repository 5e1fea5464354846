// Package cache is the read-through cache in front of the incident store.
//
// Entries are JSON snapshots with a TTL. Each entry may carry tags; invalidating a
// tag removes every entry stored under it. Lists, searches and stats are tagged
// with TagIncidentLists and everything scoped to one incident with IncidentTag(id),
// so a mutation invalidates exactly the entries that could contain the changed
// incident without scanning the key space.
//
// Cache failures never reach callers: Cache logs and counts them and behaves as
// a miss.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned by Backend.Get when the key is absent or expired
var ErrMiss = errors.New("cache miss")

// Backend stores raw entries with tags.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration, tags ...string) error
	Delete(ctx context.Context, keys ...string) error
	// InvalidateTags deletes every entry stored under any of tags, then the tags themselves.
	// Invalidating an unknown tag is a no-op.
	InvalidateTags(ctx context.Context, tags ...string) (int64, error)
	Ping(ctx context.Context) error
}
