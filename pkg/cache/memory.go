package cache

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryBackend is a process-local backend for single-instance deployments and tests.
// Entries are evicted least-recently-used beyond maxEntries or after their TTL.
type MemoryBackend struct {
	mu     sync.Mutex
	lru    *lru.LRU[string, memoryEntry]
	tags   map[string]map[string]struct{}
	size   int
	maxTTL time.Duration
	now    func() time.Time
}

// NewMemoryBackend creates a backend holding at most maxEntries entries, none
// living longer than maxTTL.
func NewMemoryBackend(maxEntries int, maxTTL time.Duration) *MemoryBackend {
	if maxEntries < 10 {
		maxEntries = 10
	}
	if maxTTL <= 0 {
		maxTTL = time.Hour
	}
	return &MemoryBackend{
		lru:    lru.NewLRU[string, memoryEntry](maxEntries, nil, maxTTL),
		tags:   make(map[string]map[string]struct{}),
		size:   maxEntries,
		maxTTL: maxTTL,
		now:    time.Now,
	}
}

func (b *MemoryBackend) Get(_ context.Context, key string) ([]byte, error) {
	entry, ok := b.lru.Get(key)
	if !ok {
		return nil, ErrMiss
	}
	if !b.now().Before(entry.expiresAt) {
		b.lru.Remove(key)
		return nil, ErrMiss
	}
	return entry.value, nil
}

func (b *MemoryBackend) Set(_ context.Context, key string, value []byte, ttl time.Duration, tags ...string) error {
	if ttl <= 0 || ttl > b.maxTTL {
		ttl = b.maxTTL
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.lru.Add(key, memoryEntry{value: value, expiresAt: b.now().Add(ttl)})
	for _, tag := range tags {
		set, ok := b.tags[tag]
		if !ok {
			set = make(map[string]struct{})
			b.tags[tag] = set
		}
		set[key] = struct{}{}
	}
	if len(b.tags) > 4*b.size {
		b.pruneTags()
	}
	return nil
}

// pruneTags drops tag members whose entries were evicted. Caller holds mu.
func (b *MemoryBackend) pruneTags() {
	for tag, set := range b.tags {
		for key := range set {
			if !b.lru.Contains(key) {
				delete(set, key)
			}
		}
		if len(set) == 0 {
			delete(b.tags, tag)
		}
	}
}

func (b *MemoryBackend) Delete(_ context.Context, keys ...string) error {
	for _, key := range keys {
		b.lru.Remove(key)
	}
	return nil
}

func (b *MemoryBackend) InvalidateTags(_ context.Context, tags ...string) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var deleted int64
	for _, tag := range tags {
		for key := range b.tags[tag] {
			if b.lru.Remove(key) {
				deleted++
			}
		}
		delete(b.tags, tag)
	}
	return deleted, nil
}

func (b *MemoryBackend) Ping(context.Context) error {
	return nil
}

// Len returns the number of live entries
func (b *MemoryBackend) Len() int {
	return b.lru.Len()
}
