package ratelimit

import (
	"context"
	"hash/fnv"
	"sync"
	"time"
)

const (
	defaultMaxKeys = 10000
	storeShards    = 32
)

// InMemoryStore is a sharded in-memory Store scoped to one process.
//
// Keys are spread over storeShards maps, each behind its own RWMutex, so
// unrelated keys rarely contend. Each shard holds at most MaxKeys/storeShards
// entries; inserting a new key into a full shard evicts the least recently
// used 10% of that shard.
type InMemoryStore struct {
	shards      [storeShards]*memoryShard
	maxPerShard int
	onEvict     func(count int)
}

type memoryShard struct {
	mu      sync.RWMutex
	entries map[string]Entry
	lru     *lruList
}

// InMemoryStoreConfig holds configuration for InMemoryStore.
type InMemoryStoreConfig struct {
	// MaxKeys bounds the number of keys held in memory. Default: 10000.
	MaxKeys int

	// OnEvict is called with the number of entries evicted for capacity.
	OnEvict func(count int)
}

// DefaultInMemoryStoreConfig returns the default configuration.
func DefaultInMemoryStoreConfig() InMemoryStoreConfig {
	return InMemoryStoreConfig{MaxKeys: defaultMaxKeys}
}

// NewInMemoryStore creates a new in-memory store.
func NewInMemoryStore(config InMemoryStoreConfig) *InMemoryStore {
	if config.MaxKeys <= 0 {
		config.MaxKeys = defaultMaxKeys
	}
	perShard := config.MaxKeys / storeShards
	if perShard < 1 {
		perShard = 1
	}

	s := &InMemoryStore{
		maxPerShard: perShard,
		onEvict:     config.OnEvict,
	}
	for i := range s.shards {
		s.shards[i] = &memoryShard{
			entries: make(map[string]Entry),
			lru:     newLRUList(),
		}
	}
	return s
}

// Get returns the entry for key.
func (s *InMemoryStore) Get(_ context.Context, key string) (Entry, bool, error) {
	sh := s.shardFor(key)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	e, ok := sh.entries[key]
	return e, ok, nil
}

// Set creates or replaces the entry for key.
func (s *InMemoryStore) Set(_ context.Context, key string, entry Entry) error {
	sh := s.shardFor(key)
	sh.mu.Lock()

	evicted := 0
	if _, exists := sh.entries[key]; !exists && len(sh.entries) >= s.maxPerShard {
		evicted = sh.evictLRU(s.maxPerShard)
	}
	sh.entries[key] = entry
	sh.lru.touch(key)
	sh.mu.Unlock()

	if evicted > 0 && s.onEvict != nil {
		s.onEvict(evicted)
	}
	return nil
}

// Delete removes the entry for key.
func (s *InMemoryStore) Delete(_ context.Context, key string) error {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	delete(sh.entries, key)
	sh.lru.remove(key)
	return nil
}

// DeleteExpired removes key when its window has closed at now. The read and
// the delete happen under the shard write lock that Set also takes.
func (s *InMemoryStore) DeleteExpired(_ context.Context, key string, now time.Time) (bool, error) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	e, ok := sh.entries[key]
	if !ok || !e.Expired(now) {
		return false, nil
	}
	delete(sh.entries, key)
	sh.lru.remove(key)
	return true, nil
}

// Keys returns a snapshot of every key currently stored.
func (s *InMemoryStore) Keys(_ context.Context) ([]string, error) {
	keys := make([]string, 0, s.Len())
	for _, sh := range s.shards {
		sh.mu.RLock()
		for k := range sh.entries {
			keys = append(keys, k)
		}
		sh.mu.RUnlock()
	}
	return keys, nil
}

// Len returns the number of stored entries.
func (s *InMemoryStore) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		n += len(sh.entries)
		sh.mu.RUnlock()
	}
	return n
}

func (s *InMemoryStore) shardFor(key string) *memoryShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return s.shards[h.Sum32()%storeShards]
}

// evictLRU drops 10% of the shard (at least one entry), oldest first.
// Must be called with the shard write lock held.
func (sh *memoryShard) evictLRU(capacity int) int {
	evictCount := capacity / 10
	if evictCount < 1 {
		evictCount = 1
	}

	evicted := 0
	for evicted < evictCount && sh.lru.tail != nil {
		key := sh.lru.tail.key
		delete(sh.entries, key)
		sh.lru.remove(key)
		evicted++
	}
	return evicted
}

// lruList is a doubly-linked list of keys, most recently used at head.
type lruList struct {
	head *lruNode
	tail *lruNode
	keys map[string]*lruNode
}

type lruNode struct {
	key  string
	prev *lruNode
	next *lruNode
}

func newLRUList() *lruList {
	return &lruList{keys: make(map[string]*lruNode)}
}

// touch moves key to the head, inserting it when missing.
func (l *lruList) touch(key string) {
	if _, exists := l.keys[key]; exists {
		l.remove(key)
	}

	node := &lruNode{key: key, next: l.head}
	if l.head != nil {
		l.head.prev = node
	}
	l.head = node
	if l.tail == nil {
		l.tail = node
	}
	l.keys[key] = node
}

func (l *lruList) remove(key string) {
	node, exists := l.keys[key]
	if !exists {
		return
	}

	if node.prev != nil {
		node.prev.next = node.next
	} else {
		l.head = node.next
	}
	if node.next != nil {
		node.next.prev = node.prev
	} else {
		l.tail = node.prev
	}
	delete(l.keys, key)
}
