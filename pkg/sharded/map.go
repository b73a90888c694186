package sharded

import "sync"

type mapShard[V any] struct {
	mu    sync.RWMutex
	items map[string]V
}

// Map is a concurrent map from strings to V.
type Map[V any] []*mapShard[V]

// NewMap creates a Map. numShards must be a power of 2.
func NewMap[V any](numShards int) *Map[V] {
	if !isPowerOfTwo(numShards) {
		panic("num shards must be a power of 2")
	}
	m := make(Map[V], numShards)
	for i := 0; i < numShards; i++ {
		m[i] = &mapShard[V]{items: make(map[string]V)}
	}
	return &m
}

func (m *Map[V]) getShard(key string) *mapShard[V] {
	return (*m)[getShardIndex(key, len(*m))]
}

// Store sets the value for key.
func (m *Map[V]) Store(key string, value V) {
	shard := m.getShard(key)
	shard.mu.Lock()
	shard.items[key] = value
	shard.mu.Unlock()
}

// Load returns the value stored for key, if any.
func (m *Map[V]) Load(key string) (value V, ok bool) {
	shard := m.getShard(key)
	shard.mu.RLock()
	value, ok = shard.items[key]
	shard.mu.RUnlock()
	return value, ok
}

// Count returns the total number of entries.
func (m *Map[V]) Count() int {
	count := 0
	for _, shard := range *m {
		shard.mu.RLock()
		count += len(shard.items)
		shard.mu.RUnlock()
	}
	return count
}

// Range calls f for each entry until f returns false. The map must not be
// modified from within f.
func (m *Map[V]) Range(f func(key string, value V) bool) {
	for _, shard := range *m {
		shard.mu.RLock()
		for k, v := range shard.items {
			if !f(k, v) {
				shard.mu.RUnlock()
				return
			}
		}
		shard.mu.RUnlock()
	}
}
