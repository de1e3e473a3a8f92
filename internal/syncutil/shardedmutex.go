// Package syncutil provides small concurrency helpers.
package syncutil

import (
	"hash/fnv"
	"sync"
)

const shardCount = 256

// ShardedMutex is a fixed pool of mutexes keyed by string, used to
// serialize operations per key (one identity's quota updates, for example)
// with bounded memory. Keys that hash to the same shard contend with each
// other; that is acceptable false sharing, not a correctness issue.
type ShardedMutex struct {
	shards [shardCount]sync.Mutex
}

// Lock acquires the shard for key and returns its unlock function.
func (s *ShardedMutex) Lock(key string) func() {
	mu := &s.shards[shardIndex(key)]
	mu.Lock()
	return mu.Unlock
}

// Do runs fn while holding the shard lock for key.
func (s *ShardedMutex) Do(key string, fn func()) {
	unlock := s.Lock(key)
	defer unlock()
	fn()
}

func shardIndex(key string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return h.Sum32() % shardCount
}
