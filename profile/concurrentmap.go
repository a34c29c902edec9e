// Copyright 2024 The Erigon Authors
// This file is part of Erigon.
//
// Erigon is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Erigon is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Erigon. If not, see <http://www.gnu.org/licenses/>.

package profile

import (
	"sync"
	"sync/atomic"
)

const shardCount = 64

// shardedMap is the accessor-based concurrent hash map spec §5 describes:
// per-bucket (shard) mutual exclusion, with insert-or-get atomic within a
// shard. It backs every profile table map: events, monotypeEvents, and
// sources.
type shardedMap[K comparable, V any] struct {
	hash   func(K) uint64
	shards [shardCount]shard[K, V]
}

type shard[K comparable, V any] struct {
	mu sync.Mutex
	m  map[K]V
}

func newShardedMap[K comparable, V any](hash func(K) uint64) *shardedMap[K, V] {
	sm := &shardedMap[K, V]{hash: hash}
	for i := range sm.shards {
		sm.shards[i].m = make(map[K]V)
	}
	return sm
}

func (sm *shardedMap[K, V]) shardFor(k K) *shard[K, V] {
	return &sm.shards[sm.hash(k)%shardCount]
}

// LoadOrStore returns the existing value for k, or stores and returns make()
// if absent. The bucket lock makes the check-then-insert atomic; a caller
// that loses the race to create gets back the winner's value and loaded=true
// (spec §4.6: "if another thread wins, free the loser's auxiliary
// allocations").
func (sm *shardedMap[K, V]) LoadOrStore(k K, make func() V) (actual V, loaded bool) {
	s := sm.shardFor(k)
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.m[k]; ok {
		return v, true
	}
	v := make()
	s.m[k] = v
	return v, false
}

// Load returns the value for k without creating it.
func (sm *shardedMap[K, V]) Load(k K) (V, bool) {
	s := sm.shardFor(k)
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.m[k]
	return v, ok
}

// Len reports the total number of entries across all shards. Safe to call
// concurrently but, like any live Len(), only a snapshot at some instant.
func (sm *shardedMap[K, V]) Len() int {
	n := 0
	for i := range sm.shards {
		sm.shards[i].mu.Lock()
		n += len(sm.shards[i].m)
		sm.shards[i].mu.Unlock()
	}
	return n
}

// Snapshot copies every entry out. Intended to be called only after the
// export gate has closed, when mutation has provably stopped — so no lock
// is taken here beyond what iteration itself needs.
func (sm *shardedMap[K, V]) Snapshot() map[K]V {
	out := make(map[K]V, sm.Len())
	for i := range sm.shards {
		sm.shards[i].mu.Lock()
		for k, v := range sm.shards[i].m {
			out[k] = v
		}
		sm.shards[i].mu.Unlock()
	}
	return out
}

// counterMap specializes shardedMap to hold atomic counters: the "insert 1
// on first touch, else increment" pattern events/monotypeEvents/sources all
// share (spec §4.6 "on first insert set the counter to 1, else increment").
type counterMap[K comparable] struct {
	sm *shardedMap[K, *atomic.Uint64]
}

func newCounterMap[K comparable](hash func(K) uint64) *counterMap[K] {
	return &counterMap[K]{sm: newShardedMap[K, *atomic.Uint64](hash)}
}

// Increment bumps the counter for k by one, creating it at 1 if absent.
func (cm *counterMap[K]) Increment(k K) {
	s := cm.sm.shardFor(k)
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.m[k]
	if !ok {
		c = &atomic.Uint64{}
		c.Store(1)
		s.m[k] = c
		return
	}
	c.Add(1)
}

// Snapshot materializes every key's current count.
func (cm *counterMap[K]) Snapshot() map[K]uint64 {
	raw := cm.sm.Snapshot()
	out := make(map[K]uint64, len(raw))
	for k, v := range raw {
		out[k] = v.Load()
	}
	return out
}

// Len reports the number of distinct keys.
func (cm *counterMap[K]) Len() int { return cm.sm.Len() }
