// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package grouping

import (
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/cardinalhq/healthexport/internal/record"
)

// DefaultShards is the shard count used by NewShardedMap when asked for
// zero shards.
const DefaultShards = 64

// ShardedMap accumulates records by grouping key from many goroutines.
//
// A shard lock is held only to look up or create a key's bucket; appends
// take the bucket's own lock, so writers to different keys never contend
// beyond the lookup.
type ShardedMap struct {
	shards []shard
}

type shard struct {
	mu      sync.RWMutex
	buckets map[string]*bucket
}

type bucket struct {
	mu      sync.Mutex
	records []record.Record
}

// NewShardedMap returns a map with n shards.
func NewShardedMap(n int) *ShardedMap {
	if n <= 0 {
		n = DefaultShards
	}
	m := &ShardedMap{shards: make([]shard, n)}
	for i := range m.shards {
		m.shards[i].buckets = make(map[string]*bucket)
	}
	return m
}

func (m *ShardedMap) shardFor(key string) *shard {
	return &m.shards[xxhash.Sum64String(key)%uint64(len(m.shards))]
}

// Add appends rec to its group.
func (m *ShardedMap) Add(rec record.Record) {
	key := rec.GroupingKey()
	s := m.shardFor(key)

	s.mu.RLock()
	b, ok := s.buckets[key]
	s.mu.RUnlock()

	if !ok {
		s.mu.Lock()
		if b, ok = s.buckets[key]; !ok {
			b = &bucket{}
			s.buckets[key] = b
		}
		s.mu.Unlock()
	}

	b.mu.Lock()
	b.records = append(b.records, rec)
	b.mu.Unlock()
}

// Len returns the number of groups.
func (m *ShardedMap) Len() int {
	n := 0
	for i := range m.shards {
		s := &m.shards[i]
		s.mu.RLock()
		n += len(s.buckets)
		s.mu.RUnlock()
	}
	return n
}

// Take empties the map and returns its contents. It must not run
// concurrently with Add.
func (m *ShardedMap) Take() map[string][]record.Record {
	out := make(map[string][]record.Record, m.Len())
	for i := range m.shards {
		s := &m.shards[i]
		s.mu.Lock()
		for k, b := range s.buckets {
			out[k] = b.records
		}
		s.buckets = make(map[string]*bucket)
		s.mu.Unlock()
	}
	return out
}
