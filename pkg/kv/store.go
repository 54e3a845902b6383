package kv

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/atomic"
)

const (
	numShards = 32
)

var (
	ErrNotFound = errors.New("not found")
)

// Entries maps keys to JSON encoded values.
type Entries map[string]json.RawMessage

// Store is the replicated key-value store.
//
// The store has a single version covering all entries. The version is
// incremented on each local write, and jumps to the version of any accepted
// remote snapshot. A remote snapshot is only accepted if its version is
// strictly greater than the local version, in which case each of its entries
// overwrites the local entry with the same key. Keys that only exist locally
// are kept.
//
// Note since the version covers the whole store rather than each key, a
// snapshot with a higher version will overwrite a key even if the local value
// of that key is newer.
//
// Entries are partitioned into shards each with their own lock, so reads
// and writes to different keys don't contend.
type Store struct {
	shards [numShards]*shard

	version *atomic.Uint64

	// mergeMu serializes remote merges so two concurrent merges can't
	// interleave their entries. It is never held by local reads or writes.
	mergeMu sync.Mutex

	metrics *Metrics
}

type shard struct {
	entries map[string]json.RawMessage

	// mu protects the above fields.
	mu sync.RWMutex
}

// NewStore returns an empty store at version 0.
func NewStore() *Store {
	s := &Store{
		version: atomic.NewUint64(0),
	}
	for i := range s.shards {
		s.shards[i] = &shard{
			entries: make(map[string]json.RawMessage),
		}
	}
	s.metrics = newMetrics(s)
	return s
}

// Get returns the value of the given key. The returned value must not be
// modified.
func (s *Store) Get(key string) (json.RawMessage, bool) {
	shard := s.shard(key)

	shard.mu.RLock()
	defer shard.mu.RUnlock()

	v, ok := shard.entries[key]
	return v, ok
}

// Put sets the value of the given key then increments the store version.
//
// Returns the version following the write. Each write is given a unique
// version, though concurrent writes may increment the version in a different
// order to the order their entries were written.
func (s *Store) Put(key string, value json.RawMessage) uint64 {
	shard := s.shard(key)

	shard.mu.Lock()
	shard.entries[key] = value
	// Increment while holding the shard lock so a snapshot can't observe
	// the version without the write.
	version := s.version.Inc()
	shard.mu.Unlock()

	s.metrics.LocalWrites.Inc()

	return version
}

// Version returns the current store version.
func (s *Store) Version() uint64 {
	return s.version.Load()
}

// Snapshot returns the store version and a copy of all entries.
//
// The version is read before the entries, so the entries are at least as
// up to date as the returned version, though they may include writes from
// later versions.
func (s *Store) Snapshot() (uint64, Entries) {
	version := s.version.Load()

	entries := make(Entries)
	for _, shard := range s.shards {
		shard.mu.RLock()
		for k, v := range shard.entries {
			entries[k] = v
		}
		shard.mu.RUnlock()
	}
	return version, entries
}

// Len returns the number of entries in the store.
func (s *Store) Len() int {
	n := 0
	for _, shard := range s.shards {
		shard.mu.RLock()
		n += len(shard.entries)
		shard.mu.RUnlock()
	}
	return n
}

// Merge applies a remote snapshot with the given version and entries.
//
// If version is greater than the local version, the remote entries
// overwrite the local entries and the local version is raised to version.
// Otherwise the snapshot is stale and discarded.
//
// Returns whether the snapshot was accepted.
func (s *Store) Merge(version uint64, entries Entries) bool {
	s.mergeMu.Lock()
	defer s.mergeMu.Unlock()

	if version <= s.version.Load() {
		s.metrics.Merges.WithLabelValues("stale").Inc()
		return false
	}

	for k, v := range entries {
		shard := s.shard(k)
		shard.mu.Lock()
		shard.entries[k] = v
		shard.mu.Unlock()
	}

	// The version is raised after the entries are written, so a concurrent
	// snapshot never reports the new version with the old entries.
	//
	// Concurrent local writes may have incremented the version since the
	// check above, so only raise the version if it is still lower.
	for {
		current := s.version.Load()
		if current >= version {
			break
		}
		if s.version.CompareAndSwap(current, version) {
			break
		}
	}

	s.metrics.Merges.WithLabelValues("accepted").Inc()

	return true
}

func (s *Store) Metrics() *Metrics {
	return s.metrics
}

func (s *Store) shard(key string) *shard {
	return s.shards[xxhash.Sum64String(key)%numShards]
}
