package kv

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_Local(t *testing.T) {
	t.Run("initial state", func(t *testing.T) {
		s := NewStore()

		version, entries := s.Snapshot()
		assert.Equal(t, uint64(0), version)
		assert.Empty(t, entries)
		assert.Equal(t, 0, s.Len())
	})

	t.Run("put", func(t *testing.T) {
		s := NewStore()

		assert.Equal(t, uint64(1), s.Put("k1", json.RawMessage(`"v1"`)))
		assert.Equal(t, uint64(2), s.Put("k2", json.RawMessage(`{"a":1}`)))
		assert.Equal(t, uint64(3), s.Put("k1", json.RawMessage(`2`)))

		v, ok := s.Get("k1")
		assert.True(t, ok)
		assert.Equal(t, json.RawMessage(`2`), v)

		v, ok = s.Get("k2")
		assert.True(t, ok)
		assert.Equal(t, json.RawMessage(`{"a":1}`), v)

		version, entries := s.Snapshot()
		assert.Equal(t, uint64(3), version)
		assert.Equal(t, Entries{
			"k1": json.RawMessage(`2`),
			"k2": json.RawMessage(`{"a":1}`),
		}, entries)
	})

	t.Run("get not found", func(t *testing.T) {
		s := NewStore()

		_, ok := s.Get("unknown")
		assert.False(t, ok)
	})

	t.Run("concurrent puts", func(t *testing.T) {
		s := NewStore()
		s.Put("init", json.RawMessage(`0`))

		const writers = 16
		const writesPerWriter = 250

		var mu sync.Mutex
		seen := make(map[uint64]struct{})

		var wg sync.WaitGroup
		for w := 0; w != writers; w++ {
			w := w
			wg.Add(1)
			go func() {
				defer wg.Done()

				for i := 0; i != writesPerWriter; i++ {
					version := s.Put(
						fmt.Sprintf("key-%d-%d", w, i%10),
						json.RawMessage(fmt.Sprint(i)),
					)

					mu.Lock()
					_, dup := seen[version]
					seen[version] = struct{}{}
					mu.Unlock()

					assert.False(t, dup, "duplicate version %d", version)
				}
			}()
		}
		wg.Wait()

		// Every write must have observed a unique version and the final
		// version must account for every write.
		assert.Equal(t, uint64(1+writers*writesPerWriter), s.Version())
		assert.Len(t, seen, writers*writesPerWriter)
		assert.Equal(t, 1+writers*10, s.Len())
	})
}

func TestStore_Merge(t *testing.T) {
	t.Run("newer snapshot", func(t *testing.T) {
		s := NewStore()
		s.Put("x", json.RawMessage(`1`))
		s.Put("local", json.RawMessage(`"only-local"`))

		accepted := s.Merge(5, Entries{
			"x": json.RawMessage(`2`),
			"y": json.RawMessage(`3`),
		})
		assert.True(t, accepted)

		version, entries := s.Snapshot()
		assert.Equal(t, uint64(5), version)
		assert.Equal(t, Entries{
			"x":     json.RawMessage(`2`),
			"y":     json.RawMessage(`3`),
			"local": json.RawMessage(`"only-local"`),
		}, entries)
	})

	t.Run("stale snapshot", func(t *testing.T) {
		s := NewStore()
		assert.True(t, s.Merge(5, Entries{"x": json.RawMessage(`2`)}))

		assert.False(t, s.Merge(3, Entries{"x": json.RawMessage(`1`)}))

		v, ok := s.Get("x")
		assert.True(t, ok)
		assert.Equal(t, json.RawMessage(`2`), v)
		assert.Equal(t, uint64(5), s.Version())
	})

	t.Run("equal version", func(t *testing.T) {
		s := NewStore()
		s.Put("x", json.RawMessage(`1`))

		assert.False(t, s.Merge(1, Entries{"x": json.RawMessage(`9`)}))

		v, _ := s.Get("x")
		assert.Equal(t, json.RawMessage(`1`), v)
	})

	t.Run("empty snapshot", func(t *testing.T) {
		s := NewStore()
		s.Put("x", json.RawMessage(`1`))

		assert.True(t, s.Merge(10, Entries{}))

		version, entries := s.Snapshot()
		assert.Equal(t, uint64(10), version)
		assert.Equal(t, Entries{"x": json.RawMessage(`1`)}, entries)
	})

	t.Run("local write after merge", func(t *testing.T) {
		s := NewStore()
		assert.True(t, s.Merge(10, Entries{"x": json.RawMessage(`1`)}))

		assert.Equal(t, uint64(11), s.Put("y", json.RawMessage(`2`)))
	})

	t.Run("concurrent merges and writes", func(t *testing.T) {
		s := NewStore()

		var wg sync.WaitGroup
		for i := 1; i <= 50; i++ {
			i := i
			wg.Add(2)
			go func() {
				defer wg.Done()
				s.Merge(uint64(i*10), Entries{
					"remote": json.RawMessage(fmt.Sprint(i)),
				})
			}()
			go func() {
				defer wg.Done()
				s.Put("local", json.RawMessage(fmt.Sprint(i)))
			}()
		}
		wg.Wait()

		// The version never regresses below the highest accepted
		// snapshot.
		assert.GreaterOrEqual(t, s.Version(), uint64(500))
		_, ok := s.Get("remote")
		assert.True(t, ok)
		_, ok = s.Get("local")
		assert.True(t, ok)
	})

	t.Run("snapshot during merge", func(t *testing.T) {
		s := NewStore()

		keys := make([]string, 64)
		for i := range keys {
			keys[i] = fmt.Sprintf("k%d", i)
		}

		done := make(chan struct{})
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer close(done)

			for v := 1; v <= 200; v++ {
				entries := make(Entries, len(keys))
				for _, k := range keys {
					entries[k] = json.RawMessage(fmt.Sprint(v))
				}
				s.Merge(uint64(v), entries)
			}
		}()

		// A snapshot never reports a merged version with entries older
		// than that version, though entries may be newer.
		for {
			select {
			case <-done:
				wg.Wait()
				return
			default:
			}

			version, entries := s.Snapshot()
			if version == 0 {
				continue
			}
			require.Len(t, entries, len(keys))
			for k, v := range entries {
				var n uint64
				require.NoError(t, json.Unmarshal(v, &n))
				require.GreaterOrEqual(t, n, version, k)
			}
		}
	})
}

type storeState struct {
	version uint64
	entries Entries
}

func randomState(rng *rand.Rand) storeState {
	entries := make(Entries)
	n := rng.Intn(8)
	for i := 0; i != n; i++ {
		entries[fmt.Sprintf("k%d", rng.Intn(10))] = json.RawMessage(
			fmt.Sprint(rng.Intn(100)),
		)
	}
	return storeState{
		version: uint64(rng.Intn(20)),
		entries: entries,
	}
}

// storeFromState builds a store at the given state.
func storeFromState(t *testing.T, state storeState) *Store {
	s := NewStore()
	if state.version > 0 {
		require.True(t, s.Merge(state.version, state.entries))
	} else {
		require.Empty(t, state.entries)
	}
	return s
}

func TestStore_MergeProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for i := 0; i != 500; i++ {
		a := randomState(rng)
		b := randomState(rng)
		if a.version == 0 {
			a.entries = Entries{}
		}

		s := storeFromState(t, a)
		accepted := s.Merge(b.version, b.entries)

		version, entries := s.Snapshot()
		if b.version > a.version {
			// Monotonicity: the result has b's version, b's value for every
			// key in b and a's value for keys only in a.
			require.True(t, accepted)
			require.Equal(t, b.version, version)
			for k, v := range b.entries {
				require.Equal(t, v, entries[k])
			}
			for k, v := range a.entries {
				if _, ok := b.entries[k]; !ok {
					require.Equal(t, v, entries[k])
				}
			}
		} else {
			// Non-regression: a stale snapshot never changes the store.
			require.False(t, accepted)
			require.Equal(t, a.version, version)
			require.Equal(t, a.entries, entries)
		}

		// Idempotence: merging the same snapshot again has no effect.
		s.Merge(b.version, b.entries)
		againVersion, againEntries := s.Snapshot()
		require.Equal(t, version, againVersion)
		require.Equal(t, entries, againEntries)
	}
}

func TestStore_Metrics(t *testing.T) {
	s := NewStore()
	s.Put("k1", json.RawMessage(`1`))
	s.Merge(5, Entries{"k2": json.RawMessage(`2`)})
	s.Merge(1, Entries{"k2": json.RawMessage(`3`)})

	registry := prometheus.NewRegistry()
	s.Metrics().Register(registry)

	families, err := registry.Gather()
	require.NoError(t, err)

	values := make(map[string]float64)
	for _, family := range families {
		for _, m := range family.GetMetric() {
			name := family.GetName()
			for _, label := range m.GetLabel() {
				name += "/" + label.GetValue()
			}
			switch {
			case m.GetGauge() != nil:
				values[name] = m.GetGauge().GetValue()
			case m.GetCounter() != nil:
				values[name] = m.GetCounter().GetValue()
			}
		}
	}

	assert.Equal(t, float64(5), values["dnd_kv_version"])
	assert.Equal(t, float64(2), values["dnd_kv_entries"])
	assert.Equal(t, float64(1), values["dnd_kv_local_writes_total"])
	assert.Equal(t, float64(1), values["dnd_kv_merges_total/accepted"])
	assert.Equal(t, float64(1), values["dnd_kv_merges_total/stale"])
}
