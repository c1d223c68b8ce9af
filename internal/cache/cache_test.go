package cache_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clemenko/dzver/internal/cache"
)

func TestStoreEmptyBeforeFirstReplace(t *testing.T) {
	t.Parallel()

	store := cache.NewStore()

	got := store.Get()
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestStoreReplaceAndGet(t *testing.T) {
	t.Parallel()

	store := cache.NewStore()
	store.Replace(cache.Snapshot{"rancher": "v2.9.0", "k3s-stable": "v1.31.2"})

	got := store.Get()
	assert.Equal(t, cache.Snapshot{"rancher": "v2.9.0", "k3s-stable": "v1.31.2"}, got)
}

func TestStoreGetReturnsCopy(t *testing.T) {
	t.Parallel()

	store := cache.NewStore()
	store.Replace(cache.Snapshot{"rancher": "v2.9.0"})

	got := store.Get()
	got["rancher"] = "mutated"
	got["extra"] = "mutated"

	assert.Equal(t, cache.Snapshot{"rancher": "v2.9.0"}, store.Get())
}

func TestStoreReadsAreIdempotentBetweenReplaces(t *testing.T) {
	t.Parallel()

	store := cache.NewStore()
	store.Replace(cache.Snapshot{"rancher": "v2.9.0", "longhorn": "v1.7.1"})

	first := store.Get()
	second := store.Get()
	assert.Equal(t, first, second)
}

// Readers must never observe a half-replaced snapshot: every read under a
// concurrent stream of wholesale replacements is uniform, all entries from
// one generation.
func TestStoreReplaceIsAtomic(t *testing.T) {
	t.Parallel()

	const keys = 8
	generation := func(value string) cache.Snapshot {
		snap := make(cache.Snapshot, keys)
		for _, k := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
			snap[k] = value
		}
		return snap
	}

	store := cache.NewStore()
	store.Replace(generation("old"))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			if i%2 == 0 {
				store.Replace(generation("new"))
			} else {
				store.Replace(generation("old"))
			}
		}
	}()

	var wg sync.WaitGroup
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				snap := store.Get()
				require.Len(t, snap, keys)
				first := snap["a"]
				for k, v := range snap {
					require.Equal(t, first, v, "torn snapshot at key %s", k)
				}
			}
		}()
	}

	<-done
	wg.Wait()
}
