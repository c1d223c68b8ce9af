package refresher_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clemenko/dzver/internal/aggregator"
	"github.com/clemenko/dzver/internal/cache"
	"github.com/clemenko/dzver/internal/config"
	"github.com/clemenko/dzver/internal/fetcher"
	"github.com/clemenko/dzver/internal/httpclient"
	"github.com/clemenko/dzver/internal/refresher"
)

// releaseServer serves GitHub-style release responses whose tag is derived
// from the current generation counter, with an optional per-request delay.
type releaseServer struct {
	generation atomic.Int64
	delay      time.Duration
}

func (s *releaseServer) start(t *testing.T) *fetcher.Factory {
	t.Helper()

	r := chi.NewRouter()
	r.Get("/repos/{owner}/{repo}/releases/latest", func(w http.ResponseWriter, _ *http.Request) {
		if s.delay > 0 {
			time.Sleep(s.delay)
		}
		_, _ = fmt.Fprintf(w, `{"tag_name": "v%d.0.0"}`, s.generation.Load())
	})

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)

	client := httpclient.NewDefaultClient(0)
	return fetcher.NewFactory(client, client, fetcher.WithGitHubBaseURL(server.URL))
}

func githubSources(names ...string) []config.SourceSpec {
	specs := make([]config.SourceSpec, 0, len(names))
	for _, name := range names {
		specs = append(specs, config.SourceSpec{
			Name:       name,
			Kind:       config.KindGitHub,
			Identifier: name + "/" + name,
		})
	}
	return specs
}

func TestRefreshOncePublishesFullSnapshot(t *testing.T) {
	t.Parallel()

	upstream := &releaseServer{}
	upstream.generation.Store(1)

	store := cache.NewStore()
	agg := aggregator.New(upstream.start(t), githubSources("rancher", "longhorn", "harvester"))
	ref := refresher.New(agg, store, time.Hour)

	require.NoError(t, ref.RefreshOnce(context.Background()))

	snapshot := store.Get()
	require.Len(t, snapshot, 3)
	for name, version := range snapshot {
		assert.Equal(t, "v1.0.0", version, name)
	}
}

func TestRefreshOnceLeavesCacheOnCycleFailure(t *testing.T) {
	t.Parallel()

	upstream := &releaseServer{}
	upstream.generation.Store(1)
	factory := upstream.start(t)

	store := cache.NewStore()
	store.Replace(cache.Snapshot{"rancher": "v0.9.0"})

	// An unregistered kind makes the cycle itself fail
	agg := aggregator.New(factory, []config.SourceSpec{
		{Name: "rancher", Kind: "svn", Identifier: "rancher/rancher"},
	})
	ref := refresher.New(agg, store, time.Hour)

	err := ref.RefreshOnce(context.Background())
	require.Error(t, err)
	assert.Equal(t, cache.Snapshot{"rancher": "v0.9.0"}, store.Get())
}

func TestStartRefreshesImmediatelyAndOnInterval(t *testing.T) {
	t.Parallel()

	upstream := &releaseServer{}
	upstream.generation.Store(1)

	store := cache.NewStore()
	agg := aggregator.New(upstream.start(t), githubSources("rancher"))
	ref := refresher.New(agg, store, 25*time.Millisecond)

	go func() {
		_ = ref.Start(context.Background())
	}()
	t.Cleanup(func() { _ = ref.Stop() })

	// First cycle runs immediately on start
	require.Eventually(t, func() bool {
		return store.Get()["rancher"] == "v1.0.0"
	}, 2*time.Second, 5*time.Millisecond)

	// Reads between cycles are idempotent
	first := store.Get()
	assert.Equal(t, first, store.Get())

	// A later cycle picks up the new upstream state
	upstream.generation.Store(2)
	require.Eventually(t, func() bool {
		return store.Get()["rancher"] == "v2.0.0"
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, ref.Stop())
}

// With a slow fetcher mid-cycle, readers must see either the complete old
// snapshot or the complete new one, never a mixture of generations.
func TestRefreshIsAtomicUnderSlowFetcher(t *testing.T) {
	t.Parallel()

	upstream := &releaseServer{delay: 3 * time.Millisecond}
	upstream.generation.Store(1)

	store := cache.NewStore()
	sources := githubSources("rancher", "longhorn", "harvester", "hauler")
	agg := aggregator.New(upstream.start(t), sources)
	ref := refresher.New(agg, store, time.Hour)

	require.NoError(t, ref.RefreshOnce(context.Background()))
	upstream.generation.Store(2)

	refreshDone := make(chan struct{})
	go func() {
		defer close(refreshDone)
		_ = ref.RefreshOnce(context.Background())
	}()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-refreshDone:
					return
				default:
				}
				snapshot := store.Get()
				require.Len(t, snapshot, len(sources))
				first := snapshot[sources[0].Name]
				for name, version := range snapshot {
					require.Equal(t, first, version, "mixed-generation snapshot at %s", name)
				}
			}
		}()
	}

	<-refreshDone
	wg.Wait()

	assert.Equal(t, "v2.0.0", store.Get()["rancher"])
}
