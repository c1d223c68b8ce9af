// Package aggregator fans out one fetch per registered source and merges
// the results into a single snapshot.
package aggregator

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/clemenko/dzver/internal/cache"
	"github.com/clemenko/dzver/internal/config"
	"github.com/clemenko/dzver/internal/fetcher"
)

// Aggregator produces version snapshots covering the whole source registry.
type Aggregator struct {
	factory *fetcher.Factory
	sources []config.SourceSpec
}

// New creates an aggregator over the given source registry.
func New(factory *fetcher.Factory, sources []config.SourceSpec) *Aggregator {
	return &Aggregator{
		factory: factory,
		sources: sources,
	}
}

// Aggregate fetches every registered source concurrently and returns a
// snapshot with exactly one entry per source. Individual source failures
// surface as sentinel values in the snapshot, never as an error; a non-nil
// error means the cycle itself could not run and no snapshot was produced.
func (a *Aggregator) Aggregate(ctx context.Context) (cache.Snapshot, error) {
	results := make([]string, len(a.sources))

	g, ctx := errgroup.WithContext(ctx)
	for i, spec := range a.sources {
		g.Go(func() error {
			f, err := a.factory.CreateFetcher(spec.Kind)
			if err != nil {
				return fmt.Errorf("source %s: %w", spec.Name, err)
			}
			results[i] = f.FetchVersion(ctx, spec)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	snapshot := make(cache.Snapshot, len(a.sources))
	for i, spec := range a.sources {
		snapshot[spec.Name] = results[i]
	}
	return snapshot, nil
}

// Sources returns the registered source specs in registry order.
func (a *Aggregator) Sources() []config.SourceSpec {
	return a.sources
}
