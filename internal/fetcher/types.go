// Package fetcher implements the per-source version fetchers.
//
// Each fetcher resolves the latest version string for one upstream source.
// Fetchers never return errors: every failure is absorbed into one of the
// sentinel values below and logged once with the source identifier, so a
// snapshot always has an entry for every registered source.
package fetcher

import (
	"context"
	"fmt"

	"github.com/clemenko/dzver/internal/config"
	"github.com/clemenko/dzver/internal/httpclient"
)

// Sentinel values published in place of a version when a source degrades.
// They are ordinary data, not errors.
const (
	// NoReleaseFound means the release API answered but carried no tag
	NoReleaseFound = "no release found"

	// ErrFetchingRelease means the release API was unreachable or errored
	ErrFetchingRelease = "error fetching release"

	// UpstreamIssue means the channel API was unreachable or returned a
	// payload that did not have the expected shape
	UpstreamIssue = "upstream server issue"

	// NoValidTagsFound means the tag list was non-empty but every tag was
	// excluded by the filter
	NoValidTagsFound = "no valid tags found"

	// NoTagsFound means the tag list was empty
	NoTagsFound = "no tags found"

	// ErrFetchingTags means the tag API was unreachable or errored
	ErrFetchingTags = "error fetching tags"
)

// IsSentinel reports whether v is one of the degraded-state sentinels.
func IsSentinel(v string) bool {
	switch v {
	case NoReleaseFound, ErrFetchingRelease, UpstreamIssue,
		NoValidTagsFound, NoTagsFound, ErrFetchingTags:
		return true
	}
	return false
}

// Fetcher resolves the latest version string for a single source.
type Fetcher interface {
	// FetchVersion returns the latest version for the source described by
	// spec, or a sentinel value if the source is degraded. It never fails.
	FetchVersion(ctx context.Context, spec config.SourceSpec) string
}

// Factory creates fetchers for the configured source kinds.
type Factory struct {
	github    *GitHubFetcher
	channel   *ChannelFetcher
	dockerhub *DockerHubFetcher
}

// FactoryOption configures a Factory
type FactoryOption func(*Factory)

// WithGitHubBaseURL overrides the GitHub API base URL.
func WithGitHubBaseURL(u string) FactoryOption {
	return func(f *Factory) {
		f.github.baseURL = u
	}
}

// WithChannelBaseURL overrides the per-channel update host.
func WithChannelBaseURL(u string) FactoryOption {
	return func(f *Factory) {
		f.channel.baseURL = u
	}
}

// WithDockerHubBaseURL overrides the Docker Hub base URL.
func WithDockerHubBaseURL(u string) FactoryOption {
	return func(f *Factory) {
		f.dockerhub.baseURL = u
	}
}

// NewFactory creates a fetcher factory. githubClient is used for GitHub
// release requests and may carry a bearer token; client is used for all
// other sources.
func NewFactory(client, githubClient httpclient.Client, opts ...FactoryOption) *Factory {
	f := &Factory{
		github:    NewGitHubFetcher(githubClient),
		channel:   NewChannelFetcher(client),
		dockerhub: NewDockerHubFetcher(client),
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// CreateFetcher returns the fetcher for the given source kind.
func (f *Factory) CreateFetcher(kind config.FetcherKind) (Fetcher, error) {
	switch kind {
	case config.KindGitHub:
		return f.github, nil
	case config.KindChannel:
		return f.channel, nil
	case config.KindDockerHub:
		return f.dockerhub, nil
	default:
		return nil, fmt.Errorf("unsupported source kind: %s", kind)
	}
}
