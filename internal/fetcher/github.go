package fetcher

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tidwall/gjson"

	"github.com/clemenko/dzver/internal/config"
	"github.com/clemenko/dzver/internal/httpclient"
)

const githubAPIBaseURL = "https://api.github.com"

// GitHubFetcher resolves the latest release tag of a GitHub repository.
// The source identifier is "owner/repo".
type GitHubFetcher struct {
	client  httpclient.Client
	baseURL string
}

// NewGitHubFetcher creates a fetcher for GitHub release tags. The client
// may carry a bearer token; without one, requests are unauthenticated and
// subject to stricter upstream rate limits.
func NewGitHubFetcher(client httpclient.Client) *GitHubFetcher {
	return &GitHubFetcher{
		client:  client,
		baseURL: githubAPIBaseURL,
	}
}

// FetchVersion returns the tag name of the latest release, NoReleaseFound
// when the release has no tag, or ErrFetchingRelease on any transport or
// status failure.
func (f *GitHubFetcher) FetchVersion(ctx context.Context, spec config.SourceSpec) string {
	url := fmt.Sprintf("%s/repos/%s/releases/latest", f.baseURL, spec.Identifier)

	body, err := f.client.Get(ctx, url)
	if err != nil {
		slog.Error("GitHub API error", "repo", spec.Identifier, "error", err)
		return ErrFetchingRelease
	}

	tag := gjson.GetBytes(body, "tag_name").String()
	if tag == "" {
		return NoReleaseFound
	}
	return tag
}
