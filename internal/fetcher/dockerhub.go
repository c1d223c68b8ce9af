package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/clemenko/dzver/internal/config"
	"github.com/clemenko/dzver/internal/httpclient"
	"github.com/clemenko/dzver/internal/versions"
)

const dockerHubBaseURL = "https://hub.docker.com"

// excludedTagSubstrings filters out architecture and pre-release tags. The
// match is a case-insensitive substring check against the whole tag, so a
// tag like "3.2.0-ea" is excluded by "ea".
var excludedTagSubstrings = []string{"ppc", "dev", "beta", "ea"}

// DockerHubFetcher resolves the highest version tag of a Docker Hub
// repository. The source identifier is "namespace/repo"; the name_filter
// option narrows the tag listing server-side (default "version").
type DockerHubFetcher struct {
	client  httpclient.Client
	baseURL string
}

// NewDockerHubFetcher creates a fetcher for Docker Hub tag listings.
func NewDockerHubFetcher(client httpclient.Client) *DockerHubFetcher {
	return &DockerHubFetcher{
		client:  client,
		baseURL: dockerHubBaseURL,
	}
}

// FetchVersion returns the maximum surviving tag under the numeric tag
// ordering, NoTagsFound when the listing is empty, NoValidTagsFound when
// every listed tag is excluded, or ErrFetchingTags on any transport, status
// or parse failure.
func (f *DockerHubFetcher) FetchVersion(ctx context.Context, spec config.SourceSpec) string {
	url := fmt.Sprintf("%s/v2/repositories/%s/tags?name=%s&page_size=100",
		f.baseURL, spec.Identifier, spec.NameFilter())

	body, err := f.client.Get(ctx, url)
	if err != nil {
		slog.Error("Docker Hub API error", "repo", spec.Identifier, "error", err)
		return ErrFetchingTags
	}

	if !gjson.ValidBytes(body) {
		slog.Error("Docker Hub API error", "repo", spec.Identifier, "error", "malformed JSON response")
		return ErrFetchingTags
	}

	results := gjson.GetBytes(body, "results").Array()
	if len(results) == 0 {
		return NoTagsFound
	}

	var validTags []string
	for _, tag := range results {
		name := tag.Get("name").String()
		if name == "" || isExcludedTag(name) {
			continue
		}
		validTags = append(validTags, name)
	}

	if len(validTags) == 0 {
		return NoValidTagsFound
	}
	return versions.Latest(validTags)
}

func isExcludedTag(name string) bool {
	lower := strings.ToLower(name)
	for _, excluded := range excludedTagSubstrings {
		if strings.Contains(lower, excluded) {
			return true
		}
	}
	return false
}
