package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/clemenko/dzver/internal/config"
	"github.com/clemenko/dzver/internal/httpclient"
)

// ChannelFetcher resolves the stable release head from a Rancher-style
// update channel API. The source identifier is the channel name, reached at
// update.<channel>.io.
type ChannelFetcher struct {
	client httpclient.Client

	// baseURL overrides the per-channel host when set (tests)
	baseURL string
}

// NewChannelFetcher creates a fetcher for update channel APIs.
func NewChannelFetcher(client httpclient.Client) *ChannelFetcher {
	return &ChannelFetcher{client: client}
}

// FetchVersion returns the latest version of the first channel in the
// response, with surrounding quotes stripped and any "+" build-metadata
// suffix removed. Any transport, status or payload-shape failure degrades
// to UpstreamIssue.
func (f *ChannelFetcher) FetchVersion(ctx context.Context, spec config.SourceSpec) string {
	url := f.channelURL(spec.Identifier)

	body, err := f.client.Get(ctx, url)
	if err != nil {
		slog.Error("Channel API error", "channel", spec.Identifier, "error", err)
		return UpstreamIssue
	}

	if !gjson.ValidBytes(body) {
		slog.Error("Channel API error", "channel", spec.Identifier, "error", "malformed JSON response")
		return UpstreamIssue
	}

	latest := gjson.GetBytes(body, "data.0.latest")
	if !latest.Exists() {
		slog.Error("Channel API error", "channel", spec.Identifier, "error", "missing data[0].latest")
		return UpstreamIssue
	}

	// Strip any quote characters, then truncate at the build-metadata
	// separator to keep only the release head (v1.31.2+rke2r1 -> v1.31.2).
	head, _, _ := strings.Cut(strings.ReplaceAll(latest.String(), `"`, ""), "+")
	return head
}

func (f *ChannelFetcher) channelURL(channel string) string {
	if f.baseURL != "" {
		return f.baseURL + "/v1-release/channels"
	}
	return fmt.Sprintf("https://update.%s.io/v1-release/channels", channel)
}
