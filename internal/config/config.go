// Package config provides configuration loading for the dzver server.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// EnvPrefix is the environment variable prefix for application settings
	EnvPrefix = "DZVER"

	// GitHubTokenEnv is the environment variable holding the optional GitHub
	// bearer token. The name is kept from the original deployment so existing
	// installs keep working.
	GitHubTokenEnv = "GITHUB2_TOKEN"

	// DefaultRefreshInterval is the interval between refresh cycles when the
	// configuration does not specify one.
	DefaultRefreshInterval = 30 * time.Minute
)

// FetcherKind selects the fetch strategy used for a source.
type FetcherKind string

const (
	// KindGitHub fetches the latest release tag of a GitHub repository
	KindGitHub FetcherKind = "github"

	// KindChannel fetches the stable release head of an update channel API
	KindChannel FetcherKind = "channel"

	// KindDockerHub fetches the highest version tag of a Docker Hub repository
	KindDockerHub FetcherKind = "dockerhub"
)

// OptionNameFilter is the SourceSpec option key for the Docker Hub
// server-side tag name filter.
const OptionNameFilter = "name_filter"

// SourceSpec describes one upstream version source. Specs are immutable
// after configuration load; Name is unique across all specs.
type SourceSpec struct {
	// Name is the snapshot key this source publishes under
	Name string `yaml:"name"`

	// Kind selects the fetcher variant
	Kind FetcherKind `yaml:"kind"`

	// Identifier is the source-specific locator: "owner/repo" for github,
	// the channel name for channel, "namespace/repo" for dockerhub
	Identifier string `yaml:"identifier"`

	// Options holds kind-specific settings, resolved at load time
	Options map[string]string `yaml:"options,omitempty"`
}

// NameFilter returns the Docker Hub tag name filter for this source,
// defaulting to "version".
func (s *SourceSpec) NameFilter() string {
	if v, ok := s.Options[OptionNameFilter]; ok && v != "" {
		return v
	}
	return "version"
}

// Config represents the root configuration structure
type Config struct {
	// RefreshInterval is the sleep between refresh cycles, as a Go duration
	// string. Defaults to 30m.
	RefreshInterval string `yaml:"refreshInterval,omitempty"`

	// GitHubToken is an optional bearer token attached to GitHub release
	// requests. Falls back to the GITHUB2_TOKEN environment variable.
	GitHubToken string `yaml:"githubToken,omitempty"`

	// Sources is the ordered source registry. Defaults to the built-in
	// registry when empty.
	Sources []SourceSpec `yaml:"sources,omitempty"`
}

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

// loaderConfig defines the configuration for loading a configuration
type loaderConfig struct {
	path string
}

// WithConfigPath loads configuration from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Resolve symlinks to prevent symlink attacks.
		// Note that this calls filepath.Clean internally.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		if !filepath.IsAbs(realPath) {
			if !filepath.IsLocal(realPath) {
				return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
			}
		}

		cfg.path = realPath
		return nil
	}
}

// NewConfig loads the configuration, applying defaults for anything the
// file (if any) does not set.
func NewConfig(opts ...Option) (*Config, error) {
	lc := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(lc); err != nil {
			return nil, err
		}
	}

	cfg := &Config{}
	if lc.path != "" {
		data, err := os.ReadFile(lc.path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if len(cfg.Sources) == 0 {
		cfg.Sources = DefaultSources()
	}
	if cfg.GitHubToken == "" {
		cfg.GitHubToken = os.Getenv(GitHubTokenEnv)
	}

	return cfg, nil
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.RefreshInterval != "" {
		if _, err := time.ParseDuration(c.RefreshInterval); err != nil {
			return fmt.Errorf("invalid refreshInterval %q: %w", c.RefreshInterval, err)
		}
	}

	seen := make(map[string]bool, len(c.Sources))
	for i, src := range c.Sources {
		if src.Name == "" {
			return fmt.Errorf("source %d: name is required", i)
		}
		if seen[src.Name] {
			return fmt.Errorf("duplicate source name: %s", src.Name)
		}
		seen[src.Name] = true

		if src.Identifier == "" {
			return fmt.Errorf("source %s: identifier is required", src.Name)
		}

		switch src.Kind {
		case KindGitHub, KindChannel, KindDockerHub:
		default:
			return fmt.Errorf("source %s: unknown kind %q", src.Name, src.Kind)
		}
	}

	return nil
}

// GetRefreshInterval returns the configured refresh interval, falling back
// to the default when unset or unparseable.
func (c *Config) GetRefreshInterval() time.Duration {
	if c.RefreshInterval != "" {
		if interval, err := time.ParseDuration(c.RefreshInterval); err == nil {
			return interval
		}
		slog.Warn("Invalid refresh interval, using default",
			"interval", c.RefreshInterval,
			"default", DefaultRefreshInterval)
	}

	return DefaultRefreshInterval
}

// DefaultSources returns the built-in source registry.
func DefaultSources() []SourceSpec {
	return []SourceSpec{
		{Name: "rancher", Kind: KindGitHub, Identifier: "rancher/rancher"},
		{Name: "rke2-stable", Kind: KindChannel, Identifier: "rke2"},
		{Name: "k3s-stable", Kind: KindChannel, Identifier: "k3s"},
		{Name: "longhorn", Kind: KindGitHub, Identifier: "longhorn/longhorn"},
		{Name: "cert-manager", Kind: KindGitHub, Identifier: "cert-manager/cert-manager"},
		{Name: "harvester", Kind: KindGitHub, Identifier: "harvester/harvester"},
		{Name: "hauler", Kind: KindGitHub, Identifier: "hauler-dev/hauler"},
		{Name: "portworx", Kind: KindDockerHub, Identifier: "portworx/px-pure-csi-driver",
			Options: map[string]string{OptionNameFilter: "25"}},
		{Name: "px_oper", Kind: KindDockerHub, Identifier: "portworx/px-operator",
			Options: map[string]string{OptionNameFilter: "25"}},
		{Name: "stork", Kind: KindDockerHub, Identifier: "openstorage/stork",
			Options: map[string]string{OptionNameFilter: "25"}},
		{Name: "pxenterprise", Kind: KindDockerHub, Identifier: "portworx/px-enterprise",
			Options: map[string]string{OptionNameFilter: "3"}},
	}
}
