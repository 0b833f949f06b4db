package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	DefaultBranch      = "main"
	DefaultDestination = ".github"
	DefaultMaxDepth    = 3
	DefaultListenAddr  = ":8080"
)

// DefaultExtensions is the allow-list used when files.extensions is empty.
var DefaultExtensions = []string{".md", ".json", ".yml", ".yaml", ".prompt"}

// Config represents the complete assetsync configuration
type Config struct {
	Workspace    string            `yaml:"workspace"`
	GitHub       GitHubConfig      `yaml:"github"`
	Repositories []RawRepository   `yaml:"repositories"`
	Files        FilesConfig       `yaml:"files"`
	Destinations DestinationConfig `yaml:"destinations"`
	Sync         SyncConfig        `yaml:"sync"`
	Serve        ServeConfig       `yaml:"serve"`

	repos []Repository
}

// GitHubConfig configures API access
type GitHubConfig struct {
	EnterpriseURL string `yaml:"enterprise_url"`
	Token         string `yaml:"token"`
	TokenFile     string `yaml:"token_file"`
}

// FilesConfig controls which remote files become assets
type FilesConfig struct {
	Extensions []string `yaml:"extensions"`
	Exclude    []string `yaml:"exclude"`
	MaxDepth   *int     `yaml:"max_depth"`
}

// DestinationConfig maps remote paths to local destinations
type DestinationConfig struct {
	Default string            `yaml:"default"`
	Rules   []DestinationRule `yaml:"rules"`
}

// DestinationRule overrides the default destination for remote paths matching Pattern.
type DestinationRule struct {
	Pattern     string `yaml:"pattern"`
	Destination string `yaml:"destination"`
}

// SyncConfig configures the orchestrator
type SyncConfig struct {
	Concurrency    int   `yaml:"concurrency"`
	CheckOnStartup *bool `yaml:"check_on_startup"`
}

// ServeConfig configures the control API
type ServeConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	path = os.ExpandEnv(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes a YAML document, then expands environment variables, applies
// defaults and validates.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.expandEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func (c *Config) expandEnv() {
	c.Workspace = os.ExpandEnv(c.Workspace)
	c.GitHub.EnterpriseURL = os.ExpandEnv(c.GitHub.EnterpriseURL)
	c.GitHub.Token = os.ExpandEnv(c.GitHub.Token)
	c.GitHub.TokenFile = os.ExpandEnv(c.GitHub.TokenFile)
	c.Destinations.Default = os.ExpandEnv(c.Destinations.Default)
	c.Serve.ListenAddr = os.ExpandEnv(c.Serve.ListenAddr)
	c.Serve.Username = os.ExpandEnv(c.Serve.Username)
	c.Serve.Password = os.ExpandEnv(c.Serve.Password)
}

// applyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) applyDefaults() {
	if c.Workspace == "" {
		c.Workspace = "."
	}
	if len(c.Files.Extensions) == 0 {
		c.Files.Extensions = append([]string(nil), DefaultExtensions...)
	}
	if c.Files.MaxDepth == nil {
		d := DefaultMaxDepth
		c.Files.MaxDepth = &d
	}
	if strings.TrimSpace(c.Destinations.Default) == "" {
		c.Destinations.Default = DefaultDestination
	}
	if c.Sync.CheckOnStartup == nil {
		on := true
		c.Sync.CheckOnStartup = &on
	}
	if c.Serve.ListenAddr == "" {
		c.Serve.ListenAddr = DefaultListenAddr
	}

	c.repos = c.repos[:0]
	for i, raw := range c.Repositories {
		repo, err := raw.Normalize()
		if err != nil {
			// invalid entries are skipped, not fatal
			slog.Warn("skipping repository entry", "index", i, "error", err)
			continue
		}
		c.repos = append(c.repos, repo)
	}
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if *c.Files.MaxDepth < 0 {
		return errors.New("files.max_depth must not be negative")
	}
	if c.Sync.Concurrency < 0 {
		return errors.New("sync.concurrency must not be negative")
	}
	for i, r := range c.Destinations.Rules {
		if r.Pattern == "" || r.Destination == "" {
			return fmt.Errorf("destinations.rules[%d]: pattern and destination are required", i)
		}
	}
	if (c.Serve.Username == "") != (c.Serve.Password == "") {
		return errors.New("serve.username and serve.password must be set together")
	}
	return nil
}

// Repos returns the normalized repositories, in configuration order.
func (c *Config) Repos() []Repository {
	return append([]Repository(nil), c.repos...)
}

// SetRepos replaces the configured repositories with already normalized ones.
func (c *Config) SetRepos(repos []Repository) {
	c.repos = append([]Repository(nil), repos...)
}

// MaxDepth returns the traversal depth limit.
func (c *Config) MaxDepth() int {
	if c.Files.MaxDepth == nil {
		return DefaultMaxDepth
	}
	return *c.Files.MaxDepth
}

// CheckOnStartup reports whether serve runs a silent sync when it starts.
func (c *Config) CheckOnStartup() bool {
	return c.Sync.CheckOnStartup == nil || *c.Sync.CheckOnStartup
}

// APIBaseURL is the REST endpoint, empty for github.com.
func (c *Config) APIBaseURL() string {
	base := strings.TrimRight(strings.TrimSpace(c.GitHub.EnterpriseURL), "/")
	if base == "" {
		return ""
	}
	return base + "/api/v3/"
}

// HTMLBaseURL is the web UI base used for links to remote files.
func (c *Config) HTMLBaseURL() string {
	base := strings.TrimRight(strings.TrimSpace(c.GitHub.EnterpriseURL), "/")
	if base == "" {
		return "https://github.com"
	}
	return base
}
