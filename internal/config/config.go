// Package config loads the jacinta configuration file.
//
// The file is YAML. Environment references such as ${OPENAI_API_KEY} are
// expanded before parsing, and every field has a default so an absent file
// is a valid configuration.
package config

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/jacinta/internal/errors"
	"github.com/felixgeelhaar/jacinta/internal/hooks"
	"github.com/felixgeelhaar/jacinta/internal/provider"
	"github.com/felixgeelhaar/jacinta/internal/runner"
	"github.com/felixgeelhaar/jacinta/internal/search"
	"github.com/felixgeelhaar/jacinta/internal/server"
	"github.com/felixgeelhaar/jacinta/internal/store"
	"github.com/felixgeelhaar/jacinta/internal/telemetry"
	"github.com/felixgeelhaar/jacinta/internal/vcs"
)

// DefaultPath is read when no --config flag is given.
const DefaultPath = ".jacinta/config.yaml"

// Config is the root of the configuration file.
type Config struct {
	Store      store.Config     `yaml:"store"`
	Provider   provider.Config  `yaml:"provider"`
	Planner    ModelConfig      `yaml:"planner"`
	Codegen    ModelConfig      `yaml:"codegen"`
	Search     search.Config    `yaml:"search"`
	Repository vcs.Config       `yaml:"repository"`
	Runner     runner.Config    `yaml:"runner"`
	Server     server.Config    `yaml:"server"`
	Log        LogConfig        `yaml:"log"`
	Telemetry  telemetry.Config `yaml:"telemetry"`
	Hooks      []hooks.Config   `yaml:"hooks"`
}

// ModelConfig overrides the provider model for one use.
type ModelConfig struct {
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// LogConfig selects log verbosity and encoding.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used for absent fields.
func Default() *Config {
	return &Config{
		Store: store.Config{
			Driver: store.DriverFile,
			Path:   store.DefaultFileStorePath,
		},
		Provider: provider.Config{
			Name:    "openai",
			Timeout: 120 * time.Second,
		},
		Planner: ModelConfig{Temperature: 0.2},
		Codegen: ModelConfig{Temperature: 0.2},
		Search: search.Config{
			TopN:    search.DefaultTopN,
			Timeout: 30 * time.Second,
		},
		Repository: vcs.Config{
			LocalPath: ".jacinta/workspace",
			Remote:    "origin",
		},
		Runner: runner.DefaultConfig(),
		Server: server.Config{
			Address:         server.DefaultAddress,
			ShutdownTimeout: server.DefaultShutdownTimeout,
		},
		Log:       LogConfig{Level: "info", Format: "text"},
		Telemetry: telemetry.DefaultConfig(),
	}
}

// Load reads path over the defaults. A missing file is not an error when
// path is DefaultPath, so a bare checkout runs without configuration.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := Parse(data, cfg); err != nil {
			return nil, errors.NewFileUnmarshalError(path, "YAML", err)
		}
	case stderrors.Is(err, fs.ErrNotExist) && path == DefaultPath:
	default:
		return nil, errors.Wrap(errors.ErrCodeFileReadFailed, fmt.Sprintf("failed to read config file: %s", path), err)
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse expands environment references in data and decodes it into cfg.
func Parse(data []byte, cfg *Config) error {
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return err
	}
	return nil
}

func (c *Config) applyEnv() {
	if c.Store.DSN == "" {
		c.Store.DSN = os.Getenv("JACINTA_DSN")
	}
	if c.Provider.APIKey == "" && (c.Provider.Name == "openai" || c.Provider.Name == "") {
		c.Provider.APIKey = os.Getenv("OPENAI_API_KEY")
	}
}

// Validate rejects values no component can run with.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case store.DriverFile, store.DriverMemory:
	case store.DriverPostgres:
		if c.Store.DSN == "" {
			return errors.NewConfigError("store.dsn is required for the postgres driver").
				WithSuggestion("Set store.dsn or export JACINTA_DSN")
		}
	default:
		return errors.NewConfigError(fmt.Sprintf("unknown store driver %q", c.Store.Driver))
	}

	switch c.Provider.Name {
	case "openai", "ollama":
	default:
		return errors.NewConfigError(fmt.Sprintf("unknown provider %q", c.Provider.Name))
	}

	if c.Search.TopN < 1 {
		return errors.NewConfigError("search.top_n must be at least 1")
	}
	if c.Runner.Interval < 0 {
		return errors.NewConfigError("runner.interval must not be negative")
	}
	if c.Runner.MaxAttempts < 0 {
		return errors.NewConfigError("runner.max_attempts must not be negative")
	}
	if c.Runner.LeaseTTL < 0 {
		return errors.NewConfigError("runner.lease_ttl must not be negative")
	}
	if c.Repository.LocalPath == "" {
		return errors.NewConfigError("repository.local_path is required")
	}

	for i, h := range c.Hooks {
		if h.Name == "" {
			return errors.NewConfigError(fmt.Sprintf("hooks[%d].name is required", i))
		}
		if h.Type != "script" && h.Type != "webhook" {
			return errors.NewConfigError(fmt.Sprintf("hook %s: unknown type %q", h.Name, h.Type))
		}
	}
	return nil
}
