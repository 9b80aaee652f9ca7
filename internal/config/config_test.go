package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/jacinta/internal/errors"
	"github.com/felixgeelhaar/jacinta/internal/hooks"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "file", cfg.Store.Driver)
	assert.Equal(t, 3, cfg.Search.TopN)
	assert.Equal(t, 60*time.Second, cfg.Runner.Interval)
	assert.Zero(t, cfg.Runner.MaxAttempts)
}

func TestLoad(t *testing.T) {
	t.Setenv("JACINTA_TEST_HOOK_URL", "https://hooks.example.com/x")
	t.Setenv("JACINTA_DSN", "postgres://localhost/jacinta")

	path := writeConfig(t, `
store:
  driver: postgres
provider:
  name: ollama
  model: llama3.2
search:
  top_n: 5
runner:
  interval: 30s
  max_attempts: 3
  resume_current: true
repository:
  url: https://github.com/acme/scratch.git
  branch: main
log:
  level: debug
  format: json
hooks:
  - name: notify
    type: webhook
    enabled: true
    events: [task_completed, task_failed]
    config:
      url: ${JACINTA_TEST_HOOK_URL}
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/jacinta", cfg.Store.DSN)
	assert.Equal(t, "ollama", cfg.Provider.Name)
	assert.Equal(t, 5, cfg.Search.TopN)
	assert.Equal(t, 30*time.Second, cfg.Runner.Interval)
	assert.Equal(t, 3, cfg.Runner.MaxAttempts)
	assert.True(t, cfg.Runner.ResumeCurrent)
	assert.Equal(t, 15*time.Minute, cfg.Runner.LeaseTTL, "unset fields keep defaults")
	assert.Equal(t, ".jacinta/workspace", cfg.Repository.LocalPath)
	assert.Equal(t, "main", cfg.Repository.Branch)
	assert.Equal(t, "debug", cfg.Log.Level)

	require.Len(t, cfg.Hooks, 1)
	assert.Equal(t, []hooks.EventType{hooks.EventTaskCompleted, hooks.EventTaskFailed}, cfg.Hooks[0].Events)
	assert.Equal(t, "https://hooks.example.com/x", cfg.Hooks[0].Config["url"])
}

func TestLoadMissingDefaultFileUsesDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Store, cfg.Store)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeFileReadFailed))
}

func TestLoadBadYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "store: [unclosed"))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeFileUnmarshal))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown driver", func(c *Config) { c.Store.Driver = "mysql" }},
		{"postgres without dsn", func(c *Config) { c.Store.Driver = "postgres"; c.Store.DSN = "" }},
		{"unknown provider", func(c *Config) { c.Provider.Name = "bard" }},
		{"zero top_n", func(c *Config) { c.Search.TopN = 0 }},
		{"negative interval", func(c *Config) { c.Runner.Interval = -time.Second }},
		{"negative attempts", func(c *Config) { c.Runner.MaxAttempts = -1 }},
		{"empty local path", func(c *Config) { c.Repository.LocalPath = "" }},
		{"hook without name", func(c *Config) { c.Hooks = []hooks.Config{{Type: "script"}} }},
		{"hook with unknown type", func(c *Config) { c.Hooks = []hooks.Config{{Name: "x", Type: "email"}} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, errors.ErrCodeConfigInvalid))
		})
	}
}
