package provider

import (
	"fmt"
	"os"
	"time"

	"github.com/felixgeelhaar/jacinta/internal/errors"
)

const defaultTimeout = 120 * time.Second

// Config selects and configures a model backend.
type Config struct {
	Name    string        `yaml:"name"`
	Model   string        `yaml:"model"`
	APIKey  string        `yaml:"api_key"`
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

func (c Config) timeout() time.Duration {
	if c.Timeout <= 0 {
		return defaultTimeout
	}
	return c.Timeout
}

// New builds the client selected by cfg.Name. For openai an empty APIKey
// falls back to OPENAI_API_KEY.
func New(cfg Config) (Client, error) {
	switch cfg.Name {
	case "openai", "":
		if cfg.APIKey == "" {
			cfg.APIKey = os.Getenv("OPENAI_API_KEY")
		}
		return NewOpenAIClient(cfg)
	case "ollama":
		return NewOllamaClient(cfg), nil
	default:
		return nil, errors.New(errors.ErrCodeProviderNotFound, fmt.Sprintf("unknown provider %q", cfg.Name)).
			WithSuggestion("Use one of: openai, ollama")
	}
}

func missingKeyError(provider string) error {
	return errors.New(errors.ErrCodeProviderConfig, fmt.Sprintf("%s provider requires an API key", provider)).
		WithSuggestion("Set provider.api_key in the config file or export OPENAI_API_KEY")
}
