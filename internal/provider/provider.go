// Package provider talks to the language-model backends used for plan
// decomposition and code synthesis.
package provider

import (
	"context"
	"encoding/json"
	"time"
)

// Client is implemented by every model backend.
type Client interface {
	// Generate sends a prompt and returns the complete response. When
	// req.Schema is set the backend is asked to return JSON matching it.
	Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error)

	// Health returns nil when the backend is reachable and accepts our credentials.
	Health(ctx context.Context) error

	// Name identifies the backend ("openai", "ollama").
	Name() string

	Close() error
}

// Schema constrains a response to a JSON document.
type Schema struct {
	// Name labels the schema for backends that require one.
	Name string

	// Definition is a JSON Schema object.
	Definition map[string]any
}

// GenerateRequest contains all parameters for generating a response
type GenerateRequest struct {
	Prompt       string
	SystemPrompt string

	// Model overrides the client's default model for this call.
	Model string

	// Temperature controls randomness; zero uses the backend default.
	Temperature float64

	MaxTokens int
	Schema    *Schema
}

// GenerateResponse contains the model's response
type GenerateResponse struct {
	Content      string
	Model        string
	InputTokens  int
	OutputTokens int
	FinishReason string
	Latency      time.Duration
	Provider     string
}

// DecodeJSON unmarshals the response content into v.
func (r *GenerateResponse) DecodeJSON(v any) error {
	return json.Unmarshal([]byte(CleanJSON(r.Content)), v)
}
