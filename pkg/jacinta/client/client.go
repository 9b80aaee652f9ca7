// Package client is a Go client for the jacinta task API.
//
// Usage:
//
//	c := client.New("http://localhost:8080")
//	summary, err := c.Create(ctx, client.CreateRequest{Description: "..."})
package client

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/felixgeelhaar/jacinta/internal/errors"
	"github.com/felixgeelhaar/jacinta/internal/task"
)

// Config tunes the underlying HTTP behaviour.
type Config struct {
	// MaxRetries is how many times a GET is retried after a network error or
	// a 5xx response. Mutating requests are never retried.
	MaxRetries int
	RetryDelay time.Duration
	Timeout    time.Duration
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() *Config {
	return &Config{
		MaxRetries: 3,
		RetryDelay: time.Second,
		Timeout:    30 * time.Second,
	}
}

// Client talks to a running `jacinta serve`.
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
	retryDelay time.Duration
}

// New creates a client with the default configuration.
func New(baseURL string) *Client {
	return NewWithConfig(baseURL, nil)
}

// NewWithConfig creates a client; a nil cfg uses DefaultConfig.
func NewWithConfig(baseURL string, cfg *Config) *Client {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
	}
}

// APIError is a non-2xx response. It unwraps to a coded error so callers can
// use errors.Is against the sentinels in internal/errors.
type APIError struct {
	StatusCode  int
	Code        string
	Message     string
	Suggestions []string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("jacinta API error (status %d, code %s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("jacinta API error (status %d): %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	if e.Code == "" {
		return nil
	}
	return &errors.JacintaError{
		Code:        errors.ErrorCode(e.Code),
		Message:     e.Message,
		Suggestions: e.Suggestions,
	}
}

// CreateRequest is the body of POST /tasks.
type CreateRequest struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description"`
	Status      string `json:"status,omitempty"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Error       string   `json:"error"`
	Code        string   `json:"code"`
	Suggestions []string `json:"suggestions"`
}

// List returns task summaries, optionally filtered by status.
func (c *Client) List(ctx context.Context, status string) ([]task.Summary, error) {
	path := "/tasks"
	if status != "" {
		path += "?" + url.Values{"status": {status}}.Encode()
	}
	var out []task.Summary
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Create submits a new pending task.
func (c *Client) Create(ctx context.Context, req CreateRequest) (task.Summary, error) {
	var out task.Summary
	err := c.do(ctx, http.MethodPost, "/tasks", req, &out)
	return out, err
}

// Get returns the full task including its jobs.
func (c *Client) Get(ctx context.Context, id string) (*task.Task, error) {
	var out task.Task
	if err := c.do(ctx, http.MethodGet, "/tasks/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Cancel removes a task and returns the server's confirmation message.
func (c *Client) Cancel(ctx context.Context, id string) (string, error) {
	var out messageResponse
	if err := c.do(ctx, http.MethodDelete, "/tasks/"+url.PathEscape(id), nil, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

// Retry returns a failed or current task to pending.
func (c *Client) Retry(ctx context.Context, id string) (*task.Task, error) {
	var out task.Task
	if err := c.do(ctx, http.MethodPost, "/tasks/"+url.PathEscape(id)+"/retry", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Health checks the server's readiness endpoint.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health/ready", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	attempts := 1
	if method == http.MethodGet && c.maxRetries > 0 {
		attempts += c.maxRetries
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.retryDelay):
			}
		}

		lastErr = c.once(ctx, method, path, payload, out)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		var apiErr *APIError
		if stderrors.As(lastErr, &apiErr) && apiErr.StatusCode < http.StatusInternalServerError {
			return lastErr
		}
	}
	return lastErr
}

func (c *Client) once(ctx context.Context, method, path string, payload []byte, out any) error {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var body errorResponse
	if json.Unmarshal(data, &body) == nil && body.Error != "" {
		apiErr.Message = body.Error
		apiErr.Code = body.Code
		apiErr.Suggestions = body.Suggestions
	}
	return apiErr
}
