package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"sort"
	"strings"
)

// ScriptHook runs a script with the event exposed as HOOK_* environment
// variables and the full event JSON on stdin.
type ScriptHook struct {
	name       string
	eventTypes []EventType
	scriptPath string
	args       []string
	shell      string
}

// NewScriptHook creates a script hook. config.script is required.
func NewScriptHook(cfg *Config) (Hook, error) {
	scriptPath, ok := cfg.Config["script"].(string)
	if !ok || scriptPath == "" {
		return nil, fmt.Errorf("script path required")
	}

	hook := &ScriptHook{
		name:       cfg.Name,
		eventTypes: cfg.Events,
		scriptPath: scriptPath,
		shell:      "/bin/sh",
	}

	if args, ok := cfg.Config["args"].([]any); ok {
		for _, arg := range args {
			if s, ok := arg.(string); ok {
				hook.args = append(hook.args, s)
			}
		}
	}
	if shell, ok := cfg.Config["shell"].(string); ok && shell != "" {
		hook.shell = shell
	}

	return hook, nil
}

func (h *ScriptHook) Name() string            { return h.name }
func (h *ScriptHook) EventTypes() []EventType { return h.eventTypes }

func (h *ScriptHook) Execute(ctx context.Context, event *Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	env := append(os.Environ(),
		"HOOK_EVENT_TYPE="+string(event.Type),
		"HOOK_TASK_ID="+event.TaskID,
	)
	keys := make([]string, 0, len(event.Data))
	for k := range event.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, fmt.Sprintf("HOOK_%s=%v", strings.ToUpper(k), event.Data[k]))
	}

	cmd := exec.CommandContext(ctx, h.shell, append([]string{h.scriptPath}, h.args...)...)
	cmd.Env = env
	cmd.Stdin = bytes.NewReader(payload)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("script failed: %w (stderr: %s)", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// WebhookHook POSTs the event as JSON
type WebhookHook struct {
	name       string
	eventTypes []EventType
	url        string
	headers    map[string]string
	client     *http.Client
}

// NewWebhookHook creates a webhook hook. config.url is required.
func NewWebhookHook(cfg *Config) (Hook, error) {
	url, ok := cfg.Config["url"].(string)
	if !ok || url == "" {
		return nil, fmt.Errorf("webhook URL required")
	}

	hook := &WebhookHook{
		name:       cfg.Name,
		eventTypes: cfg.Events,
		url:        url,
		headers:    make(map[string]string),
		client:     &http.Client{},
	}

	if headers, ok := cfg.Config["headers"].(map[string]any); ok {
		for k, v := range headers {
			if s, ok := v.(string); ok {
				hook.headers[k] = os.ExpandEnv(s)
			}
		}
	}

	return hook, nil
}

func (h *WebhookHook) Name() string            { return h.name }
func (h *WebhookHook) EventTypes() []EventType { return h.eventTypes }

func (h *WebhookHook) Execute(ctx context.Context, event *Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range h.headers {
		req.Header.Set(k, v)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
