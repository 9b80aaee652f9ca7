package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaGenerate(t *testing.T) {
	var got ollamaChatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{
			"model": "llama3.2",
			"message": {"role": "assistant", "content": "{\"filename\":\"a.py\",\"code\":\"print(1)\"}"},
			"done": true,
			"done_reason": "stop",
			"prompt_eval_count": 7,
			"eval_count": 9
		}`))
	}))
	defer server.Close()

	client := NewOllamaClient(Config{BaseURL: server.URL})
	resp, err := client.Generate(context.Background(), &GenerateRequest{
		Prompt: "write code",
		Schema: &Schema{Definition: map[string]any{"type": "object"}},
	})
	require.NoError(t, err)

	assert.False(t, got.Stream)
	assert.Equal(t, "object", got.Format["type"])
	assert.Equal(t, 9, resp.OutputTokens)
	assert.Equal(t, "stop", resp.FinishReason)

	var out struct {
		Filename string `json:"filename"`
	}
	require.NoError(t, resp.DecodeJSON(&out))
	assert.Equal(t, "a.py", out.Filename)
}

func TestOllamaHealthFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	assert.Error(t, NewOllamaClient(Config{BaseURL: server.URL}).Health(context.Background()))
}
