package search

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/jacinta/internal/errors"
)

const resultsPage = `<html><body>
<div class="results">
  <div class="result results_links web-result">
    <h2 class="result__title"><a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fgo.dev%2Fdoc%2Feffective_go&rut=x">Effective <b>Go</b></a></h2>
    <a class="result__snippet" href="#">Tips for writing   clear, idiomatic Go code.</a>
  </div>
  <div class="result">
    <h2><a class="result__a" href="https://google.github.io/styleguide/go/">Go Style Guide</a></h2>
    <div class="result__snippet">Google's Go style guide.</div>
  </div>
  <div class="result">
    <h2><a class="result__a" href="https://example.com/no-snippet">No snippet here</a></h2>
  </div>
  <div class="result">
    <h2><a class="result__a" href="https://example.com/4">Fourth</a></h2>
    <div class="result__snippet">Should be cut off.</div>
  </div>
</div>
</body></html>`

func TestParseResults(t *testing.T) {
	results, err := ParseResults(strings.NewReader(resultsPage), 3)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, Result{
		Title:   "Effective Go",
		URL:     "https://go.dev/doc/effective_go",
		Snippet: "Tips for writing clear, idiomatic Go code.",
	}, results[0])
	assert.Equal(t, "Go Style Guide: Google's Go style guide.", results[1].Text())
	assert.Equal(t, "No snippet here", results[2].Text())
}

func TestParseResultsLimit(t *testing.T) {
	results, err := ParseResults(strings.NewReader(resultsPage), 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.NotEmpty(t, results[0].Snippet)
}

func TestParseResultsEmptyPage(t *testing.T) {
	results, err := ParseResults(strings.NewReader("<html><body>No results.</body></html>"), 3)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestDuckDuckGoSearch(t *testing.T) {
	var query, ua string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query().Get("q")
		ua = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte(resultsPage))
	}))
	defer server.Close()

	client := NewDuckDuckGo(Config{Endpoint: server.URL, UserAgent: "test-agent"})
	results, err := client.Search(context.Background(), "go style", 0)
	require.NoError(t, err)

	assert.Len(t, results, DefaultTopN)
	assert.Equal(t, "go style", query)
	assert.Equal(t, "test-agent", ua)
}

func TestDuckDuckGoSearchHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	_, err := NewDuckDuckGo(Config{Endpoint: server.URL}).Search(context.Background(), "q", 3)
	assert.True(t, errors.HasCode(err, errors.ErrCodeExecSearch))
}
