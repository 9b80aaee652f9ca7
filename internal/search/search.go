// Package search retrieves web results for research jobs.
package search

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/felixgeelhaar/jacinta/internal/errors"
)

// DefaultTopN is how many results a research job keeps.
const DefaultTopN = 3

const (
	defaultEndpoint  = "https://html.duckduckgo.com/html/"
	defaultUserAgent = "Mozilla/5.0 (compatible; jacinta/1.0)"
)

// Result is one search hit.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Text renders the result as a single line.
func (r Result) Text() string {
	switch {
	case r.Title != "" && r.Snippet != "":
		return r.Title + ": " + r.Snippet
	case r.Snippet != "":
		return r.Snippet
	default:
		return r.Title
	}
}

// Searcher returns at most n results for query.
type Searcher interface {
	Search(ctx context.Context, query string, n int) ([]Result, error)
}

// Config configures the HTML search client.
type Config struct {
	Endpoint  string        `yaml:"endpoint"`
	UserAgent string        `yaml:"user_agent"`
	TopN      int           `yaml:"top_n"`
	Timeout   time.Duration `yaml:"timeout"`
}

// DuckDuckGo queries the DuckDuckGo HTML endpoint and scrapes results.
type DuckDuckGo struct {
	endpoint  string
	userAgent string
	client    *http.Client
}

// NewDuckDuckGo creates a client from cfg, filling defaults.
func NewDuckDuckGo(cfg Config) *DuckDuckGo {
	d := &DuckDuckGo{
		endpoint:  cfg.Endpoint,
		userAgent: cfg.UserAgent,
		client:    &http.Client{Timeout: cfg.Timeout},
	}
	if d.endpoint == "" {
		d.endpoint = defaultEndpoint
	}
	if d.userAgent == "" {
		d.userAgent = defaultUserAgent
	}
	if d.client.Timeout <= 0 {
		d.client.Timeout = 30 * time.Second
	}
	return d
}

func (d *DuckDuckGo) Search(ctx context.Context, query string, n int) ([]Result, error) {
	if n <= 0 {
		n = DefaultTopN
	}

	u := d.endpoint + "?" + url.Values{"q": {query}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create search request: %w", err)
	}
	req.Header.Set("User-Agent", d.userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeExecSearch, "search request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, errors.New(errors.ErrCodeExecSearch, fmt.Sprintf("search returned HTTP %d", resp.StatusCode))
	}

	results, err := ParseResults(resp.Body, n)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeExecSearch, "parse search results", err)
	}
	return results, nil
}

// ParseResults extracts up to n results from a DuckDuckGo HTML page. Each
// result is a "result__a" link followed by an optional "result__snippet".
func ParseResults(r io.Reader, n int) ([]Result, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	var results []Result
	done := false
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if done {
			return
		}
		if node.Type == html.ElementNode {
			switch {
			case hasClass(node, "result__a"):
				if len(results) == n {
					done = true
					return
				}
				results = append(results, Result{
					Title: collapse(textOf(node)),
					URL:   resolveURL(attr(node, "href")),
				})
				return
			case hasClass(node, "result__snippet"):
				if len(results) > 0 && results[len(results)-1].Snippet == "" {
					results[len(results)-1].Snippet = collapse(textOf(node))
				}
				return
			}
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return results, nil
}

func hasClass(n *html.Node, class string) bool {
	for _, f := range strings.Fields(attr(n, "class")) {
		if f == class {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func textOf(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// resolveURL unwraps DuckDuckGo redirect links ("//duckduckgo.com/l/?uddg=...").
func resolveURL(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	if u.Scheme == "" && strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	return href
}
