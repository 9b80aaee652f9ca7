package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/felixgeelhaar/jacinta/internal/errors"
)

// postJSON sends body to url and decodes a 200 response into out. Non-200
// responses are mapped to coded provider errors.
func postJSON(ctx context.Context, client *http.Client, provider, url string, headers map[string]string, body, out any) error {
	reqBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	httpResp, err := client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errors.Wrap(errors.ErrCodeProviderAPI, fmt.Sprintf("%s request failed", provider), err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	switch {
	case httpResp.StatusCode == http.StatusUnauthorized || httpResp.StatusCode == http.StatusForbidden:
		return errors.NewProviderAuthError(provider)
	case httpResp.StatusCode == http.StatusTooManyRequests:
		return errors.NewProviderRateLimitError(provider, httpResp.Header.Get("Retry-After"))
	case httpResp.StatusCode != http.StatusOK:
		return errors.New(errors.ErrCodeProviderAPI,
			fmt.Sprintf("%s returned HTTP %d: %s", provider, httpResp.StatusCode, truncate(string(respBody), 512)))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return errors.Wrap(errors.ErrCodeProviderAPI, fmt.Sprintf("decode %s response", provider), err)
	}
	return nil
}

func getOK(ctx context.Context, client *http.Client, url string, headers map[string]string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create health check request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
