package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// proxyFunc routes provider traffic through the configured proxies. Without
// explicit proxies the standard HTTP_PROXY/HTTPS_PROXY/NO_PROXY variables
// apply.
func proxyFunc(config Config) func(*http.Request) (*url.URL, error) {
	if config.HTTPProxy == "" && config.HTTPSProxy == "" {
		return http.ProxyFromEnvironment
	}

	return func(req *http.Request) (*url.URL, error) {
		if req.URL.Scheme == "https" && config.HTTPSProxy != "" {
			return url.Parse(config.HTTPSProxy)
		}
		if config.HTTPProxy != "" {
			return url.Parse(config.HTTPProxy)
		}
		return http.ProxyFromEnvironment(req)
	}
}

// newHTTPClient builds the client every provider talks through. A zero
// config timeout falls back to fallback.
func newHTTPClient(config Config, fallback time.Duration) *http.Client {
	timeout := time.Duration(config.Timeout) * time.Second
	if timeout <= 0 {
		timeout = fallback
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: &http.Transport{Proxy: proxyFunc(config)},
	}
}

// StatusError is returned when a provider answers with a non-200 status
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.StatusCode, e.Message)
}

// jsonAPI is a provider endpoint that takes and returns JSON documents
type jsonAPI struct {
	client  *http.Client
	baseURL string
	header  http.Header

	// describe extracts the provider's own message from an error body.
	// An empty result falls back to the raw body.
	describe func(body []byte) string
}

func newJSONAPI(config Config, defaultURL string, fallback time.Duration) *jsonAPI {
	return &jsonAPI{
		client:  newHTTPClient(config, fallback),
		baseURL: strings.TrimSuffix(firstNonEmpty(config.BaseURL, defaultURL), "/"),
		header:  make(http.Header),
	}
}

// post sends in as the body of a POST to path and decodes the reply into out
func (a *jsonAPI) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	reply, err := a.do(req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(reply, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

// get fetches path and discards the body
func (a *jsonAPI) get(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	_, err = a.do(req)
	return err
}

func (a *jsonAPI) do(req *http.Request) ([]byte, error) {
	for k, v := range a.header {
		req.Header[k] = v
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := ""
		if a.describe != nil {
			msg = a.describe(body)
		}
		if msg == "" {
			msg = strings.TrimSpace(string(body))
		}
		return nil, &StatusError{StatusCode: resp.StatusCode, Message: msg}
	}
	return body, nil
}
