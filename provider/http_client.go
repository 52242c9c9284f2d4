package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultTimeout bounds every outbound provider call.
const DefaultTimeout = 20 * time.Second

// HTTPClientConfig represents configuration for a provider HTTP client.
// BaseURLs is an ordered list of candidate base endpoints: the first is the
// primary, the rest are fallbacks for gateways that expose the same API under
// more than one path prefix.
type HTTPClientConfig struct {
	BaseURLs       []string
	Timeout        time.Duration
	DefaultHeaders map[string]string
}

// HTTPResponse represents a provider HTTP response
type HTTPResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// Successful reports whether the response carries a 2xx status.
func (r *HTTPResponse) Successful() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// JSON decodes the response body into a generic map.
func (r *HTTPResponse) JSON() (map[string]any, error) {
	var data map[string]any
	if err := json.Unmarshal(r.Body, &data); err != nil {
		return nil, fmt.Errorf("decode provider response: %w", err)
	}
	return data, nil
}

// HTTPClient provides standardized HTTP operations for PIX providers
type HTTPClient struct {
	providerName string
	config       *HTTPClientConfig
	client       *http.Client
}

// NewHTTPClient creates a new provider HTTP client
func NewHTTPClient(providerName string, config *HTTPClientConfig) *HTTPClient {
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}

	return &HTTPClient{
		providerName: providerName,
		config:       config,
		client: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// PostJSON sends a JSON POST to endpoint, trying the primary base URL first.
// The alternate base URLs are attempted only when the provider answers
// 404/405 (endpoint moved between API versions). Network failures and any
// other non-2xx response are returned as-is so that permanent rejections are
// never silently retried against a different endpoint.
func (c *HTTPClient) PostJSON(ctx context.Context, endpoint string, payload any, headers map[string]string) (*HTTPResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%s: marshal request body: %w", c.providerName, err)
	}

	var last *HTTPResponse
	for _, base := range c.candidates(endpoint) {
		resp, err := c.do(ctx, http.MethodPost, base, body, headers)
		if err != nil {
			return nil, NewUnavailableError(c.providerName, err)
		}
		last = resp

		if resp.StatusCode != http.StatusNotFound && resp.StatusCode != http.StatusMethodNotAllowed {
			return resp, nil
		}
	}

	return last, nil
}

// GetJSON sends a GET to endpoint against the primary base URL.
func (c *HTTPClient) GetJSON(ctx context.Context, endpoint string, headers map[string]string) (*HTTPResponse, error) {
	urls := c.candidates(endpoint)
	resp, err := c.do(ctx, http.MethodGet, urls[0], nil, headers)
	if err != nil {
		return nil, NewUnavailableError(c.providerName, err)
	}
	return resp, nil
}

func (c *HTTPClient) candidates(endpoint string) []string {
	endpoint = strings.TrimPrefix(endpoint, "/")

	seen := make(map[string]bool, len(c.config.BaseURLs))
	urls := make([]string, 0, len(c.config.BaseURLs))
	for _, base := range c.config.BaseURLs {
		full := strings.TrimSuffix(base, "/") + "/" + endpoint
		if !seen[full] {
			seen[full] = true
			urls = append(urls, full)
		}
	}
	return urls
}

func (c *HTTPClient) do(ctx context.Context, method, fullURL string, body []byte, headers map[string]string) (*HTTPResponse, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	for key, value := range c.config.DefaultHeaders {
		req.Header.Set(key, value)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	return &HTTPResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       respBody,
	}, nil
}
