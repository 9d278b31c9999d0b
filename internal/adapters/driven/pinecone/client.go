// Package pinecone provides vector store and reranking adapters backed
// by Pinecone's serverless data plane with integrated embedding: chunk
// text is shipped as-is and the index's hosted model produces the
// vectors.
package pinecone

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/custodia-labs/drivesearch-cli/internal/core/domain"
)

// Default configuration values.
const (
	DefaultTimeout    = 60 * time.Second
	DefaultAPIVersion = "2025-01"
)

// Config holds connection settings for one Pinecone index.
type Config struct {
	// APIKey is the Pinecone API key (required).
	APIKey string

	// Host is the index's data-plane host, e.g.
	// https://my-index-abc123.svc.aped-4627-b74a.pinecone.io (required).
	Host string

	// Namespace scopes all operations (default: "__default__").
	Namespace string

	// IndexName is used for stats reporting only.
	IndexName string

	// Timeout is the per-request timeout (default: 60s).
	Timeout time.Duration
}

// Client is a thin data-plane HTTP client shared by the store and
// rerank adapters.
type Client struct {
	http      *http.Client
	host      string
	apiKey    string
	namespace string
}

// NewClient creates a data-plane client for one index host.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("pinecone: API key is required")
	}
	if cfg.Host == "" {
		return nil, fmt.Errorf("pinecone: index host is required")
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "__default__"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Client{
		http:      &http.Client{Timeout: cfg.Timeout},
		host:      cfg.Host,
		apiKey:    cfg.APIKey,
		namespace: cfg.Namespace,
	}, nil
}

// postJSON sends a JSON request and decodes the JSON response into out
// (out may be nil for fire-and-forget calls). Non-2xx statuses are
// mapped onto the transient/permanent taxonomy.
func (c *Client) postJSON(ctx context.Context, path string, payload, out any) error {
	return c.send(ctx, http.MethodPost, path, payload, out)
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	if len(query) > 0 {
		path = path + "?" + query.Encode()
	}
	return c.send(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) send(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader = http.NoBody
	if payload != nil {
		jsonBody, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.host+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Api-Key", c.apiKey)
	req.Header.Set("X-Pinecone-Api-Version", DefaultAPIVersion)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("pinecone %s (status %d): %s: %w",
			path, resp.StatusCode, errorMessage(respBody), domain.ClassifyStatus(resp.StatusCode))
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// errorMessage extracts the API's error message, falling back to the
// raw body.
func errorMessage(body []byte) string {
	var apiErr struct {
		Message string `json:"message"`
		Error   struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &apiErr); err == nil {
		if apiErr.Message != "" {
			return apiErr.Message
		}
		if apiErr.Error.Message != "" {
			return apiErr.Error.Message
		}
	}
	if len(body) > 200 {
		body = body[:200]
	}
	return string(body)
}
