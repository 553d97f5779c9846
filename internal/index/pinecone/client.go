// Package pinecone implements the index contract against a remote
// Pinecone-style JSON API.
package pinecone

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/tablechat/tablechat/internal/domain"
)

// Client talks to a hosted vector index over HTTP.
type Client struct {
	apiKey string
	host   string
	http   *http.Client
}

// Config holds index connection settings. APIKey and Host are required;
// config validation enforces that before the process serves traffic.
type Config struct {
	APIKey string
	Host   string
}

// NewClient creates an index client.
func NewClient(cfg Config) *Client {
	return &Client{
		apiKey: cfg.APIKey,
		host:   strings.TrimRight(cfg.Host, "/"),
		http:   http.DefaultClient,
	}
}

type upsertRequest struct {
	Vectors []domain.IndexedVector `json:"vectors"`
}

type queryRequest struct {
	Vector          domain.Vector `json:"vector"`
	TopK            int           `json:"topK"`
	IncludeMetadata bool          `json:"includeMetadata"`
}

type queryResponse struct {
	Matches []struct {
		Score    float64         `json:"score"`
		Metadata domain.Metadata `json:"metadata"`
	} `json:"matches"`
}

// Upsert writes vectors to the index. An empty batch is a no-op.
func (c *Client) Upsert(ctx context.Context, vectors []domain.IndexedVector) error {
	if len(vectors) == 0 {
		return nil
	}
	var resp struct{}
	if err := c.post(ctx, "/vectors/upsert", upsertRequest{Vectors: vectors}, &resp); err != nil {
		return fmt.Errorf("upsert %d vectors: %w", len(vectors), err)
	}
	return nil
}

// Query returns the topK nearest matches, in the index's similarity order.
func (c *Client) Query(ctx context.Context, vector domain.Vector, topK int) ([]domain.Match, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("%w: query vector is required", domain.ErrInvalidInput)
	}
	if topK <= 0 {
		return nil, fmt.Errorf("%w: topK must be positive", domain.ErrInvalidInput)
	}

	var resp queryResponse
	if err := c.post(ctx, "/query", queryRequest{
		Vector:          vector,
		TopK:            topK,
		IncludeMetadata: true,
	}, &resp); err != nil {
		return nil, fmt.Errorf("query top %d: %w", topK, err)
	}

	matches := make([]domain.Match, len(resp.Matches))
	for i, m := range resp.Matches {
		matches[i] = domain.Match{Text: m.Metadata.Text, Score: m.Score}
	}
	return matches, nil
}

// Ping probes the index endpoint.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.host+"/describe_index_stats", nil)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Api-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("ping index: %w", domain.ErrIndexUnavailable)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("ping index: status %d: %w", resp.StatusCode, domain.ErrIndexUnavailable)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Api-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", domain.ErrIndexUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("index API: status %d: %w", resp.StatusCode, domain.ErrIndexUnavailable)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode: %w", domain.ErrIndexUnavailable)
	}
	return nil
}
