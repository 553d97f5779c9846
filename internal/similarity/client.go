// Package similarity wraps the remote sentence-similarity scoring API.
// Given one reference sentence and N candidates it returns N scores in
// [-1, 1]; this system derives pseudo-embeddings from those scores.
package similarity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// DefaultURL points at the hosted sentence-similarity pipeline.
const DefaultURL = "https://router.huggingface.co/hf-inference/models/" +
	"sentence-transformers/all-MiniLM-L6-v2/pipeline/sentence-similarity"

// ErrNoAPIKey signals that the similarity service is not configured.
// Callers treat this like any other remote failure and degrade.
var ErrNoAPIKey = errors.New("similarity API key not configured")

// Client calls the similarity-scoring service.
type Client struct {
	apiKey string
	url    string
	http   *http.Client
}

// Config holds similarity client settings.
type Config struct {
	APIKey string
	URL    string
}

// NewClient creates a similarity client. An empty URL falls back to
// DefaultURL; an empty API key leaves the client in permanent-failure mode
// so the embedding generator's fallback path takes over.
func NewClient(cfg Config) *Client {
	url := cfg.URL
	if url == "" {
		url = DefaultURL
	}
	return &Client{apiKey: cfg.APIKey, url: url, http: http.DefaultClient}
}

type scoreRequest struct {
	Inputs scoreInputs `json:"inputs"`
}

type scoreInputs struct {
	SourceSentence string   `json:"source_sentence"`
	Sentences      []string `json:"sentences"`
}

// Scores returns one similarity score per sentence, positionally aligned
// with the input, measured against the reference sentence.
func (c *Client) Scores(ctx context.Context, reference string, sentences []string) ([]float64, error) {
	if c.apiKey == "" {
		return nil, ErrNoAPIKey
	}

	body, err := json.Marshal(scoreRequest{Inputs: scoreInputs{
		SourceSentence: reference,
		Sentences:      sentences,
	}})
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("similarity API: status %d", resp.StatusCode)
	}

	var scores []float64
	if err := json.NewDecoder(resp.Body).Decode(&scores); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if len(scores) != len(sentences) {
		return nil, fmt.Errorf("similarity API: got %d scores for %d sentences", len(scores), len(sentences))
	}
	return scores, nil
}
