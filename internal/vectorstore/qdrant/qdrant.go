// Package qdrant is a minimal REST client for the vector store
// collaborator. Cosine distance; the collection is created on demand.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"newsrag/config"
	"newsrag/internal/resilience"
)

type Client struct {
	url        string
	apiKey     string
	collection string
	client     *http.Client
}

// Point is one chunk with its vector and display payload.
type Point struct {
	ID      string    `json:"id"`
	Vector  []float32 `json:"vector"`
	Payload Payload   `json:"payload"`
}

// Payload is what search returns alongside a score.
type Payload struct {
	Title string `json:"title"`
	URL   string `json:"url"`
	Text  string `json:"text"`
}

func New(cfg config.QdrantConfig) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		client:     &http.Client{Timeout: timeout},
	}
}

// EnsureCollection creates the collection if missing. Qdrant answers 200 on
// an existing collection with the same schema, so this is idempotent.
func (c *Client) EnsureCollection(ctx context.Context, dim int) error {
	if dim <= 0 {
		return fmt.Errorf("invalid vector dimension %d", dim)
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dim,
			"distance": "Cosine",
		},
	}
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/collections/%s", c.collection), body, nil)
}

// Upsert writes points with their vectors.
func (c *Client) Upsert(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	body := map[string]any{"points": points}
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/collections/%s/points?wait=true", c.collection), body, nil)
}

// SearchResult is one scored payload, descending score order from Qdrant.
type SearchResult struct {
	Score   float64 `json:"score"`
	Payload Payload `json:"payload"`
}

// Search returns the k nearest points with payloads.
func (c *Client) Search(ctx context.Context, vector []float32, k int) ([]SearchResult, error) {
	body := map[string]any{
		"vector":       vector,
		"limit":        k,
		"with_payload": true,
	}
	var out struct {
		Result []SearchResult `json:"result"`
	}
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/collections/%s/points/search", c.collection), body, &out); err != nil {
		return nil, err
	}
	return out.Result, nil
}

// DeleteCollection drops the collection and its points.
func (c *Client) DeleteCollection(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/collections/%s", c.collection), nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var bodyReader io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal: %w", err)
		}
		bodyReader = bytes.NewBuffer(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.url+path, bodyReader)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("api-key", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return &resilience.UpstreamError{Msg: "unavailable: " + err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &resilience.UpstreamError{Status: resp.StatusCode, Msg: string(b)}
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode: %w", err)
		}
	}
	return nil
}
