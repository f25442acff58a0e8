package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrUnavailable is returned when the vector store cannot be reached or
// rejects a request. Callers surface it as-is; retries belong to the caller.
var ErrUnavailable = errors.New("vector store unavailable")

// Store is the similarity-store contract consumed by the engine.
// Search may return fewer results than limit; an empty result is valid.
type Store interface {
	Search(ctx context.Context, vector []float64, limit int, withVectors bool) ([]ScoredPoint, error)
	Retrieve(ctx context.Context, ids []string) ([]Record, error)
	Upsert(ctx context.Context, id, content string, vector []float64) error
	SetPayload(ctx context.Context, payload map[string]any, ids []string) error
}

// Client is a minimal Qdrant REST client. It assumes the collection already
// exists with cosine distance vectors.
type Client struct {
	url        string
	apiKey     string
	collection string
	client     *http.Client
}

// Config holds the Qdrant connection settings.
type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

// DefaultSearchLimit is the number of candidates fetched per query when the
// caller does not specify a limit.
const DefaultSearchLimit = 200

// pointID decodes a Qdrant point identifier, which may be a UUID string or an
// unsigned integer depending on how the point was written.
type pointID string

func (p *pointID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*p = pointID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*p = pointID(n.String())
	return nil
}

// NewClient creates a Qdrant client for the given collection.
func NewClient(cfg Config) *Client {
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

// Search returns the top-limit points most similar to vector.
func (c *Client) Search(ctx context.Context, vector []float64, limit int, withVectors bool) ([]ScoredPoint, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
		"with_vector":  withVectors,
	}
	var resp struct {
		Result []struct {
			ID      pointID   `json:"id"`
			Score   float64   `json:"score"`
			Payload Payload   `json:"payload"`
			Vector  []float64 `json:"vector"`
		} `json:"result"`
	}
	url := fmt.Sprintf("%s/collections/%s/points/search", c.url, c.collection)
	if err := c.postJSON(ctx, url, req, &resp); err != nil {
		return nil, err
	}
	points := make([]ScoredPoint, 0, len(resp.Result))
	for _, r := range resp.Result {
		points = append(points, ScoredPoint{
			ID:      string(r.ID),
			Score:   r.Score,
			Payload: r.Payload,
			Vector:  r.Vector,
		})
	}
	return points, nil
}

// Retrieve fetches points by ID. Missing IDs are simply absent from the
// result; that is not an error.
func (c *Client) Retrieve(ctx context.Context, ids []string) ([]Record, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	req := map[string]any{
		"ids":          ids,
		"with_payload": true,
	}
	var resp struct {
		Result []struct {
			ID      pointID `json:"id"`
			Payload Payload `json:"payload"`
		} `json:"result"`
	}
	url := fmt.Sprintf("%s/collections/%s/points", c.url, c.collection)
	if err := c.postJSON(ctx, url, req, &resp); err != nil {
		return nil, err
	}
	records := make([]Record, 0, len(resp.Result))
	for _, r := range resp.Result {
		records = append(records, Record{ID: string(r.ID), Payload: r.Payload})
	}
	return records, nil
}

// Upsert stores a new point with its content payload and creation timestamp.
func (c *Client) Upsert(ctx context.Context, id, content string, vector []float64) error {
	body := map[string]any{
		"points": []map[string]any{
			{
				"id":     id,
				"vector": vector,
				"payload": map[string]any{
					"content":    content,
					"created_at": time.Now().UTC().Format(time.RFC3339Nano),
				},
			},
		},
	}
	url := fmt.Sprintf("%s/collections/%s/points?wait=true", c.url, c.collection)
	return c.putJSON(ctx, url, body)
}

// SetPayload patches payload fields on the given points without touching
// their vectors.
func (c *Client) SetPayload(ctx context.Context, payload map[string]any, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	body := map[string]any{
		"payload": payload,
		"points":  ids,
	}
	url := fmt.Sprintf("%s/collections/%s/points/payload?wait=true", c.url, c.collection)
	return c.postJSON(ctx, url, body, nil)
}

func (c *Client) putJSON(ctx context.Context, url string, body any) error {
	return c.do(ctx, http.MethodPut, url, body, nil)
}

func (c *Client) postJSON(ctx context.Context, url string, body any, out any) error {
	return c.do(ctx, http.MethodPost, url, body, out)
}

func (c *Client) do(ctx context.Context, method, url string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("api-key", c.apiKey)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrUnavailable, method, url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%w: %s %s: %s", ErrUnavailable, method, url, resp.Status)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
