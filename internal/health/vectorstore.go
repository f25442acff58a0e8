package health

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// VectorStoreChecker implements health checking for the Qdrant vector store.
type VectorStoreChecker struct {
	url    string
	client *http.Client
}

// NewVectorStoreChecker creates a new vector store health checker.
// The url should be the base URL of the Qdrant server (e.g., "http://qdrant:6333").
func NewVectorStoreChecker(url string) *VectorStoreChecker {
	return &VectorStoreChecker{
		url: url,
		client: &http.Client{
			Timeout: 3 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        16,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     30 * time.Second,
			},
		},
	}
}

// HealthCheck performs a health check by hitting Qdrant's readiness endpoint.
func (v *VectorStoreChecker) HealthCheck(ctx context.Context) error {
	if v.url == "" {
		return fmt.Errorf("vector store url not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.url+"/readyz", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach vector store: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("vector store unhealthy: unexpected status code %d", resp.StatusCode)
	}

	return nil
}
