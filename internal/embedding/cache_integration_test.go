//go:build integration

package embedding

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/redis/go-redis/v9"
)

// countingEmbedder records how many times the inner embedder runs.
type countingEmbedder struct {
	vector []float64
	calls  int
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	c.calls++
	return c.vector, nil
}

// failingEmbedder always errors.
type failingEmbedder struct{}

func (failingEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	return nil, errors.New("embedder down")
}

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()

	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set; skipping integration test")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Fatalf("failed to ping redis: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

// TestCachedEmbedder_ReadThrough verifies the second embed of the same text
// is served from the cache.
func TestCachedEmbedder_ReadThrough(t *testing.T) {
	client := setupRedis(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	inner := &countingEmbedder{vector: []float64{0.1, 0.2, 0.3}}

	c := NewCachedEmbedder(inner, client, "cache-test-model", logger)
	ctx := context.Background()
	text := "cache integration text"
	t.Cleanup(func() { client.Del(ctx, c.cacheKey(text)) })

	first, err := c.Embed(ctx, text)
	if err != nil {
		t.Fatalf("first Embed() error = %v", err)
	}
	second, err := c.Embed(ctx, text)
	if err != nil {
		t.Fatalf("second Embed() error = %v", err)
	}

	if inner.calls != 1 {
		t.Errorf("inner embedder ran %d times, want 1", inner.calls)
	}
	if len(first) != len(second) {
		t.Fatalf("vector lengths differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("vector[%d] = %f, want %f", i, second[i], first[i])
		}
	}
}

// TestCachedEmbedder_HitSurvivesInnerFailure verifies a cached vector is
// served even when the inner embedder is down.
func TestCachedEmbedder_HitSurvivesInnerFailure(t *testing.T) {
	client := setupRedis(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	inner := &countingEmbedder{vector: []float64{1, 2}}

	warm := NewCachedEmbedder(inner, client, "cache-test-model", logger)
	ctx := context.Background()
	text := "survives inner failure"
	t.Cleanup(func() { client.Del(ctx, warm.cacheKey(text)) })

	if _, err := warm.Embed(ctx, text); err != nil {
		t.Fatalf("warmup Embed() error = %v", err)
	}

	cold := NewCachedEmbedder(failingEmbedder{}, client, "cache-test-model", logger)
	vector, err := cold.Embed(ctx, text)
	if err != nil {
		t.Fatalf("Embed() error = %v, want cached hit", err)
	}
	if len(vector) != 2 {
		t.Errorf("vector length = %d, want 2", len(vector))
	}
}
