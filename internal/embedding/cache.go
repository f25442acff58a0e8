package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/redis/go-redis/v9"
)

// DefaultCacheTTL bounds how long a cached vector is served. Embeddings for
// a given (model, text) pair are stable, so the TTL mostly caps cache growth.
const DefaultCacheTTL = 24 * time.Hour

// CachedEmbedder wraps an Embedder with a Redis read-through cache. Vectors
// are CBOR-encoded, keyed by model and a content hash. Cache failures degrade
// to the inner embedder and never fail the request.
type CachedEmbedder struct {
	inner  Embedder
	client *redis.Client
	model  string
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedEmbedder creates a caching wrapper around inner. The model name is
// part of the cache key so a model change never serves stale vectors.
func NewCachedEmbedder(inner Embedder, client *redis.Client, model string, logger *slog.Logger) *CachedEmbedder {
	if logger == nil {
		logger = slog.Default()
	}
	if model == "" {
		model = DefaultModel
	}
	return &CachedEmbedder{
		inner:  inner,
		client: client,
		model:  model,
		ttl:    DefaultCacheTTL,
		logger: logger,
	}
}

// Embed returns the cached vector for text when present, otherwise embeds
// through the inner client and stores the result.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	key := c.cacheKey(text)

	if data, err := c.client.Get(ctx, key).Bytes(); err == nil {
		var vector []float64
		if err := cbor.Unmarshal(data, &vector); err == nil {
			return vector, nil
		}
		c.logger.Warn("discarding undecodable cached embedding", "key", key)
	} else if err != redis.Nil {
		c.logger.Warn("embedding cache read failed, falling through",
			"key", key,
			"error", err.Error())
	}

	vector, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	if data, err := cbor.Marshal(vector); err == nil {
		if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.logger.Warn("embedding cache write failed",
				"key", key,
				"error", err.Error())
		}
	}
	return vector, nil
}

func (c *CachedEmbedder) cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return "embedding:" + c.model + ":" + hex.EncodeToString(sum[:])
}
