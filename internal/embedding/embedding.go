// Package embedding maps submission text to fixed-length vectors via an
// OpenAI-compatible embeddings endpoint, with an optional Redis read-through
// cache in front.
package embedding

import (
	"context"
	"errors"
)

// ErrUnavailable is returned when the embedding service is unreachable,
// misconfigured, or returns no vector. The engine has no fallback and
// surfaces it to the caller; retry policy belongs to the service layer.
var ErrUnavailable = errors.New("embedding service unavailable")

// Embedder converts free text into a numeric vector representation.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}
