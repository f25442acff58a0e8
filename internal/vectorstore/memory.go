package vectorstore

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"
)

// InMemoryStore is an in-memory implementation of Store for testing.
// Thread-safe via RWMutex. Search ranks by cosine similarity.
type InMemoryStore struct {
	mu     sync.RWMutex
	points map[string]storedPoint
}

type storedPoint struct {
	payload Payload
	vector  []float64
}

// NewInMemoryStore creates a new in-memory vector store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{points: make(map[string]storedPoint)}
}

// Put stores a point with an explicit payload, for seeding tests.
func (s *InMemoryStore) Put(id string, payload Payload, vector []float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	vec := make([]float64, len(vector))
	copy(vec, vector)
	s.points[id] = storedPoint{payload: payload, vector: vec}
}

// Search returns up to limit points ordered by cosine similarity descending.
func (s *InMemoryStore) Search(ctx context.Context, vector []float64, limit int, withVectors bool) ([]ScoredPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	results := make([]ScoredPoint, 0, len(s.points))
	for id, p := range s.points {
		sp := ScoredPoint{
			ID:      id,
			Score:   cosine(vector, p.vector),
			Payload: p.payload,
		}
		if withVectors {
			vec := make([]float64, len(p.vector))
			copy(vec, p.vector)
			sp.Vector = vec
		}
		results = append(results, sp)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		// Tie-break by ID for stable test ordering
		return results[i].ID < results[j].ID
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Retrieve fetches points by ID; unknown IDs are skipped.
func (s *InMemoryStore) Retrieve(ctx context.Context, ids []string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]Record, 0, len(ids))
	for _, id := range ids {
		if p, ok := s.points[id]; ok {
			records = append(records, Record{ID: id, Payload: p.payload})
		}
	}
	return records, nil
}

// Upsert stores a new point with content payload and a current timestamp.
func (s *InMemoryStore) Upsert(ctx context.Context, id, content string, vector []float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	vec := make([]float64, len(vector))
	copy(vec, vector)
	s.points[id] = storedPoint{
		payload: Payload{
			Content:   content,
			CreatedAt: time.Now().UTC().Format(time.RFC3339Nano),
		},
		vector: vec,
	}
	return nil
}

// SetPayload patches the supported payload fields on the given points.
func (s *InMemoryStore) SetPayload(ctx context.Context, payload map[string]any, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		p, ok := s.points[id]
		if !ok {
			continue
		}
		if v, ok := payload["content"].(string); ok {
			p.payload.Content = v
		}
		if v, ok := payload["voice"].(int); ok {
			p.payload.Voice = v
		}
		if v, ok := payload["created_at"].(string); ok {
			p.payload.CreatedAt = v
		}
		s.points[id] = p
	}
	return nil
}

// cosine computes cosine similarity between two vectors.
// Mismatched lengths or zero vectors score 0.
func cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
