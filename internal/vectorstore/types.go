// Package vectorstore provides the similarity-search client used to find
// messages resonant with a new submission. It exposes strongly typed raw
// results; interpretation of payload fields belongs to the candidate package.
package vectorstore

// Revision is a single derivative edit of a stored message, carried in the
// point payload. Only its presence matters to ranking; the count of revisions
// feeds the scoring exponent.
type Revision struct {
	UserID    string `json:"user_id,omitempty"`
	Text      string `json:"text,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

// Payload is the metadata stored alongside each vector point.
// All fields are optional at the storage layer; CreatedAt is an RFC 3339
// string because that is how the collection has always serialized it.
type Payload struct {
	Content   string     `json:"content,omitempty"`
	Voice     int        `json:"voice,omitempty"`
	Revisions []Revision `json:"revisions,omitempty"`
	CreatedAt string     `json:"created_at,omitempty"`
}

// ScoredPoint is one similarity-search hit: a stored point plus the cosine
// similarity against the query vector. Score is nominally in [0, 1] but may
// exceed 1 by a small epsilon for exact matches; consumers must tolerate it.
type ScoredPoint struct {
	ID      string
	Score   float64
	Payload Payload
	Vector  []float64
}

// Record is a point fetched by ID rather than by similarity search.
// It carries no similarity score.
type Record struct {
	ID      string
	Payload Payload
}
