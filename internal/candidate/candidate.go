// Package candidate defines the canonical content item considered for
// resonance ranking, and the normalizer that builds candidates from raw
// vector-store results.
package candidate

import (
	"time"
)

// Candidate is a content item under ranking consideration.
//
// Voice, Revisions and RankingScore are tagged optionals: nil means the value
// is unknown, which is semantically distinct from zero. Voice nil acts as a
// neutral multiplier during ranking; Revisions nil means an exponent of 1.
// RankingScore stays nil until the ranking stage assigns it.
type Candidate struct {
	ID              string    `json:"id"`
	Content         string    `json:"content"`
	SimilarityScore float64   `json:"similarity_score"`
	Voice           *int      `json:"voice,omitempty"`
	Revisions       *int      `json:"revisions_count,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	RankingScore    *float64  `json:"ranking_score,omitempty"`
}

// Ranked reports whether the ranking stage has assigned a score.
func (c *Candidate) Ranked() bool {
	return c.RankingScore != nil
}

// SetRankingScore assigns the composite relevance score.
func (c *Candidate) SetRankingScore(score float64) {
	c.RankingScore = &score
}
