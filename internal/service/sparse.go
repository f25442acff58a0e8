package service

import (
	"github.com/choirlabs/resonance/internal/candidate"
	"github.com/choirlabs/resonance/internal/ranking"
)

// SparseMessage is the outward-facing form of a candidate. Absent voice and
// revision counts are omitted from the encoding rather than serialized as
// zero.
type SparseMessage struct {
	ID         string  `json:"id"`
	Content    string  `json:"content"`
	Ranking    float64 `json:"reranking"`
	Similarity float64 `json:"similarity"`
	Voice      *int    `json:"voice,omitempty"`
	Revisions  *int    `json:"revisions_count,omitempty"`
	Novelty    float64 `json:"novelty"`
}

// Export converts a candidate to its sparse form. Candidates the ranking
// stage never scored (the dashboard path) export with a ranking of 1, and
// novelty is derived from that default.
func Export(c candidate.Candidate, tuning *ranking.Tuning) SparseMessage {
	if !c.Ranked() {
		c.SetRankingScore(1)
	}

	// Cannot fail: a ranking score is always assigned above.
	novelty, _ := ranking.Novelty(c, tuning)

	return SparseMessage{
		ID:         c.ID,
		Content:    c.Content,
		Ranking:    *c.RankingScore,
		Similarity: c.SimilarityScore,
		Voice:      c.Voice,
		Revisions:  c.Revisions,
		Novelty:    novelty,
	}
}

// ExportAll converts a batch of candidates, preserving order.
func ExportAll(candidates []candidate.Candidate, tuning *ranking.Tuning) []SparseMessage {
	out := make([]SparseMessage, len(candidates))
	for i, c := range candidates {
		out[i] = Export(c, tuning)
	}
	return out
}
