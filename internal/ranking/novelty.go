package ranking

import (
	"errors"
	"math"

	"github.com/choirlabs/resonance/internal/candidate"
)

// ErrNotRanked is returned when novelty is requested for a candidate the
// ranking stage has not scored yet.
var ErrNotRanked = errors.New("candidate has no ranking score")

// Novelty derives the secondary novelty metric used for display and export.
// It is never used for ordering.
//
//	novelty = sqrt((ceiling - similarity) * rankingScore)
//
// The ceiling sits fractionally above the maximum possible similarity
// (exact matches come back from the store as 1.000001) so the radicand stays
// positive for exact matches. If the radicand still lands below zero —
// similarity beyond the ceiling, or a negative ranking score — it is clamped
// to 0 rather than producing a NaN.
func Novelty(c candidate.Candidate, tuning *Tuning) (float64, error) {
	if c.RankingScore == nil {
		return 0, ErrNotRanked
	}
	if tuning == nil {
		tuning = DefaultTuning()
	}

	radicand := (tuning.NoveltyCeiling - c.SimilarityScore) * (*c.RankingScore)
	if radicand < 0 {
		radicand = 0
	}
	return math.Sqrt(radicand), nil
}
