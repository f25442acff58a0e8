package ranking

import (
	"math"
	"sort"
	"time"

	"github.com/choirlabs/resonance/internal/candidate"
)

// minAgeSeconds is the floor applied to candidate age before division.
// A candidate created in the same instant as now, or placed in the future by
// clock skew, must not divide by zero or flip the score sign.
const minAgeSeconds = 1e-9

// Score computes the composite resonance score for a single candidate at the
// given reference time.
//
// The formula:
//
//	voiceFactor = 1 when voice is absent, voice^voiceExponent otherwise
//	exponent    = revision count when present, 1 otherwise
//	raw         = (similarityScale * similarity * voiceFactor) ^ exponent
//	score       = ln(raw / ageSeconds + 1)
//
// The +1 before the logarithm keeps scores non-negative when raw/age lands
// in (0, 1); without it a raw logarithm would go negative there and invert
// the ordering for stale, low-similarity candidates.
//
// Voice is clamped to >= 0 before exponentiation: fractional powers of a
// negative base are undefined, and upstream is not trusted to never produce
// one.
func Score(c candidate.Candidate, now time.Time, tuning *Tuning) float64 {
	if tuning == nil {
		tuning = DefaultTuning()
	}

	voiceFactor := 1.0
	if c.Voice != nil {
		voice := float64(*c.Voice)
		if voice < 0 {
			voice = 0
		}
		voiceFactor = math.Pow(voice, tuning.VoiceExponent)
	}

	exponent := 1.0
	if c.Revisions != nil {
		exponent = float64(*c.Revisions)
	}

	raw := math.Pow(tuning.SimilarityScale*c.SimilarityScore*voiceFactor, exponent)

	ageSeconds := now.Sub(c.CreatedAt).Seconds()
	if ageSeconds < minAgeSeconds {
		ageSeconds = minAgeSeconds
	}

	return math.Log(raw/ageSeconds + 1)
}

// Rank assigns ranking scores to every candidate and returns them sorted
// descending by score. The input slice is not modified. Tie order among
// exactly equal scores is unspecified.
func Rank(candidates []candidate.Candidate, now time.Time, tuning *Tuning) []candidate.Candidate {
	if len(candidates) == 0 {
		return []candidate.Candidate{}
	}

	ranked := make([]candidate.Candidate, len(candidates))
	copy(ranked, candidates)
	for i := range ranked {
		ranked[i].SetRankingScore(Score(ranked[i], now, tuning))
	}

	sort.Slice(ranked, func(i, j int) bool {
		return *ranked[i].RankingScore > *ranked[j].RankingScore
	})
	return ranked
}
