// Package reward distributes voice rewards to the authors of candidates that
// proved resonant with a new submission, and commits them to the relational
// store in a single atomic batch.
package reward

import (
	"github.com/choirlabs/resonance/internal/candidate"
)

// Default reward constants. The base guarantees every resonant candidate
// earns something; the multiplier scales the ranking score's influence.
const (
	DefaultBaseReward = 1.0
	DefaultMultiplier = 0.5
)

// Ledger maps an author ID to the total voice reward accumulated across one
// ranking batch. Values are non-negative; rewards for the same author are
// summed before commit so each batch issues at most one write per author.
type Ledger map[string]float64

// Total returns the sum of all rewards in the ledger.
func (l Ledger) Total() float64 {
	var total float64
	for _, amount := range l {
		total += amount
	}
	return total
}

// Calculator computes per-candidate rewards from ranking scores.
type Calculator struct {
	Base       float64
	Multiplier float64
}

// NewCalculator creates a Calculator with the default constants.
func NewCalculator() Calculator {
	return Calculator{
		Base:       DefaultBaseReward,
		Multiplier: DefaultMultiplier,
	}
}

// Reward computes the voice reward for one candidate:
// base + multiplier * rankingScore, floored at 0. A candidate the ranking
// stage never scored contributes a score of 0, earning just the base.
func (c Calculator) Reward(cand candidate.Candidate) float64 {
	score := 0.0
	if cand.RankingScore != nil {
		score = *cand.RankingScore
	}
	reward := c.Base + c.Multiplier*score
	if reward < 0 {
		reward = 0
	}
	return reward
}

// Distribute aggregates rewards per authoring user across a ranked batch.
// authors maps candidate ID to author ID; candidates without a mapping are
// skipped — an unresolvable author forfeits the reward but never fails the
// batch. Summing per author here is a correctness requirement: one write per
// author per batch keeps concurrent batches from racing on read-modify-write
// of the balance.
func (c Calculator) Distribute(ranked []candidate.Candidate, authors map[string]string) Ledger {
	ledger := make(Ledger)
	for _, cand := range ranked {
		authorID, ok := authors[cand.ID]
		if !ok {
			continue
		}
		ledger[authorID] += c.Reward(cand)
	}
	return ledger
}
