// Package ranking computes the composite resonance score that orders
// candidates for presentation and reward distribution, plus the secondary
// novelty metric derived from it.
//
// The score blends four signals: raw similarity against the query vector,
// the author's accumulated voice, the candidate's revision history, and its
// age. The formula is calibrated, not designed: the tuning constants carry
// the collection's historical behavior and changing them reorders every
// existing result set.
package ranking
