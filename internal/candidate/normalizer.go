package candidate

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/choirlabs/resonance/internal/vectorstore"
)

// IDPolicy controls how the normalizer handles raw identifiers that are not
// well-formed UUIDs. The historical behavior is to substitute a freshly
// generated UUID, which silently breaks correlation to the backing record;
// PolicyReject makes that failure explicit instead.
type IDPolicy int

const (
	// PolicySubstitute replaces a malformed identifier with a new random
	// UUID and logs the substitution.
	PolicySubstitute IDPolicy = iota

	// PolicyReject returns ErrMalformedID for candidates whose raw
	// identifier is not a well-formed UUID.
	PolicyReject
)

// ErrMalformedID is returned under PolicyReject when a raw identifier cannot
// be parsed as a UUID.
var ErrMalformedID = errors.New("malformed candidate identifier")

// Normalizer converts raw vector-store results into canonical candidates.
type Normalizer struct {
	policy IDPolicy
	logger *slog.Logger
}

// NewNormalizer creates a Normalizer with the given identifier policy.
func NewNormalizer(policy IDPolicy, logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{
		policy: policy,
		logger: logger,
	}
}

// FromScoredPoint builds a Candidate from a similarity-search hit.
//
// Recovery rules, all logged rather than propagated:
//   - malformed ID: substituted with a fresh UUID (under PolicySubstitute)
//   - missing content: empty string
//   - missing or unparseable created_at: normalization time, which makes the
//     candidate maximally recent for ranking
//   - voice of exactly 0: treated as absent
//   - empty or missing revisions list: treated as absent, never as 0
func (n *Normalizer) FromScoredPoint(point vectorstore.ScoredPoint) (Candidate, error) {
	id, err := n.normalizeID(point.ID)
	if err != nil {
		return Candidate{}, err
	}

	return Candidate{
		ID:              id,
		Content:         point.Payload.Content,
		SimilarityScore: point.Score,
		Voice:           normalizeVoice(point.Payload.Voice),
		Revisions:       normalizeRevisions(point.Payload.Revisions),
		CreatedAt:       n.normalizeCreatedAt(id, point.Payload.CreatedAt),
	}, nil
}

// FromRecord builds a Candidate from a point-lookup record. Records carry no
// similarity score, so a neutral 0 is assigned.
func (n *Normalizer) FromRecord(record vectorstore.Record) (Candidate, error) {
	id, err := n.normalizeID(record.ID)
	if err != nil {
		return Candidate{}, err
	}

	return Candidate{
		ID:              id,
		Content:         record.Payload.Content,
		SimilarityScore: 0,
		Voice:           normalizeVoice(record.Payload.Voice),
		Revisions:       normalizeRevisions(record.Payload.Revisions),
		CreatedAt:       n.normalizeCreatedAt(id, record.Payload.CreatedAt),
	}, nil
}

// FromScoredPoints normalizes a batch of search hits, dropping nothing under
// PolicySubstitute. Under PolicyReject the first malformed ID fails the batch.
func (n *Normalizer) FromScoredPoints(points []vectorstore.ScoredPoint) ([]Candidate, error) {
	candidates := make([]Candidate, 0, len(points))
	for _, p := range points {
		c, err := n.FromScoredPoint(p)
		if err != nil {
			return nil, fmt.Errorf("failed to normalize point %s: %w", p.ID, err)
		}
		candidates = append(candidates, c)
	}
	return candidates, nil
}

// FromRecords normalizes a batch of point-lookup records.
func (n *Normalizer) FromRecords(records []vectorstore.Record) ([]Candidate, error) {
	candidates := make([]Candidate, 0, len(records))
	for _, r := range records {
		c, err := n.FromRecord(r)
		if err != nil {
			return nil, fmt.Errorf("failed to normalize record %s: %w", r.ID, err)
		}
		candidates = append(candidates, c)
	}
	return candidates, nil
}

func (n *Normalizer) normalizeID(raw string) (string, error) {
	if _, err := uuid.Parse(raw); err == nil {
		return raw, nil
	}
	if n.policy == PolicyReject {
		return "", fmt.Errorf("%w: %q", ErrMalformedID, raw)
	}
	substitute := uuid.NewString()
	n.logger.Warn("substituting malformed candidate identifier",
		"raw_id", raw,
		"substitute_id", substitute)
	return substitute, nil
}

// createdAtLayouts covers both zoned timestamps and the zone-less ISO form
// older points in the collection were written with.
var createdAtLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
}

func (n *Normalizer) normalizeCreatedAt(id, raw string) time.Time {
	if raw == "" {
		n.logger.Debug("candidate missing created_at, defaulting to now",
			"candidate_id", id)
		return time.Now()
	}
	for _, layout := range createdAtLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts
		}
	}
	n.logger.Warn("candidate has unparseable created_at, defaulting to now",
		"candidate_id", id,
		"raw_created_at", raw)
	return time.Now()
}

// normalizeVoice merges a raw voice of exactly 0 into "absent". Zero and
// absent are indistinguishable at the storage boundary and stay merged here.
func normalizeVoice(raw int) *int {
	if raw == 0 {
		return nil
	}
	v := raw
	return &v
}

// normalizeRevisions collapses an empty or missing revision list to absent,
// never to a present 0.
func normalizeRevisions(revisions []vectorstore.Revision) *int {
	if len(revisions) == 0 {
		return nil
	}
	count := len(revisions)
	return &count
}
