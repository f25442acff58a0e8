// Package dedup collapses candidates that carry equivalent content, keeping
// the earliest-created instance of each.
package dedup

import (
	"sort"
	"strings"

	"github.com/choirlabs/resonance/internal/candidate"
)

// Dedup removes candidates whose normalized content duplicates an
// earlier-created candidate. Content is compared after trimming surrounding
// whitespace and lower-casing; no deeper Unicode normalization is applied.
//
// The input is stably sorted ascending by creation time first, so among
// equal-content candidates the earliest one survives. Survivors keep their
// post-sort relative order. Empty input yields empty output.
func Dedup(candidates []candidate.Candidate) []candidate.Candidate {
	if len(candidates) == 0 {
		return []candidate.Candidate{}
	}

	sorted := make([]candidate.Candidate, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})

	seen := make(map[string]struct{}, len(sorted))
	result := make([]candidate.Candidate, 0, len(sorted))
	for _, c := range sorted {
		key := normalizeContent(c.Content)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, c)
	}
	return result
}

func normalizeContent(content string) string {
	return strings.ToLower(strings.TrimSpace(content))
}
