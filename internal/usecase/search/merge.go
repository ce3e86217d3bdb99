package search

import "github.com/renoted/renoted/internal/domain/search/result"

// merge unions own and shared hits, own hits first. Duplicate annotation ids
// keep the first occurrence, so merging is idempotent and own results win
// over shared copies that happen to carry the same id.
func merge(own, shared []result.Hit) []result.Hit {
	if len(shared) == 0 {
		return own
	}

	seen := make(map[string]bool, len(own)+len(shared))
	merged := make([]result.Hit, 0, len(own)+len(shared))
	for _, h := range own {
		if seen[h.Annotation.ID()] {
			continue
		}
		seen[h.Annotation.ID()] = true
		merged = append(merged, h)
	}
	for _, h := range shared {
		if seen[h.Annotation.ID()] {
			continue
		}
		seen[h.Annotation.ID()] = true
		merged = append(merged, h)
	}
	return merged
}
