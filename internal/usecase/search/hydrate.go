package search

import (
	domann "github.com/renoted/renoted/internal/domain/annotation"
	"github.com/renoted/renoted/internal/domain/search/result"
)

// hydrate turns a ranked id list into hits carrying full annotations,
// preserving index rank order. Ids the store no longer knows are dropped
// silently: the index mirror lags the system of record during propagation
// and a stale hit is not an error.
func hydrate(page result.IDPage, loaded map[string]domann.Annotation) []result.Hit {
	if len(page.IDs) == 0 {
		return nil
	}

	hits := make([]result.Hit, 0, len(page.IDs))
	for _, id := range page.IDs {
		a, ok := loaded[id]
		if !ok {
			continue
		}
		hits = append(hits, result.Hit{Annotation: a, Score: page.Scores[id]})
	}
	return hits
}
