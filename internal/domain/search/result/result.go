// Package result holds the transient values produced by the search read
// path: hydrated hits, positional ordering, and per-document buckets.
package result

import (
	"sort"

	"github.com/renoted/renoted/internal/domain/annotation"
)

// Hit is one hydrated search hit: the annotation plus the relevance score
// the index assigned to it.
type Hit struct {
	Annotation annotation.Annotation
	Score      float64
}

// SortByPosition orders hits ascending by their positional key. The sort is
// stable: equal keys preserve the index-provided relative order.
func SortByPosition(hits []Hit) {
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Annotation.PositionKey() < hits[j].Annotation.PositionKey()
	})
}
