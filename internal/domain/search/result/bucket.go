package result

import (
	"strings"

	"github.com/renoted/renoted/internal/domain/page"
)

// Bucket type classifications.
const (
	TypeText  = "text"
	TypeAudio = "audio"
	TypeVideo = "video"
)

// DocumentBucket groups the hits that belong to one page.
type DocumentBucket struct {
	Page        page.Page
	Annotations []Hit
	// TypeFilters is the bucket classification (text/audio/video) followed
	// by any stack names the owner has attached to the page.
	TypeFilters []string
	// MaxScore is the highest relevance score among members, never below 0.
	MaxScore float64
}

// BucketByPage groups a flat, already position-sorted hit list into one
// bucket per distinct page. Bucket order is first-seen order of each page in
// the input, not a global re-sort. Hits whose uri_id has no entry in pages
// are dropped.
func BucketByPage(hits []Hit, pages map[string]page.Page, stacks map[string][]string) []DocumentBucket {
	var order []string
	byPage := make(map[string]*DocumentBucket)

	for _, h := range hits {
		uriID := h.Annotation.URIID()
		p, ok := pages[uriID]
		if !ok {
			continue
		}
		b, ok := byPage[uriID]
		if !ok {
			b = &DocumentBucket{Page: p}
			byPage[uriID] = b
			order = append(order, uriID)
		}
		b.Annotations = append(b.Annotations, h)
		if h.Score > b.MaxScore {
			b.MaxScore = h.Score
		}
	}

	out := make([]DocumentBucket, 0, len(order))
	for _, uriID := range order {
		b := byPage[uriID]
		b.TypeFilters = append([]string{classify(b.Annotations)}, stacks[uriID]...)
		out = append(out, *b)
	}
	return out
}

// classify derives a bucket's media type from its first annotation's type
// tag. First-element inspection mirrors the store's historical behavior for
// pages mixing annotation types.
func classify(hits []Hit) string {
	if len(hits) == 0 {
		return TypeText
	}
	kind := hits[0].Annotation.Kind()
	switch {
	case strings.Contains(kind, "audio"):
		return TypeAudio
	case strings.Contains(kind, "video"):
		return TypeVideo
	default:
		return TypeText
	}
}
