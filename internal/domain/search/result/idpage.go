package result

// FacetCount is one aggregated facet value with its occurrence count.
type FacetCount struct {
	Value string
	Count int
}

// IDPage is the raw output of one index query: ranked document ids with
// their relevance scores, before any hydration from the system of record.
type IDPage struct {
	// IDs in index rank order, best first.
	IDs []string
	// Scores maps each returned id to its relevance score.
	Scores map[string]float64
	// Total is the full match count, ignoring pagination.
	Total int
	// TagFacets holds the most frequent tags among all matches.
	TagFacets []FacetCount
	// UserFacets holds the most frequent authors, populated only for
	// single-group queries.
	UserFacets []FacetCount
}
