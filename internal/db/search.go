package db

// TagFilter is an exact-match filter on a TAG field. Multiple values on the
// same field are OR-ed.
type TagFilter struct {
	Field  string
	Values []string
}

// Facet requests a value-count aggregation over one TAG field.
type Facet struct {
	Field string
	Limit int
}

// Query is the input for a full-text/faceted search.
type Query struct {
	IndexName string
	// Any holds free-text terms matched across all TEXT fields.
	Any []string
	// Tags holds exact-match clauses (uri_id, user, group, tag, type, stacks).
	Tags   []TagFilter
	Limit  int
	Offset int
	Facets []Facet
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
	// Facets maps a facet field to its value counts, when requested.
	Facets map[string][]FacetCount
}

// SearchEntry is a single document hit.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}

// FacetCount is one aggregated value with its occurrence count.
type FacetCount struct {
	Value string
	Count int
}
