// Package search orchestrates the read path: index query, hydration,
// positional ordering, shared-result union, and per-document bucketing.
package search

import (
	"context"
	"errors"
	"fmt"

	"github.com/renoted/renoted/internal/domain"
	dompage "github.com/renoted/renoted/internal/domain/page"
	"github.com/renoted/renoted/internal/domain/search/query"
	"github.com/renoted/renoted/internal/domain/search/result"
)

// Response is the assembled output of one search: buckets in first-seen
// page order, plus facet aggregations.
type Response struct {
	Total      int
	Buckets    []result.DocumentBucket
	TagFacets  []result.FacetCount
	UserFacets []result.FacetCount
}

// Service handles annotation search.
type Service struct {
	index  Index
	anns   AnnotationReader
	pages  PageReader
	shares SharedReader
	stacks StackReader
}

// New creates a search service.
func New(index Index, anns AnnotationReader, pages PageReader, shares SharedReader, stacks StackReader) *Service {
	return &Service{index: index, anns: anns, pages: pages, shares: shares, stacks: stacks}
}

// Search runs a query for one user. Own results always apply; shared copies
// join the result set only when the query targets a single URI the user has
// received shares for. Hits are position-sorted and bucketed per document.
func (s *Service) Search(ctx context.Context, user string, q query.Query) (*Response, error) {
	ownPage, err := s.index.Search(ctx, q, user)
	if err != nil {
		return nil, fmt.Errorf("index search: %w", err)
	}

	ownHits, err := s.hydrateOwn(ctx, ownPage)
	if err != nil {
		return nil, err
	}

	sharedHits, sharedTotal, sharedPages, err := s.sharedResults(ctx, user, q)
	if err != nil {
		return nil, err
	}

	hits := merge(ownHits, sharedHits)
	result.SortByPosition(hits)

	buckets, err := s.bucket(ctx, user, hits, sharedPages)
	if err != nil {
		return nil, err
	}

	return &Response{
		Total:      ownPage.Total + sharedTotal,
		Buckets:    buckets,
		TagFacets:  ownPage.TagFacets,
		UserFacets: ownPage.UserFacets,
	}, nil
}

// Recall gathers the tags the caller attached to one document and runs a
// free-text query over them, surfacing related annotations from the rest of
// the caller's collection.
func (s *Service) Recall(ctx context.Context, user, uriAddress string, limit int) (*Response, error) {
	pg, err := s.pages.GetByAddress(ctx, uriAddress, user, false)
	if err != nil {
		return nil, err
	}

	anns, err := s.anns.FetchByPage(ctx, pg.ID())
	if err != nil {
		return nil, fmt.Errorf("fetch annotations: %w", err)
	}

	var terms []string
	seen := make(map[string]bool)
	for _, a := range anns {
		for _, tag := range a.Tags() {
			if tag == "" || seen[tag] {
				continue
			}
			seen[tag] = true
			terms = append(terms, tag)
		}
	}
	// A document without tags has nothing to recall by.
	if len(terms) == 0 {
		return &Response{}, nil
	}

	return s.Search(ctx, user, query.Query{Any: terms, Limit: limit})
}

func (s *Service) hydrateOwn(ctx context.Context, page result.IDPage) ([]result.Hit, error) {
	if len(page.IDs) == 0 {
		return nil, nil
	}
	loaded, err := s.anns.FetchByIDs(ctx, page.IDs)
	if err != nil {
		return nil, fmt.Errorf("hydrate annotations: %w", err)
	}
	return hydrate(page, loaded), nil
}

// sharedResults runs the shared-index query when the search targets exactly
// one URI for which the user has a shared page. Any other shape of query
// skips the shared index entirely.
func (s *Service) sharedResults(ctx context.Context, user string, q query.Query) (
	[]result.Hit, int, map[string]dompage.Page, error,
) {
	if len(q.URIs) != 1 {
		return nil, 0, nil, nil
	}

	sharedPg, err := s.shares.GetSharedPage(ctx, q.URIs[0], user)
	if err != nil {
		if errors.Is(err, domain.ErrPageNotFound) {
			return nil, 0, nil, nil
		}
		return nil, 0, nil, fmt.Errorf("resolve shared page: %w", err)
	}

	// The shared mirror indexes the same uri values, so the original query
	// applies unchanged apart from recipient scoping.
	sharedIDPage, err := s.index.SearchShared(ctx, q, user)
	if err != nil {
		return nil, 0, nil, fmt.Errorf("shared index search: %w", err)
	}
	if len(sharedIDPage.IDs) == 0 {
		return nil, sharedIDPage.Total, nil, nil
	}

	loaded, err := s.shares.FetchSharedByIDs(ctx, sharedIDPage.IDs)
	if err != nil {
		return nil, 0, nil, fmt.Errorf("hydrate shared annotations: %w", err)
	}

	hits := make([]result.Hit, 0, len(sharedIDPage.IDs))
	pages := map[string]dompage.Page{sharedPg.ID: sharedPg.AsPage()}
	pageIDs := make([]string, 0, len(loaded))
	for _, id := range sharedIDPage.IDs {
		sa, ok := loaded[id]
		if !ok {
			continue
		}
		hits = append(hits, result.Hit{
			Annotation: sa.AsAnnotation(),
			Score:      sharedIDPage.Scores[id],
		})
		if _, known := pages[sa.URIID]; !known {
			pageIDs = append(pageIDs, sa.URIID)
		}
	}

	if len(pageIDs) > 0 {
		more, err := s.shares.FetchSharedPagesByIDs(ctx, pageIDs)
		if err != nil {
			return nil, 0, nil, fmt.Errorf("hydrate shared pages: %w", err)
		}
		for id, sp := range more {
			pages[id] = sp.AsPage()
		}
	}

	return hits, sharedIDPage.Total, pages, nil
}

func (s *Service) bucket(ctx context.Context, user string, hits []result.Hit, sharedPages map[string]dompage.Page) ([]result.DocumentBucket, error) {
	if len(hits) == 0 {
		return nil, nil
	}

	var uriIDs []string
	seen := make(map[string]bool)
	for _, h := range hits {
		id := h.Annotation.URIID()
		if !seen[id] {
			seen[id] = true
			uriIDs = append(uriIDs, id)
		}
	}

	pages, err := s.pages.FetchByIDs(ctx, uriIDs)
	if err != nil {
		return nil, fmt.Errorf("fetch pages: %w", err)
	}
	for id, pg := range sharedPages {
		if _, ok := pages[id]; !ok {
			pages[id] = pg
		}
	}

	stacks, err := s.stacks.ForPages(ctx, user, uriIDs)
	if err != nil {
		return nil, fmt.Errorf("fetch stacks: %w", err)
	}

	return result.BucketByPage(hits, pages, stacks), nil
}
