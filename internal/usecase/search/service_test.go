package search

import (
	"context"
	"testing"
	"time"

	"github.com/renoted/renoted/internal/domain"
	domann "github.com/renoted/renoted/internal/domain/annotation"
	dompage "github.com/renoted/renoted/internal/domain/page"
	domshare "github.com/renoted/renoted/internal/domain/share"
	"github.com/renoted/renoted/internal/domain/search/query"
	"github.com/renoted/renoted/internal/domain/search/result"
)

// --- Mocks ---

type mockIndex struct {
	ownPage    result.IDPage
	sharedPage result.IDPage
	ownHits    int
	sharedHits int
	lastOwn    query.Query
}

func (m *mockIndex) Search(_ context.Context, q query.Query, _ string) (result.IDPage, error) {
	m.ownHits++
	m.lastOwn = q
	return m.ownPage, nil
}

func (m *mockIndex) SearchShared(context.Context, query.Query, string) (result.IDPage, error) {
	m.sharedHits++
	return m.sharedPage, nil
}

type mockAnns struct {
	byID       map[string]domann.Annotation
	byPage     map[string][]domann.Annotation
	fetchCalls int
}

func (m *mockAnns) FetchByIDs(_ context.Context, ids []string) (map[string]domann.Annotation, error) {
	m.fetchCalls++
	out := map[string]domann.Annotation{}
	for _, id := range ids {
		if a, ok := m.byID[id]; ok {
			out[id] = a
		}
	}
	return out, nil
}

func (m *mockAnns) FetchByPage(_ context.Context, uriID string) ([]domann.Annotation, error) {
	return m.byPage[uriID], nil
}

type mockPages struct {
	byID map[string]dompage.Page
}

func (m *mockPages) FetchByIDs(_ context.Context, ids []string) (map[string]dompage.Page, error) {
	out := map[string]dompage.Page{}
	for _, id := range ids {
		if p, ok := m.byID[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (m *mockPages) GetByAddress(_ context.Context, uriAddress, userID string, _ bool) (dompage.Page, error) {
	for _, p := range m.byID {
		if p.URIAddress() == uriAddress && p.UserID() == userID {
			return p, nil
		}
	}
	return dompage.Page{}, domain.ErrPageNotFound
}

type mockShares struct {
	sharedAnns map[string]domshare.SharedAnnotation
	sharedPgs  map[string]domshare.SharedPage
	pageByURI  map[string]domshare.SharedPage
}

func (m *mockShares) FetchSharedByIDs(_ context.Context, ids []string) (map[string]domshare.SharedAnnotation, error) {
	out := map[string]domshare.SharedAnnotation{}
	for _, id := range ids {
		if a, ok := m.sharedAnns[id]; ok {
			out[id] = a
		}
	}
	return out, nil
}

func (m *mockShares) FetchSharedPagesByIDs(_ context.Context, ids []string) (map[string]domshare.SharedPage, error) {
	out := map[string]domshare.SharedPage{}
	for _, id := range ids {
		if p, ok := m.sharedPgs[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (m *mockShares) GetSharedPage(_ context.Context, uriAddress, _ string) (domshare.SharedPage, error) {
	if p, ok := m.pageByURI[uriAddress]; ok {
		return p, nil
	}
	return domshare.SharedPage{}, domain.ErrPageNotFound
}

type mockStacks struct {
	byPage map[string][]string
}

func (m *mockStacks) ForPages(_ context.Context, _ string, uriIDs []string) (map[string][]string, error) {
	out := map[string][]string{}
	for _, id := range uriIDs {
		if s, ok := m.byPage[id]; ok {
			out[id] = s
		}
	}
	return out, nil
}

// --- Helpers ---

func ann(t *testing.T, id, uriID string, selectors []domann.Selector) domann.Annotation {
	t.Helper()
	a, err := domann.New(id, domann.Fields{
		UserID:    "acct:alice@renoted.io",
		URIID:     uriID,
		TargetURI: "https://example.com/doc",
		Kind:      "textannotation",
		Selectors: selectors,
	}, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("new annotation: %v", err)
	}
	return a
}

func pg(t *testing.T, id, uri string) dompage.Page {
	t.Helper()
	p, err := dompage.New(id, uri, "acct:alice@renoted.io", "Title", "", false, nil,
		time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("new page: %v", err)
	}
	return p
}

func newService(idx *mockIndex, anns *mockAnns, pages *mockPages, shares *mockShares, stacks *mockStacks) *Service {
	if anns == nil {
		anns = &mockAnns{}
	}
	if pages == nil {
		pages = &mockPages{byID: map[string]dompage.Page{}}
	}
	if shares == nil {
		shares = &mockShares{}
	}
	if stacks == nil {
		stacks = &mockStacks{}
	}
	return New(idx, anns, pages, shares, stacks)
}

// --- Tests ---

// Index rank says a, b, c by score, but output order follows document
// position: c has no position selector (0), b starts at 10, a at 50.
func TestSearch_PositionalOrderBeatsScore(t *testing.T) {
	idx := &mockIndex{ownPage: result.IDPage{
		IDs:    []string{"a", "b", "c"},
		Scores: map[string]float64{"a": 0.9, "b": 0.5, "c": 0.1},
		Total:  3,
	}}
	anns := &mockAnns{byID: map[string]domann.Annotation{
		"a": ann(t, "a", "doc-1", []domann.Selector{{Type: domann.SelectorTextPosition, Start: 50}}),
		"b": ann(t, "b", "doc-1", []domann.Selector{{Type: domann.SelectorTextPosition, Start: 10}}),
		"c": ann(t, "c", "doc-1", nil),
	}}
	pages := &mockPages{byID: map[string]dompage.Page{
		"doc-1": pg(t, "doc-1", "https://example.com/doc"),
	}}

	resp, err := newService(idx, anns, pages, nil, nil).Search(
		context.Background(), "acct:alice@renoted.io", query.Query{URIID: "doc-1", Limit: 20})
	if err != nil {
		t.Fatalf("search: %v", err)
	}

	if resp.Total != 3 {
		t.Errorf("expected total 3, got %d", resp.Total)
	}
	if len(resp.Buckets) != 1 {
		t.Fatalf("expected 1 bucket, got %d", len(resp.Buckets))
	}
	got := resp.Buckets[0].Annotations
	if len(got) != 3 {
		t.Fatalf("expected 3 hits, got %d", len(got))
	}
	order := []string{got[0].Annotation.ID(), got[1].Annotation.ID(), got[2].Annotation.ID()}
	if order[0] != "c" || order[1] != "b" || order[2] != "a" {
		t.Errorf("expected order c,b,a, got %v", order)
	}
	if resp.Buckets[0].MaxScore != 0.9 {
		t.Errorf("expected max score 0.9, got %f", resp.Buckets[0].MaxScore)
	}
}

// Zero index hits must not touch the relational store at all.
func TestSearch_EmptyShortCircuitsHydration(t *testing.T) {
	idx := &mockIndex{ownPage: result.IDPage{Total: 0}}
	anns := &mockAnns{}

	resp, err := newService(idx, anns, nil, nil, nil).Search(
		context.Background(), "acct:alice@renoted.io", query.Query{Any: []string{"nothing"}, Limit: 20})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if resp.Total != 0 || len(resp.Buckets) != 0 {
		t.Errorf("expected empty response, got %+v", resp)
	}
	if anns.fetchCalls != 0 {
		t.Errorf("hydrator should not hit the store on zero hits, got %d calls", anns.fetchCalls)
	}
}

// Ids the store no longer holds are dropped from the feed without error.
func TestSearch_StaleIndexEntriesDroppedSilently(t *testing.T) {
	idx := &mockIndex{ownPage: result.IDPage{
		IDs:    []string{"live", "stale"},
		Scores: map[string]float64{"live": 0.8, "stale": 0.7},
		Total:  2,
	}}
	anns := &mockAnns{byID: map[string]domann.Annotation{
		"live": ann(t, "live", "doc-1", nil),
	}}
	pages := &mockPages{byID: map[string]dompage.Page{
		"doc-1": pg(t, "doc-1", "https://example.com/doc"),
	}}

	resp, err := newService(idx, anns, pages, nil, nil).Search(
		context.Background(), "acct:alice@renoted.io", query.Query{Limit: 20})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(resp.Buckets) != 1 || len(resp.Buckets[0].Annotations) != 1 {
		t.Fatalf("expected a single surviving hit, got %+v", resp.Buckets)
	}
	if resp.Buckets[0].Annotations[0].Annotation.ID() != "live" {
		t.Errorf("unexpected survivor: %s", resp.Buckets[0].Annotations[0].Annotation.ID())
	}
}

func TestSearch_SharedUnionOnSingleURI(t *testing.T) {
	idx := &mockIndex{
		ownPage: result.IDPage{
			IDs:    []string{"own-1"},
			Scores: map[string]float64{"own-1": 0.9},
			Total:  1,
		},
		sharedPage: result.IDPage{
			IDs:    []string{"sa-1"},
			Scores: map[string]float64{"sa-1": 0.6},
			Total:  1,
		},
	}
	anns := &mockAnns{byID: map[string]domann.Annotation{
		"own-1": ann(t, "own-1", "doc-1", nil),
	}}
	pages := &mockPages{byID: map[string]dompage.Page{
		"doc-1": pg(t, "doc-1", "https://example.com/doc"),
	}}
	ts := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	shares := &mockShares{
		sharedAnns: map[string]domshare.SharedAnnotation{
			"sa-1": {
				ID: "sa-1", UserID: "acct:alice@renoted.io", URIID: "sp-1",
				TargetURI: "https://example.com/doc", Kind: "textannotation",
				Created: ts, Updated: ts,
			},
		},
		pageByURI: map[string]domshare.SharedPage{
			"https://example.com/doc": {
				ID: "sp-1", URIAddress: "https://example.com/doc",
				UserID: "acct:alice@renoted.io", Created: ts, Updated: ts,
			},
		},
	}

	q := query.Query{URIs: []string{"https://example.com/doc"}, Limit: 20}
	resp, err := newService(idx, anns, pages, shares, nil).Search(
		context.Background(), "acct:alice@renoted.io", q)
	if err != nil {
		t.Fatalf("search: %v", err)
	}

	if resp.Total != 2 {
		t.Errorf("expected combined total 2, got %d", resp.Total)
	}
	if len(resp.Buckets) != 2 {
		t.Fatalf("expected own and shared buckets, got %d", len(resp.Buckets))
	}
	if idx.sharedHits != 1 {
		t.Errorf("expected one shared index query, got %d", idx.sharedHits)
	}
}

func TestSearch_NoSharedPageSkipsSharedIndex(t *testing.T) {
	idx := &mockIndex{ownPage: result.IDPage{Total: 0}}
	shares := &mockShares{} // no shared pages at all

	q := query.Query{URIs: []string{"https://example.com/doc"}, Limit: 20}
	_, err := newService(idx, nil, nil, shares, nil).Search(
		context.Background(), "acct:alice@renoted.io", q)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if idx.sharedHits != 0 {
		t.Errorf("shared index should not be queried, got %d calls", idx.sharedHits)
	}
}

func TestMerge_Idempotent(t *testing.T) {
	a := result.Hit{Annotation: ann(t, "a", "doc-1", nil), Score: 0.9}
	b := result.Hit{Annotation: ann(t, "b", "doc-1", nil), Score: 0.5}

	once := merge([]result.Hit{a}, []result.Hit{b})
	twice := merge(once, []result.Hit{b})
	if len(twice) != 2 {
		t.Fatalf("expected 2 hits after re-merge, got %d", len(twice))
	}
	if twice[0].Annotation.ID() != "a" || twice[1].Annotation.ID() != "b" {
		t.Errorf("unexpected order: %s, %s", twice[0].Annotation.ID(), twice[1].Annotation.ID())
	}
}

func TestMerge_OwnWinsOnDuplicateID(t *testing.T) {
	own := result.Hit{Annotation: ann(t, "dup", "doc-1", nil), Score: 0.9}
	shared := result.Hit{Annotation: ann(t, "dup", "doc-2", nil), Score: 0.1}

	merged := merge([]result.Hit{own}, []result.Hit{shared})
	if len(merged) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(merged))
	}
	if merged[0].Annotation.URIID() != "doc-1" {
		t.Error("own hit should win over shared duplicate")
	}
}

func taggedAnn(t *testing.T, id, uriID string, tags []string) domann.Annotation {
	t.Helper()
	a, err := domann.New(id, domann.Fields{
		UserID:    "acct:alice@renoted.io",
		URIID:     uriID,
		TargetURI: "https://example.com/doc",
		Kind:      "textannotation",
		Tags:      tags,
	}, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("new annotation: %v", err)
	}
	return a
}

// The document's annotation tags become one deduplicated free-text query,
// and the hits come back through the regular search pipeline.
func TestRecall_QueriesByGatheredTags(t *testing.T) {
	idx := &mockIndex{ownPage: result.IDPage{
		IDs:    []string{"rel-1"},
		Scores: map[string]float64{"rel-1": 0.7},
		Total:  1,
	}}
	pages := &mockPages{byID: map[string]dompage.Page{
		"doc-1": pg(t, "doc-1", "https://example.com/doc"),
		"doc-2": pg(t, "doc-2", "https://example.com/other"),
	}}
	anns := &mockAnns{
		byPage: map[string][]domann.Annotation{
			"doc-1": {
				taggedAnn(t, "n-1", "doc-1", []string{"go", "talks"}),
				taggedAnn(t, "n-2", "doc-1", []string{"go", "conference"}),
			},
		},
		byID: map[string]domann.Annotation{
			"rel-1": taggedAnn(t, "rel-1", "doc-2", []string{"go"}),
		},
	}

	resp, err := newService(idx, anns, pages, nil, nil).Recall(
		context.Background(), "acct:alice@renoted.io", "https://example.com/doc", 20)
	if err != nil {
		t.Fatalf("recall: %v", err)
	}

	want := []string{"go", "talks", "conference"}
	if len(idx.lastOwn.Any) != len(want) {
		t.Fatalf("expected query terms %v, got %v", want, idx.lastOwn.Any)
	}
	for i, term := range want {
		if idx.lastOwn.Any[i] != term {
			t.Errorf("expected term %q at %d, got %q", term, i, idx.lastOwn.Any[i])
		}
	}
	if idx.lastOwn.Limit != 20 {
		t.Errorf("expected limit 20, got %d", idx.lastOwn.Limit)
	}
	if resp.Total != 1 || len(resp.Buckets) != 1 {
		t.Fatalf("expected one hydrated bucket, got %+v", resp)
	}
	if resp.Buckets[0].Annotations[0].Annotation.ID() != "rel-1" {
		t.Errorf("unexpected hit: %s", resp.Buckets[0].Annotations[0].Annotation.ID())
	}
}

// A document whose annotations carry no tags has nothing to query by.
func TestRecall_NoTagsSkipsIndex(t *testing.T) {
	idx := &mockIndex{}
	pages := &mockPages{byID: map[string]dompage.Page{
		"doc-1": pg(t, "doc-1", "https://example.com/doc"),
	}}
	anns := &mockAnns{byPage: map[string][]domann.Annotation{
		"doc-1": {ann(t, "n-1", "doc-1", nil)},
	}}

	resp, err := newService(idx, anns, pages, nil, nil).Recall(
		context.Background(), "acct:alice@renoted.io", "https://example.com/doc", 20)
	if err != nil {
		t.Fatalf("recall: %v", err)
	}
	if resp.Total != 0 || len(resp.Buckets) != 0 {
		t.Errorf("expected empty response, got %+v", resp)
	}
	if idx.ownHits != 0 {
		t.Errorf("index should not be queried without tags, got %d calls", idx.ownHits)
	}
}
