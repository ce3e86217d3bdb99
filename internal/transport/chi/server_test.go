package chi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/renoted/renoted/internal/domain"
	domann "github.com/renoted/renoted/internal/domain/annotation"
	dompage "github.com/renoted/renoted/internal/domain/page"
	domshare "github.com/renoted/renoted/internal/domain/share"
	"github.com/renoted/renoted/internal/domain/event"
	"github.com/renoted/renoted/internal/domain/search/query"
	"github.com/renoted/renoted/internal/domain/search/result"
	annotationuc "github.com/renoted/renoted/internal/usecase/annotation"
	healthuc "github.com/renoted/renoted/internal/usecase/health"
	pageuc "github.com/renoted/renoted/internal/usecase/page"
	searchuc "github.com/renoted/renoted/internal/usecase/search"
)

// --- Mocks ---

type fakeAnnRepo struct {
	byID map[string]domann.Annotation
}

func newFakeAnnRepo() *fakeAnnRepo {
	return &fakeAnnRepo{byID: map[string]domann.Annotation{}}
}

func (f *fakeAnnRepo) Insert(_ context.Context, a *domann.Annotation) error {
	f.byID[a.ID()] = *a
	return nil
}

func (f *fakeAnnRepo) Update(_ context.Context, a *domann.Annotation) error {
	f.byID[a.ID()] = *a
	return nil
}

func (f *fakeAnnRepo) Delete(_ context.Context, id string) error {
	if _, ok := f.byID[id]; !ok {
		return domain.ErrAnnotationNotFound
	}
	delete(f.byID, id)
	return nil
}

func (f *fakeAnnRepo) Get(_ context.Context, id string) (domann.Annotation, error) {
	a, ok := f.byID[id]
	if !ok {
		return domann.Annotation{}, domain.ErrAnnotationNotFound
	}
	return a, nil
}

type fakePageStore struct{}

func (fakePageStore) Upsert(_ context.Context, p *dompage.Page) (dompage.Page, error) {
	return *p, nil
}

func (fakePageStore) TouchUpdated(_ context.Context, _ string, _ time.Time) error { return nil }

type nopBus struct{}

func (nopBus) Publish(_ context.Context, _ event.Event) {}

type fakeIndex struct {
	page    result.IDPage
	queries []query.Query
}

func (f *fakeIndex) Search(_ context.Context, q query.Query, _ string) (result.IDPage, error) {
	f.queries = append(f.queries, q)
	return f.page, nil
}

func (f *fakeIndex) SearchShared(_ context.Context, q query.Query, _ string) (result.IDPage, error) {
	return result.IDPage{}, nil
}

type emptyAnnReader struct{}

func (emptyAnnReader) FetchByIDs(_ context.Context, _ []string) (map[string]domann.Annotation, error) {
	return map[string]domann.Annotation{}, nil
}

func (emptyAnnReader) FetchByPage(_ context.Context, _ string) ([]domann.Annotation, error) {
	return nil, nil
}

type emptyPageReader struct{}

func (emptyPageReader) FetchByIDs(_ context.Context, _ []string) (map[string]dompage.Page, error) {
	return map[string]dompage.Page{}, nil
}

func (emptyPageReader) GetByAddress(_ context.Context, _, _ string, _ bool) (dompage.Page, error) {
	return dompage.Page{}, domain.ErrPageNotFound
}

type emptySharedReader struct{}

func (emptySharedReader) FetchSharedByIDs(_ context.Context, _ []string) (map[string]domshare.SharedAnnotation, error) {
	return map[string]domshare.SharedAnnotation{}, nil
}

func (emptySharedReader) FetchSharedPagesByIDs(_ context.Context, _ []string) (map[string]domshare.SharedPage, error) {
	return map[string]domshare.SharedPage{}, nil
}

func (emptySharedReader) GetSharedPage(_ context.Context, _, _ string) (domshare.SharedPage, error) {
	return domshare.SharedPage{}, domain.ErrPageNotFound
}

type emptyStackReader struct{}

func (emptyStackReader) ForPages(_ context.Context, _ string, _ []string) (map[string][]string, error) {
	return map[string][]string{}, nil
}

type pinger struct {
	err error
}

func (p pinger) Ping(_ context.Context) error        { return p.err }
func (p pinger) PingContext(_ context.Context) error { return p.err }

func newTestServer(annRepo *fakeAnnRepo, index *fakeIndex) *Server {
	annSvc := annotationuc.New(annRepo, fakePageStore{}, nopBus{})
	searchSvc := searchuc.New(index, emptyAnnReader{}, emptyPageReader{}, emptySharedReader{}, emptyStackReader{})
	healthSvc := healthuc.New(pinger{}, pinger{})
	pageSvc := pageuc.New(nil, nil, nopBus{})
	return NewServer(annSvc, pageSvc, searchSvc, nil, nil, healthSvc, zap.NewNop(), 20)
}

func do(h http.Handler, method, target, user, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	if user != "" {
		req.Header.Set(UserHeader, user)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// --- Tests ---

func TestAuth_MissingUserHeader(t *testing.T) {
	h := newTestServer(newFakeAnnRepo(), &fakeIndex{}).Routes()

	rec := do(h, http.MethodGet, "/api/search?q=hello", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestSearch_RedirectsSingleGroupClause(t *testing.T) {
	h := newTestServer(newFakeAnnRepo(), &fakeIndex{}).Routes()

	rec := do(h, http.MethodGet, "/api/search?q=group:reading+hello", "alice", "")
	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", rec.Code)
	}
	loc := rec.Header().Get("Location")
	if loc != "/api/search/group/reading?q=hello" {
		t.Fatalf("Location = %q", loc)
	}
}

func TestSearch_TwoGroupClausesNotRedirected(t *testing.T) {
	index := &fakeIndex{}
	h := newTestServer(newFakeAnnRepo(), index).Routes()

	rec := do(h, http.MethodGet, "/api/search?q=group:a+group:b", "alice", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(index.queries) != 1 || len(index.queries[0].Groups) != 2 {
		t.Fatalf("queries = %+v", index.queries)
	}
}

func TestSearch_ScopedGroupRoute(t *testing.T) {
	index := &fakeIndex{}
	h := newTestServer(newFakeAnnRepo(), index).Routes()

	rec := do(h, http.MethodGet, "/api/search/group/reading?q=hello&page=2", "alice", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	q := index.queries[0]
	if len(q.Groups) != 1 || q.Groups[0] != "reading" {
		t.Fatalf("groups = %v", q.Groups)
	}
	if q.Offset != 20 || q.Limit != 20 {
		t.Fatalf("pagination = limit %d offset %d", q.Limit, q.Offset)
	}
}

func TestSearch_InvalidPageDefaultsToFirst(t *testing.T) {
	index := &fakeIndex{}
	h := newTestServer(newFakeAnnRepo(), index).Routes()

	rec := do(h, http.MethodGet, "/api/search?q=hello&page=banana", "alice", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if index.queries[0].Offset != 0 {
		t.Fatalf("offset = %d, want 0", index.queries[0].Offset)
	}
}

func TestCreateAnnotation(t *testing.T) {
	repo := newFakeAnnRepo()
	h := newTestServer(repo, &fakeIndex{}).Routes()

	body := `{"uri":"https://example.com/a","kind":"text","text":"note"}`
	rec := do(h, http.MethodPost, "/api/annotations", "alice", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("Location") == "" {
		t.Fatal("missing Location header")
	}

	var resp AnnotationResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.User != "alice" || resp.Text != "note" {
		t.Fatalf("resp = %+v", resp)
	}
	if _, ok := repo.byID[resp.ID]; !ok {
		t.Fatal("annotation not stored")
	}
}

func TestCreateAnnotation_MissingURI(t *testing.T) {
	h := newTestServer(newFakeAnnRepo(), &fakeIndex{}).Routes()

	rec := do(h, http.MethodPost, "/api/annotations", "alice", `{"text":"note"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestGetAnnotation_NotFound(t *testing.T) {
	h := newTestServer(newFakeAnnRepo(), &fakeIndex{}).Routes()

	rec := do(h, http.MethodGet, "/api/annotations/nope", "alice", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["code"] != "annotation_not_found" {
		t.Fatalf("code = %q", resp["code"])
	}
}

func TestDeleteAnnotation_OwnerScoped(t *testing.T) {
	repo := newFakeAnnRepo()
	h := newTestServer(repo, &fakeIndex{}).Routes()

	body := `{"uri":"https://example.com/a","text":"note"}`
	rec := do(h, http.MethodPost, "/api/annotations", "alice", body)
	var created AnnotationResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if rec := do(h, http.MethodDelete, "/api/annotations/"+created.ID, "mallory", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("foreign delete status = %d, want 404", rec.Code)
	}
	if rec := do(h, http.MethodDelete, "/api/annotations/"+created.ID, "alice", ""); rec.Code != http.StatusNoContent {
		t.Fatalf("owner delete status = %d, want 204", rec.Code)
	}
}

func TestHealth_NoAuthRequired(t *testing.T) {
	h := newTestServer(newFakeAnnRepo(), &fakeIndex{}).Routes()

	rec := do(h, http.MethodGet, "/health", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestHealth_DegradedIs503(t *testing.T) {
	annSvc := annotationuc.New(newFakeAnnRepo(), fakePageStore{}, nopBus{})
	searchSvc := searchuc.New(&fakeIndex{}, emptyAnnReader{}, emptyPageReader{}, emptySharedReader{}, emptyStackReader{})
	healthSvc := healthuc.New(pinger{err: context.DeadlineExceeded}, pinger{})
	srv := NewServer(annSvc, nil, searchSvc, nil, nil, healthSvc, zap.NewNop(), 20)

	rec := do(srv.Routes(), http.MethodGet, "/health", "", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}
