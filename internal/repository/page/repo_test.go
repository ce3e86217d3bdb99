package page

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/renoted/renoted/internal/domain"
	dompage "github.com/renoted/renoted/internal/domain/page"
	"github.com/renoted/renoted/internal/sqldb"
)

func newTestRepo(t *testing.T) *Repo {
	t.Helper()
	conn, err := sqldb.OpenForTest(context.Background())
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return New(conn)
}

func testPage(t *testing.T, id, uri, user string, ts time.Time) dompage.Page {
	t.Helper()
	p, err := dompage.New(id, uri, user, "A Title", "", false, nil, ts)
	if err != nil {
		t.Fatalf("new page: %v", err)
	}
	return p
}

func TestUpsert_CreatesThenDedupes(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	first := testPage(t, "page-1", "https://example.com", "acct:alice@renoted.io",
		time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	stored, err := repo.Upsert(ctx, &first)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if stored.ID() != "page-1" {
		t.Fatalf("unexpected id: %s", stored.ID())
	}

	// Same tuple with a fresh candidate id keeps the original record.
	second := testPage(t, "page-2", "https://example.com", "acct:alice@renoted.io",
		time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC))
	stored, err = repo.Upsert(ctx, &second)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if stored.ID() != "page-1" {
		t.Errorf("expected surviving id page-1, got %s", stored.ID())
	}
	if !stored.Updated().After(stored.Created()) {
		t.Error("expected updated to be bumped")
	}
}

func TestUpsert_BookmarkIsSeparateRecord(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	pg := testPage(t, "page-1", "https://example.com", "acct:alice@renoted.io",
		time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	if _, err := repo.Upsert(ctx, &pg); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	bm, err := dompage.New("page-2", "https://example.com", "acct:alice@renoted.io",
		"A Title", "", true, nil, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	stored, err := repo.Upsert(ctx, &bm)
	if err != nil {
		t.Fatalf("upsert bookmark: %v", err)
	}
	if stored.ID() != "page-2" {
		t.Errorf("bookmark should be its own record, got id %s", stored.ID())
	}
}

func TestUpsert_EmptyTitleKeepsExisting(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	first := testPage(t, "page-1", "https://example.com", "acct:alice@renoted.io",
		time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	if _, err := repo.Upsert(ctx, &first); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	blank, err := dompage.New("page-2", "https://example.com", "acct:alice@renoted.io",
		"", "", false, nil, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	stored, err := repo.Upsert(ctx, &blank)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if stored.Title() != "A Title" {
		t.Errorf("blank title should not clobber existing, got %q", stored.Title())
	}
}

func TestGet_NotFound(t *testing.T) {
	repo := newTestRepo(t)
	_, err := repo.Get(context.Background(), "missing")
	if !errors.Is(err, domain.ErrPageNotFound) {
		t.Errorf("expected ErrPageNotFound, got %v", err)
	}
}

func TestFetchByUser_OrderAndLimit(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for i, uri := range []string{"https://a.example", "https://b.example", "https://c.example"} {
		p := testPage(t, uri, uri, "acct:alice@renoted.io",
			time.Date(2026, 3, 1+i, 0, 0, 0, 0, time.UTC))
		if _, err := repo.Upsert(ctx, &p); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}

	got, err := repo.FetchByUser(ctx, "acct:alice@renoted.io", 2, 0)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(got))
	}
	if got[0].URIAddress() != "https://c.example" {
		t.Errorf("expected most recent first, got %s", got[0].URIAddress())
	}
}

func TestTouchUpdated(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	p := testPage(t, "page-1", "https://example.com", "acct:alice@renoted.io",
		time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	if _, err := repo.Upsert(ctx, &p); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	later := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	if err := repo.TouchUpdated(ctx, "page-1", later); err != nil {
		t.Fatalf("touch: %v", err)
	}

	got, err := repo.Get(ctx, "page-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.Updated().Equal(later) {
		t.Errorf("expected updated %v, got %v", later, got.Updated())
	}

	if err := repo.TouchUpdated(ctx, "missing", later); !errors.Is(err, domain.ErrPageNotFound) {
		t.Errorf("expected ErrPageNotFound, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	p := testPage(t, "page-1", "https://example.com", "acct:alice@renoted.io",
		time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	if _, err := repo.Upsert(ctx, &p); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := repo.Delete(ctx, "page-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := repo.Delete(ctx, "page-1"); !errors.Is(err, domain.ErrPageNotFound) {
		t.Errorf("expected ErrPageNotFound, got %v", err)
	}
}
