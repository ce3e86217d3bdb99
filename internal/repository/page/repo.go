// Package page persists page records in the relational store.
package page

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/renoted/renoted/internal/domain"
	dompage "github.com/renoted/renoted/internal/domain/page"
)

const columns = `id, uriaddress, title, description, userid,
	isbookmark, tags, numbershared, isdeleted, created, updated`

// Repo implements the page repository over SQLite.
type Repo struct {
	db *sql.DB
}

// New creates a page repository.
func New(db *sql.DB) *Repo {
	return &Repo{db: db}
}

// Upsert inserts a page or, when a record for the same
// (uriaddress, userid, isbookmark) tuple exists, refreshes its metadata and
// bumps updated. Returns the stored page so callers learn the surviving id.
func (r *Repo) Upsert(ctx context.Context, p *dompage.Page) (dompage.Page, error) {
	tags, err := json.Marshal(tagsOrEmpty(p.Tags()))
	if err != nil {
		return dompage.Page{}, fmt.Errorf("marshal tags: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO pages (`+columns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(uriaddress, userid, isbookmark) DO UPDATE SET
			title       = CASE WHEN excluded.title <> '' THEN excluded.title ELSE pages.title END,
			description = CASE WHEN excluded.description <> '' THEN excluded.description ELSE pages.description END,
			isdeleted   = 0,
			updated     = excluded.updated`,
		p.ID(), p.URIAddress(), p.Title(), p.Description(), p.UserID(),
		p.IsBookmark(), string(tags), p.NumberShared(), p.IsDeleted(),
		p.Created(), p.Updated(),
	)
	if err != nil {
		return dompage.Page{}, fmt.Errorf("upsert page %s: %w", p.URIAddress(), err)
	}

	return r.GetByAddress(ctx, p.URIAddress(), p.UserID(), p.IsBookmark())
}

// Get returns a page by id.
func (r *Repo) Get(ctx context.Context, id string) (dompage.Page, error) {
	return r.one(r.db.QueryRowContext(ctx,
		`SELECT `+columns+` FROM pages WHERE id = ?`, id))
}

// GetByAddress returns the page for one (uriaddress, userid, isbookmark) tuple.
func (r *Repo) GetByAddress(ctx context.Context, uriAddress, userID string, isBookmark bool) (dompage.Page, error) {
	return r.one(r.db.QueryRowContext(ctx,
		`SELECT `+columns+` FROM pages
		 WHERE uriaddress = ? AND userid = ? AND isbookmark = ?`,
		uriAddress, userID, isBookmark))
}

// FetchByIDs bulk-loads pages keyed by id. Missing ids are absent.
func (r *Repo) FetchByIDs(ctx context.Context, ids []string) (map[string]dompage.Page, error) {
	if len(ids) == 0 {
		return map[string]dompage.Page{}, nil
	}

	placeholders := strings.Repeat("?,", len(ids)-1) + "?"
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+columns+` FROM pages WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch pages: %w", err)
	}
	defer rows.Close()

	out := make(map[string]dompage.Page, len(ids))
	for rows.Next() {
		p, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out[p.ID()] = p
	}
	return out, rows.Err()
}

// FetchByUser returns a user's pages, most recently touched first.
// Soft-deleted records are skipped.
func (r *Repo) FetchByUser(ctx context.Context, userID string, limit, offset int) ([]dompage.Page, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+columns+` FROM pages
		 WHERE userid = ? AND isdeleted = 0
		 ORDER BY updated DESC
		 LIMIT ? OFFSET ?`,
		userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("fetch pages for %s: %w", userID, err)
	}
	defer rows.Close()

	var out []dompage.Page
	for rows.Next() {
		p, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// UpdateMeta rewrites a page's editable metadata.
func (r *Repo) UpdateMeta(ctx context.Context, id, title, description string, tags []string, now time.Time) error {
	tagsJSON, err := json.Marshal(tagsOrEmpty(tags))
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE pages SET title = ?, description = ?, tags = ?, updated = ? WHERE id = ?`,
		title, description, string(tagsJSON), now, id)
	if err != nil {
		return fmt.Errorf("update page %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrPageNotFound
	}
	return nil
}

// TouchUpdated bumps a page's updated timestamp, called when a child
// annotation changes.
func (r *Repo) TouchUpdated(ctx context.Context, id string, now time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE pages SET updated = ? WHERE id = ?`, now, id)
	if err != nil {
		return fmt.Errorf("touch page %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrPageNotFound
	}
	return nil
}

// Delete removes a page record.
func (r *Repo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM pages WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete page %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrPageNotFound
	}
	return nil
}

func (r *Repo) one(row *sql.Row) (dompage.Page, error) {
	p, err := scan(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return dompage.Page{}, domain.ErrPageNotFound
		}
		return dompage.Page{}, err
	}
	return p, nil
}

func scan(s interface{ Scan(...any) error }) (dompage.Page, error) {
	var (
		id, uriAddress, title, description, userID, tagsJSON string
		isBookmark, isDeleted                                bool
		numberShared                                         int
		created, updated                                     time.Time
	)
	err := s.Scan(&id, &uriAddress, &title, &description, &userID,
		&isBookmark, &tagsJSON, &numberShared, &isDeleted, &created, &updated)
	if err != nil {
		return dompage.Page{}, err
	}

	var tags []string
	_ = json.Unmarshal([]byte(tagsJSON), &tags)

	return dompage.Reconstruct(id, uriAddress, title, description, userID,
		isBookmark, tags, numberShared, isDeleted, created, updated), nil
}

func tagsOrEmpty(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
