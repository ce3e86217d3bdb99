// Package annotation persists annotations in the relational store.
package annotation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/renoted/renoted/internal/domain"
	domann "github.com/renoted/renoted/internal/domain/annotation"
)

const columns = `id, userid, uriid, uriaddress, uriaddress_norm,
	kind, text, text_rendered,
	tags, selectors, video_markers, audio_markers,
	groupid, shared, extra,
	created, updated`

// Repo implements the annotation repository over SQLite.
type Repo struct {
	db *sql.DB
}

// New creates an annotation repository.
func New(db *sql.DB) *Repo {
	return &Repo{db: db}
}

// Insert stores a new annotation.
func (r *Repo) Insert(ctx context.Context, a *domann.Annotation) error {
	row, err := toRow(a)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO annotations (`+columns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		row.ID, row.UserID, row.URIID, row.URIAddress, row.URINorm,
		row.Kind, row.Text, row.TextRendered,
		row.Tags, row.Selectors, row.VideoMarkers, row.AudioMarkers,
		row.Group, row.Shared, row.Extra,
		row.Created, row.Updated,
	)
	if err != nil {
		return fmt.Errorf("insert annotation %s: %w", a.ID(), err)
	}
	return nil
}

// Update rewrites the mutable columns of an existing annotation.
func (r *Repo) Update(ctx context.Context, a *domann.Annotation) error {
	row, err := toRow(a)
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE annotations SET
			uriaddress = ?, uriaddress_norm = ?,
			kind = ?, text = ?, text_rendered = ?,
			tags = ?, selectors = ?, video_markers = ?, audio_markers = ?,
			groupid = ?, shared = ?, extra = ?,
			updated = ?
		WHERE id = ?`,
		row.URIAddress, row.URINorm,
		row.Kind, row.Text, row.TextRendered,
		row.Tags, row.Selectors, row.VideoMarkers, row.AudioMarkers,
		row.Group, row.Shared, row.Extra,
		row.Updated,
		row.ID,
	)
	if err != nil {
		return fmt.Errorf("update annotation %s: %w", a.ID(), err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrAnnotationNotFound
	}
	return nil
}

// Delete removes an annotation.
func (r *Repo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM annotations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete annotation %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrAnnotationNotFound
	}
	return nil
}

// DeleteByPage removes all annotations attached to a page record. Returns
// the removed ids so search mirrors can be cleaned up.
func (r *Repo) DeleteByPage(ctx context.Context, uriID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM annotations WHERE uriid = ?`, uriID)
	if err != nil {
		return nil, fmt.Errorf("list annotations for page %s: %w", uriID, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(ids) == 0 {
		return nil, nil
	}
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM annotations WHERE uriid = ?`, uriID); err != nil {
		return nil, fmt.Errorf("delete annotations for page %s: %w", uriID, err)
	}
	return ids, nil
}

// Get returns a single annotation by id.
func (r *Repo) Get(ctx context.Context, id string) (domann.Annotation, error) {
	row, err := scanRow(r.db.QueryRowContext(ctx,
		`SELECT `+columns+` FROM annotations WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domann.Annotation{}, domain.ErrAnnotationNotFound
		}
		return domann.Annotation{}, fmt.Errorf("get annotation %s: %w", id, err)
	}
	return row.toDomain(), nil
}

// FetchByIDs bulk-loads annotations. Missing ids are silently absent from
// the result; the caller decides how to treat gaps. Order of the returned
// map carries no meaning.
func (r *Repo) FetchByIDs(ctx context.Context, ids []string) (map[string]domann.Annotation, error) {
	if len(ids) == 0 {
		return map[string]domann.Annotation{}, nil
	}

	placeholders := strings.Repeat("?,", len(ids)-1) + "?"
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+columns+` FROM annotations WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch annotations: %w", err)
	}
	defer rows.Close()

	out := make(map[string]domann.Annotation, len(ids))
	for rows.Next() {
		row, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		out[row.ID] = row.toDomain()
	}
	return out, rows.Err()
}

// FetchByPage returns all annotations of one page record, oldest first.
func (r *Repo) FetchByPage(ctx context.Context, uriID string) ([]domann.Annotation, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+columns+` FROM annotations WHERE uriid = ? ORDER BY created ASC`, uriID)
	if err != nil {
		return nil, fmt.Errorf("fetch annotations for page %s: %w", uriID, err)
	}
	defer rows.Close()

	var out []domann.Annotation
	for rows.Next() {
		row, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row.toDomain())
	}
	return out, rows.Err()
}

// FetchAll streams every annotation, used by bulk reindexing.
func (r *Repo) FetchAll(ctx context.Context) ([]domann.Annotation, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+columns+` FROM annotations ORDER BY created ASC`)
	if err != nil {
		return nil, fmt.Errorf("fetch all annotations: %w", err)
	}
	defer rows.Close()

	var out []domann.Annotation
	for rows.Next() {
		row, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row.toDomain())
	}
	return out, rows.Err()
}
