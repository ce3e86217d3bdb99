// Package share persists sharing records, shared annotation copies, and
// recipient-scoped shared pages.
package share

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/renoted/renoted/internal/domain"
	domshare "github.com/renoted/renoted/internal/domain/share"
)

const sharedAnnColumns = `id, sharingid, userid, sharedby_userid,
	text, text_rendered, tags, shared,
	uriaddress, uriaddress_norm, selectors, video_markers, audio_markers,
	title, kind, uriid, extra, created, updated`

// Repo implements the share repository over SQLite.
type Repo struct {
	db *sql.DB
}

// New creates a share repository.
func New(db *sql.DB) *Repo {
	return &Repo{db: db}
}

// Share records one annotation shared to one recipient, atomically:
// a Sharing keyed on (annotationid, sharedto_email), the SharedAnnotation
// copy keyed on the surviving sharing id, and the recipient's SharedPage
// keyed on (uriaddress, userid). Re-sharing updates all three in place.
// The returned SharedAnnotation carries the surviving ids.
func (r *Repo) Share(
	ctx context.Context,
	sharing *domshare.Sharing,
	ann *domshare.SharedAnnotation,
	pg *domshare.SharedPage,
) (domshare.SharedAnnotation, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domshare.SharedAnnotation{}, fmt.Errorf("begin share tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sharings (id, annotationid, sharedby_userid, sharedto_user, sharedto_email, isshared, created, updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(annotationid, sharedto_email) DO UPDATE SET
			sharedto_user = excluded.sharedto_user,
			isshared      = excluded.isshared,
			updated       = excluded.updated`,
		sharing.ID, sharing.AnnotationID, sharing.SharedByUserID,
		sharing.SharedToUsername, sharing.SharedToEmail, sharing.IsShared,
		sharing.Created, sharing.Updated,
	)
	if err != nil {
		return domshare.SharedAnnotation{}, fmt.Errorf("upsert sharing: %w", err)
	}

	var sharingID string
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM sharings WHERE annotationid = ? AND sharedto_email = ?`,
		sharing.AnnotationID, sharing.SharedToEmail,
	).Scan(&sharingID)
	if err != nil {
		return domshare.SharedAnnotation{}, fmt.Errorf("resolve sharing id: %w", err)
	}

	pageID, err := upsertSharedPage(ctx, tx, pg)
	if err != nil {
		return domshare.SharedAnnotation{}, err
	}

	lists, err := marshalLists(ann)
	if err != nil {
		return domshare.SharedAnnotation{}, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sharedannotations (`+sharedAnnColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(sharingid) DO UPDATE SET
			text            = excluded.text,
			text_rendered   = excluded.text_rendered,
			tags            = excluded.tags,
			shared          = excluded.shared,
			selectors       = excluded.selectors,
			video_markers   = excluded.video_markers,
			audio_markers   = excluded.audio_markers,
			title           = excluded.title,
			extra           = excluded.extra,
			updated         = excluded.updated`,
		ann.ID, sharingID, ann.UserID, ann.SharedByUserID,
		ann.Text, ann.TextRendered, lists.Tags, ann.Shared,
		ann.TargetURI, ann.TargetURINorm, lists.Selectors, lists.VideoMarkers, lists.AudioMarkers,
		ann.Title, ann.Kind, pageID, lists.Extra, ann.Created, ann.Updated,
	)
	if err != nil {
		return domshare.SharedAnnotation{}, fmt.Errorf("upsert shared annotation: %w", err)
	}

	var stored domshare.SharedAnnotation
	row := tx.QueryRowContext(ctx,
		`SELECT `+sharedAnnColumns+` FROM sharedannotations WHERE sharingid = ?`, sharingID)
	stored, err = scanSharedAnn(row)
	if err != nil {
		return domshare.SharedAnnotation{}, fmt.Errorf("reload shared annotation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return domshare.SharedAnnotation{}, fmt.Errorf("commit share tx: %w", err)
	}
	return stored, nil
}

func upsertSharedPage(ctx context.Context, tx *sql.Tx, pg *domshare.SharedPage) (string, error) {
	tags, err := json.Marshal(tagsOrEmpty(pg.Tags))
	if err != nil {
		return "", fmt.Errorf("marshal shared page tags: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sharedpages (id, uriaddress, title, description, userid, tags, created, updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(uriaddress, userid) DO UPDATE SET
			title   = CASE WHEN excluded.title <> '' THEN excluded.title ELSE sharedpages.title END,
			updated = excluded.updated`,
		pg.ID, pg.URIAddress, pg.Title, pg.Description, pg.UserID,
		string(tags), pg.Created, pg.Updated,
	)
	if err != nil {
		return "", fmt.Errorf("upsert shared page: %w", err)
	}

	var id string
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM sharedpages WHERE uriaddress = ? AND userid = ?`,
		pg.URIAddress, pg.UserID,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("resolve shared page id: %w", err)
	}
	return id, nil
}

// Unshare removes the shared copy and its sharing record.
func (r *Repo) Unshare(ctx context.Context, sharedAnnotationID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin unshare tx: %w", err)
	}
	defer tx.Rollback()

	var sharingID string
	err = tx.QueryRowContext(ctx,
		`SELECT sharingid FROM sharedannotations WHERE id = ?`, sharedAnnotationID,
	).Scan(&sharingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrSharingNotFound
		}
		return fmt.Errorf("resolve sharing for %s: %w", sharedAnnotationID, err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM sharedannotations WHERE id = ?`, sharedAnnotationID); err != nil {
		return fmt.Errorf("delete shared annotation %s: %w", sharedAnnotationID, err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM sharings WHERE id = ?`, sharingID); err != nil {
		return fmt.Errorf("delete sharing %s: %w", sharingID, err)
	}

	return tx.Commit()
}

// GetShared returns one shared annotation copy.
func (r *Repo) GetShared(ctx context.Context, id string) (domshare.SharedAnnotation, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sharedAnnColumns+` FROM sharedannotations WHERE id = ?`, id)
	ann, err := scanSharedAnn(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domshare.SharedAnnotation{}, domain.ErrAnnotationNotFound
		}
		return domshare.SharedAnnotation{}, fmt.Errorf("get shared annotation %s: %w", id, err)
	}
	return ann, nil
}

// FetchSharedByIDs bulk-loads shared annotation copies keyed by id.
func (r *Repo) FetchSharedByIDs(ctx context.Context, ids []string) (map[string]domshare.SharedAnnotation, error) {
	if len(ids) == 0 {
		return map[string]domshare.SharedAnnotation{}, nil
	}

	placeholders := strings.Repeat("?,", len(ids)-1) + "?"
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sharedAnnColumns+` FROM sharedannotations WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch shared annotations: %w", err)
	}
	defer rows.Close()

	out := make(map[string]domshare.SharedAnnotation, len(ids))
	for rows.Next() {
		ann, err := scanSharedAnn(rows)
		if err != nil {
			return nil, err
		}
		out[ann.ID] = ann
	}
	return out, rows.Err()
}

// FetchSharedByUser returns everything shared to one recipient, newest first.
func (r *Repo) FetchSharedByUser(ctx context.Context, userID string, limit, offset int) ([]domshare.SharedAnnotation, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sharedAnnColumns+` FROM sharedannotations
		 WHERE userid = ? ORDER BY created DESC LIMIT ? OFFSET ?`,
		userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("fetch shared annotations for %s: %w", userID, err)
	}
	defer rows.Close()

	var out []domshare.SharedAnnotation
	for rows.Next() {
		ann, err := scanSharedAnn(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ann)
	}
	return out, rows.Err()
}

// FetchAllShared streams every shared annotation copy, for bulk reindexing.
func (r *Repo) FetchAllShared(ctx context.Context) ([]domshare.SharedAnnotation, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sharedAnnColumns+` FROM sharedannotations ORDER BY created ASC`)
	if err != nil {
		return nil, fmt.Errorf("fetch all shared annotations: %w", err)
	}
	defer rows.Close()

	var out []domshare.SharedAnnotation
	for rows.Next() {
		ann, err := scanSharedAnn(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ann)
	}
	return out, rows.Err()
}

// GetSharedPage returns the recipient's shared page for a URI, when one
// exists. Search uses it to decide whether shared results apply.
func (r *Repo) GetSharedPage(ctx context.Context, uriAddress, userID string) (domshare.SharedPage, error) {
	var (
		pg       domshare.SharedPage
		tagsJSON string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, uriaddress, title, description, userid, tags, created, updated
		 FROM sharedpages WHERE uriaddress = ? AND userid = ?`,
		uriAddress, userID,
	).Scan(&pg.ID, &pg.URIAddress, &pg.Title, &pg.Description, &pg.UserID,
		&tagsJSON, &pg.Created, &pg.Updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domshare.SharedPage{}, domain.ErrPageNotFound
		}
		return domshare.SharedPage{}, fmt.Errorf("get shared page: %w", err)
	}
	_ = json.Unmarshal([]byte(tagsJSON), &pg.Tags)
	return pg, nil
}

// FetchSharedPagesByIDs bulk-loads shared pages keyed by id, for bucketing
// shared search results.
func (r *Repo) FetchSharedPagesByIDs(ctx context.Context, ids []string) (map[string]domshare.SharedPage, error) {
	if len(ids) == 0 {
		return map[string]domshare.SharedPage{}, nil
	}

	placeholders := strings.Repeat("?,", len(ids)-1) + "?"
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, uriaddress, title, description, userid, tags, created, updated
		 FROM sharedpages WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch shared pages: %w", err)
	}
	defer rows.Close()

	out := make(map[string]domshare.SharedPage, len(ids))
	for rows.Next() {
		var (
			pg       domshare.SharedPage
			tagsJSON string
		)
		if err := rows.Scan(&pg.ID, &pg.URIAddress, &pg.Title, &pg.Description,
			&pg.UserID, &tagsJSON, &pg.Created, &pg.Updated); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(tagsJSON), &pg.Tags)
		out[pg.ID] = pg
	}
	return out, rows.Err()
}

func scanSharedAnn(s interface{ Scan(...any) error }) (domshare.SharedAnnotation, error) {
	var (
		ann                                                  domshare.SharedAnnotation
		tags, selectors, videoMarkers, audioMarkers, extraJS string
	)
	err := s.Scan(
		&ann.ID, &ann.SharingID, &ann.UserID, &ann.SharedByUserID,
		&ann.Text, &ann.TextRendered, &tags, &ann.Shared,
		&ann.TargetURI, &ann.TargetURINorm, &selectors, &videoMarkers, &audioMarkers,
		&ann.Title, &ann.Kind, &ann.URIID, &extraJS, &ann.Created, &ann.Updated,
	)
	if err != nil {
		return domshare.SharedAnnotation{}, err
	}
	_ = json.Unmarshal([]byte(tags), &ann.Tags)
	_ = json.Unmarshal([]byte(selectors), &ann.Selectors)
	_ = json.Unmarshal([]byte(videoMarkers), &ann.VideoMarkers)
	_ = json.Unmarshal([]byte(audioMarkers), &ann.AudioMarkers)
	_ = json.Unmarshal([]byte(extraJS), &ann.Extra)
	return ann, nil
}

type sharedAnnLists struct {
	Tags         string
	Selectors    string
	VideoMarkers string
	AudioMarkers string
	Extra        string
}

func marshalLists(ann *domshare.SharedAnnotation) (sharedAnnLists, error) {
	var (
		out sharedAnnLists
		err error
	)
	if out.Tags, err = marshalJSON(ann.Tags, "[]"); err != nil {
		return out, fmt.Errorf("marshal tags: %w", err)
	}
	if out.Selectors, err = marshalJSON(ann.Selectors, "[]"); err != nil {
		return out, fmt.Errorf("marshal selectors: %w", err)
	}
	if out.VideoMarkers, err = marshalJSON(ann.VideoMarkers, "[]"); err != nil {
		return out, fmt.Errorf("marshal video markers: %w", err)
	}
	if out.AudioMarkers, err = marshalJSON(ann.AudioMarkers, "[]"); err != nil {
		return out, fmt.Errorf("marshal audio markers: %w", err)
	}
	if out.Extra, err = marshalJSON(ann.Extra, "{}"); err != nil {
		return out, fmt.Errorf("marshal extra: %w", err)
	}
	return out, nil
}

func marshalJSON(v any, empty string) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	if s := string(data); s != "null" {
		return s, nil
	}
	return empty, nil
}

func tagsOrEmpty(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
