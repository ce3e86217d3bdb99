// Package sqldb opens the SQLite system of record and applies the schema.
package sqldb

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS annotations (
	id              TEXT PRIMARY KEY,
	userid          TEXT NOT NULL,
	uriid           TEXT NOT NULL,
	uriaddress      TEXT NOT NULL,
	uriaddress_norm TEXT NOT NULL DEFAULT '',
	kind            TEXT NOT NULL DEFAULT 'annotation',
	text            TEXT NOT NULL DEFAULT '',
	text_rendered   TEXT NOT NULL DEFAULT '',
	tags            TEXT NOT NULL DEFAULT '[]',
	selectors       TEXT NOT NULL DEFAULT '[]',
	video_markers   TEXT NOT NULL DEFAULT '[]',
	audio_markers   TEXT NOT NULL DEFAULT '[]',
	groupid         TEXT NOT NULL DEFAULT '__world__',
	shared          INTEGER NOT NULL DEFAULT 0,
	extra           TEXT NOT NULL DEFAULT '{}',
	created         DATETIME NOT NULL,
	updated         DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_annotations_user ON annotations(userid);
CREATE INDEX IF NOT EXISTS idx_annotations_uri  ON annotations(uriid);

CREATE TABLE IF NOT EXISTS pages (
	id           TEXT PRIMARY KEY,
	uriaddress   TEXT NOT NULL,
	title        TEXT NOT NULL DEFAULT '',
	description  TEXT NOT NULL DEFAULT '',
	userid       TEXT NOT NULL,
	isbookmark   INTEGER NOT NULL DEFAULT 0,
	tags         TEXT NOT NULL DEFAULT '[]',
	numbershared INTEGER NOT NULL DEFAULT 0,
	isdeleted    INTEGER NOT NULL DEFAULT 0,
	created      DATETIME NOT NULL,
	updated      DATETIME NOT NULL,
	UNIQUE(uriaddress, userid, isbookmark)
);

CREATE INDEX IF NOT EXISTS idx_pages_user ON pages(userid);

CREATE TABLE IF NOT EXISTS sharings (
	id              TEXT PRIMARY KEY,
	annotationid    TEXT NOT NULL,
	sharedby_userid TEXT NOT NULL,
	sharedto_user   TEXT NOT NULL DEFAULT '',
	sharedto_email  TEXT NOT NULL,
	isshared        INTEGER NOT NULL DEFAULT 1,
	created         DATETIME NOT NULL,
	updated         DATETIME NOT NULL,
	UNIQUE(annotationid, sharedto_email)
);

CREATE TABLE IF NOT EXISTS sharedannotations (
	id              TEXT PRIMARY KEY,
	sharingid       TEXT NOT NULL UNIQUE,
	userid          TEXT NOT NULL,
	sharedby_userid TEXT NOT NULL,
	text            TEXT NOT NULL DEFAULT '',
	text_rendered   TEXT NOT NULL DEFAULT '',
	tags            TEXT NOT NULL DEFAULT '[]',
	shared          INTEGER NOT NULL DEFAULT 1,
	uriaddress      TEXT NOT NULL,
	uriaddress_norm TEXT NOT NULL DEFAULT '',
	selectors       TEXT NOT NULL DEFAULT '[]',
	video_markers   TEXT NOT NULL DEFAULT '[]',
	audio_markers   TEXT NOT NULL DEFAULT '[]',
	title           TEXT NOT NULL DEFAULT '',
	kind            TEXT NOT NULL DEFAULT 'annotation',
	uriid           TEXT NOT NULL,
	extra           TEXT NOT NULL DEFAULT '{}',
	created         DATETIME NOT NULL,
	updated         DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sharedannotations_user ON sharedannotations(userid);
CREATE INDEX IF NOT EXISTS idx_sharedannotations_uri  ON sharedannotations(uriid);

CREATE TABLE IF NOT EXISTS sharedpages (
	id          TEXT PRIMARY KEY,
	uriaddress  TEXT NOT NULL,
	title       TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	userid      TEXT NOT NULL,
	tags        TEXT NOT NULL DEFAULT '[]',
	created     DATETIME NOT NULL,
	updated     DATETIME NOT NULL,
	UNIQUE(uriaddress, userid)
);
`

// Open opens (or creates) the SQLite database and applies the schema.
func Open(path string) (*sql.DB, error) {
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("sqldb: open: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqldb: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqldb: apply schema: %w", err)
	}
	return conn, nil
}

// OpenForTest opens an in-memory database with the schema applied.
func OpenForTest(ctx context.Context) (*sql.DB, error) {
	conn, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, err
	}
	if _, err := conn.ExecContext(ctx, schemaSQL); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}
