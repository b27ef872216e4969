package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Store persists the posting catalogue, the irrelevant cache and the
// per-source sync checkpoints in a SQLite database. Every statement is a
// single-row operation committed independently, so a crash mid-run loses at
// most the row being written.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS postings (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	key          TEXT NOT NULL UNIQUE,
	source       TEXT NOT NULL,
	title        TEXT NOT NULL,
	company      TEXT NOT NULL DEFAULT '',
	location     TEXT NOT NULL DEFAULT '',
	url          TEXT NOT NULL DEFAULT '',
	job_type     TEXT NOT NULL DEFAULT '',
	keyword      TEXT NOT NULL DEFAULT '',
	description  TEXT NOT NULL DEFAULT '',
	summary      TEXT NOT NULL DEFAULT '',
	deadline     TEXT,
	published    TEXT,
	first_seen   TEXT NOT NULL,
	last_checked TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'ACTIVE',
	favorite     INTEGER NOT NULL DEFAULT 0,
	hidden       INTEGER NOT NULL DEFAULT 0,
	applied      INTEGER NOT NULL DEFAULT 0,
	applied_at   TEXT,
	notes        TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_postings_status ON postings(status);
CREATE INDEX IF NOT EXISTS idx_postings_source ON postings(source);

CREATE TABLE IF NOT EXISTS irrelevant_postings (
	key         TEXT PRIMARY KEY,
	source      TEXT NOT NULL,
	reason      TEXT NOT NULL DEFAULT '',
	rejected_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS sync_checkpoints (
	source       TEXT PRIMARY KEY,
	last_sync    TEXT NOT NULL,
	cursor       TEXT NOT NULL DEFAULT '',
	last_outcome TEXT NOT NULL DEFAULT 'ok',
	added        INTEGER NOT NULL DEFAULT 0
);
`

// New opens (or creates) a SQLite database at dbPath and ensures the schema
// exists.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Verify the connection is alive.
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Timestamps are stored as RFC3339 UTC strings. The fixed-width "Z" form
// keeps lexicographic and chronological order identical, so SQL range
// comparisons on the text columns are correct.
func fmtTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func fmtTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return fmtTime(*t)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing stored timestamp %q: %w", s, err)
	}
	return t, nil
}

func parseTimePtr(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
