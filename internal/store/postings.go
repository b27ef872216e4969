package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oyvindh/stillingsvakt/internal/model"
)

const postingColumns = `id, key, source, title, company, location, url, job_type,
	keyword, description, summary, deadline, published, first_seen, last_checked,
	status, favorite, hidden, applied, applied_at, notes`

// GetByKey loads one catalogue entry. A missing key returns (nil, nil).
func (s *Store) GetByKey(key string) (*model.Posting, error) {
	row := s.db.QueryRow("SELECT "+postingColumns+" FROM postings WHERE key = ?", key)
	p, err := scanPosting(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading posting %s: %w", key, err)
	}
	return p, nil
}

// Insert adds a new catalogue entry and fills in its row id. The key must not
// already exist.
func (s *Store) Insert(p *model.Posting) error {
	res, err := s.db.Exec(`INSERT INTO postings
		(key, source, title, company, location, url, job_type, keyword,
		 description, summary, deadline, published, first_seen, last_checked, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Key, string(p.Source), p.Title, p.Company, p.Location, p.URL, p.JobType,
		p.Keyword, p.Description, p.Summary, fmtTimePtr(p.Deadline),
		fmtTimePtr(p.Published), fmtTime(p.FirstSeen), fmtTime(p.LastChecked),
		string(p.Status))
	if err != nil {
		return fmt.Errorf("inserting posting %s: %w", p.Key, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading inserted id for %s: %w", p.Key, err)
	}
	p.ID = id
	return nil
}

// UpdateObserved refreshes the source-owned fields of an existing entry after
// it was seen again upstream. User-interaction fields and the summary are
// never touched; status is written as given so the caller can promote an
// INACTIVE entry back to ACTIVE.
func (s *Store) UpdateObserved(p *model.Posting) error {
	_, err := s.db.Exec(`UPDATE postings SET
		title = ?, company = ?, location = ?, url = ?, job_type = ?, keyword = ?,
		description = ?, deadline = ?, published = ?, last_checked = ?, status = ?
		WHERE key = ?`,
		p.Title, p.Company, p.Location, p.URL, p.JobType, p.Keyword,
		p.Description, fmtTimePtr(p.Deadline), fmtTimePtr(p.Published),
		fmtTime(p.LastChecked), string(p.Status), p.Key)
	if err != nil {
		return fmt.Errorf("updating posting %s: %w", p.Key, err)
	}
	return nil
}

// SetSummary stores the generated summary for one entry.
func (s *Store) SetSummary(key, summary string) error {
	_, err := s.db.Exec("UPDATE postings SET summary = ? WHERE key = ?", summary, key)
	if err != nil {
		return fmt.Errorf("storing summary for %s: %w", key, err)
	}
	return nil
}

// MoveToIrrelevant removes an entry from the catalogue and records its key in
// the irrelevant cache, atomically, so a key is never in both tables. An
// already-recorded key keeps its original reason.
func (s *Store) MoveToIrrelevant(key string, source model.Source, reason string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("starting irrelevant move for %s: %w", key, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM postings WHERE key = ?", key); err != nil {
		return fmt.Errorf("removing posting %s: %w", key, err)
	}
	_, err = tx.Exec(`INSERT OR IGNORE INTO irrelevant_postings
		(key, source, reason, rejected_at) VALUES (?, ?, ?, ?)`,
		key, string(source), reason, fmtTime(time.Now()))
	if err != nil {
		return fmt.Errorf("recording irrelevant posting %s: %w", key, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing irrelevant move for %s: %w", key, err)
	}
	return nil
}

// DeactivateStale marks the source's ACTIVE entries not observed since cutoff
// as INACTIVE and returns how many were affected.
func (s *Store) DeactivateStale(source model.Source, cutoff time.Time) (int64, error) {
	res, err := s.db.Exec(`UPDATE postings SET status = ?
		WHERE source = ? AND status = ? AND last_checked < ?`,
		string(model.StatusInactive), string(source), string(model.StatusActive),
		fmtTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("deactivating stale %s postings: %w", source, err)
	}
	return res.RowsAffected()
}

// ExpireOverdue marks every entry whose deadline has passed as EXPIRED,
// regardless of its current status, and returns how many were affected.
func (s *Store) ExpireOverdue(now time.Time) (int64, error) {
	res, err := s.db.Exec(`UPDATE postings SET status = ?
		WHERE deadline IS NOT NULL AND deadline < ? AND status != ?`,
		string(model.StatusExpired), fmtTime(now), string(model.StatusExpired))
	if err != nil {
		return 0, fmt.Errorf("expiring overdue postings: %w", err)
	}
	return res.RowsAffected()
}

// Sweep hard-deletes EXPIRED and INACTIVE entries last observed before
// cutoff, so age counts from when the entry dropped out of observation, not
// from when it was first seen. Entries the user marked favorite or applied
// are never deleted.
func (s *Store) Sweep(cutoff time.Time) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM postings
		WHERE status IN (?, ?) AND last_checked < ?
		AND favorite = 0 AND applied = 0`,
		string(model.StatusExpired), string(model.StatusInactive), fmtTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("sweeping old postings: %w", err)
	}
	return res.RowsAffected()
}

// ListFilter narrows a List call. Nil pointer fields mean "do not filter".
type ListFilter struct {
	Status   model.Status
	Source   model.Source
	Keyword  string
	Favorite *bool
	Applied  *bool
	Hidden   *bool
	Search   string // case-insensitive match against title, company, description
	Limit    int
	Offset   int
}

// List returns catalogue entries matching f, newest first.
func (s *Store) List(f ListFilter) ([]model.Posting, error) {
	var where []string
	var args []any

	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.Source != "" {
		where = append(where, "source = ?")
		args = append(args, string(f.Source))
	}
	if f.Keyword != "" {
		where = append(where, "keyword = ?")
		args = append(args, f.Keyword)
	}
	if f.Favorite != nil {
		where = append(where, "favorite = ?")
		args = append(args, boolInt(*f.Favorite))
	}
	if f.Applied != nil {
		where = append(where, "applied = ?")
		args = append(args, boolInt(*f.Applied))
	}
	if f.Hidden != nil {
		where = append(where, "hidden = ?")
		args = append(args, boolInt(*f.Hidden))
	}
	if f.Search != "" {
		where = append(where, "(title LIKE ? OR company LIKE ? OR description LIKE ?)")
		pattern := "%" + f.Search + "%"
		args = append(args, pattern, pattern, pattern)
	}

	query := "SELECT " + postingColumns + " FROM postings"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY first_seen DESC"
	if f.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, f.Limit, f.Offset)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing postings: %w", err)
	}
	defer rows.Close()

	var postings []model.Posting
	for rows.Next() {
		p, err := scanPosting(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning posting row: %w", err)
		}
		postings = append(postings, *p)
	}
	return postings, rows.Err()
}

// UserFields is a partial update of the user-owned columns. Nil fields are
// left unchanged.
type UserFields struct {
	Favorite *bool
	Hidden   *bool
	Applied  *bool
	Notes    *string
}

// UpdateUserFields applies the dashboard-owned mutations to one entry.
// Setting applied stamps applied_at; clearing it clears the stamp.
func (s *Store) UpdateUserFields(key string, f UserFields) error {
	var set []string
	var args []any

	if f.Favorite != nil {
		set = append(set, "favorite = ?")
		args = append(args, boolInt(*f.Favorite))
	}
	if f.Hidden != nil {
		set = append(set, "hidden = ?")
		args = append(args, boolInt(*f.Hidden))
	}
	if f.Applied != nil {
		set = append(set, "applied = ?", "applied_at = ?")
		if *f.Applied {
			args = append(args, 1, fmtTime(time.Now()))
		} else {
			args = append(args, 0, nil)
		}
	}
	if f.Notes != nil {
		set = append(set, "notes = ?")
		args = append(args, *f.Notes)
	}
	if len(set) == 0 {
		return nil
	}

	args = append(args, key)
	res, err := s.db.Exec("UPDATE postings SET "+strings.Join(set, ", ")+" WHERE key = ?", args...)
	if err != nil {
		return fmt.Errorf("updating user fields for %s: %w", key, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking user-field update for %s: %w", key, err)
	}
	if affected == 0 {
		return fmt.Errorf("no posting with key %s", key)
	}
	return nil
}

// Stats aggregates the catalogue for the stats command.
type Stats struct {
	Total      int
	ByStatus   map[model.Status]int
	BySource   map[model.Source]int
	Favorites  int
	Applied    int
	NewLast7d  int // first seen within the last 7 days
	Irrelevant int
}

// Stats returns aggregate counts over the catalogue and the irrelevant cache.
func (s *Store) Stats() (*Stats, error) {
	st := &Stats{
		ByStatus: make(map[model.Status]int),
		BySource: make(map[model.Source]int),
	}

	rows, err := s.db.Query("SELECT status, COUNT(*) FROM postings GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("counting by status: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scanning status count: %w", err)
		}
		st.ByStatus[model.Status(status)] = count
		st.Total += count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	srcRows, err := s.db.Query("SELECT source, COUNT(*) FROM postings GROUP BY source")
	if err != nil {
		return nil, fmt.Errorf("counting by source: %w", err)
	}
	defer srcRows.Close()
	for srcRows.Next() {
		var source string
		var count int
		if err := srcRows.Scan(&source, &count); err != nil {
			return nil, fmt.Errorf("scanning source count: %w", err)
		}
		st.BySource[model.Source(source)] = count
	}
	if err := srcRows.Err(); err != nil {
		return nil, err
	}

	err = s.db.QueryRow("SELECT COUNT(*) FROM postings WHERE favorite = 1").Scan(&st.Favorites)
	if err != nil {
		return nil, fmt.Errorf("counting favorites: %w", err)
	}
	err = s.db.QueryRow("SELECT COUNT(*) FROM postings WHERE applied = 1").Scan(&st.Applied)
	if err != nil {
		return nil, fmt.Errorf("counting applied: %w", err)
	}
	err = s.db.QueryRow("SELECT COUNT(*) FROM postings WHERE first_seen >= ?",
		fmtTime(time.Now().Add(-7*24*time.Hour))).Scan(&st.NewLast7d)
	if err != nil {
		return nil, fmt.Errorf("counting recent postings: %w", err)
	}
	err = s.db.QueryRow("SELECT COUNT(*) FROM irrelevant_postings").Scan(&st.Irrelevant)
	if err != nil {
		return nil, fmt.Errorf("counting irrelevant cache: %w", err)
	}

	return st, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPosting(row rowScanner) (*model.Posting, error) {
	var p model.Posting
	var source, status, firstSeen, lastChecked string
	var deadline, published, appliedAt sql.NullString
	var favorite, hidden, applied int

	err := row.Scan(&p.ID, &p.Key, &source, &p.Title, &p.Company, &p.Location,
		&p.URL, &p.JobType, &p.Keyword, &p.Description, &p.Summary,
		&deadline, &published, &firstSeen, &lastChecked, &status,
		&favorite, &hidden, &applied, &appliedAt, &p.Notes)
	if err != nil {
		return nil, err
	}

	p.Source = model.Source(source)
	p.Status = model.Status(status)
	p.Favorite = favorite != 0
	p.Hidden = hidden != 0
	p.Applied = applied != 0

	if p.FirstSeen, err = parseTime(firstSeen); err != nil {
		return nil, err
	}
	if p.LastChecked, err = parseTime(lastChecked); err != nil {
		return nil, err
	}
	if p.Deadline, err = parseTimePtr(deadline); err != nil {
		return nil, err
	}
	if p.Published, err = parseTimePtr(published); err != nil {
		return nil, err
	}
	if p.AppliedAt, err = parseTimePtr(appliedAt); err != nil {
		return nil, err
	}

	return &p, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
