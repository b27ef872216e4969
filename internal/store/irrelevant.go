package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/oyvindh/stillingsvakt/internal/model"
)

// IsIrrelevant reports whether a key was rejected by the classifier before.
// Keys in the cache are skipped by the reconciler and never re-annotated.
func (s *Store) IsIrrelevant(key string) (bool, error) {
	var exists int
	err := s.db.QueryRow("SELECT 1 FROM irrelevant_postings WHERE key = ?", key).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking irrelevant cache for %s: %w", key, err)
	}
	return true, nil
}

// GetIrrelevant loads one irrelevant-cache record. A missing key returns
// (nil, nil).
func (s *Store) GetIrrelevant(key string) (*model.IrrelevantPosting, error) {
	var rec model.IrrelevantPosting
	var source, rejectedAt string
	err := s.db.QueryRow(
		"SELECT key, source, reason, rejected_at FROM irrelevant_postings WHERE key = ?",
		key).Scan(&rec.Key, &source, &rec.Reason, &rejectedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading irrelevant record %s: %w", key, err)
	}

	rec.Source = model.Source(source)
	if rec.RejectedAt, err = parseTime(rejectedAt); err != nil {
		return nil, err
	}
	return &rec, nil
}
