package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/oyvindh/stillingsvakt/internal/model"
)

// GetCheckpoint loads the per-source sync checkpoint. A source that has never
// completed a run returns (nil, nil).
func (s *Store) GetCheckpoint(source model.Source) (*model.Checkpoint, error) {
	var cp model.Checkpoint
	var src, lastSync string
	err := s.db.QueryRow(
		"SELECT source, last_sync, cursor, last_outcome, added FROM sync_checkpoints WHERE source = ?",
		string(source)).Scan(&src, &lastSync, &cp.Cursor, &cp.LastOutcome, &cp.Added)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading checkpoint for %s: %w", source, err)
	}

	cp.Source = model.Source(src)
	if cp.LastSync, err = parseTime(lastSync); err != nil {
		return nil, err
	}
	return &cp, nil
}

// SaveCheckpoint upserts the per-source checkpoint in one statement.
func (s *Store) SaveCheckpoint(cp model.Checkpoint) error {
	_, err := s.db.Exec(`INSERT INTO sync_checkpoints
		(source, last_sync, cursor, last_outcome, added) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(source) DO UPDATE SET
			last_sync = excluded.last_sync,
			cursor = excluded.cursor,
			last_outcome = excluded.last_outcome,
			added = excluded.added`,
		string(cp.Source), fmtTime(cp.LastSync), cp.Cursor, cp.LastOutcome, cp.Added)
	if err != nil {
		return fmt.Errorf("saving checkpoint for %s: %w", cp.Source, err)
	}
	return nil
}
