package model

import (
	"context"
	"time"
)

// Source identifies which upstream system a posting came from.
type Source string

const (
	SourceFinn Source = "FINN" // HTML-scraped listing site
	SourceNav  Source = "NAV"  // token-authenticated JSON feed
)

// Status is the lifecycle classification of a catalogue entry.
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusInactive Status = "INACTIVE"
	StatusExpired  Status = "EXPIRED"
)

// Candidate is the transient, normalized shape an adapter produces for one
// upstream posting. It is never persisted directly; the reconciler decides
// whether it becomes a Posting.
type Candidate struct {
	Source       Source
	NativeID     string // provider-issued id (NAV uuid); empty for scraped sources
	URL          string // canonical posting URL
	Title        string
	Company      string
	Location     string
	JobType      string
	Description  string
	Keyword      string // search keyword that surfaced this candidate
	DeadlineRaw  string // free-text application deadline, coerced by the normalizer
	PublishedRaw string // free-text published date
}

// Posting is a long-lived catalogue entry.
type Posting struct {
	ID          int64
	Key         string // identity key: source-qualified native id or normalized URL
	Source      Source
	Title       string
	Company     string
	Location    string
	URL         string
	JobType     string
	Keyword     string
	Description string
	Summary     string // AI-generated; empty when summarization is off or failed
	Deadline    *time.Time
	Published   *time.Time
	FirstSeen   time.Time
	LastChecked time.Time
	Status      Status

	// Owned exclusively by the dashboard API. The pipeline reads them (the
	// retention sweep must spare user-marked rows) but never writes them.
	Favorite  bool
	Hidden    bool
	Applied   bool
	AppliedAt *time.Time
	Notes     string
}

// IrrelevantPosting records a posting the classifier rejected, so it is never
// re-annotated. A key present here is never present in the catalogue.
type IrrelevantPosting struct {
	Key        string
	Source     Source
	Reason     string
	RejectedAt time.Time
}

// Checkpoint is the per-source durable marker of the last successful run.
type Checkpoint struct {
	Source      Source
	LastSync    time.Time
	Cursor      string // API feed cursor; empty for scraped sources
	LastOutcome string // "ok" or "failed"
	Added       int    // postings added by the last successful run
}

// Annotation is the external annotation service's verdict on a new posting.
type Annotation struct {
	Relevant bool
	Reason   string
	Summary  string
}

// SourceAdapter fetches candidate postings from one upstream source. The
// returned sequence need not be exhaustive; adapters cap volume per keyword
// or page to bound run cost.
type SourceAdapter interface {
	Source() Source
	FetchCandidates(ctx context.Context) ([]Candidate, error)
}

// CursorAware is implemented by adapters that resume an incremental feed from
// a cursor. The orchestrator seeds it from the checkpoint before a run and
// harvests it back after a successful one.
type CursorAware interface {
	SetCursor(cursor string)
	Cursor() string
}

// Notifier announces newly catalogued postings after a run.
type Notifier interface {
	Notify(postings []Posting) error
}
