/*
store.go - Persistence interfaces for requests and disciplinary records

PURPOSE:
  Defines the interface between the domain logic and the database.
  Different implementations can use SQLite or in-memory storage.

LAYOUT CONTRACT:
  One logical collection per request kind plus one for disciplinary
  records. The kind is part of every request operation so Leave and OD
  stay independent (including for conflict checks).

READ PATHS:
  Listing operations return reverse-chronological order (newest
  CreatedAt first). ListByDay exists so the aggregation snapshot
  doesn't scan whole tables.

WRITE-PATH COORDINATION:
  Insert runs the overlap gate in its own critical section; Update is
  a compare-and-swap on UpdatedAt. Concurrent writers over the same
  request or range are detected, never silently merged.

AGGREGATION IS READ-ONLY:
  The digest pipeline only ever uses ListByDay. Requests are mutated by
  approver decisions and owner deletion, nothing else.

IMPLEMENTATIONS:
  - absence/store/memory.go: In-memory for testing/dev
  - store/sqlite/sqlite.go:  Production SQLite

SEE ALSO:
  - service.go: the only writer through these interfaces
  - digest/pipeline.go: the read-only consumer
*/
package absence

import (
	"context"
	"time"
)

// =============================================================================
// REQUEST STORE
// =============================================================================

// RequestStore persists Leave and OD requests.
type RequestStore interface {
	// Insert persists a new request. The id must be unused. The overlap
	// gate runs inside the same critical section as the write: when an
	// existing same-kind request for the student overlaps the new
	// range, Insert returns a *ConflictError and writes nothing. Two
	// concurrent creations over the same range therefore admit exactly
	// one winner.
	Insert(ctx context.Context, req *Request) error

	// Update replaces a persisted request in one write, but only while
	// its stored UpdatedAt still equals expected (compare-and-swap).
	// Returns ErrStaleUpdate when another writer got there first, so a
	// concurrent decision is retried against fresh state instead of
	// silently overwritten. Decision application also relies on this
	// being a single atomic swap so a combined-role decision can never
	// be observed half-applied.
	Update(ctx context.Context, req *Request, expected time.Time) error

	// Get returns the request or ErrNotFound.
	Get(ctx context.Context, kind RequestKind, id RequestID) (*Request, error)

	// Delete removes the request or returns ErrNotFound.
	Delete(ctx context.Context, kind RequestKind, id RequestID) error

	// ListByStudent returns a student's requests, newest first.
	ListByStudent(ctx context.Context, kind RequestKind, studentID StudentID) ([]*Request, error)

	// ListByApprover returns requests routed through a staff member in
	// any stage, newest first.
	ListByApprover(ctx context.Context, kind RequestKind, staffID StaffID) ([]*Request, error)

	// ListBySection returns requests for one section, newest first.
	ListBySection(ctx context.Context, kind RequestKind, sectionID string) ([]*Request, error)

	// ListByDay returns requests whose FromDate falls on the given day.
	// This is the aggregation snapshot read.
	ListByDay(ctx context.Context, kind RequestKind, day Date) ([]*Request, error)
}

// =============================================================================
// DISCIPLINARY STORE
// =============================================================================

// DisciplinaryStore persists defaulter records.
type DisciplinaryStore interface {
	Insert(ctx context.Context, rec *DisciplinaryRecord) error

	// ListByStudent returns a student's records, newest first.
	ListByStudent(ctx context.Context, studentID StudentID) ([]*DisciplinaryRecord, error)

	// ListByDay returns records whose ObservedAt falls on the given day.
	ListByDay(ctx context.Context, day Date) ([]*DisciplinaryRecord, error)
}
