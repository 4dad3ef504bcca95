/*
conflict.go - Date range overlap gate

PURPOSE:
  A new request is rejected when its inclusive date range overlaps an
  existing request of the SAME kind for the SAME student. A Leave and
  an OD on the same day do not conflict with each other.

OVERLAP TEST:
  [a1,a2] and [b1,b2] overlap iff a1 <= b2 && b1 <= a2 (inclusive
  bounds). See date.go RangesOverlap.

WHERE THE GATE RUNS:
  Inside the store's Insert, in the same critical section as the write
  (memory: one lock hold; sqlite: one transaction). Checking first and
  inserting second as two store calls would let two concurrent
  creations both pass the check and both land.

NO AUTO-RETRY:
  On conflict the caller gets ErrConflict with the blocking range. The
  student has to resolve the existing request (e.g. delete it while
  pending) before resubmitting; the engine never retries on its own.
*/
package absence

// FindOverlap returns the first of candidates whose inclusive date
// range overlaps [from, to], or nil when the range is free. Callers
// pre-filter candidates to one student and kind.
func FindOverlap(candidates []*Request, from, to Date) *Request {
	for _, req := range candidates {
		if RangesOverlap(req.FromDate, req.ToDate, from, to) {
			return req
		}
	}
	return nil
}

// NewConflictError names the request blocking an insert.
func NewConflictError(blocker *Request) *ConflictError {
	return &ConflictError{
		StudentID:    blocker.StudentID,
		Kind:         blocker.Kind,
		ExistingID:   blocker.ID,
		ExistingFrom: blocker.FromDate,
		ExistingTo:   blocker.ToDate,
	}
}
