/*
service.go - Request lifecycle orchestration

PURPOSE:
  The single writer over the request stores. Wires together the
  conflict gate, the state machine, and the notification side effect.

REQUEST FLOW:
  Create:   validate -> seed decisions -> insert (the store runs the
            overlap gate inside the insert's critical section)
  Decision: load -> apply on a copy -> ONE compare-and-swap store
            write, retried on ErrStaleUpdate -> async notify
  Delete:   owner + fully-pending check -> delete

SIDE EFFECT ORDERING:
  The decision is persisted before its notification is dispatched, and
  a notification failure never rolls the decision back (it is logged
  by the async dispatcher and goes nowhere else).

IDEMPOTENT RE-DECISION:
  Re-approving an already-approved stage is a state no-op but still
  re-sends the requester notification. That mirrors the long-standing
  behavior users rely on and is covered by a test as a documented
  property, not an accident.

SEE ALSO:
  - status.go: the state machine ApplyDecision delegates to
  - conflict.go: the overlap predicate the stores run on insert
  - notify/async.go: fire-and-forget delivery
*/
package absence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/campuskit/absence-engine/directory"
	"github.com/campuskit/absence-engine/notify"
)

// =============================================================================
// SERVICE
// =============================================================================

// Service orchestrates the request lifecycle.
type Service struct {
	Requests RequestStore
	Records  DisciplinaryStore
	Resolver directory.Resolver
	Notifier *notify.Async

	// Now is injectable for deterministic tests.
	Now func() time.Time
}

func NewService(requests RequestStore, records DisciplinaryStore, resolver directory.Resolver, notifier *notify.Async) *Service {
	return &Service{
		Requests: requests,
		Records:  records,
		Resolver: resolver,
		Notifier: notifier,
		Now:      time.Now,
	}
}

// =============================================================================
// CREATE
// =============================================================================

// CreateInput carries everything needed to open a request.
type CreateInput struct {
	Kind        RequestKind
	StudentID   StudentID
	StudentName string
	Org         OrgPath

	FromDate Date
	ToDate   Date
	HalfDay  bool

	MentorID        StaffID
	ClassInchargeID StaffID
	HODID           StaffID

	Reason  string
	Medical bool

	ODType    ODType
	EventName string
	Venue     string

	// PreApproved seeds every active stage approved: the
	// staff-initiated emergency path.
	PreApproved bool
}

func (in *CreateInput) validate() error {
	switch {
	case !in.Kind.Valid():
		return &ValidationError{Field: "kind", Message: "must be leave or od"}
	case in.StudentID == "":
		return &ValidationError{Field: "student_id", Message: "required"}
	case in.FromDate.IsZero() || in.ToDate.IsZero():
		return &ValidationError{Field: "from_date", Message: "date range required"}
	case in.ToDate.Before(in.FromDate):
		return &ValidationError{Field: "to_date", Message: "must not precede from_date"}
	case in.Reason == "":
		return &ValidationError{Field: "reason", Message: "required"}
	}
	if in.Kind == KindOD && in.ODType != ODInternal && in.ODType != ODExternal {
		return &ValidationError{Field: "od_type", Message: "must be internal or external"}
	}
	return nil
}

// CreateRequest validates and persists a new request. The store runs
// the overlap gate atomically with the insert, so ErrConflict means
// nothing was written and a free range means exactly one insert won.
func (s *Service) CreateRequest(ctx context.Context, in CreateInput) (*Request, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	now := s.Now()
	req := &Request{
		ID:              RequestID(uuid.NewString()),
		Kind:            in.Kind,
		StudentID:       in.StudentID,
		StudentName:     in.StudentName,
		Org:             in.Org,
		FromDate:        in.FromDate,
		ToDate:          in.ToDate,
		Days:            DayCount(in.FromDate, in.ToDate, in.HalfDay),
		HalfDay:         in.HalfDay,
		MentorID:        in.MentorID,
		ClassInchargeID: in.ClassInchargeID,
		HODID:           in.HODID,
		Reason:          in.Reason,
		Medical:         in.Medical,
		ODType:          in.ODType,
		EventName:       in.EventName,
		Venue:           in.Venue,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	req.seedDecisions(in.PreApproved, now)

	if err := s.Requests.Insert(ctx, req); err != nil {
		return nil, err
	}
	return req.Clone(), nil
}

// =============================================================================
// DECISION
// =============================================================================

// decisionRetries bounds the read-apply-swap loop. Contention on one
// request is two or three approvers at most.
const decisionRetries = 5

// RecordDecision applies one approver's decision and notifies the
// requester. The stage must be active on the request; repeating an
// identical decision is a state no-op that still re-notifies.
//
// The write is a compare-and-swap on the state that was read: when
// another approver's decision lands in between, the swap fails with
// ErrStaleUpdate and the whole read-apply-swap is retried against the
// fresh state, so concurrent decisions on different stages both stick.
func (s *Service) RecordDecision(ctx context.Context, kind RequestKind, id RequestID, stage Stage, status Status, comment string) (*Request, error) {
	for attempt := 0; ; attempt++ {
		req, err := s.Requests.Get(ctx, kind, id)
		if err != nil {
			return nil, err
		}

		updated := req.Clone()
		if err := updated.ApplyDecision(stage, status, comment, s.Now()); err != nil {
			return nil, err
		}

		// One write: a combined-role decision lands atomically.
		err = s.Requests.Update(ctx, updated, req.UpdatedAt)
		if errors.Is(err, ErrStaleUpdate) && attempt < decisionRetries {
			continue
		}
		if err != nil {
			return nil, err
		}

		s.notifyDecision(updated, stage, status, comment)
		return updated.Clone(), nil
	}
}

// notifyDecision dispatches the status-change message after the
// decision is already persisted. Fire-and-forget.
func (s *Service) notifyDecision(req *Request, stage Stage, status Status, comment string) {
	if s.Notifier == nil {
		return
	}
	student, ok := s.Resolver.Student(string(req.StudentID))
	if !ok || student.Email == "" {
		return
	}

	subject := fmt.Sprintf("%s request %s by %s", kindLabel(req.Kind), status, RoleLabel(stage))
	body := fmt.Sprintf(
		"<p>Dear %s,</p><p>Your %s request for <b>%s to %s</b> has been <b>%s</b> by your %s.</p>",
		studentDisplayName(student, req), kindLabel(req.Kind), req.FromDate, req.ToDate, status, RoleLabel(stage))
	if comment != "" {
		body += fmt.Sprintf("<p>Comment: %s</p>", comment)
	}
	body += fmt.Sprintf("<p>Current status: <b>%s</b></p>", req.OverallStatus)

	s.Notifier.Dispatch(notify.Message{To: student.Email, Subject: subject, HTMLBody: body})
}

func studentDisplayName(p directory.Person, req *Request) string {
	if p.Name != "" {
		return p.Name
	}
	if req.StudentName != "" {
		return req.StudentName
	}
	return string(req.StudentID)
}

func kindLabel(kind RequestKind) string {
	if kind == KindOD {
		return "OD"
	}
	return "Leave"
}

// =============================================================================
// DELETE
// =============================================================================

// DeleteRequest removes a request. Only the original requester may
// delete, and only while the overall status is still pending.
func (s *Service) DeleteRequest(ctx context.Context, kind RequestKind, id RequestID, requester StudentID) error {
	req, err := s.Requests.Get(ctx, kind, id)
	if err != nil {
		return err
	}
	if req.StudentID != requester {
		return &ForbiddenError{RequestID: id, Reason: "only the requester may delete"}
	}
	if req.OverallStatus != StatusPending {
		return &ForbiddenError{RequestID: id, Reason: fmt.Sprintf("cannot delete a %s request", req.OverallStatus)}
	}
	return s.Requests.Delete(ctx, kind, id)
}

// =============================================================================
// LISTINGS
// =============================================================================

// ListByStudent returns a student's requests, newest first.
func (s *Service) ListByStudent(ctx context.Context, kind RequestKind, studentID StudentID) ([]*Request, error) {
	return s.Requests.ListByStudent(ctx, kind, studentID)
}

// ListBySection returns a section's requests, newest first.
func (s *Service) ListBySection(ctx context.Context, kind RequestKind, sectionID string) ([]*Request, error) {
	return s.Requests.ListBySection(ctx, kind, sectionID)
}

// ListForApprover returns the requests routed through a staff member.
// For the class-incharge stage a request only surfaces once the mentor
// stage is no longer pending. That is a visibility filter over the
// listing, not a state-machine gate: the class incharge may still
// decide such a request through RecordDecision.
func (s *Service) ListForApprover(ctx context.Context, kind RequestKind, staffID StaffID, as Stage) ([]*Request, error) {
	reqs, err := s.Requests.ListByApprover(ctx, kind, staffID)
	if err != nil {
		return nil, err
	}
	if as != StageClassIncharge {
		return reqs, nil
	}
	filtered := reqs[:0]
	for _, req := range reqs {
		// Combined role: the same person is the mentor, nothing to wait on.
		if req.MentorID == req.ClassInchargeID || req.StageStatus(StageMentor) != StatusPending {
			filtered = append(filtered, req)
		}
	}
	return filtered, nil
}

// =============================================================================
// DISCIPLINARY RECORDS
// =============================================================================

// RecordInput creates a defaulter entry.
type RecordInput struct {
	StudentID   StudentID
	StudentName string
	Org         OrgPath

	Category    string
	ObservedAt  time.Time
	Observation string

	MentorID        StaffID
	ClassInchargeID StaffID

	// Remediation already carried out before the entry was filed
	// (e.g. a warning issued on the spot) is recorded as done.
	RemediationDone bool
	Remediation     string
}

// CreateDisciplinary persists a new defaulter record. No approval
// chain, no conflict gate.
func (s *Service) CreateDisciplinary(ctx context.Context, in RecordInput) (*DisciplinaryRecord, error) {
	switch {
	case in.StudentID == "":
		return nil, &ValidationError{Field: "student_id", Message: "required"}
	case in.Category == "":
		return nil, &ValidationError{Field: "category", Message: "required"}
	}
	now := s.Now()
	observed := in.ObservedAt
	if observed.IsZero() {
		observed = now
	}
	rec := &DisciplinaryRecord{
		ID:              uuid.NewString(),
		StudentID:       in.StudentID,
		StudentName:     in.StudentName,
		Org:             in.Org,
		Category:        in.Category,
		ObservedAt:      observed,
		Observation:     in.Observation,
		MentorID:        in.MentorID,
		ClassInchargeID: in.ClassInchargeID,
		RemediationDone: in.RemediationDone,
		Remediation:     in.Remediation,
		CreatedAt:       now,
	}
	if err := s.Records.Insert(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// ListDisciplinaryByStudent returns a student's records, newest first.
func (s *Service) ListDisciplinaryByStudent(ctx context.Context, studentID StudentID) ([]*DisciplinaryRecord, error) {
	return s.Records.ListByStudent(ctx, studentID)
}
