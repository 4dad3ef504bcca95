/*
Package absence provides the core request approval engine.

PURPOSE:
  This package contains the domain types and algorithms for student
  absence requests. A Leave request and an On-Duty (OD) request share
  the same shape and lifecycle: both are created against a date range,
  gated by an overlap check, and routed through a fixed chain of staff
  approvers whose individual decisions derive a single overall status.

KEY CONCEPTS IN THIS FILE (types.go):
  - Request: A Leave or OD record with per-stage decision state
  - Stage: One approver slot (mentor, class incharge, optional HOD)
  - Decision: One approver's status + comment + timestamp
  - OrgPath: Department/batch/section ids frozen at creation time
  - DisciplinaryRecord: A single-stage defaulter entry (no approvals)

DESIGN PRINCIPLES:
  1. Derived status: OverallStatus is always recomputed from the
     decision records, never set directly by a caller.
  2. Denormalized grouping keys: the org path is copied onto the
     request at creation so later section moves don't reshuffle
     historical digests.
  3. Precision: day counts use decimal.Decimal so a half-day marker
     is an exact 0.5, not a float approximation.

SEE ALSO:
  - status.go: overall status derivation and decision application
  - conflict.go: date range overlap gate
  - service.go: request lifecycle orchestration
  - store.go: persistence interfaces
*/
package absence

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type RequestID string
type StudentID string
type StaffID string

// RequestKind distinguishes the two request flavors. They share one
// lifecycle but are stored and conflict-checked independently.
type RequestKind string

const (
	KindLeave RequestKind = "leave"
	KindOD    RequestKind = "od"
)

func (k RequestKind) Valid() bool { return k == KindLeave || k == KindOD }

// =============================================================================
// STAGES AND DECISIONS
// =============================================================================

// Stage identifies one approver slot on a request.
type Stage string

const (
	StageMentor        Stage = "mentor"
	StageClassIncharge Stage = "class_incharge"
	StageHOD           Stage = "hod"
)

// AllStages lists stages in routing order. The order is presentational
// only: stages decide independently, there is no sequencing gate.
var AllStages = []Stage{StageMentor, StageClassIncharge, StageHOD}

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Decision is one approver's recorded action on a stage.
type Decision struct {
	Status    Status
	Comment   string
	DecidedAt time.Time
}

// =============================================================================
// ORGANIZATIONAL PATH
// =============================================================================

// OrgPath locates a student in the department -> batch -> section
// hierarchy. Copied onto every request and disciplinary record at
// creation time so grouping stays stable.
type OrgPath struct {
	DepartmentID string
	BatchID      string
	SectionID    string
}

// =============================================================================
// REQUEST - A Leave or OD absence undergoing multi-stage approval
// =============================================================================

// ODType distinguishes on-duty requests held inside the college from
// ones representing it outside.
type ODType string

const (
	ODInternal ODType = "internal"
	ODExternal ODType = "external"
)

type Request struct {
	ID          RequestID
	Kind        RequestKind
	StudentID   StudentID
	StudentName string
	Org         OrgPath

	// Temporal. FromDate and ToDate are inclusive; same-day is allowed.
	// Days is derived at creation (at least 0.5 with the half-day marker).
	FromDate Date
	ToDate   Date
	Days     decimal.Decimal
	HalfDay  bool

	// Routing. An empty StaffID means the stage is absent and is
	// treated as approved at creation so it can never block the chain.
	MentorID        StaffID
	ClassInchargeID StaffID
	HODID           StaffID

	// Content.
	Reason  string
	Medical bool // leave only

	// OD only.
	ODType    ODType
	EventName string
	Venue     string

	// Decision state: one record per active stage.
	Decisions map[Stage]Decision

	// Derived from Decisions after every mutation. Never client-set.
	OverallStatus Status

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ApproverFor returns the staff id holding a stage (empty if absent).
func (r *Request) ApproverFor(stage Stage) StaffID {
	switch stage {
	case StageMentor:
		return r.MentorID
	case StageClassIncharge:
		return r.ClassInchargeID
	case StageHOD:
		return r.HODID
	}
	return ""
}

// ActiveStages returns the stages that have an assigned approver.
func (r *Request) ActiveStages() []Stage {
	var active []Stage
	for _, s := range AllStages {
		if r.ApproverFor(s) != "" {
			active = append(active, s)
		}
	}
	return active
}

// IsActiveStage reports whether the stage applies to this request.
func (r *Request) IsActiveStage(stage Stage) bool {
	return r.ApproverFor(stage) != ""
}

// StageStatus returns the recorded status for a stage, defaulting to
// pending when no decision exists yet.
func (r *Request) StageStatus(stage Stage) Status {
	if d, ok := r.Decisions[stage]; ok {
		return d.Status
	}
	return StatusPending
}

// Clone returns a deep copy. Stores hand out clones so callers can't
// mutate persisted state behind the service's back.
func (r *Request) Clone() *Request {
	cp := *r
	cp.Decisions = make(map[Stage]Decision, len(r.Decisions))
	for s, d := range r.Decisions {
		cp.Decisions[s] = d
	}
	return &cp
}

// DayCount computes the inclusive span length in days, subtracting the
// half-day marker. A single half-day request yields 0.5.
func DayCount(from, to Date, halfDay bool) decimal.Decimal {
	days := decimal.NewFromInt(int64(DaysBetween(from, to) + 1))
	if halfDay {
		days = days.Sub(decimal.NewFromFloat(0.5))
	}
	return days
}

// =============================================================================
// DISCIPLINARY RECORD - Single-stage defaulter entry
// =============================================================================

// DisciplinaryRecord is a recorded fact, not a request: there is no
// approval chain. It carries the same org path and responsible-staff
// ids so it flows through the same grouping and digest machinery.
type DisciplinaryRecord struct {
	ID          string
	StudentID   StudentID
	StudentName string
	Org         OrgPath

	Category    string // e.g. "late", "dress_code", "discipline"
	ObservedAt  time.Time
	Observation string

	MentorID        StaffID
	ClassInchargeID StaffID

	RemediationDone bool
	Remediation     string

	CreatedAt time.Time
}

// RoleLabel maps a stage to the human label used in notifications.
func RoleLabel(stage Stage) string {
	switch stage {
	case StageMentor:
		return "Mentor"
	case StageClassIncharge:
		return "Class Incharge"
	case StageHOD:
		return "HOD"
	}
	return string(stage)
}
