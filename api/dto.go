/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types
  decouple the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Body: Request body types from clients

VALIDATION:
  Request bodies carry go-playground/validator struct tags; handlers
  run them through a shared *validator.Validate before touching the
  domain layer, so malformed input never reaches the service.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/campuskit/absence-engine/absence"
)

// =============================================================================
// REQUEST BODIES
// =============================================================================

// CreateRequestBody creates a Leave or OD request. The kind comes from
// the URL, not the body.
type CreateRequestBody struct {
	StudentID   string `json:"student_id" validate:"required"`
	StudentName string `json:"student_name"`

	DepartmentID string `json:"department_id"`
	BatchID      string `json:"batch_id"`
	SectionID    string `json:"section_id"`

	FromDate string `json:"from_date" validate:"required,datetime=2006-01-02"`
	ToDate   string `json:"to_date" validate:"required,datetime=2006-01-02"`
	HalfDay  bool   `json:"half_day"`

	MentorID        string `json:"mentor_id"`
	ClassInchargeID string `json:"class_incharge_id"`
	HODID           string `json:"hod_id"`

	Reason  string `json:"reason" validate:"required"`
	Medical bool   `json:"medical"`

	ODType    string `json:"od_type" validate:"omitempty,oneof=internal external"`
	EventName string `json:"event_name"`
	Venue     string `json:"venue"`

	PreApproved bool `json:"pre_approved"`
}

// DecisionBody records one approver's decision.
type DecisionBody struct {
	Stage   string `json:"stage" validate:"required,oneof=mentor class_incharge hod"`
	Status  string `json:"status" validate:"required,oneof=approved rejected"`
	Comment string `json:"comment"`
}

// DeleteRequestBody identifies the caller for the ownership check.
type DeleteRequestBody struct {
	StudentID string `json:"student_id" validate:"required"`
}

// CreateDisciplinaryBody creates a defaulter record.
type CreateDisciplinaryBody struct {
	StudentID   string `json:"student_id" validate:"required"`
	StudentName string `json:"student_name"`

	DepartmentID string `json:"department_id"`
	BatchID      string `json:"batch_id"`
	SectionID    string `json:"section_id"`

	Category    string `json:"category" validate:"required"`
	ObservedAt  string `json:"observed_at" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	Observation string `json:"observation"`

	MentorID        string `json:"mentor_id"`
	ClassInchargeID string `json:"class_incharge_id"`

	RemediationDone bool   `json:"remediation_done"`
	Remediation     string `json:"remediation"`
}

// RunDigestBody triggers a manual aggregation run.
type RunDigestBody struct {
	Date string `json:"date" validate:"required,datetime=2006-01-02"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// DecisionDTO is one stage's decision in API responses.
type DecisionDTO struct {
	Status    string `json:"status"`
	Comment   string `json:"comment,omitempty"`
	DecidedAt string `json:"decided_at,omitempty"`
}

// RequestDTO represents a request in API responses.
type RequestDTO struct {
	ID          string `json:"id"`
	Kind        string `json:"kind"`
	StudentID   string `json:"student_id"`
	StudentName string `json:"student_name,omitempty"`

	DepartmentID string `json:"department_id,omitempty"`
	BatchID      string `json:"batch_id,omitempty"`
	SectionID    string `json:"section_id,omitempty"`

	FromDate string `json:"from_date"`
	ToDate   string `json:"to_date"`
	Days     string `json:"days"`
	HalfDay  bool   `json:"half_day,omitempty"`

	MentorID        string `json:"mentor_id,omitempty"`
	ClassInchargeID string `json:"class_incharge_id,omitempty"`
	HODID           string `json:"hod_id,omitempty"`

	Reason  string `json:"reason"`
	Medical bool   `json:"medical,omitempty"`

	ODType    string `json:"od_type,omitempty"`
	EventName string `json:"event_name,omitempty"`
	Venue     string `json:"venue,omitempty"`

	Decisions     map[string]DecisionDTO `json:"decisions"`
	OverallStatus string                 `json:"overall_status"`

	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func toRequestDTO(req *absence.Request) RequestDTO {
	dto := RequestDTO{
		ID:              string(req.ID),
		Kind:            string(req.Kind),
		StudentID:       string(req.StudentID),
		StudentName:     req.StudentName,
		DepartmentID:    req.Org.DepartmentID,
		BatchID:         req.Org.BatchID,
		SectionID:       req.Org.SectionID,
		FromDate:        req.FromDate.String(),
		ToDate:          req.ToDate.String(),
		Days:            req.Days.String(),
		HalfDay:         req.HalfDay,
		MentorID:        string(req.MentorID),
		ClassInchargeID: string(req.ClassInchargeID),
		HODID:           string(req.HODID),
		Reason:          req.Reason,
		Medical:         req.Medical,
		ODType:          string(req.ODType),
		EventName:       req.EventName,
		Venue:           req.Venue,
		Decisions:       make(map[string]DecisionDTO),
		OverallStatus:   string(req.OverallStatus),
		CreatedAt:       req.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       req.UpdatedAt.Format(time.RFC3339),
	}
	for _, stage := range req.ActiveStages() {
		d := req.Decisions[stage]
		dd := DecisionDTO{Status: string(d.Status), Comment: d.Comment}
		if !d.DecidedAt.IsZero() {
			dd.DecidedAt = d.DecidedAt.Format(time.RFC3339)
		}
		dto.Decisions[string(stage)] = dd
	}
	return dto
}

// DisciplinaryDTO represents a defaulter record in API responses.
type DisciplinaryDTO struct {
	ID          string `json:"id"`
	StudentID   string `json:"student_id"`
	StudentName string `json:"student_name,omitempty"`

	DepartmentID string `json:"department_id,omitempty"`
	BatchID      string `json:"batch_id,omitempty"`
	SectionID    string `json:"section_id,omitempty"`

	Category    string `json:"category"`
	ObservedAt  string `json:"observed_at"`
	Observation string `json:"observation,omitempty"`

	MentorID        string `json:"mentor_id,omitempty"`
	ClassInchargeID string `json:"class_incharge_id,omitempty"`

	RemediationDone bool   `json:"remediation_done"`
	Remediation     string `json:"remediation,omitempty"`

	CreatedAt string `json:"created_at"`
}

func toDisciplinaryDTO(rec *absence.DisciplinaryRecord) DisciplinaryDTO {
	return DisciplinaryDTO{
		ID:              rec.ID,
		StudentID:       string(rec.StudentID),
		StudentName:     rec.StudentName,
		DepartmentID:    rec.Org.DepartmentID,
		BatchID:         rec.Org.BatchID,
		SectionID:       rec.Org.SectionID,
		Category:        rec.Category,
		ObservedAt:      rec.ObservedAt.Format(time.RFC3339),
		Observation:     rec.Observation,
		MentorID:        string(rec.MentorID),
		ClassInchargeID: string(rec.ClassInchargeID),
		RemediationDone: rec.RemediationDone,
		Remediation:     rec.Remediation,
		CreatedAt:       rec.CreatedAt.Format(time.RFC3339),
	}
}

// RunSummaryDTO reports an aggregation run.
type RunSummaryDTO struct {
	Day          string         `json:"day"`
	Leaves       int            `json:"leaves"`
	ODs          int            `json:"ods"`
	Disciplinary int            `json:"disciplinary"`
	PerCategory  map[string]int `json:"per_category,omitempty"`
	Recipients   int            `json:"recipients"`
	Skipped      int            `json:"skipped"`
	Delivered    int            `json:"delivered"`
	Failed       int            `json:"failed"`
	DurationMS   int64          `json:"duration_ms"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
