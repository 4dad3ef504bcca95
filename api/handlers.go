/*
handlers.go - HTTP API handlers for the absence engine

PURPOSE:
  Exposes the request lifecycle and the aggregation escape hatch via
  REST. Handles HTTP request/response, JSON serialization, input
  validation, and delegates to domain logic.

ENDPOINTS:
  Requests (kind is leave or od):
    POST   /api/requests/{kind}                Create request
    GET    /api/requests/{kind}?student=...    List by student
    GET    /api/requests/{kind}?approver=...&as=...  List for approver
    GET    /api/requests/{kind}?section=...    List by section
    GET    /api/requests/{kind}/{id}           Get one request
    POST   /api/requests/{kind}/{id}/decision  Record a decision
    DELETE /api/requests/{kind}/{id}           Delete while pending

  Disciplinary:
    POST   /api/disciplinary                   Create record
    GET    /api/disciplinary?student=...       List by student

  Admin:
    POST   /api/admin/digest/run               Run aggregation for a day

ERROR HANDLING:
  Domain errors map to HTTP status with errors.Is:
  - 400: validation errors
  - 403: forbidden (ownership / non-pending delete)
  - 404: unknown id
  - 409: overlapping date range
  - 422: stage not applicable
  - 500: everything else

SEE ALSO:
  - dto.go: request/response data structures
  - server.go: router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/campuskit/absence-engine/absence"
	"github.com/campuskit/absence-engine/digest"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service  *absence.Service
	Pipeline *digest.Pipeline

	validate *validator.Validate
}

// NewHandler creates a handler around the request service and the
// aggregation pipeline.
func NewHandler(service *absence.Service, pipeline *digest.Pipeline) *Handler {
	return &Handler{
		Service:  service,
		Pipeline: pipeline,
		validate: validator.New(),
	}
}

// decodeAndValidate parses the body and runs struct validation.
func (h *Handler) decodeAndValidate(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return err
	}
	return h.validate.Struct(dst)
}

func kindParam(r *http.Request) (absence.RequestKind, bool) {
	kind := absence.RequestKind(chi.URLParam(r, "kind"))
	return kind, kind.Valid()
}

// =============================================================================
// REQUEST HANDLERS
// =============================================================================

// CreateRequest opens a Leave or OD request.
func (h *Handler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown request kind", nil)
		return
	}

	var body CreateRequestBody
	if err := h.decodeAndValidate(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	fromDate, err := absence.ParseDate(body.FromDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid from_date", err)
		return
	}
	toDate, err := absence.ParseDate(body.ToDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid to_date", err)
		return
	}

	req, err := h.Service.CreateRequest(r.Context(), absence.CreateInput{
		Kind:        kind,
		StudentID:   absence.StudentID(body.StudentID),
		StudentName: body.StudentName,
		Org: absence.OrgPath{
			DepartmentID: body.DepartmentID,
			BatchID:      body.BatchID,
			SectionID:    body.SectionID,
		},
		FromDate:        fromDate,
		ToDate:          toDate,
		HalfDay:         body.HalfDay,
		MentorID:        absence.StaffID(body.MentorID),
		ClassInchargeID: absence.StaffID(body.ClassInchargeID),
		HODID:           absence.StaffID(body.HODID),
		Reason:          body.Reason,
		Medical:         body.Medical,
		ODType:          absence.ODType(body.ODType),
		EventName:       body.EventName,
		Venue:           body.Venue,
		PreApproved:     body.PreApproved,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRequestDTO(req))
}

// GetRequest returns one request.
func (h *Handler) GetRequest(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown request kind", nil)
		return
	}
	req, err := h.Service.Requests.Get(r.Context(), kind, absence.RequestID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(req))
}

// ListRequests lists by student, approver, or section depending on the
// query parameter.
func (h *Handler) ListRequests(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown request kind", nil)
		return
	}

	var (
		reqs []*absence.Request
		err  error
	)
	q := r.URL.Query()
	switch {
	case q.Get("student") != "":
		reqs, err = h.Service.ListByStudent(r.Context(), kind, absence.StudentID(q.Get("student")))
	case q.Get("approver") != "":
		as := absence.Stage(q.Get("as"))
		reqs, err = h.Service.ListForApprover(r.Context(), kind, absence.StaffID(q.Get("approver")), as)
	case q.Get("section") != "":
		reqs, err = h.Service.ListBySection(r.Context(), kind, q.Get("section"))
	default:
		writeError(w, http.StatusBadRequest, "One of student, approver, or section is required", nil)
		return
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]RequestDTO, len(reqs))
	for i, req := range reqs {
		dtos[i] = toRequestDTO(req)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// RecordDecision applies one approver's decision.
func (h *Handler) RecordDecision(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown request kind", nil)
		return
	}

	var body DecisionBody
	if err := h.decodeAndValidate(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	req, err := h.Service.RecordDecision(r.Context(), kind,
		absence.RequestID(chi.URLParam(r, "id")),
		absence.Stage(body.Stage), absence.Status(body.Status), body.Comment)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(req))
}

// DeleteRequest removes a still-pending request on behalf of its owner.
func (h *Handler) DeleteRequest(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown request kind", nil)
		return
	}

	var body DeleteRequestBody
	if err := h.decodeAndValidate(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	err := h.Service.DeleteRequest(r.Context(), kind,
		absence.RequestID(chi.URLParam(r, "id")), absence.StudentID(body.StudentID))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
}

// =============================================================================
// DISCIPLINARY HANDLERS
// =============================================================================

// CreateDisciplinary records a defaulter entry.
func (h *Handler) CreateDisciplinary(w http.ResponseWriter, r *http.Request) {
	var body CreateDisciplinaryBody
	if err := h.decodeAndValidate(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var observedAt time.Time
	if body.ObservedAt != "" {
		observedAt, _ = time.Parse(time.RFC3339, body.ObservedAt)
	}

	rec, err := h.Service.CreateDisciplinary(r.Context(), absence.RecordInput{
		StudentID:   absence.StudentID(body.StudentID),
		StudentName: body.StudentName,
		Org: absence.OrgPath{
			DepartmentID: body.DepartmentID,
			BatchID:      body.BatchID,
			SectionID:    body.SectionID,
		},
		Category:        body.Category,
		ObservedAt:      observedAt,
		Observation:     body.Observation,
		MentorID:        absence.StaffID(body.MentorID),
		ClassInchargeID: absence.StaffID(body.ClassInchargeID),
		RemediationDone: body.RemediationDone,
		Remediation:     body.Remediation,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toDisciplinaryDTO(rec))
}

// ListDisciplinary lists a student's records.
func (h *Handler) ListDisciplinary(w http.ResponseWriter, r *http.Request) {
	studentID := r.URL.Query().Get("student")
	if studentID == "" {
		writeError(w, http.StatusBadRequest, "student is required", nil)
		return
	}
	recs, err := h.Service.ListDisciplinaryByStudent(r.Context(), absence.StudentID(studentID))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]DisciplinaryDTO, len(recs))
	for i, rec := range recs {
		dtos[i] = toDisciplinaryDTO(rec)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// RunDigest triggers the aggregation pipeline for an explicit date.
// Operational escape hatch for replay/backfill; delivery is
// at-least-once, so re-running a day re-sends its digests.
func (h *Handler) RunDigest(w http.ResponseWriter, r *http.Request) {
	var body RunDigestBody
	if err := h.decodeAndValidate(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	day, err := absence.ParseDate(body.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return
	}

	summary, err := h.Pipeline.Run(r.Context(), day)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Aggregation run failed", err)
		return
	}
	writeJSON(w, http.StatusOK, RunSummaryDTO{
		Day:          summary.Day.String(),
		Leaves:       summary.Leaves,
		ODs:          summary.ODs,
		Disciplinary: summary.Disciplinary,
		PerCategory:  summary.PerCategory,
		Recipients:   summary.Recipients,
		Skipped:      summary.Skipped,
		Delivered:    summary.Delivered,
		Failed:       summary.Failed,
		DurationMS:   summary.Duration.Milliseconds(),
	})
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, absence.ErrValidation):
		writeError(w, http.StatusBadRequest, "Validation failed", err)
	case errors.Is(err, absence.ErrConflict):
		writeError(w, http.StatusConflict, "Overlapping request exists", err)
	case errors.Is(err, absence.ErrNotFound):
		writeError(w, http.StatusNotFound, "Request not found", err)
	case errors.Is(err, absence.ErrInvalidStage):
		writeError(w, http.StatusUnprocessableEntity, "Stage not applicable", err)
	case errors.Is(err, absence.ErrForbidden):
		writeError(w, http.StatusForbidden, "Operation not permitted", err)
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
