/*
status.go - Approval state machine

PURPOSE:
  Derives the single overall status of a request from its per-stage
  decisions, and applies an approver's decision to a request in memory.

DERIVATION RULE (evaluated over ACTIVE stages only):
  1. Any stage rejected        -> overall rejected
  2. All stages approved       -> overall approved
  3. Otherwise                 -> overall pending

  An unassigned stage (empty approver id) is excluded from the rule;
  it is seeded approved at creation so its absence can never block the
  chain.

PARALLEL STAGES:
  Stages decide independently. There is no ordering dependency; the
  "class incharge only sees mentor-handled requests" behavior is a
  listing filter (service.go), not a transition gate here.

COMBINED ROLE:
  When one staff member holds both the mentor and class-incharge
  stages, a single decision sets both records in the same in-memory
  mutation, and the service persists them in one store write. No
  reader can observe only one of the two updated.

EXPLICIT RECOMPUTATION:
  OverallStatus is recomputed synchronously inside ApplyDecision. There
  are no save hooks or implicit triggers to forget.
*/
package absence

import "time"

// DeriveOverall computes the overall status from the decisions of the
// given active stages. Pure function: no side effects, no clock.
func DeriveOverall(decisions map[Stage]Decision, active []Stage) Status {
	if len(active) == 0 {
		return StatusApproved
	}
	allApproved := true
	for _, stage := range active {
		d, ok := decisions[stage]
		if !ok {
			allApproved = false
			continue
		}
		switch d.Status {
		case StatusRejected:
			return StatusRejected
		case StatusApproved:
			// keep scanning
		default:
			allApproved = false
		}
	}
	if allApproved {
		return StatusApproved
	}
	return StatusPending
}

// stagesFor returns the stage plus, for a combined mentor/class-incharge
// role, its twin. Both records must move together.
func (r *Request) stagesFor(stage Stage) []Stage {
	combined := r.MentorID != "" && r.MentorID == r.ClassInchargeID
	if combined && (stage == StageMentor || stage == StageClassIncharge) {
		return []Stage{StageMentor, StageClassIncharge}
	}
	return []Stage{stage}
}

// ApplyDecision records a decision on the request and recomputes the
// overall status. The caller persists the returned request with ONE
// store write. Returns ErrInvalidStage when the stage is not active.
func (r *Request) ApplyDecision(stage Stage, status Status, comment string, at time.Time) error {
	if status != StatusApproved && status != StatusRejected {
		return &ValidationError{Field: "status", Message: "decision must be approved or rejected"}
	}
	if !r.IsActiveStage(stage) {
		return &InvalidStageError{RequestID: r.ID, Stage: stage, ValidStages: r.ActiveStages()}
	}

	decision := Decision{Status: status, Comment: comment, DecidedAt: at}
	for _, s := range r.stagesFor(stage) {
		r.Decisions[s] = decision
	}
	r.OverallStatus = DeriveOverall(r.Decisions, r.ActiveStages())
	r.UpdatedAt = at
	return nil
}

// seedDecisions initializes the decision map at creation time: active
// stages start pending (or approved on the staff-initiated emergency
// path), absent stages are recorded approved so they never block.
func (r *Request) seedDecisions(preApproved bool, at time.Time) {
	r.Decisions = make(map[Stage]Decision, len(AllStages))
	initial := StatusPending
	comment := ""
	if preApproved {
		initial = StatusApproved
		comment = "auto-approved at creation"
	}
	for _, stage := range AllStages {
		if r.ApproverFor(stage) == "" {
			r.Decisions[stage] = Decision{Status: StatusApproved, Comment: "stage not assigned", DecidedAt: at}
			continue
		}
		r.Decisions[stage] = Decision{Status: initial, Comment: comment, DecidedAt: at}
	}
	r.OverallStatus = DeriveOverall(r.Decisions, r.ActiveStages())
}
