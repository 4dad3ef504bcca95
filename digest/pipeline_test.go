package digest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuskit/absence-engine/absence"
	"github.com/campuskit/absence-engine/absence/store"
	"github.com/campuskit/absence-engine/directory"
	"github.com/campuskit/absence-engine/notify"
)

type pipelineFixture struct {
	pipeline *Pipeline
	requests *store.Memory
	records  *store.MemoryDisciplinary
	recorder *notify.Recorder
	day      absence.Date
}

// newPipelineFixture seeds the day described throughout this file:
// student s1 (mentor M, class incharge C) has a leave starting on the
// target day, and student s2 (class incharge C) has a late-arrival
// record observed the same day.
func newPipelineFixture(t *testing.T) *pipelineFixture {
	t.Helper()
	ctx := context.Background()
	day := absence.NewDate(2025, time.July, 10)

	resolver := directory.NewStatic().
		AddStaff(directory.Person{ID: "staff-m", Name: "Mentor M", Email: "m@college.example"}).
		AddStaff(directory.Person{ID: "staff-c", Name: "Incharge C", Email: "c@college.example"}).
		AddStaff(directory.Person{ID: "staff-h", Name: "Head H", Email: "h@college.example"}).
		AddDepartment("cse", "Computer Science", "staff-h").
		AddBatch("2027", "2027 Batch").
		AddSection("cse-a", "CSE A")

	requests := store.NewMemory()
	require.NoError(t, requests.Insert(ctx, &absence.Request{
		ID:              "l1",
		Kind:            absence.KindLeave,
		StudentID:       "s1",
		StudentName:     "Student One",
		Org:             absence.OrgPath{DepartmentID: "cse", BatchID: "2027", SectionID: "cse-a"},
		FromDate:        day,
		ToDate:          day.AddDays(2),
		MentorID:        "staff-m",
		ClassInchargeID: "staff-c",
		Reason:          "family function",
	}))

	records := store.NewMemoryDisciplinary()
	require.NoError(t, records.Insert(ctx, &absence.DisciplinaryRecord{
		ID:              "d1",
		StudentID:       "s2",
		StudentName:     "Student Two",
		Org:             absence.OrgPath{DepartmentID: "cse", BatchID: "2027", SectionID: "cse-a"},
		Category:        "late_arrival",
		ObservedAt:      day.Time.Add(9 * time.Hour),
		Observation:     "arrived 40 minutes late",
		ClassInchargeID: "staff-c",
	}))

	recorder := notify.NewRecorder()
	pipeline := NewPipeline(requests, records, resolver, notify.NewPool(recorder, 2, time.Second))
	return &pipelineFixture{pipeline: pipeline, requests: requests, records: records, recorder: recorder, day: day}
}

// TestPipelineRun: the class incharge hears about both items, the
// mentor only about the leave, and the HOD gets the PDF report.
func TestPipelineRun(t *testing.T) {
	f := newPipelineFixture(t)

	summary, err := f.pipeline.Run(context.Background(), f.day)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Leaves)
	assert.Equal(t, 0, summary.ODs)
	assert.Equal(t, 1, summary.Disciplinary)
	assert.Equal(t, map[string]int{"late_arrival": 1}, summary.PerCategory)
	assert.Equal(t, 3, summary.Recipients, "mentor, class incharge, HOD")
	assert.Equal(t, 3, summary.Delivered)
	assert.Zero(t, summary.Failed)
	assert.Zero(t, summary.Skipped)

	// Class incharge: one leave AND one disciplinary record.
	toC := f.recorder.SentTo("c@college.example")
	require.Len(t, toC, 1)
	assert.Contains(t, toC[0].HTMLBody, "Student One")
	assert.Contains(t, toC[0].HTMLBody, "Student Two")

	// Mentor: the leave only.
	toM := f.recorder.SentTo("m@college.example")
	require.Len(t, toM, 1)
	assert.Contains(t, toM[0].HTMLBody, "Student One")
	assert.NotContains(t, toM[0].HTMLBody, "Student Two")

	// HOD: the department report attached as a PDF.
	toH := f.recorder.SentTo("h@college.example")
	require.Len(t, toH, 1)
	require.Len(t, toH[0].Attachments, 1)
	att := toH[0].Attachments[0]
	assert.Equal(t, "absence-report-cse-2025-07-10.pdf", att.Filename)
	assert.Equal(t, "application/pdf", att.MIMEType)
	assert.Greater(t, len(att.Content), 0)
	assert.Equal(t, "%PDF", string(att.Content[:4]))
}

// TestPipelineRun_FailureIsolation: one recipient's transport failure
// is tallied and everyone else still gets their digest.
func TestPipelineRun_FailureIsolation(t *testing.T) {
	f := newPipelineFixture(t)
	f.recorder.FailFor("m@college.example", errors.New("relay refused"))

	summary, err := f.pipeline.Run(context.Background(), f.day)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Delivered)
	assert.Equal(t, 1, summary.Failed)
	assert.Len(t, f.recorder.SentTo("c@college.example"), 1)
	assert.Len(t, f.recorder.SentTo("h@college.example"), 1)
}

// TestPipelineRun_Idempotent: re-running the same day over unchanged
// stores produces the same digests again. At-least-once by design.
func TestPipelineRun_Idempotent(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()

	first, err := f.pipeline.Run(ctx, f.day)
	require.NoError(t, err)
	firstBody := f.recorder.SentTo("c@college.example")[0].HTMLBody

	f.recorder.Reset()
	second, err := f.pipeline.Run(ctx, f.day)
	require.NoError(t, err)

	assert.Equal(t, first.Leaves, second.Leaves)
	assert.Equal(t, first.Recipients, second.Recipients)
	assert.Equal(t, firstBody, f.recorder.SentTo("c@college.example")[0].HTMLBody,
		"same snapshot, byte-identical digest")
}

// TestPipelineRun_EmptyDay: nothing to report, nothing sent.
func TestPipelineRun_EmptyDay(t *testing.T) {
	f := newPipelineFixture(t)

	summary, err := f.pipeline.Run(context.Background(), f.day.AddDays(30))
	require.NoError(t, err)

	assert.Zero(t, summary.Leaves)
	assert.Zero(t, summary.Recipients)
	assert.Empty(t, f.recorder.Sent())
}

// TestPipelineRun_UnresolvableStaffSkipped: a staff id with no
// directory entry costs only that digest.
func TestPipelineRun_UnresolvableStaffSkipped(t *testing.T) {
	f := newPipelineFixture(t)
	require.NoError(t, f.requests.Insert(context.Background(), &absence.Request{
		ID:        "l2",
		Kind:      absence.KindLeave,
		StudentID: "s3",
		Org:       absence.OrgPath{DepartmentID: "cse", BatchID: "2027", SectionID: "cse-a"},
		FromDate:  f.day,
		ToDate:    f.day,
		MentorID:  "staff-ghost",
	}))

	summary, err := f.pipeline.Run(context.Background(), f.day)
	require.NoError(t, err)

	// The ghost never produces a message; the three known recipients do.
	assert.Equal(t, 3, summary.Recipients)
	assert.Equal(t, 3, summary.Delivered)
}
