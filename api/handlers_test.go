/*
handlers_test.go - HTTP surface tests

PURPOSE:
  Exercises the router end to end over the in-memory stores: request
  lifecycle round trips, the domain-error to status-code mapping, and
  the manual aggregation trigger.
*/
package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuskit/absence-engine/absence"
	"github.com/campuskit/absence-engine/absence/store"
	"github.com/campuskit/absence-engine/digest"
	"github.com/campuskit/absence-engine/directory"
	"github.com/campuskit/absence-engine/notify"
)

type apiFixture struct {
	server   *httptest.Server
	recorder *notify.Recorder
	notifier *notify.Async
}

func setupAPI(t *testing.T) *apiFixture {
	t.Helper()
	resolver := directory.NewStatic().
		AddStudent(directory.Person{ID: "stu-s", Name: "Student S", Email: "s@college.example"}).
		AddStaff(directory.Person{ID: "staff-m", Name: "Mentor M", Email: "m@college.example"}).
		AddStaff(directory.Person{ID: "staff-c", Name: "Incharge C", Email: "c@college.example"}).
		AddStaff(directory.Person{ID: "staff-h", Name: "Head H", Email: "h@college.example"}).
		AddDepartment("cse", "Computer Science", "staff-h")

	requests := store.NewMemory()
	records := store.NewMemoryDisciplinary()
	recorder := notify.NewRecorder()
	notifier := notify.NewAsync(recorder, time.Second)

	service := absence.NewService(requests, records, resolver, notifier)
	pipeline := digest.NewPipeline(requests, records, resolver, notify.NewPool(recorder, 2, time.Second))

	srv := httptest.NewServer(NewRouter(NewHandler(service, pipeline)))
	t.Cleanup(srv.Close)
	return &apiFixture{server: srv, recorder: recorder, notifier: notifier}
}

func (f *apiFixture) do(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, f.server.URL+path, &buf)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out bytes.Buffer
	_, err = out.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, out.Bytes()
}

func createBody(from, to string) map[string]any {
	return map[string]any{
		"student_id":        "stu-s",
		"student_name":      "Student S",
		"department_id":     "cse",
		"batch_id":          "2027",
		"section_id":        "cse-a",
		"from_date":         from,
		"to_date":           to,
		"mentor_id":         "staff-m",
		"class_incharge_id": "staff-c",
		"reason":            "family function",
	}
}

func (f *apiFixture) createRequest(t *testing.T, from, to string) RequestDTO {
	t.Helper()
	resp, raw := f.do(t, http.MethodPost, "/api/requests/leave", createBody(from, to))
	require.Equal(t, http.StatusCreated, resp.StatusCode, "create failed: %s", raw)
	var dto RequestDTO
	require.NoError(t, json.Unmarshal(raw, &dto))
	return dto
}

// =============================================================================
// LIFECYCLE ROUND TRIP
// =============================================================================

func TestAPI_RequestLifecycle(t *testing.T) {
	f := setupAPI(t)

	// GIVEN a created leave request
	created := f.createRequest(t, "2025-07-10", "2025-07-12")
	assert.Equal(t, "pending", created.OverallStatus)
	assert.Equal(t, "3", created.Days)
	require.Contains(t, created.Decisions, "mentor")
	require.Contains(t, created.Decisions, "class_incharge")
	assert.NotContains(t, created.Decisions, "hod", "no HOD assigned, stage hidden")

	// WHEN fetching it back
	resp, raw := f.do(t, http.MethodGet, "/api/requests/leave/"+created.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var fetched RequestDTO
	require.NoError(t, json.Unmarshal(raw, &fetched))
	assert.Equal(t, created.ID, fetched.ID)

	// AND recording both approvals
	resp, _ = f.do(t, http.MethodPost, "/api/requests/leave/"+created.ID+"/decision",
		map[string]any{"stage": "mentor", "status": "approved", "comment": "fine"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, raw = f.do(t, http.MethodPost, "/api/requests/leave/"+created.ID+"/decision",
		map[string]any{"stage": "class_incharge", "status": "approved"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var decided RequestDTO
	require.NoError(t, json.Unmarshal(raw, &decided))

	// THEN the overall status is derived, not client-set
	assert.Equal(t, "approved", decided.OverallStatus)

	f.notifier.Wait()
	assert.Len(t, f.recorder.SentTo("s@college.example"), 2)
}

func TestAPI_ListRequests(t *testing.T) {
	f := setupAPI(t)
	f.createRequest(t, "2025-07-10", "2025-07-12")
	f.createRequest(t, "2025-07-20", "2025-07-21")

	cases := []struct {
		name  string
		query string
		want  int
	}{
		{"by student", "?student=stu-s", 2},
		{"by mentor", "?approver=staff-m&as=mentor", 2},
		{"by class incharge before mentor moves", "?approver=staff-c&as=class_incharge", 0},
		{"by section", "?section=cse-a", 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, raw := f.do(t, http.MethodGet, "/api/requests/leave"+tc.query, nil)
			require.Equal(t, http.StatusOK, resp.StatusCode)
			var dtos []RequestDTO
			require.NoError(t, json.Unmarshal(raw, &dtos))
			assert.Len(t, dtos, tc.want)
		})
	}

	t.Run("missing filter", func(t *testing.T) {
		resp, _ := f.do(t, http.MethodGet, "/api/requests/leave", nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

// =============================================================================
// ERROR MAPPING
// =============================================================================

func TestAPI_ErrorMapping(t *testing.T) {
	f := setupAPI(t)
	created := f.createRequest(t, "2025-07-10", "2025-07-12")

	t.Run("unknown kind is 400", func(t *testing.T) {
		resp, _ := f.do(t, http.MethodPost, "/api/requests/vacation", createBody("2025-08-01", "2025-08-02"))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("malformed date is 400", func(t *testing.T) {
		resp, _ := f.do(t, http.MethodPost, "/api/requests/leave", createBody("10-07-2025", "12-07-2025"))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("overlap is 409 and names the blocker", func(t *testing.T) {
		resp, raw := f.do(t, http.MethodPost, "/api/requests/leave", createBody("2025-07-11", "2025-07-13"))
		require.Equal(t, http.StatusConflict, resp.StatusCode)
		var errResp ErrorResponse
		require.NoError(t, json.Unmarshal(raw, &errResp))
		assert.Contains(t, errResp.Details, created.ID)
		assert.Contains(t, errResp.Details, "2025-07-10")
	})

	t.Run("unknown id is 404", func(t *testing.T) {
		resp, _ := f.do(t, http.MethodGet, "/api/requests/leave/missing", nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("inactive stage is 422", func(t *testing.T) {
		resp, _ := f.do(t, http.MethodPost, "/api/requests/leave/"+created.ID+"/decision",
			map[string]any{"stage": "hod", "status": "approved"})
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	})

	t.Run("unknown stage fails body validation", func(t *testing.T) {
		resp, _ := f.do(t, http.MethodPost, "/api/requests/leave/"+created.ID+"/decision",
			map[string]any{"stage": "principal", "status": "approved"})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("foreign delete is 403", func(t *testing.T) {
		resp, _ := f.do(t, http.MethodDelete, "/api/requests/leave/"+created.ID,
			map[string]any{"student_id": "stu-other"})
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("owner delete while pending is 200", func(t *testing.T) {
		resp, _ := f.do(t, http.MethodDelete, "/api/requests/leave/"+created.ID,
			map[string]any{"student_id": "stu-s"})
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		resp, _ = f.do(t, http.MethodGet, "/api/requests/leave/"+created.ID, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

// =============================================================================
// DISCIPLINARY & ADMIN
// =============================================================================

func TestAPI_Disciplinary(t *testing.T) {
	f := setupAPI(t)

	resp, raw := f.do(t, http.MethodPost, "/api/disciplinary", map[string]any{
		"student_id":       "stu-s",
		"student_name":     "Student S",
		"department_id":    "cse",
		"category":         "late_arrival",
		"observation":      "arrived 40 minutes late",
		"mentor_id":        "staff-m",
		"remediation_done": true,
		"remediation":      "verbal warning issued",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, "create failed: %s", raw)
	var dto DisciplinaryDTO
	require.NoError(t, json.Unmarshal(raw, &dto))
	assert.NotEmpty(t, dto.ID)
	assert.True(t, dto.RemediationDone, "on-the-spot remediation is recorded")

	resp, raw = f.do(t, http.MethodGet, "/api/disciplinary?student=stu-s", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var dtos []DisciplinaryDTO
	require.NoError(t, json.Unmarshal(raw, &dtos))
	assert.Len(t, dtos, 1)

	resp, _ = f.do(t, http.MethodPost, "/api/disciplinary", map[string]any{"student_id": "stu-s"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "category is required")
}

// TestAPI_RunDigest: the manual trigger re-runs a day and reports the
// tally. Used operationally for replay after an outage.
func TestAPI_RunDigest(t *testing.T) {
	f := setupAPI(t)
	f.createRequest(t, "2025-07-10", "2025-07-12")

	resp, raw := f.do(t, http.MethodPost, "/api/admin/digest/run", map[string]any{"date": "2025-07-10"})
	require.Equal(t, http.StatusOK, resp.StatusCode, "run failed: %s", raw)

	var summary RunSummaryDTO
	require.NoError(t, json.Unmarshal(raw, &summary))
	assert.Equal(t, "2025-07-10", summary.Day)
	assert.Equal(t, 1, summary.Leaves)
	assert.Equal(t, 3, summary.Recipients, "mentor, class incharge, HOD")
	assert.Equal(t, 3, summary.Delivered)

	hodMail := f.recorder.SentTo("h@college.example")
	require.Len(t, hodMail, 1)
	require.Len(t, hodMail[0].Attachments, 1)
	assert.Equal(t, "application/pdf", hodMail[0].Attachments[0].MIMEType)

	t.Run("re-run re-sends", func(t *testing.T) {
		resp, _ := f.do(t, http.MethodPost, "/api/admin/digest/run", map[string]any{"date": "2025-07-10"})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Len(t, f.recorder.SentTo("h@college.example"), 2)
	})

	t.Run("bad date", func(t *testing.T) {
		resp, _ := f.do(t, http.MethodPost, "/api/admin/digest/run", map[string]any{"date": "July 10"})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}
