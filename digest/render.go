/*
render.go - Per-recipient HTML digest

PURPOSE:
  Renders one staff recipient's daily digest: a section per kind
  (Leave / OD / Disciplinary), each row carrying the student's name,
  id, date(s), type or category, and current status.

  html/template is used so free-text reasons and observations are
  escaped; no template engine beyond the standard library is needed
  for three static tables.
*/
package digest

import (
	"fmt"
	"html/template"
	"strings"

	"github.com/campuskit/absence-engine/absence"
	"github.com/campuskit/absence-engine/directory"
)

var digestTmpl = template.Must(template.New("digest").Parse(`
<h2>Daily absence digest for {{.Day}}</h2>
<p>Dear {{.Recipient}},</p>
<p>Summary of requests and records for your students on {{.Day}}.</p>
{{if .Leaves}}
<h3>Leave requests ({{len .Leaves}})</h3>
<table border="1" cellpadding="4" cellspacing="0">
<tr><th>Student</th><th>ID</th><th>Dates</th><th>Days</th><th>Type</th><th>Status</th></tr>
{{range .Leaves}}<tr><td>{{.Name}}</td><td>{{.ID}}</td><td>{{.Dates}}</td><td>{{.Days}}</td><td>{{.Type}}</td><td>{{.Status}}</td></tr>
{{end}}</table>
{{end}}
{{if .ODs}}
<h3>OD requests ({{len .ODs}})</h3>
<table border="1" cellpadding="4" cellspacing="0">
<tr><th>Student</th><th>ID</th><th>Dates</th><th>Days</th><th>Type</th><th>Status</th></tr>
{{range .ODs}}<tr><td>{{.Name}}</td><td>{{.ID}}</td><td>{{.Dates}}</td><td>{{.Days}}</td><td>{{.Type}}</td><td>{{.Status}}</td></tr>
{{end}}</table>
{{end}}
{{if .Records}}
<h3>Disciplinary records ({{len .Records}})</h3>
<table border="1" cellpadding="4" cellspacing="0">
<tr><th>Student</th><th>ID</th><th>Entry date</th><th>Category</th><th>Observation</th></tr>
{{range .Records}}<tr><td>{{.Name}}</td><td>{{.ID}}</td><td>{{.Dates}}</td><td>{{.Type}}</td><td>{{.Status}}</td></tr>
{{end}}</table>
{{end}}
`))

// row is one rendered table line; the column meanings shift slightly
// per kind (Status carries the observation for disciplinary rows).
type row struct {
	Name   string
	ID     string
	Dates  string
	Days   string
	Type   string
	Status string
}

type digestData struct {
	Day       string
	Recipient string
	Leaves    []row
	ODs       []row
	Records   []row
}

func requestRow(req *absence.Request) row {
	dates := req.FromDate.String()
	if !req.ToDate.Equal(req.FromDate) {
		dates = fmt.Sprintf("%s to %s", req.FromDate, req.ToDate)
	}
	kind := "regular"
	if req.Kind == absence.KindOD {
		kind = string(req.ODType)
		if req.EventName != "" {
			kind = fmt.Sprintf("%s (%s)", kind, req.EventName)
		}
	} else if req.Medical {
		kind = "medical"
	}
	return row{
		Name:   req.StudentName,
		ID:     string(req.StudentID),
		Dates:  dates,
		Days:   req.Days.String(),
		Type:   kind,
		Status: string(req.OverallStatus),
	}
}

func recordRow(rec *absence.DisciplinaryRecord) row {
	return row{
		Name:   rec.StudentName,
		ID:     string(rec.StudentID),
		Dates:  absence.DateOf(rec.ObservedAt).String(),
		Type:   rec.Category,
		Status: rec.Observation,
	}
}

// RenderRecipientDigest renders the HTML body for one recipient.
func RenderRecipientDigest(day absence.Date, recipient directory.Person, leaf *Leaf) (string, error) {
	data := digestData{Day: day.String(), Recipient: recipient.Name}
	if data.Recipient == "" {
		data.Recipient = recipient.ID
	}
	for _, req := range leaf.Leaves {
		data.Leaves = append(data.Leaves, requestRow(req))
	}
	for _, req := range leaf.ODs {
		data.ODs = append(data.ODs, requestRow(req))
	}
	for _, rec := range leaf.Disciplinary {
		data.Records = append(data.Records, recordRow(rec))
	}

	var b strings.Builder
	if err := digestTmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render digest for %s: %w", recipient.ID, err)
	}
	return b.String(), nil
}
