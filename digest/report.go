/*
report.go - Per-department office PDF report

PURPOSE:
  Builds the consolidated document attached to each HOD's digest: one
  page group per request kind (Leave / OD / Disciplinary), each with a
  header block, a tabular body, and a per-kind row-count footer.
  Batch and section names are resolved lazily here; ids the directory
  doesn't know render as-is.
*/
package digest

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/go-pdf/fpdf"

	"github.com/campuskit/absence-engine/absence"
	"github.com/campuskit/absence-engine/directory"
)

type reportLine struct {
	Batch   string
	Section string
	row
}

// ReportBuilder renders department reports.
type ReportBuilder struct {
	Resolver directory.Resolver
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// resolveName falls back to the raw id (or the sentinel) when the
// directory has no entry.
func resolveName(name, id string) string {
	if name != "" {
		return name
	}
	return id
}

// Build renders the PDF for one department's day.
func (b *ReportBuilder) Build(day absence.Date, departmentID string, dept *DepartmentGroup) ([]byte, error) {
	deptName := resolveName(b.Resolver.DepartmentName(departmentID), departmentID)

	var leaves, ods, records []reportLine
	for _, batchID := range sortedKeys(dept.Batches) {
		batch := dept.Batches[batchID]
		batchName := resolveName(b.Resolver.BatchName(batchID), batchID)
		for _, sectionID := range sortedKeys(batch.Sections) {
			leaf := batch.Sections[sectionID]
			sectionName := resolveName(b.Resolver.SectionName(sectionID), sectionID)
			for _, req := range leaf.Leaves {
				leaves = append(leaves, reportLine{Batch: batchName, Section: sectionName, row: requestRow(req)})
			}
			for _, req := range leaf.ODs {
				ods = append(ods, reportLine{Batch: batchName, Section: sectionName, row: requestRow(req)})
			}
			for _, rec := range leaf.Disciplinary {
				records = append(records, reportLine{Batch: batchName, Section: sectionName, row: recordRow(rec)})
			}
		}
	}

	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetAutoPageBreak(true, 15)

	// Core fonts are cp1252; stick to ASCII in static text.
	writeSection(pdf, fmt.Sprintf("Leave requests - %s - %s", deptName, day), leaves,
		[]string{"Batch", "Section", "Student", "ID", "Dates", "Days", "Type", "Status"})
	writeSection(pdf, fmt.Sprintf("OD requests - %s - %s", deptName, day), ods,
		[]string{"Batch", "Section", "Student", "ID", "Dates", "Days", "Type", "Status"})
	writeSection(pdf, fmt.Sprintf("Disciplinary records - %s - %s", deptName, day), records,
		[]string{"Batch", "Section", "Student", "ID", "Entry date", "", "Category", "Observation"})

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render report for %s: %w", departmentID, err)
	}
	return buf.Bytes(), nil
}

var reportWidths = []float64{35, 30, 45, 30, 45, 15, 35, 35}

// writeSection adds one page group: header, table, count footer.
func writeSection(pdf *fpdf.Fpdf, title string, lines []reportLine, headers []string) {
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 10, title, "", 1, "L", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Helvetica", "B", 9)
	for i, h := range headers {
		if h == "" {
			continue
		}
		pdf.CellFormat(reportWidths[i], 7, h, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 9)
	for _, line := range lines {
		cells := []string{line.Batch, line.Section, line.Name, line.ID, line.Dates, line.Days, line.Type, line.Status}
		for i, cell := range cells {
			if headers[i] == "" {
				continue
			}
			pdf.CellFormat(reportWidths[i], 6, cell, "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}

	pdf.Ln(3)
	pdf.SetFont("Helvetica", "I", 9)
	pdf.CellFormat(0, 6, fmt.Sprintf("Total: %d", len(lines)), "", 1, "L", false, 0, "")
}
