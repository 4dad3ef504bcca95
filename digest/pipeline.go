/*
pipeline.go - The daily aggregation run

PURPOSE:
  One Run per target day:
    1. Snapshot the day's Leave/OD requests and disciplinary records
       (read-only; a decision landing mid-run may or may not be
       reflected, which is acceptable for an informational digest).
    2. Build the hierarchical and recipient groupings.
    3. Render a digest per staff recipient with at least one item.
    4. Render one PDF report per department, attached to the digest
       sent to that department's HOD(s).
    5. Dispatch everything through the bounded worker pool and log
       the tally and run duration.

FAILURE SEMANTICS:
  A failure while building one recipient's digest is logged with the
  recipient id and skipped; the run proceeds. Dispatch failures are
  tallied per recipient by the pool. The run is re-runnable: the
  guarantee is at-least-once delivery, not exactly-once.
*/
package digest

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/campuskit/absence-engine/absence"
	"github.com/campuskit/absence-engine/directory"
	"github.com/campuskit/absence-engine/notify"
)

// =============================================================================
// RUN SUMMARY
// =============================================================================

// RunSummary records one aggregation run for operational visibility.
type RunSummary struct {
	Day          absence.Date
	Leaves       int
	ODs          int
	Disciplinary int
	PerCategory  map[string]int

	Recipients int // digests attempted (staff + HOD)
	Skipped    int // recipients whose digest failed to build
	Delivered  int
	Failed     int

	Duration time.Duration
}

// =============================================================================
// PIPELINE
// =============================================================================

type Pipeline struct {
	Requests absence.RequestStore
	Records  absence.DisciplinaryStore
	Resolver directory.Resolver
	Pool     *notify.Pool
	Reports  *ReportBuilder
}

func NewPipeline(requests absence.RequestStore, records absence.DisciplinaryStore, resolver directory.Resolver, pool *notify.Pool) *Pipeline {
	return &Pipeline{
		Requests: requests,
		Records:  records,
		Resolver: resolver,
		Pool:     pool,
		Reports:  &ReportBuilder{Resolver: resolver},
	}
}

// Run executes the aggregation for one calendar day.
func (p *Pipeline) Run(ctx context.Context, day absence.Date) (*RunSummary, error) {
	started := time.Now()
	log.Printf("[Digest] run starting for %s", day)

	// 1. Snapshot.
	leaves, err := p.Requests.ListByDay(ctx, absence.KindLeave, day)
	if err != nil {
		return nil, fmt.Errorf("snapshot leave requests: %w", err)
	}
	ods, err := p.Requests.ListByDay(ctx, absence.KindOD, day)
	if err != nil {
		return nil, fmt.Errorf("snapshot od requests: %w", err)
	}
	records, err := p.Records.ListByDay(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("snapshot disciplinary records: %w", err)
	}

	// 2. Group.
	grouped := Group(leaves, ods, records)

	summary := &RunSummary{Day: day}
	summary.Leaves, summary.ODs, summary.Disciplinary, summary.PerCategory = grouped.Tree.Counts()

	// 3. Staff digests.
	var msgs []notify.Message
	for _, staffID := range sortedStaffIDs(grouped.Recipients) {
		leaf := grouped.Recipients[staffID]
		if leaf.Empty() {
			continue
		}
		msg, err := p.buildStaffDigest(day, staffID, leaf)
		if err != nil {
			log.Printf("[Digest] skipping recipient %s: %v", staffID, err)
			summary.Skipped++
			continue
		}
		if msg != nil {
			msgs = append(msgs, *msg)
		}
	}

	// 4. Department reports for the HODs.
	for _, deptID := range grouped.Tree.SortedDepartmentIDs() {
		hodMsgs, err := p.buildHODDigests(day, deptID, grouped.Tree.Departments[deptID])
		if err != nil {
			log.Printf("[Digest] skipping department %s report: %v", deptID, err)
			summary.Skipped++
			continue
		}
		msgs = append(msgs, hodMsgs...)
	}

	// 5. Dispatch.
	summary.Recipients = len(msgs)
	tally := p.Pool.Dispatch(ctx, msgs)
	summary.Delivered = tally.Delivered
	summary.Failed = tally.Failed

	summary.Duration = time.Since(started)
	log.Printf("[Digest] run for %s done in %v: %d leaves, %d ODs, %d disciplinary; %d digests (%d delivered, %d failed, %d skipped)",
		day, summary.Duration, summary.Leaves, summary.ODs, summary.Disciplinary,
		summary.Recipients, summary.Delivered, summary.Failed, summary.Skipped)

	return summary, nil
}

// buildStaffDigest renders one mentor/class-incharge digest. A nil
// message (no error) means the recipient has no resolvable address.
func (p *Pipeline) buildStaffDigest(day absence.Date, staffID absence.StaffID, leaf *Leaf) (msg *notify.Message, err error) {
	// A malformed group must cost only this recipient, not the run.
	defer func() {
		if r := recover(); r != nil {
			msg, err = nil, fmt.Errorf("digest build panicked: %v", r)
		}
	}()

	staff, ok := p.Resolver.Staff(string(staffID))
	if !ok || staff.Email == "" {
		log.Printf("[Digest] no address for staff %s, skipping", staffID)
		return nil, nil
	}

	body, err := RenderRecipientDigest(day, staff, leaf)
	if err != nil {
		return nil, err
	}
	return &notify.Message{
		To:       staff.Email,
		Subject:  fmt.Sprintf("Absence digest for %s", day),
		HTMLBody: body,
	}, nil
}

// buildHODDigests renders one department report and addresses it to
// each HOD on file for the department.
func (p *Pipeline) buildHODDigests(day absence.Date, deptID string, dept *DepartmentGroup) ([]notify.Message, error) {
	pdfBytes, err := p.Reports.Build(day, deptID, dept)
	if err != nil {
		return nil, err
	}

	deptName := resolveName(p.Resolver.DepartmentName(deptID), deptID)
	attachment := notify.Attachment{
		Filename: fmt.Sprintf("absence-report-%s-%s.pdf", deptID, day),
		MIMEType: "application/pdf",
		Content:  pdfBytes,
	}

	var msgs []notify.Message
	for _, hodID := range p.Resolver.HODsFor(deptID) {
		hod, ok := p.Resolver.Staff(hodID)
		if !ok || hod.Email == "" {
			log.Printf("[Digest] no address for HOD %s of %s, skipping", hodID, deptID)
			continue
		}
		msgs = append(msgs, notify.Message{
			To:      hod.Email,
			Subject: fmt.Sprintf("Office absence report: %s (%s)", deptName, day),
			HTMLBody: fmt.Sprintf(
				"<p>Dear %s,</p><p>The consolidated absence report for %s on %s is attached.</p>",
				resolveName(hod.Name, hod.ID), deptName, day),
			Attachments: []notify.Attachment{attachment},
		})
	}
	return msgs, nil
}

func sortedStaffIDs(rv RecipientView) []absence.StaffID {
	ids := make([]absence.StaffID, 0, len(rv))
	for id := range rv {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
