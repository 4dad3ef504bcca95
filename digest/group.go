/*
Package digest aggregates one day's requests and disciplinary records
into per-recipient digests and per-department office reports.

PURPOSE:
  The nightly pipeline (pipeline.go) snapshots the target day, groups
  it two independent ways (group.go), renders a digest per staff
  recipient (render.go) and a paginated PDF per department
  (report.go), and fans the messages out through a bounded worker
  pool. The pipeline is strictly read-only over the stores and
  idempotent on content: re-running for the same day with unchanged
  data produces the same item sets and counts.

KEY CONCEPTS IN THIS FILE (group.go):
  - Tree:          department -> batch -> section nesting, one leaf of
                   Leave/OD/Disciplinary lists per section
  - RecipientView: keyed by staff id; a request appears under its
                   mentor AND its class incharge independently
  - Unassigned:    sentinel key for records missing an org id; a
                   malformed record groups there instead of failing
                   the whole run

SEE ALSO:
  - pipeline.go: orchestration and dispatch
  - report.go:   the HOD-facing PDF built from the Tree
*/
package digest

import (
	"sort"

	"github.com/campuskit/absence-engine/absence"
)

// Unassigned is the sentinel grouping key for missing org ids.
const Unassigned = "unassigned"

// =============================================================================
// GROUP STRUCTURES
// =============================================================================

// Leaf holds one section's (or one recipient's) matching items.
type Leaf struct {
	Leaves       []*absence.Request
	ODs          []*absence.Request
	Disciplinary []*absence.DisciplinaryRecord
}

func (l *Leaf) Empty() bool {
	return len(l.Leaves) == 0 && len(l.ODs) == 0 && len(l.Disciplinary) == 0
}

func (l *Leaf) addRequest(req *absence.Request) {
	if req.Kind == absence.KindOD {
		l.ODs = append(l.ODs, req)
		return
	}
	l.Leaves = append(l.Leaves, req)
}

type BatchGroup struct {
	Sections map[string]*Leaf
}

type DepartmentGroup struct {
	Batches map[string]*BatchGroup
}

// Tree is the hierarchical view: department -> batch -> section.
type Tree struct {
	Departments map[string]*DepartmentGroup
}

// RecipientView maps staff ids to the items they are responsible for.
type RecipientView map[absence.StaffID]*Leaf

// Grouped bundles both views built from one input snapshot.
type Grouped struct {
	Tree       *Tree
	Recipients RecipientView
}

// =============================================================================
// GROUPING
// =============================================================================

func orDefault(id string) string {
	if id == "" {
		return Unassigned
	}
	return id
}

func (t *Tree) leafFor(org absence.OrgPath) *Leaf {
	dept, ok := t.Departments[orDefault(org.DepartmentID)]
	if !ok {
		dept = &DepartmentGroup{Batches: make(map[string]*BatchGroup)}
		t.Departments[orDefault(org.DepartmentID)] = dept
	}
	batch, ok := dept.Batches[orDefault(org.BatchID)]
	if !ok {
		batch = &BatchGroup{Sections: make(map[string]*Leaf)}
		dept.Batches[orDefault(org.BatchID)] = batch
	}
	leaf, ok := batch.Sections[orDefault(org.SectionID)]
	if !ok {
		leaf = &Leaf{}
		batch.Sections[orDefault(org.SectionID)] = leaf
	}
	return leaf
}

func (rv RecipientView) bucketFor(staffID absence.StaffID) *Leaf {
	leaf, ok := rv[staffID]
	if !ok {
		leaf = &Leaf{}
		rv[staffID] = leaf
	}
	return leaf
}

// Group partitions the snapshot two ways. Every item lands in exactly
// one tree leaf, and in the recipient view under each of its non-empty
// mentor / class-incharge ids (one or two entries; one when the same
// staff member holds both roles).
func Group(leaves, ods []*absence.Request, records []*absence.DisciplinaryRecord) *Grouped {
	g := &Grouped{
		Tree:       &Tree{Departments: make(map[string]*DepartmentGroup)},
		Recipients: make(RecipientView),
	}

	for _, req := range append(append([]*absence.Request{}, leaves...), ods...) {
		g.Tree.leafFor(req.Org).addRequest(req)
		for _, staffID := range recipientIDs(req.MentorID, req.ClassInchargeID) {
			g.Recipients.bucketFor(staffID).addRequest(req)
		}
	}

	for _, rec := range records {
		leaf := g.Tree.leafFor(rec.Org)
		leaf.Disciplinary = append(leaf.Disciplinary, rec)
		for _, staffID := range recipientIDs(rec.MentorID, rec.ClassInchargeID) {
			bucket := g.Recipients.bucketFor(staffID)
			bucket.Disciplinary = append(bucket.Disciplinary, rec)
		}
	}

	g.sortAll()
	return g
}

// recipientIDs deduplicates the combined mentor/class-incharge role and
// drops empty ids.
func recipientIDs(mentor, classIncharge absence.StaffID) []absence.StaffID {
	var ids []absence.StaffID
	if mentor != "" {
		ids = append(ids, mentor)
	}
	if classIncharge != "" && classIncharge != mentor {
		ids = append(ids, classIncharge)
	}
	return ids
}

// sortAll orders every list deterministically so re-running a day
// yields byte-identical digests.
func (g *Grouped) sortAll() {
	for _, leaf := range g.Recipients {
		leaf.sort()
	}
	for _, dept := range g.Tree.Departments {
		for _, batch := range dept.Batches {
			for _, leaf := range batch.Sections {
				leaf.sort()
			}
		}
	}
}

func (l *Leaf) sort() {
	byStudent := func(reqs []*absence.Request) {
		sort.Slice(reqs, func(i, j int) bool {
			if reqs[i].StudentID != reqs[j].StudentID {
				return reqs[i].StudentID < reqs[j].StudentID
			}
			return reqs[i].ID < reqs[j].ID
		})
	}
	byStudent(l.Leaves)
	byStudent(l.ODs)
	sort.Slice(l.Disciplinary, func(i, j int) bool {
		if l.Disciplinary[i].StudentID != l.Disciplinary[j].StudentID {
			return l.Disciplinary[i].StudentID < l.Disciplinary[j].StudentID
		}
		return l.Disciplinary[i].ID < l.Disciplinary[j].ID
	})
}

// SortedDepartmentIDs returns department keys in stable order.
func (t *Tree) SortedDepartmentIDs() []string {
	ids := make([]string, 0, len(t.Departments))
	for id := range t.Departments {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Counts tallies the items in the tree for the run summary.
func (t *Tree) Counts() (leaves, ods, disciplinary int, perCategory map[string]int) {
	perCategory = make(map[string]int)
	for _, dept := range t.Departments {
		for _, batch := range dept.Batches {
			for _, leaf := range batch.Sections {
				leaves += len(leaf.Leaves)
				ods += len(leaf.ODs)
				disciplinary += len(leaf.Disciplinary)
				for _, rec := range leaf.Disciplinary {
					perCategory[rec.Category]++
				}
			}
		}
	}
	return leaves, ods, disciplinary, perCategory
}
