package digest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuskit/absence-engine/absence"
)

func req(id string, kind absence.RequestKind, student string, org absence.OrgPath, mentor, classIncharge absence.StaffID) *absence.Request {
	return &absence.Request{
		ID:              absence.RequestID(id),
		Kind:            kind,
		StudentID:       absence.StudentID(student),
		Org:             org,
		FromDate:        absence.NewDate(2025, time.July, 10),
		ToDate:          absence.NewDate(2025, time.July, 12),
		MentorID:        mentor,
		ClassInchargeID: classIncharge,
	}
}

var cseA = absence.OrgPath{DepartmentID: "cse", BatchID: "2027", SectionID: "cse-a"}
var eceB = absence.OrgPath{DepartmentID: "ece", BatchID: "2026", SectionID: "ece-b"}

// TestGroup_TreePartition: every item lands in exactly one section leaf
// under its own department and batch.
func TestGroup_TreePartition(t *testing.T) {
	leaves := []*absence.Request{
		req("l1", absence.KindLeave, "s1", cseA, "m1", "c1"),
		req("l2", absence.KindLeave, "s2", eceB, "m2", "c2"),
	}
	ods := []*absence.Request{
		req("o1", absence.KindOD, "s1", cseA, "m1", "c1"),
	}
	records := []*absence.DisciplinaryRecord{
		{ID: "d1", StudentID: "s2", Org: eceB, Category: "late", MentorID: "m2"},
	}

	g := Group(leaves, ods, records)

	require.Len(t, g.Tree.Departments, 2)
	cseLeaf := g.Tree.Departments["cse"].Batches["2027"].Sections["cse-a"]
	require.NotNil(t, cseLeaf)
	assert.Len(t, cseLeaf.Leaves, 1)
	assert.Len(t, cseLeaf.ODs, 1)
	assert.Empty(t, cseLeaf.Disciplinary)

	eceLeaf := g.Tree.Departments["ece"].Batches["2026"].Sections["ece-b"]
	require.NotNil(t, eceLeaf)
	assert.Len(t, eceLeaf.Leaves, 1)
	assert.Len(t, eceLeaf.Disciplinary, 1)

	treeLeaves, treeODs, treeDisc, perCategory := g.Tree.Counts()
	assert.Equal(t, 2, treeLeaves)
	assert.Equal(t, 1, treeODs)
	assert.Equal(t, 1, treeDisc)
	assert.Equal(t, map[string]int{"late": 1}, perCategory)
}

// TestGroup_RecipientAttribution: a request appears under its mentor
// AND its class incharge; a combined role gets it once.
func TestGroup_RecipientAttribution(t *testing.T) {
	leaves := []*absence.Request{
		req("l1", absence.KindLeave, "s1", cseA, "m1", "c1"),
		req("l2", absence.KindLeave, "s2", cseA, "both", "both"),
	}

	g := Group(leaves, nil, nil)

	require.Len(t, g.Recipients["m1"].Leaves, 1)
	require.Len(t, g.Recipients["c1"].Leaves, 1)
	assert.Equal(t, g.Recipients["m1"].Leaves[0].ID, g.Recipients["c1"].Leaves[0].ID,
		"the same request reaches both staff members")

	require.Len(t, g.Recipients["both"].Leaves, 1, "combined role is deduplicated")
}

// TestGroup_UnassignedSentinel: a record with missing org ids groups
// under "unassigned" instead of failing the run.
func TestGroup_UnassignedSentinel(t *testing.T) {
	orphan := req("l1", absence.KindLeave, "s1", absence.OrgPath{}, "", "")

	g := Group([]*absence.Request{orphan}, nil, nil)

	leaf := g.Tree.Departments[Unassigned].Batches[Unassigned].Sections[Unassigned]
	require.NotNil(t, leaf)
	assert.Len(t, leaf.Leaves, 1)
	assert.Empty(t, g.Recipients, "no staff ids, no recipient entries")
}

// TestGroup_Deterministic: two runs over the same snapshot produce the
// same ordering inside every leaf.
func TestGroup_Deterministic(t *testing.T) {
	leaves := []*absence.Request{
		req("l2", absence.KindLeave, "s2", cseA, "m1", "c1"),
		req("l1", absence.KindLeave, "s1", cseA, "m1", "c1"),
		req("l3", absence.KindLeave, "s1", cseA, "m1", "c1"),
	}

	first := Group(leaves, nil, nil).Recipients["m1"]
	second := Group([]*absence.Request{leaves[2], leaves[0], leaves[1]}, nil, nil).Recipients["m1"]

	ids := func(l *Leaf) []absence.RequestID {
		out := make([]absence.RequestID, len(l.Leaves))
		for i, r := range l.Leaves {
			out[i] = r.ID
		}
		return out
	}
	assert.Equal(t, ids(first), ids(second))
	assert.Equal(t, []absence.RequestID{"l1", "l3", "l2"}, ids(first),
		"sorted by student then id")
}

func TestLeafEmpty(t *testing.T) {
	assert.True(t, (&Leaf{}).Empty())
	assert.False(t, (&Leaf{ODs: []*absence.Request{req("o1", absence.KindOD, "s1", cseA, "m1", "")}}).Empty())
}
