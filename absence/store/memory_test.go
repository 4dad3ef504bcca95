package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuskit/absence-engine/absence"
)

func pendingRequest(id string, from, to absence.Date) *absence.Request {
	now := time.Date(2025, time.July, 1, 9, 0, 0, 0, time.UTC)
	return &absence.Request{
		ID:            absence.RequestID(id),
		Kind:          absence.KindLeave,
		StudentID:     "stu-s",
		FromDate:      from,
		ToDate:        to,
		OverallStatus: absence.StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func d(day int) absence.Date { return absence.NewDate(2025, time.July, day) }

// TestMemoryInsert_OverlapGate: the gate and the write share one lock
// hold, so an overlapping insert loses atomically.
func TestMemoryInsert_OverlapGate(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.Insert(ctx, pendingRequest("r1", d(10), d(12))))

	err := m.Insert(ctx, pendingRequest("r2", d(11), d(13)))
	require.ErrorIs(t, err, absence.ErrConflict)
	var conflict *absence.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, absence.RequestID("r1"), conflict.ExistingID)

	_, err = m.Get(ctx, absence.KindLeave, "r2")
	assert.ErrorIs(t, err, absence.ErrNotFound, "a losing insert writes nothing")

	t.Run("other kind is free", func(t *testing.T) {
		od := pendingRequest("r3", d(10), d(12))
		od.Kind = absence.KindOD
		assert.NoError(t, m.Insert(ctx, od))
	})
}

// TestMemoryUpdate_CompareAndSwap: an update built on a stale read
// fails instead of overwriting the newer state.
func TestMemoryUpdate_CompareAndSwap(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.Insert(ctx, pendingRequest("r1", d(10), d(12))))

	stale, err := m.Get(ctx, absence.KindLeave, "r1")
	require.NoError(t, err)

	// A first writer moves the request.
	first := stale.Clone()
	first.OverallStatus = absence.StatusApproved
	first.UpdatedAt = stale.UpdatedAt.Add(time.Second)
	require.NoError(t, m.Update(ctx, first, stale.UpdatedAt))

	// A second writer holding the stale read must not win.
	second := stale.Clone()
	second.OverallStatus = absence.StatusRejected
	second.UpdatedAt = stale.UpdatedAt.Add(2 * time.Second)
	err = m.Update(ctx, second, stale.UpdatedAt)
	assert.ErrorIs(t, err, absence.ErrStaleUpdate)

	current, err := m.Get(ctx, absence.KindLeave, "r1")
	require.NoError(t, err)
	assert.Equal(t, absence.StatusApproved, current.OverallStatus,
		"the first write survives")

	// With the fresh timestamp the swap goes through.
	second.UpdatedAt = first.UpdatedAt.Add(time.Second)
	assert.NoError(t, m.Update(ctx, second, first.UpdatedAt))
}

func TestMemoryUpdate_UnknownID(t *testing.T) {
	m := NewMemory()
	err := m.Update(context.Background(), pendingRequest("ghost", d(1), d(2)), time.Now())
	assert.ErrorIs(t, err, absence.ErrNotFound)
}
