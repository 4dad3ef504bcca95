// Package store provides in-memory implementations of the absence
// storage interfaces, used by tests and dev mode.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/campuskit/absence-engine/absence"
)

// =============================================================================
// MEMORY REQUEST STORE
// =============================================================================

type Memory struct {
	mu       sync.RWMutex
	requests map[reqKey]*absence.Request
}

type reqKey struct {
	Kind absence.RequestKind
	ID   absence.RequestID
}

func NewMemory() *Memory {
	return &Memory{requests: make(map[reqKey]*absence.Request)}
}

// Insert runs the overlap gate and the write under one lock hold, so
// concurrent creations over the same range admit exactly one winner.
func (m *Memory) Insert(_ context.Context, req *absence.Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var candidates []*absence.Request
	for k, existing := range m.requests {
		if k.Kind == req.Kind && existing.StudentID == req.StudentID {
			candidates = append(candidates, existing)
		}
	}
	if blocker := absence.FindOverlap(candidates, req.FromDate, req.ToDate); blocker != nil {
		return absence.NewConflictError(blocker)
	}
	m.requests[reqKey{Kind: req.Kind, ID: req.ID}] = req.Clone()
	return nil
}

// Update swaps the stored request in one step, but only while its
// UpdatedAt still matches expected. A concurrent decision fails the
// swap with ErrStaleUpdate instead of being overwritten, and readers
// holding clones never see a half-applied decision.
func (m *Memory) Update(_ context.Context, req *absence.Request, expected time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := reqKey{Kind: req.Kind, ID: req.ID}
	current, ok := m.requests[k]
	if !ok {
		return absence.ErrNotFound
	}
	if !current.UpdatedAt.Equal(expected) {
		return absence.ErrStaleUpdate
	}
	m.requests[k] = req.Clone()
	return nil
}

func (m *Memory) Get(_ context.Context, kind absence.RequestKind, id absence.RequestID) (*absence.Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	req, ok := m.requests[reqKey{Kind: kind, ID: id}]
	if !ok {
		return nil, absence.ErrNotFound
	}
	return req.Clone(), nil
}

func (m *Memory) Delete(_ context.Context, kind absence.RequestKind, id absence.RequestID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := reqKey{Kind: kind, ID: id}
	if _, ok := m.requests[k]; !ok {
		return absence.ErrNotFound
	}
	delete(m.requests, k)
	return nil
}

// collect returns clones matching the predicate, newest first.
func (m *Memory) collect(kind absence.RequestKind, match func(*absence.Request) bool) []*absence.Request {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*absence.Request
	for k, req := range m.requests {
		if k.Kind == kind && match(req) {
			out = append(out, req.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (m *Memory) ListByStudent(_ context.Context, kind absence.RequestKind, studentID absence.StudentID) ([]*absence.Request, error) {
	return m.collect(kind, func(r *absence.Request) bool { return r.StudentID == studentID }), nil
}

func (m *Memory) ListByApprover(_ context.Context, kind absence.RequestKind, staffID absence.StaffID) ([]*absence.Request, error) {
	return m.collect(kind, func(r *absence.Request) bool {
		return r.MentorID == staffID || r.ClassInchargeID == staffID || r.HODID == staffID
	}), nil
}

func (m *Memory) ListBySection(_ context.Context, kind absence.RequestKind, sectionID string) ([]*absence.Request, error) {
	return m.collect(kind, func(r *absence.Request) bool { return r.Org.SectionID == sectionID }), nil
}

func (m *Memory) ListByDay(_ context.Context, kind absence.RequestKind, day absence.Date) ([]*absence.Request, error) {
	return m.collect(kind, func(r *absence.Request) bool { return r.FromDate.Equal(day) }), nil
}

// =============================================================================
// MEMORY DISCIPLINARY STORE
// =============================================================================

type MemoryDisciplinary struct {
	mu      sync.RWMutex
	records map[string]*absence.DisciplinaryRecord
}

func NewMemoryDisciplinary() *MemoryDisciplinary {
	return &MemoryDisciplinary{records: make(map[string]*absence.DisciplinaryRecord)}
}

func (m *MemoryDisciplinary) Insert(_ context.Context, rec *absence.DisciplinaryRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rec
	m.records[rec.ID] = &cp
	return nil
}

func (m *MemoryDisciplinary) collect(match func(*absence.DisciplinaryRecord) bool) []*absence.DisciplinaryRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*absence.DisciplinaryRecord
	for _, rec := range m.records {
		if match(rec) {
			cp := *rec
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (m *MemoryDisciplinary) ListByStudent(_ context.Context, studentID absence.StudentID) ([]*absence.DisciplinaryRecord, error) {
	return m.collect(func(r *absence.DisciplinaryRecord) bool { return r.StudentID == studentID }), nil
}

func (m *MemoryDisciplinary) ListByDay(_ context.Context, day absence.Date) ([]*absence.DisciplinaryRecord, error) {
	return m.collect(func(r *absence.DisciplinaryRecord) bool { return day.Contains(r.ObservedAt) }), nil
}
