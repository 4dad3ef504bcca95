/*
Package directory resolves ids to people and organizational names.

PURPOSE:
  The engine stores ids (students, staff, department/batch/section) on
  every request at creation time; names and email addresses are owned
  by the institution's directory and resolved lazily at render time.
  This package defines that collaborator boundary plus a static
  in-memory implementation for tests, dev, and seeding.

  Directory management (CRUD, spreadsheet import) is out of scope for
  the engine; anything implementing Resolver can stand in.
*/
package directory

import "sync"

// Person is a resolved student or staff member.
type Person struct {
	ID    string
	Name  string
	Email string
}

// Resolver supplies names and addresses for ids the engine stores.
// Unknown ids resolve to zero values; renderers fall back to the raw
// id rather than failing a digest run.
type Resolver interface {
	Student(id string) (Person, bool)
	Staff(id string) (Person, bool)
	DepartmentName(id string) string
	BatchName(id string) string
	SectionName(id string) string

	// HODsFor returns the staff ids of the HOD(s) of a department.
	// The office report for a department is attached to their digest.
	HODsFor(departmentID string) []string
}

// =============================================================================
// STATIC RESOLVER
// =============================================================================

// Static is a map-backed Resolver.
type Static struct {
	mu          sync.RWMutex
	students    map[string]Person
	staff       map[string]Person
	departments map[string]string
	batches     map[string]string
	sections    map[string]string
	hods        map[string][]string
}

func NewStatic() *Static {
	return &Static{
		students:    make(map[string]Person),
		staff:       make(map[string]Person),
		departments: make(map[string]string),
		batches:     make(map[string]string),
		sections:    make(map[string]string),
		hods:        make(map[string][]string),
	}
}

func (s *Static) AddStudent(p Person) *Static {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.students[p.ID] = p
	return s
}

func (s *Static) AddStaff(p Person) *Static {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.staff[p.ID] = p
	return s
}

func (s *Static) AddDepartment(id, name string, hodIDs ...string) *Static {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.departments[id] = name
	s.hods[id] = append(s.hods[id], hodIDs...)
	return s
}

func (s *Static) AddBatch(id, name string) *Static {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches[id] = name
	return s
}

func (s *Static) AddSection(id, name string) *Static {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sections[id] = name
	return s
}

func (s *Static) Student(id string) (Person, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.students[id]
	return p, ok
}

func (s *Static) Staff(id string) (Person, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.staff[id]
	return p, ok
}

func (s *Static) DepartmentName(id string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.departments[id]
}

func (s *Static) BatchName(id string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.batches[id]
}

func (s *Static) SectionName(id string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sections[id]
}

func (s *Static) HODsFor(departmentID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.hods[departmentID]))
	copy(out, s.hods[departmentID])
	return out
}
