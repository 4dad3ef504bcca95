/*
Package sqlite provides a SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements absence.RequestStore and absence.DisciplinaryStore using
  SQLite. In production the same patterns apply to PostgreSQL - only
  minor SQL dialect differences.

TABLE LAYOUT:
  One table per request kind (leave_requests, od_requests) plus one
  for disciplinary_records, each row matching the domain shape. Stage
  decisions are explicit columns, not a side table: a request always
  has exactly three stage slots, and a combined-role decision must
  land in ONE UPDATE so no reader can observe half of it.

DATES:
  Day-granular dates are stored as YYYY-MM-DD text, which compares
  lexicographically, so the overlap predicate runs directly in SQL.

WAL MODE:
  SQLite is opened with WAL so the aggregation snapshot reads don't
  block decision writes.

SEE ALSO:
  - absence/store.go: interface definitions
  - absence/store/memory.go: in-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/campuskit/absence-engine/absence"
)

// Store implements the absence storage interfaces using SQLite.
type Store struct {
	db *sql.DB

	// mu serializes the write paths (overlap-gated insert, CAS update).
	// WAL keeps the aggregation snapshot reads off this lock.
	mu sync.Mutex
}

// New creates a SQLite store. Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

const requestColumns = `
	id TEXT PRIMARY KEY,
	student_id TEXT NOT NULL,
	student_name TEXT,
	department_id TEXT,
	batch_id TEXT,
	section_id TEXT,
	from_date TEXT NOT NULL,
	to_date TEXT NOT NULL,
	day_count TEXT NOT NULL,
	half_day INTEGER NOT NULL DEFAULT 0,
	mentor_id TEXT,
	class_incharge_id TEXT,
	hod_id TEXT,
	reason TEXT,
	medical INTEGER NOT NULL DEFAULT 0,
	od_type TEXT,
	event_name TEXT,
	venue TEXT,
	mentor_status TEXT NOT NULL,
	mentor_comment TEXT,
	mentor_decided_at TEXT,
	ci_status TEXT NOT NULL,
	ci_comment TEXT,
	ci_decided_at TEXT,
	hod_status TEXT NOT NULL,
	hod_comment TEXT,
	hod_decided_at TEXT,
	overall_status TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL`

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS leave_requests (%s);
	CREATE TABLE IF NOT EXISTS od_requests (%s);

	CREATE INDEX IF NOT EXISTS idx_leave_student_range ON leave_requests(student_id, from_date, to_date);
	CREATE INDEX IF NOT EXISTS idx_leave_from_date ON leave_requests(from_date);
	CREATE INDEX IF NOT EXISTS idx_od_student_range ON od_requests(student_id, from_date, to_date);
	CREATE INDEX IF NOT EXISTS idx_od_from_date ON od_requests(from_date);

	CREATE TABLE IF NOT EXISTS disciplinary_records (
		id TEXT PRIMARY KEY,
		student_id TEXT NOT NULL,
		student_name TEXT,
		department_id TEXT,
		batch_id TEXT,
		section_id TEXT,
		category TEXT NOT NULL,
		observed_at TEXT NOT NULL,
		observation TEXT,
		mentor_id TEXT,
		class_incharge_id TEXT,
		remediation_done INTEGER NOT NULL DEFAULT 0,
		remediation TEXT,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_disciplinary_observed ON disciplinary_records(observed_at);
	`, requestColumns, requestColumns)

	_, err := s.db.Exec(schema)
	return err
}

func tableFor(kind absence.RequestKind) string {
	if kind == absence.KindOD {
		return "od_requests"
	}
	return "leave_requests"
}

// =============================================================================
// REQUEST STORE
// =============================================================================

const requestFieldList = `id, student_id, student_name, department_id, batch_id, section_id,
	from_date, to_date, day_count, half_day, mentor_id, class_incharge_id, hod_id,
	reason, medical, od_type, event_name, venue,
	mentor_status, mentor_comment, mentor_decided_at,
	ci_status, ci_comment, ci_decided_at,
	hod_status, hod_comment, hod_decided_at,
	overall_status, created_at, updated_at`

func requestArgs(req *absence.Request) []any {
	mentor := req.Decisions[absence.StageMentor]
	ci := req.Decisions[absence.StageClassIncharge]
	hod := req.Decisions[absence.StageHOD]
	return []any{
		string(req.ID), string(req.StudentID), req.StudentName,
		req.Org.DepartmentID, req.Org.BatchID, req.Org.SectionID,
		req.FromDate.String(), req.ToDate.String(), req.Days.String(), boolToInt(req.HalfDay),
		string(req.MentorID), string(req.ClassInchargeID), string(req.HODID),
		req.Reason, boolToInt(req.Medical), string(req.ODType), req.EventName, req.Venue,
		string(mentor.Status), mentor.Comment, formatTime(mentor.DecidedAt),
		string(ci.Status), ci.Comment, formatTime(ci.DecidedAt),
		string(hod.Status), hod.Comment, formatTime(hod.DecidedAt),
		string(req.OverallStatus), formatTime(req.CreatedAt), formatTime(req.UpdatedAt),
	}
}

// Insert runs the overlap gate and the write in one transaction under
// the write lock, so concurrent creations over the same range admit
// exactly one winner.
func (s *Store) Insert(ctx context.Context, req *absence.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("insert request %s: %w", req.ID, err)
	}
	defer tx.Rollback()

	// Inclusive-bounds overlap in SQL: existing.from <= to AND
	// from <= existing.to. Dates compare lexicographically.
	blockerQuery := fmt.Sprintf(
		`SELECT %s FROM %s WHERE student_id = ? AND from_date <= ? AND ? <= to_date
		ORDER BY created_at LIMIT 1`, requestFieldList, tableFor(req.Kind))
	blocker, err := scanRequest(tx.QueryRowContext(ctx, blockerQuery,
		string(req.StudentID), req.ToDate.String(), req.FromDate.String()), req.Kind)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("insert request %s: %w", req.ID, err)
	}
	if err == nil {
		return absence.NewConflictError(blocker)
	}

	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		tableFor(req.Kind), requestFieldList)
	if _, err := tx.ExecContext(ctx, query, requestArgs(req)...); err != nil {
		return fmt.Errorf("insert request %s: %w", req.ID, err)
	}
	return tx.Commit()
}

// Update rewrites the whole row in one statement so a combined-role
// decision is atomic. The WHERE clause carries the compare-and-swap:
// the row only moves while updated_at still matches the state the
// caller read.
func (s *Store) Update(ctx context.Context, req *absence.Request, expected time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	args := requestArgs(req)
	query := fmt.Sprintf(`UPDATE %s SET
		student_id=?, student_name=?, department_id=?, batch_id=?, section_id=?,
		from_date=?, to_date=?, day_count=?, half_day=?, mentor_id=?, class_incharge_id=?, hod_id=?,
		reason=?, medical=?, od_type=?, event_name=?, venue=?,
		mentor_status=?, mentor_comment=?, mentor_decided_at=?,
		ci_status=?, ci_comment=?, ci_decided_at=?,
		hod_status=?, hod_comment=?, hod_decided_at=?,
		overall_status=?, created_at=?, updated_at=?
		WHERE id=? AND updated_at=?`, tableFor(req.Kind))
	res, err := s.db.ExecContext(ctx, query, append(args[1:], args[0], formatTime(expected))...)
	if err != nil {
		return fmt.Errorf("update request %s: %w", req.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// Unknown id and lost race look the same to the UPDATE.
		if _, err := s.Get(ctx, req.Kind, req.ID); err != nil {
			return err
		}
		return absence.ErrStaleUpdate
	}
	return nil
}

func (s *Store) Get(ctx context.Context, kind absence.RequestKind, id absence.RequestID) (*absence.Request, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = ?`, requestFieldList, tableFor(kind))
	req, err := scanRequest(s.db.QueryRowContext(ctx, query, string(id)), kind)
	if err == sql.ErrNoRows {
		return nil, absence.ErrNotFound
	}
	return req, err
}

func (s *Store) Delete(ctx context.Context, kind absence.RequestKind, id absence.RequestID) error {
	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, tableFor(kind)), string(id))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return absence.ErrNotFound
	}
	return nil
}

func (s *Store) ListByStudent(ctx context.Context, kind absence.RequestKind, studentID absence.StudentID) ([]*absence.Request, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE student_id = ? ORDER BY created_at DESC`,
		requestFieldList, tableFor(kind))
	return s.queryRequests(ctx, kind, query, string(studentID))
}

func (s *Store) ListByApprover(ctx context.Context, kind absence.RequestKind, staffID absence.StaffID) ([]*absence.Request, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE mentor_id = ? OR class_incharge_id = ? OR hod_id = ?
		ORDER BY created_at DESC`, requestFieldList, tableFor(kind))
	return s.queryRequests(ctx, kind, query, string(staffID), string(staffID), string(staffID))
}

func (s *Store) ListBySection(ctx context.Context, kind absence.RequestKind, sectionID string) ([]*absence.Request, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE section_id = ? ORDER BY created_at DESC`,
		requestFieldList, tableFor(kind))
	return s.queryRequests(ctx, kind, query, sectionID)
}

func (s *Store) ListByDay(ctx context.Context, kind absence.RequestKind, day absence.Date) ([]*absence.Request, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE from_date = ? ORDER BY created_at DESC`,
		requestFieldList, tableFor(kind))
	return s.queryRequests(ctx, kind, query, day.String())
}

func (s *Store) queryRequests(ctx context.Context, kind absence.RequestKind, query string, args ...any) ([]*absence.Request, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*absence.Request
	for rows.Next() {
		req, err := scanRequest(rows, kind)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner, kind absence.RequestKind) (*absence.Request, error) {
	var (
		req                                   absence.Request
		id, studentID, mentorID, ciID, hodID  string
		fromDate, toDate, dayCount            string
		halfDay, medical                      int
		odType                                string
		mentorStatus, mentorComment, mentorAt string
		ciStatus, ciComment, ciAt             string
		hodStatus, hodComment, hodAt          string
		overall, createdAt, updatedAt         string
	)
	err := row.Scan(
		&id, &studentID, &req.StudentName,
		&req.Org.DepartmentID, &req.Org.BatchID, &req.Org.SectionID,
		&fromDate, &toDate, &dayCount, &halfDay,
		&mentorID, &ciID, &hodID,
		&req.Reason, &medical, &odType, &req.EventName, &req.Venue,
		&mentorStatus, &mentorComment, &mentorAt,
		&ciStatus, &ciComment, &ciAt,
		&hodStatus, &hodComment, &hodAt,
		&overall, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	req.ID = absence.RequestID(id)
	req.Kind = kind
	req.StudentID = absence.StudentID(studentID)
	req.MentorID = absence.StaffID(mentorID)
	req.ClassInchargeID = absence.StaffID(ciID)
	req.HODID = absence.StaffID(hodID)
	req.HalfDay = halfDay != 0
	req.Medical = medical != 0
	req.ODType = absence.ODType(odType)
	req.OverallStatus = absence.Status(overall)

	if req.FromDate, err = absence.ParseDate(fromDate); err != nil {
		return nil, err
	}
	if req.ToDate, err = absence.ParseDate(toDate); err != nil {
		return nil, err
	}
	if req.Days, err = decimal.NewFromString(dayCount); err != nil {
		return nil, fmt.Errorf("request %s: bad day count %q: %w", id, dayCount, err)
	}
	req.CreatedAt = parseTime(createdAt)
	req.UpdatedAt = parseTime(updatedAt)

	req.Decisions = map[absence.Stage]absence.Decision{
		absence.StageMentor:        {Status: absence.Status(mentorStatus), Comment: mentorComment, DecidedAt: parseTime(mentorAt)},
		absence.StageClassIncharge: {Status: absence.Status(ciStatus), Comment: ciComment, DecidedAt: parseTime(ciAt)},
		absence.StageHOD:           {Status: absence.Status(hodStatus), Comment: hodComment, DecidedAt: parseTime(hodAt)},
	}
	return &req, nil
}

// =============================================================================
// DISCIPLINARY STORE
// =============================================================================

func (s *Store) InsertDisciplinary(ctx context.Context, rec *absence.DisciplinaryRecord) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO disciplinary_records
		(id, student_id, student_name, department_id, batch_id, section_id,
		 category, observed_at, observation, mentor_id, class_incharge_id,
		 remediation_done, remediation, created_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		rec.ID, string(rec.StudentID), rec.StudentName,
		rec.Org.DepartmentID, rec.Org.BatchID, rec.Org.SectionID,
		rec.Category, formatTime(rec.ObservedAt), rec.Observation,
		string(rec.MentorID), string(rec.ClassInchargeID),
		boolToInt(rec.RemediationDone), rec.Remediation, formatTime(rec.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert disciplinary record %s: %w", rec.ID, err)
	}
	return nil
}

func (s *Store) ListDisciplinaryByStudent(ctx context.Context, studentID absence.StudentID) ([]*absence.DisciplinaryRecord, error) {
	return s.queryDisciplinary(ctx,
		`SELECT id, student_id, student_name, department_id, batch_id, section_id,
			category, observed_at, observation, mentor_id, class_incharge_id,
			remediation_done, remediation, created_at
		 FROM disciplinary_records WHERE student_id = ? ORDER BY created_at DESC`,
		string(studentID))
}

func (s *Store) ListDisciplinaryByDay(ctx context.Context, day absence.Date) ([]*absence.DisciplinaryRecord, error) {
	start, end := day.Window()
	return s.queryDisciplinary(ctx,
		`SELECT id, student_id, student_name, department_id, batch_id, section_id,
			category, observed_at, observation, mentor_id, class_incharge_id,
			remediation_done, remediation, created_at
		 FROM disciplinary_records WHERE observed_at >= ? AND observed_at < ?
		 ORDER BY created_at DESC`,
		formatTime(start), formatTime(end))
}

func (s *Store) queryDisciplinary(ctx context.Context, query string, args ...any) ([]*absence.DisciplinaryRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*absence.DisciplinaryRecord
	for rows.Next() {
		var (
			rec                 absence.DisciplinaryRecord
			studentID           string
			mentorID, ciID      string
			observedAt, created string
			done                int
		)
		err := rows.Scan(&rec.ID, &studentID, &rec.StudentName,
			&rec.Org.DepartmentID, &rec.Org.BatchID, &rec.Org.SectionID,
			&rec.Category, &observedAt, &rec.Observation, &mentorID, &ciID,
			&done, &rec.Remediation, &created)
		if err != nil {
			return nil, err
		}
		rec.StudentID = absence.StudentID(studentID)
		rec.MentorID = absence.StaffID(mentorID)
		rec.ClassInchargeID = absence.StaffID(ciID)
		rec.RemediationDone = done != 0
		rec.ObservedAt = parseTime(observedAt)
		rec.CreatedAt = parseTime(created)
		out = append(out, &rec)
	}
	return out, rows.Err()
}

// DisciplinaryView adapts the Store to absence.DisciplinaryStore (the
// method names clash with the request store's on the same receiver).
type DisciplinaryView struct{ *Store }

func (v DisciplinaryView) Insert(ctx context.Context, rec *absence.DisciplinaryRecord) error {
	return v.InsertDisciplinary(ctx, rec)
}

func (v DisciplinaryView) ListByStudent(ctx context.Context, studentID absence.StudentID) ([]*absence.DisciplinaryRecord, error) {
	return v.ListDisciplinaryByStudent(ctx, studentID)
}

func (v DisciplinaryView) ListByDay(ctx context.Context, day absence.Date) ([]*absence.DisciplinaryRecord, error) {
	return v.ListDisciplinaryByDay(ctx, day)
}

// =============================================================================
// HELPERS
// =============================================================================

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
