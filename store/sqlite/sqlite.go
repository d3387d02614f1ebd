/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements leave.TxStore (roster and ledger) and generic.AuditLog using
  SQLite. The default DSN is ":memory:", which keeps the service free of
  durable state; pass a file path to keep data across restarts.

INTERFACES IMPLEMENTED:
  leave.Store:      Employees and leave requests
  leave.TxStore:    WithTx for atomic approval + quota charge
  generic.AuditLog: Append-only audit trail

KEY TABLES:
  employees:      Roster, one row per employee
  leave_requests: Ledger, one row per request, status updated in place
  audit_log:      Append-only record of state changes

ORDERING:
  Lists are ordered by rowid, which is insertion order. Upserts keep the
  original rowid, so an updated employee keeps its position.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety and a single open connection, so
  ":memory:" always refers to the same database.

USAGE:
  store, err := sqlite.New(":memory:")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  engine := leave.NewEngine(store, leave.WithAuditLog(store))

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - leave/store.go: Interface definitions
  - leave/store/memory.go: In-memory implementation
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var (
	_ leave.TxStore    = (*Store)(nil)
	_ generic.AuditLog = (*Store)(nil)
)

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		role TEXT NOT NULL,
		store_id TEXT NOT NULL DEFAULT '',
		area_id TEXT NOT NULL DEFAULT '',
		join_date TEXT NOT NULL,
		annual_leave_used INTEGER NOT NULL DEFAULT 0,
		username TEXT UNIQUE,
		password_hash TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS leave_requests (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL REFERENCES employees(id),
		leave_type TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		duration_days INTEGER NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'pending',
		rejection_reason TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Clash scan reads approved requests by date range
	CREATE INDEX IF NOT EXISTS idx_leave_requests_status_dates
		ON leave_requests(status, start_date, end_date);
	CREATE INDEX IF NOT EXISTS idx_leave_requests_employee
		ON leave_requests(employee_id);

	CREATE TABLE IF NOT EXISTS audit_log (
		id TEXT PRIMARY KEY,
		timestamp TEXT NOT NULL,
		actor_id TEXT,
		action TEXT NOT NULL,
		entity_id TEXT,
		subject_id TEXT,
		payload_json TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_audit_log_entity
		ON audit_log(entity_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// EMPLOYEES
// =============================================================================

const employeeColumns = `id, name, role, store_id, area_id, join_date, annual_leave_used, username, password_hash`

func (s *Store) SaveEmployee(ctx context.Context, emp leave.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveEmployee(ctx, s.db, emp)
}

func saveEmployee(ctx context.Context, q queryer, emp leave.Employee) error {
	query := `
		INSERT INTO employees (` + employeeColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			role = excluded.role,
			store_id = excluded.store_id,
			area_id = excluded.area_id,
			join_date = excluded.join_date,
			annual_leave_used = excluded.annual_leave_used,
			username = excluded.username,
			password_hash = excluded.password_hash
	`

	_, err := q.ExecContext(ctx, query,
		emp.ID, emp.Name, string(emp.Role), emp.StoreID, emp.AreaID,
		emp.JoinDate.String(), emp.AnnualLeaveUsed,
		nullString(emp.Username), emp.PasswordHash,
	)
	if isUniqueConstraintError(err) {
		return fmt.Errorf("%w: %q", generic.ErrDuplicateUsername, emp.Username)
	}
	return err
}

func (s *Store) GetEmployee(ctx context.Context, id string) (*leave.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getEmployee(ctx, s.db, "id = ?", id)
}

func (s *Store) FindEmployeeByUsername(ctx context.Context, username string) (*leave.Employee, error) {
	if username == "" {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getEmployee(ctx, s.db, "username = ?", username)
}

func getEmployee(ctx context.Context, q queryer, where string, arg any) (*leave.Employee, error) {
	row := q.QueryRowContext(ctx, "SELECT "+employeeColumns+" FROM employees WHERE "+where, arg)
	emp, err := scanEmployee(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &emp, nil
}

func (s *Store) ListEmployees(ctx context.Context) ([]leave.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listEmployees(ctx, s.db)
}

func listEmployees(ctx context.Context, q queryer) ([]leave.Employee, error) {
	rows, err := q.QueryContext(ctx, "SELECT "+employeeColumns+" FROM employees ORDER BY rowid")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	employees := []leave.Employee{}
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		employees = append(employees, emp)
	}
	return employees, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEmployee(sc scanner) (leave.Employee, error) {
	var (
		emp      leave.Employee
		role     string
		joinDate string
		username sql.NullString
	)
	if err := sc.Scan(&emp.ID, &emp.Name, &role, &emp.StoreID, &emp.AreaID,
		&joinDate, &emp.AnnualLeaveUsed, &username, &emp.PasswordHash); err != nil {
		return leave.Employee{}, err
	}
	emp.Role = leave.Role(role)
	emp.Username = username.String

	jd, err := generic.ParseDate(joinDate)
	if err != nil {
		return leave.Employee{}, fmt.Errorf("employee %s: %w", emp.ID, err)
	}
	emp.JoinDate = jd
	return emp, nil
}

// =============================================================================
// LEAVE REQUESTS
// =============================================================================

const requestColumns = `id, employee_id, leave_type, start_date, end_date, duration_days, reason, status, rejection_reason, created_at, updated_at`

func (s *Store) AppendRequest(ctx context.Context, req leave.LeaveRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendRequest(ctx, s.db, req)
}

func appendRequest(ctx context.Context, q queryer, req leave.LeaveRequest) error {
	query := `INSERT INTO leave_requests (` + requestColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := q.ExecContext(ctx, query,
		req.ID, req.EmployeeID, string(req.LeaveType),
		req.StartDate.String(), req.EndDate.String(), req.DurationDays,
		req.Reason, string(req.Status), nullString(req.RejectionReason),
		formatTime(req.CreatedAt), formatTime(req.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert leave request %s: %w", req.ID, err)
	}
	return nil
}

func (s *Store) UpdateRequest(ctx context.Context, req leave.LeaveRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateRequest(ctx, s.db, req)
}

// updateRequest writes the mutable columns only.
func updateRequest(ctx context.Context, q queryer, req leave.LeaveRequest) error {
	res, err := q.ExecContext(ctx,
		`UPDATE leave_requests SET status = ?, rejection_reason = ?, updated_at = ? WHERE id = ?`,
		string(req.Status), nullString(req.RejectionReason), formatTime(req.UpdatedAt), req.ID,
	)
	if err != nil {
		return fmt.Errorf("update leave request %s: %w", req.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", generic.ErrRequestNotFound, req.ID)
	}
	return nil
}

func (s *Store) GetRequest(ctx context.Context, id string) (*leave.LeaveRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getRequest(ctx, s.db, id)
}

func getRequest(ctx context.Context, q queryer, id string) (*leave.LeaveRequest, error) {
	row := q.QueryRowContext(ctx, "SELECT "+requestColumns+" FROM leave_requests WHERE id = ?", id)
	req, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (s *Store) ListRequests(ctx context.Context) ([]leave.LeaveRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listRequests(ctx, s.db)
}

func listRequests(ctx context.Context, q queryer) ([]leave.LeaveRequest, error) {
	rows, err := q.QueryContext(ctx, "SELECT "+requestColumns+" FROM leave_requests ORDER BY rowid")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	requests := []leave.LeaveRequest{}
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

func scanRequest(sc scanner) (leave.LeaveRequest, error) {
	var (
		req                  leave.LeaveRequest
		leaveType, status    string
		startDate, endDate   string
		rejectionReason      sql.NullString
		createdAt, updatedAt string
	)
	if err := sc.Scan(&req.ID, &req.EmployeeID, &leaveType, &startDate, &endDate,
		&req.DurationDays, &req.Reason, &status, &rejectionReason, &createdAt, &updatedAt); err != nil {
		return leave.LeaveRequest{}, err
	}
	req.LeaveType = leave.LeaveType(leaveType)
	req.Status = leave.Status(status)
	req.RejectionReason = rejectionReason.String

	var err error
	if req.StartDate, err = generic.ParseDate(startDate); err != nil {
		return leave.LeaveRequest{}, fmt.Errorf("leave request %s: %w", req.ID, err)
	}
	if req.EndDate, err = generic.ParseDate(endDate); err != nil {
		return leave.LeaveRequest{}, fmt.Errorf("leave request %s: %w", req.ID, err)
	}
	req.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	req.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return req, nil
}

// =============================================================================
// TRANSACTIONAL STORE (leave.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store leave.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// txStore runs every call on the open transaction. The parent lock is held
// by WithTx for its whole lifetime.
type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) SaveEmployee(ctx context.Context, emp leave.Employee) error {
	return saveEmployee(ctx, ts.tx, emp)
}

func (ts *txStore) GetEmployee(ctx context.Context, id string) (*leave.Employee, error) {
	return getEmployee(ctx, ts.tx, "id = ?", id)
}

func (ts *txStore) FindEmployeeByUsername(ctx context.Context, username string) (*leave.Employee, error) {
	if username == "" {
		return nil, nil
	}
	return getEmployee(ctx, ts.tx, "username = ?", username)
}

func (ts *txStore) ListEmployees(ctx context.Context) ([]leave.Employee, error) {
	return listEmployees(ctx, ts.tx)
}

func (ts *txStore) AppendRequest(ctx context.Context, req leave.LeaveRequest) error {
	return appendRequest(ctx, ts.tx, req)
}

func (ts *txStore) UpdateRequest(ctx context.Context, req leave.LeaveRequest) error {
	return updateRequest(ctx, ts.tx, req)
}

func (ts *txStore) GetRequest(ctx context.Context, id string) (*leave.LeaveRequest, error) {
	return getRequest(ctx, ts.tx, id)
}

func (ts *txStore) ListRequests(ctx context.Context) ([]leave.LeaveRequest, error) {
	return listRequests(ctx, ts.tx)
}

// =============================================================================
// AUDIT LOG (generic.AuditLog interface)
// =============================================================================

func (s *Store) AppendAudit(ctx context.Context, entry generic.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var payload sql.NullString
	if len(entry.Payload) > 0 {
		b, err := json.Marshal(entry.Payload)
		if err != nil {
			return fmt.Errorf("marshal audit payload: %w", err)
		}
		payload = sql.NullString{String: string(b), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, timestamp, actor_id, action, entity_id, subject_id, payload_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, formatTime(entry.Timestamp), nullString(string(entry.ActorID)),
		string(entry.Action), nullString(string(entry.EntityID)), nullString(entry.SubjectID), payload,
	)
	return err
}

func (s *Store) QueryAudit(ctx context.Context, filter generic.AuditFilter) ([]generic.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		where []string
		args  []any
	)
	if filter.EntityID != nil {
		where = append(where, "entity_id = ?")
		args = append(args, string(*filter.EntityID))
	}
	if filter.ActorID != nil {
		where = append(where, "actor_id = ?")
		args = append(args, string(*filter.ActorID))
	}
	if len(filter.Actions) > 0 {
		placeholders := make([]string, len(filter.Actions))
		for i, a := range filter.Actions {
			placeholders[i] = "?"
			args = append(args, string(a))
		}
		where = append(where, "action IN ("+strings.Join(placeholders, ", ")+")")
	}
	if filter.From != nil {
		where = append(where, "timestamp >= ?")
		args = append(args, formatTime(*filter.From))
	}
	if filter.To != nil {
		where = append(where, "timestamp <= ?")
		args = append(args, formatTime(*filter.To))
	}

	query := "SELECT id, timestamp, actor_id, action, entity_id, subject_id, payload_json FROM audit_log"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY rowid"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []generic.AuditEntry
	for rows.Next() {
		var (
			e                             generic.AuditEntry
			ts, action                    string
			actor, entity, subject, payld sql.NullString
		)
		if err := rows.Scan(&e.ID, &ts, &actor, &action, &entity, &subject, &payld); err != nil {
			return nil, err
		}
		e.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
		e.ActorID = generic.ActorID(actor.String)
		e.Action = generic.AuditAction(action)
		e.EntityID = generic.EntityID(entity.String)
		e.SubjectID = subject.String
		if payld.Valid {
			if err := json.Unmarshal([]byte(payld.String), &e.Payload); err != nil {
				return nil, fmt.Errorf("audit entry %s payload: %w", e.ID, err)
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// formatTime uses a fixed-width layout so stored timestamps sort as text.
func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000000Z07:00")
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
