/*
engine.go - Leave validation and ledger engine

PURPOSE:
  The single writer of the roster and the leave ledger. Validates new
  requests, appends them as pending, and applies status transitions with
  their annual-quota side effect.

VALIDATION ORDER (first failure wins):
  0. Unknown employee            -> employee_not_found
  1. Duration above type maximum -> duration_cap
  2. Annual quota exhausted      -> annual_quota (annual leave only)
  3. Role-scoped schedule clash  -> store_clash / area_clash / area_manager_clash

  Failures are ConflictResults, not errors. Errors mean a storage fault or
  an unknown leave type value.

STATUS TRANSITIONS:
  Any status may move to any other. Moving to approved charges
  DurationDays to AnnualLeaveUsed for annual requests, once: re-approving
  an approved request charges nothing. Nothing is ever refunded.
  An unknown request ID is a silent no-op.

CONCURRENCY:
  Submit, SetStatus and AddEmployee hold e.mu for their whole
  read-validate-write sequence, so two submissions cannot both pass
  validation against the same snapshot and two approvals cannot lose a
  quota update.

TEXT GENERATION:
  The engine never calls the assistant. A rejection message is drafted
  by the caller and passed in as rejectionReason.

SEE ALSO:
  - conflict.go: Role clash rules
  - rules.go: Leave type table
  - store.go: Persistence contract
*/
package leave

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/metrics"
)

const (
	msgValid            = "valid"
	msgSubmitted        = "leave request submitted"
	msgEmployeeNotFound = "employee not found"
)

// =============================================================================
// ENGINE
// =============================================================================

type Engine struct {
	mu sync.Mutex

	store   TxStore
	audit   generic.AuditLog
	metrics *metrics.Metrics
	logger  *zap.Logger

	newID        func() string
	now          func() time.Time
	passwordCost int
}

type Option func(*Engine)

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l.Named("leave.engine") }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithAuditLog records every state change in log.
func WithAuditLog(log generic.AuditLog) Option {
	return func(e *Engine) { e.audit = log }
}

// WithIDGenerator replaces the UUID generator, mostly for deterministic tests.
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) { e.newID = fn }
}

func WithClock(fn func() time.Time) Option {
	return func(e *Engine) { e.now = fn }
}

// WithPasswordCost sets the bcrypt cost for new employees.
func WithPasswordCost(cost int) Option {
	return func(e *Engine) { e.passwordCost = cost }
}

func NewEngine(store TxStore, opts ...Option) *Engine {
	e := &Engine{
		store:        store,
		logger:       zap.NewNop(),
		newID:        func() string { return uuid.NewString() },
		now:          func() time.Time { return time.Now().UTC() },
		passwordCost: bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// =============================================================================
// VALIDATION
// =============================================================================

// Validate checks whether the employee may take leaveType over [start, end].
func (e *Engine) Validate(ctx context.Context, employeeID string, leaveType LeaveType, start, end generic.TimePoint) (ConflictResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.validate(ctx, employeeID, leaveType, start, end)
}

func (e *Engine) validate(ctx context.Context, employeeID string, leaveType LeaveType, start, end generic.TimePoint) (ConflictResult, error) {
	rule, ok := RuleFor(leaveType)
	if !ok {
		return ConflictResult{}, fmt.Errorf("%w: %q", generic.ErrInvalidLeaveType, leaveType)
	}

	emp, err := e.store.GetEmployee(ctx, employeeID)
	if err != nil {
		return ConflictResult{}, fmt.Errorf("load employee %s: %w", employeeID, err)
	}
	if emp == nil {
		return e.conflict(ConflictResult{HasConflict: true, Message: msgEmployeeNotFound, Rule: RuleEmployeeNotFound}), nil
	}

	period := generic.Period{Start: start, End: end}
	duration := period.Days()

	if duration > rule.MaxDays {
		return e.conflict(ConflictResult{
			HasConflict: true,
			Message: fmt.Sprintf("leave duration of %d days exceeds the limit for %s: %s",
				duration, rule.Label, rule.Description),
			Rule: RuleDurationCap,
		}), nil
	}

	if leaveType == LeaveAnnual && emp.AnnualLeaveUsed+duration > AnnualQuotaDays {
		return e.conflict(ConflictResult{
			HasConflict: true,
			Message: fmt.Sprintf("insufficient annual leave quota (remaining: %d)",
				AnnualQuotaDays-emp.AnnualLeaveUsed),
			Rule: RuleAnnualQuota,
		}), nil
	}

	ledger, err := e.store.ListRequests(ctx)
	if err != nil {
		return ConflictResult{}, fmt.Errorf("load ledger: %w", err)
	}
	employees, err := e.store.ListEmployees(ctx)
	if err != nil {
		return ConflictResult{}, fmt.Errorf("load roster: %w", err)
	}
	roster := make(map[string]Employee, len(employees))
	for _, other := range employees {
		roster[other.ID] = other
	}

	if clash := findClash(*emp, period, ledger, roster); clash.HasConflict {
		return e.conflict(clash), nil
	}

	return ConflictResult{Message: msgValid}, nil
}

func (e *Engine) conflict(res ConflictResult) ConflictResult {
	e.metrics.Conflict(string(res.Rule))
	return res
}

// =============================================================================
// SUBMISSION
// =============================================================================

// Submit re-validates and appends a pending request. A conflict returns
// Success=false with the validation message and leaves the ledger untouched.
func (e *Engine) Submit(ctx context.Context, in SubmitInput) (SubmitResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	res, err := e.validate(ctx, in.EmployeeID, in.LeaveType, in.StartDate, in.EndDate)
	if err != nil {
		return SubmitResult{}, err
	}
	if res.HasConflict {
		e.logger.Info("leave request refused",
			zap.String("employee_id", in.EmployeeID),
			zap.String("leave_type", string(in.LeaveType)),
			zap.String("rule", string(res.Rule)),
			zap.String("message", res.Message),
		)
		return SubmitResult{Success: false, Message: res.Message, Conflict: res}, nil
	}

	now := e.now()
	req := LeaveRequest{
		ID:           e.newID(),
		EmployeeID:   in.EmployeeID,
		LeaveType:    in.LeaveType,
		StartDate:    in.StartDate,
		EndDate:      in.EndDate,
		DurationDays: generic.Period{Start: in.StartDate, End: in.EndDate}.Days(),
		Reason:       in.Reason,
		Status:       StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := e.store.AppendRequest(ctx, req); err != nil {
		return SubmitResult{}, fmt.Errorf("append leave request: %w", err)
	}

	e.metrics.Submitted(string(req.LeaveType))
	e.logger.Info("leave request submitted",
		zap.String("request_id", req.ID),
		zap.String("employee_id", req.EmployeeID),
		zap.String("leave_type", string(req.LeaveType)),
		zap.Int("duration_days", req.DurationDays),
	)
	e.record(ctx, generic.AuditRequestCreated, req.EmployeeID, req.ID, map[string]any{
		"leave_type":    string(req.LeaveType),
		"start_date":    req.StartDate.String(),
		"end_date":      req.EndDate.String(),
		"duration_days": req.DurationDays,
	})

	return SubmitResult{Success: true, Message: msgSubmitted, Request: &req, Conflict: res}, nil
}

// =============================================================================
// STATUS TRANSITIONS
// =============================================================================

// SetStatus moves a request to status. rejectionReason is stored only when
// the new status is rejected. Unknown request IDs are ignored.
func (e *Engine) SetStatus(ctx context.Context, requestID string, status Status, rejectionReason string) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", generic.ErrInvalidStatus, status)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	var (
		updated  *LeaveRequest
		previous Status
		charged  int
	)
	err := e.store.WithTx(ctx, func(tx Store) error {
		req, err := tx.GetRequest(ctx, requestID)
		if err != nil {
			return fmt.Errorf("load leave request %s: %w", requestID, err)
		}
		if req == nil {
			return nil
		}

		previous = req.Status
		req.Status = status
		req.RejectionReason = ""
		if status == StatusRejected {
			req.RejectionReason = rejectionReason
		}
		req.UpdatedAt = e.now()
		if err := tx.UpdateRequest(ctx, *req); err != nil {
			return fmt.Errorf("update leave request %s: %w", requestID, err)
		}

		if status == StatusApproved && previous != StatusApproved && req.LeaveType == LeaveAnnual {
			emp, err := tx.GetEmployee(ctx, req.EmployeeID)
			if err != nil {
				return fmt.Errorf("load employee %s: %w", req.EmployeeID, err)
			}
			if emp != nil {
				emp.AnnualLeaveUsed += req.DurationDays
				if err := tx.SaveEmployee(ctx, *emp); err != nil {
					return fmt.Errorf("charge annual quota: %w", err)
				}
				charged = req.DurationDays
			}
		}

		updated = req
		return nil
	})
	if err != nil {
		return err
	}

	if updated == nil {
		e.logger.Debug("status change for unknown request ignored", zap.String("request_id", requestID))
		return nil
	}

	e.metrics.Transition(string(previous), string(status))
	if charged > 0 {
		e.metrics.QuotaConsumed(charged)
	}
	e.logger.Info("leave request status changed",
		zap.String("request_id", updated.ID),
		zap.String("from", string(previous)),
		zap.String("to", string(status)),
		zap.Int("quota_charged", charged),
	)

	payload := map[string]any{"from": string(previous), "to": string(status)}
	if charged > 0 {
		payload["quota_charged"] = charged
	}
	if status == StatusRejected {
		payload["rejection_reason"] = rejectionReason
	}
	e.record(ctx, auditActionFor(status), updated.EmployeeID, updated.ID, payload)
	return nil
}

func auditActionFor(s Status) generic.AuditAction {
	switch s {
	case StatusApproved:
		return generic.AuditRequestApproved
	case StatusRejected:
		return generic.AuditRequestRejected
	default:
		return generic.AuditRequestReopened
	}
}

// =============================================================================
// ROSTER
// =============================================================================

// AddEmployee creates a roster entry with a fresh ID and zero quota used.
func (e *Engine) AddEmployee(ctx context.Context, in NewEmployee) (Employee, error) {
	if !in.Role.Valid() {
		return Employee{}, &generic.FieldError{Field: "role", Err: fmt.Errorf("%w: %q", generic.ErrInvalidRole, in.Role)}
	}
	if strings.TrimSpace(in.Name) == "" {
		return Employee{}, &generic.FieldError{Field: "name", Err: errors.New("required")}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	emp := Employee{
		ID:       e.newID(),
		Name:     strings.TrimSpace(in.Name),
		Role:     in.Role,
		StoreID:  in.StoreID,
		AreaID:   in.AreaID,
		JoinDate: in.JoinDate,
		Username: in.Username,
	}
	if emp.JoinDate.IsZero() {
		emp.JoinDate = generic.FromTime(e.now())
	}

	if emp.Username != "" {
		existing, err := e.store.FindEmployeeByUsername(ctx, emp.Username)
		if err != nil {
			return Employee{}, fmt.Errorf("check username: %w", err)
		}
		if existing != nil {
			return Employee{}, fmt.Errorf("%w: %q", generic.ErrDuplicateUsername, emp.Username)
		}
	}
	if in.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), e.passwordCost)
		if err != nil {
			return Employee{}, fmt.Errorf("hash password: %w", err)
		}
		emp.PasswordHash = string(hash)
	}

	if err := e.store.SaveEmployee(ctx, emp); err != nil {
		return Employee{}, fmt.Errorf("save employee: %w", err)
	}

	e.logger.Info("employee added", zap.String("employee_id", emp.ID), zap.String("role", string(emp.Role)))
	e.record(ctx, generic.AuditEmployeeCreated, emp.ID, "", map[string]any{"role": string(emp.Role)})
	return emp, nil
}

// Authenticate returns the employee whose credentials match, or nil.
func (e *Engine) Authenticate(ctx context.Context, username, password string) (*Employee, error) {
	if username == "" {
		return nil, nil
	}
	emp, err := e.store.FindEmployeeByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("find employee by username: %w", err)
	}
	if emp == nil || emp.PasswordHash == "" {
		return nil, nil
	}
	if err := bcrypt.CompareHashAndPassword([]byte(emp.PasswordHash), []byte(password)); err != nil {
		return nil, nil
	}
	return emp, nil
}

// =============================================================================
// READS
// =============================================================================

func (e *Engine) ListEmployees(ctx context.Context) ([]Employee, error) {
	return e.store.ListEmployees(ctx)
}

func (e *Engine) ListRequests(ctx context.Context) ([]LeaveRequest, error) {
	return e.store.ListRequests(ctx)
}

func (e *Engine) GetEmployee(ctx context.Context, id string) (Employee, error) {
	emp, err := e.store.GetEmployee(ctx, id)
	if err != nil {
		return Employee{}, err
	}
	if emp == nil {
		return Employee{}, fmt.Errorf("%w: %s", generic.ErrEmployeeNotFound, id)
	}
	return *emp, nil
}

func (e *Engine) GetRequest(ctx context.Context, id string) (LeaveRequest, error) {
	req, err := e.store.GetRequest(ctx, id)
	if err != nil {
		return LeaveRequest{}, err
	}
	if req == nil {
		return LeaveRequest{}, fmt.Errorf("%w: %s", generic.ErrRequestNotFound, id)
	}
	return *req, nil
}

// AnnualBalance reports quota, used and remaining annual days.
func (e *Engine) AnnualBalance(ctx context.Context, employeeID string) (Balance, error) {
	emp, err := e.GetEmployee(ctx, employeeID)
	if err != nil {
		return Balance{}, err
	}
	quota := generic.NewAmountFromInt(AnnualQuotaDays, generic.UnitDays)
	used := generic.NewAmountFromInt(emp.AnnualLeaveUsed, generic.UnitDays)
	return Balance{
		EmployeeID: emp.ID,
		Quota:      quota,
		Used:       used,
		Remaining:  quota.Sub(used).Max(quota.Zero()),
	}, nil
}

// Stats computes dashboard figures over the current roster and ledger.
func (e *Engine) Stats(ctx context.Context) (Stats, error) {
	employees, err := e.store.ListEmployees(ctx)
	if err != nil {
		return Stats{}, err
	}
	requests, err := e.store.ListRequests(ctx)
	if err != nil {
		return Stats{}, err
	}
	return ComputeStats(employees, requests), nil
}

// AuditTrail queries the audit log. Without one configured it returns nothing.
func (e *Engine) AuditTrail(ctx context.Context, filter generic.AuditFilter) ([]generic.AuditEntry, error) {
	if e.audit == nil {
		return nil, nil
	}
	return e.audit.QueryAudit(ctx, filter)
}

func (e *Engine) record(ctx context.Context, action generic.AuditAction, employeeID, subjectID string, payload map[string]any) {
	if e.audit == nil {
		return
	}
	entry := generic.AuditEntry{
		ID:        e.newID(),
		Timestamp: e.now(),
		ActorID:   ActorFromContext(ctx),
		Action:    action,
		EntityID:  generic.EntityID(employeeID),
		SubjectID: subjectID,
		Payload:   payload,
	}
	if err := e.audit.AppendAudit(ctx, entry); err != nil {
		e.logger.Warn("audit append failed", zap.String("action", string(action)), zap.Error(err))
	}
}
