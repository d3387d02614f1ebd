// Package leave implements leave validation, submission and approval.
// It owns the employee roster and the leave ledger through a Store and
// enforces quota, duration and schedule-clash rules.
package leave

import (
	"fmt"
	"time"

	"github.com/warp/leave-engine/generic"
)

// =============================================================================
// ROLES
// =============================================================================

type Role string

const (
	RoleCrewStore          Role = "crew_store"
	RoleSupervisor         Role = "supervisor"
	RoleAreaManager        Role = "area_manager"
	RoleOperationalManager Role = "operational_manager"
	RoleHRD                Role = "hrd"
)

// Roles lists every role in display order.
var Roles = []Role{RoleCrewStore, RoleSupervisor, RoleAreaManager, RoleOperationalManager, RoleHRD}

func (r Role) Valid() bool {
	switch r {
	case RoleCrewStore, RoleSupervisor, RoleAreaManager, RoleOperationalManager, RoleHRD:
		return true
	}
	return false
}

// ParseRole validates a role code.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("%w: %q", generic.ErrInvalidRole, s)
	}
	return r, nil
}

// =============================================================================
// LEAVE TYPES
// =============================================================================

type LeaveType string

const (
	LeaveAnnual                LeaveType = "annual"
	LeaveMaternity             LeaveType = "maternity"
	LeaveMiscarriage           LeaveType = "miscarriage"
	LeaveSick                  LeaveType = "sick"
	LeaveMenstruation          LeaveType = "menstruation"
	LeaveMarriage              LeaveType = "marriage"
	LeaveChildMarriage         LeaveType = "child_marriage"
	LeaveCircumcisionOrBaptism LeaveType = "circumcision_baptism"
	LeaveDeathCore             LeaveType = "death_core"
	LeaveDeathHousehold        LeaveType = "death_household"
)

// LeaveTypes lists every leave type in display order.
var LeaveTypes = []LeaveType{
	LeaveAnnual, LeaveMaternity, LeaveMiscarriage, LeaveSick, LeaveMenstruation,
	LeaveMarriage, LeaveChildMarriage, LeaveCircumcisionOrBaptism, LeaveDeathCore, LeaveDeathHousehold,
}

func (t LeaveType) Valid() bool {
	_, ok := rules[t]
	return ok
}

// ParseLeaveType validates a leave type code.
func ParseLeaveType(s string) (LeaveType, error) {
	t := LeaveType(s)
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", generic.ErrInvalidLeaveType, s)
	}
	return t, nil
}

// =============================================================================
// STATUS
// =============================================================================

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// ParseStatus validates a status code.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", fmt.Errorf("%w: %q", generic.ErrInvalidStatus, s)
	}
	return st, nil
}

// =============================================================================
// RECORDS
// =============================================================================

// Employee is a roster entry. AnnualLeaveUsed only grows, and only when an
// annual request is approved.
type Employee struct {
	ID              string
	Name            string
	Role            Role
	StoreID         string // empty when not attached to a store
	AreaID          string // empty when not attached to an area
	JoinDate        generic.TimePoint
	AnnualLeaveUsed int
	Username        string
	PasswordHash    string
}

// LeaveRequest is a ledger entry. Only Status, RejectionReason and
// UpdatedAt change after creation.
type LeaveRequest struct {
	ID              string
	EmployeeID      string
	LeaveType       LeaveType
	StartDate       generic.TimePoint
	EndDate         generic.TimePoint
	DurationDays    int
	Reason          string
	Status          Status
	RejectionReason string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Period returns the inclusive booked range.
func (r LeaveRequest) Period() generic.Period {
	return generic.Period{Start: r.StartDate, End: r.EndDate}
}

// =============================================================================
// RESULTS
// =============================================================================

// ConflictRule names the check that rejected a request.
type ConflictRule string

const (
	RuleNone             ConflictRule = ""
	RuleEmployeeNotFound ConflictRule = "employee_not_found"
	RuleDurationCap      ConflictRule = "duration_cap"
	RuleAnnualQuota      ConflictRule = "annual_quota"
	RuleStoreClash       ConflictRule = "store_clash"
	RuleAreaClash        ConflictRule = "area_clash"
	RuleAreaManagerClash ConflictRule = "area_manager_clash"
)

// ConflictResult is the outcome of validation. A business-rule failure is a
// result with HasConflict set, never an error.
type ConflictResult struct {
	HasConflict          bool
	Message              string
	Rule                 ConflictRule
	ConflictingRequestID string
}

// SubmitInput carries a new leave request.
type SubmitInput struct {
	EmployeeID string
	LeaveType  LeaveType
	StartDate  generic.TimePoint
	EndDate    generic.TimePoint
	Reason     string
}

// SubmitResult is the outcome of Submit. Request is set only on success.
type SubmitResult struct {
	Success  bool
	Message  string
	Request  *LeaveRequest
	Conflict ConflictResult
}

// NewEmployee carries the fields for roster creation.
type NewEmployee struct {
	Name     string
	Role     Role
	StoreID  string
	AreaID   string
	JoinDate generic.TimePoint
	Username string
	Password string
}

// Balance is the annual quota position of one employee.
type Balance struct {
	EmployeeID string
	Quota      generic.Amount
	Used       generic.Amount
	Remaining  generic.Amount
}
