/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the leave package's records from the external API contract. Password
  hashes never leave the server.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

VALIDATION:
  Request types carry `validate` tags checked by go-playground/validator
  in decodeAndValidate. Field names in validation errors use the json tag.
  Custom tags: leave_type, role.

SEE ALSO:
  - handlers.go: Uses these types
  - leave/types.go: Domain records
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type CreateEmployeeRequest struct {
	Name     string `json:"name" validate:"required,max=120"`
	Role     string `json:"role" validate:"required,role"`
	StoreID  string `json:"store_id" validate:"max=64"`
	AreaID   string `json:"area_id" validate:"max=64"`
	JoinDate string `json:"join_date" validate:"omitempty,datetime=2006-01-02"`
	Username string `json:"username" validate:"omitempty,alphanum,max=64"`
	Password string `json:"password" validate:"required_with=Username,max=72"`
}

// LeaveRequestInput is the body of validate, submit and analysis calls.
type LeaveRequestInput struct {
	EmployeeID string `json:"employee_id" validate:"required"`
	LeaveType  string `json:"leave_type" validate:"required,leave_type"`
	StartDate  string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate    string `json:"end_date" validate:"required,datetime=2006-01-02"`
	Reason     string `json:"reason" validate:"max=500"`
}

type RejectRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// EmployeeDTO represents an employee in API responses.
type EmployeeDTO struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Role            string `json:"role"`
	StoreID         string `json:"store_id,omitempty"`
	AreaID          string `json:"area_id,omitempty"`
	JoinDate        string `json:"join_date"`
	AnnualLeaveUsed int    `json:"annual_leave_used"`
	Username        string `json:"username,omitempty"`
}

type LoginResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	Employee  EmployeeDTO `json:"employee"`
}

// LeaveRequestDTO represents a ledger entry in API responses.
type LeaveRequestDTO struct {
	ID              string    `json:"id"`
	EmployeeID      string    `json:"employee_id"`
	LeaveType       string    `json:"leave_type"`
	StartDate       string    `json:"start_date"`
	EndDate         string    `json:"end_date"`
	DurationDays    int       `json:"duration_days"`
	Reason          string    `json:"reason"`
	Status          string    `json:"status"`
	RejectionReason string    `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type ConflictResultDTO struct {
	HasConflict          bool   `json:"has_conflict"`
	Message              string `json:"message"`
	Rule                 string `json:"rule,omitempty"`
	ConflictingRequestID string `json:"conflicting_request_id,omitempty"`
}

type SubmitResponse struct {
	Success bool             `json:"success"`
	Message string           `json:"message"`
	Request *LeaveRequestDTO `json:"request,omitempty"`
}

type AnalysisResponse struct {
	Analysis string `json:"analysis"`
}

type LeaveTypeDTO struct {
	Type        string `json:"type"`
	Label       string `json:"label"`
	MaxDays     int    `json:"max_days"`
	Description string `json:"description"`
}

type BalanceDTO struct {
	EmployeeID string         `json:"employee_id"`
	Quota      generic.Amount `json:"quota"`
	Used       generic.Amount `json:"used"`
	Remaining  generic.Amount `json:"remaining"`
}

type StatsDTO struct {
	TotalEmployees      int             `json:"total_employees"`
	TotalRequests       int             `json:"total_requests"`
	Pending             int             `json:"pending"`
	Approved            int             `json:"approved"`
	Rejected            int             `json:"rejected"`
	ByRole              map[string]int  `json:"by_role"`
	ByLeaveType         map[string]int  `json:"by_leave_type"`
	AverageDurationDays decimal.Decimal `json:"average_duration_days"`
	QuotaUtilization    generic.Amount  `json:"quota_utilization"`
}

type AuditEntryDTO struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	ActorID   string         `json:"actor_id,omitempty"`
	Action    string         `json:"action"`
	EntityID  string         `json:"entity_id"`
	SubjectID string         `json:"subject_id,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toEmployeeDTO(e leave.Employee) EmployeeDTO {
	return EmployeeDTO{
		ID:              e.ID,
		Name:            e.Name,
		Role:            string(e.Role),
		StoreID:         e.StoreID,
		AreaID:          e.AreaID,
		JoinDate:        e.JoinDate.String(),
		AnnualLeaveUsed: e.AnnualLeaveUsed,
		Username:        e.Username,
	}
}

func toLeaveRequestDTO(r leave.LeaveRequest) LeaveRequestDTO {
	return LeaveRequestDTO{
		ID:              r.ID,
		EmployeeID:      r.EmployeeID,
		LeaveType:       string(r.LeaveType),
		StartDate:       r.StartDate.String(),
		EndDate:         r.EndDate.String(),
		DurationDays:    r.DurationDays,
		Reason:          r.Reason,
		Status:          string(r.Status),
		RejectionReason: r.RejectionReason,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

func toConflictDTO(c leave.ConflictResult) ConflictResultDTO {
	return ConflictResultDTO{
		HasConflict:          c.HasConflict,
		Message:              c.Message,
		Rule:                 string(c.Rule),
		ConflictingRequestID: c.ConflictingRequestID,
	}
}

func toStatsDTO(s leave.Stats) StatsDTO {
	dto := StatsDTO{
		TotalEmployees:      s.TotalEmployees,
		TotalRequests:       s.TotalRequests,
		Pending:             s.Pending,
		Approved:            s.Approved,
		Rejected:            s.Rejected,
		ByRole:              make(map[string]int, len(s.ByRole)),
		ByLeaveType:         make(map[string]int, len(s.ByLeaveType)),
		AverageDurationDays: s.AverageDurationDays,
		QuotaUtilization:    s.QuotaUtilization,
	}
	for role, n := range s.ByRole {
		dto.ByRole[string(role)] = n
	}
	for lt, n := range s.ByLeaveType {
		dto.ByLeaveType[string(lt)] = n
	}
	return dto
}

func toAuditEntryDTO(e generic.AuditEntry) AuditEntryDTO {
	return AuditEntryDTO{
		ID:        e.ID,
		Timestamp: e.Timestamp,
		ActorID:   string(e.ActorID),
		Action:    string(e.Action),
		EntityID:  string(e.EntityID),
		SubjectID: e.SubjectID,
		Payload:   e.Payload,
	}
}
