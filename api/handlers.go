/*
handlers.go - HTTP API handlers for the leave engine

PURPOSE:
  Exposes the leave engine via REST API. Handles HTTP request/response,
  JSON serialization and input validation, and delegates to leave.Engine.

ENDPOINTS:
  Auth:
    POST   /api/auth/login                   Issue a session token (rate limited)

  Reference:
    GET    /api/leave-types                  Leave type rule table

  Employees:
    GET    /api/employees                    List the roster
    POST   /api/employees                    Create employee (HRD)
    GET    /api/employees/{id}               Get employee
    GET    /api/employees/{id}/balance       Annual quota position

  Leave requests:
    GET    /api/leave-requests               List the ledger (?employee_id=&status=)
    POST   /api/leave-requests               Submit (self, or anyone for HRD)
    POST   /api/leave-requests/validate      Dry-run validation
    POST   /api/leave-requests/analysis      Reviewer analysis text
    GET    /api/leave-requests/{id}          Get request
    POST   /api/leave-requests/{id}/approve  Approve (HRD)
    POST   /api/leave-requests/{id}/reject   Reject with drafted message (HRD)

  HR:
    GET    /api/stats                        Dashboard figures
    GET    /api/audit                        Audit trail (HRD)
    GET    /api/reports/leave-requests.xlsx  Excel export (HRD)

REQUEST FLOW:
  1. Decode JSON body
  2. Validate with struct tags
  3. Call leave.Engine
  4. Serialize response
  5. Map errors

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 401/403: Missing token, wrong role, acting for another employee
  - 404: Unknown employee or request
  - 409: Duplicate username
  - 422: Submission refused by a leave rule
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - auth.go: Token handling and role guards
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/warp/leave-engine/assistant"
	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/metrics"
	"github.com/warp/leave-engine/report"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Assistant drafts reviewer text. Implementations never fail; they fall
// back to fixed text.
type Assistant interface {
	AnalyzeLeaveRequest(ctx context.Context, in assistant.AnalysisInput) string
	DraftRejectionMessage(ctx context.Context, employeeName, managerReason string) string
}

// Pinger reports storage health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine    *leave.Engine
	Tokens    *TokenIssuer
	Assistant Assistant

	metrics  *metrics.Metrics
	logger   *zap.Logger
	pinger   Pinger
	validate *validator.Validate
	reports  singleflight.Group
}

type Option func(*Handler)

func WithAssistant(a Assistant) Option {
	return func(h *Handler) { h.Assistant = a }
}

func WithLogger(l *zap.Logger) Option {
	return func(h *Handler) { h.logger = l.Named("api") }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Handler) { h.metrics = m }
}

func WithPinger(p Pinger) Option {
	return func(h *Handler) { h.pinger = p }
}

// NewHandler creates a handler over engine. Without WithAssistant every
// analysis and rejection uses fallback text.
func NewHandler(engine *leave.Engine, tokens *TokenIssuer, opts ...Option) *Handler {
	h := &Handler{
		Engine:    engine,
		Tokens:    tokens,
		Assistant: assistant.New(nil),
		logger:    zap.NewNop(),
		validate:  newValidator(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("leave_type", func(fl validator.FieldLevel) bool {
		return leave.LeaveType(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("role", func(fl validator.FieldLevel) bool {
		return leave.Role(fl.Field().String()).Valid()
	})
	return v
}

// =============================================================================
// AUTH ENDPOINTS
// =============================================================================

// Login exchanges credentials for a session token.
// POST /api/auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	emp, err := h.Engine.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		h.handleError(w, err, "Failed to authenticate")
		return
	}
	if emp == nil {
		h.logger.Info("login failed", zap.String("username", req.Username))
		writeError(w, http.StatusUnauthorized, "Invalid username or password", nil)
		return
	}

	token, expiresAt, err := h.Tokens.Issue(*emp)
	if err != nil {
		h.handleError(w, err, "Failed to issue token")
		return
	}

	writeJSON(w, http.StatusOK, LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		Employee:  toEmployeeDTO(*emp),
	})
}

// =============================================================================
// REFERENCE ENDPOINTS
// =============================================================================

// ListLeaveTypes returns the rule table in display order.
// GET /api/leave-types
func (h *Handler) ListLeaveTypes(w http.ResponseWriter, r *http.Request) {
	rules := leave.Rules()
	dtos := make([]LeaveTypeDTO, 0, len(rules))
	for _, rule := range rules {
		dtos = append(dtos, LeaveTypeDTO{
			Type:        string(rule.Type),
			Label:       rule.Label,
			MaxDays:     rule.MaxDays,
			Description: rule.Description,
		})
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// EMPLOYEE ENDPOINTS
// =============================================================================

// ListEmployees returns the roster in insertion order.
// GET /api/employees
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Engine.ListEmployees(r.Context())
	if err != nil {
		h.handleError(w, err, "Failed to list employees")
		return
	}

	dtos := make([]EmployeeDTO, 0, len(employees))
	for _, e := range employees {
		dtos = append(dtos, toEmployeeDTO(e))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetEmployee returns a single employee.
// GET /api/employees/{id}
func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	emp, err := h.Engine.GetEmployee(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.handleError(w, err, "Employee not found")
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(emp))
}

// CreateEmployee adds a roster entry.
// POST /api/employees
func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req CreateEmployeeRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	in := leave.NewEmployee{
		Name:     req.Name,
		Role:     leave.Role(req.Role),
		StoreID:  req.StoreID,
		AreaID:   req.AreaID,
		Username: req.Username,
		Password: req.Password,
	}
	if req.JoinDate != "" {
		joinDate, err := generic.ParseDate(req.JoinDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid join_date", err)
			return
		}
		in.JoinDate = joinDate
	}

	emp, err := h.Engine.AddEmployee(r.Context(), in)
	if err != nil {
		h.handleError(w, err, "Failed to create employee")
		return
	}
	writeJSON(w, http.StatusCreated, toEmployeeDTO(emp))
}

// GetBalance returns the employee's annual quota position.
// GET /api/employees/{id}/balance
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	bal, err := h.Engine.AnnualBalance(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.handleError(w, err, "Failed to load balance")
		return
	}
	writeJSON(w, http.StatusOK, BalanceDTO{
		EmployeeID: bal.EmployeeID,
		Quota:      bal.Quota,
		Used:       bal.Used,
		Remaining:  bal.Remaining,
	})
}

// =============================================================================
// LEAVE REQUEST ENDPOINTS
// =============================================================================

// ListLeaveRequests returns the ledger in submission order.
// GET /api/leave-requests?employee_id=...&status=...
func (h *Handler) ListLeaveRequests(w http.ResponseWriter, r *http.Request) {
	employeeID := r.URL.Query().Get("employee_id")

	var status leave.Status
	if raw := r.URL.Query().Get("status"); raw != "" {
		parsed, err := leave.ParseStatus(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid status", err)
			return
		}
		status = parsed
	}

	requests, err := h.Engine.ListRequests(r.Context())
	if err != nil {
		h.handleError(w, err, "Failed to list leave requests")
		return
	}

	dtos := make([]LeaveRequestDTO, 0, len(requests))
	for _, req := range requests {
		if employeeID != "" && req.EmployeeID != employeeID {
			continue
		}
		if status != "" && req.Status != status {
			continue
		}
		dtos = append(dtos, toLeaveRequestDTO(req))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetLeaveRequest returns a single ledger entry.
// GET /api/leave-requests/{id}
func (h *Handler) GetLeaveRequest(w http.ResponseWriter, r *http.Request) {
	req, err := h.Engine.GetRequest(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.handleError(w, err, "Leave request not found")
		return
	}
	writeJSON(w, http.StatusOK, toLeaveRequestDTO(req))
}

// ValidateLeaveRequest runs the leave rules without recording anything.
// A rule failure is a 200 with has_conflict set.
// POST /api/leave-requests/validate
func (h *Handler) ValidateLeaveRequest(w http.ResponseWriter, r *http.Request) {
	in, ok := h.decodeLeaveInput(w, r)
	if !ok {
		return
	}

	res, err := h.Engine.Validate(r.Context(), in.EmployeeID, in.LeaveType, in.StartDate, in.EndDate)
	if err != nil {
		h.handleError(w, err, "Failed to validate leave request")
		return
	}
	writeJSON(w, http.StatusOK, toConflictDTO(res))
}

// SubmitLeaveRequest validates and records a pending request.
// POST /api/leave-requests
func (h *Handler) SubmitLeaveRequest(w http.ResponseWriter, r *http.Request) {
	in, ok := h.decodeLeaveInput(w, r)
	if !ok {
		return
	}

	res, err := h.Engine.Submit(r.Context(), in)
	if err != nil {
		h.handleError(w, err, "Failed to submit leave request")
		return
	}

	if !res.Success {
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:   res.Message,
			Code:    string(res.Conflict.Rule),
			Details: toConflictDTO(res.Conflict),
		})
		return
	}

	dto := toLeaveRequestDTO(*res.Request)
	writeJSON(w, http.StatusCreated, SubmitResponse{
		Success: true,
		Message: res.Message,
		Request: &dto,
	})
}

// AnalyzeLeaveRequest drafts a short reviewer analysis of a proposed request.
// POST /api/leave-requests/analysis
func (h *Handler) AnalyzeLeaveRequest(w http.ResponseWriter, r *http.Request) {
	in, ok := h.decodeLeaveInput(w, r)
	if !ok {
		return
	}

	emp, err := h.Engine.GetEmployee(r.Context(), in.EmployeeID)
	if err != nil {
		h.handleError(w, err, "Employee not found")
		return
	}

	label := string(in.LeaveType)
	if rule, ok := leave.RuleFor(in.LeaveType); ok {
		label = rule.Label
	}

	text := h.Assistant.AnalyzeLeaveRequest(r.Context(), assistant.AnalysisInput{
		EmployeeName: emp.Name,
		Role:         string(emp.Role),
		LeaveType:    label,
		DurationDays: generic.Period{Start: in.StartDate, End: in.EndDate}.Days(),
		Reason:       in.Reason,
		HistoryDays:  emp.AnnualLeaveUsed,
	})
	writeJSON(w, http.StatusOK, AnalysisResponse{Analysis: text})
}

// ApproveLeaveRequest approves a request and charges annual quota.
// POST /api/leave-requests/{id}/approve
func (h *Handler) ApproveLeaveRequest(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, leave.StatusApproved, "")
}

// RejectLeaveRequest drafts a rejection message from the reviewer's reason,
// then stores it on the request.
// POST /api/leave-requests/{id}/reject
func (h *Handler) RejectLeaveRequest(w http.ResponseWriter, r *http.Request) {
	var body RejectRequest
	if !h.decodeAndValidate(w, r, &body) {
		return
	}

	ctx := r.Context()
	req, err := h.Engine.GetRequest(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.handleError(w, err, "Leave request not found")
		return
	}

	name := req.EmployeeID
	emp, err := h.Engine.GetEmployee(ctx, req.EmployeeID)
	switch {
	case err == nil:
		name = emp.Name
	case !generic.IsNotFound(err):
		h.handleError(w, err, "Failed to load employee")
		return
	}

	message := h.Assistant.DraftRejectionMessage(ctx, name, body.Reason)
	h.transition(w, r, leave.StatusRejected, message)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, status leave.Status, rejectionReason string) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	// SetStatus ignores unknown IDs, so check first to answer 404.
	if _, err := h.Engine.GetRequest(ctx, id); err != nil {
		h.handleError(w, err, "Leave request not found")
		return
	}
	if err := h.Engine.SetStatus(ctx, id, status, rejectionReason); err != nil {
		h.handleError(w, err, "Failed to update leave request")
		return
	}

	updated, err := h.Engine.GetRequest(ctx, id)
	if err != nil {
		h.handleError(w, err, "Failed to load leave request")
		return
	}
	writeJSON(w, http.StatusOK, toLeaveRequestDTO(updated))
}

// =============================================================================
// HR ENDPOINTS
// =============================================================================

// GetStats returns dashboard figures.
// GET /api/stats
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Engine.Stats(r.Context())
	if err != nil {
		h.handleError(w, err, "Failed to compute stats")
		return
	}
	writeJSON(w, http.StatusOK, toStatsDTO(stats))
}

// ListAudit queries the audit trail.
// GET /api/audit?employee_id=&actor_id=&action=&from=&to=
func (h *Handler) ListAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var filter generic.AuditFilter

	if v := q.Get("employee_id"); v != "" {
		id := generic.EntityID(v)
		filter.EntityID = &id
	}
	if v := q.Get("actor_id"); v != "" {
		id := generic.ActorID(v)
		filter.ActorID = &id
	}
	for _, a := range q["action"] {
		filter.Actions = append(filter.Actions, generic.AuditAction(a))
	}
	for key, dst := range map[string]**time.Time{"from": &filter.From, "to": &filter.To} {
		raw := q.Get(key)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid "+key+" (expected RFC3339)", err)
			return
		}
		*dst = &t
	}

	entries, err := h.Engine.AuditTrail(r.Context(), filter)
	if err != nil {
		h.handleError(w, err, "Failed to query audit trail")
		return
	}

	dtos := make([]AuditEntryDTO, 0, len(entries))
	for _, e := range entries {
		dtos = append(dtos, toAuditEntryDTO(e))
	}
	writeJSON(w, http.StatusOK, dtos)
}

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// DownloadReport exports the ledger as an Excel workbook. Concurrent
// downloads share one generation.
// GET /api/reports/leave-requests.xlsx
func (h *Handler) DownloadReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	v, err, shared := h.reports.Do("leave-requests", func() (interface{}, error) {
		start := time.Now()

		employees, err := h.Engine.ListEmployees(ctx)
		if err != nil {
			return nil, fmt.Errorf("list employees: %w", err)
		}
		requests, err := h.Engine.ListRequests(ctx)
		if err != nil {
			return nil, fmt.Errorf("list leave requests: %w", err)
		}

		buf, err := report.GenerateExcelReport(report.BuildRows(employees, requests))
		if err != nil {
			return nil, err
		}
		h.metrics.ReportGenerated(time.Since(start))
		return buf.Bytes(), nil
	})
	if errors.Is(err, report.ErrNoRequests) {
		writeError(w, http.StatusNotFound, "No leave requests to report", nil)
		return
	}
	if err != nil {
		h.handleError(w, err, "Failed to generate report")
		return
	}

	data := v.([]byte)
	h.logger.Debug("report generated", zap.Int("bytes", len(data)), zap.Bool("shared", shared))

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="leave-requests.xlsx"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.logger.Warn("report write interrupted", zap.Error(err))
	}
}

// Healthz reports whether storage is reachable.
// GET /healthz
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	if h.pinger != nil {
		if err := h.pinger.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "Storage unavailable", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// handleError maps domain errors to a status. Anything unrecognised is a
// 500 and is logged; its text is not sent to the client.
func (h *Handler) handleError(w http.ResponseWriter, err error, message string) {
	switch {
	case generic.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case generic.IsConflict(err):
		writeError(w, http.StatusConflict, message, err)
	case generic.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		h.logger.Error(message, zap.Error(err))
		writeError(w, http.StatusInternalServerError, message, nil)
	}
}

type fieldViolation struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// violationMessage turns "start_date"/"required" into "Start Date is required".
func violationMessage(fe validator.FieldError) string {
	name := cases.Title(language.English).String(strings.ReplaceAll(fe.Field(), "_", " "))
	switch fe.Tag() {
	case "required", "required_with":
		return name + " is required"
	case "datetime":
		return name + " must be a date in YYYY-MM-DD format"
	case "max":
		return name + " must be at most " + fe.Param() + " characters"
	default:
		return name + " is invalid"
	}
}

// decodeAndValidate writes a 400 and returns false when the body is not
// valid JSON or fails its validate tags.
func (h *Handler) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}

	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			writeError(w, http.StatusBadRequest, "Invalid input", err)
			return false
		}
		violations := make([]fieldViolation, 0, len(verrs))
		for _, fe := range verrs {
			violations = append(violations, fieldViolation{Field: fe.Field(), Rule: fe.Tag(), Message: violationMessage(fe)})
		}
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "Validation failed",
			Code:    "validation_error",
			Details: violations,
		})
		return false
	}
	return true
}

// decodeLeaveInput decodes a LeaveRequestInput, parses its dates and
// applies the caller check. end_date before start_date is a 400.
func (h *Handler) decodeLeaveInput(w http.ResponseWriter, r *http.Request) (leave.SubmitInput, bool) {
	var req LeaveRequestInput
	if !h.decodeAndValidate(w, r, &req) {
		return leave.SubmitInput{}, false
	}

	start, err := generic.ParseDate(req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start_date", err)
		return leave.SubmitInput{}, false
	}
	end, err := generic.ParseDate(req.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid end_date", err)
		return leave.SubmitInput{}, false
	}
	if _, err := generic.NewPeriod(start, end); err != nil {
		writeError(w, http.StatusBadRequest, "end_date must not be before start_date", err)
		return leave.SubmitInput{}, false
	}

	if !authorizeSubject(w, r, req.EmployeeID) {
		return leave.SubmitInput{}, false
	}

	return leave.SubmitInput{
		EmployeeID: req.EmployeeID,
		LeaveType:  leave.LeaveType(req.LeaveType),
		StartDate:  start,
		EndDate:    end,
		Reason:     req.Reason,
	}, true
}
