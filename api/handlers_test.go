/*
handlers_test.go - HTTP tests for the leave API

Tests for:
- Login, token checks and the HRD guard
- Submission for self vs others, 422 on rule conflicts
- Approve and reject, with the drafted rejection message
- Audit trail, stats, Excel export, health and metrics endpoints
*/
package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/crypto/bcrypt"

	"github.com/warp/leave-engine/api"
	"github.com/warp/leave-engine/assistant"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/metrics"
	"github.com/warp/leave-engine/store/sqlite"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

type stubAssistant struct {
	mu      sync.Mutex
	names   []string
	reasons []string
}

func (s *stubAssistant) AnalyzeLeaveRequest(_ context.Context, in assistant.AnalysisInput) string {
	return "analysis for " + in.EmployeeName
}

func (s *stubAssistant) DraftRejectionMessage(_ context.Context, name, reason string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.names = append(s.names, name)
	s.reasons = append(s.reasons, reason)
	return "Dear " + name + ", " + reason
}

type testEnv struct {
	router http.Handler
	asst   *stubAssistant
}

func newTestEnv(t *testing.T, loginRate string) *testEnv {
	t.Helper()
	ctx := context.Background()

	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	_, err = leave.SeedRoster(ctx, store, bcrypt.MinCost)
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)
	engine := leave.NewEngine(store,
		leave.WithAuditLog(store),
		leave.WithMetrics(m),
		leave.WithPasswordCost(bcrypt.MinCost),
	)

	asst := &stubAssistant{}
	h := api.NewHandler(engine, api.NewTokenIssuer("test-secret", time.Hour),
		api.WithAssistant(asst),
		api.WithMetrics(m),
		api.WithPinger(store),
	)

	cfg := api.RouterConfig{AllowedOrigins: []string{"http://localhost:5173"}, Gatherer: reg}
	if loginRate != "" {
		lim, err := api.NewLoginLimiter(loginRate)
		require.NoError(t, err)
		cfg.LoginLimiter = lim
	}

	return &testEnv{router: api.NewRouter(h, cfg), asst: asst}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) login(t *testing.T, username, password string) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/auth/login", "", api.LoginRequest{Username: username, Password: password})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[api.LoginResponse](t, rec)
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func leaveInput(employeeID, leaveType, start, end string) api.LeaveRequestInput {
	return api.LeaveRequestInput{
		EmployeeID: employeeID, LeaveType: leaveType, StartDate: start, EndDate: end, Reason: "family event",
	}
}

// =============================================================================
// AUTH
// =============================================================================

func TestLogin(t *testing.T) {
	env := newTestEnv(t, "")

	t.Run("valid credentials return a token and the employee", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/auth/login", "", api.LoginRequest{Username: "admin", Password: "admin"})
		require.Equal(t, http.StatusOK, rec.Code)
		resp := decode[api.LoginResponse](t, rec)
		assert.Equal(t, "7", resp.Employee.ID)
		assert.Equal(t, "hrd", resp.Employee.Role)
		assert.NotContains(t, rec.Body.String(), "password")
	})

	t.Run("wrong password is 401", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/auth/login", "", api.LoginRequest{Username: "budi", Password: "nope"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("missing fields are a validation error", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/auth/login", "", api.LoginRequest{Username: "budi"})
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "validation_error", decode[api.ErrorResponse](t, rec).Code)
		assert.Contains(t, rec.Body.String(), "Password is required")
	})
}

func TestLogin_RateLimited(t *testing.T) {
	// GIVEN: A login limit of 2 per minute
	env := newTestEnv(t, "2-M")

	// WHEN: A third attempt arrives from the same IP
	for i := 0; i < 2; i++ {
		rec := env.do(t, http.MethodPost, "/api/auth/login", "", api.LoginRequest{Username: "budi", Password: "bad"})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	}
	rec := env.do(t, http.MethodPost, "/api/auth/login", "", api.LoginRequest{Username: "budi", Password: "123"})

	// THEN: It is refused before credentials are checked
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestProtectedRoutes(t *testing.T) {
	env := newTestEnv(t, "")

	rec := env.do(t, http.MethodGet, "/api/employees", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/employees", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	expired := api.NewTokenIssuer("test-secret", -time.Minute)
	token, _, err := expired.Issue(leave.Employee{ID: "7", Role: leave.RoleHRD})
	require.NoError(t, err)
	rec = env.do(t, http.MethodGet, "/api/employees", token, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Token has expired", decode[api.ErrorResponse](t, rec).Error)

	forged := api.NewTokenIssuer("other-secret", time.Hour)
	token, _, err = forged.Issue(leave.Employee{ID: "7", Role: leave.RoleHRD})
	require.NoError(t, err)
	rec = env.do(t, http.MethodGet, "/api/employees", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHRDOnlyRoutes(t *testing.T) {
	env := newTestEnv(t, "")
	budi := env.login(t, "budi", "123")

	for _, tc := range []struct{ method, path string }{
		{http.MethodPost, "/api/employees"},
		{http.MethodPost, "/api/leave-requests/x/approve"},
		{http.MethodPost, "/api/leave-requests/x/reject"},
		{http.MethodGet, "/api/audit"},
		{http.MethodGet, "/api/reports/leave-requests.xlsx"},
	} {
		rec := env.do(t, tc.method, tc.path, budi, map[string]string{})
		assert.Equal(t, http.StatusForbidden, rec.Code, tc.path)
	}
}

// =============================================================================
// REFERENCE & ROSTER
// =============================================================================

func TestListLeaveTypes_Public(t *testing.T) {
	env := newTestEnv(t, "")

	rec := env.do(t, http.MethodGet, "/api/leave-types", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	types := decode[[]api.LeaveTypeDTO](t, rec)
	require.Len(t, types, 10)
	assert.Equal(t, "annual", types[0].Type)
	assert.Equal(t, 12, types[0].MaxDays)
}

func TestEmployees(t *testing.T) {
	env := newTestEnv(t, "")
	admin := env.login(t, "admin", "admin")

	rec := env.do(t, http.MethodGet, "/api/employees", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]api.EmployeeDTO](t, rec), 7)

	rec = env.do(t, http.MethodGet, "/api/employees/missing", admin, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/employees/2/balance", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	bal := decode[api.BalanceDTO](t, rec)
	assert.Equal(t, "7", bal.Remaining.Value.String())

	t.Run("create", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/employees", admin, api.CreateEmployeeRequest{
			Name: "Lina Kurnia", Role: "crew_store", StoreID: "STORE-003", AreaID: "AREA-02",
			JoinDate: "2024-07-01", Username: "lina", Password: "secret1",
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		created := decode[api.EmployeeDTO](t, rec)
		assert.NotEmpty(t, created.ID)
		assert.Equal(t, 0, created.AnnualLeaveUsed)

		env.login(t, "lina", "secret1")
	})

	t.Run("duplicate username is 409", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/employees", admin, api.CreateEmployeeRequest{
			Name: "Another Budi", Role: "crew_store", Username: "budi", Password: "secret1",
		})
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("unknown role is a validation error", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/employees", admin, api.CreateEmployeeRequest{
			Name: "Nobody", Role: "ceo",
		})
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), `"field":"role"`)
	})
}

// =============================================================================
// LEAVE REQUESTS
// =============================================================================

func TestSubmit_SelfOnlyForNonHRD(t *testing.T) {
	env := newTestEnv(t, "")
	budi := env.login(t, "budi", "123")

	rec := env.do(t, http.MethodPost, "/api/leave-requests", budi, leaveInput("2", "annual", "2025-06-02", "2025-06-03"))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/leave-requests", budi, leaveInput("1", "annual", "2025-06-02", "2025-06-03"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	resp := decode[api.SubmitResponse](t, rec)
	assert.True(t, resp.Success)
	require.NotNil(t, resp.Request)
	assert.Equal(t, "pending", resp.Request.Status)
	assert.Equal(t, 2, resp.Request.DurationDays)
}

func TestSubmit_InputErrors(t *testing.T) {
	env := newTestEnv(t, "")
	budi := env.login(t, "budi", "123")

	rec := env.do(t, http.MethodPost, "/api/leave-requests", budi, leaveInput("1", "vacation", "2025-06-02", "2025-06-03"))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"field":"leave_type"`)

	rec = env.do(t, http.MethodPost, "/api/leave-requests", budi, leaveInput("1", "annual", "2025-06-05", "2025-06-03"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/leave-requests", budi, leaveInput("1", "annual", "06/02/2025", "2025-06-03"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmit_ConflictIs422(t *testing.T) {
	// GIVEN: Budi's approved annual leave in STORE-001
	env := newTestEnv(t, "")
	admin := env.login(t, "admin", "admin")
	siti := env.login(t, "siti", "123")

	rec := env.do(t, http.MethodPost, "/api/leave-requests", admin, leaveInput("1", "annual", "2025-06-02", "2025-06-04"))
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode[api.SubmitResponse](t, rec).Request.ID

	rec = env.do(t, http.MethodPost, "/api/leave-requests/"+id+"/approve", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// WHEN: Siti, same store, asks for an overlapping day
	rec = env.do(t, http.MethodPost, "/api/leave-requests", siti, leaveInput("2", "sick", "2025-06-04", "2025-06-04"))

	// THEN: 422 naming the store clash, and the dry run agrees
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	errResp := decode[api.ErrorResponse](t, rec)
	assert.Equal(t, "store_clash", errResp.Code)

	rec = env.do(t, http.MethodPost, "/api/leave-requests/validate", siti, leaveInput("2", "sick", "2025-06-04", "2025-06-04"))
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[api.ConflictResultDTO](t, rec)
	assert.True(t, res.HasConflict)
	assert.Equal(t, id, res.ConflictingRequestID)

	rec = env.do(t, http.MethodPost, "/api/leave-requests/validate", siti, leaveInput("2", "sick", "2025-06-05", "2025-06-05"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[api.ConflictResultDTO](t, rec).HasConflict)
}

func TestApprove_ChargesQuota(t *testing.T) {
	env := newTestEnv(t, "")
	admin := env.login(t, "admin", "admin")

	rec := env.do(t, http.MethodPost, "/api/leave-requests", admin, leaveInput("1", "annual", "2025-06-02", "2025-06-03"))
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode[api.SubmitResponse](t, rec).Request.ID

	rec = env.do(t, http.MethodPost, "/api/leave-requests/"+id+"/approve", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "approved", decode[api.LeaveRequestDTO](t, rec).Status)

	// approving twice charges once
	rec = env.do(t, http.MethodPost, "/api/leave-requests/"+id+"/approve", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/employees/1", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 4, decode[api.EmployeeDTO](t, rec).AnnualLeaveUsed)

	rec = env.do(t, http.MethodPost, "/api/leave-requests/missing/approve", admin, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReject_StoresDraftedMessage(t *testing.T) {
	// GIVEN: A pending request from Budi
	env := newTestEnv(t, "")
	admin := env.login(t, "admin", "admin")

	rec := env.do(t, http.MethodPost, "/api/leave-requests", admin, leaveInput("1", "annual", "2025-06-02", "2025-06-03"))
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode[api.SubmitResponse](t, rec).Request.ID

	// WHEN: HR rejects it with a short reason
	rec = env.do(t, http.MethodPost, "/api/leave-requests/"+id+"/reject", admin, api.RejectRequest{Reason: "stock take week"})

	// THEN: The drafted message is stored and quota is untouched
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[api.LeaveRequestDTO](t, rec)
	assert.Equal(t, "rejected", got.Status)
	assert.Equal(t, "Dear Budi Santoso, stock take week", got.RejectionReason)
	assert.Equal(t, []string{"Budi Santoso"}, env.asst.names)

	rec = env.do(t, http.MethodGet, "/api/employees/1", admin, nil)
	assert.Equal(t, 2, decode[api.EmployeeDTO](t, rec).AnnualLeaveUsed)

	t.Run("reason is required", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/leave-requests/"+id+"/reject", admin, api.RejectRequest{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestListLeaveRequests_Filters(t *testing.T) {
	env := newTestEnv(t, "")
	admin := env.login(t, "admin", "admin")

	for _, in := range []api.LeaveRequestInput{
		leaveInput("1", "sick", "2025-07-01", "2025-07-01"),
		leaveInput("5", "sick", "2025-07-10", "2025-07-11"),
		leaveInput("6", "sick", "2025-07-20", "2025-07-20"),
	} {
		rec := env.do(t, http.MethodPost, "/api/leave-requests", admin, in)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec := env.do(t, http.MethodGet, "/api/leave-requests", admin, nil)
	all := decode[[]api.LeaveRequestDTO](t, rec)
	require.Len(t, all, 3)
	assert.Equal(t, "1", all[0].EmployeeID, "ledger order")

	rec = env.do(t, http.MethodGet, "/api/leave-requests?employee_id=5", admin, nil)
	assert.Len(t, decode[[]api.LeaveRequestDTO](t, rec), 1)

	rec = env.do(t, http.MethodGet, "/api/leave-requests?status=approved", admin, nil)
	assert.Empty(t, decode[[]api.LeaveRequestDTO](t, rec))

	rec = env.do(t, http.MethodGet, "/api/leave-requests?status=cancelled", admin, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/leave-requests/"+all[1].ID, admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "5", decode[api.LeaveRequestDTO](t, rec).EmployeeID)
}

func TestAnalyze(t *testing.T) {
	env := newTestEnv(t, "")
	budi := env.login(t, "budi", "123")

	rec := env.do(t, http.MethodPost, "/api/leave-requests/analysis", budi, leaveInput("1", "annual", "2025-06-02", "2025-06-03"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "analysis for Budi Santoso", decode[api.AnalysisResponse](t, rec).Analysis)
}

// =============================================================================
// HR ENDPOINTS
// =============================================================================

func TestAuditTrail_RecordsActor(t *testing.T) {
	env := newTestEnv(t, "")
	admin := env.login(t, "admin", "admin")
	budi := env.login(t, "budi", "123")

	rec := env.do(t, http.MethodPost, "/api/leave-requests", budi, leaveInput("1", "annual", "2025-06-02", "2025-06-03"))
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode[api.SubmitResponse](t, rec).Request.ID
	rec = env.do(t, http.MethodPost, "/api/leave-requests/"+id+"/approve", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/audit?employee_id=1", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	entries := decode[[]api.AuditEntryDTO](t, rec)
	require.Len(t, entries, 2)
	assert.Equal(t, "request_created", entries[0].Action)
	assert.Equal(t, "1", entries[0].ActorID)
	assert.Equal(t, "request_approved", entries[1].Action)
	assert.Equal(t, "7", entries[1].ActorID)
	assert.Equal(t, id, entries[1].SubjectID)

	rec = env.do(t, http.MethodGet, "/api/audit?action=request_approved", admin, nil)
	assert.Len(t, decode[[]api.AuditEntryDTO](t, rec), 1)

	rec = env.do(t, http.MethodGet, "/api/audit?from=yesterday", admin, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStats(t *testing.T) {
	env := newTestEnv(t, "")
	admin := env.login(t, "admin", "admin")

	rec := env.do(t, http.MethodPost, "/api/leave-requests", admin, leaveInput("3", "sick", "2025-06-02", "2025-06-05"))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/stats", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[api.StatsDTO](t, rec)
	assert.Equal(t, 7, stats.TotalEmployees)
	assert.Equal(t, 1, stats.TotalRequests)
	assert.Equal(t, 1, stats.Pending)
	assert.Equal(t, 2, stats.ByRole["crew_store"])
	assert.Equal(t, 1, stats.ByLeaveType["sick"])
	assert.Equal(t, "4", stats.AverageDurationDays.String())
}

func TestDownloadReport(t *testing.T) {
	env := newTestEnv(t, "")
	admin := env.login(t, "admin", "admin")

	rec := env.do(t, http.MethodGet, "/api/reports/leave-requests.xlsx", admin, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "empty ledger")

	rec = env.do(t, http.MethodPost, "/api/leave-requests", admin, leaveInput("1", "annual", "2025-06-02", "2025-06-03"))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/reports/leave-requests.xlsx", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "application/vnd.openxmlformats"))

	f, err := excelize.OpenReader(rec.Body)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"annual"}, f.GetSheetList())

	t.Run("concurrent downloads", func(t *testing.T) {
		var wg sync.WaitGroup
		codes := make([]int, 5)
		for i := range codes {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				req := httptest.NewRequest(http.MethodGet, "/api/reports/leave-requests.xlsx", nil)
				req.Header.Set("Authorization", "Bearer "+admin)
				rec := httptest.NewRecorder()
				env.router.ServeHTTP(rec, req)
				codes[i] = rec.Code
			}(i)
		}
		wg.Wait()
		for _, code := range codes {
			assert.Equal(t, http.StatusOK, code)
		}
	})
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t, "")
	admin := env.login(t, "admin", "admin")

	rec := env.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/leave-requests", admin, leaveInput("1", "sick", "2025-06-02", "2025-06-02"))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `leave_requests_submitted_total{leave_type="sick"} 1`)
}
