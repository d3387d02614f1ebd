package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func employee(id, username string) leave.Employee {
	return leave.Employee{
		ID: id, Name: "Employee " + id, Role: leave.RoleCrewStore,
		StoreID: "STORE-001", AreaID: "AREA-01",
		JoinDate: generic.MustParseDate("2022-01-15"), Username: username,
	}
}

func request(id, employeeID string) leave.LeaveRequest {
	now := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	return leave.LeaveRequest{
		ID: id, EmployeeID: employeeID, LeaveType: leave.LeaveAnnual,
		StartDate: generic.MustParseDate("2025-03-10"), EndDate: generic.MustParseDate("2025-03-12"),
		DurationDays: 3, Reason: "family trip", Status: leave.StatusPending,
		CreatedAt: now, UpdatedAt: now,
	}
}

// =============================================================================
// EMPLOYEES
// =============================================================================

func TestStore_EmployeeRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	emp := employee("1", "budi")
	emp.AnnualLeaveUsed = 2
	emp.PasswordHash = "hash"
	require.NoError(t, store.SaveEmployee(ctx, emp))

	got, err := store.GetEmployee(ctx, "1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, emp, *got)

	byName, err := store.FindEmployeeByUsername(ctx, "budi")
	require.NoError(t, err)
	require.NotNil(t, byName)
	assert.Equal(t, "1", byName.ID)

	missing, err := store.GetEmployee(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestStore_ListEmployees_InsertionOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"z", "a", "m"} {
		require.NoError(t, store.SaveEmployee(ctx, employee(id, "")))
	}
	updated := employee("a", "")
	updated.AnnualLeaveUsed = 4
	require.NoError(t, store.SaveEmployee(ctx, updated))

	emps, err := store.ListEmployees(ctx)
	require.NoError(t, err)
	require.Len(t, emps, 3)
	assert.Equal(t, "z", emps[0].ID)
	assert.Equal(t, "a", emps[1].ID)
	assert.Equal(t, 4, emps[1].AnnualLeaveUsed)
	assert.Equal(t, "m", emps[2].ID)
}

func TestStore_DuplicateUsername(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveEmployee(ctx, employee("1", "budi")))
	// Employees without a username do not collide
	require.NoError(t, store.SaveEmployee(ctx, employee("2", "")))
	require.NoError(t, store.SaveEmployee(ctx, employee("3", "")))

	err := store.SaveEmployee(ctx, employee("4", "budi"))
	assert.ErrorIs(t, err, generic.ErrDuplicateUsername)
}

// =============================================================================
// LEAVE REQUESTS
// =============================================================================

func TestStore_RequestLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveEmployee(ctx, employee("1", "")))

	req := request("r1", "1")
	require.NoError(t, store.AppendRequest(ctx, req))

	got, err := store.GetRequest(ctx, "r1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, req, *got)

	req.Status = leave.StatusRejected
	req.RejectionReason = "short-staffed"
	req.UpdatedAt = req.UpdatedAt.Add(time.Hour)
	require.NoError(t, store.UpdateRequest(ctx, req))

	got, err = store.GetRequest(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, leave.StatusRejected, got.Status)
	assert.Equal(t, "short-staffed", got.RejectionReason)
	assert.True(t, req.UpdatedAt.Equal(got.UpdatedAt))

	err = store.UpdateRequest(ctx, request("ghost", "1"))
	assert.ErrorIs(t, err, generic.ErrRequestNotFound)
}

func TestStore_ListRequests_InsertionOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveEmployee(ctx, employee("1", "")))

	for _, id := range []string{"r3", "r1", "r2"} {
		require.NoError(t, store.AppendRequest(ctx, request(id, "1")))
	}

	reqs, err := store.ListRequests(ctx)
	require.NoError(t, err)
	require.Len(t, reqs, 3)
	assert.Equal(t, []string{"r3", "r1", "r2"}, []string{reqs[0].ID, reqs[1].ID, reqs[2].ID})
}

func TestStore_WithTx_Rollback(t *testing.T) {
	// GIVEN: A stored employee and request
	// WHEN: A transaction updates both and then fails
	// THEN: Neither update is visible
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveEmployee(ctx, employee("1", "")))
	require.NoError(t, store.AppendRequest(ctx, request("r1", "1")))

	boom := errors.New("boom")
	err := store.WithTx(ctx, func(tx leave.Store) error {
		req, err := tx.GetRequest(ctx, "r1")
		require.NoError(t, err)
		req.Status = leave.StatusApproved
		require.NoError(t, tx.UpdateRequest(ctx, *req))

		emp, err := tx.GetEmployee(ctx, "1")
		require.NoError(t, err)
		emp.AnnualLeaveUsed = 3
		require.NoError(t, tx.SaveEmployee(ctx, *emp))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	req, err := store.GetRequest(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, leave.StatusPending, req.Status)

	emp, err := store.GetEmployee(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, 0, emp.AnnualLeaveUsed)
}

// =============================================================================
// ENGINE ON SQLITE
// =============================================================================

func TestStore_BacksEngine(t *testing.T) {
	// GIVEN: The demo roster seeded into SQLite
	// WHEN: Siti (crew, STORE-001) takes approved leave and Budi asks for the same days
	// THEN: Budi is refused with a store clash and Siti's quota is charged
	store := newTestStore(t)
	ctx := context.Background()

	n, err := leave.SeedRoster(ctx, store, bcrypt.MinCost)
	require.NoError(t, err)
	require.Equal(t, 7, n)

	engine := leave.NewEngine(store, leave.WithAuditLog(store))

	res, err := engine.Submit(ctx, leave.SubmitInput{
		EmployeeID: "2", LeaveType: leave.LeaveAnnual,
		StartDate: generic.MustParseDate("2025-04-01"), EndDate: generic.MustParseDate("2025-04-03"),
	})
	require.NoError(t, err)
	require.True(t, res.Success, res.Message)
	require.NoError(t, engine.SetStatus(ctx, res.Request.ID, leave.StatusApproved, ""))

	siti, err := engine.GetEmployee(ctx, "2")
	require.NoError(t, err)
	assert.Equal(t, 8, siti.AnnualLeaveUsed)

	clash, err := engine.Submit(ctx, leave.SubmitInput{
		EmployeeID: "1", LeaveType: leave.LeaveAnnual,
		StartDate: generic.MustParseDate("2025-04-03"), EndDate: generic.MustParseDate("2025-04-04"),
	})
	require.NoError(t, err)
	assert.False(t, clash.Success)
	assert.Equal(t, leave.RuleStoreClash, clash.Conflict.Rule)

	trail, err := engine.AuditTrail(ctx, generic.AuditFilter{Actions: []generic.AuditAction{generic.AuditRequestApproved}})
	require.NoError(t, err)
	require.Len(t, trail, 1)
	assert.Equal(t, res.Request.ID, trail[0].SubjectID)
	assert.EqualValues(t, 3, trail[0].Payload["quota_charged"])
}

func TestStore_AuditFilter(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	entries := []generic.AuditEntry{
		{ID: "a1", Timestamp: base, ActorID: "7", Action: generic.AuditEmployeeCreated, EntityID: "1"},
		{ID: "a2", Timestamp: base.Add(time.Hour), ActorID: "1", Action: generic.AuditRequestCreated, EntityID: "1", SubjectID: "r1"},
		{ID: "a3", Timestamp: base.Add(2 * time.Hour), ActorID: "7", Action: generic.AuditRequestApproved, EntityID: "1", SubjectID: "r1",
			Payload: map[string]any{"from": "pending", "to": "approved"}},
	}
	for _, e := range entries {
		require.NoError(t, store.AppendAudit(ctx, e))
	}

	actor := generic.ActorID("7")
	got, err := store.QueryAudit(ctx, generic.AuditFilter{ActorID: &actor})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "approved", got[1].Payload["to"])

	from := base.Add(30 * time.Minute)
	got, err = store.QueryAudit(ctx, generic.AuditFilter{From: &from})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}
