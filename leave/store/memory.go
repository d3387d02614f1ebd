// Package store provides an in-memory leave.TxStore.
package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu sync.RWMutex
	state
}

// state is the data guarded by Memory.mu. Slices keep insertion order,
// maps index into them.
type state struct {
	employees   []leave.Employee
	employeeIdx map[string]int
	requests    []leave.LeaveRequest
	requestIdx  map[string]int
	audit       []generic.AuditEntry
}

func newState() state {
	return state{
		employeeIdx: make(map[string]int),
		requestIdx:  make(map[string]int),
	}
}

func NewMemory() *Memory {
	return &Memory{state: newState()}
}

var (
	_ leave.TxStore    = (*Memory)(nil)
	_ generic.AuditLog = (*Memory)(nil)
)

// -----------------------------------------------------------------------------
// Employees
// -----------------------------------------------------------------------------

func (m *Memory) SaveEmployee(_ context.Context, emp leave.Employee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveEmployee(emp)
	return nil
}

func (m *Memory) GetEmployee(_ context.Context, id string) (*leave.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getEmployee(id), nil
}

func (m *Memory) FindEmployeeByUsername(_ context.Context, username string) (*leave.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.findByUsername(username), nil
}

func (m *Memory) ListEmployees(_ context.Context) ([]leave.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]leave.Employee{}, m.employees...), nil
}

// -----------------------------------------------------------------------------
// Leave requests
// -----------------------------------------------------------------------------

func (m *Memory) AppendRequest(_ context.Context, req leave.LeaveRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendRequest(req)
}

func (m *Memory) UpdateRequest(_ context.Context, req leave.LeaveRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateRequest(req)
}

func (m *Memory) GetRequest(_ context.Context, id string) (*leave.LeaveRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getRequest(id), nil
}

func (m *Memory) ListRequests(_ context.Context) ([]leave.LeaveRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]leave.LeaveRequest{}, m.requests...), nil
}

// -----------------------------------------------------------------------------
// Audit log
// -----------------------------------------------------------------------------

func (m *Memory) AppendAudit(_ context.Context, entry generic.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audit = append(m.audit, entry)
	return nil
}

func (m *Memory) QueryAudit(_ context.Context, filter generic.AuditFilter) ([]generic.AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []generic.AuditEntry
	for _, e := range m.audit {
		if filter.Matches(e) {
			result = append(result, e)
		}
	}
	return result, nil
}

// =============================================================================
// UNLOCKED STATE OPERATIONS - callers hold m.mu
// =============================================================================

func (s *state) saveEmployee(emp leave.Employee) {
	if i, ok := s.employeeIdx[emp.ID]; ok {
		s.employees[i] = emp
		return
	}
	s.employeeIdx[emp.ID] = len(s.employees)
	s.employees = append(s.employees, emp)
}

func (s *state) getEmployee(id string) *leave.Employee {
	i, ok := s.employeeIdx[id]
	if !ok {
		return nil
	}
	emp := s.employees[i]
	return &emp
}

func (s *state) findByUsername(username string) *leave.Employee {
	if username == "" {
		return nil
	}
	for _, emp := range s.employees {
		if emp.Username == username {
			found := emp
			return &found
		}
	}
	return nil
}

func (s *state) appendRequest(req leave.LeaveRequest) error {
	if _, ok := s.requestIdx[req.ID]; ok {
		return fmt.Errorf("leave request %s already exists", req.ID)
	}
	s.requestIdx[req.ID] = len(s.requests)
	s.requests = append(s.requests, req)
	return nil
}

func (s *state) updateRequest(req leave.LeaveRequest) error {
	i, ok := s.requestIdx[req.ID]
	if !ok {
		return fmt.Errorf("%w: %s", generic.ErrRequestNotFound, req.ID)
	}
	s.requests[i] = req
	return nil
}

func (s *state) getRequest(id string) *leave.LeaveRequest {
	i, ok := s.requestIdx[id]
	if !ok {
		return nil
	}
	req := s.requests[i]
	return &req
}

func (s *state) clone() state {
	c := state{
		employees:   append([]leave.Employee{}, s.employees...),
		employeeIdx: make(map[string]int, len(s.employeeIdx)),
		requests:    append([]leave.LeaveRequest{}, s.requests...),
		requestIdx:  make(map[string]int, len(s.requestIdx)),
		audit:       append([]generic.AuditEntry{}, s.audit...),
	}
	for k, v := range s.employeeIdx {
		c.employeeIdx[k] = v
	}
	for k, v := range s.requestIdx {
		c.requestIdx[k] = v
	}
	return c
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (m *Memory) WithTx(_ context.Context, fn func(leave.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.state.clone()

	if err := fn(&txView{s: &m.state}); err != nil {
		m.state = snapshot
		return err
	}
	return nil
}

// txView operates on the parent's state without locking; WithTx holds the lock.
type txView struct {
	s *state
}

func (tv *txView) SaveEmployee(_ context.Context, emp leave.Employee) error {
	tv.s.saveEmployee(emp)
	return nil
}

func (tv *txView) GetEmployee(_ context.Context, id string) (*leave.Employee, error) {
	return tv.s.getEmployee(id), nil
}

func (tv *txView) FindEmployeeByUsername(_ context.Context, username string) (*leave.Employee, error) {
	return tv.s.findByUsername(username), nil
}

func (tv *txView) ListEmployees(_ context.Context) ([]leave.Employee, error) {
	return append([]leave.Employee{}, tv.s.employees...), nil
}

func (tv *txView) AppendRequest(_ context.Context, req leave.LeaveRequest) error {
	return tv.s.appendRequest(req)
}

func (tv *txView) UpdateRequest(_ context.Context, req leave.LeaveRequest) error {
	return tv.s.updateRequest(req)
}

func (tv *txView) GetRequest(_ context.Context, id string) (*leave.LeaveRequest, error) {
	return tv.s.getRequest(id), nil
}

func (tv *txView) ListRequests(_ context.Context) ([]leave.LeaveRequest, error) {
	return append([]leave.LeaveRequest{}, tv.s.requests...), nil
}
