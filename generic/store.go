/*
store.go - Audit log contract

PURPOSE:
  Every state change in the leave engine (request created, approved,
  rejected, reopened, employee created) is recorded as an AuditEntry.
  The log is separate from the leave ledger: the ledger holds current
  state, the audit log holds who did what when.

APPEND-ONLY CONTRACT:
  AuditLog has Append and Query. No Update() or Delete() methods exist.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite table audit_log
  - leave/store/memory.go: In-memory slice for tests and dev

SEE ALSO:
  - leave/engine.go: Writes audit entries
  - api/handlers.go: GET /api/audit
*/
package generic

import (
	"context"
	"time"
)

// =============================================================================
// AUDIT LOG - Separate from the ledger, tracks who did what when
// =============================================================================

// AuditEntry records who did what when.
type AuditEntry struct {
	ID        string
	Timestamp time.Time
	ActorID   ActorID  // who performed the action, empty for system
	Action    AuditAction
	EntityID  EntityID // employee the action concerns
	SubjectID string   // request ID when the action concerns a request
	Payload   map[string]any
}

type AuditAction string

const (
	AuditRequestCreated  AuditAction = "request_created"
	AuditRequestApproved AuditAction = "request_approved"
	AuditRequestRejected AuditAction = "request_rejected"
	AuditRequestReopened AuditAction = "request_reopened"
	AuditEmployeeCreated AuditAction = "employee_created"
)

// AuditLog stores audit entries. Also append-only.
type AuditLog interface {
	AppendAudit(ctx context.Context, entry AuditEntry) error
	QueryAudit(ctx context.Context, filter AuditFilter) ([]AuditEntry, error)
}

// AuditFilter narrows a query. Nil fields match everything.
type AuditFilter struct {
	EntityID *EntityID
	ActorID  *ActorID
	Actions  []AuditAction
	From     *time.Time
	To       *time.Time
}

// Matches reports whether the entry passes every set field of the filter.
func (f AuditFilter) Matches(e AuditEntry) bool {
	if f.EntityID != nil && e.EntityID != *f.EntityID {
		return false
	}
	if f.ActorID != nil && e.ActorID != *f.ActorID {
		return false
	}
	if len(f.Actions) > 0 {
		found := false
		for _, a := range f.Actions {
			if a == e.Action {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.From != nil && e.Timestamp.Before(*f.From) {
		return false
	}
	if f.To != nil && e.Timestamp.After(*f.To) {
		return false
	}
	return true
}
