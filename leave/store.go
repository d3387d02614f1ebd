/*
store.go - Persistence interface for the roster and the leave ledger

PURPOSE:
  Defines the boundary between the engine and storage. The engine owns
  all business rules; a Store only keeps records and returns them in
  insertion order.

KEY INTERFACES:
  Store:   Roster and ledger reads/writes
  TxStore: Store plus WithTx for atomic multi-record writes

ORDERING CONTRACT:
  ListEmployees and ListRequests return records in insertion order.
  The schedule-clash scan relies on this: the first conflicting request
  it meets is the one reported.

LOOKUPS:
  GetEmployee, GetRequest and FindEmployeeByUsername return (nil, nil)
  when the record does not exist. Errors are reserved for storage faults.

IMPLEMENTATIONS:
  - leave/store/memory.go: In-memory, used by engine tests
  - store/sqlite/sqlite.go: SQLite (":memory:" or a file)

SEE ALSO:
  - engine.go: The only writer
*/
package leave

import "context"

// Store persists employees and leave requests.
type Store interface {
	// SaveEmployee inserts a new employee or replaces an existing one by ID.
	// Replacement keeps the original insertion position.
	SaveEmployee(ctx context.Context, emp Employee) error
	GetEmployee(ctx context.Context, id string) (*Employee, error)
	FindEmployeeByUsername(ctx context.Context, username string) (*Employee, error)
	ListEmployees(ctx context.Context) ([]Employee, error)

	// AppendRequest adds a request to the end of the ledger.
	AppendRequest(ctx context.Context, req LeaveRequest) error
	// UpdateRequest replaces a request in place by ID.
	UpdateRequest(ctx context.Context, req LeaveRequest) error
	GetRequest(ctx context.Context, id string) (*LeaveRequest, error)
	ListRequests(ctx context.Context) ([]LeaveRequest, error)
}

// TxStore wraps Store with transaction support.
// Use this when you need atomic operations (e.g., approving a request
// and charging the employee's quota).
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	// If fn returns nil, transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}
