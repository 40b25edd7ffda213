/*
store.go - Persistence interfaces for the engine

PURPOSE:
  Defines the boundary between the domain logic and the database. The
  engine mutates balances in place (unlike an event-sourced ledger), so
  the transactional unit matters: every balance-mutating operation runs
  inside WithTx and either commits whole or rolls back whole.

KEY INTERFACES:
  EmployeeStore:   Employee records and their pool balances
  RequestStore:    Leave-request rows and batch lookups
  AccrualLogStore: The singleton idempotence marker
  SnapshotStore:   Pre-reset balance snapshots
  HolidayStore:    Calendar entries
  AuditLog:        Append-only audit entries (audit.go)
  TxStore:         All of the above plus WithTx

IMPLEMENTATIONS:
  - store/sqlite: production store (WAL mode)
*/
package leave

import (
	"context"
)

// EmployeeStore persists employees and their balances.
type EmployeeStore interface {
	SaveEmployee(ctx context.Context, e Employee) error
	GetEmployee(ctx context.Context, id EmployeeID) (*Employee, error)
	ListEmployees(ctx context.Context) ([]Employee, error)
}

// RequestStore persists leave-request rows.
type RequestStore interface {
	// CreateRequests inserts every row of one submission.
	CreateRequests(ctx context.Context, rows []LeaveRequest) error

	GetRequest(ctx context.Context, id RequestID) (*LeaveRequest, error)

	// GetBatch returns all rows sharing a batch id, oldest date first.
	GetBatch(ctx context.Context, batch BatchID) ([]LeaveRequest, error)

	// UpdateRequest persists a status/source transition.
	UpdateRequest(ctx context.Context, row LeaveRequest) error

	ListRequestsByEmployee(ctx context.Context, id EmployeeID) ([]LeaveRequest, error)

	// ListPendingRequests returns every Pending row, oldest first.
	// Approver-visibility scoping is applied by the workflow.
	ListPendingRequests(ctx context.Context) ([]LeaveRequest, error)
}

// AccrualLogStore persists the accrual engine's singleton marker.
type AccrualLogStore interface {
	// GetAccrualLog returns nil when no run has ever completed.
	GetAccrualLog(ctx context.Context) (*AccrualLog, error)
	SaveAccrualLog(ctx context.Context, log AccrualLog) error
}

// SnapshotStore persists pre-reset balance snapshots.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, snap BalanceSnapshot) error
	ListSnapshots(ctx context.Context, id EmployeeID) ([]BalanceSnapshot, error)
}

// HolidayStore persists calendar entries.
type HolidayStore interface {
	AddHoliday(ctx context.Context, h Holiday) error
	RemoveHoliday(ctx context.Context, id string) error
	ListHolidays(ctx context.Context) ([]Holiday, error)
}

// Store is the full persistence surface the engine operates on.
type Store interface {
	EmployeeStore
	RequestStore
	AccrualLogStore
	SnapshotStore
	HolidayStore
	AuditLog
}

// TxStore wraps Store with transaction support. WithTx executes fn against
// a transactional view: if fn returns an error the transaction is rolled
// back, otherwise committed. Reads inside fn observe earlier writes made
// within the same transaction.
type TxStore interface {
	Store
	WithTx(ctx context.Context, fn func(Store) error) error
}
