/*
audit.go - Append-only audit log

PURPOSE:
  Every balance-affecting action writes an AuditEntry: accrual top-ups,
  resets and expiries, submissions, approvals, rejections, and holiday
  edits. The log is the traceability record for the engine.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: the engine never updates or deletes an entry
  2. ONE ENTRY PER EFFECT: batch operations log each affected row
*/
package leave

import (
	"context"
	"time"
)

type AuditAction string

const (
	AuditSubmit        AuditAction = "Submit Leave"
	AuditApprove       AuditAction = "Approve"
	AuditReject        AuditAction = "Reject"
	AuditYearlyReset   AuditAction = "Yearly Reset"
	AuditMarchExpiry   AuditAction = "March Expiry"
	AuditMonthlyTopUp  AuditAction = "Monthly Top-up"
	AuditBonusOffDay   AuditAction = "Bonus Off-Day"
	AuditAddHoliday    AuditAction = "Add Holiday"
	AuditRemoveHoliday AuditAction = "Remove Holiday"
)

// SystemActor is the performer recorded for scheduled engine actions.
const SystemActor = "System"

// AuditEntry is an immutable record of one balance-affecting action.
type AuditEntry struct {
	ID          int64
	Action      AuditAction
	PerformedBy string

	// TargetEmployee and TargetRequest are empty when the action has no
	// single subject (e.g. holiday edits).
	TargetEmployee EmployeeID
	TargetRequest  RequestID

	// Summary is the human-readable one-liner; Diff carries the optional
	// structured before/after detail.
	Summary string
	Diff    map[string]any

	Timestamp time.Time
}

// AuditLog stores audit entries. Append-only.
type AuditLog interface {
	AppendAudit(ctx context.Context, entry AuditEntry) error

	// RecentAudit returns up to limit entries, newest first.
	RecentAudit(ctx context.Context, limit int) ([]AuditEntry, error)
}
