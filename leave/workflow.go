/*
workflow.go - Batch submission and approval lifecycle

PURPOSE:
  The request-facing half of the engine. A multi-day submission is stored
  as per-day rows sharing a BatchID; approval and rejection always act on
  the whole batch so an employee is never left with a half-approved trip.

LIFECYCLE:
  Submit  -> Pending rows, no balance effect
  Approve -> per-row deduction at each row's own date, Source recorded
  Reject  -> Approved rows refunded exactly from their recorded Source

CRITICAL INVARIANTS:
  1. BATCH ATOMICITY: if any row of an approval fails, every row stays
     Pending and every pool keeps its prior value
  2. EXACT REVERSAL: rejection after approval restores balances from the
     recorded Source, never by re-running routing under current policy
  3. VISIBILITY: approvers only see batches the policy table grants them
*/
package leave

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Workflow drives the request lifecycle against a transactional store.
type Workflow struct {
	Store TxStore

	// now is swappable for tests.
	now func() time.Time
}

func NewWorkflow(store TxStore) *Workflow {
	return &Workflow{Store: store, now: time.Now}
}

// Submission is the input to Submit. Start and End are inclusive calendar
// days; time-of-day is ignored.
type Submission struct {
	EmployeeID EmployeeID
	Category   Category
	Start, End time.Time

	// Quantity applies only to single-day submissions and may be
	// fractional (half days). Zero means a full day. Multi-day ranges are
	// always 1.0 per eligible day.
	Quantity decimal.Decimal

	Notes         string
	AttachmentRef string
}

// =============================================================================
// SUBMIT
// =============================================================================

// Submit expands a date range into per-day Pending rows under one BatchID.
// Rest days and holidays are skipped, except for CategoryWorkingOnOff where
// they are precisely the days being claimed. Balances are validated against
// the full drawable total but not mutated; deduction happens at approval.
func (w *Workflow) Submit(ctx context.Context, sub Submission) ([]LeaveRequest, error) {
	start, end := Day(sub.Start), Day(sub.End)
	if end.Before(start) {
		return nil, fmt.Errorf("%w: end date %s precedes start date %s",
			ErrPolicyViolation, end.Format("2006-01-02"), start.Format("2006-01-02"))
	}

	var created []LeaveRequest
	err := w.Store.WithTx(ctx, func(s Store) error {
		emp, err := s.GetEmployee(ctx, sub.EmployeeID)
		if err != nil {
			return err
		}
		holidays, err := s.ListHolidays(ctx)
		if err != nil {
			return fmt.Errorf("list holidays: %w", err)
		}

		days := eligibleDays(emp, sub.Category, start, end, holidays)
		if len(days) == 0 {
			return fmt.Errorf("%w: no working days in %s..%s",
				ErrPolicyViolation, start.Format("2006-01-02"), end.Format("2006-01-02"))
		}

		perDay := decimal.NewFromInt(1)
		if len(days) == 1 && sub.Quantity.IsPositive() {
			perDay = sub.Quantity
		}

		// Dry-run the whole batch against a scratch copy so a submission
		// that could never be approved is refused up front.
		scratch := emp.Balances
		for _, day := range days {
			if _, err := Deduct(&scratch, sub.Category, perDay, day); err != nil {
				return err
			}
		}

		batch := BatchID(uuid.NewString())
		now := w.now().UTC()
		rows := make([]LeaveRequest, 0, len(days))
		for _, day := range days {
			rows = append(rows, LeaveRequest{
				ID:            RequestID(uuid.NewString()),
				EmployeeID:    emp.ID,
				BatchID:       batch,
				Category:      sub.Category,
				Date:          day,
				Quantity:      perDay,
				Status:        StatusPending,
				Notes:         sub.Notes,
				AttachmentRef: sub.AttachmentRef,
				CreatedAt:     now,
				UpdatedAt:     now,
			})
		}
		if err := s.CreateRequests(ctx, rows); err != nil {
			return fmt.Errorf("create requests: %w", err)
		}

		for _, row := range rows {
			if err := s.AppendAudit(ctx, AuditEntry{
				Action:         AuditSubmit,
				PerformedBy:    string(emp.ID),
				TargetEmployee: emp.ID,
				TargetRequest:  row.ID,
				Summary: fmt.Sprintf("%s on %s (%s day)",
					row.Category, row.Date.Format("2006-01-02"), row.Quantity),
				Timestamp: now,
			}); err != nil {
				return err
			}
		}

		created = rows
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// eligibleDays walks the inclusive range and keeps the days the category
// applies to. Normal leave lands on working days only; working-on-off claims
// are for rest days, holidays, or overtime, so the range passes unfiltered.
func eligibleDays(emp *Employee, category Category, start, end time.Time, holidays []Holiday) []time.Time {
	var days []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if !category.Credits() {
			if emp.IsRestDay(d) || IsHolidayOn(holidays, d) {
				continue
			}
		}
		days = append(days, d)
	}
	return days
}

// =============================================================================
// APPROVE / REJECT
// =============================================================================

// Approve approves the whole batch containing the given request. Each row
// is deducted against its own date, so a batch straddling the March boundary
// draws each day under that day's seasonal ordering. Any terminal row or
// any shortfall aborts the whole batch.
func (w *Workflow) Approve(ctx context.Context, id RequestID, approverID EmployeeID) error {
	return w.Store.WithTx(ctx, func(s Store) error {
		rows, emp, err := w.loadBatch(ctx, s, id, approverID)
		if err != nil {
			return err
		}

		now := w.now().UTC()
		for i := range rows {
			row := &rows[i]
			if row.Status.Terminal() {
				return fmt.Errorf("%w: request %s already %s",
					ErrPolicyViolation, row.ID, row.Status)
			}
			src, err := Deduct(&emp.Balances, row.Category, row.Quantity, row.Date)
			if err != nil {
				return err
			}
			row.Source = src
			row.Status = StatusApproved
			row.UpdatedAt = now
			if err := s.UpdateRequest(ctx, *row); err != nil {
				return fmt.Errorf("update request %s: %w", row.ID, err)
			}
			if err := s.AppendAudit(ctx, AuditEntry{
				Action:         AuditApprove,
				PerformedBy:    string(approverID),
				TargetEmployee: emp.ID,
				TargetRequest:  row.ID,
				Summary: fmt.Sprintf("%s on %s, drawn from [%s]",
					row.Category, row.Date.Format("2006-01-02"), row.Source),
				Timestamp: now,
			}); err != nil {
				return err
			}
		}

		return s.SaveEmployee(ctx, *emp)
	})
}

// Reject rejects the whole batch containing the given request. Rows already
// Approved are refunded exactly from their recorded Source. A batch that is
// entirely Rejected already cannot be rejected again.
func (w *Workflow) Reject(ctx context.Context, id RequestID, approverID EmployeeID, reason string) error {
	return w.Store.WithTx(ctx, func(s Store) error {
		rows, emp, err := w.loadBatch(ctx, s, id, approverID)
		if err != nil {
			return err
		}

		allRejected := true
		for _, row := range rows {
			if row.Status != StatusRejected {
				allRejected = false
				break
			}
		}
		if allRejected {
			return fmt.Errorf("%w: batch %s already rejected", ErrPolicyViolation, rows[0].BatchID)
		}

		now := w.now().UTC()
		balancesTouched := false
		for i := range rows {
			row := &rows[i]
			if row.Status == StatusRejected {
				continue
			}
			summary := fmt.Sprintf("%s on %s", row.Category, row.Date.Format("2006-01-02"))
			if row.Status == StatusApproved {
				Refund(&emp.Balances, row.Source, row.Quantity)
				balancesTouched = true
				summary += fmt.Sprintf(", refunded [%s]", row.Source)
			}
			row.Status = StatusRejected
			row.UpdatedAt = now
			if reason != "" {
				row.Notes = reason
			}
			if err := s.UpdateRequest(ctx, *row); err != nil {
				return fmt.Errorf("update request %s: %w", row.ID, err)
			}
			if err := s.AppendAudit(ctx, AuditEntry{
				Action:         AuditReject,
				PerformedBy:    string(approverID),
				TargetEmployee: emp.ID,
				TargetRequest:  row.ID,
				Summary:        summary,
				Timestamp:      now,
			}); err != nil {
				return err
			}
		}

		if balancesTouched {
			return s.SaveEmployee(ctx, *emp)
		}
		return nil
	})
}

// loadBatch resolves a request id to its full batch plus the owning
// employee, enforcing the approver's visibility.
func (w *Workflow) loadBatch(ctx context.Context, s Store, id RequestID, approverID EmployeeID) ([]LeaveRequest, *Employee, error) {
	req, err := s.GetRequest(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	rows, err := s.GetBatch(ctx, req.BatchID)
	if err != nil {
		return nil, nil, err
	}
	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("%w: batch %s has no rows", ErrInvalidBatch, req.BatchID)
	}
	for _, row := range rows {
		if row.EmployeeID != rows[0].EmployeeID {
			return nil, nil, fmt.Errorf("%w: batch %s spans employees", ErrInvalidBatch, req.BatchID)
		}
	}

	emp, err := s.GetEmployee(ctx, req.EmployeeID)
	if err != nil {
		return nil, nil, err
	}
	approver, err := s.GetEmployee(ctx, approverID)
	if err != nil {
		return nil, nil, err
	}
	if !CanApprove(approver, emp) {
		return nil, nil, fmt.Errorf("%w: %s (%s) may not act on requests of %s (%s)",
			ErrPolicyViolation, approver.ID, approver.Tier, emp.ID, emp.Tier)
	}
	return rows, emp, nil
}

// =============================================================================
// VISIBILITY
// =============================================================================

// approvalScope maps an approver tier to the tiers it may act on. Department
// managers are additionally restricted to their own department; every other
// approving tier spans departments.
var approvalScope = map[Tier][]Tier{
	TierDeptManager: {TierStaff},
	TierManager:     {TierStaff, TierDeptManager},
	TierDirector:    {TierManager},
	TierIT:          {TierStaff, TierDeptManager, TierManager, TierDirector, TierIT},
}

// CanApprove reports whether the approver may act on the subject's requests
// under the visibility policy. Nobody approves their own batch.
func CanApprove(approver, subject *Employee) bool {
	if approver.ID == subject.ID {
		return false
	}
	scope, ok := approvalScope[approver.Tier]
	if !ok {
		return false
	}
	inScope := false
	for _, t := range scope {
		if subject.Tier == t {
			inScope = true
			break
		}
	}
	if !inScope {
		return false
	}
	if approver.Tier == TierDeptManager && approver.Department != subject.Department {
		return false
	}
	return true
}

// Pending returns the Pending rows the approver is allowed to act on,
// oldest first.
func (w *Workflow) Pending(ctx context.Context, approverID EmployeeID) ([]LeaveRequest, error) {
	approver, err := w.Store.GetEmployee(ctx, approverID)
	if err != nil {
		return nil, err
	}
	rows, err := w.Store.ListPendingRequests(ctx)
	if err != nil {
		return nil, err
	}

	// One lookup per distinct employee in the pending set.
	subjects := make(map[EmployeeID]*Employee)
	visible := rows[:0]
	for _, row := range rows {
		subject, ok := subjects[row.EmployeeID]
		if !ok {
			subject, err = w.Store.GetEmployee(ctx, row.EmployeeID)
			if err != nil {
				return nil, err
			}
			subjects[row.EmployeeID] = subject
		}
		if CanApprove(approver, subject) {
			visible = append(visible, row)
		}
	}
	return visible, nil
}

// =============================================================================
// READ APIS
// =============================================================================

// BalanceReport is the read-side view of one employee's pools plus the
// policy entitlements for their seniority.
type BalanceReport struct {
	EmployeeID   EmployeeID
	Name         string
	YearsWorked  int
	Pools        map[Pool]decimal.Decimal
	Entitlements map[Category]decimal.Decimal
}

// Balances returns the live pool values and policy entitlements for one
// employee.
func (w *Workflow) Balances(ctx context.Context, id EmployeeID) (*BalanceReport, error) {
	emp, err := w.Store.GetEmployee(ctx, id)
	if err != nil {
		return nil, err
	}
	ents := make(map[Category]decimal.Decimal)
	for _, c := range AllCategories {
		if c.Credits() {
			continue
		}
		ents[c] = Entitlement(c, emp.YearsWorked)
	}
	return &BalanceReport{
		EmployeeID:   emp.ID,
		Name:         emp.Name,
		YearsWorked:  emp.YearsWorked,
		Pools:        emp.Balances.Map(),
		Entitlements: ents,
	}, nil
}

// Requests returns every request row for one employee, newest first per the
// store's ordering.
func (w *Workflow) Requests(ctx context.Context, id EmployeeID) ([]LeaveRequest, error) {
	return w.Store.ListRequestsByEmployee(ctx, id)
}

// CalendarEvent is one entry in the merged year calendar: a public holiday
// or an approved leave day.
type CalendarEvent struct {
	Date     time.Time
	Title    string
	Employee EmployeeID // empty for holidays
}

// CalendarEvents merges the projected holiday calendar with every approved
// leave day falling in the given year.
func (w *Workflow) CalendarEvents(ctx context.Context, year int) ([]CalendarEvent, error) {
	holidays, err := w.Store.ListHolidays(ctx)
	if err != nil {
		return nil, err
	}
	var events []CalendarEvent
	for day, name := range HolidaysForYear(holidays, year) {
		events = append(events, CalendarEvent{Date: day, Title: name})
	}

	employees, err := w.Store.ListEmployees(ctx)
	if err != nil {
		return nil, err
	}
	for _, emp := range employees {
		rows, err := w.Store.ListRequestsByEmployee(ctx, emp.ID)
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			if row.Status != StatusApproved || row.Date.Year() != year {
				continue
			}
			events = append(events, CalendarEvent{
				Date:     row.Date,
				Title:    fmt.Sprintf("%s: %s", emp.Name, row.Category),
				Employee: emp.ID,
			})
		}
	}

	sort.Slice(events, func(i, j int) bool { return events[i].Date.Before(events[j].Date) })
	return events, nil
}
