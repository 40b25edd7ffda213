/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

DECIMAL FIELDS:
  Balances and quantities are serialized as strings ("1.58334"), not JSON
  numbers, so clients see the same precision the engine computes with.

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - leave/types.go: The domain model these project
*/
package api

import (
	"time"

	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// EmployeeDTO represents an employee in API responses.
type EmployeeDTO struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Department   string            `json:"department"`
	Tier         string            `json:"tier"`
	YearsWorked  int               `json:"years_worked"`
	RestDaysOdd  []int             `json:"rest_days_odd"`
	RestDaysEven []int             `json:"rest_days_even"`
	Balances     map[string]string `json:"balances"`
	CreatedAt    string            `json:"created_at,omitempty"`
}

// CreateEmployeeRequest is the request to create or replace an employee.
type CreateEmployeeRequest struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Department   string            `json:"department"`
	Tier         string            `json:"tier"`
	YearsWorked  int               `json:"years_worked"`
	RestDaysOdd  []int             `json:"rest_days_odd"`
	RestDaysEven []int             `json:"rest_days_even"`
	Balances     map[string]string `json:"balances,omitempty"`
}

// SubmitRequestDTO is the request body for a leave submission.
type SubmitRequestDTO struct {
	EmployeeID    string `json:"employee_id"`
	Category      string `json:"category"`
	StartDate     string `json:"start_date"` // ISO date
	EndDate       string `json:"end_date"`   // ISO date, defaults to start
	Quantity      string `json:"quantity,omitempty"`
	Notes         string `json:"notes,omitempty"`
	AttachmentRef string `json:"attachment_ref,omitempty"`
}

// RequestDTO represents one per-day request row.
type RequestDTO struct {
	ID            string `json:"id"`
	EmployeeID    string `json:"employee_id"`
	BatchID       string `json:"batch_id"`
	Category      string `json:"category"`
	Date          string `json:"date"`
	Quantity      string `json:"quantity"`
	Status        string `json:"status"`
	Notes         string `json:"notes,omitempty"`
	Source        string `json:"leave_source,omitempty"`
	AttachmentRef string `json:"attachment_ref,omitempty"`
	CreatedAt     string `json:"created_at,omitempty"`
	UpdatedAt     string `json:"updated_at,omitempty"`
}

// DecisionRequest is the body for approve/reject calls.
type DecisionRequest struct {
	ApproverID string `json:"approver_id"`
	Reason     string `json:"reason,omitempty"`
}

// BalanceDTO is the balance summary for one employee.
type BalanceDTO struct {
	EmployeeID   string            `json:"employee_id"`
	Name         string            `json:"name"`
	YearsWorked  int               `json:"years_worked"`
	Balances     map[string]string `json:"balances"`
	Entitlements map[string]string `json:"entitlements"`
}

// HolidayDTO represents a calendar entry.
type HolidayDTO struct {
	ID        string `json:"id"`
	Date      string `json:"date"`
	Name      string `json:"name"`
	Recurring bool   `json:"recurring"`
}

// CreateHolidayRequest is the request to add a holiday.
type CreateHolidayRequest struct {
	Date      string `json:"date"` // ISO date
	Name      string `json:"name"`
	Recurring bool   `json:"recurring"`
}

// AuditEntryDTO represents one audit trail entry.
type AuditEntryDTO struct {
	ID             int64          `json:"id"`
	Action         string         `json:"action"`
	PerformedBy    string         `json:"performed_by"`
	TargetEmployee string         `json:"target_employee,omitempty"`
	TargetRequest  string         `json:"target_request,omitempty"`
	Summary        string         `json:"summary"`
	Diff           map[string]any `json:"diff,omitempty"`
	Timestamp      string         `json:"timestamp"`
}

// CalendarEventDTO is one merged calendar entry (holiday or approved leave).
type CalendarEventDTO struct {
	Date     string `json:"date"`
	Title    string `json:"title"`
	Employee string `json:"employee_id,omitempty"`
}

// RunUpdateRequest is the body for the manual accrual trigger. Today is
// optional; empty means the current date.
type RunUpdateRequest struct {
	Today string `json:"today,omitempty"` // ISO date
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
		ID:           string(e.ID),
		Name:         e.Name,
		Department:   e.Department,
		Tier:         string(e.Tier),
		YearsWorked:  e.YearsWorked,
		RestDaysOdd:  weekdaysToInts(e.RestDaysOdd),
		RestDaysEven: weekdaysToInts(e.RestDaysEven),
		Balances:     balancesToStrings(e.Balances),
		CreatedAt:    e.CreatedAt.Format(time.RFC3339),
	}
}

func toRequestDTO(r leave.LeaveRequest) RequestDTO {
	return RequestDTO{
		ID:            string(r.ID),
		EmployeeID:    string(r.EmployeeID),
		BatchID:       string(r.BatchID),
		Category:      string(r.Category),
		Date:          r.Date.Format("2006-01-02"),
		Quantity:      r.Quantity.String(),
		Status:        string(r.Status),
		Notes:         r.Notes,
		Source:        r.Source.String(),
		AttachmentRef: r.AttachmentRef,
		CreatedAt:     r.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     r.UpdatedAt.Format(time.RFC3339),
	}
}

func toRequestDTOs(rows []leave.LeaveRequest) []RequestDTO {
	dtos := make([]RequestDTO, len(rows))
	for i, r := range rows {
		dtos[i] = toRequestDTO(r)
	}
	return dtos
}

func balancesToStrings(b leave.Balances) map[string]string {
	out := make(map[string]string, len(leave.AllPools))
	for p, v := range b.Map() {
		out[string(p)] = v.String()
	}
	return out
}

func weekdaysToInts(days []time.Weekday) []int {
	out := make([]int, 0, len(days))
	for _, d := range days {
		out = append(out, int(d))
	}
	return out
}

func intsToWeekdays(ints []int) []time.Weekday {
	out := make([]time.Weekday, 0, len(ints))
	for _, i := range ints {
		out = append(out, time.Weekday(i))
	}
	return out
}
