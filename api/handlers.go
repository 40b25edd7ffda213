/*
handlers.go - HTTP API handlers for the leave engine

PURPOSE:
  Exposes the leave engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Employees:
    GET    /api/employees                 List all employees
    POST   /api/employees                 Create/replace employee
    GET    /api/employees/{id}            Get employee details
    GET    /api/employees/{id}/balances   Get balance summary
    GET    /api/employees/{id}/requests   Request history

  Requests:
    POST   /api/requests                  Submit leave (date range -> batch)
    GET    /api/requests/pending          Pending rows visible to approver
    POST   /api/requests/{id}/approve     Approve whole batch
    POST   /api/requests/{id}/reject      Reject whole batch

  Calendar:
    GET    /api/holidays?year=            Projected holiday calendar
    POST   /api/holidays                  Add holiday
    DELETE /api/holidays/{id}             Remove holiday
    GET    /api/calendar?year=            Holidays + approved leave

  Admin:
    GET    /api/audit?limit=              Recent audit entries
    POST   /api/admin/run-update          Manual accrual trigger

ERROR HANDLING:
  Domain errors map to HTTP status via their sentinel chain:
  - ErrNotFound             404
  - ErrInsufficientBalance  409
  - ErrPolicyViolation      409
  - ErrInvalidBatch         500 (data corruption)
  - anything else           500

SECURITY NOTE:
  Currently NO authentication. Approver identity arrives in the request
  body and is trusted.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - leave/workflow.go: The domain logic behind every mutating endpoint
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store    leave.TxStore
	Workflow *leave.Workflow
	Accrual  *leave.AccrualEngine
}

// NewHandler creates a handler wired to the given store.
func NewHandler(store leave.TxStore) *Handler {
	return &Handler{
		Store:    store,
		Workflow: leave.NewWorkflow(store),
		Accrual:  leave.NewAccrualEngine(store),
	}
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

// ListEmployees returns all employees.
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Store.ListEmployees(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list employees", err)
		return
	}

	dtos := make([]EmployeeDTO, len(employees))
	for i, e := range employees {
		dtos[i] = toEmployeeDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetEmployee returns a single employee.
func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	id := leave.EmployeeID(chi.URLParam(r, "id"))

	emp, err := h.Store.GetEmployee(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get employee", err)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(*emp))
}

// CreateEmployee creates or replaces an employee.
func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req CreateEmployeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "id and name are required", nil)
		return
	}

	emp := leave.Employee{
		ID:           leave.EmployeeID(req.ID),
		Name:         req.Name,
		Department:   req.Department,
		Tier:         leave.Tier(req.Tier),
		YearsWorked:  req.YearsWorked,
		RestDaysOdd:  intsToWeekdays(req.RestDaysOdd),
		RestDaysEven: intsToWeekdays(req.RestDaysEven),
		CreatedAt:    time.Now().UTC(),
	}
	if emp.Tier == "" {
		emp.Tier = leave.TierStaff
	}
	for pool, raw := range req.Balances {
		v, err := decimal.NewFromString(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid balance for %s", pool), err)
			return
		}
		emp.Balances.Set(leave.Pool(pool), v)
	}
	if !emp.Balances.NonNegative() {
		writeError(w, http.StatusBadRequest, "Balances must be non-negative", nil)
		return
	}

	if err := h.Store.SaveEmployee(r.Context(), emp); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save employee", err)
		return
	}
	writeJSON(w, http.StatusCreated, toEmployeeDTO(emp))
}

// GetBalances returns the balance summary plus policy entitlements.
func (h *Handler) GetBalances(w http.ResponseWriter, r *http.Request) {
	id := leave.EmployeeID(chi.URLParam(r, "id"))

	report, err := h.Workflow.Balances(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get balances", err)
		return
	}

	entitlements := make(map[string]string, len(report.Entitlements))
	for c, v := range report.Entitlements {
		entitlements[string(c)] = v.String()
	}
	balances := make(map[string]string, len(report.Pools))
	for p, v := range report.Pools {
		balances[string(p)] = v.String()
	}

	writeJSON(w, http.StatusOK, BalanceDTO{
		EmployeeID:   string(report.EmployeeID),
		Name:         report.Name,
		YearsWorked:  report.YearsWorked,
		Balances:     balances,
		Entitlements: entitlements,
	})
}

// GetEmployeeRequests returns the request history for one employee.
func (h *Handler) GetEmployeeRequests(w http.ResponseWriter, r *http.Request) {
	id := leave.EmployeeID(chi.URLParam(r, "id"))

	rows, err := h.Workflow.Requests(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to list requests", err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTOs(rows))
}

// =============================================================================
// REQUEST HANDLERS
// =============================================================================

// SubmitRequest submits a leave date range as one batch of per-day rows.
func (h *Handler) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	category, err := leave.ParseCategory(req.Category)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Unknown leave category", err)
		return
	}

	start, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start_date", err)
		return
	}
	end := start
	if req.EndDate != "" {
		end, err = time.Parse("2006-01-02", req.EndDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid end_date", err)
			return
		}
	}

	var quantity decimal.Decimal
	if req.Quantity != "" {
		quantity, err = decimal.NewFromString(req.Quantity)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid quantity", err)
			return
		}
	}

	rows, err := h.Workflow.Submit(r.Context(), leave.Submission{
		EmployeeID:    leave.EmployeeID(req.EmployeeID),
		Category:      category,
		Start:         start,
		End:           end,
		Quantity:      quantity,
		Notes:         req.Notes,
		AttachmentRef: req.AttachmentRef,
	})
	if err != nil {
		writeDomainError(w, "Failed to submit request", err)
		return
	}
	writeJSON(w, http.StatusCreated, toRequestDTOs(rows))
}

// ListPendingRequests returns the pending rows visible to the approver.
func (h *Handler) ListPendingRequests(w http.ResponseWriter, r *http.Request) {
	approver := leave.EmployeeID(r.URL.Query().Get("approver"))
	if approver == "" {
		writeError(w, http.StatusBadRequest, "approver query parameter is required", nil)
		return
	}

	rows, err := h.Workflow.Pending(r.Context(), approver)
	if err != nil {
		writeDomainError(w, "Failed to list pending requests", err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTOs(rows))
}

// ApproveRequest approves the whole batch containing the given request.
func (h *Handler) ApproveRequest(w http.ResponseWriter, r *http.Request) {
	id := leave.RequestID(chi.URLParam(r, "id"))

	var req DecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ApproverID == "" {
		writeError(w, http.StatusBadRequest, "approver_id is required", nil)
		return
	}

	if err := h.Workflow.Approve(r.Context(), id, leave.EmployeeID(req.ApproverID)); err != nil {
		writeDomainError(w, "Failed to approve request", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(leave.StatusApproved)})
}

// RejectRequest rejects the whole batch containing the given request,
// refunding any rows that were already approved.
func (h *Handler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	id := leave.RequestID(chi.URLParam(r, "id"))

	var req DecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ApproverID == "" {
		writeError(w, http.StatusBadRequest, "approver_id is required", nil)
		return
	}

	if err := h.Workflow.Reject(r.Context(), id, leave.EmployeeID(req.ApproverID), req.Reason); err != nil {
		writeDomainError(w, "Failed to reject request", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(leave.StatusRejected)})
}

// =============================================================================
// HOLIDAY AND CALENDAR HANDLERS
// =============================================================================

// ListHolidays returns the calendar projected onto a year.
// Without a year parameter the raw entries are returned.
func (h *Handler) ListHolidays(w http.ResponseWriter, r *http.Request) {
	holidays, err := h.Store.ListHolidays(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list holidays", err)
		return
	}

	yearParam := r.URL.Query().Get("year")
	if yearParam == "" {
		dtos := make([]HolidayDTO, len(holidays))
		for i, hol := range holidays {
			dtos[i] = HolidayDTO{
				ID:        hol.ID,
				Date:      hol.Date.Format("2006-01-02"),
				Name:      hol.Name,
				Recurring: hol.Recurring,
			}
		}
		writeJSON(w, http.StatusOK, dtos)
		return
	}

	year, err := strconv.Atoi(yearParam)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid year", err)
		return
	}
	projected := leave.HolidaysForYear(holidays, year)
	out := make(map[string]string, len(projected))
	for day, name := range projected {
		out[day.Format("2006-01-02")] = name
	}
	writeJSON(w, http.StatusOK, out)
}

// CreateHoliday adds a calendar entry and audits the change.
func (h *Handler) CreateHoliday(w http.ResponseWriter, r *http.Request) {
	var req CreateHolidayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required", nil)
		return
	}

	hol := leave.Holiday{
		ID:        fmt.Sprintf("hol-%d", time.Now().UnixNano()),
		Date:      leave.Day(date),
		Name:      req.Name,
		Recurring: req.Recurring,
	}

	err = h.Store.WithTx(r.Context(), func(s leave.Store) error {
		if err := s.AddHoliday(r.Context(), hol); err != nil {
			return err
		}
		return s.AppendAudit(r.Context(), leave.AuditEntry{
			Action:      leave.AuditAddHoliday,
			PerformedBy: leave.SystemActor,
			Summary:     fmt.Sprintf("%s on %s", hol.Name, hol.Date.Format("2006-01-02")),
			Timestamp:   time.Now().UTC(),
		})
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to add holiday", err)
		return
	}
	writeJSON(w, http.StatusCreated, HolidayDTO{
		ID:        hol.ID,
		Date:      hol.Date.Format("2006-01-02"),
		Name:      hol.Name,
		Recurring: hol.Recurring,
	})
}

// DeleteHoliday removes a calendar entry.
func (h *Handler) DeleteHoliday(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	err := h.Store.WithTx(r.Context(), func(s leave.Store) error {
		if err := s.RemoveHoliday(r.Context(), id); err != nil {
			return err
		}
		return s.AppendAudit(r.Context(), leave.AuditEntry{
			Action:      leave.AuditRemoveHoliday,
			PerformedBy: leave.SystemActor,
			Summary:     fmt.Sprintf("holiday %s removed", id),
			Timestamp:   time.Now().UTC(),
		})
	})
	if err != nil {
		writeDomainError(w, "Failed to remove holiday", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetCalendar returns the merged year calendar of holidays and approved
// leave days.
func (h *Handler) GetCalendar(w http.ResponseWriter, r *http.Request) {
	year := time.Now().Year()
	if yearParam := r.URL.Query().Get("year"); yearParam != "" {
		var err error
		year, err = strconv.Atoi(yearParam)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid year", err)
			return
		}
	}

	events, err := h.Workflow.CalendarEvents(r.Context(), year)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to build calendar", err)
		return
	}

	dtos := make([]CalendarEventDTO, len(events))
	for i, e := range events {
		dtos[i] = CalendarEventDTO{
			Date:     e.Date.Format("2006-01-02"),
			Title:    e.Title,
			Employee: string(e.Employee),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// GetAudit returns recent audit entries, newest first.
func (h *Handler) GetAudit(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if limitParam := r.URL.Query().Get("limit"); limitParam != "" {
		var err error
		limit, err = strconv.Atoi(limitParam)
		if err != nil || limit < 1 {
			writeError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
	}

	entries, err := h.Store.RecentAudit(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read audit log", err)
		return
	}

	dtos := make([]AuditEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = AuditEntryDTO{
			ID:             e.ID,
			Action:         string(e.Action),
			PerformedBy:    e.PerformedBy,
			TargetEmployee: string(e.TargetEmployee),
			TargetRequest:  string(e.TargetRequest),
			Summary:        e.Summary,
			Diff:           e.Diff,
			Timestamp:      e.Timestamp.Format(time.RFC3339),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// RunUpdate triggers the accrual engine manually. The engine dedupes by
// month, so a redundant call is a successful no-op.
func (h *Handler) RunUpdate(w http.ResponseWriter, r *http.Request) {
	var req RunUpdateRequest
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req) // Empty body is fine
	}

	today := time.Now().UTC()
	if req.Today != "" {
		var err error
		today, err = time.Parse("2006-01-02", req.Today)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid today", err)
			return
		}
	}

	if err := h.Accrual.RunPeriodicUpdate(r.Context(), today); err != nil {
		writeError(w, http.StatusInternalServerError, "Accrual run failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"as_of":  leave.Day(today).Format("2006-01-02"),
	})
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

// writeDomainError maps a domain error to its HTTP status.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	status := http.StatusInternalServerError
	code := ""
	switch {
	case errors.Is(err, leave.ErrNotFound):
		status = http.StatusNotFound
		code = "not_found"
	case errors.Is(err, leave.ErrInsufficientBalance):
		status = http.StatusConflict
		code = "insufficient_balance"
	case errors.Is(err, leave.ErrPolicyViolation):
		status = http.StatusConflict
		code = "policy_violation"
	case errors.Is(err, leave.ErrInvalidBatch):
		code = "invalid_batch"
	}

	resp := ErrorResponse{Error: message, Code: code}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
