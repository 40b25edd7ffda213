/*
Package sqlite provides the SQLite-backed implementation of leave.TxStore.

PURPOSE:
  Implements every persistence interface the engine needs (employees,
  requests, accrual log, snapshots, holidays, audit) on a single SQLite
  file. In production the same patterns apply to PostgreSQL - only minor
  SQL dialect differences.

KEY TABLES:
  employees:         Identity, tier, rest-day schedule, one column per pool
  leave_requests:    Per-day request rows, batch_id ties a submission
  accrual_log:       Single-row idempotence marker for the periodic job
  balance_snapshots: Pool values captured before resets/expiries
  holidays:          Calendar entries (recurring or year-specific)
  audit_log:         Append-only action trail

DECIMAL STORAGE:
  Pool balances and request quantities are stored as decimal strings, not
  REAL, so deduct/refund round-trips survive persistence exactly.

TRANSACTIONS:
  WithTx hands the callback a view bound to one *sql.Tx; reads inside the
  callback observe earlier writes from the same transaction. Every
  balance-mutating engine operation runs through WithTx.

CONCURRENCY:
  sync.RWMutex on top of WAL mode. Single writer at a time; readers
  don't block each other.

USAGE:
  store, err := sqlite.New("./data/leave.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - leave/store.go: Interface definitions
  - leave/workflow.go, leave/accrual.go: The transactional callers
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/leave-engine/leave"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx, so every query helper can
// run inside or outside a transaction.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements leave.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a SQLite store at the given path and migrates the schema.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Employees with one balance column per pool (decimal strings)
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		department TEXT NOT NULL DEFAULT '',
		tier TEXT NOT NULL DEFAULT 'staff',
		years_worked INTEGER NOT NULL DEFAULT 0,
		rest_days_odd TEXT NOT NULL DEFAULT '[]',
		rest_days_even TEXT NOT NULL DEFAULT '[]',
		annual TEXT NOT NULL DEFAULT '0',
		sick TEXT NOT NULL DEFAULT '0',
		cultivation TEXT NOT NULL DEFAULT '0',
		compassionate TEXT NOT NULL DEFAULT '0',
		hospital TEXT NOT NULL DEFAULT '0',
		replacement TEXT NOT NULL DEFAULT '0',
		carry_forward TEXT NOT NULL DEFAULT '0',
		maternity TEXT NOT NULL DEFAULT '0',
		created_at TEXT NOT NULL
	);

	-- Leave requests: one row per calendar day, batch_id ties a submission
	CREATE TABLE IF NOT EXISTS leave_requests (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		batch_id TEXT NOT NULL,
		category TEXT NOT NULL,
		date TEXT NOT NULL,
		quantity TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'Pending',
		notes TEXT,
		source TEXT NOT NULL DEFAULT '',
		attachment_ref TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_requests_employee
		ON leave_requests(employee_id, date);
	CREATE INDEX IF NOT EXISTS idx_requests_batch
		ON leave_requests(batch_id);
	CREATE INDEX IF NOT EXISTS idx_requests_status
		ON leave_requests(status);

	-- Accrual log: enforced single row
	CREATE TABLE IF NOT EXISTS accrual_log (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		last_updated TEXT NOT NULL,
		march_processed_year INTEGER NOT NULL DEFAULT 0
	);

	-- Snapshots taken before resets and expiries
	CREATE TABLE IF NOT EXISTS balance_snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		employee_id TEXT NOT NULL,
		taken_at TEXT NOT NULL,
		reason TEXT NOT NULL,
		balances_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_snapshots_employee
		ON balance_snapshots(employee_id, taken_at DESC);

	-- Holidays (recurring entries reapply every year)
	CREATE TABLE IF NOT EXISTS holidays (
		id TEXT PRIMARY KEY,
		date TEXT NOT NULL,
		name TEXT NOT NULL,
		recurring BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_holidays_date
		ON holidays(date);

	-- Append-only audit trail
	CREATE TABLE IF NOT EXISTS audit_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		action TEXT NOT NULL,
		performed_by TEXT NOT NULL,
		target_employee TEXT,
		target_request TEXT,
		summary TEXT NOT NULL,
		diff_json TEXT,
		timestamp TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_audit_timestamp
		ON audit_log(timestamp DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTIONAL STORE (leave.TxStore interface)
// =============================================================================

// WithTx executes fn against a view bound to one database transaction.
// Reads inside fn observe the transaction's own writes.
func (s *Store) WithTx(ctx context.Context, fn func(store leave.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx, parent: s}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// txStore routes every call to the parent's query helpers bound to the
// open transaction. No mutex here: WithTx already holds the write lock.
type txStore struct {
	tx     *sql.Tx
	parent *Store
}

func (ts *txStore) SaveEmployee(ctx context.Context, e leave.Employee) error {
	return ts.parent.saveEmployee(ctx, ts.tx, e)
}

func (ts *txStore) GetEmployee(ctx context.Context, id leave.EmployeeID) (*leave.Employee, error) {
	return ts.parent.getEmployee(ctx, ts.tx, id)
}

func (ts *txStore) ListEmployees(ctx context.Context) ([]leave.Employee, error) {
	return ts.parent.listEmployees(ctx, ts.tx)
}

func (ts *txStore) CreateRequests(ctx context.Context, rows []leave.LeaveRequest) error {
	return ts.parent.createRequests(ctx, ts.tx, rows)
}

func (ts *txStore) GetRequest(ctx context.Context, id leave.RequestID) (*leave.LeaveRequest, error) {
	return ts.parent.getRequest(ctx, ts.tx, id)
}

func (ts *txStore) GetBatch(ctx context.Context, batch leave.BatchID) ([]leave.LeaveRequest, error) {
	return ts.parent.getBatch(ctx, ts.tx, batch)
}

func (ts *txStore) UpdateRequest(ctx context.Context, row leave.LeaveRequest) error {
	return ts.parent.updateRequest(ctx, ts.tx, row)
}

func (ts *txStore) ListRequestsByEmployee(ctx context.Context, id leave.EmployeeID) ([]leave.LeaveRequest, error) {
	return ts.parent.listRequestsByEmployee(ctx, ts.tx, id)
}

func (ts *txStore) ListPendingRequests(ctx context.Context) ([]leave.LeaveRequest, error) {
	return ts.parent.listPendingRequests(ctx, ts.tx)
}

func (ts *txStore) GetAccrualLog(ctx context.Context) (*leave.AccrualLog, error) {
	return ts.parent.getAccrualLog(ctx, ts.tx)
}

func (ts *txStore) SaveAccrualLog(ctx context.Context, log leave.AccrualLog) error {
	return ts.parent.saveAccrualLog(ctx, ts.tx, log)
}

func (ts *txStore) SaveSnapshot(ctx context.Context, snap leave.BalanceSnapshot) error {
	return ts.parent.saveSnapshot(ctx, ts.tx, snap)
}

func (ts *txStore) ListSnapshots(ctx context.Context, id leave.EmployeeID) ([]leave.BalanceSnapshot, error) {
	return ts.parent.listSnapshots(ctx, ts.tx, id)
}

func (ts *txStore) AddHoliday(ctx context.Context, h leave.Holiday) error {
	return ts.parent.addHoliday(ctx, ts.tx, h)
}

func (ts *txStore) RemoveHoliday(ctx context.Context, id string) error {
	return ts.parent.removeHoliday(ctx, ts.tx, id)
}

func (ts *txStore) ListHolidays(ctx context.Context) ([]leave.Holiday, error) {
	return ts.parent.listHolidays(ctx, ts.tx)
}

func (ts *txStore) AppendAudit(ctx context.Context, entry leave.AuditEntry) error {
	return ts.parent.appendAudit(ctx, ts.tx, entry)
}

func (ts *txStore) RecentAudit(ctx context.Context, limit int) ([]leave.AuditEntry, error) {
	return ts.parent.recentAudit(ctx, ts.tx, limit)
}

// =============================================================================
// EMPLOYEE STORE
// =============================================================================

// SaveEmployee inserts or updates an employee and all pool balances.
func (s *Store) SaveEmployee(ctx context.Context, e leave.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveEmployee(ctx, s.db, e)
}

func (s *Store) saveEmployee(ctx context.Context, db dbtx, e leave.Employee) error {
	oddJSON, _ := json.Marshal(weekdayInts(e.RestDaysOdd))
	evenJSON, _ := json.Marshal(weekdayInts(e.RestDaysEven))

	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	query := `
		INSERT INTO employees
		(id, name, department, tier, years_worked, rest_days_odd, rest_days_even,
		 annual, sick, cultivation, compassionate, hospital, replacement, carry_forward, maternity,
		 created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			department = excluded.department,
			tier = excluded.tier,
			years_worked = excluded.years_worked,
			rest_days_odd = excluded.rest_days_odd,
			rest_days_even = excluded.rest_days_even,
			annual = excluded.annual,
			sick = excluded.sick,
			cultivation = excluded.cultivation,
			compassionate = excluded.compassionate,
			hospital = excluded.hospital,
			replacement = excluded.replacement,
			carry_forward = excluded.carry_forward,
			maternity = excluded.maternity
	`

	b := e.Balances
	_, err := db.ExecContext(ctx, query,
		string(e.ID), e.Name, e.Department, string(e.Tier), e.YearsWorked,
		string(oddJSON), string(evenJSON),
		b.Annual.String(), b.Sick.String(), b.Cultivation.String(),
		b.Compassionate.String(), b.Hospital.String(), b.Replacement.String(),
		b.CarryForward.String(), b.Maternity.String(),
		createdAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save employee: %w", err)
	}
	return nil
}

const employeeColumns = `id, name, department, tier, years_worked, rest_days_odd, rest_days_even,
	annual, sick, cultivation, compassionate, hospital, replacement, carry_forward, maternity, created_at`

// GetEmployee retrieves an employee by ID.
func (s *Store) GetEmployee(ctx context.Context, id leave.EmployeeID) (*leave.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getEmployee(ctx, s.db, id)
}

func (s *Store) getEmployee(ctx context.Context, db dbtx, id leave.EmployeeID) (*leave.Employee, error) {
	row := db.QueryRowContext(ctx,
		"SELECT "+employeeColumns+" FROM employees WHERE id = ?", string(id))

	emp, err := scanEmployee(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: employee %s", leave.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return emp, nil
}

// ListEmployees returns all employees ordered by name.
func (s *Store) ListEmployees(ctx context.Context) ([]leave.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listEmployees(ctx, s.db)
}

func (s *Store) listEmployees(ctx context.Context, db dbtx) ([]leave.Employee, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT "+employeeColumns+" FROM employees ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var employees []leave.Employee
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		employees = append(employees, *emp)
	}
	return employees, rows.Err()
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanEmployee(sc scanner) (*leave.Employee, error) {
	var (
		emp                leave.Employee
		id, tier           string
		oddJSON, evenJSON  string
		pools              [8]string
		createdAt          string
	)

	err := sc.Scan(
		&id, &emp.Name, &emp.Department, &tier, &emp.YearsWorked,
		&oddJSON, &evenJSON,
		&pools[0], &pools[1], &pools[2], &pools[3],
		&pools[4], &pools[5], &pools[6], &pools[7],
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	emp.ID = leave.EmployeeID(id)
	emp.Tier = leave.Tier(tier)
	emp.RestDaysOdd = parseWeekdays(oddJSON)
	emp.RestDaysEven = parseWeekdays(evenJSON)
	emp.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)

	names := []struct {
		dst *decimal.Decimal
		raw string
	}{
		{&emp.Balances.Annual, pools[0]},
		{&emp.Balances.Sick, pools[1]},
		{&emp.Balances.Cultivation, pools[2]},
		{&emp.Balances.Compassionate, pools[3]},
		{&emp.Balances.Hospital, pools[4]},
		{&emp.Balances.Replacement, pools[5]},
		{&emp.Balances.CarryForward, pools[6]},
		{&emp.Balances.Maternity, pools[7]},
	}
	for _, n := range names {
		v, err := decimal.NewFromString(n.raw)
		if err != nil {
			return nil, fmt.Errorf("corrupt balance value %q for employee %s: %w", n.raw, id, err)
		}
		*n.dst = v
	}

	return &emp, nil
}

func weekdayInts(days []time.Weekday) []int {
	out := make([]int, 0, len(days))
	for _, d := range days {
		out = append(out, int(d))
	}
	return out
}

func parseWeekdays(raw string) []time.Weekday {
	var ints []int
	if err := json.Unmarshal([]byte(raw), &ints); err != nil {
		return nil
	}
	days := make([]time.Weekday, 0, len(ints))
	for _, i := range ints {
		days = append(days, time.Weekday(i))
	}
	return days
}

// =============================================================================
// REQUEST STORE
// =============================================================================

// CreateRequests inserts every row of one submission.
func (s *Store) CreateRequests(ctx context.Context, rows []leave.LeaveRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createRequests(ctx, s.db, rows)
}

func (s *Store) createRequests(ctx context.Context, db dbtx, rows []leave.LeaveRequest) error {
	query := `
		INSERT INTO leave_requests
		(id, employee_id, batch_id, category, date, quantity, status, notes, source,
		 attachment_ref, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	for _, r := range rows {
		_, err := db.ExecContext(ctx, query,
			string(r.ID), string(r.EmployeeID), string(r.BatchID), string(r.Category),
			r.Date.Format(time.RFC3339), r.Quantity.String(), string(r.Status),
			r.Notes, r.Source.String(), r.AttachmentRef,
			r.CreatedAt.Format(time.RFC3339), r.UpdatedAt.Format(time.RFC3339),
		)
		if err != nil {
			return fmt.Errorf("failed to insert request %s: %w", r.ID, err)
		}
	}
	return nil
}

const requestColumns = `id, employee_id, batch_id, category, date, quantity, status, notes, source,
	attachment_ref, created_at, updated_at`

// GetRequest retrieves one request row by ID.
func (s *Store) GetRequest(ctx context.Context, id leave.RequestID) (*leave.LeaveRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getRequest(ctx, s.db, id)
}

func (s *Store) getRequest(ctx context.Context, db dbtx, id leave.RequestID) (*leave.LeaveRequest, error) {
	row := db.QueryRowContext(ctx,
		"SELECT "+requestColumns+" FROM leave_requests WHERE id = ?", string(id))

	req, err := scanRequest(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: request %s", leave.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return req, nil
}

// GetBatch returns all rows sharing a batch id, oldest date first.
func (s *Store) GetBatch(ctx context.Context, batch leave.BatchID) ([]leave.LeaveRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getBatch(ctx, s.db, batch)
}

func (s *Store) getBatch(ctx context.Context, db dbtx, batch leave.BatchID) ([]leave.LeaveRequest, error) {
	return s.queryRequests(ctx, db,
		"SELECT "+requestColumns+" FROM leave_requests WHERE batch_id = ? ORDER BY date ASC",
		string(batch))
}

// UpdateRequest persists a status/source transition.
func (s *Store) UpdateRequest(ctx context.Context, row leave.LeaveRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateRequest(ctx, s.db, row)
}

func (s *Store) updateRequest(ctx context.Context, db dbtx, row leave.LeaveRequest) error {
	query := `
		UPDATE leave_requests
		SET status = ?, source = ?, notes = ?, updated_at = ?
		WHERE id = ?
	`
	res, err := db.ExecContext(ctx, query,
		string(row.Status), row.Source.String(), row.Notes,
		row.UpdatedAt.Format(time.RFC3339), string(row.ID),
	)
	if err != nil {
		return fmt.Errorf("failed to update request %s: %w", row.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: request %s", leave.ErrNotFound, row.ID)
	}
	return nil
}

// ListRequestsByEmployee returns every row for one employee, newest first.
func (s *Store) ListRequestsByEmployee(ctx context.Context, id leave.EmployeeID) ([]leave.LeaveRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listRequestsByEmployee(ctx, s.db, id)
}

func (s *Store) listRequestsByEmployee(ctx context.Context, db dbtx, id leave.EmployeeID) ([]leave.LeaveRequest, error) {
	return s.queryRequests(ctx, db,
		"SELECT "+requestColumns+" FROM leave_requests WHERE employee_id = ? ORDER BY date DESC",
		string(id))
}

// ListPendingRequests returns every Pending row, oldest first.
func (s *Store) ListPendingRequests(ctx context.Context) ([]leave.LeaveRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listPendingRequests(ctx, s.db)
}

func (s *Store) listPendingRequests(ctx context.Context, db dbtx) ([]leave.LeaveRequest, error) {
	return s.queryRequests(ctx, db,
		"SELECT "+requestColumns+" FROM leave_requests WHERE status = ? ORDER BY created_at ASC, date ASC",
		string(leave.StatusPending))
}

func (s *Store) queryRequests(ctx context.Context, db dbtx, query string, args ...any) ([]leave.LeaveRequest, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query requests: %w", err)
	}
	defer rows.Close()

	var requests []leave.LeaveRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, *req)
	}
	return requests, rows.Err()
}

func scanRequest(sc scanner) (*leave.LeaveRequest, error) {
	var (
		req                           leave.LeaveRequest
		id, employeeID, batchID       string
		category, date, quantity      string
		status, sourceRaw             string
		notes, attachmentRef          sql.NullString
		createdAt, updatedAt          string
	)

	err := sc.Scan(
		&id, &employeeID, &batchID, &category, &date, &quantity,
		&status, &notes, &sourceRaw, &attachmentRef, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	req.ID = leave.RequestID(id)
	req.EmployeeID = leave.EmployeeID(employeeID)
	req.BatchID = leave.BatchID(batchID)
	req.Category = leave.Category(category)
	req.Status = leave.RequestStatus(status)
	req.Notes = notes.String
	req.AttachmentRef = attachmentRef.String
	req.Date, _ = time.Parse(time.RFC3339, date)
	req.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	req.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)

	req.Quantity, err = decimal.NewFromString(quantity)
	if err != nil {
		return nil, fmt.Errorf("corrupt quantity %q on request %s: %w", quantity, id, err)
	}
	req.Source, err = leave.ParseSource(sourceRaw)
	if err != nil {
		return nil, fmt.Errorf("corrupt source on request %s: %w", id, err)
	}

	return &req, nil
}

// =============================================================================
// ACCRUAL LOG STORE
// =============================================================================

// GetAccrualLog returns the singleton marker, or nil before the first run.
func (s *Store) GetAccrualLog(ctx context.Context) (*leave.AccrualLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getAccrualLog(ctx, s.db)
}

func (s *Store) getAccrualLog(ctx context.Context, db dbtx) (*leave.AccrualLog, error) {
	var lastUpdated string
	var marchYear int

	err := db.QueryRowContext(ctx,
		"SELECT last_updated, march_processed_year FROM accrual_log WHERE id = 1",
	).Scan(&lastUpdated, &marchYear)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	t, err := time.Parse(time.RFC3339, lastUpdated)
	if err != nil {
		return nil, fmt.Errorf("corrupt accrual log timestamp %q: %w", lastUpdated, err)
	}
	return &leave.AccrualLog{LastUpdated: t, MarchProcessedYear: marchYear}, nil
}

// SaveAccrualLog upserts the singleton marker.
func (s *Store) SaveAccrualLog(ctx context.Context, log leave.AccrualLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveAccrualLog(ctx, s.db, log)
}

func (s *Store) saveAccrualLog(ctx context.Context, db dbtx, log leave.AccrualLog) error {
	query := `
		INSERT INTO accrual_log (id, last_updated, march_processed_year)
		VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			last_updated = excluded.last_updated,
			march_processed_year = excluded.march_processed_year
	`
	_, err := db.ExecContext(ctx, query,
		log.LastUpdated.Format(time.RFC3339), log.MarchProcessedYear)
	if err != nil {
		return fmt.Errorf("failed to save accrual log: %w", err)
	}
	return nil
}

// =============================================================================
// SNAPSHOT STORE
// =============================================================================

// SaveSnapshot records pool values about to be overwritten.
func (s *Store) SaveSnapshot(ctx context.Context, snap leave.BalanceSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveSnapshot(ctx, s.db, snap)
}

func (s *Store) saveSnapshot(ctx context.Context, db dbtx, snap leave.BalanceSnapshot) error {
	balances := make(map[string]string, len(leave.AllPools))
	for p, v := range snap.Balances.Map() {
		balances[string(p)] = v.String()
	}
	balancesJSON, _ := json.Marshal(balances)

	_, err := db.ExecContext(ctx,
		"INSERT INTO balance_snapshots (employee_id, taken_at, reason, balances_json) VALUES (?, ?, ?, ?)",
		string(snap.EmployeeID), snap.TakenAt.Format(time.RFC3339), snap.Reason, string(balancesJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// ListSnapshots returns an employee's snapshots, newest first.
func (s *Store) ListSnapshots(ctx context.Context, id leave.EmployeeID) ([]leave.BalanceSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listSnapshots(ctx, s.db, id)
}

func (s *Store) listSnapshots(ctx context.Context, db dbtx, id leave.EmployeeID) ([]leave.BalanceSnapshot, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT employee_id, taken_at, reason, balances_json FROM balance_snapshots WHERE employee_id = ? ORDER BY taken_at DESC, id DESC",
		string(id))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snaps []leave.BalanceSnapshot
	for rows.Next() {
		var (
			snap         leave.BalanceSnapshot
			empID        string
			takenAt      string
			balancesJSON string
		)
		if err := rows.Scan(&empID, &takenAt, &snap.Reason, &balancesJSON); err != nil {
			return nil, err
		}
		snap.EmployeeID = leave.EmployeeID(empID)
		snap.TakenAt, _ = time.Parse(time.RFC3339, takenAt)

		var balances map[string]string
		if err := json.Unmarshal([]byte(balancesJSON), &balances); err != nil {
			return nil, fmt.Errorf("corrupt snapshot for %s: %w", empID, err)
		}
		for p, raw := range balances {
			v, err := decimal.NewFromString(raw)
			if err != nil {
				return nil, fmt.Errorf("corrupt snapshot value %q for %s: %w", raw, empID, err)
			}
			snap.Balances.Set(leave.Pool(p), v)
		}
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}

// =============================================================================
// HOLIDAY STORE
// =============================================================================

// AddHoliday inserts a calendar entry.
func (s *Store) AddHoliday(ctx context.Context, h leave.Holiday) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addHoliday(ctx, s.db, h)
}

func (s *Store) addHoliday(ctx context.Context, db dbtx, h leave.Holiday) error {
	_, err := db.ExecContext(ctx,
		"INSERT INTO holidays (id, date, name, recurring, created_at) VALUES (?, ?, ?, ?, ?)",
		h.ID, h.Date.Format(time.RFC3339), h.Name, h.Recurring,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to add holiday: %w", err)
	}
	return nil
}

// RemoveHoliday deletes a calendar entry by ID.
func (s *Store) RemoveHoliday(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeHoliday(ctx, s.db, id)
}

func (s *Store) removeHoliday(ctx context.Context, db dbtx, id string) error {
	res, err := db.ExecContext(ctx, "DELETE FROM holidays WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to remove holiday: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: holiday %s", leave.ErrNotFound, id)
	}
	return nil
}

// ListHolidays returns all calendar entries ordered by date.
func (s *Store) ListHolidays(ctx context.Context) ([]leave.Holiday, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listHolidays(ctx, s.db)
}

func (s *Store) listHolidays(ctx context.Context, db dbtx) ([]leave.Holiday, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT id, date, name, recurring FROM holidays ORDER BY date ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var holidays []leave.Holiday
	for rows.Next() {
		var h leave.Holiday
		var date string
		if err := rows.Scan(&h.ID, &date, &h.Name, &h.Recurring); err != nil {
			return nil, err
		}
		h.Date, _ = time.Parse(time.RFC3339, date)
		holidays = append(holidays, h)
	}
	return holidays, rows.Err()
}

// =============================================================================
// AUDIT LOG
// =============================================================================

// AppendAudit writes one audit entry. Append-only: no update or delete
// statements exist for audit_log.
func (s *Store) AppendAudit(ctx context.Context, entry leave.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendAudit(ctx, s.db, entry)
}

func (s *Store) appendAudit(ctx context.Context, db dbtx, entry leave.AuditEntry) error {
	var diffJSON []byte
	if len(entry.Diff) > 0 {
		diffJSON, _ = json.Marshal(entry.Diff)
	}

	ts := entry.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	_, err := db.ExecContext(ctx,
		`INSERT INTO audit_log (action, performed_by, target_employee, target_request, summary, diff_json, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(entry.Action), entry.PerformedBy,
		nullString(string(entry.TargetEmployee)), nullString(string(entry.TargetRequest)),
		entry.Summary, nullString(string(diffJSON)), ts.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

// RecentAudit returns up to limit entries, newest first.
func (s *Store) RecentAudit(ctx context.Context, limit int) ([]leave.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.recentAudit(ctx, s.db, limit)
}

func (s *Store) recentAudit(ctx context.Context, db dbtx, limit int) ([]leave.AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.QueryContext(ctx,
		`SELECT id, action, performed_by, target_employee, target_request, summary, diff_json, timestamp
		 FROM audit_log ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []leave.AuditEntry
	for rows.Next() {
		var (
			e                            leave.AuditEntry
			action                       string
			targetEmployee, targetReq    sql.NullString
			diffJSON                     sql.NullString
			ts                           string
		)
		if err := rows.Scan(&e.ID, &action, &e.PerformedBy, &targetEmployee, &targetReq, &e.Summary, &diffJSON, &ts); err != nil {
			return nil, err
		}
		e.Action = leave.AuditAction(action)
		e.TargetEmployee = leave.EmployeeID(targetEmployee.String)
		e.TargetRequest = leave.RequestID(targetReq.String)
		e.Timestamp, _ = time.Parse(time.RFC3339, ts)
		if diffJSON.Valid && diffJSON.String != "" {
			json.Unmarshal([]byte(diffJSON.String), &e.Diff)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
