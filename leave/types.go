/*
Package leave provides the core leave-balance engine.

PURPOSE:
  This package contains the domain types and algorithms for managing
  per-employee leave balances: the accrual/rollover engine that tops up,
  resets, and expires pools; the deduction/refund engine that decides which
  pool(s) a requested day is drawn from; and the approval workflow that
  applies those decisions atomically across multi-day submissions.

KEY CONCEPTS IN THIS FILE (types.go):
  - Pool: One named leave-balance counter (annual, sick, carry-forward, ...)
  - Balances: The full set of pools for one employee, enum-keyed access
  - Category: A leave category routed to one or more pools
  - Employee: Identity + balances + rest-day schedule
  - LeaveRequest: One calendar day of requested leave in a batch

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal so deduct/refund round-trips exactly
  2. Explicit dispatch: Pools are addressed via the Pool enum, never by
     building column names at runtime
  3. Non-negativity: Every pool stays >= 0 at rest; deductions validate
     before committing
  4. Auditability: Every balance-affecting action emits an AuditEntry

SEE ALSO:
  - deduction.go: Pool routing and the seasonal draw ordering
  - accrual.go: The periodic top-up/reset/expiry job
  - workflow.go: Batch submission and approval lifecycle
*/
package leave

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// POOLS - Named per-employee leave counters
// =============================================================================

type Pool string

const (
	PoolAnnual        Pool = "annual"
	PoolSick          Pool = "sick"
	PoolCultivation   Pool = "cultivation"
	PoolCompassionate Pool = "compassionate"
	PoolHospital      Pool = "hospital"
	PoolReplacement   Pool = "replacement"
	PoolCarryForward  Pool = "carry_forward"
	PoolMaternity     Pool = "maternity"
)

// AllPools lists every pool in display order.
var AllPools = []Pool{
	PoolAnnual, PoolSick, PoolCultivation, PoolCompassionate,
	PoolHospital, PoolReplacement, PoolCarryForward, PoolMaternity,
}

// Label returns the short name used inside leave-source strings
// (e.g. "CF:2.0, Replacement:0.5").
func (p Pool) Label() string {
	switch p {
	case PoolAnnual:
		return "Annual"
	case PoolSick:
		return "Sick"
	case PoolCultivation:
		return "Cultivation"
	case PoolCompassionate:
		return "Compassionate"
	case PoolHospital:
		return "Hospital"
	case PoolReplacement:
		return "Replacement"
	case PoolCarryForward:
		return "CF"
	case PoolMaternity:
		return "Maternity"
	default:
		return string(p)
	}
}

// poolByLabel is the inverse of Pool.Label, used when parsing leave sources.
var poolByLabel = map[string]Pool{
	"Annual":        PoolAnnual,
	"Sick":          PoolSick,
	"Cultivation":   PoolCultivation,
	"Compassionate": PoolCompassionate,
	"Hospital":      PoolHospital,
	"Replacement":   PoolReplacement,
	"CF":            PoolCarryForward,
	"Maternity":     PoolMaternity,
}

// =============================================================================
// BALANCES - All pools for one employee
// =============================================================================

// Balances holds every pool quantity for one employee. Quantities are in
// days, fractional allowed, and must never be negative at rest.
type Balances struct {
	Annual        decimal.Decimal
	Sick          decimal.Decimal
	Cultivation   decimal.Decimal
	Compassionate decimal.Decimal
	Hospital      decimal.Decimal
	Replacement   decimal.Decimal
	CarryForward  decimal.Decimal
	Maternity     decimal.Decimal
}

// Get returns the quantity in the given pool.
func (b Balances) Get(p Pool) decimal.Decimal {
	switch p {
	case PoolAnnual:
		return b.Annual
	case PoolSick:
		return b.Sick
	case PoolCultivation:
		return b.Cultivation
	case PoolCompassionate:
		return b.Compassionate
	case PoolHospital:
		return b.Hospital
	case PoolReplacement:
		return b.Replacement
	case PoolCarryForward:
		return b.CarryForward
	case PoolMaternity:
		return b.Maternity
	default:
		return decimal.Zero
	}
}

// Set overwrites the quantity in the given pool.
func (b *Balances) Set(p Pool, v decimal.Decimal) {
	switch p {
	case PoolAnnual:
		b.Annual = v
	case PoolSick:
		b.Sick = v
	case PoolCultivation:
		b.Cultivation = v
	case PoolCompassionate:
		b.Compassionate = v
	case PoolHospital:
		b.Hospital = v
	case PoolReplacement:
		b.Replacement = v
	case PoolCarryForward:
		b.CarryForward = v
	case PoolMaternity:
		b.Maternity = v
	}
}

// Add credits the given pool.
func (b *Balances) Add(p Pool, v decimal.Decimal) {
	b.Set(p, b.Get(p).Add(v))
}

// Sub debits the given pool. Callers must have validated availability.
func (b *Balances) Sub(p Pool, v decimal.Decimal) {
	b.Set(p, b.Get(p).Sub(v))
}

// Map returns a pool-keyed view, for read APIs and serialization.
func (b Balances) Map() map[Pool]decimal.Decimal {
	m := make(map[Pool]decimal.Decimal, len(AllPools))
	for _, p := range AllPools {
		m[p] = b.Get(p)
	}
	return m
}

// NonNegative reports whether every pool is >= 0.
func (b Balances) NonNegative() bool {
	for _, p := range AllPools {
		if b.Get(p).IsNegative() {
			return false
		}
	}
	return true
}

// =============================================================================
// CATEGORIES - What kind of leave is being requested
// =============================================================================

type Category string

const (
	CategoryAnnual        Category = "annual leave"
	CategoryEmergency     Category = "emergency leave"
	CategorySick          Category = "sick leave"
	CategoryCompassionate Category = "compassionate leave"
	CategoryHospital      Category = "hospital leave"
	CategoryMaternity     Category = "maternity leave"
	CategoryCultivation   Category = "cultivation leave"

	// CategoryWorkingOnOff is the pseudo-category for working on an off-day,
	// public holiday, or overtime. It credits the replacement pool instead
	// of deducting anything.
	CategoryWorkingOnOff Category = "working on off/ph/ot"
)

// AllCategories lists every accepted category.
var AllCategories = []Category{
	CategoryAnnual, CategoryEmergency, CategorySick, CategoryCompassionate,
	CategoryHospital, CategoryMaternity, CategoryCultivation, CategoryWorkingOnOff,
}

// ParseCategory normalizes a label to a known category.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllCategories {
		if c == known {
			return known, nil
		}
	}
	return "", &UnknownCategoryError{Label: s}
}

// Seasonal reports whether the category draws from the seasonally-ordered
// pool sequence (carry-forward / replacement / annual).
func (c Category) Seasonal() bool {
	return c == CategoryAnnual || c == CategoryEmergency
}

// Credits reports whether approval credits the replacement pool rather
// than deducting.
func (c Category) Credits() bool {
	return c == CategoryWorkingOnOff
}

// SinglePool returns the one pool a non-seasonal, non-credit category
// deducts from.
func (c Category) SinglePool() (Pool, bool) {
	switch c {
	case CategorySick:
		return PoolSick, true
	case CategoryCompassionate:
		return PoolCompassionate, true
	case CategoryHospital:
		return PoolHospital, true
	case CategoryMaternity:
		return PoolMaternity, true
	case CategoryCultivation:
		return PoolCultivation, true
	default:
		return "", false
	}
}

// =============================================================================
// EMPLOYEES
// =============================================================================

type EmployeeID string

// Tier places an employee in the approval hierarchy. Approval visibility is
// an explicit policy table over tiers (see workflow.go), not a convention
// encoded in role-name suffixes.
type Tier string

const (
	TierStaff       Tier = "staff"
	TierDeptManager Tier = "dept_manager"
	TierManager     Tier = "manager"
	TierDirector    Tier = "director"
	TierIT          Tier = "it"
)

type Employee struct {
	ID         EmployeeID
	Name       string
	Department string
	Tier       Tier

	Balances    Balances
	YearsWorked int

	// Rest days alternate by ISO week parity: odd-numbered weeks use
	// RestDaysOdd, even-numbered weeks use RestDaysEven.
	RestDaysOdd  []time.Weekday
	RestDaysEven []time.Weekday

	CreatedAt time.Time
}

// RestDays returns the rest-day list in effect on the given date.
func (e *Employee) RestDays(on time.Time) []time.Weekday {
	_, week := on.ISOWeek()
	if week%2 == 1 {
		return e.RestDaysOdd
	}
	return e.RestDaysEven
}

// IsRestDay reports whether the given date falls on one of the employee's
// alternating rest days.
func (e *Employee) IsRestDay(on time.Time) bool {
	for _, wd := range e.RestDays(on) {
		if on.Weekday() == wd {
			return true
		}
	}
	return false
}

// =============================================================================
// LEAVE REQUESTS
// =============================================================================

type RequestID string

// BatchID ties together every per-day row created from one multi-day
// submission. Approval and rejection always operate on the whole batch.
type BatchID string

type RequestStatus string

const (
	StatusPending  RequestStatus = "Pending"
	StatusApproved RequestStatus = "Approved"
	StatusRejected RequestStatus = "Rejected"
)

// Terminal reports whether the status admits no further transitions, other
// than the approved-then-rejected reversal.
func (s RequestStatus) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// LeaveRequest is one calendar day of requested leave. A multi-day
// submission becomes several rows sharing a BatchID.
type LeaveRequest struct {
	ID         RequestID
	EmployeeID EmployeeID
	BatchID    BatchID
	Category   Category

	// Date is the calendar day the leave falls on (midnight UTC).
	Date time.Time

	// Quantity is normally 1.0; single-day submissions may carry a
	// half-day fraction.
	Quantity decimal.Decimal

	Status RequestStatus
	Notes  string

	// Source records exactly which pool(s) funded the deduction when the
	// request was approved. Rejection after approval refunds from this
	// record, never from current policy.
	Source Source

	AttachmentRef string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// =============================================================================
// ACCRUAL LOG - Idempotence marker for the periodic job
// =============================================================================

// AccrualLog is the singleton record driving the accrual engine's
// once-per-month idempotence.
type AccrualLog struct {
	// LastUpdated is the date of the last successful run. A run is a no-op
	// when it falls in the same year and month.
	LastUpdated time.Time

	// MarchProcessedYear is the year carry-forward expiry last fired.
	// Expiry runs when the month is past March and this differs from the
	// current year, so the flag needs no reset at year rollover.
	MarchProcessedYear int
}

// =============================================================================
// BALANCE SNAPSHOTS - Historical record before resets/expiries
// =============================================================================

// BalanceSnapshot preserves pool values about to be overwritten by a yearly
// reset or carry-forward expiry, for audit and reporting.
type BalanceSnapshot struct {
	EmployeeID EmployeeID
	TakenAt    time.Time
	Reason     string
	Balances   Balances
}

// Day truncates a time to its calendar day in UTC. All request dates and
// holiday dates are normalized through this.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
