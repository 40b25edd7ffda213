/*
accrual.go - Periodic accrual/rollover engine

PURPOSE:
  The scheduled job that maintains every employee's pools over time:
  monthly top-ups, the January yearly reset, the post-March carry-forward
  expiry, and rest-day holiday bonuses.

IDEMPOTENCE:
  RunPeriodicUpdate is safe to invoke arbitrarily often. The AccrualLog
  records the year-month of the last successful run; a run in the same
  month is a no-op. Carry-forward expiry is keyed by MarchProcessedYear so
  it fires exactly once per calendar year.

TRANSACTIONAL UNIT:
  One full run. Every balance write, snapshot, audit entry, and the log
  advance commit together; a failure partway rolls everything back and the
  next invocation retries from the same state.

RUN ORDER (per the business calendar):
  1. Yearly reset     (January, when the year advanced past the log)
  2. CF expiry        (month > March, once per year)
  3. Monthly top-up   (every run, tiered by years worked)
  4. Rest-day bonus   (+1 annual per holiday on an alternating rest day)
*/
package leave

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Monthly top-up rates, keyed by strict years-worked tiers.
var (
	topUpSenior   = decimal.RequireFromString("1.58334") // > 10 years
	topUpMid      = decimal.RequireFromString("1.5")     // > 5 years
	topUpBase     = decimal.RequireFromString("1.0")
	carryForwardCap = decimal.NewFromInt(5)
)

// monthlyTopUp returns the accrual rate for an employee's tier. Boundaries
// are strict: exactly 10 years earns the mid rate, exactly 5 the base.
func monthlyTopUp(yearsWorked int) decimal.Decimal {
	switch {
	case yearsWorked > 10:
		return topUpSenior
	case yearsWorked > 5:
		return topUpMid
	default:
		return topUpBase
	}
}

// AccrualEngine applies the periodic balance updates. It is expected to run
// as a singleton scheduled task; idempotence is keyed at month granularity,
// not at a finer lock.
type AccrualEngine struct {
	Store TxStore
}

func NewAccrualEngine(store TxStore) *AccrualEngine {
	return &AccrualEngine{Store: store}
}

// RunPeriodicUpdate performs at most one month's worth of accrual work.
// today is injected so scheduled and manual invocations share one code path.
func (e *AccrualEngine) RunPeriodicUpdate(ctx context.Context, today time.Time) error {
	today = Day(today)

	return e.Store.WithTx(ctx, func(s Store) error {
		logRow, err := s.GetAccrualLog(ctx)
		if err != nil {
			return fmt.Errorf("load accrual log: %w", err)
		}
		if logRow == nil {
			// First run ever: seed a marker far in the past.
			logRow = &AccrualLog{LastUpdated: time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)}
		}

		// Already updated this month.
		if logRow.LastUpdated.Year() == today.Year() && logRow.LastUpdated.Month() == today.Month() {
			return nil
		}

		isNewYear := today.Year() > logRow.LastUpdated.Year()
		resetDue := isNewYear && today.Month() == time.January
		expiryDue := today.Month() > time.March && logRow.MarchProcessedYear != today.Year()

		employees, err := s.ListEmployees(ctx)
		if err != nil {
			return fmt.Errorf("list employees: %w", err)
		}
		holidays, err := s.ListHolidays(ctx)
		if err != nil {
			return fmt.Errorf("list holidays: %w", err)
		}
		monthHolidays := HolidaysInMonth(holidays, today.Year(), today.Month())

		for i := range employees {
			emp := &employees[i]

			if resetDue {
				if err := e.yearlyReset(ctx, s, emp, today); err != nil {
					return err
				}
			}

			if expiryDue && emp.Balances.CarryForward.IsPositive() {
				if err := e.expireCarryForward(ctx, s, emp, today); err != nil {
					return err
				}
			}

			if err := e.topUp(ctx, s, emp); err != nil {
				return err
			}

			if err := e.restDayBonus(ctx, s, emp, monthHolidays); err != nil {
				return err
			}

			if err := s.SaveEmployee(ctx, *emp); err != nil {
				return fmt.Errorf("save employee %s: %w", emp.ID, err)
			}
		}

		logRow.LastUpdated = today
		if expiryDue {
			logRow.MarchProcessedYear = today.Year()
		}
		if err := s.SaveAccrualLog(ctx, *logRow); err != nil {
			return fmt.Errorf("save accrual log: %w", err)
		}
		return nil
	})
}

// yearlyReset snapshots the old pools, then re-seeds them for the new year.
// Carry-forward is capped at 5 days of the prior annual pool.
func (e *AccrualEngine) yearlyReset(ctx context.Context, s Store, emp *Employee, today time.Time) error {
	old := emp.Balances
	if err := s.SaveSnapshot(ctx, BalanceSnapshot{
		EmployeeID: emp.ID,
		TakenAt:    today,
		Reason:     string(AuditYearlyReset),
		Balances:   old,
	}); err != nil {
		return fmt.Errorf("snapshot %s: %w", emp.ID, err)
	}

	newSick := decimal.NewFromInt(12)
	if emp.YearsWorked >= 5 {
		newSick = decimal.NewFromInt(18)
	}
	newCF := decimal.Min(old.Annual, carryForwardCap)

	emp.Balances = Balances{
		Annual:        decimal.Zero,
		Sick:          newSick,
		Hospital:      decimal.NewFromInt(60),
		Cultivation:   decimal.NewFromInt(7),
		Compassionate: decimal.NewFromInt(14),
		Maternity:     decimal.NewFromInt(98),
		Replacement:   decimal.Zero,
		CarryForward:  newCF,
	}
	emp.YearsWorked++

	return s.AppendAudit(ctx, AuditEntry{
		Action:         AuditYearlyReset,
		PerformedBy:    SystemActor,
		TargetEmployee: emp.ID,
		Summary:        fmt.Sprintf("CF set to %s, SickLeave set to %s", newCF, newSick),
		Diff:           balancesDiff(old, emp.Balances),
		Timestamp:      today,
	})
}

// expireCarryForward zeroes the carry-forward pool after Q1.
func (e *AccrualEngine) expireCarryForward(ctx context.Context, s Store, emp *Employee, today time.Time) error {
	expired := emp.Balances.CarryForward
	if err := s.SaveSnapshot(ctx, BalanceSnapshot{
		EmployeeID: emp.ID,
		TakenAt:    today,
		Reason:     string(AuditMarchExpiry),
		Balances:   emp.Balances,
	}); err != nil {
		return fmt.Errorf("snapshot %s: %w", emp.ID, err)
	}

	emp.Balances.CarryForward = decimal.Zero

	return s.AppendAudit(ctx, AuditEntry{
		Action:         AuditMarchExpiry,
		PerformedBy:    SystemActor,
		TargetEmployee: emp.ID,
		Summary:        fmt.Sprintf("CF leave of %s expired", expired),
		Diff:           map[string]any{"carry_forward": expired.String()},
		Timestamp:      today,
	})
}

// topUp applies the monthly annual-leave accrual. The result is rounded to
// two decimal places after the addition, and nowhere else.
func (e *AccrualEngine) topUp(ctx context.Context, s Store, emp *Employee) error {
	add := monthlyTopUp(emp.YearsWorked)
	emp.Balances.Annual = emp.Balances.Annual.Add(add).Round(2)

	return s.AppendAudit(ctx, AuditEntry{
		Action:         AuditMonthlyTopUp,
		PerformedBy:    SystemActor,
		TargetEmployee: emp.ID,
		Summary:        fmt.Sprintf("Added %s days. New annual balance: %s", add, emp.Balances.Annual),
		Diff:           map[string]any{"add_days": add.String(), "annual": emp.Balances.Annual.String()},
		Timestamp:      time.Now().UTC(),
	})
}

// restDayBonus grants +1 annual day for each holiday in the current month
// that falls on the employee's alternating rest day.
func (e *AccrualEngine) restDayBonus(ctx context.Context, s Store, emp *Employee, monthHolidays []time.Time) error {
	for _, day := range monthHolidays {
		if !emp.IsRestDay(day) {
			continue
		}
		emp.Balances.Annual = emp.Balances.Annual.Add(decimal.NewFromInt(1))
		if err := s.AppendAudit(ctx, AuditEntry{
			Action:         AuditBonusOffDay,
			PerformedBy:    SystemActor,
			TargetEmployee: emp.ID,
			Summary:        fmt.Sprintf("+1 day for holiday on off day (%s)", day.Format("2006-01-02")),
			Diff:           map[string]any{"bonus_day": day.Format("2006-01-02")},
			Timestamp:      time.Now().UTC(),
		}); err != nil {
			return err
		}
	}
	return nil
}

// balancesDiff renders an old/new pool comparison for audit diffs.
func balancesDiff(old, new Balances) map[string]any {
	diff := make(map[string]any)
	for _, p := range AllPools {
		before, after := old.Get(p), new.Get(p)
		if !before.Equal(after) {
			diff[string(p)] = []string{before.String(), after.String()}
		}
	}
	return diff
}
