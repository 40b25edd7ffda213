/*
deduction.go - Pool routing for deductions and refunds

PURPOSE:
  Decides which pool(s) a requested quantity of leave is drawn from, and
  reverses a recorded deduction exactly.

CATEGORY ROUTING:
  CategoryWorkingOnOff          credits the replacement pool; never deducts
  CategoryAnnual / Emergency    ordered multi-pool drain, seasonal:
                                  months 1-3:  CF -> Replacement -> Annual
                                  months 4-12: Replacement -> CF -> Annual
                                Within the sequence each pool is drained
                                fully before the next (greedy).
  everything else               single matching pool

INVARIANTS:
  - Either the full quantity is drawn or nothing changes and an
    InsufficientBalanceError is returned (tolerance 1e-9).
  - Refund(Deduct(...)) restores every touched pool exactly.

All functions here are pure over a Balances value. Persistence and
transactionality are the workflow's concern.
*/
package leave

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// shortfallTolerance absorbs sub-nanoday residue when comparing a remaining
// need against zero.
var shortfallTolerance = decimal.New(1, -9) // 1e-9

// drawOrder returns the seasonal pool sequence for annual/emergency leave.
// Carry-forward expires after March, so it is spent first in Q1; afterwards
// replacement days (which expire at year end) go first.
func drawOrder(month time.Month) []Pool {
	if month <= time.March {
		return []Pool{PoolCarryForward, PoolReplacement, PoolAnnual}
	}
	return []Pool{PoolReplacement, PoolCarryForward, PoolAnnual}
}

// Deduct draws quantity days of the given category from b, mutating it, and
// returns the Source needed to reverse the deduction. On failure b is left
// unchanged.
func Deduct(b *Balances, category Category, quantity decimal.Decimal, refDate time.Time) (Source, error) {
	if !quantity.IsPositive() {
		return Source{}, fmt.Errorf("%w: deduction quantity must be positive, got %s", ErrPolicyViolation, quantity)
	}

	if category.Credits() {
		b.Add(PoolReplacement, quantity)
		return Source{}, nil
	}

	if category.Seasonal() {
		return deductSeasonal(b, category, quantity, refDate)
	}

	pool, ok := category.SinglePool()
	if !ok {
		return Source{}, &UnknownCategoryError{Label: string(category)}
	}

	available := b.Get(pool)
	if quantity.Sub(available).GreaterThan(shortfallTolerance) {
		return Source{}, &InsufficientBalanceError{
			Category:  category,
			Available: available,
			Requested: quantity,
			Shortfall: quantity.Sub(available),
		}
	}
	b.Sub(pool, quantity)
	return SingleSource(pool), nil
}

// deductSeasonal drains the ordered pool sequence greedily. The draws are
// computed on a copy so a shortfall leaves b untouched.
func deductSeasonal(b *Balances, category Category, quantity decimal.Decimal, refDate time.Time) (Source, error) {
	scratch := *b
	need := quantity
	var draws []Draw

	for _, pool := range drawOrder(refDate.Month()) {
		if !need.IsPositive() {
			break
		}
		available := scratch.Get(pool)
		if !available.IsPositive() {
			continue
		}
		use := decimal.Min(available, need)
		scratch.Sub(pool, use)
		need = need.Sub(use)
		draws = append(draws, Draw{Pool: pool, Amount: use})
	}

	if need.GreaterThan(shortfallTolerance) {
		total := quantity.Sub(need)
		return Source{}, &InsufficientBalanceError{
			Category:  category,
			Available: total,
			Requested: quantity,
			Shortfall: need,
		}
	}

	*b = scratch
	return MultiSource(draws), nil
}

// Validate checks whether Deduct would succeed, without mutating b. This is
// the submission-time path: it uses the same routing as the real deduction
// so submit-time and approval-time answers agree.
func Validate(b Balances, category Category, quantity decimal.Decimal, refDate time.Time) error {
	if category.Credits() {
		return nil
	}
	scratch := b
	_, err := Deduct(&scratch, category, quantity, refDate)
	return err
}

// Refund reverses a recorded deduction: each draw is added back to its
// originating pool; a bare single-pool source is refunded the full request
// quantity. A zero source is a no-op (replacement credits are not reversed).
func Refund(b *Balances, src Source, quantity decimal.Decimal) {
	if src.IsZero() {
		return
	}
	if draws := src.Draws(); len(draws) > 0 {
		for _, d := range draws {
			b.Add(d.Pool, d.Amount)
		}
		return
	}
	b.Add(src.pool, quantity)
}
