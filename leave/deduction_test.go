package leave_test

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func seasonalBalances() leave.Balances {
	return leave.Balances{
		CarryForward: d("2"),
		Replacement:  d("1"),
		Annual:       d("10"),
	}
}

// =============================================================================
// SEASONAL ORDERING TESTS
// =============================================================================

func TestDeduct_Annual_FirstQuarter_DrainsCarryForwardFirst(t *testing.T) {
	// GIVEN: CF=2, Replacement=1, Annual=10 on February 1st
	// WHEN: Deducting 2.5 days of annual leave
	// THEN: CF drains fully, then Replacement covers the rest

	b := seasonalBalances()
	src, err := leave.Deduct(&b, leave.CategoryAnnual, d("2.5"), date(2025, time.February, 1))
	require.NoError(t, err)

	assert.Equal(t, "CF:2.0, Replacement:0.5", src.String())
	assert.True(t, b.CarryForward.IsZero(), "CF should be drained")
	assert.True(t, b.Replacement.Equal(d("0.5")), "Replacement should keep 0.5")
	assert.True(t, b.Annual.Equal(d("10")), "Annual should be untouched")
}

func TestDeduct_Annual_AfterMarch_DrainsReplacementFirst(t *testing.T) {
	// GIVEN: The same balances on July 1st
	// WHEN: Deducting 2.5 days of annual leave
	// THEN: Replacement drains first, then CF

	b := seasonalBalances()
	src, err := leave.Deduct(&b, leave.CategoryAnnual, d("2.5"), date(2025, time.July, 1))
	require.NoError(t, err)

	assert.Equal(t, "Replacement:1.0, CF:1.5", src.String())
	assert.True(t, b.Replacement.IsZero())
	assert.True(t, b.CarryForward.Equal(d("0.5")))
	assert.True(t, b.Annual.Equal(d("10")))
}

func TestDeduct_Annual_SpillsIntoAnnualPool(t *testing.T) {
	// GIVEN: CF=2, Replacement=1, Annual=10 in February
	// WHEN: Deducting 5 days
	// THEN: All three pools contribute in order

	b := seasonalBalances()
	src, err := leave.Deduct(&b, leave.CategoryAnnual, d("5"), date(2025, time.February, 10))
	require.NoError(t, err)

	assert.Equal(t, "CF:2.0, Replacement:1.0, Annual:2.0", src.String())
	assert.True(t, b.Annual.Equal(d("8")))
}

func TestDeduct_Emergency_UsesSameSeasonalRouting(t *testing.T) {
	// GIVEN: Seasonal balances in April
	// WHEN: Deducting emergency leave
	// THEN: Routing is identical to annual leave

	b := seasonalBalances()
	src, err := leave.Deduct(&b, leave.CategoryEmergency, d("1"), date(2025, time.April, 3))
	require.NoError(t, err)
	assert.Equal(t, "Replacement:1.0", src.String())
}

func TestDeduct_Annual_SkipsEmptyPools(t *testing.T) {
	// GIVEN: No CF at all in February
	// WHEN: Deducting 1 day
	// THEN: The empty pool never appears in the source

	b := leave.Balances{Replacement: d("3"), Annual: d("10")}
	src, err := leave.Deduct(&b, leave.CategoryAnnual, d("1"), date(2025, time.January, 20))
	require.NoError(t, err)
	assert.Equal(t, "Replacement:1.0", src.String())
}

// =============================================================================
// INSUFFICIENCY TESTS
// =============================================================================

func TestDeduct_Annual_Insufficient_LeavesBalancesUntouched(t *testing.T) {
	// GIVEN: 3 drawable days total
	// WHEN: Requesting 5
	// THEN: InsufficientBalanceError and no pool changes

	b := leave.Balances{CarryForward: d("1"), Replacement: d("1"), Annual: d("1")}
	before := b

	_, err := leave.Deduct(&b, leave.CategoryAnnual, d("5"), date(2025, time.February, 1))
	require.Error(t, err)
	assert.ErrorIs(t, err, leave.ErrInsufficientBalance)

	var insufficient *leave.InsufficientBalanceError
	require.ErrorAs(t, err, &insufficient)
	assert.True(t, insufficient.Shortfall.Equal(d("2")))
	assert.Equal(t, before, b, "failed deduction must not mutate balances")
}

func TestDeduct_SinglePool_Insufficient(t *testing.T) {
	// GIVEN: Sick=1.5
	// WHEN: Requesting 2 sick days
	// THEN: InsufficientBalanceError with the exact shortfall

	b := leave.Balances{Sick: d("1.5")}
	_, err := leave.Deduct(&b, leave.CategorySick, d("2"), date(2025, time.June, 1))
	require.Error(t, err)

	var insufficient *leave.InsufficientBalanceError
	require.ErrorAs(t, err, &insufficient)
	assert.True(t, insufficient.Available.Equal(d("1.5")))
	assert.True(t, insufficient.Requested.Equal(d("2")))
	assert.True(t, b.Sick.Equal(d("1.5")))
}

func TestDeduct_ToleratesNanodayResidue(t *testing.T) {
	// GIVEN: A balance a hair short of the request (within 1e-9)
	// WHEN: Deducting
	// THEN: The deduction succeeds

	b := leave.Balances{Sick: d("1.9999999999")}
	_, err := leave.Deduct(&b, leave.CategorySick, d("2"), date(2025, time.June, 1))
	assert.NoError(t, err)
}

func TestDeduct_NonPositiveQuantity_Rejected(t *testing.T) {
	b := seasonalBalances()
	_, err := leave.Deduct(&b, leave.CategoryAnnual, d("0"), date(2025, time.May, 1))
	assert.ErrorIs(t, err, leave.ErrPolicyViolation)

	_, err = leave.Deduct(&b, leave.CategoryAnnual, d("-1"), date(2025, time.May, 1))
	assert.ErrorIs(t, err, leave.ErrPolicyViolation)
}

func TestDeduct_UnknownCategory(t *testing.T) {
	b := seasonalBalances()
	_, err := leave.Deduct(&b, leave.Category("sabbatical"), d("1"), date(2025, time.May, 1))
	require.Error(t, err)

	var unknown *leave.UnknownCategoryError
	assert.True(t, errors.As(err, &unknown))
	assert.ErrorIs(t, err, leave.ErrPolicyViolation)
}

// =============================================================================
// SINGLE-POOL AND CREDIT TESTS
// =============================================================================

func TestDeduct_SinglePoolCategories(t *testing.T) {
	// GIVEN: Full single-pool balances
	// WHEN: Deducting each single-pool category
	// THEN: Only the matching pool moves, and the source is its bare label

	cases := []struct {
		category leave.Category
		label    string
	}{
		{leave.CategorySick, "Sick"},
		{leave.CategoryHospital, "Hospital"},
		{leave.CategoryCultivation, "Cultivation"},
		{leave.CategoryCompassionate, "Compassionate"},
		{leave.CategoryMaternity, "Maternity"},
	}
	for _, tc := range cases {
		b := leave.Balances{
			Sick: d("18"), Hospital: d("60"), Cultivation: d("7"),
			Compassionate: d("14"), Maternity: d("98"),
			Annual: d("5"), CarryForward: d("5"), Replacement: d("5"),
		}
		src, err := leave.Deduct(&b, tc.category, d("1"), date(2025, time.February, 1))
		require.NoError(t, err, tc.category)
		assert.Equal(t, tc.label, src.String(), tc.category)
		assert.True(t, b.Annual.Equal(d("5")), "seasonal pools must not move for %s", tc.category)
	}
}

func TestDeduct_WorkingOnOff_CreditsReplacement(t *testing.T) {
	// GIVEN: An empty replacement pool
	// WHEN: Recording a worked off-day
	// THEN: Replacement is credited and the source is empty

	b := leave.Balances{}
	src, err := leave.Deduct(&b, leave.CategoryWorkingOnOff, d("1"), date(2025, time.August, 9))
	require.NoError(t, err)

	assert.True(t, src.IsZero(), "credits record no reversible source")
	assert.True(t, b.Replacement.Equal(d("1")))
}

// =============================================================================
// REFUND TESTS
// =============================================================================

func TestRefund_ExactInverse_MultiPool(t *testing.T) {
	// GIVEN: A seasonal deduction
	// WHEN: Refunding from the recorded source
	// THEN: Every pool returns to its original value

	b := seasonalBalances()
	before := b
	src, err := leave.Deduct(&b, leave.CategoryAnnual, d("2.5"), date(2025, time.February, 1))
	require.NoError(t, err)

	leave.Refund(&b, src, d("2.5"))
	assert.Equal(t, before, b)
}

func TestRefund_RespectsRecordedSource_NotCurrentSeason(t *testing.T) {
	// GIVEN: A deduction approved in February (CF first)
	// WHEN: Refunding in July
	// THEN: Pools are restored per the February record, not July routing

	b := seasonalBalances()
	src, err := leave.Deduct(&b, leave.CategoryAnnual, d("2.5"), date(2025, time.February, 1))
	require.NoError(t, err)

	// Parse from the persisted string, as the workflow does after reload.
	reloaded, err := leave.ParseSource(src.String())
	require.NoError(t, err)

	leave.Refund(&b, reloaded, d("2.5"))
	assert.True(t, b.CarryForward.Equal(d("2")))
	assert.True(t, b.Replacement.Equal(d("1")))
}

func TestRefund_BareSource_RefundsQuantity(t *testing.T) {
	b := leave.Balances{Sick: d("17.5")}
	src, err := leave.ParseSource("Sick")
	require.NoError(t, err)

	leave.Refund(&b, src, d("0.5"))
	assert.True(t, b.Sick.Equal(d("18")))
}

func TestRefund_ZeroSource_NoOp(t *testing.T) {
	// Replacement credits have no source; rejection must not claw them back.
	b := leave.Balances{Replacement: d("3")}
	leave.Refund(&b, leave.Source{}, d("1"))
	assert.True(t, b.Replacement.Equal(d("3")))
}

// =============================================================================
// VALIDATE TESTS
// =============================================================================

func TestValidate_DoesNotMutate(t *testing.T) {
	b := seasonalBalances()
	before := b

	err := leave.Validate(b, leave.CategoryAnnual, d("2.5"), date(2025, time.February, 1))
	assert.NoError(t, err)
	assert.Equal(t, before, b)
}

func TestValidate_AgreesWithDeduct(t *testing.T) {
	// GIVEN: A quantity only coverable in Q1 ordering terms
	// WHEN: Validating and deducting with the same reference date
	// THEN: Both agree

	b := leave.Balances{CarryForward: d("1"), Annual: d("1")}

	err := leave.Validate(b, leave.CategoryAnnual, d("2"), date(2025, time.March, 30))
	assert.NoError(t, err)

	err = leave.Validate(b, leave.CategoryAnnual, d("3"), date(2025, time.March, 30))
	assert.ErrorIs(t, err, leave.ErrInsufficientBalance)
}

func TestValidate_CreditsAlwaysPass(t *testing.T) {
	err := leave.Validate(leave.Balances{}, leave.CategoryWorkingOnOff, d("1"), date(2025, time.May, 1))
	assert.NoError(t, err)
}
