package leave_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestWorkflow(t *testing.T) (*leave.Workflow, *sqlite.Store) {
	store := newTestStore(t)
	return leave.NewWorkflow(store), store
}

func seedStaff(t *testing.T, store *sqlite.Store, id, dept string, tier leave.Tier, b leave.Balances) {
	t.Helper()
	err := store.SaveEmployee(context.Background(), leave.Employee{
		ID:          leave.EmployeeID(id),
		Name:        "Employee " + id,
		Department:  dept,
		Tier:        tier,
		YearsWorked: 3,
		Balances:    b,
	})
	require.NoError(t, err)
}

func fullBalances() leave.Balances {
	return leave.Balances{
		Annual: d("10"), Sick: d("12"), CarryForward: d("2"), Replacement: d("1"),
		Hospital: d("60"), Cultivation: d("7"), Compassionate: d("14"), Maternity: d("98"),
	}
}

// =============================================================================
// SUBMIT TESTS
// =============================================================================

func TestSubmit_MultiDayRange_OneBatch(t *testing.T) {
	// GIVEN: A Monday-Wednesday range with no rest days or holidays
	// WHEN: Submitting annual leave
	// THEN: Three Pending rows share one batch, balances untouched

	wf, store := newTestWorkflow(t)
	seedStaff(t, store, "e1", "ops", leave.TierStaff, fullBalances())

	rows, err := wf.Submit(context.Background(), leave.Submission{
		EmployeeID: "e1",
		Category:   leave.CategoryAnnual,
		Start:      date(2025, time.June, 2), // Monday
		End:        date(2025, time.June, 4),
	})
	require.NoError(t, err)
	require.Len(t, rows, 3)

	for _, row := range rows {
		assert.Equal(t, rows[0].BatchID, row.BatchID)
		assert.Equal(t, leave.StatusPending, row.Status)
		assert.True(t, row.Quantity.Equal(d("1")))
		assert.True(t, row.Source.IsZero(), "no deduction recorded before approval")
	}

	b := getBalances(t, store, "e1")
	assert.True(t, b.Annual.Equal(d("10")), "submission must not touch balances")
}

func TestSubmit_SkipsRestDaysAndHolidays(t *testing.T) {
	// GIVEN: A range spanning a rest day and a holiday
	// WHEN: Submitting annual leave
	// THEN: Only working days become rows

	wf, store := newTestWorkflow(t)
	ctx := context.Background()

	require.NoError(t, store.SaveEmployee(ctx, leave.Employee{
		ID: "e1", Name: "E1", Department: "ops", Tier: leave.TierStaff,
		Balances: fullBalances(),
		// 2025-06-07 (Saturday) falls in an odd ISO week.
		RestDaysOdd: []time.Weekday{time.Saturday},
	}))
	require.NoError(t, store.AddHoliday(ctx, leave.Holiday{
		ID: "h1", Date: date(2025, time.June, 6), Name: "Festival",
	}))

	rows, err := wf.Submit(ctx, leave.Submission{
		EmployeeID: "e1",
		Category:   leave.CategoryAnnual,
		Start:      date(2025, time.June, 5), // Thursday
		End:        date(2025, time.June, 9), // Monday
	})
	require.NoError(t, err)

	// Thu 5th and Mon 9th survive; Fri 6th is a holiday, Sat 7th a rest day,
	// Sun 8th is not in this employee's rest schedule so it stays.
	require.Len(t, rows, 3)
	assert.Equal(t, date(2025, time.June, 5), rows[0].Date)
	assert.Equal(t, date(2025, time.June, 8), rows[1].Date)
	assert.Equal(t, date(2025, time.June, 9), rows[2].Date)
}

func TestSubmit_WorkingOnOff_KeepsRestDays(t *testing.T) {
	// Working-on-off claims are precisely for rest days and holidays, so
	// the range passes unfiltered.
	wf, store := newTestWorkflow(t)
	ctx := context.Background()

	require.NoError(t, store.SaveEmployee(ctx, leave.Employee{
		ID: "e1", Name: "E1", Department: "ops", Tier: leave.TierStaff,
		RestDaysOdd: []time.Weekday{time.Saturday},
	}))

	rows, err := wf.Submit(ctx, leave.Submission{
		EmployeeID: "e1",
		Category:   leave.CategoryWorkingOnOff,
		Start:      date(2025, time.June, 7), // Saturday rest day
		End:        date(2025, time.June, 7),
	})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestSubmit_SingleDay_FractionalQuantity(t *testing.T) {
	wf, store := newTestWorkflow(t)
	seedStaff(t, store, "e1", "ops", leave.TierStaff, fullBalances())

	rows, err := wf.Submit(context.Background(), leave.Submission{
		EmployeeID: "e1",
		Category:   leave.CategorySick,
		Start:      date(2025, time.June, 3),
		End:        date(2025, time.June, 3),
		Quantity:   d("0.5"),
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].Quantity.Equal(d("0.5")))
}

func TestSubmit_InsufficientTotal_CreatesNoRows(t *testing.T) {
	// GIVEN: Only 2 drawable days
	// WHEN: Submitting a 3-day range
	// THEN: InsufficientBalance and no rows persisted

	wf, store := newTestWorkflow(t)
	seedStaff(t, store, "e1", "ops", leave.TierStaff, leave.Balances{Annual: d("2")})

	_, err := wf.Submit(context.Background(), leave.Submission{
		EmployeeID: "e1",
		Category:   leave.CategoryAnnual,
		Start:      date(2025, time.June, 2),
		End:        date(2025, time.June, 4),
	})
	assert.ErrorIs(t, err, leave.ErrInsufficientBalance)

	rows, err := store.ListRequestsByEmployee(context.Background(), "e1")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestSubmit_EndBeforeStart_Rejected(t *testing.T) {
	wf, store := newTestWorkflow(t)
	seedStaff(t, store, "e1", "ops", leave.TierStaff, fullBalances())

	_, err := wf.Submit(context.Background(), leave.Submission{
		EmployeeID: "e1",
		Category:   leave.CategoryAnnual,
		Start:      date(2025, time.June, 4),
		End:        date(2025, time.June, 2),
	})
	assert.ErrorIs(t, err, leave.ErrPolicyViolation)
}

func TestSubmit_UnknownEmployee(t *testing.T) {
	wf, _ := newTestWorkflow(t)
	_, err := wf.Submit(context.Background(), leave.Submission{
		EmployeeID: "ghost",
		Category:   leave.CategoryAnnual,
		Start:      date(2025, time.June, 2),
		End:        date(2025, time.June, 2),
	})
	assert.ErrorIs(t, err, leave.ErrNotFound)
}

// =============================================================================
// APPROVE TESTS
// =============================================================================

func submitBatch(t *testing.T, wf *leave.Workflow, sub leave.Submission) []leave.LeaveRequest {
	t.Helper()
	rows, err := wf.Submit(context.Background(), sub)
	require.NoError(t, err)
	require.NotEmpty(t, rows)
	return rows
}

func TestApprove_WholeBatch_DeductsAndRecordsSource(t *testing.T) {
	// GIVEN: A two-day pending batch and a department manager
	// WHEN: Approving via any one row
	// THEN: Both rows approve, balances drop, sources record the draws

	wf, store := newTestWorkflow(t)
	ctx := context.Background()
	seedStaff(t, store, "e1", "ops", leave.TierStaff, leave.Balances{
		CarryForward: d("2"), Replacement: d("1"), Annual: d("10"),
	})
	seedStaff(t, store, "mgr", "ops", leave.TierDeptManager, leave.Balances{})

	rows := submitBatch(t, wf, leave.Submission{
		EmployeeID: "e1",
		Category:   leave.CategoryAnnual,
		Start:      date(2025, time.February, 3), // Monday
		End:        date(2025, time.February, 4),
	})

	require.NoError(t, wf.Approve(ctx, rows[0].ID, "mgr"))

	batch, err := store.GetBatch(ctx, rows[0].BatchID)
	require.NoError(t, err)
	require.Len(t, batch, 2)
	assert.Equal(t, leave.StatusApproved, batch[0].Status)
	assert.Equal(t, leave.StatusApproved, batch[1].Status)
	assert.Equal(t, "CF:1.0", batch[0].Source.String())
	assert.Equal(t, "CF:1.0", batch[1].Source.String())

	b := getBalances(t, store, "e1")
	assert.True(t, b.CarryForward.IsZero())
	assert.True(t, b.Annual.Equal(d("10")))
}

func TestApprove_EachRowUsesItsOwnDate(t *testing.T) {
	// GIVEN: A batch straddling the March/April boundary
	// WHEN: Approving
	// THEN: The March day drains CF first, the April day replacement first

	wf, store := newTestWorkflow(t)
	ctx := context.Background()
	seedStaff(t, store, "e1", "ops", leave.TierStaff, leave.Balances{
		CarryForward: d("5"), Replacement: d("5"), Annual: d("5"),
	})
	seedStaff(t, store, "mgr", "ops", leave.TierDeptManager, leave.Balances{})

	rows := submitBatch(t, wf, leave.Submission{
		EmployeeID: "e1",
		Category:   leave.CategoryAnnual,
		Start:      date(2025, time.March, 31), // Monday
		End:        date(2025, time.April, 1),
	})
	require.Len(t, rows, 2)

	require.NoError(t, wf.Approve(ctx, rows[0].ID, "mgr"))

	batch, err := store.GetBatch(ctx, rows[0].BatchID)
	require.NoError(t, err)
	assert.Equal(t, "CF:1.0", batch[0].Source.String())
	assert.Equal(t, "Replacement:1.0", batch[1].Source.String())
}

func TestApprove_FailingRow_RollsBackWholeBatch(t *testing.T) {
	// GIVEN: A pending batch whose last row cannot be funded
	// WHEN: Approving
	// THEN: Every row stays Pending and every pool keeps its value

	wf, store := newTestWorkflow(t)
	ctx := context.Background()
	seedStaff(t, store, "e1", "ops", leave.TierStaff, leave.Balances{Sick: d("5")})
	seedStaff(t, store, "mgr", "ops", leave.TierDeptManager, leave.Balances{})

	// Bypass submission validation to build an unfundable batch.
	now := time.Now().UTC()
	batch := []leave.LeaveRequest{
		{
			ID: "r1", EmployeeID: "e1", BatchID: "b1",
			Category: leave.CategorySick, Date: date(2025, time.June, 2),
			Quantity: d("4"), Status: leave.StatusPending,
			CreatedAt: now, UpdatedAt: now,
		},
		{
			ID: "r2", EmployeeID: "e1", BatchID: "b1",
			Category: leave.CategorySick, Date: date(2025, time.June, 3),
			Quantity: d("4"), Status: leave.StatusPending,
			CreatedAt: now, UpdatedAt: now,
		},
	}
	require.NoError(t, store.CreateRequests(ctx, batch))

	err := wf.Approve(ctx, "r1", "mgr")
	assert.ErrorIs(t, err, leave.ErrInsufficientBalance)

	reloaded, err := store.GetBatch(ctx, "b1")
	require.NoError(t, err)
	for _, row := range reloaded {
		assert.Equal(t, leave.StatusPending, row.Status)
	}
	assert.True(t, getBalances(t, store, "e1").Sick.Equal(d("5")))
}

func TestApprove_TerminalRow_Rejected(t *testing.T) {
	wf, store := newTestWorkflow(t)
	ctx := context.Background()
	seedStaff(t, store, "e1", "ops", leave.TierStaff, fullBalances())
	seedStaff(t, store, "mgr", "ops", leave.TierDeptManager, leave.Balances{})

	rows := submitBatch(t, wf, leave.Submission{
		EmployeeID: "e1", Category: leave.CategoryAnnual,
		Start: date(2025, time.June, 2), End: date(2025, time.June, 2),
	})
	require.NoError(t, wf.Approve(ctx, rows[0].ID, "mgr"))

	err := wf.Approve(ctx, rows[0].ID, "mgr")
	assert.ErrorIs(t, err, leave.ErrPolicyViolation)
}

func TestApprove_WorkingOnOff_CreditsReplacement(t *testing.T) {
	wf, store := newTestWorkflow(t)
	ctx := context.Background()

	require.NoError(t, store.SaveEmployee(ctx, leave.Employee{
		ID: "e1", Name: "E1", Department: "ops", Tier: leave.TierStaff,
		RestDaysOdd: []time.Weekday{time.Saturday},
	}))
	seedStaff(t, store, "mgr", "ops", leave.TierDeptManager, leave.Balances{})

	rows := submitBatch(t, wf, leave.Submission{
		EmployeeID: "e1", Category: leave.CategoryWorkingOnOff,
		Start: date(2025, time.June, 7), End: date(2025, time.June, 7),
	})
	require.NoError(t, wf.Approve(ctx, rows[0].ID, "mgr"))

	assert.True(t, getBalances(t, store, "e1").Replacement.Equal(d("1")))
}

// =============================================================================
// REJECT TESTS
// =============================================================================

func TestReject_ApprovedBatch_RefundsExactly(t *testing.T) {
	// GIVEN: An approved seasonal deduction
	// WHEN: Rejecting the batch
	// THEN: Every pool returns to its pre-approval value

	wf, store := newTestWorkflow(t)
	ctx := context.Background()
	seedStaff(t, store, "e1", "ops", leave.TierStaff, leave.Balances{
		CarryForward: d("2"), Replacement: d("1"), Annual: d("10"),
	})
	seedStaff(t, store, "mgr", "ops", leave.TierDeptManager, leave.Balances{})

	rows := submitBatch(t, wf, leave.Submission{
		EmployeeID: "e1", Category: leave.CategoryAnnual,
		Start: date(2025, time.February, 3), End: date(2025, time.February, 5),
	})
	require.NoError(t, wf.Approve(ctx, rows[0].ID, "mgr"))
	require.NoError(t, wf.Reject(ctx, rows[0].ID, "mgr", "plans changed"))

	b := getBalances(t, store, "e1")
	assert.True(t, b.CarryForward.Equal(d("2")))
	assert.True(t, b.Replacement.Equal(d("1")))
	assert.True(t, b.Annual.Equal(d("10")))

	batch, err := store.GetBatch(ctx, rows[0].BatchID)
	require.NoError(t, err)
	for _, row := range batch {
		assert.Equal(t, leave.StatusRejected, row.Status)
		assert.Equal(t, "plans changed", row.Notes)
	}
}

func TestReject_PendingBatch_NoBalanceEffect(t *testing.T) {
	wf, store := newTestWorkflow(t)
	ctx := context.Background()
	seedStaff(t, store, "e1", "ops", leave.TierStaff, fullBalances())
	seedStaff(t, store, "mgr", "ops", leave.TierDeptManager, leave.Balances{})

	rows := submitBatch(t, wf, leave.Submission{
		EmployeeID: "e1", Category: leave.CategoryAnnual,
		Start: date(2025, time.June, 2), End: date(2025, time.June, 3),
	})
	before := getBalances(t, store, "e1")

	require.NoError(t, wf.Reject(ctx, rows[0].ID, "mgr", ""))
	assert.Equal(t, before, getBalances(t, store, "e1"))
}

func TestReject_AlreadyRejected_Rejected(t *testing.T) {
	wf, store := newTestWorkflow(t)
	ctx := context.Background()
	seedStaff(t, store, "e1", "ops", leave.TierStaff, fullBalances())
	seedStaff(t, store, "mgr", "ops", leave.TierDeptManager, leave.Balances{})

	rows := submitBatch(t, wf, leave.Submission{
		EmployeeID: "e1", Category: leave.CategoryAnnual,
		Start: date(2025, time.June, 2), End: date(2025, time.June, 2),
	})
	require.NoError(t, wf.Reject(ctx, rows[0].ID, "mgr", ""))

	err := wf.Reject(ctx, rows[0].ID, "mgr", "")
	assert.ErrorIs(t, err, leave.ErrPolicyViolation)
}

func TestReject_DoesNotClawBackReplacementCredits(t *testing.T) {
	// GIVEN: An approved working-on-off claim (replacement credited)
	// WHEN: Rejecting the batch afterwards
	// THEN: The credit stays; credits carry no reversible source

	wf, store := newTestWorkflow(t)
	ctx := context.Background()

	require.NoError(t, store.SaveEmployee(ctx, leave.Employee{
		ID: "e1", Name: "E1", Department: "ops", Tier: leave.TierStaff,
		RestDaysOdd: []time.Weekday{time.Saturday},
	}))
	seedStaff(t, store, "mgr", "ops", leave.TierDeptManager, leave.Balances{})

	rows := submitBatch(t, wf, leave.Submission{
		EmployeeID: "e1", Category: leave.CategoryWorkingOnOff,
		Start: date(2025, time.June, 7), End: date(2025, time.June, 7),
	})
	require.NoError(t, wf.Approve(ctx, rows[0].ID, "mgr"))
	require.NoError(t, wf.Reject(ctx, rows[0].ID, "mgr", ""))

	assert.True(t, getBalances(t, store, "e1").Replacement.Equal(d("1")))
}

// =============================================================================
// VISIBILITY TESTS
// =============================================================================

func TestCanApprove_PolicyTable(t *testing.T) {
	mk := func(id, dept string, tier leave.Tier) *leave.Employee {
		return &leave.Employee{ID: leave.EmployeeID(id), Department: dept, Tier: tier}
	}

	staffOps := mk("s1", "ops", leave.TierStaff)
	staffHR := mk("s2", "hr", leave.TierStaff)
	deptMgrOps := mk("dm1", "ops", leave.TierDeptManager)
	manager := mk("m1", "ops", leave.TierManager)
	director := mk("d1", "ops", leave.TierDirector)
	it := mk("it1", "it", leave.TierIT)

	// Department managers see staff in their own department only.
	assert.True(t, leave.CanApprove(deptMgrOps, staffOps))
	assert.False(t, leave.CanApprove(deptMgrOps, staffHR))
	assert.False(t, leave.CanApprove(deptMgrOps, manager))

	// Managers see staff and department managers across departments.
	assert.True(t, leave.CanApprove(manager, staffHR))
	assert.True(t, leave.CanApprove(manager, deptMgrOps))
	assert.False(t, leave.CanApprove(manager, director))

	// Directors see managers.
	assert.True(t, leave.CanApprove(director, manager))
	assert.False(t, leave.CanApprove(director, staffOps))

	// IT sees everyone (admin role), but nobody approves themselves.
	assert.True(t, leave.CanApprove(it, staffOps))
	assert.True(t, leave.CanApprove(it, director))
	assert.False(t, leave.CanApprove(it, it))

	// Staff approve nothing.
	assert.False(t, leave.CanApprove(staffOps, staffHR))
}

func TestPending_ScopedToApprover(t *testing.T) {
	// GIVEN: Pending requests from two departments
	// WHEN: Each approver lists pending requests
	// THEN: Each sees only what the policy table grants

	wf, store := newTestWorkflow(t)
	ctx := context.Background()

	seedStaff(t, store, "s-ops", "ops", leave.TierStaff, fullBalances())
	seedStaff(t, store, "s-hr", "hr", leave.TierStaff, fullBalances())
	seedStaff(t, store, "dm-ops", "ops", leave.TierDeptManager, leave.Balances{})
	seedStaff(t, store, "mgr", "ops", leave.TierManager, leave.Balances{})

	submitBatch(t, wf, leave.Submission{
		EmployeeID: "s-ops", Category: leave.CategoryAnnual,
		Start: date(2025, time.June, 2), End: date(2025, time.June, 2),
	})
	submitBatch(t, wf, leave.Submission{
		EmployeeID: "s-hr", Category: leave.CategoryAnnual,
		Start: date(2025, time.June, 2), End: date(2025, time.June, 2),
	})

	opsView, err := wf.Pending(ctx, "dm-ops")
	require.NoError(t, err)
	require.Len(t, opsView, 1)
	assert.Equal(t, leave.EmployeeID("s-ops"), opsView[0].EmployeeID)

	mgrView, err := wf.Pending(ctx, "mgr")
	require.NoError(t, err)
	assert.Len(t, mgrView, 2)
}

func TestApprove_OutOfScopeApprover_Rejected(t *testing.T) {
	wf, store := newTestWorkflow(t)
	ctx := context.Background()
	seedStaff(t, store, "s-hr", "hr", leave.TierStaff, fullBalances())
	seedStaff(t, store, "dm-ops", "ops", leave.TierDeptManager, leave.Balances{})

	rows := submitBatch(t, wf, leave.Submission{
		EmployeeID: "s-hr", Category: leave.CategoryAnnual,
		Start: date(2025, time.June, 2), End: date(2025, time.June, 2),
	})

	err := wf.Approve(ctx, rows[0].ID, "dm-ops")
	assert.ErrorIs(t, err, leave.ErrPolicyViolation)
}

// =============================================================================
// READ API TESTS
// =============================================================================

func TestBalances_IncludesEntitlements(t *testing.T) {
	wf, store := newTestWorkflow(t)
	seedStaff(t, store, "e1", "ops", leave.TierStaff, fullBalances())

	report, err := wf.Balances(context.Background(), "e1")
	require.NoError(t, err)

	assert.True(t, report.Pools[leave.PoolAnnual].Equal(d("10")))
	// Seeded with 3 years worked.
	assert.True(t, report.Entitlements[leave.CategoryAnnual].Equal(d("12")))
	assert.True(t, report.Entitlements[leave.CategorySick].Equal(d("12")))
}

func TestCalendarEvents_MergesHolidaysAndApprovedLeave(t *testing.T) {
	wf, store := newTestWorkflow(t)
	ctx := context.Background()

	seedStaff(t, store, "e1", "ops", leave.TierStaff, fullBalances())
	seedStaff(t, store, "mgr", "ops", leave.TierDeptManager, leave.Balances{})
	require.NoError(t, store.AddHoliday(ctx, leave.Holiday{
		ID: "h1", Date: date(2025, time.June, 6), Name: "Festival",
	}))

	rows := submitBatch(t, wf, leave.Submission{
		EmployeeID: "e1", Category: leave.CategoryAnnual,
		Start: date(2025, time.June, 2), End: date(2025, time.June, 2),
	})
	require.NoError(t, wf.Approve(ctx, rows[0].ID, "mgr"))

	events, err := wf.CalendarEvents(ctx, 2025)
	require.NoError(t, err)
	require.Len(t, events, 2)

	// Sorted by date: approved leave (June 2) before the holiday (June 6).
	assert.Equal(t, leave.EmployeeID("e1"), events[0].Employee)
	assert.Equal(t, "Festival", events[1].Title)
	assert.Empty(t, events[1].Employee)
}
