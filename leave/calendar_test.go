package leave_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/warp/leave-engine/leave"
)

func TestHolidaysForYear_RecurringProjection(t *testing.T) {
	// GIVEN: A recurring New Year entry stored under 2020
	// WHEN: Projecting onto 2025
	// THEN: The entry appears on 2025-01-01

	all := []leave.Holiday{
		{ID: "h1", Date: date(2020, time.January, 1), Name: "New Year", Recurring: true},
	}
	projected := leave.HolidaysForYear(all, 2025)
	assert.Equal(t, "New Year", projected[date(2025, time.January, 1)])
}

func TestHolidaysForYear_YearSpecificOverridesRecurring(t *testing.T) {
	// GIVEN: A recurring default and a year-specific entry on the same day
	// WHEN: Projecting that year
	// THEN: The year-specific name wins

	all := []leave.Holiday{
		{ID: "h1", Date: date(2020, time.May, 1), Name: "Labour Day", Recurring: true},
		{ID: "h2", Date: date(2025, time.May, 1), Name: "Labour Day (substituted)"},
	}
	projected := leave.HolidaysForYear(all, 2025)
	assert.Equal(t, "Labour Day (substituted)", projected[date(2025, time.May, 1)])

	// Other years keep the default.
	assert.Equal(t, "Labour Day", leave.HolidaysForYear(all, 2024)[date(2024, time.May, 1)])
}

func TestHolidaysForYear_IgnoresOtherYears(t *testing.T) {
	all := []leave.Holiday{
		{ID: "h1", Date: date(2024, time.August, 31), Name: "One-off"},
	}
	assert.Empty(t, leave.HolidaysForYear(all, 2025))
}

func TestHolidaysInMonth(t *testing.T) {
	all := []leave.Holiday{
		{ID: "h1", Date: date(2020, time.June, 2), Name: "A", Recurring: true},
		{ID: "h2", Date: date(2025, time.June, 20), Name: "B"},
		{ID: "h3", Date: date(2025, time.July, 1), Name: "C"},
	}
	days := leave.HolidaysInMonth(all, 2025, time.June)
	assert.Len(t, days, 2)
}

func TestIsHolidayOn(t *testing.T) {
	all := []leave.Holiday{
		{ID: "h1", Date: date(2020, time.December, 25), Name: "Christmas", Recurring: true},
	}
	assert.True(t, leave.IsHolidayOn(all, time.Date(2025, time.December, 25, 14, 30, 0, 0, time.UTC)))
	assert.False(t, leave.IsHolidayOn(all, date(2025, time.December, 26)))
}

func TestDaysInMonth(t *testing.T) {
	assert.Equal(t, 29, leave.DaysInMonth(2024, time.February))
	assert.Equal(t, 28, leave.DaysInMonth(2025, time.February))
	assert.Equal(t, 31, leave.DaysInMonth(2025, time.December))
}

func TestEmployee_RestDays_AlternateByISOWeek(t *testing.T) {
	// GIVEN: Saturday rest on odd weeks, Sunday rest on even weeks
	// WHEN: Checking dates in consecutive ISO weeks
	// THEN: The schedule alternates

	emp := &leave.Employee{
		RestDaysOdd:  []time.Weekday{time.Saturday},
		RestDaysEven: []time.Weekday{time.Sunday},
	}

	// 2025-01-04 is a Saturday in ISO week 1 (odd).
	assert.True(t, emp.IsRestDay(date(2025, time.January, 4)))
	assert.False(t, emp.IsRestDay(date(2025, time.January, 5)))

	// 2025-01-11/12 fall in ISO week 2 (even): Sunday rests, Saturday works.
	assert.False(t, emp.IsRestDay(date(2025, time.January, 11)))
	assert.True(t, emp.IsRestDay(date(2025, time.January, 12)))
}
