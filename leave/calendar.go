// calendar.go - Holiday calendar semantics.
//
// The calendar is a document keyed by year plus a set of recurring
// month-day defaults applied to every year. Year-specific entries win over
// defaults on the same month-day. Storage is the HolidayStore's concern;
// the merge logic here is pure so it can be tested without a database.
package leave

import (
	"time"
)

// Holiday is a named non-working date. Recurring holidays carry a
// month-day that applies to every year; the stored year is ignored.
type Holiday struct {
	ID        string
	Date      time.Time
	Name      string
	Recurring bool
}

// HolidaysForYear projects the calendar onto one year: recurring defaults
// first, then year-specific entries, which overwrite defaults falling on
// the same day. Keys are day-truncated UTC dates.
func HolidaysForYear(all []Holiday, year int) map[time.Time]string {
	out := make(map[time.Time]string)
	for _, h := range all {
		if !h.Recurring {
			continue
		}
		out[Day(time.Date(year, h.Date.Month(), h.Date.Day(), 0, 0, 0, 0, time.UTC))] = h.Name
	}
	for _, h := range all {
		if h.Recurring || h.Date.Year() != year {
			continue
		}
		out[Day(h.Date)] = h.Name
	}
	return out
}

// HolidaysInMonth returns the projected holiday dates falling in the given
// month, for the accrual engine's rest-day bonus pass.
func HolidaysInMonth(all []Holiday, year int, month time.Month) []time.Time {
	var days []time.Time
	for day := range HolidaysForYear(all, year) {
		if day.Month() == month {
			days = append(days, day)
		}
	}
	return days
}

// IsHolidayOn checks one date against the projected calendar.
func IsHolidayOn(all []Holiday, date time.Time) bool {
	_, ok := HolidaysForYear(all, date.Year())[Day(date)]
	return ok
}

// DaysInMonth returns the number of calendar days in the given month.
func DaysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
