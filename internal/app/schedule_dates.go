package app

import (
	"time"

	"github.com/payflow/approval-service/internal/domain"
)

// DateOf returns the calendar date of t in loc as midnight UTC.
func DateOf(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD string into midnight UTC.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(domain.DateLayout, s, time.UTC)
}

// NextDueDate advances from by the template frequency. The boolean is false for an unknown frequency.
func NextDueDate(tpl domain.RecurringTemplate, from time.Time) (time.Time, bool) {
	switch tpl.Frequency {
	case domain.FrequencyDaily:
		return from.AddDate(0, 0, 1), true
	case domain.FrequencyWeekly:
		return from.AddDate(0, 0, 7), true
	case domain.FrequencyMonthly:
		return addMonthClamped(from), true
	}
	return time.Time{}, false
}

// addMonthClamped keeps the day of month of d in the following month, clamped to that month's length.
// time.AddDate would normalise Jan 31 into March instead.
func addMonthClamped(d time.Time) time.Time {
	y, m, day := d.Date()
	first := time.Date(y, m+1, 1, 0, 0, 0, 0, d.Location())
	if last := daysIn(first.Year(), first.Month(), d.Location()); day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, d.Location())
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}
