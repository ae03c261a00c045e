package service

import "time"

// Clock returns the current time. Services take one so tests can pin "today".
type Clock func() time.Time

// DayStart returns the calendar day of t in loc as UTC midnight, the form in
// which task dates are stored.
func DayStart(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// TaskDate maps a 1-based day number onto a calendar day: day 1 is the start day.
func TaskDate(start time.Time, dayNumber int) time.Time {
	if dayNumber < 1 {
		dayNumber = 1
	}
	return start.AddDate(0, 0, dayNumber-1)
}
