package calendar

import "time"

// Civil strips the time of day from t, keeping the date as seen in t's own
// location. The result is midnight UTC so civil dates compare with Equal,
// Before and After regardless of where they came from.
func Civil(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DateIn returns the civil date year-month-day.
func DateIn(year, month, day int) time.Time {
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

// DueDate resolves a payment day inside the given month, clamping it to
// the month's length.
func DueDate(p Period, paymentDay int) time.Time {
	return DateIn(p.Year, p.Month, ClampDay(paymentDay, p.Year, p.Month))
}

// Clock supplies "today" as a civil date.
type Clock interface {
	Today() time.Time
}

// SystemClock reads the wall clock in a fixed location.
type SystemClock struct {
	Location *time.Location
}

// Today returns the current civil date in the clock's location.
func (c SystemClock) Today() time.Time {
	loc := c.Location
	if loc == nil {
		loc = time.Local
	}
	return Civil(time.Now().In(loc))
}

// FixedClock always reports the same day.
type FixedClock struct {
	Date time.Time
}

// Today returns the fixed civil date.
func (c FixedClock) Today() time.Time {
	return Civil(c.Date)
}
