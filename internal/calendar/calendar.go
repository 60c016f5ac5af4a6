// Package calendar provides the month arithmetic used to expand obligations:
// days-in-month, payment-day clamping, month indexes and installment ranges.
// Every function is pure.
package calendar

import (
	"fmt"
	"time"
)

// OpenEndedYear and OpenEndedMonth form the sentinel end period of an
// obligation that never ends.
const (
	OpenEndedYear  = 9999
	OpenEndedMonth = 12
)

// Period identifies a calendar month.
type Period struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

// OpenEnded is the sentinel end period for open-ended obligations.
var OpenEnded = Period{Year: OpenEndedYear, Month: OpenEndedMonth}

// NewPeriod builds a Period from a year and month.
func NewPeriod(year, month int) Period {
	return Period{Year: year, Month: month}
}

// PeriodOf returns the month containing t.
func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Month: int(t.Month())}
}

// Index returns the month index of the period.
func (p Period) Index() int {
	return MonthIndex(p.Year, p.Month)
}

// Before reports whether p is strictly earlier than other.
func (p Period) Before(other Period) bool {
	return p.Index() < other.Index()
}

// After reports whether p is strictly later than other.
func (p Period) After(other Period) bool {
	return p.Index() > other.Index()
}

// Next returns the following month.
func (p Period) Next() Period {
	y, m := FromMonthIndex(p.Index() + 1)
	return Period{Year: y, Month: m}
}

// IsOpenEnded reports whether p is the open-ended sentinel.
func (p Period) IsOpenEnded() bool {
	return p == OpenEnded
}

// Validate checks that the month is in 1..12 and the year is in 1..9999.
func (p Period) Validate() error {
	if p.Month < 1 || p.Month > 12 {
		return fmt.Errorf("month must be between 1 and 12, got %d", p.Month)
	}
	if p.Year < 1 || p.Year > OpenEndedYear {
		return fmt.Errorf("year must be between 1 and %d, got %d", OpenEndedYear, p.Year)
	}
	return nil
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, p.Month)
}

// DaysInMonth returns the number of days of the given Gregorian month.
func DaysInMonth(year, month int) int {
	// Day 0 of the next month is the last day of this one.
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// ClampDay degrades a day-of-month to the last day of shorter months, so
// "pay on the 31st" becomes the 30th, 29th or 28th where needed.
func ClampDay(day, year, month int) int {
	if last := DaysInMonth(year, month); day > last {
		return last
	}
	return day
}

// MonthIndex maps a month onto a single integer for range comparisons.
func MonthIndex(year, month int) int {
	return year*12 + month
}

// FromMonthIndex is the inverse of MonthIndex.
func FromMonthIndex(idx int) (year, month int) {
	return (idx - 1) / 12, (idx-1)%12 + 1
}

// AddInstallments returns the month of the last of count installments
// starting at the given month.
func AddInstallments(startYear, startMonth, count int) (endYear, endMonth int) {
	return FromMonthIndex(MonthIndex(startYear, startMonth) + count - 1)
}

// InstallmentsBetween counts the months of an inclusive range. It never
// returns less than 1.
func InstallmentsBetween(startYear, startMonth, endYear, endMonth int) int {
	n := MonthIndex(endYear, endMonth) - MonthIndex(startYear, startMonth) + 1
	if n < 1 {
		return 1
	}
	return n
}
