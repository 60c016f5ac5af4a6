package engine

import (
	"time"

	"cuadra/internal/calendar"
	"cuadra/internal/models"
)

const (
	testGroupID = "0192f0a0-0000-7000-8000-000000000001"
	testUserID  = "0192f0a0-0000-7000-8000-000000000002"
)

func intPtr(v int) *int { return &v }

func datePtr(y, m, d int) *time.Time {
	t := calendar.DateIn(y, m, d)
	return &t
}

func recurring(id, desc string, amount int64, start, end calendar.Period, day *int) models.RecurringObligation {
	o := models.RecurringObligation{
		Description: desc,
		Amount:      amount,
		Direction:   models.DirectionExpense,
		Category:    "rent",
		StartYear:   start.Year,
		StartMonth:  start.Month,
		EndYear:     end.Year,
		EndMonth:    end.Month,
		PaymentDay:  day,
	}
	o.ID = id
	o.GroupID = testGroupID
	o.UserID = testUserID
	o.Kind = models.RecurringKind(o.Direction, o.Category, o.IsGoal)
	return o
}

func oneOff(id, desc string, amount int64, dir models.Direction, p calendar.Period, deadline *time.Time) models.OneOffObligation {
	o := models.OneOffObligation{
		Description:  desc,
		Amount:       amount,
		Direction:    dir,
		Year:         p.Year,
		Month:        p.Month,
		DeadlineDate: deadline,
	}
	o.ID = id
	o.GroupID = testGroupID
	o.UserID = testUserID
	o.Kind = models.OneOffKind(o.Direction, o.Category)
	return o
}

func payment(source models.Source, sourceID string, p calendar.Period, amount int64) models.LedgerEntry {
	e := models.LedgerEntry{
		Source:      source,
		SourceID:    sourceID,
		PeriodYear:  p.Year,
		PeriodMonth: p.Month,
		Amount:      amount,
		PaidAt:      calendar.DateIn(p.Year, p.Month, 1),
	}
	e.GroupID = testGroupID
	e.UserID = testUserID
	return e
}

// rentFixture is a 50000 expense due on day 5 for every month of 2025.
func rentFixture() models.RecurringObligation {
	return recurring("rent", "Rent", 50000, calendar.NewPeriod(2025, 1), calendar.NewPeriod(2025, 12), intPtr(5))
}
