package models

import (
	"strings"
	"time"

	"cuadra/internal/calendar"
)

// Direction tells whether an obligation brings money in or takes it out.
type Direction string

const (
	DirectionIncome  Direction = "income"
	DirectionExpense Direction = "expense"
)

// Source identifies which obligation table an instance or payment refers to.
type Source string

const (
	SourceRecurring Source = "recurring"
	SourceOneOff    Source = "one_off"
)

// MovementKind is the closed set of movement types. It is resolved once when
// an obligation is written and stored on the row.
type MovementKind string

const (
	KindRecurringExpense MovementKind = "recurring_expense"
	KindRecurringGoal    MovementKind = "recurring_goal"
	KindRecurringIncome  MovementKind = "recurring_income"
	KindOneOffExpense    MovementKind = "one_off_expense"
	KindOneOffIncome     MovementKind = "one_off_income"
	KindSavings          MovementKind = "savings"
)

// Reserved category names.
const (
	CategoryUncategorized = "uncategorized"
	CategorySavings       = "savings"
)

// NormalizeCategory trims a free-text category and falls back to
// "uncategorized" when empty.
func NormalizeCategory(category string) string {
	c := strings.TrimSpace(category)
	if c == "" {
		return CategoryUncategorized
	}
	if strings.EqualFold(c, CategorySavings) {
		return CategorySavings
	}
	return c
}

// RecurringKind resolves the movement kind of a recurring obligation.
func RecurringKind(direction Direction, category string, isGoal bool) MovementKind {
	switch {
	case NormalizeCategory(category) == CategorySavings:
		return KindSavings
	case direction == DirectionIncome:
		return KindRecurringIncome
	case isGoal:
		return KindRecurringGoal
	default:
		return KindRecurringExpense
	}
}

// OneOffKind resolves the movement kind of a one-off obligation.
func OneOffKind(direction Direction, category string) MovementKind {
	switch {
	case NormalizeCategory(category) == CategorySavings:
		return KindSavings
	case direction == DirectionIncome:
		return KindOneOffIncome
	default:
		return KindOneOffExpense
	}
}

// RecurringObligation is a declared monthly income or expense over an
// inclusive range of months. An end of 9999-12 means open-ended.
type RecurringObligation struct {
	Base
	GroupScoped
	Description string       `gorm:"not null" json:"description"`
	Amount      int64        `gorm:"type:bigint;not null" json:"amount"`
	Direction   Direction    `gorm:"not null" json:"direction"`
	Category    string       `gorm:"not null;default:'uncategorized'" json:"category"`
	Kind        MovementKind `gorm:"not null" json:"kind"`
	StartYear   int          `gorm:"not null" json:"start_year"`
	StartMonth  int          `gorm:"not null" json:"start_month"`
	EndYear     int          `gorm:"not null" json:"end_year"`
	EndMonth    int          `gorm:"not null" json:"end_month"`
	PaymentDay  *int         `json:"payment_day,omitempty"`
	IsGoal      bool         `gorm:"default:false" json:"is_goal"`
}

// Start returns the first month of the obligation.
func (o *RecurringObligation) Start() calendar.Period {
	return calendar.NewPeriod(o.StartYear, o.StartMonth)
}

// End returns the last month of the obligation.
func (o *RecurringObligation) End() calendar.Period {
	return calendar.NewPeriod(o.EndYear, o.EndMonth)
}

// Covers reports whether p lies inside the obligation's range.
func (o *RecurringObligation) Covers(p calendar.Period) bool {
	idx := p.Index()
	return o.Start().Index() <= idx && idx <= o.End().Index()
}

// IsOpenEnded reports whether the obligation has no end.
func (o *RecurringObligation) IsOpenEnded() bool {
	return o.End().IsOpenEnded()
}

// OneOffObligation is a single income or expense attached to one month.
type OneOffObligation struct {
	Base
	GroupScoped
	Description  string       `gorm:"not null" json:"description"`
	Amount       int64        `gorm:"type:bigint;not null" json:"amount"`
	Direction    Direction    `gorm:"not null" json:"direction"`
	Category     string       `gorm:"not null;default:'uncategorized'" json:"category"`
	Kind         MovementKind `gorm:"not null" json:"kind"`
	Year         int          `gorm:"not null" json:"year"`
	Month        int          `gorm:"not null" json:"month"`
	DeadlineDate *time.Time   `gorm:"type:date" json:"deadline_date,omitempty"`
}

// Period returns the month the obligation belongs to.
func (o *OneOffObligation) Period() calendar.Period {
	return calendar.NewPeriod(o.Year, o.Month)
}
