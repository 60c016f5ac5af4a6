package models

import (
	"time"

	"cuadra/internal/calendar"
)

// LedgerEntry is a full or partial payment ("abono") applied to the instance
// of an obligation in one period.
type LedgerEntry struct {
	Base
	GroupScoped
	Source      Source    `gorm:"not null;index:idx_ledger_entries_ref" json:"source"`
	SourceID    string    `gorm:"type:uuid;not null;index:idx_ledger_entries_ref" json:"source_id"`
	PeriodYear  int       `gorm:"not null" json:"period_year"`
	PeriodMonth int       `gorm:"not null" json:"period_month"`
	Amount      int64     `gorm:"type:bigint;not null" json:"amount"`
	PaidAt      time.Time `gorm:"type:date;not null" json:"paid_at"`
	Note        string    `json:"note,omitempty"`
}

// Period returns the month whose instance the entry pays.
func (e *LedgerEntry) Period() calendar.Period {
	return calendar.NewPeriod(e.PeriodYear, e.PeriodMonth)
}
