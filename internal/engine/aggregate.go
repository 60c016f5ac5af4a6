package engine

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"cuadra/internal/calendar"
	"cuadra/internal/models"
)

// maxProgressWithDebt is the highest progress reported while anything is
// overdue.
const maxProgressWithDebt = 99

// MonthlySummary totals the instances of one month.
type MonthlySummary struct {
	Period         calendar.Period `json:"period"`
	TotalIncome    int64           `json:"total_income"`
	ReceivedIncome int64           `json:"received_income"`
	TotalExpense   int64           `json:"total_expense"`
	PaidExpense    int64           `json:"paid_expense"`
	PendingExpense int64           `json:"pending_expense"`
	OverdueExpense int64           `json:"overdue_expense"`
	AppliedExpense int64           `json:"applied_expense"`
	Remaining      int64           `json:"remaining"`
	PaidPercentage int             `json:"paid_percentage"`
	InstanceCount  int             `json:"instance_count"`
	OverdueCount   int             `json:"overdue_count"`
}

// CategoryStat is the expense rollup of one category.
type CategoryStat struct {
	Category   string `json:"category"`
	Count      int    `json:"count"`
	Total      int64  `json:"total"`
	HasOverdue bool   `json:"has_overdue"`
}

// SavingsSummary tracks the savings and goal bucket of one month.
type SavingsSummary struct {
	Period        calendar.Period `json:"period"`
	Target        int64           `json:"target"`
	Saved         int64           `json:"saved"`
	Overdue       int64           `json:"overdue"`
	OverdueCount  int             `json:"overdue_count"`
	SavingsRate   int             `json:"savings_rate"`
	LifetimeSaved int64           `json:"lifetime_saved"`
	Count         int             `json:"count"`
}

// GroupTotals is the all-time income and expense of a group.
type GroupTotals struct {
	TotalIncome  int64 `json:"total_income"`
	TotalExpense int64 `json:"total_expense"`
	Balance      int64 `json:"balance"`
}

// GoalProgress reports how far a goal obligation has come.
type GoalProgress struct {
	ObligationID        string          `json:"obligation_id"`
	Description         string          `json:"description"`
	Start               calendar.Period `json:"start"`
	End                 calendar.Period `json:"end"`
	Installments        int             `json:"installments"`
	PaidInstallments    int             `json:"paid_installments"`
	OverdueInstallments int             `json:"overdue_installments"`
	Target              int64           `json:"target"`
	Saved               int64           `json:"saved"`
	Remaining           int64           `json:"remaining"`
	Percentage          int             `json:"percentage"`
	Completed           bool            `json:"completed"`
}

// Percentage returns part/whole as a whole percentage, rounding halves up.
// It is 0 when whole is not positive.
func Percentage(part, whole int64) int {
	if whole <= 0 {
		return 0
	}
	pct := decimal.NewFromInt(part).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(whole)).
		Round(0)
	return int(pct.IntPart())
}

// ProgressPercentage is Percentage with the outstanding-debt rule applied:
// while overdue is positive the result never reaches 100.
func ProgressPercentage(paid, total, overdue int64) int {
	pct := Percentage(paid, total)
	if overdue > 0 && pct > maxProgressWithDebt {
		return maxProgressWithDebt
	}
	return pct
}

// Summarize totals reconciled instances. Expenses are bucketed by status
// using the full instance amount.
func Summarize(period calendar.Period, instances []Instance) MonthlySummary {
	s := MonthlySummary{Period: period, InstanceCount: len(instances)}

	for i := range instances {
		inst := &instances[i]
		if !inst.IsExpense() {
			s.TotalIncome += inst.Amount
			if inst.Status == StatusPaid {
				s.ReceivedIncome += inst.Amount
			}
			continue
		}

		s.TotalExpense += inst.Amount
		s.AppliedExpense += inst.Applied()
		switch inst.Status {
		case StatusPaid:
			s.PaidExpense += inst.Amount
		case StatusOverdue:
			s.OverdueExpense += inst.Amount
			s.OverdueCount++
		default:
			s.PendingExpense += inst.Amount
		}
	}

	s.Remaining = s.TotalIncome - s.TotalExpense
	s.PaidPercentage = ProgressPercentage(s.PaidExpense, s.TotalExpense, s.OverdueExpense)
	return s
}

// RollupCategories groups expense instances outside the savings bucket by
// category, most used first. Ties are broken by category name.
func RollupCategories(instances []Instance) []CategoryStat {
	byCategory := make(map[string]*CategoryStat)
	for i := range instances {
		inst := &instances[i]
		if !inst.IsExpense() || inst.Category == models.CategorySavings {
			continue
		}
		stat, ok := byCategory[inst.Category]
		if !ok {
			stat = &CategoryStat{Category: inst.Category}
			byCategory[inst.Category] = stat
		}
		stat.Count++
		stat.Total += inst.Amount
		if inst.Status == StatusOverdue {
			stat.HasOverdue = true
		}
	}

	stats := make([]CategoryStat, 0, len(byCategory))
	for _, stat := range byCategory {
		stats = append(stats, *stat)
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Count != stats[j].Count {
			return stats[i].Count > stats[j].Count
		}
		return stats[i].Category < stats[j].Category
	})
	return stats
}

// TrackSavings summarizes the savings and goal instances of a month.
// lifetimeSaved comes from LifetimeSaved.
func TrackSavings(period calendar.Period, instances []Instance, totalIncome, lifetimeSaved int64) SavingsSummary {
	s := SavingsSummary{Period: period, LifetimeSaved: lifetimeSaved}
	for i := range instances {
		inst := &instances[i]
		if !inst.IsExpense() || !inst.IsSavings() {
			continue
		}
		s.Count++
		s.Target += inst.Amount
		s.Saved += inst.PaidAmount
		if inst.Status == StatusOverdue {
			s.Overdue += inst.Amount - inst.Applied()
			s.OverdueCount++
		}
	}
	s.SavingsRate = Percentage(s.Saved, totalIncome)
	return s
}

// LifetimeSaved accumulates every payment made to the given savings or goal
// obligations for periods up to and including upTo.
func LifetimeSaved(entries []models.LedgerEntry, savingsSources map[string]bool, upTo calendar.Period) int64 {
	var total int64
	for i := range entries {
		e := &entries[i]
		if !savingsSources[e.SourceID] || e.Period().After(upTo) {
			continue
		}
		total += e.Amount
	}
	return total
}

// Totals sums income and expense over any set of instances. An empty set
// yields zeros.
func Totals(instances []Instance) GroupTotals {
	var t GroupTotals
	for i := range instances {
		if instances[i].IsExpense() {
			t.TotalExpense += instances[i].Amount
		} else {
			t.TotalIncome += instances[i].Amount
		}
	}
	t.Balance = t.TotalIncome - t.TotalExpense
	return t
}

// GoalProgressFor evaluates a goal across all of its installments. Entries
// must belong to the goal; entries for other sources are ignored.
func GoalProgressFor(o *models.RecurringObligation, entries []models.LedgerEntry, today time.Time) GoalProgress {
	end := o.End()
	instances := Reconcile(ExpandObligation(o, end), entries, today)

	g := GoalProgress{
		ObligationID: o.ID,
		Description:  o.Description,
		Start:        o.Start(),
		End:          end,
		Installments: len(instances),
	}

	var overdue int64
	for i := range instances {
		inst := &instances[i]
		g.Target += inst.Amount
		g.Saved += inst.PaidAmount
		switch inst.Status {
		case StatusPaid:
			g.PaidInstallments++
		case StatusOverdue:
			g.OverdueInstallments++
			overdue += inst.Amount - inst.Applied()
		}
	}

	counted := g.Saved
	if counted > g.Target {
		counted = g.Target
	}
	g.Remaining = g.Target - counted
	g.Percentage = ProgressPercentage(counted, g.Target, overdue)
	g.Completed = g.Installments > 0 && g.PaidInstallments == g.Installments
	return g
}
