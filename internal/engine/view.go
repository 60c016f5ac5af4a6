package engine

import (
	"time"

	"cuadra/internal/calendar"
	"cuadra/internal/models"
)

// View is everything computed for one group month.
type View struct {
	Period     calendar.Period `json:"period"`
	Instances  []Instance      `json:"instances"`
	Summary    MonthlySummary  `json:"summary"`
	Categories []CategoryStat  `json:"categories"`
	Savings    SavingsSummary  `json:"savings"`
}

// BuildView expands, reconciles and aggregates a month. Entries tagged for
// other months are ignored; lifetimeSaved comes from LifetimeSaved.
func BuildView(scope calendar.Period, recurring []models.RecurringObligation, oneOffs []models.OneOffObligation, entries []models.LedgerEntry, lifetimeSaved int64, today time.Time) View {
	instances := Reconcile(Expand(scope, recurring, oneOffs), entries, today)
	summary := Summarize(scope, instances)

	return View{
		Period:     scope,
		Instances:  instances,
		Summary:    summary,
		Categories: RollupCategories(instances),
		Savings:    TrackSavings(scope, instances, summary.TotalIncome, lifetimeSaved),
	}
}

// SavingsSources returns the ids of the obligations that feed the savings
// bucket.
func SavingsSources(recurring []models.RecurringObligation, oneOffs []models.OneOffObligation) map[string]bool {
	ids := make(map[string]bool)
	for i := range recurring {
		o := &recurring[i]
		if o.Direction == models.DirectionExpense && (o.IsGoal || models.NormalizeCategory(o.Category) == models.CategorySavings) {
			ids[o.ID] = true
		}
	}
	for i := range oneOffs {
		o := &oneOffs[i]
		if o.Direction == models.DirectionExpense && models.NormalizeCategory(o.Category) == models.CategorySavings {
			ids[o.ID] = true
		}
	}
	return ids
}
