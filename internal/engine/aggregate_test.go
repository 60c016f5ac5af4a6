package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cuadra/internal/calendar"
	"cuadra/internal/models"
)

func TestPercentage(t *testing.T) {
	assert.Equal(t, 0, Percentage(10, 0))
	assert.Equal(t, 50, Percentage(1, 2))
	assert.Equal(t, 33, Percentage(1, 3))
	assert.Equal(t, 67, Percentage(2, 3))
	assert.Equal(t, 100, Percentage(995, 1000))
	assert.Equal(t, 150, Percentage(3, 2))
}

func TestProgressPercentage_CappedWhileOverdue(t *testing.T) {
	assert.Equal(t, 99, ProgressPercentage(995, 1000, 5))
	assert.Equal(t, 100, ProgressPercentage(995, 1000, 0))
	assert.Equal(t, 40, ProgressPercentage(40, 100, 60))
}

func TestSummarize(t *testing.T) {
	june := calendar.NewPeriod(2025, 6)
	today := calendar.DateIn(2025, 6, 10)
	rent := rentFixture()
	gym := recurring("gym", "Gym", 3000, june, june, intPtr(20))
	salary := recurring("salary", "Salary", 200000, june, june, intPtr(1))
	salary.Direction = models.DirectionIncome
	fee := oneOff("fee", "Fee", 1000, models.DirectionExpense, june, datePtr(2025, 6, 1))

	instances := Reconcile(
		Expand(june, []models.RecurringObligation{rent, gym, salary}, []models.OneOffObligation{fee}),
		[]models.LedgerEntry{
			payment(models.SourceOneOff, "fee", june, 1000),
			payment(models.SourceRecurring, "rent", june, 20000),
			payment(models.SourceRecurring, "salary", june, 200000),
		},
		today,
	)

	s := Summarize(june, instances)

	assert.Equal(t, int64(200000), s.TotalIncome)
	assert.Equal(t, int64(200000), s.ReceivedIncome)
	assert.Equal(t, int64(54000), s.TotalExpense)
	assert.Equal(t, int64(1000), s.PaidExpense)
	assert.Equal(t, int64(3000), s.PendingExpense)
	assert.Equal(t, int64(50000), s.OverdueExpense)
	assert.Equal(t, int64(21000), s.AppliedExpense)
	assert.Equal(t, int64(146000), s.Remaining)
	assert.Equal(t, 2, s.PaidPercentage)
	assert.Equal(t, 4, s.InstanceCount)
	assert.Equal(t, 1, s.OverdueCount)
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(calendar.NewPeriod(2025, 6), nil)
	assert.Zero(t, s.TotalIncome)
	assert.Zero(t, s.TotalExpense)
	assert.Zero(t, s.PaidPercentage)
}

func TestRollupCategories(t *testing.T) {
	june := calendar.NewPeriod(2025, 6)
	today := calendar.DateIn(2025, 6, 10)

	a := recurring("a", "Rent", 500, june, june, intPtr(1))
	b := recurring("b", "Water", 100, june, june, intPtr(30))
	b.Category = "utilities"
	c := recurring("c", "Power", 200, june, june, intPtr(30))
	c.Category = "utilities"
	s := recurring("s", "Rainy day", 900, june, june, nil)
	s.Category = models.CategorySavings
	income := recurring("i", "Salary", 5000, june, june, nil)
	income.Direction = models.DirectionIncome
	income.Category = "salary"

	stats := RollupCategories(Reconcile(Expand(june, []models.RecurringObligation{a, b, c, s, income}, nil), nil, today))

	require.Len(t, stats, 2)
	assert.Equal(t, CategoryStat{Category: "utilities", Count: 2, Total: 300}, stats[0])
	assert.Equal(t, CategoryStat{Category: "rent", Count: 1, Total: 500, HasOverdue: true}, stats[1])
}

func TestRollupCategories_TiesByName(t *testing.T) {
	june := calendar.NewPeriod(2025, 6)
	a := recurring("a", "A", 100, june, june, nil)
	a.Category = "zoo"
	b := recurring("b", "B", 100, june, june, nil)
	b.Category = "bar"

	stats := RollupCategories(Expand(june, []models.RecurringObligation{a, b}, nil))

	require.Len(t, stats, 2)
	assert.Equal(t, "bar", stats[0].Category)
	assert.Equal(t, "zoo", stats[1].Category)
}

func TestTrackSavings(t *testing.T) {
	june := calendar.NewPeriod(2025, 6)
	today := calendar.DateIn(2025, 6, 10)

	fund := recurring("fund", "Fund", 10000, calendar.NewPeriod(2025, 1), calendar.OpenEnded, intPtr(5))
	fund.Category = models.CategorySavings
	trip := recurring("trip", "Trip", 5000, calendar.NewPeriod(2025, 1), calendar.NewPeriod(2025, 12), nil)
	trip.IsGoal = true
	rent := rentFixture()
	all := []models.RecurringObligation{fund, trip, rent}

	entries := []models.LedgerEntry{
		payment(models.SourceRecurring, "fund", calendar.NewPeriod(2025, 5), 10000),
		payment(models.SourceRecurring, "fund", june, 4000),
		payment(models.SourceRecurring, "trip", june, 5000),
		payment(models.SourceRecurring, "trip", calendar.NewPeriod(2025, 7), 5000),
		payment(models.SourceRecurring, "rent", june, 50000),
	}

	instances := Reconcile(Expand(june, all, nil), entries, today)
	lifetime := LifetimeSaved(entries, SavingsSources(all, nil), june)
	s := TrackSavings(june, instances, 100000, lifetime)

	assert.Equal(t, 2, s.Count)
	assert.Equal(t, int64(15000), s.Target)
	assert.Equal(t, int64(9000), s.Saved)
	assert.Equal(t, int64(6000), s.Overdue)
	assert.Equal(t, 1, s.OverdueCount)
	assert.Equal(t, 9, s.SavingsRate)
	assert.Equal(t, int64(19000), s.LifetimeSaved)
}

func TestTotals(t *testing.T) {
	assert.Equal(t, GroupTotals{}, Totals(nil))

	rent := rentFixture()
	bonus := oneOff("bonus", "Bonus", 80000, models.DirectionIncome, calendar.NewPeriod(2025, 3), nil)
	instances := ExpandThrough(calendar.NewPeriod(2025, 3), []models.RecurringObligation{rent}, []models.OneOffObligation{bonus})

	got := Totals(instances)
	assert.Equal(t, int64(80000), got.TotalIncome)
	assert.Equal(t, int64(150000), got.TotalExpense)
	assert.Equal(t, int64(-70000), got.Balance)
}

func TestGoalProgressFor(t *testing.T) {
	goal := recurring("car", "Car", 10000, calendar.NewPeriod(2025, 1), calendar.NewPeriod(2025, 4), intPtr(10))
	goal.IsGoal = true
	today := calendar.DateIn(2025, 3, 15)

	entries := []models.LedgerEntry{
		payment(models.SourceRecurring, "car", calendar.NewPeriod(2025, 1), 10000),
		payment(models.SourceRecurring, "car", calendar.NewPeriod(2025, 2), 10000),
		payment(models.SourceRecurring, "car", calendar.NewPeriod(2025, 3), 9950),
	}

	g := GoalProgressFor(&goal, entries, today)

	assert.Equal(t, 4, g.Installments)
	assert.Equal(t, 2, g.PaidInstallments)
	assert.Equal(t, 1, g.OverdueInstallments)
	assert.Equal(t, int64(40000), g.Target)
	assert.Equal(t, int64(29950), g.Saved)
	assert.Equal(t, int64(10050), g.Remaining)
	assert.Equal(t, 75, g.Percentage)
	assert.False(t, g.Completed)

	entries = append(entries,
		payment(models.SourceRecurring, "car", calendar.NewPeriod(2025, 3), 50),
		payment(models.SourceRecurring, "car", calendar.NewPeriod(2025, 4), 10000),
	)
	g = GoalProgressFor(&goal, entries, today)
	assert.True(t, g.Completed)
	assert.Equal(t, 100, g.Percentage)
	assert.Zero(t, g.Remaining)
}

func TestBuildView(t *testing.T) {
	rent := rentFixture()
	june := calendar.NewPeriod(2025, 6)

	v := BuildView(june, []models.RecurringObligation{rent}, nil, nil, 0, calendar.DateIn(2025, 6, 10))

	require.Len(t, v.Instances, 1)
	assert.Equal(t, StatusOverdue, v.Instances[0].Status)
	assert.Equal(t, int64(50000), v.Summary.OverdueExpense)
	assert.Equal(t, 0, v.Summary.PaidPercentage)
	require.Len(t, v.Categories, 1)
	assert.Equal(t, "rent", v.Categories[0].Category)
	assert.Zero(t, v.Savings.Count)
}
