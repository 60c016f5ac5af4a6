package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cuadra/internal/calendar"
	"cuadra/internal/models"
)

func TestExpand_RecurringInsideRange(t *testing.T) {
	rent := rentFixture()

	got := Expand(calendar.NewPeriod(2025, 6), []models.RecurringObligation{rent}, nil)

	require.Len(t, got, 1)
	inst := got[0]
	assert.Equal(t, models.SourceRecurring, inst.Source)
	assert.Equal(t, "rent", inst.SourceID)
	assert.Equal(t, int64(50000), inst.Amount)
	assert.Equal(t, calendar.NewPeriod(2025, 6), inst.Period)
	require.NotNil(t, inst.Deadline)
	assert.True(t, inst.Deadline.Equal(calendar.DateIn(2025, 6, 5)))
	assert.Equal(t, models.KindRecurringExpense, inst.Kind)
	assert.Equal(t, testGroupID, inst.GroupID)
	assert.Equal(t, testUserID, inst.OwnerID)
}

func TestExpand_OutsideRange(t *testing.T) {
	rent := rentFixture()

	assert.Empty(t, Expand(calendar.NewPeriod(2024, 12), []models.RecurringObligation{rent}, nil))
	assert.Empty(t, Expand(calendar.NewPeriod(2026, 1), []models.RecurringObligation{rent}, nil))
}

func TestExpand_SingleMonthRange(t *testing.T) {
	march := calendar.NewPeriod(2025, 3)
	o := recurring("m", "March only", 1000, march, march, nil)
	all := []models.RecurringObligation{o}

	assert.Len(t, Expand(march, all, nil), 1)
	assert.Empty(t, Expand(calendar.NewPeriod(2025, 2), all, nil))
	assert.Empty(t, Expand(calendar.NewPeriod(2025, 4), all, nil))
	assert.Len(t, ExpandThrough(calendar.OpenEnded, all, nil), 1)
}

func TestExpand_PaymentDayClampedToMonthLength(t *testing.T) {
	o := recurring("d31", "Day 31", 1000, calendar.NewPeriod(2026, 1), calendar.OpenEnded, intPtr(31))

	got := Expand(calendar.NewPeriod(2026, 2), []models.RecurringObligation{o}, nil)

	require.Len(t, got, 1)
	require.NotNil(t, got[0].Deadline)
	assert.True(t, got[0].Deadline.Equal(calendar.DateIn(2026, 2, 28)))
}

func TestExpand_NoPaymentDayHasNoDeadline(t *testing.T) {
	o := recurring("nd", "Whenever", 1000, calendar.NewPeriod(2025, 1), calendar.OpenEnded, nil)

	got := Expand(calendar.NewPeriod(2030, 7), []models.RecurringObligation{o}, nil)

	require.Len(t, got, 1)
	assert.Nil(t, got[0].Deadline)
}

func TestExpand_OneOffOnlyInItsMonth(t *testing.T) {
	fee := oneOff("fee", "Fee", 700, models.DirectionExpense, calendar.NewPeriod(2025, 6), datePtr(2025, 6, 20))
	all := []models.OneOffObligation{fee}

	got := Expand(calendar.NewPeriod(2025, 6), nil, all)
	require.Len(t, got, 1)
	assert.Equal(t, models.SourceOneOff, got[0].Source)
	assert.Equal(t, models.KindOneOffExpense, got[0].Kind)
	assert.Equal(t, models.CategoryUncategorized, got[0].Category)

	assert.Empty(t, Expand(calendar.NewPeriod(2025, 7), nil, all))
}

func TestExpand_Idempotent(t *testing.T) {
	rent := rentFixture()
	bonus := oneOff("bonus", "Bonus", 2000, models.DirectionIncome, calendar.NewPeriod(2025, 6), nil)
	scope := calendar.NewPeriod(2025, 6)

	first := Expand(scope, []models.RecurringObligation{rent}, []models.OneOffObligation{bonus})
	second := Expand(scope, []models.RecurringObligation{rent}, []models.OneOffObligation{bonus})

	assert.Equal(t, first, second)
	assert.Equal(t, InstanceID(models.SourceRecurring, "rent", scope), first[0].ID)
}

func TestExpand_OrderIndependentOfInput(t *testing.T) {
	scope := calendar.NewPeriod(2025, 6)
	a := recurring("a", "Gym", 100, scope, scope, intPtr(20))
	b := recurring("b", "Rent", 100, scope, scope, intPtr(5))
	c := recurring("c", "Books", 100, scope, scope, nil)

	first := Expand(scope, []models.RecurringObligation{a, b, c}, nil)
	second := Expand(scope, []models.RecurringObligation{c, b, a}, nil)

	require.Len(t, first, 3)
	assert.Equal(t, first, second)
	assert.Equal(t, "b", first[0].SourceID)
	assert.Equal(t, "a", first[1].SourceID)
	assert.Equal(t, "c", first[2].SourceID)
}

func TestExpandThrough_StopsAtHorizon(t *testing.T) {
	o := recurring("open", "Open", 100, calendar.NewPeriod(2025, 11), calendar.OpenEnded, nil)
	late := oneOff("late", "Late", 100, models.DirectionExpense, calendar.NewPeriod(2026, 5), nil)

	got := ExpandThrough(calendar.NewPeriod(2026, 2), []models.RecurringObligation{o}, []models.OneOffObligation{late})

	require.Len(t, got, 4)
	assert.Equal(t, calendar.NewPeriod(2025, 11), got[0].Period)
	assert.Equal(t, calendar.NewPeriod(2026, 2), got[3].Period)
}

func TestExpandObligation_FullRange(t *testing.T) {
	rent := rentFixture()

	got := ExpandObligation(&rent, rent.End())

	require.Len(t, got, 12)
	seen := make(map[string]bool)
	for _, inst := range got {
		assert.False(t, seen[inst.ID], "duplicate instance id %s", inst.ID)
		seen[inst.ID] = true
	}
}
