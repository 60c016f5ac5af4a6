package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"cuadra/internal/cache"
	"cuadra/internal/calendar"
	"cuadra/internal/engine"
	apperrors "cuadra/internal/errors"
	"cuadra/internal/models"
)

// Memo view names.
const (
	viewMonth  = "month"
	viewTotals = "totals"
)

// financeService serves the computed views of a group. Every read checks
// membership, then goes through the versioned memo.
type financeService struct {
	db    *gorm.DB
	sync  *cache.Sync
	clock calendar.Clock
}

// NewFinanceService creates a new FinanceServicer.
func NewFinanceService(db *gorm.DB, sync *cache.Sync, clock calendar.Clock) FinanceServicer {
	return &financeService{db: db, sync: sync, clock: clock}
}

func scopeKey(userID, groupID string, p calendar.Period) cache.ScopeKey {
	return cache.ScopeKey{UserID: userID, GroupID: groupID, Year: p.Year, Month: p.Month}
}

// dayKey scopes a key to the civil date statuses are evaluated on, so both
// the memo and the client's tag roll over at midnight.
func dayKey(key cache.ScopeKey, today time.Time) cache.ScopeKey {
	key.Day = today.Format(time.DateOnly)
	return key
}

// MonthView returns the expanded, reconciled and aggregated month.
func (s *financeService) MonthView(ctx context.Context, userID, groupID string, period calendar.Period, opts cache.ReadOptions) (*Versioned[engine.View], error) {
	if err := period.Validate(); err != nil {
		return nil, apperrors.Validation("period", err.Error())
	}
	if _, err := requireActiveMember(s.db.WithContext(ctx), userID, groupID); err != nil {
		return nil, err
	}

	today := s.clock.Today()
	key := dayKey(scopeKey(userID, groupID, period), today)
	res, err := cache.Load(ctx, s.sync, key, viewMonth, opts,
		func(ctx context.Context) (engine.View, error) {
			return s.computeMonth(ctx, groupID, period, today)
		})
	if err != nil {
		return nil, dbError(err)
	}
	return &Versioned[engine.View]{Data: res.Value, Version: res.Version, Day: res.Day, NotModified: res.NotModified}, nil
}

func (s *financeService) computeMonth(ctx context.Context, groupID string, period calendar.Period, today time.Time) (engine.View, error) {
	db := s.db.WithContext(ctx)
	idx := period.Index()

	var recurring []models.RecurringObligation
	if err := db.Where("group_id = ? AND (start_year * 12 + start_month) <= ? AND (end_year * 12 + end_month) >= ?", groupID, idx, idx).
		Find(&recurring).Error; err != nil {
		return engine.View{}, err
	}

	var oneOffs []models.OneOffObligation
	if err := db.Where("group_id = ? AND year = ? AND month = ?", groupID, period.Year, period.Month).
		Find(&oneOffs).Error; err != nil {
		return engine.View{}, err
	}

	var entries []models.LedgerEntry
	if err := db.Where("group_id = ? AND period_year = ? AND period_month = ?", groupID, period.Year, period.Month).
		Find(&entries).Error; err != nil {
		return engine.View{}, err
	}

	lifetime, err := s.lifetimeSaved(db, groupID, period)
	if err != nil {
		return engine.View{}, err
	}

	return engine.BuildView(period, recurring, oneOffs, entries, lifetime, today), nil
}

// lifetimeSaved sums every payment ever made to the group's savings and goal
// obligations up to period, including obligations that have already ended.
func (s *financeService) lifetimeSaved(db *gorm.DB, groupID string, period calendar.Period) (int64, error) {
	savingsKinds := []models.MovementKind{models.KindSavings, models.KindRecurringGoal}

	var recurring []models.RecurringObligation
	if err := db.Select("id", "direction", "category", "is_goal").
		Where("group_id = ? AND direction = ? AND kind IN ?", groupID, models.DirectionExpense, savingsKinds).
		Find(&recurring).Error; err != nil {
		return 0, err
	}
	var oneOffs []models.OneOffObligation
	if err := db.Select("id", "direction", "category").
		Where("group_id = ? AND direction = ? AND kind = ?", groupID, models.DirectionExpense, models.KindSavings).
		Find(&oneOffs).Error; err != nil {
		return 0, err
	}

	sources := engine.SavingsSources(recurring, oneOffs)
	if len(sources) == 0 {
		return 0, nil
	}
	ids := make([]string, 0, len(sources))
	for id := range sources {
		ids = append(ids, id)
	}

	var entries []models.LedgerEntry
	if err := db.Select("source_id", "period_year", "period_month", "amount").
		Where("group_id = ? AND source_id IN ?", groupID, ids).
		Find(&entries).Error; err != nil {
		return 0, err
	}
	return engine.LifetimeSaved(entries, sources, period), nil
}

// ExpandAndReconcile returns the month's instances with their payment status.
func (s *financeService) ExpandAndReconcile(ctx context.Context, userID, groupID string, period calendar.Period, opts cache.ReadOptions) (*Versioned[[]engine.Instance], error) {
	v, err := s.MonthView(ctx, userID, groupID, period, opts)
	if err != nil {
		return nil, err
	}
	return &Versioned[[]engine.Instance]{Data: v.Data.Instances, Version: v.Version, Day: v.Day, NotModified: v.NotModified}, nil
}

// MonthlySummary returns the month's totals.
func (s *financeService) MonthlySummary(ctx context.Context, userID, groupID string, period calendar.Period, opts cache.ReadOptions) (*Versioned[engine.MonthlySummary], error) {
	v, err := s.MonthView(ctx, userID, groupID, period, opts)
	if err != nil {
		return nil, err
	}
	return &Versioned[engine.MonthlySummary]{Data: v.Data.Summary, Version: v.Version, Day: v.Day, NotModified: v.NotModified}, nil
}

// CategoryRollup returns the month's expenses grouped by category.
func (s *financeService) CategoryRollup(ctx context.Context, userID, groupID string, period calendar.Period, opts cache.ReadOptions) (*Versioned[[]engine.CategoryStat], error) {
	v, err := s.MonthView(ctx, userID, groupID, period, opts)
	if err != nil {
		return nil, err
	}
	return &Versioned[[]engine.CategoryStat]{Data: v.Data.Categories, Version: v.Version, Day: v.Day, NotModified: v.NotModified}, nil
}

// Savings returns the month's savings bucket.
func (s *financeService) Savings(ctx context.Context, userID, groupID string, period calendar.Period, opts cache.ReadOptions) (*Versioned[engine.SavingsSummary], error) {
	v, err := s.MonthView(ctx, userID, groupID, period, opts)
	if err != nil {
		return nil, err
	}
	return &Versioned[engine.SavingsSummary]{Data: v.Data.Savings, Version: v.Version, Day: v.Day, NotModified: v.NotModified}, nil
}

// GroupFinancialSummary totals every instance of the group from each
// obligation's start through the current month.
func (s *financeService) GroupFinancialSummary(ctx context.Context, userID, groupID string, opts cache.ReadOptions) (*Versioned[engine.GroupTotals], error) {
	if _, err := requireActiveMember(s.db.WithContext(ctx), userID, groupID); err != nil {
		return nil, err
	}

	today := s.clock.Today()
	horizon := calendar.PeriodOf(today)
	res, err := cache.Load(ctx, s.sync, dayKey(scopeKey(userID, groupID, horizon), today), viewTotals, opts,
		func(ctx context.Context) (engine.GroupTotals, error) {
			db := s.db.WithContext(ctx)
			var recurring []models.RecurringObligation
			if err := db.Where("group_id = ? AND (start_year * 12 + start_month) <= ?", groupID, horizon.Index()).
				Find(&recurring).Error; err != nil {
				return engine.GroupTotals{}, err
			}
			var oneOffs []models.OneOffObligation
			if err := db.Where("group_id = ? AND (year * 12 + month) <= ?", groupID, horizon.Index()).
				Find(&oneOffs).Error; err != nil {
				return engine.GroupTotals{}, err
			}
			return engine.Totals(engine.ExpandThrough(horizon, recurring, oneOffs)), nil
		})
	if err != nil {
		return nil, dbError(err)
	}
	return &Versioned[engine.GroupTotals]{Data: res.Value, Version: res.Version, Day: res.Day, NotModified: res.NotModified}, nil
}

// GoalProgress evaluates a savings goal across all of its installments.
func (s *financeService) GoalProgress(ctx context.Context, userID, groupID, obligationID string) (*engine.GoalProgress, error) {
	db := s.db.WithContext(ctx)
	if _, err := requireActiveMember(db, userID, groupID); err != nil {
		return nil, err
	}

	var goal models.RecurringObligation
	if err := db.Where("id = ? AND group_id = ?", obligationID, groupID).Take(&goal).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrObligationNotFound
		}
		return nil, dbError(err)
	}
	if !goal.IsGoal {
		return nil, apperrors.Validation("id", "obligation is not a goal")
	}

	var entries []models.LedgerEntry
	if err := db.Where("group_id = ? AND source = ? AND source_id = ?", groupID, models.SourceRecurring, goal.ID).
		Find(&entries).Error; err != nil {
		return nil, dbError(err)
	}

	progress := engine.GoalProgressFor(&goal, entries, s.clock.Today())
	return &progress, nil
}
