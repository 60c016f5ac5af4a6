package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"cuadra/internal/calendar"
	apperrors "cuadra/internal/errors"
	"cuadra/internal/models"
	"cuadra/internal/pagination"
)

const maxDescriptionLength = 255

var obligationSortColumns = map[string]string{
	"description": "description",
	"amount":      "amount",
	"category":    "category",
	"created_at":  "created_at",
}

// obligationService declares recurring and one-off obligations.
type obligationService struct {
	db          *gorm.DB
	invalidator Invalidator
}

// NewObligationService creates a new ObligationServicer.
func NewObligationService(db *gorm.DB, invalidator Invalidator) ObligationServicer {
	return &obligationService{db: db, invalidator: invalidator}
}

func validateMovement(description string, amount int64, direction models.Direction) (string, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return "", apperrors.Validation("description", "description is required")
	}
	if len(description) > maxDescriptionLength {
		return "", apperrors.Validation("description", "description must be at most 255 characters")
	}
	if amount <= 0 {
		return "", apperrors.Validation("amount", "amount must be positive")
	}
	if direction != models.DirectionIncome && direction != models.DirectionExpense {
		return "", apperrors.Validation("direction", "direction must be income or expense")
	}
	return description, nil
}

// buildRecurring validates in and returns the row it describes.
func buildRecurring(in RecurringInput) (*models.RecurringObligation, error) {
	description, err := validateMovement(in.Description, in.Amount, in.Direction)
	if err != nil {
		return nil, err
	}
	if err := in.Start.Validate(); err != nil {
		return nil, apperrors.Validation("start", err.Error())
	}

	end := calendar.OpenEnded
	switch {
	case in.End != nil:
		end = *in.End
	case in.Installments != nil:
		if *in.Installments < 1 {
			return nil, apperrors.Validation("installments", "installments must be at least 1")
		}
		end.Year, end.Month = calendar.AddInstallments(in.Start.Year, in.Start.Month, *in.Installments)
	}
	if err := end.Validate(); err != nil {
		return nil, apperrors.Validation("end", err.Error())
	}
	if end.Before(in.Start) {
		return nil, apperrors.Validation("end", "end must not be before start")
	}

	if in.PaymentDay != nil && (*in.PaymentDay < 1 || *in.PaymentDay > 31) {
		return nil, apperrors.Validation("payment_day", "payment day must be between 1 and 31")
	}
	if in.IsGoal {
		if in.Direction != models.DirectionExpense {
			return nil, apperrors.Validation("is_goal", "only expenses can be goals")
		}
		if end.IsOpenEnded() {
			return nil, apperrors.Validation("is_goal", "a goal needs an end month")
		}
	}

	category := models.NormalizeCategory(in.Category)
	return &models.RecurringObligation{
		Description: description,
		Amount:      in.Amount,
		Direction:   in.Direction,
		Category:    category,
		Kind:        models.RecurringKind(in.Direction, category, in.IsGoal),
		StartYear:   in.Start.Year,
		StartMonth:  in.Start.Month,
		EndYear:     end.Year,
		EndMonth:    end.Month,
		PaymentDay:  in.PaymentDay,
		IsGoal:      in.IsGoal,
	}, nil
}

func buildOneOff(in OneOffInput) (*models.OneOffObligation, error) {
	description, err := validateMovement(in.Description, in.Amount, in.Direction)
	if err != nil {
		return nil, err
	}
	if err := in.Period.Validate(); err != nil {
		return nil, apperrors.Validation("period", err.Error())
	}

	o := &models.OneOffObligation{
		Description: description,
		Amount:      in.Amount,
		Direction:   in.Direction,
		Category:    models.NormalizeCategory(in.Category),
		Year:        in.Period.Year,
		Month:       in.Period.Month,
	}
	o.Kind = models.OneOffKind(in.Direction, o.Category)
	if in.DeadlineDate != nil {
		d := calendar.Civil(*in.DeadlineDate)
		o.DeadlineDate = &d
	}
	return o, nil
}

// canModify reports whether the member may change a row owned by ownerID.
func canModify(m *models.GroupMembership, ownerID string) bool {
	return m.UserID == ownerID || m.IsAdmin()
}

// CreateRecurring declares a recurring obligation in a group.
func (s *obligationService) CreateRecurring(ctx context.Context, userID, groupID string, in RecurringInput) (*models.RecurringObligation, error) {
	o, err := buildRecurring(in)
	if err != nil {
		return nil, err
	}
	o.UserID = userID
	o.GroupID = groupID

	err = writeTx(ctx, s.db, s.invalidator, userID, func(tx *gorm.DB) (string, error) {
		if _, err := requireActiveMember(tx, userID, groupID); err != nil {
			return "", err
		}
		return groupID, tx.Create(o).Error
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}

// loadRecurring returns a recurring obligation and the caller's membership in
// its group. Rows in groups the caller cannot see are reported as missing.
func loadRecurring(db *gorm.DB, userID, id string) (*models.RecurringObligation, *models.GroupMembership, error) {
	var o models.RecurringObligation
	if err := db.Where("id = ?", id).Take(&o).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, apperrors.ErrObligationNotFound
		}
		return nil, nil, dbError(err)
	}
	m, err := requireActiveMember(db, userID, o.GroupID)
	if errors.Is(err, apperrors.ErrForbidden) {
		return nil, nil, apperrors.ErrObligationNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	return &o, m, nil
}

func loadOneOff(db *gorm.DB, userID, id string) (*models.OneOffObligation, *models.GroupMembership, error) {
	var o models.OneOffObligation
	if err := db.Where("id = ?", id).Take(&o).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, apperrors.ErrObligationNotFound
		}
		return nil, nil, dbError(err)
	}
	m, err := requireActiveMember(db, userID, o.GroupID)
	if errors.Is(err, apperrors.ErrForbidden) {
		return nil, nil, apperrors.ErrObligationNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	return &o, m, nil
}

// GetRecurring returns a recurring obligation visible to the caller.
func (s *obligationService) GetRecurring(ctx context.Context, userID, obligationID string) (*models.RecurringObligation, error) {
	o, _, err := loadRecurring(s.db.WithContext(ctx), userID, obligationID)
	return o, err
}

// ListRecurring returns a page of a group's recurring obligations.
func (s *obligationService) ListRecurring(ctx context.Context, userID, groupID string, page pagination.PageRequest) (*pagination.PageResponse[models.RecurringObligation], error) {
	page.Defaults()
	db := s.db.WithContext(ctx)
	if _, err := requireActiveMember(db, userID, groupID); err != nil {
		return nil, err
	}

	base := db.Model(&models.RecurringObligation{}).Where("group_id = ?", groupID)

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, dbError(err)
	}

	var items []models.RecurringObligation
	if err := base.
		Scopes(pagination.SortBy(page, obligationSortColumns, "created_at"), pagination.Paginate(page)).
		Find(&items).Error; err != nil {
		return nil, dbError(err)
	}

	result := pagination.NewPageResponse(items, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// UpdateRecurring replaces the writable fields of a recurring obligation.
// Only its owner or a group admin may do so.
func (s *obligationService) UpdateRecurring(ctx context.Context, userID, obligationID string, in RecurringInput) (*models.RecurringObligation, error) {
	next, err := buildRecurring(in)
	if err != nil {
		return nil, err
	}

	var o *models.RecurringObligation
	err = writeTx(ctx, s.db, s.invalidator, userID, func(tx *gorm.DB) (string, error) {
		current, m, err := loadRecurring(tx, userID, obligationID)
		if err != nil {
			return "", err
		}
		if !canModify(m, current.UserID) {
			return "", apperrors.ErrForbidden
		}
		if err := requireNoPaymentsOutside(tx, models.SourceRecurring, current.ID, current.GroupID, next.Start(), next.End()); err != nil {
			return "", err
		}

		result := tx.Model(&models.RecurringObligation{}).
			Where("id = ? AND group_id = ?", current.ID, current.GroupID).
			Updates(map[string]interface{}{
				"description": next.Description,
				"amount":      next.Amount,
				"direction":   next.Direction,
				"category":    next.Category,
				"kind":        next.Kind,
				"start_year":  next.StartYear,
				"start_month": next.StartMonth,
				"end_year":    next.EndYear,
				"end_month":   next.EndMonth,
				"payment_day": next.PaymentDay,
				"is_goal":     next.IsGoal,
			})
		if result.Error != nil {
			return "", result.Error
		}
		if result.RowsAffected == 0 {
			return "", apperrors.ErrObligationNotFound
		}

		o = &models.RecurringObligation{}
		if err := tx.Where("id = ?", current.ID).Take(o).Error; err != nil {
			return "", err
		}
		return current.GroupID, nil
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}

// DeleteRecurring soft-deletes a recurring obligation and its payments. Past
// instances disappear with it.
func (s *obligationService) DeleteRecurring(ctx context.Context, userID, obligationID string) error {
	return writeTx(ctx, s.db, s.invalidator, userID, func(tx *gorm.DB) (string, error) {
		o, m, err := loadRecurring(tx, userID, obligationID)
		if err != nil {
			return "", err
		}
		if !canModify(m, o.UserID) {
			return "", apperrors.ErrForbidden
		}
		return o.GroupID, deleteObligationTx(tx, &models.RecurringObligation{}, models.SourceRecurring, o.ID, o.GroupID)
	})
}

// requireNoPaymentsOutside rejects an update that would leave payments of the
// obligation tagged to months outside [from, to].
func requireNoPaymentsOutside(tx *gorm.DB, source models.Source, id, groupID string, from, to calendar.Period) error {
	var count int64
	if err := tx.Model(&models.LedgerEntry{}).
		Where("group_id = ? AND source = ? AND source_id = ?", groupID, source, id).
		Where("((period_year * 12 + period_month) < ? OR (period_year * 12 + period_month) > ?)", from.Index(), to.Index()).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return apperrors.WithMessage(apperrors.ErrConflict,
			fmt.Sprintf("%d payment(s) fall outside the new range; delete them first", count))
	}
	return nil
}

func deleteObligationTx(tx *gorm.DB, model interface{}, source models.Source, id, groupID string) error {
	result := tx.Where("id = ? AND group_id = ?", id, groupID).Delete(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrObligationNotFound
	}
	return tx.Where("group_id = ? AND source = ? AND source_id = ?", groupID, source, id).
		Delete(&models.LedgerEntry{}).Error
}

// CreateOneOff declares a one-off obligation in a group.
func (s *obligationService) CreateOneOff(ctx context.Context, userID, groupID string, in OneOffInput) (*models.OneOffObligation, error) {
	o, err := buildOneOff(in)
	if err != nil {
		return nil, err
	}
	o.UserID = userID
	o.GroupID = groupID

	err = writeTx(ctx, s.db, s.invalidator, userID, func(tx *gorm.DB) (string, error) {
		if _, err := requireActiveMember(tx, userID, groupID); err != nil {
			return "", err
		}
		return groupID, tx.Create(o).Error
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}

// GetOneOff returns a one-off obligation visible to the caller.
func (s *obligationService) GetOneOff(ctx context.Context, userID, obligationID string) (*models.OneOffObligation, error) {
	o, _, err := loadOneOff(s.db.WithContext(ctx), userID, obligationID)
	return o, err
}

// ListOneOffs returns a page of a group's one-off obligations.
func (s *obligationService) ListOneOffs(ctx context.Context, userID, groupID string, page pagination.PageRequest) (*pagination.PageResponse[models.OneOffObligation], error) {
	page.Defaults()
	db := s.db.WithContext(ctx)
	if _, err := requireActiveMember(db, userID, groupID); err != nil {
		return nil, err
	}

	base := db.Model(&models.OneOffObligation{}).Where("group_id = ?", groupID)

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, dbError(err)
	}

	var items []models.OneOffObligation
	if err := base.
		Scopes(pagination.SortBy(page, obligationSortColumns, "created_at"), pagination.Paginate(page)).
		Find(&items).Error; err != nil {
		return nil, dbError(err)
	}

	result := pagination.NewPageResponse(items, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// UpdateOneOff replaces the writable fields of a one-off obligation.
func (s *obligationService) UpdateOneOff(ctx context.Context, userID, obligationID string, in OneOffInput) (*models.OneOffObligation, error) {
	next, err := buildOneOff(in)
	if err != nil {
		return nil, err
	}

	var o *models.OneOffObligation
	err = writeTx(ctx, s.db, s.invalidator, userID, func(tx *gorm.DB) (string, error) {
		current, m, err := loadOneOff(tx, userID, obligationID)
		if err != nil {
			return "", err
		}
		if !canModify(m, current.UserID) {
			return "", apperrors.ErrForbidden
		}
		if err := requireNoPaymentsOutside(tx, models.SourceOneOff, current.ID, current.GroupID, next.Period(), next.Period()); err != nil {
			return "", err
		}

		result := tx.Model(&models.OneOffObligation{}).
			Where("id = ? AND group_id = ?", current.ID, current.GroupID).
			Updates(map[string]interface{}{
				"description":   next.Description,
				"amount":        next.Amount,
				"direction":     next.Direction,
				"category":      next.Category,
				"kind":          next.Kind,
				"year":          next.Year,
				"month":         next.Month,
				"deadline_date": next.DeadlineDate,
			})
		if result.Error != nil {
			return "", result.Error
		}
		if result.RowsAffected == 0 {
			return "", apperrors.ErrObligationNotFound
		}

		o = &models.OneOffObligation{}
		if err := tx.Where("id = ?", current.ID).Take(o).Error; err != nil {
			return "", err
		}
		return current.GroupID, nil
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}

// DeleteOneOff soft-deletes a one-off obligation and its payments.
func (s *obligationService) DeleteOneOff(ctx context.Context, userID, obligationID string) error {
	return writeTx(ctx, s.db, s.invalidator, userID, func(tx *gorm.DB) (string, error) {
		o, m, err := loadOneOff(tx, userID, obligationID)
		if err != nil {
			return "", err
		}
		if !canModify(m, o.UserID) {
			return "", apperrors.ErrForbidden
		}
		return o.GroupID, deleteObligationTx(tx, &models.OneOffObligation{}, models.SourceOneOff, o.ID, o.GroupID)
	})
}
