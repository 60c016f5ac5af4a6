package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"cuadra/internal/calendar"
	apperrors "cuadra/internal/errors"
	"cuadra/internal/models"
	"cuadra/internal/pagination"
)

const maxNoteLength = 500

var paymentSortColumns = map[string]string{
	"paid_at":    "paid_at",
	"amount":     "amount",
	"created_at": "created_at",
}

// paymentService records payments (abonos) against obligation instances.
type paymentService struct {
	db          *gorm.DB
	invalidator Invalidator
	clock       calendar.Clock
}

// NewPaymentService creates a new PaymentServicer.
func NewPaymentService(db *gorm.DB, invalidator Invalidator, clock calendar.Clock) PaymentServicer {
	return &paymentService{db: db, invalidator: invalidator, clock: clock}
}

func validateNote(note string) (string, error) {
	note = strings.TrimSpace(note)
	if len(note) > maxNoteLength {
		return "", apperrors.Validation("note", "note must be at most 500 characters")
	}
	return note, nil
}

// obligationGroup authorizes the caller against the obligation a payment
// refers to and returns its group. When period is set it must be one of the
// obligation's instances.
func obligationGroup(tx *gorm.DB, userID string, source models.Source, sourceID string, period *calendar.Period) (string, error) {
	switch source {
	case models.SourceRecurring:
		o, _, err := loadRecurring(tx, userID, sourceID)
		if err != nil {
			return "", err
		}
		if period != nil && !o.Covers(*period) {
			return "", apperrors.Validation("period", "period is outside the obligation's range")
		}
		return o.GroupID, nil
	case models.SourceOneOff:
		o, _, err := loadOneOff(tx, userID, sourceID)
		if err != nil {
			return "", err
		}
		if period != nil && o.Period() != *period {
			return "", apperrors.Validation("period", "period must match the obligation's month")
		}
		return o.GroupID, nil
	default:
		return "", apperrors.Validation("source", "source must be recurring or one_off")
	}
}

// RecordPayment adds a full or partial payment to one instance of an
// obligation. PaidAt defaults to today.
func (s *paymentService) RecordPayment(ctx context.Context, userID string, in PaymentInput) (*models.LedgerEntry, error) {
	if in.Source != models.SourceRecurring && in.Source != models.SourceOneOff {
		return nil, apperrors.Validation("source", "source must be recurring or one_off")
	}
	if strings.TrimSpace(in.SourceID) == "" {
		return nil, apperrors.Validation("source_id", "source_id is required")
	}
	if err := in.Period.Validate(); err != nil {
		return nil, apperrors.Validation("period", err.Error())
	}
	if in.Amount <= 0 {
		return nil, apperrors.Validation("amount", "amount must be positive")
	}
	note, err := validateNote(in.Note)
	if err != nil {
		return nil, err
	}

	paidAt := s.clock.Today()
	if in.PaidAt != nil {
		paidAt = calendar.Civil(*in.PaidAt)
	}

	entry := &models.LedgerEntry{
		Source:      in.Source,
		SourceID:    in.SourceID,
		PeriodYear:  in.Period.Year,
		PeriodMonth: in.Period.Month,
		Amount:      in.Amount,
		PaidAt:      paidAt,
		Note:        note,
	}
	err = writeTx(ctx, s.db, s.invalidator, userID, func(tx *gorm.DB) (string, error) {
		groupID, err := obligationGroup(tx, userID, in.Source, in.SourceID, &in.Period)
		if err != nil {
			return "", err
		}
		entry.UserID = userID
		entry.GroupID = groupID
		return groupID, tx.Create(entry).Error
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// loadPayment returns a ledger entry and the caller's membership in its
// group. Entries in groups the caller cannot see are reported as missing.
func loadPayment(db *gorm.DB, userID, id string) (*models.LedgerEntry, *models.GroupMembership, error) {
	var e models.LedgerEntry
	if err := db.Where("id = ?", id).Take(&e).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, apperrors.ErrPaymentNotFound
		}
		return nil, nil, dbError(err)
	}
	m, err := requireActiveMember(db, userID, e.GroupID)
	if errors.Is(err, apperrors.ErrForbidden) {
		return nil, nil, apperrors.ErrPaymentNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	return &e, m, nil
}

// GetPayment returns a payment visible to the caller.
func (s *paymentService) GetPayment(ctx context.Context, userID, paymentID string) (*models.LedgerEntry, error) {
	e, _, err := loadPayment(s.db.WithContext(ctx), userID, paymentID)
	return e, err
}

// ListPayments returns a page of the payments recorded against an
// obligation.
func (s *paymentService) ListPayments(ctx context.Context, userID string, source models.Source, sourceID string, page pagination.PageRequest) (*pagination.PageResponse[models.LedgerEntry], error) {
	page.Defaults()
	db := s.db.WithContext(ctx)

	groupID, err := obligationGroup(db, userID, source, sourceID, nil)
	if err != nil {
		return nil, err
	}

	base := db.Model(&models.LedgerEntry{}).
		Where("group_id = ? AND source = ? AND source_id = ?", groupID, source, sourceID)

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, dbError(err)
	}

	var entries []models.LedgerEntry
	if err := base.
		Scopes(pagination.SortBy(page, paymentSortColumns, "paid_at"), pagination.Paginate(page)).
		Find(&entries).Error; err != nil {
		return nil, dbError(err)
	}

	result := pagination.NewPageResponse(entries, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// UpdatePayment changes the amount, date or note of a payment. Only the
// member who recorded it or a group admin may do so.
func (s *paymentService) UpdatePayment(ctx context.Context, userID, paymentID string, in PaymentUpdate) (*models.LedgerEntry, error) {
	updates := make(map[string]interface{})
	if in.Amount != nil {
		if *in.Amount <= 0 {
			return nil, apperrors.Validation("amount", "amount must be positive")
		}
		updates["amount"] = *in.Amount
	}
	if in.PaidAt != nil {
		updates["paid_at"] = calendar.Civil(*in.PaidAt)
	}
	if in.Note != nil {
		note, err := validateNote(*in.Note)
		if err != nil {
			return nil, err
		}
		updates["note"] = note
	}

	var entry *models.LedgerEntry
	err := writeTx(ctx, s.db, s.invalidator, userID, func(tx *gorm.DB) (string, error) {
		current, m, err := loadPayment(tx, userID, paymentID)
		if err != nil {
			return "", err
		}
		if !canModify(m, current.UserID) {
			return "", apperrors.ErrForbidden
		}

		if len(updates) > 0 {
			result := tx.Model(&models.LedgerEntry{}).
				Where("id = ? AND group_id = ?", current.ID, current.GroupID).
				Updates(updates)
			if result.Error != nil {
				return "", result.Error
			}
			if result.RowsAffected == 0 {
				return "", apperrors.ErrPaymentNotFound
			}
		}

		entry = &models.LedgerEntry{}
		if err := tx.Where("id = ?", current.ID).Take(entry).Error; err != nil {
			return "", err
		}
		return current.GroupID, nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// DeletePayment soft-deletes a payment.
func (s *paymentService) DeletePayment(ctx context.Context, userID, paymentID string) error {
	return writeTx(ctx, s.db, s.invalidator, userID, func(tx *gorm.DB) (string, error) {
		e, m, err := loadPayment(tx, userID, paymentID)
		if err != nil {
			return "", err
		}
		if !canModify(m, e.UserID) {
			return "", apperrors.ErrForbidden
		}
		result := tx.Where("id = ? AND group_id = ?", e.ID, e.GroupID).Delete(&models.LedgerEntry{})
		if result.Error != nil {
			return "", result.Error
		}
		if result.RowsAffected == 0 {
			return "", apperrors.ErrPaymentNotFound
		}
		return e.GroupID, nil
	})
}
