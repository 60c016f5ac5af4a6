package services

import (
	"context"

	"gorm.io/gorm"

	"cuadra/internal/cache"
	"cuadra/internal/calendar"
	apperrors "cuadra/internal/errors"
)

// syncService exposes version tokens to clients.
type syncService struct {
	db   *gorm.DB
	sync *cache.Sync
}

// NewSyncService creates a new SyncServicer.
func NewSyncService(db *gorm.DB, sync *cache.Sync) SyncServicer {
	return &syncService{db: db, sync: sync}
}

// CurrentVersion returns the version token of a group month.
func (s *syncService) CurrentVersion(ctx context.Context, userID, groupID string, period calendar.Period) (int64, error) {
	if err := period.Validate(); err != nil {
		return 0, apperrors.Validation("period", err.Error())
	}
	if _, err := requireActiveMember(s.db.WithContext(ctx), userID, groupID); err != nil {
		return 0, err
	}
	v, err := s.sync.CurrentVersion(ctx, scopeKey(userID, groupID, period))
	if err != nil {
		return 0, dbError(err)
	}
	return v, nil
}

// Invalidate bumps the version of one group, or of every group the user is an
// active member of, and returns the highest new version.
func (s *syncService) Invalidate(ctx context.Context, userID string, groupID *string) (int64, error) {
	if groupID != nil {
		if _, err := requireActiveMember(s.db.WithContext(ctx), userID, *groupID); err != nil {
			return 0, err
		}
	}
	change, err := s.sync.Invalidate(ctx, userID, groupID)
	if err != nil {
		return 0, dbError(err)
	}
	return change.Version(), nil
}

// InvalidateGroup bumps a group's version on behalf of another service. It
// performs no membership check and must only be reachable from trusted
// callers.
func (s *syncService) InvalidateGroup(ctx context.Context, groupID string) (int64, error) {
	if _, err := loadGroup(s.db.WithContext(ctx), groupID); err != nil {
		return 0, err
	}
	change, err := s.sync.Invalidate(ctx, "", &groupID)
	if err != nil {
		return 0, dbError(err)
	}
	return change.Version(), nil
}
