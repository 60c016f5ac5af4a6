package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	apperrors "cuadra/internal/errors"
	"cuadra/internal/models"
)

// userService keeps the user directory in step with the identity provider.
type userService struct {
	db *gorm.DB
}

// NewUserService creates a new UserServicer.
func NewUserService(db *gorm.DB) UserServicer {
	return &userService{db: db}
}

// EnsureUser creates the directory row for an authenticated identity, or
// refreshes its email and display name when they changed.
func (s *userService) EnsureUser(ctx context.Context, id, email, displayName string) (*models.User, error) {
	if id == "" {
		return nil, apperrors.ErrUnauthorized
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, apperrors.Validation("email", "email claim is required")
	}

	var user models.User
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		user = models.User{
			Base:        models.Base{ID: id},
			Email:       email,
			DisplayName: displayName,
			IsActive:    true,
		}
		if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return nil, apperrors.WithMessage(apperrors.ErrConflict, "email is already linked to another user")
			}
			return nil, dbError(err)
		}
		return &user, nil
	}
	if err != nil {
		return nil, dbError(err)
	}

	updates := make(map[string]interface{})
	if user.Email != email {
		updates["email"] = email
	}
	if displayName != "" && user.DisplayName != displayName {
		updates["display_name"] = displayName
	}
	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(&user).Updates(updates).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return nil, apperrors.WithMessage(apperrors.ErrConflict, "email is already linked to another user")
			}
			return nil, dbError(err)
		}
	}
	return &user, nil
}

// GetUserByID retrieves a user by ID
func (s *userService) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, dbError(err)
	}
	return &user, nil
}

// GetUserByEmail retrieves an active user by email
func (s *userService) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).
		Where("email = ? AND is_active = ?", strings.ToLower(strings.TrimSpace(email)), true).
		Take(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, dbError(err)
	}
	return &user, nil
}

// UpdateProfile changes the user's display name.
func (s *userService) UpdateProfile(ctx context.Context, id, displayName string) (*models.User, error) {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return nil, apperrors.Validation("display_name", "display name is required")
	}

	user, err := s.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(user).Update("display_name", displayName).Error; err != nil {
		return nil, dbError(err)
	}
	return user, nil
}
