package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	apperrors "cuadra/internal/errors"
	"cuadra/internal/models"
	"cuadra/internal/pagination"
)

const maxGroupNameLength = 100

var groupSortColumns = map[string]string{
	"name":       "name",
	"created_at": "created_at",
}

// groupService owns groups and the membership state machine:
// pending_invitation -> active <-> deactivated. Leaving, removal and
// rejection delete the row.
type groupService struct {
	db          *gorm.DB
	invalidator Invalidator
	inviteTTL   time.Duration
	now         func() time.Time
}

// NewGroupService creates a new GroupServicer.
func NewGroupService(db *gorm.DB, invalidator Invalidator, inviteTTL time.Duration) GroupServicer {
	return &groupService{
		db:          db,
		invalidator: invalidator,
		inviteTTL:   inviteTTL,
		now:         time.Now,
	}
}

func validateGroupName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", apperrors.Validation("name", "name is required")
	}
	if len(name) > maxGroupNameLength {
		return "", apperrors.Validation("name", "name must be at most 100 characters")
	}
	return name, nil
}

// CreateGroup creates a group with the caller as its active admin.
func (s *groupService) CreateGroup(ctx context.Context, userID, name, description string) (*models.Group, error) {
	name, err := validateGroupName(name)
	if err != nil {
		return nil, err
	}

	group := &models.Group{
		Name:        name,
		Description: strings.TrimSpace(description),
		CreatedBy:   userID,
	}
	err = writeTx(ctx, s.db, s.invalidator, userID, func(tx *gorm.DB) (string, error) {
		if err := tx.Create(group).Error; err != nil {
			return "", err
		}
		now := s.now()
		membership := &models.GroupMembership{
			GroupID:   group.ID,
			UserID:    userID,
			Role:      models.MemberRoleAdmin,
			Status:    models.MemberStatusActive,
			InvitedAt: &now,
			JoinedAt:  &now,
		}
		if err := tx.Create(membership).Error; err != nil {
			return "", err
		}
		return group.ID, nil
	})
	if err != nil {
		return nil, err
	}
	return group, nil
}

// GetGroup returns a group the caller is an active member of.
func (s *groupService) GetGroup(ctx context.Context, userID, groupID string) (*models.Group, error) {
	db := s.db.WithContext(ctx)
	if _, err := requireActiveMember(db, userID, groupID); err != nil {
		return nil, err
	}
	return loadGroup(db, groupID)
}

func loadGroup(db *gorm.DB, groupID string) (*models.Group, error) {
	var group models.Group
	if err := db.Where("id = ?", groupID).Take(&group).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrGroupNotFound
		}
		return nil, dbError(err)
	}
	return &group, nil
}

// UpdateGroup renames or redescribes a group. Admins only.
func (s *groupService) UpdateGroup(ctx context.Context, userID, groupID string, name, description *string) (*models.Group, error) {
	updates := make(map[string]interface{})
	if name != nil {
		n, err := validateGroupName(*name)
		if err != nil {
			return nil, err
		}
		updates["name"] = n
	}
	if description != nil {
		updates["description"] = strings.TrimSpace(*description)
	}

	var group *models.Group
	err := writeTx(ctx, s.db, s.invalidator, userID, func(tx *gorm.DB) (string, error) {
		if _, err := requireAdmin(tx, userID, groupID); err != nil {
			return "", err
		}
		var err error
		group, err = loadGroup(tx, groupID)
		if err != nil {
			return "", err
		}
		if len(updates) > 0 {
			if err := tx.Model(group).Updates(updates).Error; err != nil {
				return "", err
			}
		}
		return groupID, nil
	})
	if err != nil {
		return nil, err
	}
	return group, nil
}

// ListUserGroups returns the groups where the user is an active member.
func (s *groupService) ListUserGroups(ctx context.Context, userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Group], error) {
	page.Defaults()
	db := s.db.WithContext(ctx)

	memberOf := db.Model(&models.GroupMembership{}).
		Select("group_id").
		Where("user_id = ? AND status = ?", userID, models.MemberStatusActive)
	base := db.Model(&models.Group{}).Where("id IN (?)", memberOf)

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, dbError(err)
	}

	var groups []models.Group
	if err := base.
		Scopes(pagination.SortBy(page, groupSortColumns, "created_at"), pagination.Paginate(page)).
		Find(&groups).Error; err != nil {
		return nil, dbError(err)
	}

	result := pagination.NewPageResponse(groups, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// DeleteGroup removes a group and everything in it. Only the creator may
// delete a group. Audit logs and the version counter are kept.
func (s *groupService) DeleteGroup(ctx context.Context, callerID, groupID string) error {
	return writeTx(ctx, s.db, s.invalidator, callerID, func(tx *gorm.DB) (string, error) {
		if _, err := requireActiveMember(tx, callerID, groupID); err != nil {
			return "", err
		}
		group, err := loadGroup(tx, groupID)
		if err != nil {
			return "", err
		}
		if group.CreatedBy != callerID {
			return "", apperrors.ErrForbidden
		}
		return groupID, deleteGroupTx(tx, groupID)
	})
}

func deleteGroupTx(tx *gorm.DB, groupID string) error {
	cascade := []interface{}{
		&models.LedgerEntry{},
		&models.RecurringObligation{},
		&models.OneOffObligation{},
		&models.GroupMembership{},
	}
	for _, model := range cascade {
		if err := tx.Unscoped().Where("group_id = ?", groupID).Delete(model).Error; err != nil {
			return err
		}
	}
	return tx.Unscoped().Where("id = ?", groupID).Delete(&models.Group{}).Error
}

// ListMembers returns every membership row of a group, pending ones included.
func (s *groupService) ListMembers(ctx context.Context, callerID, groupID string) ([]models.GroupMembership, error) {
	db := s.db.WithContext(ctx)
	if _, err := requireActiveMember(db, callerID, groupID); err != nil {
		return nil, err
	}

	var members []models.GroupMembership
	if err := db.Preload("User").
		Where("group_id = ?", groupID).
		Order("created_at").Order("id").
		Find(&members).Error; err != nil {
		return nil, dbError(err)
	}
	return members, nil
}

// Invite creates a pending membership for the user with the given email, or
// refreshes an existing pending or deactivated one.
func (s *groupService) Invite(ctx context.Context, callerID, groupID, email string) (*Invitation, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, apperrors.Validation("email", "email is required")
	}

	token, tokenHash, err := newInviteToken()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var membership *models.GroupMembership
	err = writeTx(ctx, s.db, s.invalidator, callerID, func(tx *gorm.DB) (string, error) {
		if _, err := requireAdmin(tx, callerID, groupID); err != nil {
			return "", err
		}

		var target models.User
		if err := tx.Where("email = ? AND is_active = ?", email, true).Take(&target).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return "", apperrors.ErrUserNotFound
			}
			return "", err
		}

		existing, err := findMembership(tx, target.ID, groupID)
		if err != nil {
			return "", err
		}

		now := s.now()
		expires := now.Add(s.inviteTTL)
		if existing == nil {
			membership = &models.GroupMembership{
				GroupID:         groupID,
				UserID:          target.ID,
				Role:            models.MemberRoleMember,
				Status:          models.MemberStatusPendingInvitation,
				InvitedBy:       &callerID,
				InvitedAt:       &now,
				InviteTokenHash: tokenHash,
				InviteExpiresAt: &expires,
			}
			if err := tx.Create(membership).Error; err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return "", apperrors.ErrConflict
				}
				return "", err
			}
			return groupID, nil
		}

		if existing.IsActive() {
			return "", apperrors.ErrAlreadyMember
		}

		result := tx.Model(&models.GroupMembership{}).
			Where("id = ? AND status = ?", existing.ID, existing.Status).
			Updates(map[string]interface{}{
				"status":            models.MemberStatusPendingInvitation,
				"role":              models.MemberRoleMember,
				"invited_by":        callerID,
				"invited_at":        now,
				"joined_at":         nil,
				"invite_token_hash": tokenHash,
				"invite_expires_at": expires,
			})
		if result.Error != nil {
			return "", result.Error
		}
		if result.RowsAffected == 0 {
			return "", apperrors.ErrConflict
		}

		existing.Status = models.MemberStatusPendingInvitation
		existing.Role = models.MemberRoleMember
		existing.InvitedBy = &callerID
		existing.InvitedAt = &now
		existing.JoinedAt = nil
		existing.InviteTokenHash = tokenHash
		existing.InviteExpiresAt = &expires
		membership = existing
		return groupID, nil
	})
	if err != nil {
		return nil, err
	}
	return &Invitation{Membership: membership, Token: token}, nil
}

// ListPendingInvitations returns the invitations waiting for the user.
func (s *groupService) ListPendingInvitations(ctx context.Context, userID string) ([]models.GroupMembership, error) {
	var pending []models.GroupMembership
	if err := s.db.WithContext(ctx).Preload("Group").
		Where("user_id = ? AND status = ?", userID, models.MemberStatusPendingInvitation).
		Order("invited_at DESC").Order("id").
		Find(&pending).Error; err != nil {
		return nil, dbError(err)
	}
	return pending, nil
}

// Accept activates the caller's pending invitation to a group.
func (s *groupService) Accept(ctx context.Context, callerID, groupID string) (*models.GroupMembership, error) {
	var membership *models.GroupMembership
	err := writeTx(ctx, s.db, s.invalidator, callerID, func(tx *gorm.DB) (string, error) {
		m, err := findMembership(tx, callerID, groupID)
		if err != nil {
			return "", err
		}
		if m == nil {
			return "", apperrors.ErrInvitationNotFound
		}
		if err := s.acceptTx(tx, m); err != nil {
			return "", err
		}
		membership = m
		return groupID, nil
	})
	if err != nil {
		return nil, err
	}
	return membership, nil
}

// AcceptToken activates the invitation identified by a one-time token. The
// token only works for the user it was issued to.
func (s *groupService) AcceptToken(ctx context.Context, callerID, token string) (*models.GroupMembership, error) {
	if strings.TrimSpace(token) == "" {
		return nil, apperrors.Validation("token", "token is required")
	}

	var membership *models.GroupMembership
	err := writeTx(ctx, s.db, s.invalidator, callerID, func(tx *gorm.DB) (string, error) {
		var m models.GroupMembership
		err := tx.Where("invite_token_hash = ? AND status = ?", hashToken(token), models.MemberStatusPendingInvitation).
			Take(&m).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", apperrors.ErrInvitationNotFound
		}
		if err != nil {
			return "", err
		}
		if m.UserID != callerID {
			return "", apperrors.ErrInvitationNotFound
		}
		if err := s.acceptTx(tx, &m); err != nil {
			return "", err
		}
		membership = &m
		return m.GroupID, nil
	})
	if err != nil {
		return nil, err
	}
	return membership, nil
}

func (s *groupService) acceptTx(tx *gorm.DB, m *models.GroupMembership) error {
	if m.Status != models.MemberStatusPendingInvitation {
		return apperrors.ErrInvitationNotFound
	}
	now := s.now()
	if m.InviteExpiresAt != nil && now.After(*m.InviteExpiresAt) {
		return apperrors.ErrInvitationExpired
	}

	result := tx.Model(&models.GroupMembership{}).
		Where("id = ? AND status = ?", m.ID, models.MemberStatusPendingInvitation).
		Updates(map[string]interface{}{
			"status":            models.MemberStatusActive,
			"joined_at":         now,
			"invite_token_hash": "",
			"invite_expires_at": nil,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrInvitationNotFound
	}

	m.Status = models.MemberStatusActive
	m.JoinedAt = &now
	m.InviteTokenHash = ""
	m.InviteExpiresAt = nil
	return nil
}

// Reject deletes the caller's pending invitation.
func (s *groupService) Reject(ctx context.Context, callerID, groupID string) error {
	return writeTx(ctx, s.db, s.invalidator, callerID, func(tx *gorm.DB) (string, error) {
		result := tx.Where("group_id = ? AND user_id = ? AND status = ?", groupID, callerID, models.MemberStatusPendingInvitation).
			Delete(&models.GroupMembership{})
		if result.Error != nil {
			return "", result.Error
		}
		if result.RowsAffected == 0 {
			return "", apperrors.ErrInvitationNotFound
		}
		return groupID, nil
	})
}

// Leave removes the caller from a group. The creator may only leave as the
// last active member, which deletes the group.
func (s *groupService) Leave(ctx context.Context, callerID, groupID string) error {
	return writeTx(ctx, s.db, s.invalidator, callerID, func(tx *gorm.DB) (string, error) {
		m, err := requireActiveMember(tx, callerID, groupID)
		if err != nil {
			return "", err
		}
		group, err := loadGroup(tx, groupID)
		if err != nil {
			return "", err
		}

		if group.CreatedBy == callerID {
			var others int64
			if err := tx.Model(&models.GroupMembership{}).
				Where("group_id = ? AND user_id <> ? AND status = ?", groupID, callerID, models.MemberStatusActive).
				Count(&others).Error; err != nil {
				return "", err
			}
			if others > 0 {
				return "", apperrors.ErrOwnerCannotLeave
			}
			return groupID, deleteGroupTx(tx, groupID)
		}

		result := tx.Where("id = ? AND status = ?", m.ID, models.MemberStatusActive).Delete(&models.GroupMembership{})
		if result.Error != nil {
			return "", result.Error
		}
		if result.RowsAffected == 0 {
			return "", apperrors.ErrConflict
		}
		return groupID, nil
	})
}

// targetMember loads the membership an admin wants to act on. Admins cannot
// target themselves or the group creator.
func targetMember(tx *gorm.DB, callerID, groupID, targetID string) (*models.GroupMembership, error) {
	if _, err := requireAdmin(tx, callerID, groupID); err != nil {
		return nil, err
	}
	if targetID == callerID {
		return nil, apperrors.Validation("user_id", "cannot target yourself; use leave instead")
	}
	group, err := loadGroup(tx, groupID)
	if err != nil {
		return nil, err
	}
	if group.CreatedBy == targetID {
		return nil, apperrors.ErrCannotTargetCreator
	}

	m, err := findMembership(tx, targetID, groupID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, apperrors.ErrMemberNotFound
	}
	return m, nil
}

// RemoveMember deletes another member's row, whatever its status.
func (s *groupService) RemoveMember(ctx context.Context, callerID, groupID, targetID string) error {
	return writeTx(ctx, s.db, s.invalidator, callerID, func(tx *gorm.DB) (string, error) {
		m, err := targetMember(tx, callerID, groupID, targetID)
		if err != nil {
			return "", err
		}
		result := tx.Where("id = ?", m.ID).Delete(&models.GroupMembership{})
		if result.Error != nil {
			return "", result.Error
		}
		if result.RowsAffected == 0 {
			return "", apperrors.ErrMemberNotFound
		}
		return groupID, nil
	})
}

// DeactivateMember suspends an active member's access.
func (s *groupService) DeactivateMember(ctx context.Context, callerID, groupID, targetID string) (*models.GroupMembership, error) {
	return s.transition(ctx, callerID, groupID, targetID, models.MemberStatusActive, models.MemberStatusDeactivated)
}

// ReactivateMember restores a deactivated member's access.
func (s *groupService) ReactivateMember(ctx context.Context, callerID, groupID, targetID string) (*models.GroupMembership, error) {
	return s.transition(ctx, callerID, groupID, targetID, models.MemberStatusDeactivated, models.MemberStatusActive)
}

func (s *groupService) transition(ctx context.Context, callerID, groupID, targetID string, from, to models.MemberStatus) (*models.GroupMembership, error) {
	var membership *models.GroupMembership
	err := writeTx(ctx, s.db, s.invalidator, callerID, func(tx *gorm.DB) (string, error) {
		m, err := targetMember(tx, callerID, groupID, targetID)
		if err != nil {
			return "", err
		}
		if m.Status != from {
			return "", apperrors.WithMessage(apperrors.ErrConflict, "member is "+string(m.Status))
		}
		result := tx.Model(&models.GroupMembership{}).
			Where("id = ? AND status = ?", m.ID, from).
			Update("status", to)
		if result.Error != nil {
			return "", result.Error
		}
		if result.RowsAffected == 0 {
			return "", apperrors.ErrConflict
		}
		m.Status = to
		membership = m
		return groupID, nil
	})
	if err != nil {
		return nil, err
	}
	return membership, nil
}

// ChangeRole promotes or demotes another member.
func (s *groupService) ChangeRole(ctx context.Context, callerID, groupID, targetID string, role models.MemberRole) (*models.GroupMembership, error) {
	if role != models.MemberRoleAdmin && role != models.MemberRoleMember {
		return nil, apperrors.Validation("role", "role must be admin or member")
	}

	var membership *models.GroupMembership
	err := writeTx(ctx, s.db, s.invalidator, callerID, func(tx *gorm.DB) (string, error) {
		m, err := targetMember(tx, callerID, groupID, targetID)
		if err != nil {
			return "", err
		}
		if err := tx.Model(&models.GroupMembership{}).Where("id = ?", m.ID).Update("role", role).Error; err != nil {
			return "", err
		}
		m.Role = role
		membership = m
		return groupID, nil
	})
	if err != nil {
		return nil, err
	}
	return membership, nil
}

// RequireActiveMember returns the caller's membership when it grants access.
func (s *groupService) RequireActiveMember(ctx context.Context, userID, groupID string) (*models.GroupMembership, error) {
	return requireActiveMember(s.db.WithContext(ctx), userID, groupID)
}

// RequireAdmin returns the caller's membership when it is an active admin.
func (s *groupService) RequireAdmin(ctx context.Context, userID, groupID string) (*models.GroupMembership, error) {
	return requireAdmin(s.db.WithContext(ctx), userID, groupID)
}
