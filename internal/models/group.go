package models

import (
	"time"

	"cuadra/internal/uuid"

	"gorm.io/gorm"
)

// MemberRole is the role a user holds inside a group.
type MemberRole string

const (
	MemberRoleAdmin  MemberRole = "admin"
	MemberRoleMember MemberRole = "member"
)

// MemberStatus is the lifecycle state of a membership row.
type MemberStatus string

const (
	MemberStatusPendingInvitation MemberStatus = "pending_invitation"
	MemberStatusActive            MemberStatus = "active"
	MemberStatusDeactivated       MemberStatus = "deactivated"
)

// Group is a shared financial space. Every obligation and payment belongs to
// exactly one group.
type Group struct {
	Base
	Name        string `gorm:"not null" json:"name"`
	Description string `json:"description"`
	CreatedBy   string `gorm:"type:uuid;not null;index" json:"created_by"`

	Memberships []GroupMembership `gorm:"foreignKey:GroupID" json:"memberships,omitempty"`
}

// GroupMembership links a user to a group. There is exactly one row per
// (group, user); leaving, removal and rejection delete the row.
type GroupMembership struct {
	ID              string       `gorm:"type:uuid;primaryKey" json:"id"`
	GroupID         string       `gorm:"type:uuid;not null;uniqueIndex:idx_group_memberships_group_user" json:"group_id"`
	UserID          string       `gorm:"type:uuid;not null;uniqueIndex:idx_group_memberships_group_user;index" json:"user_id"`
	Role            MemberRole   `gorm:"not null" json:"role"`
	Status          MemberStatus `gorm:"not null;index" json:"status"`
	InvitedBy       *string      `gorm:"type:uuid" json:"invited_by,omitempty"`
	InvitedAt       *time.Time   `json:"invited_at,omitempty"`
	JoinedAt        *time.Time   `json:"joined_at,omitempty"`
	InviteTokenHash string       `gorm:"size:64;index" json:"-"`
	InviteExpiresAt *time.Time   `json:"invite_expires_at,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`

	User  *User  `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Group *Group `gorm:"foreignKey:GroupID" json:"group,omitempty"`
}

// BeforeCreate hook generates a UUIDv7 for new memberships
func (m *GroupMembership) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.New()
	}
	return nil
}

// IsActive reports whether the membership grants access to the group.
func (m *GroupMembership) IsActive() bool {
	return m.Status == MemberStatusActive
}

// IsAdmin reports whether the membership is an active admin.
func (m *GroupMembership) IsAdmin() bool {
	return m.IsActive() && m.Role == MemberRoleAdmin
}
