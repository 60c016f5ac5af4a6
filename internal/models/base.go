package models

import (
	"time"

	"cuadra/internal/uuid"

	"gorm.io/gorm"
)

// Base contains common columns for all soft-deletable tables
type Base struct {
	ID        string         `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// BeforeCreate hook generates a UUIDv7 for new records
func (b *Base) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.New()
	}
	return nil
}

// GroupScoped carries the owner and group of a row. Every read and write of a
// group-scoped row is filtered on GroupID.
type GroupScoped struct {
	UserID  string `gorm:"type:uuid;not null;index" json:"user_id"`
	GroupID string `gorm:"type:uuid;not null;index" json:"group_id"`
}
