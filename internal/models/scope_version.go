package models

import "time"

// ScopeVersion holds the version token shared by every (user, year, month)
// scope of a group. It only ever grows.
type ScopeVersion struct {
	GroupID   string    `gorm:"type:uuid;primaryKey" json:"group_id"`
	Version   int64     `gorm:"type:bigint;not null;default:0" json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}
