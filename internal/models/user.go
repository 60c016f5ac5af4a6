package models

// User is the directory entry for an identity issued by the external identity
// provider. Rows are synced from token claims; invitations resolve users here
// by email.
type User struct {
	Base
	Email       string `gorm:"uniqueIndex;not null" json:"email"`
	DisplayName string `json:"display_name"`
	IsActive    bool   `gorm:"default:true" json:"is_active"`
}
