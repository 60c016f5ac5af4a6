package models

// AuditLog records mutations of group data for later review.
type AuditLog struct {
	Base
	UserID       string  `gorm:"type:uuid;not null;index" json:"user_id"`
	GroupID      *string `gorm:"type:uuid;index" json:"group_id,omitempty"`
	Action       string  `gorm:"not null" json:"action"`
	ResourceType string  `gorm:"not null" json:"resource_type"`
	ResourceID   string  `json:"resource_id"`
	IPAddress    string  `json:"-"`
	Changes      string  `json:"changes,omitempty"`
}
