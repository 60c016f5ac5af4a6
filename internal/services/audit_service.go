package services

import (
	"context"
	"encoding/json"

	"gorm.io/gorm"

	"cuadra/internal/logger"
	"cuadra/internal/models"
	"cuadra/internal/pagination"
)

var auditSortColumns = map[string]string{
	"created_at": "created_at",
	"action":     "action",
}

// auditService records and lists the mutations made to group data.
type auditService struct {
	db *gorm.DB
}

// NewAuditService creates a new AuditServicer.
func NewAuditService(db *gorm.DB) AuditServicer {
	return &auditService{db: db}
}

// Log records an audit event. Failures are logged and swallowed; the
// mutation being audited has already committed.
func (s *auditService) Log(userID string, groupID *string, action, resourceType, resourceID, ipAddress string, changes map[string]any) {
	log := logger.Named("audit")

	var changesJSON string
	if len(changes) > 0 {
		data, err := json.Marshal(changes)
		if err != nil {
			log.Errorw("Failed to marshal audit log changes", "error", err, "action", action)
		} else {
			changesJSON = string(data)
		}
	}

	entry := &models.AuditLog{
		UserID:       userID,
		GroupID:      groupID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		IPAddress:    ipAddress,
		Changes:      changesJSON,
	}
	if err := s.db.Create(entry).Error; err != nil {
		log.Errorw("Failed to create audit log entry",
			"error", err,
			"user_id", userID,
			"group_id", groupID,
			"action", action,
			"resource_type", resourceType,
			"resource_id", resourceID,
		)
	}
}

// ListGroupActivity returns a group's audit trail, newest first. Only active
// members may read it.
func (s *auditService) ListGroupActivity(ctx context.Context, userID, groupID string, page pagination.PageRequest) (*pagination.PageResponse[models.AuditLog], error) {
	page.Defaults()
	db := s.db.WithContext(ctx)

	if _, err := requireActiveMember(db, userID, groupID); err != nil {
		return nil, err
	}

	query := db.Model(&models.AuditLog{}).Where("group_id = ?", groupID)
	if page.Sort == "" && page.Order == "" {
		page.Order = "desc"
	}

	var totalItems int64
	if err := query.Count(&totalItems).Error; err != nil {
		return nil, dbError(err)
	}

	var entries []models.AuditLog
	if err := query.
		Scopes(pagination.SortBy(page, auditSortColumns, "created_at"), pagination.Paginate(page)).
		Find(&entries).Error; err != nil {
		return nil, dbError(err)
	}

	result := pagination.NewPageResponse(entries, page.Page, page.PageSize, totalItems)
	return &result, nil
}
