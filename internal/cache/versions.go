package cache

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"cuadra/internal/models"
)

// BumpGroup increments the version of a group inside tx and returns the new
// value. The first bump of a group creates its row at version 1.
func BumpGroup(tx *gorm.DB, groupID string) (int64, error) {
	now := time.Now()
	err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "group_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"version":    gorm.Expr("scope_versions.version + 1"),
			"updated_at": now,
		}),
	}).Create(&models.ScopeVersion{GroupID: groupID, Version: 1, UpdatedAt: now}).Error
	if err != nil {
		return 0, err
	}
	return GroupVersion(tx, groupID)
}

// BumpUserGroups increments the version of every group where the user is an
// active member and returns the new version of each.
func BumpUserGroups(tx *gorm.DB, userID string) (map[string]int64, error) {
	var groupIDs []string
	if err := tx.Model(&models.GroupMembership{}).
		Where("user_id = ? AND status = ?", userID, models.MemberStatusActive).
		Order("group_id").
		Pluck("group_id", &groupIDs).Error; err != nil {
		return nil, err
	}

	versions := make(map[string]int64, len(groupIDs))
	for _, id := range groupIDs {
		v, err := BumpGroup(tx, id)
		if err != nil {
			return nil, err
		}
		versions[id] = v
	}
	return versions, nil
}

// GroupVersion returns the current version of a group. A group that was
// never written is at version 0.
func GroupVersion(db *gorm.DB, groupID string) (int64, error) {
	var sv models.ScopeVersion
	err := db.Where("group_id = ?", groupID).Take(&sv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return sv.Version, nil
}
