package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"cuadra/internal/calendar"
	"cuadra/internal/models"

	"gorm.io/gorm"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// CreateTestUser creates an active user with a unique email.
func CreateTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	email := fmt.Sprintf("user%d@test.com", nextID())
	return CreateTestUserWithEmail(t, db, email)
}

// CreateTestUserWithEmail creates a user with the given email.
func CreateTestUserWithEmail(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()

	user := &models.User{
		Email:       email,
		DisplayName: email,
		IsActive:    true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateTestGroup creates a group with the creator as its active admin.
func CreateTestGroup(t *testing.T, db *gorm.DB, creatorID string) *models.Group {
	t.Helper()

	group := &models.Group{
		Name:      fmt.Sprintf("Group %d", nextID()),
		CreatedBy: creatorID,
	}
	if err := db.Create(group).Error; err != nil {
		t.Fatalf("failed to create test group: %v", err)
	}
	AddTestMember(t, db, group.ID, creatorID, models.MemberRoleAdmin, models.MemberStatusActive)
	return group
}

// AddTestMember inserts a membership row in the given role and status.
func AddTestMember(t *testing.T, db *gorm.DB, groupID, userID string, role models.MemberRole, status models.MemberStatus) *models.GroupMembership {
	t.Helper()

	now := time.Now()
	m := &models.GroupMembership{
		GroupID:   groupID,
		UserID:    userID,
		Role:      role,
		Status:    status,
		InvitedAt: &now,
	}
	if status == models.MemberStatusActive {
		m.JoinedAt = &now
	}
	if err := db.Create(m).Error; err != nil {
		t.Fatalf("failed to create test membership: %v", err)
	}
	return m
}

// CreateTestRecurring creates a recurring expense from start to end. A zero
// paymentDay leaves the obligation without a deadline.
func CreateTestRecurring(t *testing.T, db *gorm.DB, userID, groupID string, amount int64, start, end calendar.Period, paymentDay int) *models.RecurringObligation {
	t.Helper()

	o := &models.RecurringObligation{
		GroupScoped: models.GroupScoped{UserID: userID, GroupID: groupID},
		Description: fmt.Sprintf("Recurring %d", nextID()),
		Amount:      amount,
		Direction:   models.DirectionExpense,
		Category:    "housing",
		Kind:        models.KindRecurringExpense,
		StartYear:   start.Year,
		StartMonth:  start.Month,
		EndYear:     end.Year,
		EndMonth:    end.Month,
	}
	if paymentDay > 0 {
		o.PaymentDay = &paymentDay
	}
	if err := db.Create(o).Error; err != nil {
		t.Fatalf("failed to create test recurring obligation: %v", err)
	}
	return o
}

// CreateTestOneOff creates a one-off obligation in the given month.
func CreateTestOneOff(t *testing.T, db *gorm.DB, userID, groupID string, direction models.Direction, amount int64, p calendar.Period) *models.OneOffObligation {
	t.Helper()

	o := &models.OneOffObligation{
		GroupScoped: models.GroupScoped{UserID: userID, GroupID: groupID},
		Description: fmt.Sprintf("One-off %d", nextID()),
		Amount:      amount,
		Direction:   direction,
		Category:    models.CategoryUncategorized,
		Kind:        models.OneOffKind(direction, ""),
		Year:        p.Year,
		Month:       p.Month,
	}
	if err := db.Create(o).Error; err != nil {
		t.Fatalf("failed to create test one-off obligation: %v", err)
	}
	return o
}

// CreateTestPayment records a ledger entry against an obligation's period.
func CreateTestPayment(t *testing.T, db *gorm.DB, userID, groupID string, source models.Source, sourceID string, p calendar.Period, amount int64) *models.LedgerEntry {
	t.Helper()

	e := &models.LedgerEntry{
		GroupScoped: models.GroupScoped{UserID: userID, GroupID: groupID},
		Source:      source,
		SourceID:    sourceID,
		PeriodYear:  p.Year,
		PeriodMonth: p.Month,
		Amount:      amount,
		PaidAt:      calendar.DateIn(p.Year, p.Month, 1),
	}
	if err := db.Create(e).Error; err != nil {
		t.Fatalf("failed to create test payment: %v", err)
	}
	return e
}
