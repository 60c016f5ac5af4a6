package services

import (
	"context"
	"testing"

	"cuadra/internal/models"
	"cuadra/internal/pagination"
	"cuadra/internal/testutil"
)

func TestAuditLog(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewAuditService(db)
	user := testutil.CreateTestUser(t, db)
	group := testutil.CreateTestGroup(t, db, user.ID)

	svc.Log(user.ID, &group.ID, "CREATE_OBLIGATION", "recurring_obligation", "o-1", "10.0.0.1",
		map[string]interface{}{"amount": 120000})
	svc.Log(user.ID, nil, "UPDATE_PROFILE", "user", user.ID, "10.0.0.1", nil)

	var entries []models.AuditLog
	testutil.AssertNoError(t, db.Order("created_at, id").Find(&entries).Error)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Changes != `{"amount":120000}` {
		t.Errorf("unexpected changes %q", entries[0].Changes)
	}
	if entries[1].GroupID != nil || entries[1].Changes != "" {
		t.Errorf("expected profile entry without group or changes, got %+v", entries[1])
	}
}

func TestListGroupActivity(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (AuditServicer, *models.User, *models.Group, func()) {
		db := testutil.SetupTestDB(t)
		svc := NewAuditService(db)
		user := testutil.CreateTestUser(t, db)
		group := testutil.CreateTestGroup(t, db, user.ID)
		other := testutil.CreateTestGroup(t, db, user.ID)

		for _, action := range []string{"CREATE_GROUP", "INVITE_MEMBER", "RECORD_PAYMENT"} {
			svc.Log(user.ID, &group.ID, action, "group", group.ID, "", nil)
		}
		svc.Log(user.ID, &other.ID, "CREATE_GROUP", "group", other.ID, "", nil)
		return svc, user, group, func() { testutil.TeardownTestDB(t, db) }
	}

	t.Run("newest_first_and_scoped_to_group", func(t *testing.T) {
		svc, user, group, done := setup(t)
		defer done()

		page, err := svc.ListGroupActivity(ctx, user.ID, group.ID, pagination.PageRequest{})
		testutil.AssertNoError(t, err)

		if page.TotalItems != 3 {
			t.Fatalf("expected 3 entries, got %d", page.TotalItems)
		}
		if page.Data[0].Action != "RECORD_PAYMENT" || page.Data[2].Action != "CREATE_GROUP" {
			t.Errorf("expected newest first, got %s ... %s", page.Data[0].Action, page.Data[2].Action)
		}
	})

	t.Run("paginates", func(t *testing.T) {
		svc, user, group, done := setup(t)
		defer done()

		page, err := svc.ListGroupActivity(ctx, user.ID, group.ID, pagination.PageRequest{Page: 2, PageSize: 2})
		testutil.AssertNoError(t, err)

		if len(page.Data) != 1 || page.TotalPages != 2 {
			t.Errorf("expected 1 entry on page 2 of 2, got %d of %d", len(page.Data), page.TotalPages)
		}
	})

	t.Run("stranger_forbidden", func(t *testing.T) {
		svc, _, group, done := setup(t)
		defer done()

		_, err := svc.ListGroupActivity(ctx, "0190f8a1-0000-7000-8000-0000000000ff", group.ID, pagination.PageRequest{})
		testutil.AssertAppError(t, err, "FORBIDDEN")
	})
}
