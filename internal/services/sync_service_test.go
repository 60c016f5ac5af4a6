package services

import (
	"context"
	"testing"

	"cuadra/internal/calendar"
	"cuadra/internal/testutil"
)

func TestSyncService(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewSyncService(db, newTestSync(db))
	user := testutil.CreateTestUser(t, db)
	stranger := testutil.CreateTestUser(t, db)
	group := testutil.CreateTestGroup(t, db, user.ID)
	june := calendar.NewPeriod(2025, 6)

	v0, err := svc.CurrentVersion(ctx, user.ID, group.ID, june)
	testutil.AssertNoError(t, err)

	v1, err := svc.Invalidate(ctx, user.ID, &group.ID)
	testutil.AssertNoError(t, err)
	testutil.AssertVersionIncreased(t, v0, v1)

	v2, err := svc.Invalidate(ctx, user.ID, nil)
	testutil.AssertNoError(t, err)
	testutil.AssertVersionIncreased(t, v1, v2)

	_, err = svc.Invalidate(ctx, stranger.ID, &group.ID)
	testutil.AssertAppError(t, err, "FORBIDDEN")
	_, err = svc.CurrentVersion(ctx, stranger.ID, group.ID, june)
	testutil.AssertAppError(t, err, "FORBIDDEN")
}

func TestSyncService_InvalidateGroup(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewSyncService(db, newTestSync(db))
	user := testutil.CreateTestUser(t, db)
	group := testutil.CreateTestGroup(t, db, user.ID)

	before, err := svc.CurrentVersion(ctx, user.ID, group.ID, calendar.NewPeriod(2025, 6))
	testutil.AssertNoError(t, err)
	after, err := svc.InvalidateGroup(ctx, group.ID)
	testutil.AssertNoError(t, err)
	testutil.AssertVersionIncreased(t, before, after)

	_, err = svc.InvalidateGroup(ctx, "00000000-0000-0000-0000-000000000000")
	testutil.AssertAppError(t, err, "GROUP_NOT_FOUND")
}
