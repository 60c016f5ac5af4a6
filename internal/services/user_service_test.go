package services

import (
	"context"
	"testing"

	"cuadra/internal/testutil"
	"cuadra/internal/uuid"
)

func TestEnsureUser(t *testing.T) {
	ctx := context.Background()

	t.Run("creates_on_first_sight", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewUserService(db)
		id := uuid.New()

		user, err := svc.EnsureUser(ctx, id, "Alice@Example.COM", "Alice")
		testutil.AssertNoError(t, err)

		if user.ID != id {
			t.Errorf("expected id %s, got %s", id, user.ID)
		}
		if user.Email != "alice@example.com" {
			t.Errorf("expected lowercased email, got %s", user.Email)
		}
		if !user.IsActive {
			t.Error("expected user to be active")
		}
	})

	t.Run("refreshes_changed_claims", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewUserService(db)
		id := uuid.New()

		_, err := svc.EnsureUser(ctx, id, "old@example.com", "Old")
		testutil.AssertNoError(t, err)
		user, err := svc.EnsureUser(ctx, id, "new@example.com", "New")
		testutil.AssertNoError(t, err)

		if user.Email != "new@example.com" || user.DisplayName != "New" {
			t.Errorf("expected refreshed claims, got %s / %s", user.Email, user.DisplayName)
		}
	})

	t.Run("email_taken_by_other_user", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewUserService(db)
		testutil.CreateTestUserWithEmail(t, db, "taken@example.com")

		_, err := svc.EnsureUser(ctx, uuid.New(), "taken@example.com", "")
		testutil.AssertAppError(t, err, "CONFLICT")
	})

	t.Run("missing_email", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewUserService(db)

		_, err := svc.EnsureUser(ctx, uuid.New(), "  ", "")
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})
}

func TestGetUserByEmail(t *testing.T) {
	ctx := context.Background()

	t.Run("found_case_insensitive", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewUserService(db)
		created := testutil.CreateTestUserWithEmail(t, db, "bob@example.com")

		user, err := svc.GetUserByEmail(ctx, "BOB@example.com")
		testutil.AssertNoError(t, err)
		if user.ID != created.ID {
			t.Errorf("expected user %s, got %s", created.ID, user.ID)
		}
	})

	t.Run("not_found", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewUserService(db)

		_, err := svc.GetUserByEmail(ctx, "nobody@example.com")
		testutil.AssertAppError(t, err, "USER_NOT_FOUND")
	})
}

func TestGetUserByID(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewUserService(db)

	_, err := svc.GetUserByID(context.Background(), uuid.New())
	testutil.AssertAppError(t, err, "USER_NOT_FOUND")
}

func TestUpdateProfile(t *testing.T) {
	ctx := context.Background()

	t.Run("valid", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewUserService(db)
		user := testutil.CreateTestUser(t, db)

		updated, err := svc.UpdateProfile(ctx, user.ID, "  Carol ")
		testutil.AssertNoError(t, err)
		if updated.DisplayName != "Carol" {
			t.Errorf("expected display name Carol, got %q", updated.DisplayName)
		}
	})

	t.Run("empty_name", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewUserService(db)
		user := testutil.CreateTestUser(t, db)

		_, err := svc.UpdateProfile(ctx, user.ID, "")
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})
}
