package services

import (
	"context"
	"testing"
	"time"

	"gorm.io/gorm"

	"cuadra/internal/cache"
	"cuadra/internal/calendar"
	"cuadra/internal/models"
	"cuadra/internal/pagination"
	"cuadra/internal/testutil"
)

const defaultInviteTTL = 7 * 24 * time.Hour

func newTestSync(db *gorm.DB) *cache.Sync {
	return cache.NewSync(db, 64, time.Minute, nil)
}

func newTestGroupService(db *gorm.DB) *groupService {
	return NewGroupService(db, newTestSync(db), defaultInviteTTL).(*groupService)
}

func membershipOf(t *testing.T, db *gorm.DB, groupID, userID string) *models.GroupMembership {
	t.Helper()
	m, err := findMembership(db, userID, groupID)
	testutil.AssertNoError(t, err)
	return m
}

func TestCreateGroup(t *testing.T) {
	ctx := context.Background()

	t.Run("creator_is_active_admin", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newTestGroupService(db)
		user := testutil.CreateTestUser(t, db)

		group, err := svc.CreateGroup(ctx, user.ID, "  Flat 4B ", "shared rent")
		testutil.AssertNoError(t, err)

		if group.Name != "Flat 4B" {
			t.Errorf("expected trimmed name, got %q", group.Name)
		}
		m := membershipOf(t, db, group.ID, user.ID)
		if m == nil || !m.IsAdmin() {
			t.Fatalf("expected creator to be an active admin, got %+v", m)
		}

		v, err := cache.GroupVersion(db, group.ID)
		testutil.AssertNoError(t, err)
		if v != 1 {
			t.Errorf("expected version 1 after create, got %d", v)
		}
	})

	t.Run("empty_name", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newTestGroupService(db)
		user := testutil.CreateTestUser(t, db)

		_, err := svc.CreateGroup(ctx, user.ID, "   ", "")
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})
}

func TestGetGroup(t *testing.T) {
	ctx := context.Background()

	t.Run("non_member_forbidden", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newTestGroupService(db)
		owner := testutil.CreateTestUser(t, db)
		stranger := testutil.CreateTestUser(t, db)
		group := testutil.CreateTestGroup(t, db, owner.ID)

		_, err := svc.GetGroup(ctx, stranger.ID, group.ID)
		testutil.AssertAppError(t, err, "FORBIDDEN")
	})

	t.Run("missing_group_also_forbidden", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newTestGroupService(db)
		user := testutil.CreateTestUser(t, db)

		_, err := svc.GetGroup(ctx, user.ID, "00000000-0000-0000-0000-000000000000")
		testutil.AssertAppError(t, err, "FORBIDDEN")
	})
}

func TestUpdateGroup(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := newTestGroupService(db)
	owner := testutil.CreateTestUser(t, db)
	member := testutil.CreateTestUser(t, db)
	group := testutil.CreateTestGroup(t, db, owner.ID)
	testutil.AddTestMember(t, db, group.ID, member.ID, models.MemberRoleMember, models.MemberStatusActive)

	name := "Renamed"
	_, err := svc.UpdateGroup(ctx, member.ID, group.ID, &name, nil)
	testutil.AssertAppError(t, err, "FORBIDDEN")

	updated, err := svc.UpdateGroup(ctx, owner.ID, group.ID, &name, nil)
	testutil.AssertNoError(t, err)
	if updated.Name != "Renamed" {
		t.Errorf("expected name Renamed, got %s", updated.Name)
	}
}

func TestListUserGroups(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := newTestGroupService(db)
	user := testutil.CreateTestUser(t, db)
	other := testutil.CreateTestUser(t, db)

	testutil.CreateTestGroup(t, db, user.ID)
	testutil.CreateTestGroup(t, db, user.ID)
	pending := testutil.CreateTestGroup(t, db, other.ID)
	testutil.AddTestMember(t, db, pending.ID, user.ID, models.MemberRoleMember, models.MemberStatusPendingInvitation)

	result, err := svc.ListUserGroups(context.Background(), user.ID, pagination.PageRequest{})
	testutil.AssertNoError(t, err)

	if result.TotalItems != 2 {
		t.Errorf("expected 2 groups, got %d", result.TotalItems)
	}
	for _, g := range result.Data {
		if g.ID == pending.ID {
			t.Error("pending invitation should not list the group")
		}
	}
}

func TestInvite(t *testing.T) {
	ctx := context.Background()

	t.Run("creates_pending_invitation", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newTestGroupService(db)
		owner := testutil.CreateTestUser(t, db)
		invitee := testutil.CreateTestUserWithEmail(t, db, "guest@example.com")
		group := testutil.CreateTestGroup(t, db, owner.ID)

		inv, err := svc.Invite(ctx, owner.ID, group.ID, "Guest@Example.com")
		testutil.AssertNoError(t, err)

		if inv.Token == "" {
			t.Fatal("expected a token")
		}
		if inv.Membership.Status != models.MemberStatusPendingInvitation {
			t.Errorf("expected pending status, got %s", inv.Membership.Status)
		}
		stored := membershipOf(t, db, group.ID, invitee.ID)
		if stored.InviteTokenHash != hashToken(inv.Token) {
			t.Error("expected only the token hash to be stored")
		}
	})

	t.Run("unknown_email", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newTestGroupService(db)
		owner := testutil.CreateTestUser(t, db)
		group := testutil.CreateTestGroup(t, db, owner.ID)

		_, err := svc.Invite(ctx, owner.ID, group.ID, "ghost@example.com")
		testutil.AssertAppError(t, err, "USER_NOT_FOUND")
	})

	t.Run("non_admin_forbidden", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newTestGroupService(db)
		owner := testutil.CreateTestUser(t, db)
		member := testutil.CreateTestUser(t, db)
		testutil.CreateTestUserWithEmail(t, db, "third@example.com")
		group := testutil.CreateTestGroup(t, db, owner.ID)
		testutil.AddTestMember(t, db, group.ID, member.ID, models.MemberRoleMember, models.MemberStatusActive)

		_, err := svc.Invite(ctx, member.ID, group.ID, "third@example.com")
		testutil.AssertAppError(t, err, "FORBIDDEN")
	})

	t.Run("already_member", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newTestGroupService(db)
		owner := testutil.CreateTestUser(t, db)
		member := testutil.CreateTestUserWithEmail(t, db, "member@example.com")
		group := testutil.CreateTestGroup(t, db, owner.ID)
		testutil.AddTestMember(t, db, group.ID, member.ID, models.MemberRoleMember, models.MemberStatusActive)

		_, err := svc.Invite(ctx, owner.ID, group.ID, "member@example.com")
		testutil.AssertAppError(t, err, "ALREADY_MEMBER")
	})

	t.Run("refreshes_deactivated_member", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newTestGroupService(db)
		owner := testutil.CreateTestUser(t, db)
		member := testutil.CreateTestUserWithEmail(t, db, "back@example.com")
		group := testutil.CreateTestGroup(t, db, owner.ID)
		testutil.AddTestMember(t, db, group.ID, member.ID, models.MemberRoleAdmin, models.MemberStatusDeactivated)

		inv, err := svc.Invite(ctx, owner.ID, group.ID, "back@example.com")
		testutil.AssertNoError(t, err)

		stored := membershipOf(t, db, group.ID, member.ID)
		if stored.Status != models.MemberStatusPendingInvitation || stored.Role != models.MemberRoleMember {
			t.Errorf("expected pending member, got %s %s", stored.Status, stored.Role)
		}
		if stored.ID != inv.Membership.ID {
			t.Error("expected the existing row to be reused")
		}
	})
}

func TestAccept(t *testing.T) {
	ctx := context.Background()

	t.Run("pending_becomes_active", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newTestGroupService(db)
		owner := testutil.CreateTestUser(t, db)
		invitee := testutil.CreateTestUserWithEmail(t, db, "new@example.com")
		group := testutil.CreateTestGroup(t, db, owner.ID)

		_, err := svc.Invite(ctx, owner.ID, group.ID, "new@example.com")
		testutil.AssertNoError(t, err)

		m, err := svc.Accept(ctx, invitee.ID, group.ID)
		testutil.AssertNoError(t, err)
		if !m.IsActive() || m.JoinedAt == nil {
			t.Errorf("expected active membership with join date, got %+v", m)
		}

		_, err = svc.Accept(ctx, invitee.ID, group.ID)
		testutil.AssertAppError(t, err, "INVITATION_NOT_FOUND")
	})

	t.Run("no_invitation", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newTestGroupService(db)
		owner := testutil.CreateTestUser(t, db)
		stranger := testutil.CreateTestUser(t, db)
		group := testutil.CreateTestGroup(t, db, owner.ID)

		_, err := svc.Accept(ctx, stranger.ID, group.ID)
		testutil.AssertAppError(t, err, "INVITATION_NOT_FOUND")
	})

	t.Run("expired", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newTestGroupService(db)
		owner := testutil.CreateTestUser(t, db)
		invitee := testutil.CreateTestUserWithEmail(t, db, "late@example.com")
		group := testutil.CreateTestGroup(t, db, owner.ID)

		_, err := svc.Invite(ctx, owner.ID, group.ID, "late@example.com")
		testutil.AssertNoError(t, err)

		svc.now = func() time.Time { return time.Now().Add(8 * 24 * time.Hour) }
		_, err = svc.Accept(ctx, invitee.ID, group.ID)
		testutil.AssertAppError(t, err, "INVITATION_EXPIRED")
	})
}

func TestAcceptToken(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := newTestGroupService(db)
	owner := testutil.CreateTestUser(t, db)
	invitee := testutil.CreateTestUserWithEmail(t, db, "tok@example.com")
	other := testutil.CreateTestUser(t, db)
	group := testutil.CreateTestGroup(t, db, owner.ID)

	inv, err := svc.Invite(ctx, owner.ID, group.ID, "tok@example.com")
	testutil.AssertNoError(t, err)

	_, err = svc.AcceptToken(ctx, other.ID, inv.Token)
	testutil.AssertAppError(t, err, "INVITATION_NOT_FOUND")

	_, err = svc.AcceptToken(ctx, invitee.ID, "not-a-token")
	testutil.AssertAppError(t, err, "INVITATION_NOT_FOUND")

	m, err := svc.AcceptToken(ctx, invitee.ID, inv.Token)
	testutil.AssertNoError(t, err)
	if m.GroupID != group.ID || !m.IsActive() {
		t.Errorf("expected active membership in %s, got %+v", group.ID, m)
	}

	_, err = svc.AcceptToken(ctx, invitee.ID, inv.Token)
	testutil.AssertAppError(t, err, "INVITATION_NOT_FOUND")
}

func TestReject(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := newTestGroupService(db)
	owner := testutil.CreateTestUser(t, db)
	invitee := testutil.CreateTestUser(t, db)
	group := testutil.CreateTestGroup(t, db, owner.ID)
	testutil.AddTestMember(t, db, group.ID, invitee.ID, models.MemberRoleMember, models.MemberStatusPendingInvitation)

	testutil.AssertNoError(t, svc.Reject(ctx, invitee.ID, group.ID))
	if membershipOf(t, db, group.ID, invitee.ID) != nil {
		t.Error("expected the pending row to be deleted")
	}

	err := svc.Reject(ctx, invitee.ID, group.ID)
	testutil.AssertAppError(t, err, "INVITATION_NOT_FOUND")
}

func TestLeave(t *testing.T) {
	ctx := context.Background()

	t.Run("member_leaves", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newTestGroupService(db)
		owner := testutil.CreateTestUser(t, db)
		member := testutil.CreateTestUser(t, db)
		group := testutil.CreateTestGroup(t, db, owner.ID)
		testutil.AddTestMember(t, db, group.ID, member.ID, models.MemberRoleMember, models.MemberStatusActive)

		testutil.AssertNoError(t, svc.Leave(ctx, member.ID, group.ID))
		if membershipOf(t, db, group.ID, member.ID) != nil {
			t.Error("expected membership to be deleted")
		}
	})

	t.Run("owner_cannot_leave_with_members", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newTestGroupService(db)
		owner := testutil.CreateTestUser(t, db)
		member := testutil.CreateTestUser(t, db)
		group := testutil.CreateTestGroup(t, db, owner.ID)
		testutil.AddTestMember(t, db, group.ID, member.ID, models.MemberRoleMember, models.MemberStatusActive)

		err := svc.Leave(ctx, owner.ID, group.ID)
		testutil.AssertAppError(t, err, "OWNER_CANNOT_LEAVE")
	})

	t.Run("last_owner_deletes_group", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newTestGroupService(db)
		owner := testutil.CreateTestUser(t, db)
		group := testutil.CreateTestGroup(t, db, owner.ID)
		o := testutil.CreateTestRecurring(t, db, owner.ID, group.ID, 1000, calendar.NewPeriod(2025, 1), calendar.OpenEnded, 5)
		testutil.CreateTestPayment(t, db, owner.ID, group.ID, models.SourceRecurring, o.ID, calendar.NewPeriod(2025, 1), 1000)

		testutil.AssertNoError(t, svc.Leave(ctx, owner.ID, group.ID))

		var count int64
		db.Unscoped().Model(&models.Group{}).Where("id = ?", group.ID).Count(&count)
		if count != 0 {
			t.Error("expected group to be deleted")
		}
		db.Unscoped().Model(&models.LedgerEntry{}).Where("group_id = ?", group.ID).Count(&count)
		if count != 0 {
			t.Error("expected ledger entries to be deleted")
		}
	})

	t.Run("non_member", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newTestGroupService(db)
		owner := testutil.CreateTestUser(t, db)
		stranger := testutil.CreateTestUser(t, db)
		group := testutil.CreateTestGroup(t, db, owner.ID)

		err := svc.Leave(ctx, stranger.ID, group.ID)
		testutil.AssertAppError(t, err, "FORBIDDEN")
	})
}

func TestRemoveMember(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := newTestGroupService(db)
	owner := testutil.CreateTestUser(t, db)
	admin := testutil.CreateTestUser(t, db)
	member := testutil.CreateTestUser(t, db)
	group := testutil.CreateTestGroup(t, db, owner.ID)
	testutil.AddTestMember(t, db, group.ID, admin.ID, models.MemberRoleAdmin, models.MemberStatusActive)
	testutil.AddTestMember(t, db, group.ID, member.ID, models.MemberRoleMember, models.MemberStatusActive)

	t.Run("member_cannot_remove", func(t *testing.T) {
		err := svc.RemoveMember(ctx, member.ID, group.ID, admin.ID)
		testutil.AssertAppError(t, err, "FORBIDDEN")
	})

	t.Run("cannot_target_self", func(t *testing.T) {
		err := svc.RemoveMember(ctx, admin.ID, group.ID, admin.ID)
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})

	t.Run("cannot_target_creator", func(t *testing.T) {
		err := svc.RemoveMember(ctx, admin.ID, group.ID, owner.ID)
		testutil.AssertAppError(t, err, "FORBIDDEN")
	})

	t.Run("admin_removes_member", func(t *testing.T) {
		testutil.AssertNoError(t, svc.RemoveMember(ctx, admin.ID, group.ID, member.ID))
		if membershipOf(t, db, group.ID, member.ID) != nil {
			t.Error("expected membership to be deleted")
		}
	})

	t.Run("unknown_member", func(t *testing.T) {
		err := svc.RemoveMember(ctx, admin.ID, group.ID, member.ID)
		testutil.AssertAppError(t, err, "MEMBER_NOT_FOUND")
	})
}

func TestDeactivateReactivate(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := newTestGroupService(db)
	owner := testutil.CreateTestUser(t, db)
	member := testutil.CreateTestUser(t, db)
	group := testutil.CreateTestGroup(t, db, owner.ID)
	testutil.AddTestMember(t, db, group.ID, member.ID, models.MemberRoleMember, models.MemberStatusActive)

	m, err := svc.DeactivateMember(ctx, owner.ID, group.ID, member.ID)
	testutil.AssertNoError(t, err)
	if m.Status != models.MemberStatusDeactivated {
		t.Errorf("expected deactivated, got %s", m.Status)
	}

	_, err = svc.GetGroup(ctx, member.ID, group.ID)
	testutil.AssertAppError(t, err, "FORBIDDEN")

	_, err = svc.DeactivateMember(ctx, owner.ID, group.ID, member.ID)
	testutil.AssertAppError(t, err, "CONFLICT")

	m, err = svc.ReactivateMember(ctx, owner.ID, group.ID, member.ID)
	testutil.AssertNoError(t, err)
	if !m.IsActive() {
		t.Errorf("expected active, got %s", m.Status)
	}
}

func TestChangeRole(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := newTestGroupService(db)
	owner := testutil.CreateTestUser(t, db)
	member := testutil.CreateTestUser(t, db)
	group := testutil.CreateTestGroup(t, db, owner.ID)
	testutil.AddTestMember(t, db, group.ID, member.ID, models.MemberRoleMember, models.MemberStatusActive)

	_, err := svc.ChangeRole(ctx, owner.ID, group.ID, member.ID, "owner")
	testutil.AssertAppError(t, err, "INVALID_INPUT")

	m, err := svc.ChangeRole(ctx, owner.ID, group.ID, member.ID, models.MemberRoleAdmin)
	testutil.AssertNoError(t, err)
	if !m.IsAdmin() {
		t.Error("expected member to be promoted")
	}

	_, err = svc.ChangeRole(ctx, member.ID, group.ID, owner.ID, models.MemberRoleMember)
	testutil.AssertAppError(t, err, "FORBIDDEN")
}

func TestDeleteGroup(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := newTestGroupService(db)
	owner := testutil.CreateTestUser(t, db)
	admin := testutil.CreateTestUser(t, db)
	group := testutil.CreateTestGroup(t, db, owner.ID)
	testutil.AddTestMember(t, db, group.ID, admin.ID, models.MemberRoleAdmin, models.MemberStatusActive)
	testutil.CreateTestOneOff(t, db, owner.ID, group.ID, models.DirectionExpense, 500, calendar.NewPeriod(2025, 6))

	err := svc.DeleteGroup(ctx, admin.ID, group.ID)
	testutil.AssertAppError(t, err, "FORBIDDEN")

	before, _ := cache.GroupVersion(db, group.ID)
	testutil.AssertNoError(t, svc.DeleteGroup(ctx, owner.ID, group.ID))

	var count int64
	db.Unscoped().Model(&models.OneOffObligation{}).Where("group_id = ?", group.ID).Count(&count)
	if count != 0 {
		t.Error("expected obligations to be deleted")
	}
	db.Model(&models.GroupMembership{}).Where("group_id = ?", group.ID).Count(&count)
	if count != 0 {
		t.Error("expected memberships to be deleted")
	}
	after, _ := cache.GroupVersion(db, group.ID)
	testutil.AssertVersionIncreased(t, before, after)
}
