package services

import (
	"context"
	"testing"

	"gorm.io/gorm"

	"cuadra/internal/calendar"
	"cuadra/internal/models"
	"cuadra/internal/pagination"
	"cuadra/internal/testutil"
)

func newTestPaymentService(db *gorm.DB, today calendar.Period, day int) PaymentServicer {
	clock := calendar.FixedClock{Date: calendar.DateIn(today.Year, today.Month, day)}
	return NewPaymentService(db, newTestSync(db), clock)
}

func TestRecordPayment(t *testing.T) {
	ctx := context.Background()
	june := calendar.NewPeriod(2025, 6)

	t.Run("recurring_in_range", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newTestPaymentService(db, june, 10)
		user := testutil.CreateTestUser(t, db)
		group := testutil.CreateTestGroup(t, db, user.ID)
		o := testutil.CreateTestRecurring(t, db, user.ID, group.ID, 50000, calendar.NewPeriod(2025, 1), calendar.NewPeriod(2025, 12), 5)

		e, err := svc.RecordPayment(ctx, user.ID, PaymentInput{
			Source:   models.SourceRecurring,
			SourceID: o.ID,
			Period:   june,
			Amount:   20000,
			Note:     " first half ",
		})
		testutil.AssertNoError(t, err)

		if e.GroupID != group.ID {
			t.Errorf("expected group %s, got %s", group.ID, e.GroupID)
		}
		if !e.PaidAt.Equal(calendar.DateIn(2025, 6, 10)) {
			t.Errorf("expected paid_at to default to today, got %s", e.PaidAt)
		}
		if e.Note != "first half" {
			t.Errorf("expected trimmed note, got %q", e.Note)
		}
	})

	t.Run("recurring_out_of_range", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newTestPaymentService(db, june, 10)
		user := testutil.CreateTestUser(t, db)
		group := testutil.CreateTestGroup(t, db, user.ID)
		o := testutil.CreateTestRecurring(t, db, user.ID, group.ID, 50000, calendar.NewPeriod(2025, 1), calendar.NewPeriod(2025, 12), 5)

		_, err := svc.RecordPayment(ctx, user.ID, PaymentInput{
			Source:   models.SourceRecurring,
			SourceID: o.ID,
			Period:   calendar.NewPeriod(2026, 1),
			Amount:   100,
		})
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})

	t.Run("one_off_must_match_month", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newTestPaymentService(db, june, 10)
		user := testutil.CreateTestUser(t, db)
		group := testutil.CreateTestGroup(t, db, user.ID)
		o := testutil.CreateTestOneOff(t, db, user.ID, group.ID, models.DirectionExpense, 1000, june)

		_, err := svc.RecordPayment(ctx, user.ID, PaymentInput{
			Source:   models.SourceOneOff,
			SourceID: o.ID,
			Period:   calendar.NewPeriod(2025, 7),
			Amount:   1000,
		})
		testutil.AssertAppError(t, err, "INVALID_INPUT")

		_, err = svc.RecordPayment(ctx, user.ID, PaymentInput{
			Source:   models.SourceOneOff,
			SourceID: o.ID,
			Period:   june,
			Amount:   1000,
		})
		testutil.AssertNoError(t, err)
	})

	t.Run("unknown_obligation", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newTestPaymentService(db, june, 10)
		user := testutil.CreateTestUser(t, db)

		_, err := svc.RecordPayment(ctx, user.ID, PaymentInput{
			Source:   models.SourceRecurring,
			SourceID: "00000000-0000-0000-0000-000000000000",
			Period:   june,
			Amount:   100,
		})
		testutil.AssertAppError(t, err, "OBLIGATION_NOT_FOUND")
	})

	t.Run("validation", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newTestPaymentService(db, june, 10)
		user := testutil.CreateTestUser(t, db)

		_, err := svc.RecordPayment(ctx, user.ID, PaymentInput{Source: "card", SourceID: "x", Period: june, Amount: 1})
		testutil.AssertValidationError(t, err, "source")
		_, err = svc.RecordPayment(ctx, user.ID, PaymentInput{Source: models.SourceOneOff, SourceID: "x", Period: june, Amount: 0})
		testutil.AssertValidationError(t, err, "amount")
		_, err = svc.RecordPayment(ctx, user.ID, PaymentInput{Source: models.SourceOneOff, Period: june, Amount: 1})
		testutil.AssertValidationError(t, err, "source_id")
	})
}

func TestUpdateAndDeletePayment(t *testing.T) {
	ctx := context.Background()
	june := calendar.NewPeriod(2025, 6)
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := newTestPaymentService(db, june, 10)
	owner := testutil.CreateTestUser(t, db)
	recorder := testutil.CreateTestUser(t, db)
	bystander := testutil.CreateTestUser(t, db)
	group := testutil.CreateTestGroup(t, db, owner.ID)
	testutil.AddTestMember(t, db, group.ID, recorder.ID, models.MemberRoleMember, models.MemberStatusActive)
	testutil.AddTestMember(t, db, group.ID, bystander.ID, models.MemberRoleMember, models.MemberStatusActive)
	o := testutil.CreateTestRecurring(t, db, owner.ID, group.ID, 50000, calendar.NewPeriod(2025, 1), calendar.NewPeriod(2025, 12), 5)
	e := testutil.CreateTestPayment(t, db, recorder.ID, group.ID, models.SourceRecurring, o.ID, june, 20000)

	amount := int64(25000)
	_, err := svc.UpdatePayment(ctx, bystander.ID, e.ID, PaymentUpdate{Amount: &amount})
	testutil.AssertAppError(t, err, "FORBIDDEN")

	updated, err := svc.UpdatePayment(ctx, recorder.ID, e.ID, PaymentUpdate{Amount: &amount})
	testutil.AssertNoError(t, err)
	if updated.Amount != 25000 {
		t.Errorf("expected amount 25000, got %d", updated.Amount)
	}

	zero := int64(0)
	_, err = svc.UpdatePayment(ctx, recorder.ID, e.ID, PaymentUpdate{Amount: &zero})
	testutil.AssertAppError(t, err, "INVALID_INPUT")

	list, err := svc.ListPayments(ctx, bystander.ID, models.SourceRecurring, o.ID, pagination.PageRequest{})
	testutil.AssertNoError(t, err)
	if list.TotalItems != 1 {
		t.Errorf("expected 1 payment, got %d", list.TotalItems)
	}

	testutil.AssertNoError(t, svc.DeletePayment(ctx, owner.ID, e.ID))
	_, err = svc.GetPayment(ctx, recorder.ID, e.ID)
	testutil.AssertAppError(t, err, "PAYMENT_NOT_FOUND")
}

func TestGetPayment_HiddenFromNonMembers(t *testing.T) {
	june := calendar.NewPeriod(2025, 6)
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := newTestPaymentService(db, june, 10)
	owner := testutil.CreateTestUser(t, db)
	stranger := testutil.CreateTestUser(t, db)
	group := testutil.CreateTestGroup(t, db, owner.ID)
	o := testutil.CreateTestOneOff(t, db, owner.ID, group.ID, models.DirectionExpense, 1000, june)
	e := testutil.CreateTestPayment(t, db, owner.ID, group.ID, models.SourceOneOff, o.ID, june, 1000)

	_, err := svc.GetPayment(context.Background(), stranger.ID, e.ID)
	testutil.AssertAppError(t, err, "PAYMENT_NOT_FOUND")
}
