package services

import (
	"context"
	"time"

	"gorm.io/gorm"

	"cuadra/internal/cache"
	"cuadra/internal/calendar"
	"cuadra/internal/engine"
	"cuadra/internal/models"
	"cuadra/internal/pagination"
)

// UserServicer defines the contract for the user directory.
type UserServicer interface {
	EnsureUser(ctx context.Context, id, email, displayName string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateProfile(ctx context.Context, id, displayName string) (*models.User, error)
}

// Invitation is a pending membership together with the one-time token that
// accepts it. The token is only returned once.
type Invitation struct {
	Membership *models.GroupMembership `json:"membership"`
	Token      string                  `json:"token"`
}

// GroupServicer defines the contract for groups and the membership state
// machine.
type GroupServicer interface {
	CreateGroup(ctx context.Context, userID, name, description string) (*models.Group, error)
	GetGroup(ctx context.Context, userID, groupID string) (*models.Group, error)
	UpdateGroup(ctx context.Context, userID, groupID string, name, description *string) (*models.Group, error)
	ListUserGroups(ctx context.Context, userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Group], error)
	DeleteGroup(ctx context.Context, callerID, groupID string) error

	ListMembers(ctx context.Context, callerID, groupID string) ([]models.GroupMembership, error)
	Invite(ctx context.Context, callerID, groupID, email string) (*Invitation, error)
	ListPendingInvitations(ctx context.Context, userID string) ([]models.GroupMembership, error)
	Accept(ctx context.Context, callerID, groupID string) (*models.GroupMembership, error)
	AcceptToken(ctx context.Context, callerID, token string) (*models.GroupMembership, error)
	Reject(ctx context.Context, callerID, groupID string) error
	Leave(ctx context.Context, callerID, groupID string) error
	RemoveMember(ctx context.Context, callerID, groupID, targetID string) error
	DeactivateMember(ctx context.Context, callerID, groupID, targetID string) (*models.GroupMembership, error)
	ReactivateMember(ctx context.Context, callerID, groupID, targetID string) (*models.GroupMembership, error)
	ChangeRole(ctx context.Context, callerID, groupID, targetID string, role models.MemberRole) (*models.GroupMembership, error)

	RequireActiveMember(ctx context.Context, userID, groupID string) (*models.GroupMembership, error)
	RequireAdmin(ctx context.Context, userID, groupID string) (*models.GroupMembership, error)
}

// RecurringInput holds the writable fields of a recurring obligation. When
// End is nil, Installments derives it from Start; when both are nil the
// obligation is open-ended.
type RecurringInput struct {
	Description  string
	Amount       int64
	Direction    models.Direction
	Category     string
	Start        calendar.Period
	End          *calendar.Period
	Installments *int
	PaymentDay   *int
	IsGoal       bool
}

// OneOffInput holds the writable fields of a one-off obligation.
type OneOffInput struct {
	Description  string
	Amount       int64
	Direction    models.Direction
	Category     string
	Period       calendar.Period
	DeadlineDate *time.Time
}

// ObligationServicer defines the contract for declaring obligations.
type ObligationServicer interface {
	CreateRecurring(ctx context.Context, userID, groupID string, in RecurringInput) (*models.RecurringObligation, error)
	GetRecurring(ctx context.Context, userID, obligationID string) (*models.RecurringObligation, error)
	ListRecurring(ctx context.Context, userID, groupID string, page pagination.PageRequest) (*pagination.PageResponse[models.RecurringObligation], error)
	UpdateRecurring(ctx context.Context, userID, obligationID string, in RecurringInput) (*models.RecurringObligation, error)
	DeleteRecurring(ctx context.Context, userID, obligationID string) error

	CreateOneOff(ctx context.Context, userID, groupID string, in OneOffInput) (*models.OneOffObligation, error)
	GetOneOff(ctx context.Context, userID, obligationID string) (*models.OneOffObligation, error)
	ListOneOffs(ctx context.Context, userID, groupID string, page pagination.PageRequest) (*pagination.PageResponse[models.OneOffObligation], error)
	UpdateOneOff(ctx context.Context, userID, obligationID string, in OneOffInput) (*models.OneOffObligation, error)
	DeleteOneOff(ctx context.Context, userID, obligationID string) error
}

// PaymentInput tags a payment to the instance of an obligation in a period.
// A nil PaidAt means today.
type PaymentInput struct {
	Source   models.Source
	SourceID string
	Period   calendar.Period
	Amount   int64
	PaidAt   *time.Time
	Note     string
}

// PaymentUpdate holds the fields of a recorded payment that may change.
type PaymentUpdate struct {
	Amount *int64
	PaidAt *time.Time
	Note   *string
}

// PaymentServicer defines the contract for the payment ledger.
type PaymentServicer interface {
	RecordPayment(ctx context.Context, userID string, in PaymentInput) (*models.LedgerEntry, error)
	GetPayment(ctx context.Context, userID, paymentID string) (*models.LedgerEntry, error)
	ListPayments(ctx context.Context, userID string, source models.Source, sourceID string, page pagination.PageRequest) (*pagination.PageResponse[models.LedgerEntry], error)
	UpdatePayment(ctx context.Context, userID, paymentID string, in PaymentUpdate) (*models.LedgerEntry, error)
	DeletePayment(ctx context.Context, userID, paymentID string) error
}

// Versioned is a read result tagged with the group version it reflects and
// the day it was evaluated on. When NotModified is set Data is empty and the
// client's copy is still current.
type Versioned[T any] struct {
	Data        T      `json:"data"`
	Version     int64  `json:"version"`
	Day         string `json:"day,omitempty"`
	NotModified bool   `json:"-"`
}

// Tag returns the token clients send back in If-None-Match.
func (v *Versioned[T]) Tag() cache.Tag {
	return cache.Tag{Version: v.Version, Day: v.Day}
}

// FinanceServicer defines the contract for the computed, read-only views of a
// group.
type FinanceServicer interface {
	MonthView(ctx context.Context, userID, groupID string, period calendar.Period, opts cache.ReadOptions) (*Versioned[engine.View], error)
	ExpandAndReconcile(ctx context.Context, userID, groupID string, period calendar.Period, opts cache.ReadOptions) (*Versioned[[]engine.Instance], error)
	MonthlySummary(ctx context.Context, userID, groupID string, period calendar.Period, opts cache.ReadOptions) (*Versioned[engine.MonthlySummary], error)
	CategoryRollup(ctx context.Context, userID, groupID string, period calendar.Period, opts cache.ReadOptions) (*Versioned[[]engine.CategoryStat], error)
	Savings(ctx context.Context, userID, groupID string, period calendar.Period, opts cache.ReadOptions) (*Versioned[engine.SavingsSummary], error)
	GroupFinancialSummary(ctx context.Context, userID, groupID string, opts cache.ReadOptions) (*Versioned[engine.GroupTotals], error)
	GoalProgress(ctx context.Context, userID, groupID, obligationID string) (*engine.GoalProgress, error)
}

// SyncServicer exposes version tokens and explicit invalidation to clients.
type SyncServicer interface {
	CurrentVersion(ctx context.Context, userID, groupID string, period calendar.Period) (int64, error)
	Invalidate(ctx context.Context, userID string, groupID *string) (int64, error)
	InvalidateGroup(ctx context.Context, groupID string) (int64, error)
}

// Invalidator bumps group versions inside a write transaction and announces
// them once the transaction has committed.
type Invalidator interface {
	InvalidateTx(tx *gorm.DB, userID string, groupID *string) (cache.Change, error)
	Announce(ctx context.Context, change cache.Change)
}

// AuditServicer defines the contract for audit logging.
type AuditServicer interface {
	Log(userID string, groupID *string, action, resourceType, resourceID, ipAddress string, changes map[string]interface{})
	ListGroupActivity(ctx context.Context, userID, groupID string, page pagination.PageRequest) (*pagination.PageResponse[models.AuditLog], error)
}
