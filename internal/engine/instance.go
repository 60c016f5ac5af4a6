// Package engine turns declared obligations into per-month transaction
// instances, reconciles them against recorded payments and rolls them up into
// the summaries every view consumes. Nothing here touches storage or keeps
// state: the same inputs always produce the same outputs.
package engine

import (
	"time"

	"cuadra/internal/calendar"
	"cuadra/internal/models"
	"cuadra/internal/uuid"
)

// Status is the payment state of an instance.
type Status string

const (
	StatusPaid    Status = "paid"
	StatusPending Status = "pending"
	StatusOverdue Status = "overdue"
)

// Instance is one occurrence of an obligation in a month. Instances are
// derived on every read and never stored.
type Instance struct {
	ID          string              `json:"id"`
	Source      models.Source       `json:"source"`
	SourceID    string              `json:"source_id"`
	Kind        models.MovementKind `json:"kind"`
	Direction   models.Direction    `json:"direction"`
	Description string              `json:"description"`
	Amount      int64               `json:"amount"`
	PaidAmount  int64               `json:"paid_amount"`
	Period      calendar.Period     `json:"period"`
	Deadline    *time.Time          `json:"deadline,omitempty"`
	Status      Status              `json:"status"`
	Category    string              `json:"category"`
	GroupID     string              `json:"group_id"`
	OwnerID     string              `json:"owner_id"`
	IsGoal      bool                `json:"is_goal"`
}

// InstanceID derives the stable identifier of an obligation's instance in a
// period.
func InstanceID(source models.Source, sourceID string, p calendar.Period) string {
	return uuid.Derived(string(source), sourceID, p.String())
}

// IsExpense reports whether the instance takes money out.
func (i *Instance) IsExpense() bool {
	return i.Direction == models.DirectionExpense
}

// IsSavings reports whether the instance belongs to the savings/goal bucket.
func (i *Instance) IsSavings() bool {
	return i.Category == models.CategorySavings || i.IsGoal
}

// Applied returns the part of the payments that counts toward the amount.
func (i *Instance) Applied() int64 {
	if i.PaidAmount > i.Amount {
		return i.Amount
	}
	return i.PaidAmount
}
