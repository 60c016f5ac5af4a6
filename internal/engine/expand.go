package engine

import (
	"sort"
	"time"

	"cuadra/internal/calendar"
	"cuadra/internal/models"
)

// Expand returns the instances active in the scope month: one per recurring
// obligation whose inclusive range covers the month, and one per one-off
// obligation declared for that month. Statuses are left empty; see Reconcile.
func Expand(scope calendar.Period, recurring []models.RecurringObligation, oneOffs []models.OneOffObligation) []Instance {
	instances := make([]Instance, 0, len(recurring)+len(oneOffs))

	for i := range recurring {
		o := &recurring[i]
		if !o.Covers(scope) {
			continue
		}
		instances = append(instances, fromRecurring(o, scope))
	}

	for i := range oneOffs {
		o := &oneOffs[i]
		if o.Period() != scope {
			continue
		}
		instances = append(instances, fromOneOff(o))
	}

	sortInstances(instances)
	return instances
}

// ExpandThrough returns every instance from each obligation's first month up
// to the earlier of its last month and the horizon.
func ExpandThrough(horizon calendar.Period, recurring []models.RecurringObligation, oneOffs []models.OneOffObligation) []Instance {
	var instances []Instance

	for i := range recurring {
		o := &recurring[i]
		last := o.End()
		if last.After(horizon) {
			last = horizon
		}
		for p := o.Start(); !p.After(last); p = p.Next() {
			instances = append(instances, fromRecurring(o, p))
		}
	}

	for i := range oneOffs {
		o := &oneOffs[i]
		if o.Period().After(horizon) {
			continue
		}
		instances = append(instances, fromOneOff(o))
	}

	sortInstances(instances)
	return instances
}

// ExpandObligation returns the instances of a single recurring obligation over
// its whole range. Open-ended obligations stop at the horizon.
func ExpandObligation(o *models.RecurringObligation, horizon calendar.Period) []Instance {
	return ExpandThrough(horizon, []models.RecurringObligation{*o}, nil)
}

func fromRecurring(o *models.RecurringObligation, p calendar.Period) Instance {
	var deadline *time.Time
	if o.PaymentDay != nil {
		d := calendar.DueDate(p, *o.PaymentDay)
		deadline = &d
	}

	return Instance{
		ID:          InstanceID(models.SourceRecurring, o.ID, p),
		Source:      models.SourceRecurring,
		SourceID:    o.ID,
		Kind:        o.Kind,
		Direction:   o.Direction,
		Description: o.Description,
		Amount:      o.Amount,
		Period:      p,
		Deadline:    deadline,
		Category:    models.NormalizeCategory(o.Category),
		GroupID:     o.GroupID,
		OwnerID:     o.UserID,
		IsGoal:      o.IsGoal,
	}
}

func fromOneOff(o *models.OneOffObligation) Instance {
	var deadline *time.Time
	if o.DeadlineDate != nil {
		d := calendar.Civil(*o.DeadlineDate)
		deadline = &d
	}

	p := o.Period()
	return Instance{
		ID:          InstanceID(models.SourceOneOff, o.ID, p),
		Source:      models.SourceOneOff,
		SourceID:    o.ID,
		Kind:        o.Kind,
		Direction:   o.Direction,
		Description: o.Description,
		Amount:      o.Amount,
		Period:      p,
		Deadline:    deadline,
		Category:    models.NormalizeCategory(o.Category),
		GroupID:     o.GroupID,
		OwnerID:     o.UserID,
	}
}

// sortInstances orders by period, then deadline (instances without one last),
// then description and id, so output never depends on input order.
func sortInstances(instances []Instance) {
	sort.SliceStable(instances, func(i, j int) bool {
		a, b := &instances[i], &instances[j]
		if a.Period != b.Period {
			return a.Period.Before(b.Period)
		}
		switch {
		case a.Deadline != nil && b.Deadline == nil:
			return true
		case a.Deadline == nil && b.Deadline != nil:
			return false
		case a.Deadline != nil && !a.Deadline.Equal(*b.Deadline):
			return a.Deadline.Before(*b.Deadline)
		}
		if a.Description != b.Description {
			return a.Description < b.Description
		}
		return a.ID < b.ID
	})
}
