package engine

import (
	"time"

	"cuadra/internal/calendar"
	"cuadra/internal/models"
)

// StatusFor derives the status of an instance. A deadline equal to today is
// still pending; an instance without a deadline is never overdue.
func StatusFor(amount, paid int64, deadline *time.Time, today time.Time) Status {
	if paid >= amount {
		return StatusPaid
	}
	if deadline == nil || !calendar.Civil(*deadline).Before(calendar.Civil(today)) {
		return StatusPending
	}
	return StatusOverdue
}

type ledgerKey struct {
	source   models.Source
	sourceID string
	period   calendar.Period
}

// paidBySource sums ledger entries per (source, source id, period).
func paidBySource(entries []models.LedgerEntry) map[ledgerKey]int64 {
	paid := make(map[ledgerKey]int64, len(entries))
	for i := range entries {
		e := &entries[i]
		paid[ledgerKey{source: e.Source, sourceID: e.SourceID, period: e.Period()}] += e.Amount
	}
	return paid
}

// Reconcile returns a copy of the instances with PaidAmount and Status filled
// in from the ledger entries tagged with each instance's source and period.
func Reconcile(instances []Instance, entries []models.LedgerEntry, today time.Time) []Instance {
	paid := paidBySource(entries)

	out := make([]Instance, len(instances))
	for i, inst := range instances {
		inst.PaidAmount = paid[ledgerKey{source: inst.Source, sourceID: inst.SourceID, period: inst.Period}]
		inst.Status = StatusFor(inst.Amount, inst.PaidAmount, inst.Deadline, today)
		out[i] = inst
	}
	return out
}
