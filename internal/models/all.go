package models

// All lists every persisted model, in dependency order.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Group{},
		&GroupMembership{},
		&RecurringObligation{},
		&OneOffObligation{},
		&LedgerEntry{},
		&ScopeVersion{},
		&AuditLog{},
	}
}
