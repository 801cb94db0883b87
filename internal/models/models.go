// Package models holds the persisted entities of the honeypot.
package models

// All lists every model for auto-migration, in dependency order.
func All() []any {
	return []any{
		&ScanEvent{},
		&WatchEntry{},
		&WatchPath{},
		&BlockRecord{},
		&AdminLoginAttempt{},
		&AuditLog{},
		&Interaction{},
	}
}
