package models

import "github.com/google/uuid"

// ensureID assigns a v4 id when the caller left it zero so rows insert identically on
// Postgres and sqlite.
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

// All lists every persisted model, in dependency order, for sqlite schema bootstrap.
func All() []any {
	return []any{
		&User{},
		&Subscription{},
		&Release{},
		&Track{},
		&AudioScanResult{},
		&AIUsage{},
		&EmailQueue{},
		&OutboxEvent{},
		&OutboxDLQ{},
	}
}
