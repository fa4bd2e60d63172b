// Package auditlog defines the append-only operational record written
// alongside a SystemEvent whenever the matcher or invoice creator escalates
// an anomaly for manual resolution.
package auditlog

import (
	"time"

	"github.com/google/uuid"
)

// AuditLog is immutable once written; the store rejects UPDATE and DELETE.
type AuditLog struct {
	ID         uuid.UUID
	MerchantID *uuid.UUID
	Action     string
	Detail     map[string]any
	CreatedAt  time.Time
}

const (
	ActionCollision         = "amount_diff_collision"
	ActionCollisionExhausted = "invoice_collision_exhausted"
)
