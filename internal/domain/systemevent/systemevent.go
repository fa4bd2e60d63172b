// Package systemevent defines the append-only operational event emitted
// beside an AuditLog, and mirrored onto the events exchange for external
// consumers.
package systemevent

import (
	"time"

	"github.com/google/uuid"
)

// SystemEvent is immutable once written.
type SystemEvent struct {
	ID        uuid.UUID
	Type      string
	Payload   map[string]any
	CreatedAt time.Time
}

const (
	TypeAmountDiffCollision  = "amount_diff_collision"
	TypeCollisionExhausted   = "invoice_collision_exhausted"
)
