// Package depositaddress defines the pool of addresses that may be
// allocated to invoices.
package depositaddress

import (
	"time"

	"github.com/google/uuid"
)

// DepositAddress is a chain address available for invoice allocation.
// Unique on (Address, Network).
type DepositAddress struct {
	ID         uuid.UUID
	Address    string
	Network    string
	AllocatedTo *uuid.UUID
	CreatedAt  time.Time
}
