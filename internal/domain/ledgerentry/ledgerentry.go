// Package ledgerentry defines the append-only money-movement record. The
// store enforces write-once: UPDATE and DELETE are rejected by a trigger,
// so this package never exposes a mutation beyond insertion.
package ledgerentry

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EntryType distinguishes the kind of movement recorded.
type EntryType string

const EntryTypeCreditInvoice EntryType = "credit_invoice"

// LedgerEntry is an immutable credit or debit against a merchant's balance.
type LedgerEntry struct {
	ID          uuid.UUID
	MerchantID  uuid.UUID
	Amount      decimal.Decimal
	Currency    string
	EntryType   EntryType
	ReferenceID uuid.UUID
	Metadata    map[string]any
	CreatedAt   time.Time
}
