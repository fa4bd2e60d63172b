// Package payment defines the settled credit against an invoice, written
// once by the matcher inside its crediting transaction.
package payment

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a Payment. The matcher only ever writes
// StatusSettled; other values are reserved for future use.
type Status string

const StatusSettled Status = "settled"

// Payment is unique on (TxID, InvoiceID).
type Payment struct {
	ID            uuid.UUID
	InvoiceID     uuid.UUID
	DepositRawID  uuid.UUID
	TxID          string
	Amount        decimal.Decimal
	Network       string
	Address       string
	AddressTag    *string
	Status        Status
	UsedAmountDiff bool
	CreatedAt     time.Time
}
