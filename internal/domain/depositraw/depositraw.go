// Package depositraw models the exchange's deposit record verbatim, plus
// the processed bit the matcher flips once it has settled or definitively
// rejected the row.
package depositraw

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DepositRaw is the exchange's deposit-history record, kept verbatim so the
// matcher can be re-run against it. TxID is unique, making ingestion
// idempotent.
type DepositRaw struct {
	ID             uuid.UUID
	TxID           string
	Coin           string
	Network        string
	Amount         decimal.Decimal
	Status         int
	Address        string
	AddressTag     *string
	InsertTimeMS   int64
	CompleteTimeMS *int64
	ConfirmTimes   int
	Processed      bool
	CreatedAt      time.Time
}

// StatusSuccess is the exchange's "success" status code for a deposit.
const StatusSuccess = 1
