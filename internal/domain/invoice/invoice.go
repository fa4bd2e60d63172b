// Package invoice defines the Invoice aggregate and the payload shapes the
// gateway's HTTP handler exchanges with callers.
package invoice

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of an invoice.
type Status string

const (
	StatusPending                 Status = "pending"
	StatusPaid                    Status = "paid"
	StatusExpired                 Status = "expired"
	StatusPendingManualResolution Status = "pending_manual_resolution"
)

// Invoice is a merchant's request for a USDT payment, with the
// amount-differentiated publish amount the payer is shown.
//
// Invariant: for any row with Address != nil, the triple
// (MerchantID, PublishAmount, Address) is unique — enforced by a partial
// unique index, not in application code.
type Invoice struct {
	ID            uuid.UUID       `json:"id"`
	MerchantID    uuid.UUID       `json:"merchant_id"`
	BaseAmount    decimal.Decimal `json:"base_amount"`
	PublishAmount decimal.Decimal `json:"publish_amount"`
	Currency      string          `json:"currency"`
	Network       string          `json:"network,omitempty"`
	Address       *string         `json:"address,omitempty"`
	AddressTag    *string         `json:"address_tag,omitempty"`
	Status        Status          `json:"status"`
	Metadata      map[string]any  `json:"metadata,omitempty"`
	ExpiresAt     *time.Time      `json:"expires_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// CreateInput is the validated body of POST /api/invoices.
type CreateInput struct {
	MerchantID     uuid.UUID      `json:"merchant_id" validate:"required"`
	BaseAmount     decimal.Decimal `json:"base_amount" validate:"required"`
	Currency       string         `json:"currency" validate:"omitempty,eq=USDT"`
	Network        string         `json:"network" validate:"omitempty,oneof=ERC20 TRC20 BEP20"`
	Address        *string        `json:"address" validate:"omitempty"`
	AddressTag     *string        `json:"address_tag" validate:"omitempty"`
	ExpirySeconds  *int64         `json:"expiry_seconds" validate:"omitempty,gt=0"`
	Metadata       map[string]any `json:"metadata"`
}
