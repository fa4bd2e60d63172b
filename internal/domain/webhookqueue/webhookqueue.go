// Package webhookqueue defines the outbound delivery queue the matcher
// enqueues into and the dispatcher drains.
package webhookqueue

import (
	"time"

	"github.com/google/uuid"
)

// Status is the delivery state of a queued webhook.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// WebhookQueue is a single merchant notification awaiting (or having
// completed) delivery.
type WebhookQueue struct {
	ID             uuid.UUID
	MerchantID     uuid.UUID
	Payload        map[string]any
	Headers        map[string]string
	Attempts       int
	Status         Status
	LastError      *string
	IdempotencyKey *string
	NextAttemptAt  *time.Time
	CreatedAt      time.Time
}

// Payload is the JSON body sent to the merchant endpoint on a successful
// invoice match.
type Payload struct {
	InvoiceID     uuid.UUID      `json:"invoiceId"`
	MerchantID    uuid.UUID      `json:"merchantId"`
	Status        string         `json:"status"`
	Amount        string         `json:"amount"`
	Network       string         `json:"network"`
	TxHash        string         `json:"txHash"`
	Confirmations int            `json:"confirmations"`
	ConfirmedAt   time.Time      `json:"confirmedAt"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}
