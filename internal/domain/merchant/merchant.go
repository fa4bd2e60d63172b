// Package merchant defines the merchant identity the rest of the system
// credits and notifies. Onboarding and API-key issuance are out of scope
// (external collaborators per spec §1); this package only holds the
// merchant's identity and the webhook endpoint the dispatcher delivers to.
package merchant

import (
	"time"

	"github.com/google/uuid"
)

// RiskTier classifies a merchant for future risk-based limits; currently
// informational only.
type RiskTier string

const (
	RiskTierStandard RiskTier = "standard"
	RiskTierElevated RiskTier = "elevated"
)

// Merchant is the owner of invoices, ledger entries and webhook deliveries.
//
// WebhookURL is modelled as a first-class field rather than stashed in a
// webhook_queue row's headers, resolving the routing/transport conflation
// flagged as an open question.
type Merchant struct {
	ID         uuid.UUID
	Name       string
	RiskTier   RiskTier
	WebhookURL string
	Onboarded  bool
	CreatedAt  time.Time
}
