// Package amountdiff derives a unique-with-high-probability published
// amount from a base amount and an invoice identifier. It is pure and
// side-effect free: the same inputs always produce the same output.
package amountdiff

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/shiftpay/usdt-gateway/pkg/decimalutil"
)

// RequiredConfirmations returns the confirmations the matcher must observe
// before a deposit on the given network is eligible for crediting.
func RequiredConfirmations(network string) int {
	switch network {
	case "ERC20":
		return 12
	case "BEP20":
		return 3
	case "TRC20":
		return 20
	default:
		return 2
	}
}

// Derive computes the published amount for base, perturbed deterministically
// by invoiceID modulo 10^k, then truncated down to the network's decimal
// precision.
//
// Returns an error if k exceeds the network's precision — the delta space
// would collapse and silently truncate to nothing, which the spec requires
// to surface as a configuration error rather than be masked.
func Derive(base decimal.Decimal, invoiceID uuid.UUID, network string, k int32) (decimal.Decimal, error) {
	precision := decimalutil.NetworkPrecision(network)

	if k > precision {
		return decimal.Decimal{}, fmt.Errorf("amountdiff: k=%d exceeds network %q precision=%d", k, network, precision)
	}

	idx := decimalutil.IndexFromUUID(invoiceID, k)
	delta := decimalutil.DeltaFromIndex(idx, k)
	raw := base.Add(delta)

	return decimalutil.TruncateToPrecision(raw, precision), nil
}
