// Package decimalutil collects the fixed-point decimal helpers the
// amount-differentiation algorithm needs on top of
// github.com/shopspring/decimal, which is also how the teacher's ledger
// entities (common/mmodel) represent money.
package decimalutil

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// NetworkPrecision returns the number of fractional decimal digits
// meaningful for the given chain label: 6 for ERC20/TRC20, 18 for BEP20,
// 6 as the fallback for anything unrecognized.
func NetworkPrecision(network string) int32 {
	switch network {
	case "ERC20", "TRC20":
		return 6
	case "BEP20":
		return 18
	default:
		return 6
	}
}

// TruncateToPrecision rounds d down toward zero to precision fractional
// digits, the "adjusted" step of the amount-diff algorithm.
func TruncateToPrecision(d decimal.Decimal, precision int32) decimal.Decimal {
	return d.Truncate(precision)
}

// IndexFromUUID reduces a 128-bit invoice identifier (as a big.Int, the way
// the uuid's raw bytes are read) modulo 10^k, yielding the amount-diff index.
func IndexFromUUID(id [16]byte, k int32) *big.Int {
	u := new(big.Int).SetBytes(id[:])
	mod := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(k)), nil)

	return u.Mod(u, mod)
}

// DeltaFromIndex turns an index in [0, 10^k) into a decimal delta of
// idx * 10^(-k).
func DeltaFromIndex(idx *big.Int, k int32) decimal.Decimal {
	return decimal.NewFromBigInt(idx, -k)
}
