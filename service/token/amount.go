package token

import (
	"math"
	"math/big"
	"strconv"
	"strings"

	"github.com/brojonat/solsage/service/apperr"
	"github.com/shopspring/decimal"
)

// UnitFactor converts user-entered amounts to base units. It is fixed at 10^6
// and does not follow the mint's declared decimals.
// TODO: scale by the mint's decimals once mint accounts are decoded before MintTo/Transfer.
const UnitFactor = 1_000_000

const unitExponent = 6

// MaxDecimals is the largest decimals value accepted for a new mint.
const MaxDecimals = 9

var maxUint64 = decimal.NewFromBigInt(new(big.Int).SetUint64(math.MaxUint64), 0)

// ParseAmount converts a positive decimal string into base units.
func ParseAmount(input string) (uint64, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return 0, apperr.Validation("amount is required")
	}

	d, err := decimal.NewFromString(input)
	if err != nil {
		return 0, apperr.Validation("amount %q is not a number", input)
	}
	if !d.IsPositive() {
		return 0, apperr.Validation("amount must be greater than zero")
	}

	scaled := d.Shift(unitExponent)
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, apperr.Validation("amount %s has more than %d decimal places", input, unitExponent)
	}
	if scaled.GreaterThan(maxUint64) {
		return 0, apperr.Validation("amount %s is too large", input)
	}
	return scaled.BigInt().Uint64(), nil
}

// FormatUnits renders base units as a UI amount at the fixed factor.
func FormatUnits(base uint64) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(base), -unitExponent).String()
}

// FormatSOL renders lamports as SOL.
func FormatSOL(lamports uint64) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(lamports), -9).String()
}

// ParseDecimals accepts an integer string in [0, MaxDecimals].
func ParseDecimals(input string) (uint8, error) {
	input = strings.TrimSpace(input)
	n, err := strconv.Atoi(input)
	if err != nil {
		return 0, apperr.Validation("decimals %q is not a whole number", input)
	}
	if n < 0 || n > MaxDecimals {
		return 0, apperr.Validation("decimals must be between 0 and %d", MaxDecimals)
	}
	return uint8(n), nil
}
