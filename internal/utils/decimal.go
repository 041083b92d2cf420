package utils

import (
	"math/big"
	"strings"

	"dex-backend/internal/types"

	"github.com/shopspring/decimal"
)

// MaxDecimalDigits bounds every amount/price/fee field on the wire.
const MaxDecimalDigits = 78

// Scale is the fixed-point unit (10^18) of prices.
var Scale = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// ParseDecimal parses a non-negative base-10 integer string of at most 78 digits.
// Fractions and exponents are rejected, there is no floating-point path.
func ParseDecimal(field, value string) (*big.Int, error) {
	if value == "" {
		return nil, types.NewFieldError(field, types.ErrMissingField)
	}
	if strings.ContainsAny(value, ".eE") {
		return nil, types.NewFieldError(field, types.ErrFloatDecimal)
	}
	if len(value) > MaxDecimalDigits {
		return nil, types.NewFieldError(field, types.ErrWrongDecimal)
	}
	for i := 0; i < len(value); i++ {
		if value[i] < '0' || value[i] > '9' {
			return nil, types.NewFieldError(field, types.ErrWrongDecimal)
		}
	}
	n, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, types.NewFieldError(field, types.ErrWrongDecimal)
	}
	return n, nil
}

// FormatDecimal renders an integer without exponent or decimal point.
func FormatDecimal(n *big.Int) string {
	if n == nil {
		return "0"
	}
	return n.String()
}

// ToDecimal wraps an integer as a zero-exponent decimal column value.
func ToDecimal(n *big.Int) decimal.Decimal {
	return decimal.NewFromBigInt(n, 0)
}

// FromDecimal returns the integer part of a decimal column value.
func FromDecimal(d decimal.Decimal) *big.Int {
	return d.BigInt()
}
