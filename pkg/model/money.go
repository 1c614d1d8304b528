package model

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrInvalidAmount indicates a money amount that is malformed or cannot be
// represented in the target asset's base units.
var ErrInvalidAmount = errors.New("invalid money amount")

// MoneyAmount is a human-readable decimal money amount, e.g. "0.05".
// It is the display-unit value of a quote, not a token base-unit value.
type MoneyAmount struct {
	d decimal.Decimal
}

// NewMoneyAmount parses a decimal string into a MoneyAmount.
func NewMoneyAmount(s string) (MoneyAmount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return MoneyAmount{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if d.IsNegative() {
		return MoneyAmount{}, fmt.Errorf("%w: negative value %q", ErrInvalidAmount, s)
	}
	return MoneyAmount{d: d}, nil
}

// MoneyFromDecimal wraps a decimal value as a MoneyAmount.
func MoneyFromDecimal(d decimal.Decimal) (MoneyAmount, error) {
	if d.IsNegative() {
		return MoneyAmount{}, fmt.Errorf("%w: negative value %s", ErrInvalidAmount, d)
	}
	return MoneyAmount{d: d}, nil
}

func (m MoneyAmount) String() string {
	return m.d.String()
}

// TokenAmount converts the amount into the smallest unit of an asset with the
// given number of decimals, e.g. "0.05" at 6 decimals -> "50000". Amounts
// finer than the asset's precision are an error rather than a rounded value.
func (m MoneyAmount) TokenAmount(decimals int) (string, error) {
	scaled := m.d.Shift(int32(decimals))
	if !scaled.IsInteger() {
		return "", fmt.Errorf("%w: %s does not fit in %d decimals", ErrInvalidAmount, m.d, decimals)
	}
	return scaled.String(), nil
}

// Decimal returns the underlying decimal value.
func (m MoneyAmount) Decimal() decimal.Decimal {
	return m.d
}
