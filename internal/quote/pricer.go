package quote

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Checker-Finance/x402-adapter/pkg/model"
)

// Pricer turns a requested quantity into a money amount. The pricing
// formula is route business logic; the quote flow only needs the result.
type Pricer interface {
	Price(units int) (model.MoneyAmount, error)
}

// UnitPricer charges a fixed display-unit price per unit, e.g. "0.01" per
// file.
type UnitPricer struct {
	unit decimal.Decimal
}

// NewUnitPricer parses the per-unit price, e.g. "0.01".
func NewUnitPricer(unitPrice string) (*UnitPricer, error) {
	d, err := decimal.NewFromString(unitPrice)
	if err != nil {
		return nil, fmt.Errorf("invalid unit price %q: %w", unitPrice, err)
	}
	if !d.IsPositive() {
		return nil, fmt.Errorf("unit price must be positive, got %q", unitPrice)
	}
	return &UnitPricer{unit: d}, nil
}

func (p *UnitPricer) Price(units int) (model.MoneyAmount, error) {
	if units <= 0 {
		return model.MoneyAmount{}, fmt.Errorf("units must be positive, got %d", units)
	}
	return model.MoneyFromDecimal(p.unit.Mul(decimal.NewFromInt(int64(units))))
}
