package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// MoneyScale is the number of fractional digits carried by every balance and amount.
const MoneyScale = 2

// ValidateAmount rejects non-positive amounts and amounts that would need rounding to fit MoneyScale.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if !amount.Equal(amount.Truncate(MoneyScale)) {
		return ErrInvalidAmount
	}
	return nil
}

// ParseAmount parses a decimal string such as "100" or "12.50".
func ParseAmount(raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q is not a decimal", ErrInvalidInput, raw)
	}
	if err := ValidateAmount(d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

// FormatAmount renders an amount at MoneyScale, e.g. "100.00".
func FormatAmount(amount decimal.Decimal) string {
	return amount.StringFixed(MoneyScale)
}
