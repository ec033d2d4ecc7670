package types

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Amount is a monetary value exchanged with the bank service.
// The bank API carries no currency, so neither does Amount.
// It marshals to a bare JSON number rather than decimal's default quoted string.
type Amount struct {
	decimal.Decimal
}

// NewAmount wraps a decimal value.
func NewAmount(d decimal.Decimal) Amount {
	return Amount{Decimal: d}
}

// NewAmountFromString parses an amount such as "100.00".
func NewAmountFromString(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return NewAmount(d), nil
}

// NewAmountFromFloat converts a float such as 100.0.
func NewAmountFromFloat(f float64) Amount {
	return NewAmount(decimal.NewFromFloat(f))
}

// MustAmount parses an amount, panicking on invalid input.
// Use only in tests or initialization code where panicking is acceptable.
func MustAmount(s string) Amount {
	a, err := NewAmountFromString(s)
	if err != nil {
		panic(err)
	}
	return a
}

// Equal returns true if both amounts hold the same value regardless of scale.
func (a Amount) Equal(other Amount) bool {
	return a.Decimal.Equal(other.Decimal)
}

// String returns the amount with two decimal places.
func (a Amount) String() string {
	return a.StringFixed(2)
}

// MarshalJSON encodes the amount as a JSON number.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.Decimal.String()), nil
}

// UnmarshalJSON accepts both JSON numbers and quoted decimal strings.
func (a *Amount) UnmarshalJSON(data []byte) error {
	return a.Decimal.UnmarshalJSON(data)
}
