// Package money provides a fixed-scale decimal currency value type.
//
// All amounts carry exactly two fractional digits and are rounded half-up on
// construction and after every arithmetic operation. Values are immutable;
// operations return new instances.
package money

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// Scale is the fixed number of fractional digits carried by every amount.
const Scale = 2

var (
	// ErrCurrencyMismatch indicates an operation across different currencies.
	ErrCurrencyMismatch = errors.New("money: currency mismatch")
	// ErrDivisionByZero indicates division by a zero scalar.
	ErrDivisionByZero = errors.New("money: division by zero")
	// ErrInvalidCurrency indicates a currency code that is not ISO 4217.
	ErrInvalidCurrency = errors.New("money: invalid currency code")
)

// Money is an immutable amount of a single currency.
type Money struct {
	amount   decimal.Decimal
	currency string
}

// New builds a Money from a decimal amount and an ISO 4217 currency code.
// The amount is rescaled to two digits, rounding half-up.
func New(amount decimal.Decimal, code string) (Money, error) {
	unit, err := currency.ParseISO(code)
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidCurrency, code)
	}
	return Money{amount: rescale(amount), currency: unit.String()}, nil
}

// FromString parses a decimal string amount, e.g. "100.00".
func FromString(amount, code string) (Money, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Money{}, fmt.Errorf("money: parse amount %q: %w", amount, err)
	}
	return New(d, code)
}

// Zero returns the zero amount of a currency.
func Zero(code string) (Money, error) {
	return New(decimal.Zero, code)
}

// MustParse is FromString that panics on error, for constants and tests.
func MustParse(amount, code string) Money {
	m, err := FromString(amount, code)
	if err != nil {
		panic(err)
	}
	return m
}

// rescale normalises to the fixed scale using half-up rounding.
// decimal.Round rounds half away from zero, which matches HALF_UP.
func rescale(d decimal.Decimal) decimal.Decimal {
	return d.Round(Scale)
}

// Amount returns the underlying decimal value.
func (m Money) Amount() decimal.Decimal { return m.amount }

// Currency returns the ISO 4217 code.
func (m Money) Currency() string { return m.currency }

func (m Money) sameCurrency(o Money) error {
	if m.currency != o.currency {
		return fmt.Errorf("%w: %s vs %s", ErrCurrencyMismatch, m.currency, o.currency)
	}
	return nil
}

// Add returns m + o.
func (m Money) Add(o Money) (Money, error) {
	if err := m.sameCurrency(o); err != nil {
		return Money{}, err
	}
	return Money{amount: rescale(m.amount.Add(o.amount)), currency: m.currency}, nil
}

// Sub returns m - o.
func (m Money) Sub(o Money) (Money, error) {
	if err := m.sameCurrency(o); err != nil {
		return Money{}, err
	}
	return Money{amount: rescale(m.amount.Sub(o.amount)), currency: m.currency}, nil
}

// MulScalar returns m scaled by a dimensionless factor.
func (m Money) MulScalar(factor decimal.Decimal) Money {
	return Money{amount: rescale(m.amount.Mul(factor)), currency: m.currency}
}

// DivScalar returns m divided by a dimensionless divisor.
func (m Money) DivScalar(divisor decimal.Decimal) (Money, error) {
	if divisor.IsZero() {
		return Money{}, ErrDivisionByZero
	}
	return Money{amount: rescale(m.amount.Div(divisor)), currency: m.currency}, nil
}

// Neg returns the negated amount.
func (m Money) Neg() Money {
	return Money{amount: m.amount.Neg(), currency: m.currency}
}

// Abs returns the absolute amount.
func (m Money) Abs() Money {
	return Money{amount: m.amount.Abs(), currency: m.currency}
}

// IsPositive reports amount > 0.
func (m Money) IsPositive() bool { return m.amount.IsPositive() }

// IsNegative reports amount < 0.
func (m Money) IsNegative() bool { return m.amount.IsNegative() }

// IsZero reports amount == 0.
func (m Money) IsZero() bool { return m.amount.IsZero() }

// Equal reports same currency and same amount.
func (m Money) Equal(o Money) bool {
	return m.currency == o.currency && m.amount.Equal(o.amount)
}

// GreaterThan reports m > o.
func (m Money) GreaterThan(o Money) (bool, error) {
	if err := m.sameCurrency(o); err != nil {
		return false, err
	}
	return m.amount.GreaterThan(o.amount), nil
}

// GreaterThanOrEqual reports m >= o.
func (m Money) GreaterThanOrEqual(o Money) (bool, error) {
	if err := m.sameCurrency(o); err != nil {
		return false, err
	}
	return m.amount.GreaterThanOrEqual(o.amount), nil
}

// LessThan reports m < o.
func (m Money) LessThan(o Money) (bool, error) {
	if err := m.sameCurrency(o); err != nil {
		return false, err
	}
	return m.amount.LessThan(o.amount), nil
}

// String formats as "<amount> <currency>", e.g. "100.00 BRL".
func (m Money) String() string {
	return m.amount.StringFixed(Scale) + " " + m.currency
}

type moneyJSON struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

// MarshalJSON encodes the amount as a fixed two-digit string.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(moneyJSON{Amount: m.amount.StringFixed(Scale), Currency: m.currency})
}

// UnmarshalJSON decodes and validates a money payload.
func (m *Money) UnmarshalJSON(data []byte) error {
	var raw moneyJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := FromString(raw.Amount, raw.Currency)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
