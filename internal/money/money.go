// Package money provides fixed-precision currency amounts and asset quantities.
//
// Amounts are stored as integers scaled by a fixed number of decimal digits
// (2 for currency, 4 for asset quantities). Intermediate arithmetic that needs
// more precision (interest, weighted averages) is carried out with
// shopspring/decimal and rounded half-up exactly once, when the result is
// turned back into a Money or Quantity.
package money

import (
	"bytes"
	"math"
	"strconv"
	"strings"

	gomoney "github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"

	apperrors "finledger/internal/errors"
)

// CurrencyDigits is the number of fractional digits kept for currency values.
const CurrencyDigits = 2

// Money is a currency amount expressed in minor units (cents).
type Money int64

// Zero is the zero amount.
const Zero Money = 0

var (
	maxScaled = decimal.NewFromInt(math.MaxInt64)
	minScaled = decimal.NewFromInt(math.MinInt64)
)

// scale rounds d half-up to places digits and returns it as an integer count
// of 10^-places units. Values outside the int64 range are INVALID_INPUT.
func scale(d decimal.Decimal, places int32, what string) (int64, error) {
	s := RoundHalfUp(d, places).Shift(places)
	if s.GreaterThan(maxScaled) || s.LessThan(minScaled) {
		return 0, apperrors.Withf(apperrors.ErrInvalidInput, "%s %s is out of range", what, d.String())
	}
	return s.IntPart(), nil
}

// CheckedFromDecimal rounds d half-up to cents, failing when the result does
// not fit in a Money.
func CheckedFromDecimal(d decimal.Decimal) (Money, error) {
	cents, err := scale(d, CurrencyDigits, "amount")
	return Money(cents), err
}

// FromDecimal is CheckedFromDecimal for values already known to be in range.
// It panics instead of wrapping around.
func FromDecimal(d decimal.Decimal) Money {
	m, err := CheckedFromDecimal(d)
	if err != nil {
		panic(err)
	}
	return m
}

// FromCents builds a Money from an integer number of cents.
func FromCents(cents int64) Money { return Money(cents) }

// Parse reads a decimal string such as "1234.56".
func Parse(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, apperrors.Withf(apperrors.ErrInvalidInput, "invalid amount %q", s)
	}
	return CheckedFromDecimal(d)
}

// MustParse is like Parse but panics on malformed input. Intended for tests and constants.
func MustParse(s string) Money {
	m, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return m
}

// RoundHalfUp rounds d to places fractional digits, ties going towards +Inf.
func RoundHalfUp(d decimal.Decimal, places int32) decimal.Decimal {
	half := decimal.New(5, -1)
	return d.Shift(places).Add(half).Floor().Shift(-places)
}

func (m Money) Cents() int64               { return int64(m) }
func (m Money) Decimal() decimal.Decimal   { return decimal.New(int64(m), -CurrencyDigits) }
func (m Money) String() string             { return m.Decimal().StringFixed(CurrencyDigits) }
func (m Money) Neg() Money                 { return -m }
func (m Money) IsZero() bool               { return m == 0 }
func (m Money) IsPositive() bool           { return m > 0 }
func (m Money) IsNegative() bool           { return m < 0 }
func (m Money) Add(n Money) Money          { return m + n }
func (m Money) Sub(n Money) Money          { return m - n }
func (m Money) LessThan(n Money) bool      { return m < n }
func (m Money) GreaterThan(n Money) bool   { return m > n }
func (m Money) Min(n Money) Money          { return min(m, n) }
func (m Money) Max(n Money) Money          { return max(m, n) }
func (m Money) Clamp(lo, hi Money) Money   { return max(lo, min(m, hi)) }
func (m Money) MulInt(n int64) Money       { return m * Money(n) }
func (m Money) Equal(n Money) bool         { return m == n }
func (m Money) Abs() Money                 { return max(m, -m) }

// MulRate applies a rate to the amount and rounds the product to cents.
// The product must be in range; see CheckedMulRate.
func (m Money) MulRate(r decimal.Decimal) Money { return FromDecimal(m.Decimal().Mul(r)) }

// CheckedMulRate is MulRate for rates that come from user input.
func (m Money) CheckedMulRate(r decimal.Decimal) (Money, error) {
	return CheckedFromDecimal(m.Decimal().Mul(r))
}

// MulQuantity returns m × q rounded to cents, e.g. unit price × quantity.
// The product must be in range; see CheckedMulQuantity.
func (m Money) MulQuantity(q Quantity) Money {
	return FromDecimal(m.Decimal().Mul(q.Decimal()))
}

// CheckedMulQuantity is MulQuantity for untrusted operands.
func (m Money) CheckedMulQuantity(q Quantity) (Money, error) {
	return CheckedFromDecimal(m.Decimal().Mul(q.Decimal()))
}

// Allocate splits m into n parts of equal size, truncated to the cent, and
// returns the regular part together with the last part, which absorbs the
// remainder so that (n-1)*part + last == m.
func (m Money) Allocate(n int) (part, last Money) {
	if n <= 0 {
		return 0, m
	}
	part = m / Money(n)
	last = m - part*Money(n-1)
	return part, last
}

// Format renders m with the currency symbol and separators of the given ISO code.
func (m Money) Format(currency string) string {
	return gomoney.New(int64(m), currency).Display()
}

// IsCurrency reports whether code is a known ISO 4217 currency code.
func IsCurrency(code string) bool {
	return code != "" && gomoney.GetCurrency(strings.ToUpper(code)) != nil
}

// Sum adds all amounts.
func Sum(ms ...Money) Money {
	var total Money
	for _, m := range ms {
		total += m
	}
	return total
}

// MarshalJSON encodes the amount as a fixed two-digit decimal string.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(m.String())), nil
}

// UnmarshalJSON accepts either a decimal string ("12.34") or a JSON number (12.34).
func (m *Money) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	if len(data) == 0 || string(data) == "null" {
		*m = 0
		return nil
	}
	v, err := Parse(string(data))
	if err != nil {
		return err
	}
	*m = v
	return nil
}
