package money

import (
	"bytes"
	"strconv"

	"github.com/shopspring/decimal"

	apperrors "finledger/internal/errors"
)

// QuantityDigits is the number of fractional digits kept for asset quantities.
const QuantityDigits = 4

// Quantity is an asset quantity scaled by 10^4.
type Quantity int64

// CheckedQuantityFromDecimal rounds d half-up to four fractional digits,
// failing when the result does not fit in a Quantity.
func CheckedQuantityFromDecimal(d decimal.Decimal) (Quantity, error) {
	units, err := scale(d, QuantityDigits, "quantity")
	return Quantity(units), err
}

// QuantityFromDecimal is CheckedQuantityFromDecimal for values known to be in
// range. It panics instead of wrapping around.
func QuantityFromDecimal(d decimal.Decimal) Quantity {
	q, err := CheckedQuantityFromDecimal(d)
	if err != nil {
		panic(err)
	}
	return q
}

// Units builds a whole-unit quantity.
func Units(n int64) Quantity {
	return QuantityFromDecimal(decimal.NewFromInt(n))
}

// ParseQuantity reads a decimal string such as "10.5".
func ParseQuantity(s string) (Quantity, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, apperrors.Withf(apperrors.ErrInvalidInput, "invalid quantity %q", s)
	}
	return CheckedQuantityFromDecimal(d)
}

// MustParseQuantity is like ParseQuantity but panics on malformed input.
func MustParseQuantity(s string) Quantity {
	q, err := ParseQuantity(s)
	if err != nil {
		panic(err)
	}
	return q
}

func (q Quantity) Decimal() decimal.Decimal { return decimal.New(int64(q), -QuantityDigits) }
func (q Quantity) String() string           { return q.Decimal().String() }
func (q Quantity) IsZero() bool             { return q == 0 }
func (q Quantity) IsPositive() bool         { return q > 0 }
func (q Quantity) IsNegative() bool         { return q < 0 }
func (q Quantity) Add(p Quantity) Quantity  { return q + p }
func (q Quantity) Sub(p Quantity) Quantity  { return q - p }

func (q Quantity) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(q.String())), nil
}

func (q *Quantity) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	if len(data) == 0 || string(data) == "null" {
		*q = 0
		return nil
	}
	v, err := ParseQuantity(string(data))
	if err != nil {
		return err
	}
	*q = v
	return nil
}
