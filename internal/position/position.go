// Package position maintains investment positions (quantity and weighted
// average cost) from buy and sell operations.
package position

import (
	"slices"
	"time"

	apperrors "finledger/internal/errors"
	"finledger/internal/money"
)

// Side is the direction of an operation.
type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// Operation is a single trade on an asset.
type Operation struct {
	Side       Side
	Quantity   money.Quantity
	UnitPrice  money.Money
	ExecutedAt time.Time
}

// Amount is quantity × unit price rounded to cents: the invested amount of a
// buy or the proceeds of a sell. Validate guarantees it is in range.
func (op Operation) Amount() money.Money {
	return op.UnitPrice.MulQuantity(op.Quantity)
}

// Validate rejects operations that can never be valid trades.
func (op Operation) Validate() error {
	if op.Side != Buy && op.Side != Sell {
		return apperrors.Withf(apperrors.ErrInvalidOperation, "unsupported operation type %q", op.Side)
	}
	if !op.Quantity.IsPositive() {
		return apperrors.WithMessage(apperrors.ErrInvalidOperation, "quantity must be greater than zero")
	}
	if !op.UnitPrice.IsPositive() {
		return apperrors.WithMessage(apperrors.ErrInvalidOperation, "unit price must be greater than zero")
	}
	amount, err := op.UnitPrice.CheckedMulQuantity(op.Quantity)
	if err != nil {
		return apperrors.Withf(apperrors.ErrInvalidOperation,
			"operation amount %s × %s is out of range", op.Quantity, op.UnitPrice)
	}
	if !amount.IsPositive() {
		return apperrors.WithMessage(apperrors.ErrInvalidOperation, "operation amount rounds to zero")
	}
	return nil
}

// Position is the holding of a single asset.
type Position struct {
	Asset          string
	TotalQuantity  money.Quantity
	AverageCost    money.Money
	LastExecutedAt time.Time
	Operations     int
}

// CostBasis is the cost of the quantity currently held.
func (p Position) CostBasis() money.Money {
	return p.AverageCost.MulQuantity(p.TotalQuantity)
}

// Apply returns the position after op. The receiver is never modified, so a
// failed operation leaves the caller's position untouched.
//
// A buy recomputes the weighted average cost; a sell only consumes quantity.
func (p Position) Apply(op Operation) (Position, error) {
	if err := op.Validate(); err != nil {
		return p, err
	}

	next := p
	switch op.Side {
	case Buy:
		next.TotalQuantity = p.TotalQuantity + op.Quantity
		if next.TotalQuantity < p.TotalQuantity {
			return p, apperrors.Withf(apperrors.ErrInvalidOperation, "total quantity of %q is out of range", p.Asset)
		}
		if p.TotalQuantity.IsZero() {
			next.AverageCost = op.UnitPrice
		} else {
			held := p.AverageCost.Decimal().Mul(p.TotalQuantity.Decimal())
			bought := op.UnitPrice.Decimal().Mul(op.Quantity.Decimal())
			next.AverageCost = money.FromDecimal(held.Add(bought).Div(next.TotalQuantity.Decimal()))
		}
		if _, err := next.AverageCost.CheckedMulQuantity(next.TotalQuantity); err != nil {
			return p, apperrors.Withf(apperrors.ErrInvalidOperation, "cost basis of %q is out of range", p.Asset)
		}
	case Sell:
		if p.TotalQuantity.IsZero() {
			return p, apperrors.Withf(apperrors.ErrPositionNotFound, "no open position for asset %q", p.Asset)
		}
		if op.Quantity > p.TotalQuantity {
			return p, apperrors.Withf(apperrors.ErrInsufficientQuantity,
				"insufficient quantity of %q: requested %s, held %s, short by %s",
				p.Asset, op.Quantity, p.TotalQuantity, op.Quantity-p.TotalQuantity)
		}
		next.TotalQuantity = p.TotalQuantity - op.Quantity
	}

	if op.ExecutedAt.After(next.LastExecutedAt) {
		next.LastExecutedAt = op.ExecutedAt
	}
	next.Operations++
	return next, nil
}

// Sort orders operations chronologically, keeping the input order for
// operations executed at the same instant.
func Sort(ops []Operation) {
	slices.SortStableFunc(ops, func(a, b Operation) int {
		return a.ExecutedAt.Compare(b.ExecutedAt)
	})
}

// Fold derives the position of asset from its full operation history. The
// input slice is not reordered. Fold fails at the first operation that would
// be rejected by Apply, e.g. a sell exceeding the quantity held at that point.
func Fold(asset string, ops []Operation) (Position, error) {
	ordered := slices.Clone(ops)
	Sort(ordered)

	p := Position{Asset: asset}
	for _, op := range ordered {
		var err error
		if p, err = p.Apply(op); err != nil {
			return Position{Asset: asset}, err
		}
	}
	return p, nil
}

// MarketValue values a position at an externally supplied market price.
type MarketValue struct {
	Price          money.Money `json:"price"`
	Value          money.Money `json:"value"`
	CostBasis      money.Money `json:"cost_basis"`
	UnrealizedGain money.Money `json:"unrealized_gain"`
}

// Value computes market value and unrealized gain at price. The price is an
// external input, so an out-of-range product is reported, not wrapped.
func (p Position) Value(price money.Money) (MarketValue, error) {
	value, err := price.CheckedMulQuantity(p.TotalQuantity)
	if err != nil {
		return MarketValue{}, apperrors.Withf(apperrors.ErrInvalidInput,
			"value of %s %q at %s is out of range", p.TotalQuantity, p.Asset, price)
	}
	basis := p.CostBasis()
	return MarketValue{
		Price:          price,
		Value:          value,
		CostBasis:      basis,
		UnrealizedGain: value - basis,
	}, nil
}
