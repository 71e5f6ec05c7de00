package models

import (
	"time"

	"finledger/internal/money"
	"finledger/internal/position"
)

// OperationType is the side of an investment operation.
type OperationType string

const (
	OperationTypeBuy  OperationType = "buy"
	OperationTypeSell OperationType = "sell"
)

// InvestmentOperation is a single buy or sell of an asset. Each operation
// owns exactly one transaction on its account: an expense for a buy, an
// income for a sell.
type InvestmentOperation struct {
	Base
	UserID     string         `gorm:"type:uuid;not null;index:idx_operation_user_asset" json:"user_id"`
	AccountID  string         `gorm:"type:uuid;not null" json:"account_id"`
	AssetName  string         `gorm:"not null;index:idx_operation_user_asset" json:"asset_name"`
	Type       OperationType  `gorm:"not null" json:"operation_type"`
	Quantity   money.Quantity `gorm:"type:bigint;not null" json:"quantity" swaggertype:"string"`
	UnitPrice  money.Money    `gorm:"type:bigint;not null" json:"unit_price" swaggertype:"string"`
	Amount     money.Money    `gorm:"type:bigint;not null" json:"amount" swaggertype:"string"`
	Broker     string         `json:"broker,omitempty"`
	Notes      string         `json:"notes,omitempty"`
	ExecutedAt time.Time      `gorm:"not null;index" json:"executed_at"`
}

// ToOperation converts the stored row into a position engine operation.
func (o *InvestmentOperation) ToOperation() position.Operation {
	return position.Operation{
		Side:       position.Side(o.Type),
		Quantity:   o.Quantity,
		UnitPrice:  o.UnitPrice,
		ExecutedAt: o.ExecutedAt,
	}
}

// InvestmentPosition is the materialized position of a user in an asset.
// It always equals the fold of the asset's operation history.
type InvestmentPosition struct {
	Base
	UserID         string         `gorm:"type:uuid;not null;uniqueIndex:idx_position_user_asset" json:"user_id"`
	AssetName      string         `gorm:"not null;uniqueIndex:idx_position_user_asset" json:"asset_name"`
	TotalQuantity  money.Quantity `gorm:"type:bigint;not null;default:0" json:"total_quantity" swaggertype:"string"`
	AverageCost    money.Money    `gorm:"type:bigint;not null;default:0" json:"average_unit_cost" swaggertype:"string"`
	OperationCount int            `gorm:"not null;default:0" json:"operation_count"`
	LastExecutedAt time.Time      `json:"last_executed_at"`
}

// State returns the position engine view of the row.
func (p *InvestmentPosition) State() position.Position {
	return position.Position{
		Asset:          p.AssetName,
		TotalQuantity:  p.TotalQuantity,
		AverageCost:    p.AverageCost,
		LastExecutedAt: p.LastExecutedAt,
		Operations:     p.OperationCount,
	}
}

// SetState copies an engine position into the row.
func (p *InvestmentPosition) SetState(s position.Position) {
	p.TotalQuantity = s.TotalQuantity
	p.AverageCost = s.AverageCost
	p.LastExecutedAt = s.LastExecutedAt
	p.OperationCount = s.Operations
}
