package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "finledger/internal/errors"
	"finledger/internal/logger"
	"finledger/internal/metrics"
	"finledger/internal/models"
	"finledger/internal/money"
	"finledger/internal/pagination"
	"finledger/internal/position"
)

// investmentService maintains investment positions from buy and sell
// operations. Each operation writes its ledger leg through the transaction
// service inside the same unit of work.
type investmentService struct {
	db                 *gorm.DB
	accountService     AccountServicer
	transactionService TransactionServicer
}

// NewInvestmentService creates a new InvestmentServicer.
func NewInvestmentService(db *gorm.DB, accountService AccountServicer, transactionService TransactionServicer) InvestmentServicer {
	return &investmentService{
		db:                 db,
		accountService:     accountService,
		transactionService: transactionService,
	}
}

func normalizeAsset(name string) string {
	return strings.TrimSpace(name)
}

// Buy records a purchase: the position's weighted average cost is recomputed
// and an expense of quantity × unit price is charged to the account.
func (s *investmentService) Buy(userID string, input OperationInput) (*OperationResult, error) {
	return s.record(userID, position.Buy, input)
}

// Sell records a sale: quantity is consumed without touching the average
// cost and the proceeds are credited to the account.
func (s *investmentService) Sell(userID string, input OperationInput) (*OperationResult, error) {
	return s.record(userID, position.Sell, input)
}

func (s *investmentService) record(userID string, side position.Side, input OperationInput) (*OperationResult, error) {
	asset := normalizeAsset(input.AssetName)
	if asset == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "asset name is required")
	}
	if input.ExecutedAt.IsZero() {
		input.ExecutedAt = time.Now()
	}

	op := position.Operation{
		Side:       side,
		Quantity:   input.Quantity,
		UnitPrice:  input.UnitPrice,
		ExecutedAt: input.ExecutedAt,
	}
	if err := op.Validate(); err != nil {
		return nil, err
	}

	result := &OperationResult{}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if _, err := s.accountService.LockAccount(tx, userID, input.AccountID); err != nil {
			return err
		}

		var row *models.InvestmentPosition
		var err error
		if side == position.Buy {
			row, err = s.lockOrCreatePosition(tx, userID, asset)
		} else {
			row, err = s.lockPosition(tx, userID, asset)
		}
		if err != nil {
			return err
		}

		next, err := s.advance(tx, row, op)
		if err != nil {
			return err
		}

		operation := &models.InvestmentOperation{
			UserID:     userID,
			AccountID:  input.AccountID,
			AssetName:  asset,
			Type:       models.OperationType(side),
			Quantity:   op.Quantity,
			UnitPrice:  op.UnitPrice,
			Amount:     op.Amount(),
			Broker:     input.Broker,
			Notes:      input.Notes,
			ExecutedAt: op.ExecutedAt,
		}
		if err := tx.Create(operation).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		transaction := &models.Transaction{
			UserID:                userID,
			AccountID:             input.AccountID,
			Type:                  models.TransactionTypeExpense,
			Amount:                operation.Amount,
			Description:           fmt.Sprintf("Buy %s %s @ %s", op.Quantity, asset, op.UnitPrice),
			Date:                  op.ExecutedAt,
			InvestmentOperationID: &operation.ID,
		}
		if side == position.Sell {
			transaction.Type = models.TransactionTypeIncome
			transaction.Description = fmt.Sprintf("Sell %s %s @ %s", op.Quantity, asset, op.UnitPrice)
		}
		if err := s.transactionService.CreateInTx(tx, transaction); err != nil {
			return err
		}

		row.SetState(next)
		if err := tx.Save(row).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		result.Operation = operation
		result.Transaction = transaction
		result.Position = row
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.InvestmentOperations.WithLabelValues(string(side)).Inc()
	logger.For("investments").Infow("investment operation recorded",
		"user_id", userID,
		"asset", asset,
		"type", side,
		"quantity", op.Quantity.String(),
		"unit_price", op.UnitPrice.String(),
		"total_quantity", result.Position.TotalQuantity.String(),
		"average_cost", result.Position.AverageCost.String(),
	)
	return result, nil
}

// advance returns the position after op. Operations at or after the latest
// recorded one are applied incrementally; back-dated operations refold the
// whole history so that every intermediate state is validated again.
func (s *investmentService) advance(tx *gorm.DB, row *models.InvestmentPosition, op position.Operation) (position.Position, error) {
	if !op.ExecutedAt.Before(row.LastExecutedAt) {
		return row.State().Apply(op)
	}

	history, err := s.history(tx, row.UserID, row.AssetName, "")
	if err != nil {
		return position.Position{}, err
	}
	return position.Fold(row.AssetName, append(history, op))
}

// history loads the operations of an asset in chronological order, skipping
// the operation with ID exclude.
func (s *investmentService) history(db *gorm.DB, userID, asset, exclude string) ([]position.Operation, error) {
	q := db.Where("user_id = ? AND asset_name = ?", userID, asset)
	if exclude != "" {
		q = q.Where("id <> ?", exclude)
	}

	var rows []models.InvestmentOperation
	if err := q.Order("executed_at, id").Find(&rows).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	ops := make([]position.Operation, len(rows))
	for i := range rows {
		ops[i] = rows[i].ToOperation()
	}
	return ops, nil
}

func (s *investmentService) lockPosition(tx *gorm.DB, userID, asset string) (*models.InvestmentPosition, error) {
	var row models.InvestmentPosition
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND asset_name = ?", userID, asset).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.Withf(apperrors.ErrPositionNotFound, "no open position for asset %q", asset)
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &row, nil
}

// lockOrCreatePosition inserts an empty position row if none exists and then
// locks it, so concurrent first buys of an asset serialize on the same row.
func (s *investmentService) lockOrCreatePosition(tx *gorm.DB, userID, asset string) (*models.InvestmentPosition, error) {
	empty := &models.InvestmentPosition{UserID: userID, AssetName: asset}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "asset_name"}},
		DoNothing: true,
	}).Create(empty).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return s.lockPosition(tx, userID, asset)
}

// GetPosition returns the stored position of an asset.
func (s *investmentService) GetPosition(userID, assetName string) (*models.InvestmentPosition, error) {
	asset := normalizeAsset(assetName)
	var row models.InvestmentPosition
	if err := s.db.Where("user_id = ? AND asset_name = ?", userID, asset).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.Withf(apperrors.ErrPositionNotFound, "no position for asset %q", asset)
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &row, nil
}

// ListPositions returns the user's positions ordered by asset. Closed
// positions (zero quantity) are included only on request.
func (s *investmentService) ListPositions(userID string, includeClosed bool) ([]models.InvestmentPosition, error) {
	q := s.db.Where("user_id = ?", userID)
	if !includeClosed {
		q = q.Where("total_quantity > 0")
	}

	positions := []models.InvestmentPosition{}
	if err := q.Order("asset_name").Find(&positions).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return positions, nil
}

// RebuildPosition recomputes a position from its operation history and
// stores the result. A stored state that differs from the fold is logged as
// drift before being replaced.
func (s *investmentService) RebuildPosition(userID, assetName string) (*models.InvestmentPosition, error) {
	asset := normalizeAsset(assetName)

	var row *models.InvestmentPosition
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		if row, err = s.lockPosition(tx, userID, asset); err != nil {
			return err
		}

		history, err := s.history(tx, userID, asset, "")
		if err != nil {
			return err
		}
		folded, err := position.Fold(asset, history)
		if err != nil {
			return apperrors.Wrap(apperrors.ErrInvariantViolation, err)
		}

		if stored := row.State(); !samePosition(stored, folded) {
			metrics.ReconciliationDrift.WithLabelValues("position").Inc()
			logger.For("investments").Warnw("position drift corrected",
				"user_id", userID,
				"asset", asset,
				"stored_quantity", stored.TotalQuantity.String(),
				"folded_quantity", folded.TotalQuantity.String(),
				"stored_average_cost", stored.AverageCost.String(),
				"folded_average_cost", folded.AverageCost.String(),
			)
		}

		row.SetState(folded)
		if err := tx.Save(row).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return row, nil
}

func samePosition(a, b position.Position) bool {
	return a.TotalQuantity == b.TotalQuantity &&
		a.AverageCost == b.AverageCost &&
		a.Operations == b.Operations &&
		a.LastExecutedAt.Equal(b.LastExecutedAt)
}

// GetOperation retrieves an operation by ID for a specific user.
func (s *investmentService) GetOperation(userID, operationID string) (*models.InvestmentOperation, error) {
	return findOperation(s.db, userID, operationID)
}

func findOperation(db *gorm.DB, userID, operationID string) (*models.InvestmentOperation, error) {
	var operation models.InvestmentOperation
	if err := db.Where("id = ? AND user_id = ?", operationID, userID).First(&operation).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrOperationNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &operation, nil
}

// ListOperations returns a page of the operations on an asset, most recent
// first. An empty asset name lists every operation of the user.
func (s *investmentService) ListOperations(userID, assetName string, page pagination.PageRequest) (*pagination.PageResponse[models.InvestmentOperation], error) {
	query := s.db.Model(&models.InvestmentOperation{}).Where("user_id = ?", userID)
	if asset := normalizeAsset(assetName); asset != "" {
		query = query.Where("asset_name = ?", asset)
	}
	result, err := pagination.Find[models.InvestmentOperation](query, page, "executed_at DESC")
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return result, nil
}

// DeleteOperation removes an operation together with its transaction and
// refolds the position. It fails, changing nothing, when the remaining
// history would sell more than it holds at some point.
func (s *investmentService) DeleteOperation(userID, operationID string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		operation, err := findOperation(tx, userID, operationID)
		if err != nil {
			return err
		}
		// Same order as record: account, then position.
		if _, err := s.accountService.LockAccount(tx, userID, operation.AccountID); err != nil {
			return err
		}
		row, err := s.lockPosition(tx, userID, operation.AssetName)
		if err != nil {
			return err
		}

		history, err := s.history(tx, userID, operation.AssetName, operation.ID)
		if err != nil {
			return err
		}
		folded, err := position.Fold(operation.AssetName, history)
		if err != nil {
			return err
		}

		var transaction models.Transaction
		err = tx.Where("investment_operation_id = ?", operation.ID).First(&transaction).Error
		switch {
		case err == nil:
			if err := s.transactionService.DeleteInTx(tx, &transaction); err != nil {
				return err
			}
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		if err := tx.Delete(operation).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		row.SetState(folded)
		if err := tx.Save(row).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		logger.For("investments").Infow("investment operation deleted",
			"user_id", userID,
			"operation_id", operation.ID,
			"asset", operation.AssetName,
			"total_quantity", folded.TotalQuantity.String(),
		)
		return nil
	})
}

// MarketValue values the user's position in an asset at an externally
// supplied price.
func (s *investmentService) MarketValue(userID, assetName string, price money.Money) (*PositionValuation, error) {
	if !price.IsPositive() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidOperation, "market price must be greater than zero")
	}
	row, err := s.GetPosition(userID, assetName)
	if err != nil {
		return nil, err
	}
	value, err := row.State().Value(price)
	if err != nil {
		return nil, err
	}
	return &PositionValuation{Position: row, MarketValue: value}, nil
}
