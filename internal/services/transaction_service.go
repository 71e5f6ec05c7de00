package services

import (
	"errors"
	"slices"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "finledger/internal/errors"
	"finledger/internal/models"
	"finledger/internal/money"
	"finledger/internal/pagination"
)

// transactionService handles the lifecycle of ledger transactions.
type transactionService struct {
	db             *gorm.DB
	accountService AccountServicer
}

// NewTransactionService creates a new TransactionServicer.
func NewTransactionService(db *gorm.DB, accountService AccountServicer) TransactionServicer {
	return &transactionService{
		db:             db,
		accountService: accountService,
	}
}

// accountDelta is a balance change to apply to one account.
type accountDelta struct {
	AccountID string
	Delta     money.Money
}

// ledgerDeltas computes the balance changes caused by moving a transaction
// from state prev to state next. A nil prev means creation, a nil next means
// deletion. The result is ordered by account ID so that concurrent units of
// work lock accounts in the same order.
func ledgerDeltas(prev, next *models.Transaction) []accountDelta {
	byAccount := make(map[string]money.Money, 2)
	if prev != nil {
		byAccount[prev.AccountID] -= prev.SignedAmount()
	}
	if next != nil {
		byAccount[next.AccountID] += next.SignedAmount()
	}

	deltas := make([]accountDelta, 0, len(byAccount))
	for id, d := range byAccount {
		deltas = append(deltas, accountDelta{AccountID: id, Delta: d})
	}
	slices.SortFunc(deltas, func(a, b accountDelta) int {
		return strings.Compare(a.AccountID, b.AccountID)
	})
	return deltas
}

func (s *transactionService) applyLedger(tx *gorm.DB, prev, next *models.Transaction) error {
	for _, d := range ledgerDeltas(prev, next) {
		if err := s.accountService.ApplyDelta(tx, d.AccountID, d.Delta); err != nil {
			return err
		}
	}
	return nil
}

func validateTransaction(t *models.Transaction) error {
	if !models.IsValidTransactionType(t.Type) {
		return apperrors.ErrInvalidTransactionType
	}
	if !t.Amount.IsPositive() {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "amount must be greater than zero")
	}
	if t.AccountID == "" {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "account ID is required")
	}
	return nil
}

// CreateTransaction creates a new transaction for a user's account
func (s *transactionService) CreateTransaction(
	userID string,
	accountID string,
	transactionType models.TransactionType,
	amount money.Money,
	description string,
	date time.Time,
) (*models.Transaction, error) {
	// Default date to now if not provided
	if date.IsZero() {
		date = time.Now()
	}

	transaction := &models.Transaction{
		UserID:      userID,
		AccountID:   accountID,
		Type:        transactionType,
		Amount:      amount,
		Description: description,
		Date:        date,
	}
	if err := validateTransaction(transaction); err != nil {
		return nil, err
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if _, err := s.accountService.LockAccount(tx, userID, accountID); err != nil {
			return err
		}
		return s.CreateInTx(tx, transaction)
	})
	if err != nil {
		return nil, err
	}
	return transaction, nil
}

// CreateInTx persists transaction and applies its delta inside tx. The caller
// has already checked that the account belongs to the user.
func (s *transactionService) CreateInTx(tx *gorm.DB, transaction *models.Transaction) error {
	if err := validateTransaction(transaction); err != nil {
		return err
	}
	if err := tx.Create(transaction).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return s.applyLedger(tx, nil, transaction)
}

// UpdateTransaction changes any of type, amount, account, description and
// date. The old delta is reversed and the new one applied in one unit of
// work, on two accounts when the transaction moves between them.
func (s *transactionService) UpdateTransaction(userID, transactionID string, fields TransactionUpdateFields) (*models.Transaction, error) {
	var updated models.Transaction
	err := s.db.Transaction(func(tx *gorm.DB) error {
		current, err := s.lockTransaction(tx, userID, transactionID)
		if err != nil {
			return err
		}
		if current.IsLinked() {
			return apperrors.ErrTransactionNotEditable
		}

		next := *current
		if fields.AccountID != nil {
			next.AccountID = *fields.AccountID
		}
		if fields.Type != nil {
			next.Type = *fields.Type
		}
		if fields.Amount != nil {
			next.Amount = *fields.Amount
		}
		if fields.Description != nil {
			next.Description = *fields.Description
		}
		if fields.Date != nil && !fields.Date.IsZero() {
			next.Date = *fields.Date
		}
		if err := validateTransaction(&next); err != nil {
			return err
		}
		if next.AccountID != current.AccountID {
			if _, err := s.accountService.LockAccount(tx, userID, next.AccountID); err != nil {
				return err
			}
		}

		err = tx.Model(&next).Select("account_id", "type", "amount", "description", "date").Updates(&next).Error
		if err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if err := s.applyLedger(tx, current, &next); err != nil {
			return err
		}
		updated = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteTransaction deletes a transaction and reverses its effect on the
// account balance.
func (s *transactionService) DeleteTransaction(userID, transactionID string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		transaction, err := s.lockTransaction(tx, userID, transactionID)
		if err != nil {
			return err
		}
		if transaction.IsLinked() {
			return apperrors.ErrTransactionNotEditable
		}
		return s.DeleteInTx(tx, transaction)
	})
}

// DeleteInTx removes transaction and reverses its delta inside tx.
func (s *transactionService) DeleteInTx(tx *gorm.DB, transaction *models.Transaction) error {
	if err := tx.Delete(transaction).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return s.applyLedger(tx, transaction, nil)
}

func (s *transactionService) lockTransaction(tx *gorm.DB, userID, transactionID string) (*models.Transaction, error) {
	var transaction models.Transaction
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND user_id = ?", transactionID, userID).
		First(&transaction).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrTransactionNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &transaction, nil
}

// GetAccountTransactions retrieves a paginated, filtered list of transactions for a specific account.
func (s *transactionService) GetAccountTransactions(userID, accountID string, page pagination.PageRequest, filter TransactionFilter) (*pagination.PageResponse[models.Transaction], error) {
	// First verify the account belongs to the user
	if _, err := s.accountService.GetAccountByID(userID, accountID); err != nil {
		return nil, err
	}
	filter.AccountID = &accountID
	return s.GetUserTransactions(userID, page, filter)
}

// GetUserTransactions retrieves a paginated, filtered list of the user's transactions.
func (s *transactionService) GetUserTransactions(userID string, page pagination.PageRequest, filter TransactionFilter) (*pagination.PageResponse[models.Transaction], error) {
	query := applyTransactionFilters(s.db.Model(&models.Transaction{}).Where("user_id = ?", userID), filter)
	result, err := pagination.Find[models.Transaction](query, page, "date DESC, created_at DESC")
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return result, nil
}

func applyTransactionFilters(q *gorm.DB, f TransactionFilter) *gorm.DB {
	if f.FromDate != nil {
		q = q.Where("date >= ?", *f.FromDate)
	}
	if f.ToDate != nil {
		q = q.Where("date <= ?", *f.ToDate)
	}
	if f.Type != nil {
		q = q.Where("type = ?", *f.Type)
	}
	if f.MinAmount != nil {
		q = q.Where("amount >= ?", f.MinAmount.Cents())
	}
	if f.MaxAmount != nil {
		q = q.Where("amount <= ?", f.MaxAmount.Cents())
	}
	if f.AccountID != nil {
		q = q.Where("account_id = ?", *f.AccountID)
	}
	return q
}

// GetTransactionByID retrieves a transaction by ID for a specific user
func (s *transactionService) GetTransactionByID(userID, transactionID string) (*models.Transaction, error) {
	var transaction models.Transaction
	if err := s.db.Where("id = ? AND user_id = ?", transactionID, userID).First(&transaction).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrTransactionNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &transaction, nil
}
