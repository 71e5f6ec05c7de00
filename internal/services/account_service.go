package services

import (
	"errors"
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
)

// accountService handles account-related business logic and owns the ledger.
type accountService struct {
	db              *gorm.DB
	defaultCurrency string
}

// NewAccountService creates a new AccountServicer. Accounts created without a
// currency get defaultCurrency.
func NewAccountService(db *gorm.DB, defaultCurrency string) AccountServicer {
	if defaultCurrency == "" {
		defaultCurrency = "BRL"
	}
	return &accountService{db: db, defaultCurrency: defaultCurrency}
}

// CreateAccount creates a new account for a user. A positive initial balance
// is recorded as an income transaction so the balance always matches the
// account's transactions.
func (s *accountService) CreateAccount(userID string, input AccountInput) (*models.Account, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "account name is required")
	}
	if input.Type == "" {
		input.Type = models.AccountTypeCash
	}
	if !models.IsValidAccountType(input.Type) {
		return nil, apperrors.Withf(apperrors.ErrInvalidInput, "unsupported account type %q", input.Type)
	}
	if input.InitialBalance.IsNegative() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "initial balance cannot be negative")
	}

	currency := strings.ToUpper(input.Currency)
	if currency == "" {
		currency = s.defaultCurrency
	}
	if !money.IsCurrency(currency) {
		return nil, apperrors.Withf(apperrors.ErrInvalidInput, "unknown currency %q", currency)
	}

	account := &models.Account{
		UserID:        userID,
		Name:          name,
		Type:          input.Type,
		Description:   input.Description,
		Currency:      currency,
		Broker:        input.Broker,
		AccountNumber: input.AccountNumber,
		IsActive:      true,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(account).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		if input.InitialBalance.IsPositive() {
			transaction := &models.Transaction{
				UserID:      userID,
				AccountID:   account.ID,
				Type:        models.TransactionTypeIncome,
				Amount:      input.InitialBalance,
				Description: "Initial balance",
				Date:        time.Now(),
			}
			if err := tx.Create(transaction).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
			if err := s.ApplyDelta(tx, account.ID, transaction.SignedAmount()); err != nil {
				return err
			}
			account.Balance = input.InitialBalance
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return account, nil
}

// GetUserAccounts retrieves a paginated list of accounts for a user.
func (s *accountService) GetUserAccounts(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Account], error) {
	query := s.db.Model(&models.Account{}).Where("user_id = ? AND is_active = ?", userID, true)
	result, err := pagination.Find[models.Account](query, page, "created_at")
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return result, nil
}

// GetAccountByID retrieves an account by ID for a specific user
func (s *accountService) GetAccountByID(userID, accountID string) (*models.Account, error) {
	return findAccount(s.db, userID, accountID)
}

// LockAccount loads an account of the user inside tx, holding its row lock
// until the unit of work ends.
func (s *accountService) LockAccount(tx *gorm.DB, userID, accountID string) (*models.Account, error) {
	return findAccount(tx.Clauses(clause.Locking{Strength: "UPDATE"}), userID, accountID)
}

func findAccount(db *gorm.DB, userID, accountID string) (*models.Account, error) {
	if accountID == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "account ID is required")
	}

	var account models.Account
	if err := db.Where("id = ? AND user_id = ? AND is_active = ?", accountID, userID, true).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrAccountNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &account, nil
}

// UpdateAccount updates the descriptive fields of an account. Only fields
// relevant to the account's type are applied.
func (s *accountService) UpdateAccount(userID, accountID string, fields AccountUpdateFields) (*models.Account, error) {
	account, err := s.GetAccountByID(userID, accountID)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]any)
	if fields.Name != nil && strings.TrimSpace(*fields.Name) != "" {
		updates["name"] = strings.TrimSpace(*fields.Name)
	}
	if fields.Description != nil {
		updates["description"] = *fields.Description
	}
	if account.Type == models.AccountTypeInvestment {
		if fields.Broker != nil {
			updates["broker"] = *fields.Broker
		}
		if fields.AccountNumber != nil {
			updates["account_number"] = *fields.AccountNumber
		}
	}

	if len(updates) > 0 {
		if err := s.db.Model(account).Updates(updates).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		// Reload to get fresh data
		if err := s.db.Where("id = ?", account.ID).First(account).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}

	return account, nil
}

// ApplyDelta adds delta to the balance of the account in place. It is the
// single point where balances change and must be called with the unit of
// work that persisted the transaction causing the delta. Zero deltas are
// applied like any other.
func (s *accountService) ApplyDelta(tx *gorm.DB, accountID string, delta money.Money) error {
	res := tx.Model(&models.Account{}).
		Where("id = ?", accountID).
		UpdateColumn("balance", gorm.Expr("balance + ?", delta.Cents()))
	if res.Error != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrAccountNotFound
	}

	metrics.ObserveDelta(delta)
	logger.For("ledger").Debugw("ledger delta applied", "account_id", accountID, "delta", delta.String())
	return nil
}

// RecomputeBalance folds the balance of an account from its transactions.
func (s *accountService) RecomputeBalance(userID, accountID string) (money.Money, error) {
	if _, err := s.GetAccountByID(userID, accountID); err != nil {
		return 0, err
	}
	return sumTransactions(s.db, accountID)
}

func sumTransactions(db *gorm.DB, accountID string) (money.Money, error) {
	var total int64
	err := db.Model(&models.Transaction{}).
		Select("COALESCE(SUM(CASE WHEN type = ? THEN amount ELSE -amount END), 0)", models.TransactionTypeIncome).
		Where("account_id = ?", accountID).
		Scan(&total).Error
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return money.FromCents(total), nil
}

// VerifyBalances compares every stored balance with the sum of its
// transactions and reports the accounts that differ.
func (s *accountService) VerifyBalances() ([]BalanceDrift, error) {
	var drifts []BalanceDrift
	var accounts []models.Account
	err := s.db.Model(&models.Account{}).Select("id").FindInBatches(&accounts, 200, func(_ *gorm.DB, _ int) error {
		for i := range accounts {
			drift, err := s.verifyBalance(accounts[i].ID)
			if err != nil {
				return err
			}
			if drift != nil {
				drifts = append(drifts, *drift)
			}
		}
		return nil
	}).Error
	if err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return drifts, nil
}

// verifyBalance reads the stored balance and the transaction sum of one
// account while holding its row lock, so no ledger write lands between the
// two reads. Accounts deleted since listing are skipped.
func (s *accountService) verifyBalance(accountID string) (*BalanceDrift, error) {
	var drift *BalanceDrift
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var account models.Account
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", accountID).
			First(&account).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		computed, err := sumTransactions(tx, accountID)
		if err != nil {
			return err
		}
		if computed != account.Balance {
			drift = &BalanceDrift{
				AccountID: account.ID,
				Stored:    account.Balance,
				Computed:  computed,
			}
		}
		return nil
	})
	return drift, err
}
