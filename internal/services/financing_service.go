package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"finledger/internal/amortization"
	apperrors "finledger/internal/errors"
	"finledger/internal/logger"
	"finledger/internal/metrics"
	"finledger/internal/models"
	"finledger/internal/money"
	"finledger/internal/pagination"
)

// financingService manages financing contracts and their payments. The
// outstanding balance of a contract is always the reconciliation of its
// registered payments.
type financingService struct {
	db                 *gorm.DB
	accountService     AccountServicer
	transactionService TransactionServicer
}

// NewFinancingService creates a new FinancingServicer.
func NewFinancingService(db *gorm.DB, accountService AccountServicer, transactionService TransactionServicer) FinancingServicer {
	return &financingService{
		db:                 db,
		accountService:     accountService,
		transactionService: transactionService,
	}
}

// CreateFinancing registers a new contract with its full principal outstanding.
func (s *financingService) CreateFinancing(userID string, input FinancingInput) (*models.FinancingContract, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "financing name is required")
	}
	if input.StartDate.IsZero() {
		input.StartDate = time.Now()
	}

	contract := &models.FinancingContract{
		UserID:         userID,
		Name:           name,
		Creditor:       input.Creditor,
		Principal:      input.Principal,
		PeriodicRate:   input.PeriodicRate,
		TermMonths:     input.TermMonths,
		Method:         input.Method,
		StartDate:      input.StartDate,
		CurrentBalance: input.Principal,
	}
	if err := contract.Params().Validate(); err != nil {
		return nil, err
	}

	if err := s.db.Create(contract).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return contract, nil
}

// GetFinancing retrieves a contract by ID for a specific user.
func (s *financingService) GetFinancing(userID, financingID string) (*models.FinancingContract, error) {
	return findFinancing(s.db, userID, financingID)
}

func findFinancing(db *gorm.DB, userID, financingID string) (*models.FinancingContract, error) {
	var contract models.FinancingContract
	if err := db.Where("id = ? AND user_id = ?", financingID, userID).First(&contract).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrFinancingNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &contract, nil
}

func lockFinancing(tx *gorm.DB, userID, financingID string) (*models.FinancingContract, error) {
	return findFinancing(tx.Clauses(clause.Locking{Strength: "UPDATE"}), userID, financingID)
}

// ListFinancings retrieves a paginated list of the user's contracts.
func (s *financingService) ListFinancings(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.FinancingContract], error) {
	query := s.db.Model(&models.FinancingContract{}).Where("user_id = ?", userID)
	result, err := pagination.Find[models.FinancingContract](query, page, "start_date DESC")
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return result, nil
}

// GetSchedule generates the theoretical schedule of a contract.
func (s *financingService) GetSchedule(userID, financingID string) (*amortization.Schedule, error) {
	contract, err := s.GetFinancing(userID, financingID)
	if err != nil {
		return nil, err
	}
	return amortization.Generate(contract.Params())
}

// SimulateSchedule generates a schedule for terms that are not stored.
func (s *financingService) SimulateSchedule(params amortization.Params) (*amortization.Schedule, error) {
	return amortization.Generate(params)
}

func loadPayments(db *gorm.DB, financingID string) ([]models.FinancingPayment, error) {
	var payments []models.FinancingPayment
	if err := db.Where("financing_id = ?", financingID).
		Order("payment_date, installment_number").
		Find(&payments).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return payments, nil
}

func reconcilePayments(contract *models.FinancingContract, payments []models.FinancingPayment) amortization.Reconciliation {
	in := make([]amortization.Payment, len(payments))
	for i := range payments {
		in[i] = payments[i].ToPayment()
	}
	return amortization.Reconcile(contract.Principal, in)
}

// splitPayment divides amount into principal and interest portions. Given
// portions must be non-negative and add up to amount; a single given portion
// fixes the other as the remainder. With no portions the interest accrued on
// balance for one period is paid first and the rest amortizes principal.
func splitPayment(amount, balance money.Money, contract *models.FinancingContract, principal, interest *money.Money) (money.Money, money.Money, error) {
	switch {
	case principal != nil && interest != nil:
		if *principal+*interest != amount {
			return 0, 0, apperrors.Withf(apperrors.ErrInvalidOperation,
				"principal %s and interest %s do not add up to the payment amount %s", *principal, *interest, amount)
		}
		if principal.IsNegative() || interest.IsNegative() {
			return 0, 0, apperrors.WithMessage(apperrors.ErrInvalidOperation, "payment portions cannot be negative")
		}
		return *principal, *interest, nil
	case principal != nil:
		if principal.IsNegative() || *principal > amount {
			return 0, 0, apperrors.WithMessage(apperrors.ErrInvalidOperation, "principal portion must be between zero and the payment amount")
		}
		return *principal, amount - *principal, nil
	case interest != nil:
		if interest.IsNegative() || *interest > amount {
			return 0, 0, apperrors.WithMessage(apperrors.ErrInvalidOperation, "interest portion must be between zero and the payment amount")
		}
		return amount - *interest, *interest, nil
	}

	accrued, err := balance.CheckedMulRate(contract.PeriodicRate)
	if err != nil {
		return 0, 0, apperrors.Withf(apperrors.ErrInvalidOperation,
			"interest on %s at rate %s is out of range", balance, contract.PeriodicRate)
	}
	accrued = accrued.Min(amount)
	return amount - accrued, accrued, nil
}

// RegisterPayment records a payment against a contract: the payment row, its
// expense transaction on the paying account and the new outstanding balance
// are written in one unit of work. The amount may not exceed the balance
// outstanding before the payment.
func (s *financingService) RegisterPayment(userID, financingID string, input PaymentInput) (*PaymentResult, error) {
	if !input.Amount.IsPositive() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidOperation, "payment amount must be greater than zero")
	}
	if input.PaymentDate.IsZero() {
		input.PaymentDate = time.Now()
	}

	result := &PaymentResult{}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		contract, err := lockFinancing(tx, userID, financingID)
		if err != nil {
			return err
		}
		if _, err := s.accountService.LockAccount(tx, userID, input.AccountID); err != nil {
			return err
		}

		payments, err := loadPayments(tx, contract.ID)
		if err != nil {
			return err
		}
		before := reconcilePayments(contract, payments).CurrentBalance
		if before != contract.CurrentBalance {
			metrics.ReconciliationDrift.WithLabelValues("financing").Inc()
			logger.For("financing").Warnw("financing balance drift before payment",
				"financing_id", contract.ID,
				"stored", contract.CurrentBalance.String(),
				"reconciled", before.String(),
			)
		}

		if before.IsZero() {
			return apperrors.WithMessage(apperrors.ErrOverPayment, "the contract is already settled")
		}
		if input.Amount > before {
			return apperrors.Withf(apperrors.ErrOverPayment,
				"payment of %s exceeds the outstanding balance of %s", input.Amount, before)
		}

		installment := input.InstallmentNumber
		if installment == 0 {
			installment = len(payments) + 1
		}
		if installment < 1 || installment > contract.TermMonths {
			return apperrors.Withf(apperrors.ErrInvalidOperation,
				"installment number must be between 1 and %d", contract.TermMonths)
		}

		principal, interest, err := splitPayment(input.Amount, before, contract, input.PrincipalPortion, input.InterestPortion)
		if err != nil {
			return err
		}

		after := before - principal
		if after.IsNegative() || after > contract.Principal {
			return apperrors.Withf(apperrors.ErrInvariantViolation,
				"balance after payment %s outside [0, %s]", after, contract.Principal)
		}

		payment := &models.FinancingPayment{
			UserID:            userID,
			FinancingID:       contract.ID,
			AccountID:         input.AccountID,
			InstallmentNumber: installment,
			PaymentDate:       input.PaymentDate,
			Amount:            input.Amount,
			PrincipalPortion:  principal,
			InterestPortion:   interest,
			BalanceBefore:     before,
			BalanceAfter:      after,
			Notes:             input.Notes,
		}
		if err := tx.Create(payment).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		transaction := &models.Transaction{
			UserID:             userID,
			AccountID:          input.AccountID,
			Type:               models.TransactionTypeExpense,
			Amount:             input.Amount,
			Description:        fmt.Sprintf("%s installment %d/%d", contract.Name, installment, contract.TermMonths),
			Date:               input.PaymentDate,
			FinancingPaymentID: &payment.ID,
		}
		if err := s.transactionService.CreateInTx(tx, transaction); err != nil {
			return err
		}

		if err := tx.Model(contract).UpdateColumn("current_balance", after.Cents()).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		contract.CurrentBalance = after

		result.Payment = payment
		result.Transaction = transaction
		result.Financing = contract
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.FinancingPayments.Inc()
	logger.For("financing").Infow("financing payment registered",
		"user_id", userID,
		"financing_id", financingID,
		"installment", result.Payment.InstallmentNumber,
		"amount", result.Payment.Amount.String(),
		"principal", result.Payment.PrincipalPortion.String(),
		"interest", result.Payment.InterestPortion.String(),
		"balance_after", result.Payment.BalanceAfter.String(),
	)
	return result, nil
}

// DeletePayment removes a payment and its transaction and restores the
// outstanding balance from the remaining payments.
func (s *financingService) DeletePayment(userID, financingID, paymentID string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		contract, err := lockFinancing(tx, userID, financingID)
		if err != nil {
			return err
		}

		var payment models.FinancingPayment
		if err := tx.Where("id = ? AND financing_id = ?", paymentID, contract.ID).First(&payment).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrPaymentNotFound
			}
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		var transaction models.Transaction
		err = tx.Where("financing_payment_id = ?", payment.ID).First(&transaction).Error
		switch {
		case err == nil:
			if err := s.transactionService.DeleteInTx(tx, &transaction); err != nil {
				return err
			}
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		if err := tx.Delete(&payment).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		remaining, err := loadPayments(tx, contract.ID)
		if err != nil {
			return err
		}
		balance := reconcilePayments(contract, remaining).CurrentBalance
		if err := tx.Model(contract).UpdateColumn("current_balance", balance.Cents()).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		logger.For("financing").Infow("financing payment deleted",
			"user_id", userID,
			"financing_id", contract.ID,
			"payment_id", payment.ID,
			"balance", balance.String(),
		)
		return nil
	})
}

// GetPayments retrieves a page of a contract's payments in chronological order.
func (s *financingService) GetPayments(userID, financingID string, page pagination.PageRequest) (*pagination.PageResponse[models.FinancingPayment], error) {
	if _, err := s.GetFinancing(userID, financingID); err != nil {
		return nil, err
	}
	query := s.db.Model(&models.FinancingPayment{}).Where("financing_id = ?", financingID)
	result, err := pagination.Find[models.FinancingPayment](query, page, "payment_date, installment_number")
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return result, nil
}

// Reconcile derives the real state of a contract from its payments and
// compares it with the schedule as of asOf.
func (s *financingService) Reconcile(userID, financingID string, asOf time.Time) (*amortization.Progress, error) {
	contract, err := s.GetFinancing(userID, financingID)
	if err != nil {
		return nil, err
	}
	if asOf.IsZero() {
		asOf = time.Now()
	}

	schedule, err := amortization.Generate(contract.Params())
	if err != nil {
		return nil, err
	}
	payments, err := loadPayments(s.db, contract.ID)
	if err != nil {
		return nil, err
	}

	rec := reconcilePayments(contract, payments)
	if rec.CurrentBalance != contract.CurrentBalance {
		metrics.ReconciliationDrift.WithLabelValues("financing").Inc()
		logger.For("financing").Warnw("financing balance drift",
			"financing_id", contract.ID,
			"stored", contract.CurrentBalance.String(),
			"reconciled", rec.CurrentBalance.String(),
		)
	}

	progress := amortization.Compare(schedule, rec, asOf)
	return &progress, nil
}

// SyncOutstandingBalances reconciles every contract and corrects stored
// balances that differ from their payments. It returns how many contracts
// were corrected.
func (s *financingService) SyncOutstandingBalances() (int, error) {
	var ids []string
	if err := s.db.Model(&models.FinancingContract{}).Pluck("id", &ids).Error; err != nil {
		return 0, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	corrected := 0
	for _, id := range ids {
		err := s.db.Transaction(func(tx *gorm.DB) error {
			var contract models.FinancingContract
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&contract).Error; err != nil {
				return err
			}
			payments, err := loadPayments(tx, contract.ID)
			if err != nil {
				return err
			}
			balance := reconcilePayments(&contract, payments).CurrentBalance
			if balance == contract.CurrentBalance {
				return nil
			}

			metrics.ReconciliationDrift.WithLabelValues("financing").Inc()
			logger.For("financing").Warnw("financing balance drift corrected",
				"financing_id", contract.ID,
				"stored", contract.CurrentBalance.String(),
				"reconciled", balance.String(),
			)
			if err := tx.Model(&contract).UpdateColumn("current_balance", balance.Cents()).Error; err != nil {
				return err
			}
			corrected++
			return nil
		})
		if err != nil {
			return corrected, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}
	return corrected, nil
}
