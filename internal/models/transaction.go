package models

import (
	"time"

	"finledger/internal/money"
)

// TransactionType represents the type of transaction
type TransactionType string

const (
	TransactionTypeIncome  TransactionType = "income"
	TransactionTypeExpense TransactionType = "expense"
)

// IsValidTransactionType reports whether t is income or expense.
func IsValidTransactionType(t TransactionType) bool {
	return t == TransactionTypeIncome || t == TransactionTypeExpense
}

// Transaction represents a monetary movement on an account.
type Transaction struct {
	Base
	UserID      string          `gorm:"type:uuid;not null;index" json:"user_id"`
	AccountID   string          `gorm:"type:uuid;not null;index" json:"account_id"`
	Type        TransactionType `gorm:"not null" json:"type"`
	Amount      money.Money     `gorm:"type:bigint;not null" json:"amount" swaggertype:"string"`
	Description string          `json:"description"`
	Date        time.Time       `gorm:"not null" json:"date"`

	// Set when the transaction is a leg of an investment operation or a
	// financing payment. Such transactions belong to their operation.
	InvestmentOperationID *string `gorm:"type:uuid;index" json:"investment_operation_id,omitempty"`
	FinancingPaymentID    *string `gorm:"type:uuid;index" json:"financing_payment_id,omitempty"`
}

// SignedAmount is the effect of the transaction on its account balance:
// +amount for income, -amount for expense.
func (t *Transaction) SignedAmount() money.Money {
	if t.Type == TransactionTypeExpense {
		return -t.Amount
	}
	return t.Amount
}

// IsLinked reports whether the transaction is owned by an investment
// operation or a financing payment.
func (t *Transaction) IsLinked() bool {
	return t.InvestmentOperationID != nil || t.FinancingPaymentID != nil
}
