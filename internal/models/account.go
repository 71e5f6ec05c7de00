package models

import (
	"gorm.io/gorm"

	"finledger/internal/money"
)

// AccountType represents the type of account
type AccountType string

const (
	AccountTypeCash       AccountType = "cash"
	AccountTypeInvestment AccountType = "investment"
	AccountTypeDebt       AccountType = "debt"
)

// Account represents a financial account in the system.
//
// Balance is maintained by the ledger: it always equals the sum of the signed
// amounts of the transactions referencing the account and is never written
// directly.
type Account struct {
	Base
	UserID      string      `gorm:"type:uuid;not null;index" json:"user_id"`
	Name        string      `gorm:"not null" json:"name"`
	Type        AccountType `gorm:"not null" json:"type"`
	Description string      `json:"description"`
	Balance     money.Money `gorm:"type:bigint;not null;default:0" json:"balance" swaggertype:"string"`
	Currency    string      `gorm:"not null;default:'BRL'" json:"currency"`
	IsActive    bool        `gorm:"default:true" json:"is_active"`

	// For investment accounts
	Broker        string `json:"broker,omitempty"`
	AccountNumber string `json:"account_number,omitempty"`
}

// BeforeCreate hook clears fields that do not apply to the account type.
func (a *Account) BeforeCreate(tx *gorm.DB) error {
	if err := a.Base.BeforeCreate(tx); err != nil {
		return err
	}
	if a.Type != AccountTypeInvestment {
		a.Broker = ""
		a.AccountNumber = ""
	}
	return nil
}

// IsValidAccountType reports whether t is a known account type.
func IsValidAccountType(t AccountType) bool {
	switch t {
	case AccountTypeCash, AccountTypeInvestment, AccountTypeDebt:
		return true
	}
	return false
}
