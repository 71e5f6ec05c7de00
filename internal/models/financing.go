package models

import (
	"time"

	"github.com/shopspring/decimal"

	"finledger/internal/amortization"
	"finledger/internal/money"
)

// FinancingContract is an installment loan taken by a user.
//
// CurrentBalance is the outstanding principal. It is derived from the
// registered payments and stays within [0, Principal].
type FinancingContract struct {
	Base
	UserID         string              `gorm:"type:uuid;not null;index" json:"user_id"`
	Name           string              `gorm:"not null" json:"name"`
	Creditor       string              `json:"creditor,omitempty"`
	Principal      money.Money         `gorm:"type:bigint;not null" json:"principal" swaggertype:"string"`
	PeriodicRate   decimal.Decimal     `gorm:"type:numeric(20,10);not null" json:"periodic_interest_rate" swaggertype:"string"`
	TermMonths     int                 `gorm:"not null" json:"term_months"`
	Method         amortization.Method `gorm:"not null" json:"amortization_method"`
	StartDate      time.Time           `gorm:"not null" json:"start_date"`
	CurrentBalance money.Money         `gorm:"type:bigint;not null" json:"current_outstanding_balance" swaggertype:"string"`
}

// Params returns the schedule parameters of the contract.
func (f *FinancingContract) Params() amortization.Params {
	return amortization.Params{
		Principal:  f.Principal,
		Rate:       f.PeriodicRate,
		TermMonths: f.TermMonths,
		Method:     f.Method,
		StartDate:  f.StartDate,
	}
}

// FinancingPayment is a payment actually made against a contract.
type FinancingPayment struct {
	Base
	UserID            string      `gorm:"type:uuid;not null" json:"user_id"`
	FinancingID       string      `gorm:"type:uuid;not null;index" json:"financing_id"`
	AccountID         string      `gorm:"type:uuid;not null" json:"account_id"`
	InstallmentNumber int         `gorm:"not null" json:"installment_number"`
	PaymentDate       time.Time   `gorm:"not null" json:"payment_date"`
	Amount            money.Money `gorm:"type:bigint;not null" json:"payment_amount" swaggertype:"string"`
	PrincipalPortion  money.Money `gorm:"type:bigint;not null" json:"principal_portion" swaggertype:"string"`
	InterestPortion   money.Money `gorm:"type:bigint;not null" json:"interest_portion" swaggertype:"string"`
	BalanceBefore     money.Money `gorm:"type:bigint;not null" json:"balance_before" swaggertype:"string"`
	BalanceAfter      money.Money `gorm:"type:bigint;not null" json:"balance_after" swaggertype:"string"`
	Notes             string      `json:"notes,omitempty"`
}

// ToPayment converts the row into a reconciliation input.
func (p *FinancingPayment) ToPayment() amortization.Payment {
	return amortization.Payment{
		InstallmentNumber: p.InstallmentNumber,
		PaymentDate:       p.PaymentDate,
		Amount:            p.Amount,
		PrincipalPortion:  p.PrincipalPortion,
		InterestPortion:   p.InterestPortion,
	}
}
