// Package amortization generates installment schedules for financing
// contracts and reconciles contracts against the payments actually made.
//
// Everything in this package is a pure function of its inputs.
package amortization

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	apperrors "finledger/internal/errors"
	"finledger/internal/money"
)

// Method is the amortization system of a contract.
type Method string

const (
	// MethodSAC keeps the principal portion constant (Sistema de Amortização Constante).
	MethodSAC Method = "sac"
	// MethodPrice keeps the installment constant (French system / Tabela Price).
	MethodPrice Method = "price"
)

// ParseMethod accepts "sac" or "price" in any letter case.
func ParseMethod(s string) (Method, error) {
	switch Method(strings.ToLower(strings.TrimSpace(s))) {
	case MethodSAC:
		return MethodSAC, nil
	case MethodPrice:
		return MethodPrice, nil
	}
	return "", apperrors.Withf(apperrors.ErrUnsupportedMethod, "unsupported amortization method %q", s)
}

// Params are the contract terms a schedule is generated from.
type Params struct {
	Principal  money.Money
	Rate       decimal.Decimal // periodic (monthly) rate, 0.01 for 1%
	TermMonths int
	Method     Method
	StartDate  time.Time
}

// Validate checks the terms before any computation.
func (p Params) Validate() error {
	if !p.Principal.IsPositive() {
		return apperrors.WithMessage(apperrors.ErrInvalidOperation, "principal must be greater than zero")
	}
	if p.TermMonths <= 0 {
		return apperrors.WithMessage(apperrors.ErrInvalidOperation, "term must be at least one month")
	}
	if p.Rate.IsNegative() {
		return apperrors.WithMessage(apperrors.ErrInvalidOperation, "interest rate cannot be negative")
	}
	if p.Method != MethodSAC && p.Method != MethodPrice {
		return apperrors.Withf(apperrors.ErrUnsupportedMethod, "unsupported amortization method %q", p.Method)
	}
	// No installment of either method exceeds principal × (1 + rate).
	if _, err := p.Principal.CheckedMulRate(p.Rate.Add(decimal.NewFromInt(1))); err != nil {
		return apperrors.Withf(apperrors.ErrInvalidOperation,
			"installments of %s at rate %s are out of range", p.Principal, p.Rate)
	}
	return nil
}

// Row is one installment of a schedule.
type Row struct {
	Installment      int         `json:"installment_number"`
	DueDate          time.Time   `json:"due_date"`
	Payment          money.Money `json:"payment"`
	Amortization     money.Money `json:"amortization"`
	Interest         money.Money `json:"interest"`
	RemainingBalance money.Money `json:"remaining_balance"`
}

// Summary aggregates a schedule.
type Summary struct {
	TotalInterest     money.Money `json:"total_interest"`
	TotalPayments     money.Money `json:"total_payments"`
	TotalAmortization money.Money `json:"total_amortization"`
}

// Schedule is the full installment plan of a contract.
type Schedule struct {
	Method     Method          `json:"method"`
	Principal  money.Money     `json:"principal"`
	Rate       decimal.Decimal `json:"rate"`
	TermMonths int             `json:"term_months"`
	Rows       []Row           `json:"rows"`
	Summary    Summary         `json:"summary"`
}

// Generate builds the schedule for p. It runs in O(TermMonths).
//
// The sum of the amortization column always equals the principal to the cent
// and the last row always leaves a zero balance: any rounding drift is
// absorbed by the last installment.
func Generate(p Params) (*Schedule, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	var rows []Row
	switch p.Method {
	case MethodSAC:
		rows = sacRows(p)
	case MethodPrice:
		rows = priceRows(p)
	}

	s := &Schedule{
		Method:     p.Method,
		Principal:  p.Principal,
		Rate:       p.Rate,
		TermMonths: p.TermMonths,
		Rows:       rows,
	}
	for _, r := range rows {
		s.Summary.TotalInterest += r.Interest
		s.Summary.TotalPayments += r.Payment
		s.Summary.TotalAmortization += r.Amortization
	}
	return s, nil
}

func sacRows(p Params) []Row {
	rows := make([]Row, p.TermMonths)
	part, last := p.Principal.Allocate(p.TermMonths)
	balance := p.Principal

	for i := range rows {
		amort := part
		if i == len(rows)-1 {
			amort = last
		}
		interest := balance.MulRate(p.Rate)
		balance -= amort
		rows[i] = Row{
			Installment:      i + 1,
			DueDate:          DueDate(p.StartDate, i+1),
			Payment:          amort + interest,
			Amortization:     amort,
			Interest:         interest,
			RemainingBalance: balance,
		}
	}
	return rows
}

func priceRows(p Params) []Row {
	rows := make([]Row, p.TermMonths)
	payment := priceInstallment(p)
	balance := p.Principal

	for i := range rows {
		interest := balance.MulRate(p.Rate)
		amort := payment - interest
		if i == len(rows)-1 || amort > balance {
			amort = balance
		}
		if amort < 0 {
			amort = 0
		}
		balance -= amort
		rows[i] = Row{
			Installment:      i + 1,
			DueDate:          DueDate(p.StartDate, i+1),
			Payment:          amort + interest,
			Amortization:     amort,
			Interest:         interest,
			RemainingBalance: balance,
		}
	}
	return rows
}

// priceInstallment is P·r / (1 − (1+r)^−n), written as P·r·f / (f − 1) with
// f = (1+r)^n to keep the exponent positive. With r = 0 it is P / n.
func priceInstallment(p Params) money.Money {
	if p.Rate.IsZero() {
		part, _ := p.Principal.Allocate(p.TermMonths)
		return part
	}
	f := compound(decimal.NewFromInt(1).Add(p.Rate), p.TermMonths)
	num := p.Principal.Decimal().Mul(p.Rate).Mul(f)
	return money.FromDecimal(num.Div(f.Sub(decimal.NewFromInt(1))))
}

// compoundPrecision bounds intermediate digits in compound so that long
// schedules don't carry thousands of digits through every multiplication.
const compoundPrecision = 30

// compound returns base^n by repeated squaring.
func compound(base decimal.Decimal, n int) decimal.Decimal {
	result := decimal.NewFromInt(1)
	for n > 0 {
		if n&1 == 1 {
			result = result.Mul(base).Round(compoundPrecision)
		}
		base = base.Mul(base).Round(compoundPrecision)
		n >>= 1
	}
	return result
}

// DueDate returns the due date of the given installment, one calendar month
// per installment after start. Days past the end of a shorter month are
// clamped to its last day.
func DueDate(start time.Time, installment int) time.Time {
	if start.IsZero() {
		return time.Time{}
	}
	y, m, d := start.Date()
	first := time.Date(y, m+time.Month(installment), 1, 0, 0, 0, 0, start.Location())
	lastDay := first.AddDate(0, 1, -1).Day()
	if d > lastDay {
		d = lastDay
	}
	return time.Date(first.Year(), first.Month(), d, 0, 0, 0, 0, start.Location())
}

// BalanceAfter returns the scheduled remaining balance after n installments.
func (s *Schedule) BalanceAfter(n int) money.Money {
	switch {
	case n <= 0:
		return s.Principal
	case n >= len(s.Rows):
		return 0
	}
	return s.Rows[n-1].RemainingBalance
}

// DueBy counts installments whose due date is on or before asOf.
func (s *Schedule) DueBy(asOf time.Time) int {
	n := 0
	for _, r := range s.Rows {
		if r.DueDate.After(asOf) {
			break
		}
		n++
	}
	return n
}
