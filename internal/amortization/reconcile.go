package amortization

import (
	"cmp"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"finledger/internal/money"
)

// Payment is a payment actually registered against a contract.
type Payment struct {
	InstallmentNumber int
	PaymentDate       time.Time
	Amount            money.Money
	PrincipalPortion  money.Money
	InterestPortion   money.Money
}

// Reconciliation is the real state of a contract derived from its payments.
type Reconciliation struct {
	CurrentBalance   money.Money     `json:"current_balance"`
	PaidInstallments int             `json:"paid_installments"`
	PercentagePaid   decimal.Decimal `json:"percentage_paid"`
	PrincipalPaid    money.Money     `json:"principal_paid"`
	InterestPaid     money.Money     `json:"interest_paid"`
	TotalPaid        money.Money     `json:"total_paid"`
	LastPaymentDate  *time.Time      `json:"last_payment_date,omitempty"`
}

var hundred = decimal.NewFromInt(100)

// Reconcile folds payments in chronological order starting from the
// principal. Only principal portions reduce the balance; interest portions
// are tallied but never touch it. The resulting balance is clamped to
// [0, principal]. The theoretical schedule is not consulted.
func Reconcile(principal money.Money, payments []Payment) Reconciliation {
	ordered := slices.Clone(payments)
	slices.SortStableFunc(ordered, func(a, b Payment) int {
		if c := a.PaymentDate.Compare(b.PaymentDate); c != 0 {
			return c
		}
		return cmp.Compare(a.InstallmentNumber, b.InstallmentNumber)
	})

	r := Reconciliation{PercentagePaid: decimal.Zero}
	balance := principal
	for i := range ordered {
		p := ordered[i]
		balance -= p.PrincipalPortion
		r.PrincipalPaid += p.PrincipalPortion
		r.InterestPaid += p.InterestPortion
		r.TotalPaid += p.Amount
		r.LastPaymentDate = &ordered[i].PaymentDate
	}
	r.PaidInstallments = len(ordered)
	r.CurrentBalance = balance.Clamp(0, principal)

	if principal.IsPositive() {
		paid := principal - r.CurrentBalance
		r.PercentagePaid = paid.Decimal().Div(principal.Decimal()).Mul(hundred).Round(2)
	}
	return r
}

// Status describes how a contract compares to its theoretical schedule.
type Status string

const (
	StatusOnTrack Status = "on_track"
	StatusAhead   Status = "ahead"
	StatusBehind  Status = "behind"
	StatusSettled Status = "settled"
)

// Progress compares a reconciliation with the schedule at a given date.
type Progress struct {
	Reconciliation
	InstallmentsDue  int         `json:"installments_due"`
	ScheduledBalance money.Money `json:"scheduled_balance"`
	Difference       money.Money `json:"difference"`
	Status           Status      `json:"status"`
}

// Compare places r against the balance the schedule expects after every
// installment due by asOf. A positive Difference means more principal is
// outstanding than planned.
func Compare(s *Schedule, r Reconciliation, asOf time.Time) Progress {
	due := s.DueBy(asOf)
	scheduled := s.BalanceAfter(due)
	p := Progress{
		Reconciliation:   r,
		InstallmentsDue:  due,
		ScheduledBalance: scheduled,
		Difference:       r.CurrentBalance - scheduled,
	}
	switch {
	case r.CurrentBalance.IsZero():
		p.Status = StatusSettled
	case r.CurrentBalance < scheduled:
		p.Status = StatusAhead
	case r.CurrentBalance > scheduled:
		p.Status = StatusBehind
	default:
		p.Status = StatusOnTrack
	}
	return p
}
