package amortization

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"finledger/internal/money"
)

func paymentsFromSchedule(s *Schedule, n int) []Payment {
	out := make([]Payment, 0, n)
	for _, r := range s.Rows[:n] {
		out = append(out, Payment{
			InstallmentNumber: r.Installment,
			PaymentDate:       r.DueDate,
			Amount:            r.Payment,
			PrincipalPortion:  r.Amortization,
			InterestPortion:   r.Interest,
		})
	}
	return out
}

func TestReconcile(t *testing.T) {
	principal := money.MustParse("200000.00")
	params := Params{
		Principal:  principal,
		Rate:       decimal.RequireFromString("0.015"),
		TermMonths: 120,
		Method:     MethodSAC,
		StartDate:  time.Date(2023, time.March, 10, 0, 0, 0, 0, time.UTC),
	}

	t.Run("no_payments", func(t *testing.T) {
		r := Reconcile(principal, nil)
		if r.CurrentBalance != principal {
			t.Errorf("expected balance %s, got %s", principal, r.CurrentBalance)
		}
		if !r.PercentagePaid.IsZero() {
			t.Errorf("expected 0%%, got %s", r.PercentagePaid)
		}
		if r.PaidInstallments != 0 {
			t.Errorf("expected 0 installments, got %d", r.PaidInstallments)
		}
		if r.LastPaymentDate != nil {
			t.Error("expected no last payment date")
		}
	})

	t.Run("matches_schedule_after_24_payments", func(t *testing.T) {
		s, err := Generate(params)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		r := Reconcile(principal, paymentsFromSchedule(s, 24))
		if r.PaidInstallments != 24 {
			t.Errorf("expected 24 installments, got %d", r.PaidInstallments)
		}
		if r.CurrentBalance != s.Rows[23].RemainingBalance {
			t.Errorf("expected balance %s, got %s", s.Rows[23].RemainingBalance, r.CurrentBalance)
		}
		// 24 * 1666.66 = 39999.84 of 200000 -> 19.9999% -> 20.00
		if !r.PercentagePaid.Equal(decimal.RequireFromString("20")) {
			t.Errorf("expected 20%%, got %s", r.PercentagePaid)
		}
	})

	t.Run("order_independent", func(t *testing.T) {
		s, _ := Generate(params)
		payments := paymentsFromSchedule(s, 6)
		reversed := make([]Payment, len(payments))
		for i := range payments {
			reversed[len(payments)-1-i] = payments[i]
		}
		a := Reconcile(principal, payments)
		b := Reconcile(principal, reversed)
		if a.CurrentBalance != b.CurrentBalance || a.PaidInstallments != b.PaidInstallments {
			t.Errorf("reconciliation depends on input order: %+v vs %+v", a, b)
		}
		if !b.LastPaymentDate.Equal(s.Rows[5].DueDate) {
			t.Errorf("expected last payment %s, got %s", s.Rows[5].DueDate, b.LastPaymentDate)
		}
	})

	t.Run("interest_does_not_reduce_balance", func(t *testing.T) {
		r := Reconcile(principal, []Payment{{
			InstallmentNumber: 1,
			Amount:            money.MustParse("3000.00"),
			InterestPortion:   money.MustParse("3000.00"),
		}})
		if r.CurrentBalance != principal {
			t.Errorf("expected balance %s, got %s", principal, r.CurrentBalance)
		}
		if r.InterestPaid != money.MustParse("3000.00") {
			t.Errorf("expected interest paid 3000.00, got %s", r.InterestPaid)
		}
	})

	t.Run("clamped", func(t *testing.T) {
		over := Reconcile(principal, []Payment{{PrincipalPortion: money.MustParse("250000.00")}})
		if !over.CurrentBalance.IsZero() {
			t.Errorf("expected balance clamped to zero, got %s", over.CurrentBalance)
		}
		if !over.PercentagePaid.Equal(decimal.NewFromInt(100)) {
			t.Errorf("expected 100%%, got %s", over.PercentagePaid)
		}

		under := Reconcile(principal, []Payment{{PrincipalPortion: money.MustParse("-10.00")}})
		if under.CurrentBalance != principal {
			t.Errorf("expected balance clamped to principal, got %s", under.CurrentBalance)
		}
	})
}

func TestCompare(t *testing.T) {
	params := Params{
		Principal:  money.MustParse("1200.00"),
		Rate:       decimal.RequireFromString("0.01"),
		TermMonths: 12,
		Method:     MethodSAC,
		StartDate:  time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC),
	}
	s, err := Generate(params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	asOf := time.Date(2024, time.April, 20, 0, 0, 0, 0, time.UTC) // three installments due

	t.Run("on_track", func(t *testing.T) {
		p := Compare(s, Reconcile(params.Principal, paymentsFromSchedule(s, 3)), asOf)
		if p.InstallmentsDue != 3 {
			t.Errorf("expected 3 due, got %d", p.InstallmentsDue)
		}
		if p.Status != StatusOnTrack {
			t.Errorf("expected on_track, got %s", p.Status)
		}
		if !p.Difference.IsZero() {
			t.Errorf("expected zero difference, got %s", p.Difference)
		}
	})

	t.Run("behind", func(t *testing.T) {
		p := Compare(s, Reconcile(params.Principal, paymentsFromSchedule(s, 1)), asOf)
		if p.Status != StatusBehind {
			t.Errorf("expected behind, got %s", p.Status)
		}
		if p.Difference != money.MustParse("200.00") {
			t.Errorf("expected difference 200.00, got %s", p.Difference)
		}
	})

	t.Run("ahead", func(t *testing.T) {
		p := Compare(s, Reconcile(params.Principal, paymentsFromSchedule(s, 5)), asOf)
		if p.Status != StatusAhead {
			t.Errorf("expected ahead, got %s", p.Status)
		}
	})

	t.Run("settled", func(t *testing.T) {
		p := Compare(s, Reconcile(params.Principal, paymentsFromSchedule(s, 12)), asOf)
		if p.Status != StatusSettled {
			t.Errorf("expected settled, got %s", p.Status)
		}
	})
}
