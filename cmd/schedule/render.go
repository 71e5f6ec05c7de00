package main

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"finledger/internal/amortization"
	"finledger/internal/money"
)

func scheduleMarkdown(s *amortization.Schedule, currency string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s schedule\n\n", strings.ToUpper(string(s.Method)))
	fmt.Fprintf(&b, "Principal %s, monthly rate %s%%, %d installments.\n\n",
		s.Principal.Format(currency), s.Rate.Shift(2).String(), s.TermMonths)

	b.WriteString("| # | Due | Payment | Amortization | Interest | Balance |\n")
	b.WriteString("|--:|:---:|--------:|-------------:|---------:|--------:|\n")
	for _, r := range s.Rows {
		due := "-"
		if !r.DueDate.IsZero() {
			due = r.DueDate.Format("2006-01-02")
		}
		fmt.Fprintf(&b, "| %d | %s | %s | %s | %s | %s |\n",
			r.Installment, due, r.Payment, r.Amortization, r.Interest, r.RemainingBalance)
	}
	fmt.Fprintf(&b, "| **Total** | | **%s** | **%s** | **%s** | |\n",
		s.Summary.TotalPayments, s.Summary.TotalAmortization, s.Summary.TotalInterest)
	return b.String()
}

func rateMarkdown(annual decimal.Decimal) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Annual rate %s%%\n\n", annual.Shift(2).String())
	b.WriteString("| Basis | Monthly rate |\n")
	b.WriteString("|:------|-------------:|\n")
	fmt.Fprintf(&b, "| nominal | %s%% |\n", money.NominalMonthlyRate(annual).Shift(2).StringFixed(6))
	fmt.Fprintf(&b, "| effective | %s%% |\n", money.EffectiveMonthlyRate(annual).Shift(2).StringFixed(6))
	return b.String()
}
