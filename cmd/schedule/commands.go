package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/google/subcommands"
	"github.com/shopspring/decimal"

	"finledger/internal/amortization"
	"finledger/internal/money"
)

// terms are the contract flags shared by the subcommands.
type terms struct {
	principal string
	rate      string
	basis     string
	percent   bool
	term      int
	method    string
	start     string
	currency  string
}

func (t *terms) setFlags(f *flag.FlagSet) {
	f.StringVar(&t.principal, "principal", "", "Financed amount, e.g. 12000.00")
	f.StringVar(&t.rate, "rate", "0", "Interest rate, e.g. 0.01")
	f.StringVar(&t.basis, "basis", "periodic", "Rate basis (periodic, nominal_annual, effective_annual)")
	f.BoolVar(&t.percent, "percent", false, "Interpret -rate as a percentage")
	f.IntVar(&t.term, "term", 12, "Number of monthly installments")
	f.StringVar(&t.method, "method", "price", "Amortization method (sac, price)")
	f.StringVar(&t.start, "start", "", "Contract start date YYYY-MM-DD (defaults to today)")
	f.StringVar(&t.currency, "currency", "BRL", "ISO 4217 currency used for display")
}

func (t *terms) periodicRate() (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(t.rate)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid rate %q: %w", t.rate, err)
	}
	if t.percent {
		rate = money.Percent(rate)
	}
	switch t.basis {
	case "periodic":
		return rate, nil
	case "nominal_annual":
		return money.NominalMonthlyRate(rate), nil
	case "effective_annual":
		return money.EffectiveMonthlyRate(rate), nil
	}
	return decimal.Zero, fmt.Errorf("unknown rate basis %q", t.basis)
}

func (t *terms) params() (amortization.Params, error) {
	principal, err := money.Parse(t.principal)
	if err != nil {
		return amortization.Params{}, fmt.Errorf("invalid principal %q: %w", t.principal, err)
	}
	rate, err := t.periodicRate()
	if err != nil {
		return amortization.Params{}, err
	}
	method, err := amortization.ParseMethod(t.method)
	if err != nil {
		return amortization.Params{}, err
	}
	start := time.Now()
	if t.start != "" {
		if start, err = time.Parse(time.DateOnly, t.start); err != nil {
			return amortization.Params{}, fmt.Errorf("invalid start date %q: %w", t.start, err)
		}
	}
	if !money.IsCurrency(t.currency) {
		return amortization.Params{}, fmt.Errorf("unknown currency %q", t.currency)
	}
	p := amortization.Params{
		Principal:  principal,
		Rate:       rate,
		TermMonths: t.term,
		Method:     method,
		StartDate:  start,
	}
	return p, p.Validate()
}

type simulateCmd struct {
	terms
	raw bool
}

func (*simulateCmd) Name() string     { return "simulate" }
func (*simulateCmd) Synopsis() string { return "print the installment schedule of a contract" }
func (*simulateCmd) Usage() string {
	return `schedule simulate -principal <amount> -rate <rate> [-basis <basis>] [-term n] [-method sac|price] [-raw]

  Prints every installment of the contract with its payment, amortization,
  interest and remaining balance, followed by the totals.
`
}

func (c *simulateCmd) SetFlags(f *flag.FlagSet) {
	c.setFlags(f)
	f.BoolVar(&c.raw, "raw", false, "Print plain markdown instead of rendering it")
}

func (c *simulateCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	p, err := c.params()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	schedule, err := amortization.Generate(p)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}

	md := scheduleMarkdown(schedule, c.currency)
	if c.raw {
		fmt.Print(md)
		return subcommands.ExitSuccess
	}
	printMarkdown(md)
	return subcommands.ExitSuccess
}

type rateCmd struct {
	rate    string
	percent bool
}

func (*rateCmd) Name() string     { return "rate" }
func (*rateCmd) Synopsis() string { return "convert an annual rate into monthly rates" }
func (*rateCmd) Usage() string {
	return `schedule rate -rate <annual> [-percent]

  Shows the monthly rate obtained from an annual rate taken as nominal
  (divided by twelve) and as effective (compounded).
`
}

func (c *rateCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.rate, "rate", "", "Annual rate, e.g. 0.12")
	f.BoolVar(&c.percent, "percent", false, "Interpret -rate as a percentage")
}

func (c *rateCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	annual, err := decimal.NewFromString(c.rate)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid rate %q: %v\n", c.rate, err)
		return subcommands.ExitUsageError
	}
	if c.percent {
		annual = money.Percent(annual)
	}
	printMarkdown(rateMarkdown(annual))
	return subcommands.ExitSuccess
}

// printMarkdown renders md for the terminal, falling back to the raw text
// when rendering fails.
func printMarkdown(md string) {
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(120))
	if err != nil {
		fmt.Print(md)
		return
	}
	out, err := r.Render(md)
	if err != nil {
		fmt.Print(md)
		return
	}
	fmt.Print(out)
}
