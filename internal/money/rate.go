package money

import "github.com/shopspring/decimal"

// RateDigits bounds the precision kept for periodic interest rates.
const RateDigits = 10

var (
	twelve  = decimal.NewFromInt(12)
	monthly = decimal.NewFromInt(1).DivRound(twelve, 2*RateDigits)
)

// NominalMonthlyRate converts a nominal annual rate (0.12 for 12% a.a.) into
// the monthly rate used by the amortization engine by plain division.
func NominalMonthlyRate(annual decimal.Decimal) decimal.Decimal {
	return annual.Div(twelve).Round(RateDigits)
}

// EffectiveMonthlyRate converts an effective annual rate into the equivalent
// compound monthly rate, (1+annual)^(1/12) - 1, computed in decimal. Annual
// rates at or below -100% have no monthly equivalent and map to -1, which the
// amortization engine rejects.
func EffectiveMonthlyRate(annual decimal.Decimal) decimal.Decimal {
	base := decimal.NewFromInt(1).Add(annual)
	if !base.IsPositive() {
		return decimal.NewFromInt(-1)
	}
	root, err := base.PowWithPrecision(monthly, 2*RateDigits)
	if err != nil {
		return decimal.NewFromInt(-1)
	}
	return root.Sub(decimal.NewFromInt(1)).Round(RateDigits)
}

// Percent turns a percentage (1.5) into a rate (0.015).
func Percent(p decimal.Decimal) decimal.Decimal {
	return p.Shift(-2)
}
