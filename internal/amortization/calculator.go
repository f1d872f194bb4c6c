// Package amortization computes fixed-rate loan payment schedules.
//
// All functions are pure and safe for concurrent use.
package amortization

import (
	"math"

	"loan-engine/internal/domain"

	"github.com/shopspring/decimal"
)

// MoneyPlaces is the monetary precision of every computed amount.
const MoneyPlaces = 2

var (
	twelveHundred = decimal.NewFromInt(1200)
)

// MonthlyRate converts an annual percentage (5.5) to a monthly fraction (0.0045833...).
func MonthlyRate(annualRatePercent decimal.Decimal) decimal.Decimal {
	return annualRatePercent.Div(twelveHundred)
}

// MonthlyPayment returns the fixed installment rounded to MoneyPlaces.
// A zero rate yields principal / durationMonths.
func MonthlyPayment(principal decimal.Decimal, durationMonths int, annualRatePercent decimal.Decimal) (decimal.Decimal, error) {
	if err := validate(principal, durationMonths, annualRatePercent); err != nil {
		return decimal.Zero, err
	}
	return monthlyPayment(principal, durationMonths, annualRatePercent), nil
}

func monthlyPayment(principal decimal.Decimal, n int, annualRatePercent decimal.Decimal) decimal.Decimal {
	rate := MonthlyRate(annualRatePercent)
	if rate.IsZero() {
		return principal.Div(decimal.NewFromInt(int64(n))).Round(MoneyPlaces)
	}

	// The factor r / (1 - (1+r)^-n) does not need exact decimal arithmetic: the
	// installment is rounded to cents. Log1p and Expm1 keep the denominator
	// nonzero for rates too small to change 1+r in float64.
	r := rate.InexactFloat64()
	denom := -math.Expm1(-float64(n) * math.Log1p(r))
	if r == 0 || denom == 0 {
		return principal.Div(decimal.NewFromInt(int64(n))).Round(MoneyPlaces)
	}
	factor := r / denom
	if math.IsInf(factor, 0) || math.IsNaN(factor) {
		// (1+r)^-n vanishes, so the installment is the monthly interest.
		return principal.Mul(rate).Round(MoneyPlaces)
	}
	return principal.Mul(decimal.NewFromFloat(factor)).Round(MoneyPlaces)
}

// ComputeSchedule returns exactly durationMonths rows. Interest is rounded per
// row, principal is payment minus interest, and the last row absorbs any
// rounding residue so that its balance is exactly zero.
func ComputeSchedule(principal decimal.Decimal, durationMonths int, annualRatePercent decimal.Decimal) ([]domain.AmortizationRow, error) {
	if err := validate(principal, durationMonths, annualRatePercent); err != nil {
		return nil, err
	}

	payment := monthlyPayment(principal, durationMonths, annualRatePercent)
	rate := MonthlyRate(annualRatePercent)
	balance := principal.Round(MoneyPlaces)

	rows := make([]domain.AmortizationRow, 0, durationMonths)
	for month := 1; month <= durationMonths; month++ {
		interest := balance.Mul(rate).Round(MoneyPlaces)

		var paid decimal.Decimal
		rowPayment := payment
		if month == durationMonths {
			paid = balance
			rowPayment = paid.Add(interest)
		} else {
			paid = payment.Sub(interest)
			if paid.GreaterThan(balance) {
				paid = balance
				rowPayment = paid.Add(interest)
			}
			if paid.IsNegative() {
				paid = decimal.Zero
				rowPayment = interest
			}
		}
		balance = balance.Sub(paid)

		rows = append(rows, domain.AmortizationRow{
			Month:     month,
			Payment:   rowPayment,
			Principal: paid,
			Interest:  interest,
			Balance:   balance,
		})
	}
	return rows, nil
}

// Summarize computes the schedule together with its totals.
func Summarize(principal decimal.Decimal, durationMonths int, annualRatePercent decimal.Decimal) (domain.ScheduleSummary, error) {
	rows, err := ComputeSchedule(principal, durationMonths, annualRatePercent)
	if err != nil {
		return domain.ScheduleSummary{}, err
	}

	total := decimal.Zero
	interest := decimal.Zero
	for _, row := range rows {
		total = total.Add(row.Payment)
		interest = interest.Add(row.Interest)
	}

	return domain.ScheduleSummary{
		Principal:      principal.Round(MoneyPlaces),
		Duration:       durationMonths,
		AnnualRate:     annualRatePercent,
		MonthlyPayment: monthlyPayment(principal, durationMonths, annualRatePercent),
		TotalPayment:   total,
		TotalInterest:  interest,
		Rows:           rows,
	}, nil
}

func validate(principal decimal.Decimal, durationMonths int, annualRatePercent decimal.Decimal) error {
	if !principal.Round(MoneyPlaces).IsPositive() {
		return domain.NewError(domain.ErrInvalidInput, "", "principal must be at least 0.01")
	}
	if durationMonths <= 0 {
		return domain.NewError(domain.ErrInvalidInput, "", "duration must be at least 1 month")
	}
	if annualRatePercent.IsNegative() {
		return domain.NewError(domain.ErrInvalidInput, "", "rate must not be negative")
	}
	return nil
}
