package domain

import "github.com/shopspring/decimal"

type AmortizationRow struct {
	Month     int             `json:"month"`
	Payment   decimal.Decimal `json:"payment"`
	Principal decimal.Decimal `json:"principal"`
	Interest  decimal.Decimal `json:"interest"`
	Balance   decimal.Decimal `json:"balance"`
}

type ScheduleSummary struct {
	Principal      decimal.Decimal   `json:"principal"`
	Duration       int               `json:"duration"`
	AnnualRate     decimal.Decimal   `json:"annual_rate"`
	MonthlyPayment decimal.Decimal   `json:"monthly_payment"`
	TotalPayment   decimal.Decimal   `json:"total_payment"`
	TotalInterest  decimal.Decimal   `json:"total_interest"`
	Rows           []AmortizationRow `json:"rows"`
}
