package rest

import (
	"context"
	"encoding/json"
	"time"

	"loan-engine/internal/domain"

	"github.com/shopspring/decimal"
)

type applicationResponse struct {
	ApplicationID string      `json:"application_id"`
	Amount        json.Number `json:"amount"`
	Duration      int         `json:"duration"`
	Income        json.Number `json:"income"`
	Status        string      `json:"status"`
	CreatedAt     string      `json:"created_at"`
}

type applicationDetailResponse struct {
	applicationResponse
	MonthlyPayment  json.Number `json:"monthly_payment"`
	AnnualRate      json.Number `json:"annual_rate"`
	ApprovedAt      *string     `json:"approved_at"`
	ContractURL     *string     `json:"contract_url"`
	AmortizationURL *string     `json:"amortization_url"`
}

type approvalResponse struct {
	ApplicationID  string      `json:"application_id"`
	Status         string      `json:"status"`
	Contract       string      `json:"contract"`
	Amortization   string      `json:"amortization"`
	MonthlyPayment json.Number `json:"monthly_payment"`
	ApprovedAt     string      `json:"approved_at"`
}

type scheduleRowResponse struct {
	Month     int         `json:"month"`
	Payment   json.Number `json:"payment"`
	Principal json.Number `json:"principal"`
	Interest  json.Number `json:"interest"`
	Balance   json.Number `json:"balance"`
}

type scheduleResponse struct {
	Principal      json.Number           `json:"principal"`
	Duration       int                   `json:"duration"`
	AnnualRate     json.Number           `json:"annual_rate"`
	MonthlyPayment json.Number           `json:"monthly_payment"`
	TotalPayment   json.Number           `json:"total_payment"`
	TotalInterest  json.Number           `json:"total_interest"`
	Schedule       []scheduleRowResponse `json:"schedule"`
}

func money(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(2))
}

func rate(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}

func toApplicationResponse(app domain.LoanApplication) applicationResponse {
	return applicationResponse{
		ApplicationID: app.ID,
		Amount:        money(app.Amount),
		Duration:      app.Duration,
		Income:        money(app.Income),
		Status:        string(app.Status),
		CreatedAt:     app.CreatedAt.Format(time.RFC3339),
	}
}

func (h *Handler) toDetailResponse(ctx context.Context, app domain.LoanApplication) applicationDetailResponse {
	out := applicationDetailResponse{
		applicationResponse: toApplicationResponse(app),
		MonthlyPayment:      money(app.MonthlyPayment),
		AnnualRate:          rate(app.AnnualRate),
	}
	if app.ApprovedAt != nil {
		s := app.ApprovedAt.Format(time.RFC3339)
		out.ApprovedAt = &s
	}
	if url, err := h.loans.Link(ctx, app.ContractRef); err == nil && url != "" {
		out.ContractURL = &url
	}
	if url, err := h.loans.Link(ctx, app.AmortizationRef); err == nil && url != "" {
		out.AmortizationURL = &url
	}
	return out
}

func toScheduleResponse(s domain.ScheduleSummary) scheduleResponse {
	rows := make([]scheduleRowResponse, 0, len(s.Rows))
	for _, r := range s.Rows {
		rows = append(rows, scheduleRowResponse{
			Month:     r.Month,
			Payment:   money(r.Payment),
			Principal: money(r.Principal),
			Interest:  money(r.Interest),
			Balance:   money(r.Balance),
		})
	}
	return scheduleResponse{
		Principal:      money(s.Principal),
		Duration:       s.Duration,
		AnnualRate:     rate(s.AnnualRate),
		MonthlyPayment: money(s.MonthlyPayment),
		TotalPayment:   money(s.TotalPayment),
		TotalInterest:  money(s.TotalInterest),
		Schedule:       rows,
	}
}
