// Package document builds the contract and amortization documents of an
// approved loan application and renders them as PDF or XLSX.
package document

import (
	"fmt"
	"strconv"
	"strings"

	"loan-engine/internal/amortization"
	"loan-engine/internal/domain"

	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

var scheduleColumns = []string{"Month", "Payment", "Principal", "Interest", "Balance"}

// Generator derives documents from application data only. It holds no
// state, so the same application always yields the same document.
type Generator struct {
	Lender   string
	Currency string
}

func NewGenerator(lender, currency string) *Generator {
	return &Generator{Lender: lender, Currency: currency}
}

// Schedule returns the repayment schedule of an approved application.
func (g *Generator) Schedule(app domain.LoanApplication) (domain.ScheduleSummary, error) {
	if err := requireApproved(app); err != nil {
		return domain.ScheduleSummary{}, err
	}

	summary, err := amortization.Summarize(app.Amount, app.Duration, app.AnnualRate)
	if err != nil {
		return domain.ScheduleSummary{}, domain.WrapError(domain.ErrGenerationFailure, app.ID, "failed to compute schedule", err)
	}
	return summary, nil
}

func (g *Generator) GenerateContract(app domain.LoanApplication) (domain.Document, error) {
	summary, err := g.Schedule(app)
	if err != nil {
		return domain.Document{}, err
	}

	doc := domain.Document{
		Kind:          domain.DocumentContract,
		ApplicationID: app.ID,
		Title:         "Loan Contract",
		Subtitle:      "Application " + app.ID,
		Fields: []domain.Field{
			{Label: "Application ID", Value: app.ID},
			{Label: "Loan amount", Value: g.money(app.Amount)},
			{Label: "Duration", Value: fmt.Sprintf("%d months", app.Duration)},
			{Label: "Annual interest rate", Value: percent(app.AnnualRate)},
			{Label: "Monthly payment", Value: g.money(app.MonthlyPayment)},
			{Label: "Total payment", Value: g.money(summary.TotalPayment)},
			{Label: "Total interest", Value: g.money(summary.TotalInterest)},
			{Label: "Borrower monthly income", Value: g.money(app.Income)},
			{Label: "Submitted on", Value: app.CreatedAt.Format(dateLayout)},
			{Label: "Approved on", Value: app.ApprovedAt.Format(dateLayout)},
		},
		Notes: []string{
			fmt.Sprintf("The borrower receives %s and repays it in %d monthly installments of %s.",
				g.money(app.Amount), app.Duration, g.money(app.MonthlyPayment)),
			fmt.Sprintf("Interest accrues monthly on the outstanding balance at a fixed annual rate of %s.", percent(app.AnnualRate)),
			"The final installment settles the remaining balance and may differ from the regular installment by rounding.",
			"The repayment schedule attached to this contract is part of the agreement.",
			"Early repayment of the outstanding balance is permitted at any time.",
		},
		Signatures: []string{"Borrower", g.lender()},
		IssuedAt:   *app.ApprovedAt,
	}
	return doc, nil
}

func (g *Generator) GenerateAmortization(app domain.LoanApplication) (domain.Document, error) {
	summary, err := g.Schedule(app)
	if err != nil {
		return domain.Document{}, err
	}

	rows := make([][]string, 0, len(summary.Rows))
	for _, r := range summary.Rows {
		rows = append(rows, []string{
			strconv.Itoa(r.Month),
			r.Payment.StringFixed(amortization.MoneyPlaces),
			r.Principal.StringFixed(amortization.MoneyPlaces),
			r.Interest.StringFixed(amortization.MoneyPlaces),
			r.Balance.StringFixed(amortization.MoneyPlaces),
		})
	}

	return domain.Document{
		Kind:          domain.DocumentAmortization,
		ApplicationID: app.ID,
		Title:         "Amortization Schedule",
		Subtitle:      "Application " + app.ID,
		Fields: []domain.Field{
			{Label: "Principal", Value: g.money(summary.Principal)},
			{Label: "Duration", Value: fmt.Sprintf("%d months", summary.Duration)},
			{Label: "Annual interest rate", Value: percent(summary.AnnualRate)},
			{Label: "Monthly payment", Value: g.money(summary.MonthlyPayment)},
			{Label: "Total payment", Value: g.money(summary.TotalPayment)},
			{Label: "Total interest", Value: g.money(summary.TotalInterest)},
		},
		Columns:  scheduleColumns,
		Rows:     rows,
		IssuedAt: *app.ApprovedAt,
	}, nil
}

func requireApproved(app domain.LoanApplication) error {
	if app.Status != domain.StatusApproved || app.ApprovedAt == nil {
		return domain.Errorf(domain.ErrGenerationFailure, app.ID, "documents require an approved application, status is %s", app.Status)
	}
	return nil
}

func (g *Generator) lender() string {
	if g.Lender == "" {
		return "Lender"
	}
	return "Lender: " + g.Lender
}

func (g *Generator) money(d decimal.Decimal) string {
	cur := g.Currency
	if cur == "" {
		cur = "$"
	}
	return cur + withCommas(d.StringFixed(amortization.MoneyPlaces))
}

func percent(d decimal.Decimal) string {
	return d.StringFixed(2) + "%"
}

// withCommas groups the integer part of a fixed-point string by thousands.
func withCommas(s string) string {
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i:]
	}

	var b strings.Builder
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	return sign + b.String() + frac
}
