package document

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"loan-engine/internal/domain"

	"github.com/gabriel-vasile/mimetype"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func submittedApp() domain.LoanApplication {
	return domain.LoanApplication{
		ID:             "6f1c2a9e-0000-4000-8000-000000000001",
		Amount:         decimal.RequireFromString("120000"),
		Duration:       60,
		Income:         decimal.RequireFromString("5400"),
		AnnualRate:     decimal.RequireFromString("5.5"),
		MonthlyPayment: decimal.RequireFromString("2292.18"),
		Status:         domain.StatusSubmitted,
		CreatedAt:      time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC),
	}
}

func approvedApp() domain.LoanApplication {
	return submittedApp().Approved(domain.DocumentRefs{}, time.Date(2026, 1, 20, 14, 0, 0, 0, time.UTC))
}

func fieldValue(doc domain.Document, label string) string {
	for _, f := range doc.Fields {
		if f.Label == label {
			return f.Value
		}
	}
	return ""
}

func TestGenerate_RequiresApproved(t *testing.T) {
	g := NewGenerator("", "")
	app := submittedApp()

	_, err := g.GenerateContract(app)
	assert.ErrorIs(t, err, domain.ErrGenerationFailure)

	_, err = g.GenerateAmortization(app)
	assert.ErrorIs(t, err, domain.ErrGenerationFailure)

	_, err = g.Schedule(app)
	assert.ErrorIs(t, err, domain.ErrGenerationFailure)
}

func TestGenerateContract_Content(t *testing.T) {
	g := NewGenerator("Acme Lending", "")
	app := approvedApp()

	doc, err := g.GenerateContract(app)
	require.NoError(t, err)

	assert.Equal(t, domain.DocumentContract, doc.Kind)
	assert.Equal(t, app.ID, doc.ApplicationID)
	assert.Equal(t, "$120,000.00", fieldValue(doc, "Loan amount"))
	assert.Equal(t, "60 months", fieldValue(doc, "Duration"))
	assert.Equal(t, "5.50%", fieldValue(doc, "Annual interest rate"))
	assert.Equal(t, "$2,292.18", fieldValue(doc, "Monthly payment"))
	assert.Equal(t, "$5,400.00", fieldValue(doc, "Borrower monthly income"))
	assert.Equal(t, "2026-01-20", fieldValue(doc, "Approved on"))
	assert.NotEmpty(t, fieldValue(doc, "Total interest"))
	assert.Len(t, doc.Notes, 5)
	assert.Equal(t, []string{"Borrower", "Lender: Acme Lending"}, doc.Signatures)
	assert.Equal(t, *app.ApprovedAt, doc.IssuedAt)
	assert.Equal(t, app.ID+"_contract.pdf", doc.FileName("pdf"))
}

func TestGenerateAmortization_Rows(t *testing.T) {
	g := NewGenerator("", "")
	app := approvedApp()

	doc, err := g.GenerateAmortization(app)
	require.NoError(t, err)

	assert.Equal(t, domain.DocumentAmortization, doc.Kind)
	assert.Equal(t, []string{"Month", "Payment", "Principal", "Interest", "Balance"}, doc.Columns)
	require.Len(t, doc.Rows, app.Duration)
	assert.Equal(t, "1", doc.Rows[0][0])
	assert.Equal(t, "550.00", doc.Rows[0][3])
	assert.Equal(t, "0.00", doc.Rows[len(doc.Rows)-1][4])
}

func TestGenerate_Deterministic(t *testing.T) {
	g := NewGenerator("Acme Lending", "")
	app := approvedApp()

	a, err := g.GenerateContract(app)
	require.NoError(t, err)
	b, err := g.GenerateContract(app)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	pa, err := RenderPDF(a)
	require.NoError(t, err)
	pb, err := RenderPDF(b)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(pa, pb), "rendering the same document twice must give identical bytes")
}

func TestRenderPDF_MultiPageSchedule(t *testing.T) {
	g := NewGenerator("", "")
	app := approvedApp()
	app.Duration = 360

	doc, err := g.GenerateAmortization(app)
	require.NoError(t, err)

	out, err := RenderPDF(doc)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
	assert.True(t, mimetype.Detect(out).Is("application/pdf"))
	// 360 rows do not fit on one page
	assert.Greater(t, bytes.Count(out, []byte("/Type /Page\n")), 1)
}

func TestRenderXLSX_Schedule(t *testing.T) {
	g := NewGenerator("", "")
	app := approvedApp()

	doc, err := g.GenerateAmortization(app)
	require.NoError(t, err)

	out, err := RenderXLSX(doc)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{summarySheet, scheduleSheet}, f.GetSheetList())

	title, err := f.GetCellValue(summarySheet, "A1")
	require.NoError(t, err)
	assert.Equal(t, "Amortization Schedule", title)

	header, err := f.GetCellValue(scheduleSheet, "E1")
	require.NoError(t, err)
	assert.Equal(t, "Balance", header)

	rows, err := f.GetRows(scheduleSheet)
	require.NoError(t, err)
	assert.Len(t, rows, app.Duration+1)

	month, err := f.GetCellValue(scheduleSheet, "A2")
	require.NoError(t, err)
	assert.Equal(t, "1", month)
}

func TestRenderXLSX_ContractHasNoSchedule(t *testing.T) {
	doc, err := NewGenerator("", "").GenerateContract(approvedApp())
	require.NoError(t, err)

	out, err := RenderXLSX(doc)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{summarySheet}, f.GetSheetList())
}

func TestWithCommas(t *testing.T) {
	cases := map[string]string{
		"0.00":        "0.00",
		"999.99":      "999.99",
		"1000.00":     "1,000.00",
		"1234567.89":  "1,234,567.89",
		"-1234567.89": "-1,234,567.89",
		"100000":      "100,000",
	}
	for in, want := range cases {
		if got := withCommas(in); got != want {
			t.Errorf("withCommas(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMoney_CustomCurrency(t *testing.T) {
	g := NewGenerator("", "EUR ")
	assert.True(t, strings.HasPrefix(g.money(decimal.RequireFromString("10")), "EUR 10.00"))
}
