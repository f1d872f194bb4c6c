package document

import (
	"bytes"
	"fmt"

	"loan-engine/internal/domain"

	"github.com/phpdave11/gofpdf"
)

const (
	pageBreakY   = 270.0
	contentWidth = 182.0
)

// RenderPDF lays out doc on A4 pages. Output depends only on doc.
func RenderPDF(doc domain.Document) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(14, 14, 14)
	pdf.SetCompression(true)
	pdf.SetCatalogSort(true)
	pdf.SetCreationDate(doc.IssuedAt)
	pdf.SetModificationDate(doc.IssuedAt)
	pdf.SetTitle(doc.Title, false)
	pdf.SetSubject(doc.Subtitle, false)
	pdf.SetCreator("loan-engine", false)
	pdf.AliasNbPages("")

	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Helvetica", "", 8)
		pdf.SetTextColor(120, 120, 120)
		pdf.CellFormat(0, 10, fmt.Sprintf("%s - page %d of {nb}", doc.ApplicationID, pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	pdf.AddPage()

	pdf.SetTextColor(20, 20, 20)
	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, doc.Title)
	pdf.Ln(9)

	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(80, 80, 80)
	pdf.Cell(0, 6, doc.Subtitle)
	pdf.Ln(5)
	pdf.Cell(0, 6, "Issued "+doc.IssuedAt.UTC().Format(dateLayout))
	pdf.Ln(10)

	writeFields(pdf, doc.Fields)
	if len(doc.Columns) > 0 {
		writeTable(pdf, doc.Columns, doc.Rows)
	}
	writeNotes(pdf, doc.Notes)
	writeSignatures(pdf, doc.Signatures)

	if err := pdf.Error(); err != nil {
		return nil, domain.WrapError(domain.ErrGenerationFailure, doc.ApplicationID, "pdf layout failed", err)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, domain.WrapError(domain.ErrGenerationFailure, doc.ApplicationID, "pdf build failed", err)
	}
	return buf.Bytes(), nil
}

func writeFields(pdf *gofpdf.Fpdf, fields []domain.Field) {
	if len(fields) == 0 {
		return
	}

	pdf.SetDrawColor(200, 200, 200)
	pdf.SetTextColor(20, 20, 20)
	for _, f := range fields {
		pdf.SetFillColor(248, 248, 248)
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(70, 8, f.Label, "1", 0, "L", true, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.CellFormat(contentWidth-70, 8, f.Value, "1", 1, "L", false, 0, "")
	}
	pdf.Ln(6)
}

func writeTable(pdf *gofpdf.Fpdf, columns []string, rows [][]string) {
	colW := contentWidth / float64(len(columns))

	header := func() {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.SetFillColor(245, 245, 245)
		pdf.SetTextColor(20, 20, 20)
		for _, c := range columns {
			pdf.CellFormat(colW, 8, c, "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Helvetica", "", 9)
		pdf.SetTextColor(30, 30, 30)
	}

	header()
	for _, row := range rows {
		if pdf.GetY() > pageBreakY {
			pdf.AddPage()
			header()
		}
		for i := range columns {
			val := ""
			if i < len(row) {
				val = row[i]
			}
			align := "R"
			if i == 0 {
				align = "C"
			}
			pdf.CellFormat(colW, 7, val, "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}
	pdf.Ln(6)
}

func writeNotes(pdf *gofpdf.Fpdf, notes []string) {
	if len(notes) == 0 {
		return
	}

	pdf.SetFont("Helvetica", "B", 12)
	pdf.SetTextColor(20, 20, 20)
	pdf.Cell(0, 8, "Terms")
	pdf.Ln(9)

	pdf.SetFont("Helvetica", "", 10)
	for i, n := range notes {
		pdf.MultiCell(contentWidth, 6, fmt.Sprintf("%d. %s", i+1, n), "", "L", false)
		pdf.Ln(1)
	}
	pdf.Ln(6)
}

func writeSignatures(pdf *gofpdf.Fpdf, names []string) {
	if len(names) == 0 {
		return
	}
	if pdf.GetY() > pageBreakY-30 {
		pdf.AddPage()
	}

	pdf.Ln(14)
	w := contentWidth / float64(len(names))
	y := pdf.GetY()
	pdf.SetDrawColor(60, 60, 60)
	for i := range names {
		x := 14 + float64(i)*w
		pdf.Line(x+4, y, x+w-8, y)
	}

	pdf.SetY(y + 2)
	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(80, 80, 80)
	for _, name := range names {
		pdf.CellFormat(w, 6, name, "", 0, "L", false, 0, "")
	}
	pdf.Ln(-1)
}
