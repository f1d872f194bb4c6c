package document

import (
	"strconv"
	"time"

	"loan-engine/internal/domain"

	"github.com/xuri/excelize/v2"
)

const (
	summarySheet  = "Summary"
	scheduleSheet = "Schedule"
)

// RenderXLSX writes the document fields to a Summary sheet and, when the
// document has a table, the rows to a Schedule sheet. Numeric cells are
// stored as numbers.
func RenderXLSX(doc domain.Document) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), summarySheet); err != nil {
		return nil, xlsxErr(doc, err)
	}

	_ = f.SetDocProps(&excelize.DocProperties{
		Creator:  "loan-engine",
		Title:    doc.Title,
		Subject:  doc.Subtitle,
		Created:  doc.IssuedAt.UTC().Format(time.RFC3339),
		Modified: doc.IssuedAt.UTC().Format(time.RFC3339),
	})

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, xlsxErr(doc, err)
	}

	_ = f.SetCellValue(summarySheet, "A1", doc.Title)
	_ = f.SetCellStyle(summarySheet, "A1", "A1", bold)
	_ = f.SetCellValue(summarySheet, "A2", doc.Subtitle)
	for i, field := range doc.Fields {
		row := i + 4
		labelCell, _ := excelize.CoordinatesToCellName(1, row)
		valueCell, _ := excelize.CoordinatesToCellName(2, row)
		_ = f.SetCellValue(summarySheet, labelCell, field.Label)
		_ = f.SetCellValue(summarySheet, valueCell, field.Value)
	}
	_ = f.SetColWidth(summarySheet, "A", "A", 28)
	_ = f.SetColWidth(summarySheet, "B", "B", 40)

	if len(doc.Columns) > 0 {
		if _, err := f.NewSheet(scheduleSheet); err != nil {
			return nil, xlsxErr(doc, err)
		}

		money, err := f.NewStyle(&excelize.Style{NumFmt: 4}) // #,##0.00
		if err != nil {
			return nil, xlsxErr(doc, err)
		}

		for i, col := range doc.Columns {
			cell, _ := excelize.CoordinatesToCellName(i+1, 1)
			_ = f.SetCellValue(scheduleSheet, cell, col)
			_ = f.SetCellStyle(scheduleSheet, cell, cell, bold)
		}

		for r, row := range doc.Rows {
			rowIdx := r + 2
			for c, val := range row {
				cell, _ := excelize.CoordinatesToCellName(c+1, rowIdx)
				if c == 0 {
					if n, err := strconv.Atoi(val); err == nil {
						_ = f.SetCellValue(scheduleSheet, cell, n)
						continue
					}
				}
				if n, err := strconv.ParseFloat(val, 64); err == nil {
					_ = f.SetCellFloat(scheduleSheet, cell, n, 2, 64)
					_ = f.SetCellStyle(scheduleSheet, cell, cell, money)
					continue
				}
				_ = f.SetCellValue(scheduleSheet, cell, val)
			}
		}
		_ = f.SetPanes(scheduleSheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, xlsxErr(doc, err)
	}
	return buf.Bytes(), nil
}

func xlsxErr(doc domain.Document, err error) error {
	return domain.WrapError(domain.ErrGenerationFailure, doc.ApplicationID, "xlsx build failed", err)
}
