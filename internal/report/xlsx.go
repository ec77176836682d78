package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const (
	linesSheet   = "Lineas"
	summarySheet = "Resumen"
)

// WriteXLSX writes a two-sheet workbook: one row per costed line and the shipment summary.
// Money cells are numeric so the sheet can be re-used for further calculations.
func WriteXLSX(w io.Writer, doc Document) error {
	if err := doc.validate(); err != nil {
		return err
	}
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", linesSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	pesos, err := f.NewStyle(&excelize.Style{NumFmt: 3})
	if err != nil {
		return err
	}

	margins := doc.Params.Margins
	header := lineHeader(margins)
	for col, title := range header {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellValue(linesSheet, cell, title); err != nil {
			return err
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(header), 1)
	if err := f.SetCellStyle(linesSheet, "A1", last, bold); err != nil {
		return err
	}

	for i, line := range doc.Result.Lines {
		row := i + 2
		price, _ := line.UnitPrice.Float64()
		values := []any{line.Line, line.Title, line.FormatCode, line.Quantity, price, line.UnitLandedCost.Round(0).IntPart()}
		for _, m := range margins {
			p, _ := line.PriceFor(m)
			values = append(values, p.IntPart())
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := f.SetCellValue(linesSheet, cell, v); err != nil {
				return err
			}
		}
		from, _ := excelize.CoordinatesToCellName(6, row)
		to, _ := excelize.CoordinatesToCellName(len(values), row)
		if err := f.SetCellStyle(linesSheet, from, to, pesos); err != nil {
			return err
		}
	}
	_ = f.SetColWidth(linesSheet, "B", "B", 42)

	row := 1
	set := func(label, value string) error {
		if err := f.SetCellValue(summarySheet, fmt.Sprintf("A%d", row), label); err != nil {
			return err
		}
		if err := f.SetCellValue(summarySheet, fmt.Sprintf("B%d", row), value); err != nil {
			return err
		}
		row++
		return nil
	}
	if err := set("Cotización", doc.ID); err != nil {
		return err
	}
	if !doc.CreatedAt.IsZero() {
		if err := set("Fecha", doc.CreatedAt.Format("2006-01-02 15:04")); err != nil {
			return err
		}
	}
	for _, r := range summaryRows(doc) {
		if err := set(r[0], r[1]); err != nil {
			return err
		}
	}
	for _, warn := range doc.Result.Warnings {
		if err := set("Advertencia", warningText(warn)); err != nil {
			return err
		}
	}
	if err := f.SetCellStyle(summarySheet, "A1", fmt.Sprintf("A%d", row-1), bold); err != nil {
		return err
	}
	_ = f.SetColWidth(summarySheet, "A", "A", 28)
	_ = f.SetColWidth(summarySheet, "B", "B", 48)

	f.SetActiveSheet(0)
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
