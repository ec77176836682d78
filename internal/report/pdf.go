package report

import (
	"fmt"
	"io"

	"github.com/go-pdf/fpdf"
)

// WritePDF writes an A4 landscape summary: header, line table and totals.
func WritePDF(w io.Writer, doc Document) error {
	if err := doc.validate(); err != nil {
		return err
	}
	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 10, 10)
	pdf.SetAutoPageBreak(true, 12)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pageW, _ := pdf.GetPageSize()
	contentW := pageW - 20

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(contentW, 8, tr("Cotización de importación"), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 8)
	meta := doc.ID
	if !doc.CreatedAt.IsZero() {
		meta += "  " + doc.CreatedAt.Format("02/01/2006 15:04")
	}
	pdf.CellFormat(contentW, 5, tr(meta), "", 1, "L", false, 0, "")
	pdf.Ln(2)

	margins := doc.Params.Margins
	header := lineHeader(margins)
	fixed := []float64{8, 0, 22, 12, 20, 24}
	priceW := 24.0
	used := 0.0
	for _, c := range fixed {
		used += c
	}
	used += priceW * float64(len(margins))
	fixed[1] = contentW - used
	if fixed[1] < 40 {
		fixed[1] = 40
	}
	widths := append(fixed, make([]float64, len(margins))...)
	for i := range margins {
		widths[len(fixed)+i] = priceW
	}

	pdf.SetFont("Helvetica", "B", 8)
	for i, title := range header {
		align := "R"
		if i == 1 || i == 2 {
			align = "L"
		}
		pdf.CellFormat(widths[i], 6, tr(title), "B", 0, align, false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 8)
	for _, line := range doc.Result.Lines {
		title := line.Title
		if runes := []rune(title); len(runes) > 60 {
			title = string(runes[:59]) + "..."
		}
		cells := []string{fmt.Sprint(line.Line), title, line.FormatCode, fmt.Sprint(line.Quantity), EUR(line.UnitPrice), CLP(line.UnitLandedCost)}
		for _, m := range margins {
			p, _ := line.PriceFor(m)
			cells = append(cells, CLP(p))
		}
		for i, text := range cells {
			align := "R"
			if i == 1 || i == 2 {
				align = "L"
			}
			pdf.CellFormat(widths[i], 5, tr(text), "", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}

	pdf.Ln(3)
	pdf.Line(10, pdf.GetY(), pageW-10, pdf.GetY())
	pdf.Ln(2)
	for _, r := range summaryRows(doc) {
		pdf.SetFont("Helvetica", "B", 8)
		pdf.CellFormat(60, 5, tr(r[0]), "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 8)
		pdf.CellFormat(contentW-60, 5, tr(r[1]), "", 1, "L", false, 0, "")
	}
	if len(doc.Result.Warnings) > 0 {
		pdf.Ln(2)
		pdf.SetFont("Helvetica", "I", 7)
		for _, warn := range doc.Result.Warnings {
			pdf.MultiCell(contentW, 4, tr(warningText(warn)), "", "L", false)
		}
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}
