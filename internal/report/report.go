// Package report renders a computed quote as a spreadsheet, a PDF summary or plain text.
package report

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/musicjungle-cl/MJ-import-pricing-light/internal/landed"
)

// Document is everything a renderer needs from one quote.
type Document struct {
	ID        string
	CreatedAt time.Time
	Source    string
	Params    landed.ShipmentParameters
	Result    *landed.Result
}

var printer = message.NewPrinter(language.MustParse("es-CL"))

// CLP formats a destination-currency amount as whole pesos with Chilean grouping.
func CLP(d decimal.Decimal) string {
	return printer.Sprintf("$%d", d.Round(0).IntPart())
}

// EUR formats a source-currency amount with two decimals.
func EUR(d decimal.Decimal) string {
	f, _ := d.Round(2).Float64()
	return printer.Sprintf("€%.2f", f)
}

// Multiplier renders a margin multiplier as "x1.7".
func Multiplier(m decimal.Decimal) string {
	return "x" + m.String()
}

func (d Document) validate() error {
	if d.Result == nil {
		return fmt.Errorf("report: document %q has no result", d.ID)
	}
	return nil
}

func summaryRows(d Document) [][2]string {
	s := d.Result.Summary
	rows := [][2]string{
		{"Unidades", fmt.Sprint(s.TotalUnits)},
		{"Peso total (kg)", s.TotalWeight.StringFixed(2)},
		{"Total FOB", EUR(s.TotalFOBSource)},
		{"Tipo de cambio", d.Params.ExchangeRate.String()},
		{"Flete", CLP(s.FreightDest)},
		{"Impuestos (arancel + IVA)", CLP(s.TaxDest)},
	}
	for _, fee := range d.Params.FixedFees {
		rows = append(rows, [2]string{fee.Label, CLP(fee.Amount)})
	}
	rows = append(rows,
		[2]string{"Factor impuestos", s.TaxRatio.StringFixed(4)},
		[2]string{"Costo total", CLP(s.TotalLandedCost)},
		[2]string{"Costo total sin IVA", CLP(s.TotalLandedCostExTax)},
	)
	for _, m := range s.PerMultiplier {
		label := Multiplier(m.Multiplier)
		rows = append(rows,
			[2]string{"Venta " + label, CLP(m.TotalSaleValue)},
			[2]string{"Venta sin IVA " + label, CLP(m.TotalSaleValueExTax)},
			[2]string{"Utilidad " + label, CLP(m.ImpliedProfit)},
		)
	}
	if rec := d.Result.Reconciliation; rec != nil {
		rows = append(rows, [2]string{"Conciliación", fmt.Sprintf("%s (calculado %s, factura %s)", rec.Status, EUR(rec.Computed), EUR(rec.Declared))})
	}
	return rows
}

func lineHeader(margins []decimal.Decimal) []string {
	header := []string{"#", "Título", "Formato", "Cant.", "Precio €", "Costo unit."}
	for _, m := range margins {
		header = append(header, "Precio "+Multiplier(m))
	}
	return header
}

func warningText(w landed.Warning) string {
	if w.Line > 0 {
		return fmt.Sprintf("[%s] línea %d: %s", w.Code, w.Line, w.Message)
	}
	return fmt.Sprintf("[%s] %s", w.Code, w.Message)
}
