// Package landed prorates shipment charges over invoice lines and derives resale prices.
package landed

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

type retainedItem struct {
	item LineItem
	line int
}

// retain drops lines that cannot take part in proration and reports each one.
func retain(items []LineItem) ([]retainedItem, []Warning) {
	out := make([]retainedItem, 0, len(items))
	var warnings []Warning
	for i, it := range items {
		line := i + 1
		switch {
		case strings.TrimSpace(it.Title) == "":
			warnings = append(warnings, Warning{Code: WarnExcludedLine, Line: line, Message: "line excluded: missing title"})
		case it.Quantity < 1:
			warnings = append(warnings, Warning{Code: WarnExcludedLine, Line: line, Message: fmt.Sprintf("line excluded: quantity %d is not positive", it.Quantity)})
		case it.UnitPrice.IsNegative():
			warnings = append(warnings, Warning{Code: WarnExcludedLine, Line: line, Message: fmt.Sprintf("line excluded: negative unit price %s", it.UnitPrice)})
		default:
			out = append(out, retainedItem{item: it, line: line})
		}
	}
	return out, warnings
}

// Prorate distributes freight by weight, taxes by customs value and fixed fees by unit.
// Parameters are expected to be validated already; Compute does that.
// Every collection-wide denominator is checked and a zero one fails the whole run.
func Prorate(items []LineItem, table WeightTable, p ShipmentParameters) ([]CostedLine, []Warning, error) {
	retained, warnings := retain(items)

	lines := make([]CostedLine, len(retained))
	totalWeight := decimal.Zero
	totalQty := int64(0)
	for i, r := range retained {
		w, ok := table.Classify(r.item.FormatCode)
		if !ok {
			warnings = append(warnings, Warning{
				Code:    WarnUnresolvedFormat,
				Line:    r.line,
				Message: fmt.Sprintf("format %q matched no weight tag, using fallback weight %s", r.item.FormatCode, table.Fallback),
			})
		}
		qty := decimal.NewFromInt(int64(r.item.Quantity))
		lines[i] = CostedLine{
			LineItem:   r.item,
			Line:       r.line,
			UnitWeight: w,
			LineWeight: w.Mul(qty),
		}
		totalWeight = totalWeight.Add(lines[i].LineWeight)
		totalQty += int64(r.item.Quantity)
	}
	if !totalWeight.IsPositive() {
		return nil, warnings, &DegenerateInputError{Denominator: DenominatorTotalWeight}
	}

	freightDest := p.FreightSource.Mul(p.ExchangeRate)
	totalCustoms := decimal.Zero
	for i := range lines {
		// weight share of freight; multiply first to keep precision
		lines[i].UnitFreight = lines[i].UnitWeight.Mul(freightDest).Div(totalWeight)
		lines[i].UnitCustomsValue = lines[i].UnitPrice.Mul(p.ExchangeRate).Add(lines[i].UnitFreight)
		totalCustoms = totalCustoms.Add(lines[i].UnitCustomsValue.Mul(lines[i].qty()))
	}
	if !totalCustoms.IsPositive() {
		return nil, warnings, &DegenerateInputError{Denominator: DenominatorTotalCustomsValue}
	}
	if totalQty <= 0 {
		return nil, warnings, &DegenerateInputError{Denominator: DenominatorTotalQuantity}
	}

	taxes := p.Taxes()
	unitFee := p.FixedAgentFees().Div(decimal.NewFromInt(totalQty))
	for i := range lines {
		lines[i].UnitTax = lines[i].UnitCustomsValue.Mul(taxes).Div(totalCustoms)
		lines[i].UnitFixedFee = unitFee
		lines[i].UnitLandedCost = lines[i].UnitCustomsValue.Add(lines[i].UnitTax).Add(unitFee)
	}
	return lines, warnings, nil
}

// TaxRatio is (duty + import VAT) over the total customs value of the costed lines.
func TaxRatio(lines []CostedLine, p ShipmentParameters) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.UnitCustomsValue.Mul(l.qty()))
	}
	if !total.IsPositive() {
		return decimal.Zero, &DegenerateInputError{Denominator: DenominatorTotalCustomsValue}
	}
	return p.Taxes().Div(total), nil
}
