package invoice

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/musicjungle-cl/MJ-import-pricing-light/internal/landed"
)

var (
	// [barcode]  Artist - Title  FORMAT  qty  price  [total], columns split by 2+ spaces
	itemRowRe     = regexp.MustCompile(`^\s*(?:(\d{8,14})\s+)?(\S(?:.*?\S)?)\s{2,}(\S+)\s{2,}(\d+)\s{2,}((?:€\s?)?\d[\d.,]*)(?:\s{2,}((?:€\s?)?\d[\d.,]*))?\s*$`)
	barcodeLeadRe = regexp.MustCompile(`^\s*\d{8,14}\s`)
	subtotalRe    = regexp.MustCompile(`(?i)^\s*(?:sub-?total|goods\s+(?:value|total)|net\s+(?:total|amount)|total\s+goods)\b[^0-9]*?(\d[\d.,]*)\s*$`)

	lineTotalTolerance = decimal.RequireFromString("0.01")
)

// InvoiceTextSource extracts line items from the text layer of a supplier PDF invoice,
// as produced by `pdftotext -layout`. Lines that are not item rows are ignored, except
// rows starting with a barcode, which are reported as malformed when they do not parse.
type InvoiceTextSource struct {
	Text string
}

// Rows implements Source.
func (s InvoiceTextSource) Rows(ctx context.Context) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var rows []Row
	for i, raw := range strings.Split(strings.ReplaceAll(s.Text, "\r\n", "\n"), "\n") {
		line := i + 1
		if subtotalRe.MatchString(raw) {
			continue
		}
		m := itemRowRe.FindStringSubmatch(raw)
		if m == nil {
			if barcodeLeadRe.MatchString(raw) {
				rows = append(rows, Row{Line: line, Err: &MalformedRecordError{Line: line, Raw: raw, Reason: "unrecognised item row"}})
			}
			continue
		}
		item, err := itemFromMatch(m)
		if err != nil {
			rows = append(rows, Row{Line: line, Err: &MalformedRecordError{Line: line, Raw: raw, Reason: err.Error()}})
			continue
		}
		rows = append(rows, Row{Line: line, Item: item})
	}
	return rows, nil
}

func itemFromMatch(m []string) (landed.LineItem, error) {
	qty, err := strconv.Atoi(m[4])
	if err != nil {
		return landed.LineItem{}, fmt.Errorf("quantity %q is not an integer", m[4])
	}
	price, err := ParseDecimal(m[5])
	if err != nil {
		return landed.LineItem{}, fmt.Errorf("price: %w", err)
	}
	item := landed.LineItem{
		Barcode:    m[1],
		Title:      m[2],
		FormatCode: m[3],
		Quantity:   qty,
		UnitPrice:  price,
	}
	if m[6] != "" {
		total, err := ParseDecimal(m[6])
		if err != nil {
			return landed.LineItem{}, fmt.Errorf("line total: %w", err)
		}
		if item.Subtotal().Sub(total).Abs().GreaterThan(lineTotalTolerance) {
			return landed.LineItem{}, fmt.Errorf("line total %s does not match %d x %s", total, qty, price)
		}
	}
	return item, nil
}

// DeclaredSubtotal returns the goods subtotal printed on the invoice, if any.
// The last subtotal line wins since multi-page invoices repeat running totals.
func (s InvoiceTextSource) DeclaredSubtotal() (decimal.Decimal, bool) {
	var (
		found decimal.Decimal
		ok    bool
	)
	for _, raw := range strings.Split(s.Text, "\n") {
		m := subtotalRe.FindStringSubmatch(strings.TrimRight(raw, "\r"))
		if m == nil {
			continue
		}
		if v, err := ParseDecimal(m[1]); err == nil {
			found, ok = v, true
		}
	}
	return found, ok
}
