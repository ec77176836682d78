package invoice

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/musicjungle-cl/MJ-import-pricing-light/internal/landed"
)

// PasteSource parses rows copied from a spreadsheet or PDF table.
//
// Each row is Title, Format, Qty, Price, or Barcode, Title, Format, Qty, Price.
type PasteSource struct {
	Text string
	// Delimiter separates columns; tab when zero.
	Delimiter rune
}

// Rows implements Source.
func (p PasteSource) Rows(ctx context.Context) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	delim := "\t"
	if p.Delimiter != 0 {
		delim = string(p.Delimiter)
	}
	text := strings.ReplaceAll(p.Text, "\r\n", "\n")
	var rows []Row
	for i, raw := range strings.Split(text, "\n") {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		line := i + 1
		item, err := parsePasteRow(raw, delim)
		if err != nil {
			rows = append(rows, Row{Line: line, Err: &MalformedRecordError{Line: line, Raw: raw, Reason: err.Error()}})
			continue
		}
		rows = append(rows, Row{Line: line, Item: item})
	}
	return rows, nil
}

func parsePasteRow(raw, delim string) (landed.LineItem, error) {
	return parseColumns(strings.Split(raw, delim))
}

// parseColumns maps Title, Format, Qty, Price with an optional leading barcode.
func parseColumns(cols []string) (landed.LineItem, error) {
	for i := range cols {
		cols[i] = strings.TrimSpace(cols[i])
	}
	// spreadsheets often leave trailing empty cells
	for len(cols) > 4 && cols[len(cols)-1] == "" {
		cols = cols[:len(cols)-1]
	}
	var barcode string
	switch len(cols) {
	case 4:
	case 5:
		barcode, cols = cols[0], cols[1:]
	default:
		return landed.LineItem{}, fmt.Errorf("expected 4 or 5 columns, got %d", len(cols))
	}
	qty, err := strconv.Atoi(cols[2])
	if err != nil {
		return landed.LineItem{}, fmt.Errorf("quantity %q is not an integer", cols[2])
	}
	price, err := ParseDecimal(cols[3])
	if err != nil {
		return landed.LineItem{}, fmt.Errorf("price: %w", err)
	}
	return landed.LineItem{
		Title:      cols[0],
		Barcode:    barcode,
		FormatCode: cols[1],
		Quantity:   qty,
		UnitPrice:  price,
	}, nil
}
