package invoice

import (
	"context"
	"fmt"

	"github.com/musicjungle-cl/MJ-import-pricing-light/internal/landed"
)

// Record is a structured line as entered in an editor or sent over the API.
// UnitPrice stays textual so either decimal mark is accepted.
type Record struct {
	Title     string `json:"title" validate:"max=300"`
	Barcode   string `json:"barcode,omitempty" validate:"omitempty,numeric,max=14"`
	Format    string `json:"format" validate:"max=64"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unitPrice" validate:"required"`
}

// ItemsSource adapts already structured records.
type ItemsSource struct {
	Records []Record
}

// Rows implements Source.
func (s ItemsSource) Rows(ctx context.Context) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows := make([]Row, 0, len(s.Records))
	for i, rec := range s.Records {
		line := i + 1
		price, err := ParseDecimal(rec.UnitPrice)
		if err != nil {
			rows = append(rows, Row{Line: line, Err: &MalformedRecordError{
				Line:   line,
				Raw:    fmt.Sprintf("%s | %s | %d | %s", rec.Title, rec.Format, rec.Quantity, rec.UnitPrice),
				Reason: fmt.Sprintf("price: %v", err),
			}})
			continue
		}
		rows = append(rows, Row{Line: line, Item: landed.LineItem{
			Title:      rec.Title,
			Barcode:    rec.Barcode,
			FormatCode: rec.Format,
			Quantity:   rec.Quantity,
			UnitPrice:  price,
		}})
	}
	return rows, nil
}
