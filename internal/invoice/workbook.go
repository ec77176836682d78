package invoice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrUnreadableWorkbook is returned when the input is not a readable .xlsx file.
var ErrUnreadableWorkbook = errors.New("unreadable workbook")

// WorkbookSource reads order lines from an .xlsx workbook laid out like a paste:
// Title, Format, Qty, Price with an optional leading barcode column.
type WorkbookSource struct {
	Reader io.Reader
	// Sheet defaults to the first sheet.
	Sheet string
	// HeaderRows are skipped before parsing.
	HeaderRows int
}

// Rows implements Source.
func (s WorkbookSource) Rows(ctx context.Context) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := excelize.OpenReader(s.Reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableWorkbook, err)
	}
	defer func() {
		_ = f.Close()
	}()

	sheet := s.Sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("%w: no sheets", ErrUnreadableWorkbook)
		}
		sheet = sheets[0]
	}
	cells, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("%w: sheet %q: %v", ErrUnreadableWorkbook, sheet, err)
	}

	var rows []Row
	for i, cols := range cells {
		if i < s.HeaderRows || strings.TrimSpace(strings.Join(cols, "")) == "" {
			continue
		}
		if i%200 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		line := i + 1
		item, err := parseColumns(cols)
		if err != nil {
			rows = append(rows, Row{Line: line, Err: &MalformedRecordError{
				Line:   line,
				Raw:    strings.Join(cols, " | "),
				Reason: err.Error(),
			}})
			continue
		}
		rows = append(rows, Row{Line: line, Item: item})
	}
	return rows, nil
}
