// Package invoice turns supplier invoices in their various shapes into line items.
package invoice

import (
	"context"
	"errors"
	"fmt"

	"github.com/musicjungle-cl/MJ-import-pricing-light/internal/landed"
)

// ErrTooManyMalformed is returned by Collect when the skip budget is exhausted.
var ErrTooManyMalformed = errors.New("too many malformed invoice rows")

// MalformedRecordError describes a source row that could not become a line item.
type MalformedRecordError struct {
	Line   int
	Raw    string
	Reason string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
}

// Row is the per-row outcome of an adapter: either Item or Err is meaningful.
type Row struct {
	Line int
	Item landed.LineItem
	Err  error
}

// Source produces an ordered sequence of parsed rows.
type Source interface {
	Rows(ctx context.Context) ([]Row, error)
}

// Policy decides what happens to malformed rows.
type Policy struct {
	// AbortOnError stops at the first malformed row.
	AbortOnError bool
	// MaxSkipped caps the number of rows that may be skipped; zero means no cap.
	MaxSkipped int
}

// Batch is the collected output of a source.
type Batch struct {
	Items   []landed.LineItem
	Skipped []*MalformedRecordError
}

// Collect drains src applying policy to malformed rows.
func Collect(ctx context.Context, src Source, policy Policy) (Batch, error) {
	rows, err := src.Rows(ctx)
	if err != nil {
		return Batch{}, err
	}
	var batch Batch
	for _, row := range rows {
		if row.Err == nil {
			batch.Items = append(batch.Items, row.Item)
			continue
		}
		if policy.AbortOnError {
			return Batch{}, row.Err
		}
		var malformed *MalformedRecordError
		if !errors.As(row.Err, &malformed) {
			malformed = &MalformedRecordError{Line: row.Line, Reason: row.Err.Error()}
		}
		batch.Skipped = append(batch.Skipped, malformed)
		if policy.MaxSkipped > 0 && len(batch.Skipped) > policy.MaxSkipped {
			return Batch{}, fmt.Errorf("%w: %d rows skipped, limit %d", ErrTooManyMalformed, len(batch.Skipped), policy.MaxSkipped)
		}
	}
	return batch, nil
}
