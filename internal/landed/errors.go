package landed

import (
	"errors"
	"fmt"
)

var (
	// ErrDegenerateInput is matched by every DegenerateInputError.
	ErrDegenerateInput = errors.New("degenerate input")
	// ErrInvalidParameters is returned when shipment parameters fail validation.
	ErrInvalidParameters = errors.New("invalid shipment parameters")
)

// Denominators guarded by the proration engine.
const (
	DenominatorTotalWeight       = "total_weight"
	DenominatorTotalCustomsValue = "total_customs_value"
	DenominatorTotalQuantity     = "total_quantity"
)

// DegenerateInputError reports a proration denominator that resolved to zero.
type DegenerateInputError struct {
	Denominator string
}

func (e *DegenerateInputError) Error() string {
	return fmt.Sprintf("degenerate input: %s is zero, nothing to prorate against", e.Denominator)
}

// Is lets errors.Is match ErrDegenerateInput.
func (e *DegenerateInputError) Is(target error) bool {
	return target == ErrDegenerateInput
}

// WarningCode classifies a non-fatal diagnostic.
type WarningCode string

const (
	WarnUnresolvedFormat       WarningCode = "UNRESOLVED_FORMAT"
	WarnReconciliationMismatch WarningCode = "RECONCILIATION_MISMATCH"
	WarnExcludedLine           WarningCode = "EXCLUDED_LINE"
	WarnSkippedRows            WarningCode = "SKIPPED_ROWS"
)

// Warning is a non-fatal condition returned alongside a result.
type Warning struct {
	Code    WarningCode `json:"code"`
	Line    int         `json:"line,omitempty"`
	Message string      `json:"message"`
}
