package landed

import "github.com/shopspring/decimal"

// ReconcileStatus is the outcome of comparing line totals to the supplier subtotal.
type ReconcileStatus string

const (
	ReconcileMatch    ReconcileStatus = "MATCH"
	ReconcileMismatch ReconcileStatus = "MISMATCH"
)

// Reconciliation compares the computed invoice subtotal with the declared one.
type Reconciliation struct {
	Status    ReconcileStatus `json:"status"`
	Computed  decimal.Decimal `json:"computedSubtotal"`
	Declared  decimal.Decimal `json:"declaredSubtotal"`
	Delta     decimal.Decimal `json:"delta"`
	Tolerance decimal.Decimal `json:"tolerance"`
}

// Reconcile sums price*quantity over the retained lines and compares it with declared.
// The delta must be strictly below tolerance to match; an exact match always passes.
func Reconcile(items []LineItem, declared, tolerance decimal.Decimal) Reconciliation {
	retained, _ := retain(items)
	computed := decimal.Zero
	for _, r := range retained {
		computed = computed.Add(r.item.Subtotal())
	}
	delta := computed.Sub(declared).Abs()
	status := ReconcileMismatch
	if delta.IsZero() || delta.LessThan(tolerance) {
		status = ReconcileMatch
	}
	return Reconciliation{
		Status:    status,
		Computed:  computed,
		Declared:  declared,
		Delta:     delta,
		Tolerance: tolerance,
	}
}
