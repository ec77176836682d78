package landed

import "fmt"

// Compute runs the whole pipeline for one shipment. It either returns a complete result or
// an error with no result; warnings never stop the run.
func Compute(items []LineItem, table WeightTable, p ShipmentParameters) (*Result, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	var warnings []Warning
	var rec *Reconciliation
	if p.DeclaredSubtotal != nil {
		r := Reconcile(items, *p.DeclaredSubtotal, p.ReconcileTolerance)
		rec = &r
		if r.Status == ReconcileMismatch {
			warnings = append(warnings, Warning{
				Code:    WarnReconciliationMismatch,
				Message: fmt.Sprintf("line items sum to %s but the invoice declares %s (delta %s)", r.Computed, r.Declared, r.Delta),
			})
		}
	}

	costed, prorateWarnings, err := Prorate(items, table, p)
	if err != nil {
		return nil, err
	}
	warnings = append(warnings, prorateWarnings...)

	ratio, err := TaxRatio(costed, p)
	if err != nil {
		return nil, err
	}

	priced := PriceLines(costed, p.Margins)
	summary := Aggregate(priced, p.Margins, p.VATRate)
	summary.TaxRatio = ratio

	if warnings == nil {
		warnings = []Warning{}
	}
	return &Result{
		Lines:          priced,
		Summary:        summary,
		Reconciliation: rec,
		Warnings:       warnings,
	}, nil
}
