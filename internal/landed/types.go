package landed

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// LineItem is one invoice row as produced by an input adapter.
type LineItem struct {
	Title      string          `json:"title"`
	Barcode    string          `json:"barcode,omitempty"`
	FormatCode string          `json:"format"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unitPrice"`
}

// Subtotal returns unit price times quantity in source currency.
func (it LineItem) Subtotal() decimal.Decimal {
	return it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
}

// Charge is a named fixed fee expressed in destination currency.
type Charge struct {
	Label  string          `json:"label"`
	Amount decimal.Decimal `json:"amount"`
}

// ShipmentParameters carries the shipment-level charges and pricing knobs for one run.
type ShipmentParameters struct {
	ExchangeRate       decimal.Decimal   `json:"exchangeRate"`
	FreightSource      decimal.Decimal   `json:"freightSource"`
	CustomsDuty        decimal.Decimal   `json:"customsDuty"`
	ImportVAT          decimal.Decimal   `json:"importVat"`
	FixedFees          []Charge          `json:"fixedFees"`
	DeclaredSubtotal   *decimal.Decimal  `json:"declaredSubtotal,omitempty"`
	Margins            []decimal.Decimal `json:"margins"`
	VATRate            decimal.Decimal   `json:"vatRate"`
	ReconcileTolerance decimal.Decimal   `json:"reconcileTolerance"`
}

// FixedAgentFees sums every fixed fee; the total is spread evenly per unit.
func (p ShipmentParameters) FixedAgentFees() decimal.Decimal {
	total := decimal.Zero
	for _, fee := range p.FixedFees {
		total = total.Add(fee.Amount)
	}
	return total
}

// Taxes returns customs duty plus import VAT, the amount prorated by customs value.
func (p ShipmentParameters) Taxes() decimal.Decimal {
	return p.CustomsDuty.Add(p.ImportVAT)
}

// Validate checks the numeric preconditions of the parameter set.
func (p ShipmentParameters) Validate() error {
	if !p.ExchangeRate.IsPositive() {
		return fmt.Errorf("%w: exchange rate must be greater than zero", ErrInvalidParameters)
	}
	if p.FreightSource.IsNegative() {
		return fmt.Errorf("%w: freight must not be negative", ErrInvalidParameters)
	}
	if p.CustomsDuty.IsNegative() {
		return fmt.Errorf("%w: customs duty must not be negative", ErrInvalidParameters)
	}
	if p.ImportVAT.IsNegative() {
		return fmt.Errorf("%w: import VAT must not be negative", ErrInvalidParameters)
	}
	for _, fee := range p.FixedFees {
		if fee.Amount.IsNegative() {
			return fmt.Errorf("%w: fee %q must not be negative", ErrInvalidParameters, fee.Label)
		}
	}
	if p.DeclaredSubtotal != nil && p.DeclaredSubtotal.IsNegative() {
		return fmt.Errorf("%w: declared subtotal must not be negative", ErrInvalidParameters)
	}
	if len(p.Margins) == 0 {
		return fmt.Errorf("%w: at least one margin multiplier is required", ErrInvalidParameters)
	}
	for _, m := range p.Margins {
		if !m.IsPositive() {
			return fmt.Errorf("%w: margin multiplier %s must be greater than zero", ErrInvalidParameters, m)
		}
	}
	if p.VATRate.IsNegative() {
		return fmt.Errorf("%w: VAT rate must not be negative", ErrInvalidParameters)
	}
	if p.ReconcileTolerance.IsNegative() {
		return fmt.Errorf("%w: reconcile tolerance must not be negative", ErrInvalidParameters)
	}
	return nil
}

// SuggestedPrice is the rounded resale price for one margin multiplier.
type SuggestedPrice struct {
	Multiplier decimal.Decimal `json:"multiplier"`
	Price      decimal.Decimal `json:"price"`
}

// CostedLine is a retained line item enriched with every derived per-unit figure.
// Line is the 1-based position of the item in the original input.
type CostedLine struct {
	LineItem
	Line             int              `json:"line"`
	UnitWeight       decimal.Decimal  `json:"unitWeight"`
	LineWeight       decimal.Decimal  `json:"lineWeight"`
	UnitFreight      decimal.Decimal  `json:"unitFreight"`
	UnitCustomsValue decimal.Decimal  `json:"unitCustomsValue"`
	UnitTax          decimal.Decimal  `json:"unitTax"`
	UnitFixedFee     decimal.Decimal  `json:"unitFixedFee"`
	UnitLandedCost   decimal.Decimal  `json:"unitLandedCost"`
	Prices           []SuggestedPrice `json:"prices"`
}

// PriceFor returns the suggested price computed for multiplier m.
func (l CostedLine) PriceFor(m decimal.Decimal) (decimal.Decimal, bool) {
	for _, p := range l.Prices {
		if p.Multiplier.Equal(m) {
			return p.Price, true
		}
	}
	return decimal.Zero, false
}

func (l CostedLine) qty() decimal.Decimal {
	return decimal.NewFromInt(int64(l.Quantity))
}

// MarginTotal aggregates the shipment at one margin multiplier.
type MarginTotal struct {
	Multiplier          decimal.Decimal `json:"multiplier"`
	TotalSaleValue      decimal.Decimal `json:"totalSaleValue"`
	TotalSaleValueExTax decimal.Decimal `json:"totalSaleValueExTax"`
	ImpliedProfit       decimal.Decimal `json:"impliedProfit"`
}

// Summary holds shipment-level totals.
type Summary struct {
	TotalUnits           int             `json:"totalUnits"`
	TotalWeight          decimal.Decimal `json:"totalWeight"`
	TotalFOBSource       decimal.Decimal `json:"totalFobSource"`
	FreightDest          decimal.Decimal `json:"freightDest"`
	TaxDest              decimal.Decimal `json:"taxDest"`
	FixedFeesDest        decimal.Decimal `json:"fixedFeesDest"`
	TaxRatio             decimal.Decimal `json:"taxRatio"`
	TotalLandedCost      decimal.Decimal `json:"totalLandedCost"`
	TotalLandedCostExTax decimal.Decimal `json:"totalLandedCostExTax"`
	PerMultiplier        []MarginTotal   `json:"perMultiplier"`
}

// Result is the full output of one computation run.
type Result struct {
	Lines          []CostedLine    `json:"lines"`
	Summary        Summary         `json:"summary"`
	Reconciliation *Reconciliation `json:"reconciliation,omitempty"`
	Warnings       []Warning       `json:"warnings"`
}
