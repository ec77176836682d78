package landed

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestComputeEndToEnd(t *testing.T) {
	p := sampleParams()
	declared := dec("29.90")
	p.DeclaredSubtotal = &declared
	items := []LineItem{{Title: "Aqua - Aquarium", FormatCode: "LP", Quantity: 2, UnitPrice: dec("14.95")}}

	res, err := Compute(items, DefaultWeightTable(), p)
	require.NoError(t, err)
	require.NotNil(t, res.Reconciliation)
	require.Equal(t, ReconcileMatch, res.Reconciliation.Status)
	require.Empty(t, res.Warnings)
	require.NotNil(t, res.Warnings)

	require.Len(t, res.Lines, 1)
	line := res.Lines[0]
	requireDecimal(t, "417173.5", line.UnitLandedCost)
	require.Len(t, line.Prices, 3)
	requireDecimal(t, "625900", line.Prices[0].Price)
	requireDecimal(t, "709900", line.Prices[1].Price)
	requireDecimal(t, "792900", line.Prices[2].Price)
	requireNear(t, dec("7.0912390488"), res.Summary.TaxRatio, "0.000000001")
	requireDecimal(t, "834347", res.Summary.TotalLandedCost)
}

func TestComputeReconciliationIsAdvisory(t *testing.T) {
	p := sampleParams()
	declared := dec("2082.45")
	p.DeclaredSubtotal = &declared
	items := []LineItem{{Title: "a", FormatCode: "CD", Quantity: 4, UnitPrice: dec("500")}}

	res, err := Compute(items, DefaultWeightTable(), p)
	require.NoError(t, err)
	require.Equal(t, ReconcileMismatch, res.Reconciliation.Status)
	requireDecimal(t, "82.45", res.Reconciliation.Delta)
	require.Len(t, res.Lines, 1)
	require.Len(t, res.Warnings, 1)
	require.Equal(t, WarnReconciliationMismatch, res.Warnings[0].Code)
}

func TestComputeWithoutDeclaredSubtotal(t *testing.T) {
	res, err := Compute(mixedShipment(), DefaultWeightTable(), sampleParams())
	require.NoError(t, err)
	require.Nil(t, res.Reconciliation)
	require.Len(t, res.Warnings, 1)
	require.Equal(t, WarnUnresolvedFormat, res.Warnings[0].Code)
	require.Equal(t, 14, res.Summary.TotalUnits)
}

func TestComputeRejectsInvalidParameters(t *testing.T) {
	cases := map[string]func(*ShipmentParameters){
		"zero rate":         func(p *ShipmentParameters) { p.ExchangeRate = decimal.Zero },
		"negative freight":  func(p *ShipmentParameters) { p.FreightSource = dec("-1") },
		"negative duty":     func(p *ShipmentParameters) { p.CustomsDuty = dec("-1") },
		"negative vat":      func(p *ShipmentParameters) { p.ImportVAT = dec("-1") },
		"negative fee":      func(p *ShipmentParameters) { p.FixedFees = []Charge{{Label: "x", Amount: dec("-1")}} },
		"no margins":        func(p *ShipmentParameters) { p.Margins = nil },
		"zero margin":       func(p *ShipmentParameters) { p.Margins = []decimal.Decimal{decimal.Zero} },
		"negative vat rate": func(p *ShipmentParameters) { p.VATRate = dec("-0.19") },
		"negative tol":      func(p *ShipmentParameters) { p.ReconcileTolerance = dec("-0.01") },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			p := sampleParams()
			mutate(&p)
			res, err := Compute(mixedShipment(), DefaultWeightTable(), p)
			require.ErrorIs(t, err, ErrInvalidParameters)
			require.Nil(t, res)
		})
	}
}

func TestComputeDegenerateReturnsNoResult(t *testing.T) {
	res, err := Compute([]LineItem{}, DefaultWeightTable(), sampleParams())
	require.ErrorIs(t, err, ErrDegenerateInput)
	require.Nil(t, res)
}

func TestComputeIsDeterministic(t *testing.T) {
	first, err := Compute(mixedShipment(), DefaultWeightTable(), sampleParams())
	require.NoError(t, err)
	second, err := Compute(mixedShipment(), DefaultWeightTable(), sampleParams())
	require.NoError(t, err)

	require.Len(t, second.Lines, len(first.Lines))
	for i := range first.Lines {
		require.True(t, first.Lines[i].UnitLandedCost.Equal(second.Lines[i].UnitLandedCost))
		for j := range first.Lines[i].Prices {
			require.True(t, first.Lines[i].Prices[j].Price.Equal(second.Lines[i].Prices[j].Price))
		}
	}
	require.Equal(t, first.Summary.TotalLandedCost.String(), second.Summary.TotalLandedCost.String())
}
