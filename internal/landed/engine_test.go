package landed

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestProrateSingleSKUTrace(t *testing.T) {
	items := []LineItem{{Title: "Aqua - Aquarium", FormatCode: "LP", Quantity: 2, UnitPrice: dec("14.95")}}

	lines, warnings, err := Prorate(items, DefaultWeightTable(), sampleParams())
	require.NoError(t, err)
	require.Empty(t, warnings)
	require.Len(t, lines, 1)

	l := lines[0]
	requireDecimal(t, "1", l.UnitWeight)
	requireDecimal(t, "2", l.LineWeight)
	requireDecimal(t, "25000", l.UnitFreight)
	requireDecimal(t, "39950", l.UnitCustomsValue)
	requireDecimal(t, "283295", l.UnitTax)
	requireDecimal(t, "93928.5", l.UnitFixedFee)
	requireDecimal(t, "417173.5", l.UnitLandedCost)
	require.Equal(t, 1, l.Line)

	ratio, err := TaxRatio(lines, sampleParams())
	require.NoError(t, err)
	requireNear(t, dec("7.0912390488"), ratio, "0.000000001")
}

func mixedShipment() []LineItem {
	return []LineItem{
		{Title: "Stereolab - Dots and Loops", FormatCode: "LP", Quantity: 3, UnitPrice: dec("20.00")},
		{Title: "Broadcast - Tender Buttons", FormatCode: "2-LP", Quantity: 1, UnitPrice: dec("35.50")},
		{Title: "Air - Moon Safari", FormatCode: "cd", Quantity: 5, UnitPrice: dec("9.99")},
		{Title: "Boards of Canada - Geogaddi", FormatCode: "Cassette", Quantity: 2, UnitPrice: dec("7")},
		{Title: "Cluster - Box Set", FormatCode: "BOX", Quantity: 1, UnitPrice: dec("50")},
		{Title: "Can - Tago Mago", FormatCode: "3-LP", Quantity: 2, UnitPrice: dec("41.25")},
	}
}

func TestProrateDistributesEveryCharge(t *testing.T) {
	p := sampleParams()
	lines, warnings, err := Prorate(mixedShipment(), DefaultWeightTable(), p)
	require.NoError(t, err)
	require.Len(t, lines, 6)

	freight, taxes, fees := decimal.Zero, decimal.Zero, decimal.Zero
	for _, l := range lines {
		qty := decimal.NewFromInt(int64(l.Quantity))
		freight = freight.Add(l.UnitFreight.Mul(qty))
		taxes = taxes.Add(l.UnitTax.Mul(qty))
		fees = fees.Add(l.UnitFixedFee.Mul(qty))
		requireDecimal(t, l.UnitCustomsValue.Add(l.UnitTax).Add(l.UnitFixedFee).String(), l.UnitLandedCost)
	}
	requireNear(t, p.FreightSource.Mul(p.ExchangeRate), freight, "0.000001")
	requireNear(t, p.Taxes(), taxes, "0.000001")
	requireNear(t, p.FixedAgentFees(), fees, "0.000001")

	require.Len(t, warnings, 1)
	require.Equal(t, WarnUnresolvedFormat, warnings[0].Code)
	require.Equal(t, 5, warnings[0].Line)
	requireDecimal(t, "0.5", lines[4].UnitWeight)
}

func TestProrateFreightFollowsWeight(t *testing.T) {
	lines, _, err := Prorate(mixedShipment(), DefaultWeightTable(), sampleParams())
	require.NoError(t, err)

	lp, doubleLP, cd := lines[0], lines[1], lines[2]
	requireNear(t, lp.UnitFreight.Mul(dec("1.9")), doubleLP.UnitFreight, "0.000001")
	requireNear(t, lp.UnitFreight.Mul(dec("0.2")), cd.UnitFreight, "0.000001")
}

func TestProrateTaxesFollowCustomsValueNotPrice(t *testing.T) {
	// Same price, different weight: the heavier item carries more freight and so more tax.
	items := []LineItem{
		{Title: "single", FormatCode: "LP", Quantity: 1, UnitPrice: dec("10")},
		{Title: "triple", FormatCode: "3-LP", Quantity: 1, UnitPrice: dec("10")},
	}
	lines, _, err := Prorate(items, DefaultWeightTable(), sampleParams())
	require.NoError(t, err)
	require.True(t, lines[1].UnitTax.GreaterThan(lines[0].UnitTax))

	ratio, err := TaxRatio(lines, sampleParams())
	require.NoError(t, err)
	for _, l := range lines {
		requireNear(t, l.UnitCustomsValue.Mul(ratio), l.UnitTax, "0.0001")
	}
}

func TestProrateExcludesInvalidLines(t *testing.T) {
	items := []LineItem{
		{Title: "", FormatCode: "LP", Quantity: 1, UnitPrice: dec("10")},
		{Title: "kept", FormatCode: "LP", Quantity: 1, UnitPrice: dec("10")},
		{Title: "zero qty", FormatCode: "LP", Quantity: 0, UnitPrice: dec("10")},
		{Title: "refund", FormatCode: "LP", Quantity: 1, UnitPrice: dec("-1")},
	}
	lines, warnings, err := Prorate(items, DefaultWeightTable(), sampleParams())
	require.NoError(t, err)
	require.Len(t, lines, 1)
	require.Equal(t, 2, lines[0].Line)
	require.Len(t, warnings, 3)
	for _, w := range warnings {
		require.Equal(t, WarnExcludedLine, w.Code)
	}
}

func TestProrateDegenerateInput(t *testing.T) {
	t.Run("empty collection", func(t *testing.T) {
		lines, _, err := Prorate(nil, DefaultWeightTable(), sampleParams())
		require.ErrorIs(t, err, ErrDegenerateInput)
		require.Nil(t, lines)
		var degenerate *DegenerateInputError
		require.True(t, errors.As(err, &degenerate))
		require.Equal(t, DenominatorTotalWeight, degenerate.Denominator)
	})

	t.Run("all weights zero", func(t *testing.T) {
		table := NewWeightTable([]WeightEntry{{Tag: "LP", Weight: decimal.Zero}}, decimal.Zero)
		items := []LineItem{
			{Title: "a", FormatCode: "LP", Quantity: 1, UnitPrice: dec("10")},
			{Title: "b", FormatCode: "??", Quantity: 2, UnitPrice: dec("10")},
		}
		_, _, err := Prorate(items, table, sampleParams())
		var degenerate *DegenerateInputError
		require.True(t, errors.As(err, &degenerate))
		require.Equal(t, DenominatorTotalWeight, degenerate.Denominator)
	})

	t.Run("no customs value", func(t *testing.T) {
		p := sampleParams()
		p.FreightSource = decimal.Zero
		items := []LineItem{{Title: "promo", FormatCode: "LP", Quantity: 1, UnitPrice: decimal.Zero}}
		_, _, err := Prorate(items, DefaultWeightTable(), p)
		var degenerate *DegenerateInputError
		require.True(t, errors.As(err, &degenerate))
		require.Equal(t, DenominatorTotalCustomsValue, degenerate.Denominator)
	})

	t.Run("only excluded lines", func(t *testing.T) {
		items := []LineItem{{Title: "x", FormatCode: "LP", Quantity: 0, UnitPrice: dec("1")}}
		_, warnings, err := Prorate(items, DefaultWeightTable(), sampleParams())
		require.ErrorIs(t, err, ErrDegenerateInput)
		require.Len(t, warnings, 1)
	})
}
