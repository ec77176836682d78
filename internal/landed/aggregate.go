package landed

import "github.com/shopspring/decimal"

// Aggregate rolls per-unit figures up to shipment totals.
// Ex-tax values divide by (1 + vatRate).
func Aggregate(lines []CostedLine, margins []decimal.Decimal, vatRate decimal.Decimal) Summary {
	divisor := decimal.NewFromInt(1).Add(vatRate)

	s := Summary{
		TotalWeight:     decimal.Zero,
		TotalFOBSource:  decimal.Zero,
		FreightDest:     decimal.Zero,
		TaxDest:         decimal.Zero,
		FixedFeesDest:   decimal.Zero,
		TotalLandedCost: decimal.Zero,
	}
	sales := make([]decimal.Decimal, len(margins))
	for i := range sales {
		sales[i] = decimal.Zero
	}

	for _, l := range lines {
		qty := l.qty()
		s.TotalUnits += l.Quantity
		s.TotalWeight = s.TotalWeight.Add(l.LineWeight)
		s.TotalFOBSource = s.TotalFOBSource.Add(l.Subtotal())
		s.FreightDest = s.FreightDest.Add(l.UnitFreight.Mul(qty))
		s.TaxDest = s.TaxDest.Add(l.UnitTax.Mul(qty))
		s.FixedFeesDest = s.FixedFeesDest.Add(l.UnitFixedFee.Mul(qty))
		s.TotalLandedCost = s.TotalLandedCost.Add(l.UnitLandedCost.Mul(qty))
		for i, m := range margins {
			price, ok := l.PriceFor(m)
			if !ok {
				price = SuggestPrice(l.UnitLandedCost, m)
			}
			sales[i] = sales[i].Add(price.Mul(qty))
		}
	}

	s.TotalLandedCostExTax = s.TotalLandedCost.Div(divisor)
	s.PerMultiplier = make([]MarginTotal, len(margins))
	for i, m := range margins {
		s.PerMultiplier[i] = MarginTotal{
			Multiplier:          m,
			TotalSaleValue:      sales[i],
			TotalSaleValueExTax: sales[i].Div(divisor),
			ImpliedProfit:       sales[i].Sub(s.TotalLandedCost),
		}
	}
	return s
}
