package landed

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func requireDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.Truef(t, dec(want).Equal(got), "expected %s, got %s", want, got)
}

func requireNear(t *testing.T, want, got decimal.Decimal, tolerance string) {
	t.Helper()
	diff := want.Sub(got).Abs()
	require.Truef(t, diff.LessThanOrEqual(dec(tolerance)), "expected %s, got %s (diff %s)", want, got, diff)
}

// sampleParams mirrors the charges of a typical Madrid to Santiago shipment.
func sampleParams() ShipmentParameters {
	return ShipmentParameters{
		ExchangeRate:  dec("1000"),
		FreightSource: dec("50"),
		CustomsDuty:   dec("130048"),
		ImportVAT:     dec("436542"),
		FixedFees: []Charge{
			{Label: "Proceso de Entrada", Amount: dec("157863")},
			{Label: "IVA Agente Aduana", Amount: dec("29994")},
		},
		Margins:            []decimal.Decimal{dec("1.5"), dec("1.7"), dec("1.9")},
		VATRate:            dec("0.19"),
		ReconcileTolerance: dec("0.01"),
	}
}
