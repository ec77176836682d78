package report_test

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/musicjungle-cl/MJ-import-pricing-light/internal/landed"
	"github.com/musicjungle-cl/MJ-import-pricing-light/internal/report"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func sampleDocument(t *testing.T) report.Document {
	t.Helper()
	params := landed.ShipmentParameters{
		ExchangeRate:  d("1000"),
		FreightSource: d("50"),
		CustomsDuty:   d("130048"),
		ImportVAT:     d("436542"),
		FixedFees: []landed.Charge{
			{Label: "Proceso de Entrada", Amount: d("157863")},
			{Label: "IVA Agente Aduana", Amount: d("29994")},
		},
		Margins:            []decimal.Decimal{d("1.5"), d("1.7"), d("1.9")},
		VATRate:            d("0.19"),
		ReconcileTolerance: d("0.01"),
	}
	items := []landed.LineItem{
		{Title: "Aqua - Aquarium", FormatCode: "LP", Quantity: 2, UnitPrice: d("14.95")},
		{Title: "Cluster - Zuckerzeit", FormatCode: "BOX", Quantity: 0, UnitPrice: d("10")},
	}
	res, err := landed.Compute(items, landed.DefaultWeightTable(), params)
	require.NoError(t, err)
	return report.Document{
		ID:        "q-1",
		CreatedAt: time.Date(2024, 3, 12, 10, 30, 0, 0, time.UTC),
		Source:    "paste",
		Params:    params,
		Result:    res,
	}
}

func TestFormatters(t *testing.T) {
	require.Equal(t, "$625.900", report.CLP(d("625900")))
	require.Equal(t, "$417.174", report.CLP(d("417173.5")))
	require.Equal(t, "x1.7", report.Multiplier(d("1.7")))
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, report.WriteXLSX(&buf, sampleDocument(t)))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })

	require.Equal(t, []string{"Lineas", "Resumen"}, f.GetSheetList())

	title, err := f.GetCellValue("Lineas", "B2")
	require.NoError(t, err)
	require.Equal(t, "Aqua - Aquarium", title)

	raw, err := f.GetCellValue("Lineas", "H2", excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	require.Equal(t, "709900", raw)

	header, err := f.GetCellValue("Lineas", "I1")
	require.NoError(t, err)
	require.Equal(t, "Precio x1.9", header)

	rows, err := f.GetRows("Resumen")
	require.NoError(t, err)
	require.Equal(t, []string{"Cotización", "q-1"}, rows[0])
	var labels []string
	for _, r := range rows {
		labels = append(labels, r[0])
	}
	require.Contains(t, labels, "Proceso de Entrada")
	require.Contains(t, labels, "Advertencia")
}

func TestWritePDF(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, report.WritePDF(&buf, sampleDocument(t)))
	require.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
	require.Greater(t, buf.Len(), 1000)
}

func TestWriteText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, report.WriteText(&buf, sampleDocument(t)))
	out := buf.String()
	require.Contains(t, out, "Aqua - Aquarium")
	require.Contains(t, out, "$625.900")
	require.Contains(t, out, "$792.900")
	require.Contains(t, out, "EXCLUDED_LINE")
	require.Equal(t, 1, strings.Count(out, "Aquarium"))
}

func TestRejectsEmptyDocument(t *testing.T) {
	var buf bytes.Buffer
	require.Error(t, report.WriteText(&buf, report.Document{ID: "x"}))
	require.Error(t, report.WriteXLSX(&buf, report.Document{ID: "x"}))
	require.Error(t, report.WritePDF(&buf, report.Document{ID: "x"}))
}
