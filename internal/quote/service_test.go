package quote_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/musicjungle-cl/MJ-import-pricing-light/internal/fxrate"
	"github.com/musicjungle-cl/MJ-import-pricing-light/internal/invoice"
	"github.com/musicjungle-cl/MJ-import-pricing-light/internal/landed"
	"github.com/musicjungle-cl/MJ-import-pricing-light/internal/obs"
	"github.com/musicjungle-cl/MJ-import-pricing-light/internal/quote"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func ptr(s string) *decimal.Decimal {
	v := d(s)
	return &v
}

func defaults() landed.ShipmentParameters {
	return landed.ShipmentParameters{
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
}

type fixture struct {
	svc      *quote.Service
	metrics  *obs.QuoteMetrics
	mr       *miniredis.Miniredis
	ids      int
	fixedNow time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	f := &fixture{
		mr:       mr,
		metrics:  obs.NewQuoteMetrics("test", prometheus.NewRegistry()),
		fixedNow: time.Date(2024, 3, 12, 9, 0, 0, 0, time.UTC),
	}
	svc, err := quote.NewService(quote.ServiceConfig{
		Weights:  landed.DefaultWeightTable(),
		Defaults: defaults(),
		Store:    quote.NewCache(client, "quote:", time.Hour),
		Logger:   zerolog.Nop(),
		Metrics:  f.metrics,
		Now:      func() time.Time { return f.fixedNow },
		NewID: func() string {
			f.ids++
			return "q" + string(rune('0'+f.ids))
		},
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func aquarium() []landed.LineItem {
	return []landed.LineItem{{Title: "Aqua - Aquarium", FormatCode: "LP", Quantity: 2, UnitPrice: d("14.95")}}
}

func TestServiceCreateAndGet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	q, err := f.svc.Create(ctx, quote.Request{Source: quote.SourcePaste, Items: aquarium()})
	require.NoError(t, err)
	require.Equal(t, "q1", q.ID)
	require.Equal(t, f.fixedNow, q.CreatedAt)
	require.Len(t, q.Lines, 1)
	require.True(t, q.Lines[0].Prices[0].Price.Equal(d("625900")))
	require.True(t, f.mr.Exists("quote:q1"))
	require.Greater(t, f.mr.TTL("quote:q1"), time.Duration(0))

	got, err := f.svc.Get(ctx, "q1")
	require.NoError(t, err)
	require.Equal(t, q.ID, got.ID)
	require.True(t, got.Summary.TotalLandedCost.Equal(d("834347")))
	require.Equal(t, quote.SourcePaste, got.Source)

	require.Equal(t, float64(1), testutil.ToFloat64(f.metrics.Runs.WithLabelValues("ok")))
	require.Equal(t, float64(1), testutil.ToFloat64(f.metrics.Lines))
}

func TestServiceGetUnknown(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Get(context.Background(), "nope")
	require.ErrorIs(t, err, quote.ErrQuoteNotFound)

	_, err = f.svc.Create(context.Background(), quote.Request{Items: aquarium()})
	require.NoError(t, err)
	f.mr.FastForward(2 * time.Hour)
	_, err = f.svc.Get(context.Background(), "q1")
	require.ErrorIs(t, err, quote.ErrQuoteNotFound)
}

func TestServiceOverrides(t *testing.T) {
	f := newFixture(t)
	q, err := f.svc.Create(context.Background(), quote.Request{
		Items: aquarium(),
		Overrides: quote.Overrides{
			Margins:          []decimal.Decimal{d("2")},
			DeclaredSubtotal: ptr("29.90"),
			FixedFees:        []landed.Charge{},
		},
	})
	require.NoError(t, err)
	require.Len(t, q.Params.Margins, 1)
	require.Empty(t, q.Params.FixedFees)
	require.NotNil(t, q.Reconciliation)
	require.Equal(t, landed.ReconcileMatch, q.Reconciliation.Status)
	require.True(t, q.Lines[0].UnitFixedFee.IsZero())

	// defaults are untouched by a previous override
	p := f.svc.Params(quote.Overrides{})
	require.Len(t, p.Margins, 3)
	require.Len(t, p.FixedFees, 2)
	require.Nil(t, p.DeclaredSubtotal)
}

func TestServiceSkippedRowsWarning(t *testing.T) {
	f := newFixture(t)
	q, err := f.svc.Create(context.Background(), quote.Request{
		Items:   aquarium(),
		Skipped: []*invoice.MalformedRecordError{{Line: 3, Reason: "bad"}, {Line: 7, Reason: "bad"}},
	})
	require.NoError(t, err)
	require.Len(t, q.Warnings, 1)
	require.Equal(t, landed.WarnSkippedRows, q.Warnings[0].Code)
	require.Contains(t, q.Warnings[0].Message, "lines 3, 7")
	require.Equal(t, float64(2), testutil.ToFloat64(f.metrics.Skipped))
}

func TestServiceErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, quote.Request{Items: aquarium(), Overrides: quote.Overrides{ExchangeRate: ptr("0")}})
	require.ErrorIs(t, err, landed.ErrInvalidParameters)

	_, err = f.svc.Create(ctx, quote.Request{Items: []landed.LineItem{{Title: "x", FormatCode: "LP", Quantity: 0, UnitPrice: d("1")}}})
	var degenerate *landed.DegenerateInputError
	require.True(t, errors.As(err, &degenerate))

	require.Equal(t, float64(1), testutil.ToFloat64(f.metrics.Runs.WithLabelValues("invalid")))
	require.Equal(t, float64(1), testutil.ToFloat64(f.metrics.Runs.WithLabelValues("degenerate")))
	require.False(t, f.mr.Exists("quote:q1"))
}

func TestNewServiceRejectsBadDefaults(t *testing.T) {
	p := defaults()
	p.Margins = nil
	_, err := quote.NewService(quote.ServiceConfig{Defaults: p})
	require.ErrorIs(t, err, landed.ErrInvalidParameters)
}

func TestMemoryStore(t *testing.T) {
	store := quote.NewMemoryStore(time.Minute, 2)
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.Put(ctx, &quote.Quote{ID: id}))
	}
	_, ok, err := store.Get(ctx, "a")
	require.NoError(t, err)
	require.False(t, ok, "oldest quote evicted")
	q, ok, err := store.Get(ctx, "c")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "c", q.ID)
}

type fixedRate struct {
	rate fxrate.Rate
	err  error
}

func (f fixedRate) Current(context.Context) (fxrate.Rate, error) { return f.rate, f.err }

func TestServiceLiveExchangeRate(t *testing.T) {
	newSvc := func(rates quote.RateSource) *quote.Service {
		svc, err := quote.NewService(quote.ServiceConfig{Defaults: defaults(), Rates: rates, Logger: zerolog.Nop()})
		require.NoError(t, err)
		return svc
	}
	ctx := context.Background()

	svc := newSvc(fixedRate{rate: fxrate.Rate{Value: d("1052.41")}})
	q, err := svc.Create(ctx, quote.Request{Items: aquarium(), Overrides: quote.Overrides{LiveExchangeRate: true}})
	require.NoError(t, err)
	require.True(t, q.Params.ExchangeRate.Equal(d("1052.41")))

	q, err = svc.Create(ctx, quote.Request{Items: aquarium(), Overrides: quote.Overrides{LiveExchangeRate: true, ExchangeRate: ptr("990")}})
	require.NoError(t, err)
	require.True(t, q.Params.ExchangeRate.Equal(d("990")))

	svc = newSvc(fixedRate{err: errors.New("upstream down")})
	_, err = svc.Create(ctx, quote.Request{Items: aquarium(), Overrides: quote.Overrides{LiveExchangeRate: true}})
	require.ErrorIs(t, err, quote.ErrLiveRateUnavailable)

	svc = newSvc(nil)
	_, err = svc.ExchangeRate(ctx)
	require.ErrorIs(t, err, quote.ErrLiveRateUnavailable)
	q, err = svc.Create(ctx, quote.Request{Items: aquarium()})
	require.NoError(t, err)
	require.True(t, q.Params.ExchangeRate.Equal(d("1000")))
}
