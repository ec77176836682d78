package fxrate_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/musicjungle-cl/MJ-import-pricing-light/internal/fxrate"
	"github.com/musicjungle-cl/MJ-import-pricing-light/internal/resilience"
)

const euroSeries = `{
	"version": "1.7.0",
	"codigo": "euro",
	"unidad_medida": "Pesos",
	"serie": [
		{"fecha": "2024-03-12T03:00:00.000Z", "valor": 1052.41},
		{"fecha": "2024-03-11T03:00:00.000Z", "valor": 1049.87}
	]
}`

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func TestMindicadorCurrent(t *testing.T) {
	var calls atomic.Int32
	var failing atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		if failing.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(euroSeries))
	}))
	t.Cleanup(srv.Close)

	clk := &clock{t: time.Date(2024, 3, 12, 10, 0, 0, 0, time.UTC)}
	p := fxrate.NewMindicador(fxrate.Config{
		URL:      srv.URL,
		Client:   resilience.Client{MaxAttempts: 1},
		TTL:      time.Hour,
		MaxStale: 24 * time.Hour,
		Now:      clk.now,
	})
	ctx := context.Background()

	rate, err := p.Current(ctx)
	require.NoError(t, err)
	require.True(t, decimal.RequireFromString("1052.41").Equal(rate.Value))
	require.Equal(t, 2024, rate.AsOf.Year())
	require.False(t, rate.Stale)

	_, err = p.Current(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, calls.Load())

	failing.Store(true)
	clk.t = clk.t.Add(2 * time.Hour)
	rate, err = p.Current(ctx)
	require.NoError(t, err)
	require.True(t, rate.Stale)
	require.EqualValues(t, 2, calls.Load())

	clk.t = clk.t.Add(48 * time.Hour)
	_, err = p.Current(ctx)
	var status *resilience.StatusError
	require.True(t, errors.As(err, &status))
}

func TestMindicadorEmptySeries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"serie": []}`))
	}))
	t.Cleanup(srv.Close)

	p := fxrate.NewMindicador(fxrate.Config{URL: srv.URL, Client: resilience.Client{}})
	_, err := p.Current(context.Background())
	require.ErrorIs(t, err, fxrate.ErrNoRate)
}
