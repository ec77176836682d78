// Package fxrate looks up the current EUR to CLP exchange rate.
package fxrate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// ErrNoRate is returned when the upstream answered without a usable rate.
var ErrNoRate = errors.New("fxrate: no usable rate in response")

// Rate is one observed exchange rate in CLP per EUR.
type Rate struct {
	Value     decimal.Decimal `json:"value"`
	AsOf      time.Time       `json:"asOf"`
	Source    string          `json:"source"`
	FetchedAt time.Time       `json:"fetchedAt"`
	Stale     bool            `json:"stale,omitempty"`
}

// Fetcher issues the upstream GET. resilience.Client satisfies it.
type Fetcher interface {
	GetJSON(ctx context.Context, url string, dst any) error
}

// Config wires a Mindicador provider.
type Config struct {
	URL    string
	Client Fetcher
	// TTL is how long a fetched rate is served without asking again.
	TTL time.Duration
	// MaxStale is how old a cached rate may be when the upstream is failing.
	MaxStale time.Duration
	Logger   zerolog.Logger
	Now      func() time.Time
}

// Mindicador reads the euro series published by mindicador.cl, or any endpoint with
// the same {"serie":[{"fecha","valor"}]} shape, and caches it in process.
type Mindicador struct {
	url      string
	client   Fetcher
	ttl      time.Duration
	maxStale time.Duration
	logger   zerolog.Logger
	now      func() time.Time

	mu     sync.Mutex
	cached *Rate
}

// NewMindicador builds a provider.
func NewMindicador(cfg Config) *Mindicador {
	if cfg.TTL <= 0 {
		cfg.TTL = time.Hour
	}
	if cfg.MaxStale < cfg.TTL {
		cfg.MaxStale = cfg.TTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Mindicador{
		url:      cfg.URL,
		client:   cfg.Client,
		ttl:      cfg.TTL,
		maxStale: cfg.MaxStale,
		logger:   cfg.Logger,
		now:      cfg.Now,
	}
}

type seriesResponse struct {
	Serie []struct {
		Fecha time.Time       `json:"fecha"`
		Valor decimal.Decimal `json:"valor"`
	} `json:"serie"`
}

// Current returns the latest rate, from cache while it is fresh.
// When the upstream fails a cached rate younger than MaxStale is returned marked Stale.
func (m *Mindicador) Current(ctx context.Context) (Rate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if m.cached != nil && now.Sub(m.cached.FetchedAt) < m.ttl {
		return *m.cached, nil
	}

	rate, err := m.fetch(ctx, now)
	if err == nil {
		m.cached = &rate
		return rate, nil
	}
	if m.cached != nil && now.Sub(m.cached.FetchedAt) < m.maxStale {
		m.logger.Warn().Err(err).Time("fetched_at", m.cached.FetchedAt).Msg("fx_rate_stale")
		stale := *m.cached
		stale.Stale = true
		return stale, nil
	}
	return Rate{}, err
}

func (m *Mindicador) fetch(ctx context.Context, now time.Time) (Rate, error) {
	var body seriesResponse
	if err := m.client.GetJSON(ctx, m.url, &body); err != nil {
		return Rate{}, fmt.Errorf("fxrate: fetch %s: %w", m.url, err)
	}
	if len(body.Serie) == 0 {
		return Rate{}, ErrNoRate
	}
	// the series is newest first
	latest := body.Serie[0]
	if !latest.Valor.IsPositive() {
		return Rate{}, ErrNoRate
	}
	m.logger.Debug().Str("value", latest.Valor.String()).Time("as_of", latest.Fecha).Msg("fx_rate_fetched")
	return Rate{Value: latest.Valor, AsOf: latest.Fecha, Source: m.url, FetchedAt: now}, nil
}
