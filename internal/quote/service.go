// Package quote runs landed-cost computations on behalf of the API and keeps the results.
package quote

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/musicjungle-cl/MJ-import-pricing-light/internal/fxrate"
	"github.com/musicjungle-cl/MJ-import-pricing-light/internal/invoice"
	"github.com/musicjungle-cl/MJ-import-pricing-light/internal/landed"
	"github.com/musicjungle-cl/MJ-import-pricing-light/internal/obs"
	"github.com/musicjungle-cl/MJ-import-pricing-light/internal/report"
)

var (
	// ErrQuoteNotFound is returned when a quote id is unknown or expired.
	ErrQuoteNotFound = errors.New("quote not found")
	// ErrLiveRateUnavailable is returned when a live exchange rate was requested but
	// no rate source is configured or it failed.
	ErrLiveRateUnavailable = errors.New("live exchange rate unavailable")
)

// RateSource supplies the current exchange rate. *fxrate.Mindicador satisfies it.
type RateSource interface {
	Current(ctx context.Context) (fxrate.Rate, error)
}

// Input sources recorded on a quote.
const (
	SourceItems       = "items"
	SourcePaste       = "paste"
	SourceInvoiceText = "invoice-text"
	SourceWorkbook    = "workbook"
)

// Quote is one stored computation: its inputs and the engine result.
type Quote struct {
	ID        string                    `json:"id"`
	CreatedAt time.Time                 `json:"createdAt"`
	Source    string                    `json:"source"`
	Params    landed.ShipmentParameters `json:"params"`
	Weights   landed.WeightTable        `json:"weights"`
	landed.Result
}

// Document adapts the quote for the report renderers.
func (q *Quote) Document() report.Document {
	return report.Document{
		ID:        q.ID,
		CreatedAt: q.CreatedAt,
		Source:    q.Source,
		Params:    q.Params,
		Result:    &q.Result,
	}
}

// Overrides replaces individual configured defaults for one computation.
// Nil fields keep the default.
type Overrides struct {
	ExchangeRate       *decimal.Decimal  `json:"exchangeRate,omitempty" validate:"omitempty,gt=0"`
	FreightSource      *decimal.Decimal  `json:"freightSource,omitempty" validate:"omitempty,gte=0"`
	CustomsDuty        *decimal.Decimal  `json:"customsDuty,omitempty" validate:"omitempty,gte=0"`
	ImportVAT          *decimal.Decimal  `json:"importVat,omitempty" validate:"omitempty,gte=0"`
	FixedFees          []landed.Charge   `json:"fixedFees,omitempty" validate:"omitempty,dive"`
	DeclaredSubtotal   *decimal.Decimal  `json:"declaredSubtotal,omitempty" validate:"omitempty,gte=0"`
	Margins            []decimal.Decimal `json:"margins,omitempty" validate:"omitempty,dive,gt=0"`
	VATRate            *decimal.Decimal  `json:"vatRate,omitempty" validate:"omitempty,gte=0"`
	ReconcileTolerance *decimal.Decimal  `json:"reconcileTolerance,omitempty" validate:"omitempty,gte=0"`
	// LiveExchangeRate fetches the current rate when ExchangeRate is unset.
	LiveExchangeRate bool `json:"liveExchangeRate,omitempty"`
}

// Request is one computation request after the input adapter has run.
type Request struct {
	Source    string
	Items     []landed.LineItem
	Overrides Overrides
	Skipped   []*invoice.MalformedRecordError
}

// ServiceConfig wires Service dependencies.
type ServiceConfig struct {
	Weights  landed.WeightTable
	Defaults landed.ShipmentParameters
	Store    Store
	Logger   zerolog.Logger
	Metrics  *obs.QuoteMetrics
	Rates    RateSource
	Now      func() time.Time
	NewID    func() string
}

// Service computes and stores quotes.
type Service struct {
	weights  landed.WeightTable
	defaults landed.ShipmentParameters
	store    Store
	logger   zerolog.Logger
	metrics  *obs.QuoteMetrics
	rates    RateSource
	now      func() time.Time
	newID    func() string
}

// NewService validates the configured defaults and builds a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.Defaults.Validate(); err != nil {
		return nil, fmt.Errorf("default shipment parameters: %w", err)
	}
	if len(cfg.Weights.Entries) == 0 {
		cfg.Weights = landed.DefaultWeightTable()
	}
	if cfg.Store == nil {
		cfg.Store = NewMemoryStore(24*time.Hour, 0)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	return &Service{
		weights:  cfg.Weights,
		defaults: cfg.Defaults,
		store:    cfg.Store,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
		rates:    cfg.Rates,
		now:      cfg.Now,
		newID:    cfg.NewID,
	}, nil
}

// Weights returns the weight table used for classification.
func (s *Service) Weights() landed.WeightTable {
	return s.weights
}

// ExchangeRate returns the live rate, or ErrLiveRateUnavailable.
func (s *Service) ExchangeRate(ctx context.Context) (fxrate.Rate, error) {
	if s.rates == nil {
		return fxrate.Rate{}, fmt.Errorf("%w: no rate source configured", ErrLiveRateUnavailable)
	}
	rate, err := s.rates.Current(ctx)
	if err != nil {
		return fxrate.Rate{}, fmt.Errorf("%w: %v", ErrLiveRateUnavailable, err)
	}
	return rate, nil
}

// Params merges overrides onto the configured defaults.
func (s *Service) Params(o Overrides) landed.ShipmentParameters {
	p := s.defaults
	p.FixedFees = append([]landed.Charge(nil), s.defaults.FixedFees...)
	p.Margins = append([]decimal.Decimal(nil), s.defaults.Margins...)
	if o.ExchangeRate != nil {
		p.ExchangeRate = *o.ExchangeRate
	}
	if o.FreightSource != nil {
		p.FreightSource = *o.FreightSource
	}
	if o.CustomsDuty != nil {
		p.CustomsDuty = *o.CustomsDuty
	}
	if o.ImportVAT != nil {
		p.ImportVAT = *o.ImportVAT
	}
	if o.FixedFees != nil {
		p.FixedFees = append([]landed.Charge(nil), o.FixedFees...)
	}
	if o.DeclaredSubtotal != nil {
		declared := *o.DeclaredSubtotal
		p.DeclaredSubtotal = &declared
	}
	if len(o.Margins) > 0 {
		p.Margins = append([]decimal.Decimal(nil), o.Margins...)
	}
	if o.VATRate != nil {
		p.VATRate = *o.VATRate
	}
	if o.ReconcileTolerance != nil {
		p.ReconcileTolerance = *o.ReconcileTolerance
	}
	return p
}

// Create computes a quote and stores it. Engine errors are returned unchanged so callers
// can match landed.ErrInvalidParameters and landed.ErrDegenerateInput.
func (s *Service) Create(ctx context.Context, req Request) (*Quote, error) {
	ctx, span := otel.Tracer("mj-import-pricing/quote").Start(ctx, "quote.Create")
	defer span.End()
	span.SetAttributes(
		attribute.String("quote.source", req.Source),
		attribute.Int("quote.items", len(req.Items)),
		attribute.Int("quote.skipped_rows", len(req.Skipped)),
	)

	if req.Overrides.LiveExchangeRate && req.Overrides.ExchangeRate == nil {
		rate, err := s.ExchangeRate(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			s.logger.Warn().Err(err).Msg("quote_rejected")
			return nil, err
		}
		span.SetAttributes(attribute.String("quote.exchange_rate", rate.Value.String()), attribute.Bool("quote.exchange_rate_stale", rate.Stale))
		req.Overrides.ExchangeRate = &rate.Value
	}

	params := s.Params(req.Overrides)
	start := time.Now()
	res, err := landed.Compute(req.Items, s.weights, params)
	elapsed := time.Since(start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.observeFailure(err)
		s.logger.Warn().Err(err).Str("source", req.Source).Int("items", len(req.Items)).Msg("quote_rejected")
		return nil, err
	}
	if len(req.Skipped) > 0 {
		res.Warnings = append(res.Warnings, skippedWarning(req.Skipped))
	}

	q := &Quote{
		ID:        s.newID(),
		CreatedAt: s.now().UTC(),
		Source:    req.Source,
		Params:    params,
		Weights:   s.weights,
		Result:    *res,
	}
	span.SetAttributes(attribute.String("quote.id", q.ID), attribute.Int("quote.lines", len(q.Lines)))
	s.observeSuccess(q, len(req.Skipped), elapsed)

	if err := s.store.Put(ctx, q); err != nil {
		// the quote is still returned to the caller; only later retrieval is affected
		s.logger.Error().Err(err).Str("quote_id", q.ID).Msg("quote_store_failed")
	}
	obs.AnnotateQuote(ctx, q.ID, len(q.Lines))

	evt := s.logger.Info().
		Str("quote_id", q.ID).
		Str("source", q.Source).
		Int("lines", len(q.Lines)).
		Int("units", q.Summary.TotalUnits).
		Str("total_landed_cost", q.Summary.TotalLandedCost.StringFixed(0)).
		Int("warnings", len(q.Warnings))
	if q.Reconciliation != nil {
		evt = evt.Str("reconciliation", string(q.Reconciliation.Status))
	}
	evt.Msg("quote_created")
	return q, nil
}

// Get returns a stored quote or ErrQuoteNotFound.
func (s *Service) Get(ctx context.Context, id string) (*Quote, error) {
	q, ok, err := s.store.Get(ctx, strings.TrimSpace(id))
	if err != nil {
		return nil, fmt.Errorf("load quote %s: %w", id, err)
	}
	if !ok {
		return nil, ErrQuoteNotFound
	}
	obs.AnnotateQuote(ctx, q.ID, len(q.Lines))
	return q, nil
}

func skippedWarning(skipped []*invoice.MalformedRecordError) landed.Warning {
	lines := make([]string, 0, len(skipped))
	for _, rec := range skipped {
		lines = append(lines, fmt.Sprint(rec.Line))
	}
	return landed.Warning{
		Code:    landed.WarnSkippedRows,
		Message: fmt.Sprintf("%d invoice rows could not be read (lines %s)", len(skipped), strings.Join(lines, ", ")),
	}
}

func (s *Service) observeSuccess(q *Quote, skipped int, elapsed time.Duration) {
	if s.metrics == nil {
		return
	}
	s.metrics.Runs.WithLabelValues("ok").Inc()
	s.metrics.Lines.Add(float64(len(q.Lines)))
	s.metrics.Skipped.Add(float64(skipped))
	s.metrics.Duration.Observe(obs.DurationMillis(elapsed))
	for _, w := range q.Warnings {
		s.metrics.Warnings.WithLabelValues(string(w.Code)).Inc()
	}
}

func (s *Service) observeFailure(err error) {
	if s.metrics == nil {
		return
	}
	result := "error"
	switch {
	case errors.Is(err, landed.ErrInvalidParameters):
		result = "invalid"
	case errors.Is(err, landed.ErrDegenerateInput):
		result = "degenerate"
	}
	s.metrics.Runs.WithLabelValues(result).Inc()
}
