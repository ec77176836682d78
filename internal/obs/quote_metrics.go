package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// QuoteMetrics counts landed-cost computations.
type QuoteMetrics struct {
	Runs     *prometheus.CounterVec
	Lines    prometheus.Counter
	Warnings *prometheus.CounterVec
	Skipped  prometheus.Counter
	Duration prometheus.Histogram
}

var (
	quoteOnce    sync.Once
	quoteMetrics *QuoteMetrics
)

// NewQuoteMetrics registers the quote collectors on reg.
func NewQuoteMetrics(namespace string, reg prometheus.Registerer) *QuoteMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &QuoteMetrics{
		Runs: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quote_runs_total",
			Help:      "Landed-cost computations by outcome.",
		}, []string{"result"})),
		Lines: register(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quote_lines_total",
			Help:      "Invoice lines costed across all quotes.",
		})),
		Warnings: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quote_warnings_total",
			Help:      "Non-fatal findings attached to quotes, by code.",
		}, []string{"code"})),
		Skipped: register(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quote_skipped_rows_total",
			Help:      "Malformed invoice rows skipped by input adapters.",
		})),
		Duration: register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "quote_compute_duration_ms",
			Help:      "Time spent computing a quote in milliseconds.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100},
		})),
	}
}

// MustRegisterQuoteMetrics registers the process-wide quote collectors once and returns them.
func MustRegisterQuoteMetrics(namespace string, reg prometheus.Registerer) *QuoteMetrics {
	quoteOnce.Do(func() {
		quoteMetrics = NewQuoteMetrics(namespace, reg)
	})
	return quoteMetrics
}
