package obs_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/musicjungle-cl/MJ-import-pricing-light/internal/obs"
)

func withSpanRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(prev)
	})
	return recorder
}

func quoteRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(obs.TracingMiddleware)
	r.Use(obs.RoutePatternMiddleware)
	r.Get("/api/v1/quotes/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	return r
}

func TestTracingMiddlewareStartsSpan(t *testing.T) {
	recorder := withSpanRecorder(t)

	rr := httptest.NewRecorder()
	quoteRouter().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/quotes/abc", nil))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	require.Equal(t, "GET /api/v1/quotes/{id}", spans[0].Name())
	require.Equal(t, "Error", spans[0].Status().Code.String())
}

func TestTracingMiddlewareRenamesOuterSpan(t *testing.T) {
	recorder := withSpanRecorder(t)

	handler := otelhttp.NewHandler(quoteRouter(), "http.server")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/quotes/abc", nil))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	require.Equal(t, "GET /api/v1/quotes/{id}", spans[0].Name())
}

func TestInitTracerLogExporter(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	var buf bytes.Buffer
	logger := obs.NewLoggerTo(&buf, "json", "debug")
	shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
		ServiceName: "quote-test",
		Exporter:    "log",
		Logger:      logger,
	})
	require.NoError(t, err)

	_, span := otel.Tracer("test").Start(context.Background(), "quote.Create")
	span.SetAttributes(attribute.Int("quote.lines", 3))
	span.End()
	require.NoError(t, shutdown(context.Background()))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "span", entry["message"])
	require.Equal(t, "quote.Create", entry["span"])
	require.Equal(t, "3", entry["quote.lines"])
}

func TestInitTracerRejectsUnknownExporter(t *testing.T) {
	_, err := obs.InitTracer(context.Background(), obs.TracingConfig{Exporter: "zipkin"})
	require.Error(t, err)
}
