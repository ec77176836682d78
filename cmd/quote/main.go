package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/musicjungle-cl/MJ-import-pricing-light/internal/config"
	"github.com/musicjungle-cl/MJ-import-pricing-light/internal/fxrate"
	"github.com/musicjungle-cl/MJ-import-pricing-light/internal/invoice"
	"github.com/musicjungle-cl/MJ-import-pricing-light/internal/landed"
	"github.com/musicjungle-cl/MJ-import-pricing-light/internal/obs"
	"github.com/musicjungle-cl/MJ-import-pricing-light/internal/quote"
	"github.com/musicjungle-cl/MJ-import-pricing-light/internal/report"
	"github.com/musicjungle-cl/MJ-import-pricing-light/internal/resilience"
)

// quote computes landed costs and suggested prices for one supplier invoice.
// Exit code 0 = ok, 1 = the invoice could not be priced, 2 = usage error.
func main() {
	var (
		in         = flag.String("in", "-", "invoice file; - reads stdin")
		source     = flag.String("source", quote.SourcePaste, "input shape: paste, invoice-text or workbook")
		delimiter  = flag.String("delimiter", "", "paste column separator; tab when empty")
		sheet      = flag.String("sheet", "", "workbook sheet; first sheet when empty")
		headerRows = flag.Int("header-rows", 0, "workbook rows to skip before the data")
		margins    = flag.String("margins", "", "margin multipliers separated by ';', e.g. 1,5;1,7")
		liveRate   = flag.Bool("live-rate", false, "use the current exchange rate from FX_RATE_URL unless -rate is given")
		abort      = flag.Bool("abort", false, "fail on the first unreadable row")
		maxSkipped = flag.Int("max-skipped", 0, "fail when more rows are unreadable; 0 means no limit")
		xlsxOut    = flag.String("xlsx", "", "write the quote workbook to this path")
		pdfOut     = flag.String("pdf", "", "write the quote PDF to this path")
		jsonOut    = flag.Bool("json", false, "print the quote as JSON instead of a table")
		logLevel   = flag.String("log-level", "warn", "stderr log level")
		traceSpans = flag.Bool("trace", false, "log timing spans to stderr")
	)
	var overrides quote.Overrides
	flag.Var(amountFlag{&overrides.ExchangeRate}, "rate", "EUR to CLP exchange rate")
	flag.Var(amountFlag{&overrides.FreightSource}, "freight", "international freight in EUR")
	flag.Var(amountFlag{&overrides.CustomsDuty}, "duty", "customs duty in CLP")
	flag.Var(amountFlag{&overrides.ImportVAT}, "import-vat", "import VAT in CLP")
	flag.Var(amountFlag{&overrides.DeclaredSubtotal}, "subtotal", "invoice subtotal in EUR to reconcile against")
	flag.Var(amountFlag{&overrides.VATRate}, "vat-rate", "sales VAT rate, e.g. 0.19")
	flag.Var(amountFlag{&overrides.ReconcileTolerance}, "tolerance", "reconciliation tolerance in EUR")
	flag.Var(feeFlag{&overrides.FixedFees}, "fee", "fixed fee LABEL:AMOUNT in CLP; repeat for each fee, replaces the defaults")
	flag.Parse()

	logger := obs.NewLoggerTo(os.Stderr, "console", *logLevel).With().Str("component", "quote-cli").Logger()

	if *margins != "" {
		ms, err := invoice.ParseMargins(*margins)
		if err != nil {
			usage(err)
		}
		overrides.Margins = ms
	}

	overrides.LiveExchangeRate = *liveRate

	cfg, err := config.Load()
	if err != nil {
		usage(fmt.Errorf("configuration: %w", err))
	}
	var rates quote.RateSource
	if cfg.FXRateURL != "" {
		rates = fxrate.NewMindicador(fxrate.Config{
			URL:    cfg.FXRateURL,
			Client: resilience.Client{MaxAttempts: 3, BaseBackoff: 200 * time.Millisecond, Jitter: 0.2, Timeout: cfg.FXRequestTimeout},
			TTL:    cfg.FXRateTTL,
			Logger: logger,
		})
	}
	svc, err := quote.NewService(quote.ServiceConfig{
		Weights:  cfg.WeightTable,
		Defaults: cfg.ShipmentDefaults(),
		Store:    quote.NewMemoryStore(cfg.QuoteCacheTTL, 1),
		Logger:   logger,
		Rates:    rates,
	})
	if err != nil {
		usage(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *traceSpans {
		shutdown, err := obs.InitTracer(ctx, obs.TracingConfig{
			ServiceName: "mj-import-pricing-cli",
			Exporter:    "log",
			Environment: cfg.AppEnv,
			Logger:      logger.Level(zerolog.DebugLevel),
		})
		if err != nil {
			usage(err)
		}
		defer func() {
			_ = shutdown(context.Background())
		}()
	}

	raw, err := readInput(*in)
	if err != nil {
		usage(err)
	}

	src, err := buildSource(*source, raw, *delimiter, *sheet, *headerRows)
	if err != nil {
		usage(err)
	}
	batch, err := invoice.Collect(ctx, src, invoice.Policy{AbortOnError: *abort, MaxSkipped: *maxSkipped})
	if err != nil {
		fail(logger, err)
	}
	for _, rec := range batch.Skipped {
		logger.Warn().Int("line", rec.Line).Str("reason", rec.Reason).Str("raw", rec.Raw).Msg("row skipped")
	}
	if text, ok := src.(invoice.InvoiceTextSource); ok && overrides.DeclaredSubtotal == nil {
		if subtotal, found := text.DeclaredSubtotal(); found {
			overrides.DeclaredSubtotal = &subtotal
		}
	}

	q, err := svc.Create(ctx, quote.Request{Source: *source, Items: batch.Items, Overrides: overrides, Skipped: batch.Skipped})
	if err != nil {
		fail(logger, err)
	}

	doc := q.Document()
	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		err = enc.Encode(q)
	} else {
		err = report.WriteText(os.Stdout, doc)
	}
	if err != nil {
		fail(logger, err)
	}

	outputs := []struct {
		path  string
		write func(io.Writer, report.Document) error
	}{
		{*xlsxOut, report.WriteXLSX},
		{*pdfOut, report.WritePDF},
	}
	for _, out := range outputs {
		if out.path == "" {
			continue
		}
		if err := writeFile(out.path, doc, out.write); err != nil {
			fail(logger, err)
		}
		logger.Info().Str("path", out.path).Msg("report written")
	}
}

func buildSource(kind string, raw []byte, delimiter, sheet string, headerRows int) (invoice.Source, error) {
	switch kind {
	case quote.SourcePaste:
		src := invoice.PasteSource{Text: string(raw)}
		switch delimiter {
		case "", "tab", `\t`:
		default:
			r := []rune(delimiter)
			if len(r) != 1 {
				return nil, fmt.Errorf("delimiter must be a single character")
			}
			src.Delimiter = r[0]
		}
		return src, nil
	case quote.SourceInvoiceText:
		return invoice.InvoiceTextSource{Text: string(raw)}, nil
	case quote.SourceWorkbook:
		return invoice.WorkbookSource{Reader: bytes.NewReader(raw), Sheet: sheet, HeaderRows: headerRows}, nil
	default:
		return nil, fmt.Errorf("unknown source %q", kind)
	}
}

func readInput(path string) ([]byte, error) {
	if path == "-" || path == "" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func writeFile(path string, doc report.Document, write func(io.Writer, report.Document) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return write(f, doc)
}

func usage(err error) {
	fmt.Fprintf(os.Stderr, "quote: %v\n", err)
	flag.Usage()
	os.Exit(2)
}

func fail(logger zerolog.Logger, err error) {
	var (
		degenerate *landed.DegenerateInputError
		malformed  *invoice.MalformedRecordError
	)
	switch {
	case errors.As(err, &degenerate):
		logger.Error().Str("denominator", degenerate.Denominator).Msg("nothing to prorate against")
	case errors.As(err, &malformed):
		logger.Error().Int("line", malformed.Line).Str("raw", malformed.Raw).Msg(malformed.Reason)
	default:
		logger.Error().Err(err).Msg("quote failed")
	}
	os.Exit(1)
}

// amountFlag sets an optional decimal override; either decimal mark is accepted.
type amountFlag struct {
	dst **decimal.Decimal
}

func (f amountFlag) String() string {
	if f.dst == nil || *f.dst == nil {
		return ""
	}
	return (*f.dst).String()
}

func (f amountFlag) Set(s string) error {
	v, err := invoice.ParseDecimal(s)
	if err != nil {
		return err
	}
	*f.dst = &v
	return nil
}

type feeFlag struct {
	dst *[]landed.Charge
}

func (f feeFlag) String() string {
	if f.dst == nil {
		return ""
	}
	parts := make([]string, 0, len(*f.dst))
	for _, c := range *f.dst {
		parts = append(parts, c.Label+":"+c.Amount.String())
	}
	return strings.Join(parts, ",")
}

func (f feeFlag) Set(s string) error {
	i := strings.LastIndex(s, ":")
	if i <= 0 {
		return fmt.Errorf("fee must be LABEL:AMOUNT")
	}
	amount, err := invoice.ParseDecimal(s[i+1:])
	if err != nil {
		return err
	}
	*f.dst = append(*f.dst, landed.Charge{Label: strings.TrimSpace(s[:i]), Amount: amount})
	return nil
}
