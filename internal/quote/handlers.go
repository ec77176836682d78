package quote

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/musicjungle-cl/MJ-import-pricing-light/internal/common"
	"github.com/musicjungle-cl/MJ-import-pricing-light/internal/invoice"
	"github.com/musicjungle-cl/MJ-import-pricing-light/internal/landed"
	"github.com/musicjungle-cl/MJ-import-pricing-light/internal/report"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// decimal.Decimal validates as a number so gt=0 and friends apply.
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Handler exposes the quote endpoints.
type Handler struct {
	service *Service
	logger  zerolog.Logger
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Service *Service
	Logger  zerolog.Logger
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{service: cfg.Service, logger: cfg.Logger}
}

// Register mounts the quote routes on r.
func (h *Handler) Register(r chi.Router) {
	r.Get("/weights", h.Weights)
	r.Get("/exchange-rate", h.ExchangeRate)
	r.Route("/quotes", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Post("/paste", h.CreateFromPaste)
		r.Post("/invoice-text", h.CreateFromInvoiceText)
		r.Post("/workbook", h.CreateFromWorkbook)
		r.Get("/{id}", h.Get)
		r.Get("/{id}/export", h.Export)
	})
}

type createRequest struct {
	Items        []invoice.Record `json:"items" validate:"required,min=1,max=2000,dive"`
	Params       Overrides        `json:"params"`
	AbortOnError bool             `json:"abortOnError"`
	MaxSkipped   int              `json:"maxSkipped" validate:"gte=0"`
}

// Create handles POST /api/v1/quotes with structured JSON items.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		h.writeError(w, common.BadRequest("invalid JSON body", err).WithDetails(map[string]any{"error": err.Error()}))
		return
	}
	if err := validate.Struct(req); err != nil {
		h.writeError(w, validationError(err))
		return
	}
	policy := invoice.Policy{AbortOnError: req.AbortOnError, MaxSkipped: req.MaxSkipped}
	batch, err := invoice.Collect(r.Context(), invoice.ItemsSource{Records: req.Items}, policy)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.create(w, r, Request{Source: SourceItems, Items: batch.Items, Overrides: req.Params, Skipped: batch.Skipped})
}

// CreateFromPaste handles POST /api/v1/quotes/paste. The body is the pasted table;
// parameters travel in the query string.
func (h *Handler) CreateFromPaste(w http.ResponseWriter, r *http.Request) {
	body, opts, ok := h.readTextRequest(w, r)
	if !ok {
		return
	}
	src := invoice.PasteSource{Text: body}
	switch d := r.URL.Query().Get("delimiter"); d {
	case "", "tab", `\t`:
	case "semicolon":
		src.Delimiter = ';'
	case "comma":
		src.Delimiter = ','
	default:
		if len([]rune(d)) != 1 {
			h.writeError(w, common.BadRequest("delimiter must be a single character", nil))
			return
		}
		src.Delimiter = []rune(d)[0]
	}
	batch, err := invoice.Collect(r.Context(), src, opts.policy)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.create(w, r, Request{Source: SourcePaste, Items: batch.Items, Overrides: opts.overrides, Skipped: batch.Skipped})
}

// CreateFromInvoiceText handles POST /api/v1/quotes/invoice-text with the text layer of a
// supplier PDF. The invoice's own subtotal is reconciled unless the query overrides it.
func (h *Handler) CreateFromInvoiceText(w http.ResponseWriter, r *http.Request) {
	body, opts, ok := h.readTextRequest(w, r)
	if !ok {
		return
	}
	src := invoice.InvoiceTextSource{Text: body}
	batch, err := invoice.Collect(r.Context(), src, opts.policy)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if opts.overrides.DeclaredSubtotal == nil {
		if subtotal, found := src.DeclaredSubtotal(); found {
			opts.overrides.DeclaredSubtotal = &subtotal
		}
	}
	h.create(w, r, Request{Source: SourceInvoiceText, Items: batch.Items, Overrides: opts.overrides, Skipped: batch.Skipped})
}

// CreateFromWorkbook handles POST /api/v1/quotes/workbook with a raw .xlsx body.
// sheet and headerRows select the data; other parameters travel in the query string.
func (h *Handler) CreateFromWorkbook(w http.ResponseWriter, r *http.Request) {
	ct := strings.ToLower(r.Header.Get("Content-Type"))
	if ct != "" && ct != xlsxContentType && !strings.HasPrefix(ct, "application/octet-stream") {
		common.JSONError(w, http.StatusUnsupportedMediaType, common.CodeUnsupported, "body must be an .xlsx workbook", nil)
		return
	}
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		h.writeError(w, common.BadRequest("could not read body", err))
		return
	}
	if len(raw) == 0 {
		h.writeError(w, common.BadRequest("body is empty", nil))
		return
	}
	opts, err := parseTextOptions(r.URL.Query())
	if err != nil {
		h.writeError(w, err)
		return
	}
	src := invoice.WorkbookSource{Reader: bytes.NewReader(raw), Sheet: r.URL.Query().Get("sheet")}
	if v := r.URL.Query().Get("headerRows"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			h.writeError(w, common.BadRequest("headerRows must be a non-negative integer", err))
			return
		}
		src.HeaderRows = n
	}
	batch, err := invoice.Collect(r.Context(), src, opts.policy)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.create(w, r, Request{Source: SourceWorkbook, Items: batch.Items, Overrides: opts.overrides, Skipped: batch.Skipped})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request, req Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "quote service not configured", nil)
		return
	}
	q, err := h.service.Create(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.Header().Set("Location", "/api/v1/quotes/"+q.ID)
	common.Data(w, http.StatusCreated, q)
}

// Get handles GET /api/v1/quotes/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "quote service not configured", nil)
		return
	}
	q, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, q)
}

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type exportFormat struct {
	contentType string
	ext         string
	write       func(io.Writer, report.Document) error
}

var exportFormats = map[string]exportFormat{
	"xlsx": {xlsxContentType, "xlsx", report.WriteXLSX},
	"pdf":  {"application/pdf", "pdf", report.WritePDF},
	"txt":  {"text/plain; charset=utf-8", "txt", report.WriteText},
}

// Export handles GET /api/v1/quotes/{id}/export?format=xlsx|pdf|txt.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "quote service not configured", nil)
		return
	}
	name := strings.ToLower(r.URL.Query().Get("format"))
	if name == "" {
		name = "xlsx"
	}
	format, ok := exportFormats[name]
	if !ok {
		h.writeError(w, common.BadRequest("format must be one of xlsx, pdf, txt", nil))
		return
	}
	q, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	var buf bytes.Buffer
	if err := format.write(&buf, q.Document()); err != nil {
		h.writeError(w, fmt.Errorf("render %s: %w", name, err))
		return
	}
	w.Header().Set("Content-Type", format.contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "cotizacion-"+q.ID+"."+format.ext))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// Weights handles GET /api/v1/weights.
func (h *Handler) Weights(w http.ResponseWriter, _ *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "quote service not configured", nil)
		return
	}
	common.Data(w, http.StatusOK, h.service.Weights())
}

// ExchangeRate handles GET /api/v1/exchange-rate.
func (h *Handler) ExchangeRate(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "quote service not configured", nil)
		return
	}
	rate, err := h.service.ExchangeRate(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, rate)
}

type textOptions struct {
	overrides Overrides
	policy    invoice.Policy
}

func (h *Handler) readTextRequest(w http.ResponseWriter, r *http.Request) (string, textOptions, bool) {
	ct := strings.ToLower(r.Header.Get("Content-Type"))
	if ct != "" && !strings.HasPrefix(ct, "text/plain") {
		common.JSONError(w, http.StatusUnsupportedMediaType, common.CodeUnsupported, "body must be text/plain", nil)
		return "", textOptions{}, false
	}
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		h.writeError(w, common.BadRequest("could not read body", err))
		return "", textOptions{}, false
	}
	if strings.TrimSpace(string(raw)) == "" {
		h.writeError(w, common.BadRequest("body is empty", nil))
		return "", textOptions{}, false
	}
	opts, err := parseTextOptions(r.URL.Query())
	if err != nil {
		h.writeError(w, err)
		return "", textOptions{}, false
	}
	return string(raw), opts, true
}

// parseTextOptions reads parameter overrides and the row policy from a query string.
// Amounts accept either decimal mark; margins follow invoice.ParseMargins.
func parseTextOptions(q url.Values) (textOptions, error) {
	var opts textOptions
	amounts := []struct {
		key string
		dst **decimal.Decimal
	}{
		{"exchangeRate", &opts.overrides.ExchangeRate},
		{"freight", &opts.overrides.FreightSource},
		{"customsDuty", &opts.overrides.CustomsDuty},
		{"importVat", &opts.overrides.ImportVAT},
		{"declaredSubtotal", &opts.overrides.DeclaredSubtotal},
		{"vatRate", &opts.overrides.VATRate},
		{"tolerance", &opts.overrides.ReconcileTolerance},
	}
	for _, a := range amounts {
		raw := strings.TrimSpace(q.Get(a.key))
		if raw == "" {
			continue
		}
		v, err := invoice.ParseDecimal(raw)
		if err != nil {
			return opts, common.BadRequest("invalid "+a.key, err).WithDetails(map[string]string{"field": a.key, "value": raw})
		}
		*a.dst = &v
	}

	if raw := strings.TrimSpace(q.Get("margins")); raw != "" {
		ms, err := invoice.ParseMargins(raw)
		if err != nil {
			return opts, common.BadRequest("invalid margins", err).WithDetails(map[string]string{"field": "margins", "value": raw})
		}
		opts.overrides.Margins = ms
	}

	for _, raw := range q["fee"] {
		label, amount, found := strings.Cut(raw, ":")
		if !found || strings.TrimSpace(label) == "" {
			return opts, common.BadRequest("fee must be LABEL:AMOUNT", nil).WithDetails(map[string]string{"field": "fee", "value": raw})
		}
		v, err := invoice.ParseDecimal(amount)
		if err != nil {
			return opts, common.BadRequest("invalid fee amount", err).WithDetails(map[string]string{"field": "fee", "value": raw})
		}
		opts.overrides.FixedFees = append(opts.overrides.FixedFees, landed.Charge{Label: strings.TrimSpace(label), Amount: v})
	}

	if raw := q.Get("liveRate"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return opts, common.BadRequest("liveRate must be a boolean", err)
		}
		opts.overrides.LiveExchangeRate = b
	}
	if raw := q.Get("abortOnError"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return opts, common.BadRequest("abortOnError must be a boolean", err)
		}
		opts.policy.AbortOnError = b
	}
	if raw := q.Get("maxSkipped"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return opts, common.BadRequest("maxSkipped must be a non-negative integer", err)
		}
		opts.policy.MaxSkipped = n
	}

	if err := validate.Struct(opts.overrides); err != nil {
		return opts, validationError(err)
	}
	return opts, nil
}

func validationError(err error) *common.AppError {
	fields := map[string]string{}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			fields[fieldPath(fe.Namespace())] = fe.Tag()
		}
	}
	return common.NewAppError(common.CodeValidation, "request validation failed", http.StatusUnprocessableEntity, err).WithDetails(fields)
}

// fieldPath drops the root struct name from a validator namespace.
func fieldPath(ns string) string {
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var (
		appErr     *common.AppError
		degenerate *landed.DegenerateInputError
		malformed  *invoice.MalformedRecordError
	)
	switch {
	case errors.As(err, &appErr):
	case errors.Is(err, ErrQuoteNotFound):
		appErr = common.NewAppError(common.CodeNotFound, "quote not found", http.StatusNotFound, err)
	case errors.As(err, &degenerate):
		appErr = common.NewAppError("DEGENERATE_INPUT", err.Error(), http.StatusUnprocessableEntity, err).
			WithDetails(map[string]string{"denominator": degenerate.Denominator})
	case errors.Is(err, landed.ErrInvalidParameters):
		appErr = common.NewAppError(common.CodeValidation, err.Error(), http.StatusUnprocessableEntity, err)
	case errors.Is(err, ErrLiveRateUnavailable):
		h.logger.Warn().Err(err).Msg("exchange_rate_unavailable")
		appErr = common.NewAppError("RATE_SOURCE_UNAVAILABLE", "live exchange rate unavailable", http.StatusServiceUnavailable, err)
	case errors.Is(err, invoice.ErrUnreadableWorkbook):
		appErr = common.BadRequest(err.Error(), err)
	case errors.Is(err, invoice.ErrTooManyMalformed):
		appErr = common.NewAppError("MALFORMED_INVOICE", err.Error(), http.StatusUnprocessableEntity, err)
	case errors.As(err, &malformed):
		appErr = common.NewAppError("MALFORMED_INVOICE", "invoice row could not be read", http.StatusUnprocessableEntity, err).
			WithDetails(map[string]any{"line": malformed.Line, "reason": malformed.Reason, "raw": malformed.Raw})
	default:
		h.logger.Error().Err(err).Msg("quote_handler_failed")
		common.WriteError(w, err)
		return
	}
	common.WriteError(w, appErr)
}
