package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"github.com/shopspring/decimal"

	"github.com/musicjungle-cl/MJ-import-pricing-light/internal/invoice"
	"github.com/musicjungle-cl/MJ-import-pricing-light/internal/landed"
)

// Fee labels as printed by the customs agent.
const (
	EntryProcessFeeLabel = "Proceso de Entrada"
	AgentVATLabel        = "IVA Agente Aduana"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	RedisURL           string
	CORSAllowedOrigins []string
	QuoteCacheTTL      time.Duration
	RateLimitPerMinute int64

	// FXRateURL enables live exchange rate lookups when set.
	FXRateURL        string
	FXRateTTL        time.Duration
	FXRateMaxStale   time.Duration
	FXRequestTimeout time.Duration

	ExchangeRate       decimal.Decimal
	FreightSource      decimal.Decimal
	CustomsDuty        decimal.Decimal
	ImportVAT          decimal.Decimal
	EntryProcessFee    decimal.Decimal
	AgentVAT           decimal.Decimal
	Margins            []decimal.Decimal
	VATRate            decimal.Decimal
	ReconcileTolerance decimal.Decimal

	WeightTable landed.WeightTable
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		RedisURL:           strings.TrimSpace(k.String("REDIS_URL")),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		QuoteCacheTTL:      parseDuration(k.String("QUOTE_CACHE_TTL"), "24h"),
		FXRateURL:          strings.TrimSpace(k.String("FX_RATE_URL")),
		FXRateTTL:          parseDuration(k.String("FX_RATE_TTL"), "1h"),
		FXRateMaxStale:     parseDuration(k.String("FX_RATE_MAX_STALE"), "24h"),
		FXRequestTimeout:   parseDuration(k.String("FX_REQUEST_TIMEOUT"), "3s"),
	}

	limit, err := parseInt(k.String("RATE_LIMIT_PER_MINUTE"), 60)
	if err != nil {
		return nil, fmt.Errorf("RATE_LIMIT_PER_MINUTE: %w", err)
	}
	cfg.RateLimitPerMinute = limit

	decimals := []struct {
		key      string
		fallback string
		dst      *decimal.Decimal
	}{
		{"DEFAULT_EXCHANGE_RATE", "1000", &cfg.ExchangeRate},
		{"DEFAULT_FREIGHT_SOURCE", "50", &cfg.FreightSource},
		{"DEFAULT_CUSTOMS_DUTY", "130048", &cfg.CustomsDuty},
		{"DEFAULT_IMPORT_VAT", "436542", &cfg.ImportVAT},
		{"DEFAULT_ENTRY_PROCESS_FEE", "157863", &cfg.EntryProcessFee},
		{"DEFAULT_AGENT_VAT", "29994", &cfg.AgentVAT},
		{"VAT_RATE", "0.19", &cfg.VATRate},
		{"RECONCILE_TOLERANCE", "0.01", &cfg.ReconcileTolerance},
	}
	for _, d := range decimals {
		v, err := parseDecimal(k.String(d.key), d.fallback)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", d.key, err)
		}
		*d.dst = v
	}

	margins, err := invoice.ParseMargins(valueOrDefault(k.String("DEFAULT_MARGINS"), "1.5;1.7;1.9"))
	if err != nil {
		return nil, fmt.Errorf("DEFAULT_MARGINS: %w", err)
	}
	cfg.Margins = margins

	fallback, err := parseDecimal(k.String("FALLBACK_WEIGHT"), landed.DefaultFallbackWeight.String())
	if err != nil {
		return nil, fmt.Errorf("FALLBACK_WEIGHT: %w", err)
	}
	if raw := strings.TrimSpace(k.String("WEIGHT_TABLE")); raw != "" {
		table, err := landed.ParseWeightTable(raw, fallback)
		if err != nil {
			return nil, fmt.Errorf("WEIGHT_TABLE: %w", err)
		}
		cfg.WeightTable = table
	} else {
		table := landed.DefaultWeightTable()
		table.Fallback = fallback
		cfg.WeightTable = table
	}

	if err := cfg.ShipmentDefaults().Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ShipmentDefaults returns the shipment parameters used when a request leaves a field unset.
func (c *Config) ShipmentDefaults() landed.ShipmentParameters {
	return landed.ShipmentParameters{
		ExchangeRate:  c.ExchangeRate,
		FreightSource: c.FreightSource,
		CustomsDuty:   c.CustomsDuty,
		ImportVAT:     c.ImportVAT,
		FixedFees: []landed.Charge{
			{Label: EntryProcessFeeLabel, Amount: c.EntryProcessFee},
			{Label: AgentVATLabel, Amount: c.AgentVAT},
		},
		Margins:            append([]decimal.Decimal(nil), c.Margins...),
		VATRate:            c.VATRate,
		ReconcileTolerance: c.ReconcileTolerance,
	}
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseInt(value string, fallback int64) (int64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback, nil
	}
	return strconv.ParseInt(value, 10, 64)
}

func parseDecimal(value, fallback string) (decimal.Decimal, error) {
	return decimal.NewFromString(valueOrDefault(strings.TrimSpace(value), fallback))
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
