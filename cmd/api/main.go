package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/musicjungle-cl/MJ-import-pricing-light/internal/common"
	"github.com/musicjungle-cl/MJ-import-pricing-light/internal/config"
	"github.com/musicjungle-cl/MJ-import-pricing-light/internal/fxrate"
	"github.com/musicjungle-cl/MJ-import-pricing-light/internal/health"
	"github.com/musicjungle-cl/MJ-import-pricing-light/internal/obs"
	"github.com/musicjungle-cl/MJ-import-pricing-light/internal/quote"
	"github.com/musicjungle-cl/MJ-import-pricing-light/internal/ratelimit"
	"github.com/musicjungle-cl/MJ-import-pricing-light/internal/resilience"
	"github.com/musicjungle-cl/MJ-import-pricing-light/internal/security"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "mj_pricing")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	var quoteMetrics *obs.QuoteMetrics
	if metricsEnabled {
		quoteMetrics = obs.MustRegisterQuoteMetrics(metricsNamespace, nil)
	}

	tracingEnabled := envBool("OBS_ENABLE_TRACING", true)
	if tracingEnabled {
		sampling := envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0)
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "mj-import-pricing",
			Endpoint:      envOrDefault("OBS_OTLP_ENDPOINT", ""),
			Exporter:      envOrDefault("OBS_TRACING_EXPORTER", "otlp"),
			SamplingRatio: sampling,
			Environment:   cfg.AppEnv,
			Logger:        logger,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	redisClient := connectRedis(cfg, metricsEnabled, logger)
	if redisClient != nil {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Error().Err(err).Msg("close redis")
			}
		}()
	}

	var store quote.Store
	if redisClient != nil {
		store = quote.NewCache(redisClient, "quote:", cfg.QuoteCacheTTL)
	} else {
		store = quote.NewMemoryStore(cfg.QuoteCacheTTL, envInt("QUOTE_MEMORY_MAX", 1000))
		logger.Warn().Msg("REDIS_URL not set; quotes are kept in process memory")
	}

	var rates quote.RateSource
	if cfg.FXRateURL != "" {
		rates = newRateSource(cfg, metricsNamespace, metricsEnabled, logger)
	}

	quoteService, err := quote.NewService(quote.ServiceConfig{
		Weights:  cfg.WeightTable,
		Defaults: cfg.ShipmentDefaults(),
		Store:    store,
		Logger:   logger.With().Str("component", "quote").Logger(),
		Metrics:  quoteMetrics,
		Rates:    rates,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise quote service")
	}
	quoteHandler := quote.NewHandler(quote.HandlerConfig{Service: quoteService, Logger: logger})

	limiter, err := ratelimit.NewStoreLimiter(redisClient, "mj:ratelimit", cfg.RateLimitPerMinute, time.Minute)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise rate limiter")
	}
	idem := common.Idem{R: redisClient, TTL: envDuration("IDEMPOTENCY_TTL", 24*time.Hour)}

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		buckets := obs.ParseBucketsCSV(envOrDefault("OBS_METRICS_BUCKETS_MS", ""))
		httpMetrics = obs.NewHTTPMetrics(metricsNamespace, buckets, nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if metricsEnabled && httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins(cfg),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "Idempotency-Key"},
		ExposedHeaders: []string{"Content-Disposition", "X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
		MaxAge:         300,
	}))
	r.Use(security.Headers{
		Enable:                envBool("SECURE_HEADERS_ENABLE", true),
		ContentSecurityPolicy: envOrDefault("SECURE_CSP", ""),
		CacheControl:          envOrDefault("SECURE_CACHE_CONTROL", ""),
		EnableHSTS:            envBool("SECURE_HSTS_ENABLE", false),
		HSTSMaxAge:            envInt("SECURE_HSTS_MAX_AGE", 31536000),
		HSTSIncludeSubdomains: envBool("SECURE_HSTS_INCLUDE_SUBDOMAINS", false),
		TrustForwardedProto:   envBool("SECURE_TRUST_FORWARDED_PROTO", false),
	}.Middleware)

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	if envBool("OBS_ENABLE_PPROF", false) {
		user := envOrDefault("SECURE_PPROF_BASIC_AUTH_USER", "")
		pass := envOrDefault("SECURE_PPROF_BASIC_AUTH_PASS", "")
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), user, pass))
	}

	probes := map[string]health.Probe{}
	if redisClient != nil {
		probes["redis"] = func(ctx context.Context, timeout time.Duration) error {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			return redisClient.Ping(ctx).Err()
		}
	}
	healthHandler := health.Handler{
		Probes:  probes,
		Timeout: envDurationMillis("HEALTH_READY_REDIS_TIMEOUT_MS", 300),
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Use(ratelimit.Handler{
			Limiter: limiter,
			OnError: func(err error) { logger.Error().Err(err).Msg("rate limiter") },
		}.Middleware)
		v.Use(security.BodyLimit{Max: int64(envInt("HTTP_MAX_BODY_BYTES", 2<<20))}.Middleware)
		v.Use(idem.Middleware)
		quoteHandler.Register(v)
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           otelhttp.NewHandler(r, "http.server", otelhttp.WithFilter(skipProbes)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
	}()

	<-ctx.Done()
	health.SetReady(false)
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), envDuration("HTTP_SHUTDOWN_TIMEOUT", 15*time.Second))
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown")
	}
}

// connectRedis returns nil when no REDIS_URL is configured.
func connectRedis(cfg *config.Config, metricsEnabled bool, logger zerolog.Logger) *redis.Client {
	if cfg.RedisURL == "" {
		return nil
	}
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	client := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if metricsEnabled {
		if err := redisotel.InstrumentMetrics(client); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}
	return client
}

func newRateSource(cfg *config.Config, namespace string, metricsEnabled bool, logger zerolog.Logger) *fxrate.Mindicador {
	fxLogger := logger.With().Str("component", "fxrate").Logger()
	var breakerMetrics *resilience.Metrics
	if metricsEnabled {
		breakerMetrics = resilience.NewMetrics(namespace, nil)
	}
	client := resilience.Client{
		HTTP: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		Breaker: resilience.NewBreaker(resilience.BreakerConfig{
			Target:       "fx-rate",
			MinRequests:  envInt("FX_BREAKER_MIN_REQUESTS", 3),
			FailureRatio: envFloat("FX_BREAKER_FAILURE_RATIO", 0.5),
			OpenFor:      envDuration("FX_BREAKER_OPEN_FOR", 30*time.Second),
			Metrics:      breakerMetrics,
			Logger:       fxLogger,
		}),
		BaseBackoff: envDuration("FX_RETRY_BASE", 200*time.Millisecond),
		MaxAttempts: envInt("FX_RETRY_MAX_ATTEMPTS", 3),
		Jitter:      0.2,
		Timeout:     cfg.FXRequestTimeout,
	}
	return fxrate.NewMindicador(fxrate.Config{
		URL:      cfg.FXRateURL,
		Client:   client,
		TTL:      cfg.FXRateTTL,
		MaxStale: cfg.FXRateMaxStale,
		Logger:   fxLogger,
	})
}

func skipProbes(r *http.Request) bool {
	return !strings.HasPrefix(r.URL.Path, "/health/") && r.URL.Path != "/metrics"
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return parsed
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := time.ParseDuration(strings.TrimSpace(val)); err == nil {
			return parsed
		}
	}
	return fallback
}

func envDurationMillis(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Millisecond
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	mux.Handle("/heap", pprof.Handler("heap"))
	mux.Handle("/goroutine", pprof.Handler("goroutine"))
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
