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
	"github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	redis "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/skyfly82/skybrokersystem-v2-sub003/internal/app"
	"github.com/skyfly82/skybrokersystem-v2-sub003/internal/audit"
	"github.com/skyfly82/skybrokersystem-v2-sub003/internal/auth"
	"github.com/skyfly82/skybrokersystem-v2-sub003/internal/common"
	"github.com/skyfly82/skybrokersystem-v2-sub003/internal/config"
	"github.com/skyfly82/skybrokersystem-v2-sub003/internal/contract"
	"github.com/skyfly82/skybrokersystem-v2-sub003/internal/events"
	"github.com/skyfly82/skybrokersystem-v2-sub003/internal/health"
	"github.com/skyfly82/skybrokersystem-v2-sub003/internal/obs"
	"github.com/skyfly82/skybrokersystem-v2-sub003/internal/promotion"
	"github.com/skyfly82/skybrokersystem-v2-sub003/internal/quote"
	"github.com/skyfly82/skybrokersystem-v2-sub003/internal/ratelimit"
	"github.com/skyfly82/skybrokersystem-v2-sub003/internal/rating"
	"github.com/skyfly82/skybrokersystem-v2-sub003/internal/resilience"
	"github.com/skyfly82/skybrokersystem-v2-sub003/internal/security"
	"github.com/skyfly82/skybrokersystem-v2-sub003/internal/store"
	"github.com/skyfly82/skybrokersystem-v2-sub003/internal/volume"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(cfg.LogFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "skybroker")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	tracingEnabled := envBool("OBS_ENABLE_TRACING", true)
	if tracingEnabled {
		sampling := envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0)
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "rating-api",
			Endpoint:      cfg.OTLPEndpoint,
			Exporter:      envOrDefault("OBS_TRACING_EXPORTER", "otlp"),
			SamplingRatio: sampling,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				ctx := context.Background()
				if err := shutdown(ctx); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	connectCtx, cancelConnect := context.WithTimeout(ctx, 5*time.Second)
	defer cancelConnect()

	pool, err := store.NewPool(connectCtx, cfg.DatabaseURL, "rating-api")
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	if envBool("RUN_MIGRATIONS", true) {
		if err := app.Migrate(cfg.DatabaseURL, envOrDefault("MIGRATIONS_URL", "file://db/migrations")); err != nil {
			logger.Fatal().Err(err).Msg("apply migrations")
		}
	}

	redisClient, err := app.InitRedis(connectCtx, cfg.RedisURL, metricsEnabled, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect redis")
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()

	asynqOpt, err := app.AsynqRedisOpt(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url for asynq")
	}
	taskClient := asynq.NewClient(asynqOpt)
	defer func() {
		if err := taskClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close asynq client")
		}
	}()

	db := store.New(pool)

	volumeSvc := &volume.Service{
		Q: db,
		R: redisClient,
		Breaker: resilience.NewBreaker(
			envInt("VOLUME_BREAKER_MIN_REQUESTS", 5),
			envFloat("VOLUME_BREAKER_FAILURE_RATIO", 0.6),
			envDurationMillis("VOLUME_BREAKER_OPEN_MS", 30000),
		),
		TTL: cfg.VolumeCacheTTL,
		Log: logger.With().Str("component", "volume").Logger(),
	}

	quoteSvc := &quote.Service{
		DB:          db,
		R:           redisClient,
		Volume:      volumeSvc,
		Engine:      &rating.Engine{},
		SnapshotTTL: cfg.SnapshotCacheTTL,
		Log:         logger.With().Str("component", "quote").Logger(),
	}
	quoteHandler := &quote.Handler{Svc: quoteSvc, V: validator.New()}

	bus := &events.Bus{}
	bus.Subscribe(events.NotifierFunc(func(ctx context.Context, ev events.Event) error {
		dropped, err := quoteSvc.InvalidateSnapshots(ctx)
		if err != nil {
			return err
		}
		logger.Info().Str("topic", ev.Topic).Int64("dropped", dropped).Msg("pricing snapshots invalidated")
		return nil
	}))

	auditSvc := &audit.Service{
		Tasks: taskClient,
		Log:   logger.With().Str("component", "audit").Logger(),
	}

	promoSvc := &promotion.Service{DB: db, Events: bus}
	promoHandler := &promotion.Handler{Svc: promoSvc}

	contractSvc := &contract.Service{
		DB:     db,
		Audit:  auditSvc,
		Events: bus,
		Log:    logger.With().Str("component", "contract").Logger(),
	}
	contractHandler := &contract.Handler{Svc: contractSvc, Audits: db}

	authMw := &auth.Middleware{
		Keys: &auth.KeyService{DB: db},
		Admin: &auth.AdminVerifier{
			Secret:    []byte(cfg.AdminJWTSecret),
			Issuer:    envOrDefault("ADMIN_JWT_ISSUER", "skybroker"),
			Audience:  envOrDefault("ADMIN_JWT_AUDIENCE", "rating-api"),
			ClockSkew: envDurationMillis("ADMIN_JWT_SKEW_MS", 30000),
		},
	}

	idem := common.Idem{R: redisClient, TTL: cfg.IdempotencyTTL}

	quoteLimit, err := ratelimit.New(redisClient, cfg.QuoteRateLimit)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise rate limiter")
	}

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
	r.Use(security.Headers{
		Enable:                envBool("SECURE_HEADERS_ENABLED", true),
		EnableHSTS:            envBool("SECURE_HSTS_ENABLED", false),
		HSTSMaxAge:            envInt("SECURE_HSTS_MAX_AGE", 31536000),
		HSTSIncludeSubdomains: envBool("SECURE_HSTS_INCLUDE_SUBDOMAINS", true),
	}.Middleware)
	r.Use(security.BodyLimit{Max: cfg.MaxBodyBytes}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	if envBool("OBS_ENABLE_PPROF", false) {
		user := envOrDefault("SECURE_PPROF_BASIC_AUTH_USER", "")
		pass := envOrDefault("SECURE_PPROF_BASIC_AUTH_PASS", "")
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), user, pass))
	}

	healthHandler := health.Handler{
		Checker:      readinessChecker{db: pool, redis: redisClient},
		DBTimeout:    envDurationMillis("HEALTH_READY_DB_TIMEOUT_MS", 500),
		RedisTimeout: envDurationMillis("HEALTH_READY_REDIS_TIMEOUT_MS", 300),
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Group(func(public chi.Router) {
			public.Use(authMw.Authenticate)
			public.Use(quoteLimit)
			public.Post("/quotes", quoteHandler.Compute)
			public.Post("/quotes/compare", quoteHandler.Compare)
		})

		v.With(authMw.RequireCustomer, quoteLimit, idem.Middleware).
			Post("/quotes/commit", quoteHandler.Commit)

		v.Route("/admin", func(admin chi.Router) {
			admin.Use(authMw.RequireAdmin)

			admin.Post("/promotions", promoHandler.Create)
			admin.Get("/promotions", promoHandler.List)
			admin.Get("/promotions/{id}", promoHandler.Get)
			admin.Put("/promotions/{id}", promoHandler.Update)

			admin.Post("/customer-pricing", contractHandler.Create)
			admin.Get("/customer-pricing", contractHandler.List)
			admin.Get("/customer-pricing/{id}", contractHandler.Get)
			admin.Put("/customer-pricing/{id}", contractHandler.Update)
			admin.Get("/customer-pricing/{id}/audit", contractHandler.AuditTrail)

			admin.Post("/cache/invalidate", func(w http.ResponseWriter, r *http.Request) {
				dropped, err := quoteSvc.InvalidateSnapshots(r.Context())
				if err != nil {
					common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cache invalidation failed", nil)
					return
				}
				common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"dropped": dropped}})
			})
		})
	})

	var rootHandler http.Handler = r
	if tracingEnabled {
		rootHandler = otelhttp.NewHandler(rootHandler, "rating-api")
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           rootHandler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
	}()

	<-ctx.Done()
	health.SetReady(false)
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown")
	}
	logger.Info().Msg("server stopped")
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

type readinessChecker struct {
	db    *pgxpool.Pool
	redis *redis.Client
}

func (c readinessChecker) PingDB(ctx context.Context, timeout time.Duration) error {
	if c.db == nil {
		return errors.New("db not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.db.Ping(ctx)
}

func (c readinessChecker) PingRedis(ctx context.Context, timeout time.Duration) error {
	if c.redis == nil {
		return errors.New("redis not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.redis.Ping(ctx).Err()
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
	mux.Handle("/allocs", pprof.Handler("allocs"))
	mux.Handle("/block", pprof.Handler("block"))
	mux.Handle("/goroutine", pprof.Handler("goroutine"))
	mux.Handle("/heap", pprof.Handler("heap"))
	mux.Handle("/mutex", pprof.Handler("mutex"))
	mux.Handle("/threadcreate", pprof.Handler("threadcreate"))
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
