package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"food-diary/internal/config"
	pgRepo "food-diary/internal/infra/adapter/persistence/postgres"
	"food-diary/internal/infra/db"
	"food-diary/internal/infra/worker"
	"food-diary/internal/observability/logging"
	"food-diary/internal/observability/metrics"
	"food-diary/internal/observability/tracing"
	"food-diary/internal/resilience/circuitbreaker"
	entryUC "food-diary/internal/usecase/entry"
	pkgconfig "food-diary/pkg/config"
	"food-diary/pkg/ratelimit"
	"food-diary/pkg/security/gate"
	"food-diary/pkg/security/headers"

	hhttp "food-diary/internal/handler/http"
	hauth "food-diary/internal/handler/http/auth"
	hentry "food-diary/internal/handler/http/entry"
	"food-diary/internal/handler/http/middleware"
	"food-diary/internal/handler/http/requestid"
	hupload "food-diary/internal/handler/http/upload"
)

func main() {
	configPath := flag.String("config", os.Getenv("SECURITY_CONFIG"), "path to the security YAML file")
	flag.Parse()

	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	logger := logging.NewLogger()
	slog.SetDefault(logger)

	if err := run(logger, *configPath); err != nil {
		logger.Error("server exited with error", slog.Any("error", err))
		os.Exit(1)
	}
}

// components holds what the server needs at runtime and at shutdown.
type components struct {
	handler http.Handler
	sweeper *worker.Sweeper
	cleanup []func()
}

func run(logger *slog.Logger, configPath string) error {
	secCfg, err := config.LoadSecurityConfig(configPath)
	if err != nil {
		return fmt.Errorf("load security config: %w", err)
	}

	rlCfg, err := pkgconfig.LoadRateLimitConfig()
	if err != nil {
		return fmt.Errorf("load rate limit config: %w", err)
	}

	_, shutdownTracing := tracing.NewProvider(tracing.Config{
		SampleRatio: pkgconfig.GetEnvFloat("TRACE_SAMPLE_RATIO", 0.1),
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := initDatabase(ctx, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", slog.Any("error", err))
		}
	}()

	comps, err := setupServer(logger, database, secCfg, rlCfg, getVersion())
	if err != nil {
		return err
	}
	defer func() {
		for _, fn := range comps.cleanup {
			fn()
		}
	}()

	addr := ":" + pkgconfig.GetEnvString("PORT", "8080")
	srv := &http.Server{
		Addr:              addr,
		Handler:           comps.handler,
		ReadHeaderTimeout: 10 * time.Second, // Slowloris
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("server starting", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return comps.sweeper.Start(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", slog.Any("error", err))
		}
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn("tracer shutdown failed", slog.Any("error", err))
		}
		logger.Info("server stopped")
		return nil
	})

	return g.Wait()
}

// initDatabase opens the database connection and applies the schema.
func initDatabase(ctx context.Context, logger *slog.Logger) (*sql.DB, error) {
	database, err := db.Open(ctx, logger)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.MigrateUp(ctx, database); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return database, nil
}

// getVersion returns the application version from environment or default.
func getVersion() string {
	return pkgconfig.GetEnvString("VERSION", "dev")
}

// newStore builds the rate limit store for rlCfg. The Redis store is wrapped
// in a circuit breaker so an unreachable Redis fails fast; the gate treats
// that as a rejection.
func newStore(logger *slog.Logger, rlCfg *ratelimit.Config) (ratelimit.Store, *hhttp.RateLimitProbe, func()) {
	probe := &hhttp.RateLimitProbe{Backend: rlCfg.Backend}

	if rlCfg.Backend != ratelimit.BackendRedis {
		store := ratelimit.NewInMemoryStore(ratelimit.InMemoryStoreConfig{MaxKeys: rlCfg.MaxActiveKeys})
		logger.Info("rate limit store: in-memory", slog.Int("max_keys", rlCfg.MaxActiveKeys))
		return store, probe, func() {}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     rlCfg.RedisAddr,
		Password: rlCfg.RedisPassword,
		DB:       rlCfg.RedisDB,
	})
	redisStore := ratelimit.NewRedisStore(client, ratelimit.RedisStoreConfig{Prefix: rlCfg.RedisPrefix})

	cbCfg := circuitbreaker.RateLimitStoreConfig()
	cbCfg.FailureThreshold = rlCfg.BreakerFailureThreshold
	cbCfg.MinRequests = rlCfg.BreakerMinRequests
	cbCfg.Timeout = rlCfg.BreakerTimeout
	cb := circuitbreaker.New(cbCfg)

	probe.Pinger = redisStore
	probe.Breaker = cb

	closeFn := func() {
		if err := client.Close(); err != nil {
			logger.Warn("failed to close redis client", slog.Any("error", err))
		}
	}
	logger.Info("rate limit store: redis",
		slog.String("addr", rlCfg.RedisAddr),
		slog.String("prefix", rlCfg.RedisPrefix))
	return circuitbreaker.WrapStore(redisStore, cb), probe, closeFn
}

// setupServer wires the stores, the gate and the routes.
func setupServer(
	logger *slog.Logger,
	database *sql.DB,
	secCfg *config.SecurityConfig,
	rlCfg *ratelimit.Config,
	version string,
) (*components, error) {
	store, probe, closeStore := newStore(logger, rlCfg)

	promMetrics := ratelimit.NewPrometheusMetrics()
	gateLimiter := ratelimit.NewFixedWindowLimiter(store,
		ratelimit.WithMetrics(promMetrics),
		ratelimit.WithLimiterType("gate"),
		ratelimit.WithKeyPrefix(gate.DefaultKeyPrefix))
	uploadLimiter := ratelimit.NewFixedWindowLimiter(store,
		ratelimit.WithMetrics(promMetrics),
		ratelimit.WithLimiterType("upload"),
		ratelimit.WithKeyPrefix(hupload.KeyPrefix))

	gateCfg := secCfg.GateConfig()
	uploadCfg := hupload.Config{
		Limit:            secCfg.Security.Upload.Limit,
		Window:           secCfg.Security.Upload.Window,
		SignatureTimeout: secCfg.Security.Upload.SignatureTimeout,
	}
	if !rlCfg.Enabled {
		logger.Warn("rate limiting is DISABLED - not recommended for production")
		gateCfg.Limit = math.MaxInt32
		uploadCfg.Limit = math.MaxInt32
	}

	proxyCfg, err := middleware.ParseTrustedProxies(secCfg.Security.TrustedProxies.Enabled, secCfg.Security.TrustedProxies.CIDRs)
	if err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}
	var ipExtractor middleware.IPExtractor = &middleware.RemoteAddrExtractor{}
	if proxyCfg.Enabled {
		ipExtractor = middleware.NewTrustedProxyExtractor(*proxyCfg, logger)
		logger.Info("client IP: trusted proxy mode enabled",
			slog.Int("trusted_proxies_count", len(proxyCfg.AllowedCIDRs)))
	} else {
		logger.Info("client IP: using RemoteAddr, proxy headers ignored")
	}

	gateOpts := []gate.Option{
		gate.WithKeyFunc(middleware.GateKey(ipExtractor)),
		gate.WithRecorder(metrics.GateRecorder{}),
		gate.WithLogger(logger),
	}
	var burst *ratelimit.BurstGuard
	if b := secCfg.Security.Gate.Burst; b.Enabled {
		burst = ratelimit.NewBurstGuard(b.RPS, b.Size)
		gateOpts = append(gateOpts, gate.WithBurstGuard(burst))
	}
	securityGate, err := gate.New(gateCfg, gateLimiter, gateOpts...)
	if err != nil {
		return nil, err
	}

	policy, err := secCfg.Policy()
	if err != nil {
		return nil, err
	}
	headerBuilder, err := headers.NewBuilder(policy)
	if err != nil {
		return nil, fmt.Errorf("security headers: %w", err)
	}
	headerSet := headerBuilder.Build()

	secret, err := secCfg.JWTSecret()
	if err != nil {
		return nil, err
	}
	verifier, err := hauth.NewVerifier(secret, secCfg.Security.JWT.Issuer)
	if err != nil {
		return nil, fmt.Errorf("jwt verifier: %w", err)
	}

	entryRepo := pgRepo.NewEntryRepo(circuitbreaker.NewDBCircuitBreaker(database))
	entrySvc := &entryUC.Service{Repo: entryRepo}

	authz := func(next http.Handler) http.Handler {
		return verifier.Middleware(hhttp.RecordUser(next))
	}
	jsonAuthz := func(next http.Handler) http.Handler {
		return authz(hhttp.LimitRequestBody(1 << 20)(next))
	}

	apiMux := http.NewServeMux()
	hentry.Register(apiMux, entrySvc, jsonAuthz)
	hupload.Register(apiMux, &hupload.Handler{
		Limiter: uploadLimiter,
		Store:   hupload.LogStore{Logger: logger},
		Entries: entrySvc,
		Config:  uploadCfg,
		Logger:  logger,
	}, authz)

	allowList := secCfg.AllowList()
	api := hhttp.Chain(apiMux,
		middleware.CORS(middleware.DefaultCORSConfig(allowList, logger)),
		middleware.LoopbackBypass(secCfg.Security.Origins.Bypass),
		securityGate.Middleware,
	)
	logger.Info("security gate enabled",
		slog.Any("allowed_origins", allowList.GetAllowedOrigins()),
		slog.Int("limit", gateCfg.Limit),
		slog.Duration("window", gateCfg.Window),
		slog.Bool("require_token", gateCfg.RequireToken),
		slog.Bool("csp_report_only", secCfg.Security.CSP.ReportOnly))

	rootMux := http.NewServeMux()
	rootMux.Handle("/health", &hhttp.HealthHandler{
		DB:            database,
		Version:       version,
		RateLimit:     probe,
		CSPReportOnly: secCfg.Security.CSP.ReportOnly,
		Logger:        logger,
	})
	rootMux.Handle("/ready", &hhttp.ReadyHandler{DB: database, RateLimit: probe.Pinger})
	rootMux.Handle("/live", &hhttp.LiveHandler{})
	rootMux.Handle("/metrics", hhttp.MetricsHandler(promMetrics.Registry()))
	rootMux.Handle("/api/", api)

	handler := hhttp.Chain(rootMux,
		hhttp.Recover(logger),
		requestid.Middleware,
		tracing.Middleware,
		hhttp.Logging(logger),
		hhttp.MetricsMiddleware,
		hhttp.InputValidation(hhttp.DefaultInputLimits()),
		// Outside the gate and the timeout so rejections and 504s carry them too.
		headers.Middleware(headerSet),
		hhttp.Timeout(pkgconfig.GetEnvDuration("REQUEST_TIMEOUT", 30*time.Second)),
	)

	sweepCfg := worker.LoadConfigFromEnv(rlCfg.SweepInterval, logger)
	var buckets []worker.BucketCleaner
	if burst != nil {
		buckets = append(buckets, burst)
	}
	sweeper, err := worker.NewSweeper(sweepCfg, logger,
		worker.NewSweeperMetrics(prometheus.DefaultRegisterer),
		[]worker.WindowSweeper{gateLimiter, uploadLimiter}, buckets...)
	if err != nil {
		return nil, fmt.Errorf("sweeper: %w", err)
	}

	return &components{
		handler: handler,
		sweeper: sweeper,
		cleanup: []func(){closeStore},
	}, nil
}
