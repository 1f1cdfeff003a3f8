package main

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	validator "github.com/go-playground/validator/v10"
	migrate "github.com/golang-migrate/migrate/v4"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/noah-isme/backend-pos/internal/auth"
	"github.com/noah-isme/backend-pos/internal/cart"
	"github.com/noah-isme/backend-pos/internal/catalog"
	"github.com/noah-isme/backend-pos/internal/checkout"
	"github.com/noah-isme/backend-pos/internal/common"
	"github.com/noah-isme/backend-pos/internal/config"
	"github.com/noah-isme/backend-pos/internal/customer"
	"github.com/noah-isme/backend-pos/internal/discount"
	"github.com/noah-isme/backend-pos/internal/events"
	"github.com/noah-isme/backend-pos/internal/health"
	"github.com/noah-isme/backend-pos/internal/inventory"
	"github.com/noah-isme/backend-pos/internal/lock"
	"github.com/noah-isme/backend-pos/internal/notify"
	"github.com/noah-isme/backend-pos/internal/obs"
	"github.com/noah-isme/backend-pos/internal/queue"
	"github.com/noah-isme/backend-pos/internal/ratelimit"
	"github.com/noah-isme/backend-pos/internal/repo"
	"github.com/noah-isme/backend-pos/internal/report"
	"github.com/noah-isme/backend-pos/internal/shift"
	"github.com/noah-isme/backend-pos/internal/tender"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "pos")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	tracingEnabled := envBool("OBS_ENABLE_TRACING", true)
	if tracingEnabled {
		sampling := envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0)
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "pos-api",
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

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if dir := envOrDefault("MIGRATIONS_DIR", "db/migrations"); dir != "" {
		if err := runMigrations(dir, cfg.DatabaseURL); err != nil {
			logger.Fatal().Err(err).Msg("run migrations")
		}
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse database config")
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = "pos-api"

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if metricsEnabled {
		if err := redisotel.InstrumentMetrics(redisClient); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}

	validate := validator.New()

	authService, err := auth.NewService(auth.Config{
		Store:           repo.Users{DB: pool},
		Secret:          cfg.JWTSecret,
		AccessTokenTTL:  cfg.AccessTokenTTL,
		RefreshTokenTTL: cfg.RefreshTokenTTL,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise auth service")
	}
	accessCookie := envOrDefault("ACCESS_COOKIE_NAME", "pos_access")
	refreshCookie := envOrDefault("REFRESH_COOKIE_NAME", "pos_refresh")
	authHandler := &auth.Handler{
		Service:           authService,
		AccessCookieName:  accessCookie,
		RefreshCookieName: refreshCookie,
		CookieDomain:      cfg.CookieDomain,
		CookieSecure:      cfg.CookieSecure,
		CookieSameSite:    cfg.CookieSameSite,
	}
	authMiddleware := auth.Middleware{Service: authService, AccessCookie: accessCookie}

	idem := common.Idem{R: redisClient, TTL: cfg.IdempotencyTTL}

	loginLimit := ratelimit.Handler{
		Limiter: ratelimit.Limiter{Client: redisClient, Prefix: "rl"},
		Config: ratelimit.Config{
			Key:    func(r *http.Request) string { return "login:" + common.ClientIP(r) },
			Window: cfg.LoginRateWindow,
			Max:    cfg.LoginRateLimit,
		},
		OnError: func(err error) { logger.Error().Err(err).Msg("login rate limit") },
	}

	catalogSvc := &catalog.Service{
		Store: repo.Products{DB: pool},
		Cache: catalog.NewCache(redisClient, cfg.CatalogCacheTTL),
	}
	catalogHandler := &catalog.Handler{Svc: catalogSvc, Validate: validate}

	customerSvc := &customer.Service{Store: repo.Customers{DB: pool}}
	customerHandler := &customer.Handler{Svc: customerSvc, Validate: validate}

	discountSvc := &discount.Service{Q: repo.Discounts{DB: pool}}
	discountHandler := &discount.Handler{Store: repo.Discounts{DB: pool}, Svc: discountSvc}

	cartSvc := &cart.Service{
		Store:     repo.Carts{DB: pool},
		Products:  repo.Products{DB: pool},
		Discounts: discountSvc,
		TaxBps:    cfg.TaxRateBPS,
		TTL:       cfg.CartTTL,
	}
	cartHandler := &cart.Handler{Svc: cartSvc}

	tenderStore := tender.Store{R: redisClient, TTL: cfg.TenderSessionTTL}
	tenderSvc := &tender.Service{Store: tenderStore, Totals: cartSvc}
	tenderHandler := &tender.Handler{Svc: tenderSvc}

	scheduler := notify.Scheduler{
		Queue:        queue.Enqueuer{R: redisClient, Prefix: envOrDefault("QUEUE_PREFIX", ""), DedupTTL: cfg.IdempotencyTTL},
		MaxAttempts:  cfg.WebhookMaxAttempts,
		SendReceipts: cfg.ReceiptEmailEnabled,
	}
	bus := &events.Bus{
		Store:     repo.Events{DB: pool},
		Scheduler: scheduler,
	}

	checkoutSvc := &checkout.Service{
		Tx:          checkout.PgTx{Pool: pool},
		TenderStore: tenderStore,
		TaxBps:      cfg.TaxRateBPS,
		LoyaltyUnit: int64(cfg.LoyaltyUnit),
		Events:      bus,
	}
	checkoutHandler := &checkout.Handler{Svc: checkoutSvc, Reader: repo.Settlements{DB: pool}}

	inventorySvc := &inventory.Service{
		Tx:        inventory.PgTx{Pool: pool},
		Movements: repo.Movements{DB: pool},
	}
	inventoryHandler := &inventory.Handler{Svc: inventorySvc}

	shiftSvc := &shift.Service{
		Store:   repo.Shifts{DB: pool},
		Locker:  lock.Locker{R: redisClient},
		LockTTL: cfg.ShiftLockTTL,
		Events:  bus,
	}
	shiftHandler := &shift.Handler{Svc: shiftSvc}

	reportSvc := &report.Service{
		Q:            repo.Settlements{DB: pool},
		Shifts:       repo.Shifts{DB: pool},
		R:            redisClient,
		TTL:          cfg.ReportCacheTTL,
		DefaultRange: cfg.ReportRangeDays,
	}
	reportHandler := &report.Handler{Svc: reportSvc}

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
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
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
		v.Route("/auth", func(a chi.Router) {
			a.With(loginLimit.Middleware).Post("/login", authHandler.Login)
			a.Post("/refresh", authHandler.Refresh)
			a.Post("/logout", authHandler.Logout)

			a.Group(func(protected chi.Router) {
				protected.Use(authMiddleware.RequireAuth)
				protected.Get("/me", authHandler.Me)
				protected.With(auth.RequireRole(auth.RoleAdmin)).Post("/register", authHandler.Register)
			})
		})

		v.Route("/products", func(p chi.Router) {
			p.Get("/", catalogHandler.List)
			p.With(authMiddleware.RequireAuth).Get("/low-stock", catalogHandler.LowStock)
			p.Get("/{id}", catalogHandler.Get)
		})

		v.Route("/carts", func(c chi.Router) {
			c.Use(authMiddleware.RequireAuth)
			c.Post("/", cartHandler.Create)
			c.Route("/{id}", func(one chi.Router) {
				one.Get("/", cartHandler.Get)
				one.Post("/items", cartHandler.AddItem)
				one.Patch("/items/{itemId}", cartHandler.UpdateItem)
				one.Delete("/items/{itemId}", cartHandler.RemoveItem)
				one.Delete("/items", cartHandler.Clear)
				one.Post("/discount", cartHandler.ApplyDiscount)
				one.Delete("/discount", cartHandler.RemoveDiscount)
				one.Post("/customer", cartHandler.AttachCustomer)

				one.Post("/tender", tenderHandler.Open)
				one.Get("/tender", tenderHandler.Get)
				one.Post("/tender/payments", tenderHandler.AddPayment)
				one.Delete("/tender/payments/{index}", tenderHandler.RemovePayment)

				one.With(idem.Middleware).Post("/checkout", checkoutHandler.Finalize)
			})
		})

		v.With(authMiddleware.RequireAuth, idem.Middleware).Post("/returns", checkoutHandler.Return)

		v.Route("/settlements", func(s chi.Router) {
			s.Use(authMiddleware.RequireAuth)
			s.Get("/", checkoutHandler.List)
			s.Get("/{id}", checkoutHandler.Get)
		})

		v.Route("/shifts", func(s chi.Router) {
			s.Use(authMiddleware.RequireAuth)
			s.With(idem.Middleware).Post("/", shiftHandler.Start)
			s.With(idem.Middleware).Post("/{id}/close", shiftHandler.Close)
			s.Get("/active", shiftHandler.Active)
			s.Get("/", shiftHandler.List)
		})

		v.Route("/inventory", func(inv chi.Router) {
			inv.Use(authMiddleware.RequireAuth)
			inv.Use(auth.RequireRole(auth.RoleManager, auth.RoleAdmin))
			inv.With(idem.Middleware).Post("/adjust", inventoryHandler.Adjust)
			inv.With(idem.Middleware).Post("/receive", inventoryHandler.Receive)
			inv.Get("/movements", inventoryHandler.Movements)
		})

		v.Route("/customers", func(c chi.Router) {
			c.Use(authMiddleware.RequireAuth)
			c.Get("/", customerHandler.List)
			c.Post("/", customerHandler.Create)
			c.Get("/{id}", customerHandler.Get)
			c.Patch("/{id}", customerHandler.Update)
		})

		v.Route("/admin", func(admin chi.Router) {
			admin.Use(authMiddleware.RequireAuth)
			admin.Use(auth.RequireRole(auth.RoleAdmin))
			admin.Post("/products", catalogHandler.Create)
			admin.Patch("/products/{id}", catalogHandler.Update)
			admin.Get("/discounts", discountHandler.List)
			admin.Post("/discounts", discountHandler.Create)
			admin.Put("/discounts/{code}", discountHandler.Update)
			admin.Post("/discounts/preview", discountHandler.Preview)
		})

		v.Route("/reports", func(rep chi.Router) {
			rep.Use(authMiddleware.RequireAuth)
			rep.Use(auth.RequireRole(auth.RoleManager, auth.RoleAdmin))
			rep.Get("/sales", reportHandler.Sales)
			rep.Get("/top-products", reportHandler.TopProducts)
			rep.Get("/payment-mix", reportHandler.PaymentMix)
			rep.Get("/shifts", reportHandler.Shifts)
		})
	})

	srv := &http.Server{
		Addr:    cfg.HTTPAddr(),
		Handler: r,
	}

	logger.Info().Str("addr", srv.Addr).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
}

func runMigrations(dir, databaseURL string) error {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	driver, err := migratepgx.WithInstance(db, &migratepgx.Config{})
	if err != nil {
		return err
	}
	m, err := migrate.NewWithDatabaseInstance("file://"+dir, "pgx", driver)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
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

func newPprofMux() http.Handler {
	mux := chi.NewRouter()
	mux.Get("/", pprof.Index)
	mux.Get("/cmdline", pprof.Cmdline)
	mux.Get("/profile", pprof.Profile)
	mux.Get("/symbol", pprof.Symbol)
	mux.Get("/trace", pprof.Trace)
	mux.Get("/{name}", func(w http.ResponseWriter, r *http.Request) {
		pprof.Handler(chi.URLParam(r, "name")).ServeHTTP(w, r)
	})
	return mux
}

func protectPprof(next http.Handler, user, pass string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user == "" || pass == "" {
			http.NotFound(w, r)
			return
		}
		gotUser, gotPass, ok := r.BasicAuth()
		if !ok ||
			subtle.ConstantTimeCompare([]byte(gotUser), []byte(user)) != 1 ||
			subtle.ConstantTimeCompare([]byte(gotPass), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", `Basic realm="pprof"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
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

func envDurationMillis(key string, fallbackMs int) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil && parsed > 0 {
			return time.Duration(parsed) * time.Millisecond
		}
	}
	return time.Duration(fallbackMs) * time.Millisecond
}
