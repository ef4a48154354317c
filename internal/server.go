package internal

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/2beens/fitsense/internal/assessments"
	"github.com/2beens/fitsense/internal/auth"
	"github.com/2beens/fitsense/internal/config"
	"github.com/2beens/fitsense/internal/db"
	"github.com/2beens/fitsense/internal/fitness"
	"github.com/2beens/fitsense/internal/middleware"
	"github.com/2beens/fitsense/internal/mlmodels"
	"github.com/2beens/fitsense/internal/telemetry/metrics"
	"github.com/2beens/fitsense/internal/telemetry/tracing"
	"github.com/2beens/fitsense/internal/users"

	"github.com/IBM/pgxpoolprometheus"
	"github.com/getsentry/sentry-go"
	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redis_rate/v9"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const sessionsCleanupInterval = 8 * time.Hour

type Server struct {
	httpServer        *http.Server
	metricsHttpServer *http.Server
	versionInfo       string

	config      *config.Config
	dbPool      *pgxpool.Pool
	models      fitness.ModelRepository
	predictor   *fitness.Predictor
	analyzer    *fitness.Analyzer
	redisClient *redis.Client

	loginChecker *auth.LoginChecker
	authService  *auth.Service

	// metrics
	metricsManager *metrics.Manager
	promRegistry   *prometheus.Registry
	otelShutdown   func()

	cancelBackground context.CancelFunc
}

type NewServerParams struct {
	Config                  *config.Config
	VersionInfo             string
	PostgresUser            string
	PostgresPassword        string
	RedisPassword           string
	HoneycombTracingEnabled bool
}

func NewServer(
	ctx context.Context,
	params NewServerParams,
) (*Server, error) {
	cfg := params.Config

	dbPool, err := db.NewDBPool(ctx, db.NewDBPoolParams{
		DBHost:         cfg.PostgresHost,
		DBPort:         cfg.PostgresPort,
		DBName:         cfg.PostgresDBName,
		DBUser:         params.PostgresUser,
		DBPassword:     params.PostgresPassword,
		TracingEnabled: params.HoneycombTracingEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("new db pool: %w", err)
	}

	if err := dbPool.Ping(ctx); err != nil {
		log.Warnf("failed to ping db: %s", err)
	}

	if cfg.AutoMigrate {
		if err := db.Migrate(ctx, dbPool); err != nil {
			dbPool.Close()
			return nil, fmt.Errorf("migrate db: %w", err)
		}
	}

	pgxpoolCollector := pgxpoolprometheus.NewCollector(
		dbPool,
		map[string]string{"db_name": cfg.PostgresDBName},
	)
	promRegistry := metrics.SetupPrometheus(pgxpoolCollector)
	metricsManager := metrics.NewManager("fitsense", "api", promRegistry)
	metricsManager.GaugeLifeSignal.Set(0)

	rdb := redis.NewClient(&redis.Options{
		Addr:     net.JoinHostPort(cfg.RedisHost, cfg.RedisPort),
		Password: params.RedisPassword,
		DB:       0, // use default DB
	})

	rdbStatus := rdb.Ping(ctx)
	if err := rdbStatus.Err(); err != nil {
		log.Errorf("--> failed to ping redis: %s", err)
	} else {
		log.Debugf("redis ping: %s", rdbStatus.Val())
	}

	closeConns := func() {
		if err := rdb.Close(); err != nil {
			log.Errorf("failed to close redis client conn: %s", err)
		}
		dbPool.Close()
	}

	// use honeycomb distro to setup OpenTelemetry SDK
	otelShutdown, err := tracing.HoneycombSetup(params.HoneycombTracingEnabled, "fitsense-api", rdb)
	if err != nil {
		closeConns()
		return nil, err
	}

	models, err := loadModels(cfg)
	if err != nil {
		otelShutdown()
		closeConns()
		return nil, err
	}
	metricsManager.GaugeLoadedModels.Set(float64(len(models.List())))
	if cached, ok := models.(*mlmodels.CachedRegistry); ok {
		metrics.RegisterCacheCounters(promRegistry, "fitsense", "api", "prediction_cache", cached)
	}

	authService := auth.NewAuthService(auth.DefaultTTL, rdb)
	bgCtx, cancelBackground := context.WithCancel(context.Background())
	go func() {
		ticker := time.NewTicker(sessionsCleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-bgCtx.Done():
				return
			case <-ticker.C:
				authService.ScanAndClean(bgCtx)
			}
		}
	}()

	return &Server{
		config:      cfg,
		dbPool:      dbPool,
		versionInfo: params.VersionInfo,
		models:      models,
		predictor:   fitness.NewPredictor(models, metricsManager),
		analyzer:    fitness.NewAnalyzer(models, metricsManager),

		redisClient:  rdb,
		authService:  authService,
		loginChecker: auth.NewLoginChecker(auth.DefaultTTL, rdb),

		// telemetry
		metricsManager: metricsManager,
		promRegistry:   promRegistry,
		otelShutdown:   otelShutdown,

		cancelBackground: cancelBackground,
	}, nil
}

// loadModels loads the model artifacts. Without models the service runs on the fallback estimators only.
func loadModels(cfg *config.Config) (fitness.ModelRepository, error) {
	var registry *mlmodels.Registry
	if cfg.ModelsDir == "" {
		log.Warnln("models dir not set, running on fallback estimators")
		registry, _ = mlmodels.NewRegistry(nil)
	} else {
		var err error
		registry, err = mlmodels.LoadDir(cfg.ModelsDir)
		if err != nil {
			return nil, fmt.Errorf("load models: %w", err)
		}
	}
	log.Infof("loaded models: %v", registry.List())

	if cfg.PredictionCacheTTLSeconds <= 0 {
		return registry, nil
	}
	return mlmodels.NewCachedRegistry(registry, cfg.PredictionCacheSizeMB, cfg.PredictionCacheTTLSeconds), nil
}

func (s *Server) routerSetup() (*mux.Router, error) {
	r := mux.NewRouter()
	r.Use(otelmux.Middleware("fitsense-router"))

	api := r.PathPrefix("/api").Subrouter()

	healthHandler := NewHealthHandler(s.versionInfo)
	api.HandleFunc("/health", healthHandler.HandleHealth).Methods("GET", "OPTIONS").Name("health")

	usersHandler := users.NewHandler(users.NewRepo(s.dbPool), s.authService)
	authRouter := api.PathPrefix("/auth").Subrouter()
	authRouter.HandleFunc("/register", usersHandler.HandleRegister).Methods("POST", "OPTIONS").Name("register")
	authRouter.HandleFunc("/login", usersHandler.HandleLogin).Methods("POST", "OPTIONS").Name("login")
	authRouter.HandleFunc("/validate", usersHandler.HandleValidate).Methods("POST", "OPTIONS").Name("validate")
	authRouter.HandleFunc("/logout", usersHandler.HandleLogout).Methods("POST", "OPTIONS").Name("logout")
	// rate limit the auth endpoints to slow down credential guessing
	authRouter.Use(middleware.RateLimit(
		redis_rate.NewLimiter(s.redisClient),
		"auth",
		s.config.LoginRateLimitAllowedPerMin,
		s.metricsManager,
	))
	api.HandleFunc("/users/{user_id:[0-9]+}", usersHandler.HandleGet).Methods("GET", "OPTIONS").Name("get-user")

	assessmentsHandler := assessments.NewHandler(
		assessments.NewService(
			assessments.NewRepo(s.dbPool),
			s.predictor,
			s.analyzer,
			s.metricsManager,
			s.config.DefaultHorizonDays,
		),
	)
	api.HandleFunc("/assessments", assessmentsHandler.HandleSubmit).Methods("POST", "OPTIONS").Name("submit-assessment")
	api.HandleFunc("/assessments/update", assessmentsHandler.HandleUpdate).Methods("PUT", "OPTIONS").Name("update-assessment")
	api.HandleFunc("/assessments/recalculate", assessmentsHandler.HandleRecalculate).Methods("POST", "OPTIONS").Name("recalculate")
	api.HandleFunc("/assessments/latest/{user_id:[0-9]+}", assessmentsHandler.HandleLatest).Methods("GET", "OPTIONS").Name("latest-assessment")
	api.HandleFunc("/assessments/{user_id:[0-9]+}", assessmentsHandler.HandleList).Methods("GET", "OPTIONS").Name("list-assessments")

	modelsHandler := mlmodels.NewHandler(s.predictor)
	api.HandleFunc("/models", modelsHandler.HandleList).Methods("GET", "OPTIONS").Name("list-models")
	api.HandleFunc("/models/{model_name}/predict", modelsHandler.HandlePredict).Methods("POST", "OPTIONS").Name("predict")

	// all the rest - unhandled paths
	r.PathPrefix("/").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}).Name("unknown")

	authMiddleware := middleware.NewAuthMiddlewareHandler(
		s.loginChecker,
		s.config.RequireSessionToken,
	)

	r.Use(middleware.PanicRecovery(s.metricsManager))
	r.Use(middleware.LogRequest())
	r.Use(middleware.RequestMetrics(s.metricsManager))
	r.Use(middleware.Cors(s.config.AllowedOrigins))
	r.Use(authMiddleware.AuthCheck())
	r.Use(middleware.DrainAndCloseRequest())

	return r, nil
}

func (s *Server) Serve(host string, port int) {
	router, err := s.routerSetup()
	if err != nil {
		log.Fatalf("failed to setup router: %s", err)
	}

	ipAndPort := net.JoinHostPort(host, strconv.Itoa(port))
	s.httpServer = &http.Server{
		Handler:      router,
		Addr:         ipAndPort,
		WriteTimeout: time.Minute,
		ReadTimeout:  time.Minute,
	}

	metricsRouter := mux.NewRouter()
	metricsRouter.Handle("/metrics", otelhttp.NewHandler(
		promhttp.InstrumentMetricHandler(
			s.promRegistry,
			promhttp.HandlerFor(s.promRegistry, promhttp.HandlerOpts{}),
		),
		"metrics",
	))
	metricsAddr := net.JoinHostPort(s.config.PrometheusMetricsHost, s.config.PrometheusMetricsPort)
	s.metricsHttpServer = &http.Server{
		Addr:              metricsAddr,
		Handler:           metricsRouter,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infof(" > server listening on: [%s]", ipAndPort)
		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("main service, listen and serve: %s", err)
		}
	}()

	go func() {
		log.Debugf(" > metrics listening on: [%s]", metricsAddr)
		err := s.metricsHttpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("metrics service, listen and serve: %s", err)
		}
	}()

	s.metricsManager.GaugeLifeSignal.Set(1)
}

func (s *Server) GracefulShutdown() {
	log.Debug("graceful shutdown initiated ...")

	s.metricsManager.GaugeLifeSignal.Set(0)
	s.cancelBackground()

	maxWaitDuration := time.Second * 15
	ctx, timeoutCancel := context.WithTimeout(context.Background(), maxWaitDuration)
	defer timeoutCancel()

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			log.Error(" >>> failed to gracefully shutdown http server")
		}
		log.Warnln("server shut down")
	}

	if s.metricsHttpServer != nil {
		if err := s.metricsHttpServer.Shutdown(ctx); err != nil {
			log.Error(" >>> failed to gracefully shutdown metrics http server")
		}
		log.Warnln("metrics server shut down")
	}

	s.otelShutdown()
	log.Trace("otel shut down ...")

	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			log.Errorf("failed to close redis client conn: %s", err)
		}
	}

	if s.dbPool != nil {
		log.Debugln("closing db pool ...")
		s.dbPool.Close() // blocking operation
		log.Debugln("db pool closed")
	}

	if ok := sentry.Flush(5 * time.Second); ok {
		log.Debugf("sentry flush ok: %t", ok)
	}
}
