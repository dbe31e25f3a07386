package internal

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/coachfit/coachfit/internal/attendance"
	"github.com/coachfit/coachfit/internal/auth"
	"github.com/coachfit/coachfit/internal/bodycomp"
	"github.com/coachfit/coachfit/internal/bodycomp/inbody"
	"github.com/coachfit/coachfit/internal/chat"
	"github.com/coachfit/coachfit/internal/coaching"
	"github.com/coachfit/coachfit/internal/config"
	"github.com/coachfit/coachfit/internal/db"
	"github.com/coachfit/coachfit/internal/mediastore"
	"github.com/coachfit/coachfit/internal/middleware"
	"github.com/coachfit/coachfit/internal/plans"
	"github.com/coachfit/coachfit/internal/telemetry/metrics"
	metricsmiddleware "github.com/coachfit/coachfit/internal/telemetry/metrics/middleware"
	"github.com/coachfit/coachfit/internal/telemetry/tracing"
	"github.com/coachfit/coachfit/internal/users"
	"github.com/coachfit/coachfit/pkg"

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
)

type Server struct {
	httpServer        *http.Server
	metricsHttpServer *http.Server
	versionInfo       string

	config     *config.Config
	dbPool     *pgxpool.Pool
	mediaStore *mediastore.DiskStore

	redisClient    *redis.Client
	authService    *auth.Service
	sessionChecker *auth.SessionChecker

	// metrics
	metricsManager *metrics.Manager
	promRegistry   *prometheus.Registry
	otelShutdown   func()
}

type NewServerParams struct {
	Config                  *config.Config
	VersionInfo             string
	RedisPassword           string
	HoneycombTracingEnabled bool
}

func NewServer(
	ctx context.Context,
	params NewServerParams,
) (*Server, error) {
	dbPool, err := db.NewDBPool(ctx, db.NewDBPoolParams{
		DBHost:         params.Config.PostgresHost,
		DBPort:         params.Config.PostgresPort,
		DBName:         params.Config.PostgresDBName,
		TracingEnabled: params.HoneycombTracingEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("new db pool: %w", err)
	}

	if err := dbPool.Ping(ctx); err != nil {
		log.Warnf("failed to ping db: %s", err)
	}

	pgxpoolCollector := pgxpoolprometheus.NewCollector(
		dbPool,
		map[string]string{"db_name": params.Config.PostgresDBName},
	)
	promRegistry := metrics.SetupPrometheus(pgxpoolCollector)
	metricsManager := metrics.NewManager("coachfit", "main", promRegistry)
	metricsManager.GaugeLifeSignal.Set(0)

	rdb := redis.NewClient(&redis.Options{
		Addr:     net.JoinHostPort(params.Config.RedisHost, params.Config.RedisPort),
		Password: params.RedisPassword,
		DB:       0, // use default DB
	})

	rdbStatus := rdb.Ping(ctx)
	if err := rdbStatus.Err(); err != nil {
		log.Errorf("--> failed to ping redis: %s", err)
	} else {
		log.Debugf("redis ping: %s", rdbStatus.Val())
	}

	authService := auth.NewService(auth.DefaultTTL, rdb)
	go func() {
		for range time.Tick(time.Hour * 8) {
			authService.ScanAndClean(ctx)
		}
	}()

	// use honeycomb distro to setup OpenTelemetry SDK
	otelShutdown, err := tracing.HoneycombSetup(params.HoneycombTracingEnabled, "coachfit-backend", rdb)
	if err != nil {
		return nil, err
	}

	mediaStore, err := mediastore.NewDiskStore(params.Config.MediaRootPath)
	if err != nil {
		return nil, fmt.Errorf("new media store: %w", err)
	}

	return &Server{
		config:      params.Config,
		dbPool:      dbPool,
		versionInfo: params.VersionInfo,
		mediaStore:  mediaStore,

		redisClient:    rdb,
		authService:    authService,
		sessionChecker: auth.NewSessionChecker(auth.DefaultTTL, rdb),

		// telemetry
		metricsManager: metricsManager,
		promRegistry:   promRegistry,
		otelShutdown:   otelShutdown,
	}, nil
}

func (s *Server) routerSetup() *mux.Router {
	r := mux.NewRouter()
	r.Use(otelmux.Middleware("main-router"))

	r.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		pkg.WriteTextResponseOK(w, "CoachFit backend, at your service")
	}).Methods("GET", "OPTIONS").Name("root")
	r.HandleFunc("/version", func(w http.ResponseWriter, r *http.Request) {
		pkg.WriteTextResponseOK(w, s.versionInfo)
	}).Methods("GET", "OPTIONS").Name("version")

	usersRepo := users.NewRepo(s.dbPool)
	usersHandler := users.NewHandler(usersRepo)
	authHandler := auth.NewHandler(s.authService, usersRepo)

	reqRateLimiter := redis_rate.NewLimiter(s.redisClient)
	authRouter := r.PathPrefix("/a").Subrouter()
	authRouter.HandleFunc("/login", authHandler.HandleLogin).Methods("POST", "OPTIONS").Name("login")
	authRouter.HandleFunc("/logout", authHandler.HandleLogout).Methods("GET", "OPTIONS").Name("logout")
	authRouter.HandleFunc("/register", usersHandler.HandleRegister).Methods("POST", "OPTIONS").Name("register")
	authRouter.Use(middleware.RateLimit(
		reqRateLimiter,
		"auth-router",
		s.config.LoginRateLimitAllowedPerMin,
		s.metricsManager,
	))

	r.HandleFunc("/me", usersHandler.HandleMe).Methods("GET", "OPTIONS").Name("me")
	r.HandleFunc("/me/goal", usersHandler.HandleSetGoal).Methods("PUT", "OPTIONS").Name("set-goal")

	bodycompHandler := bodycomp.NewHandler(
		bodycomp.NewRepo(s.dbPool),
		usersRepo,
		s.metricsManager,
	)
	r.HandleFunc("/bodycomp", bodycompHandler.HandleSave).Methods("POST", "OPTIONS").Name("save-bodycomp")
	r.HandleFunc("/bodycomp", bodycompHandler.HandleList).Methods("GET", "OPTIONS").Name("list-bodycomp")
	r.HandleFunc("/bodycomp/insights", bodycompHandler.HandleInsights).Methods("GET", "OPTIONS").Name("bodycomp-insights")
	r.HandleFunc("/bodycomp/insights/monthly", bodycompHandler.HandleMonthlyInsights).Methods("GET", "OPTIONS").Name("bodycomp-monthly-insights")
	r.HandleFunc("/bodycomp/trends", bodycompHandler.HandleTrends).Methods("GET", "OPTIONS").Name("bodycomp-trends")
	r.HandleFunc("/bodycomp/{date}", bodycompHandler.HandleDelete).Methods("DELETE", "OPTIONS").Name("delete-bodycomp")

	inbodyHandler := inbody.NewHandler(inbody.NewTextExtractor(inbody.Config{
		Pdftotext: s.config.OcrPdftotextPath,
		Pdftoppm:  s.config.OcrPdftoppmPath,
		Tesseract: s.config.OcrTesseractPath,
	}, s.metricsManager))
	r.HandleFunc("/bodycomp/inbody/extract", inbodyHandler.HandleExtract).Methods("POST", "OPTIONS").Name("inbody-extract")

	attendanceHandler := attendance.NewHandler(
		attendance.NewRepo(s.dbPool),
		usersRepo,
		s.metricsManager,
	)
	r.HandleFunc("/attendance/checkin", attendanceHandler.HandleCheckIn).Methods("POST", "OPTIONS").Name("checkin")
	r.HandleFunc("/attendance", attendanceHandler.HandleList).Methods("GET", "OPTIONS").Name("list-attendance")
	r.HandleFunc("/attendance/stats", attendanceHandler.HandleStats).Methods("GET", "OPTIONS").Name("attendance-stats")

	plansHandler := plans.NewHandler(plans.NewRepo(s.dbPool), usersRepo)
	r.HandleFunc("/plans", plansHandler.HandleCreate).Methods("POST", "OPTIONS").Name("create-plan")
	r.HandleFunc("/plans", plansHandler.HandleList).Methods("GET", "OPTIONS").Name("list-plans")
	r.HandleFunc("/plans/active", plansHandler.HandleGetActive).Methods("GET", "OPTIONS").Name("get-active-plan")

	coachingRepo := coaching.NewRepo(s.dbPool)
	coachingHandler := coaching.NewHandler(
		coachingRepo,
		coaching.NewService(coachingRepo, usersRepo),
	)
	r.HandleFunc("/coaches", coachingHandler.HandleListCoaches).Methods("GET", "OPTIONS").Name("list-coaches")
	r.HandleFunc("/coaches/profile", coachingHandler.HandleUpsertProfile).Methods("PUT", "OPTIONS").Name("upsert-coach-profile")
	r.HandleFunc("/coaches/profile/{id}", coachingHandler.HandleGetProfile).Methods("GET", "OPTIONS").Name("get-coach-profile")
	r.HandleFunc("/coaching/requests", coachingHandler.HandleSendRequest).Methods("POST", "OPTIONS").Name("send-coaching-request")
	r.HandleFunc("/coaching/requests", coachingHandler.HandleListRequests).Methods("GET", "OPTIONS").Name("list-coaching-requests")
	r.HandleFunc("/coaching/requests/{id}/accept", coachingHandler.HandleAccept).Methods("POST", "OPTIONS").Name("accept-coaching-request")
	r.HandleFunc("/coaching/requests/{id}/decline", coachingHandler.HandleDecline).Methods("POST", "OPTIONS").Name("decline-coaching-request")
	r.HandleFunc("/coaching/requests/{id}/cancel", coachingHandler.HandleCancel).Methods("POST", "OPTIONS").Name("cancel-coaching-request")
	r.HandleFunc("/coaching/unassign", coachingHandler.HandleUnassign).Methods("POST", "OPTIONS").Name("unassign-coach")

	chatHandler := chat.NewHandler(
		chat.NewRepo(s.dbPool),
		usersRepo,
		chat.NewNotifier(s.redisClient),
		s.metricsManager,
	)
	r.HandleFunc("/chat/messages", chatHandler.HandleSend).Methods("POST", "OPTIONS").Name("send-chat-message")
	r.HandleFunc("/chat/messages", chatHandler.HandleHistory).Methods("GET", "OPTIONS").Name("chat-history")
	r.HandleFunc("/chat/notify", chatHandler.HandleNotify).Methods("GET", "OPTIONS").Name("chat-notify")

	mediaHandler := mediastore.NewHandler(s.mediaStore, usersRepo)
	r.HandleFunc("/media/upload", mediaHandler.HandleUpload).Methods("POST", "OPTIONS").Name("upload-media")
	r.HandleFunc("/media", mediaHandler.HandleList).Methods("GET", "OPTIONS").Name("list-media")
	r.HandleFunc("/media/file/{id}", mediaHandler.HandleDownload).Methods("GET", "OPTIONS").Name("download-media")
	r.HandleFunc("/media/file/{id}", mediaHandler.HandleDelete).Methods("DELETE", "OPTIONS").Name("delete-media")

	// all the rest - unhandled paths
	r.HandleFunc("/{unknown}", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}).Methods("GET", "POST", "PUT", "DELETE", "OPTIONS").Name("unknown")

	authMiddleware := middleware.NewAuthMiddlewareHandler(s.sessionChecker)

	r.Use(middleware.PanicRecovery(s.metricsManager))
	r.Use(middleware.LogRequest())
	r.Use(middleware.RequestMetrics(s.metricsManager))
	r.Use(middleware.Cors())
	r.Use(authMiddleware.AuthCheck())
	r.Use(middleware.DrainAndCloseRequest())

	return r
}

func (s *Server) Serve(_ context.Context, host string, port int) {
	router := s.routerSetup()

	ipAndPort := net.JoinHostPort(host, strconv.Itoa(port))
	s.httpServer = &http.Server{
		Handler:      router,
		Addr:         ipAndPort,
		WriteTimeout: time.Minute,
		ReadTimeout:  time.Minute,
		ConnState:    s.connStateMetrics,
	}

	metricsRouter := mux.NewRouter()
	metricsRouter.Handle("/metrics", metricsmiddleware.
		New(s.promRegistry, nil).
		WrapHandler("/metrics", promhttp.HandlerFor(
			s.promRegistry,
			promhttp.HandlerOpts{}),
		))
	metricsAddr := net.JoinHostPort(s.config.PrometheusMetricsHost, s.config.PrometheusMetricsPort)
	s.metricsHttpServer = &http.Server{
		Addr:    metricsAddr,
		Handler: metricsRouter,
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

	maxWaitDuration := time.Second * 15
	ctx, timeoutCancel := context.WithTimeout(context.Background(), maxWaitDuration)
	defer timeoutCancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Error(" >>> failed to gracefully shutdown http server")
	}
	log.Warnln("server shut down")

	if err := s.metricsHttpServer.Shutdown(ctx); err != nil {
		log.Error(" >>> failed to gracefully shutdown metrics http server")
	}
	log.Warnln("metrics server shut down")
}

func (s *Server) connStateMetrics(_ net.Conn, state http.ConnState) {
	switch state {
	case http.StateNew:
		s.metricsManager.GaugeRequests.Add(1)
	case http.StateClosed:
		s.metricsManager.GaugeRequests.Add(-1)
	default:
		// do nothing
	}
}
