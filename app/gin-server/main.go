package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/yoockh/convopilot/config"
	"github.com/yoockh/convopilot/internal/api/handlers"
	"github.com/yoockh/convopilot/internal/api/middleware"
	"github.com/yoockh/convopilot/internal/api/routes"
	"github.com/yoockh/convopilot/internal/cache"
	"github.com/yoockh/convopilot/internal/logger"
	"github.com/yoockh/convopilot/internal/providers/llm"
	"github.com/yoockh/convopilot/internal/providers/stt"
	"github.com/yoockh/convopilot/internal/ratelimit"
	"github.com/yoockh/convopilot/internal/realtime"
	mongorepo "github.com/yoockh/convopilot/internal/repositories/mongo"
	pgrepo "github.com/yoockh/convopilot/internal/repositories/postgres"
	"github.com/yoockh/convopilot/internal/security"
	"github.com/yoockh/convopilot/internal/services"
	"github.com/yoockh/convopilot/internal/storage"
	"github.com/yoockh/convopilot/internal/workers"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("config error")
	}

	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	gin.SetMode(cfg.GinMode)

	// Init PostgreSQL
	if err := config.InitPostgres(cfg, log); err != nil {
		log.WithError(err).Fatal("PostgreSQL init error")
	}
	log.Info("PostgreSQL connected")

	// Init Redis
	if err := config.InitRedis(cfg); err != nil {
		log.WithError(err).Fatal("Redis init error")
	}
	log.Info("Redis connected")

	// Init MongoDB (optional event log)
	var events services.SessionEventLog
	mongoUp, err := config.InitMongo(cfg)
	if err != nil {
		log.WithError(err).Fatal("MongoDB init error")
	}
	if mongoUp {
		mdb := config.MongoDatabase(cfg)
		if err := config.EnsureMongoIndexes(mdb); err != nil {
			log.WithError(err).Fatal("MongoDB index error")
		}
		events = mongorepo.NewSessionEventRepo(mdb)
		log.Info("MongoDB connected")
	}

	ctx := context.Background()
	deps, closers := initProviders(ctx, cfg, log)
	defer func() {
		for _, c := range closers {
			_ = c()
		}
	}()

	db := config.PostgresDB
	rdb := config.RedisClient

	// Repositories
	tx := pgrepo.NewTransactor(db)
	languageRepo := pgrepo.NewLanguageRepo(db)
	userRepo := pgrepo.NewUserRepo(db)
	userLangRepo := pgrepo.NewUserLanguageRepo(db)
	sessionRepo := pgrepo.NewSessionRepo(db)
	messageRepo := pgrepo.NewMessageRepo(db)
	feedbackRepo := pgrepo.NewFeedbackRepo(db)

	hub := realtime.NewRedisHub(rdb, log)
	deps.Publisher = hub
	if cfg.AutoAnalyze && deps.Analyzer != nil {
		deps.Queue = &workers.StreamQueue{Redis: rdb, MaxLen: 10000}
	}

	// Services
	languageSvc := services.NewLanguageService(languageRepo, cache.NewRedisCache(rdb, "convopilot:"), cfg.LanguageCacheTTL, log)
	userSvc := services.NewUserService(userRepo, userLangRepo, languageRepo, tx, log)
	sessionSvc := services.NewSessionService(sessionRepo, userLangRepo, tx, events, hub, log)
	messageSvc := services.NewMessageService(messageRepo, sessionRepo, userLangRepo, tx, deps, log)
	feedbackSvc := services.NewFeedbackService(feedbackRepo, sessionRepo, log)

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	var pool *workers.AnalysisWorkerPool
	if deps.Queue != nil {
		pool = &workers.AnalysisWorkerPool{
			Redis:      rdb,
			Messages:   messageSvc,
			NumWorkers: cfg.AnalysisWorkers,
			Logger:     log,
		}
		if err := pool.Start(workerCtx); err != nil {
			log.WithError(err).Fatal("analysis workers failed to start")
		}
		log.WithField("workers", cfg.AnalysisWorkers).Info("analysis workers started")
	}

	tokens := security.NewJWTManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.AccessTokenTTL)

	checks := map[string]handlers.Check{
		"postgres": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
		"redis": func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
	}
	if mongoUp {
		checks["mongo"] = func(ctx context.Context) error { return config.MongoClient.Ping(ctx, nil) }
	}

	r := gin.New()
	r.Use(middleware.RequestLogger(log), middleware.Recovery(log))

	routes.RegisterRoutes(r, routes.Deps{
		Health:   handlers.NewHealthHandler(checks),
		Auth:     handlers.NewAuthHandler(userSvc, tokens),
		User:     handlers.NewUserHandler(userSvc, sessionSvc, cfg.StatsDefaultDays),
		Language: handlers.NewLanguageHandler(languageSvc),
		Session:  handlers.NewSessionHandler(sessionSvc),
		Message:  handlers.NewMessageHandler(messageSvc),
		Feedback: handlers.NewFeedbackHandler(feedbackSvc),
		WS:       handlers.NewWSHandler(sessionSvc, messageSvc, hub, cfg.CORSOrigins, log),
		Tokens:   tokens,
		Users:    userSvc,
		Limiter:  ratelimit.NewRedisLimiter(rdb, cfg.LoginRatePerMinute, cfg.LoginRateBurst),
		Log:      log,
	})

	handler := cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	})(r)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		log.WithField("addr", srv.Addr).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("server forced to shutdown")
	}
	stopWorkers()
	if pool != nil {
		pool.Wait()
	}
	_ = rdb.Close()
	if mongoUp {
		_ = config.MongoClient.Disconnect(shutdownCtx)
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info("server stopped")
}

// initProviders builds the optional GCP collaborators. A provider that
// fails to start is left out and its feature answers 503.
func initProviders(ctx context.Context, cfg *config.Settings, log logrus.FieldLogger) (services.MessageDeps, []func() error) {
	var (
		deps    services.MessageDeps
		closers []func() error
	)

	if cfg.GCPProject != "" {
		gem, err := llm.NewVertexGemini(ctx, cfg.GCPProject, cfg.GCPLocation, cfg.VertexModel)
		if err != nil {
			log.WithError(err).Warn("vertex ai disabled")
		} else {
			deps.Analyzer = llm.NewPromptAnalyzer(gem)
			closers = append(closers, gem.Close)
		}
	}

	if cfg.STTEnabled {
		sp, err := stt.NewGoogleSpeech(ctx)
		if err != nil {
			log.WithError(err).Warn("speech recognition disabled")
		} else {
			deps.STT = sp
			closers = append(closers, sp.Close)
		}
	}

	if cfg.GCSBucket != "" {
		up, err := storage.NewGCSUploader(ctx, cfg.GCSBucket)
		if err != nil {
			log.WithError(err).Warn("voice storage disabled")
		} else {
			deps.Uploader = up
			deps.Signer = up
			closers = append(closers, up.Close)
		}
	}

	return deps, closers
}
