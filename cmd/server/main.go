package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/driveguard/drowsy-server-go/internal/alerts"
	"github.com/driveguard/drowsy-server-go/internal/config"
	"github.com/driveguard/drowsy-server-go/internal/database"
	"github.com/driveguard/drowsy-server-go/internal/handler"
	"github.com/driveguard/drowsy-server-go/internal/jobs"
	"github.com/driveguard/drowsy-server-go/internal/middleware"
	"github.com/driveguard/drowsy-server-go/internal/proxy"
	"github.com/driveguard/drowsy-server-go/internal/redis"
	"github.com/driveguard/drowsy-server-go/internal/repository"
	"github.com/driveguard/drowsy-server-go/internal/service"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	isProduction := os.Getenv("FLY_APP_NAME") != ""
	if err := cfg.Validate(isProduction); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	cancel()
	log.Info().Msg("database connected")

	if err := db.Migrate(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected")

	userRepo := repository.NewUserRepository(db.DB)
	sessionRepo := repository.NewSessionRepository(db.DB)
	logRepo := repository.NewDrowsinessLogRepository(db.DB)

	broker := alerts.NewBroker(redisClient)
	defer broker.Close()

	userService := service.NewUserService(userRepo)
	loginService := service.NewLoginService(
		userRepo, service.NewGoogleVerifier(cfg.GoogleClientID), cfg.JWTSecret,
	)
	sessionService := service.NewSessionService(db, sessionRepo, broker)
	drowsinessService := service.NewDrowsinessService(logRepo, sessionRepo)
	sosService := service.NewSOSService(
		userRepo, service.NewFast2SMSGateway(cfg.SMSAPIKey, cfg.SMSAPIURL),
	)

	detectorProxy, err := proxy.NewDetectorProxy(cfg.DetectorBaseURL, cfg.DetectorTimeout())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build detector proxy")
	}

	authMiddleware := middleware.NewAuthMiddleware(cfg.JWTSecret)
	rateLimitMiddleware := middleware.NewRedisRateLimitMiddleware(redisClient.Client)
	bodyLimitMiddleware := middleware.NewBodyLimitMiddleware(0)
	securityHeadersMiddleware := middleware.NewSecurityHeadersMiddleware(isProduction)

	userHandler := handler.NewUserHandler(userService, loginService)
	sessionHandler := handler.NewSessionHandler(sessionService)
	drowsinessHandler := handler.NewDrowsinessHandler(drowsinessService)
	sosHandler := handler.NewSOSHandler(sosService)
	eventsHandler := handler.NewEventsHandler(broker)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
	r.Use(bodyLimitMiddleware.Handler)
	r.Use(securityHeadersMiddleware.Handler)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"status":    "ok",
			"timestamp": time.Now().UnixMilli(),
		})
	})

	r.Route("/v1", func(r chi.Router) {
		// Login is the only unauthenticated endpoint; it wins over the
		// mounted /users wildcard because it is a static route.
		r.Post("/users/oauth/google", userHandler.GoogleLogin)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Handler)
			r.Use(rateLimitMiddleware.Handler)

			r.Mount("/users", userHandler.Routes())
			r.Mount("/sessions", sessionHandler.Routes())
			r.Mount("/drowsiness", drowsinessHandler.Routes())
			r.Mount("/sos", sosHandler.Routes())
			r.Get("/events", eventsHandler.Stream)

			r.Handle("/detector/*", http.StripPrefix("/v1/detector", detectorProxy))
		})
	})

	cleanupJob := jobs.NewCleanupJob(sessionRepo, cfg.StaleSessionAge(), config.CleanupJobInterval)
	cleanupJob.Start()
	defer cleanupJob.Stop()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: 0, // SSE streams stay open indefinitely
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
