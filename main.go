package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/uptrace/bun"

	"ms-demo-booking/internal/auth"
	"ms-demo-booking/internal/booking"
	"ms-demo-booking/internal/config"
	"ms-demo-booking/internal/database"
	"ms-demo-booking/internal/database/migrations"
	"ms-demo-booking/internal/kafka"
	"ms-demo-booking/internal/ledger"
	"ms-demo-booking/internal/logger"
	"ms-demo-booking/internal/notify"
	"ms-demo-booking/internal/sessions"
	"ms-demo-booking/internal/sessions/session_api"
	"ms-demo-booking/internal/tickets/qr"
	tickets "ms-demo-booking/internal/tickets/service"
	"ms-demo-booking/internal/tickets/ticket_api"
)

func prepareSchema(ctx context.Context, cfg config.DatabaseConfig, bunDB *bun.DB, log *logger.Logger) {
	if !cfg.AutoMigrate {
		log.Info("DATABASE", "Auto-migrate disabled, assuming schema is current")
		return
	}
	if cfg.Driver == config.DriverSQLite {
		if err := database.CreateSchema(ctx, bunDB); err != nil {
			log.Fatal("DATABASE", fmt.Sprintf("Failed to create SQLite schema: %v", err))
		}
		log.Info("DATABASE", "✅ SQLite schema ready")
		return
	}
	if err := migrations.NewRunner(bunDB, log).Up(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to run migrations: %v", err))
	}
	log.Info("DATABASE", "✅ Migrations applied")
}

func newLocker(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) (booking.Locker, func()) {
	if cfg.Addr == "" {
		log.Warn("REDIS", "REDIS_ADDR not set, using in-process booking lock")
		return booking.NewLocalLocker(), func() {}
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr})
	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatal("REDIS", fmt.Sprintf("Redis connection error: %v", err))
	}
	log.Info("REDIS", fmt.Sprintf("✅ Redis connection successful to %s (DB: %d)", cfg.Addr, client.Options().DB))
	return booking.NewRedisLocker(client, cfg.LockTTL, cfg.LockWait, log), func() { client.Close() }
}

func newEventPublisher(cfg config.KafkaConfig, log *logger.Logger) (tickets.EventPublisher, func()) {
	if !cfg.Enabled {
		log.Info("KAFKA", "Kafka disabled, ticket events will not be published")
		return nil, func() {}
	}
	log.Info("KAFKA", fmt.Sprintf("Using Kafka brokers: %v", cfg.Brokers))
	if err := kafka.EnsureTopicsExist(cfg.Brokers, kafka.TopicNames(cfg.Topics), log); err != nil {
		log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
	} else {
		log.Info("KAFKA", "Required topics ensured successfully")
	}
	producer := kafka.NewProducer(cfg.Brokers, cfg.Topics, log)
	log.Info("KAFKA", "Kafka producer initialized successfully")
	return producer, func() {
		if err := producer.Close(); err != nil {
			log.Error("KAFKA", fmt.Sprintf("Failed to close producer: %v", err))
		}
	}
}

func requestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.LogAPI(r.Method, r.URL.Path, strconv.Itoa(ww.Status()), time.Since(start).String())
		})
	}
}

func newRouter(log *logger.Logger, guard *auth.Guard, authHandler *auth.Handler, sessionHandler *session_api.Handler, ticketHandler *ticket_api.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(log))

	// --- Public Routes ---
	sessionHandler.RegisterPublicRoutes(r)
	ticketHandler.RegisterPublicRoutes(r)
	log.Info("ROUTER", "Public session and booking routes registered under /api")

	// --- Admin Routes ---
	r.Route("/api/admin", func(r chi.Router) {
		authHandler.RegisterPublicRoutes(r)

		r.Group(func(r chi.Router) {
			r.Use(guard.Middleware)
			log.Info("AUTH", "Admin middleware applied to protected routes")

			authHandler.RegisterAdminRoutes(r)
			sessionHandler.RegisterAdminRoutes(r)
			ticketHandler.RegisterAdminRoutes(r)
		})
	})
	log.Info("ROUTER", "Admin routes registered under /api/admin")
	return r
}

func main() {
	envErr := godotenv.Load()
	cfg := config.Load()

	log := logger.NewLogger("demo-booking", cfg.App.LogDir)
	defer log.Close()

	log.Info("APP", "Starting Demo Booking Service initialization")
	if envErr != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		log.Info("CONFIG", "Loaded environment variables from .env file")
	}
	if cfg.Auth.JWTSecret == "" {
		log.Fatal("CONFIG", "JWT_SECRET not set")
	}

	ctx := context.Background()

	bunDB, err := database.Open(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", err.Error())
	}
	defer bunDB.Close()
	prepareSchema(ctx, cfg.Database, bunDB, log)

	locker, closeRedis := newLocker(ctx, cfg.Redis, log)
	defer closeRedis()

	events, closeKafka := newEventPublisher(cfg.Kafka, log)
	defer closeKafka()

	qrGen, err := qr.NewGenerator(cfg.App.QRSecretKey)
	if err != nil {
		log.Fatal("CONFIG", fmt.Sprintf("Invalid QR_SECRET_KEY: %v", err))
	}
	if qrGen.Sealed() {
		log.Info("CONFIG", "QR payloads will be sealed")
	}

	store := &ledger.DB{Bun: bunDB}
	ticketService := tickets.NewTicketService(store, locker, notify.New(cfg.Email, log), events, qrGen, log, cfg.App.PublicURL)
	sessionService := sessions.NewSessionService(store, log)

	ticketHandler := ticket_api.NewHandler(ticketService, log)
	sessionHandler := session_api.NewHandler(sessionService, log)

	guard := &auth.Guard{
		Tokens:     auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
		CookieName: cfg.Auth.CookieName,
		Logger:     log,
	}
	if cfg.Auth.OIDCIssuer != "" {
		verifier, err := auth.NewOIDCVerifier(ctx, cfg.Auth.OIDCIssuer)
		if err != nil {
			log.Fatal("AUTH", fmt.Sprintf("Failed to set up OIDC verifier: %v", err))
		}
		guard.Verifier = verifier
		log.Info("AUTH", fmt.Sprintf("Bearer tokens verified against %s", cfg.Auth.OIDCIssuer))
	}
	authHandler := &auth.Handler{
		Store:        &auth.AdminStore{Bun: bunDB},
		Guard:        guard,
		CookieSecure: cfg.Auth.CookieSecure,
		Logger:       log,
	}

	log.Info("HTTP", "Setting up router and middleware")
	r := newRouter(log, guard, authHandler, sessionHandler, ticketHandler)

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("🚀 Demo Booking Service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		log.Info("HTTP", "✅ Demo Booking Service shutdown complete")
	}
}
