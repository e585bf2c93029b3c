// Chatpulse - chat transcript activity server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/mattn/go-isatty"
	"golang.org/x/time/rate"

	"github.com/ashureev/chatpulse/internal/api"
	"github.com/ashureev/chatpulse/internal/config"
	"github.com/ashureev/chatpulse/internal/identity"
	"github.com/ashureev/chatpulse/internal/metrics"
	"github.com/ashureev/chatpulse/internal/middleware"
	"github.com/ashureev/chatpulse/internal/store"
	"github.com/ashureev/chatpulse/internal/stream"
	"github.com/ashureev/chatpulse/internal/worker"
	"github.com/ashureev/chatpulse/web"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected", "path", cfg.DBPath)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tokens := identity.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, cfg.Auth.AccessTokenTTL)
	sm := stream.NewSessionManager()
	loginLimiter := middleware.NewRateLimiter(ctx, rate.Limit(cfg.Auth.LoginRate), cfg.Auth.LoginBurst)

	// Initialize handlers.
	baseHandler := api.NewHandler(repo, tokens, cfg.Upload.MaxBytes)
	recorder := api.NewRecorder(repo)
	healthHandler := api.NewHealthHandler(repo)
	userHandler := api.NewUserHandler(baseHandler)
	analysisHandler := api.NewAnalysisHandler(baseHandler, recorder)
	ingestHandler := stream.NewIngestHandler(recorder, sm, cfg.Upload.MaxBytes, cfg.FrontendURL, cfg.IsDevelopment())

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.Logger(os.Stdout, !isatty.IsTerminal(os.Stdout.Fd()), identity.QueryTokenName))
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins()))

	// Public routes.
	healthHandler.RegisterHealth(r)
	r.Handle("/metrics", metrics.Handler())
	userHandler.RegisterPublicRoutes(r, loginLimiter.Middleware)

	// Authenticated routes.
	r.Group(func(r chi.Router) {
		r.Use(identity.Middleware(tokens, repo))
		userHandler.RegisterRoutes(r)
		analysisHandler.RegisterRoutes(r)
		r.Get("/api/v1/ws/ingest", ingestHandler.ServeHTTP)
	})

	// Serve embedded frontend (SPA catch-all).
	r.Handle("/*", web.SPAHandler())

	// Uploads of up to MAX_UPLOAD_BYTES need a generous read timeout and
	// WebSocket ingests hold the connection open, so there is no WriteTimeout.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  5 * time.Minute,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	sweeperDone := worker.StartRevocationSweeper(ctx, repo, cfg.RevocationSweepInterval)

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	// Hijacked WebSocket connections are not tracked by Shutdown.
	sm.CloseAll("server shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}
	<-sweeperDone

	slog.Info("Server stopped successfully")
}
