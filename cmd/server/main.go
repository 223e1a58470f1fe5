package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	h "github.com/gorilla/handlers"
	"github.com/rs/zerolog"
	"github.com/reviewly/agencyhub-api/internal/accounts"
	"github.com/reviewly/agencyhub-api/internal/config"
	"github.com/reviewly/agencyhub-api/internal/handlers"
	"github.com/reviewly/agencyhub-api/internal/invitations"
	"github.com/reviewly/agencyhub-api/internal/middleware"
	"github.com/reviewly/agencyhub-api/internal/migration"
	"github.com/reviewly/agencyhub-api/internal/repository"
	"github.com/reviewly/agencyhub-api/internal/routes"

	_ "github.com/lib/pq" // PostgreSQL driver
)

type application struct {
	config *config.Config
	db     *sql.DB
	logger zerolog.Logger
}

func main() {
	// Set up structured, level-based logging.
	consoleWriter := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}
	logger := zerolog.New(consoleWriter).With().Timestamp().Logger()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize database connection.
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to the database")
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to ping database")
	}

	// Run database migrations.
	migration.RunMigrations(cfg.DatabaseURL, logger)

	app := &application{
		config: cfg,
		db:     db,
		logger: logger,
	}

	// Initialize the HTTP router and middleware.
	router := app.initRouter(logger)
	loggedRouter := middleware.LoggingMiddleware(app.logger)(router)
	corsHandler := h.CORS(
		h.AllowedOrigins([]string{"http://localhost:3000"}),
		h.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		h.AllowedHeaders([]string{"Content-Type", "Authorization"}),
		h.AllowCredentials(),
	)(loggedRouter)

	// Start the HTTP server and handle graceful shutdown.
	app.startServer(corsHandler, logger)

	logger.Info().Msg("Application terminated.")
}

// initRouter sets up all HTTP handlers and returns the router.
func (app *application) initRouter(logger zerolog.Logger) http.Handler {
	// Repositories
	userRepo := repository.NewUserRepository(app.db)
	agencyRepo := repository.NewAgencyRepository(app.db)
	membershipRepo := repository.NewMembershipRepository(app.db)
	invitationRepo := repository.NewInvitationRepository(app.db)
	credentialRepo := repository.NewCredentialRepository(app.db)

	// Token hasher; the policy contract is validated again here so a
	// misconfigured deployment refuses to start.
	hasher, err := invitations.NewTokenHasher(
		invitations.HashPolicy(app.config.Invite.TokenHashPolicy),
		app.config.Invite.TokenHashSecret,
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to configure invite token hasher")
	}

	// Services
	accountService := accounts.NewService(app.db, userRepo, agencyRepo, membershipRepo, credentialRepo, logger)
	inviteService := invitations.NewService(app.db, invitationRepo, membershipRepo, hasher, app.config.BaseURL, app.config.Invite.TTL(), logger)

	// Handlers
	authHandler := handlers.NewAuthHandler(accountService, app.config.JWTSecret, logger)
	inviteHandler := handlers.NewInviteHandler(inviteService, agencyRepo, logger)

	return routes.NewRouter(authHandler, inviteHandler, app.config.JWTSecret)
}

// startServer launches the HTTP server and handles graceful shutdown.
func (app *application) startServer(handler http.Handler, logger zerolog.Logger) {
	server := &http.Server{
		Addr:    ":" + app.config.ServerPort,
		Handler: handler,
	}

	// Channel to listen for server errors
	serverErrCh := make(chan error, 1)
	go func() {
		logger.Info().Msgf("Server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- err
		}
	}()

	// Wait for an interrupt signal or a server error.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info().Msgf("Received signal: %s. Shutting down...", sig)
	case err := <-serverErrCh:
		logger.Error().Err(err).Msg("Server error occurred")
	}

	// Gracefully shut down the HTTP server.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	} else {
		logger.Info().Msg("HTTP server shutdown complete.")
	}
}
