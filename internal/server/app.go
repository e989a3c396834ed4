// Package server assembles and runs the Pitchside HTTP server: database and
// migrations, redis-backed leagues cache, authentication services, routes,
// and graceful shutdown.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pitchside/pitchside/internal/cryptox"
	"github.com/pitchside/pitchside/internal/logging"
	"github.com/pitchside/pitchside/internal/server/config"
	"github.com/pitchside/pitchside/internal/server/httpapi"
	"github.com/pitchside/pitchside/internal/server/leagues"
	"github.com/pitchside/pitchside/internal/server/metrics"
	"github.com/pitchside/pitchside/internal/server/oauth"
	"github.com/pitchside/pitchside/internal/server/repositories/repomanager"
	"github.com/pitchside/pitchside/internal/server/services"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config  *config.Config
	logger  logging.Logger
	repos   repomanager.RepositoryManager
	redis   *redis.Client
	handler http.Handler
}

func NewApp(cfg *config.Config) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	rm, err := repomanager.NewPostgresRepositoryManager(cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	cipher, err := cryptox.New(cfg.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("cipher init error: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})

	verifier := oauth.NewGoogleVerifier(cfg.GoogleTokenInfoURL)
	authService := services.NewAuthService(
		rm.Users(), cipher, verifier,
		[]byte(cfg.JWTSecret), cfg.TokenValidityDuration,
		logger.With("component", "auth"),
	)
	leaguesService := leagues.NewService(
		redisClient, cfg.LeaguesAPIURL, cfg.LeaguesAPIKey, cfg.LeaguesCacheTTL,
		logger.With("component", "leagues"),
	)

	m := metrics.New()
	handlers := httpapi.NewHandlers(authService, leaguesService, logger.With("component", "http"))
	router := httpapi.NewRouter(handlers, m, []byte(cfg.JWTSecret), cfg.AllowedOrigins)

	return &App{
		config:  cfg,
		logger:  logger,
		repos:   rm,
		redis:   redisClient,
		handler: router,
	}, nil
}

// Run serves until the context is cancelled or SIGINT/SIGTERM/SIGQUIT
// arrives, then shuts down gracefully.
func (app *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	app.initSignalHandler(cancel)

	srv := &http.Server{
		Addr:    app.config.EndpointAddr,
		Handler: app.handler,
	}

	errCh := make(chan error, 1)
	go func() {
		app.logger.Info(ctx, "starting http server", "addr", app.config.EndpointAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server error: %w", err)
	case <-ctx.Done():
	}

	app.logger.Info(ctx, "shutting down")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		app.logger.Error(ctx, "http shutdown error", "error", err)
	}
	if err := app.redis.Close(); err != nil {
		app.logger.Error(ctx, "redis close error", "error", err)
	}
	if err := app.repos.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "error", err)
	}

	return nil
}

func (app *App) initSignalHandler(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancel()
	}()
}
