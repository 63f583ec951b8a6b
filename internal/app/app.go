package app

import (
	"context"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/parleychat/parley-server/internal/auth"
	"github.com/parleychat/parley-server/internal/config"
	"github.com/parleychat/parley-server/internal/core"
	"github.com/parleychat/parley-server/internal/notify"
	"github.com/parleychat/parley-server/internal/push"
	"github.com/parleychat/parley-server/internal/store"
	"github.com/parleychat/parley-server/internal/store/sqlite"
	transporthttp "github.com/parleychat/parley-server/internal/transport/http"
)

// App wires together core, notification and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	hub             *core.Hub
	store           store.Store
	log             *zerolog.Logger
}

// identityVerifier adapts the auth service to the hub's identify handshake.
type identityVerifier struct {
	auth *auth.Service
}

func (v identityVerifier) Verify(token string) (int64, string, error) {
	claims, err := v.auth.ValidateToken(token)
	if err != nil {
		return 0, "", err
	}
	return claims.UserID, claims.Username, nil
}

// New constructs the application with provided configuration.
func New(cfg config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      24 * time.Hour,
	}
	authService := auth.NewService(st, jwtConfig)

	hub := core.NewHub(st, identityVerifier{auth: authService}, nil, logger)

	if cfg.Push.Enabled {
		provider := push.NewFCMClient(cfg.Push.Endpoint, cfg.Push.ServerKey, cfg.Push.Timeout)
		dispatcher := push.NewDispatcher(provider, st, logger)
		engine := notify.NewEngine(hub.Presence(), st, st, dispatcher, logger)
		hub.SetNotifier(engine)
		logger.Info().Str("endpoint", cfg.Push.Endpoint).Msg("push notifications enabled")
	} else {
		logger.Info().Msg("push notifications disabled")
	}

	server := transporthttp.NewServer(hub, authService, st, cfg, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		hub:             hub,
		store:           st,
		log:             logger,
	}, nil
}

// Run rehydrates caches, starts the hub and the HTTP server, and blocks
// until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	rehydrateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	if err := a.hub.Rehydrate(rehydrateCtx); err != nil {
		cancel()
		a.cleanup()
		return fmt.Errorf("rehydrate caches: %w", err)
	}
	cancel()

	go a.hub.Run(ctx)

	serverErr := make(chan error, 1)
	go func() {
		if err := a.server.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		a.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.cleanup()
			return err
		}

		a.cleanup()
		return <-serverErr
	}
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
