package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"go-identity/internal/config"
	"go-identity/internal/handler"
	"go-identity/internal/metrics"
	"go-identity/internal/middleware"
	"go-identity/internal/notify"
	"go-identity/internal/router"
	"go-identity/internal/service"
)

const shutdownTimeout = 10 * time.Second

// Services is the wired service layer. The CLI uses it without the HTTP
// server.
type Services struct {
	Hasher  *service.PasswordHasher
	Ledger  *service.RevocationLedger
	Issuer  *service.TokenIssuer
	Resets  *service.ResetService
	Auth    *service.AuthService
	Profile *service.ProfileService
	Pruner  *service.Pruner
	Metrics *metrics.Metrics
}

type App struct {
	server       *http.Server
	services     *Services
	cleanupFuncs []func()
}

// NewServices builds the service graph on top of the given stores.
func NewServices(cfg *config.Config, stores *Stores, log *slog.Logger) (*Services, func(), error) {
	hasher, err := service.NewPasswordHasher(cfg.PasswordHasher)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize password hasher: %w", err)
	}

	m := metrics.New()
	ledger := service.NewRevocationLedger(stores.Revocations)
	issuer := service.NewTokenIssuer(service.TokenIssuerConfig{
		Secret:     cfg.JWTSecret,
		Issuer:     cfg.JWTIssuer,
		AccessTTL:  cfg.JWTAccessTTL,
		RefreshTTL: cfg.JWTRefreshTTL,
	}, ledger, stores.Users)
	resets := service.NewResetService(stores.Resets, hasher, cfg.ResetTokenTTL)

	var (
		notifier service.NotificationSender
		closer   = func() {}
	)
	switch cfg.NotifyDriver {
	case config.NotifyDriverKafka:
		kafka := notify.NewKafkaSender(cfg.KafkaBrokers, cfg.KafkaResetTopic, cfg.ResetURLBase, log)
		notifier = kafka
		closer = func() {
			if err := kafka.Close(); err != nil {
				slog.Warn("closing kafka writer", "error", err)
			}
		}
	default:
		notifier = notify.NewLogSender(cfg.ResetURLBase, log)
	}

	auth := service.NewAuthService(stores.Users, hasher, issuer, ledger, resets, notifier, m, service.AuthOptions{
		MaxLoginAttempts:               cfg.LoginMaxAttempts,
		LockoutDuration:                cfg.LoginLockout,
		RevokeSessionsOnPasswordChange: cfg.RevokeSessionsOnPasswordChange,
	}, log)

	return &Services{
		Hasher:  hasher,
		Ledger:  ledger,
		Issuer:  issuer,
		Resets:  resets,
		Auth:    auth,
		Profile: service.NewProfileService(stores.Users, stores.Orgs, log),
		Pruner:  service.NewPruner(ledger, resets, cfg.PruneInterval, m, log),
		Metrics: m,
	}, closer, nil
}

func New(ctx context.Context, cfg *config.Config, log *slog.Logger) (*App, error) {
	stores, err := OpenStores(ctx, cfg)
	if err != nil {
		return nil, err
	}

	services, closeNotifier, err := NewServices(cfg, stores, log)
	if err != nil {
		stores.Close()
		return nil, err
	}

	authMiddleware := middleware.NewAuthMiddleware(services.Issuer)
	appRouter := router.New(cfg, authMiddleware, router.Handlers{
		Auth:    handler.NewAuthHandler(services.Auth, log),
		Profile: handler.NewProfileHandler(services.Profile),
		Health:  stores.Health,
	}, services.Metrics)

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           appRouter,
		ReadHeaderTimeout: cfg.ServerReadHeaderTimeout,
		WriteTimeout:      cfg.ServerWriteTimeout,
		IdleTimeout:       cfg.ServerIdleTimeout,
	}

	return &App{
		server:   server,
		services: services,
		cleanupFuncs: []func(){
			closeNotifier,
			stores.Close,
		},
	}, nil
}

// Run serves until ctx is cancelled, then shuts the server down and
// releases the stores.
func (a *App) Run(ctx context.Context) error {
	pruneCtx, stopPruner := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.services.Pruner.Run(pruneCtx)
	}()

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			runErr = fmt.Errorf("server failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("graceful shutdown failed: %w", err)
	}

	stopPruner()
	wg.Wait()

	for _, cleanup := range a.cleanupFuncs {
		cleanup()
	}

	slog.Info("server stopped")
	return runErr
}
