package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"annonces-api/internal/config"
	"annonces-api/internal/database"
	"annonces-api/internal/event"
	"annonces-api/internal/handler"
	"annonces-api/internal/middleware"
	"annonces-api/internal/repository"
	"annonces-api/internal/router"
	"annonces-api/internal/service"
	"annonces-api/internal/storage"
)

const maxImageUploadSize = 10 << 20

type App struct {
	server       *http.Server
	db           *database.DB
	cleanupFuncs []func()
}

func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	store, err := storage.New(cfg.StorageURL, cfg.StorageKey, cfg.StorageBucket)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize object storage client: %w", err)
	}

	slog.Info("connecting to PostgreSQL")
	db, err := database.New(context.Background(), cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.EnsureSchema(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure database schema: %w", err)
	}

	pool := db.Pool
	userRepo := repository.NewUserRepository(pool)
	tokenRepo := repository.NewTokenRepository(pool)
	annonceRepo := repository.NewAnnonceRepository(pool)
	auditRepo := repository.NewAuditRepository(pool)
	slog.Info("database ready")

	authService, err := service.NewAuthService(cfg.JWTAccessSecret, cfg.JWTRefreshSecret, cfg.JWTAccessTTL, cfg.JWTRefreshTTL, userRepo, tokenRepo)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize auth service: %w", err)
	}

	if err := authService.EnsureAdmin(context.Background(), cfg.AdminUsername, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to seed admin account: %w", err)
	}

	bus := event.NewBus()
	annonceService := service.NewAnnonceService(annonceRepo, store, bus, cfg.DefaultImageURL)
	moderationService := service.NewModerationService(annonceRepo, annonceService, bus)
	auditService := service.NewAuditService(auditRepo, bus)

	authMiddleware := middleware.NewAuthMiddleware(authService)
	appRouter := router.New(cfg, authMiddleware, router.Handlers{
		Auth:    handler.NewAuthHandler(authService),
		Annonce: handler.NewAnnonceHandler(annonceService, maxImageUploadSize),
		Admin:   handler.NewAdminHandler(moderationService, annonceService, auditService),
	})

	backgroundCtx, backgroundCancel := context.WithCancel(context.Background())
	go auditService.Run(backgroundCtx)
	go purgeRevokedTokens(backgroundCtx, tokenRepo)

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      appRouter,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  cfg.ServerIdleTimeout,
	}

	return &App{
		server: server,
		db:     db,
		cleanupFuncs: []func(){
			backgroundCancel,
			db.Close,
		},
	}, nil
}

func (a *App) Run() error {
	go func() {
		slog.Info("server starting", "addr", a.server.Addr)
		if serveErr := a.server.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			slog.Error("server failed", "error", serveErr)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	for _, cleanup := range a.cleanupFuncs {
		cleanup()
	}

	slog.Info("server stopped")
	return nil
}

// purgeRevokedTokens trims expired denylist rows hourly so the table stays
// bounded by the refresh TTL.
func purgeRevokedTokens(ctx context.Context, tokens *repository.TokenRepository) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			purged, err := tokens.PurgeExpired(ctx)
			if err != nil {
				slog.Error("failed to purge expired token revocations", "error", err)
				continue
			}
			if purged > 0 {
				slog.Info("purged expired token revocations", "count", purged)
			}
		}
	}
}
