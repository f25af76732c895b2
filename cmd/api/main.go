package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ArowuTest/study-profile-backend/api/routes"
	"github.com/ArowuTest/study-profile-backend/internal/bootstrap"
	"github.com/ArowuTest/study-profile-backend/internal/config"
	"github.com/ArowuTest/study-profile-backend/internal/handlers"
	"github.com/ArowuTest/study-profile-backend/pkg/jwt"
	"github.com/ArowuTest/study-profile-backend/pkg/logger"
	"go.uber.org/zap"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		log.Fatalf("Failed to load .env: %v", err)
	}

	// Load configuration
	cfg, err := config.Load(config.GetEnv("CONFIG_FILE", ""))
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zl, err := logger.New(cfg.LogLevel, cfg.Development)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, cleanup, err := bootstrap.OpenStore(ctx, cfg, zl)
	if err != nil {
		zl.Fatal("Failed to open document store", zap.String("driver", cfg.Store.Driver), zap.Error(err))
	}
	defer cleanup(context.Background())

	study := bootstrap.NewStudy(cfg, store, zl)

	var pinger handlers.Pinger
	if store.Ping != nil {
		pinger = pingFunc(store.Ping)
	}
	deps := routes.HandlerDependencies{
		StudyHandler:  handlers.NewStudyHandler(study.Service, zl.Named("http")),
		HealthHandler: handlers.NewHealthHandler(pinger),
	}
	if cfg.Auth.JWTSecret != "" {
		deps.TokenVerifier = jwt.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	}
	if cfg.Debug.Enabled {
		zl.Warn("debug endpoints enabled", zap.Bool("tokenRequired", cfg.Debug.TokenHash != ""))
	}

	router := routes.SetupRouter(cfg, deps, zl)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Run server in a goroutine so that it doesn't block
	go func() {
		zl.Info("Server starting", zap.String("port", cfg.Server.Port), zap.String("store", cfg.Store.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Error("listen failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	zl.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Error("Server forced to shutdown", zap.Error(err))
		os.Exit(1)
	}

	zl.Info("Server exiting")
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }
