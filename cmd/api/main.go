//	@title			nicevod upload API
//	@version		1.0
//	@description	File uploads to object storage with per-user quotas, plus a URL shortener.
//
//	@host		localhost:8080
//	@BasePath	/
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				User access token. Format: **Bearer {token}**
//
//	@securityDefinitions.apikey	AdminAuth
//	@in							header
//	@name						Authorization
//	@description				Shortener admin token. Format: **Bearer {token}**

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/nicevod/service/internal/admission"
	"github.com/nicevod/service/internal/auth"
	"github.com/nicevod/service/internal/config"
	"github.com/nicevod/service/internal/db"
	"github.com/nicevod/service/internal/keys"
	"github.com/nicevod/service/internal/logging"
	"github.com/nicevod/service/internal/profile"
	"github.com/nicevod/service/internal/server"
	"github.com/nicevod/service/internal/shortlink"
	"github.com/nicevod/service/internal/storage"
	"github.com/nicevod/service/internal/upload"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat}); err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logging.Sync() }()

	if !cfg.EnvFileLoaded {
		logging.Info("no .env file found, reading from environment")
	}

	ctx := context.Background()

	var pool *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		pool, err = db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			logging.Fatal("database connection failed", zap.Error(err))
		}
		defer pool.Close()

		if cfg.DBMigrate {
			if err := db.Migrate(cfg.DatabaseURL); err != nil {
				logging.Fatal("database migration failed", zap.Error(err))
			}
		}
	} else {
		logging.Warn("DATABASE_URL not set: quota checks and short links are disabled")
	}

	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		logging.Fatal("object storage init failed", zap.Error(err))
	}

	verifier, err := auth.New(ctx, cfg.Auth)
	if err != nil {
		logging.Fatal("identity verifier init failed", zap.Error(err))
	}
	if !cfg.AuthEnforced() {
		logging.Warn("AUTH_MODE=none: uploads trust the declared user_id")
	}

	// Wire dependencies: repository → service → handler
	var usage upload.UsageReader
	if pool != nil {
		usage = profile.NewRepository(pool)
	}
	controller := admission.NewController(cfg.Admission(), keys.NewDeriver(cfg.MaxNameLength))
	uploadSvc := upload.NewService(controller, usage, store, upload.Options{
		PublicBaseURL:        cfg.PublicBaseURL,
		MissingProfileAsZero: cfg.MissingProfileAsZero,
	})
	uploadHandler := upload.NewHandler(uploadSvc, upload.HandlerOptions{
		MaxRequestBytes: cfg.MaxRequestBytes,
		AuthEnforced:    cfg.AuthEnforced(),
	})

	var linkHandler *shortlink.Handler
	if pool != nil {
		linkHandler = shortlink.NewHandler(shortlink.NewService(shortlink.NewRepository(pool)))
	}

	r := server.NewRouter(server.Deps{
		Verifier:   verifier,
		Uploads:    uploadHandler,
		Links:      linkHandler,
		AdminToken: cfg.AdminToken,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine; wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logging.Info("server listening",
			zap.String("addr", srv.Addr),
			zap.String("env", cfg.AppEnv),
			zap.String("auth_mode", string(cfg.Auth.Mode)),
			zap.String("storage_driver", cfg.Storage.Driver),
			zap.String("key_strategy", string(cfg.KeyStrategy)),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal("server error", zap.Error(err))
		}
	}()

	<-quit
	logging.Info("shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error("forced shutdown", zap.Error(err))
	}

	logging.Info("server stopped")
}
