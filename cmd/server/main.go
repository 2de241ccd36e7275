package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"bank-ledger/internal/auth"
	"bank-ledger/internal/config"
	"bank-ledger/internal/export"
	apphttp "bank-ledger/internal/http"
	"bank-ledger/internal/repository/sqlite"
	"bank-ledger/internal/service"
	"bank-ledger/internal/storage"
)

func main() {
	cfg, err := config.Load(".")
	if err != nil {
		logrus.Fatalf("load config: %v", err)
	}
	logger := newLogger(cfg)

	if strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
		logger.Fatalf("auth jwt secret is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		logger.Fatalf("open database: %v", err)
	}
	defer db.Close()

	userRepo := sqlite.NewUserRepository(db)
	txRepo := sqlite.NewTransactionRepository(db)
	if err := sqlite.Init(ctx, userRepo, txRepo); err != nil {
		logger.Fatalf("init database: %v", err)
	}

	exporter, err := buildExporter(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("setup export: %v", err)
	}

	tokenTTL := time.Duration(cfg.Auth.TokenTTLMinutes) * time.Minute
	ledger := service.NewLedgerService(
		userRepo,
		txRepo,
		auth.NewPasswordHasher(cfg.Auth.BcryptCost),
		exporter,
		tokenTTL,
		logger,
	)
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, tokenTTL)

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	apphttp.NewHandler(ledger, tokens, logger).RegisterRoutes(router)

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}

	go func() {
		logger.Infof("listening on %s (db %s)", cfg.Server.Addr, cfg.Database.Path)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}

	logger.Info("bye")
}

func newLogger(cfg config.Config) *logrus.Logger {
	logger := logrus.New()
	if cfg.IsDevelopment() {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		logger.SetLevel(logrus.DebugLevel)
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetLevel(logrus.InfoLevel)
	}
	return logger
}

// buildExporter enables s3:// destinations only when a bucket is configured. That bucket
// also serves destinations written as s3:///key.
func buildExporter(ctx context.Context, cfg config.Config, logger *logrus.Logger) (*export.Exporter, error) {
	if cfg.Storage.Bucket == "" {
		logger.Info("object storage disabled; exports are written to local files")
		return export.NewExporter(cfg.Export.Dir, nil, ""), nil
	}

	store, err := storage.NewS3ServiceFromConfig(ctx, storage.S3Options{
		Region:   cfg.Storage.Region,
		Endpoint: cfg.Storage.Endpoint,
		Profile:  cfg.AWS.Profile,
	})
	if err != nil {
		return nil, err
	}
	logger.Infof("using s3 bucket %s (region %s)", cfg.Storage.Bucket, cfg.Storage.Region)
	return export.NewExporter(cfg.Export.Dir, store, cfg.Storage.Bucket), nil
}
