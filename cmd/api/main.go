// server/cmd/api/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"krishisetu-api-server/config"
	"krishisetu-api-server/internal/api/routes"
	"krishisetu-api-server/internal/database"
	"krishisetu-api-server/internal/ledger"
	"krishisetu-api-server/internal/logger"
	"krishisetu-api-server/internal/s3"
	"krishisetu-api-server/internal/socket"
	"krishisetu-api-server/internal/tracing"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	// 1. Load configuration (.env trước, rồi config.yaml + biến môi trường)
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Log.WithError(err).Warn("could not read .env")
	}
	cfg, err := config.LoadConfig("./config")
	if err != nil {
		logger.Log.Fatalf("Could not load config: %v", err)
	}
	logger.Init(cfg.Log.AppName, cfg.Log.Level)
	if cfg.JWT.Secret == "" {
		logger.Log.Fatal("JWT_SECRET must be set")
	}
	if logger.Log.IsLevelEnabled(logrus.DebugLevel) {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Tracing
	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing.Endpoint, cfg.Tracing.ServiceName)
	if err != nil {
		logger.Log.Fatalf("Failed to initialize tracing: %v", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Log.WithError(err).Warn("tracer shutdown")
		}
	}()

	// 3. Storage
	var (
		facilities ledger.FacilityStore
		users      database.UserRepository
	)
	switch cfg.Storage.Driver {
	case "memory":
		logger.Log.Warn("Using in-memory storage; data is lost on restart")
		facilities = ledger.NewMemoryStore()
		users = database.NewMemoryUserStore()
	default:
		client, db, err := database.Connect(ctx, cfg.Mongo)
		if err != nil {
			logger.Log.Fatalf("Failed to connect to MongoDB: %v", err)
		}
		defer func() {
			if err := client.Disconnect(context.Background()); err != nil {
				logger.Log.WithError(err).Warn("mongo disconnect")
			}
		}()
		if err := database.EnsureIndexes(ctx, db); err != nil {
			logger.Log.Fatalf("Failed to create indexes: %v", err)
		}
		facilities = database.NewFacilityStore(db)
		users = database.NewUserStore(db)
	}

	if err := database.SeedAdmin(ctx, users, cfg.Seed); err != nil {
		logger.Log.Fatalf("Failed to seed admin: %v", err)
	}

	deps := routes.Dependencies{
		Config: cfg,
		Ledger: ledger.New(facilities, ledger.Options{MaxRetries: cfg.Ledger.MaxRetries}),
		Users:  users,
		Hub:    socket.NewHub(),
	}

	// 4. S3 (tùy chọn)
	if cfg.S3.Bucket != "" {
		uploader, err := s3.NewUploader(ctx, cfg.S3)
		if err != nil {
			logger.Log.Fatalf("Failed to create S3 uploader: %v", err)
		}
		deps.Uploader = uploader
	} else {
		logger.Log.Warn("S3 bucket not configured; image uploads are disabled")
	}

	// 5. HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: routes.SetupRouter(deps),
	}

	go func() {
		logger.Log.Infof("Starting API server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatalf("Failed to run server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.WithError(err).Error("Server forced to shutdown")
	}
}
