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

	"github.com/darecoin/backend/internal/admin"
	"github.com/darecoin/backend/internal/api"
	"github.com/darecoin/backend/internal/config"
	"github.com/darecoin/backend/internal/database"
	"github.com/darecoin/backend/internal/expiry"
	"github.com/darecoin/backend/internal/migrations"
	"github.com/darecoin/backend/internal/payment"
	"github.com/darecoin/backend/internal/redis"
	"github.com/darecoin/backend/internal/ws"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if cfg.MigrateOnStart {
		log.Println("↗ Running DB migrations on startup...")
		if err := migrations.RunMigrations(cfg.DatabaseURL); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
	}

	// Admin overrides stored in the database win over env defaults
	if err := admin.ApplyRuntimeConfigToConfig(db, cfg); err != nil {
		log.Printf("[CONFIG] Runtime config not applied: %v", err)
	}

	rdb, err := redis.Connect(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer rdb.Close()

	// Razorpay client (if configured); otherwise MOCK_MODE decides whether purchases work
	if client := payment.NewClient(cfg, rdb); client != nil {
		payment.SetDefault(client)
		log.Printf("[PAYMENT] Razorpay client initialized (currency=%s, price=%s)", cfg.PaymentCurrency, cfg.DRCPrice)
	} else if cfg.MockMode {
		log.Printf("[PAYMENT] MOCK_MODE enabled - purchases are credited without a provider")
	}

	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		log.Fatalf("Failed to create upload dir %s: %v", cfg.UploadDir, err)
	}

	// Notification fan-out and background workers
	wsOrigin := cfg.FrontendURL
	if cfg.Environment == "development" {
		wsOrigin = ""
	}
	ws.SetAllowedOrigin(wsOrigin)
	ws.StartNotificationSubscriber(ctx, rdb, ws.NotificationHub)
	expiry.StartWorker(ctx, db, rdb, cfg)
	go payment.StartStatusChecker(ctx, db, rdb, cfg, cfg.PaymentCheckMinute)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	router.MaxMultipartMemory = int64(cfg.MaxUploadMB) << 20
	api.SetupRoutes(router, db, rdb, cfg)

	port := cfg.Port
	if port == "" {
		port = "5000"
	}
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Starting DareCoin server on port %s", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}
	log.Println("Server exited")
}
