package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/mwhitfield/saasdash/internal/backup"
	"github.com/mwhitfield/saasdash/internal/database"
	"github.com/mwhitfield/saasdash/internal/email"
	"github.com/mwhitfield/saasdash/internal/logging"
	"github.com/mwhitfield/saasdash/internal/payments"
	"github.com/mwhitfield/saasdash/internal/server"
	"github.com/mwhitfield/saasdash/internal/store"
)

func main() {
	_ = godotenv.Load()

	logger := logging.Setup(os.Getenv("DASH_LOG_LEVEL"), os.Getenv("DASH_LOG_FORMAT"))

	port := os.Getenv("DASH_PORT")
	if port == "" {
		port = "8080"
	}

	dbPath := os.Getenv("DASH_DB_PATH")
	if dbPath == "" {
		dbPath = "saasdash.db"
	}

	baseURL := os.Getenv("DASH_BASE_URL")
	if baseURL == "" {
		baseURL = fmt.Sprintf("http://localhost:%s", port)
	}

	db, err := database.Open(dbPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	emailClient := email.NewClient(
		os.Getenv("DASH_POSTMARK_TOKEN"),
		os.Getenv("DASH_FROM_EMAIL"),
		baseURL,
	)

	cfg := server.Config{
		Stripe: payments.Config{
			SecretKey:         os.Getenv("STRIPE_SECRET_KEY"),
			WebhookSecret:     os.Getenv("STRIPE_WEBHOOK_SECRET"),
			ProPriceID:        os.Getenv("STRIPE_PRO_PRICE_ID"),
			EnterprisePriceID: os.Getenv("STRIPE_ENTERPRISE_PRICE_ID"),
			BaseURL:           baseURL,
		},
		Push: server.PushConfig{
			VAPIDPublicKey:  os.Getenv("DASH_VAPID_PUBLIC_KEY"),
			VAPIDPrivateKey: os.Getenv("DASH_VAPID_PRIVATE_KEY"),
			Subscriber:      "mailto:" + os.Getenv("DASH_FROM_EMAIL"),
		},
		BaseURL:     baseURL,
		EmailClient: emailClient,
	}

	srv := server.New(db, cfg, logger)
	defer srv.AuthManager().Close()

	backupHour, _ := strconv.Atoi(os.Getenv("DASH_BACKUP_HOUR"))
	retentionDays, _ := strconv.Atoi(os.Getenv("DASH_BACKUP_RETENTION_DAYS"))
	backupMgr := backup.NewManager(backup.Config{
		S3: backup.S3Config{
			Endpoint:  os.Getenv("DASH_S3_ENDPOINT"),
			Bucket:    os.Getenv("DASH_S3_BUCKET"),
			Region:    os.Getenv("DASH_S3_REGION"),
			AccessKey: os.Getenv("DASH_S3_ACCESS_KEY"),
			SecretKey: os.Getenv("DASH_S3_SECRET_KEY"),
		},
		DBPath:        dbPath,
		Passphrase:    os.Getenv("DASH_BACKUP_PASSPHRASE"),
		Hour:          backupHour,
		RetentionDays: retentionDays,
	}, db, store.NewBackupStore(db), logger.With("component", "backup"))

	httpServer := &http.Server{
		Addr:              ":" + port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()
	backupMgr.Start(cleanupCtx)

	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n, err := srv.SessionStore().DeleteExpired(); err != nil {
					slog.Error("cleanup expired sessions", "error", err)
				} else if n > 0 {
					slog.Info("cleaned up expired sessions", "count", n)
				}
				srv.RateLimiter().Cleanup()
			case <-cleanupCtx.Done():
				return
			}
		}
	}()

	go func() {
		slog.Info("saasdash starting", "addr", ":"+port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down")
	cleanupCancel()
	backupMgr.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
