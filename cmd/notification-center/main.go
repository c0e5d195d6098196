// cmd/notification-center/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"notification-center/internal/announcer"
	"notification-center/internal/archive"
	"notification-center/internal/center"
	"notification-center/internal/common/aws"
	"notification-center/internal/common/config"
	"notification-center/internal/common/database"
	commonhttp "notification-center/internal/common/http"
	"notification-center/internal/common/logger"
	"notification-center/internal/common/observability"
	"notification-center/internal/delivery"
	"notification-center/internal/kvstorage"
	"notification-center/internal/store"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting notification center...",
		zap.String("environment", cfg.App.Environment),
		zap.String("version", cfg.App.Version),
	)

	obs := observability.New("notification-center")
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var rdb *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return rdb.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rdb.Close()
	zapLog.Info("Redis connected successfully")

	// --- Core: store ---
	st := store.New(pg.DB, rdb.Client, log, obs)
	defer st.Cleanup()

	// --- Optional: archive ---
	if cfg.Archive.Enabled {
		var esClient *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping()
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")

		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		zapLog.Info("Elasticsearch connected successfully")

		arch := archive.New(esClient.Client, cfg.Archive.Index, log)
		detach := arch.Attach(st)
		defer detach()
	}

	// --- Optional: out-of-band delivery ---
	if cfg.Delivery.EmailEnabled || cfg.Delivery.SMSEnabled {
		var email delivery.EmailSender
		var sms delivery.SMSSender

		if cfg.Delivery.EmailEnabled {
			sesClient, err := aws.NewSESClient(ctx, cfg.Delivery.AWSRegion)
			if err != nil {
				zapLog.Fatal("ses client failed", zap.Error(err))
			}
			email = sesClient
		}
		if cfg.Delivery.SMSEnabled {
			snsClient, err := aws.NewSNSClient(ctx, cfg.Delivery.AWSRegion)
			if err != nil {
				zapLog.Fatal("sns client failed", zap.Error(err))
			}
			sms = snsClient
		}

		dispatcher := delivery.New(pg.DB, email, sms, cfg.Delivery, log)
		detach := dispatcher.Attach(st)
		defer detach()
		zapLog.Info("Out-of-band delivery attached",
			zap.Bool("email", cfg.Delivery.EmailEnabled),
			zap.Bool("sms", cfg.Delivery.SMSEnabled),
		)
	}

	// --- Announcer ---
	var updates center.UpdateSource
	if cfg.Announcer.Enabled {
		feedClient := commonhttp.NewClient(config.GetDuration(cfg.Announcer.FeedTimeoutMS))
		storage := kvstorage.NewRedisStorage(rdb.Client, "notification-center")
		updates = announcer.New(storage, feedClient, cfg.Announcer, log)
	}

	// --- Center ---
	// The session user comes from the environment; the center stays
	// inactive without one (store, delivery and archive still run for
	// events produced by other clients).
	userID := os.Getenv("NOTIFICATION_USER_ID")
	users := center.UserProviderFunc(func() (string, bool) {
		return userID, userID != ""
	})

	sessionCache := kvstorage.NewMemoryStorage()
	checkInterval := time.Duration(cfg.Announcer.IntervalMinutes) * time.Minute
	ctr := center.New(st, updates, sessionCache, users, cfg.Center, checkInterval, log)
	defer ctr.Close()

	if err := ctr.Initialize(ctx); err != nil {
		zapLog.Error("center initialization failed", zap.Error(err))
	}

	// Drain toasts so the buffer never fills; a UI would consume these.
	go func() {
		for n := range ctr.Toasts() {
			zapLog.Info("toast", zap.String("id", n.ID), zap.String("title", n.Title))
		}
	}()

	// --- Health & Metrics Server ---
	go func() {
		http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "healthy",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "ready",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.Handle("/metrics", promhttp.Handler())
		zapLog.Info("Health/Metrics server listening", zap.String("address", cfg.Metrics.Address))
		if err := http.ListenAndServe(cfg.Metrics.Address, nil); err != nil {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping notification center...")
	zapLog.Info("Notification center stopped gracefully")
}
