// cmd/payments-worker/main.go
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

	"donation-payments/internal/common/aws"
	"donation-payments/internal/common/config"
	"donation-payments/internal/common/database"
	cmnhttp "donation-payments/internal/common/http"
	"donation-payments/internal/common/logger"
	"donation-payments/internal/common/observability"
	"donation-payments/internal/gateway"
	"donation-payments/internal/gateway/status"
	"donation-payments/internal/lock"
	"donation-payments/internal/notify"
	"donation-payments/internal/payments"
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
	var cfg *config.Config
	var err error
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		cfg, err = config.LoadFromFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting payments worker...",
		zap.String("app", cfg.App.Name),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New("payments-worker")
	defer obs.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init Elasticsearch (optional audit mirror) ---
	var auditor *notify.Auditor
	if cfg.Database.Elasticsearch.Enabled {
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
		auditor = notify.NewAuditor(esClient, cfg.Database.Elasticsearch.AuditIndex, log)
		zapLog.Info("Elasticsearch connected successfully")
	}

	// --- Reconciliation engine ---
	store := payments.NewPostgresTransactionStore(pg.DB)
	lookup := payments.NewLookup(store, payments.RetryConfigFromLookup(cfg.Lookup), log)
	reconciler := payments.NewReconciler(lookup, store, log)

	// --- Gateway query clients ---
	queriers := map[status.Provider]payments.StatusQuerier{
		status.ProviderCielo: gateway.NewCieloClient(cfg.Gateways.Cielo, log),
		status.ProviderAsaas: gateway.NewAsaasClient(cfg.Gateways.Asaas, log),
	}
	zapLog.Info("Gateway clients initialized")

	// --- Notification channels ---
	var channels []notify.Channel
	if cfg.Notifications.Email.Enabled {
		sesClient, err := aws.NewSESClient(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			zapLog.Fatal("ses client failed", zap.Error(err))
		}
		channels = append(channels, notify.NewEmailChannel(sesClient, cfg.Notifications.Email.FromEmail))
	}
	if cfg.Notifications.WhatsApp.Enabled {
		httpClient := cmnhttp.NewClient(config.GetDuration(cfg.Notifications.WhatsApp.Timeout))
		channels = append(channels, notify.NewWhatsAppChannel(httpClient, cfg.Notifications.WhatsApp.APIURL, cfg.Notifications.WhatsApp.Token))
	}
	if cfg.Notifications.SMS.Enabled {
		snsClient, err := aws.NewSNSClient(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			zapLog.Fatal("sns client failed", zap.Error(err))
		}
		channels = append(channels, notify.NewSMSChannel(snsClient, cfg.Notifications.SMS.SenderID))
	}
	zapLog.Info("Notification channels initialized", zap.Int("count", len(channels)))

	// --- Dispatch scheduler ---
	dispatcher := notify.NewDispatcher(
		notify.NewPostgresRuleStore(pg.DB),
		notify.NewPostgresCandidateStore(pg.DB),
		notify.NewPostgresLogStore(pg.DB),
		channels,
		log,
	)
	if auditor != nil {
		dispatcher.WithAuditor(auditor)
	}

	scheduler := notify.NewScheduler(
		dispatcher,
		lock.NewRedisMutex(redis.Client, log),
		cfg.Scheduler.LockKey,
		config.GetDuration(cfg.Scheduler.LockTTL),
		log,
	).WithObservability(obs)

	go scheduler.Start(ctx, config.GetDuration(cfg.Scheduler.Interval))
	zapLog.Info("Dispatch scheduler started",
		zap.Duration("interval", config.GetDuration(cfg.Scheduler.Interval)),
		zap.String("lockKey", cfg.Scheduler.LockKey),
	)

	// --- Webhook ingress ---
	mux := http.NewServeMux()
	mux.HandleFunc("/webhooks/", payments.WebhookHandler(reconciler, log))
	mux.HandleFunc("/verify/", payments.VerifyHandler(reconciler, queriers, log))

	// --- Health & Metrics Server ---
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "ready",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{Addr: cfg.Metrics.Address, Handler: mux}
	go func() {
		zapLog.Info("HTTP server listening", zap.String("address", cfg.Metrics.Address))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Error("HTTP server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("HTTP server shutdown failed", zap.Error(err))
	}

	zapLog.Info("Payments worker stopped gracefully")
}
