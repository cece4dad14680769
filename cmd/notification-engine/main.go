// cmd/notification-engine/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"notification-engine/internal/common/clock"
	"notification-engine/internal/common/config"
	"notification-engine/internal/common/database"
	"notification-engine/internal/common/logger"
	"notification-engine/internal/common/observability"
	"notification-engine/internal/common/storage"
	"notification-engine/internal/dispatch"
	"notification-engine/internal/ledger"
	"notification-engine/internal/remote"
	"notification-engine/internal/scheduler"
	"notification-engine/internal/settings"
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
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	zapLog := logger.New("info", "console")
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting notification engine...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init durable storage ---
	var (
		store       storage.Storage
		redisClient *database.RedisClient
	)
	if cfg.Storage.Backend == "redis" || cfg.Notifications.DedupRegistry == "redis" {
		err = retryWithBackoff(func() error {
			var err error
			redisClient, err = database.NewRedis(cfg.Database.Redis)
			if err != nil {
				return err
			}
			return redisClient.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Redis connection")

		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer redisClient.Close()
		zapLog.Info("Redis connected successfully")
	}

	switch cfg.Storage.Backend {
	case "redis":
		store = storage.NewRedisStorage(redisClient.Client, cfg.Storage.KeyPrefix)
	default:
		store = storage.NewMemoryStorage()
		zapLog.Warn("using in-memory storage, snapshots will not survive restart")
	}

	// --- Init remote sync ---
	var (
		pg       *database.PostgresClient
		syncer   remote.Syncer
		contacts dispatch.ContactResolver
	)
	if cfg.Sync.Enabled {
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

		syncOpts := []remote.Option{remote.WithTable(cfg.Sync.Table)}

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
			zapLog.Info("Elasticsearch connected successfully")
			syncOpts = append(syncOpts, remote.WithElasticsearchMirror(esClient, cfg.Database.Elasticsearch.Index))
		}

		syncer = remote.NewAdapter(pg.DB, log, syncOpts...)
		contacts = remote.NewContactStore(pg.DB)
	}

	// --- Init engine components ---
	clk := clock.New()

	settingsStore := settings.NewStore(store, log)
	settingsStore.Load(ctx)

	led := ledger.New(store, log)
	led.Load(ctx)

	var inflight dispatch.InFlightRegistry
	inflightTTL := config.GetDuration(cfg.Notifications.InFlightTTL)
	if cfg.Notifications.DedupRegistry == "redis" {
		inflight = dispatch.NewRedisRegistry(redisClient.Client, cfg.Storage.KeyPrefix, inflightTTL, log)
	} else {
		inflight = dispatch.NewMemoryRegistry(inflightTTL)
	}

	sender, err := dispatch.ResolveSender(ctx, cfg.Senders, contacts, log)
	if err != nil {
		zapLog.Fatal("sender resolution failed", zap.Error(err))
	}

	dispatcher := dispatch.NewDispatcher(
		settingsStore, led, inflight, sender, syncer, clk, log,
		dispatch.WithAutoDismiss(config.GetDuration(cfg.Notifications.AutoDismiss)),
		dispatch.WithObservability(obs),
	)

	engineOpts := []scheduler.Option{}
	if syncer != nil {
		engineOpts = append(engineOpts, scheduler.WithSyncer(syncer))
	}
	engine := scheduler.NewEngine(clk, settingsStore, dispatcher, log, engineOpts...)

	zapLog.Info("Notification engine initialized",
		zap.String("storage", cfg.Storage.Backend),
		zap.String("capability", string(sender.Capability())),
		zap.Bool("sync", cfg.Sync.Enabled),
	)

	// --- Metrics and pprof endpoint ---
	go func() {
		http.Handle("/metrics", promhttp.Handler())
		zapLog.Info("Metrics server listening", zap.String("address", cfg.Metrics.Address))
		if err := http.ListenAndServe(cfg.Metrics.Address, nil); err != nil {
			zapLog.Error("metrics server failed", zap.Error(err))
		}
	}()

	// --- Wait for shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLog.Info("Shutting down notification engine...")
	engine.CancelAllNotifications(ctx)
	zapLog.Info("Notification engine stopped")
}
