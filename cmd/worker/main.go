package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"zkbridge/internal/agent"
	"zkbridge/internal/config"
	"zkbridge/internal/device"
	"zkbridge/internal/metrics"
	"zkbridge/internal/queue"
	"zkbridge/internal/records"
	"zkbridge/internal/store"
)

// Worker polls the configured terminals on a fixed cadence and also serves
// on-demand sync jobs published by the API. Each cycle syncs the terminal
// directory into the store, then ingests recent punches; the store's
// uniqueness constraint makes re-ingestion idempotent.
func main() {
	cfg := config.Load()

	logger, _ := zap.NewProduction()
	if cfg.Env == "dev" {
		logger, _ = zap.NewDevelopment()
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("db connect failed", zap.Error(err))
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "zkbridge:sync")
	}

	dialer := agent.New(cfg.AgentURL)
	guard := device.NewGuard(dialer, cfg.DevicePort, cfg.ConnectTimeout)
	dev := device.NewService(guard, cfg.Retention())
	syncSvc := records.NewService(records.NewRepository(db.Client), dev, cfg.Retention())

	// Metrics listener so the poller counters are scrapeable.
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(":"+cfg.MetricsPort, mux); err != nil && err != http.ErrServerClosed {
			logger.Warn("metrics listener failed", zap.Error(err))
		}
	}()

	jobs, err := q.Consume(ctx)
	if err != nil {
		logger.Fatal("queue consume init failed", zap.Error(err))
	}

	logger.Info("worker started",
		zap.Strings("terminals", cfg.Terminals),
		zap.Duration("poll_interval", cfg.PollInterval),
	)

	ticker := time.NewTicker(cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("worker stopped")
			return
		case <-ticker.C:
			for _, addr := range cfg.Terminals {
				pollTerminal(ctx, logger, syncSvc, addr)
			}
		case msg, open := <-jobs:
			if !open {
				logger.Info("job channel closed")
				return
			}
			if msg.Type != "sync" {
				continue
			}
			pollTerminal(ctx, logger, syncSvc, string(msg.Body))
		}
	}
}

// pollTerminal runs one sync+ingest cycle against a single terminal. A
// failing terminal is logged and skipped; the loop keeps serving the rest of
// the fleet.
func pollTerminal(ctx context.Context, logger *zap.Logger, syncSvc *records.Service, addr string) {
	start := time.Now()

	synced, err := syncSvc.SyncUsers(ctx, addr)
	if err != nil {
		metrics.DeviceErrors.WithLabelValues(addr, "sync_users").Inc()
		logger.Warn("user sync failed", zap.String("terminal", addr), zap.Error(err))
		return
	}

	fetched, stored, err := syncSvc.IngestTerminal(ctx, addr)
	if err != nil {
		metrics.DeviceErrors.WithLabelValues(addr, "ingest").Inc()
		logger.Warn("ingest failed", zap.String("terminal", addr), zap.Error(err))
		return
	}

	metrics.PunchesIngested.WithLabelValues(addr).Add(float64(stored))
	metrics.SyncDuration.WithLabelValues(addr).Observe(time.Since(start).Seconds())

	logger.Info("terminal synced",
		zap.String("terminal", addr),
		zap.Int("users", synced),
		zap.Int("punches_fetched", fetched),
		zap.Int("punches_stored", stored),
		zap.Duration("took", time.Since(start)),
	)
}
