package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Aidin1998/kycengine/internal/compliance/onboarding"
	"github.com/Aidin1998/kycengine/internal/compliance/scoring"
	"github.com/Aidin1998/kycengine/internal/compliance/screening"
	"github.com/Aidin1998/kycengine/internal/compliance/storage"
	"github.com/Aidin1998/kycengine/internal/compliance/workflow"
	"github.com/Aidin1998/kycengine/internal/infrastructure/config"
	"github.com/Aidin1998/kycengine/internal/infrastructure/database"
	"github.com/Aidin1998/kycengine/internal/infrastructure/lock"
	"github.com/Aidin1998/kycengine/internal/infrastructure/ratelimit"
	"github.com/Aidin1998/kycengine/internal/infrastructure/telemetry"
	"github.com/Aidin1998/kycengine/internal/messaging"
	"github.com/Aidin1998/kycengine/internal/scheduler"
	"github.com/Aidin1998/kycengine/internal/server"
	"github.com/Aidin1998/kycengine/pkg/clock"
	"github.com/Aidin1998/kycengine/pkg/logger"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "path to the configuration file")
	flag.Parse()

	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	bootLogger, err := logger.NewLogger("info", "json")
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	manager := config.NewManager(bootLogger)
	var paths []string
	if *configPath != "" {
		paths = append(paths, *configPath)
	}
	if err := manager.Load(paths...); err != nil {
		bootLogger.Fatal("Failed to load configuration", zap.Error(err))
	}
	defer manager.Close()
	cfg := manager.Get()

	zapLogger, err := logger.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		bootLogger.Fatal("Failed to create logger", zap.Error(err))
	}
	defer zapLogger.Sync()

	if err := run(manager, cfg, zapLogger); err != nil {
		zapLogger.Fatal("Engine stopped with error", zap.Error(err))
	}
	zapLogger.Info("Server exited properly")
}

func run(manager *config.Manager, cfg *config.Config, zapLogger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	sugar := zapLogger.Sugar()

	shutdownTelemetry, err := telemetry.Setup(ctx, cfg.Tracing, os.Stdout)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			zapLogger.Error("Failed to shut down telemetry", zap.Error(err))
		}
	}()

	db, err := database.Open(ctx, cfg.Database, zapLogger)
	if err != nil {
		return err
	}
	database.MonitorPool(ctx, db, cfg.Database.Driver, cfg.Tracing.MetricInterval, zapLogger)

	store := storage.NewStore(db, sugar)
	if cfg.Database.AutoMigrate {
		if err := store.Migrate(ctx); err != nil {
			return err
		}
	}
	if cfg.Database.Seed {
		if _, err := store.Seed(ctx); err != nil {
			return err
		}
	}

	var locker lock.Locker = lock.NewLocal()
	if cfg.Redis.Enabled {
		client, err := database.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer client.Close()
		locker = lock.NewRedis(client, cfg.Redis.LockTTL, sugar.Named("lock"))
	}

	var producer messaging.Producer = messaging.NopProducer{}
	if cfg.Kafka.Enabled {
		kafkaProducer, err := messaging.NewKafkaProducer(cfg.Kafka, zapLogger)
		if err != nil {
			return err
		}
		producer = messaging.NewBreakerProducer(kafkaProducer, messaging.DefaultBreakerSettings(), zapLogger)
	}
	bus := messaging.NewMessageBus(producer, zapLogger)
	defer bus.Close()

	clk := clock.System
	risk := scoring.NewEngine(store, locker, clk, cfg.Engine, sugar)
	screener := screening.NewEngine(store, clk, cfg.Engine, sugar)
	compliance := workflow.NewEngine(store, clk, cfg.Engine, sugar)
	orchestrator := onboarding.NewOrchestrator(store, risk, screener, compliance, bus, clk, sugar)
	batch := onboarding.NewBatch(store, risk, screener, bus, clk, cfg.Engine, sugar)

	for _, path := range cfg.Engine.Screening.Feeds {
		feed, err := screening.LoadFeed(path)
		if err != nil {
			return err
		}
		list, err := screener.RefreshList(ctx, feed)
		if err != nil {
			return err
		}
		zapLogger.Info("Sanctions feed loaded", zap.String("list", list.Name), zap.String("path", path))
	}

	sched, err := scheduler.New(cfg.Scheduler, batch, compliance, zapLogger)
	if err != nil {
		return err
	}

	api := server.NewServer(zapLogger, orchestrator, risk, screener, compliance, clk)
	limiter := ratelimit.NewLimiter(cfg.Server.RateLimit, clk, zapLogger)
	if cfg.Server.RateLimit.Enabled {
		api.WithRateLimit(limiter)
		go limiter.Run(ctx, cfg.Server.RateLimit.IdleTTL)
	}

	manager.OnReload(func(_, next *config.Config) error {
		limiter.Reconfigure(next.Server.RateLimit)
		risk.Reconfigure(next.Engine)
		screener.Reconfigure(next.Engine)
		compliance.Reconfigure(next.Engine)
		batch.Reconfigure(next.Engine)
		sched.SetDryRun(next.Scheduler.DryRun)
		zapLogger.Info("Engine configuration reloaded")
		return nil
	})

	if cfg.Scheduler.Enabled {
		sched.Start()
	}

	srv := api.HTTPServer(cfg.Server, cfg.Tracing.ServiceName)
	errCh := make(chan error, 1)
	go func() {
		zapLogger.Info("Starting API server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		zapLogger.Info("Shutting down server...")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Failed to shut down HTTP server", zap.Error(err))
	}
	if cfg.Scheduler.Enabled {
		if err := sched.Stop(shutdownCtx); err != nil {
			zapLogger.Error("Failed to stop scheduler", zap.Error(err))
		}
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	return nil
}
