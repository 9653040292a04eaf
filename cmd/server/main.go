package main

import (
	"context"
	"errors"
	stdlog "log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/AquaSenseApp/aquasense/internal/config"
	"github.com/AquaSenseApp/aquasense/internal/db"
	telemetrygrpc "github.com/AquaSenseApp/aquasense/internal/grpc"
	internalhttp "github.com/AquaSenseApp/aquasense/internal/http"
	"github.com/AquaSenseApp/aquasense/internal/jobs"
	"github.com/AquaSenseApp/aquasense/internal/log"
	"github.com/AquaSenseApp/aquasense/internal/memstore"
	"github.com/AquaSenseApp/aquasense/internal/metrics"
	"github.com/AquaSenseApp/aquasense/internal/mqtt"
	"github.com/AquaSenseApp/aquasense/internal/notify"
	"github.com/AquaSenseApp/aquasense/internal/repository"
	"github.com/AquaSenseApp/aquasense/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		stdlog.Fatalf("config error: %v", err)
	}
	logger, err := log.New(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		stdlog.Fatalf("logger init failed: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store repository.Store
	if cfg.DatabaseURL == "" {
		logger.Warn("DATABASE_URL not set, using in-memory store; data is lost on restart")
		store = memstore.New()
	} else {
		pool, err := db.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("db connection failed", zap.Error(err))
		}
		defer pool.Close()
		if cfg.DBAutoMigrate {
			if err := db.Migrate(ctx, pool); err != nil {
				logger.Fatal("db migration failed", zap.Error(err))
			}
			logger.Info("db schema applied")
		}
		store = db.NewStore(pool)
	}

	m := metrics.New(prometheus.DefaultRegisterer)

	var notifier notify.Notifier = notify.Nop{}
	if cfg.AMQPURL != "" {
		publisher, err := notify.DialAMQP(cfg.AMQPURL, cfg.AMQPExchange, logger)
		if err != nil {
			logger.Fatal("amqp connection failed", zap.Error(err))
		}
		defer func() {
			if err := publisher.Close(); err != nil {
				logger.Warn("amqp close error", zap.Error(err))
			}
		}()
		notifier = publisher
	}

	var limiter internalhttp.Limiter
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			cancel()
			logger.Fatal("redis ping failed", zap.Error(err))
		}
		cancel()
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close error", zap.Error(err))
			}
		}()
		limiter = internalhttp.NewRedisLimiter(redisClient, cfg.RateLimitMax, cfg.RateLimitWindow)
	}

	services := telemetry.New(telemetry.Config{
		JWTSecret:      cfg.JWTSecret,
		JWTIssuer:      cfg.JWTIssuer,
		AccessTokenTTL: cfg.AccessTokenTTL,
		DefaultWindow:  cfg.AnalyticsDefaultWindow,
		MaxWindow:      cfg.AnalyticsMaxWindow,
	}, telemetry.Deps{
		Store:    store,
		Metrics:  m,
		Notifier: notifier,
		Logger:   logger,
	})

	server := internalhttp.NewServer(cfg, services, internalhttp.Options{
		Limiter:  limiter,
		Metrics:  m,
		Gatherer: prometheus.DefaultGatherer,
		Logger:   logger,
	})
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	reportStore := m.SetStoreUp
	grpcServer, healthServer, err := telemetrygrpc.NewServer(cfg.ServiceAuthToken)
	if err != nil {
		logger.Fatal("grpc init failed", zap.Error(err))
	}
	if cfg.GRPCAddr != "" {
		if cfg.ServiceAuthToken == "" {
			logger.Warn("SERVICE_AUTH_TOKEN not set, grpc health service is unauthenticated")
		}
		reportStore = func(up bool) {
			m.SetStoreUp(up)
			telemetrygrpc.SetServing(healthServer, up)
		}
	}
	jobs.StartHealthProbe(ctx, cfg.HealthProbeInterval, store, reportStore, logger)
	jobs.StartRetentionJob(ctx, cfg.ReadingRetention, cfg.RetentionJobInterval, store, logger)

	var subscriber *mqtt.Subscriber
	if cfg.MQTTBroker != "" {
		subscriber = mqtt.NewSubscriber(mqtt.Options{
			Broker:   cfg.MQTTBroker,
			Username: cfg.MQTTUsername,
			Password: cfg.MQTTPassword,
			ClientID: cfg.MQTTClientID,
			Topic:    cfg.MQTTTopic,
		}, services, m, logger)
		if err := subscriber.Start(); err != nil {
			logger.Fatal("mqtt start failed", zap.Error(err))
		}
	}

	go func() {
		logger.Info("aquasense http listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server error", zap.Error(err))
		}
	}()

	if cfg.GRPCAddr != "" {
		go func() {
			listener, err := net.Listen("tcp", cfg.GRPCAddr)
			if err != nil {
				logger.Fatal("grpc listen error", zap.Error(err))
			}
			logger.Info("aquasense grpc listening", zap.String("addr", cfg.GRPCAddr))
			if err := grpcServer.Serve(listener); err != nil {
				logger.Fatal("grpc server error", zap.Error(err))
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutting down")

	if subscriber != nil {
		subscriber.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
	grpcServer.GracefulStop()
}
