package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gmb-connector/internal/aggregate"
	"gmb-connector/internal/classifier"
	commonhttp "gmb-connector/internal/common/http"
	"gmb-connector/internal/common/logging"
	"gmb-connector/internal/config"
	"gmb-connector/internal/crypto"
	"gmb-connector/internal/gmb"
	"gmb-connector/internal/oauth2"
	"gmb-connector/internal/ratelimit"
	"gmb-connector/internal/redis"
	"gmb-connector/internal/server"
	"gmb-connector/internal/storage"
	"gmb-connector/internal/telemetry"

	_ "gmb-connector/internal/storage/memory"
	_ "gmb-connector/internal/storage/postgres"
	_ "gmb-connector/internal/storage/sqlite"

	"github.com/joho/godotenv"
)

func main() {
	// A missing .env is fine; the environment may already be populated.
	_ = godotenv.Load()

	cfg := config.Load()
	if err := logging.InitGlobalLogger(cfg.LogLevel, cfg.LogEncoding); err != nil {
		logging.Error("Failed to initialize logger", err)
		os.Exit(1)
	}
	defer logging.MustSync()
	logger := logging.GetGlobalLogger()

	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("Connector stopped with error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger logging.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	logger.Info("Storage ready", logging.String("type", cfg.DatabaseType))

	var redisClient *redis.Client
	if cfg.RedisAddress != "" {
		redisClient, err = redis.NewClient(ctx, &redis.Config{
			Address:  cfg.RedisAddress,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDBNumber(),
			PoolSize: cfg.RedisPoolSizeNumber(),
		})
		if err != nil {
			return err
		}
		defer redisClient.Close()
		logger.Info("Redis connected", logging.String("address", cfg.RedisAddress))
	}

	httpClient := commonhttp.NewHTTPClient(commonhttp.WithTimeout(cfg.HTTPTimeout))

	managerOpts := []oauth2.Option{
		oauth2.WithHTTPClient(httpClient),
		oauth2.WithLogger(logger),
	}
	if redisClient != nil {
		var cipher oauth2.Cipher
		if cfg.EncryptionKey != "" {
			tc, err := crypto.NewTokenCipher(cfg.EncryptionKey)
			if err != nil {
				return err
			}
			cipher = tc
		}
		managerOpts = append(managerOpts, oauth2.WithCache(oauth2.NewRedisTokenCache(redisClient, cipher)))
	}
	manager := oauth2.NewManager(oauth2.ConfigFromApp(cfg), store, managerOpts...)
	defer manager.Close()

	limits := ratelimit.Config{DefaultRPS: cfg.UpstreamRateLimit, QandARPS: cfg.QandARateLimit}
	var limiter ratelimit.Limiter = ratelimit.NewLocal(limits)
	if redisClient != nil {
		limiter = ratelimit.NewDistributed(redisClient, limits)
	}

	sinks := telemetry.Multi{telemetry.NewLogSink(logger), telemetry.NewStoreSink(store, logger)}
	if redisClient != nil {
		sinks = append(sinks, telemetry.NewRedisSink(redisClient, logger))
	}
	if cfg.AMQPURL != "" {
		amqpSink, err := telemetry.DialAMQPSink(cfg.AMQPURL, cfg.AMQPExchange, logger)
		if err != nil {
			return err
		}
		defer amqpSink.Close()
		sinks = append(sinks, amqpSink)
	}

	clients := &server.GMBFactory{
		Manager: manager,
		Options: []gmb.Option{
			gmb.WithLimiter(limiter),
			gmb.WithSink(sinks),
			gmb.WithClassifier(classifier.New(manager, sinks, logger)),
			gmb.WithLogger(logger),
		},
	}

	handlers := server.NewHandlers(store, manager, clients, server.Config{
		Engine: aggregate.Options{
			ReportLocationErrors: cfg.ReportLocationErrors,
			PostsPageSize:        cfg.PostsPageSize,
			PostInsights:         cfg.PostInsightsEnabled,
		},
		AdminToken: cfg.AdminToken,
	}, logger)
	srv := server.New(server.NewRouter(handlers), cfg.Port, "", "", logger)

	refresher, err := oauth2.NewRefresher(manager, cfg.TokenRefreshSchedule, cfg.TokenRefreshLookahead)
	if err != nil {
		return err
	}
	refresher.Start()

	serveErr := srv.Start()
	select {
	case <-ctx.Done():
		logger.Info("Shutting down")
	case err := <-serveErr:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", err)
	}
	select {
	case <-refresher.Stop().Done():
	case <-shutdownCtx.Done():
		logger.Warn("Token refresh still running at shutdown")
	}
	return nil
}
