package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/abkawan/peachtree-bank/internal/api"
	"github.com/abkawan/peachtree-bank/internal/config"
	"github.com/abkawan/peachtree-bank/internal/db"
	"github.com/abkawan/peachtree-bank/internal/logging"
	"github.com/abkawan/peachtree-bank/internal/metrics"
	"github.com/abkawan/peachtree-bank/internal/queue"
	"github.com/abkawan/peachtree-bank/internal/ratelimit"
	"github.com/abkawan/peachtree-bank/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

func main() {
	logger, err := logging.NewLoggerFromEnv()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if err := run(logger); err != nil {
		logger.Fatal("api exited", zap.Error(err))
	}
}

func run(logger *logging.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger.Info("configuration loaded",
		zap.String("env", string(cfg.Env)),
		zap.String("store", cfg.StoreDriver),
		zap.Bool("rate_limit", cfg.RateLimit.Enabled),
	)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.NewPrometheusRecorder("peachtree")
	if err := recorder.Register(registry); err != nil {
		return err
	}

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	// Connect to RabbitMQ
	var publisher queue.Publisher = queue.NoopPublisher{}
	if cfg.RabbitMQURI != "" {
		logger.Info("connecting to RabbitMQ")
		rabbitmq, err := queue.NewRabbitMQ(cfg.RabbitMQURI, logger)
		if err != nil {
			return err
		}
		defer rabbitmq.Close()
		publisher = queue.NewResilientPublisher(rabbitmq, queue.DefaultBreakerConfig(), recorder, logger)
	}

	policy, err := service.PolicyByName(cfg.TransitionRule)
	if err != nil {
		return err
	}

	// Create services
	accountService := service.NewAccountService(store)
	transactionService := service.NewTransactionService(store, logger,
		service.WithPublisher(publisher),
		service.WithMetrics(recorder),
		service.WithTransitionPolicy(policy),
	)

	deps := api.Dependencies{
		Accounts:     accountService,
		Transactions: transactionService,
		Search:       service.NewSearchService(store),
		Store:        store,
		RateLimit:    cfg.RateLimit,
		Metrics:      recorder,
		Gatherer:     registry,
		CORSOrigins:  cfg.CORSOrigins,
		Logger:       logger,
	}

	// Connect to MongoDB
	if cfg.MongoURI != "" {
		logger.Info("connecting to MongoDB")
		mongodb, err := db.NewMongoDB(cfg.MongoURI, cfg.MongoDBName)
		if err != nil {
			return err
		}
		defer mongodb.Close(context.Background())
		deps.Audit = service.NewAuditService(transactionService, mongodb)
	}

	if cfg.RateLimit.Enabled {
		limitStore := ratelimit.NewMemoryStore()
		if cfg.RedisAddr != "" {
			logger.Info("connecting to Redis", zap.String("addr", cfg.RedisAddr))
			client, err := ratelimit.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, 0)
			if err != nil {
				return err
			}
			defer client.Close()
			if limitStore, err = ratelimit.NewRedisStore(client); err != nil {
				return err
			}
		}
		deps.Limiter = ratelimit.NewLimiter(limitStore)
	}

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      api.NewRouter(deps),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("port", cfg.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serverErr:
		return err
	case sig := <-sigChan:
		logger.Info("shutting down server", zap.String("signal", sig.String()))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("server shut down successfully")
	return nil
}

func openStore(ctx context.Context, cfg *config.Config, logger *logging.Logger) (db.Store, error) {
	if cfg.StoreDriver == "memory" {
		logger.Warn("using in-memory store, data will not survive a restart")
		return db.NewMemory(), nil
	}

	logger.Info("connecting to PostgreSQL")
	postgres, err := db.NewPostgres(db.DefaultPostgresConfig(cfg.PostgresURI))
	if err != nil {
		return nil, err
	}
	if err := postgres.InitSchema(ctx); err != nil {
		postgres.Close()
		return nil, err
	}
	return postgres, nil
}
