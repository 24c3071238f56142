package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/abkawan/peachtree-bank/internal/config"
	"github.com/abkawan/peachtree-bank/internal/db"
	"github.com/abkawan/peachtree-bank/internal/logging"
	"github.com/abkawan/peachtree-bank/internal/models"
	"github.com/abkawan/peachtree-bank/internal/queue"
	"go.uber.org/zap"
)

func main() {
	logger, err := logging.NewLoggerFromEnv()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()
	logger = logger.Named("processor")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}
	if cfg.MongoURI == "" || cfg.RabbitMQURI == "" {
		logger.Fatal("MONGO_URI and RABBITMQ_URI are required")
	}

	// Connect to MongoDB
	logger.Info("connecting to MongoDB")
	mongodb, err := db.NewMongoDB(cfg.MongoURI, cfg.MongoDBName)
	if err != nil {
		logger.Fatal("failed to connect to MongoDB", zap.Error(err))
	}
	defer mongodb.Close(context.Background())

	// Connect to RabbitMQ
	logger.Info("connecting to RabbitMQ")
	rabbitmq, err := queue.NewRabbitMQ(cfg.RabbitMQURI, logger)
	if err != nil {
		logger.Fatal("failed to connect to RabbitMQ", zap.Error(err))
	}
	defer rabbitmq.Close()

	logger.Info("event processor started", zap.String("queue", queue.EventQueue))
	err = rabbitmq.ConsumeEvents(ctx, func(ctx context.Context, event *models.TransactionEvent) error {
		if err := mongodb.InsertEvent(ctx, event); err != nil {
			return err
		}
		logger.Debug("event recorded",
			zap.String("event_id", event.EventID),
			zap.String("type", string(event.Type)),
			zap.Int64("transaction_id", event.TransactionID),
		)
		return nil
	})
	if err != nil {
		logger.Error("consumer stopped", zap.Error(err))
		return
	}
	logger.Info("processor shut down successfully")
}

