package main

import (
	"context"
	"flag"
	"math/rand"
	"time"

	"github.com/abkawan/peachtree-bank/internal/config"
	"github.com/abkawan/peachtree-bank/internal/db"
	"github.com/abkawan/peachtree-bank/internal/logging"
	"github.com/abkawan/peachtree-bank/internal/seed"
	"github.com/abkawan/peachtree-bank/internal/service"
	"go.uber.org/zap"
)

func main() {
	transactions := flag.Int("transactions", 10, "number of transfers to generate")
	randSeed := flag.Int64("seed", time.Now().UnixNano(), "random seed")
	flag.Parse()

	logger, err := logging.NewLoggerFromEnv()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	postgres, err := db.NewPostgres(db.DefaultPostgresConfig(cfg.PostgresURI))
	if err != nil {
		logger.Fatal("failed to connect to PostgreSQL", zap.Error(err))
	}
	defer postgres.Close()

	if err := postgres.InitSchema(ctx); err != nil {
		logger.Fatal("failed to create schema", zap.Error(err))
	}

	seeder := seed.NewSeeder(
		service.NewAccountService(postgres),
		service.NewTransactionService(postgres, logger),
		rand.New(rand.NewSource(*randSeed)),
		logger,
	)

	opts := seed.DefaultOptions()
	opts.Transactions = *transactions

	seeded, err := seeder.Run(ctx, opts)
	if err != nil {
		logger.Fatal("seeding failed", zap.Error(err))
	}
	if seeded {
		logger.Info("database seeding completed", zap.Int64("seed", *randSeed))
	}
}
