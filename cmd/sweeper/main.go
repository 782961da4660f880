// The sweeper is the scheduler that completes expired confirmed bookings. It
// runs separately from the api so the read path never drives lifecycle
// transitions.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"staybook/booking"
	"staybook/config"
	"staybook/db"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := newLogger(cfg.Environment)
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("bootstrap database pool", zap.Error(err))
	}
	defer pool.Close()

	svc := booking.NewService(booking.NewRepository(pool))
	sweeper := booking.NewSweeper(svc, cfg.SweepInterval, logger)

	logger.Info("sweeper running", zap.Duration("interval", cfg.SweepInterval))
	sweeper.Run(ctx)
	logger.Info("sweeper stopped")
}

func newLogger(environment string) (*zap.Logger, error) {
	if environment == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
