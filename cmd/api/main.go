package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"staybook/booking"
	"staybook/config"
	"staybook/db"
	"staybook/favorite"
	"staybook/host"
	"staybook/listing"
	"staybook/review"
	"staybook/user"
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

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("bootstrap database pool", zap.Error(err))
	}
	defer pool.Close()

	bookingRepo := booking.NewRepository(pool)
	svcs := Services{
		Users:     user.NewService(user.NewRepository(pool), cfg.JWTSecret),
		Hosts:     host.NewService(host.NewRepository(pool)),
		Listings:  listing.NewService(pool, listing.NewRepository(pool)),
		Bookings:  booking.NewService(bookingRepo),
		Reviews:   review.NewService(pool, review.NewRepository(pool), bookingRepo),
		Favorites: favorite.NewService(favorite.NewRepository(pool)),
	}

	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           NewServer(svcs, logger, cfg.HTTP.MetricsPath),
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
	}

	go func() {
		logger.Info("api listening", zap.String("addr", cfg.HTTP.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("serve", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.GracefulShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", zap.Error(err))
	}
	logger.Info("api stopped")
}

func newLogger(environment string) (*zap.Logger, error) {
	if environment == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
