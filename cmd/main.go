package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Farkhat1984/leema-react-sub002/internal/config"
	"github.com/Farkhat1984/leema-react-sub002/internal/server"
)

func main() {
	cfg := config.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync()

	srv := server.NewServer(cfg, logger)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("📢 Kaspi sync service starting", zap.String("addr", cfg.HTTPAddr))
		errCh <- srv.HTTP.ListenAndServe()
	}()

	// Handle graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		logger.Info("🛑 Kaspi sync service shutting down gracefully...")
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("shutdown error", zap.Error(err))
		}
	case err := <-errCh:
		logger.Fatal("Kaspi sync service failed", zap.Error(err))
	}
}
