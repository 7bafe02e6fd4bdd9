package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"arbigate/app"
	"arbigate/config"
	"arbigate/logger"
)

func main() {
	_ = godotenv.Load()

	logger.Init(nil)

	logger.Info("╔════════════════════════════════════════════════════════════╗")
	logger.Info("║        arbigate - cross-exchange futures arbitrage          ║")
	logger.Info("╚════════════════════════════════════════════════════════════╝")

	config.Init()
	cfg := config.Get()
	logger.Info("✅ configuration loaded")

	if len(cfg.Venues) == 0 {
		logger.Fatal("❌ no venue credentials configured (set M_/G_/B_ API_KEY and API_SECRET)")
	}
	for id := range cfg.Venues {
		logger.Infof("  • venue %s configured", id)
	}

	application, err := app.New(cfg)
	if err != nil {
		logger.Fatalf("❌ failed to build application: %v", err)
	}

	application.Run(context.Background())

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("✅ system started, waiting for trading commands (POST /api/trading/start)...")
	logger.Info("📌 use Ctrl+C to stop the system")

	<-quit
	logger.Info("📴 shutdown signal received, closing system...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := application.Shutdown(ctx); err != nil {
		logger.Errorf("shutdown error: %v", err)
	}

	logger.Shutdown()
}
