package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/wfunc/snakesladders/config"
	"github.com/wfunc/snakesladders/logger"
	"github.com/wfunc/snakesladders/monitor"
	"github.com/wfunc/snakesladders/persistence"
	"github.com/wfunc/snakesladders/server"
)

func main() {
	os.Exit(run("."))
}

// run owns every deferred cleanup so they all happen before main exits.
func run(configDir string) int {
	envErr := godotenv.Load()

	// Load configuration
	cfg, err := config.LoadConfig(configDir)
	if err != nil {
		panic(err)
	}

	// Initialize logger
	if err := logger.Init(cfg.Log.Level, cfg.Log.Development); err != nil {
		panic(err)
	}
	defer logger.Sync()
	if envErr != nil {
		logger.Log.Debug("No .env file found, using environment variables")
	}

	// Initialize Database
	store, err := persistence.Open(cfg.Database)
	if err != nil {
		logger.Log.Errorf("Failed to open game record store: %v", err)
		return 1
	}
	defer store.Close()
	logger.Log.Infow("Game record store ready", "driver", cfg.Database.Driver)

	m := monitor.NewMonitor("snakesladders")
	if cfg.Server.MetricsAddress != "" {
		m.StartServer(cfg.Server.MetricsAddress)
	}

	gameServer := server.NewGameServer(cfg, store, m)

	errCh := make(chan error, 1)
	go func() {
		logger.Log.Infof("Starting game server on %s", cfg.Server.HTTPAddress)
		errCh <- gameServer.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	code := 0
	select {
	case err := <-errCh:
		if err != nil {
			logger.Log.Errorf("Server stopped: %v", err)
			code = 1
		}
	case sig := <-quit:
		logger.Log.Infof("Received %s, shutting down", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := gameServer.Shutdown(ctx); err != nil {
		logger.Log.Errorf("Shutdown error: %v", err)
	}
	if err := m.Stop(ctx); err != nil {
		logger.Log.Errorf("Metrics server shutdown error: %v", err)
	}
	logger.Log.Info("Server stopped")
	return code
}
