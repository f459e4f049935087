package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/mynamerahulkumar/srpprivatewasdailyhrbot/config"
	"github.com/mynamerahulkumar/srpprivatewasdailyhrbot/internal/api"
	"github.com/mynamerahulkumar/srpprivatewasdailyhrbot/internal/auth"
	"github.com/mynamerahulkumar/srpprivatewasdailyhrbot/internal/bot"
	"github.com/mynamerahulkumar/srpprivatewasdailyhrbot/internal/delta"
	"github.com/mynamerahulkumar/srpprivatewasdailyhrbot/internal/events"
	"github.com/mynamerahulkumar/srpprivatewasdailyhrbot/internal/journal"
	"github.com/mynamerahulkumar/srpprivatewasdailyhrbot/internal/logging"
	"github.com/mynamerahulkumar/srpprivatewasdailyhrbot/internal/metrics"
	"github.com/mynamerahulkumar/srpprivatewasdailyhrbot/internal/registry"
	"github.com/mynamerahulkumar/srpprivatewasdailyhrbot/internal/snapshot"
	"github.com/mynamerahulkumar/srpprivatewasdailyhrbot/internal/vault"
)

func main() {
	var (
		configPath     = flag.String("config", "config.json", "path to the configuration file")
		sampleConfig   = flag.String("generate-config", "", "write a sample config to the given path and exit")
		validateConfig = flag.Bool("validate", false, "validate the configuration and exit")
	)
	flag.Parse()

	if *sampleConfig != "" {
		if err := config.GenerateSampleConfig(*sampleConfig); err != nil {
			log.Fatalf("Failed to generate sample config: %v", err)
		}
		fmt.Printf("Sample configuration written to %s\n", *sampleConfig)
		return
	}

	// Local development convenience; missing .env is fine.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *validateConfig {
		fmt.Println("Configuration is valid")
		return
	}

	logger := logging.New(&logging.Config{
		Level:      cfg.Monitoring.LogLevel,
		Output:     cfg.Monitoring.LogOutput,
		JSONFormat: cfg.Monitoring.LogJSON,
		Component:  "main",
	})
	logging.SetDefault(logger)
	logger.Info("starting delta breakout bot")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Exchange credentials: Vault when enabled, environment otherwise.
	apiKey, apiSecret := cfg.Exchange.APIKey, cfg.Exchange.APISecret
	if cfg.Vault.Enabled {
		vaultClient, err := vault.NewClient(cfg.Vault)
		if err != nil {
			log.Fatalf("Failed to create vault client: %v", err)
		}
		creds, err := vaultClient.GetCredentials(ctx)
		if err != nil {
			log.Fatalf("Failed to read credentials from vault: %v", err)
		}
		apiKey, apiSecret = creds.APIKey, creds.APISecret
		logger.Info("exchange credentials loaded from vault")
	}

	exchange := delta.NewClient(apiKey, apiSecret, cfg.Exchange.BaseURL)

	// Verify exchange connectivity before accepting any work.
	if cfg.Trading.Symbol != "" {
		ticker, err := exchange.GetTicker(cfg.Trading.Symbol)
		if err != nil {
			log.Fatalf("Exchange connectivity check failed: %v", err)
		}
		logger.Info("exchange reachable",
			"symbol", cfg.Trading.Symbol, "last_price", ticker.Close.Float64())
	}

	bus := events.NewBus()
	metrics.Bind(bus)

	reg := registry.New()

	var jrnl *journal.Journal
	if cfg.Database.Enabled {
		jrnl, err = journal.New(ctx, cfg.Database)
		if err != nil {
			log.Fatalf("Failed to connect to postgres: %v", err)
		}
		jrnl.Bind(bus)
		logger.Info("lifecycle journal enabled")
	}

	var store *snapshot.Store
	if cfg.Redis.Enabled {
		store, err = snapshot.NewStore(cfg.Redis)
		if err != nil {
			log.Fatalf("Failed to create snapshot store: %v", err)
		}
		store.Bind(bus, func(botID string) (bot.Snapshot, bool) {
			b, err := reg.Get(botID)
			if err != nil {
				return bot.Snapshot{}, false
			}
			return b.Snapshot(), true
		})
		logger.Info("snapshot store enabled", "healthy", store.IsHealthy())
	}

	var authService *auth.Service
	if cfg.Auth.Enabled {
		authService = auth.NewService(auth.Config{
			JWTSecret:            cfg.Auth.JWTSecret,
			AdminPasswordHash:    cfg.Auth.AdminPasswordHash,
			AccessTokenDuration:  cfg.Auth.AccessTokenDuration,
			RefreshTokenDuration: cfg.Auth.RefreshTokenDuration,
		})
		logger.Info("api authentication enabled")
	} else {
		logger.Warn("api authentication disabled, endpoints are unprotected")
	}

	server := api.NewServer(cfg, exchange, reg, bus, authService, jrnl)

	go func() {
		if err := server.Start(); err != nil {
			logger.Error("api server stopped", "error", err)
			cancel()
		}
	}()
	logger.Info("api server listening",
		"host", cfg.Server.Host, "port", cfg.Server.Port)

	// Start the default bot when one is configured.
	if cfg.Trading.Symbol != "" {
		botCfg := bot.Config{
			ID:                     cfg.Trading.Symbol,
			Symbol:                 cfg.Trading.Symbol,
			ProductID:              cfg.Trading.ProductID,
			OrderSize:              cfg.Trading.OrderSize,
			StopLossPoints:         cfg.Risk.StopLossPoints,
			TakeProfitPoints:       cfg.Risk.TakeProfitPoints,
			BreakevenTriggerPoints: cfg.Risk.BreakevenTriggerPoints,
			Timeframe:              cfg.Schedule.Timeframe,
			ResetIntervalMinutes:   cfg.Schedule.ResetIntervalMinutes,
			Timezone:               cfg.Schedule.Timezone,
			WaitForNextCandle:      cfg.Schedule.WaitForNextCandle,
			StartupDelayMinutes:    cfg.Schedule.StartupDelayMinutes,
			MaxPositionSize:        cfg.Risk.MaxPositionSize,
			CheckExistingOrders:    cfg.Risk.CheckExistingOrders,
			OrderCheckInterval:     time.Duration(cfg.Monitoring.OrderCheckIntervalSeconds) * time.Second,
			PositionCheckInterval:  time.Duration(cfg.Monitoring.PositionCheckIntervalSeconds) * time.Second,
		}

		b, err := bot.New(botCfg, exchange, bus)
		if err != nil {
			log.Fatalf("Invalid default bot configuration: %v", err)
		}
		runID, err := reg.Start(b)
		if err != nil {
			log.Fatalf("Failed to start default bot: %v", err)
		}
		logger.Info("default bot started",
			"bot_id", botCfg.ID, "run_id", runID, "timeframe", botCfg.Timeframe)
	} else {
		logger.Info("no default bot configured, control plane only")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api server shutdown failed", "error", err)
	}

	reg.StopAll()

	if store != nil {
		if err := store.Close(); err != nil {
			logger.Error("snapshot store close failed", "error", err)
		}
	}
	if jrnl != nil {
		jrnl.Close()
	}

	logger.Info("shutdown complete")
}
