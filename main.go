package main

import (
	"context"
	"log" // Use standard log only for initial fatal errors before logger is set up

	"polyPaperBot/config"
	"polyPaperBot/internal/adapters/gammarecon"
	"polyPaperBot/internal/adapters/ledgerfile"
	"polyPaperBot/internal/adapters/logger"
	"polyPaperBot/internal/adapters/webhook"
	"polyPaperBot/internal/app"
	"polyPaperBot/internal/ports"
	"polyPaperBot/internal/registry"
	"polyPaperBot/internal/sweeper"
	"polyPaperBot/internal/telemetry"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	// 2. Initialize Logger
	var appLogger ports.Logger
	if cfg.LogFormat == "json" {
		appLogger = logger.NewLogrusLogger(cfg.LogLevel)
	} else {
		appLogger = logger.NewStdLogger(cfg.LogLevel)
	}
	appLogger.Info(context.Background(), "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String(), "format": cfg.LogFormat})

	// 3. Initialize Ledger (File Adapter)
	ledger, err := ledgerfile.New(ledgerfile.Config{
		Path:   cfg.LedgerPath,
		Logger: appLogger,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize ledger")
		log.Fatalf("FATAL: Failed to initialize ledger: %v", err)
	}
	defer func() {
		if err := ledger.Close(); err != nil {
			appLogger.Error(context.Background(), err, "Error closing ledger")
		}
	}()

	// 4. Initialize Trade Registry and restore state from the ledger
	reg, err := registry.New(ledger, appLogger)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize trade registry")
		log.Fatalf("FATAL: Failed to initialize trade registry: %v", err)
	}
	latest, err := ledger.Replay(context.Background())
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to replay ledger")
		log.Fatalf("FATAL: Failed to replay ledger: %v", err)
	}
	restored := reg.Restore(latest)
	appLogger.Info(context.Background(), "Trade registry restored", map[string]interface{}{"trades": restored})

	// 5. Initialize Reconciliation Client (Gamma Adapter)
	recon, err := gammarecon.New(gammarecon.Config{
		BaseURL: cfg.ReconcileBaseURL,
		Timeout: cfg.ReconcileTimeout,
		Logger:  appLogger,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize reconciliation client")
		log.Fatalf("FATAL: Failed to initialize reconciliation client: %v", err)
	}

	// 6. Initialize Application Service
	service, err := app.NewService(cfg, appLogger, reg)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize service")
		log.Fatalf("FATAL: Failed to initialize service: %v", err)
	}

	// 7. Initialize long-running components
	var runners []app.Runner
	hub := telemetry.NewHub()

	server, err := webhook.New(webhook.Config{
		ListenAddr: cfg.ListenAddr,
		Handler:    service,
		Logger:     appLogger,
		Metrics:    hub,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize webhook server")
		log.Fatalf("FATAL: Failed to initialize webhook server: %v", err)
	}
	runners = append(runners, server)

	if cfg.SweepEnabled {
		sw, err := sweeper.New(sweeper.Config{
			Interval:   cfg.SweepInterval,
			BarMinutes: cfg.BarMinutes,
			StaleBars:  cfg.StaleBars,
			Telemetry:  hub,
		}, reg, recon, appLogger)
		if err != nil {
			appLogger.Error(context.Background(), err, "FATAL: Failed to initialize sweeper")
			log.Fatalf("FATAL: Failed to initialize sweeper: %v", err)
		}
		runners = append(runners, sw)
	} else {
		appLogger.Warn(context.Background(), "Orphan cleanup sweeper is disabled")
	}

	// 8. Run until shutdown
	if err := service.Start(context.Background(), runners...); err != nil {
		appLogger.Error(context.Background(), err, "Service exited with error")
		log.Fatalf("Service exited with error: %v", err)
	}
	appLogger.Info(context.Background(), "Shutdown complete")
}
