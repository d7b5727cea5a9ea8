package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"polyPaperBot/config"
	"polyPaperBot/internal/adapters/ledgerfile"
	"polyPaperBot/internal/adapters/logger"
	"polyPaperBot/internal/adapters/sqlitearchive"
)

func main() {
	ledgerPath := flag.String("ledger", "", "override ledger path (defaults to LEDGER_PATH)")
	dbPath := flag.String("db", "", "override archive database path (defaults to ARCHIVE_DB_PATH)")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}
	if *ledgerPath != "" {
		cfg.LedgerPath = *ledgerPath
	}
	if *dbPath != "" {
		cfg.ArchiveDBPath = *dbPath
	}

	appLogger := logger.NewStdLogger(cfg.LogLevel)
	ctx := context.Background()

	ledger, err := ledgerfile.OpenReadOnly(ledgerfile.Config{Path: cfg.LedgerPath, Logger: appLogger})
	if err != nil {
		log.Fatalf("FATAL: Failed to open ledger: %v", err)
	}
	latest, err := ledger.Replay(ctx)
	if err != nil {
		log.Fatalf("FATAL: Failed to replay ledger: %v", err)
	}

	repo, err := sqlitearchive.NewRepository(sqlitearchive.Config{DBPath: cfg.ArchiveDBPath, Logger: appLogger})
	if err != nil {
		log.Fatalf("FATAL: Failed to open archive database: %v", err)
	}
	defer repo.Close()

	count, err := repo.ImportSnapshot(ctx, latest)
	if err != nil {
		log.Fatalf("FATAL: Failed to import snapshot: %v", err)
	}

	total, err := repo.TotalRealizedPnL(ctx)
	if err != nil {
		log.Fatalf("FATAL: Failed to read archive totals: %v", err)
	}
	fmt.Printf("archived %d trades, total realized pnl %.4f\n", count, total)
}
