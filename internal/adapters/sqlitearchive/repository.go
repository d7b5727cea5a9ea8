// Package sqlitearchive persists ledger replay snapshots into SQLite so
// closed paper trades can be queried with SQL long after the ledger
// segments rotate away.
package sqlitearchive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"polyPaperBot/internal/domain"
	"polyPaperBot/internal/ports"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Repository implements ports.ArchiveRepository using SQLite.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the archive repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewRepository opens (creating if needed) the archive database.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for archive repository")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/paper_trades.db"
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "Archive repository initialization failed")
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "Archive repository initialization failed")
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "Archive repository initialization failed")
		return nil, err
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	repo := &Repository{db: db, logger: cfg.Logger}
	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize archive schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "Archive repository initialization failed")
		return nil, err
	}
	cfg.Logger.Info(context.Background(), "Archive database ready", map[string]interface{}{"path": dbPath})

	return repo, nil
}

func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS paper_trades (
		trade_id TEXT PRIMARY KEY,
		market_id TEXT NOT NULL,
		token_id TEXT NOT NULL,
		side TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at_utc TEXT NOT NULL,
		confidence REAL NOT NULL,
		entry_price REAL NOT NULL,
		entry_best_bid REAL NOT NULL,
		entry_best_ask REAL NOT NULL,
		spread_entry REAL NOT NULL,
		size REAL NOT NULL,
		realized_pnl REAL DEFAULT NULL,
		exit_price REAL DEFAULT NULL,
		exit_reason TEXT NULL,
		exit_time_utc TEXT NULL,
		extra TEXT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_paper_trades_status ON paper_trades (status);
	CREATE INDEX IF NOT EXISTS idx_paper_trades_market ON paper_trades (market_id);
	`
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// ImportSnapshot upserts every trade from a replay snapshot. Re-running
// an import with a newer snapshot overwrites rows for the same trade
// IDs, matching the ledger's latest-wins semantics. Returns the number
// of trades written.
func (r *Repository) ImportSnapshot(ctx context.Context, latest map[string]domain.Trade) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin archive transaction: %w", err)
	}
	defer tx.Rollback()

	const query = `
	INSERT OR REPLACE INTO paper_trades
		(trade_id, market_id, token_id, side, status, created_at_utc,
		 confidence, entry_price, entry_best_bid, entry_best_ask, spread_entry, size,
		 realized_pnl, exit_price, exit_reason, exit_time_utc, extra)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare archive upsert: %w", err)
	}
	defer stmt.Close()

	count := 0
	for _, t := range latest {
		var extra sql.NullString
		if len(t.Extra) > 0 {
			raw, err := json.Marshal(t.Extra)
			if err != nil {
				return 0, fmt.Errorf("failed to encode extra fields for trade %s: %w", t.TradeID, err)
			}
			extra = sql.NullString{String: string(raw), Valid: true}
		}

		if _, err := stmt.ExecContext(ctx,
			t.TradeID, t.MarketID, t.TokenID, t.Side, string(t.Status), t.CreatedAtUTC,
			t.Confidence, t.EntryPrice, t.EntryBestBid, t.EntryBestAsk, t.SpreadEntry, t.Size,
			t.RealizedPnL, t.ExitPrice, nullString(t.ExitReason), nullString(t.ExitTimeUTC), extra,
		); err != nil {
			return 0, fmt.Errorf("failed to upsert trade %s: %w", t.TradeID, err)
		}
		count++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit archive transaction: %w", err)
	}
	r.logger.Info(ctx, "Snapshot imported into archive", map[string]interface{}{"trades": count})
	return count, nil
}

// CountByStatus returns row counts grouped by trade status.
func (r *Repository) CountByStatus(ctx context.Context) (map[domain.TradeStatus]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM paper_trades GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to query status counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.TradeStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan status count row: %w", err)
		}
		counts[domain.TradeStatus(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating status count rows: %w", err)
	}
	return counts, nil
}

// TotalRealizedPnL sums realized PnL over all archived trades that have
// one. Trades with a NULL realized PnL contribute nothing.
func (r *Repository) TotalRealizedPnL(ctx context.Context) (float64, error) {
	var total float64
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(realized_pnl), 0) FROM paper_trades WHERE realized_pnl IS NOT NULL`,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum realized pnl: %w", err)
	}
	return total, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
