package ports

import (
	"context"

	"polyPaperBot/internal/domain"
)

// ArchiveRepository stores ledger replay snapshots in a queryable form.
// It is read-side tooling; the ledger stays the source of truth.
type ArchiveRepository interface {
	// ImportSnapshot upserts the latest record per trade_id and returns
	// how many rows were written.
	ImportSnapshot(ctx context.Context, latest map[string]domain.Trade) (int, error)
	// CountByStatus returns the number of archived trades per status.
	CountByStatus(ctx context.Context) (map[domain.TradeStatus]int, error)
	// TotalRealizedPnL sums realized PnL over archived trades that have one.
	TotalRealizedPnL(ctx context.Context) (float64, error)
	Close() error
}
