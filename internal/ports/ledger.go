package ports

import (
	"context"

	"polyPaperBot/internal/domain"
)

// Ledger is the append-only durable record of every trade state
// transition. Records are full trade snapshots; replaying the ledger and
// keeping the last record per trade_id reconstructs current state.
type Ledger interface {
	// Append durably writes one snapshot. Concurrent appends are
	// serialized through a single writer.
	Append(ctx context.Context, trade domain.Trade) error
	// Replay scans historical segments in stable order followed by the
	// current segment and returns the last record seen per trade_id.
	// Scan order decides, never embedded timestamps. A missing ledger is
	// an empty result, not an error; malformed lines are skipped.
	Replay(ctx context.Context) (map[string]domain.Trade, error)
}
