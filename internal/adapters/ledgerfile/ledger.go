// Package ledgerfile implements the ports.Ledger interface on an
// append-only NDJSON file: one trade snapshot per line, a current
// segment plus zero or more rotated historical segments.
package ledgerfile

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"polyPaperBot/internal/domain"
	"polyPaperBot/internal/ports"
)

// maxLineBytes bounds a single ledger line during replay. Snapshots are
// small; anything larger is treated as malformed.
const maxLineBytes = 1 << 20

// Ledger is a file-backed append-only trade record store.
type Ledger struct {
	mu     sync.Mutex // Serializes appends and rotation (single-writer discipline)
	path   string
	file   *os.File
	logger ports.Logger
}

// Config holds configuration for the file ledger.
type Config struct {
	// Path of the current segment, e.g. ./data/paper_trades.jsonl.
	// Historical segments live next to it as <name>.<timestamp>.jsonl.
	Path   string
	Logger ports.Logger
}

// New opens (creating if necessary) the current ledger segment for appending.
func New(cfg Config) (*Ledger, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for file ledger")
	}
	if cfg.Path == "" {
		return nil, fmt.Errorf("%w: ledger path must be set", ports.ErrConfigurationError)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create ledger directory '%s': %w", filepath.Dir(cfg.Path), err)
	}

	f, err := os.OpenFile(cfg.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger at '%s': %w", cfg.Path, err)
	}

	cfg.Logger.Info(context.Background(), "Ledger segment opened", map[string]interface{}{"path": cfg.Path})
	return &Ledger{path: cfg.Path, file: f, logger: cfg.Logger}, nil
}

// OpenReadOnly prepares a ledger for replay without creating or writing
// the current segment. Used by reporting tools; Append and Rotate must
// not be called on a read-only ledger.
func OpenReadOnly(cfg Config) (*Ledger, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for file ledger")
	}
	if cfg.Path == "" {
		return nil, fmt.Errorf("%w: ledger path must be set", ports.ErrConfigurationError)
	}
	return &Ledger{path: cfg.Path, logger: cfg.Logger}, nil
}

// Append durably writes one snapshot. The write and fsync happen under
// the writer mutex so replay always sees a well-defined record order;
// at most the final line can be torn by a crash.
func (l *Ledger) Append(ctx context.Context, trade domain.Trade) error {
	line, err := json.Marshal(trade)
	if err != nil {
		return fmt.Errorf("%w: marshal record for trade %s: %v", ports.ErrLedgerAppendFailed, trade.TradeID, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("%w: write record for trade %s: %v", ports.ErrLedgerAppendFailed, trade.TradeID, err)
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("%w: sync after trade %s: %v", ports.ErrLedgerAppendFailed, trade.TradeID, err)
	}
	return nil
}

// Replay scans historical segments in lexical order followed by the
// current segment and keeps the record encountered last per trade_id.
// Scan order decides; embedded timestamps are deliberately ignored so
// back-dated or clock-skewed records cannot reorder history.
func (l *Ledger) Replay(ctx context.Context) (map[string]domain.Trade, error) {
	latest := make(map[string]domain.Trade)
	for _, segment := range l.segments() {
		if err := l.replayFile(ctx, segment, latest); err != nil {
			return nil, err
		}
	}
	return latest, nil
}

// segments returns all ledger files in replay order: rotated history
// first (sorted by name, which embeds the rotation timestamp), then the
// current segment.
func (l *Ledger) segments() []string {
	history, err := filepath.Glob(l.historyPattern())
	if err != nil {
		// Only possible with a malformed pattern; treat as no history.
		history = nil
	}
	sort.Strings(history)
	return append(history, l.path)
}

func (l *Ledger) historyPattern() string {
	ext := filepath.Ext(l.path) // ".jsonl"
	base := strings.TrimSuffix(l.path, ext)
	return base + ".*" + ext
}

func (l *Ledger) replayFile(ctx context.Context, path string, latest map[string]domain.Trade) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Missing ledger is equivalent to empty history.
			return nil
		}
		return fmt.Errorf("failed to open ledger segment '%s': %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var trade domain.Trade
		if err := json.Unmarshal([]byte(line), &trade); err != nil {
			// Malformed or truncated line (e.g. torn tail from a partial
			// write). Skipped, never fatal to replay.
			l.logger.Debug(ctx, "Skipping malformed ledger line", map[string]interface{}{
				"segment": path,
				"line":    lineNo,
			})
			continue
		}
		if trade.TradeID == "" {
			continue
		}
		if created, err := time.Parse(time.RFC3339Nano, trade.CreatedAtUTC); err == nil {
			trade.CreatedAt = created
		}
		latest[trade.TradeID] = trade
	}
	if err := scanner.Err(); err != nil {
		// An oversized or unreadable tail is treated like a torn line.
		l.logger.Warn(ctx, "Ledger segment scan stopped early", map[string]interface{}{
			"segment": path,
			"line":    lineNo,
		})
	}
	return nil
}

// Rotate renames the current segment to a timestamped historical segment
// and starts a fresh one. Replay keeps working across the rotation
// because history sorts before the new current segment.
func (l *Ledger) Rotate(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.file.Close(); err != nil {
		return fmt.Errorf("%w: close current segment: %v", ports.ErrLedgerRotateFailed, err)
	}

	ext := filepath.Ext(l.path)
	rotated := strings.TrimSuffix(l.path, ext) + "." + time.Now().UTC().Format("20060102T150405Z") + ext
	if err := os.Rename(l.path, rotated); err != nil {
		// Try to reopen the original so the ledger stays usable.
		if f, openErr := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644); openErr == nil {
			l.file = f
		}
		return fmt.Errorf("%w: rename to '%s': %v", ports.ErrLedgerRotateFailed, rotated, err)
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("%w: open fresh segment: %v", ports.ErrLedgerRotateFailed, err)
	}
	l.file = f

	l.logger.Info(ctx, "Ledger segment rotated", map[string]interface{}{"rotated": rotated})
	return nil
}

// Close releases the current segment file handle.
func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}
