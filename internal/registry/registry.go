// Package registry holds the in-memory trade registry and its guarded
// lifecycle transitions. Every accepted transition appends a full
// snapshot to the ledger; the registry itself is a derived cache that a
// fresh process rebuilds from replay.
package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"polyPaperBot/internal/domain"
	"polyPaperBot/internal/ports"
)

// Result reports the outcome of a transition request. Rejections are
// data, never errors: a rejected transition has no observable effect and
// must not unwind the caller.
type Result struct {
	Applied bool
	Reason  domain.RejectReason
	Trade   domain.Trade
}

// entry pairs one trade with its own mutex. Mutation exclusivity is
// per-trade so unrelated trades never contend.
type entry struct {
	mu    sync.Mutex
	trade domain.Trade
	// dead marks an entry whose creation never became durable. A caller
	// that looked the entry up before it was removed from the map must
	// treat it as not found.
	dead bool
}

// Registry is the shared in-memory trade store keyed by trade_id.
type Registry struct {
	mu     sync.RWMutex // Guards the map only, never held across a transition
	trades map[string]*entry

	ledger ports.Ledger
	logger ports.Logger
}

// New creates a trade registry backed by the given ledger.
func New(ledger ports.Ledger, log ports.Logger) (*Registry, error) {
	if ledger == nil || log == nil {
		return nil, fmt.Errorf("missing required dependencies for Registry")
	}
	return &Registry{
		trades: make(map[string]*entry),
		ledger: ledger,
		logger: log,
	}, nil
}

// NewTradeID generates a unique trade identifier. IDs embed the creation
// time in milliseconds plus a uuid fragment and are never reused.
func NewTradeID() string {
	return fmt.Sprintf("trade_%d_%s", time.Now().UnixMilli(), uuid.New().String()[:8])
}

// Create registers a new PENDING trade and appends its first snapshot.
// Duplicate creation for an existing trade_id is an idempotent no-op
// returning the existing trade. The returned bool is true only when a
// new trade was created.
func (r *Registry) Create(ctx context.Context, seed domain.Trade) (domain.Trade, bool, error) {
	t := seed
	if t.TradeID == "" {
		t.TradeID = NewTradeID()
	}
	if t.Status == "" {
		t.Status = domain.StatusPending
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	if t.CreatedAtUTC == "" {
		t.CreatedAtUTC = time.Now().UTC().Format(time.RFC3339Nano)
	}
	t.Exited = t.Status.IsTerminal()
	t.Closing = false

	r.mu.Lock()
	if existing, ok := r.trades[t.TradeID]; ok {
		r.mu.Unlock()
		existing.mu.Lock()
		snapshot := existing.trade
		existing.mu.Unlock()
		r.logger.Debug(ctx, "Duplicate trade creation ignored", map[string]interface{}{"tradeID": t.TradeID})
		return snapshot, false, nil
	}
	e := &entry{trade: t}
	// Insert with the entry lock held so the trade is invisible to
	// transitions until its first snapshot is durable.
	e.mu.Lock()
	r.trades[t.TradeID] = e
	r.mu.Unlock()

	if err := r.ledger.Append(ctx, t); err != nil {
		r.mu.Lock()
		delete(r.trades, t.TradeID)
		r.mu.Unlock()
		// A waiter that grabbed the entry pointer before the delete must
		// not commit against a trade that never durably existed.
		e.dead = true
		e.mu.Unlock()
		return domain.Trade{}, false, err
	}
	e.mu.Unlock()

	r.logger.Info(ctx, "Trade created", map[string]interface{}{
		"tradeID":  t.TradeID,
		"marketID": t.MarketID,
		"side":     t.Side,
		"size":     t.Size,
	})
	return t, true, nil
}

// Get returns a snapshot of the trade, if known.
func (r *Registry) Get(tradeID string) (domain.Trade, bool) {
	e := r.entry(tradeID)
	if e == nil {
		return domain.Trade{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dead {
		return domain.Trade{}, false
	}
	return e.trade, true
}

// Transition attempts a guarded lifecycle transition. A trade that is
// already exited or has a close in flight rejects with conflict; an
// unreachable target rejects with invalid_transition. Only ledger
// failures surface as errors, and then nothing was committed.
func (r *Registry) Transition(ctx context.Context, tradeID string, target domain.TradeStatus, fields domain.TransitionFields) (Result, error) {
	e := r.entry(tradeID)
	if e == nil {
		return Result{Reason: domain.ReasonNotFound}, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.dead {
		return Result{Reason: domain.ReasonNotFound}, nil
	}
	if e.trade.Exited || e.trade.Closing {
		return Result{Reason: domain.ReasonConflict, Trade: e.trade}, nil
	}
	return r.commitLocked(ctx, e, target, fields)
}

// ClaimClosing atomically sets the closing flag iff it is clear and the
// trade is not exited. The claim reserves the trade for a single
// in-flight close attempt; the holder must either CloseClaimed or
// ReleaseClosing.
func (r *Registry) ClaimClosing(tradeID string) bool {
	e := r.entry(tradeID)
	if e == nil {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dead || e.trade.Exited || e.trade.Closing {
		return false
	}
	e.trade.Closing = true
	return true
}

// ReleaseClosing rolls a claim back so the trade becomes a normal
// candidate again. Safe to call when the claim already resolved.
func (r *Registry) ReleaseClosing(tradeID string) {
	e := r.entry(tradeID)
	if e == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.trade.Exited {
		e.trade.Closing = false
	}
}

// CloseClaimed commits a terminal transition on behalf of a held claim.
// Valid only while closing is set and the trade is not yet exited; the
// normal Transition path refuses claimed trades, which together gives
// at-most-one terminal record per trade_id.
func (r *Registry) CloseClaimed(ctx context.Context, tradeID string, target domain.TradeStatus, fields domain.TransitionFields) (Result, error) {
	if !target.IsTerminal() {
		return Result{Reason: domain.ReasonInvalidTransition}, nil
	}
	e := r.entry(tradeID)
	if e == nil {
		return Result{Reason: domain.ReasonNotFound}, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.dead {
		return Result{Reason: domain.ReasonNotFound}, nil
	}
	if e.trade.Exited || !e.trade.Closing {
		return Result{Reason: domain.ReasonConflict, Trade: e.trade}, nil
	}
	return r.commitLocked(ctx, e, target, fields)
}

// commitLocked validates the target, merges fields, appends the snapshot
// and commits it. Caller holds e.mu. On ledger failure nothing is
// committed and the in-memory trade is unchanged.
func (r *Registry) commitLocked(ctx context.Context, e *entry, target domain.TradeStatus, fields domain.TransitionFields) (Result, error) {
	cur := e.trade
	if !domain.CanTransition(cur.Status, target) {
		return Result{Reason: domain.ReasonInvalidTransition, Trade: cur}, nil
	}

	next := cur
	if len(fields.Extra) > 0 && next.Extra != nil {
		clone := make(map[string]any, len(next.Extra)+len(fields.Extra))
		for k, v := range next.Extra {
			clone[k] = v
		}
		next.Extra = clone
	}
	fields.Apply(&next)
	next.Status = target
	if target.IsTerminal() {
		next.Exited = true
		next.Closing = false
	}

	if err := r.ledger.Append(ctx, next); err != nil {
		return Result{}, err
	}
	e.trade = next

	r.logger.Info(ctx, "Trade transition applied", map[string]interface{}{
		"tradeID": next.TradeID,
		"from":    string(cur.Status),
		"to":      string(next.Status),
	})
	return Result{Applied: true, Trade: next}, nil
}

// Candidates returns snapshots of trades eligible for the orphan sweep:
// active status, not exited, no close in flight.
func (r *Registry) Candidates() []domain.Trade {
	var out []domain.Trade
	for _, e := range r.entries() {
		e.mu.Lock()
		t := e.trade
		e.mu.Unlock()
		if t.Status.IsActive() && !t.Exited && !t.Closing {
			out = append(out, t)
		}
	}
	return out
}

// Snapshot returns copies of every known trade.
func (r *Registry) Snapshot() []domain.Trade {
	var out []domain.Trade
	for _, e := range r.entries() {
		e.mu.Lock()
		out = append(out, e.trade)
		e.mu.Unlock()
	}
	return out
}

// Restore seeds the registry from a ledger replay result. Terminal
// records load immutable; active records resume as normal sweep
// candidates. The closing flag is never persisted, so it always starts
// clear; a close attempt interrupted by a crash simply retries.
func (r *Registry) Restore(latest map[string]domain.Trade) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, t := range latest {
		t.Closing = false
		t.Exited = t.Status.IsTerminal()
		if t.CreatedAt.IsZero() {
			if created, err := time.Parse(time.RFC3339Nano, t.CreatedAtUTC); err == nil {
				t.CreatedAt = created
			} else {
				t.CreatedAt = time.Now()
			}
		}
		r.trades[id] = &entry{trade: t}
	}
	return len(latest)
}

func (r *Registry) entry(tradeID string) *entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.trades[tradeID]
}

func (r *Registry) entries() []*entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*entry, 0, len(r.trades))
	for _, e := range r.trades {
		out = append(out, e)
	}
	return out
}
