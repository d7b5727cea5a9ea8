package domain

import "time"

// Trade is one lifecycle instance of a paper-executed position. The
// in-memory Trade is a derived cache; the sequence of ledger records for
// its TradeID is the source of truth.
type Trade struct {
	TradeID  string `json:"trade_id"`
	MarketID string `json:"market_id"`
	TokenID  string `json:"token_id"`
	Side     string `json:"side"` // "UP" or "DOWN"

	Status TradeStatus `json:"status"`
	// Exited is true iff Status is terminal. Immutable once set.
	Exited bool `json:"exited"`
	// Closing is a transient reservation flag set while a close attempt is
	// in flight. Never persisted: a crash mid-close leaves no trace and
	// the trade is rediscovered as a normal sweep candidate on restart.
	Closing bool `json:"-"`

	// CreatedAt is taken from time.Now() and carries Go's monotonic clock
	// reading, so ages computed with time.Since are immune to wall-clock
	// jumps. Not serialized; CreatedAtUTC is the readable record.
	CreatedAt    time.Time `json:"-"`
	CreatedAtUTC string    `json:"created_at_utc"`

	// Signal-derived attributes, copied verbatim and never interpreted.
	Confidence   float64 `json:"confidence"`
	EntryPrice   float64 `json:"entry_price"`
	EntryBestBid float64 `json:"entry_best_bid"`
	EntryBestAsk float64 `json:"entry_best_ask"`
	SpreadEntry  float64 `json:"spread_entry"`
	Size         float64 `json:"size"`

	// RealizedPnL is non-nil iff the trade reached EXITED through a
	// completed (paper) fill. CANCELLED trades carry nil.
	RealizedPnL *float64 `json:"realized_pnl"`
	ExitPrice   *float64 `json:"exit_price,omitempty"`
	ExitReason  string   `json:"exit_reason,omitempty"`
	ExitTimeUTC string   `json:"exit_time_utc,omitempty"`

	// Extra holds the open-ended signal payload (signal type, regime,
	// session, computed score, ...). Opaque to the core.
	Extra map[string]any `json:"extra,omitempty"`
}

// Age returns how long the trade has been open, using the monotonic
// reading when available and falling back to wall-clock arithmetic for
// trades restored from the ledger.
func (t *Trade) Age(now time.Time) time.Duration {
	return now.Sub(t.CreatedAt)
}

// RealizedPnLFor computes the paper PnL of closing the trade at the
// given price. UP is long, DOWN is short.
func (t *Trade) RealizedPnLFor(exitPrice float64) float64 {
	if t.Side == SideDown {
		return (t.EntryPrice - exitPrice) * t.Size
	}
	return (exitPrice - t.EntryPrice) * t.Size
}

// TransitionFields carries the field updates merged into a trade on an
// accepted transition. Nil pointers and empty strings are left untouched.
type TransitionFields struct {
	Confidence  *float64
	Size        *float64
	RealizedPnL *float64
	ExitPrice   *float64
	ExitReason  string
	ExitTimeUTC string
	Extra       map[string]any
}

// Apply merges the fields into the trade.
func (f TransitionFields) Apply(t *Trade) {
	if f.Confidence != nil {
		t.Confidence = *f.Confidence
	}
	if f.Size != nil {
		t.Size = *f.Size
	}
	if f.RealizedPnL != nil {
		t.RealizedPnL = f.RealizedPnL
	}
	if f.ExitPrice != nil {
		t.ExitPrice = f.ExitPrice
	}
	if f.ExitReason != "" {
		t.ExitReason = f.ExitReason
	}
	if f.ExitTimeUTC != "" {
		t.ExitTimeUTC = f.ExitTimeUTC
	}
	if len(f.Extra) > 0 {
		if t.Extra == nil {
			t.Extra = make(map[string]any, len(f.Extra))
		}
		for k, v := range f.Extra {
			t.Extra[k] = v
		}
	}
}
