package domain

// TradeStatus represents the lifecycle status of a paper trade.
type TradeStatus string

const (
	StatusPending   TradeStatus = "PENDING"   // Entry filled, waiting for confirmation
	StatusConfirmed TradeStatus = "CONFIRMED" // Confirmation received
	StatusAdded     TradeStatus = "ADDED"     // Size added
	StatusHedged    TradeStatus = "HEDGED"    // Position hedged
	StatusExited    TradeStatus = "EXITED"    // Position closed with a fill
	StatusCancelled TradeStatus = "CANCELLED" // Closed without a fill
)

// ActiveStatuses is the set of non-terminal statuses, in lifecycle order.
var ActiveStatuses = []TradeStatus{StatusPending, StatusConfirmed, StatusAdded, StatusHedged}

// statusRank orders the forward lifecycle chain. CANCELLED sits outside
// the chain and is reachable from any active status.
var statusRank = map[TradeStatus]int{
	StatusPending:   0,
	StatusConfirmed: 1,
	StatusAdded:     2,
	StatusHedged:    3,
	StatusExited:    4,
}

// IsTerminal reports whether the status ends the trade lifecycle.
func (s TradeStatus) IsTerminal() bool {
	return s == StatusExited || s == StatusCancelled
}

// IsActive reports whether the status is a known non-terminal status.
func (s TradeStatus) IsActive() bool {
	_, ok := statusRank[s]
	return ok && s != StatusExited
}

// CanTransition reports whether a transition from one status to another
// is allowed. Transitions only move forward along the chain
// PENDING -> CONFIRMED -> ADDED -> HEDGED -> EXITED (skips allowed),
// and any active status may move to CANCELLED.
func CanTransition(from, to TradeStatus) bool {
	if from.IsTerminal() {
		return false
	}
	if to == StatusCancelled {
		return from.IsActive()
	}
	fr, okFrom := statusRank[from]
	tr, okTo := statusRank[to]
	return okFrom && okTo && tr > fr
}

// RejectReason names why a transition request was not applied.
type RejectReason string

const (
	// ReasonInvalidTransition is returned when the requested target status
	// is not reachable from the trade's current status.
	ReasonInvalidTransition RejectReason = "invalid_transition"
	// ReasonConflict is returned when the trade is already terminal or a
	// close is in flight. Callers treat it as "already handled".
	ReasonConflict RejectReason = "conflict"
	// ReasonNotFound is returned when no trade exists for the given ID.
	ReasonNotFound RejectReason = "not_found"
)

// Well-known exit reasons written to the ledger.
const (
	ExitReasonOrphanTimeout = "orphan_timeout"
	ExitReasonResolvedWon   = "resolved_won"
	ExitReasonResolvedLost  = "resolved_lost"
	ExitReasonSignalExit    = "signal_exit"
	ExitReasonCancelled     = "cancelled"
)

// Trade sides. Paper PnL is long-for-UP, short-for-DOWN.
const (
	SideUp   = "UP"
	SideDown = "DOWN"
)
