package ports

import "context"

// ReconcileOutcome is the terminal-status verdict for a market.
type ReconcileOutcome string

const (
	OutcomeWon        ReconcileOutcome = "WON"
	OutcomeLost       ReconcileOutcome = "LOST"
	OutcomeUnresolved ReconcileOutcome = "UNRESOLVED"
)

// ReconcileVerdict is what the external reconciliation collaborator
// reports for a trade's market. LastBid, when present on an unresolved
// market, is the price an orphan close may fill at.
type ReconcileVerdict struct {
	Outcome ReconcileOutcome
	LastBid *float64
}

// Reconciler queries the external collaborator for a trade's true
// terminal status. Calls may block or fail; the sweeper must never hold
// a per-trade lock across them.
type Reconciler interface {
	Resolve(ctx context.Context, marketID, tokenID string) (ReconcileVerdict, error)
}
