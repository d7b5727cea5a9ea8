package domain

// SignalAction is the action requested by an external trading signal.
type SignalAction string

const (
	ActionEntry   SignalAction = "ENTRY"
	ActionConfirm SignalAction = "CONFIRM"
	ActionAdd     SignalAction = "ADD"
	ActionHedge   SignalAction = "HEDGE"
	ActionExit    SignalAction = "EXIT"
	ActionCancel  SignalAction = "CANCEL"
)

// Signal is the payload produced by the upstream signal source. Business
// semantics of the Extra fields are never validated by the core.
type Signal struct {
	Action   SignalAction `json:"action"`
	TradeID  string       `json:"trade_id,omitempty"`
	MarketID string       `json:"market_id"`
	TokenID  string       `json:"token_id"`
	Side     string       `json:"side,omitempty"`

	Price      float64 `json:"price"` // entry price for ENTRY, exit price for EXIT
	BestBid    float64 `json:"best_bid,omitempty"`
	BestAsk    float64 `json:"best_ask,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	Size       float64 `json:"size,omitempty"`
	Reason     string  `json:"reason,omitempty"`

	Extra map[string]any `json:"extra,omitempty"`
}

// SignalResult is what the intake boundary reports back to the caller.
// Rejections are data, not errors: they never unwind control flow.
type SignalResult struct {
	OK             bool         `json:"ok"`
	TradeID        string       `json:"trade_id,omitempty"`
	Status         TradeStatus  `json:"status,omitempty"`
	Reason         RejectReason `json:"reason,omitempty"`
	AlreadyHandled bool         `json:"already_handled,omitempty"`
}
