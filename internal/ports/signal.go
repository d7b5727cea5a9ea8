package ports

import (
	"context"

	"polyPaperBot/internal/domain"
)

// SignalHandler is what the signal-intake boundary calls into. The
// webhook adapter decodes and forwards; all lifecycle rules live behind
// this port.
type SignalHandler interface {
	HandleSignal(ctx context.Context, sig domain.Signal) (domain.SignalResult, error)
}
