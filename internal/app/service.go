package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"polyPaperBot/config"
	"polyPaperBot/internal/domain"
	"polyPaperBot/internal/ports"
	"polyPaperBot/internal/registry"
)

// Runner is a long-running component started by the service.
type Runner interface {
	Run(ctx context.Context) error
}

// Service translates incoming trade signals into registry operations and
// orchestrates the long-running components.
type Service struct {
	cfg    *config.Config
	logger ports.Logger
	reg    *registry.Registry
}

// NewService creates the application service.
func NewService(cfg *config.Config, logger ports.Logger, reg *registry.Registry) (*Service, error) {
	if cfg == nil || logger == nil || reg == nil {
		return nil, fmt.Errorf("missing required dependencies for Service")
	}
	return &Service{cfg: cfg, logger: logger, reg: reg}, nil
}

// Start runs the given components until a shutdown signal arrives or one
// of them fails.
func (s *Service) Start(ctx context.Context, runners ...Runner) error {
	s.logger.Info(ctx, "Starting paper trading service...")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			s.logger.Info(ctx, "Received shutdown signal", map[string]interface{}{"signal": sig.String()})
			cancel()
		case <-ctx.Done():
		}
	}()

	errCh := make(chan error, len(runners))
	for _, r := range runners {
		r := r
		go func() {
			errCh <- r.Run(ctx)
		}()
	}

	var firstErr error
	for range runners {
		if err := <-errCh; err != nil && firstErr == nil {
			firstErr = err
			cancel()
		}
	}
	s.logger.Info(context.Background(), "Paper trading service stopped")
	return firstErr
}

// HandleSignal applies one upstream signal to the trade registry.
// Rejections come back as data in the result; an error means the signal
// could not be durably applied at all.
func (s *Service) HandleSignal(ctx context.Context, sig domain.Signal) (domain.SignalResult, error) {
	switch sig.Action {
	case domain.ActionEntry:
		return s.handleEntry(ctx, sig)
	case domain.ActionConfirm:
		return s.advance(ctx, sig, domain.StatusConfirmed)
	case domain.ActionAdd:
		return s.advance(ctx, sig, domain.StatusAdded)
	case domain.ActionHedge:
		return s.advance(ctx, sig, domain.StatusHedged)
	case domain.ActionExit:
		return s.handleExit(ctx, sig)
	case domain.ActionCancel:
		return s.handleCancel(ctx, sig)
	default:
		return domain.SignalResult{OK: false, Reason: domain.ReasonInvalidTransition},
			fmt.Errorf("unknown signal action %q", sig.Action)
	}
}

func (s *Service) handleEntry(ctx context.Context, sig domain.Signal) (domain.SignalResult, error) {
	tradeID := sig.TradeID
	if tradeID == "" {
		tradeID = registry.NewTradeID()
	}

	trade, created, err := s.reg.Create(ctx, domain.Trade{
		TradeID:      tradeID,
		MarketID:     sig.MarketID,
		TokenID:      sig.TokenID,
		Side:         sig.Side,
		Confidence:   sig.Confidence,
		EntryPrice:   sig.Price,
		EntryBestBid: sig.BestBid,
		EntryBestAsk: sig.BestAsk,
		SpreadEntry:  sig.BestAsk - sig.BestBid,
		Size:         sig.Size,
		Extra:        sig.Extra,
	})
	if err != nil {
		return domain.SignalResult{}, err
	}

	s.logger.Info(ctx, "Entry signal processed", map[string]interface{}{
		"tradeID":  trade.TradeID,
		"marketID": trade.MarketID,
		"created":  created,
	})
	return domain.SignalResult{
		OK:             true,
		TradeID:        trade.TradeID,
		Status:         trade.Status,
		AlreadyHandled: !created,
	}, nil
}

func (s *Service) advance(ctx context.Context, sig domain.Signal, target domain.TradeStatus) (domain.SignalResult, error) {
	var fields domain.TransitionFields
	if sig.Confidence != 0 {
		fields.Confidence = &sig.Confidence
	}
	if sig.Size != 0 {
		fields.Size = &sig.Size
	}
	fields.Extra = sig.Extra
	return s.applyTransition(ctx, sig.TradeID, target, fields)
}

func (s *Service) handleExit(ctx context.Context, sig domain.Signal) (domain.SignalResult, error) {
	trade, ok := s.reg.Get(sig.TradeID)
	if !ok {
		return domain.SignalResult{OK: false, TradeID: sig.TradeID, Reason: domain.ReasonNotFound}, nil
	}

	pnl := trade.RealizedPnLFor(sig.Price)
	exitPrice := sig.Price
	reason := sig.Reason
	if reason == "" {
		reason = domain.ExitReasonSignalExit
	}
	return s.applyTransition(ctx, sig.TradeID, domain.StatusExited, domain.TransitionFields{
		RealizedPnL: &pnl,
		ExitPrice:   &exitPrice,
		ExitReason:  reason,
		ExitTimeUTC: time.Now().UTC().Format(time.RFC3339),
		Extra:       sig.Extra,
	})
}

func (s *Service) handleCancel(ctx context.Context, sig domain.Signal) (domain.SignalResult, error) {
	reason := sig.Reason
	if reason == "" {
		reason = domain.ExitReasonCancelled
	}
	// CANCELLED carries no fill, so realized PnL stays nil.
	return s.applyTransition(ctx, sig.TradeID, domain.StatusCancelled, domain.TransitionFields{
		ExitReason:  reason,
		ExitTimeUTC: time.Now().UTC().Format(time.RFC3339),
		Extra:       sig.Extra,
	})
}

func (s *Service) applyTransition(ctx context.Context, tradeID string, target domain.TradeStatus, fields domain.TransitionFields) (domain.SignalResult, error) {
	res, err := s.reg.Transition(ctx, tradeID, target, fields)
	if err != nil {
		return domain.SignalResult{}, err
	}
	if !res.Applied {
		s.logger.Warn(ctx, "Transition rejected", map[string]interface{}{
			"tradeID": tradeID,
			"target":  string(target),
			"reason":  string(res.Reason),
		})
		return domain.SignalResult{
			OK:             false,
			TradeID:        tradeID,
			Status:         res.Trade.Status,
			Reason:         res.Reason,
			AlreadyHandled: res.Reason == domain.ReasonConflict,
		}, nil
	}

	s.logger.Info(ctx, "Trade transitioned", map[string]interface{}{
		"tradeID": tradeID,
		"status":  string(res.Trade.Status),
	})
	return domain.SignalResult{OK: true, TradeID: tradeID, Status: res.Trade.Status}, nil
}
