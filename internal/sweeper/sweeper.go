// Package sweeper runs the periodic orphan cleanup: active trades that
// have outlived the staleness threshold are claimed, reconciled against
// the external collaborator and force-closed. The claim-verify-commit
// protocol keeps the sweep safe against a racing normal completion.
package sweeper

import (
	"context"
	"time"

	"polyPaperBot/internal/domain"
	"polyPaperBot/internal/ports"
	"polyPaperBot/internal/registry"
	"polyPaperBot/internal/window"
)

// Config holds the sweeper parameters.
type Config struct {
	// Interval between sweep cycles.
	Interval time.Duration
	// BarMinutes is the bar size used for age-in-bars.
	BarMinutes int
	// StaleBars is the age, in whole bars, at which an active trade
	// becomes an orphan.
	StaleBars int
	// Telemetry, when set, receives the open-trade gauge after each
	// cycle. Best-effort.
	Telemetry ports.Telemetry
}

// Sweeper scans the registry for orphan trades and closes them.
type Sweeper struct {
	cfg    Config
	reg    *registry.Registry
	recon  ports.Reconciler
	logger ports.Logger

	// now is swappable for tests.
	now func() time.Time
}

// New creates a sweeper. All dependencies are required.
func New(cfg Config, reg *registry.Registry, recon ports.Reconciler, log ports.Logger) (*Sweeper, error) {
	if reg == nil || recon == nil || log == nil {
		return nil, ports.ErrConfigurationError
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 60 * time.Second
	}
	if cfg.BarMinutes <= 0 {
		cfg.BarMinutes = 15
	}
	if cfg.StaleBars <= 0 {
		cfg.StaleBars = 2
	}
	return &Sweeper{cfg: cfg, reg: reg, recon: recon, logger: log, now: time.Now}, nil
}

// Run executes sweep cycles until the context is cancelled. Failures
// inside a cycle never abort the loop.
func (s *Sweeper) Run(ctx context.Context) error {
	s.logger.Info(ctx, "Orphan sweeper started", map[string]interface{}{
		"interval":   s.cfg.Interval.String(),
		"barMinutes": s.cfg.BarMinutes,
		"staleBars":  s.cfg.StaleBars,
	})
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info(ctx, "Orphan sweeper stopped")
			return nil
		case <-ticker.C:
			closed := s.SweepOnce(ctx)
			if closed > 0 {
				s.logger.Info(ctx, "Orphan sweep closed trades", map[string]interface{}{"closed": closed})
			}
		}
	}
}

// SweepOnce runs a single sweep cycle and returns how many trades were
// closed.
func (s *Sweeper) SweepOnce(ctx context.Context) int {
	closed := 0
	candidates := s.reg.Candidates()
	for _, candidate := range candidates {
		if s.sweepCandidate(ctx, candidate) {
			closed++
		}
	}
	if s.cfg.Telemetry != nil {
		_ = s.cfg.Telemetry.SetGauge("paper_trades_open", float64(len(candidates)-closed))
	}
	return closed
}

// sweepCandidate applies the claim-verify-commit protocol to one trade.
// The per-trade lock is held only inside the registry calls, never
// across the reconciliation round trip.
func (s *Sweeper) sweepCandidate(ctx context.Context, t domain.Trade) bool {
	ageBars := window.BarsElapsed(t.Age(s.now()), s.cfg.BarMinutes)
	if ageBars < s.cfg.StaleBars {
		return false
	}

	// Claim: CAS against a normal completion that may have landed since
	// the candidate snapshot was taken.
	if !s.reg.ClaimClosing(t.TradeID) {
		s.logger.Debug(ctx, "Orphan candidate already handled", map[string]interface{}{"tradeID": t.TradeID})
		return false
	}

	// Verify: external call, may block or fail. No per-trade lock held.
	verdict, err := s.recon.Resolve(ctx, t.MarketID, t.TokenID)
	if err != nil {
		s.logger.Warn(ctx, "Reconciliation failed, rolling back claim", map[string]interface{}{
			"tradeID":  t.TradeID,
			"marketID": t.MarketID,
			"error":    err.Error(),
		})
		s.reg.ReleaseClosing(t.TradeID)
		return false
	}

	fields, ok := s.closeFields(t, verdict)
	if !ok {
		// Inconclusive and no price to fill at: no fake exits. Retry
		// next cycle.
		s.logger.Debug(ctx, "Reconciliation inconclusive, trade stays open", map[string]interface{}{"tradeID": t.TradeID})
		s.reg.ReleaseClosing(t.TradeID)
		return false
	}

	// Commit: terminal transition under the claim.
	res, err := s.reg.CloseClaimed(ctx, t.TradeID, domain.StatusExited, fields)
	if err != nil {
		s.logger.Error(ctx, err, "Orphan close commit failed, rolling back claim", map[string]interface{}{"tradeID": t.TradeID})
		s.reg.ReleaseClosing(t.TradeID)
		return false
	}
	if !res.Applied {
		// Lost the race after all; nothing was written. Release so the
		// trade cannot sit claimed forever.
		s.reg.ReleaseClosing(t.TradeID)
		return false
	}

	s.logger.Warn(ctx, "Orphan trade closed", map[string]interface{}{
		"tradeID":    t.TradeID,
		"ageBars":    ageBars,
		"exitReason": res.Trade.ExitReason,
	})
	return true
}

// closeFields maps a reconciliation verdict onto terminal transition
// fields. Returns false when the verdict gives nothing to fill at.
func (s *Sweeper) closeFields(t domain.Trade, verdict ports.ReconcileVerdict) (domain.TransitionFields, bool) {
	var exitPrice float64
	var reason string

	switch verdict.Outcome {
	case ports.OutcomeWon:
		exitPrice, reason = 1.0, domain.ExitReasonResolvedWon
	case ports.OutcomeLost:
		exitPrice, reason = 0.0, domain.ExitReasonResolvedLost
	case ports.OutcomeUnresolved:
		if verdict.LastBid == nil {
			return domain.TransitionFields{}, false
		}
		exitPrice, reason = *verdict.LastBid, domain.ExitReasonOrphanTimeout
	default:
		return domain.TransitionFields{}, false
	}

	pnl := t.RealizedPnLFor(exitPrice)
	return domain.TransitionFields{
		RealizedPnL: &pnl,
		ExitPrice:   &exitPrice,
		ExitReason:  reason,
		ExitTimeUTC: s.now().UTC().Format(time.RFC3339Nano),
	}, true
}
