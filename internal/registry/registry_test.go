package registry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"polyPaperBot/internal/adapters/logger"
	"polyPaperBot/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memLedger is an in-memory ports.Ledger for tests. It records every
// append in order and can be told to fail.
type memLedger struct {
	mu      sync.Mutex
	records []domain.Trade
	failAll bool
}

func (m *memLedger) Append(ctx context.Context, trade domain.Trade) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return errors.New("ledger unavailable")
	}
	m.records = append(m.records, trade)
	return nil
}

func (m *memLedger) Replay(ctx context.Context) (map[string]domain.Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	latest := make(map[string]domain.Trade)
	for _, rec := range m.records {
		latest[rec.TradeID] = rec
	}
	return latest, nil
}

func (m *memLedger) terminalCount(tradeID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, rec := range m.records {
		if rec.TradeID == tradeID && rec.Status.IsTerminal() {
			n++
		}
	}
	return n
}

func setupRegistry(t *testing.T) (*Registry, *memLedger) {
	t.Helper()
	ledger := &memLedger{}
	reg, err := New(ledger, logger.NopLogger{})
	require.NoError(t, err)
	return reg, ledger
}

func seed(id string) domain.Trade {
	return domain.Trade{
		TradeID:    id,
		MarketID:   "mkt-1",
		TokenID:    "tok-1",
		Side:       domain.SideUp,
		EntryPrice: 0.55,
		Size:       10,
	}
}

func ptr(v float64) *float64 { return &v }

func TestCreateIsIdempotent(t *testing.T) {
	reg, ledger := setupRegistry(t)
	ctx := context.Background()

	first, created, err := reg.Create(ctx, seed("t1"))
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, domain.StatusPending, first.Status)

	// Advance, then attempt a duplicate create: must be a no-op that
	// returns the current trade, not a reset to PENDING.
	_, err = reg.Transition(ctx, "t1", domain.StatusConfirmed, domain.TransitionFields{})
	require.NoError(t, err)

	again, created, err := reg.Create(ctx, seed("t1"))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, domain.StatusConfirmed, again.Status)

	// Only two records: the PENDING snapshot and the CONFIRMED one.
	ledger.mu.Lock()
	defer ledger.mu.Unlock()
	assert.Len(t, ledger.records, 2)
}

func TestCreateGeneratesUniqueIDs(t *testing.T) {
	reg, _ := setupRegistry(t)
	ctx := context.Background()

	a, _, err := reg.Create(ctx, domain.Trade{MarketID: "m"})
	require.NoError(t, err)
	b, _, err := reg.Create(ctx, domain.Trade{MarketID: "m"})
	require.NoError(t, err)
	assert.NotEmpty(t, a.TradeID)
	assert.NotEqual(t, a.TradeID, b.TradeID)
}

func TestTransitionTable(t *testing.T) {
	tests := []struct {
		name       string
		path       []domain.TradeStatus // applied in order before the attempt
		target     domain.TradeStatus
		wantApply  bool
		wantReason domain.RejectReason
	}{
		{"pending to confirmed", nil, domain.StatusConfirmed, true, ""},
		{"pending straight to exited", nil, domain.StatusExited, true, ""},
		{"pending to hedged skips ahead", nil, domain.StatusHedged, true, ""},
		{"pending to cancelled", nil, domain.StatusCancelled, true, ""},
		{"confirmed to added", []domain.TradeStatus{domain.StatusConfirmed}, domain.StatusAdded, true, ""},
		{"hedged back to confirmed", []domain.TradeStatus{domain.StatusConfirmed, domain.StatusHedged}, domain.StatusConfirmed, false, domain.ReasonInvalidTransition},
		{"added to added is not forward", []domain.TradeStatus{domain.StatusAdded}, domain.StatusAdded, false, domain.ReasonInvalidTransition},
		{"exited trade rejects everything", []domain.TradeStatus{domain.StatusExited}, domain.StatusCancelled, false, domain.ReasonConflict},
		{"cancelled trade rejects everything", []domain.TradeStatus{domain.StatusCancelled}, domain.StatusExited, false, domain.ReasonConflict},
		{"unknown target", nil, domain.TradeStatus("BOGUS"), false, domain.ReasonInvalidTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg, _ := setupRegistry(t)
			ctx := context.Background()
			_, _, err := reg.Create(ctx, seed("t1"))
			require.NoError(t, err)
			for _, step := range tt.path {
				res, err := reg.Transition(ctx, "t1", step, domain.TransitionFields{})
				require.NoError(t, err)
				require.True(t, res.Applied, "setup step %s", step)
			}

			res, err := reg.Transition(ctx, "t1", tt.target, domain.TransitionFields{})
			require.NoError(t, err)
			assert.Equal(t, tt.wantApply, res.Applied)
			if !tt.wantApply {
				assert.Equal(t, tt.wantReason, res.Reason)
			}
		})
	}
}

func TestTransitionUnknownTrade(t *testing.T) {
	reg, _ := setupRegistry(t)
	res, err := reg.Transition(context.Background(), "nope", domain.StatusConfirmed, domain.TransitionFields{})
	require.NoError(t, err)
	assert.False(t, res.Applied)
	assert.Equal(t, domain.ReasonNotFound, res.Reason)
}

func TestTerminalTransitionSetsFlags(t *testing.T) {
	reg, _ := setupRegistry(t)
	ctx := context.Background()
	_, _, err := reg.Create(ctx, seed("t1"))
	require.NoError(t, err)

	res, err := reg.Transition(ctx, "t1", domain.StatusExited, domain.TransitionFields{
		RealizedPnL: ptr(2.5),
		ExitPrice:   ptr(0.80),
		ExitReason:  domain.ExitReasonSignalExit,
		ExitTimeUTC: "2026-02-13T10:30:00Z",
	})
	require.NoError(t, err)
	require.True(t, res.Applied)
	assert.True(t, res.Trade.Exited)
	assert.False(t, res.Trade.Closing)
	require.NotNil(t, res.Trade.RealizedPnL)
	assert.InDelta(t, 2.5, *res.Trade.RealizedPnL, 1e-9)
	assert.Equal(t, domain.ExitReasonSignalExit, res.Trade.ExitReason)
}

func TestExitedTradeIsImmutable(t *testing.T) {
	reg, _ := setupRegistry(t)
	ctx := context.Background()
	_, _, err := reg.Create(ctx, seed("t1"))
	require.NoError(t, err)

	res, err := reg.Transition(ctx, "t1", domain.StatusExited, domain.TransitionFields{RealizedPnL: ptr(1.0)})
	require.NoError(t, err)
	require.True(t, res.Applied)
	before, _ := reg.Get("t1")

	// Every further attempt, including field updates, is a conflict and
	// has no observable effect.
	res, err = reg.Transition(ctx, "t1", domain.StatusCancelled, domain.TransitionFields{RealizedPnL: ptr(-99.0), ExitReason: "late"})
	require.NoError(t, err)
	assert.False(t, res.Applied)
	assert.Equal(t, domain.ReasonConflict, res.Reason)

	after, _ := reg.Get("t1")
	assert.Equal(t, before, after)
}

func TestClaimedTradeRejectsNormalTransition(t *testing.T) {
	reg, _ := setupRegistry(t)
	ctx := context.Background()
	_, _, err := reg.Create(ctx, seed("t1"))
	require.NoError(t, err)

	require.True(t, reg.ClaimClosing("t1"))
	// Second claim must fail: closing is exclusive per trade_id.
	assert.False(t, reg.ClaimClosing("t1"))

	res, err := reg.Transition(ctx, "t1", domain.StatusExited, domain.TransitionFields{})
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonConflict, res.Reason)

	// Rollback makes the trade claimable and transitionable again.
	reg.ReleaseClosing("t1")
	res, err = reg.Transition(ctx, "t1", domain.StatusConfirmed, domain.TransitionFields{})
	require.NoError(t, err)
	assert.True(t, res.Applied)
}

func TestCloseClaimedRequiresClaim(t *testing.T) {
	reg, _ := setupRegistry(t)
	ctx := context.Background()
	_, _, err := reg.Create(ctx, seed("t1"))
	require.NoError(t, err)

	// Without a claim, CloseClaimed is a conflict.
	res, err := reg.CloseClaimed(ctx, "t1", domain.StatusExited, domain.TransitionFields{})
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonConflict, res.Reason)

	// Non-terminal targets are refused outright.
	require.True(t, reg.ClaimClosing("t1"))
	res, err = reg.CloseClaimed(ctx, "t1", domain.StatusHedged, domain.TransitionFields{})
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonInvalidTransition, res.Reason)

	res, err = reg.CloseClaimed(ctx, "t1", domain.StatusExited, domain.TransitionFields{
		RealizedPnL: ptr(0.5),
		ExitReason:  domain.ExitReasonOrphanTimeout,
	})
	require.NoError(t, err)
	require.True(t, res.Applied)
	assert.True(t, res.Trade.Exited)
	assert.False(t, res.Trade.Closing)
}

func TestLedgerFailureCommitsNothing(t *testing.T) {
	reg, ledger := setupRegistry(t)
	ctx := context.Background()
	_, _, err := reg.Create(ctx, seed("t1"))
	require.NoError(t, err)

	ledger.mu.Lock()
	ledger.failAll = true
	ledger.mu.Unlock()

	_, err = reg.Transition(ctx, "t1", domain.StatusConfirmed, domain.TransitionFields{})
	require.Error(t, err)

	got, ok := reg.Get("t1")
	require.True(t, ok)
	assert.Equal(t, domain.StatusPending, got.Status)
}

// gateLedger stalls the first append until released, then fails it.
// Later appends succeed and are recorded.
type gateLedger struct {
	mu        sync.Mutex
	records   []domain.Trade
	firstDone bool
	entered   chan struct{}
	release   chan struct{}
}

func (g *gateLedger) Append(ctx context.Context, trade domain.Trade) error {
	g.mu.Lock()
	first := !g.firstDone
	g.firstDone = true
	g.mu.Unlock()
	if first {
		close(g.entered)
		<-g.release
		return errors.New("ledger unavailable")
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.records = append(g.records, trade)
	return nil
}

func (g *gateLedger) Replay(ctx context.Context) (map[string]domain.Trade, error) {
	return map[string]domain.Trade{}, nil
}

// TestCreateFailureInvalidatesRacingTransition pins the window where a
// transition has looked the trade up while its creating append is still
// in flight. When that append fails, the waiter must observe not_found
// and write nothing, not commit against a trade that never existed.
func TestCreateFailureInvalidatesRacingTransition(t *testing.T) {
	ledger := &gateLedger{entered: make(chan struct{}), release: make(chan struct{})}
	reg, err := New(ledger, logger.NopLogger{})
	require.NoError(t, err)
	ctx := context.Background()

	createErr := make(chan error, 1)
	go func() {
		_, _, err := reg.Create(ctx, seed("t1"))
		createErr <- err
	}()
	// The first append is in flight, so the entry is visible in the map.
	<-ledger.entered

	transRes := make(chan Result, 1)
	go func() {
		res, err := reg.Transition(ctx, "t1", domain.StatusConfirmed, domain.TransitionFields{})
		assert.NoError(t, err)
		transRes <- res
	}()
	// Let the transition reach the entry lock, then fail the creation.
	time.Sleep(10 * time.Millisecond)
	close(ledger.release)

	assert.Error(t, <-createErr)
	res := <-transRes
	assert.False(t, res.Applied)
	assert.Equal(t, domain.ReasonNotFound, res.Reason)
	assert.Empty(t, ledger.records)

	_, ok := reg.Get("t1")
	assert.False(t, ok)
}

func TestCandidatesFiltering(t *testing.T) {
	reg, _ := setupRegistry(t)
	ctx := context.Background()

	steps := map[string][]domain.TradeStatus{
		"t1": nil,
		"t2": {domain.StatusConfirmed},
		"t3": {domain.StatusConfirmed, domain.StatusAdded},
		"t4": {domain.StatusHedged},
		"t5": {domain.StatusExited},
		"t6": nil,
	}
	for _, id := range []string{"t1", "t2", "t3", "t4", "t5", "t6"} {
		_, _, err := reg.Create(ctx, seed(id))
		require.NoError(t, err)
		for _, step := range steps[id] {
			res, err := reg.Transition(ctx, id, step, domain.TransitionFields{})
			require.NoError(t, err)
			require.True(t, res.Applied)
		}
	}
	require.True(t, reg.ClaimClosing("t6"))

	ids := make(map[string]bool)
	for _, c := range reg.Candidates() {
		ids[c.TradeID] = true
	}
	assert.Equal(t, map[string]bool{"t1": true, "t2": true, "t3": true, "t4": true}, ids)
}

func TestRestoreFromReplay(t *testing.T) {
	reg, _ := setupRegistry(t)
	pnl := 1.0
	n := reg.Restore(map[string]domain.Trade{
		"t1": {TradeID: "t1", Status: domain.StatusHedged, CreatedAtUTC: "2026-02-13T10:00:00Z"},
		"t2": {TradeID: "t2", Status: domain.StatusExited, RealizedPnL: &pnl, CreatedAtUTC: "2026-02-13T09:00:00Z"},
	})
	assert.Equal(t, 2, n)

	// Active record resumes as a candidate; terminal record is immutable.
	cands := reg.Candidates()
	require.Len(t, cands, 1)
	assert.Equal(t, "t1", cands[0].TradeID)
	assert.False(t, cands[0].CreatedAt.IsZero())

	res, err := reg.Transition(context.Background(), "t2", domain.StatusCancelled, domain.TransitionFields{})
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonConflict, res.Reason)
}

// TestAtMostOneTerminalRecordUnderRace pits the normal completion path
// against a sweeper-style claim on the same trade, repeatedly. Exactly
// one side may produce the terminal ledger record; the other must
// observe a conflict and write nothing.
func TestAtMostOneTerminalRecordUnderRace(t *testing.T) {
	for i := 0; i < 50; i++ {
		reg, ledger := setupRegistry(t)
		ctx := context.Background()
		_, _, err := reg.Create(ctx, seed("t1"))
		assert.NoError(t, err)

		var wg sync.WaitGroup
		wg.Add(2)

		var normalApplied, sweepApplied bool
		go func() {
			defer wg.Done()
			res, err := reg.Transition(ctx, "t1", domain.StatusExited, domain.TransitionFields{
				RealizedPnL: ptr(1.0),
				ExitReason:  domain.ExitReasonSignalExit,
			})
			assert.NoError(t, err)
			normalApplied = res.Applied
		}()
		go func() {
			defer wg.Done()
			if !reg.ClaimClosing("t1") {
				return
			}
			res, err := reg.CloseClaimed(ctx, "t1", domain.StatusExited, domain.TransitionFields{
				RealizedPnL: ptr(-1.0),
				ExitReason:  domain.ExitReasonOrphanTimeout,
			})
			assert.NoError(t, err)
			sweepApplied = res.Applied
		}()
		wg.Wait()

		assert.Equal(t, 1, ledger.terminalCount("t1"), "iteration %d", i)
		assert.True(t, normalApplied != sweepApplied, "iteration %d: exactly one closer must win", i)

		got, _ := reg.Get("t1")
		assert.True(t, got.Exited)
		assert.False(t, got.Closing)
	}
}
