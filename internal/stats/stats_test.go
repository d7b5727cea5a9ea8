package stats

import (
	"testing"

	"polyPaperBot/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func closed(id string, pnl *float64, reason string) domain.Trade {
	status := domain.StatusExited
	if pnl == nil {
		status = domain.StatusCancelled
	}
	return domain.Trade{
		TradeID:     id,
		Status:      status,
		Exited:      true,
		RealizedPnL: pnl,
		ExitReason:  reason,
		Confidence:  0.65,
	}
}

func pf(v float64) *float64 { return &v }

func TestReduceCounts(t *testing.T) {
	latest := map[string]domain.Trade{
		"t1": closed("t1", pf(1), domain.ExitReasonSignalExit),
		"t2": closed("t2", pf(-1), domain.ExitReasonSignalExit),
		"t3": closed("t3", pf(0), domain.ExitReasonOrphanTimeout),
		"t4": closed("t4", nil, domain.ExitReasonCancelled),
		"t5": {TradeID: "t5", Status: domain.StatusConfirmed},
		"t6": {TradeID: "t6", Status: domain.StatusPending},
	}

	s := Reduce(latest)

	assert.Equal(t, 6, s.Total)
	assert.Equal(t, 2, s.Open)
	assert.Equal(t, 4, s.Closed)
	assert.Equal(t, 1, s.Wins)
	assert.Equal(t, 1, s.Losses)
	assert.Equal(t, 1, s.Ties)
	assert.Equal(t, 1, s.Indeterminate)
	assert.InDelta(t, 25.0, s.WinRatePct, 1e-9)
	assert.Equal(t, map[string]int{
		domain.ExitReasonSignalExit:    2,
		domain.ExitReasonOrphanTimeout: 1,
		domain.ExitReasonCancelled:     1,
	}, s.ExitReasons)
}

func TestWinRateIgnoresTiesInNumeratorOnly(t *testing.T) {
	// PnLs [+1, -1, 0]: one win out of three closed trades.
	latest := map[string]domain.Trade{
		"a": closed("a", pf(1), ""),
		"b": closed("b", pf(-1), ""),
		"c": closed("c", pf(0), ""),
	}
	s := Reduce(latest)
	assert.InDelta(t, 33.333, s.WinRatePct, 0.001)
}

func TestDescriptiveStats(t *testing.T) {
	latest := map[string]domain.Trade{
		"a": closed("a", pf(1), ""),
		"b": closed("b", pf(2), ""),
		"c": closed("c", pf(3), ""),
		"d": closed("d", pf(4), ""),
	}
	s := Reduce(latest)

	require.Equal(t, 4, s.PnL.Count)
	assert.InDelta(t, 2.5, s.PnL.Mean, 1e-9)
	assert.InDelta(t, 2.5, s.PnL.Median, 1e-9)
	assert.InDelta(t, 4.0, s.PnL.P90, 1e-9)
	// Population stddev of [1,2,3,4].
	assert.InDelta(t, 1.1180, s.PnL.StdDev, 1e-4)
	assert.InDelta(t, 10.0, s.TotalPnL, 1e-9)
}

func TestConfidenceBuckets(t *testing.T) {
	a := closed("a", pf(1), "")
	a.Confidence = 0.62
	b := closed("b", pf(3), "")
	b.Confidence = 0.68
	c := closed("c", pf(-2), "")
	c.Confidence = 0.81

	s := Reduce(map[string]domain.Trade{"a": a, "b": b, "c": c})

	require.Contains(t, s.PnLByConfidence, "0.6-0.7")
	require.Contains(t, s.PnLByConfidence, "0.8-0.9")
	assert.Equal(t, 2, s.PnLByConfidence["0.6-0.7"].Count)
	assert.InDelta(t, 2.0, s.PnLByConfidence["0.6-0.7"].Mean, 1e-9)
	assert.Equal(t, 1, s.PnLByConfidence["0.8-0.9"].Count)
}

func TestSpreadThresholds(t *testing.T) {
	a := domain.Trade{TradeID: "a", Status: domain.StatusPending, SpreadEntry: 0.005}
	b := domain.Trade{TradeID: "b", Status: domain.StatusPending, SpreadEntry: 0.03}
	c := domain.Trade{TradeID: "c", Status: domain.StatusPending, SpreadEntry: 0.12}
	d := domain.Trade{TradeID: "d", Status: domain.StatusPending, SpreadEntry: 0.015}

	s := Reduce(map[string]domain.Trade{"a": a, "b": b, "c": c, "d": d})

	assert.InDelta(t, 75.0, s.SpreadAbovePct[">0.010"], 1e-9)
	assert.InDelta(t, 50.0, s.SpreadAbovePct[">0.020"], 1e-9)
	assert.InDelta(t, 25.0, s.SpreadAbovePct[">0.050"], 1e-9)
	assert.InDelta(t, 25.0, s.SpreadAbovePct[">0.100"], 1e-9)
}

func TestWorstOrdering(t *testing.T) {
	latest := map[string]domain.Trade{
		"a": closed("a", pf(-5), ""),
		"b": closed("b", pf(2), ""),
		"c": closed("c", pf(-1), ""),
		"d": closed("d", nil, ""),
	}
	s := Reduce(latest)

	worst := s.Worst(2)
	require.Len(t, worst, 2)
	assert.Equal(t, "a", worst[0].TradeID)
	assert.Equal(t, "c", worst[1].TradeID)

	// Asking for more than available is clamped, never panics.
	assert.Len(t, s.Worst(10), 3)
}

func TestReduceEmpty(t *testing.T) {
	s := Reduce(nil)
	assert.Equal(t, 0, s.Total)
	assert.Equal(t, 0.0, s.WinRatePct)
	assert.Empty(t, s.Worst(5))
}
