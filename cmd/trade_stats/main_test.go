package main

import (
	"testing"

	"polyPaperBot/internal/domain"
	"polyPaperBot/internal/stats"

	"github.com/stretchr/testify/assert"
)

func pf(v float64) *float64 { return &v }

func TestWinrateLineUsesClosedAsTotal(t *testing.T) {
	// One closed win plus one still-open trade. The total column counts
	// closed trades only, so the line stays consistent with the rate.
	summary := stats.Reduce(map[string]domain.Trade{
		"t1": {TradeID: "t1", Status: domain.StatusExited, Exited: true, RealizedPnL: pf(1)},
		"t2": {TradeID: "t2", Status: domain.StatusPending},
	})

	assert.Equal(t, "1 0 0 1 100.0", winrateLine(summary))
	assert.Equal(t, "2 1 1", countsLine(summary))
}

func TestOutputLinesEmpty(t *testing.T) {
	summary := stats.Reduce(nil)
	assert.Equal(t, "0 0 0 0 0.0", winrateLine(summary))
	assert.Equal(t, "0 0 0", countsLine(summary))
}
