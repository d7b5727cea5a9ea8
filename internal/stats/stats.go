// Package stats reduces a ledger replay snapshot into summary figures.
// It is read-only and has no opinion on where the snapshot came from.
package stats

import (
	"fmt"
	"math"
	"sort"

	"polyPaperBot/internal/domain"
)

// spreadThresholds are the entry-spread cut points reported in the
// distribution. Values are absolute price spread (ask - bid).
var spreadThresholds = []float64{0.01, 0.02, 0.05, 0.10}

// Descriptive holds the standard descriptive statistics over a PnL set.
// StdDev is the population standard deviation.
type Descriptive struct {
	Count  int
	Mean   float64
	Median float64
	P90    float64
	StdDev float64
}

// Summary is the result of reducing a replay snapshot.
type Summary struct {
	Total  int
	Open   int
	Closed int

	// Closed-trade outcome counts. A closed trade with a nil realized
	// PnL (a CANCELLED trade without a fill) is indeterminate, not a tie.
	Wins          int
	Losses        int
	Ties          int
	Indeterminate int

	// WinRatePct is wins over all closed trades, as a percentage.
	WinRatePct float64

	TotalPnL float64
	PnL      Descriptive
	// PnLByConfidence buckets realized PnL by entry confidence in steps
	// of 0.1, keyed like "0.6-0.7".
	PnLByConfidence map[string]Descriptive

	ExitReasons map[string]int
	// SpreadAbovePct maps each threshold (keyed like ">0.010") to the
	// percentage of trades whose entry spread exceeded it.
	SpreadAbovePct map[string]float64

	worstAsc []domain.Trade
}

// Reduce collapses a trade snapshot, as produced by ledger replay, into
// a Summary.
func Reduce(latest map[string]domain.Trade) Summary {
	s := Summary{
		PnLByConfidence: make(map[string]Descriptive),
		ExitReasons:     make(map[string]int),
		SpreadAbovePct:  make(map[string]float64),
	}

	var pnls []float64
	byConf := make(map[string][]float64)
	spreadAbove := make(map[string]int)

	for _, t := range latest {
		s.Total++

		for _, th := range spreadThresholds {
			if t.SpreadEntry > th {
				spreadAbove[spreadKey(th)]++
			}
		}

		if !t.Status.IsTerminal() {
			s.Open++
			continue
		}
		s.Closed++

		if t.ExitReason != "" {
			s.ExitReasons[t.ExitReason]++
		}

		if t.RealizedPnL == nil {
			s.Indeterminate++
			continue
		}
		pnl := *t.RealizedPnL
		switch {
		case pnl > 0:
			s.Wins++
		case pnl < 0:
			s.Losses++
		default:
			s.Ties++
		}

		s.TotalPnL += pnl
		pnls = append(pnls, pnl)
		bucket := confBucket(t.Confidence)
		byConf[bucket] = append(byConf[bucket], pnl)
		s.worstAsc = append(s.worstAsc, t)
	}

	if s.Closed > 0 {
		s.WinRatePct = float64(s.Wins) / float64(s.Closed) * 100
	}
	s.PnL = describe(pnls)
	for bucket, vals := range byConf {
		s.PnLByConfidence[bucket] = describe(vals)
	}
	if s.Total > 0 {
		for _, th := range spreadThresholds {
			key := spreadKey(th)
			s.SpreadAbovePct[key] = float64(spreadAbove[key]) / float64(s.Total) * 100
		}
	}

	sort.Slice(s.worstAsc, func(i, j int) bool {
		return *s.worstAsc[i].RealizedPnL < *s.worstAsc[j].RealizedPnL
	})
	return s
}

// Worst returns up to n closed trades ordered by realized PnL ascending.
func (s Summary) Worst(n int) []domain.Trade {
	if n > len(s.worstAsc) {
		n = len(s.worstAsc)
	}
	out := make([]domain.Trade, n)
	copy(out, s.worstAsc[:n])
	return out
}

func spreadKey(th float64) string {
	return fmt.Sprintf(">%.3f", th)
}

func confBucket(c float64) string {
	lo := math.Floor(c*10) / 10
	return fmt.Sprintf("%.1f-%.1f", lo, lo+0.1)
}

func describe(vals []float64) Descriptive {
	d := Descriptive{Count: len(vals)}
	if d.Count == 0 {
		return d
	}

	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	d.Mean = sum / float64(d.Count)

	mid := d.Count / 2
	if d.Count%2 == 0 {
		d.Median = (sorted[mid-1] + sorted[mid]) / 2
	} else {
		d.Median = sorted[mid]
	}

	// Nearest-rank 90th percentile.
	rank := int(math.Ceil(0.9*float64(d.Count))) - 1
	if rank < 0 {
		rank = 0
	}
	d.P90 = sorted[rank]

	var sqSum float64
	for _, v := range sorted {
		diff := v - d.Mean
		sqSum += diff * diff
	}
	d.StdDev = math.Sqrt(sqSum / float64(d.Count))

	return d
}
