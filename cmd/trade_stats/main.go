package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"

	"polyPaperBot/config"
	"polyPaperBot/internal/adapters/ledgerfile"
	"polyPaperBot/internal/adapters/logger"
	"polyPaperBot/internal/stats"
)

func main() {
	winrate := flag.Bool("winrate", false, "print wins losses ties total win_rate_pct")
	report := flag.Bool("report", false, "print a full markdown report")
	worstN := flag.Int("worst", 5, "number of worst trades shown in the report")
	ledgerPath := flag.String("ledger", "", "override ledger path (defaults to LEDGER_PATH)")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}
	path := cfg.LedgerPath
	if *ledgerPath != "" {
		path = *ledgerPath
	}

	ledger, err := ledgerfile.OpenReadOnly(ledgerfile.Config{Path: path, Logger: logger.NopLogger{}})
	if err != nil {
		log.Fatalf("FATAL: Failed to open ledger: %v", err)
	}

	// A missing ledger simply means no trades yet; every count is zero.
	latest, err := ledger.Replay(context.Background())
	if err != nil {
		log.Fatalf("FATAL: Failed to replay ledger: %v", err)
	}
	summary := stats.Reduce(latest)

	switch {
	case *report:
		printReport(summary, *worstN)
	case *winrate:
		fmt.Println(winrateLine(summary))
	default:
		fmt.Println(countsLine(summary))
	}
	os.Exit(0)
}

func countsLine(s stats.Summary) string {
	return fmt.Sprintf("%d %d %d", s.Total, s.Open, s.Closed)
}

// winrateLine's total column is the closed-trade count, the win rate's
// denominator. Open trades never appear on this line.
func winrateLine(s stats.Summary) string {
	return fmt.Sprintf("%d %d %d %d %.1f", s.Wins, s.Losses, s.Ties, s.Closed, s.WinRatePct)
}

func printReport(s stats.Summary, worstN int) {
	fmt.Println("# Paper Trading Report")
	fmt.Println()
	fmt.Printf("- Total trades: %d (open %d, closed %d)\n", s.Total, s.Open, s.Closed)
	fmt.Printf("- Wins: %d  Losses: %d  Ties: %d  Indeterminate: %d\n", s.Wins, s.Losses, s.Ties, s.Indeterminate)
	fmt.Printf("- Win rate: %.1f%%\n", s.WinRatePct)
	fmt.Printf("- Total realized PnL: %.4f\n", s.TotalPnL)
	fmt.Println()

	fmt.Println("## Realized PnL")
	fmt.Println()
	printDescriptive("all closed trades", s.PnL)
	buckets := make([]string, 0, len(s.PnLByConfidence))
	for b := range s.PnLByConfidence {
		buckets = append(buckets, b)
	}
	sort.Strings(buckets)
	for _, b := range buckets {
		printDescriptive("confidence "+b, s.PnLByConfidence[b])
	}
	fmt.Println()

	if len(s.ExitReasons) > 0 {
		fmt.Println("## Exit Reasons")
		fmt.Println()
		reasons := make([]string, 0, len(s.ExitReasons))
		for r := range s.ExitReasons {
			reasons = append(reasons, r)
		}
		sort.Strings(reasons)
		for _, r := range reasons {
			fmt.Printf("- %s: %d\n", r, s.ExitReasons[r])
		}
		fmt.Println()
	}

	if len(s.SpreadAbovePct) > 0 {
		fmt.Println("## Entry Spread Distribution")
		fmt.Println()
		keys := make([]string, 0, len(s.SpreadAbovePct))
		for k := range s.SpreadAbovePct {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Printf("- spread %s: %.1f%% of trades\n", k, s.SpreadAbovePct[k])
		}
		fmt.Println()
	}

	worst := s.Worst(worstN)
	if len(worst) > 0 {
		fmt.Println("## Worst Trades")
		fmt.Println()
		for _, t := range worst {
			fmt.Printf("- %s (%s %s): %.4f [%s]\n", t.TradeID, t.MarketID, t.Side, *t.RealizedPnL, t.ExitReason)
		}
	}
}

func printDescriptive(label string, d stats.Descriptive) {
	if d.Count == 0 {
		return
	}
	fmt.Printf("- %s (n=%d): mean %.4f, median %.4f, p90 %.4f, stddev %.4f\n",
		label, d.Count, d.Mean, d.Median, d.P90, d.StdDev)
}
