// Package report renders evaluation results for humans: a console
// summary for the one-shot CLI and an Excel workbook for offline review.
package report

import (
	"fmt"
	"io"
	"strings"

	"jpxsignal/internal/classify"
	"jpxsignal/internal/signal"
)

// WriteConsole renders a plain-text summary of one evaluation result.
func WriteConsole(w io.Writer, res *classify.Result) {
	fmt.Fprintf(w, "=== Risk evaluation %s ===\n", res.Date.String())
	fmt.Fprintf(w, "Level: %s\n", res.Level.String())

	if res.Level == classify.Insufficient {
		fmt.Fprintln(w, "Insufficient data: one or more required inputs are unavailable.")
		writeMissing(w, res.Metrics)
		return
	}

	if len(res.Triggered) > 0 {
		fmt.Fprintf(w, "Triggered: %s\n", strings.Join(res.Triggered, ", "))
	} else {
		fmt.Fprintln(w, "Triggered: (none)")
	}

	m := res.Metrics
	fmt.Fprintln(w, "\nArbitrage balance")
	fmt.Fprintf(w, "  net:        %s\n", fmtValue(m.ArbNet, "%.0f"))
	fmt.Fprintf(w, "  delta 3d:   %s\n", fmtValue(m.Delta3, "%.0f"))
	fmt.Fprintf(w, "  delta 5d:   %s  (margin %s)\n", fmtValue(m.Delta5, "%.0f"), fmtValue(m.Margin5, "%.0f"))
	fmt.Fprintf(w, "  delta 25d:  %s  (margin %s)\n", fmtValue(m.Delta25, "%.0f"), fmtValue(m.Margin25, "%.0f"))
	fmt.Fprintf(w, "  percentile: %s  high=%v\n", fmtValue(m.ArbPercentile, "%.2f"), m.ArbHigh)

	fmt.Fprintln(w, "Liquidity")
	fmt.Fprintf(w, "  volume ratio: %s\n", fmtValue(m.VolumeRatio, "%.2f"))
	fmt.Fprintf(w, "  price move:   %s%%  mismatch=%v\n", fmtValue(m.PriceMovePct, "%.2f"), m.LiquidityMismatch)

	fmt.Fprintln(w, "Index position")
	fmt.Fprintf(w, "  percentile: %s  dev200: %s  high-zone=%v\n",
		fmtValue(m.IndexPercentile, "%.2f"), fmtValue(m.IndexDev200, "%.3f"), m.IndexHighZone)

	fmt.Fprintln(w, "Basis")
	fmt.Fprintf(w, "  today: %s  prior: %s  stress-down=%v\n",
		fmtValue(m.BasisToday, "%.1f"), fmtValue(m.BasisPrior, "%.1f"), m.BasisStressDown)

	fmt.Fprintln(w, "Emergency move")
	fmt.Fprintf(w, "  threshold: %s%%  tripped=%v\n", fmtValue(m.EmergencyThreshold, "%.2f"), m.EmergencyMove)

	fmt.Fprintln(w, "Settlement")
	fmt.Fprintf(w, "  days to SQ: %d  near=%v  major-month=%v\n",
		m.DaysToSettlement, m.SettlementNear, m.MajorSettlementMonth)
}

// writeMissing names the unavailable sufficiency-gate inputs.
func writeMissing(w io.Writer, m signal.Metrics) {
	missing := func(name string, ok bool) {
		if !ok {
			fmt.Fprintf(w, "  missing: %s\n", name)
		}
	}
	missing("arbitrage observation (today)", m.ArbObservedToday)
	missing("delta 5d", m.Delta5.Valid)
	missing("delta 25d", m.Delta25.Valid)
	missing("arbitrage percentile", m.ArbPercentile.Valid)
	missing("adaptive margins", m.Margin5.Valid && m.Margin25.Valid)
	missing("turnover observation (today)", m.VolumeObservedToday)
	missing("volume ratio", m.VolumeRatio.Valid)
	missing("price move", m.PriceMovePct.Valid)
	missing("emergency threshold", m.EmergencyThreshold.Valid)
}

// fmtValue formats an optional statistic, "n/a" when unavailable.
func fmtValue(v signal.Value, format string) string {
	if !v.Valid {
		return "n/a"
	}
	return fmt.Sprintf(format, v.Float)
}
