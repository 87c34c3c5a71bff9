package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"jpxsignal/internal/classify"
	"jpxsignal/internal/history"
	"jpxsignal/internal/signal"
)

const (
	historySheet = "History"
	latestSheet  = "Latest"
)

// WriteWorkbook writes the observation history and the latest evaluation
// into an Excel workbook under dir, named by the evaluation date. Returns
// the written path.
func WriteWorkbook(dir string, records []history.Record, res *classify.Result) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create reports directory: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := writeHistorySheet(f, records); err != nil {
		return "", err
	}
	if err := writeLatestSheet(f, res); err != nil {
		return "", err
	}
	// The default sheet is replaced by the two real ones.
	f.DeleteSheet("Sheet1")

	path := filepath.Join(dir, fmt.Sprintf("risk_report_%s.xlsx", res.Date.String()))
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("save workbook: %w", err)
	}
	return path, nil
}

func writeHistorySheet(f *excelize.File, records []history.Record) error {
	idx, err := f.NewSheet(historySheet)
	if err != nil {
		return fmt.Errorf("create history sheet: %w", err)
	}
	f.SetActiveSheet(idx)

	headers := []string{"Date", "Arb Buy", "Arb Sell", "Arb Net", "Prime Volume", "Source"}
	for col, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellValue(historySheet, cell, h); err != nil {
			return err
		}
	}

	for i, rec := range records {
		row := i + 2
		values := []interface{}{
			rec.Date.String(),
			optional(rec.ArbBuy),
			optional(rec.ArbSell),
			optional(rec.ArbNet),
			optional(rec.PrimeVolume),
			rec.Source,
		}
		for col, v := range values {
			if v == nil {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := f.SetCellValue(historySheet, cell, v); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeLatestSheet(f *excelize.File, res *classify.Result) error {
	if _, err := f.NewSheet(latestSheet); err != nil {
		return fmt.Errorf("create latest sheet: %w", err)
	}

	m := res.Metrics
	rows := []struct {
		name  string
		value interface{}
	}{
		{"Date", res.Date.String()},
		{"Level", res.Level.String()},
		{"Triggered", strings.Join(res.Triggered, ", ")},
		{"Run ID", res.RunID},
		{"Evaluated At", res.EvaluatedAt.Format("2006-01-02 15:04:05 UTC")},
		{"", nil},
		{"Arb Net", cell(m.ArbNet)},
		{"Delta 3d", cell(m.Delta3)},
		{"Delta 5d", cell(m.Delta5)},
		{"Delta 25d", cell(m.Delta25)},
		{"Arb Percentile", cell(m.ArbPercentile)},
		{"Margin 5d", cell(m.Margin5)},
		{"Margin 25d", cell(m.Margin25)},
		{"Arb High", m.ArbHigh},
		{"Volume Ratio", cell(m.VolumeRatio)},
		{"Price Move %", cell(m.PriceMovePct)},
		{"Liquidity Mismatch", m.LiquidityMismatch},
		{"Index Percentile", cell(m.IndexPercentile)},
		{"Index Dev 200", cell(m.IndexDev200)},
		{"Index High Zone", m.IndexHighZone},
		{"Basis Today", cell(m.BasisToday)},
		{"Basis Prior", cell(m.BasisPrior)},
		{"Basis Stress Down", m.BasisStressDown},
		{"Emergency Threshold %", cell(m.EmergencyThreshold)},
		{"Emergency Move", m.EmergencyMove},
		{"Days To Settlement", m.DaysToSettlement},
		{"Settlement Near", m.SettlementNear},
		{"Major Settlement Month", m.MajorSettlementMonth},
	}

	for i, r := range rows {
		if r.name == "" {
			continue
		}
		nameCell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetCellValue(latestSheet, nameCell, r.name); err != nil {
			return err
		}
		if r.value == nil {
			continue
		}
		valueCell, _ := excelize.CoordinatesToCellName(2, i+1)
		if err := f.SetCellValue(latestSheet, valueCell, r.value); err != nil {
			return err
		}
	}
	return nil
}

// optional converts a nullable history field into a cell value, nil for
// unknown.
func optional(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

// cell converts an optional statistic into a cell value, "n/a" when
// unavailable.
func cell(v signal.Value) interface{} {
	if !v.Valid {
		return "n/a"
	}
	return v.Float
}
