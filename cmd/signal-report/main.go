// Command signal-report runs one risk evaluation and prints the result.
// It is designed for a daily cron invocation after the market close:
// fetch, classify, persist, report, exit.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"jpxsignal/internal/config"
	"jpxsignal/internal/datasources"
	"jpxsignal/internal/infrastructure"
	"jpxsignal/internal/pipeline"
	"jpxsignal/internal/report"
)

func main() {
	configFile := flag.String("config", "", "path to config file (YAML)")
	exportExcel := flag.Bool("excel", false, "write an Excel workbook of the result")
	timeout := flag.Duration("timeout", 5*time.Minute, "overall evaluation timeout")
	flag.Parse()

	// .env is optional; environment overrides config files either way.
	_ = godotenv.Load()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := infrastructure.MustInitializeLogger(cfg.Logging)
	defer infrastructure.CloseLogFile()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	runner := buildRunner(cfg, logger)
	outcome, err := runner.Run(ctx)
	if err != nil {
		logger.Error("evaluation failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if outcome.Status == pipeline.StatusSkipped {
		fmt.Printf("Evaluation skipped: %s\n", outcome.Reason)
		return
	}

	report.WriteConsole(os.Stdout, outcome.Result)

	if *exportExcel {
		path, err := report.WriteWorkbook(cfg.Paths.ReportsDir, outcome.History, outcome.Result)
		if err != nil {
			logger.Error("workbook export failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		fmt.Printf("\nWorkbook written: %s\n", path)
	}
}

// buildRunner wires the upstream collaborators into the pipeline.
func buildRunner(cfg *config.Config, logger *slog.Logger) *pipeline.Runner {
	client := datasources.NewClient(cfg.Sources, logger)
	holidays := datasources.LoadHolidayCalendar(cfg.Paths.HolidayFile, logger)

	return pipeline.NewRunner(
		cfg,
		logger,
		nil, // one-shot run, no metrics pipeline
		datasources.NewArbitrageScraper(client, cfg.Sources, logger),
		datasources.NewTurnoverScraper(client, cfg.Sources, logger),
		datasources.NewChartClient(client, cfg.Sources, logger),
		holidays,
	)
}
