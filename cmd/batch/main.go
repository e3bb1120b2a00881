// Command batch scores every report in the configured dataset directory
// with and without retrieved evidence and writes the comparison reports.
//
// It is configured entirely through config.toml and the environment
// (CONFIG_PATH, DATA_DIR, START_ID, END_ID, MAX_FILES, OUTPUT_DIR,
// INDEX_REPORTS, <NAME>_API_KEY).
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/agenthands/anatomy-eval/internal/app"
	"github.com/agenthands/anatomy-eval/internal/dataset"
	"github.com/agenthands/anatomy-eval/internal/report"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using defaults")
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger); err != nil {
		logger.Error("batch failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := app.LoadConfig(logger)
	if err != nil {
		return err
	}

	reports, failed, err := dataset.LoadDir(cfg.Dataset.Dir, dataset.SelectionFrom(cfg.Dataset))
	if err != nil {
		return err
	}
	for path, ferr := range failed {
		logger.Warn("skipping unreadable report", "path", path, "error", ferr)
	}
	logger.Info("loaded reports", "dir", cfg.Dataset.Dir, "reports", len(reports), "failed", len(failed))

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if index, _ := strconv.ParseBool(os.Getenv("INDEX_REPORTS")); index {
		if err := a.Pipeline.IndexReports(ctx, reports); err != nil {
			return err
		}
	}

	batch, err := a.Pipeline.RunBatch(ctx, reports)
	if err != nil {
		return err
	}

	paths, err := report.WriteFiles(cfg.Output.Dir, batch)
	if err != nil {
		return err
	}
	logger.Info("wrote results", "files", paths)

	return report.WriteText(os.Stdout, batch)
}
