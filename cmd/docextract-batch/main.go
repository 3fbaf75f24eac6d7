package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/joseph-ayodele/docextract/constants"
	"github.com/joseph-ayodele/docextract/internal/async"
	"github.com/joseph-ayodele/docextract/internal/common"
	"github.com/joseph-ayodele/docextract/internal/ingest"
	"github.com/joseph-ayodele/docextract/internal/server"
	"github.com/joseph-ayodele/docextract/internal/utils"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		inmem   = flag.Bool("inmem", false, "use in-memory SQLite database")
		dir     = flag.String("dir", "", "directory to process documents from (required)")
		out     = flag.String("out", "", "output file, .csv or .xlsx (optional, defaults to parent directory)")
		workers = flag.Int("workers", 0, "concurrent extractions (default from config)")
	)
	flag.Parse()

	if *dir == "" {
		printError("Error: --dir is required\n")
		os.Exit(1)
	}
	if *out == "" {
		*out = filepath.Join(filepath.Dir(filepath.Clean(*dir)), "extractions.xlsx")
	}
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(*out)), ".")
	if format != constants.FormatCSV && format != constants.FormatXLSX {
		printError("Error: --out must end in .csv or .xlsx\n")
		os.Exit(1)
	}

	_ = godotenv.Load()
	cfg, err := common.LoadConfig()
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}
	if *inmem {
		cfg.Database.Driver = "sqlite"
		cfg.Database.SQLitePath = ""
	}
	if *workers > 0 {
		cfg.Ingest.Workers = *workers
	}

	logger := utils.NewLogger(cfg.Log, os.Stdout)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := server.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	paths, stats, err := ingest.ScanDirectory(*dir, cfg.Ingest.SkipHidden)
	if err != nil {
		logger.Error("failed to scan directory", "error", err)
		os.Exit(1)
	}
	logger.Info("scan complete", "dir", *dir, "scanned", stats.Scanned, "matched", stats.Matched)

	ingestor := ingest.NewFSIngestor(app.Service, logger)
	queue := async.NewProcessorQueue(func(ctx context.Context, job async.Job) error {
		_, err := ingestor.IngestPath(common.WithRequestID(ctx, job.TraceID), job.Path)
		return err
	}, logger,
		async.WithWorkers(cfg.Ingest.Workers),
		async.WithQueueSize(cfg.Ingest.QueueSize),
		async.WithJobTimeout(cfg.Ingest.JobTimeout),
	)
	for _, p := range paths {
		if err := queue.Enqueue(ctx, async.Job{Path: p, TraceID: uuid.NewString()}); err != nil {
			logger.Warn("enqueue failed", "path", p, "error", err)
			break
		}
	}
	queue.Shutdown(ctx)
	result := queue.Stats()

	file, err := app.Service.Export(ctx, format, "all")
	if err != nil {
		logger.Error("failed to export extractions", "error", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*out, file.Data, 0o644); err != nil {
		logger.Error("failed to write output file", "error", err)
		os.Exit(1)
	}

	logger.Info("batch processing complete",
		"files_matched", len(paths),
		"files_processed", result.Succeeded,
		"failures", result.Failed,
		"output_file", *out)

	fmt.Printf("Batch processing complete!\n")
	fmt.Printf("- Files matched: %d\n", len(paths))
	fmt.Printf("- Files processed: %d\n", result.Succeeded)
	fmt.Printf("- Failures: %d\n", result.Failed)
	fmt.Printf("- Output: %s\n", *out)
}
