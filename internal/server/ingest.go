package server

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/docextract/internal/async"
	"github.com/joseph-ayodele/docextract/internal/common"
	"github.com/joseph-ayodele/docextract/internal/ingest"
)

// WatchIngestion feeds files discovered by the directory watcher through the
// worker queue into the extraction service.
type WatchIngestion struct {
	cfg      common.IngestConfig
	ingestor *ingest.FSIngestor
	logger   *slog.Logger
}

func NewWatchIngestion(cfg common.IngestConfig, uploader ingest.Uploader, logger *slog.Logger) *WatchIngestion {
	if logger == nil {
		logger = slog.Default()
	}
	return &WatchIngestion{cfg: cfg, ingestor: ingest.NewFSIngestor(uploader, logger), logger: logger}
}

// Handle is the queue handler: one watched path, one upload.
func (w *WatchIngestion) Handle(ctx context.Context, job async.Job) error {
	ctx = common.WithRequestID(ctx, job.TraceID)
	_, err := w.ingestor.IngestPath(ctx, job.Path)
	return err
}

// Run blocks until ctx is done, then drains the queue.
func (w *WatchIngestion) Run(ctx context.Context) error {
	events, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
		Roots:       w.cfg.WatchDirs,
		InitialScan: true,
		SkipHidden:  w.cfg.SkipHidden,
		Debounce:    w.cfg.Debounce,
		Logger:      w.logger,
	})
	if err != nil {
		return err
	}

	queue := async.NewProcessorQueue(w.Handle, w.logger,
		async.WithWorkers(w.cfg.Workers),
		async.WithQueueSize(w.cfg.QueueSize),
		async.WithJobTimeout(w.cfg.JobTimeout),
	)
	defer queue.Shutdown(context.Background())

	for {
		select {
		case p, ok := <-events:
			if !ok {
				return nil
			}
			if err := queue.Enqueue(ctx, async.Job{Path: p, TraceID: uuid.NewString()}); err != nil {
				w.logger.Warn("ingest.watch.enqueue_failed", "path", p, "error", err)
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			w.logger.Warn("ingest.watch.error", "error", err)
		case <-ctx.Done():
			return nil
		}
	}
}
