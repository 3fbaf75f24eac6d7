package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joseph-ayodele/docextract/constants"
	"github.com/joseph-ayodele/docextract/internal/common"
	"github.com/joseph-ayodele/docextract/internal/services/extract"
)

// FSIngestor feeds files from the local filesystem into the extraction service.
type FSIngestor struct {
	uploader Uploader
	logger   *slog.Logger
}

func NewFSIngestor(u Uploader, logger *slog.Logger) *FSIngestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &FSIngestor{uploader: u, logger: logger}
}

// IngestPath uploads one file. The content type is inferred from the extension.
func (i *FSIngestor) IngestPath(ctx context.Context, path string) (IngestionResult, error) {
	out := IngestionResult{SourcePath: path}

	abs, err := filepath.Abs(path)
	if err != nil {
		return out, fmt.Errorf("abs path: %w", err)
	}
	out.SourcePath = abs

	ext := constants.NormalizeExt(filepath.Ext(abs))
	if ext == "" || !AllowedExt(ext) {
		return out, common.UnsupportedFileTypeError(fmt.Sprintf("unsupported or missing extension %q", ext))
	}

	info, err := os.Stat(abs)
	if err != nil {
		return out, err
	}
	if info.Size() > constants.MaxUploadBytes {
		return out, common.FileTooLargeError(int(info.Size()), constants.MaxUploadBytes)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return out, fmt.Errorf("read: %w", err)
	}

	start := time.Now()
	res, err := i.uploader.Upload(ctx, extract.UploadRequest{Data: data, Filename: filepath.Base(abs)})
	if err != nil {
		i.logger.Error("ingest.file.failed", "path", abs, "error", err)
		return out, err
	}
	out.ID = res.ID
	out.Duplicate = res.Duplicate
	out.Provider = res.Provider
	out.Confidence = res.Confidence
	i.logger.Info("ingest.file.done",
		"path", abs,
		"id", res.ID,
		"duplicate", res.Duplicate,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

// ScanDirectory walks root and returns the files ingestion would pick up.
func ScanDirectory(root string, skipHidden bool) ([]string, DirStats, error) {
	var (
		paths []string
		stats DirStats
	)
	if strings.TrimSpace(root) == "" {
		return nil, stats, common.InvalidInputf("root path is required")
	}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		stats.Scanned++
		if walkErr != nil {
			stats.Failed++
			return nil
		}
		if skipHidden && path != root && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !AllowedExt(filepath.Ext(path)) {
			return nil
		}
		stats.Matched++
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return paths, stats, fmt.Errorf("walk: %w", err)
	}
	return paths, stats, nil
}

// IngestDirectory uploads every matching file under root sequentially.
// Per-file failures are recorded in the results, not returned.
func (i *FSIngestor) IngestDirectory(ctx context.Context, root string, skipHidden bool) ([]IngestionResult, DirStats, error) {
	paths, stats, err := ScanDirectory(root, skipHidden)
	if err != nil {
		return nil, stats, err
	}
	i.logger.Info("ingest.dir.scanned", "root", root, "scanned", stats.Scanned, "matched", stats.Matched)

	results := make([]IngestionResult, 0, len(paths))
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return results, stats, err
		}
		r, err := i.IngestPath(ctx, p)
		if err != nil {
			r.Err = err.Error()
			stats.Failed++
			results = append(results, r)
			if errors.Is(err, context.Canceled) {
				return results, stats, err
			}
			continue
		}
		stats.Succeeded++
		if r.Duplicate {
			stats.Deduplicated++
		}
		results = append(results, r)
	}
	i.logger.Info("ingest.dir.done",
		"root", root,
		"succeeded", stats.Succeeded,
		"deduplicated", stats.Deduplicated,
		"failed", stats.Failed,
	)
	return results, stats, nil
}
