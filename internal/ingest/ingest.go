package ingest

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/docextract/constants"
	"github.com/joseph-ayodele/docextract/internal/entity"
	"github.com/joseph-ayodele/docextract/internal/services/extract"
)

// IngestionResult is the per-file ingest outcome.
type IngestionResult struct {
	SourcePath string
	ID         string
	Duplicate  bool
	Provider   string
	Confidence float64
	Err        string
}

// DirStats summarizes a directory ingest.
type DirStats struct {
	Scanned      uint32
	Matched      uint32
	Succeeded    uint32
	Deduplicated uint32
	Failed       uint32
}

// Uploader is the slice of the extraction service ingestion drives.
type Uploader interface {
	Upload(ctx context.Context, req extract.UploadRequest) (entity.UploadResult, error)
}

// AllowedExt checks if a file extension is picked up by ingestion.
func AllowedExt(ext string) bool {
	return constants.IsAllowedExt(ext)
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".") && base != "." && base != ".."
}
