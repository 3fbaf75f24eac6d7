// Package preprocess turns a classified document into page images, page text
// and rough table grids for the extraction providers.
package preprocess

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/docextract/constants"
	"github.com/joseph-ayodele/docextract/internal/common"
	"github.com/joseph-ayodele/docextract/internal/detect"
)

type Config struct {
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Pdftotext string // binary name or absolute path; if empty -> "pdftotext"

	DPI          int // rasterization DPI, default 200
	MaxPages     int // 0 = no limit
	MaxImageEdge int // 0 = send images as uploaded; >0 = downscale longest edge
}

// Table is a grid of cells recovered from layout text.
type Table [][]string

// PreparedContent is what preprocessing hands to the providers.
type PreparedContent struct {
	FileType constants.FileType
	Strategy constants.Strategy
	Pages    int
	Images   []string  // base64, one per page, in page order
	Texts    []string  // one per page
	Tables   [][]Table // per page
	Warnings []string
	Duration time.Duration
}

type Preprocessor struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewPreprocessor(cfg Config, logger *slog.Logger) *Preprocessor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Pdftotext == "" {
		cfg.Pdftotext = "pdftotext"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = constants.DefaultDPI
	}
	return &Preprocessor{cfg: cfg, runner: execRunner{logger: logger}, logger: logger}
}

// WithRunner swaps the command runner (used by tests).
func (p *Preprocessor) WithRunner(r Runner) *Preprocessor {
	p.runner = r
	return p
}

// Prepare classifies data and produces the artifacts the strategy asks for.
func (p *Preprocessor) Prepare(ctx context.Context, data []byte, filename string, strategy constants.Strategy) (PreparedContent, error) {
	start := time.Now()
	ft := detect.Detect(data, filename)
	out := PreparedContent{FileType: ft, Strategy: strategy}

	wantText, wantImages, err := strategyParts(strategy)
	if err != nil {
		return out, err
	}

	p.logger.Debug("preprocess.start", "filename", filename, "file_type", ft, "strategy", strategy, "bytes", len(data))

	switch ft {
	case constants.PDF:
		err = p.preparePDF(ctx, data, wantText, wantImages, &out)
	case constants.IMAGE:
		err = p.prepareImage(data, wantImages, &out)
	default:
		err = common.PreprocessError(fmt.Sprintf("unsupported document type for %q", filename), common.ErrUnsupportedFileType)
	}
	out.Duration = time.Since(start)
	if err != nil {
		p.logger.Error("preprocess.failed", "filename", filename, "file_type", ft, "error", err)
		return out, err
	}

	p.logger.Info("preprocess.ok",
		"filename", filename,
		"file_type", ft,
		"strategy", strategy,
		"pages", out.Pages,
		"images", len(out.Images),
		"elapsed_ms", out.Duration.Milliseconds(),
	)
	return out, nil
}

func strategyParts(s constants.Strategy) (text, images bool, err error) {
	switch s {
	case constants.StrategyText:
		return true, false, nil
	case constants.StrategyVision:
		return false, true, nil
	case constants.StrategyHybrid:
		return true, true, nil
	default:
		return false, false, common.InvalidInputf("unknown preprocessing strategy %q", s)
	}
}

func (p *Preprocessor) preparePDF(ctx context.Context, data []byte, wantText, wantImages bool, out *PreparedContent) error {
	dir, path, cleanup, err := writeTemp(data)
	if err != nil {
		return common.PreprocessError("stage pdf", err)
	}
	defer cleanup()

	var (
		texts  []string
		images []string
	)
	g, gctx := errgroup.WithContext(ctx)
	if wantText {
		g.Go(func() error {
			t, err := p.pdfToText(gctx, path)
			if err != nil {
				return common.PreprocessError("extract text", err)
			}
			texts = t
			return nil
		})
	}
	if wantImages {
		g.Go(func() error {
			imgs, err := p.rasterize(gctx, path, dir)
			if err != nil {
				return err
			}
			images = imgs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	out.Texts = texts
	out.Images = images
	if wantText {
		out.Tables = make([][]Table, len(texts))
		for i, t := range texts {
			out.Tables[i] = extractTables(t)
		}
	}
	out.Pages = max(len(texts), len(images))
	return nil
}
