// Package pipeline runs prepared documents through an ordered list of
// extraction providers, accepting the first result that clears its stage gate.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/docextract/constants"
	"github.com/joseph-ayodele/docextract/internal/common"
	"github.com/joseph-ayodele/docextract/internal/llm"
	"github.com/joseph-ayodele/docextract/internal/preprocess"
)

// Preparer is the slice of preprocessing the orchestrator needs.
type Preparer interface {
	Prepare(ctx context.Context, data []byte, filename string, strategy constants.Strategy) (preprocess.PreparedContent, error)
}

// Stage is one entry of the ordered provider list.
type Stage struct {
	Provider llm.Provider
	Gate     float64 // minimum score to stop here; the last stage always accepts
	MaxPages int     // 0 = all pages
}

// Attempt records what one stage did, for logs and callers.
type Attempt struct {
	Provider string
	Calls    int
	Score    float64
	Err      string
	Accepted bool
	Elapsed  time.Duration
}

// Result is the accepted extraction.
type Result struct {
	Record     llm.Record
	Raw        string
	Confidence float64
	Provider   string
	Pages      int
	Attempts   []Attempt
}

type Orchestrator struct {
	prep   Preparer
	stages []Stage
	logger *slog.Logger

	callTimeout  time.Duration
	maxAttempts  int
	retryBackoff time.Duration
}

type Option func(*Orchestrator)

func WithCallTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.callTimeout = d
		}
	}
}

func WithMaxAttempts(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxAttempts = n
		}
	}
}

func WithRetryBackoff(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d >= 0 {
			o.retryBackoff = d
		}
	}
}

func NewOrchestrator(prep Preparer, stages []Stage, logger *slog.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{
		prep:         prep,
		stages:       stages,
		logger:       logger,
		callTimeout:  90 * time.Second,
		maxAttempts:  2,
		retryBackoff: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// DefaultStages builds the local-then-remote policy. A nil remote leaves the
// local provider as the only (and therefore always-accepting) stage.
func DefaultStages(local, remote llm.Provider, gate float64) []Stage {
	var stages []Stage
	if local != nil {
		stages = append(stages, Stage{Provider: local, Gate: gate, MaxPages: 1})
	}
	if remote != nil {
		stages = append(stages, Stage{Provider: remote})
	}
	return stages
}

// Run prepares the document for vision and walks the stages in order.
func (o *Orchestrator) Run(ctx context.Context, data []byte, filename string) (Result, error) {
	start := time.Now()
	logger := o.logger
	if hash := common.DocHashFromContext(ctx); hash != "" {
		logger = logger.With("doc_hash", hash)
	}

	prepared, err := o.prep.Prepare(ctx, data, filename, constants.StrategyVision)
	if err != nil {
		return Result{}, err
	}
	if len(prepared.Images) == 0 {
		return Result{}, common.PreprocessError("no images extracted from document", nil)
	}
	if len(o.stages) == 0 {
		return Result{}, common.AllProvidersFailedError(fmt.Errorf("no providers configured"))
	}

	var (
		attempts []Attempt
		lastErr  error
	)
	for i, st := range o.stages {
		if err := ctx.Err(); err != nil {
			return Result{Attempts: attempts}, err
		}
		last := i == len(o.stages)-1
		name := st.Provider.Name()

		images := prepared.Images
		if st.MaxPages > 0 && len(images) > st.MaxPages {
			images = images[:st.MaxPages]
		}

		stageStart := time.Now()
		raw, calls, err := o.call(ctx, st.Provider, images)
		att := Attempt{Provider: name, Calls: calls}
		if err != nil && ctx.Err() != nil {
			// the caller gave up; that is not a provider failure
			logger.Warn("pipeline.canceled", "provider", name, "error", ctx.Err(), "elapsed_ms", time.Since(start).Milliseconds())
			return Result{Attempts: append(attempts, att)}, ctx.Err()
		}
		if err != nil {
			lastErr = common.ProviderUnavailableError(name, err)
			att.Err = err.Error()
			att.Elapsed = time.Since(stageStart)
			attempts = append(attempts, att)
			logger.Warn("pipeline.stage.provider_error", "provider", name, "calls", calls, "error", err)
			continue
		}

		rec, err := llm.Normalize(raw)
		if err != nil {
			lastErr = fmt.Errorf("%s: %w", name, err)
			att.Err = err.Error()
			att.Elapsed = time.Since(stageStart)
			attempts = append(attempts, att)
			logger.Warn("pipeline.stage.malformed", "provider", name, "error", err, "raw_len", len(raw))
			continue
		}
		if verr := llm.ValidateRecord(rec); verr != nil {
			logger.Warn("pipeline.stage.schema_mismatch", "provider", name, "error", verr)
		}

		score := llm.Score(rec)
		att.Score = score
		att.Elapsed = time.Since(stageStart)

		if last || score >= st.Gate {
			att.Accepted = true
			attempts = append(attempts, att)
			logger.Info("pipeline.stage.accepted",
				"provider", name,
				"score", score,
				"gate", st.Gate,
				"pages", len(images),
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
			return Result{
				Record:     rec,
				Raw:        raw,
				Confidence: score,
				Provider:   name,
				Pages:      prepared.Pages,
				Attempts:   attempts,
			}, nil
		}

		attempts = append(attempts, att)
		lastErr = fmt.Errorf("%s: confidence %.2f below gate %.2f", name, score, st.Gate)
		logger.Info("pipeline.stage.below_gate", "provider", name, "score", score, "gate", st.Gate)
	}

	logger.Error("pipeline.all_failed",
		"stages", len(o.stages),
		"error", lastErr,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return Result{Attempts: attempts}, common.AllProvidersFailedError(lastErr)
}
