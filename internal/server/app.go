package server

import (
	"context"
	"log/slog"

	"github.com/joseph-ayodele/docextract/internal/common"
	"github.com/joseph-ayodele/docextract/internal/llm"
	"github.com/joseph-ayodele/docextract/internal/llm/ollama"
	"github.com/joseph-ayodele/docextract/internal/llm/openai"
	"github.com/joseph-ayodele/docextract/internal/pipeline"
	"github.com/joseph-ayodele/docextract/internal/preprocess"
	repo "github.com/joseph-ayodele/docextract/internal/repository"
	"github.com/joseph-ayodele/docextract/internal/services/extract"
)

// App is the wired object graph shared by the binaries.
type App struct {
	DB      *repo.DB
	Repo    repo.ExtractionRepository
	Service *extract.Service
	Local   *ollama.Client
	Remote  *openai.Client
}

// Build connects storage and wires preprocessing, providers and the service.
func Build(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		return nil, err
	}
	db, err := ConnectDB(ctx, cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	return NewApp(db, cfg, logger), nil
}

// NewApp wires everything on top of an open database.
func NewApp(db *repo.DB, cfg *common.Config, logger *slog.Logger) *App {
	extractions := repo.NewExtractionRepository(db, logger)

	prep := preprocess.NewPreprocessor(preprocess.Config{
		Pdftoppm:     cfg.Preprocess.Pdftoppm,
		Pdftotext:    cfg.Preprocess.Pdftotext,
		DPI:          cfg.Preprocess.DPI,
		MaxPages:     cfg.Preprocess.MaxPages,
		MaxImageEdge: cfg.Preprocess.MaxImageEdge,
	}, logger)

	local := ollama.NewClient(ollama.Config{
		BaseURL: cfg.Ollama.BaseURL,
		Model:   cfg.Ollama.Model,
		Timeout: cfg.Ollama.Timeout,
	}, logger)
	remote := openai.NewClient(openai.Config{
		APIKey:      cfg.OpenAI.APIKey,
		BaseURL:     cfg.OpenAI.BaseURL,
		Model:       cfg.OpenAI.Model,
		Temperature: cfg.OpenAI.Temperature,
		Timeout:     cfg.OpenAI.Timeout,
	}, logger)

	var remoteProvider llm.Provider
	if remote.Enabled() {
		remoteProvider = remote
	} else {
		logger.Warn("remote provider disabled: no OpenAI API key configured")
	}

	orch := pipeline.NewOrchestrator(prep,
		pipeline.DefaultStages(local, remoteProvider, cfg.Pipeline.LocalGate),
		logger,
		pipeline.WithCallTimeout(cfg.Pipeline.CallTimeout),
		pipeline.WithMaxAttempts(cfg.Pipeline.MaxAttempts),
		pipeline.WithRetryBackoff(cfg.Pipeline.RetryBackoff),
	)

	svc := extract.NewService(extractions, orch, logger,
		extract.WithHealth(db, local, remote.Enabled()),
	)
	return &App{
		DB:      db,
		Repo:    extractions,
		Service: svc,
		Local:   local,
		Remote:  remote,
	}
}

func (a *App) Close() {
	a.DB.Close()
}
