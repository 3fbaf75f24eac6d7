package ollama

import (
	"log/slog"
	"net/http"
	"os"
	"time"
)

// Config for the local Ollama client.
type Config struct {
	BaseURL   string        // default http://localhost:11434, or env OLLAMA_HOST
	Model     string        // default "qwen3-vl"
	Timeout   time.Duration // http client timeout
	MaxImages int           // pages sent per call; default 1
}

type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = os.Getenv("OLLAMA_HOST")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.Model == "" {
		cfg.Model = "qwen3-vl"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.MaxImages <= 0 {
		cfg.MaxImages = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}
