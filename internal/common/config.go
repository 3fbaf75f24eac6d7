package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	Server     ServerConfig     `yaml:"server"`
	Preprocess PreprocessConfig `yaml:"preprocess"`
	Ollama     OllamaConfig     `yaml:"ollama"`
	OpenAI     OpenAIConfig     `yaml:"openai"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Ingest     IngestConfig     `yaml:"ingest"`
	Log        LogConfig        `yaml:"log"`
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Driver           string        `yaml:"driver"` // postgres | sqlite
	DSN              string        `yaml:"dsn"`
	SQLitePath       string        `yaml:"sqlite_path"` // empty = in-memory
	MaxConns         int32         `yaml:"max_conns"`
	MinConns         int32         `yaml:"min_conns"`
	MaxConnLifetime  time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime  time.Duration `yaml:"max_conn_idle_time"`
	DialTimeout      time.Duration `yaml:"dial_timeout"`
	StatementTimeout time.Duration `yaml:"statement_timeout"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr       string        `yaml:"grpc_addr"`
	HealthInterval time.Duration `yaml:"health_interval"`
}

// PreprocessConfig holds rasterization settings
type PreprocessConfig struct {
	Pdftoppm     string `yaml:"pdftoppm"`
	Pdftotext    string `yaml:"pdftotext"`
	DPI          int    `yaml:"dpi"`
	MaxPages     int    `yaml:"max_pages"`
	MaxImageEdge int    `yaml:"max_image_edge"`
}

// OllamaConfig holds the local provider configuration
type OllamaConfig struct {
	BaseURL string        `yaml:"base_url"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

// OpenAIConfig holds the remote provider configuration
type OpenAIConfig struct {
	BaseURL     string        `yaml:"base_url"`
	Model       string        `yaml:"model"`
	APIKey      string        `yaml:"api_key"`
	Temperature float32       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
}

// PipelineConfig holds orchestration policy
type PipelineConfig struct {
	LocalGate    float64       `yaml:"local_gate"`
	CallTimeout  time.Duration `yaml:"call_timeout"`
	MaxAttempts  int           `yaml:"max_attempts"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`
}

// IngestConfig holds batch and watch ingestion settings
type IngestConfig struct {
	WatchDirs  []string      `yaml:"watch_dirs"`
	Workers    int           `yaml:"workers"`
	QueueSize  int           `yaml:"queue_size"`
	JobTimeout time.Duration `yaml:"job_timeout"`
	Debounce   time.Duration `yaml:"debounce"`
	SkipHidden bool          `yaml:"skip_hidden"`
}

// LogConfig holds logger settings
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json | text
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:          "postgres",
			MaxConns:        20,
			MinConns:        5,
			MaxConnLifetime: 30 * time.Minute,
			MaxConnIdleTime: 5 * time.Minute,
			DialTimeout:     3 * time.Second,
		},
		Server: ServerConfig{
			GRPCAddr:       ":8080",
			HealthInterval: 30 * time.Second,
		},
		Preprocess: PreprocessConfig{
			Pdftoppm:  "pdftoppm",
			Pdftotext: "pdftotext",
			DPI:       200,
		},
		Ollama: OllamaConfig{
			BaseURL: "http://localhost:11434",
			Model:   "qwen3-vl",
			Timeout: 120 * time.Second,
		},
		OpenAI: OpenAIConfig{
			BaseURL: "https://api.openai.com/v1",
			Model:   "gpt-4o-mini",
			Timeout: 60 * time.Second,
		},
		Pipeline: PipelineConfig{
			LocalGate:    0.8,
			CallTimeout:  90 * time.Second,
			MaxAttempts:  2,
			RetryBackoff: 500 * time.Millisecond,
		},
		Ingest: IngestConfig{
			Workers:    4,
			QueueSize:  256,
			JobTimeout: 5 * time.Minute,
			Debounce:   750 * time.Millisecond,
			SkipHidden: true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadConfig loads defaults, then the YAML file named by DOCEXTRACT_CONFIG (if any),
// then environment variable overrides.
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()
	if path := os.Getenv("DOCEXTRACT_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return NewAppError(CodeConfig, fmt.Sprintf("read config %s", path), err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return NewAppError(CodeConfig, fmt.Sprintf("parse config %s", path), err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Database.Driver = getEnv("DB_DRIVER", c.Database.Driver)
	c.Database.DSN = getEnv("DB_URL", c.Database.DSN)
	c.Database.SQLitePath = getEnv("SQLITE_PATH", c.Database.SQLitePath)
	c.Database.MaxConns = getEnvAsInt32("DB_MAX_CONNS", c.Database.MaxConns)
	c.Database.MinConns = getEnvAsInt32("DB_MIN_CONNS", c.Database.MinConns)
	c.Database.MaxConnLifetime = getEnvAsDuration("DB_MAX_CONN_LIFETIME", c.Database.MaxConnLifetime)
	c.Database.MaxConnIdleTime = getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", c.Database.MaxConnIdleTime)
	c.Database.DialTimeout = getEnvAsDuration("DB_DIAL_TIMEOUT", c.Database.DialTimeout)
	c.Database.StatementTimeout = getEnvAsDuration("DB_STATEMENT_TIMEOUT", c.Database.StatementTimeout)

	c.Server.GRPCAddr = getEnv("GRPC_ADDR", c.Server.GRPCAddr)
	c.Server.HealthInterval = getEnvAsDuration("HEALTH_INTERVAL", c.Server.HealthInterval)

	c.Preprocess.Pdftoppm = getEnv("PDFTOPPM", c.Preprocess.Pdftoppm)
	c.Preprocess.Pdftotext = getEnv("PDFTOTEXT", c.Preprocess.Pdftotext)
	c.Preprocess.DPI = getEnvAsInt("RASTER_DPI", c.Preprocess.DPI)
	c.Preprocess.MaxPages = getEnvAsInt("RASTER_MAX_PAGES", c.Preprocess.MaxPages)
	c.Preprocess.MaxImageEdge = getEnvAsInt("MAX_IMAGE_EDGE", c.Preprocess.MaxImageEdge)

	c.Ollama.BaseURL = getEnv("OLLAMA_HOST", c.Ollama.BaseURL)
	c.Ollama.Model = getEnv("OLLAMA_MODEL", c.Ollama.Model)
	c.Ollama.Timeout = getEnvAsDuration("OLLAMA_TIMEOUT", c.Ollama.Timeout)

	c.OpenAI.BaseURL = getEnv("OPENAI_BASE_URL", c.OpenAI.BaseURL)
	c.OpenAI.Model = getEnv("OPENAI_MODEL", c.OpenAI.Model)
	c.OpenAI.APIKey = getEnv("OPENAI_API_KEY", c.OpenAI.APIKey)
	c.OpenAI.Temperature = getEnvAsFloat32("OPENAI_TEMPERATURE", c.OpenAI.Temperature)
	c.OpenAI.Timeout = getEnvAsDuration("OPENAI_TIMEOUT", c.OpenAI.Timeout)

	c.Pipeline.LocalGate = getEnvAsFloat64("LOCAL_CONFIDENCE_GATE", c.Pipeline.LocalGate)
	c.Pipeline.CallTimeout = getEnvAsDuration("LLM_CALL_TIMEOUT", c.Pipeline.CallTimeout)
	c.Pipeline.MaxAttempts = getEnvAsInt("LLM_MAX_ATTEMPTS", c.Pipeline.MaxAttempts)
	c.Pipeline.RetryBackoff = getEnvAsDuration("LLM_RETRY_BACKOFF", c.Pipeline.RetryBackoff)

	if dirs := getEnv("WATCH_DIRS", ""); dirs != "" {
		c.Ingest.WatchDirs = splitList(dirs)
	}
	c.Ingest.Workers = getEnvAsInt("INGEST_WORKERS", c.Ingest.Workers)
	c.Ingest.QueueSize = getEnvAsInt("INGEST_QUEUE_SIZE", c.Ingest.QueueSize)
	c.Ingest.JobTimeout = getEnvAsDuration("INGEST_JOB_TIMEOUT", c.Ingest.JobTimeout)
	c.Ingest.Debounce = getEnvAsDuration("INGEST_DEBOUNCE", c.Ingest.Debounce)

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres":
		if c.Database.DSN == "" {
			return NewAppError(CodeConfig, "DB_URL is required for the postgres driver", ErrInvalidInput)
		}
	case "sqlite":
	default:
		return NewAppError(CodeConfig, fmt.Sprintf("unknown DB_DRIVER %q", c.Database.Driver), ErrInvalidInput)
	}
	if c.Ollama.BaseURL == "" && c.OpenAI.APIKey == "" {
		return NewAppError(CodeConfig, "at least one provider must be configured (OLLAMA_HOST or OPENAI_API_KEY)", ErrInvalidInput)
	}
	if c.Pipeline.LocalGate < 0 || c.Pipeline.LocalGate > 1 {
		return NewAppError(CodeConfig, "LOCAL_CONFIDENCE_GATE must be within [0,1]", ErrInvalidInput)
	}
	if c.Pipeline.MaxAttempts < 1 {
		return NewAppError(CodeConfig, "LLM_MAX_ATTEMPTS must be at least 1", ErrInvalidInput)
	}
	if c.Preprocess.DPI <= 0 {
		return NewAppError(CodeConfig, "RASTER_DPI must be positive", ErrInvalidInput)
	}
	return nil
}
