package common

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

// no t.Parallel in this file: the tests use t.Setenv

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DOCEXTRACT_CONFIG", "")
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Pipeline.LocalGate != 0.8 || cfg.Preprocess.DPI != 200 || cfg.Pipeline.MaxAttempts != 2 {
		t.Errorf("unexpected defaults: %+v", cfg.Pipeline)
	}
}

func TestLoadConfigFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docextract.yaml")
	yml := `
database:
  driver: sqlite
  sqlite_path: /tmp/x.db
pipeline:
  local_gate: 0.7
  call_timeout: 30s
ingest:
  watch_dirs: [/a, /b]
`
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DOCEXTRACT_CONFIG", path)
	t.Setenv("LOCAL_CONFIDENCE_GATE", "0.9")
	t.Setenv("WATCH_DIRS", " /c ,, /d ")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Database.Driver != "sqlite" || cfg.Database.SQLitePath != "/tmp/x.db" {
		t.Errorf("database = %+v", cfg.Database)
	}
	if cfg.Pipeline.LocalGate != 0.9 {
		t.Errorf("env should override file, gate = %v", cfg.Pipeline.LocalGate)
	}
	if cfg.Pipeline.CallTimeout != 30*time.Second {
		t.Errorf("call timeout = %v", cfg.Pipeline.CallTimeout)
	}
	if diff := cmp.Diff([]string{"/c", "/d"}, cfg.Ingest.WatchDirs); diff != "" {
		t.Errorf("watch dirs (-want +got):\n%s", diff)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	t.Setenv("DOCEXTRACT_CONFIG", filepath.Join(t.TempDir(), "nope.yaml"))
	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"sqlite ok", func(c *Config) { c.Database.Driver = "sqlite" }, true},
		{"postgres needs dsn", func(c *Config) {}, false},
		{"postgres with dsn", func(c *Config) { c.Database.DSN = "postgres://x" }, true},
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }, false},
		{"gate out of range", func(c *Config) { c.Database.Driver = "sqlite"; c.Pipeline.LocalGate = 1.5 }, false},
		{"no providers", func(c *Config) { c.Database.Driver = "sqlite"; c.Ollama.BaseURL = "" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalidInput) {
				t.Errorf("err = %v, want ErrInvalidInput", err)
			}
		})
	}
}
