package main

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/joseph-ayodele/docextract/constants"
	"github.com/joseph-ayodele/docextract/internal/common"
)

func TestReadUpload(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	small := filepath.Join(dir, "small.pdf")
	if err := os.WriteFile(small, []byte("%PDF-1.7\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	big := filepath.Join(dir, "big.pdf")
	f, err := os.Create(big)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.Truncate(constants.MaxUploadBytes + 1); err != nil {
		t.Fatal(err)
	}
	_ = f.Close()

	data, err := readUpload(small)
	if err != nil || string(data) != "%PDF-1.7\n" {
		t.Fatalf("readUpload(small) = %q, %v", data, err)
	}
	if _, err := readUpload(big); !errors.Is(err, common.ErrFileTooLarge) {
		t.Errorf("readUpload(big) err = %v, want ErrFileTooLarge", err)
	}
	if _, err := readUpload(dir); !errors.Is(err, common.ErrInvalidInput) {
		t.Errorf("readUpload(dir) err = %v, want ErrInvalidInput", err)
	}
	if _, err := readUpload(filepath.Join(dir, "missing.pdf")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("readUpload(missing) err = %v, want not exist", err)
	}
}

func TestRunUploadRejectsOversizedBeforeService(t *testing.T) {
	t.Parallel()
	big := filepath.Join(t.TempDir(), "big.png")
	f, err := os.Create(big)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.Truncate(constants.MaxUploadBytes + 1); err != nil {
		t.Fatal(err)
	}
	_ = f.Close()

	// a nil service would panic if the upload got that far
	err = run(context.Background(), nil, "upload", []string{"-file", big}, io.Discard)
	if !errors.Is(err, common.ErrFileTooLarge) {
		t.Fatalf("run upload err = %v, want ErrFileTooLarge", err)
	}
}
