package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate, got %v", err)
	}
	if cfg.QueueCapacity != 20 || cfg.OCRBatchSize != 12 || cfg.PollInterval != 100*time.Millisecond {
		t.Errorf("unexpected engine defaults: %+v", cfg)
	}
	if len(cfg.OCRLanguages) != 1 || cfg.OCRLanguages[0] != "en" {
		t.Errorf("expected [en] OCR languages, got %v", cfg.OCRLanguages)
	}
}

func TestLoadFile_MergesOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pipeline.yaml")
	yml := "max_concurrent_docs: 7\npoll_interval: 250ms\nocr_languages: [en, hi]\nfiscal_tokens: [exercice, trimestre]\n"
	if err := os.WriteFile(path, []byte(yml), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.MaxConcurrentDocs != 7 {
		t.Errorf("max_concurrent_docs = %d, want 7", cfg.MaxConcurrentDocs)
	}
	if cfg.PollInterval != 250*time.Millisecond {
		t.Errorf("poll_interval = %v, want 250ms", cfg.PollInterval)
	}
	if len(cfg.OCRLanguages) != 2 || cfg.OCRLanguages[1] != "hi" {
		t.Errorf("ocr_languages = %v", cfg.OCRLanguages)
	}
	if len(cfg.FiscalTokens) != 2 || cfg.FiscalTokens[0] != "exercice" {
		t.Errorf("fiscal_tokens = %v", cfg.FiscalTokens)
	}
	if cfg.MaxTokens != DefaultMaxTokens {
		t.Errorf("untouched field lost its default: %d", cfg.MaxTokens)
	}
}

func TestLoadFile_Invalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(path, []byte("queue_capacity: 0\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Error("expected validation error for queue_capacity 0")
	}
	if _, err := LoadFile(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("GOCHUNKER_OCR_ENABLED", "false")
	t.Setenv("GOCHUNKER_OCR_LANG", "en, fr ,")
	t.Setenv("GOCHUNKER_MAX_TOKENS", "512")
	t.Setenv("GOCHUNKER_MAX_CONCURRENT_DOCS", "nope")

	cfg, err := FromEnv(Default())
	if err == nil {
		t.Error("expected an error for the malformed integer")
	}
	if cfg.OCREnabled {
		t.Error("OCR should be disabled")
	}
	if len(cfg.OCRLanguages) != 2 || cfg.OCRLanguages[1] != "fr" {
		t.Errorf("languages = %v", cfg.OCRLanguages)
	}
	if cfg.MaxTokens != 512 {
		t.Errorf("max tokens = %d", cfg.MaxTokens)
	}
	if cfg.MaxConcurrentDocs != DefaultMaxConcurrentDocs {
		t.Errorf("malformed value should leave default, got %d", cfg.MaxConcurrentDocs)
	}
}
