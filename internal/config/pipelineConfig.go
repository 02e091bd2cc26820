package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultFiscalTokens marks a table row as a header row when any of them
// appears in the row's lowercased text.
var DefaultFiscalTokens = []string{
	"2023", "2024", "2025", "2026",
	"fy", "year", "march", "quarter",
	"q1", "q2", "q3", "q4",
	"june", "september", "december",
}

// PipelineConfig is passed by value into every worker and is never mutated
// once the pipeline is built.
type PipelineConfig struct {
	OCREnabled   bool     `yaml:"ocr_enabled"`
	OCRLanguages []string `yaml:"ocr_languages"`

	QueueCapacity   int           `yaml:"queue_capacity"`
	OCRBatchSize    int           `yaml:"ocr_batch_size"`
	LayoutBatchSize int           `yaml:"layout_batch_size"`
	TableBatchSize  int           `yaml:"table_batch_size"`
	PollInterval    time.Duration `yaml:"poll_interval"`

	MaxConcurrentDocs int `yaml:"max_concurrent_docs"`
	MaxConcurrentOCR  int `yaml:"max_concurrent_ocr"`
	EngineWorkers     int `yaml:"engine_workers"`

	EmbeddingModel    string `yaml:"embedding_model"`
	MaxTokens         int    `yaml:"max_tokens"`
	ChunkOverlap      int    `yaml:"chunk_overlap"`
	TokenizerEncoding string `yaml:"tokenizer_encoding"`

	VerifyTLS       bool          `yaml:"verify_tls"`
	DownloadTimeout time.Duration `yaml:"download_timeout"`

	KeepMarkdown  bool     `yaml:"keep_markdown"`
	WorkDir       string   `yaml:"work_dir"`
	FiscalTokens  []string `yaml:"fiscal_tokens"`
	TesseractPath string   `yaml:"tesseract_path"`
}

func Default() PipelineConfig {
	return PipelineConfig{
		OCREnabled:        true,
		OCRLanguages:      []string{"en"},
		QueueCapacity:     DefaultQueueCapacity,
		OCRBatchSize:      DefaultStageBatchSize,
		LayoutBatchSize:   DefaultStageBatchSize,
		TableBatchSize:    DefaultStageBatchSize,
		PollInterval:      DefaultPollInterval,
		MaxConcurrentDocs: DefaultMaxConcurrentDocs,
		MaxConcurrentOCR:  DefaultMaxConcurrentOCR,
		EngineWorkers:     DefaultEngineWorkers,
		EmbeddingModel:    DefaultEmbeddingModel,
		MaxTokens:         DefaultMaxTokens,
		ChunkOverlap:      DefaultChunkOverlap,
		VerifyTLS:         true,
		DownloadTimeout:   DefaultDownloadTimeout,
		FiscalTokens:      append([]string(nil), DefaultFiscalTokens...),
		TesseractPath:     DefaultTesseractPath,
	}
}

// LoadFile reads a YAML file and merges it over Default.
func LoadFile(path string) (PipelineConfig, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// FromEnv applies GOCHUNKER_* overrides on top of base. Malformed values are
// reported but do not stop the remaining overrides from applying.
func FromEnv(base PipelineConfig) (PipelineConfig, error) {
	cfg := base
	var errs []error

	if v := os.Getenv("GOCHUNKER_OCR_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("GOCHUNKER_OCR_ENABLED: %w", err))
		} else {
			cfg.OCREnabled = b
		}
	}
	if v := os.Getenv("GOCHUNKER_OCR_LANG"); v != "" {
		cfg.OCRLanguages = splitList(v)
	}
	if v := os.Getenv("GOCHUNKER_VERIFY_TLS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("GOCHUNKER_VERIFY_TLS: %w", err))
		} else {
			cfg.VerifyTLS = b
		}
	}
	envInt := func(key string, dst *int) {
		v := os.Getenv(key)
		if v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = n
	}
	envInt("GOCHUNKER_MAX_CONCURRENT_DOCS", &cfg.MaxConcurrentDocs)
	envInt("GOCHUNKER_MAX_CONCURRENT_OCR", &cfg.MaxConcurrentOCR)
	envInt("GOCHUNKER_MAX_TOKENS", &cfg.MaxTokens)
	envInt("GOCHUNKER_QUEUE_CAPACITY", &cfg.QueueCapacity)
	envInt("GOCHUNKER_ENGINE_WORKERS", &cfg.EngineWorkers)

	if v := os.Getenv("GOCHUNKER_EMBEDDING_MODEL"); v != "" {
		cfg.EmbeddingModel = v
	}
	if v := os.Getenv("GOCHUNKER_WORK_DIR"); v != "" {
		cfg.WorkDir = v
	}
	if v := os.Getenv("GOCHUNKER_FISCAL_TOKENS"); v != "" {
		cfg.FiscalTokens = splitList(v)
	}
	if v := os.Getenv("GOCHUNKER_TESSERACT"); v != "" {
		cfg.TesseractPath = v
	}
	return cfg, errors.Join(errs...)
}

func (c PipelineConfig) Validate() error {
	var errs []error
	if c.QueueCapacity <= 0 {
		errs = append(errs, errors.New("queue_capacity must be > 0"))
	}
	if c.OCRBatchSize <= 0 || c.LayoutBatchSize <= 0 || c.TableBatchSize <= 0 {
		errs = append(errs, errors.New("stage batch sizes must be > 0"))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, errors.New("poll_interval must be > 0"))
	}
	if c.MaxConcurrentDocs <= 0 {
		errs = append(errs, errors.New("max_concurrent_docs must be > 0"))
	}
	if c.MaxConcurrentOCR <= 0 {
		errs = append(errs, errors.New("max_concurrent_ocr must be > 0"))
	}
	if c.EngineWorkers <= 0 {
		errs = append(errs, errors.New("engine_workers must be > 0"))
	}
	if c.MaxTokens <= 0 {
		errs = append(errs, errors.New("max_tokens must be > 0"))
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.MaxTokens {
		errs = append(errs, errors.New("chunk_overlap must be in [0, max_tokens)"))
	}
	if c.DownloadTimeout <= 0 {
		errs = append(errs, errors.New("download_timeout must be > 0"))
	}
	return errors.Join(errs...)
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
