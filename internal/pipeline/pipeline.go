package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"

	"github.com/akolanti/GoChunker/internal/chunker"
	"github.com/akolanti/GoChunker/internal/config"
	"github.com/akolanti/GoChunker/internal/customHttpClient"
	"github.com/akolanti/GoChunker/internal/domain/jobModel"
	"github.com/akolanti/GoChunker/internal/engine"
	"github.com/akolanti/GoChunker/internal/ocr"
	"github.com/akolanti/GoChunker/pkg/logger_i"
)

/*
The worker, the CLI and the MCP tools only see Service. The private service
struct owns the engine pool, the OCR pool and the scratch directory, so
callers never reach into conversion state and tests can swap the engine
through WithEngineFactory.
*/

// Service runs documents through convert, chunk, OCR enrich and finalize.
type Service interface {
	Process(ctx context.Context, job jobModel.ConversionJob) jobModel.ProcessingResult
	ProcessBatch(ctx context.Context, sources []string, destDir string, maxConcurrent int) jobModel.BatchResult
	Stats() Stats
	Close() error
}

// Indexer stores a finished output file in the vector index.
type Indexer interface {
	IndexDocument(ctx context.Context, path string) (int, error)
}

type Stats struct {
	InFlight     int64 `json:"in_flight"`
	PeakInFlight int64 `json:"peak_in_flight"`
	Completed    int64 `json:"completed"`
	Failed       int64 `json:"failed"`
}

type options struct {
	workDir    string
	recognizer engine.Recognizer
	keywords   chunker.KeywordExtractor
	tokenizer  chunker.Tokenizer
	indexer    Indexer
	factory    engine.Factory
}

type Option func(*options)

// WithWorkDir makes the service use dir for intermediate files and leave it
// in place on Close.
func WithWorkDir(dir string) Option {
	return func(o *options) { o.workDir = dir }
}

func WithRecognizer(r engine.Recognizer) Option {
	return func(o *options) { o.recognizer = r }
}

func WithKeywordExtractor(k chunker.KeywordExtractor) Option {
	return func(o *options) { o.keywords = k }
}

func WithTokenizer(t chunker.Tokenizer) Option {
	return func(o *options) { o.tokenizer = t }
}

func WithIndexer(ix Indexer) Option {
	return func(o *options) { o.indexer = ix }
}

// WithEngineFactory replaces the staged engine built for every pool worker.
func WithEngineFactory(f engine.Factory) Option {
	return func(o *options) { o.factory = f }
}

type service struct {
	cfg        config.PipelineConfig
	pool       *engine.Pool
	adapter    *engine.Adapter
	assembler  *chunker.Assembler
	ocr        *ocr.Service
	downloader *customHttpClient.Downloader
	indexer    Indexer
	logger     *logger_i.Logger

	workDir     string
	ownsWorkDir bool

	namesMu  sync.Mutex
	mdNames  map[string]bool
	inFlight atomic.Int64
	peak     atomic.Int64
	complete atomic.Int64
	failed   atomic.Int64

	closeOnce sync.Once
	closeErr  error
}

func NewService(cfg config.PipelineConfig, opts ...Option) (Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline config: %w", err)
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	log := logger_i.NewLogger("Pipeline")

	s := &service{
		cfg:        cfg,
		downloader: customHttpClient.New(customHttpClient.Options{VerifyTLS: cfg.VerifyTLS, Timeout: cfg.DownloadTimeout}),
		indexer:    o.indexer,
		logger:     log,
		mdNames:    make(map[string]bool),
	}

	var asmOpts []chunker.Option
	if o.tokenizer != nil {
		asmOpts = append(asmOpts, chunker.WithTokenizer(o.tokenizer))
	}
	if o.keywords != nil {
		asmOpts = append(asmOpts, chunker.WithKeywordExtractor(o.keywords))
	}
	asm, err := chunker.NewAssembler(cfg, asmOpts...)
	if err != nil {
		return nil, err
	}
	s.assembler = asm

	if err := s.initWorkDir(o.workDir); err != nil {
		return nil, err
	}

	rec := o.recognizer
	if rec == nil && cfg.OCREnabled {
		rec = defaultRecognizer(cfg, log)
	}
	if rec != nil && cfg.OCREnabled {
		svc, err := ocr.NewService(rec, cfg.MaxConcurrentOCR)
		if err != nil {
			s.cleanupWorkDir()
			return nil, err
		}
		s.ocr = svc
	}

	factory := o.factory
	if factory == nil {
		factory = func() (engine.Engine, error) {
			return engine.NewStagedEngine(cfg, rec), nil
		}
	}
	s.pool = engine.NewPool(cfg.EngineWorkers, factory)
	s.adapter = engine.NewAdapter(s.pool)

	log.Info("Pipeline initialized", "workDir", s.workDir, "ocr", s.ocr != nil,
		"queue", cfg.QueueCapacity, "batches", []int{cfg.OCRBatchSize, cfg.LayoutBatchSize, cfg.TableBatchSize})
	return s, nil
}

// defaultRecognizer is tesseract when the binary can be found.
func defaultRecognizer(cfg config.PipelineConfig, log *logger_i.Logger) engine.Recognizer {
	if _, err := exec.LookPath(cfg.TesseractPath); err != nil {
		log.Warn("tesseract not found, OCR disabled", "path", cfg.TesseractPath)
		return nil
	}
	return engine.NewTesseractRecognizer(cfg.TesseractPath)
}

func (s *service) initWorkDir(dir string) error {
	if dir == "" {
		dir = s.cfg.WorkDir
	}
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create work dir: %w", err)
		}
		s.workDir = dir
		return nil
	}
	tmp, err := os.MkdirTemp("", "gochunker-")
	if err != nil {
		return fmt.Errorf("create scratch dir: %w", err)
	}
	s.workDir = tmp
	s.ownsWorkDir = true
	return nil
}

func (s *service) cleanupWorkDir() {
	if !s.ownsWorkDir {
		return
	}
	if err := os.RemoveAll(s.workDir); err != nil {
		s.logger.Warn("Failed to clean up scratch dir", "dir", s.workDir, "error", err)
		return
	}
	s.logger.Debug("Cleaned up scratch dir", "dir", s.workDir)
}

func (s *service) Stats() Stats {
	return Stats{
		InFlight:     s.inFlight.Load(),
		PeakInFlight: s.peak.Load(),
		Completed:    s.complete.Load(),
		Failed:       s.failed.Load(),
	}
}

func (s *service) enter() {
	n := s.inFlight.Add(1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			return
		}
	}
}

func (s *service) leave(ok bool) {
	s.inFlight.Add(-1)
	if ok {
		s.complete.Add(1)
	} else {
		s.failed.Add(1)
	}
}

// Close stops the engine workers and the OCR pool and removes the scratch
// directory unless it was supplied by the caller.
func (s *service) Close() error {
	s.closeOnce.Do(func() {
		var errs []error
		if err := s.pool.Close(); err != nil {
			errs = append(errs, err)
		}
		if s.ocr != nil {
			s.ocr.Close()
		}
		s.cleanupWorkDir()
		s.closeErr = errors.Join(errs...)
	})
	return s.closeErr
}
