package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/akolanti/GoChunker/internal/config"
	"github.com/akolanti/GoChunker/internal/customHttpClient"
	"github.com/akolanti/GoChunker/internal/domain/chunkModel"
	"github.com/akolanti/GoChunker/internal/domain/jobModel"
	"github.com/akolanti/GoChunker/internal/engine"
	"github.com/akolanti/GoChunker/internal/metrics"
	"github.com/akolanti/GoChunker/internal/ocr"
	"github.com/akolanti/GoChunker/internal/writer"
	"github.com/akolanti/GoChunker/pkg/logger_i"
	"github.com/google/uuid"
)

// Process runs one job to completion. Every failure is reported in the
// result; Process itself never returns an error.
func (s *service) Process(ctx context.Context, job jobModel.ConversionJob) jobModel.ProcessingResult {
	start := time.Now()
	s.enter()
	metrics.IncrementDocumentsInFlight()
	log := s.logger.WithTrace(ctx).With("source", job.Source)

	res := jobModel.ProcessingResult{Source: job.Source}
	err := s.process(ctx, job, &res, log)
	res.Duration = time.Since(start)

	metrics.DecrementDocumentsInFlight()
	metrics.CaptureExecutionMetrics("document", res.Duration)
	if err != nil {
		// chunks committed before the failure are not reported
		res.NumChunks, res.NumOCRChunks, res.TotalChunks = 0, 0, 0
		res.Success = false
		res.Reason = jobModel.Reason(err)
		res.Error = err.Error()
		log.Error("Pipeline failed", "reason", res.Reason, "error", err)
		metrics.CaptureDocumentOutcome("failed")
		s.leave(false)
		return res
	}
	res.Success = true
	metrics.CaptureDocumentOutcome("success")
	s.leave(true)
	log.Info("Pipeline complete", "chunks", res.NumChunks, "ocr_chunks", res.NumOCRChunks, "output", res.OutputPath, "took", res.Duration)
	return res
}

func (s *service) process(ctx context.Context, job jobModel.ConversionJob, res *jobModel.ProcessingResult, log *logger_i.Logger) error {
	if !engine.IsSupported(job.Source) {
		return fmt.Errorf("%w: %q", jobModel.ErrUnsupportedFormat, engine.Ext(job.Source))
	}

	local, err := s.localSource(ctx, job.Source)
	if err != nil {
		return err
	}

	header := chunkModel.Header{Name: job.Name, ID: job.DocumentID}
	if header.Name == "" {
		header.Name = filepath.Base(local)
	}
	if header.ID == "" {
		header.ID = uuid.NewString()
	}
	res.Name, res.DocumentID = header.Name, header.ID

	out, err := outputPath(job.Destination, local)
	if err != nil {
		return err
	}
	res.OutputPath = out

	log.Info("Converting document")
	start := time.Now()
	doc, err := s.adapter.Convert(ctx, local)
	metrics.CaptureExecutionMetrics("convert", time.Since(start))
	if err != nil {
		return err
	}

	mdPath, err := s.intermediateMarkdown(local, doc)
	if err != nil {
		return err
	}
	defer s.releaseMarkdown(mdPath, local, res, log)

	log.Info("Chunking document", "elements", len(doc.Elements), "pages", doc.Pages)
	h, err := writer.Open(out, header)
	if err != nil {
		return err
	}
	sum, err := s.assembler.Assemble(ctx, doc, job.Metadata, h)
	if err != nil {
		if abandonErr := h.Abandon(); abandonErr != nil {
			log.Warn("Could not finalize abandoned output", "error", abandonErr)
		}
		return err
	}
	if err := h.Close(); err != nil {
		return err
	}
	res.NumChunks = sum.Total()
	log.Debug("Chunking complete", "tables", sum.Tables, "text", sum.Text, "skipped", sum.Skipped)

	if s.ocr != nil && doc.Markdown != "" {
		n, err := s.enrichWithOCR(ctx, doc.Markdown, header, job.Metadata, out)
		if err != nil {
			return err
		}
		res.NumOCRChunks = n
	}
	res.TotalChunks = res.NumChunks + res.NumOCRChunks

	if job.Index && s.indexer != nil {
		if _, err := s.indexer.IndexDocument(ctx, out); err != nil {
			log.Warn("Indexing failed, output file kept", "error", err)
		}
	}
	return nil
}

// localSource returns a readable local path for source, downloading it
// into the scratch directory first when it is a URL.
func (s *service) localSource(ctx context.Context, source string) (string, error) {
	if customHttpClient.IsRemote(source) {
		dir := filepath.Join(s.workDir, "downloads", uuid.NewString())
		ctx, cancel := context.WithTimeout(ctx, s.cfg.DownloadTimeout)
		defer cancel()
		return s.downloader.Download(ctx, source, dir)
	}
	if _, err := os.Stat(source); err != nil {
		return "", fmt.Errorf("%w: %v", jobModel.ErrSourceUnavailable, err)
	}
	return source, nil
}

func (s *service) enrichWithOCR(ctx context.Context, markdown string, header chunkModel.Header, meta map[string]any, out string) (int, error) {
	results := s.ocr.ExtractEmbeddedImageText(ctx, markdown, s.cfg.OCRLanguages)
	if len(results) == 0 {
		return 0, nil
	}
	return writer.AppendChunks(out, ocr.ToChunks(results, header, meta))
}

// outputPath resolves the destination of a job. A directory destination,
// or one without a file extension, gets {stem}_chunks.json inside it.
func outputPath(dest, source string) (string, error) {
	stem := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	if dest == "" {
		dest = "."
	}
	isDir := strings.HasSuffix(dest, "/") || strings.HasSuffix(dest, string(os.PathSeparator)) || filepath.Ext(dest) == ""
	if info, err := os.Stat(dest); err == nil && info.IsDir() {
		isDir = true
	}
	if isDir {
		if err := os.MkdirAll(dest, 0o755); err != nil {
			return "", fmt.Errorf("%w: create output dir: %v", jobModel.ErrWriteFailure, err)
		}
		return filepath.Join(dest, stem+config.OutputSuffix), nil
	}
	return dest, nil
}

// intermediateMarkdown writes the converted markdown into the scratch
// directory under a name no other in-flight document holds. Markdown
// sources are used as they are.
func (s *service) intermediateMarkdown(source string, doc *engine.ConvertedDocument) (string, error) {
	if engine.IsMarkdown(source) {
		return source, nil
	}
	if doc.Markdown == "" {
		return "", nil
	}
	path := s.reserveMarkdownName(source)
	if err := os.WriteFile(path, []byte(doc.Markdown), 0o644); err != nil {
		s.forgetMarkdownName(path)
		return "", fmt.Errorf("%w: save markdown: %v", jobModel.ErrWriteFailure, err)
	}
	return path, nil
}

func (s *service) reserveMarkdownName(source string) string {
	stem := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	s.namesMu.Lock()
	defer s.namesMu.Unlock()
	for i := 0; ; i++ {
		name := stem + ".md"
		if i > 0 {
			name = fmt.Sprintf("%s_%d.md", stem, i)
		}
		path := filepath.Join(s.workDir, name)
		if s.mdNames[path] {
			continue
		}
		if _, err := os.Stat(path); err == nil {
			continue
		}
		s.mdNames[path] = true
		return path
	}
}

func (s *service) forgetMarkdownName(path string) {
	s.namesMu.Lock()
	delete(s.mdNames, path)
	s.namesMu.Unlock()
}

// releaseMarkdown keeps the intermediate markdown when asked to and deletes
// it otherwise. A markdown source is never deleted. Kept files in an owned
// scratch directory still go away on Close.
func (s *service) releaseMarkdown(path, source string, res *jobModel.ProcessingResult, log *logger_i.Logger) {
	if path == "" {
		return
	}
	if path == source {
		if s.cfg.KeepMarkdown {
			res.MarkdownPath = path
		}
		return
	}
	defer s.forgetMarkdownName(path)
	if s.cfg.KeepMarkdown {
		res.MarkdownPath = path
		log.Info("Markdown file preserved", "path", path)
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("Failed to remove intermediate markdown", "path", path, "error", err)
	}
}
