package pipeline

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/akolanti/GoChunker/internal/config"
	"github.com/akolanti/GoChunker/internal/customHttpClient"
	"github.com/akolanti/GoChunker/internal/domain/jobModel"
	"github.com/akolanti/GoChunker/internal/engine"
	"golang.org/x/sync/semaphore"
)

// ProcessBatch processes every source with at most maxConcurrent documents
// in flight. Directories are expanded into the supported files they hold.
// Sources are admitted in order and one result comes back per source, in
// the same order, whatever happened to its siblings.
func (s *service) ProcessBatch(ctx context.Context, sources []string, destDir string, maxConcurrent int) jobModel.BatchResult {
	if maxConcurrent < 1 {
		maxConcurrent = s.cfg.MaxConcurrentDocs
	}
	sources = ExpandSources(sources)
	log := s.logger.WithTrace(ctx).With("documents", len(sources), "maxConcurrent", maxConcurrent)
	log.Info("Starting batch processing")

	results := make([]jobModel.ProcessingResult, len(sources))
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		for i, src := range sources {
			results[i] = jobModel.ProcessingResult{Source: src, Reason: jobModel.Reason(jobModel.ErrWriteFailure), Error: err.Error()}
		}
		return summarize(results)
	}

	names := batchOutputNames(sources)
	gate := semaphore.NewWeighted(int64(maxConcurrent))
	var wg sync.WaitGroup
	for i, src := range sources {
		if err := gate.Acquire(ctx, 1); err != nil {
			results[i] = jobModel.ProcessingResult{Source: src, Reason: jobModel.Reason(err), Error: err.Error()}
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer gate.Release(1)
			results[i] = s.Process(ctx, jobModel.ConversionJob{
				Source:      src,
				Destination: filepath.Join(destDir, names[i]),
				// batches index whenever the service was built with an indexer
				Index: s.indexer != nil,
			})
		}()
	}
	wg.Wait()

	batch := summarize(results)
	log.Info("Batch processing complete", "succeeded", batch.Succeeded, "failed", batch.Failed)
	return batch
}

func summarize(results []jobModel.ProcessingResult) jobModel.BatchResult {
	b := jobModel.BatchResult{Results: results}
	for _, r := range results {
		if r.Success {
			b.Succeeded++
		} else {
			b.Failed++
		}
	}
	return b
}

// batchOutputNames gives every source its own output file name. The first
// source with a given stem gets {stem}_chunks.json and later ones get
// {stem}_1_chunks.json, {stem}_2_chunks.json and so on, in input order.
func batchOutputNames(sources []string) []string {
	names := make([]string, len(sources))
	taken := make(map[string]bool, len(sources))
	for i, src := range sources {
		stem := batchStem(src)
		name := stem + config.OutputSuffix
		for n := 1; taken[strings.ToLower(name)]; n++ {
			name = fmt.Sprintf("%s_%d%s", stem, n, config.OutputSuffix)
		}
		taken[strings.ToLower(name)] = true
		names[i] = name
	}
	return names
}

func batchStem(source string) string {
	base := source
	if customHttpClient.IsRemote(source) {
		base = strings.TrimSuffix(source, "/")
		if i := strings.IndexAny(base, "?#"); i >= 0 {
			base = base[:i]
		}
	}
	base = filepath.Base(base)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ExpandSources replaces every local directory with the supported files
// under it, sorted by path. Other sources pass through unchanged.
func ExpandSources(sources []string) []string {
	var out []string
	for _, src := range sources {
		info, err := os.Stat(src)
		if customHttpClient.IsRemote(src) || err != nil || !info.IsDir() {
			out = append(out, src)
			continue
		}
		var files []string
		_ = filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if !d.IsDir() && engine.IsSupported(path) {
				files = append(files, path)
			}
			return nil
		})
		sort.Strings(files)
		out = append(out, files...)
	}
	return out
}
