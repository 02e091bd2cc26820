package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/akolanti/GoChunker/internal/config"
	"github.com/akolanti/GoChunker/internal/domain/jobModel"
	"github.com/akolanti/GoChunker/internal/metrics"
)

var ErrEngineClosed = errors.New("engine closed")

const (
	stagePreprocess = "preprocess"
	stageOCR        = "ocr"
	stageLayout     = "layout"
	stageTable      = "table"
	stageAssembly   = "assembly"
)

// work carries one page of one document between stages. The last item of
// every document is a marker with last set; stages are FIFO so it always
// reaches assembly after the document's pages.
type work struct {
	run      *run
	page     Page
	elements []Element
	err      error
	last     bool
}

type runResult struct {
	doc *ConvertedDocument
	err error
}

type run struct {
	ctx   context.Context
	path  string
	pages []*work
	done  chan runResult
}

// StagedEngine is the five stage conversion engine: preprocess, OCR, layout,
// table structure and assembly, each a goroutine joined by bounded queues.
// Producers block when the next queue is full.
type StagedEngine struct {
	cfg        config.PipelineConfig
	recognizer Recognizer

	mu       sync.RWMutex
	closed   bool
	requests chan *run
	wg       sync.WaitGroup
}

func NewStagedEngine(cfg config.PipelineConfig, recognizer Recognizer) *StagedEngine {
	queue := cfg.QueueCapacity
	if queue <= 0 {
		queue = config.DefaultQueueCapacity
	}
	e := &StagedEngine{
		cfg:        cfg,
		recognizer: recognizer,
		requests:   make(chan *run),
	}

	toOCR := make(chan *work, queue)
	toLayout := make(chan *work, queue)
	toTable := make(chan *work, queue)
	toAssembly := make(chan *work, queue)

	e.wg.Add(5)
	go e.preprocess(toOCR)
	go e.stage(stageOCR, toOCR, toLayout, cfg.OCRBatchSize, e.recognizeBatch)
	go e.stage(stageLayout, toLayout, toTable, cfg.LayoutBatchSize, layoutBatch)
	go e.stage(stageTable, toTable, toAssembly, cfg.TableBatchSize, tableBatch)
	go e.assemble(toAssembly)
	return e
}

// Convert blocks until the document has left the assembly stage. Once
// submitted a document always runs to completion; ctx only bounds the wait
// for admission and is handed to the recognizer.
func (e *StagedEngine) Convert(ctx context.Context, path string) (*ConvertedDocument, error) {
	r := &run{ctx: ctx, path: path, done: make(chan runResult, 1)}

	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return nil, ErrEngineClosed
	}
	select {
	case e.requests <- r:
	case <-ctx.Done():
		e.mu.RUnlock()
		return nil, ctx.Err()
	}
	e.mu.RUnlock()

	res := <-r.done
	return res.doc, res.err
}

func (e *StagedEngine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	close(e.requests)
	e.mu.Unlock()
	e.wg.Wait()
	return nil
}

func (e *StagedEngine) preprocess(out chan<- *work) {
	defer e.wg.Done()
	defer close(out)
	for r := range e.requests {
		start := time.Now()
		pages, err := readPages(r.path)
		metrics.CaptureExecutionMetrics("engine_"+stagePreprocess, time.Since(start))
		if err != nil {
			out <- &work{run: r, last: true, err: err}
			continue
		}
		for _, p := range pages {
			out <- &work{run: r, page: p}
		}
		out <- &work{run: r, last: true}
	}
}

func readPages(path string) (pages []Page, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("reader panicked: %v", rec)
		}
	}()
	read, ok := pageReaders[Ext(path)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", jobModel.ErrUnsupportedFormat, Ext(path))
	}
	return read(path)
}

func (e *StagedEngine) stage(name string, in <-chan *work, out chan<- *work, size int, process func([]*work)) {
	defer e.wg.Done()
	defer close(out)
	if size <= 0 {
		size = config.DefaultStageBatchSize
	}
	for {
		batch, more := collectBatch(in, size, e.cfg.PollInterval)
		if len(batch) > 0 {
			start := time.Now()
			process(batch)
			metrics.CaptureStageBatch(name, len(batch))
			metrics.CaptureExecutionMetrics("engine_"+name, time.Since(start))
			for _, w := range batch {
				out <- w
			}
		}
		if !more {
			return
		}
	}
}

// collectBatch blocks for the first item, then keeps filling the batch
// until it is full, a document marker arrives or poll has elapsed. The bool
// is false once in is closed.
func collectBatch(in <-chan *work, size int, poll time.Duration) ([]*work, bool) {
	first, ok := <-in
	if !ok {
		return nil, false
	}
	batch := make([]*work, 1, size)
	batch[0] = first
	if first.last {
		return batch, true
	}
	if poll <= 0 {
		poll = config.DefaultPollInterval
	}
	timer := time.NewTimer(poll)
	defer timer.Stop()
	for len(batch) < size {
		select {
		case w, ok := <-in:
			if !ok {
				return batch, false
			}
			batch = append(batch, w)
			if w.last {
				return batch, true
			}
		case <-timer.C:
			return batch, true
		}
	}
	return batch, true
}

func (e *StagedEngine) recognizeBatch(batch []*work) {
	for _, w := range batch {
		if w.last || w.err != nil || w.page.Image == nil {
			continue
		}
		if !e.cfg.OCREnabled || e.recognizer == nil {
			logger.Debug("OCR disabled, raster page left empty", "path", w.run.path, "page", w.page.Number)
			w.page.Image = nil
			continue
		}
		lines, err := e.recognizer.Recognize(w.run.ctx, w.page.Image, e.cfg.OCRLanguages)
		w.page.Image = nil
		if err != nil {
			w.err = fmt.Errorf("ocr page %d: %w", w.page.Number, err)
			continue
		}
		w.page.Text = strings.Join(lines, "\n")
	}
}

func layoutBatch(batch []*work) {
	for _, w := range batch {
		if w.last || w.err != nil {
			continue
		}
		p := w.page
		elements := append([]Element(nil), p.Elements...)
		if p.Markdown != "" {
			elements = append(elements, ParseMarkdown([]byte(p.Markdown), p.Number)...)
		}
		if p.Text != "" {
			elements = append(elements, layoutText(p.Text, p.Number)...)
		}
		w.elements = elements
	}
}

func tableBatch(batch []*work) {
	for _, w := range batch {
		if w.last || w.err != nil {
			continue
		}
		w.elements = detectTables(w.elements)
		normalizeParagraphs(w.elements)
	}
}

func (e *StagedEngine) assemble(in <-chan *work) {
	defer e.wg.Done()
	for w := range in {
		r := w.run
		if !w.last {
			r.pages = append(r.pages, w)
			continue
		}
		start := time.Now()
		doc, err := assembleDocument(r, w.err)
		metrics.CaptureExecutionMetrics("engine_"+stageAssembly, time.Since(start))
		r.done <- runResult{doc: doc, err: err}
	}
}

func assembleDocument(r *run, readErr error) (*ConvertedDocument, error) {
	if readErr != nil {
		if errors.Is(readErr, jobModel.ErrUnsupportedFormat) {
			return nil, readErr
		}
		return nil, decodeFailure(r.path, readErr)
	}

	var failed []error
	for _, w := range r.pages {
		if w.err != nil {
			failed = append(failed, w.err)
			logger.Warn("page failed", "path", r.path, "page", w.page.Number, "error", w.err)
		}
	}
	if len(r.pages) > 0 && len(failed) == len(r.pages) {
		return nil, engineFailure(r.path, fmt.Sprintf("all %d pages failed: %v", len(failed), failed[0]))
	}

	sort.SliceStable(r.pages, func(i, j int) bool { return r.pages[i].page.Number < r.pages[j].page.Number })

	doc := &ConvertedDocument{Name: filepath.Base(r.path)}
	var md []string
	var headings headingStack
	offset := 0
	for _, w := range r.pages {
		if w.err != nil {
			continue
		}
		if w.page.Number > doc.Pages {
			doc.Pages = w.page.Number
		}
		s := RenderMarkdown(w.elements, w.page.Media)
		for _, el := range w.elements {
			if el.Kind == KindHeading {
				headings.push(el.Level, el.Text)
			}
			if el.Line > 0 {
				el.Line += offset
			}
			el.Headings = headings.path()
			doc.Elements = append(doc.Elements, el)
		}
		if s != "" {
			md = append(md, s)
			offset += strings.Count(s, "\n") + 2
		}
	}
	doc.Markdown = strings.Join(md, "\n\n")
	return doc, nil
}
