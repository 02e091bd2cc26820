package pipeline

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/akolanti/GoChunker/internal/config"
	"github.com/akolanti/GoChunker/internal/domain/chunkModel"
	"github.com/akolanti/GoChunker/internal/domain/jobModel"
	"github.com/akolanti/GoChunker/internal/engine"
	"github.com/akolanti/GoChunker/internal/writer"
)

type mockEngine struct {
	OnConvert func(ctx context.Context, path string) (*engine.ConvertedDocument, error)
}

func (m *mockEngine) Convert(ctx context.Context, path string) (*engine.ConvertedDocument, error) {
	return m.OnConvert(ctx, path)
}

func (m *mockEngine) Close() error { return nil }

type mockRecognizer struct {
	OnRecognize func(ctx context.Context, img image.Image, languages []string) ([]string, error)
}

func (m *mockRecognizer) Recognize(ctx context.Context, img image.Image, languages []string) ([]string, error) {
	return m.OnRecognize(ctx, img, languages)
}

type mockIndexer struct {
	mu      sync.Mutex
	paths   []string
	OnIndex func(ctx context.Context, path string) (int, error)
}

func (m *mockIndexer) IndexDocument(ctx context.Context, path string) (int, error) {
	m.mu.Lock()
	m.paths = append(m.paths, path)
	m.mu.Unlock()
	return m.OnIndex(ctx, path)
}

func testConfig() config.PipelineConfig {
	cfg := config.Default()
	cfg.OCREnabled = false
	cfg.EngineWorkers = 4
	cfg.MaxConcurrentDocs = 2
	return cfg
}

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func jobForTest(source, dest string) jobModel.ConversionJob {
	return jobModel.ConversionJob{Source: source, Destination: dest, Metadata: map[string]any{"tenant": "acme"}}
}

func newTestService(t *testing.T, cfg config.PipelineConfig, opts ...Option) Service {
	t.Helper()
	svc, err := NewService(cfg, opts...)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

func TestProcessBatch_BoundedConcurrency(t *testing.T) {
	var active, peak atomic.Int64
	factory := func() (engine.Engine, error) {
		return &mockEngine{OnConvert: func(ctx context.Context, path string) (*engine.ConvertedDocument, error) {
			n := active.Add(1)
			defer active.Add(-1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			return &engine.ConvertedDocument{
				Name:     filepath.Base(path),
				Pages:    1,
				Elements: []engine.Element{{Kind: engine.KindParagraph, Page: 1, Text: "Quarterly results for " + filepath.Base(path)}},
			}, nil
		}}, nil
	}

	in := t.TempDir()
	var sources []string
	for i := 0; i < 10; i++ {
		sources = append(sources, writeFile(t, filepath.Join(in, fmt.Sprintf("doc%02d.pdf", i)), "%PDF-1.4"))
	}

	svc := newTestService(t, testConfig(), WithEngineFactory(factory))
	out := t.TempDir()
	batch := svc.ProcessBatch(context.Background(), sources, out, 3)

	if batch.Succeeded != 10 || batch.Failed != 0 {
		t.Fatalf("expected 10 successes, got %+v", batch)
	}
	if got := peak.Load(); got > 3 {
		t.Errorf("engine saw %d concurrent documents, limit is 3", got)
	}
	stats := svc.Stats()
	if stats.PeakInFlight > 3 || stats.Completed != 10 || stats.InFlight != 0 {
		t.Errorf("unexpected stats %+v", stats)
	}
	for i, r := range batch.Results {
		if r.Source != sources[i] {
			t.Errorf("result %d is for %s, want %s", i, r.Source, sources[i])
		}
		want := filepath.Join(out, fmt.Sprintf("doc%02d_chunks.json", i))
		if r.OutputPath != want {
			t.Errorf("output path = %s, want %s", r.OutputPath, want)
		}
	}
}

func TestProcessBatch_FailureIsolation(t *testing.T) {
	in := t.TempDir()
	report := writeFile(t, filepath.Join(in, "report.md"), "# Title\n\nSome body text about the quarter.\n")
	missing := filepath.Join(in, "missing.pdf")
	notes := writeFile(t, filepath.Join(in, "notes.txt"), "Plain notes about the quarter.\n\nSecond paragraph.\n")

	svc := newTestService(t, testConfig())
	batch := svc.ProcessBatch(context.Background(), []string{report, missing, notes}, t.TempDir(), 2)

	if len(batch.Results) != 3 || batch.Succeeded != 2 || batch.Failed != 1 {
		t.Fatalf("expected 2 successes and 1 failure, got %+v", batch)
	}
	tests := []struct {
		source  string
		success bool
		reason  string
	}{
		{report, true, ""},
		{missing, false, "SourceUnavailable"},
		{notes, true, ""},
	}
	for i, tt := range tests {
		t.Run(filepath.Base(tt.source), func(t *testing.T) {
			r := batch.Results[i]
			if r.Source != tt.source || r.Success != tt.success || r.Reason != tt.reason {
				t.Errorf("got %+v", r)
			}
			if tt.success && r.NumChunks == 0 {
				t.Error("successful document produced no chunks")
			}
			if !tt.success && (r.Error == "" || r.NumChunks != 0) {
				t.Errorf("failed result should carry an error and no chunks, got %+v", r)
			}
		})
	}
}

func TestProcess_UnsupportedFormat(t *testing.T) {
	src := writeFile(t, filepath.Join(t.TempDir(), "bad.zip"), "PK")
	svc := newTestService(t, testConfig())
	res := svc.Process(context.Background(), jobForTest(src, t.TempDir()))
	if res.Success || res.Reason != "UnsupportedFormat" || res.Error == "" {
		t.Errorf("got %+v", res)
	}
}

func TestProcessBatch_SameStemSources(t *testing.T) {
	in := t.TempDir()
	for _, dir := range []string{"a", "b"} {
		if err := os.Mkdir(filepath.Join(in, dir), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	first := writeFile(t, filepath.Join(in, "a", "report.md"), "# Alpha\n\nAlpha division revenue grew.\n")
	second := writeFile(t, filepath.Join(in, "b", "report.md"), "# Beta\n\nBeta division revenue shrank.\n")
	third := writeFile(t, filepath.Join(in, "b", "report.txt"), "Gamma notes about the report.\n")

	out := t.TempDir()
	svc := newTestService(t, testConfig())
	batch := svc.ProcessBatch(context.Background(), []string{first, second, third}, out, 3)
	if batch.Succeeded != 3 {
		t.Fatalf("expected 3 successes, got %+v", batch)
	}

	want := []struct {
		path string
		text string
	}{
		{filepath.Join(out, "report_chunks.json"), "Alpha division"},
		{filepath.Join(out, "report_1_chunks.json"), "Beta division"},
		{filepath.Join(out, "report_2_chunks.json"), "Gamma notes"},
	}
	for i, w := range want {
		r := batch.Results[i]
		if r.OutputPath != w.path {
			t.Errorf("result %d written to %s, want %s", i, r.OutputPath, w.path)
			continue
		}
		doc, err := writer.ReadDocument(w.path)
		if err != nil {
			t.Fatalf("read %s: %v", w.path, err)
		}
		if len(doc.Chunks) == 0 || !strings.Contains(doc.Chunks[len(doc.Chunks)-1].Content, w.text) {
			t.Errorf("%s does not hold %q: %+v", w.path, w.text, doc.Chunks)
		}
	}
}

func TestBatchOutputNames(t *testing.T) {
	got := batchOutputNames([]string{
		"/in/a/report.md",
		"/in/b/report.md",
		"/in/report_1.pdf",
		"https://example.com/files/Report.pdf?v=2",
		"/in/other.docx",
	})
	want := []string{
		"report_chunks.json",
		"report_1_chunks.json",
		"report_1_1_chunks.json",
		"Report_2_chunks.json",
		"other_chunks.json",
	}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("got %v, want %v", got, want)
	}
}

// mixedTables holds a pipe-less table, a pipe table and a quoted table.
const mixedTables = `# Quarterly Report

## First Table Title

name | value
--- | ---
x | 1

## Second Table Title

| a | b |
|---|---|
| 2 | 3 |

> ## Quoted Table Title
>
> | q | r |
> |---|---|
> | 4 | 5 |

Closing remarks about the quarter and the outlook.
`

func TestProcess_MarkdownMatchesConvertedPath(t *testing.T) {
	in := t.TempDir()
	mdSource := writeFile(t, filepath.Join(in, "report.md"), mixedTables)
	pdfSource := writeFile(t, filepath.Join(in, "report.pdf"), "%PDF-1.4")

	// the converted path renders elements back to markdown the way the
	// staged engine does
	factory := func() (engine.Engine, error) {
		return &mockEngine{OnConvert: func(ctx context.Context, path string) (*engine.ConvertedDocument, error) {
			elements := engine.ParseMarkdown([]byte(mixedTables), 1)
			return &engine.ConvertedDocument{
				Name:     filepath.Base(path),
				Markdown: engine.RenderMarkdown(elements, nil),
				Pages:    1,
				Elements: elements,
			}, nil
		}}, nil
	}
	svc := newTestService(t, testConfig(), WithEngineFactory(factory))

	read := func(src string) []chunkModel.Chunk {
		t.Helper()
		res := svc.Process(context.Background(), jobForTest(src, t.TempDir()))
		if !res.Success {
			t.Fatalf("process %s failed: %s", src, res.Error)
		}
		doc, err := writer.ReadDocument(res.OutputPath)
		if err != nil {
			t.Fatal(err)
		}
		return doc.Chunks
	}
	short, converted := read(mdSource), read(pdfSource)

	var titles []string
	for _, c := range short {
		if c.Table != nil {
			titles = append(titles, c.Table.Title)
		}
	}
	if want := "First Table Title,Second Table Title,Quoted Table Title"; strings.Join(titles, ",") != want {
		t.Errorf("table titles = %v, want %s", titles, want)
	}

	if len(short) != len(converted) {
		t.Fatalf("markdown path made %d chunks, converted path %d", len(short), len(converted))
	}
	for i := range short {
		a, b := short[i], converted[i]
		if a.ContentType != b.ContentType || a.SectionTitle != b.SectionTitle || a.Content != b.Content {
			t.Errorf("chunk %d differs:\n%+v\n%+v", i, a, b)
			continue
		}
		if (a.Table == nil) != (b.Table == nil) {
			t.Errorf("chunk %d: table on one path only", i)
			continue
		}
		if a.Table != nil && (a.Table.Title != b.Table.Title || a.Table.HeaderRows != b.Table.HeaderRows ||
			fmt.Sprint(a.Table.Body) != fmt.Sprint(b.Table.Body)) {
			t.Errorf("table %d differs:\n%+v\n%+v", i, a.Table, b.Table)
		}
	}
}

func TestProcess_JSONArray(t *testing.T) {
	in := t.TempDir()
	src := writeFile(t, filepath.Join(in, "items.json"), `[{"a":1},{"b":2},{"c":3}]`)
	out := filepath.Join(t.TempDir(), "items.json.out.json")

	svc := newTestService(t, testConfig())
	res := svc.Process(context.Background(), jobForTest(src, out))
	if !res.Success {
		t.Fatalf("process failed: %s", res.Error)
	}
	if res.NumChunks != 3 || res.TotalChunks != 3 {
		t.Errorf("expected 3 chunks, got %+v", res)
	}

	doc, err := writer.ReadDocument(out)
	if err != nil {
		t.Fatal(err)
	}
	if doc.Name != "items.json" || doc.ID == "" {
		t.Errorf("unexpected header %q %q", doc.Name, doc.ID)
	}
	for i, c := range doc.Chunks {
		if c.Index != i || c.ContentType != chunkModel.ContentJSONArrayItem {
			t.Errorf("chunk %d: index %d type %s", i, c.Index, c.ContentType)
		}
	}
}

func TestProcess_IntermediateMarkdown(t *testing.T) {
	tests := []struct {
		name string
		keep bool
	}{
		{"removed by default", false},
		{"kept on request", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := t.TempDir()
			src := writeFile(t, filepath.Join(in, "notes.txt"), "Plain notes about the quarter.\n\nSecond paragraph.\n")
			work := t.TempDir()

			cfg := testConfig()
			cfg.KeepMarkdown = tt.keep
			svc := newTestService(t, cfg, WithWorkDir(work))

			res := svc.Process(context.Background(), jobForTest(src, t.TempDir()))
			if !res.Success {
				t.Fatalf("process failed: %s", res.Error)
			}
			md := filepath.Join(work, "notes.md")
			_, err := os.Stat(md)
			if tt.keep {
				if err != nil || res.MarkdownPath != md {
					t.Errorf("expected markdown at %s, result says %q, stat %v", md, res.MarkdownPath, err)
				}
			} else if !os.IsNotExist(err) || res.MarkdownPath != "" {
				t.Errorf("intermediate markdown should be gone, stat %v, path %q", err, res.MarkdownPath)
			}
		})
	}
}

func TestOutputPath(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		dest string
		want string
	}{
		{"existing directory", dir, filepath.Join(dir, "report_chunks.json")},
		{"trailing slash", filepath.Join(dir, "new") + "/", filepath.Join(dir, "new", "report_chunks.json")},
		{"no extension", filepath.Join(dir, "plain"), filepath.Join(dir, "plain", "report_chunks.json")},
		{"explicit file", filepath.Join(dir, "out.json"), filepath.Join(dir, "out.json")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := outputPath(tt.dest, "/data/report.pdf")
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestProcess_OCREnrichment(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 2, 2))
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	md := "# Figures\n\nRevenue chart below.\n\n![chart](data:image/png;base64," +
		base64.StdEncoding.EncodeToString(buf.Bytes()) + ")\n"
	src := writeFile(t, filepath.Join(t.TempDir(), "figures.md"), md)

	cfg := testConfig()
	cfg.OCREnabled = true
	rec := &mockRecognizer{OnRecognize: func(ctx context.Context, img image.Image, languages []string) ([]string, error) {
		return []string{"Revenue 2024"}, nil
	}}
	svc := newTestService(t, cfg, WithRecognizer(rec))

	out := filepath.Join(t.TempDir(), "figures.json")
	res := svc.Process(context.Background(), jobForTest(src, out))
	if !res.Success {
		t.Fatalf("process failed: %s", res.Error)
	}
	if res.NumOCRChunks != 1 || res.TotalChunks != res.NumChunks+1 {
		t.Errorf("unexpected counts %+v", res)
	}
	doc, err := writer.ReadDocument(out)
	if err != nil {
		t.Fatal(err)
	}
	last := doc.Chunks[len(doc.Chunks)-1]
	if last.ContentType != chunkModel.ContentImageOCR || !strings.Contains(last.Content, "Revenue 2024") {
		t.Errorf("last chunk should hold the OCR text, got %+v", last)
	}
	if last.Index != len(doc.Chunks)-1 {
		t.Errorf("OCR chunk index %d, want %d", last.Index, len(doc.Chunks)-1)
	}
	if _, err := os.Stat(src); err != nil {
		t.Errorf("markdown source must never be removed: %v", err)
	}
}

func TestProcess_FailureReportsNoChunks(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 2, 2))
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	md := "# Figures\n\nRevenue chart below.\n\n![chart](data:image/png;base64," +
		base64.StdEncoding.EncodeToString(buf.Bytes()) + ")\n"
	src := writeFile(t, filepath.Join(t.TempDir(), "figures.md"), md)
	out := filepath.Join(t.TempDir(), "figures.json")

	cfg := testConfig()
	cfg.OCREnabled = true
	// the chunk file is damaged after the text pass, so the OCR append fails
	rec := &mockRecognizer{OnRecognize: func(ctx context.Context, img image.Image, languages []string) ([]string, error) {
		if err := os.WriteFile(out, []byte(`{"chunks": [`), 0o644); err != nil {
			t.Error(err)
		}
		return []string{"Revenue 2024"}, nil
	}}
	svc := newTestService(t, cfg, WithRecognizer(rec))

	res := svc.Process(context.Background(), jobForTest(src, out))
	if res.Success {
		t.Fatal("expected the OCR append to fail the job")
	}
	if res.NumChunks != 0 || res.NumOCRChunks != 0 || res.TotalChunks != 0 {
		t.Errorf("failed job should report no chunks, got %+v", res)
	}
}

func TestProcess_IndexingFailureKeepsResult(t *testing.T) {
	src := writeFile(t, filepath.Join(t.TempDir(), "a.md"), "# A\n\nBody.\n")
	ix := &mockIndexer{OnIndex: func(ctx context.Context, path string) (int, error) {
		return 0, fmt.Errorf("vector store down")
	}}
	svc := newTestService(t, testConfig(), WithIndexer(ix))

	job := jobForTest(src, t.TempDir())
	job.Index = true
	res := svc.Process(context.Background(), job)
	if !res.Success {
		t.Fatalf("indexing errors must not fail the job: %s", res.Error)
	}
	if len(ix.paths) != 1 || ix.paths[0] != res.OutputPath {
		t.Errorf("indexer called with %v, want %s", ix.paths, res.OutputPath)
	}
}

func TestClose_RemovesOwnedScratchDir(t *testing.T) {
	svc, err := NewService(testConfig())
	if err != nil {
		t.Fatal(err)
	}
	dir := svc.(*service).workDir
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("scratch dir missing: %v", err)
	}
	if err := svc.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Errorf("scratch dir should be gone, stat %v", err)
	}
	if err := svc.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestExpandSources(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "b.pdf"), "x")
	writeFile(t, filepath.Join(dir, "a.docx"), "x")
	writeFile(t, filepath.Join(dir, "skip.zip"), "x")
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(dir, "sub", "c.md"), "x")

	got := ExpandSources([]string{"https://example.com/x.pdf", dir})
	want := []string{
		"https://example.com/x.pdf",
		filepath.Join(dir, "a.docx"),
		filepath.Join(dir, "b.pdf"),
		filepath.Join(dir, "sub", "c.md"),
	}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("got %v, want %v", got, want)
	}
}
