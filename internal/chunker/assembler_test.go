package chunker

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/akolanti/GoChunker/internal/config"
	"github.com/akolanti/GoChunker/internal/domain/chunkModel"
	"github.com/akolanti/GoChunker/internal/domain/jobModel"
	"github.com/akolanti/GoChunker/internal/engine"
	"github.com/akolanti/GoChunker/internal/writer"
)

type memSink struct {
	chunks   []chunkModel.Chunk
	OnAppend func(c chunkModel.Chunk) error
}

func (m *memSink) Append(c chunkModel.Chunk) (chunkModel.Chunk, error) {
	if m.OnAppend != nil {
		if err := m.OnAppend(c); err != nil {
			return c, err
		}
	}
	c.Index = len(m.chunks)
	m.chunks = append(m.chunks, c)
	return c, nil
}

type mockKeywords struct {
	OnExtract func(ctx context.Context, text string, topN int) ([]Keyword, error)
}

func (m *mockKeywords) Extract(ctx context.Context, text string, topN int) ([]Keyword, error) {
	return m.OnExtract(ctx, text, topN)
}

const revenueReport = `# Annual Report

## Revenue by Segment
(in millions)

| A | B |
|---|---|
| 2024 | 2025 |
| 10 | 20 |

## Outlook

We expect growth to continue next year across all regions.
`

func markdownDoc(md string) *engine.ConvertedDocument {
	return &engine.ConvertedDocument{
		Name:     "report.md",
		Markdown: md,
		Pages:    1,
		Elements: engine.ParseMarkdown([]byte(md), 1),
	}
}

func newAssembler(t *testing.T, opts ...Option) *Assembler {
	t.Helper()
	a, err := NewAssembler(config.Default(), opts...)
	if err != nil {
		t.Fatalf("NewAssembler: %v", err)
	}
	return a
}

func TestAssemble_TablesFirstThroughWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report_chunks.json")
	h, err := writer.Open(path, chunkModel.Header{Name: "report.md", ID: "doc-1"})
	if err != nil {
		t.Fatal(err)
	}

	sum, err := newAssembler(t).Assemble(context.Background(), markdownDoc(revenueReport), map[string]any{"source": "test"}, h)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if err := h.Close(); err != nil {
		t.Fatal(err)
	}
	if sum.Tables != 1 || sum.Text != 2 {
		t.Errorf("expected 1 table and 2 text chunks, got %+v", sum)
	}

	doc, err := writer.ReadDocument(path)
	if err != nil {
		t.Fatalf("ReadDocument: %v", err)
	}
	if len(doc.Chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(doc.Chunks))
	}
	for i, c := range doc.Chunks {
		if c.Index != i {
			t.Errorf("chunk %d has Index %d", i, c.Index)
		}
		if c.Metadata["source"] != "test" {
			t.Errorf("chunk %d lost caller metadata: %v", i, c.Metadata)
		}
	}

	table := doc.Chunks[0]
	if table.ContentType != chunkModel.ContentTable || table.Table == nil {
		t.Fatalf("expected table first, got %+v", table)
	}
	if table.Table.Title != "Revenue by Segment" || table.Table.Subtitle != "(in millions)" || table.Table.HeaderRows != 2 {
		t.Errorf("unexpected table body %+v", table.Table)
	}

	if got := doc.Chunks[1].SectionTitle; got != "Revenue by Segment" {
		t.Errorf("expected section Revenue by Segment, got %q", got)
	}
	outlook := doc.Chunks[2]
	if outlook.SectionTitle != "Outlook" {
		t.Errorf("expected section Outlook, got %q", outlook.SectionTitle)
	}
	if !strings.HasPrefix(outlook.Content, "Annual Report Outlook We expect growth") {
		t.Errorf("expected contextualized content, got %q", outlook.Content)
	}
}

func TestAssemble_SkipsWithoutGaps(t *testing.T) {
	doc := &engine.ConvertedDocument{
		Name:  "scan.pdf",
		Pages: 2,
		Elements: []engine.Element{
			{Kind: engine.KindTable, Page: 1, Label: "table"},
			{Kind: engine.KindParagraph, Page: 1, Text: "tiny", Label: "text"},
			{Kind: engine.KindHeading, Page: 2, Level: 1, Text: "STAFFING", Label: "title"},
			{Kind: engine.KindCaption, Page: 2, Text: "Table 3: Headcount by region", Label: "caption", Headings: []string{"STAFFING"}},
			{Kind: engine.KindTable, Page: 2, Grid: [][]string{{"Region", "Staff"}, {"North", "12"}}, Label: "table", Headings: []string{"STAFFING"}},
		},
	}
	sink := &memSink{}
	sum, err := newAssembler(t).Assemble(context.Background(), doc, nil, sink)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if sum.Skipped != 2 {
		t.Errorf("expected empty table and short text to be skipped, got %+v", sum)
	}

	if len(sink.chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(sink.chunks))
	}
	table := sink.chunks[0]
	if table.Index != 0 || table.Table.Title != "Table 3: Headcount by region" {
		t.Errorf("unexpected table chunk %+v", table.Table)
	}
	if table.PageNumber != 2 || table.Table.HeaderRows != 1 {
		t.Errorf("expected page 2 with one header row, got %d / %d", table.PageNumber, table.Table.HeaderRows)
	}

	caption := sink.chunks[1]
	if caption.Index != 1 || caption.PageNumber != 2 || caption.SectionTitle != "STAFFING" {
		t.Errorf("unexpected text chunk %+v", caption)
	}
}

func TestAssemble_TableTitlesFollowSourceLines(t *testing.T) {
	md := "## First Table Title\n\nname | value\n--- | ---\nx | 1\n\n" +
		"## Second Table Title\n\n| a | b |\n|---|---|\n| 2 | 3 |\n\n" +
		"> ## Quoted Table Title\n>\n> | q | r |\n> |---|---|\n> | 4 | 5 |\n"
	want := []string{"First Table Title", "Second Table Title", "Quoted Table Title"}

	rendered := engine.ParseMarkdown([]byte(md), 1)
	// an empty table ahead of the others renders no pipe rows
	rendered = append([]engine.Element{{Kind: engine.KindTable, Page: 1, Label: "table"}}, rendered...)

	tests := []struct {
		name string
		doc  *engine.ConvertedDocument
	}{
		{"markdown source", markdownDoc(md)},
		{"rendered markdown", &engine.ConvertedDocument{
			Name:     "report.pdf",
			Markdown: engine.RenderMarkdown(rendered, nil),
			Pages:    1,
			Elements: rendered,
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &memSink{}
			if _, err := newAssembler(t).Assemble(context.Background(), tt.doc, nil, sink); err != nil {
				t.Fatal(err)
			}
			var got []string
			for _, c := range sink.chunks {
				if c.Table != nil {
					got = append(got, c.Table.Title)
				}
			}
			if strings.Join(got, ",") != strings.Join(want, ",") {
				t.Errorf("titles = %v, want %v", got, want)
			}
		})
	}
}

func TestAssemble_SyntheticTableTitle(t *testing.T) {
	doc := &engine.ConvertedDocument{
		Name: "numbers.csv",
		Elements: []engine.Element{
			{Kind: engine.KindTable, Page: 1, Grid: [][]string{{"1", "2"}, {"3", "4"}}, Label: "table"},
		},
	}
	sink := &memSink{}
	if _, err := newAssembler(t).Assemble(context.Background(), doc, nil, sink); err != nil {
		t.Fatal(err)
	}
	if got := sink.chunks[0].Table.Title; got != "Page 1 - Table 1" {
		t.Errorf("expected synthetic title, got %q", got)
	}
}

func TestAssemble_SplitsOversizedSegments(t *testing.T) {
	cfg := config.Default()
	cfg.MaxTokens = 5
	cfg.ChunkOverlap = 0
	a, err := NewAssembler(cfg)
	if err != nil {
		t.Fatal(err)
	}

	words := strings.Repeat("alphabet soup ", 10)
	doc := &engine.ConvertedDocument{
		Name:     "long.txt",
		Elements: []engine.Element{{Kind: engine.KindParagraph, Page: 1, Text: words, Label: "text"}},
	}
	sink := &memSink{}
	if _, err := a.Assemble(context.Background(), doc, nil, sink); err != nil {
		t.Fatal(err)
	}
	if len(sink.chunks) < 2 {
		t.Fatalf("expected the paragraph to be split, got %d chunks", len(sink.chunks))
	}
	for i, c := range sink.chunks {
		if c.Index != i {
			t.Errorf("chunk %d has Index %d", i, c.Index)
		}
		if n := (WhitespaceTokenizer{}).Count(c.Content); n > 5 {
			t.Errorf("chunk %d has %d tokens", i, n)
		}
	}
}

func TestAssemble_KeywordEnrichment(t *testing.T) {
	calls := 0
	kw := &mockKeywords{
		OnExtract: func(ctx context.Context, text string, topN int) ([]Keyword, error) {
			calls++
			if topN != config.KeywordTopN {
				t.Errorf("expected top %d, got %d", config.KeywordTopN, topN)
			}
			if calls == 1 {
				return nil, errors.New("model unavailable")
			}
			return []Keyword{{Value: "growth", Score: 0.9}}, nil
		},
	}
	sink := &memSink{}
	sum, err := newAssembler(t, WithKeywordExtractor(kw)).Assemble(context.Background(), markdownDoc(revenueReport), nil, sink)
	if err != nil {
		t.Fatal(err)
	}
	if sum.Text != 2 {
		t.Fatalf("enrichment failure must not drop chunks, got %+v", sum)
	}
	if _, ok := sink.chunks[1].Metadata["keywords"]; ok {
		t.Error("failed extraction should leave no keywords")
	}
	if got, ok := sink.chunks[2].Metadata["keywords"].([]Keyword); !ok || got[0].Value != "growth" {
		t.Errorf("expected keywords on second text chunk, got %v", sink.chunks[2].Metadata)
	}
}

func TestAssemble_PrebuiltAndWriteFailure(t *testing.T) {
	chunks, err := engine.ChunkJSON([]byte(`[{"a":1},{"a":2}]`))
	if err != nil {
		t.Fatal(err)
	}
	doc := &engine.ConvertedDocument{Name: "items.json", Prebuilt: chunks}

	sink := &memSink{}
	sum, err := newAssembler(t).Assemble(context.Background(), doc, map[string]any{"tenant": "acme"}, sink)
	if err != nil {
		t.Fatal(err)
	}
	if sum.Total() != 2 || sink.chunks[1].Index != 1 || sink.chunks[1].Metadata["tenant"] != "acme" {
		t.Errorf("unexpected prebuilt result %+v / %+v", sum, sink.chunks)
	}

	failing := &memSink{OnAppend: func(chunkModel.Chunk) error { return errors.New("disk full") }}
	_, err = newAssembler(t).Assemble(context.Background(), markdownDoc(revenueReport), nil, failing)
	if !errors.Is(err, jobModel.ErrWriteFailure) {
		t.Errorf("expected ErrWriteFailure, got %v", err)
	}
}

func TestSectionStrategies(t *testing.T) {
	tests := []struct {
		name string
		seg  segment
		text string
		want string
	}{
		{"heading path wins", segment{headings: []string{"Intro", "Scope"}}, "SOMETHING ELSE", "Scope"},
		{"labelled element", segment{elements: []engine.Element{{Label: "section_header", Text: "Results"}}}, "", "Results"},
		{"upper first line", segment{}, "OVERVIEW\nbody", "OVERVIEW"},
		{"medium first line", segment{}, "short\nThis line is long enough\nmore", "This line is long enough"},
		{"nothing usable", segment{}, "a\nb", config.UnknownSection},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sectionOf(tt.seg, tt.text); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}

	long := strings.Repeat("x", 150)
	if got := sectionOf(segment{headings: []string{long}}, ""); len(got) != config.SectionTitleMaxLen {
		t.Errorf("expected title capped at %d, got %d", config.SectionTitleMaxLen, len(got))
	}
	if got := pageOf(segment{elements: []engine.Element{{Page: 0}, {Page: 4}}}); got != 4 {
		t.Errorf("expected page 4, got %d", got)
	}
	if got := pageOf(segment{}); got != 1 {
		t.Errorf("expected default page 1, got %d", got)
	}
}
