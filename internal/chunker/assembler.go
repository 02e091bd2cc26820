package chunker

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"unicode/utf8"

	"github.com/akolanti/GoChunker/internal/config"
	"github.com/akolanti/GoChunker/internal/domain/chunkModel"
	"github.com/akolanti/GoChunker/internal/domain/jobModel"
	"github.com/akolanti/GoChunker/internal/engine"
	"github.com/akolanti/GoChunker/internal/tables"
	"github.com/akolanti/GoChunker/internal/textclean"
	"github.com/akolanti/GoChunker/pkg/logger_i"
	"github.com/google/uuid"
	"github.com/tmc/langchaingo/textsplitter"
)

const minChunkRunes = 10

var logger = logger_i.NewLogger("ChunkAssembler")

// Sink receives chunks in commit order and returns them with their Index
// assigned. *writer.Handle is the production sink.
type Sink interface {
	Append(chunk chunkModel.Chunk) (chunkModel.Chunk, error)
}

type Keyword struct {
	Value string  `json:"value"`
	Score float64 `json:"score"`
}

// KeywordExtractor ranks key phrases of cleaned chunk text. It is an
// enrichment only; errors never fail a chunk.
type KeywordExtractor interface {
	Extract(ctx context.Context, text string, topN int) ([]Keyword, error)
}

type ExtractionError struct {
	Kind     string
	Position int
	Err      error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s %d: %v", e.Kind, e.Position, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

var errEmptyGrid = errors.New("table has no cells")

type Summary struct {
	Tables  int
	Text    int
	Skipped int
}

func (s Summary) Total() int {
	return s.Tables + s.Text
}

type Option func(*Assembler)

func WithTokenizer(t Tokenizer) Option {
	return func(a *Assembler) {
		if t != nil {
			a.tokenizer = t
		}
	}
}

func WithKeywordExtractor(k KeywordExtractor) Option {
	return func(a *Assembler) {
		a.keywords = k
	}
}

// Assembler turns a converted document into chunks: tables first in source
// order, then text in document order.
type Assembler struct {
	tokenizer    Tokenizer
	keywords     KeywordExtractor
	maxTokens    int
	overlap      int
	fiscalTokens []string
}

func NewAssembler(cfg config.PipelineConfig, opts ...Option) (*Assembler, error) {
	a := &Assembler{
		tokenizer:    WhitespaceTokenizer{},
		maxTokens:    cfg.MaxTokens,
		overlap:      cfg.ChunkOverlap,
		fiscalTokens: cfg.FiscalTokens,
	}
	if a.maxTokens <= 0 {
		a.maxTokens = config.DefaultMaxTokens
	}
	if a.overlap < 0 || a.overlap >= a.maxTokens {
		a.overlap = 0
	}
	if cfg.TokenizerEncoding != "" {
		tok, err := NewTiktokenTokenizer(cfg.TokenizerEncoding)
		if err != nil {
			return nil, err
		}
		a.tokenizer = tok
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Assemble commits every chunk of doc to sink. Only sink errors stop it;
// a chunk that cannot be derived is logged and skipped.
func (a *Assembler) Assemble(ctx context.Context, doc *engine.ConvertedDocument, meta map[string]any, sink Sink) (Summary, error) {
	log := logger.WithTrace(ctx).With("document", doc.Name)
	var sum Summary

	if len(doc.Prebuilt) > 0 {
		for _, c := range doc.Prebuilt {
			c.Metadata = mergeMetadata(meta, c.Metadata)
			if _, err := sink.Append(c); err != nil {
				return sum, fmt.Errorf("%w: %v", jobModel.ErrWriteFailure, err)
			}
			sum.Text++
		}
		return sum, nil
	}

	if err := a.assembleTables(doc, meta, sink, &sum, log); err != nil {
		return sum, err
	}
	if err := a.assembleText(ctx, doc, meta, sink, &sum, log); err != nil {
		return sum, err
	}
	log.Info("assembled chunks", "tables", sum.Tables, "text", sum.Text, "skipped", sum.Skipped)
	return sum, nil
}

func (a *Assembler) assembleTables(doc *engine.ConvertedDocument, meta map[string]any, sink Sink, sum *Summary, log *logger_i.Logger) error {
	tableIndex := 0
	for pos, el := range doc.Elements {
		if el.Kind != engine.KindTable {
			continue
		}
		i := tableIndex
		tableIndex++

		chunk, err := a.tableChunk(doc, pos, i, meta)
		if err != nil {
			sum.Skipped++
			log.Warn("skipping table", "error", &ExtractionError{Kind: "table", Position: i, Err: err})
			continue
		}
		if _, err := sink.Append(chunk); err != nil {
			return fmt.Errorf("%w: %v", jobModel.ErrWriteFailure, err)
		}
		sum.Tables++
		log.Debug("extracted table", "table", i+1, "title", chunk.SectionTitle, "page", chunk.PageNumber, "rows", len(el.Grid))
	}
	return nil
}

func (a *Assembler) tableChunk(doc *engine.ConvertedDocument, pos, tableIndex int, meta map[string]any) (chunkModel.Chunk, error) {
	el := doc.Elements[pos]
	if len(el.Grid) == 0 || len(el.Grid[0]) == 0 {
		return chunkModel.Chunk{}, errEmptyGrid
	}
	page := el.Page
	if page < 1 {
		page = 1
	}

	// Look-behind runs from the line the table was parsed at. A table with
	// no known line keeps the fallback title.
	ext := tables.Extraction{Grid: el.Grid, HeaderRows: 1}
	if el.Line > 0 {
		var err error
		ext, err = tables.ExtractAtLine(el.Line-1, el.Grid, doc.Markdown, tables.WithFiscalTokens(a.fiscalTokens))
		if err != nil {
			logger.Debug("markdown title lookup failed", "table", tableIndex, "line", el.Line, "error", err)
		}
	}

	var title string
	if ext.Title != nil {
		title = *ext.Title
	} else {
		title = tables.FallbackTitle(tables.TitleSource{
			Caption:    adjacentCaption(doc.Elements, pos),
			Page:       page,
			TableIndex: tableIndex,
			PageTexts:  pageTexts(doc.PageElements(page)),
			Grid:       el.Grid,
		})
	}

	body := &chunkModel.TableBody{
		ID:         uuid.NewString(),
		Title:      title,
		HeaderRows: ext.HeaderRows,
		Body:       el.Grid,
	}
	if ext.Subtitle != nil {
		body.Subtitle = *ext.Subtitle
	}
	return chunkModel.Chunk{
		ID:           uuid.NewString(),
		Table:        body,
		ContentType:  chunkModel.ContentTable,
		PageNumber:   page,
		SectionTitle: textclean.Truncate(title, config.SectionTitleMaxLen),
		Metadata:     mergeMetadata(meta, nil),
	}, nil
}

// adjacentCaption returns the caption right before or right after the
// table at pos.
func adjacentCaption(elements []engine.Element, pos int) string {
	if pos > 0 && elements[pos-1].Kind == engine.KindCaption {
		return elements[pos-1].Text
	}
	if pos+1 < len(elements) && elements[pos+1].Kind == engine.KindCaption {
		return elements[pos+1].Text
	}
	return ""
}

func pageTexts(elements []engine.Element) []tables.PageText {
	out := make([]tables.PageText, 0, len(elements))
	for _, el := range elements {
		if el.Kind == engine.KindTable {
			continue
		}
		out = append(out, tables.PageText{Label: el.Label, Text: el.Text})
	}
	return out
}

func (a *Assembler) assembleText(ctx context.Context, doc *engine.ConvertedDocument, meta map[string]any, sink Sink, sum *Summary, log *logger_i.Logger) error {
	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(a.maxTokens),
		textsplitter.WithChunkOverlap(a.overlap),
		textsplitter.WithLenFunc(a.tokenizer.Count),
	)

	for i, seg := range a.segments(doc.Elements) {
		raw := seg.text()
		pieces := []string{raw}
		if a.tokenizer.Count(raw) > a.maxTokens {
			split, err := splitter.SplitText(raw)
			if err != nil {
				sum.Skipped++
				log.Warn("skipping text segment", "error", &ExtractionError{Kind: "text", Position: i, Err: err})
				continue
			}
			pieces = split
		}

		for _, piece := range pieces {
			content := textclean.Clean(seg.contextualize(piece))
			if utf8.RuneCountInString(content) < minChunkRunes {
				sum.Skipped++
				continue
			}
			chunk := chunkModel.Chunk{
				ID:           uuid.NewString(),
				Content:      content,
				ContentType:  chunkModel.ContentText,
				PageNumber:   pageOf(seg),
				SectionTitle: sectionOf(seg, piece),
				Metadata:     mergeMetadata(meta, nil),
			}
			a.enrich(ctx, &chunk, log)
			if _, err := sink.Append(chunk); err != nil {
				return fmt.Errorf("%w: %v", jobModel.ErrWriteFailure, err)
			}
			sum.Text++
		}
	}
	return nil
}

// segments groups body elements by heading path. A heading closes the
// current segment, and so does reaching the token limit.
func (a *Assembler) segments(elements []engine.Element) []segment {
	var out []segment
	var cur segment
	tokens := 0
	flush := func() {
		if len(cur.elements) > 0 {
			out = append(out, cur)
		}
		cur = segment{}
		tokens = 0
	}

	for _, el := range elements {
		switch el.Kind {
		case engine.KindTable:
			continue
		case engine.KindHeading:
			flush()
			continue
		}
		n := a.tokenizer.Count(el.Text)
		if len(cur.elements) > 0 && (!slices.Equal(cur.headings, el.Headings) || tokens+n > a.maxTokens) {
			flush()
		}
		if len(cur.elements) == 0 {
			cur.headings = el.Headings
		}
		cur.elements = append(cur.elements, el)
		tokens += n
	}
	flush()
	return out
}

func (a *Assembler) enrich(ctx context.Context, chunk *chunkModel.Chunk, log *logger_i.Logger) {
	if a.keywords == nil {
		return
	}
	kws, err := a.keywords.Extract(ctx, chunk.Content, config.KeywordTopN)
	if err != nil {
		log.Warn("keyword extraction failed", "error", fmt.Errorf("%w: %v", jobModel.ErrEnrichmentFailure, err))
		return
	}
	if len(kws) > 0 {
		chunk.Metadata["keywords"] = kws
	}
}

// mergeMetadata copies caller metadata first so chunk specific keys win.
func mergeMetadata(caller, own map[string]any) map[string]any {
	out := make(map[string]any, len(caller)+len(own)+1)
	for k, v := range caller {
		out[k] = v
	}
	for k, v := range own {
		out[k] = v
	}
	return out
}
