package engine

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/akolanti/GoChunker/internal/domain/chunkModel"
	"github.com/akolanti/GoChunker/internal/domain/jobModel"
	"github.com/akolanti/GoChunker/internal/tables"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
)

var jsonIndent = &pretty.Options{Width: 80, Indent: "  "}

// Adapter is the single entry point for conversion. Formats that carry no
// layout skip the staged engine; everything else runs on a pool worker.
type Adapter struct {
	pool *Pool
}

func NewAdapter(pool *Pool) *Adapter {
	return &Adapter{pool: pool}
}

func (a *Adapter) Convert(ctx context.Context, path string) (*ConvertedDocument, error) {
	route := RouteFor(path)
	if route == RouteUnsupported {
		return nil, fmt.Errorf("%w: %q", jobModel.ErrUnsupportedFormat, Ext(path))
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", jobModel.ErrSourceUnavailable, path, err)
	}

	switch route {
	case RouteText:
		return convertText(path)
	case RouteCSV:
		return convertCSV(path)
	case RouteJSON:
		return convertJSON(path)
	}

	if a.pool == nil {
		return nil, engineFailure(path, "no engine pool configured")
	}
	var doc *ConvertedDocument
	err := a.pool.Do(ctx, func(e Engine) error {
		var convErr error
		doc, convErr = e.Convert(ctx, path)
		return convErr
	})
	if err != nil {
		var failure *ConversionFailure
		if errors.As(err, &failure) || errors.Is(err, jobModel.ErrUnsupportedFormat) {
			return nil, err
		}
		return nil, engineFailure(path, err.Error())
	}
	return doc, nil
}

func convertText(path string) (*ConvertedDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, decodeFailure(path, err)
	}
	return &ConvertedDocument{
		Name:     filepath.Base(path),
		Markdown: string(data),
		Pages:    1,
		Elements: ParseMarkdown(data, 1),
	}, nil
}

func convertCSV(path string) (*ConvertedDocument, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, decodeFailure(path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	rows, err := r.ReadAll()
	if err != nil {
		return nil, decodeFailure(path, fmt.Errorf("read csv: %w", err))
	}
	grid := trimGrid(rows)
	doc := &ConvertedDocument{Name: filepath.Base(path), Pages: 1}
	if len(grid) == 0 {
		return doc, nil
	}
	doc.Elements = []Element{{Kind: KindTable, Page: 1, Grid: grid, Label: "table", Line: 1}}
	doc.Markdown = tables.ToMarkdown(grid)
	return doc, nil
}

func convertJSON(path string) (*ConvertedDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, decodeFailure(path, err)
	}
	chunks, err := ChunkJSON(data)
	if err != nil {
		return nil, decodeFailure(path, err)
	}
	return &ConvertedDocument{Name: filepath.Base(path), Pages: 1, Prebuilt: chunks}, nil
}

// ChunkJSON splits a JSON document without any layout analysis: every item
// of a top-level array is its own chunk, anything else is a single chunk.
// Key order is preserved.
func ChunkJSON(data []byte) ([]chunkModel.Chunk, error) {
	data = bytes.TrimSpace(data)
	if !gjson.ValidBytes(data) {
		return nil, errors.New("invalid JSON")
	}
	root := gjson.ParseBytes(data)

	if root.IsArray() {
		var chunks []chunkModel.Chunk
		i := 0
		root.ForEach(func(_, item gjson.Result) bool {
			chunks = append(chunks, chunkModel.Chunk{
				ID:           uuid.NewString(),
				Index:        i,
				Content:      indentJSON(item.Raw),
				ContentType:  chunkModel.ContentJSONArrayItem,
				PageNumber:   1,
				SectionTitle: fmt.Sprintf("Item %d", i+1),
			})
			i++
			return true
		})
		return chunks, nil
	}

	chunk := chunkModel.Chunk{
		ID:           uuid.NewString(),
		Content:      indentJSON(root.Raw),
		ContentType:  chunkModel.ContentJSON,
		PageNumber:   1,
		SectionTitle: "JSON Data",
	}
	if root.IsObject() {
		chunk.ContentType = chunkModel.ContentJSONObject
		chunk.SectionTitle = "JSON Object"
	}
	return []chunkModel.Chunk{chunk}, nil
}

func indentJSON(raw string) string {
	return strings.TrimRight(string(pretty.PrettyOptions([]byte(raw), jsonIndent)), "\n")
}
