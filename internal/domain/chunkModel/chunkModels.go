package chunkModel

import (
	"bytes"
	"encoding/json"
	"fmt"
)

type ContentType string

const (
	ContentText          ContentType = "text"
	ContentTable         ContentType = "table"
	ContentJSONObject    ContentType = "json_object"
	ContentJSONArrayItem ContentType = "json_array_item"
	ContentJSON          ContentType = "json"
	ContentImageOCR      ContentType = "image_ocr"
)

const (
	metaSectionTitle = "section_title"
	metaContentType  = "content_type"
	metaPageNumber   = "page_number"
)

// Header is the part of a Document written before any chunk.
type Header struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

type Document struct {
	Name   string  `json:"name"`
	ID     string  `json:"id"`
	Chunks []Chunk `json:"chunks"`
}

type TableBody struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Subtitle   string     `json:"subtitle,omitempty"`
	HeaderRows int        `json:"header_rows"`
	Body       [][]string `json:"body"`
}

// Chunk is either text-like (Content set) or a table (Table set). Index is
// assigned by the writer at commit time.
type Chunk struct {
	ID           string
	Index        int
	Content      string
	Table        *TableBody
	ContentType  ContentType
	PageNumber   int
	SectionTitle string
	Metadata     map[string]any
}

type textWire struct {
	ID       string         `json:"id"`
	Content  string         `json:"content"`
	Index    int            `json:"Index"`
	Metadata map[string]any `json:"metadata"`
}

type tableWire struct {
	ID       string         `json:"id"`
	Index    int            `json:"Index"`
	Table    *TableBody     `json:"table"`
	Metadata map[string]any `json:"metadata"`
}

type anyWire struct {
	ID       string         `json:"id"`
	Index    int            `json:"Index"`
	Content  string         `json:"content"`
	Table    *TableBody     `json:"table"`
	Metadata map[string]any `json:"metadata"`
}

func (c Chunk) wireMetadata() map[string]any {
	meta := make(map[string]any, len(c.Metadata)+3)
	for k, v := range c.Metadata {
		meta[k] = v
	}
	meta[metaSectionTitle] = c.SectionTitle
	meta[metaContentType] = string(c.ContentType)
	page := c.PageNumber
	if page < 1 {
		page = 1
	}
	meta[metaPageNumber] = page
	return meta
}

func (c Chunk) MarshalJSON() ([]byte, error) {
	if c.Table != nil {
		return Marshal(tableWire{ID: c.ID, Index: c.Index, Table: c.Table, Metadata: c.wireMetadata()})
	}
	return Marshal(textWire{ID: c.ID, Content: c.Content, Index: c.Index, Metadata: c.wireMetadata()})
}

func (c *Chunk) UnmarshalJSON(data []byte) error {
	var w anyWire
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("decode chunk: %w", err)
	}
	*c = Chunk{ID: w.ID, Index: w.Index, Content: w.Content, Table: w.Table, PageNumber: 1}

	if len(w.Metadata) == 0 {
		return nil
	}
	rest := make(map[string]any, len(w.Metadata))
	for k, v := range w.Metadata {
		switch k {
		case metaSectionTitle:
			c.SectionTitle, _ = v.(string)
		case metaContentType:
			s, _ := v.(string)
			c.ContentType = ContentType(s)
		case metaPageNumber:
			if f, ok := v.(float64); ok && f >= 1 {
				c.PageNumber = int(f)
			}
		default:
			rest[k] = v
		}
	}
	if len(rest) > 0 {
		c.Metadata = rest
	}
	return nil
}

// Marshal encodes v without HTML escaping so cleaned text stays readable
// in the output file.
func Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// MarshalIndent is Marshal with the given prefix and indent.
func MarshalIndent(v any, prefix, indent string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent(prefix, indent)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
