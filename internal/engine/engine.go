package engine

import (
	"context"
	"fmt"
	"image"

	"github.com/akolanti/GoChunker/internal/domain/chunkModel"
	"github.com/akolanti/GoChunker/internal/domain/jobModel"
	"github.com/akolanti/GoChunker/pkg/logger_i"
)

var logger = logger_i.NewLogger("Engine")

// Engine converts one file into a structured document. Instances are not
// safe for concurrent use; Pool gives every worker its own.
type Engine interface {
	Convert(ctx context.Context, path string) (*ConvertedDocument, error)
	Close() error
}

// Recognizer turns a raster image into recognised text lines.
type Recognizer interface {
	Recognize(ctx context.Context, img image.Image, languages []string) ([]string, error)
}

type ElementKind int

const (
	KindParagraph ElementKind = iota
	KindHeading
	KindTable
	KindCaption
	KindListItem
)

func (k ElementKind) String() string {
	switch k {
	case KindHeading:
		return "heading"
	case KindTable:
		return "table"
	case KindCaption:
		return "caption"
	case KindListItem:
		return "list_item"
	}
	return "paragraph"
}

// Element is one block of converted output. Grid is set for tables only,
// Level for headings only. Headings is the heading path in effect where the
// element appears, outermost first.
type Element struct {
	Kind     ElementKind
	Page     int
	Level    int
	Text     string
	Grid     [][]string
	Label    string
	Headings []string
	// Line is the 1-based line of the document markdown holding a table's
	// first row, 0 when unknown.
	Line int
}

// ConvertedDocument is what the adapter hands to the chunker. Prebuilt is
// only set by the JSON fast path, whose chunks need no assembly.
type ConvertedDocument struct {
	Name     string
	Markdown string
	Pages    int
	Elements []Element
	Prebuilt []chunkModel.Chunk
}

// Tables returns the table elements in document order.
func (d *ConvertedDocument) Tables() []Element {
	var out []Element
	for _, el := range d.Elements {
		if el.Kind == KindTable {
			out = append(out, el)
		}
	}
	return out
}

// PageElements returns every element on page p.
func (d *ConvertedDocument) PageElements(p int) []Element {
	var out []Element
	for _, el := range d.Elements {
		if el.Page == p {
			out = append(out, el)
		}
	}
	return out
}

type FailureReason string

const (
	ReasonDecode FailureReason = "decode"
	ReasonEngine FailureReason = "engine"
)

// ConversionFailure matches jobModel.ErrConversionFailure as well as its
// cause under errors.Is.
type ConversionFailure struct {
	Reason FailureReason
	Source string
	Detail string
	Err    error
}

func (f *ConversionFailure) Error() string {
	msg := fmt.Sprintf("conversion failed (%s) for %s", f.Reason, f.Source)
	if f.Detail != "" {
		msg += ": " + f.Detail
	}
	if f.Err != nil {
		msg += ": " + f.Err.Error()
	}
	return msg
}

func (f *ConversionFailure) Unwrap() []error {
	if f.Err == nil {
		return []error{jobModel.ErrConversionFailure}
	}
	return []error{jobModel.ErrConversionFailure, f.Err}
}

func decodeFailure(source string, err error) error {
	return &ConversionFailure{Reason: ReasonDecode, Source: source, Err: err}
}

func engineFailure(source, detail string) error {
	return &ConversionFailure{Reason: ReasonEngine, Source: source, Detail: detail}
}
