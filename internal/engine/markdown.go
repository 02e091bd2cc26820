package engine

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

var (
	reCaption = regexp.MustCompile(`(?i)^(table|figure|fig\.|exhibit)\s*\d+`)

	markdownEngine = goldmark.New(goldmark.WithExtensions(extension.GFM))
)

// headingStack tracks the heading path while walking a document.
type headingStack struct {
	levels []int
	texts  []string
}

func (h *headingStack) push(level int, title string) {
	for len(h.levels) > 0 && h.levels[len(h.levels)-1] >= level {
		h.levels = h.levels[:len(h.levels)-1]
		h.texts = h.texts[:len(h.texts)-1]
	}
	h.levels = append(h.levels, level)
	h.texts = append(h.texts, title)
}

func (h *headingStack) path() []string {
	if len(h.texts) == 0 {
		return nil
	}
	return append([]string(nil), h.texts...)
}

// ParseMarkdown reads markdown into typed elements, all placed on page.
func ParseMarkdown(src []byte, page int) []Element {
	if page < 1 {
		page = 1
	}
	doc := markdownEngine.Parser().Parse(text.NewReader(src))
	r := &markdownReader{src: src, page: page}
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		r.block(n)
	}
	return r.out
}

type markdownReader struct {
	src      []byte
	page     int
	headings headingStack
	out      []Element
}

func (r *markdownReader) emit(el Element) {
	el.Page = r.page
	if el.Headings == nil {
		el.Headings = r.headings.path()
	}
	r.out = append(r.out, el)
}

func (r *markdownReader) block(n ast.Node) {
	switch node := n.(type) {
	case *ast.Heading:
		title := strings.TrimSpace(r.inline(node))
		if title == "" {
			return
		}
		r.headings.push(node.Level, title)
		label := "section_header"
		if node.Level == 1 {
			label = "title"
		}
		r.emit(Element{Kind: KindHeading, Level: node.Level, Text: title, Label: label})

	case *ast.Paragraph, *ast.TextBlock:
		r.paragraph(r.inline(node))

	case *ast.List:
		for item := node.FirstChild(); item != nil; item = item.NextSibling() {
			r.listItem(item)
		}

	case *extast.Table:
		if grid := r.table(node); len(grid) > 0 {
			r.emit(Element{Kind: KindTable, Grid: grid, Label: "table", Line: r.lineOf(node)})
		}

	case *ast.FencedCodeBlock, *ast.CodeBlock, *ast.HTMLBlock:
		if s := strings.TrimSpace(r.lines(n)); s != "" {
			r.emit(Element{Kind: KindParagraph, Text: s, Label: "code"})
		}

	case *ast.Blockquote:
		for c := node.FirstChild(); c != nil; c = c.NextSibling() {
			r.block(c)
		}

	case *ast.ThematicBreak:
	default:
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			r.block(c)
		}
	}
}

func (r *markdownReader) paragraph(s string) {
	s = strings.TrimSpace(s)
	if s == "" {
		return
	}
	if reCaption.MatchString(s) && len([]rune(s)) < 200 {
		r.emit(Element{Kind: KindCaption, Text: s, Label: "caption"})
		return
	}
	r.emit(Element{Kind: KindParagraph, Text: s, Label: "text"})
}

func (r *markdownReader) listItem(item ast.Node) {
	var parts []string
	for c := item.FirstChild(); c != nil; c = c.NextSibling() {
		if list, ok := c.(*ast.List); ok {
			if s := strings.TrimSpace(strings.Join(parts, " ")); s != "" {
				r.emit(Element{Kind: KindListItem, Text: s, Label: "list_item"})
			}
			parts = nil
			for sub := list.FirstChild(); sub != nil; sub = sub.NextSibling() {
				r.listItem(sub)
			}
			continue
		}
		parts = append(parts, r.inline(c))
	}
	if s := strings.TrimSpace(strings.Join(parts, " ")); s != "" {
		r.emit(Element{Kind: KindListItem, Text: s, Label: "list_item"})
	}
}

// lineOf returns the 1-based source line of the first cell goldmark
// recorded under n, or 0 when no cell carries a segment.
func (r *markdownReader) lineOf(n ast.Node) int {
	start := -1
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if cell, ok := c.(*extast.TableCell); ok && cell.Lines().Len() > 0 {
			start = cell.Lines().At(0).Start
			return ast.WalkStop, nil
		}
		return ast.WalkContinue, nil
	})
	if start < 0 || start > len(r.src) {
		return 0
	}
	return bytes.Count(r.src[:start], []byte("\n")) + 1
}

func (r *markdownReader) table(t *extast.Table) [][]string {
	var grid [][]string
	for row := t.FirstChild(); row != nil; row = row.NextSibling() {
		var cells []string
		for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
			cells = append(cells, strings.TrimSpace(r.inline(cell)))
		}
		if len(cells) > 0 {
			grid = append(grid, cells)
		}
	}
	return grid
}

func (r *markdownReader) lines(n ast.Node) string {
	var b strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.Write(seg.Value(r.src))
	}
	return b.String()
}

// inline flattens the inline content of n. Images are dropped; the OCR
// sub-pipeline reads them from the raw markdown instead.
func (r *markdownReader) inline(n ast.Node) string {
	var b strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := c.(type) {
		case *ast.Image:
			return ast.WalkSkipChildren, nil
		case *ast.Text:
			b.Write(node.Segment.Value(r.src))
			if node.SoftLineBreak() || node.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(node.Value)
		case *ast.AutoLink:
			b.Write(node.Label(r.src))
			return ast.WalkSkipChildren, nil
		case *ast.RawHTML:
			for i := 0; i < node.Segments.Len(); i++ {
				seg := node.Segments.At(i)
				b.Write(seg.Value(r.src))
			}
		}
		return ast.WalkContinue, nil
	})
	return b.String()
}
