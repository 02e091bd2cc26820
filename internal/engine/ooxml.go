package engine

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"sort"
	"strconv"
	"strings"
)

const maxMediaBytes = 20 << 20

// EmbeddedImage is a picture found inside a container format. The assembly
// stage inlines it into the markdown export as a data URI.
type EmbeddedImage struct {
	Format string
	Data   []byte
}

// ooxmlBlock is one paragraph or table read from a WordprocessingML or
// DrawingML part.
type ooxmlBlock struct {
	text    string
	style   string
	grid    [][]string
	isTable bool
}

// readOOXMLBlocks walks an XML part token by token. Paragraphs are <w:p> or
// <a:p>, text runs <w:t> or <a:t>, tables <w:tbl>/<a:tbl> with rows
// <w:tr>/<a:tr> and cells <w:tc>/<a:tc>.
func readOOXMLBlocks(r io.Reader) ([]ooxmlBlock, error) {
	dec := xml.NewDecoder(r)
	var (
		blocks    []ooxmlBlock
		para      strings.Builder
		style     string
		inText    bool
		inTabs    bool
		tableRows [][]string
		row       []string
		cell      strings.Builder
		depth     int // table nesting
	)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "tbl":
				depth++
				if depth == 1 {
					tableRows = nil
				}
			case "tr":
				if depth == 1 {
					row = nil
				}
			case "tc":
				if depth == 1 {
					cell.Reset()
				}
			case "p":
				para.Reset()
				style = ""
			case "pStyle":
				for _, a := range t.Attr {
					if a.Name.Local == "val" {
						style = a.Value
					}
				}
			case "t":
				inText = true
			case "tabs":
				inTabs = true
			case "tab":
				if !inTabs {
					para.WriteByte('\t')
				}
			case "br":
				para.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				para.Write(t)
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "tabs":
				inTabs = false
			case "p":
				text := strings.TrimSpace(para.String())
				if depth > 0 {
					if cell.Len() > 0 && text != "" {
						cell.WriteByte(' ')
					}
					cell.WriteString(text)
				} else if text != "" {
					blocks = append(blocks, ooxmlBlock{text: text, style: style})
				}
			case "tc":
				if depth == 1 {
					row = append(row, strings.TrimSpace(cell.String()))
				}
			case "tr":
				if depth == 1 && len(row) > 0 {
					tableRows = append(tableRows, row)
				}
			case "tbl":
				if depth == 1 && len(tableRows) > 0 {
					blocks = append(blocks, ooxmlBlock{grid: tableRows, isTable: true})
				}
				depth--
			}
		}
	}
	return blocks, nil
}

// headingFromStyle maps Word styles such as "Heading2" or "Title" to a
// heading level, 0 when the style is not a heading.
func headingFromStyle(style string) int {
	s := strings.ToLower(style)
	switch {
	case s == "title":
		return 1
	case strings.HasPrefix(s, "heading"):
		if n, err := strconv.Atoi(strings.TrimPrefix(s, "heading")); err == nil && n > 0 {
			return n
		}
		return 2
	}
	return 0
}

func blocksToElements(blocks []ooxmlBlock, page int) []Element {
	var out []Element
	for _, b := range blocks {
		switch {
		case b.isTable:
			out = append(out, Element{Kind: KindTable, Page: page, Grid: b.grid, Label: "table"})
		case headingFromStyle(b.style) > 0:
			level := headingFromStyle(b.style)
			label := "section_header"
			if level == 1 {
				label = "title"
			}
			out = append(out, Element{Kind: KindHeading, Page: page, Level: level, Text: b.text, Label: label})
		default:
			out = append(out, layoutText(b.text, page)...)
		}
	}
	return out
}

func openZipPart(zr *zip.Reader, name string) (io.ReadCloser, error) {
	for _, f := range zr.File {
		if f.Name == name {
			return f.Open()
		}
	}
	return nil, fmt.Errorf("part %s not found", name)
}

// readWordML reads word/document.xml from any WordprocessingML package,
// including templates and macro-enabled variants.
func readWordML(zr *zip.Reader) ([]Element, error) {
	rc, err := openZipPart(zr, "word/document.xml")
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	blocks, err := readOOXMLBlocks(rc)
	if err != nil {
		return nil, fmt.Errorf("parse document.xml: %w", err)
	}
	return blocksToElements(blocks, 1), nil
}

// readSlides returns one page per slide, in slide order. The first
// paragraph of a slide is taken as its title.
func readSlides(zr *zip.Reader) ([]Page, error) {
	type slidePart struct {
		n    int
		file *zip.File
	}
	var slides []slidePart
	for _, f := range zr.File {
		if !strings.HasPrefix(f.Name, "ppt/slides/slide") || !strings.HasSuffix(f.Name, ".xml") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(f.Name, "ppt/slides/slide"), ".xml"))
		if err != nil {
			continue
		}
		slides = append(slides, slidePart{n: n, file: f})
	}
	if len(slides) == 0 {
		return nil, fmt.Errorf("no slides found")
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].n < slides[j].n })

	pages := make([]Page, 0, len(slides))
	for i, s := range slides {
		rc, err := s.file.Open()
		if err != nil {
			return nil, err
		}
		blocks, err := readOOXMLBlocks(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", s.file.Name, err)
		}
		if len(blocks) > 0 && !blocks[0].isTable {
			blocks[0].style = "Heading2"
		}
		pages = append(pages, Page{Number: i + 1, Elements: blocksToElements(blocks, i+1)})
	}
	return pages, nil
}

// readMedia collects raster pictures stored under word/media or ppt/media.
func readMedia(zr *zip.Reader) []EmbeddedImage {
	var out []EmbeddedImage
	for _, f := range zr.File {
		dir := path.Dir(f.Name)
		if dir != "word/media" && dir != "ppt/media" {
			continue
		}
		format := strings.TrimPrefix(strings.ToLower(path.Ext(f.Name)), ".")
		if format == "jpg" {
			format = "jpeg"
		}
		switch format {
		case "png", "jpeg", "gif", "bmp", "tiff", "webp":
		default:
			continue
		}
		if f.UncompressedSize64 > maxMediaBytes {
			logger.Warn("skipping oversized media", "part", f.Name, "bytes", f.UncompressedSize64)
			continue
		}
		rc, err := f.Open()
		if err != nil {
			continue
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			logger.Warn("could not read media", "part", f.Name, "error", err)
			continue
		}
		out = append(out, EmbeddedImage{Format: format, Data: data})
	}
	return out
}
