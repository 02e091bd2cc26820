package engine

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"time"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/akolanti/GoChunker/internal/config"
	"github.com/dslipak/pdf"
	"github.com/lu4p/cat"
	"github.com/xuri/excelize/v2"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Page is the unit that flows through the engine stages. Readers fill in
// whichever representation they can produce: raw Text goes through layout,
// Markdown through the markdown reader, Elements are already structured and
// Image is recognised by the OCR stage.
type Page struct {
	Number   int
	Text     string
	Markdown string
	Elements []Element
	Image    image.Image
	Media    []EmbeddedImage
	NeedsOCR bool
}

var errPageTimeout = errors.New("page text extraction timed out")

// pageReader reads a whole file into pages.
type pageReader func(path string) ([]Page, error)

var pageReaders = map[string]pageReader{
	".pdf":   readPDF,
	".docx":  readDocx,
	".dotx":  readWordPackage,
	".docm":  readWordPackage,
	".dotm":  readWordPackage,
	".odt":   readDocx,
	".rtf":   readDocx,
	".pptx":  readPresentation,
	".xlsx":  readWorkbook,
	".xlsm":  readWorkbook,
	".html":  readHTML,
	".htm":   readHTML,
	".xhtml": readHTML,
	".jpg":   readImage,
	".jpeg":  readImage,
	".png":   readImage,
	".tiff":  readImage,
	".bmp":   readImage,
	".webp":  readImage,
}

func readPDF(path string) ([]Page, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	r, err := pdf.NewReader(f, info.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}

	numPages := r.NumPage()
	logger.Debug("extractPDF", "pages", numPages, "path", path)
	pages := make([]Page, 0, numPages)
	for i := 1; i <= numPages; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		content, err := protectExtract(p)
		if err != nil {
			// keep the page so numbering stays aligned
			logger.Warn("error parsing page content", "page", i, "error", err)
		}
		pages = append(pages, Page{Number: i, Text: content, NeedsOCR: content == ""})
	}
	return pages, nil
}

func protectExtract(page pdf.Page) (string, error) {
	type result struct {
		content string
		err     error
	}
	resChan := make(chan result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				resChan <- result{err: fmt.Errorf("pdf text extraction panicked: %v", r)}
			}
		}()
		content, err := page.GetPlainText(nil)
		resChan <- result{content, err}
	}()
	select {
	case r := <-resChan:
		return r.content, r.err
	case <-time.After(config.PageExtractTimeout):
		return "", errPageTimeout
	}
}

func readDocx(path string) ([]Page, error) {
	text, err := cat.File(path)
	if err != nil {
		return nil, fmt.Errorf("failed to extract %s: %w", filepath.Ext(path), err)
	}
	page := Page{Number: 1, Text: text}
	if zr, err := zip.OpenReader(path); err == nil {
		page.Media = readMedia(&zr.Reader)
		zr.Close()
	}
	return []Page{page}, nil
}

func readWordPackage(path string) ([]Page, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	elements, err := readWordML(&zr.Reader)
	if err != nil {
		return nil, err
	}
	return []Page{{Number: 1, Elements: elements, Media: readMedia(&zr.Reader)}}, nil
}

func readPresentation(path string) ([]Page, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	pages, err := readSlides(&zr.Reader)
	if err != nil {
		return nil, err
	}
	if media := readMedia(&zr.Reader); len(media) > 0 {
		pages[len(pages)-1].Media = media
	}
	return pages, nil
}

// readWorkbook turns every sheet into one page holding a heading with the
// sheet name and the sheet's cell grid.
func readWorkbook(path string) ([]Page, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var pages []Page
	for i, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
		}
		number := i + 1
		page := Page{Number: number, Elements: []Element{{Kind: KindHeading, Page: number, Level: 2, Text: sheet, Label: "section_header"}}}
		if grid := trimGrid(rows); len(grid) > 0 {
			page.Elements = append(page.Elements, Element{Kind: KindTable, Page: number, Grid: grid, Label: "table"})
		}
		pages = append(pages, page)
	}
	return pages, nil
}

// trimGrid drops empty rows and pads the rest to the widest row.
func trimGrid(rows [][]string) [][]string {
	var out [][]string
	width := 0
	for _, row := range rows {
		empty := true
		for _, c := range row {
			if c != "" {
				empty = false
				break
			}
		}
		if empty {
			continue
		}
		if len(row) > width {
			width = len(row)
		}
		out = append(out, row)
	}
	for i, row := range out {
		if len(row) < width {
			padded := make([]string, width)
			copy(padded, row)
			out[i] = padded
		}
	}
	return out
}

var htmlConverter = converter.NewConverter(
	converter.WithPlugins(
		base.NewBasePlugin(),
		commonmark.NewCommonmarkPlugin(),
		table.NewTablePlugin(),
	),
)

func readHTML(path string) ([]Page, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	md, err := htmlConverter.ConvertString(string(data))
	if err != nil {
		return nil, fmt.Errorf("html to markdown: %w", err)
	}
	return []Page{{Number: 1, Markdown: md}}, nil
}

func readImage(path string) ([]Page, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return []Page{{Number: 1, Image: img, NeedsOCR: true}}, nil
}
