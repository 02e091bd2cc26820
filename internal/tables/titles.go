package tables

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/akolanti/GoChunker/internal/textclean"
)

const fallbackTitleMaxLen = 100

// PageText is a labelled piece of text found on the same page as a table.
type PageText struct {
	Label string
	Text  string
}

// TitleSource is everything FallbackTitle can look at.
type TitleSource struct {
	Caption    string
	DataTitle  string
	Page       int
	TableIndex int
	PageTexts  []PageText
	Grid       [][]string
}

type titleStrategy func(TitleSource) (string, bool)

var titleStrategies = []titleStrategy{
	captionTitle,
	dataTitle,
	pageHeadingTitle,
	firstRowTitle,
}

// FallbackTitle is used when the markdown look-behind found nothing. It
// always returns a title, ending with "Page {p} - Table {n}".
func FallbackTitle(src TitleSource) string {
	for _, strategy := range titleStrategies {
		if title, ok := strategy(src); ok {
			return title
		}
	}
	return SyntheticTitle(src.Page, src.TableIndex)
}

// SyntheticTitle names a table by position. tableIndex is zero-based.
func SyntheticTitle(page, tableIndex int) string {
	if page < 1 {
		page = 1
	}
	return fmt.Sprintf("Page %d - Table %d", page, tableIndex+1)
}

func captionTitle(src TitleSource) (string, bool) {
	caption := strings.TrimSpace(src.Caption)
	if utf8.RuneCountInString(caption) <= 3 {
		return "", false
	}
	title := textclean.Clean(caption)
	if title == "" {
		return "", false
	}
	if !strings.HasPrefix(strings.ToLower(title), "table") {
		title = "Table: " + title
	}
	return textclean.Truncate(title, fallbackTitleMaxLen), true
}

func dataTitle(src TitleSource) (string, bool) {
	title := textclean.Clean(src.DataTitle)
	if utf8.RuneCountInString(title) <= 3 {
		return "", false
	}
	return textclean.Truncate(title, fallbackTitleMaxLen), true
}

func pageHeadingTitle(src TitleSource) (string, bool) {
	var candidates []string
	for _, pt := range src.PageTexts {
		text := strings.TrimSpace(pt.Text)
		if utf8.RuneCountInString(text) < 3 {
			continue
		}
		label := strings.ToLower(pt.Label)
		isHeading := strings.Contains(label, "heading") || strings.Contains(label, "title") ||
			strings.Contains(label, "section") || strings.Contains(label, "caption")
		if isHeading || (strings.Contains(strings.ToLower(text), "table") && utf8.RuneCountInString(text) < 150) {
			candidates = append(candidates, text)
		}
	}
	if len(candidates) == 0 {
		return "", false
	}
	title := textclean.Clean(candidates[len(candidates)-1])
	if utf8.RuneCountInString(title) <= 3 {
		return "", false
	}
	return textclean.Truncate(title, fallbackTitleMaxLen), true
}

func firstRowTitle(src TitleSource) (string, bool) {
	if len(src.Grid) == 0 || len(src.Grid[0]) != 1 {
		return "", false
	}
	cell := strings.TrimSpace(src.Grid[0][0])
	if utf8.RuneCountInString(cell) <= 10 || textclean.IsNumeric(cell) {
		return "", false
	}
	title := textclean.Clean(cell)
	if title == "" {
		return "", false
	}
	return textclean.Truncate(title, fallbackTitleMaxLen), true
}
