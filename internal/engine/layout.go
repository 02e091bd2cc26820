package engine

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/akolanti/GoChunker/internal/textclean"
)

var (
	reNumberedHeading = regexp.MustCompile(`^(\d+(\.\d+)*\.?|[IVX]+\.|chapter\s+\d+|section\s+\d+)\s+\S`)
	reListItem        = regexp.MustCompile(`^([-*•▪◦]|\d+[.)]|[a-z][.)])\s+`)
	reColumnGap       = regexp.MustCompile(`\t+| {2,}`)
)

const (
	maxHeadingRunes = 80
	minTableRows    = 2
)

// layoutText splits an unstructured page into headings, list items,
// captions and paragraphs. Paragraph text keeps its line breaks so the
// table stage can still see column alignment.
func layoutText(raw string, page int) []Element {
	var out []Element
	var para []string
	flush := func() {
		if len(para) > 0 {
			out = append(out, Element{Kind: KindParagraph, Page: page, Text: strings.Join(para, "\n"), Label: "text"})
			para = nil
		}
	}

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimRight(line, " \t\r")
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
			flush()
		case isHeadingLine(trimmed) && len(para) == 0:
			out = append(out, Element{Kind: KindHeading, Page: page, Level: headingLevel(trimmed), Text: trimmed, Label: "section_header"})
		case reCaption.MatchString(trimmed) && utf8.RuneCountInString(trimmed) < 200:
			flush()
			out = append(out, Element{Kind: KindCaption, Page: page, Text: trimmed, Label: "caption"})
		case reListItem.MatchString(trimmed) && !isColumnar(line):
			flush()
			out = append(out, Element{Kind: KindListItem, Page: page, Text: reListItem.ReplaceAllString(trimmed, ""), Label: "list_item"})
		default:
			para = append(para, line)
		}
	}
	flush()
	return out
}

func isHeadingLine(s string) bool {
	n := utf8.RuneCountInString(s)
	if n < 3 || n > maxHeadingRunes {
		return false
	}
	if strings.HasSuffix(s, ".") || strings.HasSuffix(s, ",") || strings.HasSuffix(s, ";") {
		return false
	}
	if isColumnar(s) {
		return false
	}
	letters := 0
	for _, r := range s {
		if ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') || r > 127 {
			letters++
		}
	}
	if letters < 3 {
		return false
	}
	return textclean.IsUpper(s) || reNumberedHeading.MatchString(strings.ToLower(s))
}

func headingLevel(s string) int {
	if textclean.IsUpper(s) {
		return 1
	}
	if m := reNumberedHeading.FindString(s); m != "" {
		return 2 + strings.Count(strings.TrimSuffix(strings.Fields(m)[0], "."), ".")
	}
	return 2
}

func columns(line string) []string {
	parts := reColumnGap.Split(strings.TrimSpace(line), -1)
	cells := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			cells = append(cells, p)
		}
	}
	return cells
}

func isColumnar(line string) bool {
	return len(columns(line)) >= 2
}

// detectTables rewrites paragraph elements: runs of at least two lines
// with the same column count become table elements, the rest stays text.
func detectTables(elements []Element) []Element {
	out := make([]Element, 0, len(elements))
	for _, el := range elements {
		if el.Kind != KindParagraph || el.Label != "text" || !strings.Contains(el.Text, "\n") {
			out = append(out, el)
			continue
		}
		out = append(out, splitTableRuns(el)...)
	}
	return out
}

func splitTableRuns(el Element) []Element {
	lines := strings.Split(el.Text, "\n")
	var out []Element
	var text []string
	flushText := func() {
		if len(text) > 0 {
			out = append(out, Element{Kind: KindParagraph, Page: el.Page, Text: strings.Join(text, "\n"), Label: el.Label, Headings: el.Headings})
			text = nil
		}
	}

	for i := 0; i < len(lines); {
		cols := len(columns(lines[i]))
		if cols < 2 {
			text = append(text, lines[i])
			i++
			continue
		}
		j := i + 1
		for j < len(lines) && len(columns(lines[j])) == cols {
			j++
		}
		if j-i < minTableRows {
			text = append(text, lines[i])
			i++
			continue
		}
		flushText()
		grid := make([][]string, 0, j-i)
		for _, l := range lines[i:j] {
			grid = append(grid, columns(l))
		}
		out = append(out, Element{Kind: KindTable, Page: el.Page, Grid: grid, Label: "table", Headings: el.Headings})
		i = j
	}
	flushText()
	return out
}

// normalizeParagraphs folds the line breaks kept for table detection.
func normalizeParagraphs(elements []Element) {
	for i := range elements {
		if elements[i].Kind == KindParagraph && elements[i].Label == "text" {
			elements[i].Text = strings.Join(strings.Fields(elements[i].Text), " ")
		}
	}
}
