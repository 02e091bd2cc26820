package chunker

import (
	"strings"
	"unicode/utf8"

	"github.com/akolanti/GoChunker/internal/config"
	"github.com/akolanti/GoChunker/internal/engine"
	"github.com/akolanti/GoChunker/internal/textclean"
)

// segment is a run of body elements under one heading path. It becomes one
// text chunk, or several when it is over the token limit.
type segment struct {
	elements []engine.Element
	headings []string
}

func (s segment) text() string {
	lines := make([]string, 0, len(s.elements))
	for _, el := range s.elements {
		if el.Kind == engine.KindListItem {
			lines = append(lines, "- "+el.Text)
			continue
		}
		lines = append(lines, el.Text)
	}
	return strings.Join(lines, "\n")
}

// contextualize prefixes the heading path so the chunk embeds with its
// surrounding structure.
func (s segment) contextualize(text string) string {
	if len(s.headings) == 0 {
		return text
	}
	return strings.Join(s.headings, "\n") + "\n" + text
}

type pageStrategy func(segment) (int, bool)

type sectionStrategy func(seg segment, text string) (string, bool)

var pageStrategies = []pageStrategy{
	firstElementPage,
	anyElementPage,
}

var sectionStrategies = []sectionStrategy{
	headingPathSection,
	labelledElementSection,
	leadingLineSection,
}

func pageOf(seg segment) int {
	for _, strategy := range pageStrategies {
		if p, ok := strategy(seg); ok {
			return p
		}
	}
	return 1
}

func sectionOf(seg segment, text string) string {
	for _, strategy := range sectionStrategies {
		if title, ok := strategy(seg, text); ok {
			return title
		}
	}
	return config.UnknownSection
}

func firstElementPage(seg segment) (int, bool) {
	if len(seg.elements) == 0 || seg.elements[0].Page < 1 {
		return 0, false
	}
	return seg.elements[0].Page, true
}

func anyElementPage(seg segment) (int, bool) {
	for _, el := range seg.elements {
		if el.Page >= 1 {
			return el.Page, true
		}
	}
	return 0, false
}

func sectionTitle(raw string) (string, bool) {
	title := textclean.Truncate(textclean.Clean(raw), config.SectionTitleMaxLen)
	return title, title != ""
}

func headingPathSection(seg segment, _ string) (string, bool) {
	if len(seg.headings) == 0 {
		return "", false
	}
	return sectionTitle(seg.headings[len(seg.headings)-1])
}

func labelledElementSection(seg segment, _ string) (string, bool) {
	for _, el := range seg.elements {
		label := strings.ToLower(el.Label)
		if strings.Contains(label, "heading") || strings.Contains(label, "title") || strings.Contains(label, "section") {
			return sectionTitle(el.Text)
		}
	}
	return "", false
}

// leadingLineSection looks at the first three lines of the raw chunk text.
func leadingLineSection(_ segment, text string) (string, bool) {
	lines := strings.Split(text, "\n")
	if len(lines) > 3 {
		lines = lines[:3]
	}
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		n := utf8.RuneCountInString(line)
		if textclean.IsUpper(line) || strings.HasPrefix(line, "#") || (n > 10 && n < 100) {
			return sectionTitle(line)
		}
	}
	return "", false
}
