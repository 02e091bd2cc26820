package tables

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/akolanti/GoChunker/internal/config"
)

const (
	lookBehindLines = 4
	minTitleLen     = 10
	maxTitleLen     = 150
	maxHeaderRows   = 3
)

var (
	ErrNoSource     = errors.New("no markdown source or empty grid")
	ErrTableMissing = errors.New("table index out of range")
)

// Extraction is the transient result for one table. Title and Subtitle are
// nil when nothing could be recovered.
type Extraction struct {
	Grid       [][]string
	Title      *string
	Subtitle   *string
	HeaderRows int
}

type options struct {
	fiscalTokens []string
}

type Option func(*options)

// WithFiscalTokens replaces the header-row vocabulary. Tokens are matched
// against lowercased row text.
func WithFiscalTokens(tokens []string) Option {
	return func(o *options) {
		if len(tokens) == 0 {
			return
		}
		lowered := make([]string, 0, len(tokens))
		for _, t := range tokens {
			if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
				lowered = append(lowered, t)
			}
		}
		o.fiscalTokens = lowered
	}
}

// TableStarts returns the line index of every contiguous run of pipe rows.
// A line opening with "|--" continues a run without starting one.
func TableStarts(raw string) []int {
	var starts []int
	inTable := false
	for i, line := range strings.Split(raw, "\n") {
		trimmed := strings.TrimSpace(line)
		isSeparator := strings.HasPrefix(trimmed, "|--")
		isTableLine := strings.HasPrefix(trimmed, "|") && !isSeparator

		if isTableLine && !inTable {
			starts = append(starts, i)
			inTable = true
		} else if !isTableLine && !isSeparator {
			inTable = false
		}
	}
	return starts
}

// ExtractTitleAndHeader recovers the title, subtitle and header-row count of
// the tableIndex-th table of raw. On error the returned Extraction still
// carries the grid and a header-row count of 1.
func ExtractTitleAndHeader(tableIndex int, grid [][]string, raw string, opts ...Option) (Extraction, error) {
	if raw == "" || len(grid) == 0 {
		return Extraction{Grid: grid, HeaderRows: 1}, ErrNoSource
	}
	starts := TableStarts(raw)
	if tableIndex < 0 || tableIndex >= len(starts) {
		return Extraction{Grid: grid, HeaderRows: 1}, fmt.Errorf("%w: table %d of %d", ErrTableMissing, tableIndex, len(starts))
	}
	return ExtractAtLine(starts[tableIndex], grid, raw, opts...)
}

// ExtractAtLine is ExtractTitleAndHeader for a table whose first row is
// known to sit on the given 0-based line of raw. Tables without a leading
// pipe, or nested in a blockquote, are found this way.
func ExtractAtLine(line int, grid [][]string, raw string, opts ...Option) (Extraction, error) {
	o := options{fiscalTokens: config.DefaultFiscalTokens}
	for _, opt := range opts {
		opt(&o)
	}

	result := Extraction{Grid: grid, HeaderRows: 1}
	if raw == "" || len(grid) == 0 {
		return result, ErrNoSource
	}

	lines := strings.Split(raw, "\n")
	if line < 0 || line >= len(lines) {
		return result, fmt.Errorf("%w: line %d of %d", ErrTableMissing, line, len(lines))
	}
	result.Title, result.Subtitle = lookBehind(lines, line)
	result.HeaderRows = countHeaderRows(grid, o.fiscalTokens)
	return result, nil
}

// unquote drops blockquote markers so quoted headings still read as headings.
func unquote(line string) string {
	for strings.HasPrefix(line, ">") {
		line = strings.TrimSpace(line[1:])
	}
	return line
}

func lookBehind(lines []string, anchor int) (title *string, subtitle *string) {
	var fallback *string
	lowest := anchor - lookBehindLines
	if lowest < 0 {
		lowest = 0
	}

	for i := anchor - 1; i >= lowest; i-- {
		line := unquote(strings.TrimSpace(lines[i]))
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "##") {
			heading := strings.TrimSpace(strings.TrimLeft(line, "#"))
			title = &heading
			for j := i + 1; j < anchor; j++ {
				candidate := unquote(strings.TrimSpace(lines[j]))
				if candidate != "" && strings.HasPrefix(candidate, "(") && strings.HasSuffix(candidate, ")") {
					sub := candidate
					subtitle = &sub
					break
				}
			}
			return title, subtitle
		}

		n := utf8.RuneCountInString(line)
		if fallback == nil && !strings.HasPrefix(line, "|") && !strings.HasPrefix(line, "*") && n > minTitleLen && n < maxTitleLen {
			candidate := line
			fallback = &candidate
		}
	}
	return fallback, nil
}

func countHeaderRows(grid [][]string, vocabulary []string) int {
	rows := 1
	if len(grid) < 3 {
		return rows
	}
	for r := 1; r < maxHeaderRows && r < len(grid); r++ {
		if !rowMatches(grid[r], vocabulary) {
			break
		}
		rows = r + 1
	}
	return rows
}

func rowMatches(row []string, vocabulary []string) bool {
	lowered := make([]string, len(row))
	for i, cell := range row {
		lowered[i] = strings.ToLower(cell)
	}
	text := strings.Join(lowered, " ")
	for _, token := range vocabulary {
		if strings.Contains(text, token) {
			return true
		}
	}
	return false
}
