package tables

import (
	"strings"
	"unicode/utf8"
)

// ParseMarkdownTable turns pipe rows into a cell grid. Separator rows and
// the empty cells produced by leading and trailing pipes are dropped.
func ParseMarkdownTable(md string) [][]string {
	var grid [][]string
	for _, line := range strings.Split(strings.TrimSpace(md), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || isSeparatorRow(line) {
			continue
		}
		parts := strings.Split(line, "|")
		cells := make([]string, len(parts))
		for i, p := range parts {
			cells[i] = strings.TrimSpace(p)
		}
		if len(cells) > 0 && cells[0] == "" {
			cells = cells[1:]
		}
		if len(cells) > 0 && cells[len(cells)-1] == "" {
			cells = cells[:len(cells)-1]
		}
		if len(cells) > 0 {
			grid = append(grid, cells)
		}
	}
	return grid
}

func isSeparatorRow(line string) bool {
	for _, r := range line {
		if !strings.ContainsRune("-|: ", r) {
			return false
		}
	}
	return true
}

// ToMarkdown renders a grid as a padded pipe table with a separator after the
// first row.
func ToMarkdown(grid [][]string) string {
	if len(grid) == 0 {
		return ""
	}
	cols := 0
	for _, row := range grid {
		if len(row) > cols {
			cols = len(row)
		}
	}
	widths := make([]int, cols)
	for c := range widths {
		widths[c] = 3
		for _, row := range grid {
			if c < len(row) {
				if n := utf8.RuneCountInString(row[c]); n > widths[c] {
					widths[c] = n
				}
			}
		}
	}

	var b strings.Builder
	for r, row := range grid {
		cells := make([]string, cols)
		for c := 0; c < cols; c++ {
			cell := ""
			if c < len(row) {
				cell = row[c]
			}
			cells[c] = cell + strings.Repeat(" ", widths[c]-utf8.RuneCountInString(cell))
		}
		if r > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("| " + strings.Join(cells, " | ") + " |")
		if r == 0 {
			seps := make([]string, cols)
			for c, w := range widths {
				seps[c] = strings.Repeat("-", w+2)
			}
			b.WriteString("\n|" + strings.Join(seps, "|") + "|")
		}
	}
	return b.String()
}

// RemoveConsecutiveDuplicates collapses repeated adjacent cells, which merged
// cells tend to produce. Empty cells are always kept.
func RemoveConsecutiveDuplicates(grid [][]string) [][]string {
	out := make([][]string, 0, len(grid))
	for _, row := range grid {
		var cleaned []string
		prev, havePrev := "", false
		for _, cell := range row {
			cell = strings.TrimSpace(cell)
			if !havePrev || cell != prev || cell == "" {
				cleaned = append(cleaned, cell)
				prev, havePrev = cell, true
			}
		}
		if len(cleaned) > 0 {
			out = append(out, cleaned)
		}
	}
	return out
}

func ToText(grid [][]string) string {
	lines := make([]string, len(grid))
	for i, row := range grid {
		lines[i] = strings.Join(row, " | ")
	}
	return strings.Join(lines, "\n")
}
