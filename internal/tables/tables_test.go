package tables

import (
	"errors"
	"strings"
	"testing"
)

func deref(s *string) string {
	if s == nil {
		return "<nil>"
	}
	return *s
}

func TestExtractTitleAndHeader_HeadingSubtitleFiscalRows(t *testing.T) {
	raw := "## Revenue by Segment\n(in millions)\n|A|B|\n|-|-|\n|2024|2025|\n|10|20|"
	grid := ParseMarkdownTable(raw[strings.Index(raw, "|"):])

	got, err := ExtractTitleAndHeader(0, grid, raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deref(got.Title) != "Revenue by Segment" {
		t.Errorf("title = %q", deref(got.Title))
	}
	if deref(got.Subtitle) != "(in millions)" {
		t.Errorf("subtitle = %q", deref(got.Subtitle))
	}
	if got.HeaderRows != 2 {
		t.Errorf("header rows = %d, want 2", got.HeaderRows)
	}
}

func TestExtractAtLine(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		line  int
		title string
	}{
		{"no leading pipe", "## Costs\n\nname | value\n--- | ---\nx | 1", 2, "Costs"},
		{"quoted table", "> ## Quoted Results\n>\n> | a | b |\n> |---|---|\n> | 1 | 2 |", 2, "Quoted Results"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractAtLine(tt.line, [][]string{{"a", "b"}, {"1", "2"}}, tt.raw)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if deref(got.Title) != tt.title {
				t.Errorf("title = %q, want %q", deref(got.Title), tt.title)
			}
		})
	}

	if _, err := ExtractAtLine(40, [][]string{{"a"}}, "## T\n| a |"); !errors.Is(err, ErrTableMissing) {
		t.Errorf("expected ErrTableMissing, got %v", err)
	}
}

func TestExtractTitleAndHeader_PlainLineTitle(t *testing.T) {
	title := "Quarterly operating summary ok" // 30 characters
	raw := "intro\n\n" + title + "\n|Name|Value|\n|---|---|\n|alpha|1|"
	grid := [][]string{{"Name", "Value"}, {"alpha", "1"}}

	got, err := ExtractTitleAndHeader(0, grid, raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deref(got.Title) != title {
		t.Errorf("title = %q, want %q", deref(got.Title), title)
	}
	if got.Subtitle != nil {
		t.Errorf("subtitle should be nil, got %q", *got.Subtitle)
	}
	if got.HeaderRows != 1 {
		t.Errorf("header rows = %d, want 1", got.HeaderRows)
	}
}

func TestExtractTitleAndHeader_ThreeHeaderRowsAndCap(t *testing.T) {
	raw := "## Results\n|Metric|FY|\n|---|---|\n|Q1 2024|Q2 2024|\n|March|June|\n|December 2025|x|"
	grid := ParseMarkdownTable(raw[strings.Index(raw, "|"):])

	got, err := ExtractTitleAndHeader(0, grid, raw)
	if err != nil {
		t.Fatal(err)
	}
	if got.HeaderRows != 3 {
		t.Errorf("header rows = %d, want 3 (never more)", got.HeaderRows)
	}
}

func TestExtractTitleAndHeader_SecondTableAndNoTitle(t *testing.T) {
	raw := strings.Join([]string{
		"## First",
		"|a|b|",
		"|1|2|",
		"",
		"* bullet that is long enough to be a title",
		"short",
		"|c|d|",
		"|3|4|",
	}, "\n")

	if starts := TableStarts(raw); len(starts) != 2 || starts[1] != 6 {
		t.Fatalf("table starts = %v", starts)
	}
	got, err := ExtractTitleAndHeader(1, [][]string{{"c", "d"}, {"3", "4"}}, raw)
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != nil {
		t.Errorf("expected no title, got %q", *got.Title)
	}
}

func TestExtractTitleAndHeader_CustomVocabulary(t *testing.T) {
	raw := "## Résultats\n|Poste|Valeur|\n|---|---|\n|exercice clos|trimestre|\n|a|b|"
	grid := ParseMarkdownTable(raw[strings.Index(raw, "|"):])

	got, _ := ExtractTitleAndHeader(0, grid, raw)
	if got.HeaderRows != 1 {
		t.Errorf("default vocabulary should not match, got %d", got.HeaderRows)
	}
	got, _ = ExtractTitleAndHeader(0, grid, raw, WithFiscalTokens([]string{"Exercice"}))
	if got.HeaderRows != 2 {
		t.Errorf("custom vocabulary should match, got %d", got.HeaderRows)
	}
}

func TestExtractTitleAndHeader_Errors(t *testing.T) {
	got, err := ExtractTitleAndHeader(3, [][]string{{"a"}}, "|a|")
	if !errors.Is(err, ErrTableMissing) {
		t.Errorf("expected ErrTableMissing, got %v", err)
	}
	if got.HeaderRows != 1 || got.Title != nil {
		t.Errorf("error result should carry defaults, got %+v", got)
	}
	if _, err := ExtractTitleAndHeader(0, nil, "|a|"); !errors.Is(err, ErrNoSource) {
		t.Errorf("expected ErrNoSource, got %v", err)
	}
}

func TestParseMarkdownTable(t *testing.T) {
	grid := ParseMarkdownTable("| A | B |\n|:--|--:|\n| 1 |  |\n")
	if len(grid) != 2 {
		t.Fatalf("rows = %d, want 2", len(grid))
	}
	if grid[0][0] != "A" || grid[0][1] != "B" {
		t.Errorf("header = %v", grid[0])
	}
	// only one trailing empty cell is dropped
	if len(grid[1]) != 2 || grid[1][0] != "1" || grid[1][1] != "" {
		t.Errorf("row = %q", grid[1])
	}
}

func TestFallbackTitle(t *testing.T) {
	tests := []struct {
		name string
		src  TitleSource
		want string
	}{
		{"caption prefixed", TitleSource{Caption: "Sales by region"}, "Table: Sales by region"},
		{"caption already table", TitleSource{Caption: "Table 3: Sales"}, "Table 3: Sales"},
		{"data title", TitleSource{DataTitle: "Balance sheet"}, "Balance sheet"},
		{"page heading", TitleSource{PageTexts: []PageText{{Label: "paragraph", Text: "noise"}, {Label: "section_header", Text: "Cash flows"}}}, "Cash flows"},
		{"first row single cell", TitleSource{Grid: [][]string{{"Consolidated statement"}, {"a", "b"}}}, "Consolidated statement"},
		{"numeric first row skipped", TitleSource{Page: 2, TableIndex: 0, Grid: [][]string{{"1,234,567.00"}}}, "Page 2 - Table 1"},
		{"synthetic", TitleSource{Page: 0, TableIndex: 4}, "Page 1 - Table 5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FallbackTitle(tt.src); got != tt.want {
				t.Errorf("FallbackTitle() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGridRenderers(t *testing.T) {
	grid := [][]string{{"A", "Total"}, {"x", "1"}}
	md := ToMarkdown(grid)
	if !strings.HasPrefix(md, "| A   | Total |\n|-----|-------|") {
		t.Errorf("unexpected markdown:\n%s", md)
	}
	if back := ParseMarkdownTable(md); len(back) != 2 || back[1][1] != "1" {
		t.Errorf("markdown did not parse back: %v", back)
	}
	if txt := ToText(grid); txt != "A | Total\nx | 1" {
		t.Errorf("ToText = %q", txt)
	}
	dedup := RemoveConsecutiveDuplicates([][]string{{"2024", "2024", "", "", "x"}})
	if strings.Join(dedup[0], ",") != "2024,,,x" {
		t.Errorf("dedup = %v", dedup[0])
	}
}
