package textclean

import "testing"

func TestClean(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"image dropped", "before ![alt](data:image/png;base64,AAAA) after", "before after"},
		{"link keeps label", "see [the docs](https://example.com) now", "see the docs now"},
		{"html stripped", "<p>Hello<br/>world</p>", "Hello world"},
		{"markdown chars", "## **Bold** _it_ `code` > quote", "Bold it code quote"},
		{"entities", "Profit &amp; Loss", "Profit & Loss"},
		{"whitespace", "  a \n\n\t b  ", "a b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Clean(tt.in); got != tt.want {
				t.Errorf("Clean(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("héllo", 2); got != "hé" {
		t.Errorf("got %q", got)
	}
	if got := Truncate("abc", 10); got != "abc" {
		t.Errorf("got %q", got)
	}
}

func TestIsUpperAndNumeric(t *testing.T) {
	if !IsUpper("ANNUAL REPORT 2024") {
		t.Error("expected upper")
	}
	if IsUpper("1234") || IsUpper("Annual") {
		t.Error("expected not upper")
	}
	if !IsNumeric("1,234.50") {
		t.Error("expected numeric")
	}
	if IsNumeric("Revenue 2024") || IsNumeric(" . ") {
		t.Error("expected not numeric")
	}
}
