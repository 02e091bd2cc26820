package engine

import (
	"net/url"
	"path/filepath"
	"sort"
	"strings"
)

// Route says how a format reaches chunking.
type Route int

const (
	RouteUnsupported Route = iota
	// RouteText is already in the intermediate markdown form.
	RouteText
	RouteCSV
	RouteJSON
	// RouteStaged needs the staged engine.
	RouteStaged
)

var formats = map[string]Route{
	".docx":     RouteStaged,
	".dotx":     RouteStaged,
	".docm":     RouteStaged,
	".dotm":     RouteStaged,
	".odt":      RouteStaged,
	".rtf":      RouteStaged,
	".pptx":     RouteStaged,
	".pdf":      RouteStaged,
	".html":     RouteStaged,
	".htm":      RouteStaged,
	".xhtml":    RouteStaged,
	".jpg":      RouteStaged,
	".jpeg":     RouteStaged,
	".png":      RouteStaged,
	".tiff":     RouteStaged,
	".bmp":      RouteStaged,
	".webp":     RouteStaged,
	".xlsx":     RouteStaged,
	".xlsm":     RouteStaged,
	".md":       RouteText,
	".markdown": RouteText,
	".txt":      RouteText,
	".csv":      RouteCSV,
	".json":     RouteJSON,
}

// Ext returns the lowercased extension of a path or URL.
func Ext(source string) string {
	if u, err := url.Parse(source); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		source = u.Path
	}
	return strings.ToLower(filepath.Ext(source))
}

func RouteFor(source string) Route {
	return formats[Ext(source)]
}

func IsSupported(source string) bool {
	return RouteFor(source) != RouteUnsupported
}

// IsMarkdown reports whether source can skip conversion entirely.
func IsMarkdown(source string) bool {
	ext := Ext(source)
	return ext == ".md" || ext == ".markdown"
}

// SupportedFormats lists every accepted extension, sorted.
func SupportedFormats() []string {
	out := make([]string, 0, len(formats))
	for ext := range formats {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}
