package engine

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os/exec"
	"strings"

	"github.com/akolanti/GoChunker/internal/config"
)

var tesseractLanguages = map[string]string{
	"en": "eng",
	"fr": "fra",
	"de": "deu",
	"es": "spa",
	"it": "ita",
	"pt": "por",
	"nl": "nld",
	"ar": "ara",
	"zh": "chi_sim",
	"ja": "jpn",
}

// TesseractRecognizer runs the tesseract CLI, feeding the image as PNG on
// stdin and reading text from stdout.
type TesseractRecognizer struct {
	Binary string
}

func NewTesseractRecognizer(binary string) *TesseractRecognizer {
	if binary == "" {
		binary = config.DefaultTesseractPath
	}
	return &TesseractRecognizer{Binary: binary}
}

func (t *TesseractRecognizer) Recognize(ctx context.Context, img image.Image, languages []string) ([]string, error) {
	var in bytes.Buffer
	if err := png.Encode(&in, img); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}

	args := []string{"stdin", "stdout"}
	if lang := tesseractLangArg(languages); lang != "" {
		args = append(args, "-l", lang)
	}
	cmd := exec.CommandContext(ctx, t.Binary, args...)
	cmd.Stdin = &in
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("tesseract: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	var lines []string
	for _, line := range strings.Split(out.String(), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, nil
}

// tesseractLangArg maps ISO 639-1 codes to tesseract's names. Codes it
// does not know are passed through as given.
func tesseractLangArg(languages []string) string {
	var out []string
	for _, l := range languages {
		l = strings.ToLower(strings.TrimSpace(l))
		if l == "" {
			continue
		}
		if mapped, ok := tesseractLanguages[l]; ok {
			l = mapped
		}
		out = append(out, l)
	}
	return strings.Join(out, "+")
}
