package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/akolanti/GoChunker/internal/config"
	"github.com/akolanti/GoChunker/internal/domain/chunkModel"
	"github.com/akolanti/GoChunker/internal/engine"
	"github.com/akolanti/GoChunker/internal/metrics"
	"github.com/akolanti/GoChunker/pkg/logger_i"
	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var (
	reInlineImage = regexp.MustCompile(`(?s)!\[[^\]]*\]\(data:image/([^;]+);base64,([^\)]+)\)`)

	ErrNoRecognizer = errors.New("ocr: recognizer required")

	logger = logger_i.NewLogger("ImageOCR")
)

// Result is the recognised text of one embedded image. ImageIndex is the
// 1-based position of the image among all inline images of the document.
type Result struct {
	ImageIndex int    `json:"image_index"`
	Text       string `json:"extracted_text"`
	Format     string `json:"image_format"`
}

// Service runs recognition on an ants pool, so at most maxConcurrent
// images are decoded and recognised at once.
type Service struct {
	recognizer engine.Recognizer
	pool       *ants.Pool
}

func NewService(recognizer engine.Recognizer, maxConcurrent int) (*Service, error) {
	if recognizer == nil {
		return nil, ErrNoRecognizer
	}
	if maxConcurrent < 1 {
		maxConcurrent = config.DefaultMaxConcurrentOCR
	}
	pool, err := ants.NewPool(maxConcurrent)
	if err != nil {
		return nil, fmt.Errorf("create ocr pool: %w", err)
	}
	return &Service{recognizer: recognizer, pool: pool}, nil
}

func (s *Service) Close() {
	s.pool.Release()
}

type inlineImage struct {
	index  int
	format string
	data   string
}

func findImages(markdown string) []inlineImage {
	matches := reInlineImage.FindAllStringSubmatch(markdown, -1)
	out := make([]inlineImage, 0, len(matches))
	for i, m := range matches {
		out = append(out, inlineImage{index: i + 1, format: m[1], data: m[2]})
	}
	return out
}

// ExtractEmbeddedImageText recognises every inline base64 image of
// markdown. Images that fail to decode or recognise are logged and left
// out; results come back in image order.
func (s *Service) ExtractEmbeddedImageText(ctx context.Context, markdown string, languages []string) []Result {
	images := findImages(markdown)
	if len(images) == 0 {
		logger.Debug("no embedded images found")
		return nil
	}
	log := logger.WithTrace(ctx).With("images", len(images))
	log.Info("running OCR on embedded images")

	results := make([]*Result, len(images))
	var wg sync.WaitGroup
	for i, img := range images {
		wg.Add(1)
		err := s.pool.Submit(func() {
			defer wg.Done()
			start := time.Now()
			res, err := s.recognize(ctx, img, languages)
			metrics.CaptureExecutionMetrics("ocr_image", time.Since(start))
			if err != nil {
				log.Warn("OCR failed for image", "image", img.index, "error", err)
				return
			}
			results[i] = res
		})
		if err != nil {
			wg.Done()
			log.Warn("could not schedule OCR", "image", img.index, "error", err)
		}
	}
	wg.Wait()

	out := make([]Result, 0, len(results))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	log.Info("OCR completed", "with_text", len(out))
	return out
}

func (s *Service) recognize(ctx context.Context, img inlineImage, languages []string) (res *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("recognizer panicked: %v", r)
		}
	}()
	data, err := base64.StdEncoding.DecodeString(strings.Join(strings.Fields(img.data), ""))
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}
	decoded, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode %s image: %w", img.format, err)
	}
	lines, err := s.recognizer.Recognize(ctx, decoded, languages)
	if err != nil {
		return nil, err
	}
	text := strings.TrimSpace(strings.Join(lines, "\n"))
	if text == "" {
		return nil, nil
	}
	return &Result{ImageIndex: img.index, Text: text, Format: img.format}, nil
}

// ToChunks turns OCR results into image_ocr chunks tagged with the image
// position. Index is left for the writer to assign.
func ToChunks(results []Result, header chunkModel.Header, meta map[string]any) []chunkModel.Chunk {
	chunks := make([]chunkModel.Chunk, 0, len(results))
	for _, r := range results {
		m := make(map[string]any, len(meta)+4)
		for k, v := range meta {
			m[k] = v
		}
		m["document_id"] = header.ID
		m["document_name"] = header.Name
		m["image_index"] = r.ImageIndex
		m["image_format"] = r.Format
		chunks = append(chunks, chunkModel.Chunk{
			ID:           uuid.NewString(),
			Content:      r.Text,
			ContentType:  chunkModel.ContentImageOCR,
			PageNumber:   1,
			SectionTitle: fmt.Sprintf("Image %d", r.ImageIndex),
			Metadata:     m,
		})
	}
	return chunks
}
