package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/akolanti/GoChunker/internal/domain/chunkModel"
	"github.com/akolanti/GoChunker/internal/writer"
)

type mockRecognizer struct {
	OnRecognize func(ctx context.Context, img image.Image, languages []string) ([]string, error)
}

func (m *mockRecognizer) Recognize(ctx context.Context, img image.Image, languages []string) ([]string, error) {
	return m.OnRecognize(ctx, img, languages)
}

// pngDataURI encodes a w-pixel wide image so the recognizer can tell
// images apart by width.
func pngDataURI(t *testing.T, w int) string {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, w, 2))
	img.Set(0, 0, color.White)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return fmt.Sprintf("![Image](data:image/png;base64,%s)", base64.StdEncoding.EncodeToString(buf.Bytes()))
}

func TestExtractEmbeddedImageText(t *testing.T) {
	md := "# Report\n\n" + pngDataURI(t, 1) + "\n\n![broken](data:image/png;base64,!!!notbase64)\n\n" +
		pngDataURI(t, 3) + "\n\n" + pngDataURI(t, 4)

	rec := &mockRecognizer{
		OnRecognize: func(ctx context.Context, img image.Image, languages []string) ([]string, error) {
			switch img.Bounds().Dx() {
			case 3:
				return nil, errors.New("recognition failed")
			case 4:
				return []string{"  "}, nil
			}
			return []string{"Chart of revenue", "2024"}, nil
		},
	}
	svc, err := NewService(rec, 2)
	if err != nil {
		t.Fatal(err)
	}
	defer svc.Close()

	results := svc.ExtractEmbeddedImageText(context.Background(), md, []string{"en"})
	if len(results) != 1 {
		t.Fatalf("expected only the first image to yield text, got %+v", results)
	}
	got := results[0]
	if got.ImageIndex != 1 || got.Format != "png" || got.Text != "Chart of revenue\n2024" {
		t.Errorf("unexpected result %+v", got)
	}
}

func TestExtractEmbeddedImageText_Bounded(t *testing.T) {
	md := ""
	for i := 0; i < 10; i++ {
		md += pngDataURI(t, 2) + "\n"
	}

	var active, peak int64
	rec := &mockRecognizer{
		OnRecognize: func(ctx context.Context, img image.Image, languages []string) ([]string, error) {
			n := atomic.AddInt64(&active, 1)
			for {
				p := atomic.LoadInt64(&peak)
				if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			atomic.AddInt64(&active, -1)
			return []string{"text"}, nil
		},
	}
	svc, err := NewService(rec, 3)
	if err != nil {
		t.Fatal(err)
	}
	defer svc.Close()

	results := svc.ExtractEmbeddedImageText(context.Background(), md, nil)
	if len(results) != 10 {
		t.Fatalf("expected 10 results, got %d", len(results))
	}
	for i, r := range results {
		if r.ImageIndex != i+1 {
			t.Errorf("result %d has image index %d", i, r.ImageIndex)
		}
	}
	if p := atomic.LoadInt64(&peak); p > 3 {
		t.Errorf("expected at most 3 concurrent recognitions, peaked at %d", p)
	}
}

func TestNoImages(t *testing.T) {
	svc, err := NewService(&mockRecognizer{}, 1)
	if err != nil {
		t.Fatal(err)
	}
	defer svc.Close()
	if got := svc.ExtractEmbeddedImageText(context.Background(), "plain text", nil); len(got) != 0 {
		t.Errorf("expected no results, got %v", got)
	}
	if _, err := NewService(nil, 1); !errors.Is(err, ErrNoRecognizer) {
		t.Errorf("expected ErrNoRecognizer, got %v", err)
	}
}

func TestToChunks_AppendedAfterFinalize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc_chunks.json")
	header := chunkModel.Header{Name: "doc.pdf", ID: "doc-7"}
	existing := []chunkModel.Chunk{
		{ID: "a", Content: "first chunk text", ContentType: chunkModel.ContentText},
		{ID: "b", Content: "second chunk text", ContentType: chunkModel.ContentText},
	}
	if err := writer.Overwrite(path, header, existing); err != nil {
		t.Fatal(err)
	}

	chunks := ToChunks([]Result{{ImageIndex: 2, Text: "scanned words", Format: "jpeg"}}, header, map[string]any{"tenant": "acme"})
	n, err := writer.AppendChunks(path, chunks)
	if err != nil || n != 1 {
		t.Fatalf("AppendChunks: %d, %v", n, err)
	}

	doc, err := writer.ReadDocument(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(doc.Chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(doc.Chunks))
	}
	last := doc.Chunks[2]
	if last.Index != 2 || last.ContentType != chunkModel.ContentImageOCR || last.SectionTitle != "Image 2" {
		t.Errorf("unexpected OCR chunk %+v", last)
	}
	if last.Metadata["image_index"] != float64(2) || last.Metadata["document_id"] != "doc-7" || last.Metadata["tenant"] != "acme" {
		t.Errorf("unexpected OCR metadata %v", last.Metadata)
	}
}
