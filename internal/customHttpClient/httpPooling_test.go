package customHttpClient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/akolanti/GoChunker/internal/domain/jobModel"
)

func TestDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/files/report.pdf":
			_, _ = w.Write([]byte("%PDF-1.4 body"))
		case "/":
			_, _ = w.Write([]byte("index"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	dir := t.TempDir()
	d := New(Options{VerifyTLS: true, Timeout: 5 * time.Second})

	path, err := d.Download(context.Background(), srv.URL+"/files/report.pdf", dir)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if filepath.Base(path) != "report.pdf" {
		t.Errorf("expected the url file name, got %s", path)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "%PDF-1.4 body" {
		t.Errorf("unexpected body %q", data)
	}

	root, err := d.Download(context.Background(), srv.URL+"/", dir)
	if err != nil || !strings.HasPrefix(filepath.Base(root), "download-") {
		t.Errorf("expected a generated name, got %s, %v", root, err)
	}

	if _, err := d.Download(context.Background(), srv.URL+"/missing.pdf", dir); !errors.Is(err, jobModel.ErrSourceUnavailable) {
		t.Errorf("expected ErrSourceUnavailable for 404, got %v", err)
	}

	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".download-") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestDownload_TLS(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("secure"))
	}))
	defer srv.Close()

	if _, err := New(Options{VerifyTLS: true}).Download(context.Background(), srv.URL+"/a.txt", t.TempDir()); !errors.Is(err, jobModel.ErrSourceUnavailable) {
		t.Errorf("self signed certificate must fail with verification on, got %v", err)
	}
	if _, err := New(Options{VerifyTLS: false}).Download(context.Background(), srv.URL+"/a.txt", t.TempDir()); err != nil {
		t.Errorf("verification off should accept the certificate, got %v", err)
	}
}

func TestIsRemote(t *testing.T) {
	tests := map[string]bool{
		"https://example.com/a.pdf": true,
		"http://example.com":        true,
		"/tmp/a.pdf":                false,
		"file:///tmp/a.pdf":         false,
		"report.docx":               false,
	}
	for in, want := range tests {
		if got := IsRemote(in); got != want {
			t.Errorf("IsRemote(%q) = %v, want %v", in, got, want)
		}
	}
}
