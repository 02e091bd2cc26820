package customHttpClient

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/akolanti/GoChunker/internal/config"
	"github.com/akolanti/GoChunker/internal/domain/jobModel"
	"github.com/akolanti/GoChunker/internal/metrics"
	"github.com/akolanti/GoChunker/pkg/logger_i"
	"github.com/google/uuid"
)

var logger = logger_i.NewLogger("Downloader")

type Options struct {
	VerifyTLS bool
	Timeout   time.Duration
}

// Downloader fetches remote sources into a local directory. TLS
// verification is set per Downloader and never touches the process-wide
// default transport.
type Downloader struct {
	client *http.Client
}

func New(opts Options) *Downloader {
	if opts.Timeout <= 0 {
		opts.Timeout = config.DefaultDownloadTimeout
	}
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        config.MaxIdleConns,
		MaxIdleConnsPerHost: config.MaxIdleConnsPerHost,
		IdleConnTimeout:     config.IdleConnTimeout,
	}
	if !opts.VerifyTLS {
		logger.Warn("TLS verification disabled for downloads")
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &Downloader{client: &http.Client{Transport: transport, Timeout: opts.Timeout}}
}

// IsRemote reports whether source is an http(s) URL.
func IsRemote(source string) bool {
	u, err := url.Parse(source)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Download saves rawURL into dir under the URL's file name and returns the
// local path. The body goes to a temp file first, so a failed transfer never
// leaves a partial file under the final name.
func (d *Downloader) Download(ctx context.Context, rawURL string, dir string) (string, error) {
	log := logger.WithTrace(ctx).With("url", rawURL)
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("download", time.Since(start)) }()

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: parse url: %v", jobModel.ErrSourceUnavailable, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", jobModel.ErrSourceUnavailable, err)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		log.Warn("download failed", "error", err)
		return "", fmt.Errorf("%w: %v", jobModel.ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: %s returned %s", jobModel.ErrSourceUnavailable, rawURL, resp.Status)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: %v", jobModel.ErrSourceUnavailable, err)
	}
	target := filepath.Join(dir, fileName(u))
	tmp, err := os.CreateTemp(dir, ".download-*")
	if err != nil {
		return "", fmt.Errorf("%w: %v", jobModel.ErrSourceUnavailable, err)
	}
	n, copyErr := io.Copy(tmp, resp.Body)
	closeErr := tmp.Close()
	if copyErr != nil || closeErr != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("%w: write body: %v", jobModel.ErrSourceUnavailable, firstErr(copyErr, closeErr))
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("%w: %v", jobModel.ErrSourceUnavailable, err)
	}
	log.Info("downloaded source", "path", target, "bytes", n)
	return target, nil
}

// fileName is the last path segment of u, or a random name when the URL
// has none.
func fileName(u *url.URL) string {
	name := path.Base(u.Path)
	if name == "." || name == "/" || name == "" || strings.ContainsAny(name, `\:`) {
		return "download-" + uuid.NewString()
	}
	return name
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
