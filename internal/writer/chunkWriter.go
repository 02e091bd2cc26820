package writer

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/akolanti/GoChunker/internal/domain/chunkModel"
	"github.com/akolanti/GoChunker/internal/domain/jobModel"
	"github.com/akolanti/GoChunker/internal/metrics"
	"github.com/akolanti/GoChunker/pkg/logger_i"
)

const chunkIndent = "    "

var (
	ErrClosed = errors.New("writer handle closed")
	logger    = logger_i.NewLogger("ChunkWriter")
)

// Handle streams one Document to a temp file next to its destination and
// renames it into place on Close. It holds the path lock until then.
type Handle struct {
	mu      sync.Mutex
	path    string
	header  chunkModel.Header
	tmp     *os.File
	buf     *bufio.Writer
	count   int
	failed  error
	closed  bool
	release func()
}

// Open blocks while another handle or read-modify-write holds path.
func Open(path string, header chunkModel.Header) (*Handle, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create output dir: %v", jobModel.ErrWriteFailure, err)
	}

	release := locks.acquire(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		release()
		return nil, fmt.Errorf("%w: create temp file: %v", jobModel.ErrWriteFailure, err)
	}

	h := &Handle{
		path:    path,
		header:  header,
		tmp:     tmp,
		buf:     bufio.NewWriter(tmp),
		release: release,
	}
	if err := h.writeHeader(); err != nil {
		h.discard()
		return nil, err
	}
	return h, nil
}

func (h *Handle) writeHeader() error {
	name, err := chunkModel.Marshal(h.header.Name)
	if err != nil {
		return fmt.Errorf("%w: encode header: %v", jobModel.ErrWriteFailure, err)
	}
	id, err := chunkModel.Marshal(h.header.ID)
	if err != nil {
		return fmt.Errorf("%w: encode header: %v", jobModel.ErrWriteFailure, err)
	}
	return h.write("{\n  \"name\": " + string(name) + ",\n  \"id\": " + string(id) + ",\n  \"chunks\": [")
}

func (h *Handle) write(s string) error {
	if _, err := h.buf.WriteString(s); err != nil {
		h.failed = err
		return fmt.Errorf("%w: %v", jobModel.ErrWriteFailure, err)
	}
	return nil
}

// Append assigns the next Index to chunk, serializes it and flushes it to
// the temp file. It returns the committed chunk.
func (h *Handle) Append(chunk chunkModel.Chunk) (chunkModel.Chunk, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return chunk, ErrClosed
	}
	if h.failed != nil {
		return chunk, fmt.Errorf("%w: earlier write failed: %v", jobModel.ErrWriteFailure, h.failed)
	}

	chunk.Index = h.count
	data, err := chunkModel.MarshalIndent(chunk, chunkIndent, "  ")
	if err != nil {
		// encoding errors leave the stream untouched
		return chunk, fmt.Errorf("encode chunk %s: %w", chunk.ID, err)
	}

	sep := "\n"
	if h.count > 0 {
		sep = ",\n"
	}
	if err := h.write(sep + chunkIndent + string(data)); err != nil {
		return chunk, err
	}
	if err := h.buf.Flush(); err != nil {
		h.failed = err
		return chunk, fmt.Errorf("%w: flush: %v", jobModel.ErrWriteFailure, err)
	}
	h.count++
	metrics.IncrementChunksWritten(string(chunk.ContentType))
	return chunk, nil
}

func (h *Handle) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

func (h *Handle) Path() string {
	return h.path
}

// Close terminates the JSON document and atomically replaces the
// destination. On failure the temp file is removed and the previous
// destination file, if any, is left untouched.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrClosed
	}
	h.closed = true
	if h.failed != nil {
		h.discard()
		return fmt.Errorf("%w: %v", jobModel.ErrWriteFailure, h.failed)
	}
	return h.finish()
}

// Abandon is the failure-path Close: whatever was appended so far is kept
// and the file is still closed into valid JSON. When the stream itself is
// broken, an existing destination is left as it was and an empty document
// is written only if there is none.
func (h *Handle) Abandon() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	if h.failed == nil {
		if err := h.finish(); err == nil {
			return nil
		}
	} else {
		h.discard()
	}

	if _, err := os.Stat(h.path); err == nil {
		logger.Warn("could not finish abandoned stream, previous file kept", "path", h.path)
		return nil
	}
	logger.Warn("could not finish abandoned stream, writing empty document", "path", h.path)
	// the lock was released by discard/finish, Overwrite takes it again
	return Overwrite(h.path, h.header, nil)
}

func (h *Handle) finish() error {
	defer h.release()

	footer := "\n  ]\n}\n"
	if h.count == 0 {
		footer = "]\n}\n"
	}
	if err := h.write(footer); err != nil {
		h.removeTemp()
		return err
	}
	if err := h.buf.Flush(); err != nil {
		h.removeTemp()
		return fmt.Errorf("%w: flush: %v", jobModel.ErrWriteFailure, err)
	}
	if err := h.tmp.Sync(); err != nil {
		h.removeTemp()
		return fmt.Errorf("%w: sync: %v", jobModel.ErrWriteFailure, err)
	}
	if err := h.tmp.Close(); err != nil {
		_ = os.Remove(h.tmp.Name())
		return fmt.Errorf("%w: close temp: %v", jobModel.ErrWriteFailure, err)
	}
	if err := os.Rename(h.tmp.Name(), h.path); err != nil {
		_ = os.Remove(h.tmp.Name())
		return fmt.Errorf("%w: rename: %v", jobModel.ErrWriteFailure, err)
	}
	logger.Debug("document committed", "path", h.path, "chunks", h.count)
	return nil
}

// cancel drops the temp file without touching the destination.
func (h *Handle) cancel() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	h.discard()
}

func (h *Handle) discard() {
	h.removeTemp()
	h.release()
}

func (h *Handle) removeTemp() {
	_ = h.tmp.Close()
	_ = os.Remove(h.tmp.Name())
}
