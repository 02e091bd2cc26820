package writer

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/akolanti/GoChunker/internal/domain/chunkModel"
	"github.com/akolanti/GoChunker/internal/domain/jobModel"
	"github.com/akolanti/GoChunker/internal/metrics"
	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"
)

var ErrMalformedDocument = errors.New("malformed chunk document")

var prettyOptions = &pretty.Options{Width: 80, Prefix: "", Indent: "  ", SortKeys: false}

// Overwrite writes a complete Document in one go, replacing whatever is at
// path.
func Overwrite(path string, header chunkModel.Header, chunks []chunkModel.Chunk) error {
	h, err := Open(path, header)
	if err != nil {
		return err
	}
	for _, c := range chunks {
		if _, err := h.Append(c); err != nil {
			h.cancel()
			return err
		}
	}
	return h.Close()
}

// AppendChunks adds chunks to an already finalized Document. New chunks are
// numbered after the existing ones. The read-modify-write holds the path
// lock, so it never interleaves with a streaming Handle on the same file.
// It returns the number of chunks appended.
func AppendChunks(path string, chunks []chunkModel.Chunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}
	release := locks.acquire(path)
	defer release()

	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("%w: read %s: %v", jobModel.ErrWriteFailure, path, err)
	}
	if !gjson.ValidBytes(data) {
		return 0, fmt.Errorf("%w: %s", ErrMalformedDocument, path)
	}
	existing := gjson.GetBytes(data, "chunks")
	if !existing.IsArray() {
		return 0, fmt.Errorf("%w: %s has no chunks array", ErrMalformedDocument, path)
	}
	next := int(gjson.GetBytes(data, "chunks.#").Int())

	for i, c := range chunks {
		c.Index = next + i
		raw, err := chunkModel.Marshal(c)
		if err != nil {
			return 0, fmt.Errorf("encode chunk %s: %w", c.ID, err)
		}
		data, err = sjson.SetRawBytes(data, "chunks.-1", raw)
		if err != nil {
			return 0, fmt.Errorf("%w: append chunk: %v", jobModel.ErrWriteFailure, err)
		}
	}

	if err := replaceFile(path, pretty.PrettyOptions(data, prettyOptions)); err != nil {
		return 0, err
	}
	for _, c := range chunks {
		metrics.IncrementChunksWritten(string(c.ContentType))
	}
	logger.Debug("chunks appended", "path", path, "appended", len(chunks), "total", next+len(chunks))
	return len(chunks), nil
}

// ReadDocument loads a finalized Document.
func ReadDocument(path string) (chunkModel.Document, error) {
	var doc chunkModel.Document
	data, err := os.ReadFile(path)
	if err != nil {
		return doc, err
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	return doc, nil
}

func replaceFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %v", jobModel.ErrWriteFailure, err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("%w: %v", jobModel.ErrWriteFailure, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("%w: sync: %v", jobModel.ErrWriteFailure, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("%w: %v", jobModel.ErrWriteFailure, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("%w: rename: %v", jobModel.ErrWriteFailure, err)
	}
	return nil
}
