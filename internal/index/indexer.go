package index

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/akolanti/GoChunker/internal/config"
	"github.com/akolanti/GoChunker/internal/domain/chunkModel"
	"github.com/akolanti/GoChunker/internal/index/embedding"
	"github.com/akolanti/GoChunker/internal/index/vectorDB"
	"github.com/akolanti/GoChunker/internal/index/vectorDB/qdrantDB"
	"github.com/akolanti/GoChunker/internal/metrics"
	"github.com/akolanti/GoChunker/internal/writer"
	"github.com/akolanti/GoChunker/pkg/logger_i"
)

var logger = logger_i.NewLogger("Indexer")

// Indexer embeds the chunks of a finished output file and stores them in
// the vector index. It only reads the file, so indexing never changes the
// document on disk.
type Indexer struct {
	embedder   embedding.Embedder
	store      vectorDB.ChunkStore
	collection string
	dimension  uint64
	batchSize  int
}

func NewIndexer(embedder embedding.Embedder, store vectorDB.ChunkStore, collection string, dimension int) *Indexer {
	if collection == "" {
		collection = config.EmbeddingDBName
	}
	if dimension <= 0 {
		dimension = int(config.EmbeddingOutputDimensionality)
	}
	return &Indexer{
		embedder:   embedder,
		store:      store,
		collection: collection,
		dimension:  uint64(dimension),
		batchSize:  config.IndexBatchSize,
	}
}

// IndexDocument indexes the document at path and returns how many chunks
// were stored.
func (ix *Indexer) IndexDocument(ctx context.Context, path string) (int, error) {
	log := logger.WithTrace(ctx).With("path", path)

	doc, err := writer.ReadDocument(path)
	if err != nil {
		return 0, err
	}
	if err := ix.store.CreateCollection(ctx, ix.collection, ix.dimension); err != nil {
		return 0, fmt.Errorf("create collection %s: %w", ix.collection, err)
	}

	chunks := make([]chunkModel.Chunk, 0, len(doc.Chunks))
	for _, c := range doc.Chunks {
		if strings.TrimSpace(qdrantDB.EmbeddingText(c)) != "" {
			chunks = append(chunks, c)
		}
	}
	header := chunkModel.Header{Name: doc.Name, ID: doc.ID}

	stored := 0
	for i := 0; i < len(chunks); i += ix.batchSize {
		end := min(i+ix.batchSize, len(chunks))
		batch := chunks[i:end]

		texts := make([]string, len(batch))
		for j, c := range batch {
			texts[j] = qdrantDB.EmbeddingText(c)
		}

		log.Debug("Starting embedding call", "batch", len(batch))
		start := time.Now()
		vectors, err := ix.embedder.BatchEmbedding(ctx, texts)
		metrics.CaptureExecutionMetrics("embedding", time.Since(start))
		if err != nil {
			return stored, fmt.Errorf("embedding batch failed: %w", err)
		}

		start = time.Now()
		err = ix.store.UpsertBatch(ctx, ix.collection, header, batch, vectors)
		metrics.CaptureExecutionMetrics("vector_upsert", time.Since(start))
		if err != nil {
			return stored, err
		}
		stored += len(batch)
	}
	log.Info("indexed document", "chunks", stored, "collection", ix.collection)
	return stored, nil
}
