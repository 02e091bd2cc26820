package vectorDB

import (
	"context"

	"github.com/akolanti/GoChunker/internal/domain/chunkModel"
)

// ChunkStore persists embedded chunks of one document.
type ChunkStore interface {
	CreateCollection(ctx context.Context, collectionName string, dimension uint64) error
	UpsertBatch(ctx context.Context, collectionName string, doc chunkModel.Header, chunks []chunkModel.Chunk, vectors [][]float32) error
}
