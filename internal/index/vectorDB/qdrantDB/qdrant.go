package qdrantDB

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/akolanti/GoChunker/internal/config"
	"github.com/akolanti/GoChunker/internal/domain/chunkModel"
	"github.com/akolanti/GoChunker/internal/tables"
	"github.com/akolanti/GoChunker/pkg/logger_i"
	"github.com/qdrant/go-client/qdrant"
)

var logger = logger_i.NewLogger("Qdrant")

type ClientHolder struct {
	QObj *qdrant.Client
}

// NewClient connects to qdrant over gRPC. QDRANT_HOST and QDRANT_PORT
// override the configured address.
func NewClient() (*ClientHolder, error) {
	host := os.Getenv("QDRANT_HOST")
	port, er := strconv.Atoi(os.Getenv("QDRANT_PORT"))
	if host == "" || er != nil {
		host = config.QdrantHost
		port = config.QdrantGrpcPort
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:     host,
		Port:     port,
		UseTLS:   config.QdrantUseTLS,
		PoolSize: uint(config.QdrantPoolSize),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant connect %s:%d: %w", host, port, err)
	}
	logger.Info("Qdrant client created", "host", host, "port", port)
	return &ClientHolder{QObj: client}, nil
}

func (db *ClientHolder) Close() error {
	logger.Info("Shutting down Qdrant")
	return db.QObj.Close()
}

func (db *ClientHolder) CreateCollection(ctx context.Context, collectionName string, dimension uint64) error {
	if collectionName == "" {
		return errors.New("empty collection name")
	}
	ctx, cancel := context.WithTimeout(ctx, config.QdrantConnectionTimeout)
	defer cancel()

	exists, err := db.QObj.CollectionExists(ctx, collectionName)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return db.QObj.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: collectionName,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     dimension,
			Distance: qdrant.Distance_Cosine,
		}),
	})
}

func (db *ClientHolder) UpsertBatch(ctx context.Context, collectionName string, doc chunkModel.Header, chunks []chunkModel.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("mismatch: got %d chunks but %d vectors", len(chunks), len(vectors))
	}
	now := time.Now().Unix()
	points := make([]*qdrant.PointStruct, len(chunks))
	for i, chunk := range chunks {
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(chunk.ID),
			Vectors: qdrant.NewVectors(vectors[i]...),
			Payload: qdrant.NewValueMap(Payload(doc, chunk, now)),
		}
	}

	_, err := db.QObj.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collectionName,
		Points:         points,
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("qdrant upsert failed: %w", err)
	}
	return nil
}

// Payload is the point payload stored for a chunk. Only scalar values are
// kept so the map always converts to qdrant values.
func Payload(doc chunkModel.Header, chunk chunkModel.Chunk, ingestedAt int64) map[string]any {
	p := map[string]any{
		"content":       EmbeddingText(chunk),
		"document_id":   doc.ID,
		"document_name": doc.Name,
		"chunk_id":      chunk.ID,
		"chunk_index":   chunk.Index,
		"page_number":   chunk.PageNumber,
		"section_title": chunk.SectionTitle,
		"content_type":  string(chunk.ContentType),
		"ingested_at":   ingestedAt,
	}
	for k, v := range chunk.Metadata {
		if _, taken := p[k]; taken {
			continue
		}
		switch v.(type) {
		case string, bool, int, int64, float64:
			p[k] = v
		}
	}
	return p
}

// EmbeddingText is the text embedded for a chunk: the content, or for a
// table its title followed by the markdown grid.
func EmbeddingText(chunk chunkModel.Chunk) string {
	if chunk.Table == nil {
		return chunk.Content
	}
	return chunk.Table.Title + "\n" + tables.ToMarkdown(chunk.Table.Body)
}
