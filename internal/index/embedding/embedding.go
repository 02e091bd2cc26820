package embedding

import "context"

// Embedder turns chunk text into vectors. BatchEmbedding returns one vector
// per input, in input order.
type Embedder interface {
	GetEmbedding(ctx context.Context, text string) ([]float32, error)
	BatchEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}
