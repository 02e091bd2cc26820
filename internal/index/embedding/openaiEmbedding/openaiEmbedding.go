package openaiEmbedding

import (
	"context"
	"fmt"
	"sort"

	"github.com/akolanti/GoChunker/internal/config"
	"github.com/akolanti/GoChunker/pkg/logger_i"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

var logger = logger_i.NewLogger("openai_embedding")

type Client struct {
	client    openai.Client
	model     string
	dimension int64
}

// NewClient builds an embedder for the OpenAI API or any compatible
// endpoint when baseURL is set.
func NewClient(apiKey, modelName, baseURL string) *Client {
	opts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(2)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if modelName == "" {
		modelName = config.OpenAIEmbeddingModel
	}
	logger.Info("OpenAI Embedding client created", "model", modelName)
	return &Client{
		client:    openai.NewClient(opts...),
		model:     modelName,
		dimension: int64(config.EmbeddingOutputDimensionality),
	}
}

func (c *Client) Dimension() int {
	return int(c.dimension)
}

func (c *Client) GetEmbedding(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.BatchEmbedding(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (c *Client) BatchEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	log := logger.WithTrace(ctx).With("texts", len(texts))

	res, err := c.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input:      openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model:      openai.EmbeddingModel(c.model),
		Dimensions: openai.Int(c.dimension),
	})
	if err != nil {
		log.Error("Error getting Embeddings from OpenAI", "error", err)
		return nil, fmt.Errorf("openai embedding: %w", err)
	}
	if len(res.Data) != len(texts) {
		return nil, fmt.Errorf("openai embedding: expected %d vectors, got %d", len(texts), len(res.Data))
	}

	data := res.Data
	sort.Slice(data, func(i, j int) bool { return data[i].Index < data[j].Index })
	out := make([][]float32, len(data))
	for i, d := range data {
		v := make([]float32, len(d.Embedding))
		for j, f := range d.Embedding {
			v[j] = float32(f)
		}
		out[i] = v
	}
	return out, nil
}
