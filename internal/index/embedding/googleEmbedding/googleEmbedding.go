package googleEmbedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/akolanti/GoChunker/internal/config"
	"github.com/akolanti/GoChunker/pkg/logger_i"
	"google.golang.org/genai"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const taskType = "RETRIEVAL_DOCUMENT"

var logger = logger_i.NewLogger("google_embedding")

// contentEmbedder is the slice of genai.Models the client calls.
type contentEmbedder interface {
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

type Client struct {
	models     contentEmbedder
	model      string
	dimension  int32
	retryDelay time.Duration
}

func NewClient(ctx context.Context, apiKey string, modelName string) (*Client, error) {
	c, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, fmt.Errorf("create google embedding client: %w", err)
	}
	if modelName == "" {
		modelName = config.GoogleEmbeddingModel
	}
	logger.Info("Google Embedding client created", "model", modelName)
	return newClient(c.Models, modelName), nil
}

func newClient(models contentEmbedder, modelName string) *Client {
	return &Client{
		models:     models,
		model:      modelName,
		dimension:  config.EmbeddingOutputDimensionality,
		retryDelay: 5 * time.Second,
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

// BatchEmbedding embeds texts in one call. A rate-limited call is retried
// once after retryDelay.
func (c *Client) BatchEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	log := logger.WithTrace(ctx).With("texts", len(texts))
	if len(texts) == 0 {
		return nil, nil
	}

	res, err := c.doCall(ctx, getContent(texts))
	if err != nil && doRetry(err, log) {
		log.Debug("retrying embedding call", "delay", c.retryDelay)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.retryDelay):
		}
		res, err = c.doCall(ctx, getContent(texts))
	}
	if err != nil {
		log.Error("Error getting Embeddings from Google", "error", err)
		return nil, err
	}
	if res == nil || len(res.Embeddings) != len(texts) {
		return nil, fmt.Errorf("google embedding: expected %d vectors", len(texts))
	}

	out := make([][]float32, 0, len(res.Embeddings))
	for _, e := range res.Embeddings {
		if e == nil {
			return nil, errors.New("google embedding: missing vector in response")
		}
		out = append(out, e.Values)
	}
	return out, nil
}

func (c *Client) doCall(ctx context.Context, content []*genai.Content) (*genai.EmbedContentResponse, error) {
	return c.models.EmbedContent(ctx, c.model, content, &genai.EmbedContentConfig{OutputDimensionality: &c.dimension, TaskType: taskType})
}

func getContent(texts []string) []*genai.Content {
	contents := make([]*genai.Content, 0, len(texts))
	for _, t := range texts {
		contents = append(contents, &genai.Content{
			Parts: []*genai.Part{{Text: t}},
		})
	}
	return contents
}

func doRetry(err error, log *logger_i.Logger) bool {
	if s, ok := status.FromError(err); ok && s.Code() == codes.ResourceExhausted {
		log.Warn("Rate limit hit", "error", err)
		return true
	}
	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	switch {
	case errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests,
		errors.As(err, &apiErrPtr) && apiErrPtr.Code == http.StatusTooManyRequests:
		log.Warn("Rate limit hit", "error", err)
		return true
	}
	return false
}
