package keywords

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/akolanti/GoChunker/internal/chunker"
	"github.com/akolanti/GoChunker/internal/config"
	"github.com/akolanti/GoChunker/pkg/logger_i"
	"github.com/tidwall/gjson"
	"google.golang.org/genai"
)

const keywordPrompt = `You extract search keywords from document passages.
Return a JSON array of at most %d objects of the form {"value": string, "score": number}.
Values are key phrases of one to three words taken from the passage, lowercase, without stop words.
Score is the relevance of the phrase to the passage between 0 and 1. Sort by score, highest first.`

var ErrEmptyResponse = errors.New("keywords: empty model response")

var logger = logger_i.NewLogger("keywords")

// contentGenerator is the slice of genai.Models the extractor calls.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiExtractor asks a Gemini model for the key phrases of a chunk.
type GeminiExtractor struct {
	models contentGenerator
	model  string
}

func NewGeminiExtractor(ctx context.Context, apiKey string, modelName string) (*GeminiExtractor, error) {
	c, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	if modelName == "" {
		modelName = config.GeminiModelName
	}
	logger.Info("Gemini keyword extractor created", "model", modelName)
	return &GeminiExtractor{models: c.Models, model: modelName}, nil
}

func (g *GeminiExtractor) Extract(ctx context.Context, text string, topN int) ([]chunker.Keyword, error) {
	if strings.TrimSpace(text) == "" || topN <= 0 {
		return nil, nil
	}
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: fmt.Sprintf(keywordPrompt, topN)}}},
		ResponseMIMEType:  "application/json",
		Temperature:       genai.Ptr[float32](0),
	}
	res, err := g.models.GenerateContent(ctx, g.model, genai.Text(text), cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini generate: %w", err)
	}
	if res == nil {
		return nil, ErrEmptyResponse
	}
	return parseKeywords(res.Text(), topN)
}

// parseKeywords reads a JSON keyword list, tolerating a markdown code fence
// around it. Duplicate phrases keep their first occurrence.
func parseKeywords(raw string, topN int) ([]chunker.Keyword, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrEmptyResponse
	}
	if !gjson.Valid(raw) || !gjson.Parse(raw).IsArray() {
		return nil, fmt.Errorf("keywords: response is not a JSON array")
	}

	seen := make(map[string]bool)
	var out []chunker.Keyword
	for _, item := range gjson.Parse(raw).Array() {
		value := strings.ToLower(strings.TrimSpace(item.Get("value").String()))
		if value == "" || seen[value] {
			continue
		}
		seen[value] = true
		out = append(out, chunker.Keyword{Value: value, Score: item.Get("score").Float()})
		if len(out) == topN {
			break
		}
	}
	return out, nil
}
