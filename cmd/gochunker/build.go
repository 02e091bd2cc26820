package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/akolanti/GoChunker/internal/config"
	"github.com/akolanti/GoChunker/internal/index"
	"github.com/akolanti/GoChunker/internal/index/embedding/googleEmbedding"
	"github.com/akolanti/GoChunker/internal/index/embedding/openaiEmbedding"
	"github.com/akolanti/GoChunker/internal/index/vectorDB/qdrantDB"
	"github.com/akolanti/GoChunker/internal/keywords"
	"github.com/akolanti/GoChunker/internal/pipeline"
	"github.com/urfave/cli/v2"
)

// embedder is what indexing and similarity keywords need from a provider.
type embedder interface {
	GetEmbedding(ctx context.Context, text string) ([]float32, error)
	BatchEmbedding(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

func loadConfig(c *cli.Context) (config.PipelineConfig, error) {
	cfg := config.Default()
	if path := c.String("config"); path != "" {
		loaded, err := config.LoadFile(path)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}
	cfg, err := config.FromEnv(cfg)
	if err != nil {
		return cfg, fmt.Errorf("environment overrides: %w", err)
	}
	if enc := c.String("tokenizer"); enc != "" {
		cfg.TokenizerEncoding = enc
	}
	return cfg, cfg.Validate()
}

func googleAPIKey() string {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		return key
	}
	return os.Getenv("GOOGLE_API_KEY")
}

func newEmbedder(ctx context.Context, c *cli.Context) (embedder, error) {
	switch c.String("embedder") {
	case "google":
		client, err := googleEmbedding.NewClient(ctx, googleAPIKey(), "")
		if err != nil {
			return nil, fmt.Errorf("google embedder: %w", err)
		}
		return client, nil
	case "openai":
		return openaiEmbedding.NewClient(os.Getenv("OPENAI_API_KEY"), "", c.String("openai-base-url")), nil
	}
	return nil, fmt.Errorf("unknown embedder %q: must be google or openai", c.String("embedder"))
}

// buildPipeline assembles the pipeline from the global flags. The returned
// close func releases the pipeline and any index connection.
func buildPipeline(ctx context.Context, c *cli.Context) (pipeline.Service, func(), error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, nil, err
	}

	var opts []pipeline.Option
	var emb embedder
	getEmbedder := func() (embedder, error) {
		if emb != nil {
			return emb, nil
		}
		e, err := newEmbedder(ctx, c)
		if err != nil {
			return nil, err
		}
		emb = e
		return emb, nil
	}

	switch c.String("keywords") {
	case "", "none":
	case "gemini":
		ext, err := keywords.NewGeminiExtractor(ctx, googleAPIKey(), config.GeminiModelName)
		if err != nil {
			return nil, nil, fmt.Errorf("gemini keywords: %w", err)
		}
		opts = append(opts, pipeline.WithKeywordExtractor(ext))
	case "similarity":
		e, err := getEmbedder()
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, pipeline.WithKeywordExtractor(keywords.NewSimilarityExtractor(e)))
	default:
		return nil, nil, fmt.Errorf("unknown keyword extractor %q", c.String("keywords"))
	}

	var db *qdrantDB.ClientHolder
	if c.Bool("index") {
		e, err := getEmbedder()
		if err != nil {
			return nil, nil, err
		}
		db, err = qdrantDB.NewClient()
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, pipeline.WithIndexer(index.NewIndexer(e, db, config.EmbeddingDBName, e.Dimension())))
	}

	svc, err := pipeline.NewService(cfg, opts...)
	if err != nil {
		if db != nil {
			_ = db.Close()
		}
		return nil, nil, err
	}
	closeAll := func() {
		var errs []error
		errs = append(errs, svc.Close())
		if db != nil {
			errs = append(errs, db.Close())
		}
		if err := errors.Join(errs...); err != nil {
			logger.Warn("Shutdown incomplete", "err", err)
		}
	}
	return svc, closeAll, nil
}
