// @title           GoChunker API
// @version         1.0
// @description     Converts documents into RAG-ready chunk files asynchronously
// @termsOfService  http://swagger.io/terms/

// @contact.name    me lol
// @contact.url
// @contact.email

// @license.name    Apache 2.0
// @license.url     http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:3000
// @BasePath  /
// @schemes   http https
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/akolanti/GoChunker/internal/config"
	"github.com/akolanti/GoChunker/pkg/logger_i"
	"github.com/urfave/cli/v2"
)

var version = "dev"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "gochunker",
		Usage:   "Convert documents into RAG-ready chunk files",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML pipeline config",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.BoolFlag{
				Name:  "json-logs",
				Usage: "Emit logs as JSON",
			},
			&cli.StringFlag{
				Name:  "keywords",
				Usage: "Keyword extractor (none, gemini, similarity)",
				Value: "none",
			},
			&cli.StringFlag{
				Name:  "tokenizer",
				Usage: "tiktoken encoding used to count chunk tokens, whitespace when empty",
			},
			&cli.BoolFlag{
				Name:  "index",
				Usage: "Store every finished document in qdrant",
			},
			&cli.StringFlag{
				Name:  "embedder",
				Usage: "Embedding provider for indexing and similarity keywords (google, openai)",
				Value: "google",
			},
			&cli.StringFlag{
				Name:    "openai-base-url",
				Usage:   "OpenAI compatible endpoint for the openai embedder",
				EnvVars: []string{"OPENAI_BASE_URL"},
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "convert",
				Usage:     "Convert one document into a chunk file",
				ArgsUsage: "SOURCE",
				Action:    convertCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "out",
						Aliases: []string{"o"},
						Usage:   "Output file or directory",
						Value:   ".",
					},
					&cli.StringFlag{
						Name:  "name",
						Usage: "Document name recorded in the output header",
					},
					&cli.StringFlag{
						Name:  "id",
						Usage: "Document id, generated when empty",
					},
					&cli.StringFlag{
						Name:  "metadata",
						Usage: "JSON object merged into every chunk",
					},
				},
			},
			{
				Name:      "batch",
				Usage:     "Convert many documents or directories concurrently",
				ArgsUsage: "SOURCE...",
				Action:    batchCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "out",
						Aliases: []string{"o"},
						Usage:   "Output directory",
						Value:   ".",
					},
					&cli.IntFlag{
						Name:  "max-concurrent",
						Usage: "Documents converted at once, config default when 0",
					},
				},
			},
			{
				Name:   "serve",
				Usage:  "Run the asynchronous HTTP API",
				Action: serveCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "listen-addr",
						Usage: "server listen address",
						Value: config.ServerListenAddr,
					},
					&cli.StringFlag{
						Name:  "output-dir",
						Usage: "Directory receiving one sub directory of chunk files per job",
						Value: "output",
					},
					&cli.StringFlag{
						Name:  "upload-dir",
						Usage: "Directory holding uploaded documents until their job ends",
						Value: "temporary_data",
					},
				},
			},
			{
				Name:   "mcp",
				Usage:  "Serve the chunking tools over MCP stdio",
				Action: mcpCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "output-dir",
						Usage: "Default destination for chunk files",
						Value: ".",
					},
				},
			},
		},
	}
}

// setupLogger writes to stderr so stdout stays free for results and the
// MCP stdio transport.
func setupLogger(c *cli.Context) error {
	level, ok := logger_i.ParseLevel(c.String("log-level"))
	if !ok {
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", c.String("log-level"))
	}
	if config.IS_PROD && level < config.LOG_LEVEL_PROD {
		level = config.LOG_LEVEL_PROD
	}
	logger_i.InitWithOptions(logger_i.Options{
		Level:  level,
		JSON:   c.Bool("json-logs") || config.IS_PROD,
		Writer: os.Stderr,
	})
	return nil
}
