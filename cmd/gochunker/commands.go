package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/akolanti/GoChunker/internal/domain/jobModel"
	"github.com/akolanti/GoChunker/internal/mcpserver"
	"github.com/akolanti/GoChunker/pkg/logger_i"
	"github.com/tidwall/pretty"
	"github.com/urfave/cli/v2"
)

var logger = logger_i.NewLogger("main")

func printJSON(c *cli.Context, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = c.App.Writer.Write(pretty.Pretty(data))
	return err
}

func convertCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("convert takes exactly one SOURCE, got %d", c.NArg())
	}
	var metadata map[string]any
	if raw := c.String("metadata"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &metadata); err != nil {
			return fmt.Errorf("metadata must be a JSON object: %w", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	svc, closeAll, err := buildPipeline(ctx, c)
	if err != nil {
		return err
	}
	defer closeAll()

	res := svc.Process(ctx, jobModel.ConversionJob{
		Source:      c.Args().First(),
		Destination: c.String("out"),
		DocumentID:  c.String("id"),
		Name:        c.String("name"),
		Metadata:    metadata,
		Index:       c.Bool("index"),
	})
	if err := printJSON(c, res); err != nil {
		return err
	}
	if !res.Success {
		return cli.Exit(fmt.Sprintf("%s: %s", res.Reason, res.Error), 1)
	}
	return nil
}

func batchCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("batch needs at least one SOURCE")
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	svc, closeAll, err := buildPipeline(ctx, c)
	if err != nil {
		return err
	}
	defer closeAll()

	batch := svc.ProcessBatch(ctx, c.Args().Slice(), c.String("out"), c.Int("max-concurrent"))
	if err := printJSON(c, batch); err != nil {
		return err
	}
	if batch.Failed > 0 {
		return cli.Exit(fmt.Sprintf("%d of %d documents failed", batch.Failed, len(batch.Results)), 1)
	}
	return nil
}

func mcpCommand(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	svc, closeAll, err := buildPipeline(ctx, c)
	if err != nil {
		return err
	}
	defer closeAll()

	logger.Info("Serving MCP over stdio", "outputDir", c.String("output-dir"))
	return mcpserver.New(svc, c.String("output-dir")).Run(ctx, version)
}
