package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/akolanti/GoChunker/internal/domain/jobModel"
	"github.com/akolanti/GoChunker/internal/engine"
	"github.com/akolanti/GoChunker/internal/pipeline"
	"github.com/akolanti/GoChunker/internal/writer"
	"github.com/akolanti/GoChunker/pkg/logger_i"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

var logger = logger_i.NewLogger("MCP")

// Tools exposes the pipeline to MCP clients. Every tool answers with a JSON
// text block.
type Tools struct {
	pipeline  pipeline.Service
	outputDir string
}

func New(svc pipeline.Service, outputDir string) *Tools {
	if outputDir == "" {
		outputDir = "."
	}
	return &Tools{pipeline: svc, outputDir: outputDir}
}

// NewServer builds an MCP server with every tool registered.
func (t *Tools) NewServer(version string) *mcp.Server {
	srv := mcp.NewServer(&mcp.Implementation{Name: "gochunker", Version: version}, nil)
	t.Register(srv)
	return srv
}

func (t *Tools) Register(srv *mcp.Server) {
	t.registerChunkTool(srv)
	t.registerBatchTool(srv)
	t.registerFormatsTool(srv)
}

// Run serves the tools over stdin and stdout until ctx ends or the client
// disconnects.
func (t *Tools) Run(ctx context.Context, version string) error {
	logger.Info("Serving MCP over stdio")
	return t.NewServer(version).Run(ctx, &mcp.StdioTransport{})
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func jsonResult(v any, isError bool) *mcp.CallToolResult {
	data, err := json.Marshal(v)
	if err != nil {
		var res mcp.CallToolResult
		res.SetError(fmt.Errorf("marshal: %w", err))
		return &res
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
		IsError: isError,
	}
}

func invalidArguments(err error) *mcp.CallToolResult {
	var res mcp.CallToolResult
	res.SetError(fmt.Errorf("invalid arguments: %w", err))
	return &res
}

type chunkReq struct {
	Source        string         `json:"source"`
	Destination   string         `json:"destination"`
	DocumentName  string         `json:"document_name"`
	DocumentID    string         `json:"document_id"`
	Metadata      map[string]any `json:"metadata"`
	Index         bool           `json:"index"`
	IncludeChunks bool           `json:"include_chunks"`
}

type chunkResp struct {
	jobModel.ProcessingResult
	Chunks any `json:"chunks,omitempty"`
}

func (t *Tools) registerChunkTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "chunk_document",
		Description: "Convert a document (pdf, docx, pptx, xlsx, html, md, csv, json, images and more) into retrieval-ready chunks and write them as JSON.",
		InputSchema: inputSchema(map[string]any{
			"source":         map[string]any{"type": "string", "description": "Local file path or http(s) URL"},
			"destination":    map[string]any{"type": "string", "description": "Output file or directory; defaults to the server output directory"},
			"document_name":  map[string]any{"type": "string", "description": "Name stored in the output header"},
			"document_id":    map[string]any{"type": "string", "description": "Id stored in the output header; generated when empty"},
			"metadata":       map[string]any{"type": "object", "description": "Merged into every chunk's metadata"},
			"index":          map[string]any{"type": "boolean", "description": "Also store the chunks in the vector index"},
			"include_chunks": map[string]any{"type": "boolean", "description": "Return the chunks in the response as well"},
		}, []string{"source"}),
	}

	srv.AddTool(tool, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var r chunkReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return invalidArguments(err), nil
		}
		if r.Source == "" {
			return invalidArguments(fmt.Errorf("source is required")), nil
		}
		if r.Destination == "" {
			r.Destination = t.outputDir
		}

		res := t.pipeline.Process(ctx, jobModel.ConversionJob{
			Source:      r.Source,
			Destination: r.Destination,
			DocumentID:  r.DocumentID,
			Name:        r.DocumentName,
			Metadata:    r.Metadata,
			Index:       r.Index,
		})
		out := chunkResp{ProcessingResult: res}
		if res.Success && r.IncludeChunks {
			doc, err := writer.ReadDocument(res.OutputPath)
			if err != nil {
				logger.Warn("Could not read back chunks", "path", res.OutputPath, "err", err)
			} else {
				out.Chunks = doc.Chunks
			}
		}
		return jsonResult(out, !res.Success), nil
	})
}

type batchReq struct {
	Sources       []string `json:"sources"`
	OutputDir     string   `json:"output_dir"`
	MaxConcurrent int      `json:"max_concurrent"`
}

func (t *Tools) registerBatchTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "chunk_batch",
		Description: "Convert several documents or directories concurrently. One result per document, in input order.",
		InputSchema: inputSchema(map[string]any{
			"sources":        map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "Files, directories or URLs"},
			"output_dir":     map[string]any{"type": "string", "description": "Directory for the chunk files"},
			"max_concurrent": map[string]any{"type": "integer", "description": "Documents in flight at once"},
		}, []string{"sources"}),
	}

	srv.AddTool(tool, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var r batchReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return invalidArguments(err), nil
		}
		if len(r.Sources) == 0 {
			return invalidArguments(fmt.Errorf("sources is empty")), nil
		}
		if r.OutputDir == "" {
			r.OutputDir = t.outputDir
		}
		batch := t.pipeline.ProcessBatch(ctx, r.Sources, r.OutputDir, r.MaxConcurrent)
		return jsonResult(batch, false), nil
	})
}

func (t *Tools) registerFormatsTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "supported_formats",
		Description: "List every file extension the pipeline accepts.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	srv.AddTool(tool, func(_ context.Context, _ *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return jsonResult(map[string]any{"formats": engine.SupportedFormats()}, false), nil
	})
}
