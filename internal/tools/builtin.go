package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"docs-mcp-server/internal/bridge"
	"docs-mcp-server/internal/docsengine"
	"docs-mcp-server/internal/jobs"
	"docs-mcp-server/pkg/mcptypes"
)

var querySchema = json.RawMessage(`{
	"type": "object",
	"properties": { "query": { "type": "string" } },
	"required": ["query"]
}`)

// dynamicQueryTool is a query tool loaded from the dynamic configuration
// blob; its execution delegates to the out-of-scope query engine
// collaborator.
type dynamicQueryTool struct {
	cfg    mcptypes.ToolConfig
	engine docsengine.QueryEngine
}

func newDynamicQueryTool(cfg mcptypes.ToolConfig, engine docsengine.QueryEngine) *dynamicQueryTool {
	return &dynamicQueryTool{cfg: cfg, engine: engine}
}

func (t *dynamicQueryTool) Definition() Definition {
	return Definition{
		Name:        t.cfg.Name,
		Title:       t.cfg.Title,
		Description: t.cfg.Description,
		InputSchema: querySchema,
	}
}

func (t *dynamicQueryTool) Execute(ctx context.Context, arguments json.RawMessage) (string, error) {
	if t.engine == nil {
		return "", fmt.Errorf("no query engine configured for %s", t.cfg.Name)
	}
	return t.engine.Query(ctx, t.cfg.DocType, arguments)
}

// RustQueryTool is the built-in "rust_query" tool.
type RustQueryTool struct {
	Engine docsengine.QueryEngine
}

func (t *RustQueryTool) Definition() Definition {
	return Definition{
		Name:        "rust_query",
		Title:       "Rust Documentation Query",
		Description: "Query indexed Rust crate documentation.",
		InputSchema: querySchema,
	}
}

func (t *RustQueryTool) Execute(ctx context.Context, arguments json.RawMessage) (string, error) {
	if t.Engine == nil {
		return "", fmt.Errorf("no query engine configured")
	}
	return t.Engine.Query(ctx, "rust", arguments)
}

var ingestSchema = json.RawMessage(`{
	"type": "object",
	"properties": { "repoUrl": { "type": "string" } },
	"required": ["repoUrl"]
}`)

// IngestTool is the built-in "ingest" tool; it is a
// long-running tool and so must not run synchronously (its
// rule applies identically to built-ins).
type IngestTool struct {
	Store *jobs.Store
	Queue *jobs.Queue
}

func (t *IngestTool) Definition() Definition {
	return Definition{
		Name:        "ingest",
		Title:       "Ingest Repository",
		Description: "Enqueue an ingestion job for a repository URL.",
		InputSchema: ingestSchema,
	}
}

func (t *IngestTool) Execute(ctx context.Context, arguments json.RawMessage) (string, error) {
	var args struct {
		RepoURL string `json:"repoUrl"`
	}
	if err := json.Unmarshal(arguments, &args); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if args.RepoURL == "" {
		return "", fmt.Errorf("repoUrl is required")
	}

	jobID, err := bridge.Enqueue(ctx, t.Store, t.Queue, "ingest", args.RepoURL, arguments, 0)
	if err != nil {
		return "", err
	}
	return bridge.StatusPointer(jobID), nil
}
