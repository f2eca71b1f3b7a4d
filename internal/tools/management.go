package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"docs-mcp-server/internal/bridge"
	"docs-mcp-server/internal/jobs"
	"docs-mcp-server/pkg/mcptypes"
)

var crateNameSchema = json.RawMessage(`{
	"type": "object",
	"properties": { "name": { "type": "string" } },
	"required": ["name"]
}`)

// AddRustCrateTool enqueues a crate_add job; it must not fetch or
// embed anything synchronously.
type AddRustCrateTool struct {
	Store *jobs.Store
	Queue *jobs.Queue
}

func (t *AddRustCrateTool) Definition() Definition {
	return Definition{
		Name:        "add_rust_crate",
		Title:       "Add Rust Crate",
		Description: "Enqueue ingestion of a new Rust crate's documentation.",
		InputSchema: crateNameSchema,
	}
}

func (t *AddRustCrateTool) Execute(ctx context.Context, arguments json.RawMessage) (string, error) {
	var args struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(arguments, &args); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if strings.TrimSpace(args.Name) == "" {
		return "", fmt.Errorf("name is required")
	}

	payload, _ := json.Marshal(map[string]string{"crateName": args.Name})
	jobID, err := bridge.Enqueue(ctx, t.Store, t.Queue, "crate_add", args.Name, payload, 0)
	if err != nil {
		return "", err
	}
	return bridge.StatusPointer(jobID), nil
}

// RemoveRustCrateTool removes a crate's indexed documentation. Removal is
// fast enough to run inline; it is not routed through the job bridge.
type RemoveRustCrateTool struct {
	Remover func(ctx context.Context, name string) error
}

func (t *RemoveRustCrateTool) Definition() Definition {
	return Definition{
		Name:        "remove_rust_crate",
		Title:       "Remove Rust Crate",
		Description: "Remove a previously ingested Rust crate's documentation.",
		InputSchema: crateNameSchema,
	}
}

func (t *RemoveRustCrateTool) Execute(ctx context.Context, arguments json.RawMessage) (string, error) {
	var args struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(arguments, &args); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if strings.TrimSpace(args.Name) == "" {
		return "", fmt.Errorf("name is required")
	}
	if t.Remover == nil {
		return "", fmt.Errorf("no crate removal collaborator configured")
	}
	if err := t.Remover(ctx, args.Name); err != nil {
		return "", err
	}
	return fmt.Sprintf("Removed crate %s.", args.Name), nil
}

var emptySchema = json.RawMessage(`{"type": "object", "properties": {}}`)

// ListRustCratesTool lists currently ingested crates.
type ListRustCratesTool struct {
	Lister func(ctx context.Context) ([]string, error)
}

func (t *ListRustCratesTool) Definition() Definition {
	return Definition{
		Name:        "list_rust_crates",
		Title:       "List Rust Crates",
		Description: "List crates with ingested documentation.",
		InputSchema: emptySchema,
	}
}

func (t *ListRustCratesTool) Execute(ctx context.Context, _ json.RawMessage) (string, error) {
	if t.Lister == nil {
		return "", fmt.Errorf("no crate listing collaborator configured")
	}
	names, err := t.Lister(ctx)
	if err != nil {
		return "", err
	}
	if len(names) == 0 {
		return "No crates ingested.", nil
	}
	return strings.Join(names, "\n"), nil
}

var statusSchema = json.RawMessage(`{
	"type": "object",
	"properties": { "jobId": { "type": "string" } }
}`)

// CheckRustStatusTool reads directly from the job store: given a
// job id it returns that job's fields, otherwise system-wide counts and
// the most recent jobs. Budgeted to respond in under 3 seconds.
type CheckRustStatusTool struct {
	Store *jobs.Store
}

func (t *CheckRustStatusTool) Definition() Definition {
	return Definition{
		Name:        "check_rust_status",
		Title:       "Check Rust Ingestion Status",
		Description: "Check the status of a specific job, or a system-wide summary.",
		InputSchema: statusSchema,
	}
}

func (t *CheckRustStatusTool) Execute(ctx context.Context, arguments json.RawMessage) (string, error) {
	var args struct {
		JobID string `json:"jobId"`
	}
	if len(arguments) > 0 {
		if err := json.Unmarshal(arguments, &args); err != nil {
			return "", fmt.Errorf("invalid arguments: %w", err)
		}
	}

	if args.JobID != "" {
		job, err := t.Store.Find(ctx, args.JobID)
		if err != nil {
			return "", err
		}
		encoded, err := json.Marshal(job)
		if err != nil {
			return "", err
		}
		return string(encoded), nil
	}

	counts, err := t.Store.Counts(ctx)
	if err != nil {
		return "", err
	}
	recent, err := t.Store.List(ctx, jobs.ListFilter{}, 1, 10)
	if err != nil {
		return "", err
	}

	summary := struct {
		Queued    int            `json:"queued"`
		Running   int            `json:"running"`
		Completed int            `json:"completed"`
		Failed    int            `json:"failed"`
		Recent    []mcptypes.Job `json:"recent"`
	}{
		Queued:    counts[mcptypes.JobQueued],
		Running:   counts[mcptypes.JobRunning],
		Completed: counts[mcptypes.JobCompleted],
		Failed:    counts[mcptypes.JobFailed],
		Recent:    recent,
	}
	encoded, err := json.Marshal(summary)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}
