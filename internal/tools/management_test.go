package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func TestRemoveRustCrateTool_Success(t *testing.T) {
	var removedName string
	tool := &RemoveRustCrateTool{
		Remover: func(ctx context.Context, name string) error {
			removedName = name
			return nil
		},
	}

	text, err := tool.Execute(context.Background(), json.RawMessage(`{"name":"tokio"}`))
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if removedName != "tokio" {
		t.Fatalf("Remover called with name %q, want tokio", removedName)
	}
	if text != "Removed crate tokio." {
		t.Fatalf("Execute() = %q", text)
	}
}

func TestRemoveRustCrateTool_MissingName(t *testing.T) {
	tool := &RemoveRustCrateTool{Remover: func(ctx context.Context, name string) error { return nil }}
	if _, err := tool.Execute(context.Background(), json.RawMessage(`{"name":"  "}`)); err == nil {
		t.Fatalf("expected error for blank name")
	}
}

func TestRemoveRustCrateTool_NoCollaborator(t *testing.T) {
	tool := &RemoveRustCrateTool{}
	if _, err := tool.Execute(context.Background(), json.RawMessage(`{"name":"tokio"}`)); err == nil {
		t.Fatalf("expected error when no Remover is configured")
	}
}

func TestRemoveRustCrateTool_PropagatesCollaboratorError(t *testing.T) {
	tool := &RemoveRustCrateTool{
		Remover: func(ctx context.Context, name string) error { return errors.New("not found") },
	}
	if _, err := tool.Execute(context.Background(), json.RawMessage(`{"name":"tokio"}`)); err == nil {
		t.Fatalf("expected error to propagate from Remover")
	}
}

func TestListRustCratesTool_Success(t *testing.T) {
	tool := &ListRustCratesTool{
		Lister: func(ctx context.Context) ([]string, error) {
			return []string{"tokio", "serde"}, nil
		},
	}
	text, err := tool.Execute(context.Background(), nil)
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if text != "tokio\nserde" {
		t.Fatalf("Execute() = %q", text)
	}
}

func TestListRustCratesTool_Empty(t *testing.T) {
	tool := &ListRustCratesTool{
		Lister: func(ctx context.Context) ([]string, error) {
			return nil, nil
		},
	}
	text, err := tool.Execute(context.Background(), nil)
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if text != "No crates ingested." {
		t.Fatalf("Execute() = %q", text)
	}
}

func TestListRustCratesTool_NoCollaborator(t *testing.T) {
	tool := &ListRustCratesTool{}
	if _, err := tool.Execute(context.Background(), nil); err == nil {
		t.Fatalf("expected error when no Lister is configured")
	}
}

func TestAddRustCrateTool_Definition(t *testing.T) {
	tool := &AddRustCrateTool{}
	if tool.Definition().Name != "add_rust_crate" {
		t.Fatalf("Name = %q", tool.Definition().Name)
	}
}

func TestAddRustCrateTool_Execute_RejectsMissingName(t *testing.T) {
	tool := &AddRustCrateTool{}
	if _, err := tool.Execute(context.Background(), json.RawMessage(`{}`)); err == nil {
		t.Fatalf("expected error for missing name")
	}
}

func TestCheckRustStatusTool_Definition(t *testing.T) {
	tool := &CheckRustStatusTool{}
	if tool.Definition().Name != "check_rust_status" {
		t.Fatalf("Name = %q", tool.Definition().Name)
	}
}
