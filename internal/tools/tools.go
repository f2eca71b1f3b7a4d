// Package tools implements the tool registry and dispatch: a uniform
// registry of named tools with JSON-schema inputs, dynamic registration
// from configuration, and the built-in/management tool set.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"docs-mcp-server/internal/wire"
)

// Definition is a tool's self-description, advertised via tools/list.
type Definition struct {
	Name        string          `json:"name"`
	Title       string          `json:"title,omitempty"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// Tool is the uniform interface every registered tool implements.
type Tool interface {
	Definition() Definition
	Execute(ctx context.Context, arguments json.RawMessage) (string, error)
}

// Registry holds the set of registered tools. Tools are added with Register
// and never removed; every method takes mu, so the registry is safe for
// concurrent use.
type Registry struct {
	mu     sync.RWMutex // guards byName and order
	byName map[string]Tool
	order  []string
}

// NewRegistry constructs an empty registry ready for Register calls.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Tool)}
}

// Register adds tool, returning an error if its name collides with an
// already-registered tool.
func (r *Registry) Register(tool Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := tool.Definition().Name
	if _, exists := r.byName[name]; exists {
		return fmt.Errorf("tool name %q already registered", name)
	}
	r.byName[name] = tool
	r.order = append(r.order, name)
	return nil
}

// List returns the definitions of every registered tool, in registration order.
func (r *Registry) List() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]Definition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.byName[name].Definition())
	}
	return defs
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byName[name]
	return ok
}

// Call looks up name and runs its Execute. An unknown name is a transport-
// level error; any other failure from the tool itself is wrapped
// into the tools/call result envelope with isError:true, never surfaced as
// a transport error.
func (r *Registry) Call(ctx context.Context, name string, arguments json.RawMessage) (wire.ToolsCallResult, error) {
	r.mu.RLock()
	tool, ok := r.byName[name]
	r.mu.RUnlock()
	if !ok {
		return wire.ToolsCallResult{}, wire.NewTransportError(wire.KindUnknownTool, "Unknown tool: "+name)
	}

	text, err := tool.Execute(ctx, arguments)
	if err != nil {
		return wire.TextResult("Error: "+err.Error(), true), nil
	}
	return wire.TextResult(text, false), nil
}

// Names returns every registered tool name, sorted, for diagnostics/tests.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ManagementToolNames is the fixed set of four management tool names
// step 3); they are not query tools and have their own schemas.
var ManagementToolNames = []string{
	"add_rust_crate",
	"remove_rust_crate",
	"list_rust_crates",
	"check_rust_status",
}
