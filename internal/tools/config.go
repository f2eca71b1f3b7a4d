package tools

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"docs-mcp-server/internal/docsengine"
	"docs-mcp-server/pkg/mcptypes"
)

// builtinReservedNames blocks dynamic tool configs from colliding with the
// built-in or management tool names.
var builtinReservedNames = func() map[string]bool {
	reserved := map[string]bool{"rust_query": true, "ingest": true}
	for _, name := range ManagementToolNames {
		reserved[name] = true
	}
	return reserved
}()

// LoadToolConfigs reads the dynamic tool configuration blob from the
// TOOLS_CONFIG environment variable (inline JSON) or, failing that,
// TOOLS_CONFIG_PATH (a file path). It returns an empty slice, not an
// error, when neither is set.
func LoadToolConfigs() ([]mcptypes.ToolConfig, error) {
	var raw []byte

	if inline := os.Getenv("TOOLS_CONFIG"); inline != "" {
		raw = []byte(inline)
	} else if path := os.Getenv("TOOLS_CONFIG_PATH"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading TOOLS_CONFIG_PATH: %w", err)
		}
		raw = data
	} else {
		return nil, nil
	}

	var file mcptypes.ToolConfigFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parsing tool configuration: %w", err)
	}
	return file.Tools, nil
}

// ValidateToolConfig checks one entry against the tool descriptor rules.
// Invalid entries are logged and
// skipped by the caller; they must never prevent startup.
func ValidateToolConfig(cfg mcptypes.ToolConfig, seen map[string]bool) error {
	if strings.TrimSpace(cfg.Name) == "" {
		return fmt.Errorf("tool name must not be empty")
	}
	if !strings.HasSuffix(cfg.Name, "_query") {
		return fmt.Errorf("dynamic tool name %q must end with _query", cfg.Name)
	}
	if builtinReservedNames[cfg.Name] {
		return fmt.Errorf("tool name %q collides with a built-in or management tool", cfg.Name)
	}
	if seen[cfg.Name] {
		return fmt.Errorf("duplicate tool name %q", cfg.Name)
	}
	if strings.TrimSpace(cfg.DocType) == "" {
		return fmt.Errorf("tool %q: docType must not be empty", cfg.Name)
	}
	if strings.TrimSpace(cfg.Title) == "" {
		return fmt.Errorf("tool %q: title must not be empty", cfg.Name)
	}
	if strings.TrimSpace(cfg.Description) == "" {
		return fmt.Errorf("tool %q: description must not be empty", cfg.Name)
	}
	return nil
}

// RegisterDynamicTools validates and registers each enabled entry in
// configs against engine, skipping (and logging) invalid entries without
// aborting startup.
func RegisterDynamicTools(r *Registry, configs []mcptypes.ToolConfig, engine docsengine.QueryEngine) {
	seen := make(map[string]bool, len(configs))
	for _, cfg := range configs {
		if err := ValidateToolConfig(cfg, seen); err != nil {
			slog.Warn("skipping invalid dynamic tool configuration", "name", cfg.Name, "error", err)
			continue
		}
		seen[cfg.Name] = true

		if !cfg.Enabled {
			slog.Debug("skipping disabled tool configuration", "name", cfg.Name)
			continue
		}

		tool := newDynamicQueryTool(cfg, engine)
		if err := r.Register(tool); err != nil {
			slog.Warn("skipping dynamic tool registration", "name", cfg.Name, "error", err)
		}
	}
}
