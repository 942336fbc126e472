// Package tools defines the tools available to the agent.
package tools

import (
	"context"
	"log/slog"
)

// Tool represents a callable tool.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
	Handler     func(ctx context.Context, args map[string]any) (string, error) `json:"-"`
}

// Registry holds available tools. It is populated once at startup and
// read-only afterwards.
type Registry struct {
	tools  map[string]*Tool
	order  []string
	logger *slog.Logger
}

// NewRegistry creates a tool registry with the built-in tools registered.
func NewRegistry(shell *ShellExec, python *PythonExec, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		tools:  make(map[string]*Tool),
		logger: logger,
	}
	r.registerBuiltins(shell, python)
	return r
}

func (r *Registry) registerBuiltins(shell *ShellExec, python *PythonExec) {
	r.Register(&Tool{
		Name:        "shell",
		Description: "Execute a shell command and return its output with an optional timeout",
		Parameters: map[string]any{
			"type":     "object",
			"required": []string{"command"},
			"properties": map[string]any{
				"command": map[string]any{
					"type":        "string",
					"description": "The shell command to execute",
				},
				"timeout": map[string]any{
					"type":        "integer",
					"description": "Maximum time in seconds to wait for command completion (default: 10)",
					"default":     10,
				},
			},
		},
		Handler: shell.Handle,
	})

	r.Register(&Tool{
		Name:        "run_python",
		Description: "Execute Python code and return its output",
		Parameters: map[string]any{
			"type":     "object",
			"required": []string{"code"},
			"properties": map[string]any{
				"code": map[string]any{
					"type":        "string",
					"description": "The Python code to execute",
				},
			},
		},
		Handler: python.Handle,
	})
}

// Register adds a tool to the registry, preserving registration order for
// catalog serialization.
func (r *Registry) Register(t *Tool) {
	if _, exists := r.tools[t.Name]; !exists {
		r.order = append(r.order, t.Name)
	}
	r.tools[t.Name] = t
	r.logger.Debug("tool registered", "name", t.Name)
}

// Get returns a tool by exact name, or nil if not registered.
func (r *Registry) Get(name string) *Tool {
	return r.tools[name]
}

// Specs returns the tool catalog in the Ollama function-spec shape, in
// registration order. This is what gets serialized into the system prompt.
func (r *Registry) Specs() []map[string]any {
	specs := make([]map[string]any, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		specs = append(specs, map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        t.Name,
				"description": t.Description,
				"parameters":  t.Parameters,
			},
		})
	}
	return specs
}
