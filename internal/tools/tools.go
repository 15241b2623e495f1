// Package tools holds the deterministic functions the oracle may call,
// and a registry that executes oracle tool calls against them.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Veraticus/tachyon/internal/llm"
	"github.com/Veraticus/tachyon/internal/metrics"
)

// ErrInvalidArgument reports a tool call with missing or malformed arguments.
var ErrInvalidArgument = errors.New("invalid argument")

// Result is what a tool hands back to the oracle. IsError marks failures
// so they are never confused with a successful answer.
type Result struct {
	Content string
	IsError bool
}

// Tool is a function the oracle may call.
type Tool interface {
	Definition() llm.ToolDefinition
	Invoke(ctx context.Context, args json.RawMessage) (Result, error)
}

// Registry dispatches oracle tool calls by name.
type Registry struct {
	tools   map[string]Tool
	logger  *slog.Logger
	metrics *metrics.Metrics
	order   []string
}

// NewRegistry registers tools in the order given.
func NewRegistry(logger *slog.Logger, m *metrics.Metrics, tools ...Tool) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		tools:   make(map[string]Tool, len(tools)),
		logger:  logger,
		metrics: m,
	}
	for _, tool := range tools {
		r.Register(tool)
	}
	return r
}

// Register adds or replaces a tool.
func (r *Registry) Register(tool Tool) {
	name := tool.Definition().Name
	if _, exists := r.tools[name]; !exists {
		r.order = append(r.order, name)
	}
	r.tools[name] = tool
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	return len(r.tools)
}

// Definitions lists the registered tools for an oracle request.
func (r *Registry) Definitions() []llm.ToolDefinition {
	defs := make([]llm.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.tools[name].Definition())
	}
	return defs
}

// Execute runs a single oracle tool call. Failures are reported to the
// oracle through IsError rather than returned.
func (r *Registry) Execute(ctx context.Context, call llm.ToolCall) llm.ToolResult {
	out := llm.ToolResult{CallID: call.ID, Name: call.Name}

	tool, ok := r.tools[call.Name]
	if !ok {
		out.Content = fmt.Sprintf("Error: unknown tool '%s'.", call.Name)
		out.IsError = true
		r.metrics.IncrementToolCall(call.Name, errors.New("unknown tool"))
		return out
	}

	result, err := tool.Invoke(ctx, call.Arguments)
	r.metrics.IncrementToolCall(call.Name, err)
	if err != nil {
		r.logger.Warn("tool call failed", "tool", call.Name, "error", err)
		out.Content = fmt.Sprintf("An error occurred: %v", err)
		out.IsError = true
		return out
	}

	r.logger.Debug("tool call completed", "tool", call.Name, "is_error", result.IsError)
	out.Content = result.Content
	out.IsError = result.IsError
	return out
}

// decodeArgs unmarshals args and checks that every named field is non-blank.
func decodeArgs(args json.RawMessage, v any, required map[string]*string) error {
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	for name, value := range required {
		*value = strings.TrimSpace(*value)
		if *value == "" {
			return fmt.Errorf("%w: %s is required", ErrInvalidArgument, name)
		}
	}
	return nil
}

func stringSchema(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}
