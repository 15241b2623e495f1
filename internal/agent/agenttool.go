package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Veraticus/tachyon/internal/llm"
	"github.com/Veraticus/tachyon/internal/tools"
)

// RequestKey is the input key an agent tool passes its request under.
const RequestKey = "request"

// AgentTool exposes a nested oracle step as a tool, so one agent can
// delegate work to another. The nested step reads RequestKey.
type AgentTool struct {
	runner      *Runner
	step        *OracleStep
	name        string
	description string
}

// NewAgentTool wraps step for use by another oracle step.
func NewAgentTool(runner *Runner, name, description string, step *OracleStep) *AgentTool {
	return &AgentTool{runner: runner, step: step, name: name, description: description}
}

// Definition describes the delegated agent to the oracle.
func (t *AgentTool) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        t.name,
		Description: t.description,
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				RequestKey: map[string]any{
					"type":        "string",
					"description": "What the agent should look up, in plain language.",
				},
			},
			"required": []string{RequestKey},
		},
	}
}

// Invoke runs the nested step and returns its reply text.
func (t *AgentTool) Invoke(ctx context.Context, args json.RawMessage) (tools.Result, error) {
	var in struct {
		Request string `json:"request"`
	}
	if len(args) > 0 {
		if err := json.Unmarshal(args, &in); err != nil {
			return tools.Result{}, fmt.Errorf("%w: %w", tools.ErrInvalidArgument, err)
		}
	}
	if strings.TrimSpace(in.Request) == "" {
		return tools.Result{}, fmt.Errorf("%w: request is required", tools.ErrInvalidArgument)
	}

	state := NewState(map[string]any{RequestKey: in.Request})
	out, err := t.runner.runOracle(ctx, t.step, state.snapshot([]string{RequestKey}))
	if err != nil {
		return tools.Result{}, err
	}
	return tools.Result{Content: fmt.Sprint(out)}, nil
}
