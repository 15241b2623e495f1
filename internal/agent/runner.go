package agent

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"text/template"
	"time"

	"github.com/Veraticus/tachyon/internal/llm"
	"github.com/Veraticus/tachyon/internal/metrics"
	"golang.org/x/sync/errgroup"
)

// DefaultMaxToolRounds bounds how many tool-call turns an oracle step may take.
const DefaultMaxToolRounds = 5

// Runner errors.
var (
	ErrToolRoundsExceeded = errors.New("oracle kept calling tools past the round limit")
	ErrUnexpectedToolCall = errors.New("oracle called a tool on a step without tools")
)

// StepError identifies the step that failed.
type StepError struct {
	Err  error
	Step string
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Runner interprets task graphs against an oracle.
type Runner struct {
	oracle        llm.Client
	logger        *slog.Logger
	metrics       *metrics.Metrics
	maxToolRounds int
}

// NewRunner creates a runner. A non-positive maxToolRounds uses DefaultMaxToolRounds.
func NewRunner(oracle llm.Client, maxToolRounds int, logger *slog.Logger, m *metrics.Metrics) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if maxToolRounds <= 0 {
		maxToolRounds = DefaultMaxToolRounds
	}
	return &Runner{
		oracle:        oracle,
		logger:        logger,
		metrics:       m,
		maxToolRounds: maxToolRounds,
	}
}

// Run validates root against the initial keys and executes it.
func (r *Runner) Run(ctx context.Context, root Step, initial map[string]any) (*State, error) {
	keys := make([]string, 0, len(initial))
	for k := range initial {
		keys = append(keys, k)
	}
	if err := Validate(root, keys...); err != nil {
		return nil, err
	}

	state := NewState(initial)
	if err := r.exec(ctx, root, state); err != nil {
		return state, err
	}
	return state, nil
}

func (r *Runner) exec(ctx context.Context, step Step, state *State) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	switch s := step.(type) {
	case *ToolStep:
		return r.leaf(s.Name, s.Output, func() (any, error) {
			return s.Run(ctx, state.snapshot(s.Inputs))
		}, state)

	case *OracleStep:
		return r.leaf(s.Name, s.Output, func() (any, error) {
			return r.runOracle(ctx, s, state.snapshot(s.Inputs))
		}, state)

	case *Sequence:
		for _, st := range s.Steps {
			if err := r.exec(ctx, st, state); err != nil {
				return err
			}
		}
		return nil

	case *Fanout:
		return r.fanout(ctx, s, state)

	default:
		return fmt.Errorf("%w: unsupported step type %T", ErrInvalidStep, step)
	}
}

func (r *Runner) leaf(name, output string, run func() (any, error), state *State) error {
	start := time.Now()
	value, err := run()
	r.metrics.ObserveStep(name, err, time.Since(start))
	if err != nil {
		r.logger.Warn("step failed", "step", name, "error", err, "duration", time.Since(start))
		return &StepError{Step: name, Err: err}
	}
	r.logger.Debug("step completed", "step", name, "duration", time.Since(start))
	state.Set(output, value)
	return nil
}

// fanout joins every branch before returning. Under BestEffort a failed
// branch marks its outputs as failed; under FailFast the first failure
// cancels the siblings and is returned.
func (r *Runner) fanout(ctx context.Context, s *Fanout, state *State) error {
	policy := s.Policy
	if policy == "" {
		policy = BestEffort
	}

	if policy == FailFast {
		g, gctx := errgroup.WithContext(ctx)
		for _, branch := range s.Branches {
			g.Go(func() error {
				return r.exec(gctx, branch, state)
			})
		}
		return g.Wait()
	}

	var g errgroup.Group
	failures := make([]error, len(s.Branches))
	for i, branch := range s.Branches {
		g.Go(func() error {
			if err := r.exec(ctx, branch, state); err != nil {
				failures[i] = err
				for _, key := range Outputs(branch) {
					if _, ok := state.Get(key); !ok {
						state.Fail(key, err)
					}
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	var failed int
	for _, err := range failures {
		if err != nil {
			failed++
		}
	}
	if failed == len(s.Branches) {
		return fmt.Errorf("fan-out %s: every branch failed: %w", s.Name, errors.Join(failures...))
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return nil
}

func (r *Runner) runOracle(ctx context.Context, s *OracleStep, in Inputs) (any, error) {
	prompt, err := renderPrompt(s, in)
	if err != nil {
		return nil, err
	}

	req := llm.Request{
		System:   s.System,
		Messages: []llm.Message{llm.UserText(prompt)},
		JSON:     s.JSON,
	}
	if s.Tools != nil && s.Tools.Len() > 0 {
		req.Tools = s.Tools.Definitions()
	}

	for round := 0; ; round++ {
		resp, err := r.oracle.Generate(ctx, req)
		if err != nil {
			return nil, err
		}
		if len(resp.ToolCalls) == 0 {
			return s.Parse(resp.Text)
		}
		if len(req.Tools) == 0 {
			return nil, fmt.Errorf("%w: %s", ErrUnexpectedToolCall, resp.ToolCalls[0].Name)
		}
		if round >= r.maxToolRounds {
			return nil, fmt.Errorf("%w (%d)", ErrToolRoundsExceeded, r.maxToolRounds)
		}

		results := make([]llm.ToolResult, len(resp.ToolCalls))
		for i, call := range resp.ToolCalls {
			r.logger.Debug("oracle requested tool", "step", s.Name, "tool", call.Name, "round", round+1)
			results[i] = s.Tools.Execute(ctx, call)
		}
		req.Messages = append(req.Messages,
			llm.ModelToolCalls(resp.Text, resp.ToolCalls),
			llm.ToolResults(results),
		)
	}
}

func renderPrompt(s *OracleStep, in Inputs) (string, error) {
	if s.Render != nil {
		return s.Render(in)
	}
	tmpl, err := template.New(s.Name).Option("missingkey=error").Parse(s.Prompt)
	if err != nil {
		return "", fmt.Errorf("parse prompt for %s: %w", s.Name, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, in.Values()); err != nil {
		return "", fmt.Errorf("render prompt for %s: %w", s.Name, err)
	}
	return buf.String(), nil
}
