// Package agent implements the purchase probability pipeline as an explicit
// task graph of tool, oracle, fan-out and sequence steps, run by a Runner.
package agent

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/Veraticus/tachyon/internal/tools"
)

// Step is one node of a task graph: *ToolStep, *OracleStep, *Fanout or *Sequence.
type Step interface {
	StepName() string
}

// ToolStep runs a deterministic Go function over its inputs.
type ToolStep struct {
	Run    func(ctx context.Context, in Inputs) (any, error)
	Name   string
	Output string
	Inputs []string
}

// OracleStep asks the oracle to answer a prompt, letting it call Tools
// until it produces a final reply that Parse turns into the output value.
type OracleStep struct {
	Tools *tools.Registry
	// Render builds the prompt. When nil, Prompt is executed as a
	// text/template over the input values.
	Render func(in Inputs) (string, error)
	Parse  func(text string) (any, error)
	Name   string
	Output string
	System string
	Prompt string
	Inputs []string
	// JSON requests a JSON reply when the step has no tools.
	JSON bool
}

// FailurePolicy decides what a Fanout does when a branch fails.
type FailurePolicy string

// Failure policies.
const (
	// BestEffort records the failure against the branch outputs and lets
	// the remaining branches finish.
	BestEffort FailurePolicy = "best_effort"
	// FailFast cancels the other branches and fails the fan-out.
	FailFast FailurePolicy = "fail_fast"
)

// Fanout runs its branches concurrently and joins them before returning.
// Branches cannot read each other's outputs.
type Fanout struct {
	Name     string
	Policy   FailurePolicy
	Branches []Step
}

// Sequence runs its steps in order.
type Sequence struct {
	Name  string
	Steps []Step
}

// StepName implements Step.
func (s *ToolStep) StepName() string { return s.Name }

// StepName implements Step.
func (s *OracleStep) StepName() string { return s.Name }

// StepName implements Step.
func (s *Fanout) StepName() string { return s.Name }

// StepName implements Step.
func (s *Sequence) StepName() string { return s.Name }

// Outputs lists every key a step writes, in graph order.
func Outputs(step Step) []string {
	switch s := step.(type) {
	case *ToolStep:
		return []string{s.Output}
	case *OracleStep:
		return []string{s.Output}
	case *Fanout:
		var keys []string
		for _, b := range s.Branches {
			keys = append(keys, Outputs(b)...)
		}
		return keys
	case *Sequence:
		var keys []string
		for _, st := range s.Steps {
			keys = append(keys, Outputs(st)...)
		}
		return keys
	default:
		return nil
	}
}

// State is the shared key/value store a graph run reads and writes.
type State struct {
	values map[string]any
	errs   map[string]error
	mu     sync.RWMutex
}

// NewState seeds a state with initial values.
func NewState(initial map[string]any) *State {
	s := &State{values: make(map[string]any, len(initial)), errs: make(map[string]error)}
	for k, v := range initial {
		s.values[k] = v
	}
	return s
}

// Set stores a value.
func (s *State) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	delete(s.errs, key)
}

// Fail records that the step producing key failed.
func (s *State) Fail(key string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs[key] = err
}

// Get returns the value stored under key.
func (s *State) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// Err returns the failure recorded for key, if any.
func (s *State) Err(key string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.errs[key]
}

// Keys lists the stored keys in sorted order.
func (s *State) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// snapshot copies the named keys into an Inputs.
func (s *State) snapshot(keys []string) Inputs {
	s.mu.RLock()
	defer s.mu.RUnlock()
	in := Inputs{values: make(map[string]any, len(keys)), errs: make(map[string]error)}
	for _, k := range keys {
		if v, ok := s.values[k]; ok {
			in.values[k] = v
		}
		if err, ok := s.errs[k]; ok {
			in.errs[k] = err
		}
	}
	return in
}

// Inputs is the read-only view of state handed to a step.
type Inputs struct {
	values map[string]any
	errs   map[string]error
}

// Value returns the input stored under key.
func (in Inputs) Value(key string) (any, bool) {
	v, ok := in.values[key]
	return v, ok
}

// String returns the input under key formatted as text.
func (in Inputs) String(key string) string {
	v, ok := in.values[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Err returns the failure recorded for key by an upstream best-effort fan-out.
func (in Inputs) Err(key string) error {
	return in.errs[key]
}

// Values returns the inputs as a map for template rendering.
func (in Inputs) Values() map[string]any {
	out := make(map[string]any, len(in.values))
	for k, v := range in.values {
		out[k] = v
	}
	return out
}
