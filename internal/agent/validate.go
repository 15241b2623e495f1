package agent

import (
	"errors"
	"fmt"
	"strings"
)

// Graph validation errors.
var (
	ErrUnboundInput    = errors.New("input is not produced upstream")
	ErrDuplicateOutput = errors.New("output key is written twice")
	ErrInvalidStep     = errors.New("invalid step")
)

// Validate checks that every step input is produced by an earlier step or
// the initial keys, that fan-out branches do not read each other's
// outputs, and that every output key is written exactly once.
func Validate(root Step, initial ...string) error {
	available := make(map[string]bool, len(initial))
	written := make(map[string]string)
	for _, k := range initial {
		available[k] = true
		written[k] = "<initial>"
	}
	_, err := validate(root, available, written)
	return err
}

// validate returns the keys the step makes available downstream.
func validate(step Step, available map[string]bool, written map[string]string) ([]string, error) {
	switch s := step.(type) {
	case *ToolStep:
		if s.Run == nil {
			return nil, fmt.Errorf("%w: tool step %q has no function", ErrInvalidStep, s.Name)
		}
		return validateLeaf(s.Name, s.Inputs, s.Output, available, written)

	case *OracleStep:
		if s.Parse == nil {
			return nil, fmt.Errorf("%w: oracle step %q has no parser", ErrInvalidStep, s.Name)
		}
		if s.Render == nil && strings.TrimSpace(s.Prompt) == "" {
			return nil, fmt.Errorf("%w: oracle step %q has no prompt", ErrInvalidStep, s.Name)
		}
		return validateLeaf(s.Name, s.Inputs, s.Output, available, written)

	case *Fanout:
		if len(s.Branches) == 0 {
			return nil, fmt.Errorf("%w: fan-out %q has no branches", ErrInvalidStep, s.Name)
		}
		switch s.Policy {
		case "", BestEffort, FailFast:
		default:
			return nil, fmt.Errorf("%w: fan-out %q has unknown policy %q", ErrInvalidStep, s.Name, s.Policy)
		}
		var produced []string
		for _, branch := range s.Branches {
			// Each branch sees only what existed before the fan-out.
			scope := copySet(available)
			keys, err := validate(branch, scope, written)
			if err != nil {
				return nil, fmt.Errorf("fan-out %q: %w", s.Name, err)
			}
			produced = append(produced, keys...)
		}
		for _, k := range produced {
			available[k] = true
		}
		return produced, nil

	case *Sequence:
		if len(s.Steps) == 0 {
			return nil, fmt.Errorf("%w: sequence %q has no steps", ErrInvalidStep, s.Name)
		}
		var produced []string
		for _, st := range s.Steps {
			keys, err := validate(st, available, written)
			if err != nil {
				return nil, fmt.Errorf("sequence %q: %w", s.Name, err)
			}
			produced = append(produced, keys...)
		}
		return produced, nil

	case nil:
		return nil, fmt.Errorf("%w: nil step", ErrInvalidStep)

	default:
		return nil, fmt.Errorf("%w: unsupported step type %T", ErrInvalidStep, step)
	}
}

func validateLeaf(name string, inputs []string, output string, available map[string]bool, written map[string]string) ([]string, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: step without a name", ErrInvalidStep)
	}
	for _, in := range inputs {
		if !available[in] {
			return nil, fmt.Errorf("step %q reads %q: %w", name, in, ErrUnboundInput)
		}
	}
	if output == "" {
		return nil, fmt.Errorf("%w: step %q has no output key", ErrInvalidStep, name)
	}
	if prev, ok := written[output]; ok {
		return nil, fmt.Errorf("steps %q and %q both write %q: %w", prev, name, output, ErrDuplicateOutput)
	}
	written[output] = name
	available[output] = true
	return []string{output}, nil
}

func copySet(in map[string]bool) map[string]bool {
	out := make(map[string]bool, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
