package model

import "time"

// ProbabilitySource names the branch that produced a probability.
type ProbabilitySource string

// Probability sources.
const (
	SourcePersonal ProbabilitySource = "personal"
	SourcePublic   ProbabilitySource = "public"
)

// ProbabilityResult is the outcome of one probability branch.
// Value is a percentage between 0 and 100.
type ProbabilityResult struct {
	Source   ProbabilitySource `json:"source"`
	Summary  string            `json:"summary,omitempty"`
	Err      string            `json:"error,omitempty"`
	Evidence []string          `json:"evidence,omitempty"`
	Value    float64           `json:"probability"`
	NoData   bool              `json:"noData,omitempty"`
}

// Available reports whether the branch produced a usable value.
func (p ProbabilityResult) Available() bool {
	return p.Err == "" && !p.NoData
}

// Decision is the terminal verdict of the purchase probability pipeline.
type Decision struct {
	Score     *float64 `json:"score,omitempty"`
	Rationale string   `json:"rationale"`
	Verdict   bool     `json:"verdict"`
}

// Answer renders the verdict as the yes/no the decision step is asked for.
func (d Decision) Answer() string {
	if d.Verdict {
		return "yes"
	}
	return "no"
}

// Assessment bundles everything one pipeline run produced.
type Assessment struct {
	UID      string            `json:"uid"`
	Location string            `json:"location"`
	Personal ProbabilityResult `json:"personal"`
	Public   ProbabilityResult `json:"public"`
	Decision Decision          `json:"decision"`
	Duration time.Duration     `json:"duration"`
}
