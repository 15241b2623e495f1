package agent

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"text/template"
	"time"

	"github.com/Veraticus/tachyon/internal/common"
	"github.com/Veraticus/tachyon/internal/llm"
	"github.com/Veraticus/tachyon/internal/metrics"
	"github.com/Veraticus/tachyon/internal/model"
	"github.com/Veraticus/tachyon/internal/service"
	"github.com/Veraticus/tachyon/internal/tools"
)

// State keys used by the purchase probability graph.
const (
	KeyUID        = "uid"
	KeyLocation   = "location"
	KeyCollection = "collection"
	KeyPersonal   = "personal"
	KeyPublic     = "public"
	KeyDecision   = "decision"
)

// Decision modes.
const (
	DecisionOracle   = "oracle"
	DecisionWeighted = "weighted"
)

// DocumentReaderAgent is the tool name of the nested reader agent.
const DocumentReaderAgent = "document_reader"

// Options configures the purchase probability pipeline.
type Options struct {
	FanoutPolicy  FailurePolicy
	DecisionMode  string
	Collection    string
	Weights       tools.Weights
	MaxToolRounds int
}

// Pipeline evaluates whether a user made a purchase at a location by running
// the personal and public branches concurrently and then a decision step.
type Pipeline struct {
	runner  *Runner
	root    Step
	logger  *slog.Logger
	metrics *metrics.Metrics
	opts    Options
}

// NewPipeline builds and validates the purchase probability graph.
func NewPipeline(oracle llm.Client, counter service.RecordCounter, reader service.DocumentReader, opts Options, logger *slog.Logger, m *metrics.Metrics) (*Pipeline, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.FanoutPolicy == "" {
		opts.FanoutPolicy = BestEffort
	}
	if opts.DecisionMode == "" {
		opts.DecisionMode = DecisionOracle
	}
	if opts.Collection == "" {
		opts.Collection = "item_metadata"
	}

	runner := NewRunner(oracle, opts.MaxToolRounds, logger, m)
	root, err := BuildGraph(runner, counter, reader, opts, logger, m)
	if err != nil {
		return nil, err
	}

	return &Pipeline{runner: runner, root: root, logger: logger, metrics: m, opts: opts}, nil
}

// BuildGraph assembles the task graph: Sequence{Fanout{personal, public}, decision}.
func BuildGraph(runner *Runner, counter service.RecordCounter, reader service.DocumentReader, opts Options, logger *slog.Logger, m *metrics.Metrics) (Step, error) {
	readerStep := &OracleStep{
		Name:   "document_reader",
		Output: "reader_reply",
		Inputs: []string{RequestKey},
		System: readerSystem,
		Prompt: "{{.request}}",
		Tools:  tools.NewRegistry(logger, m, tools.NewDocumentReader(reader, logger)),
		Parse:  func(text string) (any, error) { return strings.TrimSpace(text), nil },
	}

	personal := &OracleStep{
		Name:   "personal_probability",
		Output: KeyPersonal,
		Inputs: []string{KeyUID, KeyLocation},
		System: personalSystem,
		Prompt: personalPrompt,
		Tools:  tools.NewRegistry(logger, m, tools.NewLocationProbability(counter, logger)),
		Parse: func(text string) (any, error) {
			return ParseProbability(model.SourcePersonal, text)
		},
	}

	public := &OracleStep{
		Name:   "public_probability",
		Output: KeyPublic,
		Inputs: []string{KeyUID, KeyLocation, KeyCollection},
		System: publicSystem,
		Prompt: publicPrompt,
		Tools: tools.NewRegistry(logger, m, NewAgentTool(runner, DocumentReaderAgent,
			"Delegates document lookups to an agent that reads the document database.", readerStep)),
		Parse: func(text string) (any, error) {
			return ParseProbability(model.SourcePublic, text)
		},
	}

	var decision Step
	switch opts.DecisionMode {
	case DecisionOracle:
		decision = &OracleStep{
			Name:   "decision",
			Output: KeyDecision,
			Inputs: []string{KeyUID, KeyLocation, KeyPersonal, KeyPublic},
			System: decisionSystem,
			Render: renderDecisionPrompt,
			JSON:   true,
			Parse: func(text string) (any, error) {
				return ParseDecision(text)
			},
		}
	case DecisionWeighted:
		weights := opts.Weights
		decision = &ToolStep{
			Name:   "weighted_decision",
			Output: KeyDecision,
			Inputs: []string{KeyPersonal, KeyPublic},
			Run: func(_ context.Context, in Inputs) (any, error) {
				return tools.Combine(
					BranchResult(in, KeyPersonal, model.SourcePersonal),
					BranchResult(in, KeyPublic, model.SourcePublic),
					weights,
				), nil
			},
		}
	default:
		return nil, fmt.Errorf("%w: unknown decision mode %q", common.ErrInvalidConfig, opts.DecisionMode)
	}

	root := &Sequence{
		Name: "purchase_probability",
		Steps: []Step{
			&Fanout{
				Name:     "probability_calculator",
				Policy:   opts.FanoutPolicy,
				Branches: []Step{personal, public},
			},
			decision,
		},
	}

	if err := Validate(root, KeyUID, KeyLocation, KeyCollection); err != nil {
		return nil, err
	}
	if err := Validate(readerStep, RequestKey); err != nil {
		return nil, err
	}
	return root, nil
}

// Evaluate runs the graph for uid and location.
func (p *Pipeline) Evaluate(ctx context.Context, uid, location string) (*model.Assessment, error) {
	uid = strings.TrimSpace(uid)
	location = strings.TrimSpace(location)
	if uid == "" || location == "" {
		return nil, fmt.Errorf("%w: uid and location are required", tools.ErrInvalidArgument)
	}

	start := time.Now()
	state, err := p.runner.Run(ctx, p.root, map[string]any{
		KeyUID:        uid,
		KeyLocation:   location,
		KeyCollection: p.opts.Collection,
	})
	if err != nil {
		p.metrics.ObserveAssessment("error", time.Since(start))
		return nil, fmt.Errorf("evaluate %s at %s: %w", uid, location, err)
	}

	in := state.snapshot([]string{KeyPersonal, KeyPublic, KeyDecision})
	decisionValue, _ := in.Value(KeyDecision)
	decision, ok := decisionValue.(model.Decision)
	if !ok {
		p.metrics.ObserveAssessment("error", time.Since(start))
		return nil, errors.New("decision step produced no decision")
	}

	assessment := &model.Assessment{
		UID:      uid,
		Location: location,
		Personal: BranchResult(in, KeyPersonal, model.SourcePersonal),
		Public:   BranchResult(in, KeyPublic, model.SourcePublic),
		Decision: decision,
		Duration: time.Since(start),
	}
	p.metrics.ObserveAssessment(decision.Answer(), assessment.Duration)
	p.logger.Info("purchase probability assessed",
		"uid", uid,
		"location", location,
		"verdict", decision.Answer(),
		"duration", assessment.Duration)
	return assessment, nil
}

// BranchResult returns a branch's result, turning a recorded failure into
// a result carrying the error text.
func BranchResult(in Inputs, key string, source model.ProbabilitySource) model.ProbabilityResult {
	if v, ok := in.Value(key); ok {
		if result, ok := v.(model.ProbabilityResult); ok {
			return result
		}
	}
	result := model.ProbabilityResult{Source: source, Err: "no result"}
	if err := in.Err(key); err != nil {
		result.Err = err.Error()
	}
	return result
}

var decisionHeader = template.Must(template.New("decision").Parse(decisionPromptHeader))

func renderDecisionPrompt(in Inputs) (string, error) {
	var buf bytes.Buffer
	if err := decisionHeader.Execute(&buf, in.Values()); err != nil {
		return "", fmt.Errorf("render decision prompt: %w", err)
	}

	for _, branch := range []struct {
		key    string
		label  string
		source model.ProbabilitySource
	}{
		{KeyPersonal, "Personal estimate (from the user's own history)", model.SourcePersonal},
		{KeyPublic, "Public estimate (from similar shoppers near the location)", model.SourcePublic},
	} {
		result := BranchResult(in, branch.key, branch.source)
		fmt.Fprintf(&buf, "%s:\n", branch.label)
		switch {
		case result.Err != "":
			fmt.Fprintf(&buf, "- unavailable: %s\n", result.Err)
		case result.NoData:
			fmt.Fprintf(&buf, "- no data: %s\n", result.Summary)
		default:
			fmt.Fprintf(&buf, "- probability: %.2f%%\n", result.Value)
			if result.Summary != "" {
				fmt.Fprintf(&buf, "- summary: %s\n", result.Summary)
			}
			for _, e := range result.Evidence {
				fmt.Fprintf(&buf, "- evidence: %s\n", e)
			}
		}
	}

	buf.WriteString(decisionPromptFooter)
	return buf.String(), nil
}
