package main

import (
	"fmt"

	"github.com/Veraticus/tachyon/internal/agent"
	"github.com/Veraticus/tachyon/internal/cli"
	"github.com/Veraticus/tachyon/internal/config"
	"github.com/Veraticus/tachyon/internal/tools"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func assessCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "assess",
		Short: "Estimate whether a user made a purchase at a location",
		Long: `Run the purchase probability pipeline: a personal estimate from the
user's own receipt history and a public estimate from business documents run
in parallel, then a decision step combines them into a yes/no verdict.

Examples:
  tachyon assess --uid user-1 --location Nellore
  tachyon assess --uid user-1 --location "HSR Layout" --decision weighted --json`,
		RunE: runAssess,
	}

	cmd.Flags().String("uid", "", "user id (required)")
	cmd.Flags().String("location", "", "location to evaluate (required)")
	cmd.Flags().String("decision", "", "decision mode (oracle, weighted)")
	cmd.Flags().String("fanout", "", "fan-out failure policy (best_effort, fail_fast)")
	cmd.Flags().Bool("json", false, "print the assessment as JSON")
	_ = cmd.MarkFlagRequired("uid")
	_ = cmd.MarkFlagRequired("location")

	_ = viper.BindPFlag("pipeline.decision_mode", cmd.Flags().Lookup("decision"))
	_ = viper.BindPFlag("pipeline.fanout_policy", cmd.Flags().Lookup("fanout"))

	return cmd
}

// pipelineOptions maps pipeline settings onto agent options.
func pipelineOptions(c *config.Config) agent.Options {
	return agent.Options{
		FanoutPolicy: agent.FailurePolicy(c.Pipeline.FanoutPolicy),
		DecisionMode: c.Pipeline.DecisionMode,
		Collection:   c.Pipeline.Collection,
		Weights: tools.Weights{
			Personal:  c.Pipeline.PersonalWeight,
			Public:    c.Pipeline.PublicWeight,
			Threshold: c.Pipeline.Threshold,
		},
		MaxToolRounds: c.Pipeline.MaxToolRounds,
	}
}

func runAssess(cmd *cobra.Command, _ []string) error {
	uid, _ := cmd.Flags().GetString("uid")
	location, _ := cmd.Flags().GetString("location")
	asJSON, _ := cmd.Flags().GetBool("json")

	interrupts := cli.NewInterruptHandler(cmd.ErrOrStderr())
	ctx := interrupts.HandleInterrupts(cmd.Context(), "Assessment", "")

	m, _ := newMetrics()

	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	oracle, err := newOracle(ctx, cfg, m)
	if err != nil {
		return err
	}

	pipeline, err := agent.NewPipeline(oracle, st.records, st.documents, pipelineOptions(cfg), logger, m)
	if err != nil {
		return err
	}

	assessment, err := pipeline.Evaluate(ctx, uid, location)
	if err != nil {
		return fmt.Errorf("assessment failed: %w", err)
	}

	if asJSON {
		return writeJSON(cmd, assessment)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), cli.RenderAssessment(assessment))
	return err
}
