package main

import (
	"fmt"
	"os"

	"github.com/Veraticus/tachyon/internal/cli"
	"github.com/Veraticus/tachyon/internal/config"
	"github.com/Veraticus/tachyon/internal/model"
	"github.com/Veraticus/tachyon/internal/query"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func queryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Ask a question about a user's purchases by text or voice",
		Long: `Answer a spending question from the user's recent purchase history.

In text mode the question comes from --query, or is prompted for when omitted.
In voice mode the question is read from the recording at query.audio_input and
the spoken answer is written to query.audio_output.

Examples:
  tachyon query --name alice --query "How much did I spend on medicine?"
  tachyon query --name alice --mode voice --input question.wav --output answer.wav`,
		RunE: runQuery,
	}

	cmd.Flags().String("name", "", "user whose history is searched (required)")
	cmd.Flags().String("mode", string(query.ModeText), "input mode (text, voice)")
	cmd.Flags().String("query", "", "question text for text mode")
	cmd.Flags().String("history", "", "history source (sample, store)")
	cmd.Flags().String("input", "", "recording to read in voice mode")
	cmd.Flags().String("output", "", "file the spoken answer is written to")
	cmd.Flags().Bool("json", false, "print the result as JSON")
	_ = cmd.MarkFlagRequired("name")

	_ = viper.BindPFlag("query.history", cmd.Flags().Lookup("history"))
	_ = viper.BindPFlag("query.audio_input", cmd.Flags().Lookup("input"))
	_ = viper.BindPFlag("query.audio_output", cmd.Flags().Lookup("output"))

	return cmd
}

func runQuery(cmd *cobra.Command, _ []string) error {
	name, _ := cmd.Flags().GetString("name")
	modeName, _ := cmd.Flags().GetString("mode")
	text, _ := cmd.Flags().GetString("query")
	asJSON, _ := cmd.Flags().GetBool("json")

	mode, err := query.ParseMode(modeName)
	if err != nil {
		return err
	}

	interrupts := cli.NewInterruptHandler(cmd.ErrOrStderr())
	ctx := interrupts.HandleInterrupts(cmd.Context(), "Query", "")

	if mode == query.ModeText && text == "" {
		text, err = cli.NewNonBlockingReader(os.Stdin).Prompt(ctx, cmd.OutOrStdout(), "Your question")
		if err != nil {
			return err
		}
	}

	m, _ := newMetrics()
	oracle, err := newOracle(ctx, cfg, m)
	if err != nil {
		return err
	}

	var history query.HistorySource
	if cfg.Query.History == "store" {
		st, err := openStores(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close()
		history = query.NewStoreHistory(st.records, cfg.Query.HistoryLimit)
	} else {
		history = query.NewSampleHistory(0, nil)
	}

	opts := []query.Option{query.WithMetrics(m)}
	if mode == query.ModeVoice {
		synth, err := query.NewTTSSynthesizer(ctx, cfg.Google.CredentialsFile, logger)
		if err != nil {
			return err
		}
		opts = append(opts, query.WithVoice(
			query.FileRecorder{Path: cfg.Query.AudioInput},
			synth,
			query.FileSpeaker{Path: cfg.Query.AudioOutput},
		))
	}

	result, err := query.NewPipeline(oracle, history, logger, opts...).Process(ctx, name, mode, text)
	if err != nil {
		return err
	}

	return printQueryResult(cmd, result, mode, cfg, asJSON)
}

func printQueryResult(cmd *cobra.Command, result *model.QueryResult, mode query.Mode, c *config.Config, asJSON bool) error {
	if asJSON {
		return writeJSON(cmd, result)
	}

	out := cmd.OutOrStdout()
	if _, err := fmt.Fprintln(out, cli.RenderQueryResult(result)); err != nil {
		return err
	}
	if mode == query.ModeVoice {
		_, err := fmt.Fprintln(out, cli.FormatInfo(cli.SpeakIcon+" Spoken answer written to "+c.Query.AudioOutput))
		return err
	}
	return nil
}
