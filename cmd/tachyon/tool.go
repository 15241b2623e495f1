package main

import (
	"errors"
	"fmt"

	"github.com/Veraticus/tachyon/internal/cli"
	"github.com/Veraticus/tachyon/internal/common"
	"github.com/Veraticus/tachyon/internal/tools"
	"github.com/spf13/cobra"
)

func toolCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tool",
		Short: "Run a single pipeline tool without the oracle",
	}
	cmd.AddCommand(toolLocationCmd())
	cmd.AddCommand(toolDocumentCmd())
	return cmd
}

func toolLocationCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "location <uid> <location>",
		Short: "Compute the share of a user's receipts recorded at a location",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStores(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			tool := tools.NewLocationProbability(st.records, logger)
			result, err := tool.Calculate(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}

			msg := cli.FormatInfo(result.Summary)
			if result.NoData {
				msg = cli.FormatWarning(result.Summary)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), msg)
			return err
		},
	}
}

func toolDocumentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "document <collection> <id>",
		Short: "Read one document from the document store",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStores(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			reader := tools.NewDocumentReader(st.documents, logger)
			doc, err := reader.Read(cmd.Context(), args[0], args[1])
			if errors.Is(err, common.ErrNotFound) {
				return common.NewUserError(tools.NotFoundMessage(args[0], args[1]), err)
			}
			if err != nil {
				return err
			}

			return writeJSON(cmd, doc)
		},
	}
}
