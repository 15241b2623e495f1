package main

import (
	"fmt"

	"github.com/Veraticus/tachyon/internal/cli"
	"github.com/Veraticus/tachyon/internal/notify"
	"github.com/spf13/cobra"
)

func notificationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notifications",
		Short: "Show purchase-location notifications for a user",
		Long: `List notifications for the user's most frequent purchase locations.
Locations at or above the threshold share of the user's history are reported
as probable purchases; the rest as places worth visiting again.`,
		Args: cobra.NoArgs,
		RunE: runNotifications,
	}
	cmd.Flags().String("uid", "", "user id (required)")
	cmd.Flags().Int("max", 4, "maximum number of notifications")
	cmd.Flags().Float64("threshold", notify.DefaultThreshold, "probability percent for a probable purchase")
	cmd.Flags().Bool("json", false, "print notifications as JSON")
	_ = cmd.MarkFlagRequired("uid")
	return cmd
}

func runNotifications(cmd *cobra.Command, _ []string) error {
	uid, _ := cmd.Flags().GetString("uid")
	maxLocations, _ := cmd.Flags().GetInt("max")
	threshold, _ := cmd.Flags().GetFloat64("threshold")
	asJSON, _ := cmd.Flags().GetBool("json")

	st, err := openStores(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	notifier := notify.NewNotifier(st.records, notify.Options{
		HistoryLimit: cfg.Query.HistoryLimit,
		MaxLocations: maxLocations,
		Threshold:    threshold,
	}, logger)

	notes, err := notifier.Notifications(cmd.Context(), uid)
	if err != nil {
		return err
	}

	if asJSON {
		return writeJSON(cmd, notes)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, cli.FormatTitle("Notifications"))
	_, err = fmt.Fprintln(out, cli.RenderNotifications(notes))
	return err
}
