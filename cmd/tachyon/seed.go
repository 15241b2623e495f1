package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/tachyon/internal/cli"
	"github.com/Veraticus/tachyon/internal/model"
	"github.com/spf13/cobra"
)

// defaultSeedUID is the demo user the sample records belong to.
const defaultSeedUID = "a36fcca2-70e1-4eeb-9f25-565de0ecfc32"

var sampleLocations = []string{
	"20, Kala Circle, Nellore-128613",
	"15, Main Street, Bangalore-560001",
	"Shop 5, Market Square, Nellore-128613",
	"7, Tech Park, Hyderabad-500081",
}

// documentWriter is implemented by stores that accept documents.
type documentWriter interface {
	PutDocument(ctx context.Context, collection, id string, data map[string]any) error
}

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Replace a user's records with the sample receipt history",
		Long: `Delete every record for the user and insert four sample receipts:
two in Nellore, one in Bangalore and one in Hyderabad. When the document
store accepts writes, the same receipts are stored as documents too.`,
		Args: cobra.NoArgs,
		RunE: runSeed,
	}
	cmd.Flags().String("uid", defaultSeedUID, "user id to seed")
	return cmd
}

// sampleRecords builds the sample receipts for uid, one hour apart ending at now.
func sampleRecords(uid string, now time.Time) []model.ExpenseRecord {
	records := make([]model.ExpenseRecord, len(sampleLocations))
	for i, location := range sampleLocations {
		records[i] = model.ExpenseRecord{
			ID:        fmt.Sprintf("%s/doc%d", uid, i+1),
			UserID:    uid,
			GeoInfo:   model.GeoInfoFromLocation(location),
			CreatedAt: now.Add(-time.Duration(len(sampleLocations)-i) * time.Hour).UTC(),
			Fields:    map[string]any{"other_field": fmt.Sprintf("value%d", i+1)},
		}
	}
	return records
}

func runSeed(cmd *cobra.Command, _ []string) error {
	uid, _ := cmd.Flags().GetString("uid")
	ctx := cmd.Context()

	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	deleted, err := st.records.DeleteUserRecords(ctx, uid)
	if err != nil {
		return fmt.Errorf("failed to clear records: %w", err)
	}
	logger.Info("cleared existing records", "uid", uid, "deleted", deleted)

	records := sampleRecords(uid, time.Now())
	writer, canWrite := st.documents.(documentWriter)

	bar := cli.NewProgressBar(cmd.ErrOrStderr(), len(records), "Seeding records...")
	for _, record := range records {
		if err := st.records.SaveExpenseRecords(ctx, []model.ExpenseRecord{record}); err != nil {
			return fmt.Errorf("failed to save record %s: %w", record.ID, err)
		}
		if canWrite {
			data := map[string]any{"uid": record.UserID, "geoInfo": record.GeoInfo}
			for k, v := range record.Fields {
				data[k] = v
			}
			docID := strings.TrimPrefix(record.ID, uid+"/")
			if err := writer.PutDocument(ctx, cfg.Pipeline.Collection, docID, data); err != nil {
				return fmt.Errorf("failed to save document %s: %w", docID, err)
			}
		}
		_ = bar.Add(1)
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Seeded %d records for %s", len(records), uid)))
	return err
}
