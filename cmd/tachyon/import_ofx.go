package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Veraticus/tachyon/internal/cli"
	"github.com/Veraticus/tachyon/internal/common"
	"github.com/Veraticus/tachyon/internal/model"
	"github.com/Veraticus/tachyon/internal/ofx"
	"github.com/spf13/cobra"
)

func importOFXCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import-ofx [files...]",
		Short: "Import bank statement debits as purchase records",
		Long: `Import debits from OFX or QFX statements as expense records for a user.
The payee name and address become the record's location.

Examples:
  # Import single file
  tachyon import-ofx --uid user-1 ~/Downloads/hdfc_jan.qfx

  # Import every statement in a directory
  tachyon import-ofx --uid user-1 ~/Downloads/statements/*.ofx`,
		Args: cobra.MinimumNArgs(1),
		RunE: runImportOFX,
	}

	cmd.Flags().String("uid", "", "user id the records belong to (required)")
	cmd.Flags().BoolP("dry-run", "d", false, "Preview import without saving")
	_ = cmd.MarkFlagRequired("uid")

	return cmd
}

// expandFiles resolves glob patterns, keeping literal paths that exist.
func expandFiles(patterns []string) ([]string, error) {
	var files []string
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %s: %w", pattern, err)
		}
		if len(matches) == 0 {
			if _, err := os.Stat(pattern); err == nil {
				files = append(files, pattern)
			} else {
				logger.Warn("No files found matching pattern", "pattern", pattern)
			}
			continue
		}
		files = append(files, matches...)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no files found to import")
	}
	return files, nil
}

// dedupeRecords drops records whose id was already seen.
func dedupeRecords(records []model.ExpenseRecord, seen map[string]bool) []model.ExpenseRecord {
	out := records[:0]
	for _, r := range records {
		if seen[r.ID] {
			continue
		}
		seen[r.ID] = true
		out = append(out, r)
	}
	return out
}

func runImportOFX(cmd *cobra.Command, args []string) error {
	uid, _ := cmd.Flags().GetString("uid")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	files, err := expandFiles(args)
	if err != nil {
		return err
	}

	interrupts := cli.NewInterruptHandler(cmd.ErrOrStderr())
	ctx := interrupts.HandleInterrupts(cmd.Context(), "Import", "Records saved before the interrupt are kept.")

	logger.Info("Importing OFX files", "file_count", len(files), "dry_run", dryRun)

	parser := ofx.NewParser(logger)
	seen := make(map[string]bool)
	var all []model.ExpenseRecord

	for _, path := range files {
		f, err := os.Open(path)
		if err != nil {
			common.LogError(err, "Failed to open file", common.Fields{"file": path})
			continue
		}
		records, err := parser.ParseRecords(ctx, f, uid)
		closeQuietly(f)
		if err != nil {
			common.LogError(err, "Failed to parse OFX file", common.Fields{"file": path})
			continue
		}

		added := dedupeRecords(records, seen)
		all = append(all, added...)
		logger.Info("Processed file",
			"file", filepath.Base(path),
			"records_found", len(records),
			"added", len(added))
	}

	out := cmd.OutOrStdout()
	if len(all) == 0 {
		_, err := fmt.Fprintln(out, cli.FormatWarning("No debits found in any file"))
		return err
	}

	if dryRun {
		for _, r := range all {
			fmt.Fprintf(out, "  %s  %s  %v\n", r.CreatedAt.Format("2006-01-02"), r.Location(), r.Fields["amount"])
		}
		_, err := fmt.Fprintln(out, cli.FormatInfo(fmt.Sprintf("Dry run: %d records not saved", len(all))))
		return err
	}

	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	const batchSize = 50
	bar := cli.NewProgressBar(cmd.ErrOrStderr(), len(all), "Saving records...")
	for start := 0; start < len(all); start += batchSize {
		end := min(start+batchSize, len(all))
		if err := st.records.SaveExpenseRecords(ctx, all[start:end]); err != nil {
			return fmt.Errorf("failed to save records: %w", err)
		}
		_ = bar.Add(end - start)
	}

	_, err = fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Imported %d records for %s", len(all), uid)))
	return err
}
