package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/drivesearch-cli/internal/core/domain"
	"github.com/custodia-labs/drivesearch-cli/internal/core/ports/driving"
)

var (
	refreshDryRun    bool
	refreshForceFull bool
	refreshSince     string
	refreshLimit     int
	refreshWorkers   int
	refreshFileTypes []string
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Synchronise the index with Drive",
	Long: `Detects new, modified and deleted documents since the last refresh
and applies the changes to both vector indexes. Per-document failures
are reported at the end; they never abort the run.`,
	Args: cobra.NoArgs,
	RunE: runRefresh,
}

func init() {
	refreshCmd.Flags().BoolVar(&refreshDryRun, "dry-run", false,
		"detect and chunk but issue no writes or deletes")
	refreshCmd.Flags().BoolVar(&refreshForceFull, "force-full", false,
		"re-index every listed document regardless of the watermark")
	refreshCmd.Flags().StringVar(&refreshSince, "since", "",
		"comparison floor override (2006-01-02 or RFC3339)")
	refreshCmd.Flags().IntVar(&refreshLimit, "limit", 0,
		"bound the number of processed documents (0 = no limit)")
	refreshCmd.Flags().IntVar(&refreshWorkers, "workers", 0,
		"concurrent document workers (default 4)")
	refreshCmd.Flags().StringSliceVar(&refreshFileTypes, "file-types", nil,
		"restrict to file types (docs, sheets, slides, plaintext)")
	rootCmd.AddCommand(refreshCmd)
}

func runRefresh(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()

	fileTypes, err := parseFileTypes(refreshFileTypes)
	if err != nil {
		return err
	}
	since, err := parseSince(refreshSince)
	if err != nil {
		return err
	}
	if err := ensureIndexer(ctx); err != nil {
		return err
	}

	opts := domain.DetectOptions{
		Since:     since,
		ForceFull: refreshForceFull,
		FileTypes: fileTypes,
		Limit:     refreshLimit,
	}

	state, err := syncStore.Get(ctx)
	switch {
	case err == nil:
		opts.Watermark = state.LastRefreshTime
	case errors.Is(err, domain.ErrNotFound):
		cmd.Println("No previous refresh recorded, performing a full index.")
	default:
		return fmt.Errorf("read sync state: %w", err)
	}

	changes, err := indexer.Detect(ctx, opts)
	if err != nil {
		return fmt.Errorf("change detection failed: %w", err)
	}

	cmd.Printf("Detected %d new, %d modified, %d deleted.\n",
		len(changes.New), len(changes.Modified), len(changes.Deleted))
	if changes.Empty() {
		cmd.Println("Index is up to date.")
		return nil
	}

	summary, err := indexer.Run(ctx, changes, driving.RunOptions{
		DryRun:  refreshDryRun,
		Workers: refreshWorkers,
	})
	if err != nil {
		return fmt.Errorf("indexing run failed: %w", err)
	}

	printSummary(cmd, summary)
	return nil
}

func printSummary(cmd *cobra.Command, summary domain.RunSummary) {
	if summary.Mode == domain.RunModeDryRun {
		cmd.Println("Dry run, no changes were written.")
	}
	cmd.Printf("Processed %d documents (%d chunks), deleted %d, skipped %d.\n",
		summary.Processed, summary.Chunks, summary.Deleted, summary.Skipped)

	if summary.Failed() > 0 {
		cmd.Printf("%d documents failed:\n", summary.Failed())
		for _, f := range summary.Failures {
			name := f.Name
			if name == "" {
				name = f.DocumentID
			}
			cmd.Printf("  %s: %s\n", name, f.Reason)
		}
	}

	if len(summary.Warnings) > 0 {
		cmd.Printf("%d consistency warnings, re-run refresh for the affected documents:\n",
			len(summary.Warnings))
		for _, w := range summary.Warnings {
			cmd.Printf("  %s\n", w)
		}
	}
}

// parseSince accepts a date or a full RFC3339 timestamp.
func parseSince(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid --since value %q (want 2006-01-02 or RFC3339)", value)
}
