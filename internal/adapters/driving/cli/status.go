package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/drivesearch-cli/internal/core/domain"
	"github.com/custodia-labs/drivesearch-cli/internal/core/ports/driven"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show index statistics and the stored watermark",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()

	if err := loadStores(); err != nil {
		return err
	}

	state, err := syncStore.Get(ctx)
	switch {
	case err == nil:
		cmd.Printf("Last refresh: %s\n", state.LastRefreshTime.Format("2006-01-02 15:04:05 MST"))
		cmd.Printf("Indexed files: %d\n", state.IndexedFiles)
		cmd.Printf("Indexed chunks: %d\n", state.IndexedChunks)
	case errors.Is(err, domain.ErrNotFound):
		cmd.Println("No refresh recorded yet.")
	default:
		return fmt.Errorf("read sync state: %w", err)
	}

	cmd.Println()
	printIndexStats(ctx, cmd, "Dense", denseStore)
	printIndexStats(ctx, cmd, "Sparse", sparseStore)
	return nil
}

func printIndexStats(ctx context.Context, cmd *cobra.Command, label string, store driven.VectorStore) {
	stats, err := store.Stats(ctx)
	if err != nil {
		cmd.Printf("%s index: unavailable (%v)\n", label, err)
		return
	}
	cmd.Printf("%s index: %s, %d vectors\n", label, stats.Name, stats.VectorCount)
}
