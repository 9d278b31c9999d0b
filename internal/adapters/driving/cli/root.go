// Package cli implements the drivesearch command surface.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/drivesearch-cli/internal/adapters/driven/config/file"
	"github.com/custodia-labs/drivesearch-cli/internal/adapters/driven/pinecone"
	"github.com/custodia-labs/drivesearch-cli/internal/chunker"
	"github.com/custodia-labs/drivesearch-cli/internal/connectors/google"
	"github.com/custodia-labs/drivesearch-cli/internal/connectors/google/drive"
	"github.com/custodia-labs/drivesearch-cli/internal/core/ports/driven"
	"github.com/custodia-labs/drivesearch-cli/internal/core/ports/driving"
	"github.com/custodia-labs/drivesearch-cli/internal/core/services"
	"github.com/custodia-labs/drivesearch-cli/internal/executor"
	"github.com/custodia-labs/drivesearch-cli/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

// Persistent flags.
var (
	verbose   bool
	configDir string
)

// Wired services. Tests preset these; commands build them lazily from
// the settings file otherwise.
var (
	settings      file.Settings
	searchService driving.SearchService
	indexer       driving.Indexer
	syncStore     driven.SyncStateStore
	denseStore    driven.VectorStore
	sparseStore   driven.VectorStore
)

var rootCmd = &cobra.Command{
	Use:   "drivesearch",
	Short: "Hybrid search over a Google Drive corpus",
	Long: `drivesearch indexes Google Drive documents into a dense and a sparse
vector index and answers queries with hybrid retrieval plus reranking.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "config directory (default ~/.drivesearch)")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadStores builds the sync-state store and both vector stores from
// the settings file. Idempotent; tests bypass it by presetting the
// globals.
func loadStores() error {
	if denseStore != nil && sparseStore != nil && syncStore != nil {
		return nil
	}

	var err error
	settings, err = file.LoadSettings(configDir)
	if err != nil {
		return err
	}
	if settings.PineconeAPIKey == "" {
		return fmt.Errorf("no Pinecone API key configured (set %s or pinecone_api_key in config.toml)",
			file.EnvPineconeAPIKey)
	}

	syncStore, err = file.NewStateStore(configDir)
	if err != nil {
		return fmt.Errorf("open state store: %w", err)
	}

	denseStore, err = pinecone.NewStore(pinecone.Config{
		APIKey:    settings.PineconeAPIKey,
		Host:      settings.DenseHost,
		Namespace: settings.Namespace,
		IndexName: settings.DenseIndex,
	})
	if err != nil {
		return fmt.Errorf("dense store: %w", err)
	}

	sparseStore, err = pinecone.NewStore(pinecone.Config{
		APIKey:    settings.PineconeAPIKey,
		Host:      settings.SparseHost,
		Namespace: settings.Namespace,
		IndexName: settings.SparseIndex,
	})
	if err != nil {
		return fmt.Errorf("sparse store: %w", err)
	}
	return nil
}

// ensureSearchService wires the hybrid search service.
func ensureSearchService() error {
	if searchService != nil {
		return nil
	}
	if err := loadStores(); err != nil {
		return err
	}

	reranker, err := pinecone.NewReranker(pinecone.RerankConfig{
		APIKey: settings.PineconeAPIKey,
		Model:  settings.RerankModel,
	})
	if err != nil {
		return fmt.Errorf("reranker: %w", err)
	}

	searchService = services.NewSearchService(denseStore, sparseStore, reranker, executor.New(executor.Config{}))
	return nil
}

// ensureIndexer wires the change detector and indexing pipeline,
// including the Drive content source.
func ensureIndexer(ctx context.Context) error {
	if indexer != nil {
		return nil
	}
	if err := loadStores(); err != nil {
		return err
	}
	if settings.DriveAccessToken == "" {
		return fmt.Errorf("no Drive access token configured (set %s or drive_access_token in config.toml)",
			file.EnvDriveAccessToken)
	}

	svc, err := google.NewDriveService(ctx, google.StaticTokenSource(settings.DriveAccessToken))
	if err != nil {
		return fmt.Errorf("drive service: %w", err)
	}
	source := drive.NewSource(svc)

	ch := chunker.New(
		chunker.WithTargetSize(settings.ChunkSize),
		chunker.WithOverlap(settings.ChunkOverlap),
	)

	indexer = services.NewIndexer(source, denseStore, sparseStore, syncStore, ch, executor.New(executor.Config{}))
	return nil
}
