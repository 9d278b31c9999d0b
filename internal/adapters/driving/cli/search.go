package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/drivesearch-cli/internal/core/domain"
)

var (
	searchLimit     int
	searchJSON      bool
	searchMinScore  float64
	searchFileTypes []string
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search indexed documents",
	Long: `Performs hybrid search across the indexed Drive corpus.
Dense (semantic) and sparse (keyword) results are merged, deduplicated
to one chunk per document and reranked.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "maximum number of results")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	searchCmd.Flags().Float64Var(&searchMinScore, "min-score", 0,
		"drop results scoring below this value")
	searchCmd.Flags().StringSliceVar(&searchFileTypes, "file-types", nil,
		"restrict results to file types (docs, sheets, slides, plaintext)")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := args[0]

	fileTypes, err := parseFileTypes(searchFileTypes)
	if err != nil {
		return err
	}
	if err := ensureSearchService(); err != nil {
		return err
	}

	results, err := searchService.Search(context.Background(), query, domain.SearchOptions{
		Limit:     searchLimit,
		FileTypes: fileTypes,
	})
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchMinScore > 0 {
		results = filterMinScore(results, searchMinScore)
	}

	if searchJSON {
		return outputSearchJSON(cmd, results)
	}
	return outputSearchTable(cmd, results)
}

func outputSearchJSON(cmd *cobra.Command, results []domain.SearchResult) error {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputSearchTable(cmd *cobra.Command, results []domain.SearchResult) error {
	if len(results) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	cmd.Println("Results:")
	cmd.Println()
	for i, r := range results {
		name := r.Metadata.FileName
		if name == "" {
			name = r.Metadata.FileID
		}

		cmd.Printf("  [%d] %s (%.3f)\n", i+1, name, r.Score)
		cmd.Printf("      Type: %s, chunk %d\n", r.Metadata.FileType, r.Metadata.ChunkIndex)
		if r.Metadata.WebViewLink != "" {
			cmd.Printf("      %s\n", r.Metadata.WebViewLink)
		}
		if !r.Reranked {
			cmd.Println("      (reranking unavailable, combined-score ordering)")
		}
		cmd.Println()
	}
	return nil
}

// filterMinScore drops results below the score floor. Results arrive
// ordered by score, so the filtered slice preserves the ordering.
func filterMinScore(results []domain.SearchResult, minScore float64) []domain.SearchResult {
	kept := results[:0]
	for _, r := range results {
		if r.Score >= minScore {
			kept = append(kept, r)
		}
	}
	return kept
}

// parseFileTypes validates the --file-types values.
func parseFileTypes(values []string) ([]domain.FileType, error) {
	if len(values) == 0 {
		return nil, nil
	}
	types := make([]domain.FileType, 0, len(values))
	for _, v := range values {
		if !domain.IsValidFileType(v) {
			return nil, fmt.Errorf("invalid file type %q (valid: %v)", v, domain.ValidFileTypes())
		}
		types = append(types, domain.FileType(v))
	}
	return types, nil
}
