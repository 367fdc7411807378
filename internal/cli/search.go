package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"legalrag/internal/domain"
)

var (
	searchQuery string
	searchTopK  int
	searchJSON  bool
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Rank stored passages without generating an answer",
	Long: `Embed the query and rank every stored passage by cosine similarity.
Useful for checking retrieval quality before asking questions.

Examples:
  legalrag search -q "confidentiality obligations"
  legalrag search -q "governing law" -k 10 --json`,
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().StringVarP(&searchQuery, "query", "q", "", "search query (required)")
	searchCmd.Flags().IntVarP(&searchTopK, "top-k", "k", 0, "number of results (default from config)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output as JSON")
	searchCmd.MarkFlagRequired("query")
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	embedder, err := newEmbedder(cfg)
	if err != nil {
		return err
	}

	st, err := openBoltStore(cfg, false)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := checkStore(st, embedder); err != nil {
		return err
	}

	// Search never generates, so no generator is needed.
	results, err := newRetrieveUseCase(cfg, embedder, nil, st).Search(cmd.Context(), searchQuery, searchTopK)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		sources := make([]domain.Source, len(results))
		for i, r := range results {
			sources[i] = r.Source()
		}
		output, _ := json.MarshalIndent(sources, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	count, _ := st.Size()
	printRankings(searchQuery, results, count, embedder.ModelName())
	return nil
}

func printRankings(query string, results []domain.RankedResult, count int, model string) {
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("Records stored: %d\n", count)
	fmt.Printf("Model: %s\n", model)
	fmt.Printf("Query: \"%s\"\n", query)
	fmt.Println(strings.Repeat("-", 70))

	if len(results) == 0 {
		fmt.Println("No results found.")
		return
	}

	fmt.Printf("Top %d matches:\n\n", len(results))

	total := 0.0
	for i, r := range results {
		total += r.Similarity
		fmt.Printf("%d. [%s %.3f] %s\n", i+1, rating(r.Similarity), r.Similarity, r.Record.DocumentName)
		fmt.Printf("   %s\n\n", preview(r.Record.ChunkText, 150))
	}

	avg := total / float64(len(results))
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("  Average similarity: %.3f\n", avg)
	fmt.Printf("  Top-1 similarity:   %.3f\n", results[0].Similarity)
}

func rating(similarity float64) string {
	switch {
	case similarity > 0.7:
		return "HIGH"
	case similarity > 0.5:
		return "GOOD"
	case similarity > 0.3:
		return "OK"
	default:
		return "LOW"
	}
}
