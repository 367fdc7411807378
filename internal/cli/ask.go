package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"legalrag/internal/domain"
)

var (
	askQuery string
	askTopK  int
	askJSON  bool
)

var askCmd = &cobra.Command{
	Use:   "ask",
	Short: "Ask a question grounded in ingested documents",
	Long: `Retrieve the passages most similar to the question and generate an answer
that cites them.

Examples:
  legalrag ask -q "What is the termination notice period?"
  legalrag ask -q "Who bears liability for damages?" -k 5 --json`,
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().StringVarP(&askQuery, "query", "q", "", "question (required)")
	askCmd.Flags().IntVarP(&askTopK, "top-k", "k", 0, "number of passages (default from config)")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output as JSON")
	askCmd.MarkFlagRequired("query")
}

type askOutput struct {
	Query   string          `json:"query"`
	Answer  string          `json:"answer"`
	Sources []domain.Source `json:"sources"`
}

func runAsk(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	embedder, err := newEmbedder(cfg)
	if err != nil {
		return err
	}
	generator, err := newGenerator(cfg, cfg.Generation.MaxTokens)
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

	answer, err := newRetrieveUseCase(cfg, embedder, generator, st).Answer(cmd.Context(), askQuery, askTopK)
	if err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}

	if askJSON {
		output, _ := json.MarshalIndent(askOutput{
			Query:   answer.Query,
			Answer:  answer.Text,
			Sources: answer.Citations(),
		}, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	fmt.Println(answer.Text)
	fmt.Println()
	fmt.Println(strings.Repeat("-", 70))
	fmt.Printf("Sources:\n")
	for i, s := range answer.Citations() {
		fmt.Printf("  [%d] %s (similarity: %.3f)\n", i+1, s.DocumentName, s.Similarity)
		fmt.Printf("      %s\n", preview(s.ChunkText, 150))
	}

	return nil
}

// preview flattens text to one line and truncates it to max characters.
func preview(text string, max int) string {
	text = strings.Join(strings.Fields(text), " ")
	r := []rune(text)
	if len(r) > max {
		return string(r[:max]) + "..."
	}
	return text
}
