package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"legalrag/internal/adapter/extractor"
	"legalrag/internal/adapter/fs"
	"legalrag/internal/domain"
	"legalrag/internal/port"
	"legalrag/internal/usecase"
)

var ingestRebuild bool

var ingestCmd = &cobra.Command{
	Use:   "ingest [path]",
	Short: "Ingest documents into the vector store",
	Long: `Extract, chunk and embed documents into the persistent vector store.
The path may be a single file or a directory; directories are filtered by the
ingest.includes and ingest.excludes glob patterns.

The store lives at store.path (default .legalrag/vectors.db).

Examples:
  legalrag ingest .                       # Ingest current directory
  legalrag ingest contracts/lease.pdf     # Ingest one file
  legalrag ingest ./contracts --rebuild   # Drop existing records first`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().BoolVar(&ingestRebuild, "rebuild", false, "clear existing records before ingesting")
}

// IngestResult summarizes an ingest run.
type IngestResult struct {
	FilesIngested int
	FilesSkipped  int
	ChunksStored  int
	Errors        []string
}

func runIngest(cmd *cobra.Command, args []string) error {
	path := GetRootDir()
	if len(args) > 0 {
		var err error
		path, err = filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("invalid path: %w", err)
		}
	}

	cfg := GetConfig()

	embedder, err := newEmbedder(cfg)
	if err != nil {
		return err
	}

	st, err := openBoltStore(cfg, true)
	if err != nil {
		return err
	}
	defer st.Close()

	migration, err := st.CheckCompatibility(embedder.ModelName(), embedder.Dimension())
	if err != nil {
		return fmt.Errorf("failed to check store: %w", err)
	}
	switch {
	case migration.NeedsRebuild && !ingestRebuild:
		return fmt.Errorf("store rebuild required: %s. Rerun with --rebuild", migration.Reason)
	case migration.NeedsRebuild || ingestRebuild:
		if migration.Reason != "" {
			fmt.Printf("Store rebuild: %s\n", migration.Reason)
		}
		fmt.Println("Clearing existing records...")
		if err := st.Clear(); err != nil {
			return fmt.Errorf("failed to clear store: %w", err)
		}
	}
	if err := st.Migrate(embedder.ModelName(), embedder.Dimension()); err != nil {
		return fmt.Errorf("failed to update schema info: %w", err)
	}

	ingestUC, err := newIngestUseCase(cfg, embedder, st)
	if err != nil {
		return err
	}

	walker := fs.NewWalker(cfg.Ingest.Includes, cfg.Ingest.Excludes)
	fmt.Printf("Scanning %s...\n", path)

	files, err := walker.Walk(path)
	if err != nil {
		return fmt.Errorf("failed to walk %s: %w", path, err)
	}
	if len(files) == 0 {
		fmt.Println("No matching documents found.")
		return nil
	}

	result := ingestFiles(cmd.Context(), ingestUC, extractor.NewMultiExtractor(), files, path)

	total, _ := st.Size()

	fmt.Printf("\nIngest complete:\n")
	fmt.Printf("  Files ingested: %d\n", result.FilesIngested)
	fmt.Printf("  Files skipped:  %d (no text)\n", result.FilesSkipped)
	fmt.Printf("  Chunks stored:  %d\n", result.ChunksStored)
	fmt.Printf("  Store total:    %d records\n", total)

	if len(result.Errors) > 0 {
		fmt.Printf("\nWarnings:\n")
		for _, e := range result.Errors {
			fmt.Printf("  - %s\n", e)
		}
	}

	fmt.Printf("\nStore at: %s\n", cfg.StorePath(GetRootDir()))
	return nil
}

// ingestFiles ingests each file independently; one failing document does not
// stop the others.
func ingestFiles(ctx context.Context, ingestUC *usecase.IngestUseCase, ext port.TextExtractor, files []port.FileInfo, root string) *IngestResult {
	result := &IngestResult{}

	for _, file := range files {
		name := displayName(root, file.Path)

		data, err := fs.ReadFile(file.Path)
		if err != nil {
			result.Errors = append(result.Errors, err.Error())
			continue
		}

		text, err := ext.Extract(ctx, data, extractor.MimeTypeFromPath(file.Path))
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("failed to extract %s: %v", name, err))
			continue
		}
		if strings.TrimSpace(text) == "" {
			result.FilesSkipped++
			continue
		}

		n, err := ingestUC.IngestWithProgress(ctx, name, text, newProgress(name))
		if err != nil {
			var embErr *domain.EmbeddingError
			if errors.As(err, &embErr) {
				result.Errors = append(result.Errors, fmt.Sprintf("%s: embedding failed at chunk %d: %v", name, embErr.ChunkIndex, embErr.Err))
			} else {
				result.Errors = append(result.Errors, fmt.Sprintf("failed to ingest %s: %v", name, err))
			}
			continue
		}

		result.FilesIngested++
		result.ChunksStored += n
	}

	return result
}

// newProgress returns a callback that draws a progress bar for one document,
// created lazily once the chunk count is known.
func newProgress(name string) usecase.ProgressFunc {
	var (
		bar       *progressbar.ProgressBar
		startTime time.Time
	)

	return func(done, total int) {
		if bar == nil {
			startTime = time.Now()
			bar = progressbar.NewOptions(total,
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionShowBytes(false),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription("[cyan]"+name+"[reset]"),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "[green]=[reset]",
					SaucerHead:    "[green]>[reset]",
					SaucerPadding: " ",
					BarStart:      "[",
					BarEnd:        "]",
				}),
				progressbar.OptionOnCompletion(func() {
					fmt.Println()
				}),
			)
		}

		bar.Set(done)

		elapsed := time.Since(startTime)
		if done > 0 && done < total && elapsed > 0 {
			rate := float64(done) / elapsed.Seconds()
			eta := time.Duration(float64(total-done)/rate) * time.Second
			bar.Describe(fmt.Sprintf("[cyan]%s[reset] ETA: %s", name, formatDuration(eta)))
		}
	}
}

// displayName is the document name stored with each record: the path relative
// to the ingest root, or the base name for a single file.
func displayName(root, path string) string {
	if root == path {
		return filepath.Base(path)
	}
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.Base(path)
	}
	return filepath.ToSlash(rel)
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "<1s"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", h, m)
}
