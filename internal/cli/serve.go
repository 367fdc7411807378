package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"legalrag/config"
	"legalrag/internal/adapter/extractor"
	"legalrag/internal/port"
	"legalrag/internal/server"
	"legalrag/internal/usecase"
)

var serveBackend string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Run the HTTP API used by the web frontend.

Routes:
  GET  /health
  POST /api/ingest             {"document_name": "...", "text": "..."}
  POST /api/analyze-document   multipart field "file"
  POST /api/legal-search       {"query": "...", "k": 3}

The listen port and allowed CORS origin can be set with PORT and FRONTEND_URL.

Examples:
  legalrag serve
  PORT=9000 legalrag serve --backend bolt`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveBackend, "backend", "", "vector store backend: memory or bolt (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	backend := cfg.Store.Backend
	if serveBackend != "" {
		backend = serveBackend
	}

	embedder, err := newEmbedder(cfg)
	if err != nil {
		return err
	}
	answerGen, err := newGenerator(cfg, cfg.Generation.MaxTokens)
	if err != nil {
		return err
	}
	analysisGen, err := newGenerator(cfg, cfg.Analysis.MaxTokens)
	if err != nil {
		return err
	}

	var (
		st      port.VectorStore
		closeFn func() error
	)
	switch backend {
	case config.BackendMemory:
		st, closeFn = openMemoryStore()
	case config.BackendBolt:
		bolt, err := openBoltStore(cfg, true)
		if err != nil {
			return err
		}
		if err := checkStore(bolt, embedder); err != nil {
			bolt.Close()
			return err
		}
		if err := bolt.Migrate(embedder.ModelName(), embedder.Dimension()); err != nil {
			bolt.Close()
			return fmt.Errorf("failed to update schema info: %w", err)
		}
		st, closeFn = bolt, bolt.Close
	default:
		return fmt.Errorf("unsupported store backend: %s", backend)
	}
	defer closeFn()

	ingestUC, err := newIngestUseCase(cfg, embedder, st)
	if err != nil {
		return err
	}

	srv := server.New(server.Options{
		Ingest:      ingestUC,
		Retrieve:    newRetrieveUseCase(cfg, embedder, answerGen, st),
		Analyze:     usecase.NewAnalyzeUseCase(analysisGen, cfg.Analysis.MaxChars, cfg.Generation.Timeout, logger),
		Extractor:   extractor.NewMultiExtractor(),
		Logger:      logger,
		FrontendURL: cfg.Server.FrontendURL,
		MaxUploadMB: cfg.Server.MaxUploadMB,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("legalrag API running on %s (store: %s, embedder: %s, generator: %s)\n",
		cfg.Server.Addr, backend, embedder.ModelName(), answerGen.ModelName())
	return srv.Run(ctx, cfg.Server.Addr)
}
