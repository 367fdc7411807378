package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"legalrag/internal/port"
	"legalrag/internal/usecase"
)

const shutdownTimeout = 10 * time.Second

// Server is the HTTP gateway over the ingest, retrieve and analyze pipelines.
type Server struct {
	ingest      *usecase.IngestUseCase
	retrieve    *usecase.RetrieveUseCase
	analyze     *usecase.AnalyzeUseCase
	extractor   port.TextExtractor
	logger      *slog.Logger
	frontendURL string
	maxUpload   int64
}

type Options struct {
	Ingest      *usecase.IngestUseCase
	Retrieve    *usecase.RetrieveUseCase
	Analyze     *usecase.AnalyzeUseCase
	Extractor   port.TextExtractor
	Logger      *slog.Logger
	FrontendURL string
	MaxUploadMB int64
}

func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxUpload := opts.MaxUploadMB << 20
	if maxUpload <= 0 {
		maxUpload = 10 << 20
	}
	return &Server{
		ingest:      opts.Ingest,
		retrieve:    opts.Retrieve,
		analyze:     opts.Analyze,
		extractor:   opts.Extractor,
		logger:      logger,
		frontendURL: opts.FrontendURL,
		maxUpload:   maxUpload,
	}
}

// Handler returns the routed handler wrapped in CORS and request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.healthHandler)
	mux.HandleFunc("POST /api/ingest", s.ingestHandler)
	mux.HandleFunc("POST /api/analyze-document", s.analyzeHandler)
	mux.HandleFunc("POST /api/legal-search", s.searchHandler)

	return s.logRequests(s.enableCORS(mux))
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", addr, "frontend", s.frontendURL)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.logger.Info("server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := s.frontendURL
		if origin == "" {
			origin = "*"
		}
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if origin != "*" {
			w.Header().Add("Vary", "Origin")
		}

		// Handle preflight
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}
