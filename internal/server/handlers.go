package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"legalrag/internal/adapter/extractor"
	"legalrag/internal/domain"
)

type ingestRequest struct {
	DocumentName string `json:"document_name"`
	Text         string `json:"text"`
}

type searchRequest struct {
	Query string `json:"query"`
	K     int    `json:"k,omitempty"`
}

type searchResponse struct {
	Success bool            `json:"success"`
	Results string          `json:"results"`
	Sources []domain.Source `json:"sources"`
}

type analyzeResponse struct {
	Success            bool             `json:"success"`
	GenerativeAnalysis *domain.Analysis `json:"generativeAnalysis"`
	ChunksStored       int              `json:"chunks_stored"`
	DocumentName       string           `json:"document_name"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	fmt.Fprintln(w, "ok")
}

// POST /api/ingest  { "document_name": "...", "text": "..." }
func (s *Server) ingestHandler(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.rejectBody(w, err, "invalid json")
		return
	}
	if strings.TrimSpace(req.DocumentName) == "" {
		s.writeError(w, http.StatusBadRequest, "document_name is required.")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		s.fail(w, domain.ErrEmptyDocument)
		return
	}

	n, err := s.ingest.Ingest(r.Context(), req.DocumentName, req.Text)
	if err != nil {
		s.fail(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"chunks_stored": n,
		"document_name": req.DocumentName,
	})
}

// POST /api/analyze-document  multipart field "file"
func (s *Server) analyzeHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		s.rejectBody(w, err, "failed to parse form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "No file uploaded.")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "failed to read file")
		return
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = extractor.MimeTypeFromPath(header.Filename)
	}

	text, err := s.extractor.Extract(r.Context(), data, mimeType)
	if err != nil {
		s.fail(w, err)
		return
	}
	if strings.TrimSpace(text) == "" {
		s.fail(w, domain.ErrEmptyDocument)
		return
	}

	analysis, err := s.analyze.Analyze(r.Context(), text)
	if err != nil {
		s.fail(w, err)
		return
	}

	n, err := s.ingest.Ingest(r.Context(), header.Filename, text)
	if err != nil {
		s.fail(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, analyzeResponse{
		Success:            true,
		GenerativeAnalysis: analysis,
		ChunksStored:       n,
		DocumentName:       header.Filename,
	})
}

// POST /api/legal-search  { "query": "...", "k": 3 }
func (s *Server) searchHandler(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.rejectBody(w, err, "invalid json")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		s.fail(w, domain.ErrEmptyQuery)
		return
	}

	answer, err := s.retrieve.Answer(r.Context(), req.Query, req.K)
	if err != nil {
		s.fail(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, searchResponse{
		Success: true,
		Results: answer.Text,
		Sources: answer.Citations(),
	})
}

func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	return json.NewDecoder(r.Body).Decode(v)
}

// fail maps a pipeline error to a status code and writes it.
func (s *Server) fail(w http.ResponseWriter, err error) {
	status, message := classify(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "status", status, "error", err)
	} else {
		s.logger.Info("request rejected", "status", status, "error", err)
	}
	s.writeError(w, status, message)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrEmptyCorpus):
		return http.StatusBadRequest, "No documents analyzed. Please upload a document first."
	case errors.Is(err, domain.ErrEmptyQuery):
		return http.StatusBadRequest, "Search query is required."
	case errors.Is(err, domain.ErrEmptyDocument):
		return http.StatusBadRequest, "No text could be extracted from the document."
	case errors.Is(err, domain.ErrInvalidConfiguration):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType, err.Error()
	case errors.Is(err, domain.ErrEmbeddingFailure),
		errors.Is(err, domain.ErrGenerationFailure),
		errors.Is(err, domain.ErrMalformedAnalysis):
		return http.StatusBadGateway, err.Error()
	default:
		return http.StatusInternalServerError, "Failed to process request: " + err.Error()
	}
}

// rejectBody answers 413 when the body hit the upload cap and 400 otherwise.
func (s *Server) rejectBody(w http.ResponseWriter, err error, message string) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		s.writeError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("File too large. The limit is %d bytes.", tooLarge.Limit))
		return
	}
	s.writeError(w, http.StatusBadRequest, message)
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, errorResponse{Success: false, Error: message})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("failed to write response", "status", status, "error", err)
	}
}
