package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"legalrag/internal/adapter/chunker"
	"legalrag/internal/adapter/embedding"
	"legalrag/internal/adapter/extractor"
	"legalrag/internal/adapter/llm"
	"legalrag/internal/adapter/memstore"
	"legalrag/internal/domain"
	"legalrag/internal/usecase"
)

type failingEmbedder struct{}

func (failingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, errors.New("service unavailable")
}
func (failingEmbedder) Dimension() int    { return 64 }
func (failingEmbedder) ModelName() string { return "failing" }

func newTestServer(t *testing.T) (*Server, *memstore.VectorStore) {
	t.Helper()
	store := memstore.NewVectorStore()
	embedder := embedding.NewMockEmbedder(64)
	generator := llm.NewMockGenerator()

	return New(Options{
		Ingest:      usecase.NewIngestUseCase(chunker.NewDefaultChunker(), embedder, store),
		Retrieve:    usecase.NewRetrieveUseCase(embedder, generator, store),
		Analyze:     usecase.NewAnalyzeUseCase(generator, 0, 0, nil),
		Extractor:   extractor.NewMultiExtractor(),
		FrontendURL: "http://localhost:3000",
		MaxUploadMB: 1,
	}), store
}

func do(t *testing.T, h http.Handler, req *http.Request) (*http.Response, map[string]any) {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	resp := w.Result()
	var data map[string]any
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
			t.Fatalf("failed to decode response json: %v", err)
		}
	}
	return resp, data
}

func jsonRequest(path, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestHealthHandler_OK(t *testing.T) {
	s, _ := newTestServer(t)

	resp, _ := do(t, s.Handler(), httptest.NewRequest(http.MethodGet, "/health", nil))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("expected CORS origin header, got %q", got)
	}
}

func TestPreflight(t *testing.T) {
	s, _ := newTestServer(t)

	resp, _ := do(t, s.Handler(), httptest.NewRequest(http.MethodOptions, "/api/legal-search", nil))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for preflight, got %d", resp.StatusCode)
	}
	if !strings.Contains(resp.Header.Get("Access-Control-Allow-Methods"), "POST") {
		t.Error("expected POST in allowed methods")
	}
}

func TestSearchBeforeIngest(t *testing.T) {
	s, _ := newTestServer(t)

	resp, data := do(t, s.Handler(), jsonRequest("/api/legal-search", `{"query":"termination notice"}`))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	if data["success"] != false || data["error"] != "No documents analyzed. Please upload a document first." {
		t.Errorf("unexpected body: %v", data)
	}
}

func TestIngestThenSearch(t *testing.T) {
	s, store := newTestServer(t)
	h := s.Handler()

	text := strings.Repeat("The tenant shall pay rent monthly. ", 60)
	body, _ := json.Marshal(ingestRequest{DocumentName: "lease.txt", Text: text})

	resp, data := do(t, h, jsonRequest("/api/ingest", string(body)))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %v", resp.StatusCode, data)
	}
	size, _ := store.Size()
	if data["chunks_stored"] != float64(size) || size != 3 {
		t.Errorf("expected 3 chunks stored, got %v (store has %d)", data["chunks_stored"], size)
	}

	resp, data = do(t, h, jsonRequest("/api/legal-search", `{"query":"when is rent paid?","k":2}`))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %v", resp.StatusCode, data)
	}
	if data["results"] != "Mock answer grounded in lease.txt." {
		t.Errorf("unexpected results: %v", data["results"])
	}
	sources, ok := data["sources"].([]any)
	if !ok || len(sources) != 2 {
		t.Fatalf("expected 2 sources, got %v", data["sources"])
	}
	first := sources[0].(map[string]any)
	if first["document_name"] != "lease.txt" || first["chunk_text"] == "" {
		t.Errorf("unexpected source: %v", first)
	}
}

func TestIngestValidation(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{`},
		{"missing name", `{"text":"abc"}`},
		{"empty text", `{"document_name":"a.txt","text":"  "}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp, data := do(t, h, jsonRequest("/api/ingest", tc.body))
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", resp.StatusCode)
			}
			if data["success"] != false {
				t.Errorf("expected success=false, got %v", data)
			}
		})
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	s, _ := newTestServer(t)

	resp, data := do(t, s.Handler(), jsonRequest("/api/legal-search", `{"query":""}`))
	if resp.StatusCode != http.StatusBadRequest || data["error"] != "Search query is required." {
		t.Errorf("unexpected response %d: %v", resp.StatusCode, data)
	}
}

func TestWrongMethod(t *testing.T) {
	s, _ := newTestServer(t)

	resp, _ := do(t, s.Handler(), httptest.NewRequest(http.MethodGet, "/api/legal-search", nil))
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for GET /api/legal-search, got %d", resp.StatusCode)
	}
}

func multipartRequest(t *testing.T, filename, contentType string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	if contentType != "" {
		hdr.Set("Content-Type", contentType)
	}
	part, err := mw.CreatePart(hdr)
	if err != nil {
		t.Fatal(err)
	}
	part.Write(content)
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/analyze-document", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestAnalyzeDocument(t *testing.T) {
	s, store := newTestServer(t)

	content := []byte("This Non-Disclosure Agreement is entered into by the parties. Confidential information stays confidential.")
	resp, data := do(t, s.Handler(), multipartRequest(t, "nda.txt", "text/plain", content))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %v", resp.StatusCode, data)
	}

	analysis, ok := data["generativeAnalysis"].(map[string]any)
	if !ok || analysis["summary"] != "Mock summary." {
		t.Errorf("unexpected analysis: %v", data["generativeAnalysis"])
	}
	if data["document_name"] != "nda.txt" || data["chunks_stored"] != float64(1) {
		t.Errorf("unexpected body: %v", data)
	}
	if size, _ := store.Size(); size != 1 {
		t.Errorf("expected 1 record stored, got %d", size)
	}
}

func TestAnalyzeDocumentErrors(t *testing.T) {
	s, store := newTestServer(t)
	h := s.Handler()

	resp, _ := do(t, h, multipartRequest(t, "scan.png", "image/png", []byte{0x89, 'P', 'N', 'G', 0, 0, 0, 0}))
	if resp.StatusCode != http.StatusUnsupportedMediaType {
		t.Errorf("expected 415, got %d", resp.StatusCode)
	}

	resp, _ = do(t, h, multipartRequest(t, "blank.txt", "text/plain", []byte("   ")))
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for blank document, got %d", resp.StatusCode)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/analyze-document", strings.NewReader(""))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=x")
	resp, _ = do(t, h, req)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 without a file, got %d", resp.StatusCode)
	}

	if size, _ := store.Size(); size != 0 {
		t.Errorf("expected nothing stored, got %d", size)
	}
}

func TestOversizedBodyIsTooLarge(t *testing.T) {
	s, store := newTestServer(t)
	h := s.Handler()

	big := bytes.Repeat([]byte("The tenant shall pay rent. "), 50000)
	resp, data := do(t, h, multipartRequest(t, "huge.txt", "text/plain", big))
	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413 for oversized upload, got %d: %v", resp.StatusCode, data)
	}

	body := `{"document_name":"huge.txt","text":"` + string(big) + `"}`
	resp, data = do(t, h, jsonRequest("/api/ingest", body))
	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413 for oversized json, got %d: %v", resp.StatusCode, data)
	}

	resp, _ = do(t, h, jsonRequest("/api/ingest", `{"document_name":`))
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for malformed json, got %d", resp.StatusCode)
	}

	if size, _ := store.Size(); size != 0 {
		t.Errorf("expected nothing stored, got %d", size)
	}
}

type brokenWriter struct {
	header http.Header
}

func (w *brokenWriter) Header() http.Header       { return w.header }
func (w *brokenWriter) WriteHeader(int)           {}
func (w *brokenWriter) Write([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestWriteJSONLogsEncodeFailure(t *testing.T) {
	var logs bytes.Buffer
	s := New(Options{
		Logger: slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug})),
	})

	s.writeJSON(&brokenWriter{header: http.Header{}}, http.StatusOK, map[string]any{"success": true})

	if !strings.Contains(logs.String(), "failed to write response") || !strings.Contains(logs.String(), "connection reset") {
		t.Errorf("expected encode failure to be logged, got %q", logs.String())
	}
}

func TestEmbeddingFailureIsBadGateway(t *testing.T) {
	store := memstore.NewVectorStore()
	s := New(Options{
		Ingest:    usecase.NewIngestUseCase(chunker.NewDefaultChunker(), failingEmbedder{}, store),
		Extractor: extractor.NewMultiExtractor(),
	})

	resp, data := do(t, s.Handler(), jsonRequest("/api/ingest", `{"document_name":"a.txt","text":"rent"}`))
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d: %v", resp.StatusCode, data)
	}
	if size, _ := store.Size(); size != 0 {
		t.Errorf("expected nothing stored, got %d", size)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err      error
		expected int
	}{
		{domain.ErrEmptyCorpus, http.StatusBadRequest},
		{domain.ErrUnsupportedFormat, http.StatusUnsupportedMediaType},
		{&domain.EmbeddingError{Stage: domain.StageQuery, ChunkIndex: -1, Err: errors.New("x")}, http.StatusBadGateway},
		{&domain.GenerationError{Stage: domain.StageAnswer, Err: errors.New("x")}, http.StatusBadGateway},
		{domain.ErrMalformedAnalysis, http.StatusBadGateway},
		{errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		if status, _ := classify(tc.err); status != tc.expected {
			t.Errorf("classify(%v) = %d, want %d", tc.err, status, tc.expected)
		}
	}
}

func TestRunShutsDownOnCancel(t *testing.T) {
	s, _ := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, "127.0.0.1:0") }()
	cancel()

	if err := <-done; err != nil {
		t.Errorf("expected clean shutdown, got %v", err)
	}
}
