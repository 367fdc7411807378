package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOpenAIEmbedderEmbed(t *testing.T) {
	var gotModel string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}
		var req struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		gotModel = req.Model

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"object":"list","data":[{"object":"embedding","index":0,"embedding":[0.25,-0.5,1]}],"model":"text-embedding-3-small","usage":{"prompt_tokens":3,"total_tokens":3}}`))
	}))
	defer srv.Close()

	t.Setenv("LEGALRAG_TEST_KEY", "test-key")
	e, err := NewOpenAIEmbedder("LEGALRAG_TEST_KEY", "text-embedding-3-small", Options{BaseURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}

	vec, err := e.Embed(context.Background(), "governing law")
	if err != nil {
		t.Fatal(err)
	}
	if gotModel != "text-embedding-3-small" {
		t.Errorf("expected model text-embedding-3-small, got %s", gotModel)
	}
	want := []float32{0.25, -0.5, 1}
	if len(vec) != len(want) {
		t.Fatalf("expected %d values, got %d", len(want), len(vec))
	}
	for i := range want {
		if vec[i] != want[i] {
			t.Errorf("value %d: expected %v, got %v", i, want[i], vec[i])
		}
	}
}

func TestOpenAIEmbedderServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
	}))
	defer srv.Close()

	t.Setenv("LEGALRAG_TEST_KEY", "test-key")
	e, err := NewOpenAIEmbedder("LEGALRAG_TEST_KEY", "text-embedding-3-small", Options{BaseURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := e.Embed(context.Background(), "governing law"); err == nil {
		t.Error("expected error for failed request")
	}
}

func TestOpenAIEmbedderEmptyText(t *testing.T) {
	e, _ := NewOllamaEmbedder("nomic-embed-text", Options{})
	if _, err := e.Embed(context.Background(), ""); err == nil {
		t.Error("expected error for empty text")
	}
}
