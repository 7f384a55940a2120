package embedding_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/veriscan/veriscan/internal/clients/embedding"
	"github.com/veriscan/veriscan/internal/errdefs"
)

type embedServer struct {
	mu      sync.Mutex
	batches [][]string
	dims    int
}

func (s *embedServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/embed", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		s.mu.Lock()
		s.batches = append(s.batches, req.Input)
		s.mu.Unlock()

		vectors := make([][]float32, len(req.Input))
		for i, text := range req.Input {
			vec := make([]float32, s.dims)
			for j := range vec {
				vec[j] = float32(len(text)%7) / 7
			}
			vectors[i] = vec
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"embeddings": vectors})
	})
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"models": []map[string]string{{"name": "nomic-embed-text:latest"}},
		})
	})
	return mux
}

func newTestClient(t *testing.T, dims, batchSize int) (*embedding.Client, *embedServer) {
	t.Helper()
	backend := &embedServer{dims: dims}
	srv := httptest.NewServer(backend.handler())
	t.Cleanup(srv.Close)

	return embedding.NewClient(embedding.Config{
		BaseURL:   srv.URL,
		Model:     "nomic-embed-text",
		Dims:      dims,
		BatchSize: batchSize,
	}), backend
}

func texts(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("text number %d", i)
	}
	return out
}

func TestEmbedBatchOrderAndDims(t *testing.T) {
	client, _ := newTestClient(t, 8, 32)

	input := texts(5)
	vectors, err := client.EmbedBatch(t.Context(), input)
	if err != nil {
		t.Fatal(err)
	}
	if len(vectors) != len(input) {
		t.Fatalf("got %d vectors, want %d", len(vectors), len(input))
	}
	for i, vec := range vectors {
		if len(vec) != 8 {
			t.Errorf("vector %d has %d dims, want 8", i, len(vec))
		}
	}
}

func TestEmbedBatchSplitsBatches(t *testing.T) {
	client, backend := newTestClient(t, 4, 32)

	if _, err := client.EmbedBatch(t.Context(), texts(70)); err != nil {
		t.Fatal(err)
	}

	backend.mu.Lock()
	defer backend.mu.Unlock()
	if len(backend.batches) != 3 {
		t.Fatalf("got %d upstream calls, want 3", len(backend.batches))
	}
	for i, batch := range backend.batches {
		if len(batch) > 32 {
			t.Errorf("batch %d has %d texts, exceeds limit 32", i, len(batch))
		}
	}
}

func TestEmbedBatchDeduplicates(t *testing.T) {
	client, backend := newTestClient(t, 4, 32)

	input := []string{"same", "same", "other", "same"}
	vectors, err := client.EmbedBatch(t.Context(), input)
	if err != nil {
		t.Fatal(err)
	}
	if len(vectors) != 4 {
		t.Fatalf("got %d vectors, want 4", len(vectors))
	}

	backend.mu.Lock()
	sent := 0
	for _, batch := range backend.batches {
		sent += len(batch)
	}
	backend.mu.Unlock()
	if sent != 2 {
		t.Errorf("embedded %d texts upstream, want 2 unique", sent)
	}
}

func TestEmbedBatchEmpty(t *testing.T) {
	client, backend := newTestClient(t, 4, 32)

	vectors, err := client.EmbedBatch(t.Context(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if vectors != nil {
		t.Errorf("got %v, want nil", vectors)
	}
	if len(backend.batches) != 0 {
		t.Error("upstream called for empty input")
	}
}

func TestEmbedBatchDimensionMismatch(t *testing.T) {
	backend := &embedServer{dims: 4}
	srv := httptest.NewServer(backend.handler())
	t.Cleanup(srv.Close)

	// The backend answers with 4-dim vectors but the client expects 16.
	client := embedding.NewClient(embedding.Config{
		BaseURL: srv.URL,
		Model:   "nomic-embed-text",
		Dims:    16,
	})
	_, err := client.EmbedBatch(t.Context(), []string{"hello"})
	if !errdefs.IsKind(err, errdefs.KindInternal) {
		t.Errorf("error = %v, want Internal", err)
	}
}

func TestHealth(t *testing.T) {
	client, _ := newTestClient(t, 4, 32)
	if err := client.Health(t.Context()); err != nil {
		t.Fatalf("Health() = %v, want nil", err)
	}
}

func TestUnavailableBackend(t *testing.T) {
	client := embedding.NewClient(embedding.Config{
		BaseURL: "http://127.0.0.1:1",
		Model:   "nomic-embed-text",
		Dims:    4,
	})
	_, err := client.EmbedBatch(t.Context(), []string{"hello"})
	if !errdefs.IsKind(err, errdefs.KindUnavailable) {
		t.Errorf("error = %v, want Unavailable", err)
	}
}
