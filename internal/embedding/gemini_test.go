package embedding

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"go.uber.org/zap"
)

const testKeyEnv = "TEST_EMBEDDING_API_KEY"

func newTestEmbedder(t *testing.T, endpoint string) *GeminiEmbedder {
	t.Helper()
	t.Setenv(testKeyEnv, "test-key")
	emb, err := NewGeminiEmbedder(GeminiConfig{
		Endpoint:  endpoint,
		Model:     "embedding-001",
		APIKeyEnv: testKeyEnv,
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewGeminiEmbedder failed: %v", err)
	}
	return emb
}

// embedServer answers every request with dim-sized vectors, one per text.
func embedServer(t *testing.T, dim int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req batchEmbedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		var resp batchEmbedResponse
		for i := range req.Requests {
			values := make([]float32, dim)
			values[i%dim] = 1
			resp.Embeddings = append(resp.Embeddings, struct {
				Values []float32 `json:"values"`
			}{Values: values})
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestGeminiEmbedBatch(t *testing.T) {
	srv := embedServer(t, 4)
	defer srv.Close()

	emb := newTestEmbedder(t, srv.URL)
	vecs, err := emb.EmbedBatch(context.Background(), []string{"밀가루", "설탕"})
	if err != nil {
		t.Fatalf("EmbedBatch failed: %v", err)
	}
	if len(vecs) != 2 {
		t.Fatalf("got %d vectors, want 2", len(vecs))
	}
	for i, v := range vecs {
		if len(v) != 4 {
			t.Errorf("vector %d has dimension %d, want 4", i, len(v))
		}
	}
	if emb.Dimensions() != 4 {
		t.Errorf("Dimensions = %d, want 4", emb.Dimensions())
	}
}

func TestGeminiDimensionsConcurrent(t *testing.T) {
	srv := embedServer(t, 8)
	defer srv.Close()

	emb := newTestEmbedder(t, srv.URL)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := emb.Embed(context.Background(), fmt.Sprintf("성분-%d", i)); err != nil {
				t.Errorf("Embed failed: %v", err)
			}
			if d := emb.Dimensions(); d != 0 && d != 8 {
				t.Errorf("Dimensions = %d, want 0 or 8", d)
			}
		}(i)
	}
	wg.Wait()

	if emb.Dimensions() != 8 {
		t.Errorf("Dimensions = %d after all calls, want 8", emb.Dimensions())
	}
}

func TestGeminiEmbedCached(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{"embeddings":[{"values":[1,0]}]}`))
	}))
	defer srv.Close()

	emb := newTestEmbedder(t, srv.URL)
	ctx := context.Background()
	if _, err := emb.Embed(ctx, "우유"); err != nil {
		t.Fatalf("first Embed failed: %v", err)
	}
	if _, err := emb.Embed(ctx, "우유"); err != nil {
		t.Fatalf("second Embed failed: %v", err)
	}
	if calls != 1 {
		t.Errorf("remote calls = %d, want 1 (second served from cache)", calls)
	}
}

func TestGeminiMissingKey(t *testing.T) {
	t.Setenv(testKeyEnv, "")
	_, err := NewGeminiEmbedder(GeminiConfig{APIKeyEnv: testKeyEnv}, zap.NewNop())
	if err == nil {
		t.Error("expected error for missing API key")
	}
}
