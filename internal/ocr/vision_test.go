package ocr

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/anshimlab/anshim/internal/faults"
)

const testKeyEnv = "TEST_VISION_API_KEY"

func newTestExtractor(t *testing.T, endpoint string) *Extractor {
	t.Helper()
	t.Setenv(testKeyEnv, "test-key")
	ex, err := NewExtractor(VisionConfig{Endpoint: endpoint, APIKeyEnv: testKeyEnv}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewExtractor failed: %v", err)
	}
	return ex
}

func TestExtractTextSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/images:annotate" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Write([]byte(`{"responses":[{"fullTextAnnotation":{"text":"성분: 밀가루, 설탕"}}]}`))
	}))
	defer srv.Close()

	ex := newTestExtractor(t, srv.URL)
	text, err := ex.ExtractText(context.Background(), writeTempImage(t))
	if err != nil {
		t.Fatalf("ExtractText failed: %v", err)
	}
	if text != "성분: 밀가루, 설탕" {
		t.Errorf("text = %q", text)
	}
}

func TestExtractTextNoAnnotation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"responses":[{}]}`))
	}))
	defer srv.Close()

	ex := newTestExtractor(t, srv.URL)
	text, err := ex.ExtractText(context.Background(), writeTempImage(t))
	if err != nil {
		t.Fatalf("no text should not be an error, got: %v", err)
	}
	if text != "" {
		t.Errorf("text = %q, want empty", text)
	}
}

func TestExtractTextProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"responses":[{"error":{"message":"quota exceeded"}}]}`))
	}))
	defer srv.Close()

	ex := newTestExtractor(t, srv.URL)
	_, err := ex.ExtractText(context.Background(), writeTempImage(t))
	var svcErr *faults.ExternalServiceError
	if !errors.As(err, &svcErr) {
		t.Fatalf("err = %T, want *faults.ExternalServiceError", err)
	}
	if svcErr.Provider != "google-vision" {
		t.Errorf("provider = %q", svcErr.Provider)
	}
}

func TestExtractTextMissingImage(t *testing.T) {
	ex := newTestExtractor(t, "http://127.0.0.1:0")
	if _, err := ex.ExtractText(context.Background(), "/nonexistent.jpg"); err == nil {
		t.Error("expected error for missing image file")
	}
}
