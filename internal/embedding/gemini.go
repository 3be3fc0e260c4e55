package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/anshimlab/anshim/internal/faults"
	"github.com/anshimlab/anshim/pkg/utils"
)

const (
	providerName = "gemini-embeddings"
	// The batchEmbedContents endpoint rejects oversized request batches.
	maxRequestBatch = 100
	maxRetries      = 3
)

// GeminiEmbedder calls the Generative Language API batchEmbedContents endpoint.
type GeminiEmbedder struct {
	endpoint   string
	model      string
	apiKey     string
	client     *http.Client
	cache      *Cache
	dimensions atomic.Int32
	logger     *zap.Logger
}

// GeminiConfig configures the remote embedder. APIKeyEnv names the environment
// variable holding the key; the key itself never lives in config files.
type GeminiConfig struct {
	Endpoint  string
	Model     string
	APIKeyEnv string
	Timeout   time.Duration
	CacheSize int
}

// NewGeminiEmbedder creates an embedder for the configured model. Returns an
// error when the API key environment variable is empty.
func NewGeminiEmbedder(cfg GeminiConfig, logger *zap.Logger) (*GeminiEmbedder, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = "https://generativelanguage.googleapis.com"
	}
	if cfg.Model == "" {
		cfg.Model = "embedding-001"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &GeminiEmbedder{
		endpoint: cfg.Endpoint,
		model:    cfg.Model,
		apiKey:   key,
		client:   &http.Client{Timeout: timeout},
		cache:    NewCache(cfg.CacheSize),
		logger:   logger,
	}, nil
}

type embedContent struct {
	Parts []embedPart `json:"parts"`
}

type embedPart struct {
	Text string `json:"text"`
}

type batchEmbedRequest struct {
	Requests []embedRequest `json:"requests"`
}

type embedRequest struct {
	Model   string       `json:"model"`
	Content embedContent `json:"content"`
}

type batchEmbedResponse struct {
	Embeddings []struct {
		Values []float32 `json:"values"`
	} `json:"embeddings"`
}

// Embed returns a unit-normalized embedding for text.
func (g *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if vec, ok := g.cache.Get(text); ok {
		return vec, nil
	}
	vecs, err := g.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in provider-sized sub-batches, serving cached entries
// without a network call. Vectors are unit-normalized so inner product equals
// cosine similarity.
func (g *GeminiEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missing []int
	for i, text := range texts {
		if vec, ok := g.cache.Get(text); ok {
			out[i] = vec
		} else {
			missing = append(missing, i)
		}
	}

	for start := 0; start < len(missing); start += maxRequestBatch {
		end := start + maxRequestBatch
		if end > len(missing) {
			end = len(missing)
		}
		batch := missing[start:end]
		batchTexts := make([]string, len(batch))
		for i, idx := range batch {
			batchTexts[i] = texts[idx]
		}
		vecs, err := g.embedRemote(ctx, batchTexts)
		if err != nil {
			return nil, err
		}
		for i, idx := range batch {
			utils.NormalizeL2(vecs[i])
			out[idx] = vecs[i]
			g.cache.Set(texts[idx], vecs[i])
		}
	}
	return out, nil
}

func (g *GeminiEmbedder) embedRemote(ctx context.Context, texts []string) ([][]float32, error) {
	reqBody := batchEmbedRequest{Requests: make([]embedRequest, len(texts))}
	model := "models/" + g.model
	for i, text := range texts {
		reqBody.Requests[i] = embedRequest{
			Model:   model,
			Content: embedContent{Parts: []embedPart{{Text: text}}},
		}
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}
	url := fmt.Sprintf("%s/v1beta/%s:batchEmbedContents?key=%s", g.endpoint, model, g.apiKey)

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryDelay(attempt)):
			}
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("build embed request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := g.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("embeddings request failed: %s", resp.Status)
			continue
		}
		if resp.StatusCode >= 300 {
			g.logger.Error("embedding call rejected",
				zap.String("provider", providerName),
				zap.Int("status", resp.StatusCode),
				zap.String("body", utils.Truncate(string(body), 200)))
			return nil, faults.NewExternalServiceError(providerName, "batchEmbedContents",
				fmt.Errorf("status %s", resp.Status))
		}
		if readErr != nil {
			lastErr = readErr
			continue
		}

		var parsed batchEmbedResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			return nil, faults.NewExternalServiceError(providerName, "batchEmbedContents",
				fmt.Errorf("decode response: %w", err))
		}
		if len(parsed.Embeddings) != len(texts) {
			return nil, faults.NewExternalServiceError(providerName, "batchEmbedContents",
				fmt.Errorf("got %d embeddings for %d texts", len(parsed.Embeddings), len(texts)))
		}
		vecs := make([][]float32, len(texts))
		for i, e := range parsed.Embeddings {
			vecs[i] = e.Values
		}
		if len(vecs) > 0 {
			g.dimensions.CompareAndSwap(0, int32(len(vecs[0])))
		}
		return vecs, nil
	}
	g.logger.Error("embedding call failed after retries",
		zap.String("provider", providerName),
		zap.String("error", utils.Truncate(fmt.Sprint(lastErr), 200)))
	return nil, faults.NewExternalServiceError(providerName, "batchEmbedContents", lastErr)
}

// Dimensions returns the embedding dimension, 0 until the first successful call.
func (g *GeminiEmbedder) Dimensions() int { return int(g.dimensions.Load()) }

// Close is a no-op for the remote embedder.
func (g *GeminiEmbedder) Close() error { return nil }

// retryDelay is an exponential backoff capped at 5s.
func retryDelay(attempt int) time.Duration {
	d := 200 * time.Millisecond << attempt
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}
