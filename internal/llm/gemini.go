package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/anshimlab/anshim/internal/faults"
	"github.com/anshimlab/anshim/pkg/utils"
)

const (
	providerName = "gemini-generation"
	maxRetries   = 3
)

// GeminiGenerator calls the Generative Language API generateContent endpoint.
type GeminiGenerator struct {
	endpoint string
	model    string
	apiKey   string
	client   *http.Client
	logger   *zap.Logger
}

// GeminiConfig configures the generator. APIKeyEnv names the environment
// variable holding the key.
type GeminiConfig struct {
	Endpoint  string
	Model     string
	APIKeyEnv string
	Timeout   time.Duration
}

// NewGeminiGenerator creates a generator for the configured model. Returns an
// error when the API key environment variable is empty.
func NewGeminiGenerator(cfg GeminiConfig, logger *zap.Logger) (*GeminiGenerator, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = "https://generativelanguage.googleapis.com"
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-flash"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	return &GeminiGenerator{
		endpoint: cfg.Endpoint,
		model:    cfg.Model,
		apiKey:   key,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}, nil
}

type generatePart struct {
	Text string `json:"text"`
}

type generateContent struct {
	Parts []generatePart `json:"parts"`
}

type generateRequest struct {
	Contents []generateContent `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []generatePart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Generate sends the prompt and returns the first candidate's text. Rate limit
// and server errors are retried with backoff; other failures return an
// ExternalServiceError.
func (g *GeminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	reqBody := generateRequest{
		Contents: []generateContent{{Parts: []generatePart{{Text: prompt}}}},
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal generate request: %w", err)
	}
	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", g.endpoint, g.model, g.apiKey)

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(retryDelay(attempt)):
			}
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return "", fmt.Errorf("build generate request: %w", err)
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
			lastErr = fmt.Errorf("generation request failed: %s", resp.Status)
			continue
		}
		if resp.StatusCode >= 300 {
			g.logger.Error("generation call rejected",
				zap.String("provider", providerName),
				zap.Int("status", resp.StatusCode),
				zap.String("body", utils.Truncate(string(body), 200)))
			return "", faults.NewExternalServiceError(providerName, "generateContent",
				fmt.Errorf("status %s", resp.Status))
		}
		if readErr != nil {
			lastErr = readErr
			continue
		}

		var parsed generateResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			return "", faults.NewExternalServiceError(providerName, "generateContent",
				fmt.Errorf("decode response: %w", err))
		}
		if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
			return "", faults.NewExternalServiceError(providerName, "generateContent",
				fmt.Errorf("no candidates in response"))
		}
		var text string
		for _, part := range parsed.Candidates[0].Content.Parts {
			text += part.Text
		}
		return text, nil
	}
	g.logger.Error("generation call failed after retries",
		zap.String("provider", providerName),
		zap.String("error", utils.Truncate(fmt.Sprint(lastErr), 200)))
	return "", faults.NewExternalServiceError(providerName, "generateContent", lastErr)
}

// Close is a no-op for the remote generator.
func (g *GeminiGenerator) Close() error { return nil }

// retryDelay is an exponential backoff capped at 5s.
func retryDelay(attempt int) time.Duration {
	d := 200 * time.Millisecond << attempt
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}
