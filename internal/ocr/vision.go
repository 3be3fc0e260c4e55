// Package ocr extracts label text from food package images through the Google
// Cloud Vision API and parses it into an ingredient list.
package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
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
	providerName = "google-vision"
	maxRetries   = 3
)

// TextExtractor detects text in an image.
type TextExtractor interface {
	ExtractText(ctx context.Context, imagePath string) (string, error)
}

// Extractor calls the Vision images:annotate endpoint with
// DOCUMENT_TEXT_DETECTION, which preserves document structure such as line
// breaks that the ingredient parser depends on.
type Extractor struct {
	endpoint string
	apiKey   string
	client   *http.Client
	logger   *zap.Logger
}

// VisionConfig configures the extractor. APIKeyEnv names the environment
// variable holding the key.
type VisionConfig struct {
	Endpoint  string
	APIKeyEnv string
	Timeout   time.Duration
}

// NewExtractor creates an extractor. Returns an error when the API key
// environment variable is empty.
func NewExtractor(cfg VisionConfig, logger *zap.Logger) (*Extractor, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = "https://eu-vision.googleapis.com"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &Extractor{
		endpoint: cfg.Endpoint,
		apiKey:   key,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}, nil
}

type annotateRequest struct {
	Requests []annotateEntry `json:"requests"`
}

type annotateEntry struct {
	Image    annotateImage     `json:"image"`
	Features []annotateFeature `json:"features"`
}

type annotateImage struct {
	Content string `json:"content"`
}

type annotateFeature struct {
	Type string `json:"type"`
}

type annotateResponse struct {
	Responses []struct {
		FullTextAnnotation *struct {
			Text string `json:"text"`
		} `json:"fullTextAnnotation"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	} `json:"responses"`
}

// ExtractText reads the image at imagePath and returns the detected text.
// An image with no recognizable text yields an empty string and no error.
func (e *Extractor) ExtractText(ctx context.Context, imagePath string) (string, error) {
	content, err := os.ReadFile(imagePath)
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	reqBody := annotateRequest{
		Requests: []annotateEntry{{
			Image:    annotateImage{Content: base64.StdEncoding.EncodeToString(content)},
			Features: []annotateFeature{{Type: "DOCUMENT_TEXT_DETECTION"}},
		}},
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal annotate request: %w", err)
	}
	url := fmt.Sprintf("%s/v1/images:annotate?key=%s", e.endpoint, e.apiKey)

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
			return "", fmt.Errorf("build annotate request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := e.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("annotate request failed: %s", resp.Status)
			continue
		}
		if resp.StatusCode >= 300 {
			e.logger.Error("vision call rejected",
				zap.String("provider", providerName),
				zap.Int("status", resp.StatusCode),
				zap.String("body", utils.Truncate(string(body), 200)))
			return "", faults.NewExternalServiceError(providerName, "images:annotate",
				fmt.Errorf("status %s", resp.Status))
		}
		if readErr != nil {
			lastErr = readErr
			continue
		}

		var parsed annotateResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			return "", faults.NewExternalServiceError(providerName, "images:annotate",
				fmt.Errorf("decode response: %w", err))
		}
		if len(parsed.Responses) == 0 {
			return "", faults.NewExternalServiceError(providerName, "images:annotate",
				fmt.Errorf("empty response"))
		}
		first := parsed.Responses[0]
		if first.Error != nil && first.Error.Message != "" {
			return "", faults.NewExternalServiceError(providerName, "images:annotate",
				fmt.Errorf("%s", first.Error.Message))
		}
		if first.FullTextAnnotation == nil {
			e.logger.Warn("no text detected in image", zap.String("path", imagePath))
			return "", nil
		}
		e.logger.Debug("text detected",
			zap.String("path", imagePath),
			zap.Int("chars", len(first.FullTextAnnotation.Text)))
		return first.FullTextAnnotation.Text, nil
	}
	e.logger.Error("vision call failed after retries",
		zap.String("provider", providerName),
		zap.String("error", utils.Truncate(fmt.Sprint(lastErr), 200)))
	return "", faults.NewExternalServiceError(providerName, "images:annotate", lastErr)
}

// retryDelay is an exponential backoff capped at 5s.
func retryDelay(attempt int) time.Duration {
	d := 200 * time.Millisecond << attempt
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}
